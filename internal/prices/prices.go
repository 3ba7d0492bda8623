// Package prices proxies the public CoinGecko simple-price endpoint.
package prices

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"vanguard-platform/internal/apperr"
)

// DefaultURL asks for the tickers shown on the marketing site.
const DefaultURL = "https://api.coingecko.com/api/v3/simple/price?ids=bitcoin,ethereum,ripple,binancecoin,solana,dogecoin,the-open-network,shiba-inu,cardano,avalanche-2&vs_currencies=usd&include_24hr_change=true"

// Quotes maps a coin id to its currency fields, e.g. {"bitcoin": {"usd": 1}}.
type Quotes map[string]map[string]float64

type Client struct {
	url  string
	http *http.Client
}

// NewClient returns a client for url; an empty url means DefaultURL.
func NewClient(url string, httpClient *http.Client) *Client {
	if url == "" {
		url = DefaultURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{url: url, http: httpClient}
}

func (c *Client) Fetch(ctx context.Context) (Quotes, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build price request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrUpstream, err, "Failed to fetch crypto prices")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, apperr.Wrap(apperr.ErrUpstream, fmt.Errorf("status %d", resp.StatusCode), "Failed to fetch crypto prices")
	}

	var q Quotes
	if err := json.NewDecoder(resp.Body).Decode(&q); err != nil {
		return nil, apperr.Wrap(apperr.ErrUpstream, err, "Failed to fetch crypto prices")
	}
	return q, nil
}
