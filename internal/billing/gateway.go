// Package billing wraps Stripe: customers, subscription checkout, one-off
// payment intents and webhook events.
package billing

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"

	"vanguard-platform/internal/apperr"
	"vanguard-platform/internal/models"
)

// Product copy shown on the Stripe checkout page.
const (
	vipProductName        = "VIP メンバーシップ"
	vipProductDescription = "全てのDiscord VIPチャンネルアクセス、専門的なレポートの定期配信"
)

// CheckoutRequest describes a VIP subscription checkout.
type CheckoutRequest struct {
	CustomerID string
	UserID     int64
	SuccessURL string
	CancelURL  string
}

type Checkout struct {
	SessionID string
	URL       string
}

// PaymentIntent is the subset of a Stripe payment intent the purchase flow uses.
type PaymentIntent struct {
	ID           string
	Status       string
	ClientSecret string
	Amount       int64
	Currency     string
	Metadata     map[string]string
}

// Succeeded reports whether Stripe has captured the payment.
func (p *PaymentIntent) Succeeded() bool {
	return p.Status == string(stripe.PaymentIntentStatusSucceeded)
}

// Gateway is everything the handlers and the entitlement service need from
// the payment processor.
type Gateway interface {
	CreateCustomer(ctx context.Context, u *models.User) (string, error)
	CreateSubscriptionCheckout(ctx context.Context, req CheckoutRequest) (*Checkout, error)
	GetSubscription(ctx context.Context, id string) (models.SubscriptionState, error)
	CancelAtPeriodEnd(ctx context.Context, id string) (models.SubscriptionState, error)
	CreatePaymentIntent(ctx context.Context, amount int64, reportID int64) (*PaymentIntent, error)
	GetPaymentIntent(ctx context.Context, id string) (*PaymentIntent, error)
}

// Plan configures the VIP subscription price. When PriceID is empty the
// checkout carries inline monthly price data.
type Plan struct {
	PriceID       string
	MonthlyAmount int64
	Currency      string
}

// StripeClient implements Gateway on a dedicated client.API, so no package
// level key is ever set.
type StripeClient struct {
	api  *client.API
	plan Plan
}

// NewStripeClient builds a client for key. backends may be nil.
func NewStripeClient(key string, plan Plan, backends *stripe.Backends) *StripeClient {
	sc := &client.API{}
	sc.Init(key, backends)
	if plan.Currency == "" {
		plan.Currency = string(stripe.CurrencyJPY)
	}
	return &StripeClient{api: sc, plan: plan}
}

func (s *StripeClient) CreateCustomer(ctx context.Context, u *models.User) (string, error) {
	params := &stripe.CustomerParams{
		Metadata: map[string]string{
			"userId":          strconv.FormatInt(u.ID, 10),
			"discordId":       models.StringValue(u.DiscordID),
			"discordUsername": models.StringValue(u.DiscordUsername),
		},
	}
	if email := models.StringValue(u.Email); email != "" {
		params.Email = stripe.String(email)
	}
	params.Context = ctx

	cust, err := s.api.Customers.New(params)
	if err != nil {
		return "", stripeError(err, "stripe customer create failed")
	}
	return cust.ID, nil
}

func (s *StripeClient) lineItem() *stripe.CheckoutSessionLineItemParams {
	if s.plan.PriceID != "" {
		return &stripe.CheckoutSessionLineItemParams{
			Price:    stripe.String(s.plan.PriceID),
			Quantity: stripe.Int64(1),
		}
	}
	return &stripe.CheckoutSessionLineItemParams{
		PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
			Currency: stripe.String(s.plan.Currency),
			ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
				Name:        stripe.String(vipProductName),
				Description: stripe.String(vipProductDescription),
			},
			Recurring: &stripe.CheckoutSessionLineItemPriceDataRecurringParams{
				Interval: stripe.String(string(stripe.PriceRecurringIntervalMonth)),
			},
			UnitAmount: stripe.Int64(s.plan.MonthlyAmount),
		},
		Quantity: stripe.Int64(1),
	}
}

func (s *StripeClient) CreateSubscriptionCheckout(ctx context.Context, req CheckoutRequest) (*Checkout, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		Customer:           stripe.String(req.CustomerID),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems:          []*stripe.CheckoutSessionLineItemParams{s.lineItem()},
		SuccessURL:         stripe.String(req.SuccessURL),
		CancelURL:          stripe.String(req.CancelURL),
		Metadata: map[string]string{
			"userId": strconv.FormatInt(req.UserID, 10),
		},
	}
	params.Context = ctx

	sess, err := s.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, stripeError(err, "stripe checkout create failed")
	}
	return &Checkout{SessionID: sess.ID, URL: sess.URL}, nil
}

func (s *StripeClient) GetSubscription(ctx context.Context, id string) (models.SubscriptionState, error) {
	params := &stripe.SubscriptionParams{}
	params.Context = ctx

	sub, err := s.api.Subscriptions.Get(id, params)
	if err != nil {
		return models.SubscriptionState{}, stripeError(err, "stripe subscription fetch failed")
	}
	return SubscriptionStateFrom(sub), nil
}

func (s *StripeClient) CancelAtPeriodEnd(ctx context.Context, id string) (models.SubscriptionState, error) {
	params := &stripe.SubscriptionParams{CancelAtPeriodEnd: stripe.Bool(true)}
	params.Context = ctx

	sub, err := s.api.Subscriptions.Update(id, params)
	if err != nil {
		return models.SubscriptionState{}, stripeError(err, "stripe subscription cancel failed")
	}
	return SubscriptionStateFrom(sub), nil
}

func (s *StripeClient) CreatePaymentIntent(ctx context.Context, amount int64, reportID int64) (*PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amount),
		Currency: stripe.String(s.plan.Currency),
		Metadata: map[string]string{
			"reportId": strconv.FormatInt(reportID, 10),
		},
	}
	params.Context = ctx

	pi, err := s.api.PaymentIntents.New(params)
	if err != nil {
		return nil, stripeError(err, "stripe payment intent create failed")
	}
	return paymentIntentFrom(pi), nil
}

func (s *StripeClient) GetPaymentIntent(ctx context.Context, id string) (*PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	pi, err := s.api.PaymentIntents.Get(id, params)
	if err != nil {
		return nil, stripeError(err, "stripe payment intent fetch failed")
	}
	return paymentIntentFrom(pi), nil
}

func paymentIntentFrom(pi *stripe.PaymentIntent) *PaymentIntent {
	return &PaymentIntent{
		ID:           pi.ID,
		Status:       string(pi.Status),
		ClientSecret: pi.ClientSecret,
		Amount:       pi.Amount,
		Currency:     string(pi.Currency),
		Metadata:     pi.Metadata,
	}
}

// SubscriptionStateFrom maps a Stripe subscription onto the mirrored user
// fields. The next payment amount is the sum of unit amount times quantity
// over all items.
func SubscriptionStateFrom(sub *stripe.Subscription) models.SubscriptionState {
	state := models.SubscriptionState{
		ID:                sub.ID,
		Status:            string(sub.Status),
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
	}
	if sub.Customer != nil {
		state.CustomerID = sub.Customer.ID
	}
	if sub.CurrentPeriodEnd > 0 {
		state.CurrentPeriodEnd = unixTime(sub.CurrentPeriodEnd)
	}
	if sub.Items != nil {
		for _, item := range sub.Items.Data {
			if item == nil || item.Price == nil {
				continue
			}
			state.NextPaymentAmount += item.Price.UnitAmount * item.Quantity
		}
	}
	return state
}

// AmountFromPrice converts a decimal price to the charge amount. The
// currency has no minor unit, so the price is rounded to a whole number.
func AmountFromPrice(price string) (int64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(price), 64)
	if err != nil || f < 0 {
		return 0, apperr.New(apperr.ErrValidation, "invalid report price")
	}
	return int64(math.Round(f)), nil
}

func stripeError(err error, msg string) error {
	var se *stripe.Error
	if errors.As(err, &se) {
		switch se.HTTPStatusCode {
		case http.StatusNotFound:
			return apperr.Wrap(apperr.ErrNotFound, err, msg)
		case http.StatusBadRequest:
			return apperr.Wrap(apperr.ErrValidation, err, msg)
		}
	}
	return apperr.Wrap(apperr.ErrUpstream, err, msg)
}
