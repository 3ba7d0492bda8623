// Package discord talks to Discord: the OAuth2 login flow, the caller's
// profile and guild list, and VIP role changes through the bot.
package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"golang.org/x/oauth2"

	"vanguard-platform/internal/apperr"
	"vanguard-platform/internal/models"
)

// Scopes requested on the authorize URL.
var Scopes = []string{"identify", "guilds", "email"}

// Endpoint is Discord's OAuth2 endpoint. Credentials go in the form body.
var Endpoint = oauth2.Endpoint{
	AuthURL:   "https://discord.com/api/oauth2/authorize",
	TokenURL:  "https://discord.com/api/oauth2/token",
	AuthStyle: oauth2.AuthStyleInParams,
}

// Authenticator is the part of Discord the login callback depends on.
type Authenticator interface {
	AuthCodeURL(redirectURI, state string) string
	Exchange(ctx context.Context, code, redirectURI string) (*oauth2.Token, error)
	FetchProfile(ctx context.Context, tok *oauth2.Token) (models.DiscordUser, error)
	FetchGuildIDs(ctx context.Context, tok *oauth2.Token) ([]string, error)
}

// userAPI is the subset of *discordgo.Session used with a bearer token.
type userAPI interface {
	User(userID string, options ...discordgo.RequestOption) (*discordgo.User, error)
	UserGuilds(limit int, beforeID, afterID string, withCounts bool, options ...discordgo.RequestOption) ([]*discordgo.UserGuild, error)
}

// Client implements Authenticator with golang.org/x/oauth2 for the code
// exchange and discordgo for the REST reads.
type Client struct {
	conf       oauth2.Config
	newSession func(accessToken string) (userAPI, error)
}

type ClientOption func(*Client)

// WithEndpoint points the code exchange somewhere else.
func WithEndpoint(ep oauth2.Endpoint) ClientOption {
	return func(c *Client) { c.conf.Endpoint = ep }
}

func NewClient(clientID, clientSecret string, opts ...ClientOption) *Client {
	c := &Client{
		conf: oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     Endpoint,
			Scopes:       Scopes,
		},
		newSession: func(accessToken string) (userAPI, error) {
			s, err := discordgo.New("Bearer " + accessToken)
			if err != nil {
				return nil, err
			}
			return s, nil
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) config(redirectURI string) *oauth2.Config {
	conf := c.conf
	conf.RedirectURL = redirectURI
	return &conf
}

func (c *Client) AuthCodeURL(redirectURI, state string) string {
	return c.config(redirectURI).AuthCodeURL(state)
}

func (c *Client) Exchange(ctx context.Context, code, redirectURI string) (*oauth2.Token, error) {
	tok, err := c.config(redirectURI).Exchange(ctx, code)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrUpstream, err, "discord token exchange failed")
	}
	return tok, nil
}

func (c *Client) session(tok *oauth2.Token) (userAPI, error) {
	if tok == nil || tok.AccessToken == "" {
		return nil, apperr.New(apperr.ErrUpstream, "discord token missing")
	}
	s, err := c.newSession(tok.AccessToken)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrUpstream, err, "discord session")
	}
	return s, nil
}

func (c *Client) FetchProfile(ctx context.Context, tok *oauth2.Token) (models.DiscordUser, error) {
	s, err := c.session(tok)
	if err != nil {
		return models.DiscordUser{}, err
	}
	u, err := s.User("@me", discordgo.WithContext(ctx))
	if err != nil {
		return models.DiscordUser{}, apperr.Wrap(apperr.ErrUpstream, err, "discord profile fetch failed")
	}
	if u == nil || u.ID == "" {
		return models.DiscordUser{}, apperr.New(apperr.ErrUpstream, "discord profile malformed")
	}
	return models.DiscordUser{
		DiscordID:       u.ID,
		DiscordUsername: u.Username,
		DiscordAvatar:   u.Avatar,
		Email:           u.Email,
	}, nil
}

func (c *Client) FetchGuildIDs(ctx context.Context, tok *oauth2.Token) ([]string, error) {
	s, err := c.session(tok)
	if err != nil {
		return nil, err
	}
	guilds, err := s.UserGuilds(200, "", "", false, discordgo.WithContext(ctx))
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrUpstream, err, "discord guild fetch failed")
	}
	ids := make([]string, 0, len(guilds))
	for _, g := range guilds {
		ids = append(ids, g.ID)
	}
	return ids, nil
}

// IsMember reports whether guildID is among guildIDs.
func IsMember(guildIDs []string, guildID string) bool {
	for _, id := range guildIDs {
		if id == guildID {
			return true
		}
	}
	return false
}

// ErrRoleNotConfigured is returned when no VIP role id is set.
var ErrRoleNotConfigured = fmt.Errorf("discord vip role not configured: %w", apperr.ErrValidation)
