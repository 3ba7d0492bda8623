package discord

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"vanguard-platform/internal/apperr"
)

type fakeUserAPI struct {
	user      *discordgo.User
	userErr   error
	guilds    []*discordgo.UserGuild
	guildsErr error
}

func (f *fakeUserAPI) User(string, ...discordgo.RequestOption) (*discordgo.User, error) {
	return f.user, f.userErr
}

func (f *fakeUserAPI) UserGuilds(int, string, string, bool, ...discordgo.RequestOption) ([]*discordgo.UserGuild, error) {
	return f.guilds, f.guildsErr
}

func clientWith(api *fakeUserAPI) *Client {
	c := NewClient("id", "secret")
	c.newSession = func(string) (userAPI, error) { return api, nil }
	return c
}

func TestAuthCodeURL(t *testing.T) {
	c := NewClient("client-1", "secret")
	raw := c.AuthCodeURL("http://localhost:5000/api/auth/discord/callback", "st")

	u, err := url.Parse(raw)
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "discord.com", u.Host)
	assert.Equal(t, "client-1", q.Get("client_id"))
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "identify guilds email", q.Get("scope"))
	assert.Equal(t, "st", q.Get("state"))
	assert.Equal(t, "http://localhost:5000/api/auth/discord/callback", q.Get("redirect_uri"))
}

func TestExchange(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if r.Form.Get("code") != "good" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		assert.Equal(t, "id", r.Form.Get("client_id"))
		assert.Equal(t, "secret", r.Form.Get("client_secret"))
		assert.Equal(t, "https://cb", r.Form.Get("redirect_uri"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"tok","token_type":"Bearer","expires_in":3600}`))
	}))
	defer srv.Close()

	c := NewClient("id", "secret", WithEndpoint(oauth2.Endpoint{
		AuthURL:   srv.URL + "/authorize",
		TokenURL:  srv.URL + "/token",
		AuthStyle: oauth2.AuthStyleInParams,
	}))

	tok, err := c.Exchange(context.Background(), "good", "https://cb")
	require.NoError(t, err)
	assert.Equal(t, "tok", tok.AccessToken)

	_, err = c.Exchange(context.Background(), "bad", "https://cb")
	assert.ErrorIs(t, err, apperr.ErrUpstream)
}

func TestFetchProfile(t *testing.T) {
	c := clientWith(&fakeUserAPI{user: &discordgo.User{ID: "42", Username: "satoshi", Avatar: "av", Email: "s@example.com"}})

	p, err := c.FetchProfile(context.Background(), &oauth2.Token{AccessToken: "tok"})
	require.NoError(t, err)
	assert.Equal(t, "42", p.DiscordID)
	assert.Equal(t, "satoshi", p.DiscordUsername)
	assert.Equal(t, "av", p.DiscordAvatar)
	assert.Equal(t, "s@example.com", p.Email)
}

func TestFetchProfile_Malformed(t *testing.T) {
	c := clientWith(&fakeUserAPI{user: &discordgo.User{}})
	_, err := c.FetchProfile(context.Background(), &oauth2.Token{AccessToken: "tok"})
	assert.ErrorIs(t, err, apperr.ErrUpstream)

	c = clientWith(&fakeUserAPI{userErr: errors.New("401")})
	_, err = c.FetchProfile(context.Background(), &oauth2.Token{AccessToken: "tok"})
	assert.ErrorIs(t, err, apperr.ErrUpstream)

	_, err = c.FetchProfile(context.Background(), nil)
	assert.ErrorIs(t, err, apperr.ErrUpstream)
}

func TestFetchGuildIDs(t *testing.T) {
	c := clientWith(&fakeUserAPI{guilds: []*discordgo.UserGuild{{ID: "1"}, {ID: "1357437337537220719"}}})

	ids, err := c.FetchGuildIDs(context.Background(), &oauth2.Token{AccessToken: "tok"})
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "1357437337537220719"}, ids)
	assert.True(t, IsMember(ids, "1357437337537220719"))
	assert.False(t, IsMember(ids, "2"))
}
