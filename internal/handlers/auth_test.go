package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"vanguard-platform/internal/discord"
	"vanguard-platform/internal/models"
	"vanguard-platform/internal/repository"
	"vanguard-platform/internal/session"
	"vanguard-platform/internal/testutil"
)

const callbackURI = "http://localhost:5000" + discord.CallbackPath

// callback runs the Discord callback with a valid state for code.
func (h *harness) callback(t *testing.T, code string) *httptest.ResponseRecorder {
	t.Helper()
	state, nonce, err := h.state.Issue(callbackURI)
	require.NoError(t, err)

	target := discord.CallbackPath + "?code=" + url.QueryEscape(code) + "&state=" + url.QueryEscape(state)
	return h.do(t, http.MethodGet, target, "", &http.Cookie{Name: discord.StateCookie, Value: nonce})
}

func TestDiscordLogin_RedirectsWithState(t *testing.T) {
	h := newHarness(t)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/discord", nil)
	req.Host = "localhost:5000"
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusFound, w.Code)
	loc, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, callbackURI, loc.Query().Get("redirect_uri"))

	nonce := responseCookie(w, discord.StateCookie)
	require.NotNil(t, nonce)
	redirect, err := h.state.Verify(loc.Query().Get("state"), nonce.Value)
	require.NoError(t, err)
	assert.Equal(t, callbackURI, redirect)
}

func TestDiscordCallback_MissingCode(t *testing.T) {
	h := newHarness(t)

	w := h.do(t, http.MethodGet, discord.CallbackPath, "")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"No authorization code provided"}`, w.Body.String())
}

func TestDiscordCallback_Member(t *testing.T) {
	h := newHarness(t)

	w := h.callback(t, "code-1")

	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/vip-community?auth=success", w.Header().Get("Location"))

	cookie := responseCookie(w, session.CookieName)
	require.NotNil(t, cookie)
	s, err := h.sessions.Resolve(context.Background(), cookie.Value)
	require.NoError(t, err)

	u, err := h.repo.GetUser(context.Background(), s.UserID)
	require.NoError(t, err)
	assert.Equal(t, "d-1", models.StringValue(u.DiscordID))
	assert.Equal(t, "satoshi", models.StringValue(u.DiscordUsername))
	assert.True(t, u.IsServerMember)
	assert.False(t, u.IsVIPMember)
	assert.Empty(t, h.roles.Granted, "login never grants the VIP role")
}

func TestDiscordCallback_UpsertIsIdempotent(t *testing.T) {
	h := newHarness(t)

	require.Equal(t, "/vip-community?auth=success", h.callback(t, "code-1").Header().Get("Location"))
	h.discord.Profile.DiscordUsername = "satoshi-renamed"
	require.Equal(t, "/vip-community?auth=success", h.callback(t, "code-2").Header().Get("Location"))

	assert.Equal(t, 1, h.repo.UserCount())
	u, err := h.repo.GetUserByUsername(context.Background(), repository.DiscordUsername("d-1"))
	require.NoError(t, err)
	assert.Equal(t, "satoshi-renamed", models.StringValue(u.DiscordUsername))
}

func TestDiscordCallback_NotMemberWritesNothing(t *testing.T) {
	h := newHarness(t)
	h.discord.GuildIDs = []string{"other"}

	w := h.callback(t, "code-1")

	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/vip-community?error=not_member", w.Header().Get("Location"))
	assert.Equal(t, 0, h.repo.UserCount())
	assert.Nil(t, responseCookie(w, session.CookieName))
}

func TestDiscordCallback_Failures(t *testing.T) {
	tests := []struct {
		name  string
		setup func(h *harness)
	}{
		{"exchange", func(h *harness) {
			h.discord.ExchangeFunc = func(context.Context, string, string) (*oauth2.Token, error) { return nil, testutil.ErrMock }
		}},
		{"profile", func(h *harness) { h.discord.ProfileErr = testutil.ErrMock }},
		{"guilds", func(h *harness) { h.discord.GuildsErr = testutil.ErrMock }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			tt.setup(h)

			w := h.callback(t, "code-1")

			assert.Equal(t, "/vip-community?error=auth_failed", w.Header().Get("Location"))
			assert.Equal(t, 0, h.repo.UserCount())
		})
	}
}

func TestDiscordCallback_BadState(t *testing.T) {
	h := newHarness(t)
	state, _, err := h.state.Issue(callbackURI)
	require.NoError(t, err)

	w := h.do(t, http.MethodGet, discord.CallbackPath+"?code=c&state="+url.QueryEscape(state), "",
		&http.Cookie{Name: discord.StateCookie, Value: "someone-else"})

	assert.Equal(t, "/vip-community?error=auth_failed", w.Header().Get("Location"))
	assert.Equal(t, 0, h.repo.UserCount())
}

func TestDiscordCallback_SessionNotPersisted(t *testing.T) {
	h := newHarness(t, withSessionStore(failingStore{}))

	w := h.callback(t, "code-1")

	assert.Equal(t, "/vip-community?error=session_failed", w.Header().Get("Location"))
	assert.Nil(t, responseCookie(w, session.CookieName))
}

func TestDiscordConfig(t *testing.T) {
	h := newHarness(t)

	body := decode(t, h.do(t, http.MethodGet, "/api/auth/discord/config", ""))

	assert.Equal(t, "client-1", body["clientId"])
	assert.Contains(t, body["allPossibleRedirectUris"], "https://cryptovanguard.replit.app"+discord.CallbackPath)
	assert.Contains(t, body["setupInstructions"], "client-1")

	guide := decode(t, h.do(t, http.MethodGet, "/api/auth/discord/setup-guide", ""))
	assert.Contains(t, guide, "instructions")
	assert.Contains(t, guide, "allRedirectUris")
}

func TestCurrentUser_Anonymous(t *testing.T) {
	h := newHarness(t)

	w := h.do(t, http.MethodGet, "/api/auth/user", "")
	assert.JSONEq(t, `{"user":null}`, w.Body.String())

	w = h.do(t, http.MethodGet, "/api/auth/user", "", &http.Cookie{Name: session.CookieName, Value: "stale"})
	assert.JSONEq(t, `{"user":null}`, w.Body.String())
	cleared := responseCookie(w, session.CookieName)
	require.NotNil(t, cleared)
	assert.Empty(t, cleared.Value)
}

func TestCurrentUser_InAgreementDoesNotWrite(t *testing.T) {
	h := newHarness(t)
	u, cookie := h.login(t, "d-7")
	_, state := h.subscribe(t, u)
	h.gateway.GetSubscriptionFunc = func(context.Context, string) (models.SubscriptionState, error) {
		return state, nil
	}

	for i := 0; i < 2; i++ {
		w := h.do(t, http.MethodGet, "/api/auth/user", "", cookie)
		require.Equal(t, http.StatusOK, w.Code)
		body := decode(t, w)
		user := body["user"].(map[string]any)
		assert.Equal(t, true, user["isVipMember"])
		assert.Equal(t, "active", body["subscription"].(map[string]any)["status"])
	}

	assert.Equal(t, 0, h.repo.subscriptionWrites)
	assert.Empty(t, h.roles.Granted)
	assert.Empty(t, h.roles.Revoked)
	assert.Equal(t, 2, h.gateway.CallCount("GetSubscription"))
}

func TestCurrentUser_SelfHealsStaleVIP(t *testing.T) {
	h := newHarness(t)
	u, cookie := h.login(t, "d-8")
	u, state := h.subscribe(t, u)
	state.Status = models.StatusCanceled
	h.gateway.GetSubscriptionFunc = func(context.Context, string) (models.SubscriptionState, error) {
		return state, nil
	}

	body := decode(t, h.do(t, http.MethodGet, "/api/auth/user", "", cookie))

	assert.Equal(t, false, body["user"].(map[string]any)["isVipMember"])
	got, err := h.repo.GetUser(context.Background(), u.ID)
	require.NoError(t, err)
	assert.False(t, got.IsVIPMember)
	assert.Equal(t, models.StatusCanceled, models.StringValue(got.SubscriptionStatus))
	assert.Equal(t, []string{"d-8"}, h.roles.Revoked)
}

func TestCurrentUser_StripeDownFallsBackToStoredRow(t *testing.T) {
	h := newHarness(t)
	u, cookie := h.login(t, "d-9")
	h.subscribe(t, u)
	h.gateway.GetSubscriptionFunc = func(context.Context, string) (models.SubscriptionState, error) {
		return models.SubscriptionState{}, testutil.ErrMock
	}

	w := h.do(t, http.MethodGet, "/api/auth/user", "", cookie)

	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, true, body["user"].(map[string]any)["isVipMember"])
	assert.Equal(t, "sub_1", body["subscription"].(map[string]any)["id"])
}

func TestLogout(t *testing.T) {
	h := newHarness(t)
	_, cookie := h.login(t, "d-1")

	w := h.do(t, http.MethodPost, "/api/auth/logout", "", cookie)
	require.Equal(t, http.StatusOK, w.Code)

	_, err := h.sessions.Resolve(context.Background(), cookie.Value)
	assert.Error(t, err)

	w = h.do(t, http.MethodGet, "/api/auth/user", "", cookie)
	assert.JSONEq(t, `{"user":null}`, w.Body.String())
}

func TestRegisterAndLogin(t *testing.T) {
	h := newHarness(t)

	w := h.do(t, http.MethodPost, "/api/auth/register", `{"username":"alice","password":"correct-horse"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.NotNil(t, responseCookie(w, session.CookieName))
	assert.NotContains(t, w.Body.String(), "correct-horse")

	w = h.do(t, http.MethodPost, "/api/auth/register", `{"username":"alice","password":"another-one"}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = h.do(t, http.MethodPost, "/api/auth/login", `{"username":"alice","password":"wrong-password"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"error":"Invalid credentials"}`, w.Body.String())

	w = h.do(t, http.MethodPost, "/api/auth/login", `{"username":"nobody","password":"whatever"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = h.do(t, http.MethodPost, "/api/auth/login", `{"username":"alice","password":"correct-horse"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotNil(t, responseCookie(w, session.CookieName))
}

func TestRegister_Validation(t *testing.T) {
	h := newHarness(t)

	w := h.do(t, http.MethodPost, "/api/auth/register", `{"username":"al","password":"short"}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRegister_DiscordPrefixReserved(t *testing.T) {
	h := newHarness(t)

	for _, name := range []string{"discord:d-1", "Discord:d-2"} {
		w := h.do(t, http.MethodPost, "/api/auth/register", `{"username":"`+name+`","password":"correct-horse"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code, name)
		assert.JSONEq(t, `{"error":"Username is reserved"}`, w.Body.String())
	}
	assert.Equal(t, 0, h.repo.UserCount())

	// The first Discord login for that id still gets its account.
	require.Equal(t, "/vip-community?auth=success", h.callback(t, "code-1").Header().Get("Location"))
	assert.Equal(t, 1, h.repo.UserCount())
}
