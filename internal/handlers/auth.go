package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"vanguard-platform/internal/apperr"
	"vanguard-platform/internal/discord"
	"vanguard-platform/internal/entitlement"
	"vanguard-platform/internal/logging"
	"vanguard-platform/internal/middleware"
	"vanguard-platform/internal/models"
	"vanguard-platform/internal/repository"
	"vanguard-platform/internal/session"
)

// Client routes the OAuth callback redirects to.
const (
	vipCommunityPath = "/vip-community"
	authSuccessPath  = vipCommunityPath + "?auth=success"
)

func authErrorPath(flag string) string {
	return vipCommunityPath + "?error=" + flag
}

// AuthHandler serves the Discord login flow, the current-user endpoint and
// the legacy username/password routes.
type AuthHandler struct {
	Users        repository.Repository
	Discord      discord.Authenticator
	State        *discord.StateSigner
	Sessions     *session.Manager
	Entitlements *entitlement.Service
	ClientID     string
	GuildID      string
	Domains      []string
	SecureCookie bool
	Log          logging.Logger
}

func (h *AuthHandler) DiscordConfig(c *gin.Context) {
	uris := discord.AllRedirectURIs(h.Domains)
	c.JSON(http.StatusOK, gin.H{
		"clientId":                h.ClientID,
		"currentEnvironment":      discord.DetectEnvironment(c.Request),
		"allPossibleRedirectUris": uris,
		"setupInstructions":       discord.SetupInstructions(h.ClientID, uris),
		"publicDomains":           h.Domains,
	})
}

func (h *AuthHandler) SetupGuide(c *gin.Context) {
	uris := discord.AllRedirectURIs(h.Domains)
	c.JSON(http.StatusOK, gin.H{
		"instructions":       discord.SetupInstructions(h.ClientID, uris),
		"allRedirectUris":    uris,
		"currentEnvironment": discord.DetectEnvironment(c.Request),
	})
}

// DiscordLogin redirects to Discord's authorize page with a signed state.
func (h *AuthHandler) DiscordLogin(c *gin.Context) {
	env := discord.DetectEnvironment(c.Request)
	if !discord.ValidateRedirectURI(env.RedirectURI, c.Request) {
		h.Log.Error(c.Request.Context(), "invalid redirect uri", "redirect_uri", env.RedirectURI)
		badRequest(c, "Invalid redirect URI configuration")
		return
	}

	state, nonce, err := h.State.Issue(env.RedirectURI)
	if err != nil {
		fail(c, err)
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(discord.StateCookie, nonce, int(discord.StateTTL.Seconds()), "/", "", h.SecureCookie, true)

	h.Log.Info(c.Request.Context(), "discord login started", "environment", env.Name, "redirect_uri", env.RedirectURI)
	c.Redirect(http.StatusFound, h.Discord.AuthCodeURL(env.RedirectURI, state))
}

// DiscordCallback finishes the login: exchange the code, gate on guild
// membership, upsert the user and establish the session.
func (h *AuthHandler) DiscordCallback(c *gin.Context) {
	ctx := c.Request.Context()

	code := c.Query("code")
	if code == "" {
		badRequest(c, "No authorization code provided")
		return
	}

	// 1. The state must be ours and bound to this browser.
	nonce, _ := c.Cookie(discord.StateCookie)
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(discord.StateCookie, "", -1, "/", "", h.SecureCookie, true)

	redirectURI, err := h.State.Verify(c.Query("state"), nonce)
	if err != nil {
		h.Log.Warn(ctx, "discord oauth state rejected", "error", err)
		c.Redirect(http.StatusFound, authErrorPath("auth_failed"))
		return
	}

	// 2. Code for token, then profile and guilds with the same token.
	tok, err := h.Discord.Exchange(ctx, code, redirectURI)
	if err != nil {
		h.Log.Error(ctx, "discord token exchange failed", "error", err)
		c.Redirect(http.StatusFound, authErrorPath("auth_failed"))
		return
	}
	profile, err := h.Discord.FetchProfile(ctx, tok)
	if err != nil {
		h.Log.Error(ctx, "discord profile fetch failed", "error", err)
		c.Redirect(http.StatusFound, authErrorPath("auth_failed"))
		return
	}
	guilds, err := h.Discord.FetchGuildIDs(ctx, tok)
	if err != nil {
		h.Log.Error(ctx, "discord guild fetch failed", "discord_id", profile.DiscordID, "error", err)
		c.Redirect(http.StatusFound, authErrorPath("auth_failed"))
		return
	}

	// 3. Only members of the community guild get an account.
	if !discord.IsMember(guilds, h.GuildID) {
		h.Log.Info(ctx, "discord user is not a guild member", "discord_id", profile.DiscordID, "guild_id", h.GuildID)
		c.Redirect(http.StatusFound, authErrorPath("not_member"))
		return
	}
	profile.IsServerMember = true

	// 4. Upsert keyed by discord id, then persist the session.
	user, err := h.Users.UpsertDiscordUser(ctx, profile)
	if err != nil {
		h.Log.Error(ctx, "discord user upsert failed", "discord_id", profile.DiscordID, "error", err)
		c.Redirect(http.StatusFound, authErrorPath("auth_failed"))
		return
	}

	s, err := h.Sessions.Establish(ctx, user.ID)
	if err != nil {
		h.Log.Error(ctx, "session persist failed", "user_id", user.ID, "error", err)
		c.Redirect(http.StatusFound, authErrorPath("session_failed"))
		return
	}
	h.Sessions.SetCookie(c, s)

	h.Log.Info(ctx, "discord user authenticated", "user_id", user.ID, "discord_username", profile.DiscordUsername)
	c.Redirect(http.StatusFound, authSuccessPath)
}

// CurrentUser returns the session's user with its subscription, correcting
// a stale VIP flag on the way.
func (h *AuthHandler) CurrentUser(c *gin.Context) {
	ctx := c.Request.Context()

	userID, ok := middleware.UserID(c)
	if !ok {
		if middleware.StaleSession(c) {
			h.Sessions.ClearCookie(c)
		}
		c.JSON(http.StatusOK, gin.H{"user": nil})
		return
	}

	user, err := h.Users.GetUser(ctx, userID)
	if errors.Is(err, apperr.ErrNotFound) {
		if err := h.Sessions.Destroy(ctx, middleware.SessionID(c)); err != nil {
			h.Log.Warn(ctx, "session delete failed", "error", err)
		}
		h.Sessions.ClearCookie(c)
		c.JSON(http.StatusOK, gin.H{"user": nil})
		return
	}
	if err != nil {
		fail(c, err)
		return
	}

	var sub *models.SubscriptionState
	healed, live, err := h.Entitlements.SelfHeal(ctx, user)
	if err != nil {
		h.Log.Warn(ctx, "subscription self-heal skipped", "user_id", user.ID, "error", err)
	} else {
		user, sub = healed, live
	}
	if sub == nil && user.StripeSubscriptionID != nil {
		stored := user.Subscription()
		sub = &stored
	}

	c.JSON(http.StatusOK, gin.H{"user": user, "subscription": sub})
}

func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.Sessions.Destroy(c.Request.Context(), middleware.SessionID(c)); err != nil {
		h.Log.Warn(c.Request.Context(), "session delete failed", "error", err)
	}
	h.Sessions.ClearCookie(c)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// RegisterRequest defines the JSON body for legacy local registration.
type RegisterRequest struct {
	Username string `json:"username" binding:"required,min=3"`
	Password string `json:"password" binding:"required,min=8"`
	Email    string `json:"email" binding:"omitempty,email"`
}

// Register creates a local account. Discord login is the primary path.
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request: "+err.Error())
		return
	}
	if strings.HasPrefix(strings.ToLower(req.Username), repository.DiscordUsernamePrefix) {
		badRequest(c, "Username is reserved")
		return
	}

	// We MUST NOT store the plain-text password
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		fail(c, err)
		return
	}

	user, err := h.Users.CreateUser(c.Request.Context(), req.Username, string(hash), req.Email)
	if errors.Is(err, apperr.ErrConflict) {
		fail(c, apperr.New(apperr.ErrConflict, "Username is already taken"))
		return
	}
	if err != nil {
		fail(c, err)
		return
	}

	if !h.startSession(c, user) {
		return
	}
	c.JSON(http.StatusCreated, gin.H{"user": user})
}

// LoginRequest defines the JSON body for legacy local login.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request: "+err.Error())
		return
	}

	user, err := h.Users.GetUserByUsername(c.Request.Context(), req.Username)
	if err != nil && !errors.Is(err, apperr.ErrNotFound) {
		fail(c, err)
		return
	}
	// Same answer for unknown users and wrong passwords.
	if user == nil || user.PasswordHash == "" ||
		bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		fail(c, apperr.New(apperr.ErrUnauthorized, "Invalid credentials"))
		return
	}

	if !h.startSession(c, user) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

func (h *AuthHandler) startSession(c *gin.Context, user *models.User) bool {
	s, err := h.Sessions.Establish(c.Request.Context(), user.ID)
	if err != nil {
		fail(c, err)
		return false
	}
	h.Sessions.SetCookie(c, s)
	return true
}
