package handlers

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"vanguard-platform/internal/logging"
	"vanguard-platform/internal/middleware"
	"vanguard-platform/internal/session"
)

// Deps is everything NewRouter wires together. Domains are the public host
// names whose browser origins may call the API with credentials.
type Deps struct {
	Log           logging.Logger
	Domains       []string
	Sessions      *session.Manager
	Auth          *AuthHandler
	Subscriptions *SubscriptionHandler
	Reports       *ReportHandler
	Prices        *PriceHandler
	WebSocket     *WebSocketHandler
}

// NewRouter builds the HTTP API.
func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(
		middleware.RequestLogger(d.Log),
		middleware.Recovery(d.Log),
		cors.New(cors.Config{
			AllowOriginFunc:  allowOrigin(d.Domains),
			AllowMethods:     []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Stripe-Signature"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}),
		middleware.Errors(d.Log),
		middleware.Session(d.Sessions, d.Log),
	)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	api := r.Group("/api")
	{
		api.GET("/crypto-prices", d.Prices.Get)

		api.GET("/reports", d.Reports.List)
		api.GET("/reports/samples", d.Reports.Samples)
		api.GET("/reports/:id", d.Reports.Get)
		api.GET("/reports/:id/download-sample", d.Reports.DownloadSample)
		api.GET("/files/:id", d.Reports.ServeFile)
		api.POST("/create-payment-intent", d.Reports.CreatePaymentIntent)
		api.POST("/confirm-purchase", d.Reports.ConfirmPurchase)

		auth := api.Group("/auth")
		{
			auth.GET("/discord", d.Auth.DiscordLogin)
			auth.GET("/discord/callback", d.Auth.DiscordCallback)
			auth.GET("/discord/config", d.Auth.DiscordConfig)
			auth.GET("/discord/setup-guide", d.Auth.SetupGuide)
			auth.GET("/user", d.Auth.CurrentUser)
			auth.POST("/logout", d.Auth.Logout)
			auth.POST("/register", d.Auth.Register)
			auth.POST("/login", d.Auth.Login)
		}

		api.POST("/create-vip-subscription", d.Subscriptions.Create)
		api.POST("/stripe/create-subscription", d.Subscriptions.Create)
		api.POST("/cancel-vip-subscription", d.Subscriptions.Cancel)
		api.POST("/stripe/cancel-subscription", d.Subscriptions.Cancel)
		api.POST("/stripe/webhook", d.Subscriptions.Webhook)
		api.POST("/webhooks/stripe", d.Subscriptions.Webhook)

		// Protected Endpoint
		protected := api.Group("/")
		protected.Use(middleware.RequireUser())
		{
			protected.GET("/purchases", d.Reports.MyPurchases)
			protected.GET("/reports/:id/download", d.Reports.Download)
			protected.GET("/ws/entitlements", d.WebSocket.Entitlements)
		}
	}

	return r
}

// allowOrigin accepts local development origins and the public domains.
// Same-origin requests never reach it.
func allowOrigin(domains []string) func(string) bool {
	allowed := map[string]bool{"localhost": true, "127.0.0.1": true}
	for _, d := range domains {
		allowed[strings.ToLower(d)] = true
	}
	return func(origin string) bool {
		u, err := url.Parse(origin)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			return false
		}
		return allowed[strings.ToLower(u.Hostname())] || allowed[strings.ToLower(u.Host)]
	}
}
