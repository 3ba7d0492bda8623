package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"vanguard-platform/internal/billing"
	"vanguard-platform/internal/config"
	"vanguard-platform/internal/discord"
	"vanguard-platform/internal/entitlement"
	"vanguard-platform/internal/handlers"
	"vanguard-platform/internal/logging"
	"vanguard-platform/internal/objects"
	"vanguard-platform/internal/prices"
	"vanguard-platform/internal/repository"
	"vanguard-platform/internal/session"
	ws "vanguard-platform/internal/websocket"
)

func main() {
	// Load Configuration
	cfg, err := config.Load(".")
	if err != nil {
		logging.New("info", "json").Error(context.Background(), "cannot load config", "error", err)
		os.Exit(1)
	}
	log := logging.New(cfg.LogLevel, cfg.LogFormat)

	if err := run(cfg, log); err != nil {
		log.Error(context.Background(), "server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log logging.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cfg.Validate(); err != nil {
		return err
	}
	log.Info(ctx, "starting crypto vanguard server", "storage", cfg.StorageDriver, "objects", cfg.ObjectStorageProvider)

	// Storage
	var (
		repo  repository.Repository
		store session.Store
	)
	switch cfg.StorageDriver {
	case "memory":
		repo = repository.NewMemoryRepository()
		store = session.NewMemoryStore()
		log.Warn(ctx, "using in-memory storage; data is lost on restart")
	default:
		db, err := repository.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := repository.Migrate(ctx, db); err != nil {
			return err
		}
		repo = repository.NewPostgresRepository(db)
		store = session.NewPostgresStore(db)
		log.Info(ctx, "connected to postgres")
	}

	sessions := session.NewManager(store, cfg.SessionTTL, cfg.CookieSecure)

	// External services
	gateway := billing.NewStripeClient(cfg.StripeSecretKey, billing.Plan{
		PriceID:       cfg.StripePriceID,
		MonthlyAmount: cfg.VIPMonthlyAmount,
		Currency:      cfg.Currency,
	}, nil)

	var roles entitlement.RoleManager
	if cfg.DiscordBotToken != "" {
		bot, err := discord.NewBotRoles(cfg.DiscordBotToken, cfg.DiscordGuildID, cfg.DiscordVIPRoleID)
		if err != nil {
			return err
		}
		roles = bot
	} else {
		log.Warn(ctx, "DISCORD_BOT_TOKEN not set; VIP roles will not be synced")
	}

	objectStore, err := objects.Open(ctx, cfg.Objects())
	if err != nil {
		return err
	}
	downloads := objects.NewResolver(objectStore, cfg.DownloadMode, cfg.DownloadTTL,
		objects.NewDownloadTokens(cfg.SessionSecret, cfg.DownloadTTL))

	hub := ws.NewHub(log)
	go hub.Run(ctx)

	svc := entitlement.NewService(repo, gateway, roles, hub, log)

	// Handlers
	gin.SetMode(gin.ReleaseMode)
	router := handlers.NewRouter(handlers.Deps{
		Log:      log,
		Domains:  cfg.Domains(),
		Sessions: sessions,
		Auth: &handlers.AuthHandler{
			Users:        repo,
			Discord:      discord.NewClient(cfg.DiscordClientID, cfg.DiscordClientSecret),
			State:        discord.NewStateSigner(cfg.SessionSecret),
			Sessions:     sessions,
			Entitlements: svc,
			ClientID:     cfg.DiscordClientID,
			GuildID:      cfg.DiscordGuildID,
			Domains:      cfg.Domains(),
			SecureCookie: cfg.CookieSecure,
			Log:          log,
		},
		Subscriptions: &handlers.SubscriptionHandler{
			Users:         repo,
			Billing:       gateway,
			Entitlements:  svc,
			WebhookSecret: cfg.StripeWebhookSecret,
			Log:           log,
		},
		Reports: &handlers.ReportHandler{
			Reports:   repo,
			Billing:   gateway,
			Downloads: downloads,
			Log:       log,
		},
		Prices:    &handlers.PriceHandler{Prices: prices.NewClient(cfg.CryptoPriceURL, nil)},
		WebSocket: handlers.NewWebSocketHandler(hub, log),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info(context.Background(), "shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
