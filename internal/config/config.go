// Package config loads runtime settings from config.env, .env and the process
// environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"vanguard-platform/internal/objects"
)

// Config holds every recognized setting. Keys are the environment variable names.
type Config struct {
	Port          string `mapstructure:"PORT"`
	DatabaseURL   string `mapstructure:"DATABASE_URL"`
	StorageDriver string `mapstructure:"STORAGE_DRIVER"`

	SessionSecret string        `mapstructure:"SESSION_SECRET"`
	SessionTTL    time.Duration `mapstructure:"SESSION_TTL"`
	CookieSecure  bool          `mapstructure:"COOKIE_SECURE"`

	StripeSecretKey     string `mapstructure:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret string `mapstructure:"STRIPE_WEBHOOK_SECRET"`
	StripePriceID       string `mapstructure:"STRIPE_PRICE_ID"`
	VIPMonthlyAmount    int64  `mapstructure:"VIP_MONTHLY_AMOUNT"`
	Currency            string `mapstructure:"CURRENCY"`

	DiscordClientID     string `mapstructure:"DISCORD_CLIENT_ID"`
	DiscordClientSecret string `mapstructure:"DISCORD_CLIENT_SECRET"`
	DiscordBotToken     string `mapstructure:"DISCORD_BOT_TOKEN"`
	DiscordGuildID      string `mapstructure:"DISCORD_GUILD_ID"`
	DiscordVIPRoleID    string `mapstructure:"DISCORD_VIP_ROLE_ID"`

	ObjectStorageProvider string        `mapstructure:"OBJECT_STORAGE_PROVIDER"`
	S3AccessKeyID         string        `mapstructure:"S3_ACCESS_KEY_ID"`
	S3SecretAccessKey     string        `mapstructure:"S3_SECRET_ACCESS_KEY"`
	S3Bucket              string        `mapstructure:"S3_BUCKET"`
	S3Region              string        `mapstructure:"S3_REGION"`
	S3Endpoint            string        `mapstructure:"S3_ENDPOINT"`
	SupabaseURL           string        `mapstructure:"SUPABASE_URL"`
	SupabaseServiceKey    string        `mapstructure:"SUPABASE_SERVICE_KEY"`
	DownloadMode          string        `mapstructure:"DOWNLOAD_MODE"`
	DownloadTTL           time.Duration `mapstructure:"DOWNLOAD_TTL"`

	CryptoPriceURL string `mapstructure:"CRYPTO_PRICE_URL"`
	PublicDomains  string `mapstructure:"PUBLIC_DOMAINS"`

	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogFormat string `mapstructure:"LOG_FORMAT"`
}

var defaults = map[string]any{
	"PORT":                    "5000",
	"DATABASE_URL":            "",
	"STORAGE_DRIVER":          "postgres",
	"SESSION_SECRET":          "dev-secret-key-change-in-production",
	"SESSION_TTL":             7 * 24 * time.Hour,
	"COOKIE_SECURE":           false,
	"STRIPE_SECRET_KEY":       "",
	"STRIPE_WEBHOOK_SECRET":   "",
	"STRIPE_PRICE_ID":         "",
	"VIP_MONTHLY_AMOUNT":      10000,
	"CURRENCY":                "jpy",
	"DISCORD_CLIENT_ID":       "",
	"DISCORD_CLIENT_SECRET":   "",
	"DISCORD_BOT_TOKEN":       "",
	"DISCORD_GUILD_ID":        "1357437337537220719",
	"DISCORD_VIP_ROLE_ID":     "",
	"OBJECT_STORAGE_PROVIDER": "none",
	"S3_ACCESS_KEY_ID":        "",
	"S3_SECRET_ACCESS_KEY":    "",
	"S3_BUCKET":               "",
	"S3_REGION":               "us-east-1",
	"S3_ENDPOINT":             "",
	"SUPABASE_URL":            "",
	"SUPABASE_SERVICE_KEY":    "",
	"DOWNLOAD_MODE":           "presign",
	"DOWNLOAD_TTL":            time.Hour,
	"CRYPTO_PRICE_URL":        "https://api.coingecko.com/api/v3/simple/price?ids=bitcoin,ethereum,ripple,binancecoin,solana,dogecoin,the-open-network,shiba-inu,cardano,avalanche-2&vs_currencies=usd&include_24hr_change=true",
	"PUBLIC_DOMAINS":          "",
	"LOG_LEVEL":               "info",
	"LOG_FORMAT":              "json",
}

// Load reads .env (if present), then config.env from dir (if present), then
// the environment. Environment values win.
func Load(dir string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AddConfigPath(dir)
	v.SetConfigName("config")
	v.SetConfigType("env")
	v.AutomaticEnv()

	// AutomaticEnv only resolves keys viper already knows about.
	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config.env: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

// Validate reports settings the API server cannot start without.
func (c *Config) Validate() error {
	var missing []string
	if c.StripeSecretKey == "" {
		missing = append(missing, "STRIPE_SECRET_KEY")
	}
	if c.DiscordClientID == "" || c.DiscordClientSecret == "" {
		missing = append(missing, "DISCORD_CLIENT_ID/DISCORD_CLIENT_SECRET")
	}
	if c.StorageDriver == "postgres" && c.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	switch c.DownloadMode {
	case "presign", "proxy":
	default:
		return fmt.Errorf("unsupported DOWNLOAD_MODE %q", c.DownloadMode)
	}
	return nil
}

// Domains splits PUBLIC_DOMAINS into trimmed, non-empty host names.
func (c *Config) Domains() []string {
	var out []string
	for _, d := range strings.Split(c.PublicDomains, ",") {
		if d = strings.TrimSpace(d); d != "" {
			out = append(out, d)
		}
	}
	return out
}

// Objects returns the object storage settings.
func (c *Config) Objects() objects.Config {
	return objects.Config{
		Provider: c.ObjectStorageProvider,
		S3: objects.S3Config{
			Bucket:          c.S3Bucket,
			Region:          c.S3Region,
			Endpoint:        c.S3Endpoint,
			AccessKeyID:     c.S3AccessKeyID,
			SecretAccessKey: c.S3SecretAccessKey,
		},
		SupabaseURL: c.SupabaseURL,
		SupabaseKey: c.SupabaseServiceKey,
	}
}
