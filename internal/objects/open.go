package objects

import (
	"context"
	"fmt"
)

// Storage providers.
const (
	ProviderNone     = "none"
	ProviderS3       = "s3"
	ProviderSupabase = "supabase"
)

// Config selects and addresses an object store.
type Config struct {
	Provider    string
	S3          S3Config
	SupabaseURL string
	SupabaseKey string
}

// Open returns the configured store. ProviderNone and the empty provider
// return a nil Store and no error.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Provider {
	case "", ProviderNone:
		return nil, nil
	case ProviderS3:
		if cfg.S3.Bucket == "" {
			cfg.S3.Bucket = ReportBucket
		}
		s, err := NewS3Store(ctx, cfg.S3)
		if err != nil {
			return nil, err
		}
		return s, nil
	case ProviderSupabase:
		s, err := NewSupabaseStore(cfg.SupabaseURL, cfg.SupabaseKey, ReportBucket)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unsupported object storage provider %q", cfg.Provider)
	}
}
