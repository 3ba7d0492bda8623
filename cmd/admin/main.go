package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	"vanguard-platform/internal/admin"
	"vanguard-platform/internal/config"
	"vanguard-platform/internal/objects"
	"vanguard-platform/internal/repository"
)

var configDir string

func main() {
	rootCmd := &cobra.Command{
		Use:   "vanguard-admin",
		Short: "Maintenance tasks for the Crypto Vanguard backend",
	}
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", ".", "directory containing config.env")

	reportsCmd := &cobra.Command{
		Use:   "reports",
		Short: "Manage the analytical report catalogue",
	}
	reportsCmd.AddCommand(seedCmd(), updateURLsCmd(), uploadCmd())

	rootCmd.AddCommand(migrateCmd(), reportsCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	return config.Load(configDir)
}

// openDB connects to Postgres and applies pending migrations.
func openDB(ctx context.Context) (*sqlx.DB, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := repository.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := repository.Migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()
			fmt.Fprintln(cmd.OutOrStdout(), "Migrations applied")
			return nil
		},
	}
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Insert the sample reports into an empty catalogue",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			n, err := admin.SeedReports(cmd.Context(), repository.NewPostgresRepository(db))
			if err != nil {
				return err
			}
			if n == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Reports already present, nothing seeded")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d reports\n", n)
			return nil
		},
	}
}

func updateURLsCmd() *cobra.Command {
	var mappingPath string

	cmd := &cobra.Command{
		Use:   "update-urls",
		Short: "Point report file URLs at the PDFs in object storage",
		Long: `Reads a YAML file mapping report titles to PDF file names and sets each
mapped report's file_url to the public object URL in the report bucket.

Example mapping.yaml:
  "Layer 2ソリューション投資ガイド": layer2-guide.pdf`,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(mappingPath)
			if err != nil {
				return fmt.Errorf("open mapping: %w", err)
			}
			defer f.Close()

			m, err := admin.LoadMapping(f)
			if err != nil {
				return err
			}

			db, err := openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			res, err := admin.UpdateFileURLs(cmd.Context(), repository.NewPostgresRepository(db), m)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Updated %d reports\n", len(res.Updated))
			if len(res.Unmapped) > 0 {
				fmt.Fprintf(out, "No mapping for: %s\n", strings.Join(res.Unmapped, ", "))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&mappingPath, "mapping", "mapping.yaml", "YAML file of title: filename pairs")
	return cmd
}

func uploadCmd() *cobra.Command {
	var (
		key       string
		file      string
		overwrite bool
	)

	cmd := &cobra.Command{
		Use:   "upload",
		Short: "Upload a report PDF to object storage",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			body, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("read %s: %w", file, err)
			}

			store, err := objects.Open(cmd.Context(), cfg.Objects())
			if err != nil {
				return err
			}

			if err := admin.Upload(cmd.Context(), store, key, body, overwrite); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Uploaded %s (%d bytes)\n", key, len(body))
			return nil
		},
	}
	cmd.Flags().StringVar(&key, "key", "", "object key, e.g. reports/btc-q1-2024.pdf")
	cmd.Flags().StringVar(&file, "file", "", "local PDF path")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "replace an existing object")
	cmd.MarkFlagRequired("key")
	cmd.MarkFlagRequired("file")
	return cmd
}
