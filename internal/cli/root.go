// Package cli implements the talentctl maintenance commands.
package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"example.com/talent/internal/config"
	"example.com/talent/internal/domain"
	persistence "example.com/talent/internal/persistence/postgres"
	"example.com/talent/internal/storage"
)

var (
	postgresURL string
	tenantID    string
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "talentctl",
	Short: "Maintenance tooling for the talent service",
	Long:  "Operational commands for the talent service: migrations, activity backfill, pagination checks, avatar uploads and recency exports.",
}

func init() {
	RootCmd.PersistentFlags().StringVar(&postgresURL, "postgres-url", "", "Postgres connection string (default: $POSTGRES_URL)")
}

// addTenantFlag registers the required --tenant flag on cmd.
func addTenantFlag(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&tenantID, "tenant", "t", "", "Tenant ID")
	_ = cmd.MarkFlagRequired("tenant")
}

func loadConfig() config.Config {
	cfg := config.Load()
	if postgresURL != "" {
		cfg.PostgresURL = postgresURL
	}
	return cfg
}

func openPool(ctx context.Context, cfg config.Config) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// openService wires a Service over Postgres, with avatar storage when a
// bucket is configured. Callers close the returned pool.
func openService(ctx context.Context) (*domain.Service, *pgxpool.Pool, error) {
	cfg := loadConfig()
	pool, err := openPool(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("connect postgres: %w", err)
	}

	var opts []domain.Option
	if cfg.Storage.Bucket != "" {
		store, err := storage.NewS3Store(ctx, storage.Config{
			Endpoint:      cfg.Storage.Endpoint,
			Region:        cfg.Storage.Region,
			Bucket:        cfg.Storage.Bucket,
			AccessKey:     cfg.Storage.AccessKey,
			SecretKey:     cfg.Storage.SecretKey,
			PublicBaseURL: cfg.Storage.PublicBaseURL,
			UsePathStyle:  cfg.Storage.UsePathStyle,
		})
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		opts = append(opts, domain.WithAvatarStore(store, cfg.Storage.AvatarMaxBytes))
	}
	return domain.NewService(persistence.NewRepository(pool), time.Now, opts...), pool, nil
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
