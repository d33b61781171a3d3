// Package cli holds the thermaquote command tree.
package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/thermaquote/thermaquote/internal/app"
	"github.com/thermaquote/thermaquote/internal/platform/cache"
	"github.com/thermaquote/thermaquote/internal/platform/db"
)

// NewRootCommand builds the thermaquote command with every subcommand attached.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "thermaquote",
		Short: "Quoting and CRM service for insulation installers",
		Long: `thermaquote prices insulation jobs, tracks the sales pipeline and
serves the quoting API.

Examples:
  thermaquote serve
  thermaquote migrate
  thermaquote import-catalog products.xlsx
  thermaquote calc --pack-price 120 --pack-size 4.5 --area 20 --labour
  thermaquote jobs trigger quote-expiry`,
		SilenceUsage: true,
	}
	root.AddCommand(
		newServeCommand(),
		newMigrateCommand(),
		newImportCommand(),
		newCalcCommand(),
		newJobsCommand(),
		newUserCommand(),
	)
	return root
}

// env is the runtime a command works against.
type env struct {
	cfg    *app.Config
	logger *slog.Logger
	pool   *pgxpool.Pool
	redis  *redis.Client
}

func loadEnv() (*env, error) {
	cfg, err := app.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return &env{cfg: cfg, logger: app.NewLogger(cfg)}, nil
}

func (e *env) connectDB(ctx context.Context) error {
	pool, err := db.New(ctx, e.cfg.PGDSN, e.cfg.PGMaxConns)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	e.pool = pool
	return nil
}

// connectRedis is best effort: without Redis the catalog cache is skipped.
func (e *env) connectRedis(ctx context.Context) {
	client, err := cache.New(ctx, e.cfg.RedisAddr)
	if err != nil {
		e.logger.Warn("redis unavailable", slog.Any("error", err))
		return
	}
	e.redis = client
}

func (e *env) close() {
	if e.redis != nil {
		if err := e.redis.Close(); err != nil {
			e.logger.Warn("redis close", slog.Any("error", err))
		}
	}
	if e.pool != nil {
		e.pool.Close()
	}
}
