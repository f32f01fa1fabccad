package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Pool is an alias for pgxpool.Pool
type Pool = pgxpool.Pool

// NewPool creates the PostgreSQL pool backing sensor, token and reading storage.
// The pool is pinged on fx start and closed on stop.
func NewPool(lc fx.Lifecycle, logger *zap.Logger, databaseURL, applicationName string) (*pgxpool.Pool, error) {
	logger.Info("initializing database connection pool", zap.String("url", maskPassword(databaseURL)))

	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("[DATABASE] failed to parse database URL: %w", err)
	}
	config.ConnConfig.RuntimeParams["application_name"] = applicationName

	pool, err := pgxpool.NewWithConfig(context.Background(), config)
	if err != nil {
		return nil, fmt.Errorf("[DATABASE] failed to create connection pool: %w", err)
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := pool.Ping(ctx); err != nil {
				logger.Error("database ping failed", zap.Error(err), zap.String("url", maskPassword(databaseURL)))
				return fmt.Errorf("[DATABASE CONNECTION FAILED] cannot reach sensor storage, check DATABASE_URL and that Postgres is reachable: %w", err)
			}
			logger.Info("database connection established",
				zap.Int32("max_conns", config.MaxConns))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			pool.Close()
			logger.Info("database connection closed")
			return nil
		},
	})

	return pool, nil
}

// maskPassword masks the password in a database URL for logging
func maskPassword(url string) string {
	if url == "" {
		return "<empty>"
	}
	at := strings.LastIndex(url, "@")
	if at < 0 {
		return url
	}
	scheme := strings.Index(url, "://")
	userinfo := url[:at]
	if scheme >= 0 {
		userinfo = url[scheme+3 : at]
	}
	colon := strings.Index(userinfo, ":")
	if colon < 0 {
		return url
	}
	prefix := at - len(userinfo) + colon + 1
	return url[:prefix] + "***" + url[at:]
}
