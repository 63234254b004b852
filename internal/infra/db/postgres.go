package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

const (
	connectRetries = 5
	retryDelay     = 5 * time.Second
)

// Connect создаёт пул подключений к Postgres с ограниченным числом повторов.
// БД на хостинге поднимается медленнее бота, поэтому стартуем с ретраями.
func Connect(ctx context.Context, dsn string, logger zerolog.Logger) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("разбор DSN: %w", err)
	}
	cfg.MaxConns = 10

	var lastErr error
	for attempt := 1; attempt <= connectRetries; attempt++ {
		connCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		pool, err := pgxpool.NewWithConfig(connCtx, cfg)
		if err == nil {
			if err = pool.Ping(connCtx); err == nil {
				cancel()
				return pool, nil
			}
			pool.Close()
		}
		cancel()
		lastErr = err
		logger.Warn().Err(err).Int("attempt", attempt).Msg("не удалось подключиться к БД, повтор")
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retryDelay):
		}
	}
	return nil, fmt.Errorf("подключение к БД после %d попыток: %w", connectRetries, lastErr)
}
