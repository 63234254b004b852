package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Ilkhomjon13/YN2/internal/adapters/repo"
	"github.com/Ilkhomjon13/YN2/internal/infra/config"
	"github.com/Ilkhomjon13/YN2/internal/infra/db"
	infrahttp "github.com/Ilkhomjon13/YN2/internal/infra/http"
	"github.com/Ilkhomjon13/YN2/internal/infra/log"
	"github.com/Ilkhomjon13/YN2/internal/infra/metrics"
	"github.com/Ilkhomjon13/YN2/internal/livefeed"
)

func main() {
	cfg := config.Load()
	logger := log.NewLogger(cfg.AppEnv)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	pool, err := db.Connect(ctx, cfg.PGDSN, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("не удалось подключиться к БД")
	}
	defer pool.Close()

	metrics.MustRegister(prometheus.DefaultRegisterer)

	repoAdapter := repo.NewPostgres(pool)
	interval := time.Duration(cfg.LiveFeed.PollIntervalMS) * time.Millisecond
	feed := livefeed.NewServer(repoAdapter, interval, logger)

	srv := infrahttp.NewServer(logger)
	srv.Router.Get("/ws", feed.HandleWS)

	go func() {
		if err := srv.Start(fmt.Sprintf(":%d", cfg.Port)); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("HTTP сервер остановлен")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("остановка трансляции результатов")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}
