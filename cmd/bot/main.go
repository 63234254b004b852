package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Ilkhomjon13/YN2/internal/adapters/bot"
	"github.com/Ilkhomjon13/YN2/internal/adapters/membership"
	"github.com/Ilkhomjon13/YN2/internal/adapters/repo"
	"github.com/Ilkhomjon13/YN2/internal/domain"
	"github.com/Ilkhomjon13/YN2/internal/infra/config"
	"github.com/Ilkhomjon13/YN2/internal/infra/db"
	infrahttp "github.com/Ilkhomjon13/YN2/internal/infra/http"
	"github.com/Ilkhomjon13/YN2/internal/infra/log"
	"github.com/Ilkhomjon13/YN2/internal/infra/metrics"
	"github.com/Ilkhomjon13/YN2/internal/infra/queue"
	"github.com/Ilkhomjon13/YN2/internal/usecase/broadcast"
	"github.com/Ilkhomjon13/YN2/internal/usecase/lifecycle"
	"github.com/Ilkhomjon13/YN2/internal/usecase/voting"
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

	repoAdapter := repo.NewPostgres(pool)
	if err := repoAdapter.EnsureSchema(ctx); err != nil {
		logger.Fatal().Err(err).Msg("не удалось подготовить схему")
	}

	metrics.MustRegister(prometheus.DefaultRegisterer)
	metrics.StartServer(ctx, logger, cfg.MetricsAddr)

	botAPI, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		logger.Fatal().Err(err).Msg("не удалось создать бота")
	}
	verifier := membership.NewVerifier(botAPI, logger)
	notifier := bot.NewNotifier(botAPI, logger)
	sendDelay := time.Duration(cfg.Broadcast.SendDelay) * time.Millisecond

	broadcastQueue := buildBroadcastQueue(cfg, logger)
	votingService := voting.NewService(repoAdapter, repoAdapter, verifier, logger)
	lifecycleService := lifecycle.NewService(repoAdapter, repoAdapter, notifier, sendDelay, logger)
	broadcastService := broadcast.NewService(broadcastQueue, repoAdapter, notifier, sendDelay, logger)

	go broadcastService.Run(ctx)

	h := bot.NewHandler(botAPI, logger, lifecycleService, votingService, broadcastService, repoAdapter, cfg.Telegram.AdminID)

	if cfg.Telegram.WebhookURL == "" {
		runPolling(ctx, botAPI, h, logger)
		return
	}
	runWebhook(ctx, cfg, botAPI, h, logger)
}

// buildBroadcastQueue выбирает бэкенд очереди рассылок по конфигу.
func buildBroadcastQueue(cfg config.AppConfig, logger zerolog.Logger) domain.BroadcastQueue {
	switch cfg.Broadcast.Backend {
	case "amqp":
		q, err := queue.NewAMQPBroadcastQueue(cfg.Broadcast.AMQPURL, cfg.Broadcast.QueueKey)
		if err != nil {
			logger.Fatal().Err(err).Msg("не удалось подключиться к AMQP")
		}
		return q
	default:
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		return queue.NewRedisBroadcastQueue(client, cfg.Broadcast.QueueKey)
	}
}

// runPolling получает апдейты long polling'ом, когда вебхук не настроен.
func runPolling(ctx context.Context, botAPI *tgbotapi.BotAPI, h *bot.Handler, logger zerolog.Logger) {
	updateCfg := tgbotapi.NewUpdate(0)
	updateCfg.Timeout = 30
	updates := botAPI.GetUpdatesChan(updateCfg)
	logger.Info().Msg("бот запущен в режиме long polling")
	for {
		select {
		case <-ctx.Done():
			botAPI.StopReceivingUpdates()
			logger.Info().Msg("остановка бота")
			return
		case upd := <-updates:
			go h.HandleUpdate(ctx, upd)
		}
	}
}

// runWebhook регистрирует вебхук и обслуживает апдейты через HTTP.
func runWebhook(ctx context.Context, cfg config.AppConfig, botAPI *tgbotapi.BotAPI, h *bot.Handler, logger zerolog.Logger) {
	wh, err := tgbotapi.NewWebhook(cfg.Telegram.WebhookURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("некорректный адрес вебхука")
	}
	if _, err := botAPI.Request(wh); err != nil {
		logger.Fatal().Err(err).Msg("не удалось зарегистрировать вебхук")
	}

	srv := infrahttp.NewServer(logger)
	srv.Router.Post("/bot/webhook", func(w http.ResponseWriter, r *http.Request) {
		var update tgbotapi.Update
		if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.HandleUpdate(r.Context(), update)
		w.WriteHeader(http.StatusOK)
	})

	go func() {
		if err := srv.Start(fmt.Sprintf(":%d", cfg.Port)); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("HTTP сервер остановлен")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("остановка бота")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

var (
	_ domain.SurveyRepo = (*repo.Postgres)(nil)
	_ domain.VoteRepo   = (*repo.Postgres)(nil)
	_ domain.UserRepo   = (*repo.Postgres)(nil)
)
