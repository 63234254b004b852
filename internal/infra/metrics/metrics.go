package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	VotesAccepted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "votes_accepted_total",
		Help: "Количество принятых голосов",
	})
	VoteOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vote_outcomes_total",
		Help: "Результаты попыток голоса по видам",
	}, []string{"outcome"})
	MembershipChecks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "membership_checks_total",
		Help: "Проверки членства в каналах",
	}, []string{"result"})
	BroadcastSends = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "broadcast_sends_total",
		Help: "Отправки сообщений при рассылках",
	}, []string{"status"})
	BotSendErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bot_send_errors_total",
		Help: "Ошибки отправки сообщений ботом",
	})
	LiveFeedClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "livefeed_clients",
		Help: "Подключённые клиенты трансляции результатов",
	})

	NetworkRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "network_request_duration_seconds",
		Help:    "Длительность сетевых запросов",
		Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 15, 20, 30, 60},
	}, []string{"component", "operation", "target", "status"})

	NetworkRequestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "network_request_total",
		Help: "Количество сетевых запросов",
	}, []string{"component", "operation", "target", "status"})

	VotesBySurvey = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "votes_by_survey_total",
		Help: "Принятые голоса по голосованиям",
	}, []string{"survey_id"})
)

// MustRegister регистрирует метрики.
func MustRegister(registerer prometheus.Registerer) {
	registerer.MustRegister(
		VotesAccepted,
		VoteOutcomes,
		MembershipChecks,
		BroadcastSends,
		BotSendErrors,
		LiveFeedClients,
		NetworkRequestDuration,
		NetworkRequestTotal,
		VotesBySurvey,
	)
}

// StartServer запускает HTTP сервер с эндпоинтом /metrics.
func StartServer(ctx context.Context, logger zerolog.Logger, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: graceful shutdown failed")
		}
	}()

	go func() {
		logger.Info().Str("addr", addr).Msg("metrics: server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: server stopped")
		}
	}()
}

// ObserveNetworkRequest записывает длительность и статус сетевого запроса.
func ObserveNetworkRequest(component, operation, target string, start time.Time, err error) {
	if component == "" {
		component = "unknown"
	}
	if operation == "" {
		operation = "unknown"
	}
	if target == "" {
		target = "unknown"
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	duration := time.Since(start).Seconds()
	NetworkRequestDuration.WithLabelValues(component, operation, target, status).Observe(duration)
	NetworkRequestTotal.WithLabelValues(component, operation, target, status).Inc()
}

// IncVoteOutcome увеличивает счётчик результата попытки голоса.
func IncVoteOutcome(outcome string) {
	VoteOutcomes.WithLabelValues(outcome).Inc()
}

// IncVoteAccepted отмечает принятый голос.
func IncVoteAccepted(surveyID int64) {
	VotesAccepted.Inc()
	VotesBySurvey.WithLabelValues(strconv.FormatInt(surveyID, 10)).Inc()
}

// IncMembershipCheck отмечает результат проверки членства.
func IncMembershipCheck(member bool) {
	result := "member"
	if !member {
		result = "not_member"
	}
	MembershipChecks.WithLabelValues(result).Inc()
}

// IncBotSendError отмечает ошибку отправки сообщения ботом.
func IncBotSendError() {
	BotSendErrors.Inc()
}

// IncBroadcastSend отмечает исход одной отправки рассылки.
func IncBroadcastSend(err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	BroadcastSends.WithLabelValues(status).Inc()
}
