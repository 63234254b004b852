package broadcast

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Ilkhomjon13/YN2/internal/domain"
	"github.com/Ilkhomjon13/YN2/internal/infra/metrics"
)

// Service рассылает произвольные сообщения всем зарегистрированным
// пользователям. Приём задачи и доставка разнесены через очередь, чтобы
// администратор не ждал окончания рассылки.
type Service struct {
	queue     domain.BroadcastQueue
	users     domain.UserRepo
	notifier  domain.Notifier
	sendDelay time.Duration
	log       zerolog.Logger
}

// NewService создаёт сервис рассылок. sendDelay задаёт паузу между
// получателями.
func NewService(queue domain.BroadcastQueue, users domain.UserRepo, notifier domain.Notifier, sendDelay time.Duration, logger zerolog.Logger) *Service {
	return &Service{queue: queue, users: users, notifier: notifier, sendDelay: sendDelay, log: logger}
}

// Submit ставит рассылку в очередь и возвращает идентификатор задачи.
func (s *Service) Submit(ctx context.Context, adminChatID int64, text string) (string, error) {
	job := domain.BroadcastJob{
		ID:          uuid.NewString(),
		AdminChatID: adminChatID,
		Text:        text,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.queue.Enqueue(ctx, job); err != nil {
		return "", fmt.Errorf("постановка рассылки в очередь: %w", err)
	}
	s.log.Info().Str("job", job.ID).Msg("рассылка поставлена в очередь")
	return job.ID, nil
}

// Run — цикл воркера: забирает задачи из очереди и доставляет до остановки
// контекста.
func (s *Service) Run(ctx context.Context) {
	for {
		job, err := s.queue.Pop(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return
			}
			s.log.Error().Err(err).Msg("не удалось забрать задачу рассылки")
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		report := s.deliver(ctx, job)
		s.report(ctx, job, report)
	}
}

// deliver отправляет текст задачи каждому пользователю. Отказ по одному
// получателю не прерывает остальных.
func (s *Service) deliver(ctx context.Context, job domain.BroadcastJob) domain.BroadcastReport {
	report := domain.BroadcastReport{JobID: job.ID}
	userIDs, err := s.users.ListUserIDs(ctx)
	if err != nil {
		s.log.Error().Err(err).Str("job", job.ID).Msg("не удалось получить список получателей")
		return report
	}
	for i, userID := range userIDs {
		if i > 0 {
			select {
			case <-ctx.Done():
				s.log.Warn().Str("job", job.ID).Msg("рассылка прервана")
				return report
			case <-time.After(s.sendDelay):
			}
		}
		err := s.notifier.SendText(ctx, userID, job.Text)
		metrics.IncBroadcastSend(err)
		if err != nil {
			s.log.Debug().Err(err).Int64("user", userID).Str("job", job.ID).Msg("сообщение не доставлено")
			report.Failed++
			continue
		}
		report.Sent++
	}
	s.log.Info().Str("job", job.ID).Int("sent", report.Sent).Int("failed", report.Failed).Msg("рассылка завершена")
	return report
}

// report отправляет администратору сводку доставки.
func (s *Service) report(ctx context.Context, job domain.BroadcastJob, report domain.BroadcastReport) {
	text := fmt.Sprintf("📣 Xabar yuborildi.\nYetkazildi: %d\nYetkazilmadi: %d", report.Sent, report.Failed)
	if err := s.notifier.SendText(ctx, job.AdminChatID, text); err != nil {
		s.log.Error().Err(err).Str("job", job.ID).Msg("сводка рассылки не доставлена администратору")
	}
}
