package lifecycle

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Ilkhomjon13/YN2/internal/domain"
)

// Service управляет жизненным циклом голосований: черновики, просмотр,
// выгрузка результатов, остановка с уведомлением участников и удаление.
type Service struct {
	surveys   domain.SurveyRepo
	votes     domain.VoteRepo
	notifier  domain.Notifier
	sendDelay time.Duration
	log       zerolog.Logger
}

// NewService создаёт сервис жизненного цикла. sendDelay задаёт паузу между
// уведомлениями участников при остановке, чтобы не упереться в лимиты Bot API.
func NewService(surveys domain.SurveyRepo, votes domain.VoteRepo, notifier domain.Notifier, sendDelay time.Duration, logger zerolog.Logger) *Service {
	return &Service{surveys: surveys, votes: votes, notifier: notifier, sendDelay: sendDelay, log: logger}
}

// CreateDraft создаёт активное голосование с одним заголовком.
// Кандидаты и каналы добавляются отдельными шагами диалога.
func (s *Service) CreateDraft(ctx context.Context, title string) (int64, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return 0, domain.ErrEmptyTitle
	}
	return s.surveys.CreateSurvey(ctx, title)
}

// SetDescription сохраняет описание голосования.
func (s *Service) SetDescription(ctx context.Context, surveyID int64, description string) error {
	return s.surveys.SetDescription(ctx, surveyID, strings.TrimSpace(description))
}

// SetImage сохраняет file_id картинки голосования.
func (s *Service) SetImage(ctx context.Context, surveyID int64, fileID string) error {
	return s.surveys.SetImage(ctx, surveyID, fileID)
}

// AddCandidate добавляет кандидата. Пустое после обрезки имя отклоняется.
func (s *Service) AddCandidate(ctx context.Context, surveyID int64, name string) (int64, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, domain.ErrEmptyCandidateName
	}
	return s.surveys.AddCandidate(ctx, surveyID, name)
}

// AddRequiredChannel нормализует ссылку на канал и добавляет её к голосованию.
// Ненормализуемый ввод отклоняется с ErrChannelRefInvalid до записи.
func (s *Service) AddRequiredChannel(ctx context.Context, surveyID int64, raw string) (int64, error) {
	ref, err := domain.ParseChannelRef(raw)
	if err != nil {
		return 0, err
	}
	return s.surveys.AddRequiredChannel(ctx, surveyID, ref)
}

// ListActive возвращает активные голосования, новые первыми.
func (s *Service) ListActive(ctx context.Context) ([]domain.Survey, error) {
	return s.surveys.ListActive(ctx)
}

// LatestActive возвращает последнее созданное активное голосование.
func (s *Service) LatestActive(ctx context.Context) (domain.Survey, error) {
	return s.surveys.LatestActive(ctx)
}

// View собирает голосование с кандидатами и каналами для отрисовки.
func (s *Service) View(ctx context.Context, surveyID int64) (domain.SurveyView, error) {
	survey, err := s.surveys.GetSurvey(ctx, surveyID)
	if err != nil {
		return domain.SurveyView{}, err
	}
	candidates, err := s.surveys.ListCandidates(ctx, surveyID)
	if err != nil {
		return domain.SurveyView{}, fmt.Errorf("получение кандидатов: %w", err)
	}
	channels, err := s.surveys.ListRequiredChannels(ctx, surveyID)
	if err != nil {
		return domain.SurveyView{}, fmt.Errorf("получение каналов: %w", err)
	}
	return domain.SurveyView{Survey: survey, Candidates: candidates, Channels: channels}, nil
}

// Stop деактивирует голосование и рассылает участникам итоговые результаты.
// Деактивация происходит до первого уведомления: новые голоса во время
// рассылки уже невозможны. Доставка best-effort, отказ по одному получателю
// не прерывает остальных.
func (s *Service) Stop(ctx context.Context, surveyID int64) (domain.StopReport, error) {
	survey, err := s.surveys.GetSurvey(ctx, surveyID)
	if err != nil {
		return domain.StopReport{}, err
	}
	if err := s.surveys.Deactivate(ctx, surveyID); err != nil {
		return domain.StopReport{}, fmt.Errorf("деактивация голосования: %w", err)
	}
	survey.Active = false

	candidates, err := s.surveys.ListCandidates(ctx, surveyID)
	if err != nil {
		return domain.StopReport{}, fmt.Errorf("получение кандидатов: %w", err)
	}
	finalText := FinalResultsText(survey, candidates)

	voters, err := s.votes.ListVoters(ctx, surveyID)
	if err != nil {
		return domain.StopReport{}, fmt.Errorf("получение участников: %w", err)
	}

	report := domain.StopReport{Survey: survey}
	for i, voterID := range voters {
		if i > 0 {
			select {
			case <-ctx.Done():
				s.log.Warn().Int64("survey", surveyID).Msg("уведомление участников прервано")
				return report, ctx.Err()
			case <-time.After(s.sendDelay):
			}
		}
		if err := s.notifier.SendText(ctx, voterID, finalText); err != nil {
			s.log.Debug().Err(err).Int64("user", voterID).Msg("участник не уведомлён об итогах")
			report.Failed++
			continue
		}
		report.Sent++
	}
	s.log.Info().Int64("survey", surveyID).Int("sent", report.Sent).Int("failed", report.Failed).Msg("голосование остановлено")
	return report, nil
}

// Delete удаляет голосование вместе с кандидатами, каналами и записями о
// голосах. Повторное удаление возвращает ErrSurveyNotFound.
func (s *Service) Delete(ctx context.Context, surveyID int64) error {
	return s.surveys.DeleteSurvey(ctx, surveyID)
}

// FinalResultsText строит итоговое сообщение для участников остановленного
// голосования.
func FinalResultsText(survey domain.Survey, candidates []domain.Candidate) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🔔 So‘rovnoma yopildi: %s\n\nNatijalar:\n", survey.Title)
	for _, c := range candidates {
		fmt.Fprintf(&b, "- %s: %d ovoz\n", c.Name, c.Votes)
	}
	return b.String()
}

// ResultsText строит текущую сводку результатов.
func ResultsText(view domain.SurveyView) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🗳 %s\n", view.Survey.Title)
	for _, c := range view.Candidates {
		fmt.Fprintf(&b, "- %s ⭐ %d\n", c.Name, c.Votes)
	}
	return b.String()
}

// ResultsCSV выгружает кандидатов и счётчики в CSV для экспорта.
func ResultsCSV(view domain.SurveyView) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"Candidate", "Votes"}); err != nil {
		return nil, err
	}
	for _, c := range view.Candidates {
		if err := w.Write([]string{c.Name, strconv.FormatInt(c.Votes, 10)}); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ResultsFileName — имя CSV-файла выгрузки для конкретного голосования.
func ResultsFileName(surveyID int64) string {
	return fmt.Sprintf("survey_%d_results.csv", surveyID)
}
