package voting

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/Ilkhomjon13/YN2/internal/domain"
	"github.com/Ilkhomjon13/YN2/internal/infra/metrics"
)

// Service — движок голосования: один голос на пару (голосование, пользователь),
// конъюнктивный шлюз по обязательным каналам, атомарный принимающий путь.
type Service struct {
	surveys  domain.SurveyRepo
	votes    domain.VoteRepo
	verifier domain.MembershipVerifier
	log      zerolog.Logger
}

// NewService создаёт движок голосования.
func NewService(surveys domain.SurveyRepo, votes domain.VoteRepo, verifier domain.MembershipVerifier, logger zerolog.Logger) *Service {
	return &Service{surveys: surveys, votes: votes, verifier: verifier, log: logger}
}

// AttemptVote проводит попытку голоса за кандидата.
// Ожидаемые отказы (нет кандидата, уже голосовал, не хватает подписок)
// возвращаются значением VoteOutcome; ошибкой ходят только сбои хранилища.
func (s *Service) AttemptVote(ctx context.Context, candidateID, userID int64) (domain.VoteOutcome, error) {
	candidate, err := s.votes.GetCandidate(ctx, candidateID)
	if errors.Is(err, domain.ErrCandidateNotFound) {
		metrics.IncVoteOutcome("candidate_not_found")
		return domain.VoteOutcome{Status: domain.VoteCandidateNotFound}, nil
	}
	if err != nil {
		return domain.VoteOutcome{}, fmt.Errorf("получение кандидата: %w", err)
	}

	surveyID := candidate.SurveyID
	survey, err := s.surveys.GetSurvey(ctx, surveyID)
	if errors.Is(err, domain.ErrSurveyNotFound) {
		metrics.IncVoteOutcome("candidate_not_found")
		return domain.VoteOutcome{Status: domain.VoteCandidateNotFound}, nil
	}
	if err != nil {
		return domain.VoteOutcome{}, fmt.Errorf("получение голосования: %w", err)
	}
	if !survey.Active {
		metrics.IncVoteOutcome("survey_closed")
		return domain.VoteOutcome{Status: domain.VoteSurveyClosed, SurveyID: surveyID}, nil
	}

	voted, err := s.votes.HasVoted(ctx, surveyID, userID)
	if err != nil {
		return domain.VoteOutcome{}, fmt.Errorf("проверка повторного голоса: %w", err)
	}
	if voted {
		metrics.IncVoteOutcome("already_voted")
		return domain.VoteOutcome{Status: domain.VoteAlreadyVoted, SurveyID: surveyID}, nil
	}

	missing, err := s.missingChannels(ctx, surveyID, userID)
	if err != nil {
		return domain.VoteOutcome{}, err
	}
	if len(missing) > 0 {
		metrics.IncVoteOutcome("membership_required")
		return domain.VoteOutcome{Status: domain.VoteMembershipRequired, SurveyID: surveyID, Missing: missing}, nil
	}

	if err := s.votes.AddVote(ctx, surveyID, candidateID, userID); err != nil {
		if errors.Is(err, domain.ErrAlreadyVoted) {
			// Конкурирующая попытка той же пары успела первой.
			metrics.IncVoteOutcome("already_voted")
			return domain.VoteOutcome{Status: domain.VoteAlreadyVoted, SurveyID: surveyID}, nil
		}
		return domain.VoteOutcome{}, fmt.Errorf("запись голоса: %w", err)
	}

	tallies, err := s.surveys.ListCandidates(ctx, surveyID)
	if err != nil {
		// Голос уже принят, отдаём результат без свежих счётчиков.
		s.log.Error().Err(err).Int64("survey", surveyID).Msg("не удалось перечитать счётчики после голоса")
		tallies = nil
	}
	metrics.IncVoteOutcome("accepted")
	metrics.IncVoteAccepted(surveyID)
	return domain.VoteOutcome{Status: domain.VoteAccepted, SurveyID: surveyID, Tallies: tallies}, nil
}

// RecheckMembership повторяет только проверку подписок. Записи о голосах и
// счётчики не затрагиваются, сколько бы раз пользователь ни жал «проверить».
func (s *Service) RecheckMembership(ctx context.Context, surveyID, userID int64) (domain.MembershipOutcome, error) {
	if _, err := s.surveys.GetSurvey(ctx, surveyID); err != nil {
		if errors.Is(err, domain.ErrSurveyNotFound) {
			return domain.MembershipOutcome{}, domain.ErrSurveyNotFound
		}
		return domain.MembershipOutcome{}, fmt.Errorf("получение голосования: %w", err)
	}
	missing, err := s.missingChannels(ctx, surveyID, userID)
	if err != nil {
		return domain.MembershipOutcome{}, err
	}
	return domain.MembershipOutcome{Cleared: len(missing) == 0, Missing: missing}, nil
}

// missingChannels собирает полный список каналов, в которых пользователь не
// состоит. Каналы не обрываются на первом отказе: пользователю показывают всё,
// на что нужно подписаться.
func (s *Service) missingChannels(ctx context.Context, surveyID, userID int64) ([]domain.ChannelRef, error) {
	channels, err := s.surveys.ListRequiredChannels(ctx, surveyID)
	if err != nil {
		return nil, fmt.Errorf("получение обязательных каналов: %w", err)
	}
	var missing []domain.ChannelRef
	for _, ch := range channels {
		if !s.verifier.IsMember(ctx, userID, ch.Ref) {
			missing = append(missing, ch.Ref)
		}
	}
	return missing, nil
}
