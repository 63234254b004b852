package livefeed

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/Ilkhomjon13/YN2/internal/domain"
	"github.com/Ilkhomjon13/YN2/internal/infra/metrics"
)

// TallySource отдаёт текущие счётчики кандидатов. За ним стоит хранилище,
// трансляция к нему обращается только на чтение.
type TallySource interface {
	GetSurvey(ctx context.Context, surveyID int64) (domain.Survey, error)
	ListCandidates(ctx context.Context, surveyID int64) ([]domain.Candidate, error)
}

// TallyFrame — один кадр трансляции.
type TallyFrame struct {
	Name  string `json:"name"`
	Votes int64  `json:"votes"`
}

// Server транслирует счётчики голосования подключённым клиентам по websocket.
type Server struct {
	source   TallySource
	interval time.Duration
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// NewServer создаёт сервер трансляции. interval — период опроса хранилища.
func NewServer(source TallySource, interval time.Duration, logger zerolog.Logger) *Server {
	return &Server{
		source:   source,
		interval: interval,
		log:      logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Наблюдатель только читает, источник страницы не важен.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// HandleWS обслуживает GET /ws?survey_id=N: апгрейд до websocket и трансляция
// счётчиков до отключения клиента.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	surveyID, err := strconv.ParseInt(r.URL.Query().Get("survey_id"), 10, 64)
	if err != nil || surveyID <= 0 {
		http.Error(w, "survey_id talab qilinadi", http.StatusBadRequest)
		return
	}
	if _, err := s.source.GetSurvey(r.Context(), surveyID); err != nil {
		if errors.Is(err, domain.ErrSurveyNotFound) {
			http.Error(w, "so‘rovnoma topilmadi", http.StatusNotFound)
			return
		}
		s.log.Error().Err(err).Int64("survey", surveyID).Msg("не удалось проверить голосование")
		http.Error(w, "ichki xatolik", http.StatusInternalServerError)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug().Err(err).Msg("апгрейд до websocket не удался")
		return
	}
	defer conn.Close()

	metrics.LiveFeedClients.Inc()
	defer metrics.LiveFeedClients.Dec()
	s.log.Info().Int64("survey", surveyID).Str("remote", conn.RemoteAddr().String()).Msg("клиент трансляции подключён")

	// Клиент ничего не шлёт, но читать нужно, чтобы заметить закрытие.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	if err := s.pushFrame(r.Context(), conn, surveyID); err != nil {
		return
	}
	for {
		select {
		case <-r.Context().Done():
			return
		case <-done:
			return
		case <-ticker.C:
			if err := s.pushFrame(r.Context(), conn, surveyID); err != nil {
				s.log.Debug().Err(err).Int64("survey", surveyID).Msg("клиент трансляции отключён")
				return
			}
		}
	}
}

func (s *Server) pushFrame(ctx context.Context, conn *websocket.Conn, surveyID int64) error {
	candidates, err := s.source.ListCandidates(ctx, surveyID)
	if err != nil {
		s.log.Error().Err(err).Int64("survey", surveyID).Msg("не удалось прочитать счётчики")
		return err
	}
	frame := make([]TallyFrame, 0, len(candidates))
	for _, c := range candidates {
		frame = append(frame, TallyFrame{Name: c.Name, Votes: c.Votes})
	}
	return conn.WriteJSON(frame)
}
