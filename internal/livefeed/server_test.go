package livefeed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/Ilkhomjon13/YN2/internal/domain"
)

type fakeSource struct {
	mu         sync.Mutex
	surveys    map[int64]domain.Survey
	candidates map[int64][]domain.Candidate
}

func (f *fakeSource) GetSurvey(ctx context.Context, surveyID int64) (domain.Survey, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.surveys[surveyID]
	if !ok {
		return domain.Survey{}, domain.ErrSurveyNotFound
	}
	return s, nil
}

func (f *fakeSource) ListCandidates(ctx context.Context, surveyID int64) ([]domain.Candidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.candidates[surveyID], nil
}

func (f *fakeSource) setVotes(surveyID, candidateID, votes int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.candidates[surveyID] {
		if f.candidates[surveyID][i].ID == candidateID {
			f.candidates[surveyID][i].Votes = votes
		}
	}
}

func newTestServer(t *testing.T, source *fakeSource) *httptest.Server {
	t.Helper()
	srv := NewServer(source, 20*time.Millisecond, zerolog.Nop())
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", srv.HandleWS)
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func TestHandleWSStreamsTallies(t *testing.T) {
	source := &fakeSource{
		surveys: map[int64]domain.Survey{1: {ID: 1, Title: "S1", Active: true}},
		candidates: map[int64][]domain.Candidate{
			1: {{ID: 10, SurveyID: 1, Name: "Alice", Votes: 1}},
		},
	}
	ts := newTestServer(t, source)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?survey_id=1"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("не удалось подключиться: %v", err)
	}
	defer conn.Close()

	var frame []TallyFrame
	conn.SetReadDeadline(time.Now().Add(time.Second))
	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatalf("не удалось прочитать кадр: %v", err)
	}
	if len(frame) != 1 || frame[0].Name != "Alice" || frame[0].Votes != 1 {
		t.Fatalf("неожиданный кадр: %+v", frame)
	}

	source.setVotes(1, 10, 5)
	deadline := time.Now().Add(2 * time.Second)
	for {
		conn.SetReadDeadline(time.Now().Add(time.Second))
		if err := conn.ReadJSON(&frame); err != nil {
			t.Fatalf("не удалось прочитать кадр: %v", err)
		}
		if len(frame) == 1 && frame[0].Votes == 5 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("не дождались обновлённого счётчика, последний кадр: %+v", frame)
		}
	}
}

func TestHandleWSRejectsBadSurveyID(t *testing.T) {
	source := &fakeSource{surveys: map[int64]domain.Survey{}}
	ts := newTestServer(t, source)

	resp, err := http.Get(ts.URL + "/ws?survey_id=abc")
	if err != nil {
		t.Fatalf("не ожидали ошибку запроса: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("ожидали 400, получили %d", resp.StatusCode)
	}

	resp, err = http.Get(ts.URL + "/ws?survey_id=99")
	if err != nil {
		t.Fatalf("не ожидали ошибку запроса: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("ожидали 404 для неизвестного голосования, получили %d", resp.StatusCode)
	}
}
