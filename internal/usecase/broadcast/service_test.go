package broadcast

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/Ilkhomjon13/YN2/internal/domain"
)

type memQueue struct {
	jobs chan domain.BroadcastJob
}

func newMemQueue() *memQueue {
	return &memQueue{jobs: make(chan domain.BroadcastJob, 8)}
}

func (q *memQueue) Enqueue(ctx context.Context, job domain.BroadcastJob) error {
	q.jobs <- job
	return nil
}

func (q *memQueue) Pop(ctx context.Context) (domain.BroadcastJob, error) {
	select {
	case <-ctx.Done():
		return domain.BroadcastJob{}, ctx.Err()
	case job := <-q.jobs:
		return job, nil
	}
}

type fakeUsers struct {
	ids []int64
}

func (f *fakeUsers) UpsertUser(ctx context.Context, user domain.RegisteredUser) error { return nil }
func (f *fakeUsers) ListUserIDs(ctx context.Context) ([]int64, error)                 { return f.ids, nil }
func (f *fakeUsers) CountUsers(ctx context.Context) (int, error)                      { return len(f.ids), nil }

type recordingNotifier struct {
	mu      sync.Mutex
	sent    map[int64][]string
	failFor map[int64]bool
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{sent: make(map[int64][]string), failFor: make(map[int64]bool)}
}

func (r *recordingNotifier) SendText(ctx context.Context, chatID int64, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failFor[chatID] {
		return errors.New("blocked")
	}
	r.sent[chatID] = append(r.sent[chatID], text)
	return nil
}

func (r *recordingNotifier) messages(chatID int64) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.sent[chatID]))
	copy(out, r.sent[chatID])
	return out
}

func TestSubmitAssignsJobID(t *testing.T) {
	queue := newMemQueue()
	svc := NewService(queue, &fakeUsers{}, newRecordingNotifier(), time.Millisecond, zerolog.Nop())

	id, err := svc.Submit(context.Background(), 100, "salom")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if id == "" {
		t.Fatal("идентификатор задачи не должен быть пустым")
	}
	job := <-queue.jobs
	if job.ID != id || job.Text != "salom" || job.AdminChatID != 100 {
		t.Fatalf("в очередь попала не та задача: %+v", job)
	}
}

func TestDeliverIsolatesFailures(t *testing.T) {
	notifier := newRecordingNotifier()
	notifier.failFor[2] = true
	users := &fakeUsers{ids: []int64{1, 2, 3}}
	svc := NewService(newMemQueue(), users, notifier, time.Millisecond, zerolog.Nop())

	report := svc.deliver(context.Background(), domain.BroadcastJob{ID: "j1", Text: "salom"})
	if report.Sent != 2 || report.Failed != 1 {
		t.Fatalf("ожидали 2 доставки и 1 отказ, получили %d/%d", report.Sent, report.Failed)
	}
	if len(notifier.sent[1]) != 1 || len(notifier.sent[3]) != 1 {
		t.Fatal("остальные получатели должны получить сообщение")
	}
}

func TestRunDeliversAndReports(t *testing.T) {
	queue := newMemQueue()
	notifier := newRecordingNotifier()
	users := &fakeUsers{ids: []int64{1, 2}}
	svc := NewService(queue, users, notifier, time.Millisecond, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		svc.Run(ctx)
		close(done)
	}()

	if _, err := svc.Submit(ctx, 100, "salom"); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		if msgs := notifier.messages(100); len(msgs) == 1 {
			if !strings.Contains(msgs[0], "Yetkazildi: 2") {
				t.Fatalf("сводка должна содержать число доставок: %q", msgs[0])
			}
			break
		}
		select {
		case <-deadline:
			t.Fatal("не дождались сводки для администратора")
		case <-time.After(10 * time.Millisecond):
		}
	}
	if len(notifier.messages(1)) != 1 || len(notifier.messages(2)) != 1 {
		t.Fatal("оба пользователя должны получить рассылку")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("воркер должен завершаться по отмене контекста")
	}
}
