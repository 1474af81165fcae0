package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"tutoring-ai-platform/internal/config"
	"tutoring-ai-platform/internal/domain"
	"tutoring-ai-platform/internal/domain/model"
	"tutoring-ai-platform/internal/domain/ports/repository"
	"tutoring-ai-platform/internal/infra/logging"
)

// ---- Fakes ----

type fakeQueue struct {
	mu      sync.Mutex
	jobs    map[string]*model.ChatJob
	nextID  int
	failSet bool
}

var _ JobQueue = (*fakeQueue)(nil)

func newFakeQueue() *fakeQueue {
	return &fakeQueue{jobs: map[string]*model.ChatJob{}}
}

func (f *fakeQueue) Enqueue(ctx context.Context, userID int64, content string, contextBag map[string]string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSet {
		return "", domain.ErrStoreUnavailable
	}
	f.nextID++
	id := "job-" + strings.Repeat("0", 3-len(itoa(f.nextID))) + itoa(f.nextID)
	f.jobs[id] = &model.ChatJob{
		ID:         id,
		UserID:     userID,
		Content:    content,
		Context:    contextBag,
		Status:     model.ChatJobStatusPending,
		EnqueuedAt: time.Now(),
	}
	return id, nil
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var b []byte
	for n > 0 {
		b = append([]byte{byte('0' + n%10)}, b...)
		n /= 10
	}
	return string(b)
}

func (f *fakeQueue) GetStatus(ctx context.Context, id string) (*model.ChatJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return job, nil
}

type fakeMessageRepo struct {
	byUser map[int64][]*model.ChatMessage
}

var _ repository.MessageRepository = (*fakeMessageRepo)(nil)

func (f *fakeMessageRepo) SavePair(ctx context.Context, pair *model.MessagePair) error { return nil }

func (f *fakeMessageRepo) FindRecentByUser(ctx context.Context, userID int64, limit int) ([]*model.ChatMessage, error) {
	return f.byUser[userID], nil
}

type fakeLimiter struct {
	allow bool
	err   error
	calls int
}

func (f *fakeLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	f.calls++
	return f.allow, f.err
}

func newTestUC(queue JobQueue, limiter RateLimiter) *chatUC {
	log := logging.New(config.LogConfig{Level: "error", Format: "console"}, true)
	return NewChatUseCase(queue, &fakeMessageRepo{byUser: map[int64][]*model.ChatMessage{}}, limiter, 20,
		func(userID int64) string { return "rl:" + itoa(int(userID)) }, log)
}

// ---- Tests ----

func TestSubmitEnqueues(t *testing.T) {
	q := newFakeQueue()
	uc := newTestUC(q, &fakeLimiter{allow: true})

	id, err := uc.Submit(context.Background(), 7, "what is a derivative?", map[string]string{"subject": "calculus"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	job, err := q.GetStatus(context.Background(), id)
	if err != nil {
		t.Fatalf("job not stored: %v", err)
	}
	if job.UserID != 7 || job.Context["subject"] != "calculus" {
		t.Fatalf("unexpected job: %+v", job)
	}
}

func TestSubmitValidation(t *testing.T) {
	uc := newTestUC(newFakeQueue(), &fakeLimiter{allow: true})

	cases := []struct {
		name    string
		userID  int64
		content string
	}{
		{"zero user", 0, "hi"},
		{"blank content", 7, "   "},
		{"oversized content", 7, strings.Repeat("x", maxContentLength+1)},
	}
	for _, tc := range cases {
		if _, err := uc.Submit(context.Background(), tc.userID, tc.content, nil); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Fatalf("%s: expected ErrInvalidArgument, got %v", tc.name, err)
		}
	}
}

func TestSubmitRateLimited(t *testing.T) {
	uc := newTestUC(newFakeQueue(), &fakeLimiter{allow: false})

	if _, err := uc.Submit(context.Background(), 7, "hi", nil); !errors.Is(err, domain.ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
}

func TestSubmitSurvivesBrokenLimiter(t *testing.T) {
	limiter := &fakeLimiter{err: errors.New("redis down")}
	uc := newTestUC(newFakeQueue(), limiter)

	if _, err := uc.Submit(context.Background(), 7, "hi", nil); err != nil {
		t.Fatalf("a broken limiter should not block submission, got %v", err)
	}
	if limiter.calls != 1 {
		t.Fatalf("limiter should have been consulted once, got %d", limiter.calls)
	}
}

func TestStatusEnforcesOwnership(t *testing.T) {
	q := newFakeQueue()
	uc := newTestUC(q, &fakeLimiter{allow: true})

	id, err := uc.Submit(context.Background(), 7, "hi", nil)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	if _, err := uc.Status(context.Background(), 7, id); err != nil {
		t.Fatalf("owner lookup should succeed, got %v", err)
	}
	if _, err := uc.Status(context.Background(), 8, id); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("another user's lookup should be not-found, got %v", err)
	}
	if _, err := uc.Status(context.Background(), 7, ""); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("empty job id should be invalid, got %v", err)
	}
}
