package worker

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
	"tutoring-ai-platform/internal/domain/ports/adapter"
	"tutoring-ai-platform/internal/domain/ports/repository"
	"tutoring-ai-platform/internal/infra/logging"
)

// ---- Fakes ----

type capturingMessageRepo struct {
	mu      sync.Mutex
	pairs   []*model.MessagePair
	history []*model.ChatMessage
	findErr error
}

var _ repository.MessageRepository = (*capturingMessageRepo)(nil)

func (r *capturingMessageRepo) SavePair(ctx context.Context, pair *model.MessagePair) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pairs = append(r.pairs, pair)
	return nil
}

func (r *capturingMessageRepo) FindRecentByUser(ctx context.Context, userID int64, limit int) ([]*model.ChatMessage, error) {
	return r.history, r.findErr
}

type scriptedAI struct {
	reply   string
	chatErr error

	mu       sync.Mutex
	lastMsgs []adapter.Message
}

var _ adapter.AIServiceAdapter = (*scriptedAI)(nil)

func (a *scriptedAI) ListModels(ctx context.Context) ([]string, error) {
	return []string{"test-model"}, nil
}

func (a *scriptedAI) CountTokens(ctx context.Context, model string, messages []adapter.Message) (int, error) {
	return len(messages), nil
}

func (a *scriptedAI) Chat(ctx context.Context, model string, messages []adapter.Message) (string, error) {
	a.mu.Lock()
	a.lastMsgs = messages
	a.mu.Unlock()
	return a.reply, a.chatErr
}

func newTestProcessor(repo *capturingMessageRepo, ai *scriptedAI) *ChatJobProcessor {
	log := logging.New(config.LogConfig{Level: "error", Format: "console"}, true)
	return NewChatJobProcessor(repo, ai, "test-model", log)
}

func processorJob() *model.ChatJob {
	return &model.ChatJob{
		ID:         "01JTESTJOBID0000000000000",
		UserID:     7,
		Content:    "what is a derivative?",
		Context:    map[string]string{"subject": "calculus"},
		Status:     model.ChatJobStatusProcessing,
		EnqueuedAt: time.Now().Add(-time.Second),
	}
}

// ---- Tests ----

func TestProcessorMessageIDsStableAcrossAttempts(t *testing.T) {
	repo := &capturingMessageRepo{}
	p := newTestProcessor(repo, &scriptedAI{reply: "a rate of change"})
	job := processorJob()

	first, err := p.Process(context.Background(), job)
	if err != nil {
		t.Fatalf("first attempt: %v", err)
	}
	second, err := p.Process(context.Background(), job)
	if err != nil {
		t.Fatalf("second attempt: %v", err)
	}

	// A re-run of the same job must present the same row ids, so the
	// repository can drop duplicates instead of double-writing history.
	if first.User.ID != second.User.ID || first.Assistant.ID != second.Assistant.ID {
		t.Fatalf("message ids drifted across attempts: %s/%s vs %s/%s",
			first.User.ID, first.Assistant.ID, second.User.ID, second.Assistant.ID)
	}
	if first.User.ID == first.Assistant.ID {
		t.Fatal("user and assistant messages must not share an id")
	}

	other := processorJob()
	other.ID = "01JOTHERJOBID000000000000"
	pair, err := p.Process(context.Background(), other)
	if err != nil {
		t.Fatalf("other job: %v", err)
	}
	if pair.User.ID == first.User.ID {
		t.Fatal("different jobs must not share message ids")
	}
}

func TestProcessorWrapsProviderFailure(t *testing.T) {
	repo := &capturingMessageRepo{}
	p := newTestProcessor(repo, &scriptedAI{chatErr: errors.New("upstream 500")})

	if _, err := p.Process(context.Background(), processorJob()); !errors.Is(err, domain.ErrProviderFailure) {
		t.Fatalf("expected ErrProviderFailure, got %v", err)
	}
	if len(repo.pairs) != 0 {
		t.Fatal("nothing should be persisted on a provider failure")
	}
}

func TestProcessorBuildsTutorPrompt(t *testing.T) {
	repo := &capturingMessageRepo{
		history: []*model.ChatMessage{
			{Role: "user", Content: "earlier question"},
			{Role: "assistant", Content: "earlier answer"},
		},
	}
	ai := &scriptedAI{reply: "a rate of change"}
	p := newTestProcessor(repo, ai)

	if _, err := p.Process(context.Background(), processorJob()); err != nil {
		t.Fatalf("process: %v", err)
	}

	msgs := ai.lastMsgs
	if len(msgs) != 4 {
		t.Fatalf("expected system + 2 history + user, got %d messages", len(msgs))
	}
	if msgs[0].Role != "system" || !strings.Contains(msgs[0].Content, "calculus") {
		t.Fatalf("system instruction should carry the subject, got %q", msgs[0].Content)
	}
	if msgs[len(msgs)-1].Content != "what is a derivative?" {
		t.Fatalf("the new question must come last, got %q", msgs[len(msgs)-1].Content)
	}
}
