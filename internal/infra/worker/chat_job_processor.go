package worker

import (
	"context"
	"fmt"
	"strings"
	"time"

	"tutoring-ai-platform/internal/domain"
	"tutoring-ai-platform/internal/domain/model"
	"tutoring-ai-platform/internal/domain/ports/adapter"
	"tutoring-ai-platform/internal/domain/ports/repository"
	"tutoring-ai-platform/internal/infra/metrics"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var _ Processor = (*ChatJobProcessor)(nil)

// ChatJobProcessor is the per-job work: it builds the tutoring prompt,
// calls the completion provider, and persists the user/assistant pair.
type ChatJobProcessor struct {
	messages        repository.MessageRepository
	aiAdapter       adapter.AIServiceAdapter
	model           string
	historyLimit    int
	maxPromptTokens int
	log             *zerolog.Logger
}

func NewChatJobProcessor(
	messages repository.MessageRepository,
	aiAdapter adapter.AIServiceAdapter,
	modelName string,
	logger *zerolog.Logger,
) *ChatJobProcessor {
	pLog := logger.With().Str("component", "ChatJobProcessor").Logger()
	return &ChatJobProcessor{
		messages:        messages,
		aiAdapter:       aiAdapter,
		model:           modelName,
		historyLimit:    10,
		maxPromptTokens: 6000,
		log:             &pLog,
	}
}

func (p *ChatJobProcessor) Process(ctx context.Context, job *model.ChatJob) (*model.MessagePair, error) {
	history, err := p.messages.FindRecentByUser(ctx, job.UserID, p.historyLimit)
	if err != nil {
		p.log.Warn().Err(err).Str("job_id", job.ID).Msg("could not load chat history, continuing without it")
		history = nil
	}

	adapterMsgs := make([]adapter.Message, 0, len(history)+2)
	adapterMsgs = append(adapterMsgs, adapter.Message{Role: "system", Content: buildTutorInstruction(job.Context)})
	for _, m := range history {
		adapterMsgs = append(adapterMsgs, adapter.Message{Role: m.Role, Content: m.Content})
	}
	adapterMsgs = append(adapterMsgs, adapter.Message{Role: "user", Content: job.Content})

	adapterMsgs = p.trimToBudget(ctx, adapterMsgs)

	callStart := time.Now()
	reply, err := p.aiAdapter.Chat(ctx, p.model, adapterMsgs)
	latency := time.Since(callStart)
	metrics.ObserveAICall(p.model, latency.Seconds(), err == nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrProviderFailure, err)
	}
	if strings.TrimSpace(reply) == "" {
		return nil, fmt.Errorf("%w: empty reply", domain.ErrProviderFailure)
	}

	now := time.Now()
	pair := &model.MessagePair{
		User: model.ChatMessage{
			ID:        messageID(job.ID, "user"),
			UserID:    job.UserID,
			Role:      "user",
			Content:   job.Content,
			CreatedAt: job.EnqueuedAt,
		},
		Assistant: model.ChatMessage{
			ID:        messageID(job.ID, "assistant"),
			UserID:    job.UserID,
			Role:      "assistant",
			Content:   reply,
			CreatedAt: now,
		},
	}
	if err := p.messages.SavePair(ctx, pair); err != nil {
		// Persistence failure after a successful provider call is still a
		// processing failure: the job has not reached completed.
		return nil, err
	}
	return pair, nil
}

// trimToBudget drops the oldest history entries until the prompt fits the
// token budget. The system instruction and the new user message always stay.
func (p *ChatJobProcessor) trimToBudget(ctx context.Context, msgs []adapter.Message) []adapter.Message {
	for len(msgs) > 2 {
		tokens, err := p.aiAdapter.CountTokens(ctx, p.model, msgs)
		if err != nil || tokens <= p.maxPromptTokens {
			return msgs
		}
		// msgs[0] is the system instruction; msgs[1] is the oldest history.
		msgs = append(msgs[:1], msgs[2:]...)
	}
	return msgs
}

// messageID derives a stable id from the job id, so a re-run of the same
// job writes the same rows and the repository can treat duplicate inserts
// as no-ops.
func messageID(jobID, role string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(jobID+"/"+role)).String()
}

// buildTutorInstruction turns the job's context bag (subject, learning
// style, elapsed session time) into the provider's system instruction.
func buildTutorInstruction(bag map[string]string) string {
	var b strings.Builder
	b.WriteString("You are a patient, encouraging tutor. Explain step by step and check understanding before moving on.")
	if s := bag["subject"]; s != "" {
		fmt.Fprintf(&b, " The current subject is %s.", s)
	}
	if s := bag["learning_style"]; s != "" {
		fmt.Fprintf(&b, " The student prefers a %s learning style.", s)
	}
	if s := bag["session_minutes"]; s != "" {
		fmt.Fprintf(&b, " The session has been running for %s minutes.", s)
	}
	return b.String()
}
