// File: internal/usecase/chat_uc.go
package usecase

import (
	"context"
	"strings"
	"time"

	"tutoring-ai-platform/internal/domain"
	"tutoring-ai-platform/internal/domain/model"
	"tutoring-ai-platform/internal/domain/ports/repository"

	"github.com/rs/zerolog"
)

// Compile-time check
var _ ChatUseCase = (*chatUC)(nil)

const maxContentLength = 8000

// JobQueue is the slice of the message queue the chat use case needs.
type JobQueue interface {
	Enqueue(ctx context.Context, userID int64, content string, contextBag map[string]string) (string, error)
	GetStatus(ctx context.Context, id string) (*model.ChatJob, error)
}

// RateLimiter gates how often a user may submit messages.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

type ChatUseCase interface {
	// Submit validates and enqueues a chat message, returning the job id.
	// It never waits for processing.
	Submit(ctx context.Context, userID int64, content string, contextBag map[string]string) (string, error)
	// Status returns the job record for polling callers. Jobs belonging
	// to other users are reported as not found.
	Status(ctx context.Context, userID int64, jobID string) (*model.ChatJob, error)
	History(ctx context.Context, userID int64, limit int) ([]*model.ChatMessage, error)
}

type chatUC struct {
	queue        JobQueue
	messages     repository.MessageRepository
	limiter      RateLimiter
	perMinute    int
	rateLimitKey func(int64) string
	log          *zerolog.Logger
}

func NewChatUseCase(queue JobQueue, messages repository.MessageRepository, limiter RateLimiter, perMinute int, rateLimitKey func(int64) string, logger *zerolog.Logger) *chatUC {
	ucLog := logger.With().Str("component", "ChatUC").Logger()
	return &chatUC{
		queue:        queue,
		messages:     messages,
		limiter:      limiter,
		perMinute:    perMinute,
		rateLimitKey: rateLimitKey,
		log:          &ucLog,
	}
}

func (c *chatUC) Submit(ctx context.Context, userID int64, content string, contextBag map[string]string) (string, error) {
	if userID <= 0 {
		return "", domain.ErrInvalidArgument
	}
	content = strings.TrimSpace(content)
	if content == "" || len(content) > maxContentLength {
		return "", domain.ErrInvalidArgument
	}

	if c.limiter != nil {
		ok, err := c.limiter.Allow(ctx, c.rateLimitKey(userID), c.perMinute, time.Minute)
		if err != nil {
			// A broken limiter should not take chat down with it.
			c.log.Warn().Err(err).Int64("user_id", userID).Msg("rate limiter unavailable, allowing request")
		} else if !ok {
			return "", domain.ErrRateLimited
		}
	}

	return c.queue.Enqueue(ctx, userID, content, contextBag)
}

func (c *chatUC) Status(ctx context.Context, userID int64, jobID string) (*model.ChatJob, error) {
	if jobID == "" {
		return nil, domain.ErrInvalidArgument
	}
	job, err := c.queue.GetStatus(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.UserID != userID {
		return nil, domain.ErrNotFound
	}
	return job, nil
}

func (c *chatUC) History(ctx context.Context, userID int64, limit int) ([]*model.ChatMessage, error) {
	if userID <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	return c.messages.FindRecentByUser(ctx, userID, limit)
}
