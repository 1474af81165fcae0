package repository

import (
	"context"

	"tutoring-ai-platform/internal/domain/model"
)

// JobStore is the durable key/value store behind the message queue.
// Reads are point-in-time; there is no transactional guarantee across keys.
// A single dispatcher is the sole writer of any given job's status, so
// read-modify-write on one key is safe in normal operation.
type JobStore interface {
	Get(ctx context.Context, id string) (*model.ChatJob, error)
	Set(ctx context.Context, id string, job *model.ChatJob) error
	ListAll(ctx context.Context) ([]*model.ChatJob, error)
}
