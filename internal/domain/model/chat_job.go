package model

import "time"

type ChatJobStatus string

const (
	ChatJobStatusPending    ChatJobStatus = "pending"
	ChatJobStatusProcessing ChatJobStatus = "processing"
	ChatJobStatusCompleted  ChatJobStatus = "completed"
	ChatJobStatusFailed     ChatJobStatus = "failed"
)

// ChatJob is one unit of queued chat work. Fields other than Status,
// Retries, LastError, Result and the timestamps are immutable after enqueue.
type ChatJob struct {
	ID         string            `json:"id"`
	UserID     int64             `json:"user_id"`
	Content    string            `json:"content"`
	Context    map[string]string `json:"context,omitempty"`
	Status     ChatJobStatus     `json:"status"`
	Retries    int               `json:"retries"`
	LastError  string            `json:"last_error,omitempty"`
	Result     *MessagePair      `json:"result,omitempty"`
	EnqueuedAt time.Time         `json:"enqueued_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
	// NotBefore delays re-dispatch of a retried job when a retry delay is
	// configured. Zero means eligible immediately.
	NotBefore time.Time `json:"not_before,omitempty"`
}

// Terminal reports whether the job can no longer change state.
func (j *ChatJob) Terminal() bool {
	return j.Status == ChatJobStatusCompleted || j.Status == ChatJobStatusFailed
}
