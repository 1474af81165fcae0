package adapter

import "tutoring-ai-platform/internal/domain/model"

// JobEventNotifier receives job lifecycle transitions so the real-time
// layer can push status to the owning user's live connections. A noop
// implementation is acceptable when no real-time layer is wired.
type JobEventNotifier interface {
	JobStarted(userID int64)
	JobCompleted(userID int64, job *model.ChatJob)
	JobFailed(userID int64, reason string)
}
