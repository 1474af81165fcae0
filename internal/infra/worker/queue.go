// File: internal/infra/worker/queue.go
package worker

import (
	"context"
	"strings"
	"sync"
	"time"

	"tutoring-ai-platform/internal/config"
	"tutoring-ai-platform/internal/domain"
	"tutoring-ai-platform/internal/domain/model"
	"tutoring-ai-platform/internal/domain/ports/adapter"
	"tutoring-ai-platform/internal/domain/ports/repository"
	"tutoring-ai-platform/internal/infra/metrics"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
)

// Processor performs the actual work for one job: the completion provider
// call plus persistence of the resulting message pair.
type Processor interface {
	Process(ctx context.Context, job *model.ChatJob) (*model.MessagePair, error)
}

// ProcessorFunc adapts a plain function to Processor.
type ProcessorFunc func(ctx context.Context, job *model.ChatJob) (*model.MessagePair, error)

func (f ProcessorFunc) Process(ctx context.Context, job *model.ChatJob) (*model.MessagePair, error) {
	return f(ctx, job)
}

// MessageQueue owns the chat job lifecycle: pending -> processing ->
// completed|failed, with the processing -> pending edge on retry. A
// recurring tick scans the store for the oldest eligible pending job and
// dispatches it without awaiting completion, up to MaxConcurrent in-flight
// jobs. The in-flight set lives in memory only: it guards against
// double-dispatch within this process, not across processes.
type MessageQueue struct {
	store    repository.JobStore
	notifier adapter.JobEventNotifier
	cfg      config.QueueConfig
	log      *zerolog.Logger

	mu       sync.Mutex
	inFlight map[string]struct{}

	stop     chan struct{}
	stopOnce sync.Once
	loopDone chan struct{}
	tasks    sync.WaitGroup
}

func NewMessageQueue(store repository.JobStore, notifier adapter.JobEventNotifier, cfg config.QueueConfig, logger *zerolog.Logger) *MessageQueue {
	qLog := logger.With().Str("component", "MessageQueue").Logger()
	return &MessageQueue{
		store:    store,
		notifier: notifier,
		cfg:      cfg,
		log:      &qLog,
		inFlight: make(map[string]struct{}),
		stop:     make(chan struct{}),
		loopDone: make(chan struct{}),
	}
}

// Enqueue writes a new pending job and returns its id. It never blocks on
// processing. A stopped queue rejects new work with ErrQueueStopped.
func (q *MessageQueue) Enqueue(ctx context.Context, userID int64, content string, contextBag map[string]string) (string, error) {
	select {
	case <-q.stop:
		return "", domain.ErrQueueStopped
	default:
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return "", domain.ErrInvalidArgument
	}

	now := time.Now()
	job := &model.ChatJob{
		// ULIDs are time-ordered, so ids double as an enqueue-order
		// tie-break in the dispatch scan.
		ID:         ulid.Make().String(),
		UserID:     userID,
		Content:    content,
		Context:    contextBag,
		Status:     model.ChatJobStatusPending,
		EnqueuedAt: now,
		UpdatedAt:  now,
	}
	if err := q.store.Set(ctx, job.ID, job); err != nil {
		return "", err
	}
	q.log.Debug().Str("job_id", job.ID).Int64("user_id", userID).Msg("job enqueued")
	return job.ID, nil
}

// GetStatus returns the current job record for polling callers.
func (q *MessageQueue) GetStatus(ctx context.Context, id string) (*model.ChatJob, error) {
	return q.store.Get(ctx, id)
}

// Start runs the dispatch loop until Stop is called. Each tick dispatches
// as many eligible jobs as the concurrency cap allows and returns without
// waiting for any of them.
func (q *MessageQueue) Start(processor Processor) {
	q.log.Info().
		Int("max_concurrent", q.cfg.MaxConcurrent).
		Int("max_retries", q.cfg.MaxRetries).
		Dur("tick", q.cfg.TickInterval).
		Msg("message queue started")

	go func() {
		defer close(q.loopDone)
		ticker := time.NewTicker(q.cfg.TickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-q.stop:
				q.log.Info().Msg("message queue stopping")
				return
			case <-ticker.C:
				q.tick(processor)
			}
		}
	}()
}

// Stop cancels the recurring tick. Jobs already in flight are allowed to
// finish or fail on their own; Stop does not cancel them.
func (q *MessageQueue) Stop() {
	q.stopOnce.Do(func() { close(q.stop) })
	<-q.loopDone
}

// Wait blocks until all in-flight processing tasks have finished. Used by
// tests and by shutdown paths that want a full drain.
func (q *MessageQueue) Wait() { q.tasks.Wait() }

func (q *MessageQueue) tick(processor Processor) {
	ctx := context.Background()
	for {
		if q.inFlightCount() >= q.cfg.MaxConcurrent {
			return
		}
		job, err := q.dequeueCandidate(ctx)
		if err != nil {
			q.log.Error().Err(err).Msg("dequeue scan failed")
			return
		}
		if job == nil {
			return
		}
		if !q.markInFlight(job.ID) {
			// Raced with a concurrent tick; skip this candidate.
			continue
		}
		q.tasks.Add(1)
		go func(job *model.ChatJob) {
			defer q.tasks.Done()
			q.processOne(job, processor)
		}(job)
	}
}

// dequeueCandidate scans the store for the oldest pending job that is not
// already in flight and whose retry delay has elapsed. Selection is a full
// scan each tick, so ordering is best-effort rather than strict FIFO.
func (q *MessageQueue) dequeueCandidate(ctx context.Context) (*model.ChatJob, error) {
	jobs, err := q.store.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	now := time.Now()

	var oldest *model.ChatJob
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, job := range jobs {
		if job.Status != model.ChatJobStatusPending {
			continue
		}
		if _, busy := q.inFlight[job.ID]; busy {
			continue
		}
		if !job.NotBefore.IsZero() && now.Before(job.NotBefore) {
			continue
		}
		if oldest == nil ||
			job.EnqueuedAt.Before(oldest.EnqueuedAt) ||
			(job.EnqueuedAt.Equal(oldest.EnqueuedAt) && job.ID < oldest.ID) {
			oldest = job
		}
	}
	return oldest, nil
}

// processOne drives a single dispatched job to its next state. All
// processing failures are absorbed here; nothing escapes to the tick loop.
func (q *MessageQueue) processOne(job *model.ChatJob, processor Processor) {
	defer q.clearInFlight(job.ID)

	ctx := context.Background()
	if err := q.updateStatus(ctx, job.ID, model.ChatJobStatusProcessing, func(j *model.ChatJob) {}); err != nil {
		q.log.Error().Err(err).Str("job_id", job.ID).Msg("could not mark job processing")
		return
	}
	q.notifier.JobStarted(job.UserID)
	q.log.Info().Str("job_id", job.ID).Int64("user_id", job.UserID).Msg("processing chat job")

	// The provider call gets a bounded budget so a hung call becomes a
	// retryable failure instead of pinning an in-flight slot forever.
	taskCtx, cancel := context.WithTimeout(ctx, q.cfg.JobTimeout)
	defer cancel()

	start := time.Now()
	pair, err := processor.Process(taskCtx, job)
	latency := time.Since(start)

	if err == nil {
		uErr := q.updateStatus(ctx, job.ID, model.ChatJobStatusCompleted, func(j *model.ChatJob) {
			j.Result = pair
			j.LastError = ""
		})
		if uErr != nil {
			q.log.Error().Err(uErr).Str("job_id", job.ID).Msg("could not mark job completed")
			return
		}
		metrics.IncChatJob(string(model.ChatJobStatusCompleted))
		job.Status = model.ChatJobStatusCompleted
		job.Result = pair
		q.notifier.JobCompleted(job.UserID, job)
		q.log.Info().Str("job_id", job.ID).Dur("duration", latency).Msg("chat job completed")
		return
	}

	retries := job.Retries + 1
	if retries < q.cfg.MaxRetries {
		uErr := q.updateStatus(ctx, job.ID, model.ChatJobStatusPending, func(j *model.ChatJob) {
			j.Retries = retries
			j.LastError = err.Error()
			if q.cfg.RetryDelay > 0 {
				j.NotBefore = time.Now().Add(q.cfg.RetryDelay)
			}
		})
		if uErr != nil {
			q.log.Error().Err(uErr).Str("job_id", job.ID).Msg("could not re-enqueue job")
			return
		}
		metrics.IncJobRetry()
		q.log.Warn().Err(err).Str("job_id", job.ID).Int("retries", retries).Msg("chat job failed, retrying")
		return
	}

	uErr := q.updateStatus(ctx, job.ID, model.ChatJobStatusFailed, func(j *model.ChatJob) {
		j.Retries = retries
		j.LastError = err.Error()
	})
	if uErr != nil {
		q.log.Error().Err(uErr).Str("job_id", job.ID).Msg("could not mark job failed")
		return
	}
	metrics.IncChatJob(string(model.ChatJobStatusFailed))
	q.notifier.JobFailed(job.UserID, err.Error())
	q.log.Error().Err(err).Str("job_id", job.ID).Int("retries", retries).Msg("chat job failed terminally")
}

// updateStatus is a read-modify-write of one job record. The dispatcher is
// the sole writer of a job's status, so lost updates are not a concern in
// normal operation.
func (q *MessageQueue) updateStatus(ctx context.Context, id string, status model.ChatJobStatus, patch func(*model.ChatJob)) error {
	job, err := q.store.Get(ctx, id)
	if err != nil {
		return err
	}
	patch(job)
	job.Status = status
	job.UpdatedAt = time.Now()
	return q.store.Set(ctx, id, job)
}

func (q *MessageQueue) inFlightCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.inFlight)
}

// markInFlight reserves a job id before its task is spawned. Returns false
// when the id is already reserved.
func (q *MessageQueue) markInFlight(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, busy := q.inFlight[id]; busy {
		return false
	}
	q.inFlight[id] = struct{}{}
	metrics.SetJobsInFlight(len(q.inFlight))
	return true
}

func (q *MessageQueue) clearInFlight(id string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.inFlight, id)
	metrics.SetJobsInFlight(len(q.inFlight))
}
