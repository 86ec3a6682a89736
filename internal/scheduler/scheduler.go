// Package scheduler claims pending analysis jobs and hands them to workers.
package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cuttothechaseo/ai-finance-sub001/internal/config"
	"github.com/cuttothechaseo/ai-finance-sub001/internal/worker/domain"
)

// Claimer is the job store surface the trigger needs.
type Claimer interface {
	ClaimPendingJobs(ctx context.Context, limit int, claimedBy string) ([]domain.Job, error)
	FailJob(ctx context.Context, jobID, message string) error
}

// Dispatcher hands one claimed job to a worker.
type Dispatcher interface {
	Dispatch(ctx context.Context, job domain.Job) error
}

// JobResult is the outcome of dispatching one job.
type JobResult struct {
	JobID   string
	Success bool
	Error   string
}

type Scheduler struct {
	claimer    Claimer
	dispatcher Dispatcher
	batchSize  int
	claimedBy  string
	logger     *slog.Logger
}

// New caps batchSize at config.MaxTriggerBatchSize.
func New(claimer Claimer, dispatcher Dispatcher, batchSize int, claimedBy string, logger *slog.Logger) *Scheduler {
	if batchSize <= 0 || batchSize > config.MaxTriggerBatchSize {
		batchSize = config.MaxTriggerBatchSize
	}
	return &Scheduler{
		claimer:    claimer,
		dispatcher: dispatcher,
		batchSize:  batchSize,
		claimedBy:  claimedBy,
		logger:     logger,
	}
}

// Trigger claims up to the batch size of the oldest pending jobs and
// dispatches them concurrently. Results follow claim order. A job whose
// dispatch fails is marked failed so it is never left in processing
// without a worker.
func (s *Scheduler) Trigger(ctx context.Context) ([]JobResult, error) {
	jobs, err := s.claimer.ClaimPendingJobs(ctx, s.batchSize, s.claimedBy)
	if err != nil {
		return nil, err
	}

	if len(jobs) == 0 {
		s.logger.Debug("No pending jobs")
		return []JobResult{}, nil
	}

	results := make([]JobResult, len(jobs))
	var wg sync.WaitGroup
	for i, job := range jobs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = s.dispatch(ctx, job)
		}()
	}
	wg.Wait()

	s.logger.Info("Trigger finished",
		slog.Int("claimed", len(jobs)),
		slog.Int("failed", countFailed(results)),
	)

	return results, nil
}

func (s *Scheduler) dispatch(ctx context.Context, job domain.Job) JobResult {
	err := s.dispatcher.Dispatch(ctx, job)
	if err == nil {
		return JobResult{JobID: job.ID, Success: true}
	}

	s.logger.Error("Job dispatch failed",
		slog.String("job_id", job.ID),
		slog.String("error", err.Error()),
	)

	// the worker already recorded its own outcome
	if errors.Is(err, domain.ErrJobFailed) || errors.Is(err, domain.ErrJobAlreadyTerminal) {
		return JobResult{JobID: job.ID, Error: err.Error()}
	}

	msg := domain.DispatchFailedPrefix + err.Error()
	failCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if failErr := s.claimer.FailJob(failCtx, job.ID, msg); failErr != nil && !errors.Is(failErr, domain.ErrJobAlreadyTerminal) {
		s.logger.Error("Failed to mark undispatched job failed",
			slog.String("job_id", job.ID),
			slog.String("error", failErr.Error()),
		)
	}

	return JobResult{JobID: job.ID, Error: msg}
}

func countFailed(results []JobResult) int {
	n := 0
	for _, r := range results {
		if !r.Success {
			n++
		}
	}
	return n
}

// Run triggers every interval until ctx is canceled.
func (s *Scheduler) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("Scheduler poll loop started", slog.Duration("interval", interval))

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Scheduler poll loop stopped")
			return
		case <-ticker.C:
			if _, err := s.Trigger(ctx); err != nil && ctx.Err() == nil {
				s.logger.Error("Scheduled trigger failed", slog.String("error", err.Error()))
			}
		}
	}
}

// Publisher sends a message body to the job queue.
type Publisher interface {
	Publish(ctx context.Context, body []byte, contentType string) error
}

// QueueDispatcher publishes {job_id} for the worker service.
type QueueDispatcher struct {
	publisher Publisher
}

func NewQueueDispatcher(publisher Publisher) *QueueDispatcher {
	return &QueueDispatcher{publisher: publisher}
}

func (d *QueueDispatcher) Dispatch(ctx context.Context, job domain.Job) error {
	body, err := json.Marshal(domain.JobMessage{JobID: job.ID})
	if err != nil {
		return fmt.Errorf("failed to encode job message: %w", err)
	}
	return d.publisher.Publish(ctx, body, "application/json")
}

// JobProcessor runs one job to a terminal state.
type JobProcessor interface {
	Process(ctx context.Context, jobID string) error
}

// InlineDispatcher runs the job in this process and waits for it.
type InlineDispatcher struct {
	processor JobProcessor
}

func NewInlineDispatcher(processor JobProcessor) *InlineDispatcher {
	return &InlineDispatcher{processor: processor}
}

// Dispatch keeps running if the caller goes away; the processor's job
// timeout bounds it.
func (d *InlineDispatcher) Dispatch(ctx context.Context, job domain.Job) error {
	return d.processor.Process(context.WithoutCancel(ctx), job.ID)
}
