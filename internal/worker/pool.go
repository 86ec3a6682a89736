package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cuttothechaseo/ai-finance-sub001/internal/worker/domain"
)

// spawnWorkerPool spawns N worker goroutines based on concurrency configuration
func (w *Worker) spawnWorkerPool(ctx context.Context) {
	// in-flight jobs outlive shutdown; job_timeout bounds them
	jobCtx := context.WithoutCancel(ctx)

	for i := 0; i < w.concurrency; i++ {
		w.wg.Add(1)
		go w.workerLoop(jobCtx, i)
	}

	w.logger.Info("Worker pool spawned",
		slog.Int("worker_count", w.concurrency),
	)
}

// workerLoop processes jobs until jobsChan is closed. A job in hand is
// always finished and acknowledged before the loop exits.
func (w *Worker) workerLoop(ctx context.Context, workerNum int) {
	defer w.wg.Done()

	workerName := fmt.Sprintf("%s-%d", w.workerID, workerNum)

	for msg := range w.jobsChan {
		err := w.processor.Process(ctx, msg.JobID)

		if shouldAck(err) {
			if ackErr := msg.Delivery.Ack(false); ackErr != nil {
				w.logger.Error("Failed to ACK message",
					slog.String("worker_name", workerName),
					slog.String("job_id", msg.JobID),
					slog.String("error", ackErr.Error()),
				)
			}
			continue
		}

		requeue := shouldRequeueJob(err)
		w.logger.Error("Job processing error",
			slog.String("worker_name", workerName),
			slog.String("job_id", msg.JobID),
			slog.String("error", err.Error()),
			slog.Bool("requeue", requeue),
		)

		if nackErr := msg.Delivery.Nack(false, requeue); nackErr != nil {
			w.logger.Error("Failed to NACK message",
				slog.String("worker_name", workerName),
				slog.String("job_id", msg.JobID),
				slog.String("error", nackErr.Error()),
			)
		}
	}
}

// shouldAck reports whether the message is finished with: the job reached
// a terminal state, or there is no job to process.
func shouldAck(err error) bool {
	return err == nil ||
		errors.Is(err, domain.ErrJobFailed) ||
		errors.Is(err, domain.ErrJobAlreadyTerminal) ||
		errors.Is(err, domain.ErrJobNotFound)
}

// shouldRequeueJob determines if a job should be requeued based on the error type
func shouldRequeueJob(err error) bool {
	if errors.Is(err, domain.ErrInvalidPayload) {
		return false
	}

	// Requeue for transient/retryable errors
	var retryableErr *domain.RetryableError
	return errors.As(err, &retryableErr)
}
