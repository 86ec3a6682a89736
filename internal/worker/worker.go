package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

// MessageSource delivers queued job messages.
type MessageSource interface {
	Consume(consumerTag string, prefetchCount int) (<-chan amqp.Delivery, error)
}

// JobProcessor runs one job by id.
type JobProcessor interface {
	Process(ctx context.Context, jobID string) error
}

// Config holds worker configuration
type Config struct {
	Logger        *slog.Logger
	Source        MessageSource
	Processor     JobProcessor
	WorkerID      string
	Concurrency   int
	PrefetchCount int
}

// jobMessage pairs a parsed job id with the delivery to acknowledge.
type jobMessage struct {
	JobID    string
	Delivery amqp.Delivery
}

// Worker consumes job messages and runs them on a goroutine pool.
type Worker struct {
	logger        *slog.Logger
	source        MessageSource
	processor     JobProcessor
	workerID      string
	concurrency   int
	prefetchCount int

	jobsChan chan *jobMessage
	wg       sync.WaitGroup
	stopOnce sync.Once
	stopChan chan struct{}
}

// NewWorker creates a new worker instance
func NewWorker(cfg *Config) *Worker {
	return &Worker{
		logger:        cfg.Logger,
		source:        cfg.Source,
		processor:     cfg.Processor,
		workerID:      cfg.WorkerID,
		concurrency:   cfg.Concurrency,
		prefetchCount: cfg.PrefetchCount,
		jobsChan:      make(chan *jobMessage),
		stopChan:      make(chan struct{}),
	}
}

// Start subscribes to the queue and processes jobs until ctx is canceled
// or the delivery channel closes.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("Starting worker",
		slog.String("worker_id", w.workerID),
		slog.Int("concurrency", w.concurrency),
	)

	deliveries, err := w.setupConsumer()
	if err != nil {
		return fmt.Errorf("failed to set up consumer: %w", err)
	}

	w.spawnWorkerPool(ctx)

	w.startMessageDispatcher(ctx, deliveries)
	close(w.jobsChan)

	w.wg.Wait()
	w.logger.Info("Worker stopped", slog.String("worker_id", w.workerID))

	return nil
}

// Stop asks the pool to finish the jobs in hand and exit.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() {
		w.logger.Info("Stopping worker...")
		close(w.stopChan)
	})
}
