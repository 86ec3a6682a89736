package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuttothechaseo/ai-finance-sub001/internal/ai"
	"github.com/cuttothechaseo/ai-finance-sub001/internal/worker/domain"
)

// finalWriteTimeout bounds the terminal status write once the job context
// is gone.
const finalWriteTimeout = 10 * time.Second

type JobStore interface {
	MarkProcessing(ctx context.Context, jobID, workerID string) (*domain.Job, error)
	GetResume(ctx context.Context, resumeID string) (*domain.Resume, error)
	CompleteJob(ctx context.Context, jobID string, result []byte) error
	FailJob(ctx context.Context, jobID, message string) error
	UpdateJobHeartbeat(ctx context.Context, jobID string) error
}

type FileFetcher interface {
	Fetch(ctx context.Context, ref string) ([]byte, error)
}

type TextExtractor interface {
	Extract(ctx context.Context, fileType, fileName string, data []byte) (string, error)
}

type ResumeAnalyzer interface {
	AnalyzeResume(ctx context.Context, req ai.AnalysisRequest) (*ai.ResumeAnalysis, []byte, error)
}

// ProcessorConfig holds the processor's collaborators and timing.
type ProcessorConfig struct {
	Logger            *slog.Logger
	Store             JobStore
	Fetcher           FileFetcher
	Extractor         TextExtractor
	Analyzer          ResumeAnalyzer
	WorkerID          string
	JobTimeout        time.Duration
	HeartbeatInterval time.Duration
}

// Processor runs one analysis job end to end.
type Processor struct {
	logger            *slog.Logger
	store             JobStore
	fetcher           FileFetcher
	extractor         TextExtractor
	analyzer          ResumeAnalyzer
	workerID          string
	jobTimeout        time.Duration
	heartbeatInterval time.Duration
}

func NewProcessor(cfg *ProcessorConfig) *Processor {
	return &Processor{
		logger:            cfg.Logger,
		store:             cfg.Store,
		fetcher:           cfg.Fetcher,
		extractor:         cfg.Extractor,
		analyzer:          cfg.Analyzer,
		workerID:          cfg.WorkerID,
		jobTimeout:        cfg.JobTimeout,
		heartbeatInterval: cfg.HeartbeatInterval,
	}
}

// Process marks the job processing, runs the pipeline and records exactly
// one terminal state. It returns nil on completion, an error wrapping
// domain.ErrJobFailed when the failure was recorded on the job, and any
// other error when the job could not be taken or finalized.
func (p *Processor) Process(ctx context.Context, jobID string) error {
	logger := p.logger.With(
		slog.String("job_id", jobID),
		slog.String("worker_id", p.workerID),
	)
	logger.Info("Processing job")

	job, err := p.store.MarkProcessing(ctx, jobID, p.workerID)
	if err != nil {
		if errors.Is(err, domain.ErrJobAlreadyTerminal) || errors.Is(err, domain.ErrJobNotFound) {
			logger.Warn("Job not processable, skipping", slog.String("reason", err.Error()))
			return err
		}
		logger.Error("Failed to mark job processing", slog.String("error", err.Error()))
		// nothing changed yet, safe to retry
		return domain.NewRetryableError(err)
	}

	jobCtx := ctx
	if p.jobTimeout > 0 {
		var cancel context.CancelFunc
		jobCtx, cancel = context.WithTimeout(ctx, p.jobTimeout)
		defer cancel()
	}

	heartbeatDone := make(chan struct{})
	go p.sendJobHeartbeat(jobCtx, job.ID, heartbeatDone)
	defer close(heartbeatDone)

	start := time.Now()
	result, runErr := p.run(jobCtx, job)

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalWriteTimeout)
	defer cancel()

	if runErr != nil {
		logger.Error("Job execution failed",
			slog.String("error", runErr.Error()),
			slog.Duration("duration", time.Since(start)),
		)

		if err := p.store.FailJob(writeCtx, job.ID, runErr.Error()); err != nil {
			if errors.Is(err, domain.ErrJobAlreadyTerminal) {
				return err
			}
			logger.Error("Failed to update job status to failed", slog.String("error", err.Error()))
			return fmt.Errorf("failed to record job failure: %w", err)
		}

		return fmt.Errorf("%w: %v", domain.ErrJobFailed, runErr)
	}

	if err := p.store.CompleteJob(writeCtx, job.ID, result); err != nil {
		if errors.Is(err, domain.ErrJobAlreadyTerminal) {
			return err
		}
		logger.Error("Failed to update job status to completed", slog.String("error", err.Error()))
		return fmt.Errorf("failed to record job result: %w", err)
	}

	logger.Info("Job completed successfully",
		slog.Duration("duration", time.Since(start)),
	)

	return nil
}

// run is the fetch, extract, analyze pipeline. Its error text becomes the
// job's error_message.
func (p *Processor) run(ctx context.Context, job *domain.Job) ([]byte, error) {
	resume, err := p.store.GetResume(ctx, job.ResumeID)
	if err != nil {
		if errors.Is(err, domain.ErrResumeNotFound) {
			return nil, fmt.Errorf("resume not found")
		}
		return nil, fmt.Errorf("failed to load resume: %w", err)
	}

	data, err := p.fetcher.Fetch(ctx, resume.FileURL)
	if err != nil {
		return nil, fmt.Errorf("failed to download resume file: %w", err)
	}

	text, err := p.extractor.Extract(ctx, resume.FileType, resume.FileName, data)
	if err != nil {
		return nil, fmt.Errorf("failed to extract resume text: %w", err)
	}

	p.logger.Debug("Resume text extracted",
		slog.String("job_id", job.ID),
		slog.Int("characters", len(text)),
	)

	_, result, err := p.analyzer.AnalyzeResume(ctx, ai.AnalysisRequest{
		ResumeText:      text,
		JobRole:         job.JobRole,
		Industry:        job.Industry,
		ExperienceLevel: job.ExperienceLevel,
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// sendJobHeartbeat periodically updates the job's heartbeat timestamp
func (p *Processor) sendJobHeartbeat(ctx context.Context, jobID string, done <-chan struct{}) {
	if p.heartbeatInterval <= 0 {
		return
	}

	ticker := time.NewTicker(p.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return

		case <-ctx.Done():
			return

		case <-ticker.C:
			if err := p.store.UpdateJobHeartbeat(ctx, jobID); err != nil {
				p.logger.Warn("Failed to update job heartbeat",
					slog.String("job_id", jobID),
					slog.String("error", err.Error()),
				)
			}
		}
	}
}
