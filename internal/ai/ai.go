// Package ai turns prompts into validated, typed results using a hosted
// generative model.
package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuttothechaseo/ai-finance-sub001/internal/config"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
)

// ErrNotConfigured is returned when no provider key is set.
var ErrNotConfigured = errors.New("AI provider not configured")

// Completer sends one prompt and returns the raw completion text.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// GeminiCompleter calls Gemini through langchaingo.
type GeminiCompleter struct {
	model       llms.Model
	temperature float64
	maxTokens   int
	timeout     time.Duration
}

func NewGeminiCompleter(ctx context.Context, cfg config.AIConfig) (*GeminiCompleter, error) {
	if cfg.APIKey == "" {
		return nil, ErrNotConfigured
	}

	llm, err := googleai.New(ctx,
		googleai.WithAPIKey(cfg.APIKey),
		googleai.WithDefaultModel(cfg.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiCompleter{
		model:       llm,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		timeout:     cfg.Timeout,
	}, nil
}

func (g *GeminiCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	opts := []llms.CallOption{llms.WithJSONMode()}
	if g.temperature > 0 {
		opts = append(opts, llms.WithTemperature(g.temperature))
	}
	if g.maxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(g.maxTokens))
	}

	return llms.GenerateFromSinglePrompt(ctx, g.model, prompt, opts...)
}

// Service runs each AI-backed feature: build prompt, complete, validate.
type Service struct {
	completer Completer
	validator *Validator
	logger    *slog.Logger
}

// NewService accepts a nil completer; every call then fails with
// ErrNotConfigured.
func NewService(completer Completer, validator *Validator, logger *slog.Logger) *Service {
	return &Service{
		completer: completer,
		validator: validator,
		logger:    logger,
	}
}

func (s *Service) run(ctx context.Context, op, schema, prompt string, out any) ([]byte, error) {
	if s.completer == nil {
		return nil, ErrNotConfigured
	}

	start := time.Now()
	raw, err := s.completer.Complete(ctx, prompt)
	if err != nil {
		s.logger.Error("AI completion failed",
			slog.String("operation", op),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("AI completion failed: %w", err)
	}

	normalized, err := s.validator.Decode(schema, raw, out)
	if err != nil {
		s.logger.Warn("AI response rejected",
			slog.String("operation", op),
			slog.String("error", err.Error()),
			slog.Int("response_chars", len(raw)),
		)
		return nil, err
	}

	s.logger.Debug("AI completion validated",
		slog.String("operation", op),
		slog.Duration("latency", time.Since(start)),
	)

	return normalized, nil
}

// AnalyzeResume returns the typed analysis and its JSON encoding.
func (s *Service) AnalyzeResume(ctx context.Context, req AnalysisRequest) (*ResumeAnalysis, []byte, error) {
	var out ResumeAnalysis
	raw, err := s.run(ctx, "analyze_resume", SchemaResumeAnalysis, resumeAnalysisPrompt(req), &out)
	if err != nil {
		return nil, nil, err
	}
	return &out, raw, nil
}

func (s *Service) GenerateInterview(ctx context.Context, req InterviewRequest) (*InterviewQuestions, []byte, error) {
	var out InterviewQuestions
	raw, err := s.run(ctx, "generate_interview", SchemaInterviewQuestions, interviewQuestionsPrompt(req), &out)
	if err != nil {
		return nil, nil, err
	}
	return &out, raw, nil
}

func (s *Service) AnalyzeInterview(ctx context.Context, req InterviewAnalysisRequest) (*InterviewAnalysis, []byte, error) {
	var out InterviewAnalysis
	raw, err := s.run(ctx, "analyze_interview", SchemaInterviewAnalysis, interviewAnalysisPrompt(req), &out)
	if err != nil {
		return nil, nil, err
	}
	return &out, raw, nil
}

func (s *Service) GenerateNetworkingMessage(ctx context.Context, req NetworkingRequest) (*NetworkingMessage, error) {
	var out NetworkingMessage
	if _, err := s.run(ctx, "generate_networking_message", SchemaNetworkingMessage, networkingPrompt(req), &out); err != nil {
		return nil, err
	}
	return &out, nil
}
