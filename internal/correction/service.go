package correction

import (
	"context"
	"strings"
	"time"

	"github.com/duzelt/duzelt-backend/pkg/enums"
	pkgerrors "github.com/duzelt/duzelt-backend/pkg/errors"
	"github.com/duzelt/duzelt-backend/pkg/logger"
	"github.com/duzelt/duzelt-backend/pkg/metrics"
	"github.com/duzelt/duzelt-backend/pkg/ollama"
)

// MaxTextLength bounds input text; longer requests are rejected before
// touching the model.
const MaxTextLength = 10_000

type chatBackend interface {
	Chat(ctx context.Context, messages []ollama.Message) (string, error)
}

// Input is one correction request.
type Input struct {
	Text string
	Task enums.CorrectionTask
	Vibe enums.Vibe
}

// Result is the corrected text plus pipeline diagnostics.
type Result struct {
	Text       string
	Task       enums.CorrectionTask
	Vibe       enums.Vibe
	PassesUsed int
	Repaired   bool
}

// ServiceParams wires the correction pipeline.
type ServiceParams struct {
	Backend chatBackend
	Logger  *logger.Logger
	Metrics *metrics.CorrectionMetrics
}

// Service runs the correction pipeline: one primary model pass, an
// optional cleanup pass when the output shows script leakage, and
// deterministic homoglyph canonicalization at the end.
type Service struct {
	backend chatBackend
	logg    *logger.Logger
	metrics *metrics.CorrectionMetrics
}

// NewService wires the correction service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Backend == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "chat backend required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Service{
		backend: params.Backend,
		logg:    params.Logger,
		metrics: params.Metrics,
	}, nil
}

// Correct runs the pipeline for one request.
func (s *Service) Correct(ctx context.Context, in Input) (Result, error) {
	started := time.Now()

	text := strings.TrimSpace(in.Text)
	if text == "" {
		return Result{}, pkgerrors.New(pkgerrors.CodeValidation, "text is required")
	}
	if len(text) > MaxTextLength {
		return Result{}, pkgerrors.New(pkgerrors.CodeValidation, "text is too long")
	}

	task := in.Task
	if !task.IsValid() {
		task = enums.CorrectionTaskFix
	}
	vibe := in.Vibe
	if !vibe.IsValid() {
		vibe = enums.VibeProfessional
	}

	result := Result{Task: task, Vibe: vibe}

	primary, err := s.backend.Chat(ctx, []ollama.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: userContent(buildInstruction(task, vibe), text)},
	})
	if err != nil {
		s.metrics.IncRequest(task.String(), "error")
		return Result{}, err
	}
	result.PassesUsed = 1

	out := strings.TrimSpace(primary)
	if out == "" {
		s.metrics.IncRequest(task.String(), "empty")
		return Result{}, pkgerrors.New(pkgerrors.CodeDependency, "model returned no text")
	}

	if needsRepair(out) {
		result.PassesUsed = 2
		repaired, repairErr := s.backend.Chat(ctx, []ollama.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userContent(cleanupInstruction(), out)},
		})
		// a failed or empty cleanup never discards the primary result
		if repairErr != nil {
			s.logg.Warn(s.logg.WithField(ctx, "error", repairErr.Error()), "cleanup pass failed, keeping primary output")
		} else if cleaned := strings.TrimSpace(repaired); cleaned != "" {
			out = cleaned
			result.Repaired = true
			s.metrics.IncRepairPass()
		}
	}

	result.Text = finalize(out)
	if result.Text == "" {
		s.metrics.IncRequest(task.String(), "empty")
		return Result{}, pkgerrors.New(pkgerrors.CodeDependency, "model returned no text")
	}

	s.metrics.IncRequest(task.String(), "ok")
	s.metrics.ObserveDuration(task.String(), time.Since(started))
	return result, nil
}
