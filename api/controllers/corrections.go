package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/duzelt/duzelt-backend/api/middleware"
	"github.com/duzelt/duzelt-backend/api/responses"
	"github.com/duzelt/duzelt-backend/api/validators"
	"github.com/duzelt/duzelt-backend/internal/correction"
	"github.com/duzelt/duzelt-backend/internal/entitlements"
	"github.com/duzelt/duzelt-backend/pkg/enums"
	pkgerrors "github.com/duzelt/duzelt-backend/pkg/errors"
	"github.com/duzelt/duzelt-backend/pkg/logger"
)

type entitlementGuard interface {
	Check(ctx context.Context, userID, email string, now time.Time) (entitlements.Allowance, error)
	Record(ctx context.Context, userID string, now time.Time) (int64, error)
}

type correctionRunner interface {
	Correct(ctx context.Context, in correction.Input) (correction.Result, error)
}

// correctionRequest accepts both historical field names: early clients
// send task, newer ones send mode.
type correctionRequest struct {
	Text string `json:"text" validate:"required,min=1,max=10000"`
	Task string `json:"task,omitempty" validate:"omitempty,oneof=fix rewrite"`
	Mode string `json:"mode,omitempty" validate:"omitempty,oneof=fix rewrite"`
	Vibe string `json:"vibe,omitempty" validate:"omitempty,oneof=Academic Casual Professional Literature"`
}

func (r correctionRequest) task() enums.CorrectionTask {
	if r.Task != "" {
		return enums.CorrectionTask(r.Task)
	}
	if r.Mode != "" {
		return enums.CorrectionTask(r.Mode)
	}
	return enums.CorrectionTaskFix
}

type correctionResponse struct {
	// both result and correctedText carry the same value for older clients
	Result        string          `json:"result"`
	CorrectedText string          `json:"correctedText"`
	Issues        []string        `json:"issues"`
	Variants      map[string]any  `json:"variants"`
	Task          string          `json:"task"`
	Vibe          string          `json:"vibe"`
	PassesUsed    int             `json:"passes_used"`
	Usage         correctionUsage `json:"usage"`
}

type correctionUsage struct {
	Period string `json:"period"`
	Used   int64  `json:"used"`
	Limit  int64  `json:"limit"`
}

// Corrections runs one metered correction request: quota check, model
// pipeline, then usage recording on success.
func Corrections(guard entitlementGuard, runner correctionRunner, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		userID := middleware.UserIDFromContext(ctx)
		if userID == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
			return
		}
		email := middleware.EmailFromContext(ctx)

		var req correctionRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		now := time.Now().UTC()
		allowance, err := guard.Check(ctx, userID, email, now)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		result, err := runner.Correct(ctx, correction.Input{
			Text: req.Text,
			Task: req.task(),
			Vibe: enums.Vibe(req.Vibe),
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		used, err := guard.Record(ctx, userID, now)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, correctionResponse{
			Result:        result.Text,
			CorrectedText: result.Text,
			Issues:        []string{},
			Variants:      map[string]any{},
			Task:          result.Task.String(),
			Vibe:          result.Vibe.String(),
			PassesUsed:    result.PassesUsed,
			Usage: correctionUsage{
				Period: allowance.Period,
				Used:   used,
				Limit:  allowance.Limit,
			},
		})
	}
}
