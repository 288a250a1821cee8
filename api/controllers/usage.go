package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/duzelt/duzelt-backend/api/middleware"
	"github.com/duzelt/duzelt-backend/api/responses"
	"github.com/duzelt/duzelt-backend/internal/plans"
	"github.com/duzelt/duzelt-backend/internal/usage"
	"github.com/duzelt/duzelt-backend/pkg/db/models"
	pkgerrors "github.com/duzelt/duzelt-backend/pkg/errors"
	"github.com/duzelt/duzelt-backend/pkg/logger"
)

type profileProvider interface {
	GetOrCreate(ctx context.Context, userID, email string) (*models.Profile, error)
}

type usageReader interface {
	Get(ctx context.Context, userID string, now time.Time) (usage.Snapshot, error)
}

type usageResponse struct {
	Period        string `json:"period"`
	RequestsCount int64  `json:"requests_count"`
	Limit         int64  `json:"limit"`
	Plan          string `json:"plan"`
}

// Usage reports the caller's consumption for the current period.
func Usage(profileSvc profileProvider, ledger usageReader, catalog *plans.Catalog, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		userID := middleware.UserIDFromContext(ctx)
		if userID == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
			return
		}

		profile, err := profileSvc.GetOrCreate(ctx, userID, middleware.EmailFromContext(ctx))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		snap, err := ledger.Get(ctx, userID, time.Now().UTC())
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, usageResponse{
			Period:        snap.Period,
			RequestsCount: snap.Used,
			Limit:         catalog.LimitFor(profile.Plan),
			Plan:          profile.Plan.String(),
		})
	}
}
