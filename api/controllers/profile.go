package controllers

import (
	"net/http"
	"time"

	"github.com/duzelt/duzelt-backend/api/middleware"
	"github.com/duzelt/duzelt-backend/api/responses"
	pkgerrors "github.com/duzelt/duzelt-backend/pkg/errors"
	"github.com/duzelt/duzelt-backend/pkg/logger"
)

type profileResponse struct {
	UserID             string     `json:"user_id"`
	Email              *string    `json:"email"`
	Plan               string     `json:"plan"`
	SubscriptionStatus *string    `json:"subscription_status"`
	StripeCustomerID   *string    `json:"stripe_customer_id"`
	CurrentPeriodEnd   *time.Time `json:"current_period_end"`
}

// Profile returns the caller's subscription snapshot, provisioning a
// free-plan row on first sight.
func Profile(profileSvc profileProvider, logg *logger.Logger) http.HandlerFunc {
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

		responses.WriteSuccess(w, profileResponse{
			UserID:             profile.UserID,
			Email:              profile.Email,
			Plan:               profile.Plan.String(),
			SubscriptionStatus: profile.SubscriptionStatus,
			StripeCustomerID:   profile.StripeCustomerID,
			CurrentPeriodEnd:   profile.CurrentPeriodEnd,
		})
	}
}
