package controllers

import (
	"context"
	"net/http"

	"github.com/duzelt/duzelt-backend/api/middleware"
	"github.com/duzelt/duzelt-backend/api/responses"
	"github.com/duzelt/duzelt-backend/api/validators"
	"github.com/duzelt/duzelt-backend/pkg/enums"
	pkgerrors "github.com/duzelt/duzelt-backend/pkg/errors"
	"github.com/duzelt/duzelt-backend/pkg/logger"
)

type billingService interface {
	Checkout(ctx context.Context, userID, email string, plan enums.Plan) (string, error)
	Portal(ctx context.Context, userID, email string) (string, error)
}

type checkoutRequest struct {
	Plan string `json:"plan" validate:"required,oneof=plus pro"`
}

type sessionResponse struct {
	URL string `json:"url"`
}

// BillingCheckout starts a subscription checkout for a paid plan.
func BillingCheckout(svc billingService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		userID := middleware.UserIDFromContext(ctx)
		if userID == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
			return
		}

		var req checkoutRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		url, err := svc.Checkout(ctx, userID, middleware.EmailFromContext(ctx), enums.Plan(req.Plan))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, sessionResponse{URL: url})
	}
}

// BillingPortal opens the Stripe billing portal for the caller.
func BillingPortal(svc billingService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		userID := middleware.UserIDFromContext(ctx)
		if userID == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
			return
		}

		url, err := svc.Portal(ctx, userID, middleware.EmailFromContext(ctx))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, sessionResponse{URL: url})
	}
}
