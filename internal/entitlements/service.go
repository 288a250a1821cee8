package entitlements

import (
	"context"
	"time"

	"github.com/duzelt/duzelt-backend/internal/plans"
	"github.com/duzelt/duzelt-backend/internal/usage"
	"github.com/duzelt/duzelt-backend/pkg/db/models"
	"github.com/duzelt/duzelt-backend/pkg/enums"
	pkgerrors "github.com/duzelt/duzelt-backend/pkg/errors"
	"github.com/duzelt/duzelt-backend/pkg/metrics"
)

type profileLoader interface {
	GetOrCreate(ctx context.Context, userID, email string) (*models.Profile, error)
}

type usageLedger interface {
	Get(ctx context.Context, userID string, now time.Time) (usage.Snapshot, error)
	Record(ctx context.Context, userID string, now time.Time) (int64, error)
}

// Allowance is the verdict of a quota check.
type Allowance struct {
	Plan   enums.Plan
	Period string
	Used   int64
	Limit  int64
}

// Remaining reports how many requests the user has left this period.
func (a Allowance) Remaining() int64 {
	if a.Used >= a.Limit {
		return 0
	}
	return a.Limit - a.Used
}

// ServiceParams wires the entitlement guard.
type ServiceParams struct {
	Profiles profileLoader
	Ledger   usageLedger
	Catalog  *plans.Catalog
	Metrics  *metrics.CorrectionMetrics
}

// Service gates metered operations on the caller's plan allowance.
type Service struct {
	profiles profileLoader
	ledger   usageLedger
	catalog  *plans.Catalog
	metrics  *metrics.CorrectionMetrics
}

// NewService wires the entitlement service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Profiles == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "profile loader required")
	}
	if params.Ledger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "usage ledger required")
	}
	if params.Catalog == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "plan catalog required")
	}
	return &Service{
		profiles: params.Profiles,
		ledger:   params.Ledger,
		catalog:  params.Catalog,
		metrics:  params.Metrics,
	}, nil
}

// Check verifies the user still has allowance this period. The check is
// advisory: a concurrent request between Check and Record can let a
// user land one request past the limit, which billing tolerates.
func (s *Service) Check(ctx context.Context, userID, email string, now time.Time) (Allowance, error) {
	profile, err := s.profiles.GetOrCreate(ctx, userID, email)
	if err != nil {
		return Allowance{}, err
	}

	snap, err := s.ledger.Get(ctx, userID, now)
	if err != nil {
		return Allowance{}, err
	}

	allowance := Allowance{
		Plan:   profile.Plan,
		Period: snap.Period,
		Used:   snap.Used,
		Limit:  s.catalog.LimitFor(profile.Plan),
	}

	if allowance.Used >= allowance.Limit {
		s.metrics.IncQuotaRejection(allowance.Plan.String())
		return allowance, pkgerrors.New(pkgerrors.CodeQuotaExceeded, "monthly limit reached").
			WithDetails(map[string]any{
				"plan":   allowance.Plan.String(),
				"period": allowance.Period,
				"used":   allowance.Used,
				"limit":  allowance.Limit,
			})
	}

	return allowance, nil
}

// Record charges one successful request to the current period and
// returns the new total. Callers invoke this only after the metered
// operation succeeded, so failures never consume allowance.
func (s *Service) Record(ctx context.Context, userID string, now time.Time) (int64, error) {
	return s.ledger.Record(ctx, userID, now)
}
