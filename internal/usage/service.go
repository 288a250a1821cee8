package usage

import (
	"context"
	"time"

	pkgerrors "github.com/duzelt/duzelt-backend/pkg/errors"
)

// PeriodFor returns the UTC calendar-month key (YYYY-MM) the instant
// falls into. Month boundaries are UTC regardless of the caller's zone.
func PeriodFor(t time.Time) string {
	return t.UTC().Format("2006-01")
}

// Snapshot is a user's consumption for one period.
type Snapshot struct {
	Period string `json:"period"`
	Used   int64  `json:"used"`
}

// Service reads and advances the monthly ledger.
type Service struct {
	repo Repository
}

// NewService wires the usage service.
func NewService(repo Repository) (*Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "usage repo required")
	}
	return &Service{repo: repo}, nil
}

// Get reports current-period consumption. Users with no ledger row have
// used zero; reading never creates the row.
func (s *Service) Get(ctx context.Context, userID string, now time.Time) (Snapshot, error) {
	period := PeriodFor(now)
	row, err := s.repo.FindMonth(ctx, userID, period)
	if err != nil {
		return Snapshot{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load usage")
	}
	snap := Snapshot{Period: period}
	if row != nil {
		snap.Used = row.RequestsCount
	}
	return snap, nil
}

// Record counts one successful request against the current period and
// returns the new total.
func (s *Service) Record(ctx context.Context, userID string, now time.Time) (int64, error) {
	total, err := s.repo.Increment(ctx, userID, PeriodFor(now))
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record usage")
	}
	return total, nil
}
