package profiles

import (
	"context"
	"strings"

	"github.com/duzelt/duzelt-backend/pkg/db/models"
	"github.com/duzelt/duzelt-backend/pkg/enums"
	pkgerrors "github.com/duzelt/duzelt-backend/pkg/errors"
)

// Service owns the per-user subscription snapshot.
type Service struct {
	repo Repository
}

// NewService wires the profile service.
func NewService(repo Repository) (*Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "profile repo required")
	}
	return &Service{repo: repo}, nil
}

// GetOrCreate loads a user's profile, provisioning a free-plan row on
// first sight. The email from the identity token is captured when the
// row is created and backfilled if it was missing.
func (s *Service) GetOrCreate(ctx context.Context, userID, email string) (*models.Profile, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}

	profile, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load profile")
	}
	if profile != nil {
		if profile.Email == nil && email != "" {
			if err := s.repo.UpsertSnapshot(ctx, Snapshot{UserID: userID, Email: &email}); err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "backfill email")
			}
			profile.Email = &email
		}
		return profile, nil
	}

	fresh := &models.Profile{
		UserID: userID,
		Plan:   enums.PlanFree,
	}
	if email != "" {
		fresh.Email = &email
	}
	if err := s.repo.Create(ctx, fresh); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create profile")
	}

	// re-read in case a concurrent request created the row first
	profile, err = s.repo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload profile")
	}
	if profile == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "profile not persisted")
	}
	return profile, nil
}

// FindByCustomerRef resolves a profile by its Stripe customer id.
// Returns nil when no profile claims the customer.
func (s *Service) FindByCustomerRef(ctx context.Context, customerID string) (*models.Profile, error) {
	profile, err := s.repo.FindByStripeCustomerID(ctx, customerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup profile by customer")
	}
	return profile, nil
}

// Apply merges a billing snapshot into the stored profile.
func (s *Service) Apply(ctx context.Context, snap Snapshot) error {
	if strings.TrimSpace(snap.UserID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "snapshot user id is required")
	}
	if err := s.repo.UpsertSnapshot(ctx, snap); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "apply snapshot")
	}
	return nil
}

// AttachStripeCustomer records the customer ref minted for a user at
// checkout time.
func (s *Service) AttachStripeCustomer(ctx context.Context, userID, customerID string) error {
	if customerID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "customer id is required")
	}
	return s.Apply(ctx, Snapshot{UserID: userID, StripeCustomerID: &customerID})
}
