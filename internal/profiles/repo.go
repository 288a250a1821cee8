package profiles

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/duzelt/duzelt-backend/pkg/db/models"
	"github.com/duzelt/duzelt-backend/pkg/enums"
)

// Snapshot carries the billing fields a single event learned about a
// user. Nil fields are unknown and must not overwrite stored values.
type Snapshot struct {
	UserID               string
	Email                *string
	Plan                 *enums.Plan
	SubscriptionStatus   *string
	StripeCustomerID     *string
	StripeSubscriptionID *string
	CurrentPeriodEnd     *time.Time
}

// Repository handles profile persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByUserID(ctx context.Context, userID string) (*models.Profile, error)
	FindByStripeCustomerID(ctx context.Context, customerID string) (*models.Profile, error)
	Create(ctx context.Context, profile *models.Profile) error
	UpsertSnapshot(ctx context.Context, snap Snapshot) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a profile repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindByUserID(ctx context.Context, userID string) (*models.Profile, error) {
	var profile models.Profile
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&profile).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &profile, nil
}

func (r *repository) FindByStripeCustomerID(ctx context.Context, customerID string) (*models.Profile, error) {
	if customerID == "" {
		return nil, nil
	}
	var profile models.Profile
	if err := r.db.WithContext(ctx).
		Where("stripe_customer_id = ?", customerID).
		First(&profile).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &profile, nil
}

// Create inserts a profile, tolerating a concurrent insert of the same
// user id.
func (r *repository) Create(ctx context.Context, profile *models.Profile) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoNothing: true,
		}).
		Create(profile).Error
}

// UpsertSnapshot merges the snapshot into the stored profile. Only
// fields the snapshot carries are written; absent fields keep their
// stored values. A missing row is created with plan defaults.
func (r *repository) UpsertSnapshot(ctx context.Context, snap Snapshot) error {
	row := models.Profile{
		UserID: snap.UserID,
		Plan:   enums.PlanFree,
	}
	assignments := map[string]interface{}{
		"updated_at": time.Now().UTC(),
	}
	if snap.Email != nil {
		row.Email = snap.Email
		assignments["email"] = *snap.Email
	}
	if snap.Plan != nil {
		row.Plan = *snap.Plan
		assignments["plan"] = *snap.Plan
	}
	if snap.SubscriptionStatus != nil {
		row.SubscriptionStatus = snap.SubscriptionStatus
		assignments["subscription_status"] = *snap.SubscriptionStatus
	}
	if snap.StripeCustomerID != nil {
		row.StripeCustomerID = snap.StripeCustomerID
		assignments["stripe_customer_id"] = *snap.StripeCustomerID
	}
	if snap.StripeSubscriptionID != nil {
		row.StripeSubscriptionID = snap.StripeSubscriptionID
		assignments["stripe_subscription_id"] = *snap.StripeSubscriptionID
	}
	if snap.CurrentPeriodEnd != nil {
		row.CurrentPeriodEnd = snap.CurrentPeriodEnd
		assignments["current_period_end"] = *snap.CurrentPeriodEnd
	}

	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.Assignments(assignments),
		}).
		Create(&row).Error
}
