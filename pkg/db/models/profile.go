package models

import (
	"time"

	"github.com/duzelt/duzelt-backend/pkg/enums"
)

// Profile is the authoritative subscription snapshot for one user. The
// user id is issued by the external identity provider; rows are created
// lazily and never deleted, cancellation only flips plan/status.
type Profile struct {
	UserID               string     `gorm:"column:user_id;primaryKey"`
	Email                *string    `gorm:"column:email"`
	Plan                 enums.Plan `gorm:"column:plan;not null;default:'free'"`
	SubscriptionStatus   *string    `gorm:"column:subscription_status"`
	StripeCustomerID     *string    `gorm:"column:stripe_customer_id;uniqueIndex"`
	StripeSubscriptionID *string    `gorm:"column:stripe_subscription_id"`
	CurrentPeriodEnd     *time.Time `gorm:"column:current_period_end"`
	CreatedAt            time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
