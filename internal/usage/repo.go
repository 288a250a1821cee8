package usage

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/duzelt/duzelt-backend/pkg/db/models"
)

// Repository persists the monthly request ledger.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Increment(ctx context.Context, userID, period string) (int64, error)
	FindMonth(ctx context.Context, userID, period string) (*models.UsageMonth, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a usage repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// Increment bumps the counter for (user, period) by one and returns the
// new value. The increment happens inside the database so concurrent
// requests never lose updates; the row is created on first use.
func (r *repository) Increment(ctx context.Context, userID, period string) (int64, error) {
	row := models.UsageMonth{
		UserID:        userID,
		Period:        period,
		RequestsCount: 1,
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "period"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"requests_count": gorm.Expr("usage_monthly.requests_count + 1"),
				"updated_at":     time.Now().UTC(),
			}),
		}).
		Create(&row).Error
	if err != nil {
		return 0, err
	}

	stored, err := r.FindMonth(ctx, userID, period)
	if err != nil {
		return 0, err
	}
	if stored == nil {
		return row.RequestsCount, nil
	}
	return stored.RequestsCount, nil
}

func (r *repository) FindMonth(ctx context.Context, userID, period string) (*models.UsageMonth, error) {
	var row models.UsageMonth
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND period = ?", userID, period).
		First(&row).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}
