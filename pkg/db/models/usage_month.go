package models

import "time"

// UsageMonth counts correction requests per user and calendar month
// (UTC, "YYYY-MM"). Counts only ever grow within a period; a new period
// has no row until first use and old rows are kept for audit.
type UsageMonth struct {
	UserID        string    `gorm:"column:user_id;primaryKey"`
	Period        string    `gorm:"column:period;primaryKey"`
	RequestsCount int64     `gorm:"column:requests_count;not null;default:0"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName keeps the table in line with the migrations.
func (UsageMonth) TableName() string {
	return "usage_monthly"
}
