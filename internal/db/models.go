package db

import (
	"time"

	"gorm.io/datatypes"
)

// GaitParams is one row of a gait series table. The four series share this
// shape; the table is chosen per query.
type GaitParams struct {
	ID int64 `gorm:"primaryKey"`

	// TimestampMs is the batch start for raw rows and the bucket start
	// (UTC) for hourly, daily and monthly rows.
	TimestampMs int64 `gorm:"index;not null"`

	StepRegularity   float64 `gorm:"not null"`
	StrideRegularity float64 `gorm:"not null"`
	StepSymmetry     float64 `gorm:"not null"`
	Cadence          float64 `gorm:"not null"`
}

// Per-table types exist only for migration, so each table gets its own
// index name.
type (
	rawGaitParams     struct{ GaitParams }
	hourlyGaitParams  struct{ GaitParams }
	dailyGaitParams   struct{ GaitParams }
	monthlyGaitParams struct{ GaitParams }
)

func (rawGaitParams) TableName() string     { return "gait_params_raw" }
func (hourlyGaitParams) TableName() string  { return "gait_params_hourly" }
func (dailyGaitParams) TableName() string   { return "gait_params_daily" }
func (monthlyGaitParams) TableName() string { return "gait_params_monthly" }

// Device is a sensor or phone allowed to push samples. Only the SHA3-256
// hash of its bearer token is stored.
type Device struct {
	ID uint `gorm:"primaryKey"`

	CreatedAt time.Time
	UpdatedAt time.Time

	// Name is a user-friendly identifier (e.g. "left-ankle").
	Name string `gorm:"size:128;not null"`

	// KeyHash is the hex SHA3-256 of the bearer token.
	KeyHash string `gorm:"uniqueIndex;size:64;not null"`

	// Active indicates whether this device may currently ingest.
	Active bool `gorm:"default:true"`

	// LastSeenAt is bumped by authenticated requests, at most once a minute.
	LastSeenAt *time.Time

	// Metadata holds free-form attributes such as sensor model or
	// mounting position.
	Metadata datatypes.JSONMap `gorm:"type:json"`
}
