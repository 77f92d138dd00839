package db

import (
	"context"
	"database/sql"

	"gorm.io/gorm"

	"strideminder/internal/aggregate"
)

var tables = map[aggregate.Granularity]string{
	aggregate.Raw:     rawGaitParams{}.TableName(),
	aggregate.Hourly:  hourlyGaitParams{}.TableName(),
	aggregate.Daily:   dailyGaitParams{}.TableName(),
	aggregate.Monthly: monthlyGaitParams{}.TableName(),
}

// Store is the gorm implementation of aggregate.Store.
type Store struct {
	db *gorm.DB
}

// NewStore wraps db, which must already be migrated.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) table(ctx context.Context, g aggregate.Granularity) *gorm.DB {
	return s.db.WithContext(ctx).Table(tables[g])
}

func (s *Store) Insert(ctx context.Context, g aggregate.Granularity, rec aggregate.Record) (int64, error) {
	row := GaitParams{
		TimestampMs:      rec.TimestampMs,
		StepRegularity:   rec.StepRegularity,
		StrideRegularity: rec.StrideRegularity,
		StepSymmetry:     rec.StepSymmetry,
		Cadence:          rec.Cadence,
	}
	if err := s.table(ctx, g).Create(&row).Error; err != nil {
		return 0, err
	}
	return row.ID, nil
}

func (s *Store) Query(ctx context.Context, g aggregate.Granularity, start, end int64) ([]aggregate.Record, error) {
	var rows []GaitParams
	err := s.table(ctx, g).
		Where("timestamp_ms >= ? AND timestamp_ms <= ?", start, end).
		Order("timestamp_ms ASC, id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]aggregate.Record, len(rows))
	for i, r := range rows {
		out[i] = aggregate.Record{
			ID:               r.ID,
			TimestampMs:      r.TimestampMs,
			StepRegularity:   r.StepRegularity,
			StrideRegularity: r.StrideRegularity,
			StepSymmetry:     r.StepSymmetry,
			Cadence:          r.Cadence,
		}
	}
	return out, nil
}

func (s *Store) LastTimestamp(ctx context.Context, g aggregate.Granularity) (int64, bool, error) {
	var ts sql.NullInt64
	if err := s.table(ctx, g).Select("MAX(timestamp_ms)").Row().Scan(&ts); err != nil {
		return 0, false, err
	}
	return ts.Int64, ts.Valid, nil
}

// Atomic runs fn inside a database transaction.
func (s *Store) Atomic(ctx context.Context, fn func(aggregate.Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx})
	})
}
