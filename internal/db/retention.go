package db

import (
	"context"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"strideminder/internal/aggregate"
)

// runRetentionOnce deletes raw gait rows older than days. Rows in the hour
// of the newest raw record are always kept because they still feed the
// next hourly rollup. It returns the number of rows removed.
func runRetentionOnce(ctx context.Context, db *gorm.DB, days int, now time.Time) (int64, error) {
	if days <= 0 {
		return 0, nil
	}
	store := NewStore(db)
	last, ok, err := store.LastTimestamp(ctx, aggregate.Raw)
	if err != nil || !ok {
		return 0, err
	}

	cutoff := now.Add(-time.Duration(days) * 24 * time.Hour).UnixMilli()
	cutoff = min(cutoff, aggregate.BucketStart(aggregate.Hourly, last))

	res := db.WithContext(ctx).Table(tables[aggregate.Raw]).
		Where("timestamp_ms < ?", cutoff).
		Delete(&GaitParams{})
	return res.RowsAffected, res.Error
}

// StartRetentionWorker launches a background goroutine that runs the
// retention cleanup once at startup and then once per day until ctx is
// cancelled. It does nothing when days is zero.
func StartRetentionWorker(ctx context.Context, db *gorm.DB, days int) {
	if days <= 0 {
		return
	}
	go func() {
		run := func() {
			n, err := runRetentionOnce(ctx, db, days, time.Now())
			if err != nil {
				slog.Error("retention cleanup failed", slog.Any("err", err))
				return
			}
			if n > 0 {
				slog.Info("retention cleanup", slog.Int64("deleted", n), slog.Int("days", days))
			}
		}
		run()

		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				run()
			}
		}
	}()
}
