package aggregate

import "time"

// Bucket boundaries are computed in UTC so rollups do not depend on the
// host's time zone.

func hourStart(ms int64) int64 {
	return time.UnixMilli(ms).UTC().Truncate(time.Hour).UnixMilli()
}

func dayStart(ms int64) int64 {
	t := time.UnixMilli(ms).UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC).UnixMilli()
}

// monthStart returns midnight on the first day of the month containing ms.
func monthStart(ms int64) int64 {
	t := time.UnixMilli(ms).UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC).UnixMilli()
}

// BucketStart returns the start of the g bucket containing ms. Raw records
// are their own bucket.
func BucketStart(g Granularity, ms int64) int64 {
	switch g {
	case Hourly:
		return hourStart(ms)
	case Daily:
		return dayStart(ms)
	case Monthly:
		return monthStart(ms)
	default:
		return ms
	}
}
