// Package revenue holds the time-bucketing rules shared by the aggregation
// query and the chart windowing transform. Both sides must align a timestamp
// to the identical bucket start, so the rules live in one place and operate
// strictly in UTC.
package revenue

import "time"

type Granularity string

const (
	Daily   Granularity = "daily"
	Weekly  Granularity = "weekly"
	Monthly Granularity = "monthly"
)

// ParseGranularity accepts the wire value, defaulting to daily when empty.
func ParseGranularity(raw string) (Granularity, bool) {
	switch raw {
	case "", string(Daily):
		return Daily, true
	case string(Weekly):
		return Weekly, true
	case string(Monthly):
		return Monthly, true
	}
	return "", false
}

// WindowSize is the fixed number of trailing buckets the dashboard plots.
func (g Granularity) WindowSize() int {
	switch g {
	case Weekly:
		return 26
	case Monthly:
		return 12
	}
	return 30
}

// BucketStart aligns t to the start of its bucket in UTC: midnight for daily,
// the Monday on/before for weekly, the first of the month for monthly.
func BucketStart(g Granularity, t time.Time) time.Time {
	t = t.UTC()
	switch g {
	case Weekly:
		day := startOfDay(t)
		offset := (int(day.Weekday()) + 6) % 7 // Monday = 0
		return day.AddDate(0, 0, -offset)
	case Monthly:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	}
	return startOfDay(t)
}

// StepBack returns the bucket start n steps before the given bucket start.
func (g Granularity) StepBack(bucket time.Time, n int) time.Time {
	switch g {
	case Weekly:
		return bucket.AddDate(0, 0, -7*n)
	case Monthly:
		return bucket.AddDate(0, -n, 0)
	}
	return bucket.AddDate(0, 0, -n)
}

// DefaultFrom computes the default start of the aggregation range ending at
// to: last 30 days, 26 weeks, or 12 months, truncated to the start of day.
func DefaultFrom(g Granularity, to time.Time) time.Time {
	to = to.UTC()
	switch g {
	case Weekly:
		return startOfDay(to.AddDate(0, 0, -7*25))
	case Monthly:
		return startOfDay(to.AddDate(0, -11, 0))
	}
	return startOfDay(to.AddDate(0, 0, -29))
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
