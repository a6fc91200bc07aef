// Package bucket implements the time-window bucketer and Redis key scheme
// (C7): deterministic (timestamp, window) -> bucket-label mapping, per-window
// retention TTLs, and the sketch key addressing convention.
package bucket

import (
	"fmt"
	"time"
)

// Window is one of the fixed granularities a sketch can be bucketed at.
type Window string

const (
	Minute        Window = "1m"
	FiveMinutes   Window = "5m"
	FifteenMinutes Window = "15m"
	Hour          Window = "1h"
	Day           Window = "1d"
	Week          Window = "1w"
	Month         Window = "1M"
)

var allWindows = []Window{Minute, FiveMinutes, FifteenMinutes, Hour, Day, Week, Month}

// ParseWindow validates and returns a Window from its string form.
func ParseWindow(s string) (Window, error) {
	for _, w := range allWindows {
		if string(w) == s {
			return w, nil
		}
	}
	return "", fmt.Errorf("papertrail: unknown window label %q", s)
}

// Duration returns the fixed duration of a window. Month is approximated as
// 30 days, matching the source's own approximation.
func Duration(w Window) (time.Duration, error) {
	switch w {
	case Minute:
		return time.Minute, nil
	case FiveMinutes:
		return 5 * time.Minute, nil
	case FifteenMinutes:
		return 15 * time.Minute, nil
	case Hour:
		return time.Hour, nil
	case Day:
		return 24 * time.Hour, nil
	case Week:
		return 7 * 24 * time.Hour, nil
	case Month:
		return 30 * 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("papertrail: unknown window %q", w)
	}
}

// Retention returns the TTL to apply to a key at this window's granularity:
// 1m->1h, 5m->12h, 15m->1d, 1h->7d, 1d->90d, 1w->52w, 1M->24mo.
func Retention(w Window) (time.Duration, error) {
	switch w {
	case Minute:
		return time.Hour, nil
	case FiveMinutes:
		return 12 * time.Hour, nil
	case FifteenMinutes:
		return 24 * time.Hour, nil
	case Hour:
		return 7 * 24 * time.Hour, nil
	case Day:
		return 90 * 24 * time.Hour, nil
	case Week:
		return 52 * 7 * 24 * time.Hour, nil
	case Month:
		return 24 * 30 * 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("papertrail: unknown window %q", w)
	}
}

// Bucket computes the canonical bucket label for ts at window w. The
// timestamp is normalized to UTC before formatting; the result is a pure
// function of (ts, w), so Bucket(Bucket-derived-timestamp, w) is idempotent.
func Bucket(ts time.Time, w Window) (string, error) {
	ts = ts.UTC()
	switch w {
	case Minute:
		return ts.Format("2006-01-02T15:04:00"), nil
	case FiveMinutes:
		return floorMinutes(ts, 5), nil
	case FifteenMinutes:
		return floorMinutes(ts, 15), nil
	case Hour:
		return ts.Format("2006-01-02T15:00:00"), nil
	case Day:
		return ts.Format("2006-01-02"), nil
	case Week:
		year, week := ts.ISOWeek()
		return fmt.Sprintf("%04d-W%02d", year, week), nil
	case Month:
		return ts.Format("2006-01"), nil
	default:
		return "", fmt.Errorf("papertrail: unknown window %q", w)
	}
}

func floorMinutes(ts time.Time, step int) string {
	floored := (ts.Minute() / step) * step
	return fmt.Sprintf("%s:%02d:00", ts.Format("2006-01-02T15"), floored)
}

// Range returns count bucket labels ending at (and including) endTime's own
// bucket, walking backwards by the window's duration.
func Range(endTime time.Time, w Window, count int) ([]string, error) {
	duration, err := Duration(w)
	if err != nil {
		return nil, err
	}
	labels := make([]string, count)
	for i := 0; i < count; i++ {
		ts := endTime.Add(-duration * time.Duration(i))
		label, err := Bucket(ts, w)
		if err != nil {
			return nil, err
		}
		labels[i] = label
	}
	return labels, nil
}
