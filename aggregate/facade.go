package aggregate

import (
	"context"
	"time"

	"github.com/bigsnarfdude/papertrail-modern/apperrors"
	"github.com/bigsnarfdude/papertrail-modern/bucket"
	"github.com/bigsnarfdude/papertrail-modern/sketch/topk"
	"github.com/bigsnarfdude/papertrail-modern/storage"
	"github.com/cenkalti/backoff/v4"
)

// QuantileSketch is the contract a streaming quantile sketch (T-Digest
// being the intended one) must satisfy to back Percentiles/SLACheck. No
// implementation ships here; a stub satisfies callers until one is wired.
type QuantileSketch interface {
	Add(value float64)
	Quantile(p float64) float64
	Merge(other QuantileSketch) error
}

// NoopQuantileSketch is a QuantileSketch that tracks nothing and always
// reports zero. It lets Percentiles/SLACheck be exercised end-to-end ahead
// of a real quantile sketch being plugged in.
type NoopQuantileSketch struct{}

func (NoopQuantileSketch) Add(float64)          {}
func (NoopQuantileSketch) Quantile(float64) float64 { return 0 }
func (NoopQuantileSketch) Merge(QuantileSketch) error { return nil }

// Facade exposes the spec's six query shapes as plain Go methods over a
// Store, retrying transient storage failures with exponential backoff.
type Facade struct {
	store   *storage.Store
	backoff func() backoff.BackOff
}

// NewFacade wraps store with the default bounded exponential-backoff retry
// policy (5 attempts: the first call plus up to 4 retries, jittered).
func NewFacade(store *storage.Store) *Facade {
	return &Facade{
		store: store,
		backoff: func() backoff.BackOff {
			return backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 4)
		},
	}
}

func (f *Facade) retry(ctx context.Context, op func() error) error {
	return backoff.Retry(func() error {
		err := op()
		if err == nil {
			return nil
		}
		if apperrors.IsTransient(err) {
			return err
		}
		return backoff.Permanent(err)
	}, backoff.WithContext(f.backoff(), ctx))
}

// DistinctResult is the response shape for Distinct.
type DistinctResult struct {
	Count    uint64
	Accuracy string
}

// Distinct returns the HLL cardinality estimate for (metric, system,
// window, ts).
func (f *Facade) Distinct(ctx context.Context, metric, system string, w bucket.Window, ts time.Time) (DistinctResult, error) {
	var count uint64
	err := f.retry(ctx, func() error {
		c, err := f.store.GetHLLCardinality(ctx, metric, system, w, ts)
		if err != nil {
			return err
		}
		count = c
		return nil
	})
	if err != nil {
		return DistinctResult{}, err
	}
	return DistinctResult{Count: count, Accuracy: "approximate (HyperLogLog)"}, nil
}

// ActivityCheckResult is the response shape for ActivityCheck.
type ActivityCheckResult struct {
	Accessed    bool
	Probability float64
}

// ActivityCheck reports whether userID may have accessed system within
// window, per the user_activity Bloom filter. probability is 0.99 when
// accessed is true (Bloom filters never false-negative but may false-
// positive) and 1.0 when false (a definite negative).
func (f *Facade) ActivityCheck(ctx context.Context, userID, system string, w bucket.Window, ts time.Time) (ActivityCheckResult, error) {
	value := userID + ":" + system
	var present bool
	err := f.retry(ctx, func() error {
		p, err := f.store.CheckBloom(ctx, "user_activity", system, value, ts, w)
		if err != nil {
			return err
		}
		present = p
		return nil
	})
	if err != nil {
		return ActivityCheckResult{}, err
	}
	if present {
		return ActivityCheckResult{Accessed: true, Probability: 0.99}, nil
	}
	return ActivityCheckResult{Accessed: false, Probability: 1.0}, nil
}

// TopKResult is one (item, count) entry of a Top-K response.
type TopKResult struct {
	Item  string
	Count int64
}

// TopK returns up to k heavy hitters for (metric, system, window, ts).
func (f *Facade) TopK(ctx context.Context, metric, system string, k int, w bucket.Window, ts time.Time) ([]TopKResult, error) {
	var entries []topk.Entry
	err := f.retry(ctx, func() error {
		e, err := f.store.GetTopK(ctx, metric, system, k, ts, w)
		if err != nil {
			return err
		}
		entries = e
		return nil
	})
	if err != nil {
		return nil, err
	}
	results := make([]TopKResult, len(entries))
	for i, e := range entries {
		results[i] = TopKResult{Item: e.Item, Count: e.Count}
	}
	return results, nil
}

// Percentiles reports the requested quantiles from sketch. Percentile
// support has no backing storage path yet (T-Digest is out of scope); the
// caller supplies whatever QuantileSketch was built for metric/system/
// window out-of-band.
func (f *Facade) Percentiles(sketch QuantileSketch, percentiles []float64) map[float64]float64 {
	result := make(map[float64]float64, len(percentiles))
	for _, p := range percentiles {
		result[p] = sketch.Quantile(p)
	}
	return result
}

// SLAStatus is the pass/fail verdict of an SLACheck.
type SLAStatus string

const (
	SLAPass SLAStatus = "PASS"
	SLAFail SLAStatus = "FAIL"
)

// SLACheckResult is the response shape for SLACheck.
type SLACheckResult struct {
	Value     float64
	Status    SLAStatus
	Margin    float64
	Threshold float64
}

// SLACheck evaluates sketch's percentile value against threshold. For a
// latency-style SLA (lower is better), pass when value <= threshold.
func (f *Facade) SLACheck(sketch QuantileSketch, percentile, threshold float64) SLACheckResult {
	value := sketch.Quantile(percentile)
	status := SLAFail
	if value <= threshold {
		status = SLAPass
	}
	return SLACheckResult{
		Value:     value,
		Status:    status,
		Margin:    threshold - value,
		Threshold: threshold,
	}
}

// SummaryResult bundles hourly and daily cardinalities plus Top-K
// snapshots for a system, per spec.md §6's summary().
type SummaryResult struct {
	System    string
	Timestamp time.Time
	Hourly    WindowSummary
	Daily     WindowSummary
}

// WindowSummary is the per-window slice of a Summary response.
type WindowSummary struct {
	UniqueUsers    uint64
	UniqueSessions uint64
	UniqueIPs      uint64
	TopUsers       []TopKResult
	TopIPs         []TopKResult
}

// Summary bundles the standard compliance metrics snapshot for system at
// ts (defaulting to now if zero).
func (f *Facade) Summary(ctx context.Context, system string, ts time.Time) (SummaryResult, error) {
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	hourly, err := f.windowSummary(ctx, system, bucket.Hour, ts, true)
	if err != nil {
		return SummaryResult{}, err
	}
	daily, err := f.windowSummary(ctx, system, bucket.Day, ts, false)
	if err != nil {
		return SummaryResult{}, err
	}

	return SummaryResult{
		System:    system,
		Timestamp: ts,
		Hourly:    hourly,
		Daily:     daily,
	}, nil
}

func (f *Facade) windowSummary(ctx context.Context, system string, w bucket.Window, ts time.Time, includeTopK bool) (WindowSummary, error) {
	var summary WindowSummary
	err := f.retry(ctx, func() error {
		users, err := f.store.GetHLLCardinality(ctx, "users", system, w, ts)
		if err != nil {
			return err
		}
		sessions, err := f.store.GetHLLCardinality(ctx, "sessions", system, w, ts)
		if err != nil {
			return err
		}
		ips, err := f.store.GetHLLCardinality(ctx, "ips", system, w, ts)
		if err != nil {
			return err
		}
		summary.UniqueUsers = users
		summary.UniqueSessions = sessions
		summary.UniqueIPs = ips
		return nil
	})
	if err != nil {
		return WindowSummary{}, err
	}

	if !includeTopK {
		return summary, nil
	}

	topUsers, err := f.TopK(ctx, "active_users", system, 10, w, ts)
	if err != nil {
		return WindowSummary{}, err
	}
	topIPs, err := f.TopK(ctx, "active_ips", system, 10, w, ts)
	if err != nil {
		return WindowSummary{}, err
	}
	summary.TopUsers = topUsers
	summary.TopIPs = topIPs
	return summary, nil
}
