// Package aggregate implements the rollup layer (C10): combining sketches
// across time windows, across systems, and across both, using the monoid
// algebra in place of bespoke merge logic per sketch kind.
package aggregate

import (
	"sort"

	"github.com/bigsnarfdude/papertrail-modern/monoid"
)

// TimeWindowAggregator merges a set of per-bucket sketches of type T using
// the given monoid.
type TimeWindowAggregator[T any] struct {
	Monoid monoid.Monoid[T]
}

// NewTimeWindowAggregator wraps m for time-window rollups over T.
func NewTimeWindowAggregator[T any](m monoid.Monoid[T]) TimeWindowAggregator[T] {
	return TimeWindowAggregator[T]{Monoid: m}
}

// AggregateWindows folds the sketches in windows, restricted to keys when
// non-empty, otherwise all of windows.
func (a TimeWindowAggregator[T]) AggregateWindows(windows map[string]T, keys []string) (T, error) {
	var items []T
	if len(keys) > 0 {
		for _, k := range keys {
			if v, ok := windows[k]; ok {
				items = append(items, v)
			}
		}
	} else {
		for _, v := range windows {
			items = append(items, v)
		}
	}
	return monoid.Sum(a.Monoid, items)
}

// AggregateLastN folds the n most recent buckets in windows. sortedKeys,
// if provided, is assumed most-recent-first; otherwise keys are sorted
// descending lexicographically (bucket labels are ISO-ordered, so this
// matches chronological order).
func (a TimeWindowAggregator[T]) AggregateLastN(windows map[string]T, n int, sortedKeys []string) (T, error) {
	if sortedKeys == nil {
		sortedKeys = make([]string, 0, len(windows))
		for k := range windows {
			sortedKeys = append(sortedKeys, k)
		}
		sort.Sort(sort.Reverse(sort.StringSlice(sortedKeys)))
	}
	if n < len(sortedKeys) {
		sortedKeys = sortedKeys[:n]
	}
	return a.AggregateWindows(windows, sortedKeys)
}

// MultiSystemAggregator merges sketches of type T across systems.
type MultiSystemAggregator[T any] struct {
	Monoid monoid.Monoid[T]
}

// NewMultiSystemAggregator wraps m for cross-system rollups over T.
func NewMultiSystemAggregator[T any](m monoid.Monoid[T]) MultiSystemAggregator[T] {
	return MultiSystemAggregator[T]{Monoid: m}
}

// AggregateSystems folds every system's sketch into one total.
func (a MultiSystemAggregator[T]) AggregateSystems(systems map[string]T) (T, error) {
	items := make([]T, 0, len(systems))
	for _, v := range systems {
		items = append(items, v)
	}
	return monoid.Sum(a.Monoid, items)
}

// AggregateSubset folds only the named systems' sketches.
func (a MultiSystemAggregator[T]) AggregateSubset(systems map[string]T, names []string) (T, error) {
	items := make([]T, 0, len(names))
	for _, name := range names {
		if v, ok := systems[name]; ok {
			items = append(items, v)
		}
	}
	return monoid.Sum(a.Monoid, items)
}

// CompositeAggregator merges sketches indexed by both system and time
// bucket: data[system][bucket].
type CompositeAggregator[T any] struct {
	Monoid    monoid.Monoid[T]
	timeAgg   TimeWindowAggregator[T]
	systemAgg MultiSystemAggregator[T]
}

// NewCompositeAggregator wraps m for combined system/time rollups over T.
func NewCompositeAggregator[T any](m monoid.Monoid[T]) CompositeAggregator[T] {
	return CompositeAggregator[T]{
		Monoid:    m,
		timeAgg:   NewTimeWindowAggregator(m),
		systemAgg: NewMultiSystemAggregator(m),
	}
}

// AggregateAll folds every system's every bucket into one grand total.
func (a CompositeAggregator[T]) AggregateAll(data map[string]map[string]T) (T, error) {
	var items []T
	for _, buckets := range data {
		for _, v := range buckets {
			items = append(items, v)
		}
	}
	return monoid.Sum(a.Monoid, items)
}

// AggregateBySystem collapses the time axis, returning one sketch per
// system covering all of its buckets.
func (a CompositeAggregator[T]) AggregateBySystem(data map[string]map[string]T) (map[string]T, error) {
	result := make(map[string]T, len(data))
	for system, buckets := range data {
		merged, err := a.timeAgg.AggregateWindows(buckets, nil)
		if err != nil {
			return nil, err
		}
		result[system] = merged
	}
	return result, nil
}

// AggregateByTime collapses the system axis, returning one sketch per
// bucket covering all systems.
func (a CompositeAggregator[T]) AggregateByTime(data map[string]map[string]T) (map[string]T, error) {
	byBucket := make(map[string]map[string]T)
	for system, buckets := range data {
		for b, v := range buckets {
			if byBucket[b] == nil {
				byBucket[b] = make(map[string]T)
			}
			byBucket[b][system] = v
		}
	}
	result := make(map[string]T, len(byBucket))
	for b, systems := range byBucket {
		merged, err := a.systemAgg.AggregateSystems(systems)
		if err != nil {
			return nil, err
		}
		result[b] = merged
	}
	return result, nil
}
