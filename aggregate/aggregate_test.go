package aggregate

import (
	"testing"

	"github.com/bigsnarfdude/papertrail-modern/monoid"
	"github.com/bigsnarfdude/papertrail-modern/sketch/hyperloglog"
)

func newHLLWith(t *testing.T, precision uint, items ...string) *hyperloglog.HyperLogLog {
	t.Helper()
	h, err := hyperloglog.New(precision)
	if err != nil {
		t.Fatalf("hyperloglog.New: %v", err)
	}
	for _, item := range items {
		h.Add([]byte(item))
	}
	return h
}

func TestTimeWindowAggregatorMergesAllByDefault(t *testing.T) {
	m := monoid.HLL{Precision: 10}
	agg := NewTimeWindowAggregator[*hyperloglog.HyperLogLog](m)

	windows := map[string]*hyperloglog.HyperLogLog{
		"2025-10-16T00:00:00": newHLLWith(t, 10, "alice"),
		"2025-10-16T01:00:00": newHLLWith(t, 10, "bob"),
		"2025-10-16T02:00:00": newHLLWith(t, 10, "alice", "carol"),
	}

	merged, err := agg.AggregateWindows(windows, nil)
	if err != nil {
		t.Fatalf("AggregateWindows: %v", err)
	}
	if count := merged.Count(); count < 2 || count > 4 {
		t.Errorf("expected ~3 distinct users, got %d", count)
	}
}

func TestTimeWindowAggregatorRestrictsToKeys(t *testing.T) {
	m := monoid.HLL{Precision: 10}
	agg := NewTimeWindowAggregator[*hyperloglog.HyperLogLog](m)

	windows := map[string]*hyperloglog.HyperLogLog{
		"hour-0": newHLLWith(t, 10, "alice"),
		"hour-1": newHLLWith(t, 10, "bob"),
	}
	merged, err := agg.AggregateWindows(windows, []string{"hour-0"})
	if err != nil {
		t.Fatalf("AggregateWindows: %v", err)
	}
	if merged.Count() != 1 {
		t.Errorf("expected cardinality 1, got %d", merged.Count())
	}
}

func TestTimeWindowAggregatorLastN(t *testing.T) {
	m := monoid.HLL{Precision: 10}
	agg := NewTimeWindowAggregator[*hyperloglog.HyperLogLog](m)

	windows := map[string]*hyperloglog.HyperLogLog{
		"2025-10-16T00:00:00": newHLLWith(t, 10, "alice"),
		"2025-10-16T01:00:00": newHLLWith(t, 10, "bob"),
		"2025-10-16T02:00:00": newHLLWith(t, 10, "carol"),
	}
	sortedKeys := []string{"2025-10-16T02:00:00", "2025-10-16T01:00:00", "2025-10-16T00:00:00"}
	merged, err := agg.AggregateLastN(windows, 2, sortedKeys)
	if err != nil {
		t.Fatalf("AggregateLastN: %v", err)
	}
	if merged.Count() != 2 {
		t.Errorf("expected cardinality 2 (bob, carol), got %d", merged.Count())
	}
}

func TestMultiSystemAggregator(t *testing.T) {
	m := monoid.HLL{Precision: 10}
	agg := NewMultiSystemAggregator[*hyperloglog.HyperLogLog](m)

	systems := map[string]*hyperloglog.HyperLogLog{
		"prod":    newHLLWith(t, 10, "alice"),
		"staging": newHLLWith(t, 10, "bob"),
	}
	merged, err := agg.AggregateSystems(systems)
	if err != nil {
		t.Fatalf("AggregateSystems: %v", err)
	}
	if merged.Count() != 2 {
		t.Errorf("expected cardinality 2, got %d", merged.Count())
	}

	subset, err := agg.AggregateSubset(systems, []string{"prod"})
	if err != nil {
		t.Fatalf("AggregateSubset: %v", err)
	}
	if subset.Count() != 1 {
		t.Errorf("expected cardinality 1, got %d", subset.Count())
	}
}

func TestCompositeAggregator(t *testing.T) {
	m := monoid.HLL{Precision: 10}
	agg := NewCompositeAggregator[*hyperloglog.HyperLogLog](m)

	data := map[string]map[string]*hyperloglog.HyperLogLog{
		"prod": {
			"hour-0": newHLLWith(t, 10, "alice"),
			"hour-1": newHLLWith(t, 10, "bob"),
		},
		"staging": {
			"hour-0": newHLLWith(t, 10, "carol"),
			"hour-1": newHLLWith(t, 10, "alice"),
		},
	}

	total, err := agg.AggregateAll(data)
	if err != nil {
		t.Fatalf("AggregateAll: %v", err)
	}
	if count := total.Count(); count < 2 || count > 4 {
		t.Errorf("expected ~3 distinct users total, got %d", count)
	}

	bySystem, err := agg.AggregateBySystem(data)
	if err != nil {
		t.Fatalf("AggregateBySystem: %v", err)
	}
	if bySystem["prod"].Count() != 2 {
		t.Errorf("expected prod cardinality 2, got %d", bySystem["prod"].Count())
	}

	byTime, err := agg.AggregateByTime(data)
	if err != nil {
		t.Fatalf("AggregateByTime: %v", err)
	}
	if byTime["hour-0"].Count() != 2 {
		t.Errorf("expected hour-0 cardinality 2, got %d", byTime["hour-0"].Count())
	}
}
