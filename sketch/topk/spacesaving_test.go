package topk

import "testing"

func TestSpaceSavingBasic(t *testing.T) {
	s, err := NewSpaceSaving(3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s.Add("a", 10)
	s.Add("b", 5)
	s.Add("c", 1)

	if got := s.Count("a"); got != 10 {
		t.Errorf("count of a should be 10, got %d", got)
	}
	if got := s.Count("c"); got != 1 {
		t.Errorf("count of c should be 1, got %d", got)
	}
}

func TestSpaceSavingEvictionNeverSelfEvicts(t *testing.T) {
	s, _ := NewSpaceSaving(3)
	for i := 0; i < 20; i++ {
		s.Add("dominant", 1)
	}
	for i := 0; i < 50; i++ {
		s.Add("noise", 1)
	}
	if got := s.Count("dominant"); got < 20 {
		t.Errorf("dominant item should never be evicted below its true count, got %d", got)
	}
}

func TestSpaceSavingEvictsMinOnOverflow(t *testing.T) {
	s, _ := NewSpaceSaving(2)
	s.Add("a", 10)
	s.Add("b", 1)
	// "c" with count higher than current min (1) evicts "b".
	s.Add("c", 5)

	top := s.Top()
	if len(top) != 2 {
		t.Fatalf("expected 2 tracked items, got %d", len(top))
	}
	found := map[string]bool{}
	for _, e := range top {
		found[e.Item] = true
	}
	if !found["a"] || !found["c"] {
		t.Errorf("expected a and c tracked, got %+v", top)
	}
	if found["b"] {
		t.Error("b should have been evicted")
	}
}

func TestSpaceSavingDropsBelowMin(t *testing.T) {
	s, _ := NewSpaceSaving(2)
	s.Add("a", 10)
	s.Add("b", 5)
	// count (1) is not greater than minCount (5): dropped, map unchanged.
	s.Add("c", 1)

	if s.Count("c") != 0 {
		t.Errorf("c should have been dropped, got count %d", s.Count("c"))
	}
	if len(s.Top()) != 2 {
		t.Errorf("expected map size to remain 2, got %d", len(s.Top()))
	}
}

func TestSpaceSavingMergeStability(t *testing.T) {
	build := func(counts map[string]int64) *SpaceSaving {
		s, _ := NewSpaceSaving(3)
		for k, v := range counts {
			s.Add(k, v)
		}
		return s
	}

	h1 := build(map[string]int64{"a": 10, "b": 5, "c": 1})
	h2 := build(map[string]int64{"a": 4, "d": 8, "b": 2})
	h3 := build(map[string]int64{"c": 7, "e": 6, "a": 1})
	h4 := build(map[string]int64{"b": 5, "a": 3, "f": 2})

	merged, _ := NewSpaceSaving(3)
	for _, h := range []*SpaceSaving{h1, h2, h3, h4} {
		if err := merged.Merge(h); err != nil {
			t.Fatalf("unexpected error merging: %v", err)
		}
	}

	top := merged.Top()
	if len(top) == 0 || top[0].Item != "a" {
		t.Errorf("expected a to be rank 1, got %+v", top)
	}
}

func TestSpaceSavingBytesRoundTrip(t *testing.T) {
	s, _ := NewSpaceSaving(3)
	s.Add("a", 10)
	s.Add("b", 5)
	s.Add("c", 1)

	blob := s.Bytes()
	g, err := FromBytes(blob)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.Count("a") != 10 || g.Count("b") != 5 || g.Count("c") != 1 {
		t.Errorf("round trip mismatch: %+v", g.Top())
	}
}
