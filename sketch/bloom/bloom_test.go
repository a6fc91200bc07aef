package bloom

import "testing"

func TestBloomFilterNoFalseNegatives(t *testing.T) {
	f, err := New(1000, 0.01)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b1 := []byte("John")
	b3 := []byte("Alice")
	if err := f.Add(b1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := f.Add(b3); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ok, err := f.Contains(b1)
	if err != nil || !ok {
		t.Errorf("%s should be in filter", b1)
	}
	ok, err = f.Contains(b3)
	if err != nil || !ok {
		t.Errorf("%s should be in filter", b3)
	}

	ok, _ = f.Contains([]byte("Jane"))
	if ok {
		t.Log("false positive on Jane (acceptable at this error rate)")
	}
}

func TestBloomFilterConstructorValidation(t *testing.T) {
	if _, err := New(0, 0.01); err == nil {
		t.Error("expected error for zero capacity")
	}
	if _, err := New(100, 0); err == nil {
		t.Error("expected error for zero error rate")
	}
	if _, err := New(100, 1); err == nil {
		t.Error("expected error for error rate of 1")
	}
}

func TestBloomFilterUnionMonotonicity(t *testing.T) {
	a, _ := New(1000, 0.01)
	b, _ := New(1000, 0.01)
	a.Add([]byte("x"))
	b.Add([]byte("y"))

	union, err := Union(a, b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ok, _ := union.Contains([]byte("x"))
	if !ok {
		t.Error("x should be in union")
	}
	ok, _ = union.Contains([]byte("y"))
	if !ok {
		t.Error("y should be in union")
	}
}

func TestBloomFilterIntersection(t *testing.T) {
	a, _ := New(1000, 0.01)
	b, _ := New(1000, 0.01)
	a.Add([]byte("shared"))
	b.Add([]byte("shared"))
	a.Add([]byte("onlyA"))

	intersection, err := Intersection(a, b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ok, _ := intersection.Contains([]byte("shared"))
	if !ok {
		t.Error("shared should be in intersection")
	}
}

func TestBloomFilterMismatchedParameters(t *testing.T) {
	a, _ := New(1000, 0.01)
	b, _ := New(2000, 0.01)
	if _, err := Union(a, b); err == nil {
		t.Error("expected error unioning mismatched filters")
	}
}

func TestBloomFilterBytesRoundTrip(t *testing.T) {
	f, _ := New(1000, 0.01)
	f.Add([]byte("foo"))
	f.Add([]byte("bar"))

	blob, err := f.Bytes()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	g, err := FromBytes(blob)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	eq, err := f.Equals(g)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !eq {
		t.Error("f and g should be equal after round trip")
	}
}

func TestScalableBloomFilter(t *testing.T) {
	s, err := NewScalable(10, 0.01)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 0; i < 200; i++ {
		if err := s.Add([]byte{byte(i), byte(i >> 8)}); err != nil {
			t.Fatalf("unexpected error adding: %v", err)
		}
	}
	if s.NumTiers() < 2 {
		t.Errorf("expected scalable filter to have grown past 1 tier, got %d", s.NumTiers())
	}
	for i := 0; i < 200; i++ {
		ok, err := s.Contains([]byte{byte(i), byte(i >> 8)})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !ok {
			t.Errorf("item %d should be present", i)
		}
	}
}
