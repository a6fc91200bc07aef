package topk

import "testing"

const testDelta = 0.999

func TestCMSBasic(t *testing.T) {
	c, err := NewCMSFromEstimates(0.001, testDelta)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	e1 := []byte("foo")
	e2 := []byte("bar")
	e3 := []byte("baz")
	c.Add(e1, 1)
	c.Add(e1, 1)
	c.Add(e2, 1)

	if got := c.Count(e1); got != 2 {
		t.Errorf("count of e1 should be 2, found %d", got)
	}
	if got := c.Count(e2); got != 1 {
		t.Errorf("count of e2 should be 1, found %d", got)
	}
	if got := c.Count(e3); got != 0 {
		t.Errorf("count of e3 should be 0, found %d", got)
	}
}

func TestCMSMerge(t *testing.T) {
	c1, _ := NewCMSFromEstimates(0.001, testDelta)
	c2, _ := NewCMSFromEstimates(0.001, testDelta)

	c1.Add([]byte("foo"), 3)
	c1.Add([]byte("baz"), 1)

	c2.Add([]byte("foo"), 1)
	c2.Add([]byte("bar"), 2)
	c2.Add([]byte("baz"), 1)

	if err := c1.Merge(c2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := c1.Count([]byte("foo")); got != 4 {
		t.Errorf("count of foo should be 4, found %d", got)
	}
	if got := c1.Count([]byte("bar")); got != 2 {
		t.Errorf("count of bar should be 2, found %d", got)
	}
	if got := c1.Count([]byte("baz")); got != 2 {
		t.Errorf("count of baz should be 2, found %d", got)
	}
}

func TestCMSMergeDimensionMismatch(t *testing.T) {
	c1, _ := NewCMS(100, 5)
	c2, _ := NewCMS(200, 5)
	if err := c1.Merge(c2); err == nil {
		t.Error("expected error merging mismatched dimensions")
	}
}

func TestCMSBytesRoundTrip(t *testing.T) {
	c, _ := NewCMS(64, 4)
	c.Add([]byte("foo"), 5)
	c.Add([]byte("bar"), 2)

	blob := c.Bytes()
	g, err := FromBytesCMS(blob)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := g.Count([]byte("foo")); got != 5 {
		t.Errorf("count of foo should be 5, found %d", got)
	}
	if got := g.Count([]byte("bar")); got != 2 {
		t.Errorf("count of bar should be 2, found %d", got)
	}
}
