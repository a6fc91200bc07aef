package monoid

import (
	"github.com/bigsnarfdude/papertrail-modern/sketch/bloom"
)

// BloomUnion is the monoid over Bloom filters under OR: Zero is the empty
// filter, Plus is Union. Requires all operands to share (capacity,
// errorRate), which fixes their (m,k) and makes a proper zero well-defined
// — the source's plain Semigroup (no meaningful zero across mismatched
// parameters) becomes a full Monoid once parameters are pinned.
type BloomUnion struct {
	Capacity  uint
	ErrorRate float64
}

func (m BloomUnion) Zero() *bloom.BloomFilter {
	f, err := bloom.New(m.Capacity, m.ErrorRate)
	if err != nil {
		panic(err)
	}
	return f
}

func (m BloomUnion) Plus(a, b *bloom.BloomFilter) (*bloom.BloomFilter, error) {
	return bloom.Union(a, b)
}

// SumTimeWindows unions filters from different windows (e.g. hourly
// activity filters into a daily one).
func (m BloomUnion) SumTimeWindows(filters []*bloom.BloomFilter) (*bloom.BloomFilter, error) {
	return Sum[*bloom.BloomFilter](m, filters)
}

// BloomIntersection is the monoid over Bloom filters under AND: Zero is the
// all-ones filter (the identity for AND), Plus is Intersection.
type BloomIntersection struct {
	Capacity  uint
	ErrorRate float64
}

func (m BloomIntersection) Zero() *bloom.BloomFilter {
	f, err := bloom.NewAllOnes(m.Capacity, m.ErrorRate)
	if err != nil {
		panic(err)
	}
	return f
}

func (m BloomIntersection) Plus(a, b *bloom.BloomFilter) (*bloom.BloomFilter, error) {
	return bloom.Intersection(a, b)
}

// FindCommon intersects filters from several systems, yielding the items
// present in all of them.
func (m BloomIntersection) FindCommon(filters []*bloom.BloomFilter) (*bloom.BloomFilter, error) {
	return Sum[*bloom.BloomFilter](m, filters)
}
