package bloom

import "fmt"

// Scalable chains Bloom filters for unbounded local streams: when the tail
// filter's fill ratio exceeds 0.5, a fresh filter is appended with capacity
// multiplied by growth and error rate halved. Membership is "in any tail
// filter". Not mergeable across instances.
type Scalable struct {
	growth  float64
	filters []*BloomFilter
}

const defaultGrowth = 2.0
const growBeyondFill = 0.5

// NewScalable creates a scalable Bloom filter starting at capacity n and
// error rate errorRate, growing by the default factor of 2 per tier.
func NewScalable(n uint, errorRate float64) (*Scalable, error) {
	return NewScalableWithGrowth(n, errorRate, defaultGrowth)
}

// NewScalableWithGrowth is NewScalable with an explicit growth factor.
func NewScalableWithGrowth(n uint, errorRate float64, growth float64) (*Scalable, error) {
	first, err := New(n, errorRate)
	if err != nil {
		return nil, err
	}
	return &Scalable{growth: growth, filters: []*BloomFilter{first}}, nil
}

func (s *Scalable) tail() *BloomFilter {
	return s.filters[len(s.filters)-1]
}

// Add inserts data into the tail filter, growing a new tier first if the
// tail's fill ratio already exceeds 0.5.
func (s *Scalable) Add(data []byte) error {
	tail := s.tail()
	fill, err := tail.EstimatedFillRatio()
	if err != nil {
		return err
	}
	if fill > growBeyondFill {
		nextCapacity := uint(float64(tail.capacity) * s.growth)
		nextErrorRate := tail.errorRate / 2
		next, err := New(nextCapacity, nextErrorRate)
		if err != nil {
			return err
		}
		s.filters = append(s.filters, next)
		tail = next
	}
	return tail.Add(data)
}

// Contains reports whether data may be present in any tier.
func (s *Scalable) Contains(data []byte) (bool, error) {
	for _, f := range s.filters {
		ok, err := f.Contains(data)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// NumTiers returns the current chain length.
func (s *Scalable) NumTiers() int {
	return len(s.filters)
}

// Merge is unsupported: scalable filters are local-stream-only per spec and
// are never combined across instances.
func (s *Scalable) Merge(*Scalable) error {
	return fmt.Errorf("papertrail: scalable bloom filters are not mergeable across instances")
}
