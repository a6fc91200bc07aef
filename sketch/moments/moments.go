// Package moments implements the statistical Moments sketch (C5): an
// O(1)-space summary of count, mean, and unnormalized second/third/fourth
// central sums, supporting incremental updates and numerically stable
// parallel merge.
package moments

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"
)

// Moments is a 5-tuple (n, μ, M2, M3, M4).
type Moments struct {
	n  uint64
	m1 float64
	m2 float64
	m3 float64
	m4 float64

	lock sync.RWMutex
}

// New returns the identity element: zero observations.
func New() *Moments {
	return &Moments{}
}

// FromValue returns a Moments containing a single observation.
func FromValue(value float64) *Moments {
	return &Moments{n: 1, m1: value}
}

// Add folds a single value into m.
func (m *Moments) Add(value float64) {
	other := FromValue(value)
	merged, _ := Plus(m, other)
	m.lock.Lock()
	defer m.lock.Unlock()
	m.n, m.m1, m.m2, m.m3, m.m4 = merged.n, merged.m1, merged.m2, merged.m3, merged.m4
}

// Merge folds g into m via the parallel combine formula.
func (m *Moments) Merge(g *Moments) error {
	merged, err := Plus(m, g)
	if err != nil {
		return err
	}
	m.lock.Lock()
	defer m.lock.Unlock()
	m.n, m.m1, m.m2, m.m3, m.m4 = merged.n, merged.m1, merged.m2, merged.m3, merged.m4
	return nil
}

// Plus combines a and b using the numerically stable parallel moments
// formula (Pébay / John D. Cook), matching spec §4.5 exactly.
func Plus(a, b *Moments) (*Moments, error) {
	a.lock.RLock()
	b.lock.RLock()
	defer a.lock.RUnlock()
	defer b.lock.RUnlock()

	if a.n == 0 {
		return &Moments{n: b.n, m1: b.m1, m2: b.m2, m3: b.m3, m4: b.m4}, nil
	}
	if b.n == 0 {
		return &Moments{n: a.n, m1: a.m1, m2: a.m2, m3: a.m3, m4: a.m4}, nil
	}

	nA, nB := float64(a.n), float64(b.n)
	n := nA + nB

	delta := b.m1 - a.m1
	delta2 := delta * delta
	delta3 := delta * delta2
	delta4 := delta2 * delta2

	m1 := (nA*a.m1 + nB*b.m1) / n
	m2 := a.m2 + b.m2 + delta2*nA*nB/n
	m3 := a.m3 + b.m3 +
		delta3*nA*nB*(nA-nB)/(n*n) +
		3.0*delta*(nA*b.m2-nB*a.m2)/n
	m4 := a.m4 + b.m4 +
		delta4*nA*nB*(nA*nA-nA*nB+nB*nB)/(n*n*n) +
		6.0*delta2*(nA*nA*b.m2+nB*nB*a.m2)/(n*n) +
		4.0*delta*(nA*b.m3-nB*a.m3)/n

	return &Moments{n: a.n + b.n, m1: m1, m2: m2, m3: m3, m4: m4}, nil
}

// Count returns n.
func (m *Moments) Count() uint64 {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return m.n
}

// Mean returns μ, or 0 if no observations.
func (m *Moments) Mean() float64 {
	m.lock.RLock()
	defer m.lock.RUnlock()
	if m.n == 0 {
		return 0
	}
	return m.m1
}

// Variance returns the sample variance M2/n.
func (m *Moments) Variance() float64 {
	m.lock.RLock()
	defer m.lock.RUnlock()
	if m.n < 2 {
		return 0
	}
	return m.m2 / float64(m.n)
}

// StdDev returns sqrt(Variance()).
func (m *Moments) StdDev() float64 {
	return math.Sqrt(m.Variance())
}

// Skewness returns the sample skewness, 0 if undefined.
func (m *Moments) Skewness() float64 {
	m.lock.RLock()
	defer m.lock.RUnlock()
	if m.n < 3 || m.m2 == 0 {
		return 0
	}
	return (m.m3 * float64(m.n)) / math.Pow(m.m2, 1.5)
}

// Kurtosis returns the excess sample kurtosis, 0 if undefined.
func (m *Moments) Kurtosis() float64 {
	m.lock.RLock()
	defer m.lock.RUnlock()
	if m.n < 4 || m.m2 == 0 {
		return 0
	}
	return (m.m4*float64(m.n))/(m.m2*m.m2) - 3.0
}

// Equals reports numeric equality within the given relative tolerance.
func (m *Moments) Equals(g *Moments, tolerance float64) bool {
	m.lock.RLock()
	g.lock.RLock()
	defer m.lock.RUnlock()
	defer g.lock.RUnlock()
	if m.n != g.n {
		return false
	}
	return closeEnough(m.m1, g.m1, tolerance) &&
		closeEnough(m.m2, g.m2, tolerance) &&
		closeEnough(m.m3, g.m3, tolerance) &&
		closeEnough(m.m4, g.m4, tolerance)
}

func closeEnough(a, b, tolerance float64) bool {
	if a == b {
		return true
	}
	denom := math.Max(math.Abs(a), math.Abs(b))
	if denom == 0 {
		return true
	}
	return math.Abs(a-b)/denom <= tolerance
}

// Bytes serializes to the spec §6 blob layout: 8-byte uint64 n, then four
// float64 μ, M2, M3, M4, little-endian.
func (m *Moments) Bytes() []byte {
	m.lock.RLock()
	defer m.lock.RUnlock()
	out := make([]byte, 8+8*4)
	binary.LittleEndian.PutUint64(out[0:8], m.n)
	binary.LittleEndian.PutUint64(out[8:16], math.Float64bits(m.m1))
	binary.LittleEndian.PutUint64(out[16:24], math.Float64bits(m.m2))
	binary.LittleEndian.PutUint64(out[24:32], math.Float64bits(m.m3))
	binary.LittleEndian.PutUint64(out[32:40], math.Float64bits(m.m4))
	return out
}

// FromBytes reconstructs a Moments from the Bytes layout.
func FromBytes(data []byte) (*Moments, error) {
	if len(data) != 40 {
		return nil, fmt.Errorf("papertrail: moments blob must be 40 bytes, got %d", len(data))
	}
	return &Moments{
		n:  binary.LittleEndian.Uint64(data[0:8]),
		m1: math.Float64frombits(binary.LittleEndian.Uint64(data[8:16])),
		m2: math.Float64frombits(binary.LittleEndian.Uint64(data[16:24])),
		m3: math.Float64frombits(binary.LittleEndian.Uint64(data[24:32])),
		m4: math.Float64frombits(binary.LittleEndian.Uint64(data[32:40])),
	}, nil
}
