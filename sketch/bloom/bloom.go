// Package bloom implements the Bloom filter membership sketch (C3): a bit
// array with no false negatives, built from n expected items and a target
// false-positive rate ε.
package bloom

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/bigsnarfdude/papertrail-modern/bitset"
	"github.com/bigsnarfdude/papertrail-modern/hash"
)

// BloomFilter is a size-m, k-seed bit array membership sketch.
type BloomFilter struct {
	capacity  uint
	errorRate float64
	size      uint
	numHashes uint
	bits      bitset.IBitSet
	lock      sync.RWMutex
}

// CalculateSize returns m = ceil(-n*ln(eps) / (ln2)^2).
func CalculateSize(n uint, errorRate float64) uint {
	return uint(math.Ceil(-((float64(n) * math.Log(errorRate)) / math.Pow(math.Log(2), 2))))
}

// CalculateNumHashes returns k = max(1, round((m/n)*ln2)).
func CalculateNumHashes(size, n uint) uint {
	if n == 0 {
		return 1
	}
	k := uint(math.Round((float64(size) / float64(n)) * math.Log(2)))
	if k < 1 {
		return 1
	}
	return k
}

// New creates an in-memory BloomFilter sized for n items at false-positive
// rate errorRate.
func New(n uint, errorRate float64) (*BloomFilter, error) {
	if n == 0 {
		return nil, fmt.Errorf("papertrail: bloom filter capacity must be positive")
	}
	if errorRate <= 0 || errorRate >= 1 {
		return nil, fmt.Errorf("papertrail: bloom filter error rate %v out of range (0,1)", errorRate)
	}
	size := CalculateSize(n, errorRate)
	numHashes := CalculateNumHashes(size, n)
	return &BloomFilter{
		capacity:  n,
		errorRate: errorRate,
		size:      size,
		numHashes: numHashes,
		bits:      bitset.NewBitSetMem(size),
	}, nil
}

// NewAllOnes creates a BloomFilter sized for n items at errorRate with every
// bit already set — the identity element for the intersection monoid,
// since AND-ing against "everything" leaves the other operand unchanged.
func NewAllOnes(n uint, errorRate float64) (*BloomFilter, error) {
	f, err := New(n, errorRate)
	if err != nil {
		return nil, err
	}
	allOnes := make([]byte, (f.size+7)/8)
	for i := range allOnes {
		allOnes[i] = 0xFF
	}
	if err := f.bits.SetBytes(allOnes); err != nil {
		return nil, err
	}
	return f, nil
}

// NewWithBitSet wraps an existing bitset, e.g. one restored from a blob or
// backed by Redis. size and numHashes must match the bitset's own size.
func NewWithBitSet(n uint, errorRate float64, size, numHashes uint, bits bitset.IBitSet) (*BloomFilter, error) {
	if bits.Size() != size {
		return nil, fmt.Errorf("papertrail: bitset size %d doesn't match bloom filter size %d", bits.Size(), size)
	}
	return &BloomFilter{capacity: n, errorRate: errorRate, size: size, numHashes: numHashes, bits: bits}, nil
}

// Size returns the bit array size m.
func (f *BloomFilter) Size() uint { return f.size }

// NumHashes returns the hash-seed count k.
func (f *BloomFilter) NumHashes() uint { return f.numHashes }

func (f *BloomFilter) positions(data []byte) []uint {
	positions := make([]uint, f.numHashes)
	for s := uint32(0); s < uint32(f.numHashes); s++ {
		positions[s] = uint(hash.Sum32(s, data)) % f.size
	}
	return positions
}

// Add sets the k seeded-hash bits for data in one InsertMulti call, so a
// Redis-backed bitset pipelines all k SETBITs instead of round-tripping
// once per seed.
func (f *BloomFilter) Add(data []byte) error {
	f.lock.Lock()
	defer f.lock.Unlock()
	_, err := f.bits.InsertMulti(f.positions(data))
	return err
}

// Contains reports whether all k seeded-hash bits for data are set. Never
// false-negative; may false-positive.
func (f *BloomFilter) Contains(data []byte) (bool, error) {
	f.lock.RLock()
	defer f.lock.RUnlock()
	for _, pos := range f.positions(data) {
		ok, err := f.bits.Has(pos)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// EstimatedFillRatio returns population-count / m.
func (f *BloomFilter) EstimatedFillRatio() (float64, error) {
	f.lock.RLock()
	defer f.lock.RUnlock()
	count, err := f.bits.BitCount()
	if err != nil {
		return 0, err
	}
	return float64(count) / float64(f.size), nil
}

// EstimatedCount returns n̂ = -(m/k)*ln(1-fill).
func (f *BloomFilter) EstimatedCount() (float64, error) {
	fill, err := f.EstimatedFillRatio()
	if err != nil {
		return 0, err
	}
	if fill >= 1 {
		return math.Inf(1), nil
	}
	return -(float64(f.size) / float64(f.numHashes)) * math.Log(1-fill), nil
}

// CurrentFalsePositiveRate returns (1 - e^(-k*n̂/m))^k.
func (f *BloomFilter) CurrentFalsePositiveRate() (float64, error) {
	nHat, err := f.EstimatedCount()
	if err != nil {
		return 0, err
	}
	exponent := -float64(f.numHashes) * nHat / float64(f.size)
	return math.Pow(1-math.Exp(exponent), float64(f.numHashes)), nil
}

func (f *BloomFilter) matches(g *BloomFilter) error {
	if f.size != g.size || f.numHashes != g.numHashes {
		return fmt.Errorf("papertrail: bloom filters have mismatched (m,k): (%d,%d) vs (%d,%d)", f.size, f.numHashes, g.size, g.numHashes)
	}
	return nil
}

// Union returns the bitwise OR of f and g. Both must share (m,k).
func Union(f, g *BloomFilter) (*BloomFilter, error) {
	if err := f.matches(g); err != nil {
		return nil, err
	}
	out, err := New(f.capacity, f.errorRate)
	if err != nil {
		return nil, err
	}
	fBytes, err := f.Bytes()
	if err != nil {
		return nil, err
	}
	gBytes, err := g.Bytes()
	if err != nil {
		return nil, err
	}
	merged := make([]byte, len(fBytes))
	for i := range fBytes {
		merged[i] = fBytes[i] | gBytes[i]
	}
	if err = out.bits.SetBytes(merged); err != nil {
		return nil, err
	}
	return out, nil
}

// Intersection returns the bitwise AND of f and g. Both must share (m,k).
func Intersection(f, g *BloomFilter) (*BloomFilter, error) {
	if err := f.matches(g); err != nil {
		return nil, err
	}
	out, err := New(f.capacity, f.errorRate)
	if err != nil {
		return nil, err
	}
	fBytes, err := f.Bytes()
	if err != nil {
		return nil, err
	}
	gBytes, err := g.Bytes()
	if err != nil {
		return nil, err
	}
	merged := make([]byte, len(fBytes))
	for i := range fBytes {
		merged[i] = fBytes[i] & gBytes[i]
	}
	if err := out.bits.SetBytes(merged); err != nil {
		return nil, err
	}
	return out, nil
}

// Equals reports whether f and g have matching parameters and bit arrays.
func (f *BloomFilter) Equals(g *BloomFilter) (bool, error) {
	if f.size != g.size || f.numHashes != g.numHashes {
		return false, nil
	}
	return f.bits.Equals(g.bits)
}

// Bytes serializes to the spec §6 blob layout: 4-byte m, 4-byte k, 4-byte
// capacity, 8-byte float64 error rate, then ceil(m/8) bit bytes, all
// little-endian.
func (f *BloomFilter) Bytes() ([]byte, error) {
	f.lock.RLock()
	defer f.lock.RUnlock()
	bitBytes, err := f.bits.Bytes()
	if err != nil {
		return nil, err
	}
	out := make([]byte, 4+4+4+8+len(bitBytes))
	binary.LittleEndian.PutUint32(out[0:4], uint32(f.size))
	binary.LittleEndian.PutUint32(out[4:8], uint32(f.numHashes))
	binary.LittleEndian.PutUint32(out[8:12], uint32(f.capacity))
	binary.LittleEndian.PutUint64(out[12:20], math.Float64bits(f.errorRate))
	copy(out[20:], bitBytes)
	return out, nil
}

// FromBytes reconstructs a BloomFilter from the spec §6 blob layout.
func FromBytes(data []byte) (*BloomFilter, error) {
	if len(data) < 20 {
		return nil, fmt.Errorf("papertrail: bloom filter blob too short")
	}
	size := uint(binary.LittleEndian.Uint32(data[0:4]))
	numHashes := uint(binary.LittleEndian.Uint32(data[4:8]))
	capacity := uint(binary.LittleEndian.Uint32(data[8:12]))
	errorRate := math.Float64frombits(binary.LittleEndian.Uint64(data[12:20]))
	bits := bitset.NewBitSetMem(size)
	if err := bits.SetBytes(data[20:]); err != nil {
		return nil, err
	}
	return &BloomFilter{capacity: capacity, errorRate: errorRate, size: size, numHashes: numHashes, bits: bits}, nil
}
