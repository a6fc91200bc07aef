package bitset

import (
	"fmt"

	"github.com/bits-and-blooms/bitset"
)

// BitSetMem is the in-memory IBitSet, backed by the teacher's bit-array
// library (github.com/bits-and-blooms/bitset).
type BitSetMem struct {
	set  *bitset.BitSet
	size uint
}

func NewBitSetMem(size uint) *BitSetMem {
	return &BitSetMem{bitset.New(size), size}
}

func FromDataMem(data []uint64) *BitSetMem {
	return &BitSetMem{bitset.From(data), uint(len(data) * 64)}
}

func (b *BitSetMem) Size() uint {
	return b.size
}

func (b *BitSetMem) Has(index uint) (bool, error) {
	return b.set.Test(index), nil
}

func (b *BitSetMem) Insert(index uint) (bool, error) {
	b.set.Set(index)
	return true, nil
}

func (b *BitSetMem) InsertMulti(indexes []uint) (bool, error) {
	for _, i := range indexes {
		b.set.Set(i)
	}
	return true, nil
}

func (b *BitSetMem) BitCount() (uint, error) {
	return b.set.Count(), nil
}

func (b *BitSetMem) Equals(otherBitSet IBitSet) (bool, error) {
	second, ok := otherBitSet.(*BitSetMem)
	if !ok {
		return false, fmt.Errorf("papertrail: invalid bitset type, expected *BitSetMem")
	}
	return b.set.Equal(second.set), nil
}

// Union returns a new BitSetMem holding the bitwise OR of b and other.
func (b *BitSetMem) Union(other *BitSetMem) (*BitSetMem, error) {
	if b.size != other.size {
		return nil, fmt.Errorf("papertrail: cannot union bitsets of different size %d, %d", b.size, other.size)
	}
	return &BitSetMem{set: b.set.Union(other.set), size: b.size}, nil
}

// Intersection returns a new BitSetMem holding the bitwise AND of b and other.
func (b *BitSetMem) Intersection(other *BitSetMem) (*BitSetMem, error) {
	if b.size != other.size {
		return nil, fmt.Errorf("papertrail: cannot intersect bitsets of different size %d, %d", b.size, other.size)
	}
	return &BitSetMem{set: b.set.Intersection(other.set), size: b.size}, nil
}

// Bytes packs the bit array into the spec §6 layout: bit i at byte i/8, bit
// (i%8), LSB-first.
func (b *BitSetMem) Bytes() ([]byte, error) {
	numBytes := (b.size + 7) / 8
	out := make([]byte, numBytes)
	for i := uint(0); i < b.size; i++ {
		if b.set.Test(i) {
			out[i/8] |= 1 << (i % 8)
		}
	}
	return out, nil
}

// SetBytes loads the spec §6 packed-bit layout into this bitset, which must
// already be sized via NewBitSetMem.
func (b *BitSetMem) SetBytes(data []byte) error {
	for i := uint(0); i < b.size; i++ {
		byteIdx := i / 8
		if byteIdx >= uint(len(data)) {
			break
		}
		if data[byteIdx]&(1<<(i%8)) != 0 {
			b.set.Set(i)
		}
	}
	return nil
}
