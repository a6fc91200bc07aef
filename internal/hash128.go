// Package internal holds the 128-bit MurmurHash3 (x64 variant), used for
// stripe selection in the keyed mutex, which doesn't need the spec-mandated
// 32-bit hash contract of package hash. It also holds RandomKey, a
// math/rand-based generator for ephemeral Redis key names.
package internal

import (
	"math/bits"
	"unsafe"
)

const (
	c1128     = 0x87c37b91114253d5
	c2128     = 0x4cf5ad432745937f
	block128  = 16
)

type digest128 struct {
	h1 uint64
	h2 uint64
}

func (d *digest128) bmix(p []byte, nblocks int) {
	h1, h2 := d.h1, d.h2

	for i := 0; i < nblocks; i++ {
		t := (*[2]uint64)(unsafe.Pointer(&p[i*16]))
		k1, k2 := t[0], t[1]

		k1 *= c1128
		k1 = bits.RotateLeft64(k1, 31)
		k1 *= c2128
		h1 ^= k1

		h1 = bits.RotateLeft64(h1, 27)
		h1 += h2
		h1 = h1*5 + 0x52dce729

		k2 *= c2128
		k2 = bits.RotateLeft64(k2, 33)
		k2 *= c1128
		h2 ^= k2

		h2 = bits.RotateLeft64(h2, 31)
		h2 += h1
		h2 = h2*5 + 0x38495ab5
	}
	d.h1, d.h2 = h1, h2
}

func (d *digest128) sum(tail []byte, dlen uint) (h1, h2 uint64) {
	h1, h2 = d.h1, d.h2

	var k1, k2 uint64
	switch len(tail) & 15 {
	case 15:
		k2 ^= uint64(tail[14]) << 48
		fallthrough
	case 14:
		k2 ^= uint64(tail[13]) << 40
		fallthrough
	case 13:
		k2 ^= uint64(tail[12]) << 32
		fallthrough
	case 12:
		k2 ^= uint64(tail[11]) << 24
		fallthrough
	case 11:
		k2 ^= uint64(tail[10]) << 16
		fallthrough
	case 10:
		k2 ^= uint64(tail[9]) << 8
		fallthrough
	case 9:
		k2 ^= uint64(tail[8])

		k2 *= c2128
		k2 = bits.RotateLeft64(k2, 33)
		k2 *= c1128
		h2 ^= k2
		fallthrough
	case 8:
		k1 ^= uint64(tail[7]) << 56
		fallthrough
	case 7:
		k1 ^= uint64(tail[6]) << 48
		fallthrough
	case 6:
		k1 ^= uint64(tail[5]) << 40
		fallthrough
	case 5:
		k1 ^= uint64(tail[4]) << 32
		fallthrough
	case 4:
		k1 ^= uint64(tail[3]) << 24
		fallthrough
	case 3:
		k1 ^= uint64(tail[2]) << 16
		fallthrough
	case 2:
		k1 ^= uint64(tail[1]) << 8
		fallthrough
	case 1:
		k1 ^= uint64(tail[0])
		k1 *= c1128
		k1 = bits.RotateLeft64(k1, 31)
		k1 *= c2128
		h1 ^= k1
	}

	h1 ^= uint64(dlen)
	h2 ^= uint64(dlen)

	h1 += h2
	h2 += h1

	h1 = fmix64(h1)
	h2 = fmix64(h2)

	h1 += h2
	h2 += h1

	return h1, h2
}

func fmix64(k uint64) uint64 {
	k ^= k >> 33
	k *= 0xff51afd7ed558ccd
	k ^= k >> 33
	k *= 0xc4ceb9fe1a85ec53
	k ^= k >> 33
	return k
}

// Sum128 returns the 128-bit MurmurHash3 (x64) of data as two uint64 halves.
func Sum128(data []byte) (h1 uint64, h2 uint64) {
	d := digest128{}
	dlen := len(data)
	nblocks := dlen / block128
	d.bmix(data, nblocks)
	tail := data[nblocks*block128:]
	return d.sum(tail, uint(dlen))
}
