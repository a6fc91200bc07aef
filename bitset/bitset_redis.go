package bitset

import (
	"context"
	"fmt"

	papertrail "github.com/bigsnarfdude/papertrail-modern"
	"github.com/bigsnarfdude/papertrail-modern/internal"
	"github.com/redis/go-redis/v9"
)

// BitSetRedis is a live, incrementally-updated Redis-backed IBitSet: every
// bit lives at SETBIT/GETBIT offsets under a single string key. This is an
// alternative backing for very large Bloom filters that shouldn't be pulled
// wholesale into process memory on every update; the storage layer (C8)
// uses it for its Redis-native Bloom operations, keyed by the same bucket
// key a load-modify-store Bloom blob would use, via FromRedisKeyWithClient.
type BitSetRedis struct {
	size uint
	key  string
	conn *redis.Client
}

// client returns b's bound client, falling back to the process-wide
// singleton for bitsets built via the no-client constructors.
func (b *BitSetRedis) client() *redis.Client {
	if b.conn != nil {
		return b.conn
	}
	return papertrail.GetRedisClient()
}

// NewBitSetRedis creates a fresh, zero-filled bitset of size under a random
// key on the process-wide Redis client.
func NewBitSetRedis(size uint) *BitSetRedis {
	return NewBitSetRedisWithClient(papertrail.GetRedisClient(), size)
}

// NewBitSetRedisWithClient is NewBitSetRedis against an explicit client,
// for callers (e.g. storage.Store) that hold their own *redis.Client
// instead of relying on the package-wide singleton.
func NewBitSetRedisWithClient(client *redis.Client, size uint) *BitSetRedis {
	ctx := context.Background()
	key := internal.RandomKey(16)
	numBytes := (size + 7) / 8
	client.Set(ctx, key, make([]byte, numBytes), 0)
	return &BitSetRedis{size: size, key: key, conn: client}
}

func FromDataRedis(data []uint64) (*BitSetRedis, error) {
	size := uint(len(data) * 64)
	b := NewBitSetRedis(size)
	buf := make([]byte, len(data)*8)
	for i, v := range data {
		for byteIdx := 0; byteIdx < 8; byteIdx++ {
			buf[i*8+byteIdx] = byte(v >> (8 * byteIdx))
		}
	}
	if err := b.client().Set(context.Background(), b.key, buf, 0).Err(); err != nil {
		return nil, fmt.Errorf("papertrail: error seeding redis bitset: %v", err)
	}
	return b, nil
}

// FromRedisKey wraps an existing key on the process-wide Redis client as a
// bitset, without creating or resizing anything. A key that was never
// written behaves as all-zero bits.
func FromRedisKey(key string, size uint) *BitSetRedis {
	return FromRedisKeyWithClient(papertrail.GetRedisClient(), key, size)
}

// FromRedisKeyWithClient is FromRedisKey against an explicit client.
func FromRedisKeyWithClient(client *redis.Client, key string, size uint) *BitSetRedis {
	return &BitSetRedis{size: size, key: key, conn: client}
}

func (b *BitSetRedis) Size() uint {
	return b.size
}

func (b *BitSetRedis) Key() string {
	return b.key
}

func (b *BitSetRedis) Has(index uint) (bool, error) {
	val, err := b.client().GetBit(context.Background(), b.key, int64(index)).Result()
	if err != nil {
		return false, fmt.Errorf("papertrail: error reading bit %d: %v", index, err)
	}
	return val != 0, nil
}

func (b *BitSetRedis) Insert(index uint) (bool, error) {
	err := b.client().SetBit(context.Background(), b.key, int64(index), 1).Err()
	if err != nil {
		return false, fmt.Errorf("papertrail: error setting bit %d: %v", index, err)
	}
	return true, nil
}

func (b *BitSetRedis) InsertMulti(indexes []uint) (bool, error) {
	if len(indexes) == 0 {
		return false, fmt.Errorf("papertrail: at least 1 index is required")
	}
	ctx := context.Background()
	pipe := b.client().Pipeline()
	for _, idx := range indexes {
		pipe.SetBit(ctx, b.key, int64(idx), 1)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("papertrail: error setting bits: %v", err)
	}
	return true, nil
}

func (b *BitSetRedis) Equals(otherBitSet IBitSet) (bool, error) {
	other, ok := otherBitSet.(*BitSetRedis)
	if !ok {
		return false, fmt.Errorf("papertrail: invalid bitset type, expected *BitSetRedis")
	}
	aVal, err := b.client().Get(context.Background(), b.key).Result()
	if err != nil {
		return false, err
	}
	bVal, err := b.client().Get(context.Background(), other.key).Result()
	if err != nil {
		return false, err
	}
	return aVal == bVal, nil
}

func (b *BitSetRedis) BitCount() (uint, error) {
	val, err := b.client().BitCount(context.Background(), b.key, &redis.BitCount{Start: 0, End: -1}).Result()
	if err != nil {
		return 0, err
	}
	return uint(val), nil
}

// Union stores the bitwise OR of a and b's backing keys at a fresh key
// (created on a's client) and returns the resulting bitset. Both must
// share size.
func Union(a, b *BitSetRedis) (*BitSetRedis, error) {
	if a.size != b.size {
		return nil, fmt.Errorf("papertrail: cannot union bitsets of different size %d, %d", a.size, b.size)
	}
	dest := NewBitSetRedisWithClient(a.client(), a.size)
	if err := a.client().BitOpOr(context.Background(), dest.key, a.key, b.key).Err(); err != nil {
		return nil, fmt.Errorf("papertrail: error computing bitset union: %v", err)
	}
	return dest, nil
}

// Intersection stores the bitwise AND of a and b's backing keys at a fresh
// key (created on a's client) and returns the resulting bitset. Both must
// share size.
func Intersection(a, b *BitSetRedis) (*BitSetRedis, error) {
	if a.size != b.size {
		return nil, fmt.Errorf("papertrail: cannot intersect bitsets of different size %d, %d", a.size, b.size)
	}
	dest := NewBitSetRedisWithClient(a.client(), a.size)
	if err := a.client().BitOpAnd(context.Background(), dest.key, a.key, b.key).Err(); err != nil {
		return nil, fmt.Errorf("papertrail: error computing bitset intersection: %v", err)
	}
	return dest, nil
}

// Bytes packs the bit array into the spec §6 layout: bit i at byte i/8, bit
// (i%8), LSB-first. Computed bit-by-bit via a pipelined GETBIT scan since
// Redis's own string byte order (MSB-first per byte) doesn't match it.
func (b *BitSetRedis) Bytes() ([]byte, error) {
	ctx := context.Background()
	pipe := b.client().Pipeline()
	cmds := make([]*redis.IntCmd, b.size)
	for i := uint(0); i < b.size; i++ {
		cmds[i] = pipe.GetBit(ctx, b.key, int64(i))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("papertrail: error exporting redis bitset: %v", err)
	}
	out := make([]byte, (b.size+7)/8)
	for i, cmd := range cmds {
		if cmd.Val() != 0 {
			out[uint(i)/8] |= 1 << (uint(i) % 8)
		}
	}
	return out, nil
}

// SetBytes loads the spec §6 packed-bit layout into this bitset.
func (b *BitSetRedis) SetBytes(data []byte) error {
	ctx := context.Background()
	pipe := b.client().Pipeline()
	for i := uint(0); i < b.size; i++ {
		byteIdx := i / 8
		if byteIdx >= uint(len(data)) {
			break
		}
		if data[byteIdx]&(1<<(i%8)) != 0 {
			pipe.SetBit(ctx, b.key, int64(i), 1)
		}
	}
	_, err := pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("papertrail: error importing redis bitset: %v", err)
	}
	return nil
}
