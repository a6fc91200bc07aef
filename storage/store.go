// Package storage implements the storage layer (C8): a thin layer over a
// TTL'd KV collaborator (Redis) that combines native HyperLogLog operations
// with load-modify-store for the custom sketches (Bloom, Top-K, Moments),
// per-key-serialized via a keyed mutex (spec §5).
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/bigsnarfdude/papertrail-modern/apperrors"
	"github.com/bigsnarfdude/papertrail-modern/bitset"
	"github.com/bigsnarfdude/papertrail-modern/bucket"
	"github.com/bigsnarfdude/papertrail-modern/sketch/bloom"
	"github.com/bigsnarfdude/papertrail-modern/sketch/moments"
	"github.com/bigsnarfdude/papertrail-modern/sketch/topk"
	"github.com/redis/go-redis/v9"
)

// Store is the Redis-backed storage layer.
type Store struct {
	client *redis.Client
	locks  *keyedMutex

	bloomCapacity  uint
	bloomErrorRate float64
	topKSize       uint
	cmsWidth       uint
	cmsDepth       uint

	largeBloomCapacity  uint
	largeBloomErrorRate float64
}

// Option configures a Store's default sketch parameters.
type Option func(*Store)

// WithBloomParameters sets the (capacity, errorRate) used when a Bloom
// filter is created on first write for a key.
func WithBloomParameters(capacity uint, errorRate float64) Option {
	return func(s *Store) {
		s.bloomCapacity = capacity
		s.bloomErrorRate = errorRate
	}
}

// WithTopKSize sets the k bound used when a Top-K tracker is created on
// first write for a key.
func WithTopKSize(k uint) Option {
	return func(s *Store) {
		s.topKSize = k
	}
}

// WithLargeBloomParameters sets the (capacity, errorRate) used by the
// Redis-native Bloom operations (AddBloomRedis/CheckBloomRedis and their
// cross-system combines). These filters are sized for capacities too large
// to round-trip through the Go process on every write, so their bits live
// directly in Redis via SETBIT/GETBIT rather than in a SET blob.
func WithLargeBloomParameters(capacity uint, errorRate float64) Option {
	return func(s *Store) {
		s.largeBloomCapacity = capacity
		s.largeBloomErrorRate = errorRate
	}
}

// New creates a Store over client with sensible sketch defaults
// (capacity=1_000_000, errorRate=0.001, topK=100), overridable via options.
func New(client *redis.Client, opts ...Option) *Store {
	s := &Store{
		client:              client,
		locks:               newKeyedMutex(),
		bloomCapacity:       1_000_000,
		bloomErrorRate:      0.001,
		topKSize:            100,
		cmsWidth:            2048,
		cmsDepth:            5,
		largeBloomCapacity:  10_000_000,
		largeBloomErrorRate: 0.01,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) largeBloomDims() (size, numHashes uint) {
	size = bloom.CalculateSize(s.largeBloomCapacity, s.largeBloomErrorRate)
	numHashes = bloom.CalculateNumHashes(size, s.largeBloomCapacity)
	return size, numHashes
}

// largeBloomFilter wraps the Redis-backed bitset at key (SETBIT/GETBIT
// under that key directly, no blob) as a BloomFilter sized per the
// large-bloom parameters. Keys are created lazily by Redis itself on first
// SETBIT; a never-written key behaves as all-zero bits.
func (s *Store) largeBloomFilter(key string) (*bloom.BloomFilter, error) {
	size, numHashes := s.largeBloomDims()
	bits := bitset.FromRedisKeyWithClient(s.client, key, size)
	return bloom.NewWithBitSet(s.largeBloomCapacity, s.largeBloomErrorRate, size, numHashes, bits)
}

func wrapTransient(op string, err error) error {
	if err == nil {
		return nil
	}
	return apperrors.Transient(op, err)
}

// ============================
// HyperLogLog — native Redis HLL
// ============================

// AddHLL issues a native PFADD for value at each of windows, keyed by
// (metric, system, window, bucket(ts)), resetting each key's TTL.
func (s *Store) AddHLL(ctx context.Context, metric, system, value string, ts time.Time, windows []bucket.Window) error {
	for _, w := range windows {
		key, err := bucket.Key(bucket.KindHLL, metric, system, w, ts)
		if err != nil {
			return apperrors.Validation("invalid hll key: %v", err)
		}
		if err := s.client.PFAdd(ctx, key, value).Err(); err != nil {
			return wrapTransient("pfadd", err)
		}
		ttl, err := bucket.Retention(w)
		if err != nil {
			return apperrors.Validation("invalid window: %v", err)
		}
		if err := s.client.Expire(ctx, key, ttl).Err(); err != nil {
			return wrapTransient("expire", err)
		}
	}
	return nil
}

// GetHLLCardinality returns the native PFCOUNT estimate for a key. A
// missing key behaves as zero cardinality, not an error.
func (s *Store) GetHLLCardinality(ctx context.Context, metric, system string, w bucket.Window, ts time.Time) (uint64, error) {
	key, err := bucket.Key(bucket.KindHLL, metric, system, w, ts)
	if err != nil {
		return 0, apperrors.Validation("invalid hll key: %v", err)
	}
	count, err := s.client.PFCount(ctx, key).Result()
	if err != nil {
		return 0, wrapTransient("pfcount", err)
	}
	return uint64(count), nil
}

// MergeHLL runs a native PFMERGE of srcKeys into destKey and returns the
// merged cardinality. Per the design notes, this always returns a plain
// count — it never attempts to reconstruct a portable HyperLogLog from
// native Redis register state.
func (s *Store) MergeHLL(ctx context.Context, srcKeys []string, destKey string) (uint64, error) {
	if len(srcKeys) == 0 {
		return 0, apperrors.Validation("mergeHLL requires at least one source key")
	}
	if err := s.client.PFMerge(ctx, destKey, srcKeys...).Err(); err != nil {
		return 0, wrapTransient("pfmerge", err)
	}
	count, err := s.client.PFCount(ctx, destKey).Result()
	if err != nil {
		return 0, wrapTransient("pfcount", err)
	}
	return uint64(count), nil
}

// ============================
// Bloom filter — load-modify-store
// ============================

// AddBloom loads the Bloom filter blob at the derived key (or creates an
// empty one on miss), adds value, and re-stores it with the window's TTL.
// The whole sequence is serialized per key via the keyed mutex.
func (s *Store) AddBloom(ctx context.Context, metric, system, value string, ts time.Time, w bucket.Window) error {
	key, err := bucket.Key(bucket.KindBloom, metric, system, w, ts)
	if err != nil {
		return apperrors.Validation("invalid bloom key: %v", err)
	}
	s.locks.Lock(key)
	defer s.locks.Unlock(key)

	filter, err := s.loadBloom(ctx, key)
	if err != nil {
		return err
	}
	if err := filter.Add([]byte(value)); err != nil {
		return apperrors.Internal("bloom add failed", err)
	}
	return s.saveBloom(ctx, key, filter, w)
}

// CheckBloom reports whether value may be present in the Bloom filter at
// the derived key. A missing key is treated as "definitely absent".
func (s *Store) CheckBloom(ctx context.Context, metric, system, value string, ts time.Time, w bucket.Window) (bool, error) {
	key, err := bucket.Key(bucket.KindBloom, metric, system, w, ts)
	if err != nil {
		return false, apperrors.Validation("invalid bloom key: %v", err)
	}
	blob, err := s.getBlob(ctx, key)
	if err != nil {
		return false, err
	}
	if blob == nil {
		return false, nil
	}
	filter, err := bloom.FromBytes(blob)
	if err != nil {
		return false, apperrors.Internal("corrupt bloom blob", err)
	}
	return filter.Contains([]byte(value))
}

func (s *Store) loadBloom(ctx context.Context, key string) (*bloom.BloomFilter, error) {
	blob, err := s.getBlob(ctx, key)
	if err != nil {
		return nil, err
	}
	if blob == nil {
		filter, err := bloom.New(s.bloomCapacity, s.bloomErrorRate)
		if err != nil {
			return nil, apperrors.Internal("default bloom filter construction failed", err)
		}
		return filter, nil
	}
	filter, err := bloom.FromBytes(blob)
	if err != nil {
		return nil, apperrors.Internal("corrupt bloom blob", err)
	}
	return filter, nil
}

func (s *Store) saveBloom(ctx context.Context, key string, filter *bloom.BloomFilter, w bucket.Window) error {
	blob, err := filter.Bytes()
	if err != nil {
		return apperrors.Internal("bloom serialization failed", err)
	}
	ttl, err := bucket.Retention(w)
	if err != nil {
		return apperrors.Validation("invalid window: %v", err)
	}
	if err := s.client.Set(ctx, key, blob, ttl).Err(); err != nil {
		return wrapTransient("setex", err)
	}
	return nil
}

// ============================
// Bloom filter — Redis-native bits, for capacities too large to blob
// ============================

// AddBloomRedis sets value's k seeded bits directly in Redis via SETBIT,
// under the derived key, without ever pulling the filter into the Go
// process. Intended for metrics whose cardinality is too large for the
// load-modify-store path (AddBloom) to stay cheap.
func (s *Store) AddBloomRedis(ctx context.Context, metric, system, value string, ts time.Time, w bucket.Window) error {
	key, err := bucket.Key(bucket.KindBloom, metric, system, w, ts)
	if err != nil {
		return apperrors.Validation("invalid bloom key: %v", err)
	}
	filter, err := s.largeBloomFilter(key)
	if err != nil {
		return apperrors.Internal("large bloom filter construction failed", err)
	}
	if err := filter.Add([]byte(value)); err != nil {
		return wrapTransient("setbit", err)
	}
	ttl, err := bucket.Retention(w)
	if err != nil {
		return apperrors.Validation("invalid window: %v", err)
	}
	if err := s.client.Expire(ctx, key, ttl).Err(); err != nil {
		return wrapTransient("expire", err)
	}
	return nil
}

// CheckBloomRedis reports whether value may be present in the Redis-native
// Bloom filter at the derived key. A key that was never written behaves as
// all-zero bits, i.e. "definitely absent".
func (s *Store) CheckBloomRedis(ctx context.Context, metric, system, value string, ts time.Time, w bucket.Window) (bool, error) {
	key, err := bucket.Key(bucket.KindBloom, metric, system, w, ts)
	if err != nil {
		return false, apperrors.Validation("invalid bloom key: %v", err)
	}
	filter, err := s.largeBloomFilter(key)
	if err != nil {
		return false, apperrors.Internal("large bloom filter construction failed", err)
	}
	present, err := filter.Contains([]byte(value))
	if err != nil {
		return false, wrapTransient("getbit", err)
	}
	return present, nil
}

// combineBloomRedis folds the Redis-native Bloom filters for (metric,
// system, window, ts) across systems with combine (bitset.Union or
// bitset.Intersection, both BITOP-backed), then reports whether value is
// present in the combined filter.
func (s *Store) combineBloomRedis(ctx context.Context, metric string, systems []string, value string, ts time.Time, w bucket.Window, combine func(a, b *bitset.BitSetRedis) (*bitset.BitSetRedis, error)) (bool, error) {
	if len(systems) == 0 {
		return false, apperrors.Validation("combineBloomRedis requires at least one system")
	}
	size, numHashes := s.largeBloomDims()
	acc, err := s.redisBloomBits(metric, systems[0], ts, w, size)
	if err != nil {
		return false, err
	}
	for _, system := range systems[1:] {
		bits, err := s.redisBloomBits(metric, system, ts, w, size)
		if err != nil {
			return false, err
		}
		merged, err := combine(acc, bits)
		if err != nil {
			return false, apperrors.Internal("bloom combine failed", err)
		}
		acc = merged
	}
	filter, err := bloom.NewWithBitSet(s.largeBloomCapacity, s.largeBloomErrorRate, size, numHashes, acc)
	if err != nil {
		return false, apperrors.Internal("large bloom filter construction failed", err)
	}
	present, err := filter.Contains([]byte(value))
	if err != nil {
		return false, wrapTransient("getbit", err)
	}
	return present, nil
}

func (s *Store) redisBloomBits(metric, system string, ts time.Time, w bucket.Window, size uint) (*bitset.BitSetRedis, error) {
	key, err := bucket.Key(bucket.KindBloom, metric, system, w, ts)
	if err != nil {
		return nil, apperrors.Validation("invalid bloom key: %v", err)
	}
	return bitset.FromRedisKeyWithClient(s.client, key, size), nil
}

// CrossSystemBloomCheck reports whether value may have been seen by ANY of
// the named systems within window, by BITOP OR-ing their Redis-native
// Bloom filters before testing membership.
func (s *Store) CrossSystemBloomCheck(ctx context.Context, metric string, systems []string, value string, ts time.Time, w bucket.Window) (bool, error) {
	return s.combineBloomRedis(ctx, metric, systems, value, ts, w, bitset.Union)
}

// AllSystemsBloomCheck reports whether value may have been seen by EVERY
// one of the named systems within window, by BITOP AND-ing their
// Redis-native Bloom filters before testing membership.
func (s *Store) AllSystemsBloomCheck(ctx context.Context, metric string, systems []string, value string, ts time.Time, w bucket.Window) (bool, error) {
	return s.combineBloomRedis(ctx, metric, systems, value, ts, w, bitset.Intersection)
}

// ============================
// Top-K — load-modify-store
// ============================

// AddTopK loads the Top-K tracker at the derived key (or creates an empty
// one on miss), applies the Space-Saving update for value, and re-stores.
func (s *Store) AddTopK(ctx context.Context, metric, system, value string, count int64, ts time.Time, w bucket.Window) error {
	key, err := bucket.Key(bucket.KindTopK, metric, system, w, ts)
	if err != nil {
		return apperrors.Validation("invalid topk key: %v", err)
	}
	s.locks.Lock(key)
	defer s.locks.Unlock(key)

	tracker, err := s.loadTopK(ctx, key)
	if err != nil {
		return err
	}
	tracker.Add(value, count)
	return s.saveTopK(ctx, key, tracker, w)
}

// GetTopK returns up to k items at the derived key, sorted by count
// descending. A missing key returns an empty slice, not an error.
func (s *Store) GetTopK(ctx context.Context, metric, system string, k int, ts time.Time, w bucket.Window) ([]topk.Entry, error) {
	key, err := bucket.Key(bucket.KindTopK, metric, system, w, ts)
	if err != nil {
		return nil, apperrors.Validation("invalid topk key: %v", err)
	}
	blob, err := s.getBlob(ctx, key)
	if err != nil {
		return nil, err
	}
	if blob == nil {
		return nil, nil
	}
	tracker, err := topk.FromBytes(blob)
	if err != nil {
		return nil, apperrors.Internal("corrupt topk blob", err)
	}
	entries := tracker.Top()
	if k >= 0 && k < len(entries) {
		entries = entries[:k]
	}
	return entries, nil
}

func (s *Store) loadTopK(ctx context.Context, key string) (*topk.SpaceSaving, error) {
	blob, err := s.getBlob(ctx, key)
	if err != nil {
		return nil, err
	}
	if blob == nil {
		tracker, err := topk.NewSpaceSaving(s.topKSize)
		if err != nil {
			return nil, apperrors.Internal("default topk construction failed", err)
		}
		return tracker, nil
	}
	tracker, err := topk.FromBytes(blob)
	if err != nil {
		return nil, apperrors.Internal("corrupt topk blob", err)
	}
	return tracker, nil
}

func (s *Store) saveTopK(ctx context.Context, key string, tracker *topk.SpaceSaving, w bucket.Window) error {
	ttl, err := bucket.Retention(w)
	if err != nil {
		return apperrors.Validation("invalid window: %v", err)
	}
	if err := s.client.Set(ctx, key, tracker.Bytes(), ttl).Err(); err != nil {
		return wrapTransient("setex", err)
	}
	return nil
}

// ============================
// Moments — load-modify-store
// ============================

// AddMoments loads the Moments summary at the derived key (or creates an
// empty one on miss), folds in value, and re-stores it.
func (s *Store) AddMoments(ctx context.Context, metric, system string, value float64, ts time.Time, w bucket.Window) error {
	key, err := bucket.Key(bucket.KindMoments, metric, system, w, ts)
	if err != nil {
		return apperrors.Validation("invalid moments key: %v", err)
	}
	s.locks.Lock(key)
	defer s.locks.Unlock(key)

	current, err := s.loadMoments(ctx, key)
	if err != nil {
		return err
	}
	current.Add(value)
	ttl, err := bucket.Retention(w)
	if err != nil {
		return apperrors.Validation("invalid window: %v", err)
	}
	if err := s.client.Set(ctx, key, current.Bytes(), ttl).Err(); err != nil {
		return wrapTransient("setex", err)
	}
	return nil
}

// GetMoments returns the Moments summary at the derived key, or an empty
// one on miss.
func (s *Store) GetMoments(ctx context.Context, metric, system string, ts time.Time, w bucket.Window) (*moments.Moments, error) {
	key, err := bucket.Key(bucket.KindMoments, metric, system, w, ts)
	if err != nil {
		return nil, apperrors.Validation("invalid moments key: %v", err)
	}
	return s.loadMoments(ctx, key)
}

func (s *Store) loadMoments(ctx context.Context, key string) (*moments.Moments, error) {
	blob, err := s.getBlob(ctx, key)
	if err != nil {
		return nil, err
	}
	if blob == nil {
		return moments.New(), nil
	}
	m, err := moments.FromBytes(blob)
	if err != nil {
		return nil, apperrors.Internal("corrupt moments blob", err)
	}
	return m, nil
}

// ============================
// Event stream pub/sub
// ============================

// Publish JSON-marshals event and publishes it on the events channel.
func (s *Store) Publish(ctx context.Context, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return apperrors.Validation("event is not JSON-serializable: %v", err)
	}
	if err := s.client.Publish(ctx, bucket.EventStreamKey(), payload).Err(); err != nil {
		return wrapTransient("publish", err)
	}
	return nil
}

// Subscribe returns a Redis PubSub subscribed to the events channel. The
// caller (an SSE fan-out adapter, external to this module) drains it.
func (s *Store) Subscribe(ctx context.Context) *redis.PubSub {
	return s.client.Subscribe(ctx, bucket.EventStreamKey())
}

// ============================
// Compliance snapshots
// ============================

// SaveComplianceSnapshot stores data as JSON under the date's snapshot key
// with a fixed 90-day retention.
func (s *Store) SaveComplianceSnapshot(ctx context.Context, date time.Time, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return apperrors.Validation("snapshot is not JSON-serializable: %v", err)
	}
	key := bucket.ComplianceSnapshotKey(date)
	if err := s.client.Set(ctx, key, payload, 90*24*time.Hour).Err(); err != nil {
		return wrapTransient("setex", err)
	}
	return nil
}

// GetComplianceSnapshot returns the raw JSON for date's snapshot. Unlike the
// sketch getters, where absence is indistinguishable from "zero", a missing
// snapshot is a real gap in the compliance record, so it is reported via
// apperrors.NotFoundError rather than folded into a zero value.
func (s *Store) GetComplianceSnapshot(ctx context.Context, date time.Time) ([]byte, error) {
	key := bucket.ComplianceSnapshotKey(date)
	blob, err := s.getBlob(ctx, key)
	if err != nil {
		return nil, err
	}
	if blob == nil {
		return nil, apperrors.NotFound(key)
	}
	return blob, nil
}

// ============================
// Utility
// ============================

// Keys returns all keys matching pattern.
func (s *Store) Keys(ctx context.Context, pattern string) ([]string, error) {
	keys, err := s.client.Keys(ctx, pattern).Result()
	if err != nil {
		return nil, wrapTransient("keys", err)
	}
	return keys, nil
}

// Delete removes the given keys, returning the number actually removed.
func (s *Store) Delete(ctx context.Context, keys ...string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	n, err := s.client.Del(ctx, keys...).Result()
	if err != nil {
		return 0, wrapTransient("delete", err)
	}
	return n, nil
}

// getBlob fetches key's raw bytes, returning (nil, nil) on a miss rather
// than surfacing redis.Nil as an error — queries treat absence as zero or
// empty (spec §7 NotFound semantics), not a failure.
func (s *Store) getBlob(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapTransient("get", err)
	}
	return data, nil
}
