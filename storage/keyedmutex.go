package storage

import (
	"sync"

	"github.com/bigsnarfdude/papertrail-modern/internal"
)

// keyedMutex is a striped mutex keyed by a sketch key's hash: load-modify-
// store on the non-native sketches (Bloom, Top-K, Moments) isn't atomic at
// the KV layer, so concurrent updates to the same key must be serialized
// (spec §5). One lock per stripe, not one lock per key, bounds memory.
type keyedMutex struct {
	stripes []sync.Mutex
}

const numStripes = 256

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{stripes: make([]sync.Mutex, numStripes)}
}

func (k *keyedMutex) stripeFor(key string) *sync.Mutex {
	h1, _ := internal.Sum128([]byte(key))
	return &k.stripes[h1%uint64(len(k.stripes))]
}

func (k *keyedMutex) Lock(key string) {
	k.stripeFor(key).Lock()
}

func (k *keyedMutex) Unlock(key string) {
	k.stripeFor(key).Unlock()
}
