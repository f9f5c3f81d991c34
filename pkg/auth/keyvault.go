package auth

import (
	"math/rand/v2"
	"strings"
	"sync"
	"sync/atomic"
)

// SelectMode picks how a key is chosen from a pool.
type SelectMode string

const (
	// SelectModeTurn rotates through the pool with a cursor shared by all
	// concurrent callers of the same pool string.
	SelectModeTurn SelectMode = "turn"

	// SelectModeRandom picks uniformly and independently per call.
	SelectModeRandom SelectMode = "random"
)

// poolSeparators are the accepted delimiters in an operator pool string.
// The full-width comma shows up when pools are pasted from CJK input.
var poolSeparators = []string{",", "，"}

// KeyStore is the cached rotation state for one pool string.
type KeyStore struct {
	keys   []string
	cursor atomic.Uint64
}

// Len returns the number of keys in the pool.
func (s *KeyStore) Len() int { return len(s.keys) }

// next returns keys in strictly increasing cursor order, modulo pool size.
// The cursor is a plain counter: a race costs at most a little rotation
// unfairness, never a wrong key.
func (s *KeyStore) next() string {
	n := s.cursor.Add(1) - 1
	return s.keys[n%uint64(len(s.keys))]
}

func (s *KeyStore) random() string {
	return s.keys[rand.IntN(len(s.keys))]
}

// Vault caches per-pool rotation state for the process lifetime, keyed by
// the exact pool string. Growth is bounded by the number of distinct pools
// an operator configures, not by request volume.
type Vault struct {
	mode SelectMode

	mu    sync.Mutex
	pools map[string]*KeyStore
}

// NewVault creates a Vault with the given selection mode; an unrecognized
// mode falls back to random.
func NewVault(mode SelectMode) *Vault {
	if mode != SelectModeTurn {
		mode = SelectModeRandom
	}
	return &Vault{mode: mode, pools: make(map[string]*KeyStore)}
}

// Pick selects one key from the pool string. An empty or all-blank pool
// yields "" so the caller can fall back to its own default credential.
func (v *Vault) Pick(pool string) string {
	store := v.store(pool)
	if store.Len() == 0 {
		return ""
	}
	if v.mode == SelectModeTurn {
		return store.next()
	}
	return store.random()
}

// store returns the cached KeyStore for pool, parsing it on first use.
func (v *Vault) store(pool string) *KeyStore {
	v.mu.Lock()
	defer v.mu.Unlock()

	if s, ok := v.pools[pool]; ok {
		return s
	}
	s := &KeyStore{keys: ParsePool(pool)}
	v.pools[pool] = s
	return s
}

// ParsePool splits a comma-delimited pool string (half or full width),
// trimming entries and discarding empties.
func ParsePool(pool string) []string {
	normalized := pool
	for _, sep := range poolSeparators[1:] {
		normalized = strings.ReplaceAll(normalized, sep, poolSeparators[0])
	}

	var keys []string
	for part := range strings.SplitSeq(normalized, poolSeparators[0]) {
		if key := strings.TrimSpace(part); key != "" {
			keys = append(keys, key)
		}
	}
	return keys
}
