// Package cache is the best-effort prompt-response cache. Entries live in a
// shared kv.Store under a reserved key prefix and are evicted oldest-first by
// write time when the medium runs out of room.
package cache

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/pario-ai/inserter/pkg/kv"
	"github.com/pario-ai/inserter/pkg/models"
)

// DefaultEvictFraction is the share of entries dropped when a write fails.
const DefaultEvictFraction = 0.2

const entryDelimiter = "|"

// Cache is an exact-match prompt cache over a kv.Store.
type Cache struct {
	store         kv.Store
	prefix        string
	evictFraction float64
	now           func() time.Time
	log           zerolog.Logger

	hits    atomic.Int64
	misses  atomic.Int64
	evicted atomic.Int64
}

// Option configures a Cache.
type Option func(*Cache)

// WithPrefix sets the reserved key prefix.
func WithPrefix(prefix string) Option {
	return func(c *Cache) { c.prefix = prefix }
}

// WithEvictFraction sets the share of entries evicted after a failed write.
func WithEvictFraction(f float64) Option {
	return func(c *Cache) { c.evictFraction = f }
}

// WithClock overrides the time source used to stamp entries.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Cache) { c.log = log }
}

// New creates a Cache over store.
func New(store kv.Store, opts ...Option) *Cache {
	c := &Cache{
		store:         store,
		prefix:        DefaultPrefix,
		evictFraction: DefaultEvictFraction,
		now:           time.Now,
		log:           zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Key returns the cache key for prompt under this cache's prefix.
func (c *Cache) Key(prompt string) string {
	return DeriveKey(c.prefix, prompt)
}

// Prefix returns the reserved key prefix.
func (c *Cache) Prefix() string {
	return c.prefix
}

// Get returns the cached response for prompt. Read errors and malformed
// entries count as a miss.
func (c *Cache) Get(prompt string) (string, bool) {
	key := c.Key(prompt)
	raw, ok, err := c.store.Get(key)
	if err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("cache read failed")
		c.misses.Add(1)
		return "", false
	}
	if !ok {
		c.misses.Add(1)
		return "", false
	}

	_, text, ok := decodeEntry(raw)
	if !ok {
		c.log.Debug().Str("key", key).Msg("ignoring malformed cache entry")
		c.misses.Add(1)
		return "", false
	}

	c.hits.Add(1)
	return text, true
}

// Put stores response for prompt. A failed write triggers eviction and is
// then dropped; it is never reported to the caller.
func (c *Cache) Put(prompt, response string) {
	key := c.Key(prompt)
	err := c.store.Set(key, encodeEntry(c.now(), response))
	if err == nil {
		return
	}

	c.log.Warn().Err(err).Str("key", key).Msg("cache write failed, evicting oldest entries")
	removed, evictErr := c.EvictOldest(c.evictFraction)
	if evictErr != nil {
		c.log.Warn().Err(evictErr).Msg("cache eviction failed")
		return
	}
	c.log.Debug().Int("removed", removed).Msg("cache eviction done")
}

type agedKey struct {
	key string
	ts  int64
}

// EvictOldest removes the ceil(n*fraction) entries with the oldest write
// timestamps. Entries whose timestamp cannot be parsed sort first. fraction
// is clamped to [0, 1].
func (c *Cache) EvictOldest(fraction float64) (int, error) {
	keys, err := c.store.ListKeysWithPrefix(c.prefix)
	if err != nil {
		return 0, fmt.Errorf("cache evict list: %w", err)
	}

	aged := make([]agedKey, 0, len(keys))
	for _, k := range keys {
		var ts int64
		if raw, ok, err := c.store.Get(k); err == nil && ok {
			ts = parseTimestamp(raw)
		}
		aged = append(aged, agedKey{key: k, ts: ts})
	}
	sort.SliceStable(aged, func(i, j int) bool {
		if aged[i].ts != aged[j].ts {
			return aged[i].ts < aged[j].ts
		}
		return aged[i].key < aged[j].key
	})

	n := evictCount(len(aged), fraction)
	var errs []error
	removed := 0
	for _, a := range aged[:n] {
		if err := c.store.Remove(a.key); err != nil {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	c.evicted.Add(int64(removed))

	if len(errs) > 0 {
		return removed, fmt.Errorf("cache evict: %w", errors.Join(errs...))
	}
	return removed, nil
}

// ClearAll removes every entry under the prefix and nothing else.
func (c *Cache) ClearAll() (int, error) {
	keys, err := c.store.ListKeysWithPrefix(c.prefix)
	if err != nil {
		return 0, fmt.Errorf("cache clear list: %w", err)
	}

	var errs []error
	removed := 0
	for _, k := range keys {
		if err := c.store.Remove(k); err != nil {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	if len(errs) > 0 {
		return removed, fmt.Errorf("cache clear: %w", errors.Join(errs...))
	}
	return removed, nil
}

// Stats returns cache performance metrics.
func (c *Cache) Stats() (models.CacheStats, error) {
	keys, err := c.store.ListKeysWithPrefix(c.prefix)
	if err != nil {
		return models.CacheStats{}, fmt.Errorf("cache stats: %w", err)
	}
	return models.CacheStats{
		Entries: int64(len(keys)),
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Evicted: c.evicted.Load(),
	}, nil
}

func evictCount(total int, fraction float64) int {
	switch {
	case fraction <= 0 || total == 0:
		return 0
	case fraction >= 1:
		return total
	}
	// The epsilon absorbs float error in products like 10*0.2.
	n := int(math.Ceil(float64(total)*fraction - 1e-9))
	return min(n, total)
}

func encodeEntry(at time.Time, text string) string {
	return strconv.FormatInt(at.UnixMilli(), 10) + entryDelimiter + text
}

// decodeEntry splits on the first delimiter only, so text may contain it. An
// unparsable timestamp decodes as 0.
func decodeEntry(raw string) (int64, string, bool) {
	head, text, ok := strings.Cut(raw, entryDelimiter)
	if !ok {
		return 0, "", false
	}
	ts, err := strconv.ParseInt(head, 10, 64)
	if err != nil {
		return 0, text, true
	}
	return ts, text, true
}

func parseTimestamp(raw string) int64 {
	ts, _, _ := decodeEntry(raw)
	return ts
}
