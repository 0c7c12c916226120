package cloudjack

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/juju/clock"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// CacheKey identifies a client by provider, service and configuration.
type CacheKey string

// NewCacheKey derives the key for cfg. Configurations with equal field
// values produce equal keys regardless of insertion order. Raw values do
// not appear in the key, only their digest.
func NewCacheKey(provider CloudProvider, service ServiceName, cfg *Config) CacheKey {
	var canonical []byte
	if cfg != nil {
		canonical = cfg.canonical()
	}
	sum := sha256.Sum256(canonical)
	return CacheKey(string(provider) + "|" + string(service) + "|" + hex.EncodeToString(sum[:]))
}

// short returns a log-friendly prefix of the key.
func (k CacheKey) short() string {
	s := string(k)
	i := strings.LastIndexByte(s, '|')
	if i < 0 || len(s)-i-1 < 12 {
		return s
	}
	return s[:i+13]
}

// ClientEntry is a published client. It is shared read-only by every
// holder of the same key and is never mutated after publication.
type ClientEntry struct {
	Key       CacheKey
	Client    any
	CreatedAt time.Time
}

// Constructor builds a client for a cache miss.
type Constructor func(ctx context.Context) (any, error)

// ClientCache hands out exactly one live client per key.
//
// Entries live until Clear or Close; there is no TTL or LRU eviction.
// Constructor failures are not cached.
type ClientCache struct {
	mu         sync.Mutex
	entries    map[CacheKey]*ClientEntry
	generation uint64

	flight singleflight.Group
	clock  clock.Clock
	logger *zap.Logger
}

// CacheOption configures a ClientCache.
type CacheOption func(*ClientCache)

// WithCacheClock sets the clock used for entry timestamps.
func WithCacheClock(c clock.Clock) CacheOption {
	return func(cc *ClientCache) {
		cc.clock = c
	}
}

// WithCacheLogger sets the logger.
func WithCacheLogger(l *zap.Logger) CacheOption {
	return func(cc *ClientCache) {
		cc.logger = l
	}
}

// NewClientCache creates an empty cache.
func NewClientCache(opts ...CacheOption) *ClientCache {
	c := &ClientCache{
		entries: make(map[CacheKey]*ClientEntry),
		clock:   clock.WallClock,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetOrCreate returns the entry for key, invoking construct on a miss.
// Concurrent callers for the same key share one construction and observe
// the same entry. The cache lock is never held while construct runs.
//
// The client outlives the requesting call, so construct receives a
// context that is not cancelled with ctx. ctx still bounds how long this
// caller waits.
func (c *ClientCache) GetOrCreate(ctx context.Context, key CacheKey, construct Constructor) (*ClientEntry, error) {
	c.mu.Lock()
	if e, ok := c.entries[key]; ok {
		c.mu.Unlock()
		return e, nil
	}
	gen := c.generation
	c.mu.Unlock()

	// The generation is part of the flight key so a construction started
	// before Clear is not joined by callers arriving after it.
	flightKey := strconv.FormatUint(gen, 10) + "/" + string(key)
	ch := c.flight.DoChan(flightKey, func() (any, error) {
		c.mu.Lock()
		if e, ok := c.entries[key]; ok {
			c.mu.Unlock()
			return e, nil
		}
		c.mu.Unlock()

		client, err := construct(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		entry := &ClientEntry{Key: key, Client: client, CreatedAt: c.clock.Now()}

		c.mu.Lock()
		defer c.mu.Unlock()
		if c.generation != gen {
			// Cleared mid-construction: hand the entry to this flight's
			// callers without publishing it.
			return entry, nil
		}
		if existing, ok := c.entries[key]; ok {
			return existing, nil
		}
		c.entries[key] = entry
		c.logger.Debug("client constructed", zap.String("key", key.short()))
		return entry, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*ClientEntry), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Get returns the published entry for key, if any.
func (c *ClientCache) Get(key CacheKey) (*ClientEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	return e, ok
}

// Len returns the number of published entries.
func (c *ClientCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Clear atomically empties the cache. Entries already handed out stay
// valid for their holders; later lookups construct afresh.
func (c *ClientCache) Clear() {
	c.mu.Lock()
	n := len(c.entries)
	c.entries = make(map[CacheKey]*ClientEntry)
	c.generation++
	c.mu.Unlock()
	c.logger.Info("client cache cleared", zap.Int("entries", n))
}

// Close clears the cache and closes every evicted client that implements
// io.Closer. It is for process teardown, when no holder still uses a client.
func (c *ClientCache) Close() error {
	c.mu.Lock()
	entries := c.entries
	c.entries = make(map[CacheKey]*ClientEntry)
	c.generation++
	c.mu.Unlock()

	var errs []error
	for _, e := range entries {
		if closer, ok := e.Client.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
