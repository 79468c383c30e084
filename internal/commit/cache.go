package commit

import (
	"encoding/hex"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

// Record is a completed mode-1 evaluation. Result holds the exact encoded
// bytes the oracle committed to; a later reveal must return them unchanged.
type Record struct {
	Result           []byte
	JustificationCID string
	CommitHash       [16]byte
	CreatedAt        time.Time
}

// Cache is the process-wide commit store. Entries live for exactly the reveal
// TTL; a background janitor sweeps every TTL/4 and reads lazily skip anything
// at or past the boundary.
type Cache struct {
	ttl    time.Duration
	store  *gocache.Cache
	logger *zap.Logger
}

// NewCache creates a cache with the given reveal TTL.
func NewCache(ttl time.Duration, logger *zap.Logger) *Cache {
	return &Cache{
		ttl:    ttl,
		store:  gocache.New(ttl, ttl/4),
		logger: logger,
	}
}

// Store saves a commit record under its fingerprint. Errors are never
// stored; only completed evaluations reach this point.
func (c *Cache) Store(fp [32]byte, rec Record) {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	key := hex.EncodeToString(fp[:])
	c.store.Set(key, rec, c.ttl)
	c.logger.Debug("commit stored",
		zap.String("fingerprint", key),
		zap.String("justification_cid", rec.JustificationCID))
}

// Lookup returns the record for a fingerprint. An entry whose age is at or
// beyond the TTL is expired even if the janitor has not swept it yet.
func (c *Cache) Lookup(fp [32]byte) (Record, bool) {
	key := hex.EncodeToString(fp[:])
	v, ok := c.store.Get(key)
	if !ok {
		return Record{}, false
	}
	rec := v.(Record)
	if time.Since(rec.CreatedAt) >= c.ttl {
		c.store.Delete(key)
		return Record{}, false
	}
	return rec, true
}

// Len reports the number of cached records, counting entries the janitor has
// not yet evicted.
func (c *Cache) Len() int {
	return c.store.ItemCount()
}
