package gcp

import (
	"sync"
	"time"

	"github.com/Lllllllleong/salespackflow/internal/models"
)

// DefaultListingTTL bounds how long a cached listing is served. Other function
// instances never see this instance's invalidations, so their uploads show up
// here at most this late.
const DefaultListingTTL = 30 * time.Second

type cachedListing struct {
	docs     []models.StoredDocument
	storedAt time.Time
}

// listingCache holds per-target document listings. Each target has a
// generation that invalidation bumps; a listing read under an older
// generation is never stored.
type listingCache struct {
	ttl time.Duration
	now func() time.Time

	mu          sync.Mutex
	listings    map[string]cachedListing
	generations map[string]uint64
}

func newListingCache(ttl time.Duration, now func() time.Time) *listingCache {
	return &listingCache{
		ttl:         ttl,
		now:         now,
		listings:    map[string]cachedListing{},
		generations: map[string]uint64{},
	}
}

// get returns a fresh cached listing, or the current generation to pass to
// put once the listing has been read from the source.
func (c *listingCache) get(target string) ([]models.StoredDocument, uint64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if entry, ok := c.listings[target]; ok {
		if c.now().Sub(entry.storedAt) < c.ttl {
			return entry.docs, 0, true
		}
		delete(c.listings, target)
	}
	return nil, c.generations[target], false
}

// put stores docs unless target was invalidated since generation was read.
func (c *listingCache) put(target string, generation uint64, docs []models.StoredDocument) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generations[target] != generation {
		return false
	}
	c.listings[target] = cachedListing{docs: docs, storedAt: c.now()}
	return true
}

func (c *listingCache) invalidate(target string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.listings, target)
	c.generations[target]++
}
