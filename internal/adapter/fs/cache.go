package fs

import (
	"container/list"
	"path/filepath"
	"sync"

	"github.com/couchcryptid/wrf-postprocess/internal/domain"
)

// CachedLister wraps a Lister with an in-memory LRU cache of listings. A
// run asks for the same output directory once per obligation, so caching
// turns thousands of reads into one per directory.
type CachedLister struct {
	inner    domain.Lister
	listings *listingCache
}

// NewCachedLister creates a cache decorator around a lister holding at most
// maxDirs listings.
func NewCachedLister(inner domain.Lister, maxDirs int) *CachedLister {
	return &CachedLister{inner: inner, listings: newListingCache(maxDirs)}
}

func (c *CachedLister) ListNames(dir string) ([]string, error) {
	key := filepath.Clean(dir)
	if names, ok := c.listings.get(key); ok {
		return names, nil
	}
	names, err := c.inner.ListNames(dir)
	if err != nil {
		// A directory created later must be seen, so errors are not kept.
		return nil, err
	}
	c.listings.put(key, names)
	return names, nil
}

// Invalidate drops the cached listing of dir, e.g. after a collaborator
// wrote into it.
func (c *CachedLister) Invalidate(dir string) {
	c.listings.delete(filepath.Clean(dir))
}

// Stats returns the cache hit and miss counts.
func (c *CachedLister) Stats() (hits, misses int) {
	c.listings.mu.Lock()
	defer c.listings.mu.Unlock()
	return c.listings.hits, c.listings.misses
}

// listingCache keeps the most recently used listings. The front of order
// is the newest entry.
type listingCache struct {
	mu     sync.Mutex
	limit  int
	order  *list.List
	byDir  map[string]*list.Element
	hits   int
	misses int
}

type listing struct {
	dir   string
	names []string
}

func newListingCache(limit int) *listingCache {
	return &listingCache{
		limit: max(limit, 1),
		order: list.New(),
		byDir: make(map[string]*list.Element),
	}
}

func (c *listingCache) get(dir string) ([]string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.byDir[dir]
	if !ok {
		c.misses++
		return nil, false
	}
	c.hits++
	c.order.MoveToFront(el)
	return el.Value.(*listing).names, true
}

func (c *listingCache) put(dir string, names []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.byDir[dir]; ok {
		el.Value.(*listing).names = names
		c.order.MoveToFront(el)
		return
	}
	c.byDir[dir] = c.order.PushFront(&listing{dir: dir, names: names})
	for c.order.Len() > c.limit {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.byDir, oldest.Value.(*listing).dir)
	}
}

func (c *listingCache) delete(dir string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.byDir[dir]; ok {
		c.order.Remove(el)
		delete(c.byDir, dir)
	}
}
