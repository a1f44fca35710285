package cache

import (
	"sync"
	"time"

	"github.com/Ukt21/avia/internal/clock"
	"github.com/Ukt21/avia/internal/domain"
)

// Results caches full ranked result sets by request fingerprint so a later
// fetch (after payment) can serve the paid tier without re-querying the
// offer provider. Entries expire after a TTL or when superseded.
type Results struct {
	mu      sync.RWMutex
	entries map[string]entry
	ttl     time.Duration
	clock   clock.Clock
}

type entry struct {
	result    domain.RankedResult
	expiresAt time.Time
}

func NewResults(ttl time.Duration, clk clock.Clock) *Results {
	return &Results{
		entries: make(map[string]entry),
		ttl:     ttl,
		clock:   clk,
	}
}

// Put stores a ranked result under its fingerprint, replacing any previous set.
func (c *Results) Put(result domain.RankedResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[result.Fingerprint] = entry{
		result:    result,
		expiresAt: c.clock.Now().Add(c.ttl),
	}
}

// Get returns the cached result for a fingerprint, treating expired entries
// as absent.
func (c *Results) Get(fingerprint string) (domain.RankedResult, bool) {
	c.mu.RLock()
	e, ok := c.entries[fingerprint]
	c.mu.RUnlock()
	if !ok || !e.expiresAt.After(c.clock.Now()) {
		return domain.RankedResult{}, false
	}
	return e.result, true
}

// Sweep drops expired entries and reports how many were removed.
func (c *Results) Sweep() int {
	now := c.clock.Now()
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for fp, e := range c.entries {
		if !e.expiresAt.After(now) {
			delete(c.entries, fp)
			removed++
		}
	}
	return removed
}
