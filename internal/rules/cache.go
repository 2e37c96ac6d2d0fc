package rules

import (
	"sync"
	"time"

	"conciliacontag/internal/models"
)

// ruleCache keeps one snapshot of the rule set per company, bounded by a
// fixed TTL. It is owned by the Store and explicitly invalidated on writes;
// there is no ambient/global cache state.
type ruleCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[int64]cacheEntry
}

type cacheEntry struct {
	rules     map[string]models.ReconciliationRule
	expiresAt time.Time
}

func newRuleCache(ttl time.Duration) *ruleCache {
	return &ruleCache{
		ttl:     ttl,
		entries: make(map[int64]cacheEntry),
	}
}

func (c *ruleCache) get(companyID int64) (map[string]models.ReconciliationRule, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[companyID]
	if !ok || time.Now().After(e.expiresAt) {
		return nil, false
	}
	return e.rules, true
}

func (c *ruleCache) set(companyID int64, rules map[string]models.ReconciliationRule) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[companyID] = cacheEntry{
		rules:     rules,
		expiresAt: time.Now().Add(c.ttl),
	}
}

func (c *ruleCache) invalidate(companyID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, companyID)
}
