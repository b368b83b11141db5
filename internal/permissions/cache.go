package permissions

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"auravfx/server/logging"
)

const (
	// Retention is the hard ceiling on how long any entry is kept,
	// regardless of TTL.
	Retention = 180 * time.Second

	// WildcardAll grants every cosmetic.
	WildcardAll = "hyperks.cosmetic.*"
)

// Checker is the host permission system.
type Checker interface {
	HasPermission(player uuid.UUID, node string) bool
}

// CheckerFunc adapts a function into a Checker.
type CheckerFunc func(player uuid.UUID, node string) bool

func (f CheckerFunc) HasPermission(player uuid.UUID, node string) bool {
	if f == nil {
		return false
	}
	return f(player, node)
}

// AllowAll grants every node.
func AllowAll() Checker {
	return CheckerFunc(func(uuid.UUID, string) bool { return true })
}

type cacheKey struct {
	player uuid.UUID
	node   string
}

type entry struct {
	allowed   bool
	expiresAt time.Time
	createdAt time.Time
}

// Cache memoizes permission answers per (player, node) for a short TTL.
type Cache struct {
	checker Checker
	clock   logging.Clock

	mu      sync.RWMutex
	ttl     time.Duration
	entries map[cacheKey]entry
}

func NewCache(checker Checker, ttl time.Duration, clock logging.Clock) *Cache {
	if clock == nil {
		clock = logging.SystemClock{}
	}
	if checker == nil {
		checker = AllowAll()
	}
	return &Cache{
		checker: checker,
		clock:   clock,
		ttl:     max(ttl, 0),
		entries: make(map[cacheKey]entry),
	}
}

// SetTTL changes the TTL for future misses. A TTL of zero disables
// caching and drops existing entries.
func (c *Cache) SetTTL(ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ttl = max(ttl, 0)
	if c.ttl == 0 {
		c.entries = make(map[cacheKey]entry)
	}
}

func (c *Cache) TTL() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ttl
}

// Allowed answers from cache while the entry is fresh, otherwise asks the
// checker and stores the answer.
func (c *Cache) Allowed(player uuid.UUID, node string) bool {
	node = strings.TrimSpace(node)
	if node == "" {
		return true
	}
	key := cacheKey{player: player, node: node}
	now := c.clock.Now()

	c.mu.RLock()
	ttl := c.ttl
	cached, ok := c.entries[key]
	c.mu.RUnlock()

	if ttl == 0 {
		return c.checker.HasPermission(player, node)
	}
	if ok && now.Before(cached.expiresAt) {
		return cached.allowed
	}

	allowed := c.checker.HasPermission(player, node)
	c.mu.Lock()
	c.entries[key] = entry{allowed: allowed, expiresAt: now.Add(ttl), createdAt: now}
	c.mu.Unlock()
	return allowed
}

// AllowedCosmetic checks the cosmetic's own node, the global wildcard and
// the category wildcard. The first granted node wins.
func (c *Cache) AllowedCosmetic(player uuid.UUID, category, node string) bool {
	if c.Allowed(player, node) {
		return true
	}
	if c.Allowed(player, WildcardAll) {
		return true
	}
	return c.Allowed(player, CategoryWildcard(category))
}

// CategoryWildcard returns hyperks.cosmetic.<category>.*.
func CategoryWildcard(category string) string {
	return "hyperks.cosmetic." + strings.ToLower(strings.TrimSpace(category)) + ".*"
}

// DefaultNode is the node assumed for a cosmetic that does not name one.
func DefaultNode(category, id string) string {
	return "hyperks.cosmetic." + strings.ToLower(strings.TrimSpace(category)) + "." + strings.ToLower(strings.TrimSpace(id))
}

// Prune drops expired entries and anything older than Retention.
func (c *Cache) Prune(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for key, cached := range c.entries {
		if !now.Before(cached.expiresAt) || now.Sub(cached.createdAt) > Retention {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// InvalidatePlayer drops every entry for player.
func (c *Cache) InvalidatePlayer(player uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.entries {
		if key.player == player {
			delete(c.entries, key)
		}
	}
}

func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	c.entries = make(map[cacheKey]entry)
	c.mu.Unlock()
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
