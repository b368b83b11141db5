package permissions

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"auravfx/server/logging"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type countingChecker struct {
	grants map[string]bool
	calls  map[string]int
}

func newCountingChecker(grants ...string) *countingChecker {
	c := &countingChecker{grants: map[string]bool{}, calls: map[string]int{}}
	for _, g := range grants {
		c.grants[g] = true
	}
	return c
}

func (c *countingChecker) HasPermission(_ uuid.UUID, node string) bool {
	c.calls[node]++
	return c.grants[node]
}

func TestCacheHitUntilExpiry(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	checker := newCountingChecker("hyperks.cosmetic.auras.ember_halo")
	cache := NewCache(checker, 1500*time.Millisecond, clock)
	player := uuid.New()

	assert.True(t, cache.Allowed(player, "hyperks.cosmetic.auras.ember_halo"))
	clock.Advance(1499 * time.Millisecond)
	assert.True(t, cache.Allowed(player, "hyperks.cosmetic.auras.ember_halo"))
	assert.Equal(t, 1, checker.calls["hyperks.cosmetic.auras.ember_halo"])

	clock.Advance(time.Millisecond)
	assert.True(t, cache.Allowed(player, "hyperks.cosmetic.auras.ember_halo"))
	assert.Equal(t, 2, checker.calls["hyperks.cosmetic.auras.ember_halo"])
}

func TestCacheZeroTTLPassesThrough(t *testing.T) {
	checker := newCountingChecker()
	cache := NewCache(checker, 0, &fakeClock{now: time.Unix(0, 0)})
	player := uuid.New()

	assert.False(t, cache.Allowed(player, "node"))
	assert.False(t, cache.Allowed(player, "node"))
	assert.Equal(t, 2, checker.calls["node"])
	assert.Zero(t, cache.Len())
}

func TestAllowedCosmeticWildcards(t *testing.T) {
	player := uuid.New()
	cases := []struct {
		name  string
		grant string
		want  bool
	}{
		{"own node", "hyperks.cosmetic.trails.comet", true},
		{"global wildcard", WildcardAll, true},
		{"category wildcard", "hyperks.cosmetic.trails.*", true},
		{"other category", "hyperks.cosmetic.auras.*", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cache := NewCache(newCountingChecker(tc.grant), time.Second, &fakeClock{now: time.Unix(0, 0)})
			assert.Equal(t, tc.want, cache.AllowedCosmetic(player, "Trails", "hyperks.cosmetic.trails.comet"))
		})
	}
}

func TestPruneAndInvalidate(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	cache := NewCache(newCountingChecker(), time.Second, clock)
	a, b := uuid.New(), uuid.New()

	cache.Allowed(a, "x")
	cache.Allowed(b, "x")
	clock.Advance(500 * time.Millisecond)
	cache.Allowed(a, "y")
	require.Equal(t, 3, cache.Len())

	clock.Advance(600 * time.Millisecond)
	assert.Equal(t, 2, cache.Prune(clock.Now()))
	assert.Equal(t, 1, cache.Len())

	cache.Allowed(b, "z")
	cache.InvalidatePlayer(a)
	assert.Equal(t, 1, cache.Len())

	cache.InvalidateAll()
	assert.Zero(t, cache.Len())
}

func TestPruneRetentionCeiling(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	cache := NewCache(newCountingChecker(), time.Hour, clock)
	cache.Allowed(uuid.New(), "x")

	assert.Zero(t, cache.Prune(clock.Now().Add(Retention)))
	assert.Equal(t, 1, cache.Prune(clock.Now().Add(Retention+time.Second)))
}

func TestSetTTLZeroClears(t *testing.T) {
	cache := NewCache(nil, time.Second, logging.SystemClock{})
	assert.True(t, cache.Allowed(uuid.New(), "x"))
	cache.SetTTL(0)
	assert.Zero(t, cache.Len())
	assert.Equal(t, time.Duration(0), cache.TTL())
}

func TestNodes(t *testing.T) {
	assert.Equal(t, "hyperks.cosmetic.floating_badges.*", CategoryWildcard(" Floating_Badges "))
	assert.Equal(t, "hyperks.cosmetic.auras.ember_halo", DefaultNode("auras", "Ember_Halo"))
}
