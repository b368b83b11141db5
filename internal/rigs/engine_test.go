package rigs

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"auravfx/server/internal/assets"
	"auravfx/server/internal/host"
	"auravfx/server/internal/host/memhost"
	"auravfx/server/internal/lod"
	"auravfx/server/logging/rigs"
	"auravfx/server/logging/sinks"
)

type lineLogger struct {
	mu    sync.Mutex
	lines []string
}

func (l *lineLogger) Printf(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, fmt.Sprintf(format, args...))
}

func (l *lineLogger) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.lines)
}

type harness struct {
	t       *testing.T
	engine  *Engine
	world   *memhost.World
	logger  *lineLogger
	events  *sinks.Memory
	delayed []func()
	now     time.Time
}

func newHarness(t *testing.T, models ...string) *harness {
	t.Helper()
	h := &harness{
		t:      t,
		world:  memhost.NewWorld("default", nil),
		logger: &lineLogger{},
		events: sinks.NewMemory(),
		now:    time.Unix(1_700_000_000, 0),
	}
	t.Cleanup(h.world.Close)
	list := make([]assets.Asset, 0, len(models))
	for _, id := range models {
		list = append(list, assets.Asset{ID: id, Animations: []string{"Idle", "Loop"}})
	}
	h.engine = NewEngine(Options{
		Models:    assets.NewResolver(assets.NewMapRegistry(list...), assets.ModelOptions(), h.logger),
		Logger:    h.logger,
		Publisher: h.events.Publisher(),
		AfterFunc: func(_ time.Duration, f func()) { h.delayed = append(h.delayed, f) },
	})
	return h
}

func (h *harness) sync(world *memhost.World, player uuid.UUID, desired []DesiredRig, nearby int) SyncResult {
	h.t.Helper()
	var result SyncResult
	require.NoError(h.t, world.Call(func(store host.EntityStore) {
		result = h.engine.Synchronize(SyncRequest{
			Player:    player,
			World:     world,
			Store:     store,
			Transform: host.Transform{Position: mgl64.Vec3{0, 64, 0}},
			Desired:   desired,
			Nearby:    nearby,
			Frame:     7,
			Now:       h.now,
		})
	}))
	return result
}

func (h *harness) entities(world *memhost.World) map[host.EntityID]memhost.ModelData {
	h.t.Helper()
	require.NoError(h.t, world.Flush())
	models, err := world.ModelEntities()
	require.NoError(h.t, err)
	return models
}

func slotKeys(slots map[Key]Instance) []Key {
	out := make([]Key, 0, len(slots))
	for k := range slots {
		out = append(out, k)
	}
	return out
}

const (
	emberModel = "Server/Models/HyPerksVFX/EmberHalo_Rig.json"
	coneModel  = "Server/Models/HyPerksVFX/FireIceCone_Rig.json"
)

func TestSynchronizeIsIdempotent(t *testing.T) {
	h := newHarness(t, stormBase, emberModel)
	player := uuid.New()
	desired := []DesiredRig{
		NewDesiredRig("auras", "storm_clouds", stormBase, ProfileStormClouds),
		NewDesiredRig("auras_premium", "ember", emberModel, ProfileDefault),
	}

	first := h.sync(h.world, player, desired, 1)
	assert.Equal(t, 5, first.Spawned)
	before := h.entities(h.world)
	require.Len(t, before, 5)

	second := h.sync(h.world, player, desired, 1)
	assert.Zero(t, second.Spawned)
	assert.Zero(t, second.Removed)
	assert.Equal(t, 5, second.Updated)
	assert.Equal(t, before, h.entities(h.world))
}

func TestSynchronizeBudgetTruncatesWithSingleNotice(t *testing.T) {
	h := newHarness(t, stormBase, emberModel)
	h.engine.Configure(4, 10)
	player := uuid.New()
	desired := []DesiredRig{
		NewDesiredRig("auras", "storm_clouds", stormBase, ProfileStormClouds),
		NewDesiredRig("trails", "ember", emberModel, ProfileDefault),
	}

	result := h.sync(h.world, player, desired, 1)
	assert.True(t, result.Truncated)
	assert.Equal(t, 5, result.Desired)
	assert.Equal(t, 4, result.Spawned)
	assert.True(t, h.engine.BudgetWarned(player))
	assert.NotContains(t, slotKeys(h.engine.Slots(player)), Key{CategoryID: "trails", CosmeticID: "ember", PartID: "main"})

	h.sync(h.world, player, desired, 1)
	assert.Len(t, h.events.OfType(rigs.EventBudgetReached), 1)
	assert.Len(t, h.entities(h.world), 4)

	result = h.sync(h.world, player, desired[1:], 1)
	assert.False(t, result.Truncated)
	assert.False(t, h.engine.BudgetWarned(player))
	assert.Len(t, h.entities(h.world), 1)
}

func TestSynchronizeConvergesToDesiredSet(t *testing.T) {
	h := newHarness(t, stormBase, emberModel, coneModel)
	player := uuid.New()

	h.sync(h.world, player, []DesiredRig{NewDesiredRig("auras", "storm_clouds", stormBase, ProfileStormClouds)}, 1)
	require.Len(t, h.engine.Slots(player), 4)

	next := []DesiredRig{NewDesiredRig("auras", "fire_ice_cone", coneModel, ProfileFireIceCone)}
	h.sync(h.world, player, next, 1)

	want := map[Key]struct{}{}
	for _, part := range Expand(next, lod.TierFull, h.engine.models) {
		want[part.Key()] = struct{}{}
	}
	got := map[Key]struct{}{}
	for key := range h.engine.Slots(player) {
		got[key] = struct{}{}
	}
	assert.Equal(t, want, got)
	assert.Len(t, h.entities(h.world), 3)
}

func TestSynchronizeReducedTierDropsFullOnlyParts(t *testing.T) {
	h := newHarness(t, stormBase)
	h.engine.Configure(16, 2)
	player := uuid.New()
	desired := []DesiredRig{NewDesiredRig("auras", "storm_clouds", stormBase, ProfileStormClouds)}

	result := h.sync(h.world, player, desired, 2)
	assert.Equal(t, lod.TierFull, result.Tier)
	assert.Len(t, h.engine.Slots(player), 4)

	result = h.sync(h.world, player, desired, 3)
	assert.Equal(t, lod.TierReduced, result.Tier)
	assert.NotContains(t, slotKeys(h.engine.Slots(player)), Key{CategoryID: "auras", CosmeticID: "storm_clouds", PartID: "cloud_c"})
	assert.Len(t, h.entities(h.world), 3)
}

func TestSynchronizeRespawnsOnAssetChange(t *testing.T) {
	h := newHarness(t, emberModel, coneModel)
	player := uuid.New()
	h.sync(h.world, player, []DesiredRig{NewDesiredRig("auras", "x", emberModel, ProfileDefault)}, 1)
	before := h.engine.Slots(player)

	result := h.sync(h.world, player, []DesiredRig{NewDesiredRig("auras", "x", coneModel, ProfileDefault)}, 1)
	assert.Equal(t, 1, result.Removed)
	assert.Equal(t, 1, result.Spawned)
	after := h.engine.Slots(player)
	key := Key{CategoryID: "auras", CosmeticID: "x", PartID: "main"}
	assert.NotEqual(t, before[key].Entity, after[key].Entity)
	assert.Equal(t, coneModel, after[key].ResolvedAssetID)
}

func TestSynchronizeCrossWorldTeardown(t *testing.T) {
	h := newHarness(t, emberModel)
	other := memhost.NewWorld("arena", nil)
	t.Cleanup(other.Close)
	player := uuid.New()
	desired := []DesiredRig{NewDesiredRig("auras", "x", emberModel, ProfileDefault)}

	h.sync(h.world, player, desired, 1)
	require.Len(t, h.entities(h.world), 1)

	h.sync(other, player, desired, 1)
	assert.Empty(t, h.entities(h.world))
	assert.Len(t, h.entities(other), 1)
	for _, inst := range h.engine.Slots(player) {
		assert.Equal(t, host.World(other), inst.World)
	}
}

func TestSynchronizeSkipsUnresolvableModel(t *testing.T) {
	h := newHarness(t, emberModel)
	player := uuid.New()
	desired := []DesiredRig{
		NewDesiredRig("auras", "ghost", "Server/Models/Nope.json", ProfileDefault),
		NewDesiredRig("trails", "ember", emberModel, ProfileDefault),
	}
	result := h.sync(h.world, player, desired, 1)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, 1, result.Spawned)
	result = h.sync(h.world, player, desired, 1)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, 1, h.logger.count(), "a missing model warns once")
}

func TestSpawnFailureWarnsOncePerAsset(t *testing.T) {
	h := newHarness(t, emberModel)
	h.world.SpawnFilter = func(host.SpawnSpec) error { return errors.New("host full") }
	player := uuid.New()
	desired := []DesiredRig{NewDesiredRig("auras", "x", emberModel, ProfileDefault)}

	h.sync(h.world, player, desired, 1)
	h.sync(h.world, player, desired, 1)
	assert.Len(t, h.events.OfType(rigs.EventSpawnFailed), 1)
	assert.Zero(t, h.engine.ActivePlayers(), "empty tables are dropped")

	h.engine.ResetCaches()
	h.sync(h.world, player, desired, 1)
	assert.Len(t, h.events.OfType(rigs.EventSpawnFailed), 2)
}

// brokenTransforms fails every transform update with err.
type brokenTransforms struct {
	host.EntityStore
	err error
}

func (s brokenTransforms) SetTransform(host.EntityID, host.Transform) error {
	return s.err
}

func (h *harness) syncWith(wrap func(host.EntityStore) host.EntityStore, player uuid.UUID, desired []DesiredRig) SyncResult {
	h.t.Helper()
	var result SyncResult
	require.NoError(h.t, h.world.Call(func(store host.EntityStore) {
		result = h.engine.Synchronize(SyncRequest{
			Player:    player,
			World:     h.world,
			Store:     wrap(store),
			Transform: host.Transform{Position: mgl64.Vec3{0, 64, 0}},
			Desired:   desired,
			Nearby:    1,
			Frame:     7,
			Now:       h.now,
		})
	}))
	return result
}

func TestSynchronizeRespawnsEntityRemovedOutsideEngine(t *testing.T) {
	h := newHarness(t, emberModel)
	player := uuid.New()
	desired := []DesiredRig{NewDesiredRig("auras", "ember", emberModel, ProfileDefault)}

	require.Equal(t, 1, h.sync(h.world, player, desired, 1).Spawned)
	live := h.entities(h.world)
	require.Len(t, live, 1)
	for id := range live {
		var removeErr error
		require.NoError(t, h.world.Call(func(store host.EntityStore) {
			removeErr = store.Remove(id)
		}))
		require.NoError(t, removeErr)
	}

	result := h.sync(h.world, player, desired, 1)
	assert.Equal(t, 1, result.Skipped)
	assert.Zero(t, result.Spawned)
	assert.Empty(t, h.entities(h.world))
	assert.Zero(t, h.engine.ActiveRigs(), "stale reference is dropped")
	assert.Zero(t, h.logger.count(), "a vanished entity is not a failure")

	result = h.sync(h.world, player, desired, 1)
	assert.Equal(t, 1, result.Spawned)
	assert.Len(t, h.entities(h.world), 1)
	assert.Equal(t, 1, h.engine.ActiveRigs())
}

func TestUpdateFailureWarnsOnceAndRespawns(t *testing.T) {
	h := newHarness(t, emberModel)
	player := uuid.New()
	desired := []DesiredRig{NewDesiredRig("auras", "ember", emberModel, ProfileDefault)}
	plain := func(store host.EntityStore) host.EntityStore { return store }
	broken := func(store host.EntityStore) host.EntityStore {
		return brokenTransforms{EntityStore: store, err: errors.New("transform locked")}
	}

	require.Equal(t, 1, h.syncWith(plain, player, desired).Spawned)

	result := h.syncWith(broken, player, desired)
	assert.Equal(t, 1, result.Skipped)
	assert.Zero(t, h.engine.ActiveRigs())

	result = h.syncWith(broken, player, desired)
	assert.Equal(t, 1, result.Spawned, "the dropped slot is spawned again")

	result = h.syncWith(broken, player, desired)
	assert.Equal(t, 1, result.Skipped)

	failures := h.events.OfType(rigs.EventSpawnFailed)
	require.Len(t, failures, 1)
	payload, ok := failures[0].Payload.(rigs.AssetPayload)
	require.True(t, ok)
	assert.Equal(t, "update", payload.Operation)
	assert.Equal(t, 1, h.logger.count())
}

func TestClearPlayerRemovesEverything(t *testing.T) {
	h := newHarness(t, stormBase, emberModel)
	a, b := uuid.New(), uuid.New()
	h.sync(h.world, a, []DesiredRig{NewDesiredRig("auras", "storm_clouds", stormBase, ProfileStormClouds)}, 1)
	h.sync(h.world, b, []DesiredRig{NewDesiredRig("auras", "x", emberModel, ProfileDefault)}, 1)
	require.Equal(t, 5, h.engine.ActiveRigs())
	require.Equal(t, 2, h.engine.ActivePlayers())

	assert.Equal(t, 4, h.engine.ClearPlayer(a))
	assert.Len(t, h.entities(h.world), 1)
	assert.Nil(t, h.engine.Slots(a))

	assert.Equal(t, 1, h.engine.ClearAll())
	assert.Empty(t, h.entities(h.world))
	assert.Zero(t, h.engine.ActiveRigs())
}

func TestClearCategory(t *testing.T) {
	h := newHarness(t, emberModel, coneModel)
	player := uuid.New()
	h.sync(h.world, player, []DesiredRig{
		NewDesiredRig("auras", "x", emberModel, ProfileDefault),
		NewDesiredRig("trails", "y", coneModel, ProfileDefault),
	}, 1)

	assert.Equal(t, 1, h.engine.ClearCategory(player, " AURAS "))
	assert.Len(t, h.entities(h.world), 1)
	assert.Equal(t, 1, h.engine.ClearCategory(player, "trails"))
	assert.Zero(t, h.engine.ActivePlayers())
	assert.Zero(t, h.engine.ClearCategory(player, "trails"))
}

// observedWorld runs onExecute on the caller's goroutine before queueing.
type observedWorld struct {
	*memhost.World
	onExecute func()
}

func (w *observedWorld) Execute(task func(host.EntityStore)) error {
	if w.onExecute != nil {
		w.onExecute()
	}
	return w.World.Execute(task)
}

func TestClearCategorySchedulesRemovalOutsideTableLock(t *testing.T) {
	h := newHarness(t, emberModel, coneModel)
	world := &observedWorld{World: h.world}
	player := uuid.New()
	require.NoError(t, h.world.Call(func(store host.EntityStore) {
		h.engine.Synchronize(SyncRequest{
			Player: player,
			World:  world,
			Store:  store,
			Desired: []DesiredRig{
				NewDesiredRig("auras", "x", emberModel, ProfileDefault),
				NewDesiredRig("trails", "y", coneModel, ProfileDefault),
			},
			Nearby: 1,
			Now:    h.now,
		})
	}))
	require.Len(t, h.entities(h.world), 2)

	var seen int
	world.onExecute = func() { seen = len(h.engine.Slots(player)) }
	done := make(chan int, 1)
	go func() { done <- h.engine.ClearCategory(player, "auras") }()

	select {
	case removed := <-done:
		assert.Equal(t, 1, removed)
	case <-time.After(2 * time.Second):
		t.Fatal("ClearCategory held the rig table while scheduling removal")
	}
	assert.Equal(t, 1, seen, "the table already excludes the cleared category")
	assert.Len(t, h.entities(h.world), 1)
}

func TestPruneStale(t *testing.T) {
	h := newHarness(t, emberModel)
	player := uuid.New()
	h.sync(h.world, player, []DesiredRig{NewDesiredRig("auras", "x", emberModel, ProfileDefault)}, 1)

	assert.Zero(t, h.engine.PruneStale(h.now.Add(Retention)))
	assert.Equal(t, 1, h.engine.PruneStale(h.now.Add(Retention+time.Second)))
	assert.Empty(t, h.entities(h.world))
	assert.Zero(t, h.engine.ActivePlayers())
	assert.Len(t, h.events.OfType(rigs.EventRigsPruned), 1)
}

func TestSpawnDebugTearsDownAfterLifetime(t *testing.T) {
	h := newHarness(t, coneModel)
	var result DebugSpawnResult
	require.NoError(t, h.world.Call(func(store host.EntityStore) {
		result = h.engine.SpawnDebug(h.world, store, host.Transform{}, "")
	}))
	assert.True(t, result.Success)
	assert.Equal(t, coneModel, result.ResolvedAssetID)
	require.Len(t, h.entities(h.world), 1)
	assert.Zero(t, h.engine.ActiveRigs())

	require.Len(t, h.delayed, 1)
	h.delayed[0]()
	assert.Empty(t, h.entities(h.world))

	require.NoError(t, h.world.Call(func(store host.EntityStore) {
		result = h.engine.SpawnDebug(h.world, store, host.Transform{}, `Server\Models\Missing.json`)
	}))
	assert.False(t, result.Success)
	assert.Equal(t, "Server/Models/Missing.json", result.ResolvedAssetID)
}

func TestConfigureClamps(t *testing.T) {
	e := NewEngine(Options{})
	budget, ultra := e.Configure(0, 500)
	assert.Equal(t, DefaultRigBudget, budget)
	assert.Equal(t, MaxLodUltraMax, ultra)
	budget, ultra = e.Configure(100, -1)
	assert.Equal(t, MaxRigBudget, budget)
	assert.Equal(t, DefaultLodUltraMax, ultra)
}

func TestDescribeAuditPartsDedupes(t *testing.T) {
	e := NewEngine(Options{Models: modelResolver(stormBase, "Server/Models/HyPerksVFX/StormClouds_Rig_Core.json")})
	parts := e.DescribeAuditParts("auras", "storm_clouds", stormBase, ProfileStormClouds, lod.TierFull)
	require.Len(t, parts, 4)
	for _, part := range parts {
		assert.True(t, part.Resolvable, part.PartID)
	}

	missing := e.DescribeAuditParts("auras", "ghost", "Server/Models/Ghost.json", ProfileWingwangSigil, lod.TierReduced)
	require.Len(t, missing, 2)
	assert.False(t, missing[0].Resolvable)
	assert.Equal(t, "Server/Models/Ghost.json", missing[0].RequestedAssetID)
}
