package rigs

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"auravfx/server/internal/assets"
	"auravfx/server/internal/host"
	"auravfx/server/internal/lod"
	"auravfx/server/internal/telemetry"
	"auravfx/server/logging"
	logrigs "auravfx/server/logging/rigs"
)

const (
	DefaultRigBudget   = 16
	MinRigBudget       = 1
	MaxRigBudget       = 64
	DefaultLodUltraMax = 10
	MinLodUltraMax     = 1
	MaxLodUltraMax     = 200

	// Retention is how long an instance may go without being desired
	// before the stale sweep removes it.
	Retention = 45 * time.Second
	// DebugLifetime bounds operator-spawned debug rigs.
	DebugLifetime = 20 * time.Second

	DefaultDebugModel = "Server/Models/HyPerksVFX/FireIceCone_Rig.json"
)

// Options wires an Engine to its collaborators.
type Options struct {
	Models    *assets.Resolver
	Logger    telemetry.Logger
	Publisher logging.Publisher
	Metrics   telemetry.Metrics
	Clock     logging.Clock
	// AfterFunc schedules delayed work. Defaults to time.AfterFunc.
	AfterFunc func(d time.Duration, f func())
}

type playerRigs struct {
	mu       sync.Mutex
	slots    map[Key]*Instance
	detached bool
}

// Engine owns every player's rig table and reconciles it against the
// desired set each tick.
type Engine struct {
	models    *assets.Resolver
	logger    telemetry.Logger
	publisher logging.Publisher
	metrics   telemetry.Metrics
	clock     logging.Clock
	afterFunc func(time.Duration, func())

	rigBudget   atomic.Int32
	lodUltraMax atomic.Int32

	mu      sync.Mutex
	players map[uuid.UUID]*playerRigs

	budgetWarned sync.Map
	failed       sync.Map
}

func NewEngine(opts Options) *Engine {
	e := &Engine{
		models:    opts.Models,
		logger:    opts.Logger,
		publisher: opts.Publisher,
		metrics:   opts.Metrics,
		clock:     opts.Clock,
		afterFunc: opts.AfterFunc,
		players:   make(map[uuid.UUID]*playerRigs),
	}
	if e.models == nil {
		e.models = assets.NewResolver(assets.NewMapRegistry(), assets.ModelOptions(), opts.Logger)
	}
	if e.logger == nil {
		e.logger = telemetry.NopLogger()
	}
	if e.publisher == nil {
		e.publisher = logging.NopPublisher()
	}
	if e.clock == nil {
		e.clock = logging.SystemClock{}
	}
	if e.afterFunc == nil {
		e.afterFunc = func(d time.Duration, f func()) { time.AfterFunc(d, f) }
	}
	e.Configure(DefaultRigBudget, DefaultLodUltraMax)
	return e
}

// Configure sets the per-player budget and the full-tier crowd threshold.
// Non-positive values select the defaults; the rest are clamped.
func (e *Engine) Configure(rigBudget, lodUltraMax int) (int, int) {
	budget := clampSetting(rigBudget, MinRigBudget, MaxRigBudget, DefaultRigBudget)
	ultra := clampSetting(lodUltraMax, MinLodUltraMax, MaxLodUltraMax, DefaultLodUltraMax)
	e.rigBudget.Store(int32(budget))
	e.lodUltraMax.Store(int32(ultra))
	return budget, ultra
}

func (e *Engine) RigBudget() int { return int(e.rigBudget.Load()) }
func (e *Engine) LodUltraMax() int { return int(e.lodUltraMax.Load()) }

// ResetCaches forgets resolved model ids and suppressed warnings.
func (e *Engine) ResetCaches() {
	e.models.Reset()
	e.failed.Range(func(key, _ any) bool {
		e.failed.Delete(key)
		return true
	})
}

// SyncRequest is one player's reconciliation input for one tick. Store must
// belong to World and the call must run on World's executor.
type SyncRequest struct {
	Player    uuid.UUID
	World     host.World
	Store     host.EntityStore
	Transform host.Transform
	Desired   []DesiredRig
	Nearby    int
	Frame     uint64
	Now       time.Time
}

// SyncResult summarizes what one reconciliation did.
type SyncResult struct {
	Tier      lod.Tier
	Desired   int
	Spawned   int
	Updated   int
	Removed   int
	Skipped   int
	Truncated bool
}

// Synchronize makes the player's rig table match the desired parts: spawn
// what is missing, move what exists, and tear down what is no longer
// wanted. At most RigBudget parts are kept.
func (e *Engine) Synchronize(req SyncRequest) SyncResult {
	if req.World == nil || req.Store == nil {
		return SyncResult{}
	}
	now := req.Now
	if now.IsZero() {
		now = e.clock.Now()
	}
	budget := e.RigBudget()
	tier := lod.SelectTier(req.Nearby, e.LodUltraMax())
	parts := Expand(req.Desired, tier, e.models)
	result := SyncResult{Tier: tier, Desired: len(parts)}

	accepted := parts
	if len(accepted) > budget {
		accepted = accepted[:budget]
		result.Truncated = true
	}

	table := e.acquire(req.Player)
	defer table.mu.Unlock()

	wanted := make(map[Key]struct{}, len(accepted))
	for _, part := range accepted {
		key := part.Key()
		wanted[key] = struct{}{}

		inst := table.slots[key]
		if inst != nil && (inst.World != req.World || inst.RequestedAssetID != part.ModelAssetID) {
			e.teardown(req.Store, req.World, inst)
			delete(table.slots, key)
			result.Removed++
			inst = nil
		}

		if inst == nil {
			spawned := e.spawn(req.Store, req.World, part, req.Transform, req.Frame, now)
			if spawned == nil {
				result.Skipped++
				continue
			}
			table.slots[key] = spawned
			result.Spawned++
			continue
		}

		if !e.update(req.Store, inst, req.Transform, req.Frame) {
			delete(table.slots, key)
			result.Skipped++
			continue
		}
		inst.LastSeen = now
		result.Updated++
	}

	if result.Truncated {
		if _, warned := e.budgetWarned.LoadOrStore(req.Player, struct{}{}); !warned {
			e.logger.Printf("rig budget reached for player %s (%d), some rig parts were skipped", req.Player, budget)
			logrigs.BudgetReached(context.Background(), e.publisher, req.Frame, logging.PlayerRef(req.Player.String()), logrigs.BudgetReachedPayload{
				Desired: len(parts),
				Budget:  budget,
			})
		}
	} else {
		e.budgetWarned.Delete(req.Player)
	}

	for key, inst := range table.slots {
		if _, ok := wanted[key]; ok {
			continue
		}
		e.teardown(req.Store, req.World, inst)
		delete(table.slots, key)
		result.Removed++
	}

	if len(table.slots) == 0 {
		e.release(req.Player, table)
	}
	e.count("rigs_spawned", result.Spawned)
	e.count("rigs_removed", result.Removed)
	return result
}

// BudgetWarned reports whether the player's budget notice is latched.
func (e *Engine) BudgetWarned(player uuid.UUID) bool {
	_, ok := e.budgetWarned.Load(player)
	return ok
}

// ClearCategory tears down every rig the player has in category.
func (e *Engine) ClearCategory(player uuid.UUID, category string) int {
	category = normalizeID(category)
	if category == "" {
		return 0
	}
	table := e.existing(player)
	if table == nil {
		return 0
	}
	var instances []*Instance
	for key, inst := range table.slots {
		if key.CategoryID != category {
			continue
		}
		instances = append(instances, inst)
		delete(table.slots, key)
	}
	if len(table.slots) == 0 {
		e.release(player, table)
	}
	table.mu.Unlock()

	for _, inst := range instances {
		e.scheduleRemoval(inst)
	}
	e.count("rigs_removed", len(instances))
	return len(instances)
}

// ClearPlayer tears down every rig the player owns and resets the budget
// notice.
func (e *Engine) ClearPlayer(player uuid.UUID) int {
	e.budgetWarned.Delete(player)
	e.mu.Lock()
	table := e.players[player]
	delete(e.players, player)
	e.mu.Unlock()
	if table == nil {
		return 0
	}

	table.mu.Lock()
	table.detached = true
	instances := make([]*Instance, 0, len(table.slots))
	for _, inst := range table.slots {
		instances = append(instances, inst)
	}
	table.slots = make(map[Key]*Instance)
	table.mu.Unlock()

	for _, inst := range instances {
		e.scheduleRemoval(inst)
	}
	e.count("rigs_removed", len(instances))
	return len(instances)
}

// ClearAll clears every player.
func (e *Engine) ClearAll() int {
	e.mu.Lock()
	players := make([]uuid.UUID, 0, len(e.players))
	for player := range e.players {
		players = append(players, player)
	}
	e.mu.Unlock()

	removed := 0
	for _, player := range players {
		removed += e.ClearPlayer(player)
	}
	return removed
}

// PruneStale removes instances not desired for longer than Retention.
func (e *Engine) PruneStale(now time.Time) int {
	e.mu.Lock()
	tables := make(map[uuid.UUID]*playerRigs, len(e.players))
	for player, table := range e.players {
		tables[player] = table
	}
	e.mu.Unlock()

	removed := 0
	for player, table := range tables {
		table.mu.Lock()
		if table.detached {
			table.mu.Unlock()
			continue
		}
		for key, inst := range table.slots {
			if now.Sub(inst.LastSeen) <= Retention {
				continue
			}
			e.scheduleRemoval(inst)
			delete(table.slots, key)
			removed++
		}
		if len(table.slots) == 0 {
			e.release(player, table)
			e.budgetWarned.Delete(player)
		}
		table.mu.Unlock()
	}
	if removed > 0 {
		e.count("rigs_removed", removed)
		logrigs.RigsPruned(context.Background(), e.publisher, logrigs.PrunedPayload{Removed: removed})
	}
	return removed
}

// ActivePlayers counts players that currently own rigs.
func (e *Engine) ActivePlayers() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.players)
}

// ActiveRigs counts live instances across all players.
func (e *Engine) ActiveRigs() int {
	e.mu.Lock()
	tables := make([]*playerRigs, 0, len(e.players))
	for _, table := range e.players {
		tables = append(tables, table)
	}
	e.mu.Unlock()

	total := 0
	for _, table := range tables {
		table.mu.Lock()
		total += len(table.slots)
		table.mu.Unlock()
	}
	return total
}

// Slots returns a copy of the player's table.
func (e *Engine) Slots(player uuid.UUID) map[Key]Instance {
	table := e.existing(player)
	if table == nil {
		return nil
	}
	defer table.mu.Unlock()
	out := make(map[Key]Instance, len(table.slots))
	for key, inst := range table.slots {
		out[key] = *inst
	}
	return out
}

// acquire returns the player's live table, locked, creating it if needed.
func (e *Engine) acquire(player uuid.UUID) *playerRigs {
	for {
		e.mu.Lock()
		table := e.players[player]
		if table == nil {
			table = &playerRigs{slots: make(map[Key]*Instance)}
			e.players[player] = table
		}
		e.mu.Unlock()

		table.mu.Lock()
		if !table.detached {
			return table
		}
		table.mu.Unlock()
	}
}

// existing returns the player's table locked, or nil.
func (e *Engine) existing(player uuid.UUID) *playerRigs {
	e.mu.Lock()
	table := e.players[player]
	e.mu.Unlock()
	if table == nil {
		return nil
	}
	table.mu.Lock()
	if table.detached {
		table.mu.Unlock()
		return nil
	}
	return table
}

// release drops an empty table. The caller holds table.mu.
func (e *Engine) release(player uuid.UUID, table *playerRigs) {
	table.detached = true
	e.mu.Lock()
	if e.players[player] == table {
		delete(e.players, player)
	}
	e.mu.Unlock()
}

func (e *Engine) spawn(store host.EntityStore, world host.World, part DesiredPart, player host.Transform, frame uint64, now time.Time) *Instance {
	requested := assets.Normalize(part.ModelAssetID)
	resolved, ok := e.models.Resolve(requested)
	if !ok {
		return nil
	}
	asset, _ := e.models.Asset(resolved)
	id, err := store.Spawn(host.SpawnSpec{
		ModelAssetID: resolved,
		Transform:    Place(part.Profile, part.PartID, player, frame),
		Animation:    pickAnimation(part.Profile, part.PartID, asset),
	})
	if err != nil {
		e.warnOnce(requested, "spawn", frame, err)
		return nil
	}
	return &Instance{
		Entity:           id,
		World:            world,
		Profile:          part.Profile,
		PartID:           part.PartID,
		RequestedAssetID: requested,
		ResolvedAssetID:  resolved,
		LastSeen:         now,
	}
}

func (e *Engine) update(store host.EntityStore, inst *Instance, player host.Transform, frame uint64) bool {
	if !store.Valid(inst.Entity) {
		return false
	}
	err := store.SetTransform(inst.Entity, Place(inst.Profile, inst.PartID, player, frame))
	if err == nil {
		return true
	}
	if !errors.Is(err, host.ErrEntityNotFound) {
		e.warnOnce(inst.RequestedAssetID, "update", frame, err)
	}
	return false
}

// teardown removes inline when the instance lives in the current world,
// otherwise it is scheduled onto its own world.
func (e *Engine) teardown(store host.EntityStore, world host.World, inst *Instance) {
	if inst.World == world {
		e.removeInternal(store, inst)
		return
	}
	e.scheduleRemoval(inst)
}

func (e *Engine) removeInternal(store host.EntityStore, inst *Instance) {
	if store == nil || !store.Valid(inst.Entity) {
		return
	}
	if err := store.Remove(inst.Entity); err != nil && !errors.Is(err, host.ErrEntityNotFound) {
		e.warnOnce(inst.RequestedAssetID, "remove", 0, err)
	}
}

func (e *Engine) scheduleRemoval(inst *Instance) {
	if inst == nil || inst.World == nil || !inst.World.Alive() {
		return
	}
	err := inst.World.Execute(func(store host.EntityStore) {
		e.removeInternal(store, inst)
	})
	if err != nil && !errors.Is(err, host.ErrWorldClosed) {
		e.logger.Printf("schedule rig removal in world %s: %v", inst.World.Name(), err)
	}
}

func (e *Engine) warnOnce(assetID, operation string, frame uint64, err error) {
	if _, seen := e.failed.LoadOrStore(assetID+"#"+operation, struct{}{}); seen {
		return
	}
	e.logger.Printf("failed to %s model rig %q: %v", operation, assetID, err)
	logrigs.SpawnFailed(context.Background(), e.publisher, frame, logrigs.AssetPayload{
		AssetID:   assetID,
		Operation: operation,
		Error:     err.Error(),
	})
}

func (e *Engine) count(key string, n int) {
	if e.metrics == nil || n <= 0 {
		return
	}
	e.metrics.Add(key, uint64(n))
}

func clampSetting(value, lo, hi, fallback int) int {
	if value <= 0 {
		value = fallback
	}
	return min(max(value, lo), hi)
}
