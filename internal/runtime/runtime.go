// Package runtime schedules the particle and model rig loops across the
// loaded worlds and exposes the operator surface built on top of them.
package runtime

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"auravfx/server/internal/assets"
	"auravfx/server/internal/catalog"
	"auravfx/server/internal/config"
	"auravfx/server/internal/host"
	"auravfx/server/internal/permissions"
	"auravfx/server/internal/players"
	"auravfx/server/internal/render"
	"auravfx/server/internal/rigs"
	"auravfx/server/internal/telemetry"
	"auravfx/server/logging"
	logruntime "auravfx/server/logging/runtime"
)

const (
	// Every particleMaintenanceFrames particle frames the trackers, the
	// permission cache and stale rigs are pruned.
	particleMaintenanceFrames = 40
	// Every modelMaintenanceFrames model frames stale rigs are pruned.
	modelMaintenanceFrames = 200
)

// ErrPlayerNotFound is returned when no loaded world holds the player.
var ErrPlayerNotFound = errors.New("runtime: player not found in any loaded world")

// Catalog is the cosmetic lookup the runtime renders from.
type Catalog interface {
	catalog.Lookup
	All() []catalog.Definition
}

type reloader interface {
	Reload() error
}

// Deps wires a Runtime to its collaborators. Universe, Catalog and Players
// are required; the rest fall back to working defaults.
type Deps struct {
	Universe    host.Universe
	Catalog     Catalog
	Players     players.Store
	Permissions *permissions.Cache
	Particles   *assets.Resolver
	Rigs        *rigs.Engine
	Renderer    *render.Renderer
	Logger      telemetry.Logger
	Publisher   logging.Publisher
	Metrics     telemetry.Metrics
	Clock       logging.Clock
}

// Runtime owns the two tick loops. Start, Stop, Reload and SetModelVFX are
// serialized; ticks read the current configuration without locking.
type Runtime struct {
	deps Deps

	cfg atomic.Pointer[config.Config]

	particles *Loop
	models    *Loop

	// tickMu is held for reading by every queued world task and for writing
	// while epoch moves forward, so no task from an older epoch is still
	// running once Stop clears the rigs.
	tickMu sync.RWMutex
	epoch  uint64

	mu      sync.Mutex
	parent  context.Context
	managed bool
	cancel  context.CancelFunc
	group   *errgroup.Group
}

func New(cfg config.Config, deps Deps) *Runtime {
	if deps.Logger == nil {
		deps.Logger = telemetry.NopLogger()
	}
	if deps.Publisher == nil {
		deps.Publisher = logging.NopPublisher()
	}
	if deps.Clock == nil {
		deps.Clock = logging.SystemClock{}
	}
	cfg = cfg.Normalize()
	if deps.Permissions == nil {
		deps.Permissions = permissions.NewCache(permissions.AllowAll(), cfg.PermissionTTL(), deps.Clock)
	}
	if deps.Particles == nil {
		deps.Particles = assets.NewResolver(assets.NewMapRegistry(), assets.ParticleOptions(), deps.Logger)
	}
	if deps.Rigs == nil {
		deps.Rigs = rigs.NewEngine(rigs.Options{Logger: deps.Logger, Publisher: deps.Publisher, Metrics: deps.Metrics, Clock: deps.Clock})
	}
	if deps.Renderer == nil {
		deps.Renderer = render.NewRenderer(deps.Logger)
	}
	if deps.Players == nil {
		deps.Players = players.NewMemoryStore()
	}

	r := &Runtime{deps: deps}
	r.cfg.Store(&cfg)
	r.particles = NewLoop(ParticleLoop, cfg.RenderInterval(), r.tickParticles, deps.Logger, deps.Publisher, deps.Metrics)
	r.models = NewLoop(ModelLoop, cfg.ModelVFX.UpdateInterval(), r.tickModels, deps.Logger, deps.Publisher, deps.Metrics)
	deps.Permissions.SetTTL(cfg.PermissionTTL())
	deps.Rigs.Configure(cfg.ModelVFX.MaxRigsPerPlayer, cfg.ModelVFX.LodUltraMaxWorldPlayers)
	return r
}

// Config returns the configuration ticks currently use.
func (r *Runtime) Config() config.Config {
	return *r.cfg.Load()
}

// Running reports whether the loops are scheduled.
func (r *Runtime) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cancel != nil
}

// Start schedules both loops under ctx. When rendering is disabled in the
// configuration the runtime stays managed but idle.
func (r *Runtime) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.parent = ctx
	r.managed = true
	r.restartLocked()
}

// Stop cancels both loops, waits for them and clears every rig and tracker.
func (r *Runtime) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.managed = false
	r.stopLocked()
}

// Reload applies cfg, reloads the catalog when it supports it and resets
// every cache. Loops restart when the runtime was started. A catalog
// error is returned after the new configuration is in place; the catalog
// then keeps its previous contents.
func (r *Runtime) Reload(cfg config.Config) error {
	cfg = cfg.Normalize()

	r.mu.Lock()
	defer r.mu.Unlock()

	r.stopLocked()
	r.cfg.Store(&cfg)

	var catalogErr error
	if rl, ok := r.deps.Catalog.(reloader); ok {
		if err := rl.Reload(); err != nil {
			r.deps.Logger.Printf("warn: catalog reload failed, keeping previous entries: %v", err)
			catalogErr = err
		}
	}

	r.deps.Particles.Reset()
	r.deps.Renderer.ResetWarnings()
	r.deps.Permissions.InvalidateAll()
	r.deps.Permissions.SetTTL(cfg.PermissionTTL())
	r.deps.Rigs.ResetCaches()
	budget, ultra := r.deps.Rigs.Configure(cfg.ModelVFX.MaxRigsPerPlayer, cfg.ModelVFX.LodUltraMaxWorldPlayers)
	r.particles.ResetFrame()
	r.models.ResetFrame()

	cosmetics := 0
	for _, category := range catalog.Categories() {
		cosmetics += len(r.deps.Catalog.ByCategory(category))
	}
	r.deps.Logger.Printf(
		"reloaded: cosmetics=%d, runtime=%t (%dms), modelRuntime=%dms, modelLodRadius=%d, permCacheTtl=%dms, modelRigBudget=%d, lodUltraMaxPlayers=%d, worlds=%s",
		cosmetics,
		cfg.RuntimeRenderingEnabled,
		cfg.RuntimeRenderIntervalMS,
		cfg.ModelVFX.UpdateIntervalMS,
		cfg.ModelVFX.LodNearbyRadius,
		cfg.PermissionCacheTTLMS,
		budget,
		ultra,
		worldsLabel(cfg),
	)

	if r.managed {
		r.restartLocked()
	}
	active := r.cancel != nil
	logruntime.Reloaded(context.Background(), r.deps.Publisher, logruntime.ReloadedPayload{
		Cosmetics:       cosmetics,
		ParticlesActive: active,
		ModelsActive:    active,
	})
	return catalogErr
}

// SetModelVFX changes one model rig setting by operator option name,
// normalizes the result, reconfigures the engine and restarts the loops
// when they were running. It returns the canonical key and the applied
// settings.
func (r *Runtime) SetModelVFX(option string, value int) (string, config.ModelVFX, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cfg := r.Config()
	key, err := cfg.ModelVFX.Set(option, value)
	if err != nil {
		return "", cfg.ModelVFX, err
	}
	cfg = cfg.Normalize()
	r.cfg.Store(&cfg)
	r.deps.Rigs.Configure(cfg.ModelVFX.MaxRigsPerPlayer, cfg.ModelVFX.LodUltraMaxWorldPlayers)
	r.deps.Logger.Printf("model vfx %s set to %d", key, modelValue(cfg.ModelVFX, key))
	if r.managed {
		r.restartLocked()
	}
	return key, cfg.ModelVFX, nil
}

// StepParticles runs one particle frame synchronously.
func (r *Runtime) StepParticles(ctx context.Context) uint64 {
	return r.particles.Step(ctx)
}

// StepModels runs one model frame synchronously.
func (r *Runtime) StepModels(ctx context.Context) uint64 {
	return r.models.Step(ctx)
}

// OnPlayerReady clears the player's rigs and cached permissions.
func (r *Runtime) OnPlayerReady(player uuid.UUID) {
	r.deps.Rigs.ClearPlayer(player)
	r.deps.Permissions.InvalidatePlayer(player)
}

// OnPlayerDisconnect forgets everything held for the player.
func (r *Runtime) OnPlayerDisconnect(player uuid.UUID) {
	r.deps.Rigs.ClearPlayer(player)
	r.deps.Renderer.Forget(player)
	r.deps.Permissions.InvalidatePlayer(player)
}

// OnDrainPlayerFromWorld runs when a player leaves a world.
func (r *Runtime) OnDrainPlayerFromWorld(player uuid.UUID) {
	r.deps.Rigs.ClearPlayer(player)
	r.deps.Renderer.Forget(player)
}

// OnAddPlayerToWorld runs when a player enters a world. Rigs respawn in the
// new world on the next model frame.
func (r *Runtime) OnAddPlayerToWorld(player uuid.UUID) {
	r.deps.Rigs.ClearPlayer(player)
}

// OnCosmeticUnequipped drops the rigs of one category right away instead
// of waiting for the next model frame.
func (r *Runtime) OnCosmeticUnequipped(player uuid.UUID, category catalog.Category) {
	r.deps.Rigs.ClearCategory(player, string(category))
}

func (r *Runtime) restartLocked() {
	r.stopLocked()
	cfg := r.Config()
	if !cfg.RuntimeRenderingEnabled {
		r.deps.Logger.Printf("runtime renderer disabled in config")
		return
	}
	parent := r.parent
	if parent == nil {
		parent = context.Background()
	}
	r.particles.SetInterval(cfg.RenderInterval())
	r.models.SetInterval(cfg.ModelVFX.UpdateInterval())

	ctx, cancel := context.WithCancel(parent)
	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error { return r.particles.Run(gctx) })
	group.Go(func() error { return r.models.Run(gctx) })
	r.cancel = cancel
	r.group = group
	r.deps.Logger.Printf("runtime renderer started: particles=%dms, models=%dms", cfg.RuntimeRenderIntervalMS, cfg.ModelVFX.UpdateIntervalMS)
}

func (r *Runtime) stopLocked() {
	wasRunning := r.cancel != nil
	if r.cancel != nil {
		r.cancel()
		_ = r.group.Wait()
		r.cancel = nil
		r.group = nil
	}
	r.advanceEpoch()
	r.deps.Renderer.Clear()
	cleared := r.deps.Rigs.ClearAll()
	if wasRunning {
		logruntime.Stopped(context.Background(), r.deps.Publisher, logruntime.StoppedPayload{RigsCleared: cleared})
	}
}

// advanceEpoch waits for world tasks already running and makes the ones
// still queued return without touching any rig.
func (r *Runtime) advanceEpoch() {
	r.tickMu.Lock()
	r.epoch++
	r.tickMu.Unlock()
}

func (r *Runtime) currentEpoch() uint64 {
	r.tickMu.RLock()
	defer r.tickMu.RUnlock()
	return r.epoch
}

func worldsLabel(cfg config.Config) any {
	if cfg.AllowInAllWorlds {
		return "*"
	}
	return cfg.WorldWhitelist
}

func modelValue(m config.ModelVFX, key string) int {
	switch key {
	case "maxRigsPerPlayer":
		return m.MaxRigsPerPlayer
	case "lodUltraMaxWorldPlayers":
		return m.LodUltraMaxWorldPlayers
	case "lodNearbyRadius":
		return m.LodNearbyRadius
	default:
		return m.UpdateIntervalMS
	}
}
