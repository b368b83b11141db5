package runtime

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"auravfx/server/internal/catalog"
	"auravfx/server/internal/config"
	"auravfx/server/internal/host"
	"auravfx/server/internal/lod"
	"auravfx/server/internal/render"
	"auravfx/server/internal/rigs"
)

func (r *Runtime) tickParticles(ctx context.Context, frame uint64) error {
	if r.deps.Universe == nil {
		return nil
	}
	if frame%particleMaintenanceFrames == 0 {
		r.maintain(r.deps.Clock.Now())
	}
	return r.dispatch(ctx, r.particles, frame, func(world host.World, store host.EntityStore) {
		r.renderWorld(store, frame)
	})
}

func (r *Runtime) tickModels(ctx context.Context, frame uint64) error {
	if r.deps.Universe == nil {
		return nil
	}
	if frame%modelMaintenanceFrames == 0 {
		r.deps.Rigs.PruneStale(r.deps.Clock.Now())
	}
	cfg := r.Config()
	return r.dispatch(ctx, r.models, frame, func(world host.World, store host.EntityStore) {
		r.renderWorldModels(world, store, frame, cfg.ModelVFX)
	})
}

func (r *Runtime) maintain(now time.Time) {
	trackers := r.deps.Renderer.Prune(now)
	permissions := r.deps.Permissions.Prune(now)
	rigsPruned := r.deps.Rigs.PruneStale(now)
	if r.Config().Debug && trackers+permissions+rigsPruned > 0 {
		r.deps.Logger.Printf("maintenance pruned trackers=%d permissions=%d rigs=%d", trackers, permissions, rigsPruned)
	}
}

// dispatch queues task on every loaded, alive, populated and allowed world.
// A panic inside task is reported against that world only. Tasks still
// queued when the runtime stops or reloads are dropped.
func (r *Runtime) dispatch(ctx context.Context, loop *Loop, frame uint64, task func(host.World, host.EntityStore)) error {
	cfg := r.Config()
	epoch := r.currentEpoch()
	var errs []error
	dispatched := 0
	for _, world := range r.deps.Universe.Worlds() {
		if world == nil || !world.Alive() || world.PlayerCount() <= 0 {
			continue
		}
		if !cfg.WorldAllowed(world.Name()) {
			continue
		}
		err := world.Execute(func(store host.EntityStore) {
			defer func() {
				if recovered := recover(); recovered != nil {
					loop.Fail(ctx, frame, world.Name(), fmt.Errorf("panic: %v", recovered))
				}
			}()
			r.tickMu.RLock()
			defer r.tickMu.RUnlock()
			if r.epoch != epoch {
				return
			}
			task(world, store)
		})
		if err != nil {
			if !errors.Is(err, host.ErrWorldClosed) {
				errs = append(errs, fmt.Errorf("world %s: %w", world.Name(), err))
			}
			continue
		}
		dispatched++
	}
	if r.deps.Metrics != nil {
		r.deps.Metrics.Store("runtime_"+loop.Name()+"_worlds", uint64(dispatched))
	}
	return errors.Join(errs...)
}

func (r *Runtime) renderWorld(store host.EntityStore, frame uint64) {
	now := r.deps.Clock.Now()
	emitted := 0
	for _, player := range store.Players() {
		if player.ID == uuid.Nil {
			continue
		}
		f := render.Frame{
			Emitter:  store,
			Position: player.Transform.Position,
			Yaw:      player.Transform.Rotation.Yaw,
			Frame:    frame,
			Now:      now,
			Tracker:  r.deps.Renderer.Tracker(player.ID, now),
		}
		for _, category := range catalog.Categories() {
			emitted += r.renderCategory(f, player.ID, category)
		}
	}
	if r.deps.Metrics != nil && emitted > 0 {
		r.deps.Metrics.Add("particles_emitted", uint64(emitted))
	}
}

// renderCategory draws every particle cosmetic of category. Model-backed
// entries still take a slot so badge carousels keep their spacing.
func (r *Runtime) renderCategory(f render.Frame, player uuid.UUID, category catalog.Category) int {
	active := r.activeCosmetics(player, category)
	if len(active) == 0 {
		return 0
	}
	total := max(1, len(active))
	slot := 0
	emitted := 0
	for _, def := range active {
		if !r.allowed(player, def) {
			continue
		}
		if def.IsModel() {
			slot++
			continue
		}
		effectID, _ := r.deps.Particles.Resolve(def.EffectID)
		if effectID == "" {
			continue
		}
		emitted += r.deps.Renderer.Render(f, category, effectID, def, slot, total)
		slot++
	}
	return emitted
}

func (r *Runtime) renderWorldModels(world host.World, store host.EntityStore, frame uint64, settings config.ModelVFX) {
	snapshots := store.Players()
	if len(snapshots) == 0 {
		return
	}
	radius := float64(settings.LodNearbyRadius)
	positions := make([]lod.Snapshot, len(snapshots))
	for i, player := range snapshots {
		positions[i] = lod.Snapshot{Player: player.ID, Position: player.Transform.Position}
	}
	index := lod.BuildIndex(positions, radius)
	now := r.deps.Clock.Now()

	for i, player := range snapshots {
		if player.ID == uuid.Nil {
			continue
		}
		r.deps.Rigs.Synchronize(rigs.SyncRequest{
			Player:    player.ID,
			World:     world,
			Store:     store,
			Transform: player.Transform,
			Desired:   r.desiredRigs(player.ID),
			Nearby:    index.CountNearby(i, radius),
			Frame:     frame,
			Now:       now,
		})
	}
}

// desiredRigs lists the permitted model cosmetics in category order then
// equip order. That order decides what survives the rig budget.
func (r *Runtime) desiredRigs(player uuid.UUID) []rigs.DesiredRig {
	var desired []rigs.DesiredRig
	for _, category := range catalog.Categories() {
		for _, def := range r.activeCosmetics(player, category) {
			if !def.IsModel() || !r.allowed(player, def) {
				continue
			}
			desired = append(desired, rigs.NewDesiredRig(string(category), def.ID, def.ModelAssetID, def.Profile))
		}
	}
	return desired
}

// activeCosmetics resolves the player's equipped ids against the enabled
// catalog. Single-slot categories only honour the first id.
func (r *Runtime) activeCosmetics(player uuid.UUID, category catalog.Category) []catalog.Definition {
	ids := r.deps.Players.ActiveCosmetics(player, string(category))
	if len(ids) == 0 {
		return nil
	}
	if !category.MultiActive() {
		ids = ids[:1]
	}
	out := make([]catalog.Definition, 0, len(ids))
	for _, id := range ids {
		if def, ok := r.deps.Catalog.Definition(category, id); ok {
			out = append(out, def)
		}
	}
	return out
}

func (r *Runtime) allowed(player uuid.UUID, def catalog.Definition) bool {
	return r.deps.Permissions.AllowedCosmetic(player, string(def.Category), def.Permission)
}
