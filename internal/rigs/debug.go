package rigs

import (
	"context"
	"strings"

	"auravfx/server/internal/assets"
	"auravfx/server/internal/host"
	logrigs "auravfx/server/logging/rigs"
)

// SpawnDebug places a single untracked rig next to a player. It ignores the
// budget and removes itself after DebugLifetime. Must run on world's
// executor with its store.
func (e *Engine) SpawnDebug(world host.World, store host.EntityStore, player host.Transform, requested string) DebugSpawnResult {
	if strings.TrimSpace(requested) == "" {
		requested = DefaultDebugModel
	}
	part := DesiredPart{
		CategoryID:   "debug",
		CosmeticID:   "debug_model",
		Profile:      ProfileDefault,
		PartID:       "main",
		ModelAssetID: assets.Normalize(requested),
	}
	inst := e.spawn(store, world, part, player, 0, e.clock.Now())

	payload := logrigs.DebugRigPayload{World: world.Name(), Requested: part.ModelAssetID}
	if inst == nil {
		logrigs.DebugRigSpawned(context.Background(), e.publisher, payload)
		return DebugSpawnResult{ResolvedAssetID: part.ModelAssetID}
	}
	payload.Resolved, payload.Success = inst.ResolvedAssetID, true
	logrigs.DebugRigSpawned(context.Background(), e.publisher, payload)

	e.afterFunc(DebugLifetime, func() {
		if !world.Alive() {
			return
		}
		_ = world.Execute(func(s host.EntityStore) {
			e.removeInternal(s, inst)
		})
	})
	return DebugSpawnResult{Success: true, ResolvedAssetID: inst.ResolvedAssetID}
}
