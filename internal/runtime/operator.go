package runtime

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"auravfx/server/internal/assets"
	"auravfx/server/internal/config"
	"auravfx/server/internal/host"
	"auravfx/server/internal/lod"
	"auravfx/server/internal/rigs"
)

// AuditLineLimit caps the detail lines of an audit report.
const AuditLineLimit = 80

// AuditReport checks every enabled model cosmetic at both tiers.
type AuditReport struct {
	ModelCosmetics int      `json:"modelCosmetics"`
	PartChecks     int      `json:"partChecks"`
	Resolved       int      `json:"resolved"`
	Missing        int      `json:"missing"`
	Shown          int      `json:"shown"`
	Truncated      int      `json:"truncated"`
	Lines          []string `json:"lines"`
}

func tierLabel(tier lod.Tier) string {
	if tier == lod.TierFull {
		return "ULTRA"
	}
	return "BALANCED"
}

// Audit resolves the parts of every enabled model cosmetic at the reduced
// and the full tier. A cosmetic that expands to nothing counts as one
// missing check.
func (r *Runtime) Audit() AuditReport {
	report := AuditReport{Lines: []string{}}
	line := func(text string) {
		if report.Shown < AuditLineLimit {
			report.Lines = append(report.Lines, text)
			report.Shown++
		}
	}
	for _, def := range r.deps.Catalog.All() {
		if !def.IsEnabled() || !def.IsModel() {
			continue
		}
		report.ModelCosmetics++
		for _, tier := range []lod.Tier{lod.TierReduced, lod.TierFull} {
			label := tierLabel(tier)
			parts := r.deps.Rigs.DescribeAuditParts(string(def.Category), def.ID, def.ModelAssetID, def.Profile, tier)
			if len(parts) == 0 {
				report.PartChecks++
				report.Missing++
				line(fmt.Sprintf("- %s/%s [%s:main] %s -> MISSING", def.Category, def.ID, label, assets.Normalize(def.ModelAssetID)))
				continue
			}
			for _, part := range parts {
				report.PartChecks++
				resolved := "MISSING"
				if part.Resolvable {
					report.Resolved++
					resolved = assets.Normalize(part.ResolvedAssetID)
				} else {
					report.Missing++
				}
				line(fmt.Sprintf("- %s/%s [%s:%s] %s -> %s", def.Category, def.ID, label, part.PartID, part.RequestedAssetID, resolved))
			}
		}
	}
	report.Truncated = report.PartChecks - report.Shown
	return report
}

// DensityReport counts players around one player the way the LOD pass
// does, without the grid.
type DensityReport struct {
	World  string `json:"world"`
	Nearby int    `json:"nearby"`
	Total  int    `json:"total"`
	Radius int    `json:"radius"`
}

// Density runs on the player's world and waits for the answer.
func (r *Runtime) Density(ctx context.Context, player uuid.UUID) (DensityReport, error) {
	radius := r.Config().ModelVFX.LodNearbyRadius
	var report DensityReport
	err := r.withPlayer(ctx, player, func(world host.World, store host.EntityStore, _ host.PlayerSnapshot) {
		snapshots := store.Players()
		positions := make([]lod.Snapshot, len(snapshots))
		src := -1
		for i, candidate := range snapshots {
			positions[i] = lod.Snapshot{Player: candidate.ID, Position: candidate.Transform.Position}
			if candidate.ID == player {
				src = i
			}
		}
		report = DensityReport{
			World:  world.Name(),
			Nearby: lod.CountNearbyBruteForce(positions, src, float64(radius)),
			Total:  len(snapshots),
			Radius: radius,
		}
	})
	return report, err
}

// SpawnDebugRig places a temporary rig of modelAssetID next to the player.
// A blank id spawns the default debug model.
func (r *Runtime) SpawnDebugRig(ctx context.Context, player uuid.UUID, modelAssetID string) (rigs.DebugSpawnResult, error) {
	var result rigs.DebugSpawnResult
	err := r.withPlayer(ctx, player, func(world host.World, store host.EntityStore, snapshot host.PlayerSnapshot) {
		result = r.deps.Rigs.SpawnDebug(world, store, snapshot.Transform, modelAssetID)
	})
	return result, err
}

// withPlayer finds the world holding player and runs fn on its executor.
// Every alive world is asked once; the call returns when all have answered.
func (r *Runtime) withPlayer(ctx context.Context, player uuid.UUID, fn func(host.World, host.EntityStore, host.PlayerSnapshot)) error {
	if r.deps.Universe == nil {
		return ErrPlayerNotFound
	}
	worlds := r.deps.Universe.Worlds()
	answers := make(chan bool, len(worlds))
	asked := 0
	for _, world := range worlds {
		if world == nil || !world.Alive() || world.PlayerCount() <= 0 {
			continue
		}
		err := world.Execute(func(store host.EntityStore) {
			for _, snapshot := range store.Players() {
				if snapshot.ID == player {
					fn(world, store, snapshot)
					answers <- true
					return
				}
			}
			answers <- false
		})
		if err == nil {
			asked++
		}
	}
	found := false
	for ; asked > 0; asked-- {
		select {
		case ok := <-answers:
			found = found || ok
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if !found {
		return ErrPlayerNotFound
	}
	return nil
}

// Diagnostics is a point-in-time view of the runtime.
type Diagnostics struct {
	Running           bool          `json:"running"`
	ParticleFrame     uint64        `json:"particleFrame"`
	ModelFrame        uint64        `json:"modelFrame"`
	RigPlayers        int           `json:"rigPlayers"`
	Rigs              int           `json:"rigs"`
	RigBudget         int           `json:"rigBudget"`
	LodUltraMax       int           `json:"lodUltraMax"`
	Trackers          int           `json:"trackers"`
	PermissionEntries int           `json:"permissionEntries"`
	Worlds            []WorldStatus `json:"worlds"`
	Config            config.Config `json:"config"`
}

type WorldStatus struct {
	Name    string `json:"name"`
	Alive   bool   `json:"alive"`
	Players int    `json:"players"`
	Allowed bool   `json:"allowed"`
}

func (r *Runtime) Diagnostics() Diagnostics {
	cfg := r.Config()
	d := Diagnostics{
		Running:           r.Running(),
		ParticleFrame:     r.particles.Frame(),
		ModelFrame:        r.models.Frame(),
		RigPlayers:        r.deps.Rigs.ActivePlayers(),
		Rigs:              r.deps.Rigs.ActiveRigs(),
		RigBudget:         r.deps.Rigs.RigBudget(),
		LodUltraMax:       r.deps.Rigs.LodUltraMax(),
		Trackers:          r.deps.Renderer.Len(),
		PermissionEntries: r.deps.Permissions.Len(),
		Worlds:            []WorldStatus{},
		Config:            cfg,
	}
	if r.deps.Universe != nil {
		for _, world := range r.deps.Universe.Worlds() {
			if world == nil {
				continue
			}
			d.Worlds = append(d.Worlds, WorldStatus{
				Name:    world.Name(),
				Alive:   world.Alive(),
				Players: world.PlayerCount(),
				Allowed: cfg.WorldAllowed(world.Name()),
			})
		}
	}
	return d
}

// ParseModelVFXValue parses an operator-supplied integer setting.
func ParseModelVFXValue(raw string) (int, error) {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not an integer", config.ErrInvalid, raw)
	}
	return value, nil
}
