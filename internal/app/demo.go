package app

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"

	"auravfx/server/internal/catalog"
	"auravfx/server/internal/config"
	"auravfx/server/internal/host"
	"auravfx/server/internal/host/memhost"
	"auravfx/server/internal/players"
	"auravfx/server/internal/telemetry"
)

const demoStep = 100 * time.Millisecond

type lifecycle interface {
	OnPlayerReady(player uuid.UUID)
	OnAddPlayerToWorld(player uuid.UUID)
	OnPlayerDisconnect(player uuid.UUID)
}

type demoAvatar struct {
	id     uuid.UUID
	world  *memhost.World
	center mgl64.Vec3
	radius float64
	speed  float64
	phase  float64
}

// demo fills the in-memory universe with players walking in circles, each
// wearing a different set of cosmetics, so every loop has work to do.
type demo struct {
	universe  *memhost.Universe
	store     *players.MemoryStore
	cosmetics catalog.Lookup
	hooks     lifecycle
	logger    telemetry.Logger
	avatars   []demoAvatar
	started   time.Time
}

func newDemo(universe *memhost.Universe, store *players.MemoryStore, cosmetics catalog.Lookup, hooks lifecycle, logger telemetry.Logger) *demo {
	return &demo{universe: universe, store: store, cosmetics: cosmetics, hooks: hooks, logger: logger, started: time.Now()}
}

func (d *demo) populate(settings config.Config, count int) error {
	names := settings.WorldWhitelist
	if len(names) == 0 {
		names = []string{"default"}
	}
	worlds := make([]*memhost.World, 0, len(names))
	for _, name := range names {
		worlds = append(worlds, d.universe.AddWorld(name))
	}

	pools := make(map[catalog.Category][]string)
	for _, category := range catalog.Categories() {
		pools[category] = sortedIDs(d.cosmetics.ByCategory(category))
	}
	pick := func(category catalog.Category, i int) string {
		pool := pools[category]
		if len(pool) == 0 {
			return ""
		}
		return pool[i%len(pool)]
	}

	for i := 0; i < count; i++ {
		avatar := demoAvatar{
			id:     uuid.New(),
			world:  worlds[i%len(worlds)],
			center: mgl64.Vec3{float64(i%3) * 6, 64, float64(i/3) * 6},
			radius: 3 + float64(i%4),
			speed:  0.6 + 0.1*float64(i%5),
			phase:  float64(i) * 0.9,
		}

		d.store.SetActive(avatar.id, string(catalog.CategoryAuras), pick(catalog.CategoryAuras, i))
		d.store.SetActive(avatar.id, string(catalog.CategoryTrails), pick(catalog.CategoryTrails, i))
		d.store.SetActive(avatar.id, string(catalog.CategoryFootprints), pick(catalog.CategoryFootprints, i))
		if i%2 == 0 {
			d.store.SetActive(avatar.id, string(catalog.CategoryAurasPremium), pick(catalog.CategoryAurasPremium, i))
		}
		d.store.SetActiveList(avatar.id, string(catalog.CategoryFloatingBadges), []string{
			pick(catalog.CategoryFloatingBadges, i),
			pick(catalog.CategoryFloatingBadges, i+1),
		})
		d.store.SetActiveList(avatar.id, string(catalog.CategoryTrophyBadges), []string{pick(catalog.CategoryTrophyBadges, i)})

		if err := avatar.world.AddPlayer(avatar.id, avatar.transform(0)); err != nil {
			return fmt.Errorf("add demo player to %s: %w", avatar.world.Name(), err)
		}
		d.hooks.OnPlayerReady(avatar.id)
		d.hooks.OnAddPlayerToWorld(avatar.id)
		d.avatars = append(d.avatars, avatar)
	}
	d.logger.Printf("demo: %d players across %d worlds", len(d.avatars), len(worlds))
	return nil
}

// run moves every avatar until ctx ends, then disconnects them.
func (d *demo) run(ctx context.Context) {
	ticker := time.NewTicker(demoStep)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			for _, avatar := range d.avatars {
				_ = avatar.world.RemovePlayer(avatar.id)
				d.hooks.OnPlayerDisconnect(avatar.id)
			}
			return
		case now := <-ticker.C:
			elapsed := now.Sub(d.started).Seconds()
			for _, avatar := range d.avatars {
				if err := avatar.world.MovePlayer(avatar.id, avatar.transform(elapsed)); err != nil {
					d.logger.Printf("demo: move %s: %v", avatar.id, err)
				}
			}
		}
	}
}

func (a demoAvatar) transform(elapsed float64) host.Transform {
	angle := a.phase + elapsed*a.speed/a.radius
	position := a.center.Add(mgl64.Vec3{math.Cos(angle) * a.radius, 0, math.Sin(angle) * a.radius})
	// Facing along the tangent of the circle.
	yaw := mgl64.RadToDeg(angle + math.Pi/2)
	return host.Transform{Position: position, Rotation: host.Rotation{Yaw: yaw}}
}

func sortedIDs(defs map[string]catalog.Definition) []string {
	ids := make([]string, 0, len(defs))
	for id := range defs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
