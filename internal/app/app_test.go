package app

import (
	"context"
	"math"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"auravfx/server/internal/assets"
	"auravfx/server/internal/catalog"
	"auravfx/server/internal/config"
	"auravfx/server/internal/host/memhost"
	"auravfx/server/internal/players"
	"auravfx/server/internal/telemetry"
)

type hookRecorder struct {
	ready, added, gone []uuid.UUID
}

func (h *hookRecorder) OnPlayerReady(id uuid.UUID)      { h.ready = append(h.ready, id) }
func (h *hookRecorder) OnAddPlayerToWorld(id uuid.UUID) { h.added = append(h.added, id) }
func (h *hookRecorder) OnPlayerDisconnect(id uuid.UUID) { h.gone = append(h.gone, id) }

func defaultCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.FromJSON("empty", []byte(`[]`))
	require.NoError(t, err)
	return cat
}

func TestSyncRegistriesPublishesRigSubAssets(t *testing.T) {
	cat := defaultCatalog(t)
	particles := assets.NewMapRegistry()
	models := assets.NewMapRegistry()
	syncRegistries(cat, particles, models)

	assert.Equal(t, len(cat.EffectIDs()), particles.Len())
	for _, id := range []string{
		"Server/Models/HyPerksVFX/FireIceCone_Rig.json",
		"Server/Models/HyPerksVFX/FireIceCone_Rig_Core.json",
		"Server/Models/HyPerksVFX/FireIceCone_Rig_HelixIce.json",
		"Server/Models/HyPerksVFX/StormClouds_Rig_Ring.json",
	} {
		asset, ok := models.Lookup(id)
		require.True(t, ok, id)
		assert.True(t, asset.HasAnimation("Idle"))
	}
}

func TestDemoPopulateEquipsAndPlacesPlayers(t *testing.T) {
	universe := memhost.NewUniverse(nil)
	t.Cleanup(universe.Close)
	store := players.NewMemoryStore()
	hooks := &hookRecorder{}
	d := newDemo(universe, store, defaultCatalog(t), hooks, telemetry.NopLogger())

	settings := config.Default()
	settings.WorldWhitelist = []string{"default", "arena"}
	require.NoError(t, d.populate(settings, 5))

	require.Len(t, d.avatars, 5)
	assert.Len(t, hooks.ready, 5)
	assert.Len(t, hooks.added, 5)

	defaultWorld, ok := universe.World("default")
	require.True(t, ok)
	arena, ok := universe.World("arena")
	require.True(t, ok)
	assert.Equal(t, 3, defaultWorld.PlayerCount())
	assert.Equal(t, 2, arena.PlayerCount())

	first := d.avatars[0].id
	assert.Len(t, store.ActiveCosmetics(first, "auras"), 1)
	assert.Len(t, store.ActiveCosmetics(first, "floating_badges"), 2)
	assert.Len(t, store.ActiveCosmetics(first, "auras_premium"), 1)
	assert.Empty(t, store.ActiveCosmetics(d.avatars[1].id, "auras_premium"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.run(ctx)
		close(done)
	}()
	cancel()
	<-done
	assert.Len(t, hooks.gone, 5)
	assert.Zero(t, defaultWorld.PlayerCount())
}

func TestDemoAvatarWalksItsCircle(t *testing.T) {
	avatar := demoAvatar{radius: 4, speed: 1, phase: 0}
	for _, elapsed := range []float64{0, 1.5, 10} {
		position := avatar.transform(elapsed).Position
		assert.InDelta(t, 4, math.Hypot(position.X(), position.Z()), 1e-9)
		assert.Zero(t, position.Y())
	}
	assert.InDelta(t, 90, avatar.transform(0).Rotation.Yaw, 1e-9)
}
