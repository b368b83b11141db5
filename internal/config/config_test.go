package config

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureLogger struct {
	lines []string
}

func (c *captureLogger) Printf(format string, args ...any) {
	c.lines = append(c.lines, fmt.Sprintf(format, args...))
}

func envMap(values map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}
}

func TestDefaultIsNormalized(t *testing.T) {
	cfg := Default()
	assert.Equal(t, cfg, cfg.Normalize())
	assert.Equal(t, []string{"default"}, cfg.WorldWhitelist)
	assert.True(t, cfg.RuntimeRenderingEnabled)
	assert.Equal(t, 250*time.Millisecond, cfg.RenderInterval())
	assert.Equal(t, 1500*time.Millisecond, cfg.PermissionTTL())
	assert.Equal(t, 16, cfg.ModelVFX.MaxRigsPerPlayer)
	assert.Equal(t, 50*time.Millisecond, cfg.ModelVFX.UpdateInterval())
}

func TestNormalizeClamps(t *testing.T) {
	cfg := Default()
	cfg.RuntimeRenderIntervalMS = 1
	cfg.PermissionCacheTTLMS = -5
	cfg.ModelVFX = ModelVFX{MaxRigsPerPlayer: 500, LodUltraMaxWorldPlayers: 0, LodNearbyRadius: 1, UpdateIntervalMS: 99999}
	cfg.HTTPAddr = "  "
	cfg.WorldWhitelist = []string{" Default ", "", "ARENA", "arena"}

	got := cfg.Normalize()
	assert.Equal(t, MinRenderIntervalMS, got.RuntimeRenderIntervalMS)
	assert.Equal(t, 0, got.PermissionCacheTTLMS)
	assert.Equal(t, ModelVFX{MaxRigsPerPlayer: 64, LodUltraMaxWorldPlayers: 1, LodNearbyRadius: 6, UpdateIntervalMS: 1000}, got.ModelVFX)
	assert.Equal(t, ":8080", got.HTTPAddr)
	assert.Equal(t, []string{"default", "arena"}, got.WorldWhitelist)

	cfg.RuntimeRenderIntervalMS = 90000
	cfg.PermissionCacheTTLMS = 90000
	got = cfg.Normalize()
	assert.Equal(t, MaxRenderIntervalMS, got.RuntimeRenderIntervalMS)
	assert.Equal(t, MaxPermissionTTLMS, got.PermissionCacheTTLMS)
}

func TestWorldAllowed(t *testing.T) {
	cfg := Default()
	assert.True(t, cfg.WorldAllowed("Default"))
	assert.False(t, cfg.WorldAllowed("arena"))

	cfg.AllowInAllWorlds = true
	assert.True(t, cfg.WorldAllowed("arena"))

	cfg.AllowInAllWorlds = false
	cfg.WorldWhitelist = nil
	assert.True(t, cfg.WorldAllowed("anything"))
}

func TestModelVFXSetAliases(t *testing.T) {
	cases := []struct {
		option string
		key    string
		read   func(ModelVFX) int
	}{
		{"budget", "maxRigsPerPlayer", func(m ModelVFX) int { return m.MaxRigsPerPlayer }},
		{"MAX_RIGS", "maxRigsPerPlayer", func(m ModelVFX) int { return m.MaxRigsPerPlayer }},
		{"lod", "lodUltraMaxWorldPlayers", func(m ModelVFX) int { return m.LodUltraMaxWorldPlayers }},
		{"lod_ultra", "lodUltraMaxWorldPlayers", func(m ModelVFX) int { return m.LodUltraMaxWorldPlayers }},
		{"radius", "lodNearbyRadius", func(m ModelVFX) int { return m.LodNearbyRadius }},
		{"lodRadius", "lodNearbyRadius", func(m ModelVFX) int { return m.LodNearbyRadius }},
		{"tick", "updateIntervalMs", func(m ModelVFX) int { return m.UpdateIntervalMS }},
		{" interval ", "updateIntervalMs", func(m ModelVFX) int { return m.UpdateIntervalMS }},
	}
	for _, tc := range cases {
		t.Run(tc.option, func(t *testing.T) {
			m := Default().ModelVFX
			key, err := m.Set(tc.option, 77)
			require.NoError(t, err)
			assert.Equal(t, tc.key, key)
			assert.Equal(t, 77, tc.read(m))
		})
	}

	m := Default().ModelVFX
	_, err := m.Set("fov", 3)
	assert.ErrorIs(t, err, ErrInvalid)
	assert.Equal(t, Default().ModelVFX, m)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "auravfx.json")
	body := `{"worldWhitelist":["Hub","hub"],"permissionCacheTtlMs":0,"modelVfx":{"maxRigsPerPlayer":200}}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"hub"}, cfg.WorldWhitelist)
	assert.Equal(t, 0, cfg.PermissionCacheTTLMS)
	assert.Equal(t, 64, cfg.ModelVFX.MaxRigsPerPlayer)
	assert.Equal(t, 24, cfg.ModelVFX.LodNearbyRadius)
	assert.True(t, cfg.RuntimeRenderingEnabled)
}

func TestLoadRejectsMalformedJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0o644))
	_, err := Load(path)
	assert.ErrorContains(t, err, "config: failed parsing")
}

func TestApplyEnvOverrides(t *testing.T) {
	logger := &captureLogger{}
	cfg := Default().ApplyEnv(envMap(map[string]string{
		"AURAVFX_WORLD_WHITELIST":     "Hub, Arena",
		"AURAVFX_ALLOW_ALL_WORLDS":    "true",
		"AURAVFX_RENDER_INTERVAL_MS":  "100",
		"AURAVFX_MAX_RIGS_PER_PLAYER": "8",
		"AURAVFX_HTTP_ADDR":           "127.0.0.1:9000",
		"AURAVFX_CATALOG_PATHS":       "a.json,b.json",
		"ENABLE_PPROF_TRACE":          "1",
	}), logger)

	assert.Empty(t, logger.lines)
	assert.Equal(t, []string{"hub", "arena"}, cfg.WorldWhitelist)
	assert.True(t, cfg.AllowInAllWorlds)
	assert.Equal(t, 100, cfg.RuntimeRenderIntervalMS)
	assert.Equal(t, 8, cfg.ModelVFX.MaxRigsPerPlayer)
	assert.Equal(t, "127.0.0.1:9000", cfg.HTTPAddr)
	assert.Equal(t, []string{"a.json", "b.json"}, cfg.CatalogPaths)
	assert.True(t, cfg.Observability.EnablePprofTrace)
}

func TestApplyEnvIgnoresInvalidValues(t *testing.T) {
	logger := &captureLogger{}
	cfg := Default().ApplyEnv(envMap(map[string]string{
		"AURAVFX_RENDER_INTERVAL_MS": "fast",
		"AURAVFX_DEBUG":              "maybe",
		"AURAVFX_LOD_RADIUS":         "  ",
	}), logger)

	require.Len(t, logger.lines, 2)
	assert.Equal(t, `invalid AURAVFX_RENDER_INTERVAL_MS="fast": strconv.Atoi: parsing "fast": invalid syntax`, logger.lines[0])
	assert.Contains(t, logger.lines[1], `invalid AURAVFX_DEBUG="maybe"`)
	assert.Equal(t, Default(), cfg)
}
