package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"auravfx/server/internal/observability"
	"auravfx/server/internal/telemetry"
)

// ErrInvalid wraps configuration values that cannot be applied.
var ErrInvalid = errors.New("config: invalid value")

const (
	MinRenderIntervalMS = 50
	MaxRenderIntervalMS = 5000
	MaxPermissionTTLMS  = 60_000

	MinRigsPerPlayer     = 1
	MaxRigsPerPlayer     = 64
	MinLodUltraMax       = 1
	MaxLodUltraMax       = 200
	MinLodNearbyRadius   = 6
	MaxLodNearbyRadius   = 96
	MinModelIntervalMS   = 50
	MaxModelIntervalMS   = 1000
	defaultHTTPAddr      = ":8080"
	defaultRenderMS      = 250
	defaultPermissionTTL = 1500
)

// ModelVFX tunes the rig engine.
type ModelVFX struct {
	MaxRigsPerPlayer        int `json:"maxRigsPerPlayer"`
	LodUltraMaxWorldPlayers int `json:"lodUltraMaxWorldPlayers"`
	LodNearbyRadius         int `json:"lodNearbyRadius"`
	UpdateIntervalMS        int `json:"updateIntervalMs"`
}

// Config is the runtime configuration. Load starts from Default, so fields
// absent from the file keep their defaults.
type Config struct {
	WorldWhitelist          []string             `json:"worldWhitelist"`
	AllowInAllWorlds        bool                 `json:"allowInAllWorlds"`
	RuntimeRenderingEnabled bool                 `json:"runtimeRenderingEnabled"`
	RuntimeRenderIntervalMS int                  `json:"runtimeRenderIntervalMs"`
	PermissionCacheTTLMS    int                  `json:"permissionCacheTtlMs"`
	ModelVFX                ModelVFX             `json:"modelVfx"`
	Debug                   bool                 `json:"debugMode"`
	HTTPAddr                string               `json:"httpAddr"`
	CatalogPaths            []string             `json:"catalogPaths"`
	Observability           observability.Config `json:"observability"`
}

func Default() Config {
	return Config{
		WorldWhitelist:          []string{"default"},
		RuntimeRenderingEnabled: true,
		RuntimeRenderIntervalMS: defaultRenderMS,
		PermissionCacheTTLMS:    defaultPermissionTTL,
		ModelVFX: ModelVFX{
			MaxRigsPerPlayer:        16,
			LodUltraMaxWorldPlayers: 10,
			LodNearbyRadius:         24,
			UpdateIntervalMS:        50,
		},
		HTTPAddr:      defaultHTTPAddr,
		Observability: observability.Default(),
	}
}

// Normalize clamps every numeric field into range and lowercases the world
// whitelist, dropping blanks and duplicates.
func (c Config) Normalize() Config {
	worlds := make([]string, 0, len(c.WorldWhitelist))
	seen := make(map[string]struct{}, len(c.WorldWhitelist))
	for _, world := range c.WorldWhitelist {
		normalized := strings.ToLower(strings.TrimSpace(world))
		if normalized == "" {
			continue
		}
		if _, dup := seen[normalized]; dup {
			continue
		}
		seen[normalized] = struct{}{}
		worlds = append(worlds, normalized)
	}
	c.WorldWhitelist = worlds

	c.RuntimeRenderIntervalMS = clamp(c.RuntimeRenderIntervalMS, MinRenderIntervalMS, MaxRenderIntervalMS)
	c.PermissionCacheTTLMS = clamp(c.PermissionCacheTTLMS, 0, MaxPermissionTTLMS)
	c.ModelVFX = c.ModelVFX.Normalize()
	if strings.TrimSpace(c.HTTPAddr) == "" {
		c.HTTPAddr = defaultHTTPAddr
	}
	c.Observability = c.Observability.Normalize()
	return c
}

func (m ModelVFX) Normalize() ModelVFX {
	m.MaxRigsPerPlayer = clamp(m.MaxRigsPerPlayer, MinRigsPerPlayer, MaxRigsPerPlayer)
	m.LodUltraMaxWorldPlayers = clamp(m.LodUltraMaxWorldPlayers, MinLodUltraMax, MaxLodUltraMax)
	m.LodNearbyRadius = clamp(m.LodNearbyRadius, MinLodNearbyRadius, MaxLodNearbyRadius)
	m.UpdateIntervalMS = clamp(m.UpdateIntervalMS, MinModelIntervalMS, MaxModelIntervalMS)
	return m
}

// UpdateInterval is the model loop period.
func (m ModelVFX) UpdateInterval() time.Duration {
	return time.Duration(m.UpdateIntervalMS) * time.Millisecond
}

// Set applies one operator option. Option names are case-insensitive and
// accept the aliases operators are used to. It returns the canonical key.
// The receiver is not normalized; call Normalize afterwards.
func (m *ModelVFX) Set(option string, value int) (string, error) {
	switch strings.ToLower(strings.TrimSpace(option)) {
	case "budget", "maxrigs", "max_rigs", "maxrigsperplayer":
		m.MaxRigsPerPlayer = value
		return "maxRigsPerPlayer", nil
	case "lodultra", "lod_ultra", "lod", "lodultramaxworldplayers":
		m.LodUltraMaxWorldPlayers = value
		return "lodUltraMaxWorldPlayers", nil
	case "radius", "lodradius", "lod_radius", "lodnearbyradius":
		m.LodNearbyRadius = value
		return "lodNearbyRadius", nil
	case "interval", "tick", "updateinterval", "updateintervalms":
		m.UpdateIntervalMS = value
		return "updateIntervalMs", nil
	default:
		return "", fmt.Errorf("%w: unknown model vfx option %q", ErrInvalid, option)
	}
}

// RenderInterval is the particle loop period.
func (c Config) RenderInterval() time.Duration {
	return time.Duration(c.RuntimeRenderIntervalMS) * time.Millisecond
}

// PermissionTTL is the permission cache lifetime; zero disables caching.
func (c Config) PermissionTTL() time.Duration {
	return time.Duration(c.PermissionCacheTTLMS) * time.Millisecond
}

// WorldAllowed reports whether cosmetics render in the named world. An
// empty whitelist allows every world.
func (c Config) WorldAllowed(name string) bool {
	if c.AllowInAllWorlds {
		return true
	}
	if len(c.WorldWhitelist) == 0 {
		return true
	}
	normalized := strings.ToLower(strings.TrimSpace(name))
	for _, world := range c.WorldWhitelist {
		if world == normalized {
			return true
		}
	}
	return false
}

// Load reads path over Default and normalizes the result. A missing file is
// not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	path = strings.TrimSpace(path)
	if path == "" {
		return cfg.Normalize(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg.Normalize(), nil
		}
		return Config{}, fmt.Errorf("config: failed loading %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: failed parsing %s: %w", path, err)
	}
	return cfg.Normalize(), nil
}

// LookupFunc matches os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// ApplyEnv overrides fields from AURAVFX_* variables. Invalid values are
// logged and ignored. The result is normalized.
func (c Config) ApplyEnv(lookup LookupFunc, logger telemetry.Logger) Config {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if logger == nil {
		logger = telemetry.NopLogger()
	}
	get := func(key string) (string, bool) {
		raw, ok := lookup(key)
		raw = strings.TrimSpace(raw)
		return raw, ok && raw != ""
	}
	setInt := func(key string, dst *int) {
		if raw, ok := get(key); ok {
			value, err := strconv.Atoi(raw)
			if err != nil {
				logger.Printf("invalid %s=%q: %v", key, raw, err)
				return
			}
			*dst = value
		}
	}
	setBool := func(key string, dst *bool) {
		if raw, ok := get(key); ok {
			value, err := strconv.ParseBool(raw)
			if err != nil {
				logger.Printf("invalid %s=%q: %v", key, raw, err)
				return
			}
			*dst = value
		}
	}
	setList := func(key string, dst *[]string) {
		if raw, ok := get(key); ok {
			*dst = strings.Split(raw, ",")
		}
	}

	setList("AURAVFX_WORLD_WHITELIST", &c.WorldWhitelist)
	setBool("AURAVFX_ALLOW_ALL_WORLDS", &c.AllowInAllWorlds)
	setBool("AURAVFX_RUNTIME_ENABLED", &c.RuntimeRenderingEnabled)
	setInt("AURAVFX_RENDER_INTERVAL_MS", &c.RuntimeRenderIntervalMS)
	setInt("AURAVFX_PERMISSION_TTL_MS", &c.PermissionCacheTTLMS)
	setInt("AURAVFX_MAX_RIGS_PER_PLAYER", &c.ModelVFX.MaxRigsPerPlayer)
	setInt("AURAVFX_LOD_ULTRA_MAX", &c.ModelVFX.LodUltraMaxWorldPlayers)
	setInt("AURAVFX_LOD_RADIUS", &c.ModelVFX.LodNearbyRadius)
	setInt("AURAVFX_MODEL_INTERVAL_MS", &c.ModelVFX.UpdateIntervalMS)
	setBool("AURAVFX_DEBUG", &c.Debug)
	setList("AURAVFX_CATALOG_PATHS", &c.CatalogPaths)
	setBool("ENABLE_PPROF_TRACE", &c.Observability.EnablePprofTrace)
	setInt("AURAVFX_TELEMETRY_STREAM_MS", &c.Observability.TelemetryStreamMS)
	if raw, ok := get("AURAVFX_HTTP_ADDR"); ok {
		c.HTTPAddr = raw
	}
	return c.Normalize()
}

func clamp(value, lo, hi int) int {
	return min(max(value, lo), hi)
}
