package assets

import (
	"strings"
	"sync"

	"auravfx/server/internal/telemetry"
)

const (
	ParticleExtension = ".particlesystem"
	ModelExtension    = ".json"

	serverModelsPrefix = "server/models/"
)

// Tier ranks how closely a registry key matched a candidate. Higher wins.
type Tier int

const (
	TierNone              Tier = 0
	TierBasenameSubstring Tier = 65
	TierSubstring         Tier = 70
	TierBasenameSuffix    Tier = 80
	TierSuffix            Tier = 85
	TierBasename          Tier = 90
	TierNoExtension       Tier = 95
	TierNormalized        Tier = 100
	TierExact             Tier = 110
)

// Match is the cached outcome of resolving one candidate.
type Match struct {
	ID   string
	Tier Tier
}

func (m Match) Found() bool {
	return m.Tier > TierNone
}

// Options configure a Resolver for one asset family.
type Options struct {
	// Kind names the asset family in warnings.
	Kind      string
	Extension string
	// StripPrefix is ignored on both sides of scored comparisons.
	StripPrefix string
	// MinTier rejects weaker scored matches.
	MinTier Tier
	// Fallback makes Resolve return the normalized candidate on a miss.
	Fallback bool
	// OnMiss runs once per unresolvable candidate, after the warning.
	OnMiss func(candidate string)
}

// ParticleOptions resolve leniently and fall back to the raw id.
func ParticleOptions() Options {
	return Options{
		Kind:      "particle",
		Extension: ParticleExtension,
		MinTier:   TierBasenameSubstring,
		Fallback:  true,
	}
}

// ModelOptions only accept equality or path-suffix matches and report
// misses as not found.
func ModelOptions() Options {
	return Options{
		Kind:        "model",
		Extension:   ModelExtension,
		StripPrefix: serverModelsPrefix,
		MinTier:     TierSuffix,
	}
}

// Resolver maps author-supplied asset ids onto registry keys. Results are
// cached per normalized candidate until Reset.
type Resolver struct {
	registry Registry
	opts     Options
	logger   telemetry.Logger

	mu     sync.RWMutex
	cache  map[string]Match
	warned map[string]struct{}
}

func NewResolver(registry Registry, opts Options, logger telemetry.Logger) *Resolver {
	if logger == nil {
		logger = telemetry.NopLogger()
	}
	if opts.Kind == "" {
		opts.Kind = "asset"
	}
	return &Resolver{
		registry: registry,
		opts:     opts,
		logger:   logger,
		cache:    make(map[string]Match),
		warned:   make(map[string]struct{}),
	}
}

// Normalize trims the id and converts backslashes to forward slashes.
func Normalize(id string) string {
	return strings.ReplaceAll(strings.TrimSpace(id), `\`, "/")
}

// Resolve returns the registry key for candidate. On a miss the first call
// logs a warning; the returned id is the normalized candidate when the
// resolver falls back, otherwise empty.
func (r *Resolver) Resolve(candidate string) (string, bool) {
	normalized := Normalize(candidate)
	if normalized == "" {
		return "", false
	}
	match := r.Lookup(normalized)
	if match.Found() {
		return match.ID, true
	}
	r.warnMissing(normalized)
	if r.opts.Fallback {
		return normalized, false
	}
	return "", false
}

// Lookup resolves silently. Used to probe optional sub-assets.
func (r *Resolver) Lookup(candidate string) Match {
	normalized := Normalize(candidate)
	if normalized == "" || r.registry == nil {
		return Match{}
	}
	r.mu.RLock()
	match, ok := r.cache[normalized]
	r.mu.RUnlock()
	if ok {
		return match
	}

	match = r.resolve(normalized)
	r.mu.Lock()
	r.cache[normalized] = match
	r.mu.Unlock()
	return match
}

// Asset returns registry metadata for a resolved id.
func (r *Resolver) Asset(id string) (Asset, bool) {
	if r.registry == nil {
		return Asset{}, false
	}
	return r.registry.Lookup(id)
}

// Reset drops cached results and warning suppression. Call after the
// registry contents change.
func (r *Resolver) Reset() {
	r.mu.Lock()
	r.cache = make(map[string]Match)
	r.warned = make(map[string]struct{})
	r.mu.Unlock()
}

// CacheLen reports how many candidates are cached.
func (r *Resolver) CacheLen() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.cache)
}

func (r *Resolver) warnMissing(candidate string) {
	r.mu.Lock()
	_, seen := r.warned[candidate]
	if !seen {
		r.warned[candidate] = struct{}{}
	}
	r.mu.Unlock()
	if seen {
		return
	}
	if r.opts.Fallback {
		r.logger.Printf("unknown %s asset %q, using raw id as fallback", r.opts.Kind, candidate)
	} else {
		r.logger.Printf("unknown %s asset %q, skipped", r.opts.Kind, candidate)
	}
	if r.opts.OnMiss != nil {
		r.opts.OnMiss(candidate)
	}
}

func (r *Resolver) resolve(candidate string) Match {
	if match := r.find(candidate); match.Found() {
		return match
	}
	noExt := r.stripExtension(candidate)
	if !strings.EqualFold(noExt, candidate) {
		if match := r.find(noExt); match.Found() {
			return match
		}
	}
	base := basename(noExt)
	if base == "" {
		return Match{}
	}
	if match := r.find(base); match.Found() {
		return match
	}
	return r.find(base + r.opts.Extension)
}

// find runs the exact check followed by a scored scan over every key.
// The first key reaching the best score wins.
func (r *Resolver) find(candidate string) Match {
	if candidate == "" {
		return Match{}
	}
	if _, ok := r.registry.Lookup(candidate); ok {
		return Match{ID: candidate, Tier: TierExact}
	}

	candLower := strings.ToLower(candidate)
	candNoExt := r.comparable(candLower)
	candBase := basename(candNoExt)
	if candNoExt == "" {
		return Match{}
	}

	best := Match{}
	for _, key := range r.registry.Keys() {
		if key == "" {
			continue
		}
		keyLower := strings.ToLower(Normalize(key))
		keyNoExt := r.comparable(keyLower)
		keyBase := basename(keyNoExt)
		if keyNoExt == "" {
			continue
		}

		tier := TierNone
		switch {
		case keyLower == candLower:
			tier = TierNormalized
		case keyNoExt == candNoExt:
			tier = TierNoExtension
		case keyBase == candBase:
			tier = TierBasename
		case strings.HasSuffix(keyNoExt, "/"+candNoExt) || strings.HasSuffix(candNoExt, "/"+keyNoExt):
			tier = TierSuffix
		case strings.HasSuffix(keyNoExt, "/"+candBase) || strings.HasSuffix(candNoExt, "/"+keyBase):
			tier = TierBasenameSuffix
		case strings.Contains(keyNoExt, candNoExt) || strings.Contains(candNoExt, keyNoExt):
			tier = TierSubstring
		case strings.Contains(keyNoExt, candBase) || strings.Contains(candNoExt, keyBase):
			tier = TierBasenameSubstring
		}
		if tier < r.opts.MinTier {
			continue
		}
		if tier > best.Tier {
			best = Match{ID: key, Tier: tier}
		}
	}
	return best
}

// comparable lowercases, strips the family extension and the optional
// prefix.
func (r *Resolver) comparable(lower string) string {
	value := r.stripExtension(lower)
	if r.opts.StripPrefix != "" {
		value = strings.TrimPrefix(value, r.opts.StripPrefix)
	}
	return value
}

func (r *Resolver) stripExtension(value string) string {
	ext := r.opts.Extension
	if ext == "" || len(value) < len(ext) {
		return value
	}
	if strings.EqualFold(value[len(value)-len(ext):], ext) {
		return value[:len(value)-len(ext)]
	}
	return value
}

func basename(value string) string {
	if idx := strings.LastIndex(value, "/"); idx >= 0 {
		return value[idx+1:]
	}
	return value
}
