package assets

import (
	"sort"
	"sync"
)

// Asset is a host-provided visual asset. Animations lists the animation
// set names the asset binds, used when spawning model rigs.
type Asset struct {
	ID         string   `json:"id"`
	Animations []string `json:"animations,omitempty"`
}

// HasAnimation reports whether the asset binds the named animation set.
func (a Asset) HasAnimation(name string) bool {
	for _, candidate := range a.Animations {
		if candidate == name {
			return true
		}
	}
	return false
}

// Registry is the flat key set published by the host asset system.
// Keys must be returned in a stable order so scored lookups are
// deterministic.
type Registry interface {
	Keys() []string
	Lookup(id string) (Asset, bool)
}

// MapRegistry is an in-memory Registry. The host replaces its contents
// when the asset pack reloads.
type MapRegistry struct {
	mu     sync.RWMutex
	assets map[string]Asset
	keys   []string
}

func NewMapRegistry(assets ...Asset) *MapRegistry {
	r := &MapRegistry{}
	r.Replace(assets)
	return r
}

// Replace swaps the full asset set.
func (r *MapRegistry) Replace(assets []Asset) {
	next := make(map[string]Asset, len(assets))
	for _, asset := range assets {
		if asset.ID == "" {
			continue
		}
		next[asset.ID] = asset
	}
	keys := make([]string, 0, len(next))
	for id := range next {
		keys = append(keys, id)
	}
	sort.Strings(keys)

	r.mu.Lock()
	r.assets = next
	r.keys = keys
	r.mu.Unlock()
}

// Put adds or replaces a single asset.
func (r *MapRegistry) Put(asset Asset) {
	if asset.ID == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.assets == nil {
		r.assets = make(map[string]Asset)
	}
	if _, exists := r.assets[asset.ID]; !exists {
		idx := sort.SearchStrings(r.keys, asset.ID)
		r.keys = append(r.keys, "")
		copy(r.keys[idx+1:], r.keys[idx:])
		r.keys[idx] = asset.ID
	}
	r.assets[asset.ID] = asset
}

func (r *MapRegistry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.keys...)
}

func (r *MapRegistry) Lookup(id string) (Asset, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	asset, ok := r.assets[id]
	return asset, ok
}

func (r *MapRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.keys)
}
