package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"auravfx/server/internal/rigs"
)

// ErrUnknownProfile marks entries whose rigProfile is not a known profile.
// Such entries load with the default profile and are listed by Issues.
var ErrUnknownProfile = rigs.ErrUnknownProfile

// Lookup is the read side of the catalog used by the runtime.
type Lookup interface {
	ByCategory(category Category) map[string]Definition
	Definition(category Category, id string) (Definition, bool)
}

type source interface {
	Load() ([]byte, error)
	Path() string
}

type fileSource struct {
	path string
}

func (f fileSource) Load() ([]byte, error) {
	return os.ReadFile(f.path)
}

func (f fileSource) Path() string {
	return f.path
}

type bytesSource struct {
	name string
	data []byte
}

func (b bytesSource) Load() ([]byte, error) { return b.data, nil }
func (b bytesSource) Path() string          { return b.name }

// Catalog merges the built-in defaults with zero or more catalog files.
// Call Reload to pick up on-disk changes.
type Catalog struct {
	mu         sync.RWMutex
	sources    []source
	ordered    []Definition
	byCategory map[Category]map[string]Definition
	issues     []string
}

// DefaultPaths returns the canonical catalog locations relative to the
// working directory.
func DefaultPaths() []string {
	return []string{
		filepath.Join("config", "cosmetics.json"),
		filepath.Join("..", "config", "cosmetics.json"),
	}
}

// Load builds a Catalog from files. Missing files are skipped.
func Load(paths ...string) (*Catalog, error) {
	sources := make([]source, 0, len(paths))
	for _, path := range paths {
		trimmed := strings.TrimSpace(path)
		if trimmed == "" {
			continue
		}
		sources = append(sources, fileSource{path: filepath.Clean(trimmed)})
	}
	return newCatalog(sources...)
}

// FromJSON builds a Catalog from an in-memory document.
func FromJSON(name string, data []byte) (*Catalog, error) {
	return newCatalog(bytesSource{name: name, data: data})
}

func newCatalog(sources ...source) (*Catalog, error) {
	c := &Catalog{sources: append([]source(nil), sources...)}
	if err := c.Reload(); err != nil {
		return nil, err
	}
	return c, nil
}

// Reload re-parses all sources. Later sources override earlier ones entry
// by entry; built-in defaults fill whatever no source defines. On error the
// previous contents stay in place.
func (c *Catalog) Reload() error {
	if c == nil {
		return nil
	}
	var (
		ordered []Definition
		index   = make(map[string]int)
		issues  []string
	)
	put := func(def Definition) {
		if at, ok := index[def.Key()]; ok {
			ordered[at] = def
			return
		}
		index[def.Key()] = len(ordered)
		ordered = append(ordered, def)
	}

	for _, src := range c.sources {
		data, err := src.Load()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("catalog: failed loading %s: %w", src.Path(), err)
		}
		documents, err := decodeEntries(data)
		if err != nil {
			return fmt.Errorf("catalog: failed parsing %s: %w", src.Path(), err)
		}
		seen := make(map[string]struct{}, len(documents))
		for i, doc := range documents {
			def, ok, err := doc.Normalize()
			if !ok {
				issues = append(issues, fmt.Sprintf("%s: entry %d has no id or category", src.Path(), i))
				continue
			}
			if _, known := ParseCategory(string(def.Category)); !known {
				issues = append(issues, fmt.Sprintf("%s: %s uses unknown category %q", src.Path(), def.ID, def.Category))
				continue
			}
			if err != nil {
				issues = append(issues, fmt.Sprintf("%s: %s: %v", src.Path(), def.Key(), err))
			}
			if _, dup := seen[def.Key()]; dup {
				return fmt.Errorf("catalog: duplicate entry %q in %s", def.Key(), src.Path())
			}
			seen[def.Key()] = struct{}{}
			put(def)
		}
	}
	for _, def := range Defaults() {
		if _, ok := index[def.Key()]; !ok {
			put(def)
		}
	}

	byCategory := make(map[Category]map[string]Definition, len(categoryOrder))
	for _, category := range categoryOrder {
		byCategory[category] = make(map[string]Definition)
	}
	for _, def := range ordered {
		if !def.IsEnabled() {
			continue
		}
		byCategory[def.Category][def.ID] = def
	}

	c.mu.Lock()
	c.ordered = ordered
	c.byCategory = byCategory
	c.issues = issues
	c.mu.Unlock()
	return nil
}

// ByCategory returns a copy of the enabled entries of category keyed by id.
func (c *Catalog) ByCategory(category Category) map[string]Definition {
	if c == nil {
		return nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	src := c.byCategory[category]
	out := make(map[string]Definition, len(src))
	for id, def := range src {
		out[id] = def
	}
	return out
}

// Definition looks up an enabled entry. id is matched case-insensitively.
func (c *Catalog) Definition(category Category, id string) (Definition, bool) {
	if c == nil {
		return Definition{}, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	def, ok := c.byCategory[category][strings.ToLower(strings.TrimSpace(id))]
	return def, ok
}

// All returns every entry, disabled ones included, in load order.
func (c *Catalog) All() []Definition {
	if c == nil {
		return nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Definition(nil), c.ordered...)
}

// Issues lists non-fatal problems found by the last Reload.
func (c *Catalog) Issues() []string {
	if c == nil {
		return nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.issues...)
}

// Len counts enabled entries.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	total := 0
	for _, entries := range c.byCategory {
		total += len(entries)
	}
	return total
}

// Summary renders per-category counts, e.g. "auras: 8, trails: 4".
func (c *Catalog) Summary() string {
	parts := make([]string, 0, len(categoryOrder))
	for _, category := range categoryOrder {
		parts = append(parts, fmt.Sprintf("%s: %d", category, len(c.ByCategory(category))))
	}
	return strings.Join(parts, ", ")
}

// EffectIDs lists the distinct particle effects referenced by enabled
// particle entries, sorted.
func (c *Catalog) EffectIDs() []string {
	return c.collect(func(def Definition) string {
		if def.IsModel() {
			return ""
		}
		return def.EffectID
	})
}

// ModelAssetIDs lists the distinct rig base models referenced by enabled
// model entries, sorted.
func (c *Catalog) ModelAssetIDs() []string {
	return c.collect(func(def Definition) string {
		if !def.IsModel() {
			return ""
		}
		return def.ModelAssetID
	})
}

func (c *Catalog) collect(pick func(Definition) string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, def := range c.All() {
		if !def.IsEnabled() {
			continue
		}
		value := pick(def)
		if value == "" {
			continue
		}
		if _, dup := seen[value]; dup {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	sort.Strings(out)
	return out
}

func decodeEntries(data []byte) ([]Definition, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}
	switch trimmed[0] {
	case '[':
		var entries []Definition
		if err := json.Unmarshal(trimmed, &entries); err != nil {
			return nil, err
		}
		return entries, nil
	case '{':
		var object map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &object); err != nil {
			return nil, err
		}
		if raw, ok := object["cosmetics"]; ok && len(object) == 1 {
			return decodeEntries(raw)
		}
		ids := make([]string, 0, len(object))
		for id := range object {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		entries := make([]Definition, 0, len(ids))
		for _, id := range ids {
			var entry Definition
			if err := json.Unmarshal(object[id], &entry); err != nil {
				return nil, fmt.Errorf("entry %q: %w", id, err)
			}
			if entry.ID == "" {
				entry.ID = id
			} else if !strings.EqualFold(strings.TrimSpace(entry.ID), id) {
				return nil, fmt.Errorf("entry id %q does not match key %q", entry.ID, id)
			}
			entries = append(entries, entry)
		}
		return entries, nil
	default:
		return nil, fmt.Errorf("unexpected json token %q", string(trimmed[:1]))
	}
}
