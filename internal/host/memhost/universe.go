package memhost

import (
	"sync"

	"auravfx/server/internal/host"
	"auravfx/server/internal/telemetry"
)

// Universe is an ordered set of memhost worlds.
type Universe struct {
	mu     sync.RWMutex
	worlds []*World
	logger telemetry.Logger
}

func NewUniverse(logger telemetry.Logger) *Universe {
	return &Universe{logger: logger}
}

// AddWorld creates and starts a world. An existing world with the same name
// is returned unchanged.
func (u *Universe) AddWorld(name string) *World {
	u.mu.Lock()
	defer u.mu.Unlock()
	for _, w := range u.worlds {
		if w.name == name {
			return w
		}
	}
	w := NewWorld(name, u.logger)
	u.worlds = append(u.worlds, w)
	return w
}

func (u *Universe) World(name string) (*World, bool) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	for _, w := range u.worlds {
		if w.name == name {
			return w, true
		}
	}
	return nil, false
}

// RemoveWorld unloads and closes a world.
func (u *Universe) RemoveWorld(name string) bool {
	u.mu.Lock()
	var removed *World
	for i, w := range u.worlds {
		if w.name == name {
			removed = w
			u.worlds = append(u.worlds[:i], u.worlds[i+1:]...)
			break
		}
	}
	u.mu.Unlock()
	if removed == nil {
		return false
	}
	removed.Close()
	return true
}

func (u *Universe) Worlds() []host.World {
	u.mu.RLock()
	defer u.mu.RUnlock()
	out := make([]host.World, 0, len(u.worlds))
	for _, w := range u.worlds {
		out = append(out, w)
	}
	return out
}

func (u *Universe) Close() {
	u.mu.Lock()
	worlds := u.worlds
	u.worlds = nil
	u.mu.Unlock()
	for _, w := range worlds {
		w.Close()
	}
}
