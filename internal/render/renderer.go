package render

import (
	"math"
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"

	"auravfx/server/internal/catalog"
	"auravfx/server/internal/telemetry"
)

const (
	// TrackerRetention is how long an unseen player's tracker survives.
	TrackerRetention = 300 * time.Second

	footprintMinInterval = 120 * time.Millisecond
	footprintMinMoveSq   = 0.0015
	trailMinMoveSq       = 0.0004
	trailSampleSpacing   = 0.14
)

// Emitter spawns one particle system instance. host.EntityStore satisfies it.
type Emitter interface {
	EmitParticle(effectID string, position mgl64.Vec3) error
}

// Tracker carries the per-player motion state trails and footprints need.
// It is only touched from the executor of the world rendering the player.
type Tracker struct {
	lastTrail     mgl64.Vec3
	hasTrail      bool
	lastFootstep  mgl64.Vec3
	hasFootstep   bool
	lastStepAt    time.Time
	nextFootRight bool
	lastSeen      time.Time
}

// Frame is the per-player input of one particle tick.
type Frame struct {
	Emitter  Emitter
	Position mgl64.Vec3
	Yaw      float64
	Frame    uint64
	Now      time.Time
	Tracker  *Tracker
}

// Renderer draws particle-backed cosmetics and owns the trackers.
type Renderer struct {
	logger telemetry.Logger

	mu       sync.Mutex
	trackers map[uuid.UUID]*Tracker

	failed sync.Map
}

func NewRenderer(logger telemetry.Logger) *Renderer {
	if logger == nil {
		logger = telemetry.NopLogger()
	}
	return &Renderer{logger: logger, trackers: make(map[uuid.UUID]*Tracker)}
}

// Tracker returns the player's tracker, creating it on first use, and marks
// it seen at now.
func (r *Renderer) Tracker(player uuid.UUID, now time.Time) *Tracker {
	r.mu.Lock()
	defer r.mu.Unlock()
	tracker := r.trackers[player]
	if tracker == nil {
		tracker = &Tracker{nextFootRight: true}
		r.trackers[player] = tracker
	}
	tracker.lastSeen = now
	return tracker
}

// Forget drops the player's tracker.
func (r *Renderer) Forget(player uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.trackers, player)
}

// Prune drops trackers not seen for longer than TrackerRetention.
func (r *Renderer) Prune(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for player, tracker := range r.trackers {
		if now.Sub(tracker.lastSeen) > TrackerRetention {
			delete(r.trackers, player)
			removed++
		}
	}
	return removed
}

// Clear drops every tracker.
func (r *Renderer) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.trackers = make(map[uuid.UUID]*Tracker)
}

func (r *Renderer) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.trackers)
}

// ResetWarnings re-arms the one-shot emit failure warnings.
func (r *Renderer) ResetWarnings() {
	r.failed.Range(func(key, _ any) bool {
		r.failed.Delete(key)
		return true
	})
}

// Render draws one cosmetic of category. slot and total place multi-slot
// badges on their carousel. It returns the number of particles emitted.
func (r *Renderer) Render(f Frame, category catalog.Category, effectID string, def catalog.Definition, slot, total int) int {
	if f.Emitter == nil || effectID == "" {
		return 0
	}
	e := &emission{r: r, f: f, effect: effectID}
	switch category {
	case catalog.CategoryAuras:
		e.aura(def)
	case catalog.CategoryAurasPremium:
		e.premiumAura(def)
	case catalog.CategoryTrails:
		e.trail(def)
	case catalog.CategoryFootprints:
		e.footprints()
	case catalog.CategoryFloatingBadges:
		e.floatingBadge(slot, total)
	case catalog.CategoryTrophyBadges:
		e.trophyBadge(def, slot, total)
	}
	return e.count
}

// emission accumulates the particles of one Render call.
type emission struct {
	r      *Renderer
	f      Frame
	effect string
	count  int
}

func (e *emission) at(x, y, z float64) {
	e.count++
	if err := e.f.Emitter.EmitParticle(e.effect, mgl64.Vec3{x, y, z}); err != nil {
		if _, seen := e.r.failed.LoadOrStore(e.effect, struct{}{}); !seen {
			e.r.logger.Printf("failed to spawn particle %q, check the catalog effect ids: %v", e.effect, err)
		}
	}
}

// offset emits relative to the player position.
func (e *emission) offset(dx, dy, dz float64) {
	p := e.f.Position
	e.at(p[0]+dx, p[1]+dy, p[2]+dz)
}

// rotated emits a player-local offset turned by the player's yaw.
func (e *emission) rotated(localX, localY, localZ float64) {
	turned := mgl64.Rotate3DY(mgl64.DegToRad(e.f.Yaw)).Mul3x1(mgl64.Vec3{localX, 0, localZ})
	e.offset(turned[0], localY, turned[2])
}

// ring emits count points on a horizontal circle.
func (e *emission) ring(count int, phase, radius, dy float64) {
	for i := 0; i < count; i++ {
		angle := phase + 2*math.Pi*float64(i)/float64(count)
		e.offset(math.Cos(angle)*radius, dy, math.Sin(angle)*radius)
	}
}
