// Package host declares what the rig runtime needs from the surrounding
// game server: worlds with their own execution context, an entity store
// usable only inside that context, and the loaded world set.
package host

import (
	"errors"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
)

var (
	ErrWorldClosed    = errors.New("host: world closed")
	ErrEntityNotFound = errors.New("host: entity not found")
)

// EntityID is an opaque handle into one world's entity store.
type EntityID uint64

// Rotation holds Euler angles in degrees.
type Rotation struct {
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
	Roll  float64 `json:"roll"`
}

type Transform struct {
	Position mgl64.Vec3 `json:"position"`
	Rotation Rotation   `json:"rotation"`
}

// SpawnSpec describes a decorative, non-interactive model entity.
type SpawnSpec struct {
	ModelAssetID string
	Transform    Transform
	Animation    string
}

// PlayerSnapshot is a player's identity and transform inside a world.
type PlayerSnapshot struct {
	ID        uuid.UUID
	Transform Transform
}

// EntityStore mutates one world. It must only be used from inside a task
// passed to that world's Execute.
type EntityStore interface {
	Spawn(spec SpawnSpec) (EntityID, error)
	Valid(id EntityID) bool
	Transform(id EntityID) (Transform, error)
	SetTransform(id EntityID, t Transform) error
	Remove(id EntityID) error
	Players() []PlayerSnapshot
	EmitParticle(effectID string, position mgl64.Vec3) error
}

// World is a shard of the simulation with its own serial executor.
type World interface {
	Name() string
	Alive() bool
	PlayerCount() int
	// Execute queues task to run on the world's executor. It returns
	// ErrWorldClosed when the world no longer accepts work.
	Execute(task func(EntityStore)) error
}

// Universe enumerates the loaded worlds.
type Universe interface {
	Worlds() []World
}
