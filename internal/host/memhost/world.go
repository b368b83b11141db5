// Package memhost is an in-process host backed by a donburi ECS world per
// shard. Each World runs its tasks on a single goroutine; the ECS state is
// only touched from that goroutine.
package memhost

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
	"github.com/yohamta/donburi"
	"github.com/yohamta/donburi/filter"

	"auravfx/server/internal/host"
	"auravfx/server/internal/telemetry"
)

const defaultQueueSize = 1024

var (
	playerQuery = donburi.NewQuery(filter.Contains(Player, Transform))
	modelQuery  = donburi.NewQuery(filter.Contains(Model, Identity))
)

// World is a host.World with its own executor goroutine.
type World struct {
	name   string
	logger telemetry.Logger

	mu      sync.RWMutex
	closed  bool
	tasks   chan func()
	done    chan struct{}
	players atomic.Int32

	// SpawnFilter, when set before use, can reject spawns. Tests use it to
	// simulate host failures.
	SpawnFilter func(spec host.SpawnSpec) error

	ecs      donburi.World
	entities map[host.EntityID]donburi.Entity
	avatars  map[uuid.UUID]donburi.Entity
	nextID   host.EntityID

	particleMu sync.Mutex
	particles  map[string]int
}

func NewWorld(name string, logger telemetry.Logger) *World {
	if logger == nil {
		logger = telemetry.NopLogger()
	}
	w := &World{
		name:      name,
		logger:    logger,
		tasks:     make(chan func(), defaultQueueSize),
		done:      make(chan struct{}),
		ecs:       donburi.NewWorld(),
		entities:  make(map[host.EntityID]donburi.Entity),
		avatars:   make(map[uuid.UUID]donburi.Entity),
		particles: make(map[string]int),
	}
	go w.run()
	return w
}

func (w *World) Name() string { return w.name }

func (w *World) Alive() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return !w.closed
}

func (w *World) PlayerCount() int {
	return int(w.players.Load())
}

func (w *World) Execute(task func(host.EntityStore)) error {
	if task == nil {
		return nil
	}
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return host.ErrWorldClosed
	}
	w.tasks <- func() { task(&store{world: w}) }
	return nil
}

// Call runs task on the executor and waits for it. Calling it from inside
// an executor task deadlocks.
func (w *World) Call(task func(host.EntityStore)) error {
	finished := make(chan struct{})
	err := w.Execute(func(s host.EntityStore) {
		defer close(finished)
		task(s)
	})
	if err != nil {
		return err
	}
	<-finished
	return nil
}

// Flush waits until every task queued so far has run.
func (w *World) Flush() error {
	return w.Call(func(host.EntityStore) {})
}

// Close stops accepting tasks, drains the queue and waits for the executor.
func (w *World) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		<-w.done
		return
	}
	w.closed = true
	close(w.tasks)
	w.mu.Unlock()
	<-w.done
}

func (w *World) run() {
	defer close(w.done)
	for task := range w.tasks {
		w.runTask(task)
	}
}

func (w *World) runTask(task func()) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Printf("world %s: task panicked: %v", w.name, r)
		}
	}()
	task()
}

// AddPlayer places a player avatar in the world.
func (w *World) AddPlayer(id uuid.UUID, t host.Transform) error {
	return w.Call(func(host.EntityStore) {
		if _, exists := w.avatars[id]; exists {
			return
		}
		entity := w.ecs.Create(Player, Transform)
		entry := w.ecs.Entry(entity)
		Player.SetValue(entry, PlayerData{ID: id})
		Transform.SetValue(entry, t)
		w.avatars[id] = entity
		w.players.Add(1)
	})
}

// MovePlayer updates a player's transform.
func (w *World) MovePlayer(id uuid.UUID, t host.Transform) error {
	var err error
	callErr := w.Call(func(host.EntityStore) {
		entity, ok := w.avatars[id]
		if !ok || !w.ecs.Valid(entity) {
			err = fmt.Errorf("player %s: %w", id, host.ErrEntityNotFound)
			return
		}
		Transform.SetValue(w.ecs.Entry(entity), t)
	})
	if callErr != nil {
		return callErr
	}
	return err
}

// RemovePlayer deletes a player avatar.
func (w *World) RemovePlayer(id uuid.UUID) error {
	return w.Call(func(host.EntityStore) {
		entity, ok := w.avatars[id]
		if !ok {
			return
		}
		delete(w.avatars, id)
		if w.ecs.Valid(entity) {
			w.ecs.Remove(entity)
		}
		w.players.Add(-1)
	})
}

// ModelEntities lists the live model entities, keyed by id.
func (w *World) ModelEntities() (map[host.EntityID]ModelData, error) {
	out := make(map[host.EntityID]ModelData)
	err := w.Call(func(host.EntityStore) {
		modelQuery.Each(w.ecs, func(entry *donburi.Entry) {
			out[Identity.Get(entry).ID] = *Model.Get(entry)
		})
	})
	return out, err
}

// ParticleCounts reports how many particles were emitted per effect id.
func (w *World) ParticleCounts() map[string]int {
	w.particleMu.Lock()
	defer w.particleMu.Unlock()
	out := make(map[string]int, len(w.particles))
	for k, v := range w.particles {
		out[k] = v
	}
	return out
}

// store is the executor-side view handed to tasks.
type store struct {
	world *World
}

func (s *store) Spawn(spec host.SpawnSpec) (host.EntityID, error) {
	w := s.world
	if w.SpawnFilter != nil {
		if err := w.SpawnFilter(spec); err != nil {
			return 0, err
		}
	}
	if spec.ModelAssetID == "" {
		return 0, fmt.Errorf("spawn: empty model asset id")
	}
	w.nextID++
	id := w.nextID
	entity := w.ecs.Create(Transform, Model, Identity)
	entry := w.ecs.Entry(entity)
	Transform.SetValue(entry, spec.Transform)
	Model.SetValue(entry, ModelData{AssetID: spec.ModelAssetID, Animation: spec.Animation})
	Identity.SetValue(entry, IdentityData{ID: id, Handle: uuid.New()})
	w.entities[id] = entity
	return id, nil
}

func (s *store) lookup(id host.EntityID) (donburi.Entity, bool) {
	entity, ok := s.world.entities[id]
	if !ok || !s.world.ecs.Valid(entity) {
		return entity, false
	}
	return entity, true
}

func (s *store) Valid(id host.EntityID) bool {
	_, ok := s.lookup(id)
	return ok
}

func (s *store) Transform(id host.EntityID) (host.Transform, error) {
	entity, ok := s.lookup(id)
	if !ok {
		return host.Transform{}, host.ErrEntityNotFound
	}
	return *Transform.Get(s.world.ecs.Entry(entity)), nil
}

func (s *store) SetTransform(id host.EntityID, t host.Transform) error {
	entity, ok := s.lookup(id)
	if !ok {
		return host.ErrEntityNotFound
	}
	Transform.SetValue(s.world.ecs.Entry(entity), t)
	return nil
}

func (s *store) Remove(id host.EntityID) error {
	entity, ok := s.lookup(id)
	delete(s.world.entities, id)
	if !ok {
		return host.ErrEntityNotFound
	}
	s.world.ecs.Remove(entity)
	return nil
}

func (s *store) Players() []host.PlayerSnapshot {
	var out []host.PlayerSnapshot
	playerQuery.Each(s.world.ecs, func(entry *donburi.Entry) {
		out = append(out, host.PlayerSnapshot{
			ID:        Player.Get(entry).ID,
			Transform: *Transform.Get(entry),
		})
	})
	return out
}

func (s *store) EmitParticle(effectID string, _ mgl64.Vec3) error {
	if effectID == "" {
		return fmt.Errorf("emit: empty effect id")
	}
	s.world.particleMu.Lock()
	s.world.particles[effectID]++
	s.world.particleMu.Unlock()
	return nil
}
