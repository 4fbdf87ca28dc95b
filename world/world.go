package world

import (
	"sort"
	"sync"
	"time"

	"agones-battleground/battleground"
	"agones-battleground/spawn"
)

// CreatureState is the materialization state of a creature.
type CreatureState string

const (
	CreatureAlive     CreatureState = "alive"
	CreatureDead      CreatureState = "dead"
	CreatureDespawned CreatureState = "despawned"
)

// ObjectState is the materialization state of an object.
type ObjectState string

const (
	ObjectReady   ObjectState = "ready"
	ObjectActive  ObjectState = "active"
	ObjectHidden  ObjectState = "hidden"
	ObjectRemoved ObjectState = "removed"
)

// Creature is an in-memory creature. Its methods satisfy spawn.Creature.
type Creature struct {
	mu           sync.Mutex
	id           uint64
	state        CreatureState
	respawnDelay time.Duration
}

func (c *Creature) SetRespawnDelay(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.respawnDelay = d
}

func (c *Creature) RespawnPending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state != CreatureAlive
}

func (c *Creature) RespawnNow() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = CreatureAlive
}

func (c *Creature) Dead() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == CreatureDead
}

func (c *Creature) Despawn() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = CreatureDespawned
}

// Kill leaves a corpse until the creature is despawned or respawned.
func (c *Creature) Kill() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == CreatureAlive {
		c.state = CreatureDead
	}
}

func (c *Creature) State() CreatureState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Creature) RespawnDelay() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.respawnDelay
}

// Object is an in-memory object. Its methods satisfy spawn.Object.
type Object struct {
	mu           sync.Mutex
	id           uint64
	state        ObjectState
	respawnDelay time.Duration
	uses         int
}

func (o *Object) Show(respawnDelay time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state == ObjectRemoved {
		return
	}
	o.state = ObjectReady
	o.respawnDelay = respawnDelay
}

func (o *Object) Hide(dormancy time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state == ObjectRemoved {
		return
	}
	o.state = ObjectHidden
	o.respawnDelay = dormancy
}

func (o *Object) Open() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state == ObjectActive
}

func (o *Object) Rearm() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state == ObjectActive || o.state == ObjectReady {
		o.state = ObjectReady
	}
}

// Use toggles a ready object active and an active one back to ready.
func (o *Object) Use(resetDelay time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	switch o.state {
	case ObjectReady:
		o.state = ObjectActive
	case ObjectActive:
		o.state = ObjectReady
	default:
		return
	}
	o.uses++
	o.respawnDelay = resetDelay
}

func (o *Object) Remove() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.state = ObjectRemoved
}

func (o *Object) State() ObjectState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// World is the entity store of one match instance.
type World struct {
	mu        sync.RWMutex
	creatures map[uint64]*Creature
	objects   map[uint64]*Object
}

func New() *World {
	return &World{creatures: map[uint64]*Creature{}, objects: map[uint64]*Object{}}
}

// FromTemplate materializes every entity bound by the template.
func FromTemplate(tpl battleground.Template) *World {
	w := New()
	for _, b := range tpl.Bindings {
		ref, err := b.Ref()
		if err != nil {
			continue
		}
		w.Add(ref)
	}
	return w
}

// Add materializes an entity if it does not exist yet.
func (w *World) Add(ref spawn.EntityRef) {
	w.mu.Lock()
	defer w.mu.Unlock()
	switch ref.Kind {
	case spawn.KindCreature:
		if _, ok := w.creatures[ref.ID]; !ok {
			w.creatures[ref.ID] = &Creature{id: ref.ID, state: CreatureAlive}
		}
	case spawn.KindObject:
		if _, ok := w.objects[ref.ID]; !ok {
			w.objects[ref.ID] = &Object{id: ref.ID, state: ObjectReady}
		}
	}
}

// Delete drops an entity from the world.
func (w *World) Delete(ref spawn.EntityRef) {
	w.mu.Lock()
	defer w.mu.Unlock()
	switch ref.Kind {
	case spawn.KindCreature:
		delete(w.creatures, ref.ID)
	case spawn.KindObject:
		delete(w.objects, ref.ID)
	}
}

func (w *World) Creature(id uint64) (spawn.Creature, bool) {
	c, ok := w.CreatureByID(id)
	if !ok {
		return nil, false
	}
	return c, true
}

func (w *World) Object(id uint64) (spawn.Object, bool) {
	o, ok := w.ObjectByID(id)
	if !ok {
		return nil, false
	}
	return o, true
}

func (w *World) CreatureByID(id uint64) (*Creature, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	c, ok := w.creatures[id]
	return c, ok
}

func (w *World) ObjectByID(id uint64) (*Object, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	o, ok := w.objects[id]
	return o, ok
}

// EntityState is one line of a world snapshot.
type EntityState struct {
	Ref   string `json:"ref"`
	State string `json:"state"`
}

// Snapshot lists every entity with its state, creatures first.
func (w *World) Snapshot() []EntityState {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]EntityState, 0, len(w.creatures)+len(w.objects))
	for _, id := range sortedIDs(w.creatures) {
		out = append(out, EntityState{Ref: spawn.CreatureRef(id).String(), State: string(w.creatures[id].State())})
	}
	for _, id := range sortedIDs(w.objects) {
		out = append(out, EntityState{Ref: spawn.ObjectRef(id).String(), State: string(w.objects[id].State())})
	}
	return out
}

func sortedIDs[T any](m map[uint64]T) []uint64 {
	ids := make([]uint64, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
