package spawn

import (
	"errors"
	"fmt"
	"time"
)

// Category identifies an independent event axis (doors, a buff rotation, a gate...).
type Category uint8

// SubState identifies which variant of a category is materialized.
type SubState uint8

const (
	// CategoryDoor is reserved for the entry doors and only accepts sub-state 0.
	CategoryDoor Category = 254
	// SubStateNone means nothing of the category is spawned.
	SubStateNone SubState = 255
)

// Coordinate is a (category, sub-state) pair.
type Coordinate struct {
	Category Category `yaml:"category" json:"category"`
	SubState SubState `yaml:"subState" json:"subState"`
}

func (c Coordinate) String() string {
	return fmt.Sprintf("(%d,%d)", c.Category, c.SubState)
}

// Kind tells creature-like entities apart from object-like ones.
type Kind uint8

const (
	KindCreature Kind = iota + 1
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindCreature:
		return "creature"
	case KindObject:
		return "object"
	default:
		return "unknown"
	}
}

// EntityRef is an opaque reference to an entity in the world.
type EntityRef struct {
	Kind Kind
	ID   uint64
}

func (r EntityRef) String() string {
	return fmt.Sprintf("%s:%d", r.Kind, r.ID)
}

// CreatureRef and ObjectRef build references of the matching kind.
func CreatureRef(id uint64) EntityRef { return EntityRef{Kind: KindCreature, ID: id} }
func ObjectRef(id uint64) EntityRef   { return EntityRef{Kind: KindObject, ID: id} }

// Mode is the spawn transition applied to creature-like entities.
type Mode uint8

const (
	RespawnForced Mode = iota
	DespawnForced
	RespawnStart
	RespawnStop
)

func (m Mode) String() string {
	switch m {
	case RespawnForced:
		return "RESPAWN_FORCED"
	case DespawnForced:
		return "DESPAWN_FORCED"
	case RespawnStart:
		return "RESPAWN_START"
	case RespawnStop:
		return "RESPAWN_STOP"
	default:
		return "UNKNOWN"
	}
}

const (
	CreatureRespawnDelay = 2 * time.Minute
	CreatureDormancy     = 4 * 24 * time.Hour
	ObjectDormancy       = 24 * time.Hour
)

var (
	ErrUnknownCategory = errors.New("unknown event category")
	ErrNotDoor         = errors.New("not a door event")
	ErrInactiveEvent   = errors.New("event is not active")
)

// SpawnSet holds the entities materialized together for one coordinate.
type SpawnSet struct {
	Creatures []EntityRef
	Objects   []EntityRef
}

func (s *SpawnSet) add(ref EntityRef) {
	list := &s.Creatures
	if ref.Kind == KindObject {
		list = &s.Objects
	}
	for _, existing := range *list {
		if existing == ref {
			return
		}
	}
	*list = append(*list, ref)
}

// Creature is the state-transition surface of a creature-like entity.
type Creature interface {
	SetRespawnDelay(d time.Duration)
	RespawnPending() bool
	RespawnNow()
	Dead() bool
	Despawn()
}

// Object is the state-transition surface of an object-like entity.
type Object interface {
	// Show puts the object in its ready, visible state.
	Show(respawnDelay time.Duration)
	// Hide deactivates the object for the dormancy period.
	Hide(dormancy time.Duration)
	// Open reports whether a door-like object is currently activated.
	Open() bool
	// Rearm returns the object to its ready loot state.
	Rearm()
	// Use triggers the use/interact transition.
	Use(resetDelay time.Duration)
	// Remove schedules the object for removal from the world.
	Remove()
}

// World resolves entity references; lookups may fail when the entity is gone.
type World interface {
	Creature(id uint64) (Creature, bool)
	Object(id uint64) (Object, bool)
}
