package spawn

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog/log"
)

// ChangeFunc observes coordinate activation changes.
type ChangeFunc func(c Coordinate, active bool)

// Registry maps event coordinates to spawn sets and enforces a single active
// sub-state per category. It is not safe for concurrent use; the owning match
// drives it from its tick.
type Registry struct {
	world      World
	categories map[Category]bool
	active     map[Category]SubState
	sets       map[Coordinate]*SpawnSet
	bindings   map[EntityRef][]Coordinate
	onChange   ChangeFunc
}

type Option func(*Registry)

// WithObserver registers a callback invoked after every spawn transition.
func WithObserver(fn ChangeFunc) Option {
	return func(r *Registry) { r.onChange = fn }
}

// NewRegistry builds a registry for the declared categories. bindings lists,
// per entity, every coordinate the entity participates in.
func NewRegistry(world World, categories []Category, bindings map[EntityRef][]Coordinate, opts ...Option) *Registry {
	r := &Registry{
		world:      world,
		categories: map[Category]bool{CategoryDoor: true},
		active:     map[Category]SubState{},
		sets:       map[Coordinate]*SpawnSet{},
		bindings:   map[EntityRef][]Coordinate{},
	}
	for _, c := range categories {
		r.categories[c] = true
	}
	for ref, coords := range bindings {
		r.bindings[ref] = append([]Coordinate(nil), coords...)
	}
	for _, opt := range opts {
		opt(r)
	}
	r.active[CategoryDoor] = 0
	return r
}

// Active returns the active sub-state of a category.
func (r *Registry) Active(c Category) SubState {
	if s, ok := r.active[c]; ok {
		return s
	}
	return SubStateNone
}

// IsActive reports whether (c, s) is the active coordinate of its category.
func (r *Registry) IsActive(c Category, s SubState) bool {
	return r.Active(c) == s
}

// CanBeSpawned reports whether every coordinate the entity is bound to is active.
// Unbound entities are always spawnable.
func (r *Registry) CanBeSpawned(ref EntityRef) bool {
	for _, coord := range r.bindings[ref] {
		if !r.IsActive(coord.Category, coord.SubState) {
			return false
		}
	}
	return true
}

// Set returns the spawn set bound to a coordinate, or nil.
func (r *Registry) Set(c Category, s SubState) *SpawnSet {
	return r.sets[Coordinate{Category: c, SubState: s}]
}

// OnLoad binds a freshly instantiated entity to all its coordinates. Entities
// bound to an inactive coordinate are despawned immediately; door objects of an
// already started match are opened.
func (r *Registry) OnLoad(ref EntityRef, started bool) error {
	coords, ok := r.bindings[ref]
	if !ok || len(coords) == 0 {
		return nil
	}
	var firstErr error
	for _, coord := range coords {
		if !r.categories[coord.Category] {
			log.Error().Str("entity", ref.String()).Str("coordinate", coord.String()).Msg("spawn: entity bound to undeclared category; skipping")
			if firstErr == nil {
				firstErr = fmt.Errorf("bind %s to %s: %w", ref, coord, ErrUnknownCategory)
			}
			continue
		}
		set, ok := r.sets[coord]
		if !ok {
			set = &SpawnSet{}
			r.sets[coord] = set
		}
		set.add(ref)

		if !r.IsActive(coord.Category, coord.SubState) {
			switch ref.Kind {
			case KindCreature:
				r.applyCreatureMode(ref, DespawnForced)
			case KindObject:
				r.hideObject(ref)
			}
			continue
		}
		if ref.Kind == KindObject && started && coord.Category == CategoryDoor && coord.SubState == 0 {
			r.openDoor(ref)
		}
	}
	return firstErr
}

// SpawnEvent activates or deactivates a coordinate. Activating replaces the
// category's previously active sub-state. Requests that would not change
// anything are ignored.
func (r *Registry) SpawnEvent(c Category, s SubState, activate, forceDespawn bool, respawnDelay uint32) error {
	if s == SubStateNone {
		return nil
	}
	if !r.categories[c] {
		log.Error().Uint8("category", uint8(c)).Uint8("subState", uint8(s)).Msg("spawn: spawn request for undeclared category")
		return fmt.Errorf("spawn event %d: %w", c, ErrUnknownCategory)
	}
	current := r.Active(c)
	if (activate && current == s) || (!activate && current != s) {
		return nil
	}

	if activate {
		if err := r.SpawnEvent(c, current, false, forceDespawn, 0); err != nil {
			return err
		}
		r.active[c] = s
	} else {
		r.active[c] = SubStateNone
	}

	coord := Coordinate{Category: c, SubState: s}
	if set, ok := r.sets[coord]; ok {
		for _, ref := range set.Creatures {
			mode := RespawnStop
			switch {
			case activate && r.CanBeSpawned(ref):
				mode = RespawnForced
			case forceDespawn:
				mode = DespawnForced
			}
			r.applyCreatureMode(ref, mode)
		}
		for _, ref := range set.Objects {
			if activate {
				r.showObject(ref, respawnDelay)
			} else {
				r.hideObject(ref)
			}
		}
	}

	log.Debug().Str("coordinate", coord.String()).Bool("active", activate).Bool("forced", forceDespawn).Msg("spawn: event state changed")
	if r.onChange != nil {
		r.onChange(coord, activate)
	}
	return nil
}

// SetSpawnMode applies mode to the creatures of a coordinate whose conjunctive
// visibility agrees with the mode.
func (r *Registry) SetSpawnMode(c Category, s SubState, mode Mode) {
	if s == SubStateNone {
		return
	}
	set, ok := r.sets[Coordinate{Category: c, SubState: s}]
	if !ok {
		return
	}
	wantSpawned := mode == RespawnForced
	for _, ref := range set.Creatures {
		if r.CanBeSpawned(ref) == wantSpawned {
			r.applyCreatureMode(ref, mode)
		}
	}
}

// Reset despawns every non-door category and re-arms the door coordinate.
func (r *Registry) Reset() {
	cats := make([]int, 0, len(r.active))
	for c := range r.active {
		if c != CategoryDoor {
			cats = append(cats, int(c))
		}
	}
	sort.Ints(cats)
	for _, c := range cats {
		_ = r.SpawnEvent(Category(c), r.Active(Category(c)), false, true, 0)
	}
	r.active[CategoryDoor] = 0
}

// SubStateSummary reports the population of one coordinate.
type SubStateSummary struct {
	SubState  SubState `json:"subState"`
	Active    bool     `json:"active"`
	Creatures int      `json:"creatures"`
	Objects   int      `json:"objects"`
}

// Summary lists every populated sub-state of a category in ascending order.
func (r *Registry) Summary(c Category) []SubStateSummary {
	var out []SubStateSummary
	for coord, set := range r.sets {
		if coord.Category != c || (len(set.Creatures) == 0 && len(set.Objects) == 0) {
			continue
		}
		out = append(out, SubStateSummary{
			SubState:  coord.SubState,
			Active:    r.IsActive(c, coord.SubState),
			Creatures: len(set.Creatures),
			Objects:   len(set.Objects),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubState < out[j].SubState })
	return out
}

// SingleCreature returns the first creature bound to a coordinate.
func (r *Registry) SingleCreature(c Category, s SubState) (EntityRef, bool) {
	if set := r.Set(c, s); set != nil && len(set.Creatures) > 0 {
		return set.Creatures[0], true
	}
	return EntityRef{}, false
}

// SingleObject returns the first object bound to a coordinate.
func (r *Registry) SingleObject(c Category, s SubState) (EntityRef, bool) {
	if set := r.Set(c, s); set != nil && len(set.Objects) > 0 {
		return set.Objects[0], true
	}
	return EntityRef{}, false
}

func (r *Registry) applyCreatureMode(ref EntityRef, mode Mode) {
	cr, ok := r.world.Creature(ref.ID)
	if !ok {
		log.Warn().Str("entity", ref.String()).Str("mode", mode.String()).Msg("spawn: creature not found in world")
		return
	}
	switch mode {
	case RespawnForced, RespawnStart:
		cr.SetRespawnDelay(CreatureRespawnDelay)
		if cr.RespawnPending() {
			cr.RespawnNow()
		}
	case DespawnForced:
		cr.SetRespawnDelay(CreatureDormancy)
		cr.Despawn()
	case RespawnStop:
		cr.SetRespawnDelay(CreatureDormancy)
		if cr.Dead() {
			cr.Despawn()
		}
	}
}

func (r *Registry) showObject(ref EntityRef, respawnDelay uint32) {
	obj, ok := r.world.Object(ref.ID)
	if !ok {
		log.Warn().Str("entity", ref.String()).Msg("spawn: object not found in world")
		return
	}
	obj.Show(secondsToDuration(respawnDelay))
}

func (r *Registry) hideObject(ref EntityRef) {
	obj, ok := r.world.Object(ref.ID)
	if !ok {
		log.Warn().Str("entity", ref.String()).Msg("spawn: object not found in world")
		return
	}
	obj.Hide(ObjectDormancy)
}
