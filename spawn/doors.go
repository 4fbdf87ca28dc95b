package spawn

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

func secondsToDuration(s uint32) time.Duration {
	return time.Duration(s) * time.Second
}

// IsDoor reports whether (c, s) addresses the door coordinate.
func IsDoor(c Category, s SubState) error {
	if c != CategoryDoor {
		return fmt.Errorf("event (%d,%d): %w", c, s, ErrNotDoor)
	}
	if s > 0 {
		return fmt.Errorf("door sub-state %d too high: %w", s, ErrNotDoor)
	}
	return nil
}

// OpenDoors replays the ready transition on every door object of (c, s).
func (r *Registry) OpenDoors(c Category, s SubState) error {
	if err := r.checkDoor(c, s); err != nil {
		return err
	}
	for _, ref := range r.doorObjects(c, s) {
		r.openDoor(ref)
	}
	return nil
}

// CloseDoors closes every currently open door object of (c, s). The object is
// rearmed first so observers see a consistent close animation.
func (r *Registry) CloseDoors(c Category, s SubState) error {
	if err := r.checkDoor(c, s); err != nil {
		return err
	}
	for _, ref := range r.doorObjects(c, s) {
		obj, ok := r.world.Object(ref.ID)
		if !ok {
			log.Error().Str("entity", ref.String()).Msg("spawn: door not found (cannot close doors)")
			continue
		}
		if obj.Open() {
			obj.Rearm()
			obj.Use(ObjectDormancy)
		}
	}
	return nil
}

// RemoveDoors schedules every door object for removal when the door event is
// still active.
func (r *Registry) RemoveDoors() {
	if !r.IsActive(CategoryDoor, 0) {
		return
	}
	for _, ref := range r.doorObjects(CategoryDoor, 0) {
		obj, ok := r.world.Object(ref.ID)
		if !ok {
			continue
		}
		obj.Remove()
	}
}

func (r *Registry) checkDoor(c Category, s SubState) error {
	if err := IsDoor(c, s); err != nil {
		log.Error().Uint8("category", uint8(c)).Uint8("subState", uint8(s)).Msg("spawn: not a door event")
		return err
	}
	if !r.IsActive(c, s) {
		log.Error().Uint8("category", uint8(c)).Uint8("subState", uint8(s)).Msg("spawn: door event is not active")
		return fmt.Errorf("door (%d,%d): %w", c, s, ErrInactiveEvent)
	}
	return nil
}

func (r *Registry) doorObjects(c Category, s SubState) []EntityRef {
	set := r.Set(c, s)
	if set == nil {
		return nil
	}
	return set.Objects
}

func (r *Registry) openDoor(ref EntityRef) {
	obj, ok := r.world.Object(ref.ID)
	if !ok {
		log.Error().Str("entity", ref.String()).Msg("spawn: door not found, doors will stay closed")
		return
	}
	obj.Rearm()
	obj.Use(ObjectDormancy)
}
