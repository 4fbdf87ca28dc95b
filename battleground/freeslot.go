package battleground

import "sync"

// FreeSlotRegistry lists, per battleground type, the matches that may accept
// new participants. Newest registrations come first. It is shared between the
// instance loop and the matchmaker.
type FreeSlotRegistry struct {
	mu     sync.RWMutex
	byType map[TypeID][]*Match
}

func NewFreeSlotRegistry() *FreeSlotRegistry {
	return &FreeSlotRegistry{byType: make(map[TypeID][]*Match)}
}

func (r *FreeSlotRegistry) add(m *Match) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t := m.TypeID()
	for _, existing := range r.byType[t] {
		if existing == m {
			return
		}
	}
	r.byType[t] = append([]*Match{m}, r.byType[t]...)
}

func (r *FreeSlotRegistry) remove(m *Match) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	t := m.TypeID()
	list := r.byType[t]
	for i, existing := range list {
		if existing != m {
			continue
		}
		r.byType[t] = append(list[:i:i], list[i+1:]...)
		if len(r.byType[t]) == 0 {
			delete(r.byType, t)
		}
		return true
	}
	return false
}

// Matches returns a snapshot of the registered matches of a type.
func (r *FreeSlotRegistry) Matches(t TypeID) []*Match {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*Match(nil), r.byType[t]...)
}

// Len returns the number of registered matches of a type.
func (r *FreeSlotRegistry) Len(t TypeID) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byType[t])
}
