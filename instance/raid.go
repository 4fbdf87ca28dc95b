package instance

import (
	"sync"

	"agones-battleground/battleground"

	"github.com/rs/zerolog/log"
)

// Raids creates in-memory team raids. Raids are only touched from the loop
// but Members may be read by the admin view, so each raid has its own lock.
type Raids struct{}

func (Raids) NewRaid(team battleground.Team, leader battleground.Participant) battleground.Raid {
	r := &Raid{team: team}
	r.Add(leader)
	r.leader = leader.ID()
	log.Debug().Str("team", team.String()).Str("leader", r.leader).Msg("manager: raid created")
	return r
}

// Raid is an ordered member list with a leader.
type Raid struct {
	mu       sync.Mutex
	team     battleground.Team
	leader   string
	members  []string
	released bool
}

func (r *Raid) IsMember(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.index(id) >= 0
}

// Attach is a no-op: membership is keyed by id and survives reconnects.
func (r *Raid) Attach(battleground.Participant) {}

func (r *Raid) Add(p battleground.Participant) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.index(p.ID()) >= 0 {
		return
	}
	r.members = append(r.members, p.ID())
}

func (r *Raid) Promote(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.index(id) >= 0 {
		r.leader = id
	}
}

// Remove drops a member. A leaving leader hands over to the oldest member.
func (r *Raid) Remove(id string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if i := r.index(id); i >= 0 {
		r.members = append(r.members[:i], r.members[i+1:]...)
	}
	if r.leader == id {
		r.leader = ""
		if len(r.members) > 0 {
			r.leader = r.members[0]
		}
	}
	return len(r.members)
}

func (r *Raid) Release() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.members = nil
	r.leader = ""
	r.released = true
}

// Leader returns the current leader id.
func (r *Raid) Leader() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.leader
}

// Members returns the member ids in join order.
func (r *Raid) Members() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.members...)
}

func (r *Raid) index(id string) int {
	for i, m := range r.members {
		if m == id {
			return i
		}
	}
	return -1
}
