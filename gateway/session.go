package gateway

import (
	"encoding/json"
	"sync"

	"agones-battleground/battleground"

	"github.com/rs/zerolog/log"
)

// Control actions pushed to the client when the match changes its state.
const (
	ActionResurrect     = "resurrect"
	ActionStopCombat    = "stop-combat"
	ActionBlockMovement = "block-movement"
	ActionRally         = "rally"
	ActionDetach        = "detach"
	ActionTeleport      = "teleport"
)

// outbound is the JSON envelope written to the socket.
type outbound struct {
	Type    string                  `json:"type"`
	Message *battleground.Message   `json:"message,omitempty"`
	Action  string                  `json:"action,omitempty"`
	Reward  *battleground.RewardDef `json:"reward,omitempty"`
}

// Session is one connected participant. The reader goroutine updates the
// position and alive state while the match loop reads them, so every field
// is guarded by mu.
type Session struct {
	id          string
	name        string
	locale      string
	instance    uint32
	rewardRange float64

	mu         sync.Mutex
	team       battleground.Team
	position   battleground.Position
	alive      bool
	gm         bool
	leader     bool
	redemption bool
	blocked    bool
	detached   bool
	closed     bool
	send       chan []byte
}

func newSession(id, name, locale string, team battleground.Team, instance uint32, rewardRange float64, buffer int) *Session {
	if name == "" {
		name = id
	}
	return &Session{
		id:          id,
		name:        name,
		locale:      locale,
		instance:    instance,
		rewardRange: rewardRange,
		team:        team,
		alive:       true,
		send:        make(chan []byte, buffer),
	}
}

func (s *Session) ID() string       { return s.id }
func (s *Session) Name() string     { return s.name }
func (s *Session) Locale() string   { return s.locale }
func (s *Session) Instance() uint32 { return s.instance }

func (s *Session) Team() battleground.Team {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.team
}

func (s *Session) Position() battleground.Position {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.position
}

func (s *Session) Alive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.alive
}

func (s *Session) GameMaster() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gm
}

func (s *Session) LeadsOriginalGroup() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.leader
}

// InRewardRange reports whether other is alive and within the hub's reward range.
func (s *Session) InRewardRange(other battleground.Participant) bool {
	if other == nil || !other.Alive() {
		return false
	}
	return s.Position().Distance(other.Position()) <= s.rewardRange
}

func (s *Session) InRedemption() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.redemption
}

func (s *Session) ClearRedemption() {
	s.mu.Lock()
	s.redemption = false
	s.mu.Unlock()
}

func (s *Session) Resurrect() {
	s.mu.Lock()
	s.alive = true
	s.mu.Unlock()
	s.control(ActionResurrect)
}

func (s *Session) StopCombat() { s.control(ActionStopCombat) }

func (s *Session) BlockMovement() {
	s.mu.Lock()
	s.blocked = true
	s.mu.Unlock()
	s.control(ActionBlockMovement)
}

func (s *Session) ReturnToRallyPoint() { s.control(ActionRally) }

// DetachFromMatch tells the client it left the match and closes the session.
func (s *Session) DetachFromMatch(teleport bool) {
	s.mu.Lock()
	s.detached = true
	s.mu.Unlock()
	if teleport {
		s.control(ActionTeleport)
	}
	s.control(ActionDetach)
	s.close()
}

// Detached reports whether the match already dropped this session.
func (s *Session) Detached() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.detached
}

func (s *Session) deliver(msg battleground.Message) {
	s.write(outbound{Type: "message", Message: &msg})
}

func (s *Session) reward(def battleground.RewardDef) {
	s.write(outbound{Type: "reward", Reward: &def})
}

func (s *Session) control(action string) {
	s.write(outbound{Type: "control", Action: action})
}

// write queues a frame for the writer goroutine. A full buffer drops the
// frame instead of stalling the match loop.
func (s *Session) write(frame outbound) {
	data, err := json.Marshal(frame)
	if err != nil {
		log.Error().Err(err).Str("participant", s.id).Msg("gateway: failed to encode frame")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.send <- data:
	default:
		log.Warn().Str("participant", s.id).Str("type", frame.Type).Msg("gateway: send buffer full, dropping frame")
	}
}

func (s *Session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.send)
}

func (s *Session) setPosition(p battleground.Position) {
	s.mu.Lock()
	if !s.blocked {
		s.position = p
	}
	s.mu.Unlock()
}

func (s *Session) setDead(redemption bool) {
	s.mu.Lock()
	s.alive = false
	s.redemption = redemption
	s.mu.Unlock()
}
