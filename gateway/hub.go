// Package gateway carries battleground messages to participants over
// websockets and routes their inbound frames to the match loop.
package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"agones-battleground/battleground"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	maxFrameSize = 4096

	// DefaultRewardRange is the distance within which teammates share kill credit.
	DefaultRewardRange = 74.0
	// DefaultSendBuffer is the number of frames queued per session.
	DefaultSendBuffer = 64
)

// ErrMissingParticipant is returned when the upgrade request names no participant.
var ErrMissingParticipant = errors.New("participant is required")

// Router receives the session events the match loop must handle.
type Router interface {
	Join(instance uint32, p battleground.Participant) error
	Leave(instance uint32, id string)
	Kill(instance uint32, victim, killer string)
}

// Presence is told when players connect and disconnect.
type Presence interface {
	PlayerConnect(id string) error
	PlayerDisconnect(id string) error
}

type inbound struct {
	Type       string                 `json:"type"`
	Position   *battleground.Position `json:"position,omitempty"`
	Killer     string                 `json:"killer,omitempty"`
	Redemption bool                   `json:"redemption,omitempty"`
}

// Hub owns every live session. It is the battleground Directory and Gateway.
type Hub struct {
	router      Router
	presence    Presence
	upgrader    websocket.Upgrader
	rewardRange float64
	sendBuffer  int

	mu       sync.RWMutex
	sessions map[string]*Session
}

// Option configures a Hub.
type Option func(*Hub)

// WithPresence reports connects and disconnects to p.
func WithPresence(p Presence) Option {
	return func(h *Hub) { h.presence = p }
}

// WithRewardRange overrides DefaultRewardRange.
func WithRewardRange(r float64) Option {
	return func(h *Hub) { h.rewardRange = r }
}

// WithSendBuffer overrides DefaultSendBuffer.
func WithSendBuffer(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.sendBuffer = n
		}
	}
}

func NewHub(router Router, opts ...Option) *Hub {
	h := &Hub{
		router:      router,
		rewardRange: DefaultRewardRange,
		sendBuffer:  DefaultSendBuffer,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		sessions: map[string]*Session{},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// SetRouter binds the hub to the match loop. Call it before serving.
func (h *Hub) SetRouter(r Router) {
	h.router = r
}

// Register mounts the websocket endpoint on mux.
func (h *Hub) Register(mux *http.ServeMux) {
	mux.Handle("/ws", h)
}

// Lookup implements battleground.Directory.
func (h *Hub) Lookup(id string) (battleground.Participant, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	s, ok := h.sessions[id]
	if !ok {
		return nil, false
	}
	return s, true
}

// Send implements battleground.Gateway.
func (h *Hub) Send(p battleground.Participant, msg battleground.Message) {
	s, ok := p.(*Session)
	if !ok {
		h.mu.RLock()
		s, ok = h.sessions[p.ID()]
		h.mu.RUnlock()
	}
	if !ok {
		log.Debug().Str("participant", p.ID()).Str("kind", string(msg.Kind)).Msg("gateway: no session for message")
		return
	}
	s.deliver(msg)
}

// Apply implements battleground.Grantor. Items and spells are handed out by
// the client, the hub only forwards the definition.
func (h *Hub) Apply(p battleground.Participant, def battleground.RewardDef) {
	s, ok := p.(*Session)
	if !ok {
		h.mu.RLock()
		s, ok = h.sessions[p.ID()]
		h.mu.RUnlock()
	}
	if !ok {
		log.Debug().Str("participant", p.ID()).Uint32("reward", def.ID).Msg("gateway: no session for reward")
		return
	}
	s.reward(def)
}

// Len returns the number of connected sessions.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// ServeHTTP upgrades /ws?participant=&team=&locale=&instance= requests.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s, err := h.sessionFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Str("participant", s.id).Msg("gateway: upgrade failed")
		return
	}

	h.attach(s)
	go h.writePump(s, conn)

	if err := h.router.Join(s.instance, s); err != nil {
		log.Warn().Err(err).Str("participant", s.id).Uint32("instance", s.instance).Msg("gateway: join rejected")
		h.detach(s)
		s.close()
		return
	}
	h.readPump(s, conn)
}

func (h *Hub) sessionFromRequest(r *http.Request) (*Session, error) {
	q := r.URL.Query()
	id := strings.TrimSpace(q.Get("participant"))
	if id == "" {
		return nil, ErrMissingParticipant
	}
	team, err := battleground.ParseTeam(q.Get("team"))
	if err != nil {
		return nil, err
	}
	instance, err := strconv.ParseUint(q.Get("instance"), 10, 32)
	if err != nil {
		return nil, errors.New("instance must be a positive integer")
	}
	s := newSession(id, strings.TrimSpace(q.Get("name")), q.Get("locale"), team, uint32(instance), h.rewardRange, h.sendBuffer)
	s.leader, _ = strconv.ParseBool(q.Get("leader"))
	s.gm, _ = strconv.ParseBool(q.Get("gm"))
	return s, nil
}

// attach replaces any older session of the same participant.
func (h *Hub) attach(s *Session) {
	h.mu.Lock()
	old := h.sessions[s.id]
	h.sessions[s.id] = s
	h.mu.Unlock()
	if old != nil {
		log.Info().Str("participant", s.id).Msg("gateway: replacing existing session")
		old.close()
	}
	if h.presence != nil {
		if err := h.presence.PlayerConnect(s.id); err != nil {
			log.Warn().Err(err).Str("participant", s.id).Msg("gateway: player connect failed")
		}
	}
}

// detach drops s if it is still the current session of its participant.
func (h *Hub) detach(s *Session) bool {
	h.mu.Lock()
	current := h.sessions[s.id] == s
	if current {
		delete(h.sessions, s.id)
	}
	h.mu.Unlock()
	if current && h.presence != nil {
		if err := h.presence.PlayerDisconnect(s.id); err != nil {
			log.Warn().Err(err).Str("participant", s.id).Msg("gateway: player disconnect failed")
		}
	}
	return current
}

func (h *Hub) readPump(s *Session, conn *websocket.Conn) {
	defer func() {
		if h.detach(s) && !s.Detached() {
			h.router.Leave(s.instance, s.id)
		}
		s.close()
	}()

	conn.SetReadLimit(maxFrameSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Str("participant", s.id).Msg("gateway: read failed")
			}
			return
		}
		var in inbound
		if err := json.Unmarshal(data, &in); err != nil {
			log.Debug().Err(err).Str("participant", s.id).Msg("gateway: malformed frame")
			continue
		}
		switch in.Type {
		case "position":
			if in.Position != nil {
				s.setPosition(*in.Position)
			}
		case "died":
			s.setDead(in.Redemption)
			h.router.Kill(s.instance, s.id, in.Killer)
		case "leave":
			h.router.Leave(s.instance, s.id)
		default:
			log.Debug().Str("participant", s.id).Str("type", in.Type).Msg("gateway: unknown frame type")
		}
	}
}

func (h *Hub) writePump(s *Session, conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()
	for {
		select {
		case data, ok := <-s.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Debug().Err(err).Str("participant", s.id).Msg("gateway: write failed")
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
