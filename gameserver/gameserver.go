// Package gameserver reports the process lifecycle and its players to the
// Agones sidecar.
package gameserver

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	sdk "agones.dev/agones/sdks/go"
	"github.com/rs/zerolog/log"
)

// LabelInstances is the game server label carrying the live match count.
const LabelInstances = "battleground-instances"

// Sidecar is the subset of the Agones SDK the server uses.
type Sidecar interface {
	Ready() error
	Health() error
	Shutdown() error
	SetLabel(key, value string) error
}

// PlayerTracker is the alpha player tracking API.
type PlayerTracker interface {
	PlayerConnect(id string) (bool, error)
	PlayerDisconnect(id string) (bool, error)
}

// Server wraps the sidecar connection. A Server without sidecar is a no-op so
// the process can run outside a cluster.
type Server struct {
	sidecar Sidecar
	players PlayerTracker

	mu        sync.Mutex
	lastLabel string
}

// Connect dials the local Agones sidecar.
func Connect() (*Server, error) {
	s, err := sdk.NewSDK()
	if err != nil {
		return nil, fmt.Errorf("connect agones sdk: %w", err)
	}
	log.Info().Msg("gameserver: connected to agones sidecar")
	return &Server{sidecar: s, players: s.Alpha()}, nil
}

// Disabled returns a Server that talks to nobody.
func Disabled() *Server {
	return &Server{}
}

// NewWithSidecar builds a Server on an existing sidecar connection.
func NewWithSidecar(sidecar Sidecar, players PlayerTracker) *Server {
	return &Server{sidecar: sidecar, players: players}
}

func (s *Server) Enabled() bool { return s.sidecar != nil }

// Ready marks the game server ready for allocation.
func (s *Server) Ready() error {
	if !s.Enabled() {
		return nil
	}
	if err := s.sidecar.Ready(); err != nil {
		return fmt.Errorf("mark ready: %w", err)
	}
	log.Info().Msg("gameserver: marked ready")
	return nil
}

// RunHealth pings the sidecar every interval until ctx is done.
func (s *Server) RunHealth(ctx context.Context, interval time.Duration) {
	if !s.Enabled() {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.sidecar.Health(); err != nil {
				log.Warn().Err(err).Msg("gameserver: health ping failed")
			}
		}
	}
}

// PlayerConnect records a connected player.
func (s *Server) PlayerConnect(id string) error {
	if s.players == nil {
		return nil
	}
	added, err := s.players.PlayerConnect(id)
	if err != nil {
		return fmt.Errorf("player connect %s: %w", id, err)
	}
	if !added {
		log.Debug().Str("participant", id).Msg("gameserver: player already tracked or capacity reached")
	}
	return nil
}

// PlayerDisconnect records a disconnected player.
func (s *Server) PlayerDisconnect(id string) error {
	if s.players == nil {
		return nil
	}
	if _, err := s.players.PlayerDisconnect(id); err != nil {
		return fmt.Errorf("player disconnect %s: %w", id, err)
	}
	return nil
}

// ReportInstances publishes the live match count as a label. Unchanged
// values are not sent again.
func (s *Server) ReportInstances(n int) error {
	if !s.Enabled() {
		return nil
	}
	value := strconv.Itoa(n)
	s.mu.Lock()
	defer s.mu.Unlock()
	if value == s.lastLabel {
		return nil
	}
	if err := s.sidecar.SetLabel(LabelInstances, value); err != nil {
		return fmt.Errorf("set label: %w", err)
	}
	s.lastLabel = value
	return nil
}

// Shutdown asks Agones to delete the game server.
func (s *Server) Shutdown() error {
	if !s.Enabled() {
		return nil
	}
	if err := s.sidecar.Shutdown(); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Info().Msg("gameserver: shutdown requested")
	return nil
}
