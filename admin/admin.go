// Package admin exposes operator endpoints for live matches, wait queues and
// the match log.
package admin

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"agones-battleground/battleground"
	"agones-battleground/instance"
	"agones-battleground/matchlog"
	"agones-battleground/queues"
	"agones-battleground/spawn"

	"github.com/rs/zerolog/log"
)

const requestTimeout = 5 * time.Second

// Matches is the view of the match loop the endpoints drive.
type Matches interface {
	Snapshot(ctx context.Context) ([]instance.MatchInfo, error)
	SpawnEvent(ctx context.Context, id uint32, c spawn.Category, s spawn.SubState, activate bool) error
	End(ctx context.Context, id uint32, winner battleground.Team) error
}

type Queues interface {
	GetAllQueues() map[battleground.TypeID]int
}

type Logs interface {
	ListByInstance(ctx context.Context, id uint32) ([]matchlog.Row, error)
}

type eventRequest struct {
	Instance uint32 `json:"instance"`
	Category uint8  `json:"category"`
	SubState uint8  `json:"subState"`
	Activate bool   `json:"activate"`
}

type endRequest struct {
	Instance uint32 `json:"instance"`
	Winner   string `json:"winner"`
}

// Register mounts the admin endpoints. Nil queues or logs leave their
// endpoints unmounted.
func Register(mux *http.ServeMux, matches Matches, waiting Queues, logs Logs) {
	mux.HandleFunc("GET /admin/events", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
		defer cancel()
		infos, err := matches.Snapshot(ctx)
		if err != nil {
			writeError(w, err)
			return
		}
		if infos == nil {
			infos = []instance.MatchInfo{}
		}
		writeJSON(w, http.StatusOK, infos)
	})
	mux.HandleFunc("POST /admin/events", func(w http.ResponseWriter, r *http.Request) {
		var req eventRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid body: "+err.Error(), http.StatusBadRequest)
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
		defer cancel()
		err := matches.SpawnEvent(ctx, req.Instance, spawn.Category(req.Category), spawn.SubState(req.SubState), req.Activate)
		if err != nil {
			writeError(w, err)
			return
		}
		log.Info().Uint32("instance", req.Instance).Uint8("category", req.Category).Uint8("subState", req.SubState).Bool("activate", req.Activate).Msg("admin: event toggled")
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("POST /admin/end", func(w http.ResponseWriter, r *http.Request) {
		var req endRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid body: "+err.Error(), http.StatusBadRequest)
			return
		}
		winner, err := battleground.ParseTeam(req.Winner)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
		defer cancel()
		if err := matches.End(ctx, req.Instance, winner); err != nil {
			writeError(w, err)
			return
		}
		log.Info().Uint32("instance", req.Instance).Str("winner", winner.String()).Msg("admin: match ended")
		w.WriteHeader(http.StatusNoContent)
	})

	if waiting != nil {
		mux.HandleFunc("GET /admin/queues", func(w http.ResponseWriter, r *http.Request) {
			out := map[string]int{}
			for t, n := range waiting.GetAllQueues() {
				out[strconv.FormatUint(uint64(t), 10)] = n
			}
			writeJSON(w, http.StatusOK, out)
		})
	}
	if logs != nil {
		mux.HandleFunc("GET /admin/logs/{instance}", func(w http.ResponseWriter, r *http.Request) {
			id, err := strconv.ParseUint(r.PathValue("instance"), 10, 32)
			if err != nil {
				http.Error(w, "invalid instance", http.StatusBadRequest)
				return
			}
			rows, err := logs.ListByInstance(r.Context(), uint32(id))
			if err != nil {
				writeError(w, err)
				return
			}
			if rows == nil {
				rows = []matchlog.Row{}
			}
			writeJSON(w, http.StatusOK, rows)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("admin: failed to encode response")
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, battleground.ErrMatchNotFound):
		status = http.StatusNotFound
	case errors.Is(err, spawn.ErrUnknownCategory), errors.Is(err, spawn.ErrNotDoor), errors.Is(err, spawn.ErrInactiveEvent):
		status = http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusServiceUnavailable
	}
	http.Error(w, err.Error(), status)
}

// Tickets places matchmaking tickets.
type Tickets interface {
	Handle(ctx context.Context, t *queues.Ticket) error
}

// RegisterTickets mounts POST /admin/tickets, the local ticket ingress used
// when Pub/Sub is not configured.
func RegisterTickets(mux *http.ServeMux, tickets Tickets) {
	mux.HandleFunc("POST /admin/tickets", func(w http.ResponseWriter, r *http.Request) {
		var t queues.Ticket
		if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
			http.Error(w, "invalid body: "+err.Error(), http.StatusBadRequest)
			return
		}
		if err := t.Validate(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
		defer cancel()
		if err := tickets.Handle(ctx, &t); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	})
}
