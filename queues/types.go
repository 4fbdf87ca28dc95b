package queues

import (
	"context"
	"errors"
	"strings"
)

const (
	EnvelopeVersion  = "1.0"
	TypeTicketResult = "battleground.ticket.result"
	TypeMatchOutcome = "battleground.match.outcome"
	ActionJoin       = "join"
	ActionCancel     = "cancel"
)

var ErrInvalidTicket = errors.New("invalid ticket")

// Ticket asks for a place in a battleground of the given type. A cancel ticket
// withdraws an earlier join of the same player.
type Ticket struct {
	TicketID         string `json:"ticketId"`
	PlayerID         string `json:"playerId"`
	BattlegroundType uint32 `json:"battlegroundType"`
	Team             string `json:"team"`
	Action           string `json:"action,omitempty"`
}

// Cancel reports whether the ticket withdraws a previous join.
func (t *Ticket) Cancel() bool {
	return strings.EqualFold(t.Action, ActionCancel)
}

// Validate checks the fields every ticket needs.
func (t *Ticket) Validate() error {
	switch {
	case strings.TrimSpace(t.TicketID) == "":
		return errors.Join(ErrInvalidTicket, errors.New("ticketId is required"))
	case strings.TrimSpace(t.PlayerID) == "":
		return errors.Join(ErrInvalidTicket, errors.New("playerId is required"))
	case t.BattlegroundType == 0:
		return errors.Join(ErrInvalidTicket, errors.New("battlegroundType is required"))
	case t.Action != "" && !strings.EqualFold(t.Action, ActionJoin) && !t.Cancel():
		return errors.Join(ErrInvalidTicket, errors.New("unknown action "+t.Action))
	}
	return nil
}

type TicketStatus string

const (
	StatusSuccess   TicketStatus = "Success"
	StatusAllocated TicketStatus = "Allocated"
	StatusQueued    TicketStatus = "Queued"
	StatusCancelled TicketStatus = "Cancelled"
	StatusFailure   TicketStatus = "Failure"
)

// TicketResult tells the matchmaker where a ticket ended up. Success carries
// the local instance, Allocated a routing token for another game server and
// Queued the position in the wait queue.
type TicketResult struct {
	EnvelopeVersion string       `json:"envelopeVersion"`
	Type            string       `json:"type"`
	TicketID        string       `json:"ticketId"`
	PlayerID        string       `json:"playerId"`
	Status          TicketStatus `json:"status"`
	Instance        uint32       `json:"instance,omitempty"`
	Token           *string      `json:"token,omitempty"`
	QueuePosition   *int         `json:"queuePosition,omitempty"`
	ErrorMessage    *string      `json:"errorMessage,omitempty"`
}

// OutcomeRow is one participant's final line.
type OutcomeRow struct {
	Participant    string `json:"participant"`
	Team           string `json:"team"`
	KillingBlows   uint32 `json:"killingBlows"`
	Deaths         uint32 `json:"deaths"`
	HonorableKills uint32 `json:"honorableKills"`
	BonusHonor     uint32 `json:"bonusHonor"`
}

// MatchOutcome is published once per finished match.
type MatchOutcome struct {
	EnvelopeVersion  string       `json:"envelopeVersion"`
	Type             string       `json:"type"`
	Instance         uint32       `json:"instance"`
	BattlegroundType uint32       `json:"battlegroundType"`
	Winner           string       `json:"winner"`
	ElapsedMs        int64        `json:"elapsedMs"`
	Rows             []OutcomeRow `json:"rows"`
}

type Subscriber interface {
	Start(ctx context.Context, handler func(context.Context, *Ticket) error) error
}

type Publisher interface {
	PublishResult(ctx context.Context, res *TicketResult) error
	PublishOutcome(ctx context.Context, out *MatchOutcome) error
}
