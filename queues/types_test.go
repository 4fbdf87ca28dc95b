package queues

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestTicket_Validate(t *testing.T) {
	tests := []struct {
		name    string
		in      Ticket
		wantErr bool
	}{
		{"join", Ticket{TicketID: "t1", PlayerID: "p1", BattlegroundType: 2, Team: "horde"}, false},
		{"explicit join", Ticket{TicketID: "t1", PlayerID: "p1", BattlegroundType: 2, Action: "join"}, false},
		{"cancel", Ticket{TicketID: "t1", PlayerID: "p1", BattlegroundType: 2, Action: "Cancel"}, false},
		{"missing ticket", Ticket{PlayerID: "p1", BattlegroundType: 2}, true},
		{"missing player", Ticket{TicketID: "t1", BattlegroundType: 2}, true},
		{"missing type", Ticket{TicketID: "t1", PlayerID: "p1"}, true},
		{"unknown action", Ticket{TicketID: "t1", PlayerID: "p1", BattlegroundType: 2, Action: "spectate"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.in.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error mismatch\ngot=%#v\nwantErr=%#v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidTicket) {
				t.Errorf("Validate() error is not ErrInvalidTicket: %#v", err)
			}
		})
	}
}

func TestTicketResult_OmitsEmptyFields(t *testing.T) {
	queuePos := 5
	tests := []struct {
		name string
		in   TicketResult
		keys []string
	}{
		{"success", TicketResult{EnvelopeVersion: "1.0", Type: TypeTicketResult, TicketID: "t1", PlayerID: "p1", Status: StatusSuccess, Instance: 4}, []string{"instance"}},
		{"allocated", TicketResult{EnvelopeVersion: "1.0", Type: TypeTicketResult, TicketID: "t2", Status: StatusAllocated, Token: strPtr("tok")}, []string{"token"}},
		{"queued", TicketResult{EnvelopeVersion: "1.0", Type: TypeTicketResult, TicketID: "t3", Status: StatusQueued, QueuePosition: &queuePos}, []string{"queuePosition"}},
		{"failure", TicketResult{EnvelopeVersion: "1.0", Type: TypeTicketResult, TicketID: "t4", Status: StatusFailure, ErrorMessage: strPtr("err")}, []string{"errorMessage"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := json.Marshal(tt.in)
			if err != nil {
				t.Fatalf("marshal err: %#v", err)
			}
			var fields map[string]any
			if err := json.Unmarshal(b, &fields); err != nil {
				t.Fatalf("unmarshal err: %#v", err)
			}
			for _, k := range tt.keys {
				if _, ok := fields[k]; !ok {
					t.Errorf("field %q missing in %s", k, b)
				}
			}
			if got := len(fields); got != 5+len(tt.keys) {
				t.Errorf("field count mismatch\ngot=%#v\nwant=%#v", got, 5+len(tt.keys))
			}
		})
	}
}

func strPtr(s string) *string { return &s }
