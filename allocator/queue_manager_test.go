package allocator

import (
	"fmt"
	"sync"
	"testing"

	"agones-battleground/battleground"
	"agones-battleground/queues"
)

const wsg battleground.TypeID = 2

func ticket(id, player string) *queues.Ticket {
	return &queues.Ticket{TicketID: id, PlayerID: player, BattlegroundType: uint32(wsg), Team: "horde"}
}

func TestQueueManager_Enqueue(t *testing.T) {
	qm := NewQueueManager()

	for i, id := range []string{"ticket1", "ticket2", "ticket3"} {
		if pos := qm.Enqueue(wsg, ticket(id, "player"+id)); pos != i+1 {
			t.Errorf("Enqueue(%s) position mismatch\ngot=%#v\nwant=%#v", id, pos, i+1)
		}
	}
	if pos := qm.Enqueue(wsg, ticket("ticket2", "playerticket2")); pos != 2 {
		t.Errorf("redelivered ticket position mismatch\ngot=%#v\nwant=%#v", pos, 2)
	}
	if length := qm.GetQueueLength(wsg); length != 3 {
		t.Errorf("GetQueueLength() mismatch\ngot=%#v\nwant=%#v", length, 3)
	}
	entries := qm.Entries(wsg)
	if len(entries) != 3 || entries[0].ID == "" || entries[0].ID == entries[1].ID {
		t.Errorf("Entries() ids mismatch\ngot=%#v", entries)
	}
}

func TestQueueManager_Dequeue(t *testing.T) {
	qm := NewQueueManager()
	if entry := qm.Dequeue(wsg); entry != nil {
		t.Fatalf("Dequeue() on empty queue mismatch\ngot=%#v\nwant=nil", entry)
	}

	qm.Enqueue(wsg, ticket("ticket1", "player1"))
	qm.Enqueue(wsg, ticket("ticket2", "player2"))

	entry := qm.Dequeue(wsg)
	if entry == nil || entry.Ticket.TicketID != "ticket1" {
		t.Fatalf("Dequeue() mismatch\ngot=%#v\nwant ticket1", entry)
	}
	pos, found := qm.GetPosition(wsg, "ticket2")
	if !found || pos != 1 {
		t.Errorf("GetPosition(ticket2) mismatch\ngot=%#v,%#v\nwant=1,true", pos, found)
	}
	qm.Dequeue(wsg)
	if _, ok := qm.GetAllQueues()[wsg]; ok {
		t.Errorf("drained queue still listed in GetAllQueues()")
	}
}

func TestQueueManager_Remove(t *testing.T) {
	tests := []struct {
		name      string
		remove    func(qm *QueueManager) bool
		want      bool
		remaining []string
	}{
		{
			name:      "by ticket",
			remove:    func(qm *QueueManager) bool { return qm.RemoveFromQueue(wsg, "ticket2") },
			want:      true,
			remaining: []string{"ticket1", "ticket3"},
		},
		{
			name:      "by player",
			remove:    func(qm *QueueManager) bool { return qm.RemovePlayer(wsg, "player1") },
			want:      true,
			remaining: []string{"ticket2", "ticket3"},
		},
		{
			name:      "unknown ticket",
			remove:    func(qm *QueueManager) bool { return qm.RemoveFromQueue(wsg, "nonexistent") },
			want:      false,
			remaining: []string{"ticket1", "ticket2", "ticket3"},
		},
		{
			name:      "other type",
			remove:    func(qm *QueueManager) bool { return qm.RemoveFromQueue(3, "ticket1") },
			want:      false,
			remaining: []string{"ticket1", "ticket2", "ticket3"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			qm := NewQueueManager()
			qm.Enqueue(wsg, ticket("ticket1", "player1"))
			qm.Enqueue(wsg, ticket("ticket2", "player2"))
			qm.Enqueue(wsg, ticket("ticket3", "player3"))

			if got := tt.remove(qm); got != tt.want {
				t.Errorf("remove mismatch\ngot=%#v\nwant=%#v", got, tt.want)
			}
			var got []string
			for i, e := range qm.Entries(wsg) {
				got = append(got, e.Ticket.TicketID)
				if e.Position != i+1 {
					t.Errorf("position of %s mismatch\ngot=%#v\nwant=%#v", e.Ticket.TicketID, e.Position, i+1)
				}
			}
			if fmt.Sprint(got) != fmt.Sprint(tt.remaining) {
				t.Errorf("remaining mismatch\ngot=%#v\nwant=%#v", got, tt.remaining)
			}
		})
	}
}

func TestQueueManager_ClearAndSnapshot(t *testing.T) {
	qm := NewQueueManager()
	qm.Enqueue(wsg, ticket("ticket1", "player1"))
	qm.Enqueue(wsg, ticket("ticket2", "player2"))
	qm.Enqueue(3, ticket("ticket3", "player3"))

	snapshot := qm.GetAllQueues()
	want := map[battleground.TypeID]int{wsg: 2, 3: 1}
	if fmt.Sprint(snapshot) != fmt.Sprint(want) {
		t.Errorf("GetAllQueues() mismatch\ngot=%#v\nwant=%#v", snapshot, want)
	}

	qm.ClearQueue(wsg)
	if length := qm.GetQueueLength(wsg); length != 0 {
		t.Errorf("GetQueueLength() after clear mismatch\ngot=%#v\nwant=0", length)
	}
}

func TestQueueManager_Concurrent(t *testing.T) {
	qm := NewQueueManager()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			qm.Enqueue(wsg, ticket(fmt.Sprintf("t%d", id), fmt.Sprintf("p%d", id)))
		}(i)
	}
	wg.Wait()

	if length := qm.GetQueueLength(wsg); length != 10 {
		t.Errorf("GetQueueLength() after concurrent enqueues mismatch\ngot=%#v\nwant=10", length)
	}
}
