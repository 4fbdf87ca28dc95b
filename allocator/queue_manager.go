package allocator

import (
	"sync"
	"time"

	"agones-battleground/battleground"
	"agones-battleground/queues"

	"github.com/google/uuid"
)

// QueueEntry is a ticket waiting for a free slot in a battleground type.
type QueueEntry struct {
	ID        string
	Ticket    *queues.Ticket
	Timestamp time.Time
	Position  int
}

// QueueManager keeps FIFO wait queues per battleground type. The server runs
// as a single pod, so the queues live in memory.
type QueueManager struct {
	mu     sync.RWMutex
	queues map[battleground.TypeID][]*QueueEntry
}

func NewQueueManager() *QueueManager {
	return &QueueManager{
		queues: make(map[battleground.TypeID][]*QueueEntry),
	}
}

// Enqueue appends a ticket and returns its 1-based position. A ticket that is
// already queued keeps its place.
func (qm *QueueManager) Enqueue(t battleground.TypeID, ticket *queues.Ticket) int {
	qm.mu.Lock()
	defer qm.mu.Unlock()

	for _, e := range qm.queues[t] {
		if e.Ticket.TicketID == ticket.TicketID {
			return e.Position
		}
	}
	entry := &QueueEntry{
		ID:        uuid.NewString(),
		Ticket:    ticket,
		Timestamp: time.Now(),
		Position:  len(qm.queues[t]) + 1,
	}
	qm.queues[t] = append(qm.queues[t], entry)
	return entry.Position
}

// Dequeue removes and returns the head of a queue.
func (qm *QueueManager) Dequeue(t battleground.TypeID) *QueueEntry {
	qm.mu.Lock()
	defer qm.mu.Unlock()

	queue := qm.queues[t]
	if len(queue) == 0 {
		return nil
	}
	entry := queue[0]
	qm.setQueue(t, queue[1:])
	return entry
}

// Entries returns a snapshot of a queue in order.
func (qm *QueueManager) Entries(t battleground.TypeID) []*QueueEntry {
	qm.mu.RLock()
	defer qm.mu.RUnlock()

	out := make([]*QueueEntry, len(qm.queues[t]))
	copy(out, qm.queues[t])
	return out
}

func (qm *QueueManager) GetPosition(t battleground.TypeID, ticketID string) (int, bool) {
	qm.mu.RLock()
	defer qm.mu.RUnlock()

	for _, entry := range qm.queues[t] {
		if entry.Ticket.TicketID == ticketID {
			return entry.Position, true
		}
	}
	return 0, false
}

// RemoveFromQueue drops a ticket, e.g. once it found a slot.
func (qm *QueueManager) RemoveFromQueue(t battleground.TypeID, ticketID string) bool {
	return qm.removeWhere(t, func(e *QueueEntry) bool { return e.Ticket.TicketID == ticketID })
}

// RemovePlayer drops every ticket of a player.
func (qm *QueueManager) RemovePlayer(t battleground.TypeID, playerID string) bool {
	return qm.removeWhere(t, func(e *QueueEntry) bool { return e.Ticket.PlayerID == playerID })
}

func (qm *QueueManager) removeWhere(t battleground.TypeID, match func(*QueueEntry) bool) bool {
	qm.mu.Lock()
	defer qm.mu.Unlock()

	queue := qm.queues[t]
	kept := make([]*QueueEntry, 0, len(queue))
	for _, e := range queue {
		if !match(e) {
			kept = append(kept, e)
		}
	}
	if len(kept) == len(queue) {
		return false
	}
	qm.setQueue(t, kept)
	return true
}

// setQueue stores a queue and renumbers its positions. Callers hold mu.
func (qm *QueueManager) setQueue(t battleground.TypeID, queue []*QueueEntry) {
	if len(queue) == 0 {
		delete(qm.queues, t)
		return
	}
	for i, e := range queue {
		e.Position = i + 1
	}
	qm.queues[t] = queue
}

func (qm *QueueManager) GetQueueLength(t battleground.TypeID) int {
	qm.mu.RLock()
	defer qm.mu.RUnlock()
	return len(qm.queues[t])
}

func (qm *QueueManager) ClearQueue(t battleground.TypeID) {
	qm.mu.Lock()
	defer qm.mu.Unlock()
	delete(qm.queues, t)
}

// GetAllQueues returns the length of every non-empty queue.
func (qm *QueueManager) GetAllQueues() map[battleground.TypeID]int {
	qm.mu.RLock()
	defer qm.mu.RUnlock()

	snapshot := make(map[battleground.TypeID]int, len(qm.queues))
	for t, queue := range qm.queues {
		snapshot[t] = len(queue)
	}
	return snapshot
}
