package relayer

import (
	"sort"
	"sync"
	"time"
)

// tierQueue is a single priority tier's packet list, protected by its
// own lock so enqueue never blocks behind another tier's dispatch.
type tierQueue struct {
	mu      sync.Mutex
	packets []*Packet
}

func (q *tierQueue) push(p *Packet) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.packets = append(q.packets, p)
}

// peekDue returns the first packet (in this tier's priority order)
// whose NextRetryAt has passed, without removing it.
func (q *tierQueue) peekDue(now time.Time) *Packet {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, p := range q.packets {
		if !p.NextRetryAt.After(now) {
			return p
		}
	}
	return nil
}

// remove drops p from the tier, for a packet that either relayed
// successfully or exhausted its retry budget.
func (q *tierQueue) remove(p *Packet) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, cur := range q.packets {
		if cur == p {
			q.packets = append(q.packets[:i], q.packets[i+1:]...)
			return
		}
	}
}

// sortOwn re-orders the Own tier by (deadline ascending, exposure
// descending) after an enqueue. Paid and Altruistic are plain FIFO and
// never call this.
func (q *tierQueue) sortOwn() {
	q.mu.Lock()
	defer q.mu.Unlock()
	sort.SliceStable(q.packets, func(i, j int) bool {
		a, b := q.packets[i], q.packets[j]
		if !a.Deadline.Equal(b.Deadline) {
			return a.Deadline.Before(b.Deadline)
		}
		return a.Exposure.GT(b.Exposure)
	})
}

func (q *tierQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.packets)
}
