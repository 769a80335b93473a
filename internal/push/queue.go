package push

import (
	"sync"

	"github.com/nhle/campus-client/internal/model"
)

// DefaultCapacity bounds the queue when no capacity is configured.
const DefaultCapacity = 50

// Queue is a bounded, newest-first sequence of notifications with an
// unread counter. It survives channel reconnects and disconnects; only
// eviction past the bound or channel teardown discards events.
type Queue struct {
	mu       sync.Mutex
	capacity int
	events   []model.Notification
	unread   int
}

// NewQueue creates a queue bounded to capacity events. Non-positive
// capacities fall back to DefaultCapacity.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Queue{capacity: capacity}
}

// Push prepends an event, evicting the oldest entry past the bound.
// The unread counter tracks only events still held in the queue.
func (q *Queue) Push(n model.Notification) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.events = append([]model.Notification{n}, q.events...)
	if !n.Read {
		q.unread++
	}

	for len(q.events) > q.capacity {
		last := q.events[len(q.events)-1]
		if !last.Read && q.unread > 0 {
			q.unread--
		}
		q.events = q.events[:len(q.events)-1]
	}
}

// MarkRead flips an event to read and decrements the unread counter by
// exactly one if it was unread. Unknown ids and repeated calls are
// no-ops; the counter never goes negative.
func (q *Queue) MarkRead(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i := range q.events {
		if q.events[i].ID != id {
			continue
		}
		if q.events[i].Read {
			return false
		}
		q.events[i].Read = true
		if q.unread > 0 {
			q.unread--
		}
		return true
	}
	return false
}

// Snapshot returns a copy of the queue contents, newest first.
func (q *Queue) Snapshot() []model.Notification {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]model.Notification, len(q.events))
	copy(out, q.events)
	return out
}

// Unread returns the number of unread events currently held.
func (q *Queue) Unread() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.unread
}

// Len returns the number of events currently held.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Clear empties the queue and resets the unread counter.
func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.events = nil
	q.unread = 0
}
