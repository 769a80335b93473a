package push

import (
	"fmt"
	"testing"

	"github.com/nhle/campus-client/internal/model"
)

func event(id string) model.Notification {
	return model.Notification{
		ID:       id,
		Category: model.CategoryGeneral,
		Title:    "event " + id,
		Message:  "message " + id,
	}
}

func TestQueueBoundAndOrdering(t *testing.T) {
	q := NewQueue(2)

	q.Push(event("a"))
	q.Push(event("b"))
	q.Push(event("c"))

	if q.Len() != 2 {
		t.Fatalf("len = %d, want 2", q.Len())
	}
	if q.Unread() != 2 {
		t.Errorf("unread = %d, want 2", q.Unread())
	}

	got := q.Snapshot()
	if got[0].ID != "c" || got[1].ID != "b" {
		t.Errorf("queue = [%s %s], want newest-first [c b]", got[0].ID, got[1].ID)
	}
}

func TestQueueRetainsMostRecent(t *testing.T) {
	q := NewQueue(3)

	for i := 0; i < 10; i++ {
		q.Push(event(fmt.Sprintf("e%d", i)))
	}

	got := q.Snapshot()
	want := []string{"e9", "e8", "e7"}
	for i, id := range want {
		if got[i].ID != id {
			t.Errorf("queue[%d] = %s, want %s", i, got[i].ID, id)
		}
	}
	if q.Unread() != 3 {
		t.Errorf("unread = %d, want 3 after evictions", q.Unread())
	}
}

func TestMarkRead(t *testing.T) {
	q := NewQueue(10)
	q.Push(event("a"))
	q.Push(event("b"))

	if !q.MarkRead("a") {
		t.Fatal("MarkRead(a) = false on an unread event")
	}
	if q.Unread() != 1 {
		t.Errorf("unread = %d, want 1", q.Unread())
	}

	// Second call on the same id is a no-op.
	if q.MarkRead("a") {
		t.Error("MarkRead(a) = true on an already-read event")
	}
	if q.Unread() != 1 {
		t.Errorf("unread = %d after double MarkRead, want 1", q.Unread())
	}
}

func TestMarkReadUnknownID(t *testing.T) {
	q := NewQueue(10)
	q.Push(event("a"))

	if q.MarkRead("missing") {
		t.Error("MarkRead on unknown id = true, want no-op")
	}
	if q.Unread() != 1 {
		t.Errorf("unread = %d, want unchanged 1", q.Unread())
	}
}

func TestUnreadNeverNegative(t *testing.T) {
	q := NewQueue(10)

	read := event("r")
	read.Read = true
	q.Push(read)

	q.MarkRead("r")
	q.MarkRead("r")

	if q.Unread() != 0 {
		t.Errorf("unread = %d, want 0", q.Unread())
	}
}

func TestEvictedUnreadAdjustsCounter(t *testing.T) {
	q := NewQueue(1)

	q.Push(event("a"))
	q.Push(event("b")) // evicts unread "a"

	if q.Unread() != 1 {
		t.Errorf("unread = %d, want 1 (evicted events no longer count)", q.Unread())
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	q := NewQueue(10)
	q.Push(event("a"))

	snap := q.Snapshot()
	snap[0].Read = true

	if q.Snapshot()[0].Read {
		t.Error("mutating a snapshot changed the queue")
	}
}

func TestClear(t *testing.T) {
	q := NewQueue(10)
	q.Push(event("a"))
	q.Push(event("b"))

	q.Clear()

	if q.Len() != 0 || q.Unread() != 0 {
		t.Errorf("after Clear: len = %d, unread = %d; want 0, 0", q.Len(), q.Unread())
	}
}
