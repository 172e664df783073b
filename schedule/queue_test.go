package schedule

import (
	"testing"

	"github.com/gosampler/rtengine"
)

func TestQueuePopsInIncreasingKeyOrder(t *testing.T) {
	q := NewQueue(16)
	q.Insert(30, rtengine.Event{Key: 30})
	q.Insert(10, rtengine.Event{Key: 10})
	q.Insert(20, rtengine.Event{Key: 20})

	events := q.PopBefore(25)
	if len(events) != 2 {
		t.Fatalf("PopBefore(25) returned %d events, want 2", len(events))
	}
	if events[0].Key != 10 || events[1].Key != 20 {
		t.Fatalf("events out of order: %+v", events)
	}
	if q.Len() != 1 {
		t.Fatalf("Len = %d, want 1 remaining", q.Len())
	}
}

func TestQueueTiesBrokenByInsertionOrder(t *testing.T) {
	q := NewQueue(16)
	q.Insert(5, rtengine.Event{Key: 1})
	q.Insert(5, rtengine.Event{Key: 2})
	q.Insert(5, rtengine.Event{Key: 3})

	events := q.PopBefore(5)
	for i, want := range []int{1, 2, 3} {
		if events[i].Key != want {
			t.Fatalf("tie order = %v, want [1 2 3]", events)
		}
	}
}

func TestQueueInsertFailsWhenPoolExhausted(t *testing.T) {
	q := NewQueue(2)
	if !q.Insert(1, rtengine.Event{}) {
		t.Fatalf("first insert should succeed")
	}
	if !q.Insert(2, rtengine.Event{}) {
		t.Fatalf("second insert should succeed")
	}
	if q.Insert(3, rtengine.Event{}) {
		t.Fatalf("third insert should fail: pool exhausted")
	}
}
