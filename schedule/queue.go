package schedule

import (
	"container/heap"

	"github.com/gosampler/rtengine"
	"github.com/gosampler/rtengine/rtpool"
)

// scheduledNode is one entry in the future-event queue: a scheduler time
// plus the Event it schedules, with an insertion sequence number used to
// break ties in FIFO order (Event.h: "ties broken by insertion order").
type scheduledNode struct {
	when     SchedTime
	seq      uint64
	event    rtengine.Event
	heapIdx  int
}

// nodeHeap implements container/heap.Interface over scheduledNode pointers.
// The pack contains no third-party ordered-tree/priority-queue library (see
// DESIGN.md); container/heap is the direct stdlib substitute for the
// original's intrusive RTAVLTree, used here purely for insert/pop-minimum.
type nodeHeap []*scheduledNode

func (h nodeHeap) Len() int { return len(h) }
func (h nodeHeap) Less(i, j int) bool {
	if h[i].when != h[j].when {
		return h[i].when < h[j].when
	}
	return h[i].seq < h[j].seq
}
func (h nodeHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].heapIdx, h[j].heapIdx = i, j
}
func (h *nodeHeap) Push(x any) {
	n := x.(*scheduledNode)
	n.heapIdx = len(*h)
	*h = append(*h, n)
}
func (h *nodeHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

// Queue is an ordered future-event queue keyed by SchedTime, backed by a
// bounded rtpool.Pool so insertion never touches the system allocator once
// warmed up.
type Queue struct {
	pool *rtpool.Pool[scheduledNode]
	refs map[*scheduledNode]rtpool.Ref
	h    nodeHeap
	seq  uint64
}

// NewQueue creates a Queue that can hold up to capacity pending events.
func NewQueue(capacity int) *Queue {
	return &Queue{
		pool: rtpool.New[scheduledNode](capacity),
		refs: make(map[*scheduledNode]rtpool.Ref, capacity),
		h:    make(nodeHeap, 0, capacity),
	}
}

// Insert schedules ev to fire at scheduler time `when`. Returns false if the
// queue's pool is exhausted (the event is silently dropped, matching the
// audio path's never-block-never-fail-a-cycle policy).
func (q *Queue) Insert(when SchedTime, ev rtengine.Event) bool {
	ref := q.pool.Alloc()
	if ref == rtpool.Nil {
		return false
	}
	node := q.pool.Get(ref)
	node.when = when
	node.seq = q.seq
	node.event = ev
	q.seq++
	q.refs[node] = ref
	heap.Push(&q.h, node)
	return true
}

// PopBefore removes and returns, in increasing-key order, every event whose
// scheduled time is <= end.
func (q *Queue) PopBefore(end SchedTime) []rtengine.Event {
	var out []rtengine.Event
	for len(q.h) > 0 && q.h[0].when <= end {
		node := heap.Pop(&q.h).(*scheduledNode)
		out = append(out, node.event)
		ref := q.refs[node]
		delete(q.refs, node)
		q.pool.Free(ref)
	}
	return out
}

// Len returns the number of pending events.
func (q *Queue) Len() int { return len(q.h) }
