package simulation

import (
	"container/heap"
	"time"

	"github.com/mlolab/mloeval/internal/model"
)

type eventKind int

const (
	eventTransmit eventKind = iota
	eventOutcome
	eventReport
)

type event struct {
	at   time.Duration
	seq  uint64
	kind eventKind
	flow model.FlowID
	// packet is the outcome to apply, only for outcome events.
	packet model.PacketEvent
}

// eventHeap orders the events by time, and by scheduling order on the same time.
type eventHeap []event

func (h eventHeap) Len() int { return len(h) }
func (h eventHeap) Less(i, j int) bool {
	if h[i].at != h[j].at {
		return h[i].at < h[j].at
	}
	return h[i].seq < h[j].seq
}
func (h eventHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *eventHeap) Push(x any)   { *h = append(*h, x.(event)) }
func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	*h = old[:n-1]
	return e
}

type queue struct {
	h   eventHeap
	seq uint64
}

func (q *queue) schedule(e event) {
	q.seq++
	e.seq = q.seq
	heap.Push(&q.h, e)
}

func (q *queue) next() (event, bool) {
	if q.h.Len() == 0 {
		return event{}, false
	}
	return heap.Pop(&q.h).(event), true
}

func (q *queue) len() int { return q.h.Len() }
