package loop

import (
	"container/heap"
	"time"
)

// Manual is a virtual clock. Callbacks run only from Advance or RunAll, on the
// caller's goroutine, in due-time order; ties run in scheduling order.
type Manual struct {
	now   time.Duration
	seq   uint64
	queue timerHeap
}

func NewManual() *Manual { return &Manual{} }

// AfterFunc schedules fn at Now()+d. Negative delays count as zero.
func (m *Manual) AfterFunc(d time.Duration, fn func()) {
	if d < 0 {
		d = 0
	}
	m.seq++
	heap.Push(&m.queue, &timer{at: m.now + d, seq: m.seq, fn: fn})
}

// Advance moves the clock forward by d, running everything that falls due,
// including callbacks scheduled by callbacks within the window.
func (m *Manual) Advance(d time.Duration) int {
	target := m.now + d
	ran := 0
	for m.queue.Len() > 0 && m.queue[0].at <= target {
		t := heap.Pop(&m.queue).(*timer)
		m.now = t.at
		t.fn()
		ran++
	}
	m.now = target
	return ran
}

// RunAll runs until nothing is scheduled and returns how many callbacks ran.
func (m *Manual) RunAll() int {
	ran := 0
	for m.queue.Len() > 0 {
		t := heap.Pop(&m.queue).(*timer)
		m.now = t.at
		t.fn()
		ran++
	}
	return ran
}

func (m *Manual) Pending() int { return m.queue.Len() }

// Now is the virtual time elapsed since the clock was created.
func (m *Manual) Now() time.Duration { return m.now }

type timer struct {
	at  time.Duration
	seq uint64
	fn  func()
}

type timerHeap []*timer

func (h timerHeap) Len() int { return len(h) }

func (h timerHeap) Less(i, j int) bool {
	if h[i].at != h[j].at {
		return h[i].at < h[j].at
	}
	return h[i].seq < h[j].seq
}

func (h timerHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *timerHeap) Push(x any) { *h = append(*h, x.(*timer)) }

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return t
}
