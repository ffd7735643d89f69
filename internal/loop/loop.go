// Package loop provides the cooperative schedulers the grid engine runs on:
// a real single-goroutine event loop and a manually advanced virtual clock.
package loop

import (
	"context"
	"sync"
	"time"

	"github.com/gammazero/deque"
)

// Loop runs every posted callback on the goroutine executing Run.
type Loop struct {
	mu     sync.Mutex
	queue  deque.Deque[func()]
	wake   chan struct{}
	timers map[*time.Timer]struct{}
	closed bool
}

func New() *Loop {
	return &Loop{
		wake:   make(chan struct{}, 1),
		timers: make(map[*time.Timer]struct{}),
	}
}

// Post queues fn to run on the loop. Safe for concurrent use.
func (l *Loop) Post(fn func()) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.queue.PushBack(fn)
	l.mu.Unlock()
	l.signal()
}

func (l *Loop) signal() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// AfterFunc posts fn once d has elapsed. Safe for concurrent use.
func (l *Loop) AfterFunc(d time.Duration, fn func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	var t *time.Timer
	t = time.AfterFunc(d, func() {
		l.mu.Lock()
		if l.closed {
			l.mu.Unlock()
			return
		}
		// Moving from timers to queue under one lock keeps Pending exact.
		delete(l.timers, t)
		l.queue.PushBack(fn)
		l.mu.Unlock()
		l.signal()
	})
	l.timers[t] = struct{}{}
}

// Run drains the queue until ctx is done. Pending timers are stopped on return.
func (l *Loop) Run(ctx context.Context) error {
	defer l.shutdown()
	for {
		for {
			fn, ok := l.next()
			if !ok {
				break
			}
			fn()
			if ctx.Err() != nil {
				return ctx.Err()
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.wake:
		}
	}
}

// Len is the number of callbacks waiting to run.
func (l *Loop) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.queue.Len()
}

// Pending counts queued callbacks plus timers that have not fired yet. Read
// from a callback, zero means nothing else is scheduled.
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.queue.Len() + len(l.timers)
}

func (l *Loop) next() (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.queue.Len() == 0 {
		return nil, false
	}
	return l.queue.PopFront(), true
}

func (l *Loop) shutdown() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	for t := range l.timers {
		t.Stop()
	}
	l.timers = nil
	l.queue.Clear()
}
