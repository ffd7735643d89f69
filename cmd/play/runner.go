package main

import (
	"context"
	"errors"
	"time"

	"minigames/internal/loop"
)

// runner executes steps in order, starting each once the board has gone idle.
type runner interface {
	run(ctx context.Context, steps []func()) error
}

type manualRunner struct {
	clock *loop.Manual
}

func (r *manualRunner) run(ctx context.Context, steps []func()) error {
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		step()
		r.clock.RunAll()
	}
	return nil
}

type loopRunner struct {
	loop *loop.Loop
	poll time.Duration
}

func (r *loopRunner) run(ctx context.Context, steps []func()) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan struct{})
	var next func(i int)
	next = func(i int) {
		if i == len(steps) {
			close(done)
			return
		}
		steps[i]()
		r.whenIdle(func() { next(i + 1) })
	}

	errc := make(chan error, 1)
	go func() { errc <- r.loop.Run(ctx) }()
	r.loop.Post(func() { next(0) })

	select {
	case <-done:
		cancel()
		if err := <-errc; err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	case err := <-errc:
		return err
	}
}

// whenIdle runs fn on the loop once nothing else is queued or pending.
func (r *loopRunner) whenIdle(fn func()) {
	r.loop.AfterFunc(r.poll, func() {
		if r.loop.Pending() > 0 {
			r.whenIdle(fn)
			return
		}
		fn()
	})
}
