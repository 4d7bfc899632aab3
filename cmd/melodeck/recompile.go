package main

import "context"

// recompiler runs one compile at a time. Requests that arrive while a run is
// in progress collapse into a single follow-up run.
type recompiler struct {
	pending chan struct{}
	run     func(ctx context.Context)
}

func newRecompiler(run func(ctx context.Context)) *recompiler {
	return &recompiler{
		pending: make(chan struct{}, 1),
		run:     run,
	}
}

// Request schedules a run. It never blocks.
func (r *recompiler) Request() {
	select {
	case r.pending <- struct{}{}:
	default:
	}
}

// Loop serves requests until ctx is done.
func (r *recompiler) Loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.pending:
			r.run(ctx)
		}
	}
}
