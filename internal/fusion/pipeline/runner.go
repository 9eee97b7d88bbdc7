package pipeline

import (
	"context"
	"sync/atomic"
)

// RunnerStats counts frames seen by a Runner.
type RunnerStats struct {
	Submitted uint64 `json:"submitted"`
	Processed uint64 `json:"processed"`
	Dropped   uint64 `json:"dropped"`
	Failed    uint64 `json:"failed"`
}

// Runner feeds frames to a Pipeline from a single goroutine. Submit never
// blocks: a frame offered while another is still queued is dropped, which
// is how a live source sheds load when processing cannot keep up.
type Runner struct {
	p        *Pipeline
	frames   chan FrameInput
	onResult func(*FrameResult)

	submitted atomic.Uint64
	processed atomic.Uint64
	dropped   atomic.Uint64
	failed    atomic.Uint64
}

// NewRunner returns a runner with a one-frame queue. onResult may be nil.
func NewRunner(p *Pipeline, onResult func(*FrameResult)) *Runner {
	return &Runner{p: p, frames: make(chan FrameInput, 1), onResult: onResult}
}

// Submit queues a frame and reports whether it was accepted.
func (r *Runner) Submit(in FrameInput) bool {
	r.submitted.Add(1)
	select {
	case r.frames <- in:
		return true
	default:
		n := r.dropped.Add(1)
		opsf("runner: dropped frame at %v, pipeline busy (total dropped: %d)", in.Stamp, n)
		return false
	}
}

// Run processes queued frames until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case in := <-r.frames:
			res, err := r.p.ProcessFrame(ctx, in)
			if err != nil {
				return err
			}
			r.processed.Add(1)
			if res.Err() != nil {
				r.failed.Add(1)
			}
			if r.onResult != nil {
				r.onResult(res)
			}
		}
	}
}

// Stats returns a snapshot of the counters.
func (r *Runner) Stats() RunnerStats {
	return RunnerStats{
		Submitted: r.submitted.Load(),
		Processed: r.processed.Load(),
		Dropped:   r.dropped.Load(),
		Failed:    r.failed.Load(),
	}
}
