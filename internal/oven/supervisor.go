package oven

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/sweeney/oven-controller/internal/logic"
)

// workerGroup is a set of workers activated together under one context.
// A nil group is inactive.
type workerGroup struct {
	cancel  context.CancelFunc
	group   *errgroup.Group
	stopped bool
}

func startGroup(parent context.Context, workers ...func(context.Context) error) *workerGroup {
	ctx, cancel := context.WithCancel(parent)
	g, gctx := errgroup.WithContext(ctx)
	for _, w := range workers {
		w := w
		g.Go(func() error { return w(gctx) })
	}
	return &workerGroup{cancel: cancel, group: g}
}

// stop deactivates the group without waiting for its workers.
func (w *workerGroup) stop() {
	if w == nil {
		return
	}
	w.stopped = true
	w.cancel()
}

func (w *workerGroup) wait() error {
	if w == nil {
		return nil
	}
	return w.group.Wait()
}

func (w *workerGroup) active() bool {
	return w != nil && !w.stopped
}

func (o *Oven) activateSelectors(ctx context.Context) {
	o.selectors = startGroup(ctx,
		func(ctx context.Context) error { return o.selectorLoop(ctx, o.modeSig, reqSelectMode) },
		func(ctx context.Context) error { return o.selectorLoop(ctx, o.donenessSig, reqSelectDoneness) },
	)
}

// activatePipeline starts sampler and regulator for run. The previous
// pipeline is awaited and the queue drained first, so no sample from an
// earlier cycle reaches this one.
func (o *Oven) activatePipeline(ctx context.Context, run logic.Run) {
	if err := o.pipeline.wait(); err != nil {
		o.log.Warnw("previous pipeline exited with error", "err", err)
	}
	for drained := false; !drained; {
		select {
		case <-o.samples:
		default:
			drained = true
		}
	}
	o.heater.open(run.ID)
	o.pipeline = startGroup(ctx,
		o.sampleLoop,
		func(ctx context.Context) error { return o.regulateLoop(ctx, run) },
	)
}
