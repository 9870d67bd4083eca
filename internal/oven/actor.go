package oven

import (
	"context"

	"github.com/google/uuid"

	"github.com/sweeney/oven-controller/internal/logic"
)

type requestKind int

const (
	reqSelectMode requestKind = iota
	reqSelectDoneness
	reqStart
	reqSnapshot
)

func (k requestKind) String() string {
	switch k {
	case reqSelectMode:
		return "select-mode"
	case reqSelectDoneness:
		return "select-doneness"
	case reqStart:
		return "start"
	case reqSnapshot:
		return "snapshot"
	default:
		return "unknown"
	}
}

type request struct {
	kind  requestKind
	reply chan response
}

type response struct {
	snap Snapshot
	err  error
}

func newRunID() string {
	return uuid.NewString()
}

// call sends a request to the actor and waits for its reply.
func (o *Oven) call(ctx context.Context, kind requestKind) (Snapshot, error) {
	req := request{kind: kind, reply: make(chan response, 1)}
	select {
	case o.requests <- req:
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
	select {
	case resp := <-req.reply:
		return resp.snap, resp.err
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
}

func (o *Oven) handle(ctx context.Context, req request) {
	var err error
	switch req.kind {
	case reqSelectMode:
		err = o.selectMode()
	case reqSelectDoneness:
		err = o.selectDoneness()
	case reqStart:
		err = o.start(ctx)
	}
	req.reply <- response{snap: o.snapshot(), err: err}
}

func (o *Oven) snapshot() Snapshot {
	s := Snapshot{
		State:           o.state,
		Heater:          o.heater.level(),
		Cycles:          o.cycles,
		SelectorsActive: o.selectors.active(),
		PipelineActive:  o.pipeline.active(),
	}
	if o.run != nil {
		r := *o.run
		s.Run = &r
	}
	return s
}

func (o *Oven) selectMode() error {
	if o.state.Status != logic.StatusIdle {
		return ErrRunning
	}
	o.state.Mode = o.modeSel.Advance()
	o.log.Debugw("mode selected", "mode", o.state.Mode, "cursor", o.modeSel.Cursor())
	o.showMode()
	o.emit(logic.Event{
		Type:     logic.EventModeSelected,
		Mode:     o.state.Mode,
		Doneness: o.state.Doneness,
		Status:   o.state.Status,
	})
	return nil
}

func (o *Oven) selectDoneness() error {
	if o.state.Status != logic.StatusIdle {
		return ErrRunning
	}
	o.state.Doneness = o.donenessSel.Advance()
	o.log.Debugw("doneness selected", "doneness", o.state.Doneness, "cursor", o.donenessSel.Cursor())
	o.showDoneness()
	o.emit(logic.Event{
		Type:     logic.EventDonenessSelected,
		Mode:     o.state.Mode,
		Doneness: o.state.Doneness,
		Status:   o.state.Status,
	})
	return nil
}

func (o *Oven) showMode() {
	if err := o.display.ShowMode(o.state.Mode); err != nil {
		o.log.Warnw("mode display update failed", "err", err)
	}
}

func (o *Oven) showDoneness() {
	if err := o.display.ShowDoneness(o.state.Doneness); err != nil {
		o.log.Warnw("doneness display update failed", "err", err)
	}
}

// start moves Idle→Running, arms the cycle timer, parks the selectors and
// activates the sampling pipeline.
func (o *Oven) start(ctx context.Context) error {
	if o.state.Status != logic.StatusIdle {
		return ErrRunning
	}

	target, err := logic.TargetTemperature(o.state.Mode)
	if err != nil {
		return err
	}
	duration, err := o.cfg.CookDuration(o.state.Doneness)
	if err != nil {
		return err
	}

	run := logic.Run{
		ID:        o.cfg.NewRunID(),
		Mode:      o.state.Mode,
		Doneness:  o.state.Doneness,
		TargetC:   target,
		Duration:  duration,
		StartedAt: o.cfg.Now(),
	}

	o.state.Status = logic.StatusRunning
	o.running.Store(true)
	o.run = &run

	o.timer.Reset(duration)
	o.selectors.stop()
	o.activatePipeline(ctx, run)

	o.log.Infow("cook cycle started",
		"run", run.ID, "mode", run.Mode, "target_c", run.TargetC,
		"doneness", run.Doneness, "duration", run.Duration)
	o.emit(logic.Event{
		Type:     logic.EventCycleStart,
		Mode:     run.Mode,
		Doneness: run.Doneness,
		Status:   o.state.Status,
		Run:      &run,
	})
	return nil
}

// expire ends the running cycle. It runs inside the actor loop and never
// waits on a worker.
func (o *Oven) expire(ctx context.Context) {
	if o.run == nil {
		return
	}
	run := *o.run

	if err := o.heater.shut(); err != nil {
		o.log.Errorw("heater off failed at cycle end", "run", run.ID, "err", err)
	}
	o.state.Status = logic.StatusIdle
	o.running.Store(false)
	o.activateSelectors(ctx)
	o.pipeline.stop()

	o.run = nil
	o.cycles++

	o.log.Infow("cook cycle finished", "run", run.ID, "elapsed", o.cfg.Now().Sub(run.StartedAt))
	o.emit(logic.Event{
		Type:     logic.EventCycleEnd,
		Mode:     o.state.Mode,
		Doneness: o.state.Doneness,
		Status:   o.state.Status,
		Run:      &run,
	})
}
