package oven

import (
	"context"
	"errors"

	"github.com/sweeney/oven-controller/internal/logic"
)

// selectorLoop consumes one notification channel and asks the actor to
// advance the matching selector, then waits out the refractory delay.
// Used for the mode and doneness selectors.
func (o *Oven) selectorLoop(ctx context.Context, sig chan struct{}, kind requestKind) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-sig:
		}
		if ctx.Err() != nil {
			// Deactivated while the token was being taken: hand it back.
			select {
			case sig <- struct{}{}:
			default:
			}
			return nil
		}

		if _, err := o.call(ctx, kind); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			o.log.Debugw("notification rejected", "request", kind, "err", err)
		}

		if !sleep(ctx, o.cfg.RefractoryDelay) {
			return nil
		}
	}
}

// startLoop is the cycle controller worker. It stays active for the life
// of the oven.
func (o *Oven) startLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-o.startSig:
		}

		if _, err := o.call(ctx, reqStart); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			if errors.Is(err, ErrRunning) {
				o.log.Debugw("start ignored, cycle already running")
			} else {
				o.log.Errorw("cook cycle not started", "err", err)
			}
		}

		if !sleep(ctx, o.cfg.RefractoryDelay) {
			return nil
		}
	}
}

// sampleLoop averages SamplesPerAverage raw readings per period and pushes
// the mean onto the sample queue, blocking while the queue is full.
func (o *Oven) sampleLoop(ctx context.Context) error {
	readings := make([]int, o.cfg.SamplesPerAverage)
	for {
		avg, err := o.readAverage(readings)
		if err != nil {
			o.log.Warnw("sensor read failed, sample skipped", "err", err)
		} else {
			select {
			case o.samples <- avg:
			case <-ctx.Done():
				return nil
			}
		}

		if !sleep(ctx, o.cfg.SamplePeriod) {
			return nil
		}
	}
}

func (o *Oven) readAverage(readings []int) (int, error) {
	for i := range readings {
		raw, err := o.sensor.ReadRaw()
		if err != nil {
			return 0, err
		}
		if err := logic.CheckRaw(raw); err != nil {
			return 0, err
		}
		readings[i] = raw
	}
	return logic.Average(readings), nil
}

// regulateLoop pops averaged samples and applies the control law against
// the run's target.
func (o *Oven) regulateLoop(ctx context.Context, run logic.Run) error {
	reg := logic.Regulator{HysteresisC: o.cfg.HysteresisC}
	on := false
	for {
		var raw int
		select {
		case <-ctx.Done():
			return nil
		case raw = <-o.samples:
		}

		celsius := logic.Celsius(raw)
		want := reg.Decide(celsius, run.TargetC, on)

		changed, allowed, err := o.heater.set(run.ID, want)
		if !allowed {
			return nil
		}
		if err != nil {
			o.log.Warnw("heater write failed", "run", run.ID, "err", err)
			continue
		}
		on = want

		o.log.Debugw("temperature", "celsius", celsius, "target_c", run.TargetC, "heater", on)
		e := logic.Event{
			Type:         logic.EventTemperature,
			Mode:         run.Mode,
			Doneness:     run.Doneness,
			Status:       logic.StatusRunning,
			Heater:       on,
			TemperatureC: celsius,
			Run:          &run,
		}
		o.emit(e)
		if changed {
			e.Type = logic.EventHeaterOff
			if on {
				e.Type = logic.EventHeaterOn
			}
			o.emit(e)
		}
	}
}
