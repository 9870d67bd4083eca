package history

import (
	"context"
	"time"

	"github.com/sweeney/oven-controller/internal/logger"
	"github.com/sweeney/oven-controller/internal/logic"
)

// Recorder folds the oven event stream into Cycle records and stores
// each one when its cycle ends. Not safe for concurrent use; feed it from
// a single event loop.
type Recorder struct {
	store Store
	log   *logger.Logger

	current *Cycle
}

// NewRecorder returns a Recorder writing to store.
func NewRecorder(store Store, log *logger.Logger) *Recorder {
	if log == nil {
		log = logger.Nop()
	}
	return &Recorder{store: store, log: log}
}

// Observe consumes one event. It returns the stored cycle on CYCLE_END.
func (r *Recorder) Observe(ctx context.Context, e logic.Event) (*Cycle, error) {
	switch e.Type {
	case logic.EventCycleStart:
		if e.Run == nil {
			return nil, nil
		}
		r.current = &Cycle{
			ID:        e.Run.ID,
			Mode:      string(e.Run.Mode),
			Doneness:  string(e.Run.Doneness),
			TargetC:   e.Run.TargetC,
			Duration:  e.Run.Duration,
			StartedAt: e.Run.StartedAt,
			MaxTempC:  -1,
		}

	case logic.EventHeaterOn:
		if r.matches(e) {
			r.current.HeaterOnCount++
		}

	case logic.EventTemperature:
		if r.matches(e) && e.TemperatureC > r.current.MaxTempC {
			r.current.MaxTempC = e.TemperatureC
		}

	case logic.EventCycleEnd:
		if !r.matches(e) {
			// Started before we were listening; record what the event carries.
			if e.Run == nil {
				return nil, nil
			}
			r.current = &Cycle{
				ID:        e.Run.ID,
				Mode:      string(e.Run.Mode),
				Doneness:  string(e.Run.Doneness),
				TargetC:   e.Run.TargetC,
				Duration:  e.Run.Duration,
				StartedAt: e.Run.StartedAt,
				MaxTempC:  -1,
			}
		}
		c := *r.current
		r.current = nil
		c.EndedAt = e.Timestamp
		if c.EndedAt.IsZero() {
			c.EndedAt = time.Now()
		}
		if err := r.store.Append(ctx, c); err != nil {
			r.log.Errorw("cycle not recorded", "run", c.ID, "err", err)
			return nil, err
		}
		r.log.Debugw("cycle recorded", "run", c.ID, "heater_on_count", c.HeaterOnCount, "max_temp_c", c.MaxTempC)
		return &c, nil
	}
	return nil, nil
}

func (r *Recorder) matches(e logic.Event) bool {
	return r.current != nil && e.Run != nil && e.Run.ID == r.current.ID
}
