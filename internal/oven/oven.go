// Package oven runs the cook-cycle controller.
//
// A single actor goroutine (Run) owns the cook state. Button call-ins feed
// depth-1 notification channels consumed by selector and start workers,
// which ask the actor to act. While a cycle runs, a sampler and a regulator
// drive the heater through a bounded sample queue; the cycle timer ends the
// run from inside the actor loop.
package oven

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sweeney/oven-controller/internal/logger"
	"github.com/sweeney/oven-controller/internal/logic"
)

// Fixed timing and sizing of the controller.
const (
	RefractoryDelay = time.Second
	SamplePeriod    = 100 * time.Millisecond
	QueueCapacity   = 20
	// EventBuffer is how many events may wait for the consumer before
	// readings are discarded.
	EventBuffer     = 64
)

var (
	// ErrResourceCreation is returned when the controller cannot be built.
	ErrResourceCreation = errors.New("resource creation failed")
	// ErrRunning is returned for selections and starts while a cycle runs.
	ErrRunning = errors.New("cook cycle running")
)

// Sensor returns raw ADC readings in [0, logic.ADCMax].
type Sensor interface {
	ReadRaw() (int, error)
}

// Heater drives the heating element.
type Heater interface {
	SetHeater(on bool) error
}

// Display shows the current selections.
type Display interface {
	ShowMode(m logic.Mode) error
	ShowDoneness(d logic.Doneness) error
}

// Config tunes the controller. Zero values select the fixed defaults.
type Config struct {
	// SelectionLag publishes the selector cursor from before each press.
	SelectionLag bool
	// HysteresisC is the optional regulator band in degrees.
	HysteresisC int

	RefractoryDelay   time.Duration
	SamplePeriod      time.Duration
	SamplesPerAverage int
	QueueCapacity     int
	EventBuffer       int

	// CookDuration maps doneness to cycle length. Defaults to logic.CookDuration.
	CookDuration func(logic.Doneness) (time.Duration, error)
	// NewRunID names a cycle. Defaults to a random UUID.
	NewRunID func() string
	Now      func() time.Time
}

func (c *Config) applyDefaults() {
	if c.RefractoryDelay == 0 {
		c.RefractoryDelay = RefractoryDelay
	}
	if c.SamplePeriod == 0 {
		c.SamplePeriod = SamplePeriod
	}
	if c.SamplesPerAverage == 0 {
		c.SamplesPerAverage = logic.SamplesPerAverage
	}
	if c.QueueCapacity == 0 {
		c.QueueCapacity = QueueCapacity
	}
	if c.EventBuffer == 0 {
		c.EventBuffer = EventBuffer
	}
	if c.CookDuration == nil {
		c.CookDuration = logic.CookDuration
	}
	if c.NewRunID == nil {
		c.NewRunID = newRunID
	}
	if c.Now == nil {
		c.Now = time.Now
	}
}

// Snapshot is a point-in-time view of the controller, taken by the actor.
type Snapshot struct {
	State  logic.CookState
	Run    *logic.Run
	Heater bool
	// Cycles counts completed cook cycles.
	Cycles          int
	SelectorsActive bool
	PipelineActive  bool
}

// Oven is the cook-cycle controller.
type Oven struct {
	cfg     Config
	log     *logger.Logger
	sensor  Sensor
	heater  *heaterGate
	display Display

	modeSig     chan struct{}
	donenessSig chan struct{}
	startSig    chan struct{}
	samples     chan int
	requests    chan request
	events      chan logic.Event
	queue       *eventQueue

	// running mirrors state.Status for the lock-free call-in guard.
	running atomic.Bool
	started atomic.Bool

	// Owned by the actor goroutine.
	state       logic.CookState
	modeSel     *logic.Selector[logic.Mode]
	donenessSel *logic.Selector[logic.Doneness]
	timer       *time.Timer
	run         *logic.Run
	cycles      int
	selectors   *workerGroup
	pipeline    *workerGroup
}

// New creates a controller in the default cook state. Nothing runs until Run.
func New(cfg Config, log *logger.Logger, sensor Sensor, heater Heater, display Display) (*Oven, error) {
	cfg.applyDefaults()

	switch {
	case sensor == nil:
		return nil, fmt.Errorf("%w: nil sensor", ErrResourceCreation)
	case heater == nil:
		return nil, fmt.Errorf("%w: nil heater", ErrResourceCreation)
	case display == nil:
		return nil, fmt.Errorf("%w: nil display", ErrResourceCreation)
	case cfg.QueueCapacity < 0 || cfg.EventBuffer < 0 || cfg.SamplesPerAverage < 0:
		return nil, fmt.Errorf("%w: negative capacity", ErrResourceCreation)
	}
	if log == nil {
		log = logger.Nop()
	}

	timer := time.NewTimer(time.Hour)
	timer.Stop()

	return &Oven{
		cfg:         cfg,
		log:         log,
		sensor:      sensor,
		heater:      &heaterGate{out: heater},
		display:     display,
		modeSig:     make(chan struct{}, 1),
		donenessSig: make(chan struct{}, 1),
		startSig:    make(chan struct{}, 1),
		samples:     make(chan int, cfg.QueueCapacity),
		requests:    make(chan request),
		events:      make(chan logic.Event),
		queue:       newEventQueue(cfg.EventBuffer),
		state:       logic.DefaultCookState(),
		modeSel:     logic.NewSelector(logic.Modes, cfg.SelectionLag),
		donenessSel: logic.NewSelector(logic.Donenesses, cfg.SelectionLag),
		timer:       timer,
	}, nil
}

// ModeEdge is called on a mode button edge.
func (o *Oven) ModeEdge() { o.notify(o.modeSig) }

// DonenessEdge is called on a doneness button edge.
func (o *Oven) DonenessEdge() { o.notify(o.donenessSig) }

// StartEdge is called on a start button edge.
func (o *Oven) StartEdge() { o.notify(o.startSig) }

// notify delivers at most one pending notification while idle. Never blocks.
func (o *Oven) notify(sig chan struct{}) {
	if o.running.Load() {
		return
	}
	select {
	case sig <- struct{}{}:
	default:
	}
}

// Running reports whether a cook cycle is in progress.
func (o *Oven) Running() bool {
	return o.running.Load()
}

// Events returns the controller's event stream.
func (o *Oven) Events() <-chan logic.Event {
	return o.events
}

// Snapshot asks the actor for its current state.
func (o *Oven) Snapshot(ctx context.Context) (Snapshot, error) {
	return o.call(ctx, reqSnapshot)
}

// Run is the actor loop. It blocks until ctx is cancelled, then stops all
// workers and switches the heater off. It must be called once.
func (o *Oven) Run(ctx context.Context) error {
	if !o.started.CompareAndSwap(false, true) {
		return errors.New("oven: already running")
	}

	if err := o.heater.shut(); err != nil {
		o.log.Warnw("heater off failed", "err", err)
	}
	o.showMode()
	o.showDoneness()

	control := startGroup(ctx, o.startLoop, o.forwardEvents)
	o.activateSelectors(ctx)

	o.log.Infow("oven ready", "mode", o.state.Mode, "doneness", o.state.Doneness)

	for {
		select {
		case <-ctx.Done():
			o.timer.Stop()
			if err := o.heater.shut(); err != nil {
				o.log.Warnw("heater off failed", "err", err)
			}
			o.selectors.stop()
			o.pipeline.stop()
			control.stop()
			o.selectors.wait()
			o.pipeline.wait()
			control.wait()
			o.log.Infow("oven stopped")
			return nil

		case req := <-o.requests:
			o.handle(ctx, req)

		case <-o.timer.C:
			o.expire(ctx)
		}
	}
}

// emit queues e for the Events consumer and never blocks.
func (o *Oven) emit(e logic.Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = o.cfg.Now()
	}
	if o.queue.push(e) {
		_, dropped := o.queue.stats()
		o.log.Warnw("event consumer behind, discarding readings", "limit", o.cfg.EventBuffer, "dropped_total", dropped)
	}
}

// sleep waits for d or until ctx is done. Returns false if ctx ended.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
