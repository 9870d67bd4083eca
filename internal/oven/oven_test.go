package oven

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sweeney/oven-controller/internal/adc"
	"github.com/sweeney/oven-controller/internal/gpio"
	"github.com/sweeney/oven-controller/internal/logger"
	"github.com/sweeney/oven-controller/internal/logic"
)

// Cook durations are scaled down 100x: 200ms, 300ms, 400ms.
const durationScale = 100

func testConfig() Config {
	return Config{
		RefractoryDelay: 5 * time.Millisecond,
		SamplePeriod:    time.Millisecond,
		EventBuffer:     8192,
		CookDuration: func(d logic.Doneness) (time.Duration, error) {
			dur, err := logic.CookDuration(d)
			return dur / durationScale, err
		},
	}
}

type rig struct {
	t       *testing.T
	oven    *Oven
	sensor  *adc.Fake
	heater  *gpio.FakeHeater
	display *gpio.FakeDisplay

	cancel context.CancelFunc
	done   chan error
	once   sync.Once
	runErr error

	mu     sync.Mutex
	events []logic.Event
}

func startRig(t *testing.T, cfg Config, celsius int) *rig {
	t.Helper()
	r := &rig{
		t:       t,
		sensor:  adc.NewFakeCelsius(celsius),
		heater:  &gpio.FakeHeater{},
		display: &gpio.FakeDisplay{},
		done:    make(chan error, 1),
	}
	o, err := New(cfg, logger.Nop(), r.sensor, r.heater, r.display)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	r.oven = o

	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	go func() { r.done <- o.Run(ctx) }()
	go r.collect(ctx)
	t.Cleanup(func() { r.stop() })

	r.waitFor("selectors active", time.Second, func(s Snapshot) bool { return s.SelectorsActive })
	return r
}

func (r *rig) collect(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-r.oven.Events():
			r.mu.Lock()
			r.events = append(r.events, e)
			r.mu.Unlock()
		}
	}
}

// stop cancels the oven and waits for Run to return.
func (r *rig) stop() error {
	r.once.Do(func() {
		r.cancel()
		select {
		case r.runErr = <-r.done:
		case <-time.After(2 * time.Second):
			r.t.Error("Run did not return after cancel")
		}
	})
	return r.runErr
}

func (r *rig) snapshot() Snapshot {
	r.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s, err := r.oven.Snapshot(ctx)
	if err != nil {
		r.t.Fatalf("Snapshot: %v", err)
	}
	return s
}

func (r *rig) waitFor(what string, timeout time.Duration, cond func(Snapshot) bool) Snapshot {
	r.t.Helper()
	deadline := time.Now().Add(timeout)
	for {
		s := r.snapshot()
		if cond(s) {
			return s
		}
		if time.Now().After(deadline) {
			r.t.Fatalf("timed out waiting for %s; last snapshot %+v", what, s)
		}
		time.Sleep(time.Millisecond)
	}
}

func (r *rig) count(typ logic.EventType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Type == typ {
			n++
		}
	}
	return n
}

func (r *rig) find(typ logic.EventType) []logic.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []logic.Event
	for _, e := range r.events {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

func (r *rig) waitEvents(typ logic.EventType, n int, timeout time.Duration) {
	r.t.Helper()
	deadline := time.Now().Add(timeout)
	for r.count(typ) < n {
		if time.Now().After(deadline) {
			r.t.Fatalf("timed out waiting for %d %s events, have %d", n, typ, r.count(typ))
		}
		time.Sleep(time.Millisecond)
	}
}

func TestNewRejectsMissingResources(t *testing.T) {
	sensor := adc.NewFake(0)
	heater := &gpio.FakeHeater{}
	display := &gpio.FakeDisplay{}

	tests := []struct {
		name    string
		cfg     Config
		sensor  Sensor
		heater  Heater
		display Display
	}{
		{"nil sensor", Config{}, nil, heater, display},
		{"nil heater", Config{}, sensor, nil, display},
		{"nil display", Config{}, sensor, heater, nil},
		{"negative queue", Config{QueueCapacity: -1}, sensor, heater, display},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg, nil, tt.sensor, tt.heater, tt.display)
			if !errors.Is(err, ErrResourceCreation) {
				t.Errorf("expected ErrResourceCreation, got %v", err)
			}
		})
	}
}

func TestNewDefaults(t *testing.T) {
	o, err := New(Config{}, nil, adc.NewFake(0), &gpio.FakeHeater{}, &gpio.FakeDisplay{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if o.Running() {
		t.Error("new oven should be idle")
	}
	if o.state != logic.DefaultCookState() {
		t.Errorf("state = %+v, want default", o.state)
	}
	if cap(o.samples) != QueueCapacity {
		t.Errorf("queue capacity = %d, want %d", cap(o.samples), QueueCapacity)
	}
	if o.cfg.RefractoryDelay != RefractoryDelay || o.cfg.SamplePeriod != SamplePeriod {
		t.Errorf("timing defaults = %v/%v", o.cfg.RefractoryDelay, o.cfg.SamplePeriod)
	}
}

func TestRunTwice(t *testing.T) {
	r := startRig(t, testConfig(), 20)
	if err := r.oven.Run(context.Background()); err == nil {
		t.Error("second Run should fail")
	}
}

func TestStartupShowsDefaults(t *testing.T) {
	r := startRig(t, testConfig(), 20)

	if r.display.Mode() != logic.ModeBake || r.display.Doneness() != logic.DonenessRare {
		t.Errorf("display = %s/%s, want BAKE/RARE", r.display.Mode(), r.display.Doneness())
	}
	if r.heater.On() {
		t.Error("heater should be off at startup")
	}
	s := r.snapshot()
	if s.PipelineActive {
		t.Error("pipeline should be inactive while idle")
	}
}

func TestImmediateSelection(t *testing.T) {
	r := startRig(t, testConfig(), 20)

	want := []logic.Mode{logic.ModeBroil, logic.ModeGrill, logic.ModeBake}
	for i, m := range want {
		r.oven.ModeEdge()
		r.waitEvents(logic.EventModeSelected, i+1, time.Second)
		if got := r.snapshot().State.Mode; got != m {
			t.Fatalf("press %d: mode = %s, want %s", i+1, got, m)
		}
		if r.display.Mode() != m {
			t.Errorf("press %d: display = %s, want %s", i+1, r.display.Mode(), m)
		}
	}

	r.oven.DonenessEdge()
	r.waitEvents(logic.EventDonenessSelected, 1, time.Second)
	if got := r.snapshot().State.Doneness; got != logic.DonenessMedium {
		t.Errorf("doneness = %s, want MEDIUM", got)
	}
}

func TestSelectionLag(t *testing.T) {
	cfg := testConfig()
	cfg.SelectionLag = true
	r := startRig(t, cfg, 20)

	// Each press publishes the cursor from before the press.
	want := []logic.Doneness{
		logic.DonenessRare, logic.DonenessMedium, logic.DonenessWellDone, logic.DonenessRare,
	}
	for i, d := range want {
		r.oven.DonenessEdge()
		r.waitEvents(logic.EventDonenessSelected, i+1, time.Second)
		if got := r.snapshot().State.Doneness; got != d {
			t.Fatalf("press %d: doneness = %s, want %s", i+1, got, d)
		}
	}
}

func TestPendingNotificationCoalesces(t *testing.T) {
	cfg := testConfig()
	cfg.RefractoryDelay = 100 * time.Millisecond
	r := startRig(t, cfg, 20)

	r.oven.ModeEdge()
	r.waitEvents(logic.EventModeSelected, 1, time.Second)

	// Inside the refractory delay one press stays pending, the rest are dropped.
	for i := 0; i < 4; i++ {
		r.oven.ModeEdge()
	}
	r.waitEvents(logic.EventModeSelected, 2, time.Second)
	time.Sleep(3 * cfg.RefractoryDelay)
	if n := r.count(logic.EventModeSelected); n != 2 {
		t.Errorf("MODE_SELECTED events = %d, want 2", n)
	}
}

func TestStartWhileRunning(t *testing.T) {
	r := startRig(t, testConfig(), 20)

	r.oven.StartEdge()
	r.waitFor("running", time.Second, func(s Snapshot) bool { return s.State.Status == logic.StatusRunning })

	if !r.oven.Running() {
		t.Error("Running() should report true")
	}

	r.oven.StartEdge()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := r.oven.call(ctx, reqStart); !errors.Is(err, ErrRunning) {
		t.Errorf("direct start while running: got %v, want ErrRunning", err)
	}

	r.waitEvents(logic.EventCycleEnd, 1, 2*time.Second)
	time.Sleep(20 * time.Millisecond)

	if n := r.count(logic.EventCycleStart); n != 1 {
		t.Errorf("CYCLE_START events = %d, want 1", n)
	}
	if n := r.count(logic.EventCycleEnd); n != 1 {
		t.Errorf("CYCLE_END events = %d, want 1", n)
	}
}

func TestSelectionIgnoredWhileRunning(t *testing.T) {
	r := startRig(t, testConfig(), 20)

	r.oven.StartEdge()
	r.waitFor("running", time.Second, func(s Snapshot) bool { return s.State.Status == logic.StatusRunning })

	r.oven.ModeEdge()
	r.oven.DonenessEdge()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := r.oven.call(ctx, reqSelectMode); !errors.Is(err, ErrRunning) {
		t.Errorf("select while running: got %v, want ErrRunning", err)
	}

	s := r.snapshot()
	if s.State.Mode != logic.ModeBake || s.State.Doneness != logic.DonenessRare {
		t.Errorf("selection changed while running: %+v", s.State)
	}
	if s.SelectorsActive {
		t.Error("selectors should be inactive while running")
	}
	if r.count(logic.EventModeSelected) != 0 {
		t.Error("no MODE_SELECTED expected while running")
	}
}

func TestWellDoneCycleExpires(t *testing.T) {
	r := startRig(t, testConfig(), 20)

	r.oven.DonenessEdge()
	r.waitEvents(logic.EventDonenessSelected, 1, time.Second)
	r.oven.DonenessEdge()
	r.waitEvents(logic.EventDonenessSelected, 2, time.Second)
	if d := r.snapshot().State.Doneness; d != logic.DonenessWellDone {
		t.Fatalf("doneness = %s, want WELL_DONE", d)
	}

	r.oven.StartEdge()
	r.waitEvents(logic.EventCycleEnd, 1, 2*time.Second)

	start := r.find(logic.EventCycleStart)
	end := r.find(logic.EventCycleEnd)
	if len(start) != 1 || len(end) != 1 {
		t.Fatalf("start/end events = %d/%d", len(start), len(end))
	}
	want := 40 * time.Second / durationScale
	if start[0].Run.Duration != want {
		t.Errorf("run duration = %v, want %v", start[0].Run.Duration, want)
	}
	if elapsed := end[0].Timestamp.Sub(start[0].Run.StartedAt); elapsed < want {
		t.Errorf("cycle ended after %v, before %v", elapsed, want)
	}
	if end[0].Run == nil || end[0].Run.ID != start[0].Run.ID {
		t.Error("CYCLE_END should carry the finished run")
	}

	s := r.waitFor("idle", time.Second, func(s Snapshot) bool {
		return s.State.Status == logic.StatusIdle && s.SelectorsActive
	})
	if s.PipelineActive {
		t.Error("pipeline should be inactive after expiry")
	}
	if s.Cycles != 1 {
		t.Errorf("cycles = %d, want 1", s.Cycles)
	}
	if s.Run != nil {
		t.Error("no run expected after expiry")
	}

	// Selectors respond again.
	r.oven.ModeEdge()
	r.waitEvents(logic.EventModeSelected, 1, time.Second)
}

func TestBakeRareAboveTarget(t *testing.T) {
	r := startRig(t, testConfig(), 150)

	r.oven.StartEdge()
	r.waitEvents(logic.EventTemperature, 3, time.Second)
	r.waitEvents(logic.EventCycleEnd, 1, 2*time.Second)

	if r.heater.EverOn() {
		t.Error("heater must never switch on above target")
	}
	for _, e := range r.find(logic.EventTemperature) {
		if e.TemperatureC != 150 {
			t.Errorf("temperature = %d, want 150", e.TemperatureC)
		}
		if e.Run.TargetC != 145 {
			t.Errorf("target = %d, want 145", e.Run.TargetC)
		}
	}
	if n := r.count(logic.EventHeaterOn); n != 0 {
		t.Errorf("HEATER_ON events = %d, want 0", n)
	}

	r.waitFor("idle", time.Second, func(s Snapshot) bool { return s.State.Status == logic.StatusIdle })
	if r.heater.On() {
		t.Error("heater should be off after the cycle")
	}
}

func TestHeaterFollowsTemperature(t *testing.T) {
	r := startRig(t, testConfig(), 100)

	// GRILL targets 265; WELL_DONE gives the longest cycle.
	for i := 0; i < 2; i++ {
		r.oven.ModeEdge()
		r.waitEvents(logic.EventModeSelected, i+1, time.Second)
		r.oven.DonenessEdge()
		r.waitEvents(logic.EventDonenessSelected, i+1, time.Second)
	}

	r.oven.StartEdge()
	r.waitEvents(logic.EventHeaterOn, 1, time.Second)
	if !r.heater.On() {
		t.Error("heater should be on below target")
	}

	r.sensor.SetCelsius(280)
	r.waitEvents(logic.EventHeaterOff, 1, time.Second)

	r.waitEvents(logic.EventCycleEnd, 1, 2*time.Second)
	r.waitFor("idle", time.Second, func(s Snapshot) bool { return s.State.Status == logic.StatusIdle })
	if r.heater.On() {
		t.Error("heater should be off after the cycle")
	}
	end := r.find(logic.EventCycleEnd)[0]
	if end.Run.Mode != logic.ModeGrill || end.Run.TargetC != 265 {
		t.Errorf("run = %+v", end.Run)
	}
}

func TestHeaterOffAtExpiryWhileHeating(t *testing.T) {
	r := startRig(t, testConfig(), 20)

	r.oven.StartEdge()
	r.waitEvents(logic.EventHeaterOn, 1, time.Second)
	r.waitEvents(logic.EventCycleEnd, 1, 2*time.Second)

	// Give a stale regulator every chance to write after expiry.
	time.Sleep(20 * time.Millisecond)
	if r.heater.On() {
		t.Error("heater should stay off after the cycle")
	}
	s := r.snapshot()
	if s.Heater {
		t.Error("snapshot should report heater off")
	}
}

func TestShutdownSwitchesHeaterOff(t *testing.T) {
	r := startRig(t, testConfig(), 20)

	r.oven.StartEdge()
	r.waitEvents(logic.EventHeaterOn, 1, time.Second)

	if err := r.stop(); err != nil {
		t.Fatalf("Run returned %v", err)
	}
	if r.heater.On() {
		t.Error("heater should be off after shutdown")
	}
}

func TestSensorErrorSkipsCycle(t *testing.T) {
	cfg := testConfig()
	cfg.CookDuration = func(logic.Doneness) (time.Duration, error) { return time.Second, nil }
	r := startRig(t, cfg, 20)
	r.sensor.SetErr(errors.New("no reply"))

	r.oven.StartEdge()
	r.waitFor("running", time.Second, func(s Snapshot) bool { return s.State.Status == logic.StatusRunning })
	time.Sleep(20 * time.Millisecond)
	if n := r.count(logic.EventTemperature); n != 0 {
		t.Errorf("TEMPERATURE events = %d while sensor fails", n)
	}
	if r.heater.EverOn() {
		t.Error("heater must not switch on without a reading")
	}

	r.sensor.SetErr(nil)
	r.waitEvents(logic.EventTemperature, 1, time.Second)
}

func TestUnknownDonenessStaysIdle(t *testing.T) {
	cfg := testConfig()
	cfg.CookDuration = func(logic.Doneness) (time.Duration, error) {
		return 0, logic.ErrUnknownDoneness
	}
	r := startRig(t, cfg, 20)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s, err := r.oven.call(ctx, reqStart)
	if !errors.Is(err, logic.ErrUnknownDoneness) {
		t.Fatalf("got %v, want ErrUnknownDoneness", err)
	}
	if s.State.Status != logic.StatusIdle || !s.SelectorsActive || s.PipelineActive {
		t.Errorf("snapshot after failed start = %+v", s)
	}
	if r.count(logic.EventCycleStart) != 0 {
		t.Error("no CYCLE_START expected")
	}
}

func TestSamplerBackpressure(t *testing.T) {
	sensor := adc.NewFake(1000)
	cfg := testConfig()
	o, err := New(cfg, nil, sensor, &gpio.FakeHeater{}, &gpio.FakeDisplay{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- o.sampleLoop(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	// 20 queued averages plus one computed and blocked on the full queue.
	want := (QueueCapacity + 1) * logic.SamplesPerAverage
	deadline := time.Now().Add(2 * time.Second)
	for sensor.Reads() < want {
		if time.Now().After(deadline) {
			t.Fatalf("reads = %d, want %d", sensor.Reads(), want)
		}
		time.Sleep(time.Millisecond)
	}
	time.Sleep(50 * time.Millisecond)

	if n := sensor.Reads(); n != want {
		t.Errorf("sampler kept reading with a full queue: %d reads, want %d", n, want)
	}
	if n := len(o.samples); n != QueueCapacity {
		t.Errorf("queue length = %d, want %d", n, QueueCapacity)
	}

	// Draining one slot lets exactly one more average through.
	<-o.samples
	deadline = time.Now().Add(time.Second)
	for sensor.Reads() < want+logic.SamplesPerAverage {
		if time.Now().After(deadline) {
			t.Fatalf("sampler did not resume: %d reads", sensor.Reads())
		}
		time.Sleep(time.Millisecond)
	}
}

func TestHeaterGate(t *testing.T) {
	h := &gpio.FakeHeater{}
	g := &heaterGate{out: h}

	if _, allowed, _ := g.set("a", true); allowed {
		t.Error("closed gate should reject writes")
	}

	g.open("a")
	changed, allowed, err := g.set("a", true)
	if err != nil || !allowed || !changed {
		t.Fatalf("set = %v/%v/%v", changed, allowed, err)
	}
	if _, allowed, _ := g.set("b", false); allowed {
		t.Error("gate should reject another run")
	}
	changed, _, _ = g.set("a", true)
	if changed {
		t.Error("repeated level should not report a change")
	}

	if err := g.shut(); err != nil {
		t.Fatalf("shut: %v", err)
	}
	if h.On() || g.level() {
		t.Error("heater should be off after shut")
	}
	if _, allowed, _ := g.set("a", true); allowed {
		t.Error("shut gate should reject the old run")
	}
}

func TestConsecutiveCycles(t *testing.T) {
	r := startRig(t, testConfig(), 20)
	timer := r.oven.timer
	const runs = 3

	for i := 0; i < runs; i++ {
		r.oven.StartEdge()
		r.waitEvents(logic.EventCycleEnd, i+1, 2*time.Second)
		r.waitFor("idle", time.Second, func(s Snapshot) bool {
			return s.State.Status == logic.StatusIdle && s.SelectorsActive && !s.PipelineActive
		})
	}

	start := r.find(logic.EventCycleStart)
	end := r.find(logic.EventCycleEnd)
	if len(start) != runs || len(end) != runs {
		t.Fatalf("start/end events = %d/%d, want %d/%d", len(start), len(end), runs, runs)
	}
	seen := map[string]bool{}
	for i := 0; i < runs; i++ {
		id := start[i].Run.ID
		if seen[id] {
			t.Errorf("run %d reuses id %s", i, id)
		}
		seen[id] = true
		if end[i].Run == nil || end[i].Run.ID != id {
			t.Errorf("run %d: CYCLE_END does not match CYCLE_START %s", i, id)
			continue
		}
		if elapsed := end[i].Timestamp.Sub(start[i].Run.StartedAt); elapsed < start[i].Run.Duration {
			t.Errorf("run %d ended after %v, before %v", i, elapsed, start[i].Run.Duration)
		}
	}

	// Each cycle switches the heater on at 20°C, under its own run.
	on := r.find(logic.EventHeaterOn)
	if len(on) != runs {
		t.Fatalf("HEATER_ON events = %d, want %d", len(on), runs)
	}
	for i, e := range on {
		if e.Run == nil || e.Run.ID != start[i].Run.ID {
			t.Errorf("HEATER_ON %d belongs to the wrong run", i)
		}
	}

	// No reading leaks from one cycle into the next.
	r.mu.Lock()
	current := ""
	for _, e := range r.events {
		switch e.Type {
		case logic.EventCycleStart:
			current = e.Run.ID
		case logic.EventTemperature:
			if e.Run == nil || e.Run.ID != current {
				t.Errorf("reading from run %v emitted during run %s", e.Run, current)
			}
		}
	}
	r.mu.Unlock()

	s := r.snapshot()
	if s.Cycles != runs {
		t.Errorf("cycles = %d, want %d", s.Cycles, runs)
	}
	if s.Heater || r.heater.On() {
		t.Error("heater should be off after the last cycle")
	}
	if !s.SelectorsActive {
		t.Error("selectors should be active after the last cycle")
	}
	if r.oven.timer != timer {
		t.Error("cycle timer should be re-armed, not replaced")
	}
}
