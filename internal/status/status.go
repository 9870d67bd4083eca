// Package status provides a thread-safe status tracker for the oven controller.
// It is fed from the oven event stream and read by HTTP handlers and MQTT
// system events.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/oven-controller/internal/logic"
)

// NetworkInfo contains network state. This is a local copy to avoid
// importing internal/mqtt from status.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	HeartbeatMs  int64
	Broker       string
	HTTPPort     string
	Sensor       string
	SelectionLag bool
	HysteresisC  int
}

// Counts tallies oven events since startup.
type Counts struct {
	Cycles     int
	HeaterOn   int
	HeaterOff  int
	Selections int
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type and safe to use after the lock is released.
type Snapshot struct {
	Mode     logic.Mode
	Doneness logic.Doneness
	Status   logic.Status
	Heater   bool

	// TemperatureC is valid once HaveTemperature is set.
	TemperatureC    int
	HaveTemperature bool

	// Run is the cycle in progress, nil while idle.
	Run       *logic.Run
	LastEvent logic.EventType

	Counts        Counts
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Remaining returns the time left in the running cycle, or 0 while idle.
func (s Snapshot) Remaining() time.Duration {
	if s.Run == nil {
		return 0
	}
	left := s.Run.EndsAt().Sub(s.Now)
	if left < 0 {
		return 0
	}
	return left
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
	now  func() time.Time
}

// NewTracker creates a Tracker with the given start time and config.
// The cook state starts at the controller default.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	def := logic.DefaultCookState()
	return &Tracker{
		snap: Snapshot{
			Mode:      def.Mode,
			Doneness:  def.Doneness,
			Status:    def.Status,
			StartTime: startTime,
			Config:    cfg,
		},
		now: time.Now,
	}
}

// Apply folds an oven event into the tracked state.
// Called from runLoop for every event.
func (t *Tracker) Apply(e logic.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := &t.snap
	s.LastEvent = e.Type
	if e.Mode != "" {
		s.Mode = e.Mode
	}
	if e.Doneness != "" {
		s.Doneness = e.Doneness
	}
	if e.Status != "" {
		s.Status = e.Status
	}

	switch e.Type {
	case logic.EventModeSelected, logic.EventDonenessSelected:
		s.Counts.Selections++
	case logic.EventCycleStart:
		s.Run = copyRun(e.Run)
		s.Heater = false
	case logic.EventCycleEnd:
		s.Run = nil
		s.Heater = false
		s.Counts.Cycles++
	case logic.EventHeaterOn:
		s.Heater = true
		s.Counts.HeaterOn++
	case logic.EventHeaterOff:
		s.Heater = false
		s.Counts.HeaterOff++
	case logic.EventTemperature:
		s.Heater = e.Heater
		s.TemperatureC = e.TemperatureC
		s.HaveTemperature = true
	}
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	s.Run = copyRun(t.snap.Run)
	t.mu.RUnlock()
	s.Now = t.now()
	return s
}

func copyRun(r *logic.Run) *logic.Run {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}
