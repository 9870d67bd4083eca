// Package logic contains the pure rules of the oven controller.
// This package has NO external dependencies (no GPIO, MQTT, OS, or goroutines).
// Time is always injectable via time.Time parameters.
package logic

import "time"

// Mode is the operator-selected heating profile.
type Mode string

const (
	ModeBake  Mode = "BAKE"
	ModeBroil Mode = "BROIL"
	ModeGrill Mode = "GRILL"
)

// Modes lists the modes in selection order.
var Modes = []Mode{ModeBake, ModeBroil, ModeGrill}

// Doneness is the operator-selected cook-duration profile.
type Doneness string

const (
	DonenessRare     Doneness = "RARE"
	DonenessMedium   Doneness = "MEDIUM"
	DonenessWellDone Doneness = "WELL_DONE"
)

// Donenesses lists the doneness levels in selection order.
var Donenesses = []Doneness{DonenessRare, DonenessMedium, DonenessWellDone}

// Status is the lifecycle status of the oven.
type Status string

const (
	StatusIdle    Status = "IDLE"
	StatusRunning Status = "RUNNING"
)

// CookState is the shared cook record.
type CookState struct {
	Mode     Mode
	Doneness Doneness
	Status   Status
}

// DefaultCookState returns the state the oven powers up in.
func DefaultCookState() CookState {
	return CookState{
		Mode:     ModeBake,
		Doneness: DonenessRare,
		Status:   StatusIdle,
	}
}

// Run describes one cook cycle. Mode and Doneness are fixed for its lifetime.
type Run struct {
	ID        string
	Mode      Mode
	Doneness  Doneness
	TargetC   int
	Duration  time.Duration
	StartedAt time.Time
}

// EndsAt returns when the cycle timer expires.
func (r Run) EndsAt() time.Time {
	return r.StartedAt.Add(r.Duration)
}

// EventType identifies something the oven did.
type EventType string

const (
	EventModeSelected     EventType = "MODE_SELECTED"
	EventDonenessSelected EventType = "DONENESS_SELECTED"
	EventCycleStart       EventType = "CYCLE_START"
	EventCycleEnd         EventType = "CYCLE_END"
	EventHeaterOn         EventType = "HEATER_ON"
	EventHeaterOff        EventType = "HEATER_OFF"
	EventTemperature      EventType = "TEMPERATURE"
)

// Event is emitted by the controller for publishing and status tracking.
type Event struct {
	Timestamp time.Time
	Type      EventType
	Mode      Mode
	Doneness  Doneness
	Status    Status
	Heater    bool
	// TemperatureC is only meaningful for TEMPERATURE and HEATER_* events.
	TemperatureC int
	// Run is set for events that happen inside a cook cycle.
	Run *Run
}
