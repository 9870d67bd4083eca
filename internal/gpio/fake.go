package gpio

import (
	"sync"

	"github.com/sweeney/oven-controller/internal/logic"
)

// FakeHeater is a test double recording heater writes. Safe for concurrent use.
type FakeHeater struct {
	mu     sync.Mutex
	on     bool
	writes []bool
	everOn bool

	// Err, if set, is returned by SetHeater and the level is left unchanged.
	Err error
}

// SetHeater records the requested level.
func (f *FakeHeater) SetHeater(on bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	f.on = on
	f.everOn = f.everOn || on
	f.writes = append(f.writes, on)
	return nil
}

// On returns the current heater level.
func (f *FakeHeater) On() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.on
}

// EverOn reports whether the heater was ever switched on.
func (f *FakeHeater) EverOn() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.everOn
}

// Writes returns a copy of every level written, in order.
func (f *FakeHeater) Writes() []bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]bool, len(f.writes))
	copy(out, f.writes)
	return out
}

// FakeDisplay is a test double holding the LED state. Safe for concurrent use.
type FakeDisplay struct {
	mu       sync.Mutex
	mode     logic.Mode
	doneness logic.Doneness
	modeLEDs []int
	donLEDs  []int
	updates  int
}

// ShowMode records the mode and the LED levels the board would drive.
func (f *FakeDisplay) ShowMode(m logic.Mode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mode = m
	f.modeLEDs = modeLevels(m)
	f.updates++
	return nil
}

// ShowDoneness records the doneness and its LED levels.
func (f *FakeDisplay) ShowDoneness(d logic.Doneness) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.doneness = d
	f.donLEDs = donenessLevels(d)
	f.updates++
	return nil
}

// Mode returns the last mode shown.
func (f *FakeDisplay) Mode() logic.Mode {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mode
}

// Doneness returns the last doneness shown.
func (f *FakeDisplay) Doneness() logic.Doneness {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.doneness
}

// LEDs returns the mode and doneness LED levels.
func (f *FakeDisplay) LEDs() (mode, doneness []int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.modeLEDs...), append([]int(nil), f.donLEDs...)
}

// Updates counts display writes.
func (f *FakeDisplay) Updates() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.updates
}
