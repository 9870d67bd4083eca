package logic

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrUnknownMode is returned when a mode has no target temperature.
	ErrUnknownMode = errors.New("unknown mode")
	// ErrUnknownDoneness is returned when a doneness has no cook duration.
	ErrUnknownDoneness = errors.New("unknown doneness")
)

var targetTemperatures = map[Mode]int{
	ModeBake:  145,
	ModeBroil: 275,
	ModeGrill: 265,
}

var cookDurations = map[Doneness]time.Duration{
	DonenessRare:     20000 * time.Millisecond,
	DonenessMedium:   30000 * time.Millisecond,
	DonenessWellDone: 40000 * time.Millisecond,
}

// TargetTemperature returns the target in whole degrees Celsius for mode.
func TargetTemperature(m Mode) (int, error) {
	c, ok := targetTemperatures[m]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownMode, m)
	}
	return c, nil
}

// CookDuration returns how long a cycle runs for doneness.
func CookDuration(d Doneness) (time.Duration, error) {
	dur, ok := cookDurations[d]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownDoneness, d)
	}
	return dur, nil
}
