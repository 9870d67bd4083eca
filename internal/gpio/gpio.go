// Package gpio connects the oven to its buttons, LEDs and heater relay.
// The real implementation uses the Linux GPIO character device.
// The fake implementations allow testing without hardware.
package gpio

import "github.com/sweeney/oven-controller/internal/logic"

// Edges receives button notifications. Implemented by *oven.Oven.
type Edges interface {
	ModeEdge()
	DonenessEdge()
	StartEdge()
}

// Pins holds line offsets (BCM numbering) on the GPIO chip.
type Pins struct {
	Mode     int
	Doneness int
	Start    int

	Heater          int
	HeaterActiveLow bool

	LEDBake     int
	LEDBroil    int
	LEDGrill    int
	LEDRare     int
	LEDMedium   int
	LEDWellDone int
}

// Default pin assignment.
const (
	DefaultChip = "gpiochip0"

	DefaultPinMode     = 17
	DefaultPinDoneness = 27
	DefaultPinStart    = 22
	DefaultPinHeater   = 23

	DefaultPinLEDBake     = 5
	DefaultPinLEDBroil    = 6
	DefaultPinLEDGrill    = 13
	DefaultPinLEDRare     = 19
	DefaultPinLEDMedium   = 26
	DefaultPinLEDWellDone = 21
)

// DefaultPins returns the default pin assignment.
func DefaultPins() Pins {
	return Pins{
		Mode:        DefaultPinMode,
		Doneness:    DefaultPinDoneness,
		Start:       DefaultPinStart,
		Heater:      DefaultPinHeater,
		LEDBake:     DefaultPinLEDBake,
		LEDBroil:    DefaultPinLEDBroil,
		LEDGrill:    DefaultPinLEDGrill,
		LEDRare:     DefaultPinLEDRare,
		LEDMedium:   DefaultPinLEDMedium,
		LEDWellDone: DefaultPinLEDWellDone,
	}
}

// ButtonLevels is a raw read of the three buttons (true = pressed).
type ButtonLevels struct {
	Mode     bool
	Doneness bool
	Start    bool
}

// modeLevels returns the LED values for BAKE, BROIL, GRILL.
// An unknown mode lights nothing.
func modeLevels(m logic.Mode) []int {
	return oneHot(len(logic.Modes), indexOf(logic.Modes, m))
}

// donenessLevels returns the LED values for RARE, MEDIUM, WELL_DONE.
func donenessLevels(d logic.Doneness) []int {
	return oneHot(len(logic.Donenesses), indexOf(logic.Donenesses, d))
}

func indexOf[T comparable](list []T, v T) int {
	for i, x := range list {
		if x == v {
			return i
		}
	}
	return -1
}

func oneHot(n, lit int) []int {
	vals := make([]int, n)
	if lit >= 0 && lit < n {
		vals[lit] = 1
	}
	return vals
}
