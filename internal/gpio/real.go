//go:build linux

package gpio

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"

	"github.com/sweeney/oven-controller/internal/logic"
)

// Board drives the oven's lines through the Linux GPIO character device.
// Buttons are inputs with pull-up, active on the falling edge.
type Board struct {
	chip     *gpiocdev.Chip
	buttons  *gpiocdev.Lines
	heater   *gpiocdev.Line
	modeLEDs *gpiocdev.Lines
	donLEDs  *gpiocdev.Lines
}

// NewBoard requests all lines on chip. Button edges are forwarded to edges
// from the gpiocdev event goroutine.
func NewBoard(chipName string, pins Pins, edges Edges) (*Board, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}
	b := &Board{chip: chip}

	handler := func(evt gpiocdev.LineEvent) {
		if evt.Type != gpiocdev.LineEventFallingEdge {
			return
		}
		switch evt.Offset {
		case pins.Mode:
			edges.ModeEdge()
		case pins.Doneness:
			edges.DonenessEdge()
		case pins.Start:
			edges.StartEdge()
		}
	}

	b.buttons, err = chip.RequestLines([]int{pins.Mode, pins.Doneness, pins.Start},
		gpiocdev.AsInput,
		gpiocdev.WithPullUp,
		gpiocdev.WithFallingEdge,
		gpiocdev.WithEventHandler(handler))
	if err != nil {
		b.Close()
		return nil, fmt.Errorf("request button pins %d,%d,%d: %w", pins.Mode, pins.Doneness, pins.Start, err)
	}

	heaterOpts := []gpiocdev.LineReqOption{gpiocdev.AsOutput(0)}
	if pins.HeaterActiveLow {
		heaterOpts = append(heaterOpts, gpiocdev.AsActiveLow)
	}
	b.heater, err = chip.RequestLine(pins.Heater, heaterOpts...)
	if err != nil {
		b.Close()
		return nil, fmt.Errorf("request heater pin %d: %w", pins.Heater, err)
	}

	b.modeLEDs, err = chip.RequestLines([]int{pins.LEDBake, pins.LEDBroil, pins.LEDGrill}, gpiocdev.AsOutput(0, 0, 0))
	if err != nil {
		b.Close()
		return nil, fmt.Errorf("request mode LED pins: %w", err)
	}

	b.donLEDs, err = chip.RequestLines([]int{pins.LEDRare, pins.LEDMedium, pins.LEDWellDone}, gpiocdev.AsOutput(0, 0, 0))
	if err != nil {
		b.Close()
		return nil, fmt.Errorf("request doneness LED pins: %w", err)
	}

	return b, nil
}

// SetHeater drives the heater relay.
func (b *Board) SetHeater(on bool) error {
	v := 0
	if on {
		v = 1
	}
	if err := b.heater.SetValue(v); err != nil {
		return fmt.Errorf("set heater: %w", err)
	}
	return nil
}

// ShowMode lights the LED of the selected mode.
func (b *Board) ShowMode(m logic.Mode) error {
	if err := b.modeLEDs.SetValues(modeLevels(m)); err != nil {
		return fmt.Errorf("set mode LEDs: %w", err)
	}
	return nil
}

// ShowDoneness lights the LED of the selected doneness.
func (b *Board) ShowDoneness(d logic.Doneness) error {
	if err := b.donLEDs.SetValues(donenessLevels(d)); err != nil {
		return fmt.Errorf("set doneness LEDs: %w", err)
	}
	return nil
}

// Buttons reads the current button levels. A pressed button pulls low.
func (b *Board) Buttons() (ButtonLevels, error) {
	vals := make([]int, 3)
	if err := b.buttons.Values(vals); err != nil {
		return ButtonLevels{}, fmt.Errorf("read buttons: %w", err)
	}
	return ButtonLevels{Mode: vals[0] == 0, Doneness: vals[1] == 0, Start: vals[2] == 0}, nil
}

// Close switches the heater and LEDs off, then releases all lines.
// Lines are reconfigured as inputs so the relay is not left driven.
func (b *Board) Close() error {
	var errs []error

	if b.heater != nil {
		if err := b.heater.SetValue(0); err != nil {
			errs = append(errs, fmt.Errorf("heater off: %w", err))
		}
		if err := b.heater.Reconfigure(gpiocdev.AsInput); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure heater pin: %w", err))
		}
		if err := b.heater.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close heater pin: %w", err))
		}
	}
	for name, lines := range map[string]*gpiocdev.Lines{
		"buttons":       b.buttons,
		"mode LEDs":     b.modeLEDs,
		"doneness LEDs": b.donLEDs,
	} {
		if lines == nil {
			continue
		}
		if err := lines.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", name, err))
		}
	}
	if b.chip != nil {
		if err := b.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
