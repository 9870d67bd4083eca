//go:build !linux

package gpio

import (
	"errors"

	"github.com/sweeney/oven-controller/internal/logic"
)

// Board is not available on non-Linux platforms.
type Board struct{}

// NewBoard returns an error on non-Linux platforms.
func NewBoard(chipName string, pins Pins, edges Edges) (*Board, error) {
	return nil, errors.New("gpio: not supported on this platform (requires Linux)")
}

// SetHeater is not implemented on non-Linux platforms.
func (b *Board) SetHeater(on bool) error {
	return errors.New("gpio: not supported")
}

// ShowMode is not implemented on non-Linux platforms.
func (b *Board) ShowMode(m logic.Mode) error {
	return errors.New("gpio: not supported")
}

// ShowDoneness is not implemented on non-Linux platforms.
func (b *Board) ShowDoneness(d logic.Doneness) error {
	return errors.New("gpio: not supported")
}

// Buttons is not implemented on non-Linux platforms.
func (b *Board) Buttons() (ButtonLevels, error) {
	return ButtonLevels{}, errors.New("gpio: not supported")
}

// Close is not implemented on non-Linux platforms.
func (b *Board) Close() error {
	return nil
}
