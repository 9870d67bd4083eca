package adc

import (
	"sync"

	"github.com/sweeney/oven-controller/internal/logic"
)

// Fake is a sensor returning a settable raw value. Safe for concurrent use.
type Fake struct {
	mu    sync.Mutex
	raw   int
	reads int
	err   error
}

// NewFake returns a sensor that reads raw.
func NewFake(raw int) *Fake {
	return &Fake{raw: raw}
}

// NewFakeCelsius returns a sensor that reads as celsius.
func NewFakeCelsius(celsius int) *Fake {
	return NewFake(logic.RawForCelsius(celsius))
}

// ReadRaw returns the configured value or error.
func (f *Fake) ReadRaw() (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	if f.err != nil {
		return 0, f.err
	}
	return f.raw, nil
}

// SetRaw changes the value returned by subsequent reads.
func (f *Fake) SetRaw(raw int) {
	f.mu.Lock()
	f.raw = raw
	f.mu.Unlock()
}

// SetCelsius changes the reading to the raw value for celsius.
func (f *Fake) SetCelsius(celsius int) {
	f.SetRaw(logic.RawForCelsius(celsius))
}

// SetErr makes subsequent reads fail with err. Nil clears it.
func (f *Fake) SetErr(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

// Reads counts calls to ReadRaw.
func (f *Fake) Reads() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads
}
