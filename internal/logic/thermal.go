package logic

import (
	"errors"
	"fmt"
)

// LM35 on a 12-bit ADC with a 3.3 V reference.
const (
	ADCMax               = 4095
	VRefMillivolts       = 3300
	SensorMillivoltsPerC = 10

	// SamplesPerAverage is how many raw readings make one averaged sample.
	SamplesPerAverage = 40
)

// ErrSampleOutOfRange is returned for raw readings outside [0, ADCMax].
var ErrSampleOutOfRange = errors.New("sample out of range")

// CheckRaw validates a raw ADC reading.
func CheckRaw(raw int) error {
	if raw < 0 || raw > ADCMax {
		return fmt.Errorf("%w: %d", ErrSampleOutOfRange, raw)
	}
	return nil
}

// Average returns the truncated arithmetic mean of readings, or 0 for none.
func Average(readings []int) int {
	if len(readings) == 0 {
		return 0
	}
	sum := 0
	for _, r := range readings {
		sum += r
	}
	return sum / len(readings)
}

// Celsius converts a raw reading to whole degrees, truncating:
// raw * 3.3 / 4095 / 0.010, evaluated in integer millivolts.
func Celsius(raw int) int {
	return raw * VRefMillivolts / (ADCMax * SensorMillivoltsPerC)
}

// RawForCelsius returns the smallest raw reading that converts to c.
func RawForCelsius(c int) int {
	const den = VRefMillivolts
	return (c*ADCMax*SensorMillivoltsPerC + den - 1) / den
}

// Regulator is the two-level heater control law.
//
// The heater is off whenever the temperature is strictly above target.
// With HysteresisC == 0 it is on otherwise. With a positive band it only
// switches back on once the temperature falls below target-HysteresisC.
type Regulator struct {
	HysteresisC int
}

// Decide returns the heater level for celsius given the current level.
func (r Regulator) Decide(celsius, target int, heaterOn bool) bool {
	if celsius > target {
		return false
	}
	if r.HysteresisC <= 0 || celsius < target-r.HysteresisC {
		return true
	}
	return heaterOn
}
