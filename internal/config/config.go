// Package config loads the oven controller's YAML configuration.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sweeney/oven-controller/internal/gpio"
	"github.com/sweeney/oven-controller/internal/logger"
	"github.com/sweeney/oven-controller/internal/logic"
)

// Sensor kinds.
const (
	SensorSerial = "serial"
	SensorFake   = "fake"
)

// Config is the complete controller configuration.
type Config struct {
	GPIO    GPIOConfig    `yaml:"gpio"`
	Sensor  SensorConfig  `yaml:"sensor"`
	Control ControlConfig `yaml:"control"`
	MQTT    MQTTConfig    `yaml:"mqtt"`
	HTTP    HTTPConfig    `yaml:"http"`
	History HistoryConfig `yaml:"history"`
	Logging LoggingConfig `yaml:"logging"`
}

// GPIOConfig holds BCM line offsets on the GPIO chip.
type GPIOConfig struct {
	Chip            string    `yaml:"chip"`
	Mode            int       `yaml:"mode_button"`
	Doneness        int       `yaml:"doneness_button"`
	Start           int       `yaml:"start_button"`
	Heater          int       `yaml:"heater"`
	HeaterActiveLow bool      `yaml:"heater_active_low"`
	LEDs            LEDConfig `yaml:"leds"`
}

// LEDConfig holds the six indicator LED lines.
type LEDConfig struct {
	Bake     int `yaml:"bake"`
	Broil    int `yaml:"broil"`
	Grill    int `yaml:"grill"`
	Rare     int `yaml:"rare"`
	Medium   int `yaml:"medium"`
	WellDone int `yaml:"well_done"`
}

// SensorConfig selects the temperature source.
type SensorConfig struct {
	Kind     string        `yaml:"kind"`
	Port     string        `yaml:"port"`
	BaudRate int           `yaml:"baud_rate"`
	Timeout  time.Duration `yaml:"timeout"`
	// FakeCelsius is the constant reading of the fake sensor.
	FakeCelsius int `yaml:"fake_celsius"`
}

// ControlConfig tunes the controller within its fixed rules.
type ControlConfig struct {
	SelectionLag bool `yaml:"selection_lag"`
	HysteresisC  int  `yaml:"hysteresis_c"`
}

// MQTTConfig configures the broker connection. An empty broker disables MQTT.
type MQTTConfig struct {
	Broker    string        `yaml:"broker"`
	Heartbeat time.Duration `yaml:"heartbeat"`
}

// HTTPConfig configures the status server. An empty address disables it.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// HistoryConfig locates the cycle database. An empty path keeps history in memory.
type HistoryConfig struct {
	Path string `yaml:"path"`
}

// LoggingConfig sets the log level.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	pins := gpio.DefaultPins()
	return Config{
		GPIO: GPIOConfig{
			Chip:     gpio.DefaultChip,
			Mode:     pins.Mode,
			Doneness: pins.Doneness,
			Start:    pins.Start,
			Heater:   pins.Heater,
			LEDs: LEDConfig{
				Bake:     pins.LEDBake,
				Broil:    pins.LEDBroil,
				Grill:    pins.LEDGrill,
				Rare:     pins.LEDRare,
				Medium:   pins.LEDMedium,
				WellDone: pins.LEDWellDone,
			},
		},
		Sensor: SensorConfig{
			Kind:        SensorSerial,
			Port:        "/dev/ttyACM0",
			BaudRate:    115200,
			Timeout:     500 * time.Millisecond,
			FakeCelsius: 20,
		},
		MQTT: MQTTConfig{
			Broker:    "tcp://192.168.1.200:1883",
			Heartbeat: 15 * time.Minute,
		},
		HTTP:    HTTPConfig{Addr: ":80"},
		History: HistoryConfig{Path: "/var/lib/oven-controller/history.db"},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads path on top of the defaults. An empty path or a missing file
// yields the defaults. Unknown fields are rejected.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return Default(), nil
		}
		return Config{}, fmt.Errorf("decode config yaml: %w", err)
	}
	var extra yaml.Node
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("decode config yaml: unexpected trailing document")
	}

	return cfg, nil
}

// FlagOverrides carries command-line values that replace file settings.
// Nil pointers are ignored.
type FlagOverrides struct {
	Broker   *string
	HTTPAddr *string
	Sensor   *string
	LogLevel *string
}

// Apply merges the overrides into cfg.
func (o FlagOverrides) Apply(cfg *Config) {
	if cfg == nil {
		return
	}
	if o.Broker != nil {
		cfg.MQTT.Broker = *o.Broker
	}
	if o.HTTPAddr != nil {
		cfg.HTTP.Addr = *o.HTTPAddr
	}
	if o.Sensor != nil {
		cfg.Sensor.Kind = *o.Sensor
	}
	if o.LogLevel != nil {
		cfg.Logging.Level = *o.LogLevel
	}
}

// Validate checks config invariants.
// Called after defaults, file and overrides are applied.
func (c *Config) Validate() error {
	if c.GPIO.Chip == "" {
		return errors.New("gpio.chip must not be empty")
	}
	lines := map[string]int{
		"gpio.mode_button":     c.GPIO.Mode,
		"gpio.doneness_button": c.GPIO.Doneness,
		"gpio.start_button":    c.GPIO.Start,
		"gpio.heater":          c.GPIO.Heater,
		"gpio.leds.bake":       c.GPIO.LEDs.Bake,
		"gpio.leds.broil":      c.GPIO.LEDs.Broil,
		"gpio.leds.grill":      c.GPIO.LEDs.Grill,
		"gpio.leds.rare":       c.GPIO.LEDs.Rare,
		"gpio.leds.medium":     c.GPIO.LEDs.Medium,
		"gpio.leds.well_done":  c.GPIO.LEDs.WellDone,
	}
	used := make(map[int]string, len(lines))
	for name, line := range lines {
		if line < 0 {
			return fmt.Errorf("%s must be >= 0", name)
		}
		if other, ok := used[line]; ok {
			a, b := min(name, other), max(name, other)
			return fmt.Errorf("%s and %s share line %d", a, b, line)
		}
		used[line] = name
	}

	switch c.Sensor.Kind {
	case SensorSerial:
		if c.Sensor.Port == "" {
			return errors.New("sensor.port must not be empty for a serial sensor")
		}
		if c.Sensor.BaudRate <= 0 {
			return errors.New("sensor.baud_rate must be > 0")
		}
		if c.Sensor.Timeout <= 0 {
			return errors.New("sensor.timeout must be > 0")
		}
	case SensorFake:
		if c.Sensor.FakeCelsius < 0 || logic.RawForCelsius(c.Sensor.FakeCelsius) > logic.ADCMax {
			return fmt.Errorf("sensor.fake_celsius %d is outside the sensor range", c.Sensor.FakeCelsius)
		}
	default:
		return fmt.Errorf("sensor.kind must be %q or %q", SensorSerial, SensorFake)
	}

	if c.Control.HysteresisC < 0 {
		return errors.New("control.hysteresis_c must be >= 0")
	}
	if c.MQTT.Broker != "" && c.MQTT.Heartbeat <= 0 {
		return errors.New("mqtt.heartbeat must be > 0")
	}
	if _, err := logger.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	return nil
}

// Pins converts the GPIO section to board pins.
func (c *Config) Pins() gpio.Pins {
	return gpio.Pins{
		Mode:            c.GPIO.Mode,
		Doneness:        c.GPIO.Doneness,
		Start:           c.GPIO.Start,
		Heater:          c.GPIO.Heater,
		HeaterActiveLow: c.GPIO.HeaterActiveLow,
		LEDBake:         c.GPIO.LEDs.Bake,
		LEDBroil:        c.GPIO.LEDs.Broil,
		LEDGrill:        c.GPIO.LEDs.Grill,
		LEDRare:         c.GPIO.LEDs.Rare,
		LEDMedium:       c.GPIO.LEDs.Medium,
		LEDWellDone:     c.GPIO.LEDs.WellDone,
	}
}
