package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/oven-controller/internal/gpio"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "oven.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "gpiochip0", cfg.GPIO.Chip)
	assert.Equal(t, 17, cfg.GPIO.Mode)
	assert.Equal(t, 27, cfg.GPIO.Doneness)
	assert.Equal(t, 22, cfg.GPIO.Start)
	assert.Equal(t, 23, cfg.GPIO.Heater)
	assert.Equal(t, SensorSerial, cfg.Sensor.Kind)
	assert.Equal(t, "/dev/ttyACM0", cfg.Sensor.Port)
	assert.Equal(t, 115200, cfg.Sensor.BaudRate)
	assert.Equal(t, 500*time.Millisecond, cfg.Sensor.Timeout)
	assert.Equal(t, "tcp://192.168.1.200:1883", cfg.MQTT.Broker)
	assert.Equal(t, 15*time.Minute, cfg.MQTT.Heartbeat)
	assert.Equal(t, ":80", cfg.HTTP.Addr)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Control.SelectionLag)
	assert.NoError(t, cfg.Validate())
}

func TestDefaultPinsMatchBoard(t *testing.T) {
	cfg := Default()
	assert.Equal(t, gpio.DefaultPins(), cfg.Pins())
}

func TestLoadEmptyPath(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadFileNotExists(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadEmptyFile(t *testing.T) {
	cfg, err := Load(writeConfig(t, ""))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadValidYAML(t *testing.T) {
	path := writeConfig(t, `
gpio:
  heater: 24
  heater_active_low: true
  leds:
    well_done: 20
sensor:
  kind: fake
  fake_celsius: 180
control:
  selection_lag: true
  hysteresis_c: 3
mqtt:
  broker: tcp://localhost:1883
  heartbeat: 30s
history:
  path: ""
logging:
  level: debug
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 24, cfg.GPIO.Heater)
	assert.True(t, cfg.GPIO.HeaterActiveLow)
	assert.Equal(t, 20, cfg.GPIO.LEDs.WellDone)
	assert.Equal(t, 5, cfg.GPIO.LEDs.Bake, "unset fields keep defaults")
	assert.Equal(t, SensorFake, cfg.Sensor.Kind)
	assert.Equal(t, 180, cfg.Sensor.FakeCelsius)
	assert.True(t, cfg.Control.SelectionLag)
	assert.Equal(t, 3, cfg.Control.HysteresisC)
	assert.Equal(t, 30*time.Second, cfg.MQTT.Heartbeat)
	assert.Empty(t, cfg.History.Path)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.NoError(t, cfg.Validate())

	pins := cfg.Pins()
	assert.Equal(t, 24, pins.Heater)
	assert.True(t, pins.HeaterActiveLow)
}

func TestLoadUnknownField(t *testing.T) {
	_, err := Load(writeConfig(t, "sensor:\n  kind: fake\n  colour: red\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "colour")
}

func TestLoadTrailingDocument(t *testing.T) {
	_, err := Load(writeConfig(t, "logging:\n  level: info\n---\nlogging:\n  level: debug\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "trailing document")
}

func TestLoadInvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "mqtt: [broker\n"))
	assert.Error(t, err)
}

func TestFlagOverrides(t *testing.T) {
	cfg := Default()
	broker := ""
	sensor := SensorFake
	level := "warn"

	FlagOverrides{Broker: &broker, Sensor: &sensor, LogLevel: &level}.Apply(&cfg)

	assert.Empty(t, cfg.MQTT.Broker, "explicit empty value is applied")
	assert.Equal(t, SensorFake, cfg.Sensor.Kind)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, ":80", cfg.HTTP.Addr, "nil override is ignored")

	FlagOverrides{}.Apply(nil)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		errMsg string
	}{
		{"shared line", func(c *Config) { c.GPIO.LEDs.Rare = c.GPIO.Heater }, "share line 23"},
		{"negative line", func(c *Config) { c.GPIO.Start = -1 }, "gpio.start_button must be >= 0"},
		{"empty chip", func(c *Config) { c.GPIO.Chip = "" }, "gpio.chip"},
		{"unknown sensor", func(c *Config) { c.Sensor.Kind = "spi" }, "sensor.kind"},
		{"empty port", func(c *Config) { c.Sensor.Port = "" }, "sensor.port"},
		{"zero baud", func(c *Config) { c.Sensor.BaudRate = 0 }, "sensor.baud_rate"},
		{"zero timeout", func(c *Config) { c.Sensor.Timeout = 0 }, "sensor.timeout"},
		{"fake too hot", func(c *Config) { c.Sensor.Kind = SensorFake; c.Sensor.FakeCelsius = 400 }, "fake_celsius"},
		{"negative hysteresis", func(c *Config) { c.Control.HysteresisC = -2 }, "hysteresis_c"},
		{"zero heartbeat", func(c *Config) { c.MQTT.Heartbeat = 0 }, "mqtt.heartbeat"},
		{"bad level", func(c *Config) { c.Logging.Level = "verbose" }, "logging.level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestValidateHeartbeatIgnoredWithoutBroker(t *testing.T) {
	cfg := Default()
	cfg.MQTT.Broker = ""
	cfg.MQTT.Heartbeat = 0
	assert.NoError(t, cfg.Validate())
}
