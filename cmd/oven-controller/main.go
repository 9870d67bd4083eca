// Command oven-controller runs the oven's cook-cycle controller on GPIO and
// a serial ADC, and publishes its events to MQTT.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/sweeney/oven-controller/internal/adc"
	"github.com/sweeney/oven-controller/internal/config"
	"github.com/sweeney/oven-controller/internal/gpio"
	"github.com/sweeney/oven-controller/internal/history"
	"github.com/sweeney/oven-controller/internal/logger"
	"github.com/sweeney/oven-controller/internal/logic"
	"github.com/sweeney/oven-controller/internal/mqtt"
	"github.com/sweeney/oven-controller/internal/oven"
	"github.com/sweeney/oven-controller/internal/status"
	"github.com/sweeney/oven-controller/internal/web"
)

func main() {
	configPath := flag.String("config", "/etc/oven-controller/config.yaml", "Path to YAML configuration")
	broker := flag.String("broker", "", "MQTT broker address (empty to disable)")
	httpAddr := flag.String("http", "", "HTTP status address (empty to disable)")
	sensor := flag.String("sensor", "", `Temperature source ("serial" or "fake")`)
	logLevel := flag.String("log-level", "", "Log level (debug, info, warn, error)")
	printState := flag.Bool("print-state", false, "Print button levels and temperature, then exit")

	flag.Parse()

	// Only flags given on the command line override the file.
	var overrides config.FlagOverrides
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "broker":
			overrides.Broker = broker
		case "http":
			overrides.HTTPAddr = httpAddr
		case "sensor":
			overrides.Sensor = sensor
		case "log-level":
			overrides.LogLevel = logLevel
		}
	})

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
	overrides.Apply(&cfg)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: invalid config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Logging.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, *printState, log); err != nil {
		log.Errorw("fatal", "err", err)
		log.Sync()
		os.Exit(1)
	}
}

// sensorCloser is a sensor that may hold an open port.
type sensorCloser interface {
	oven.Sensor
	Close() error
}

type nopCloser struct{ oven.Sensor }

func (nopCloser) Close() error { return nil }

func openSensor(cfg config.SensorConfig) (sensorCloser, error) {
	switch cfg.Kind {
	case config.SensorFake:
		return nopCloser{adc.NewFakeCelsius(cfg.FakeCelsius)}, nil
	default:
		s, err := adc.OpenSerial(cfg.Port, cfg.BaudRate, cfg.Timeout)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

// edgeRelay forwards GPIO edges to the oven once it exists. The board
// must be opened first because the oven drives its heater and LEDs.
type edgeRelay struct {
	target atomic.Pointer[oven.Oven]
}

func (r *edgeRelay) ModeEdge() {
	if o := r.target.Load(); o != nil {
		o.ModeEdge()
	}
}

func (r *edgeRelay) DonenessEdge() {
	if o := r.target.Load(); o != nil {
		o.DonenessEdge()
	}
}

func (r *edgeRelay) StartEdge() {
	if o := r.target.Load(); o != nil {
		o.StartEdge()
	}
}

func openHistory(path string, log *logger.Logger) (history.Store, func() error, error) {
	if path == "" {
		log.Infow("history kept in memory")
		return history.NewMemory(), func() error { return nil }, nil
	}
	db, err := history.InitDB(path)
	if err != nil {
		return nil, nil, err
	}
	return history.NewSQLite(db), db.Close, nil
}

func run(cfg config.Config, printState bool, log *logger.Logger) error {
	sensor, err := openSensor(cfg.Sensor)
	if err != nil {
		return fmt.Errorf("init sensor: %w", err)
	}
	defer sensor.Close()

	relay := &edgeRelay{}
	board, err := gpio.NewBoard(cfg.GPIO.Chip, cfg.Pins(), relay)
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	// The oven has stopped by the time deferred calls run.
	defer board.Close()

	if printState {
		levels, err := board.Buttons()
		if err != nil {
			return fmt.Errorf("read gpio: %w", err)
		}
		raw, err := sensor.ReadRaw()
		if err != nil {
			return fmt.Errorf("read sensor: %w", err)
		}
		fmt.Printf("MODE: %s, DONENESS: %s, START: %s, TEMP: %dC (raw %d)\n",
			pressedString(levels.Mode), pressedString(levels.Doneness), pressedString(levels.Start),
			logic.Celsius(raw), raw)
		return nil
	}

	store, closeStore, err := openHistory(cfg.History.Path, log)
	if err != nil {
		return fmt.Errorf("init history: %w", err)
	}
	defer closeStore()

	tracker := status.NewTracker(time.Now(), status.Config{
		HeartbeatMs:  cfg.MQTT.Heartbeat.Milliseconds(),
		Broker:       cfg.MQTT.Broker,
		HTTPPort:     cfg.HTTP.Addr,
		Sensor:       cfg.Sensor.Kind,
		SelectionLag: cfg.Control.SelectionLag,
		HysteresisC:  cfg.Control.HysteresisC,
	})
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}

	var publisher mqtt.Publisher
	var mqttStatus mqtt.ConnectionStatus
	if cfg.MQTT.Broker != "" {
		p, err := mqtt.NewRealPublisher(cfg.MQTT.Broker, log.Named("mqtt"))
		if err != nil {
			return fmt.Errorf("init mqtt: %w", err)
		}
		p.OnReconnect = func() { tracker.SetMQTTConnected(true) }
		defer p.Close()
		publisher, mqttStatus = p, p
	} else {
		log.Infow("mqtt disabled")
	}

	ov, err := oven.New(oven.Config{
		SelectionLag: cfg.Control.SelectionLag,
		HysteresisC:  cfg.Control.HysteresisC,
	}, log.Named("oven"), sensor, board, board)
	if err != nil {
		return fmt.Errorf("init oven: %w", err)
	}
	relay.target.Store(ov)

	if publisher != nil {
		if mqttStatus != nil {
			tracker.SetMQTTConnected(mqttStatus.IsConnected())
		}
		snap := tracker.Snapshot()
		startup := mqtt.SystemEvent{
			Timestamp:  snap.Now,
			Event:      "STARTUP",
			Retained:   true,
			RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
		}
		if err := publisher.PublishSystem(startup); err != nil {
			log.Warnw("failed to publish startup event", "err", err)
		} else {
			log.Infow("published startup event")
		}
	}

	if cfg.HTTP.Addr != "" {
		srv := web.New(cfg.HTTP.Addr, tracker, ov, store, log.Named("http"))
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Errorw("http server error", "err", err)
			}
		}()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(ctx)
		}()
		log.Infow("http status server listening", "addr", cfg.HTTP.Addr)
	}

	ctx, cancel := context.WithCancel(context.Background())
	ovenDone := make(chan error, 1)
	go func() { ovenDone <- ov.Run(ctx) }()

	var heartbeat <-chan time.Time
	if publisher != nil && cfg.MQTT.Heartbeat > 0 {
		ticker := time.NewTicker(cfg.MQTT.Heartbeat)
		defer ticker.Stop()
		heartbeat = ticker.C
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	log.Infow("started",
		"sensor", cfg.Sensor.Kind, "broker", cfg.MQTT.Broker, "http", cfg.HTTP.Addr,
		"history", cfg.History.Path, "selection_lag", cfg.Control.SelectionLag,
		"hysteresis_c", cfg.Control.HysteresisC)

	loopErr := runLoop(loopDeps{
		events:     ov.Events(),
		publisher:  publisher,
		mqttStatus: mqttStatus,
		tracker:    tracker,
		recorder:   history.NewRecorder(store, log.Named("history")),
		log:        log,
		now:        time.Now,
		heartbeat:  heartbeat,
		sig:        sigCh,
	})

	cancel()
	if err := <-ovenDone; err != nil {
		log.Warnw("oven stopped with error", "err", err)
	}
	return loopErr
}

type loopDeps struct {
	events     <-chan logic.Event
	publisher  mqtt.Publisher // nil when MQTT is disabled
	mqttStatus mqtt.ConnectionStatus
	tracker    *status.Tracker
	recorder   *history.Recorder
	log        *logger.Logger
	now        func() time.Time
	heartbeat  <-chan time.Time
	sig        <-chan os.Signal
}

// runLoop fans oven events out to the tracker, the cycle recorder and the
// broker until a signal arrives.
func runLoop(d loopDeps) error {
	if d.log == nil {
		d.log = logger.Nop()
	}
	refreshMQTT := func() {
		if d.mqttStatus != nil && d.tracker != nil {
			d.tracker.SetMQTTConnected(d.mqttStatus.IsConnected())
		}
	}

	for {
		select {
		case s := <-d.sig:
			name := signalName(s)
			d.log.Infow("shutting down", "signal", name)
			if d.publisher == nil {
				return nil
			}
			event := mqtt.SystemEvent{
				Timestamp: d.now(),
				Event:     "SHUTDOWN",
				Reason:    name,
				Retained:  true,
			}
			if d.tracker != nil {
				refreshMQTT()
				event.RawPayload = status.FormatStatusEvent(d.tracker.Snapshot(), "SHUTDOWN", name)
			}
			if err := d.publisher.PublishSystem(event); err != nil {
				d.log.Warnw("failed to publish shutdown event", "err", err)
			} else {
				d.log.Infow("published shutdown event")
			}
			return nil

		case <-d.heartbeat:
			if d.publisher == nil {
				continue
			}
			hb := mqtt.SystemEvent{
				Timestamp: d.now(),
				Event:     "HEARTBEAT",
			}
			if d.tracker != nil {
				refreshMQTT()
				if net := readNetworkInfo(); net != nil {
					d.tracker.SetNetwork(net)
				}
				snap := d.tracker.Snapshot()
				d.log.Infow("heartbeat",
					"uptime", snap.Uptime().Round(time.Second), "state", snap.Status,
					"cycles", snap.Counts.Cycles, "heater_on", snap.Counts.HeaterOn)
				hb.RawPayload = status.FormatStatusEvent(snap, "HEARTBEAT", "")
			}
			if err := d.publisher.PublishSystem(hb); err != nil {
				d.log.Warnw("heartbeat publish error", "err", err)
			}

		case e := <-d.events:
			if e.Type != logic.EventTemperature {
				d.log.Infow("event", "type", e.Type, "mode", e.Mode, "doneness", e.Doneness,
					"state", e.Status, "heater", status.HeaterLabel(e.Heater))
			}
			if d.tracker != nil {
				d.tracker.Apply(e)
				refreshMQTT()
			}
			if d.recorder != nil {
				// Observe logs its own store failures.
				d.recorder.Observe(context.Background(), e)
			}
			if d.publisher != nil {
				if err := d.publisher.Publish(e); err != nil {
					d.log.Warnw("publish error", "type", e.Type, "err", err)
				}
			}
		}
	}
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	default:
		return "UNKNOWN"
	}
}

func pressedString(pressed bool) string {
	if pressed {
		return "pressed"
	}
	return "released"
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}
