// Command room-sensor watches a door contact through a GPIO interrupt, joins
// a wireless network and serves the door and light readings over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sweeney/room-sensor/internal/analog"
	"github.com/sweeney/room-sensor/internal/gpio"
	"github.com/sweeney/room-sensor/internal/mqtt"
	"github.com/sweeney/room-sensor/internal/pipeline"
	"github.com/sweeney/room-sensor/internal/settings"
	"github.com/sweeney/room-sensor/internal/status"
	"github.com/sweeney/room-sensor/internal/web"
	"github.com/sweeney/room-sensor/internal/wifi"
)

// assignments collects repeated -set key=value flags.
type assignments []string

func (a *assignments) String() string { return strings.Join(*a, ",") }

func (a *assignments) Set(v string) error {
	*a = append(*a, v)
	return nil
}

type options struct {
	settingsPath string
	chip         string
	iioDevice    string
	iface        string
	httpAddr     string
	broker       string
	heartbeat    time.Duration
	wifiTimeout  time.Duration
	queue        int
	rate         float64
	logLevel     string
	printState   bool
	set          assignments
}

func main() {
	var o options
	flag.StringVar(&o.settingsPath, "settings", "/var/lib/room-sensor/settings.db", "Settings database path")
	flag.StringVar(&o.chip, "chip", gpio.DefaultChip, "GPIO chip name")
	flag.StringVar(&o.iioDevice, "iio", analog.DefaultIIODevice, "IIO ADC device directory")
	flag.StringVar(&o.iface, "iface", "wlan0", "Wireless interface managed by wpa_supplicant")
	flag.StringVar(&o.httpAddr, "http", ":80", "HTTP address (empty to disable)")
	flag.StringVar(&o.broker, "broker", "", "MQTT broker address (empty to disable)")
	flag.DurationVar(&o.heartbeat, "heartbeat", 15*time.Minute, "Heartbeat interval (0 to disable)")
	flag.DurationVar(&o.wifiTimeout, "wifi-timeout", 0, "Give up waiting for the network after this long (0 waits forever)")
	flag.IntVar(&o.queue, "queue", pipeline.DefaultCapacity, "Interrupt event queue capacity")
	flag.Float64Var(&o.rate, "rate", 5, "Room endpoint requests per second (0 for unlimited)")
	flag.StringVar(&o.logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	flag.BoolVar(&o.printState, "print-state", false, "Print current readings and exit")
	flag.Var(&o.set, "set", "Store a setting as key=value before starting (repeatable)")

	flag.Parse()

	if err := run(o); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func newLogger(level string, w io.Writer) (*slog.Logger, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("log level %q: %w", level, err)
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: l})), nil
}

func run(o options) error {
	logger, err := newLogger(o.logLevel, os.Stderr)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)
	component := func(name string) *slog.Logger { return logger.With("component", name) }
	applog := component("app")

	// Configuration source
	store, err := settings.OpenSQLite(o.settingsPath)
	if err != nil {
		return fmt.Errorf("open settings: %w", err)
	}
	defer store.Close()
	if err := settings.Apply(store, o.set); err != nil {
		return fmt.Errorf("apply settings: %w", err)
	}

	resets, err := settings.BumpResetCounter(store)
	if err != nil {
		return fmt.Errorf("reset counter: %w", err)
	}
	applog.Info("boot", "reset_count", resets)

	setlog := component("settings")
	channels, err := settings.LoadChannels(store, setlog)
	if err != nil {
		return fmt.Errorf("load channels: %w", err)
	}
	network, err := settings.LoadNetwork(store, setlog)
	if err != nil {
		return fmt.Errorf("load network: %w", err)
	}

	// Sensors
	adc, note, err := analog.NewIIO(o.iioDevice, channels.LightChannel)
	if err != nil {
		return fmt.Errorf("init adc: %w", err)
	}
	defer adc.Close()
	if adc.Calibrated() {
		component("analog").Info("calibration usable")
	} else {
		component("analog").Warn("calibration unusable, reporting raw only", "reason", note)
	}

	chip, err := gpio.NewRealChip(o.chip)
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer chip.Close()

	if o.printState {
		return printState(os.Stdout, chip, adc, channels.DoorPin)
	}

	tracker := status.NewTracker(time.Now(), status.Config{
		DoorPin:      channels.DoorPin,
		LightChannel: channels.LightChannel,
		QueueCap:     o.queue,
		Calibrated:   adc.Calibrated(),
		HeartbeatMs:  o.heartbeat.Milliseconds(),
		Broker:       o.broker,
		HTTPAddr:     o.httpAddr,
	})
	tracker.SetResetCount(resets)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Interrupt pipeline runs for the process lifetime, independent of the network.
	pipe := pipeline.New(chip, tracker, o.queue, component("pipeline"))
	if err := pipe.Configure(channels.DoorPin, gpio.EdgeBoth); err != nil {
		return fmt.Errorf("configure interrupt: %w", err)
	}
	go pipe.Run(ctx)

	wlog := component("wifi")
	station := wifi.NewSupplicantStation(wifi.WPACLI(o.iface), wlog)
	conn, late, err := connectNetwork(ctx, station, network, o.wifiTimeout, wlog)
	if err != nil {
		return err
	}
	tracker.SetConnectivity(conn)

	if o.httpAddr != "" {
		srv := web.New(o.httpAddr, tracker, adc, o.rate, component("web"))
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				applog.Error("http server", "err", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		applog.Info("http server listening", "addr", o.httpAddr)
	}

	var publisher mqtt.Publisher
	var mqttStatus mqtt.ConnectionStatus
	if o.broker != "" {
		p, err := mqtt.NewRealPublisher(o.broker, "room-sensor", component("mqtt"))
		if err != nil {
			return fmt.Errorf("init mqtt: %w", err)
		}
		defer p.Close()
		publisher, mqttStatus = p, p
		publishSystem(publisher, mqttStatus, tracker, mqtt.EventStartup, "", true, applog)
		publishSystem(publisher, mqttStatus, tracker, mqtt.EventConnectivity, conn.Outcome, true, applog)
	}

	applog.Info("started",
		"door_pin", channels.DoorPin,
		"light_channel", channels.LightChannel,
		"wifi", conn.Outcome,
		"heartbeat", o.heartbeat)

	var tick <-chan time.Time
	if o.heartbeat > 0 {
		ticker := time.NewTicker(o.heartbeat)
		defer ticker.Stop()
		tick = ticker.C
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(publisher, mqttStatus, tracker, tick, late, sigCh, applog)
}

// runLoop publishes heartbeats until a signal arrives. The door level is kept
// current by the pipeline; this loop only reports it. late delivers a network
// outcome that arrived after startup stopped waiting for it.
func runLoop(publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker, tick <-chan time.Time, late <-chan status.Connectivity, sig <-chan os.Signal, logger *slog.Logger) error {
	for {
		select {
		case conn := <-late:
			late = nil
			tracker.SetConnectivity(conn)
			logger.Info("network outcome", "wifi", conn.Outcome, "ip", conn.IP)
			publishSystem(publisher, mqttStatus, tracker, mqtt.EventConnectivity, conn.Outcome, true, logger)

		case s := <-sig:
			logger.Info("shutting down", "signal", s.String())
			publishSystem(publisher, mqttStatus, tracker, mqtt.EventShutdown, signalName(s), true, logger)
			return nil

		case <-tick:
			snap := tracker.Snapshot()
			logger.Info("heartbeat",
				"door", status.DoorString(snap),
				"wifi", snap.Connectivity.Outcome,
				"uptime", snap.Uptime().Truncate(time.Second))
			publishSystem(publisher, mqttStatus, tracker, mqtt.EventHeartbeat, "", false, logger)
		}
	}
}

// publishSystem sends a lifecycle event carrying a status snapshot. A nil
// publisher means MQTT is disabled.
func publishSystem(publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker, event, reason string, retained bool, logger *slog.Logger) {
	if publisher == nil {
		return
	}
	if mqttStatus != nil {
		tracker.SetMQTTConnected(mqttStatus.IsConnected())
	}
	snap := tracker.Snapshot()
	err := publisher.PublishSystem(mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      event,
		Reason:     reason,
		Retained:   retained,
		RawPayload: status.FormatStatusEvent(snap, event, reason),
	})
	if err != nil {
		logger.Warn("publish failed", "event", event, "err", err)
		return
	}
	logger.Debug("published", "event", event)
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	}
	return "UNKNOWN"
}

func printState(w io.Writer, chip gpio.Chip, adc analog.ADC, doorPin int) error {
	// Lines are only readable once requested.
	if err := chip.Watch(doorPin, gpio.EdgeBoth, func(int) {}); err != nil {
		return fmt.Errorf("request door pin: %w", err)
	}
	level, err := chip.Level(doorPin)
	if err != nil {
		return fmt.Errorf("read door: %w", err)
	}
	sample, err := adc.Read()
	if err != nil {
		return fmt.Errorf("read light: %w", err)
	}
	door := "CLOSED"
	if level {
		door = "OPEN"
	}
	fmt.Fprintf(w, "door: %s, light: %d", door, sample.Raw)
	if adc.Calibrated() {
		fmt.Fprintf(w, " (%d mV)", analog.Millivolts(sample.V))
	}
	fmt.Fprintln(w)
	return nil
}
