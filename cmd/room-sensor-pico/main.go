//go:build rp2350

// Command room-sensor-pico is the Raspberry Pi Pico 2 W build of the room
// sensor. Build with TinyGo, passing the network settings at link time:
//
//	tinygo flash -target=pico2-w -ldflags="-X main.SSID=... -X main.Passwd=..." ./cmd/room-sensor-pico
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/sweeney/room-sensor/internal/analog"
	"github.com/sweeney/room-sensor/internal/gpio"
	"github.com/sweeney/room-sensor/internal/pipeline"
	"github.com/sweeney/room-sensor/internal/settings"
	"github.com/sweeney/room-sensor/internal/status"
	"github.com/sweeney/room-sensor/internal/web"
	"github.com/sweeney/room-sensor/internal/wifi"
)

// Link-time settings. Empty values fall back to the compiled defaults.
var (
	SSID    string
	Passwd  string
	IP      string
	Gateway string
)

const httpPort = 80

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)
	component := func(name string) *slog.Logger { return logger.With("component", name) }
	applog := component("app")

	// Give the USB console a moment to attach.
	time.Sleep(2 * time.Second)

	if err := run(component, applog); err != nil {
		applog.Error("fatal", "err", err)
	}
	// Nothing to return to on the Pico.
	select {}
}

func run(component func(string) *slog.Logger, applog *slog.Logger) error {
	store := settings.NewMemStore()
	var set []string
	for key, v := range map[string]string{
		settings.KeyWifiSSID:     SSID,
		settings.KeyWifiPassword: Passwd,
		settings.KeyIP:           IP,
		settings.KeyGateway:      Gateway,
	} {
		if v != "" {
			set = append(set, key+"="+v)
		}
	}
	if err := settings.Apply(store, set); err != nil {
		return err
	}

	resets, err := settings.BumpResetCounter(store)
	if err != nil {
		return err
	}
	setlog := component("settings")
	channels, err := settings.LoadChannels(store, setlog)
	if err != nil {
		return err
	}
	network, err := settings.LoadNetwork(store, setlog)
	if err != nil {
		return err
	}

	adc, err := analog.NewPico(channels.LightChannel)
	if err != nil {
		return err
	}

	tracker := status.NewTracker(time.Now(), status.Config{
		DoorPin:      channels.DoorPin,
		LightChannel: channels.LightChannel,
		QueueCap:     pipeline.DefaultCapacity,
		Calibrated:   adc.Calibrated(),
	})
	tracker.SetResetCount(resets)

	pipe := pipeline.New(gpio.NewPicoChip(), tracker, pipeline.DefaultCapacity, component("pipeline"))
	if err := pipe.Configure(channels.DoorPin, gpio.EdgeBoth); err != nil {
		return err
	}
	go pipe.Run(context.Background())

	if network.SSID == "" {
		applog.Warn("no network name configured, networking disabled")
		tracker.SetConnectivity(status.Connectivity{Outcome: "disabled"})
		return nil
	}

	wlog := component("wifi")
	station := wifi.NewPicoStation(wlog)
	m := wifi.NewManager(station, wlog)
	if err := m.Start(wifi.Config{
		SSID:     network.SSID,
		Password: network.Password,
		Hostname: "room-sensor",
		Address:  network.Address,
		Gateway:  network.Gateway,
	}); err != nil {
		return err
	}
	outcome, _ := m.Wait(context.Background())
	conn := status.Connectivity{Outcome: outcome.String(), SSID: network.SSID}
	if outcome == wifi.OutcomeConnected {
		conn.IP = m.Addr().String()
	}
	tracker.SetConnectivity(conn)
	applog.Info("network", "outcome", conn.Outcome, "ip", conn.IP)
	if outcome != wifi.OutcomeConnected {
		// No stack to listen on; the door is still tracked for the console.
		return nil
	}

	ln, err := station.Listener(httpPort)
	if err != nil {
		return err
	}
	srv := web.New("", tracker, adc, 2, component("web"))
	applog.Info("http server listening", "port", httpPort)
	return srv.Serve(ln)
}
