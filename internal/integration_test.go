package internal

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"path/filepath"
	"testing"
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

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type roomBody struct {
	Room struct {
		Door  bool `json:"door"`
		Light struct {
			Raw     int  `json:"raw"`
			Voltage *int `json:"voltage"`
		} `json:"light"`
	} `json:"room"`
}

func getRoom(t *testing.T, url string) roomBody {
	t.Helper()
	resp, err := http.Get(url + "/")
	if err != nil {
		t.Fatalf("GET /: %v", err)
	}
	defer resp.Body.Close()
	var body roomBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return body
}

func waitDoor(t *testing.T, url string, want bool) roomBody {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		body := getRoom(t, url)
		if body.Room.Door == want {
			return body
		}
		if time.Now().After(deadline) {
			t.Fatalf("door never became %v", want)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

type node struct {
	chip    *gpio.FakeChip
	adc     *analog.FakeADC
	tracker *status.Tracker
	pipe    *pipeline.Pipeline
	url     string
	door    int
}

// newNode wires settings, the interrupt pipeline and the reporting server
// the way the daemon does, with fakes for the hardware.
func newNode(t *testing.T, store settings.Store) *node {
	t.Helper()
	ch, err := settings.LoadChannels(store, discard)
	if err != nil {
		t.Fatalf("load channels: %v", err)
	}

	n := &node{
		chip: gpio.NewFakeChip(),
		adc:  analog.NewFakeADC(0, nil),
		door: ch.DoorPin,
	}
	n.tracker = status.NewTracker(time.Now(), status.Config{DoorPin: ch.DoorPin, LightChannel: ch.LightChannel})
	n.pipe = pipeline.New(n.chip, n.tracker, pipeline.DefaultCapacity, discard)
	if err := n.pipe.Configure(ch.DoorPin, gpio.EdgeBoth); err != nil {
		t.Fatalf("configure: %v", err)
	}

	srv := web.New(":0", n.tracker, n.adc, 0, discard)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	n.url = ts.URL
	return n
}

func (n *node) run(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go n.pipe.Run(ctx)
}

// TestIntegrationDoorToReport drives the door contact and reads the result
// back through the reporting endpoint.
func TestIntegrationDoorToReport(t *testing.T) {
	n := newNode(t, settings.NewMemStore())
	if n.door != settings.DefaultDoorPin {
		t.Fatalf("door pin: got %d, want default %d", n.door, settings.DefaultDoorPin)
	}
	n.run(t)
	n.adc.Set(2048)

	waitDoor(t, n.url, false)

	n.chip.Drive(n.door, true)
	body := waitDoor(t, n.url, true)
	if body.Room.Light.Raw != 2048 {
		t.Errorf("raw: got %d, want 2048", body.Room.Light.Raw)
	}
	if body.Room.Light.Voltage != nil {
		t.Error("voltage reported without calibration")
	}

	n.chip.Drive(n.door, false)
	waitDoor(t, n.url, false)
}

// TestIntegrationLatestLevelWins raises two interrupts before the consumer
// runs; the report shows the level present when the consumer woke.
func TestIntegrationLatestLevelWins(t *testing.T) {
	n := newNode(t, settings.NewMemStore())

	n.chip.Drive(n.door, true)
	n.chip.Drive(n.door, false)
	n.run(t)

	time.Sleep(20 * time.Millisecond)
	if body := getRoom(t, n.url); body.Room.Door {
		t.Error("door reported high, want the latest level (low)")
	}
	if snap := n.tracker.Snapshot(); !snap.DoorKnown {
		t.Error("consumer never recorded a level")
	}
}

// TestIntegrationInterruptBurst overflows the queue; the final level still
// reaches the report.
func TestIntegrationInterruptBurst(t *testing.T) {
	n := newNode(t, settings.NewMemStore())

	level := false
	for i := 0; i < 5*pipeline.DefaultCapacity; i++ {
		level = !level
		n.chip.Drive(n.door, level)
	}
	n.chip.Drive(n.door, true)
	n.run(t)

	waitDoor(t, n.url, true)
}

// TestIntegrationConfiguredPin uses a provisioned door pin and calibrated ADC.
func TestIntegrationConfiguredPin(t *testing.T) {
	store := settings.NewMemStore()
	if err := settings.Apply(store, []string{"door-pin=17", "light-pin=0"}); err != nil {
		t.Fatalf("apply: %v", err)
	}
	n := newNode(t, store)
	if _, ok := n.chip.Watched(17); !ok {
		t.Fatal("pin 17 not watched")
	}
	n.adc.Cal = &analog.Calibration{Scale: 0.25}
	n.adc.Set(4000)
	n.run(t)

	n.chip.Drive(17, true)
	body := waitDoor(t, n.url, true)
	if body.Room.Light.Voltage == nil || *body.Room.Light.Voltage != 1000 {
		t.Errorf("voltage: got %v, want 1000", body.Room.Light.Voltage)
	}
}

// TestIntegrationConnectivityStatus runs the connectivity manager to
// completion and checks the status report.
func TestIntegrationConnectivityStatus(t *testing.T) {
	store := settings.NewMemStore()
	settings.Apply(store, []string{"wifi-ssid=HomeNet", "wifi-password=secret"})
	netCfg, err := settings.LoadNetwork(store, discard)
	if err != nil {
		t.Fatalf("load network: %v", err)
	}

	n := newNode(t, store)
	n.run(t)

	st := wifi.NewFakeStation()
	m := wifi.NewManager(st, discard)
	if err := m.Start(wifi.Config{SSID: netCfg.SSID, Password: netCfg.Password, Address: netCfg.Address, Gateway: netCfg.Gateway}); err != nil {
		t.Fatalf("start: %v", err)
	}
	if got := st.Config().Address.Addr(); got != netip.MustParseAddr(settings.DefaultIP) {
		t.Errorf("requested address: got %v", got)
	}

	st.Notify(wifi.Notification{Kind: wifi.StationStarted})
	for i := 0; i < 3; i++ {
		st.Notify(wifi.Notification{Kind: wifi.Disconnected})
	}
	st.Notify(wifi.Notification{Kind: wifi.AddressAcquired, Addr: netip.MustParseAddr("192.168.0.150")})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	outcome, err := m.Wait(ctx)
	if err != nil || outcome != wifi.OutcomeConnected {
		t.Fatalf("wait: %v %v", outcome, err)
	}
	n.tracker.SetConnectivity(status.Connectivity{Outcome: outcome.String(), SSID: netCfg.SSID, IP: m.Addr().String()})

	resp, err := http.Get(n.url + "/status.json")
	if err != nil {
		t.Fatalf("GET /status.json: %v", err)
	}
	defer resp.Body.Close()
	var sj status.StatusJSON
	if err := json.NewDecoder(resp.Body).Decode(&sj); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if sj.Status.Wifi.Outcome != "connected" || sj.Status.Wifi.IP != "192.168.0.150" {
		t.Errorf("wifi: %+v", sj.Status.Wifi)
	}
	if sj.Status.Door != "CLOSED" {
		t.Errorf("door: got %q, want CLOSED", sj.Status.Door)
	}
}

// TestIntegrationLifecycleEvents publishes the snapshots the daemon sends.
func TestIntegrationLifecycleEvents(t *testing.T) {
	n := newNode(t, settings.NewMemStore())
	n.run(t)
	n.chip.Drive(n.door, true)
	waitDoor(t, n.url, true)

	pub := mqtt.NewFakePublisher()
	for _, ev := range []string{mqtt.EventStartup, mqtt.EventHeartbeat, mqtt.EventShutdown} {
		snap := n.tracker.Snapshot()
		pub.PublishSystem(mqtt.SystemEvent{
			Timestamp:  snap.Now,
			Event:      ev,
			RawPayload: status.FormatStatusEvent(snap, ev, ""),
		})
	}

	for i, payload := range pub.SystemPayloads {
		var sj status.StatusJSON
		if err := json.Unmarshal(payload, &sj); err != nil {
			t.Fatalf("payload %d: %v", i, err)
		}
		if sj.Status.Door != "OPEN" {
			t.Errorf("payload %d door: got %q", i, sj.Status.Door)
		}
		if sj.Status.Event != pub.SystemEvents[i].Event {
			t.Errorf("payload %d event: got %q", i, sj.Status.Event)
		}
	}
}

// TestIntegrationResetCounterPersists simulates three boots on one database.
func TestIntegrationResetCounterPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.db")

	var last int32
	for boot := 1; boot <= 3; boot++ {
		store, err := settings.OpenSQLite(path)
		if err != nil {
			t.Fatalf("boot %d: open: %v", boot, err)
		}
		last, err = settings.BumpResetCounter(store)
		if err != nil {
			t.Fatalf("boot %d: bump: %v", boot, err)
		}
		store.Close()
	}
	if last != 3 {
		t.Errorf("reset count: got %d, want 3", last)
	}
}
