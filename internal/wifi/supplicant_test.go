package wifi

import (
	"context"
	"errors"
	"net/netip"
	"strings"
	"sync"
	"testing"
	"time"
)

// scriptedCLI answers wpa_cli commands from a table and records them.
type scriptedCLI struct {
	mu       sync.Mutex
	calls    []string
	answers  map[string]string
	statuses []string // consumed one per status call; last repeats
	fail     map[string]error
}

func (c *scriptedCLI) run(_ context.Context, args ...string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, strings.Join(args, " "))
	if err := c.fail[args[0]]; err != nil {
		return nil, err
	}
	if args[0] == "status" {
		out := c.statuses[0]
		if len(c.statuses) > 1 {
			c.statuses = c.statuses[1:]
		}
		return []byte(out), nil
	}
	if a, ok := c.answers[args[0]]; ok {
		return []byte(a + "\n"), nil
	}
	return []byte("OK\n"), nil
}

func (c *scriptedCLI) called(prefix string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, call := range c.calls {
		if strings.HasPrefix(call, prefix) {
			return true
		}
	}
	return false
}

func newScripted(statuses ...string) *scriptedCLI {
	return &scriptedCLI{
		answers:  map[string]string{"ping": "PONG", "add_network": "3"},
		statuses: statuses,
		fail:     map[string]error{},
	}
}

func collect() (NotifyFunc, <-chan Notification) {
	ch := make(chan Notification, 8)
	return func(n Notification) { ch <- n }, ch
}

func next(t *testing.T, ch <-chan Notification) Notification {
	t.Helper()
	select {
	case n := <-ch:
		return n
	case <-time.After(2 * time.Second):
		t.Fatal("no notification")
	}
	return Notification{}
}

func TestSupplicantStart(t *testing.T) {
	cli := newScripted("wpa_state=DISCONNECTED")
	s := NewSupplicantStation(cli.run, discard)
	notify, ch := collect()

	if err := s.Start(Config{SSID: "Home Net", Password: "pw"}, notify); err != nil {
		t.Fatalf("start: %v", err)
	}
	if n := next(t, ch); n.Kind != StationStarted {
		t.Errorf("got %v, want station-started", n.Kind)
	}
	if !cli.called(`set_network 3 ssid "Home Net"`) {
		t.Errorf("ssid not set, calls: %v", cli.calls)
	}
	if !cli.called(`set_network 3 psk "pw"`) {
		t.Errorf("psk not set, calls: %v", cli.calls)
	}
}

func TestSupplicantStartOpenNetwork(t *testing.T) {
	cli := newScripted("")
	s := NewSupplicantStation(cli.run, discard)
	notify, _ := collect()

	s.Start(Config{SSID: "Cafe"}, notify)
	if !cli.called("set_network 3 key_mgmt NONE") {
		t.Errorf("open network not configured, calls: %v", cli.calls)
	}
}

func TestSupplicantStartErrors(t *testing.T) {
	t.Run("no daemon", func(t *testing.T) {
		cli := newScripted("")
		cli.fail["ping"] = errors.New("exit status 255")
		s := NewSupplicantStation(cli.run, discard)
		if err := s.Start(Config{SSID: "x"}, func(Notification) {}); err == nil {
			t.Error("expected error")
		}
	})
	t.Run("rejected ssid", func(t *testing.T) {
		cli := newScripted("")
		cli.answers["set_network"] = "FAIL"
		s := NewSupplicantStation(cli.run, discard)
		if err := s.Start(Config{SSID: "x"}, func(Notification) {}); err == nil {
			t.Error("expected error")
		}
		if !cli.called("remove_network 3") {
			t.Errorf("added network should be removed on failure, calls: %v", cli.calls)
		}
	})
	t.Run("list fails", func(t *testing.T) {
		cli := newScripted("")
		cli.fail["list_networks"] = errors.New("exit status 1")
		s := NewSupplicantStation(cli.run, discard)
		if err := s.Start(Config{SSID: "x"}, func(Notification) {}); err == nil {
			t.Error("expected error")
		}
		if cli.called("add_network") {
			t.Error("nothing should be added when the list cannot be read")
		}
	})
}

const listing = "network id / ssid / bssid / flags\n" +
	"0\tCafe\tany\t[DISABLED]\n" +
	"4\tHome\tany\t\n"

func TestSupplicantStartReusesNetwork(t *testing.T) {
	cli := newScripted("")
	cli.answers["list_networks"] = listing
	s := NewSupplicantStation(cli.run, discard)
	notify, ch := collect()

	if err := s.Start(Config{SSID: "Home", Password: "pw"}, notify); err != nil {
		t.Fatalf("start: %v", err)
	}
	next(t, ch)

	if cli.called("add_network") {
		t.Errorf("existing network should be reused, calls: %v", cli.calls)
	}
	if !cli.called(`set_network 4 psk "pw"`) {
		t.Errorf("password not refreshed on reused network, calls: %v", cli.calls)
	}
}

func TestSupplicantReusedNetworkKeptOnFailure(t *testing.T) {
	cli := newScripted("")
	cli.answers["list_networks"] = listing
	cli.answers["set_network"] = "FAIL"
	s := NewSupplicantStation(cli.run, discard)

	if err := s.Start(Config{SSID: "Home", Password: "pw"}, func(Notification) {}); err == nil {
		t.Fatal("expected error")
	}
	if cli.called("remove_network") {
		t.Error("a network this station did not add must not be removed")
	}
}

func TestSupplicantStartIgnoresStaticAddress(t *testing.T) {
	cli := newScripted("")
	s := NewSupplicantStation(cli.run, discard)
	cfg := Config{
		SSID:     "Home",
		Password: "pw",
		Address:  netip.MustParsePrefix("192.168.0.150/24"),
		Gateway:  netip.MustParseAddr("192.168.0.1"),
	}

	if err := s.Start(cfg, func(Notification) {}); err != nil {
		t.Fatalf("start: %v", err)
	}
	cli.mu.Lock()
	defer cli.mu.Unlock()
	for _, call := range cli.calls {
		if strings.Contains(call, "192.168.0") {
			t.Errorf("static address leaked into supplicant command %q", call)
		}
	}
}

func TestFindNetwork(t *testing.T) {
	for _, tc := range []struct {
		ssid   string
		wantID string
		wantOK bool
	}{
		{"Home", "4", true},
		{"Cafe", "0", true},
		{"Office", "", false},
		{"ssid", "", false},
	} {
		id, ok := findNetwork(listing, tc.ssid)
		if id != tc.wantID || ok != tc.wantOK {
			t.Errorf("%s: got %q %v, want %q %v", tc.ssid, id, ok, tc.wantID, tc.wantOK)
		}
	}
}

func TestSupplicantConnectAcquiresAddress(t *testing.T) {
	cli := newScripted(
		"wpa_state=SCANNING",
		"wpa_state=ASSOCIATING",
		"wpa_state=COMPLETED\nssid=Home",
		"wpa_state=COMPLETED\nip_address=192.168.1.42\nssid=Home",
	)
	s := NewSupplicantStation(cli.run, discard)
	s.StatusPoll = time.Millisecond
	notify, ch := collect()
	s.Start(Config{SSID: "Home", Password: "pw"}, notify)
	next(t, ch)

	s.Connect()
	n := next(t, ch)
	if n.Kind != AddressAcquired {
		t.Fatalf("got %v, want address-acquired", n.Kind)
	}
	if n.Addr.String() != "192.168.1.42" {
		t.Errorf("addr: got %v", n.Addr)
	}
	if !cli.called("select_network 3") {
		t.Error("network not selected")
	}
}

func TestSupplicantConnectTimesOut(t *testing.T) {
	cli := newScripted("wpa_state=SCANNING")
	s := NewSupplicantStation(cli.run, discard)
	s.StatusPoll = time.Millisecond
	s.AttemptTimeout = 20 * time.Millisecond
	notify, ch := collect()
	s.Start(Config{SSID: "Home", Password: "pw"}, notify)
	next(t, ch)

	s.Connect()
	if n := next(t, ch); n.Kind != Disconnected {
		t.Errorf("got %v, want disconnected", n.Kind)
	}
}

func TestSupplicantSelectFailure(t *testing.T) {
	cli := newScripted("wpa_state=COMPLETED\nip_address=10.0.0.2")
	cli.answers["select_network"] = "FAIL"
	s := NewSupplicantStation(cli.run, discard)
	notify, ch := collect()
	s.Start(Config{SSID: "Home", Password: "pw"}, notify)
	next(t, ch)

	s.Connect()
	if n := next(t, ch); n.Kind != Disconnected {
		t.Errorf("got %v, want disconnected", n.Kind)
	}
}

// The manager and supplicant together: a rejected network exhausts retries.
func TestSupplicantWithManagerFails(t *testing.T) {
	cli := newScripted("wpa_state=SCANNING")
	cli.answers["select_network"] = "FAIL"
	s := NewSupplicantStation(cli.run, discard)
	m := NewManager(s, discard)

	if err := m.Start(Config{SSID: "Home", Password: "pw"}); err != nil {
		t.Fatalf("start: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	o, err := m.Wait(ctx)
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if o != OutcomeFailed {
		t.Errorf("got %v, want failed", o)
	}
}

func TestParseStatus(t *testing.T) {
	out := "bssid=aa:bb:cc:dd:ee:ff\nfreq=2437\nssid=Home\nwpa_state=COMPLETED\nip_address=192.168.1.42\nmalformed line"
	st := parseStatus(out)

	if st["wpa_state"] != "COMPLETED" {
		t.Errorf("wpa_state: got %q", st["wpa_state"])
	}
	if st["ip_address"] != "192.168.1.42" {
		t.Errorf("ip_address: got %q", st["ip_address"])
	}
	if len(st) != 5 {
		t.Errorf("got %d keys, want 5", len(st))
	}
}

func TestQuote(t *testing.T) {
	if got := quote(`my "net"`); got != `"my \"net\""` {
		t.Errorf("got %s", got)
	}
}
