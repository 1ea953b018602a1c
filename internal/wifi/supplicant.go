//go:build !rp2350

package wifi

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/netip"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Supplicant attempt timing.
const (
	DefaultAttemptTimeout = 15 * time.Second
	DefaultStatusPoll     = 500 * time.Millisecond
)

// CommandRunner runs wpa_cli with args and returns its standard output.
type CommandRunner func(ctx context.Context, args ...string) ([]byte, error)

// WPACLI returns a CommandRunner that talks to wpa_supplicant on iface.
func WPACLI(iface string) CommandRunner {
	return func(ctx context.Context, args ...string) ([]byte, error) {
		full := append([]string{"-i", iface}, args...)
		return exec.CommandContext(ctx, "wpa_cli", full...).Output()
	}
}

// SupplicantStation drives a Linux wireless interface through wpa_supplicant.
// Association is handled by the supplicant and addressing by the system's
// DHCP client; the station watches `wpa_cli status` for the outcome.
//
// Config.Address and Config.Gateway are not applied: a static address on
// Linux belongs to the host's network configuration, not to this process.
// A network block already registered for the SSID is reused, so restarts
// do not accumulate entries in the supplicant.
type SupplicantStation struct {
	run    CommandRunner
	logger *slog.Logger

	// AttemptTimeout bounds a single association attempt.
	AttemptTimeout time.Duration
	// StatusPoll is the interval between status queries.
	StatusPoll time.Duration

	mu     sync.Mutex
	notify NotifyFunc
	netID  string
}

// NewSupplicantStation creates a station using run to reach wpa_supplicant.
func NewSupplicantStation(run CommandRunner, logger *slog.Logger) *SupplicantStation {
	return &SupplicantStation{
		run:            run,
		logger:         logger,
		AttemptTimeout: DefaultAttemptTimeout,
		StatusPoll:     DefaultStatusPoll,
	}
}

func (s *SupplicantStation) cli(ctx context.Context, args ...string) (string, error) {
	out, err := s.run(ctx, args...)
	if err != nil {
		return "", fmt.Errorf("wpa_cli %s: %w", args[0], err)
	}
	return strings.TrimSpace(string(out)), nil
}

func (s *SupplicantStation) expectOK(ctx context.Context, args ...string) error {
	out, err := s.cli(ctx, args...)
	if err != nil {
		return err
	}
	if out != "OK" {
		return fmt.Errorf("wpa_cli %s: %s", args[0], out)
	}
	return nil
}

// Start registers the network with wpa_supplicant without selecting it.
func (s *SupplicantStation) Start(cfg Config, notify NotifyFunc) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if out, err := s.cli(ctx, "ping"); err != nil {
		return err
	} else if out != "PONG" {
		return fmt.Errorf("wpa_supplicant not responding: %q", out)
	}

	if cfg.Address.IsValid() || cfg.Gateway.IsValid() {
		s.logger.Debug("static address ignored, left to the system DHCP client",
			"address", cfg.Address, "gateway", cfg.Gateway)
	}

	id, added, err := s.networkID(ctx, cfg.SSID)
	if err != nil {
		return err
	}
	if err := s.configure(ctx, id, cfg); err != nil {
		if added {
			if rmErr := s.expectOK(ctx, "remove_network", id); rmErr != nil {
				s.logger.Warn("remove network failed", "id", id, "err", rmErr)
			}
		}
		return err
	}

	s.mu.Lock()
	s.netID = id
	s.notify = notify
	s.mu.Unlock()

	s.logger.Debug("network registered", "id", id, "reused", !added)
	go notify(Notification{Kind: StationStarted})
	return nil
}

// networkID returns the id of the supplicant's network block for ssid,
// adding one if none exists. added reports whether a block was created.
func (s *SupplicantStation) networkID(ctx context.Context, ssid string) (id string, added bool, err error) {
	out, err := s.cli(ctx, "list_networks")
	if err != nil {
		return "", false, err
	}
	if id, ok := findNetwork(out, ssid); ok {
		return id, false, nil
	}
	id, err = s.cli(ctx, "add_network")
	if err != nil {
		return "", false, err
	}
	return id, true, nil
}

func (s *SupplicantStation) configure(ctx context.Context, id string, cfg Config) error {
	if err := s.expectOK(ctx, "set_network", id, "ssid", quote(cfg.SSID)); err != nil {
		return err
	}
	if cfg.Password == "" {
		return s.expectOK(ctx, "set_network", id, "key_mgmt", "NONE")
	}
	return s.expectOK(ctx, "set_network", id, "psk", quote(cfg.Password))
}

// Connect selects the network and watches the supplicant state in the
// background until the attempt completes or times out.
func (s *SupplicantStation) Connect() {
	s.mu.Lock()
	id, notify := s.netID, s.notify
	s.mu.Unlock()

	go func() {
		notify(s.attempt(id))
	}()
}

func (s *SupplicantStation) attempt(id string) Notification {
	ctx, cancel := context.WithTimeout(context.Background(), s.AttemptTimeout)
	defer cancel()

	if err := s.expectOK(ctx, "select_network", id); err != nil {
		s.logger.Warn("select network failed", "err", err)
		return Notification{Kind: Disconnected}
	}

	ticker := time.NewTicker(s.StatusPoll)
	defer ticker.Stop()
	for {
		out, err := s.cli(ctx, "status")
		if err == nil {
			st := parseStatus(out)
			if st["wpa_state"] == "COMPLETED" {
				if addr, err := netip.ParseAddr(st["ip_address"]); err == nil {
					return Notification{Kind: AddressAcquired, Addr: addr}
				}
			}
		}

		select {
		case <-ctx.Done():
			return Notification{Kind: Disconnected}
		case <-ticker.C:
		}
	}
}

// parseStatus splits `wpa_cli status` output into key/value pairs.
func parseStatus(out string) map[string]string {
	st := make(map[string]string)
	sc := bufio.NewScanner(bytes.NewBufferString(out))
	for sc.Scan() {
		k, v, ok := strings.Cut(sc.Text(), "=")
		if ok {
			st[strings.TrimSpace(k)] = strings.TrimSpace(v)
		}
	}
	return st
}

// findNetwork scans `wpa_cli list_networks` output (a header line, then
// tab-separated id, ssid, bssid, flags) for ssid.
func findNetwork(out, ssid string) (string, bool) {
	sc := bufio.NewScanner(bytes.NewBufferString(out))
	for sc.Scan() {
		fields := strings.Split(sc.Text(), "\t")
		if len(fields) < 2 {
			continue
		}
		if _, err := strconv.Atoi(fields[0]); err != nil {
			continue
		}
		if fields[1] == ssid {
			return fields[0], true
		}
	}
	return "", false
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}
