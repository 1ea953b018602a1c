package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sweeney/room-sensor/internal/settings"
	"github.com/sweeney/room-sensor/internal/status"
	"github.com/sweeney/room-sensor/internal/wifi"
)

const hostname = "room-sensor"

// connectNetwork starts the connectivity manager and blocks until the link is
// up or has definitively failed. An empty SSID skips the manager and the
// wait entirely. timeout <= 0 waits forever.
//
// If the wait times out the manager keeps trying; the final outcome is sent
// on the returned channel once known (or never, if ctx ends first). The
// channel is nil when no outcome is outstanding. A station that cannot be
// started is an error.
func connectNetwork(ctx context.Context, station wifi.Station, n settings.Network, timeout time.Duration, logger *slog.Logger) (status.Connectivity, <-chan status.Connectivity, error) {
	conn := status.Connectivity{SSID: n.SSID}
	if n.SSID == "" {
		logger.Warn("no network name configured, networking disabled")
		conn.Outcome = "disabled"
		return conn, nil, nil
	}

	m := wifi.NewManager(station, logger)
	err := m.Start(wifi.Config{
		SSID:     n.SSID,
		Password: n.Password,
		Hostname: hostname,
		Address:  n.Address,
		Gateway:  n.Gateway,
	})
	if err != nil {
		return conn, nil, fmt.Errorf("start wifi: %w", err)
	}

	waitCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	outcome, err := m.Wait(waitCtx)
	conn = connectivity(m, n.SSID, outcome)
	switch {
	case err != nil && errors.Is(err, context.DeadlineExceeded):
		logger.Warn("gave up waiting for network, still trying", "timeout", timeout)
		late := make(chan status.Connectivity, 1)
		go func() {
			o, err := m.Wait(ctx)
			if err != nil {
				return
			}
			late <- connectivity(m, n.SSID, o)
		}()
		return conn, late, nil
	case err != nil:
		logger.Warn("network wait interrupted", "err", err)
	case outcome == wifi.OutcomeConnected:
		logger.Info("connected", "ssid", n.SSID, "ip", conn.IP)
	default:
		logger.Error("failed to connect", "ssid", n.SSID, "retries", wifi.MaxRetries)
	}
	return conn, nil, nil
}

func connectivity(m *wifi.Manager, ssid string, o wifi.Outcome) status.Connectivity {
	c := status.Connectivity{Outcome: o.String(), SSID: ssid}
	if o == wifi.OutcomeConnected {
		c.IP = m.Addr().String()
	}
	return c
}
