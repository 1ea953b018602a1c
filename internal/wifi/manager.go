package wifi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/netip"
	"sync"
)

// MaxRetries is the number of reconnect attempts after the first one.
const MaxRetries = 5

// State is the association state.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateConnected
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Outcome is the result reported to the starter.
type Outcome int

const (
	OutcomePending Outcome = iota
	OutcomeConnected
	OutcomeFailed
	OutcomeTimedOut // the wait gave up; never stored in the Signal
)

func (o Outcome) String() string {
	switch o {
	case OutcomePending:
		return "pending"
	case OutcomeConnected:
		return "connected"
	case OutcomeFailed:
		return "failed"
	case OutcomeTimedOut:
		return "timed-out"
	}
	return "unknown"
}

// Manager drives one station through association with bounded retry.
// Connected and Failed are terminal for the life of the Manager.
type Manager struct {
	station Station
	signal  *Signal
	logger  *slog.Logger

	mu      sync.Mutex
	started bool
	ssid    string
	state   State
	retries int
	addr    netip.Addr
}

// NewManager creates a Manager for station.
func NewManager(station Station, logger *slog.Logger) *Manager {
	return &Manager{
		station: station,
		signal:  NewSignal(),
		logger:  logger,
	}
}

// Start initializes the station. The Manager then reacts to the station's
// notifications until a terminal state is reached.
func (m *Manager) Start(cfg Config) error {
	if cfg.SSID == "" {
		return ErrNoSSID
	}

	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return errors.New("wifi: manager already started")
	}
	m.started = true
	m.ssid = cfg.SSID
	m.mu.Unlock()

	m.logger.Info("starting station", "ssid", cfg.SSID, "password_len", len(cfg.Password))
	if err := m.station.Start(cfg, m.Handle); err != nil {
		return fmt.Errorf("start station: %w", err)
	}
	return nil
}

// Handle applies one notification to the state machine. Stations call it
// from their own goroutine.
func (m *Manager) Handle(n Notification) {
	connect := m.transition(n)
	if connect {
		m.station.Connect()
	}
}

// transition updates state under the lock and reports whether a connect
// attempt must be issued.
func (m *Manager) transition(n Notification) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.logger.Debug("notification", "kind", n.Kind.String(), "state", m.state.String())

	switch n.Kind {
	case StationStarted:
		if m.state != StateIdle {
			return false
		}
		m.state = StateConnecting
		m.logger.Info("connecting to access point", "ssid", m.ssid)
		return true

	case Disconnected:
		if m.state != StateConnecting {
			return false
		}
		if m.retries < MaxRetries {
			m.retries++
			m.logger.Info("retry to connect to the access point", "attempt", m.retries, "max", MaxRetries)
			return true
		}
		m.state = StateFailed
		m.signal.Set(FlagFailed)
		m.logger.Error("connect to the access point failed", "ssid", m.ssid, "retries", m.retries)
		return false

	case AddressAcquired:
		m.retries = 0
		if m.state != StateConnecting {
			return false
		}
		m.state = StateConnected
		m.addr = n.Addr
		m.signal.Set(FlagConnected)
		m.logger.Info("got ip", "addr", n.Addr.String(), "ssid", m.ssid)
		return false
	}

	m.logger.Warn("unknown notification", "kind", int(n.Kind))
	return false
}

// Wait blocks until the outcome is known or ctx is done, in which case it
// returns OutcomeTimedOut with ctx's error.
func (m *Manager) Wait(ctx context.Context) (Outcome, error) {
	bits, err := m.signal.Wait(ctx, FlagConnected|FlagFailed)
	if err != nil {
		return OutcomeTimedOut, err
	}
	return outcomeOf(bits), nil
}

// Outcome returns the current outcome without blocking.
func (m *Manager) Outcome() Outcome {
	return outcomeOf(m.signal.Bits())
}

func outcomeOf(bits Flags) Outcome {
	switch {
	case bits&FlagConnected != 0:
		return OutcomeConnected
	case bits&FlagFailed != 0:
		return OutcomeFailed
	}
	return OutcomePending
}

// State returns the current association state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// retryCount returns the retry counter. Only tests read it.
func (m *Manager) retryCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.retries
}

// Addr returns the address acquired on connection.
func (m *Manager) Addr() netip.Addr {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.addr
}
