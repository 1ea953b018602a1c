package wifi

import "sync"

// FakeStation is a test double. It records calls; tests deliver
// notifications themselves through Notify.
type FakeStation struct {
	mu       sync.Mutex
	notify   NotifyFunc
	cfg      Config
	started  bool
	connects int

	// StartError, if set, will be returned by Start.
	StartError error

	// AutoStart delivers StationStarted from a new goroutine after Start.
	AutoStart bool
}

// NewFakeStation creates a FakeStation.
func NewFakeStation() *FakeStation {
	return &FakeStation{}
}

// Start records cfg and the notify callback.
func (f *FakeStation) Start(cfg Config, notify NotifyFunc) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.StartError != nil {
		return f.StartError
	}
	f.cfg = cfg
	f.notify = notify
	f.started = true
	if f.AutoStart {
		go notify(Notification{Kind: StationStarted})
	}
	return nil
}

// Connect counts association attempts.
func (f *FakeStation) Connect() {
	f.mu.Lock()
	f.connects++
	f.mu.Unlock()
}

// Notify delivers n to the registered callback, as the driver would.
func (f *FakeStation) Notify(n Notification) {
	f.mu.Lock()
	notify := f.notify
	f.mu.Unlock()
	if notify != nil {
		notify(n)
	}
}

// Started reports whether Start succeeded.
func (f *FakeStation) Started() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.started
}

// Connects returns the number of Connect calls.
func (f *FakeStation) Connects() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connects
}

// Config returns the configuration passed to Start.
func (f *FakeStation) Config() Config {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cfg
}
