package hybrid

import (
	"context"
	"sync"
	"time"
)

// DefaultPollInterval is how often the monitor probes the remote
const DefaultPollInterval = 30 * time.Second

// Monitor polls the remote in the background so the online state stays
// current between user actions
type Monitor struct {
	store        *Store
	pollInterval time.Duration
	timeout      time.Duration
	stopCh       chan struct{}
	stopOnce     sync.Once
	wg           sync.WaitGroup
}

// NewMonitor creates a monitor. A zero interval uses DefaultPollInterval.
func NewMonitor(store *Store, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Monitor{
		store:        store,
		pollInterval: interval,
		timeout:      10 * time.Second,
		stopCh:       make(chan struct{}),
	}
}

// Start probes once immediately and then on every tick until Stop
func (m *Monitor) Start() {
	m.wg.Add(1)
	go m.pollLoop()
}

func (m *Monitor) pollLoop() {
	defer m.wg.Done()

	m.probe()

	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.probe()
		case <-m.stopCh:
			return
		}
	}
}

func (m *Monitor) probe() {
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()
	m.store.HealthCheck(ctx)
}

// Stop ends polling and waits for an in-flight probe
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
	m.wg.Wait()
}
