package inelnet

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jkaflik/inelnet2mqtt/internal/metrics"
)

const (
	DefaultProbeInterval = time.Minute

	// A single failed probe is not user visible; the controller's
	// embedded HTTP stack drops requests now and then.
	offlineAfterFailures = 3
)

type ConnectivityHandler func(online bool)

type connectionProber interface {
	TestConnection(ctx context.Context) bool
}

// Monitor periodically probes the controller and reports a debounced
// online/offline state. It flips to offline only after several
// consecutive probe failures to avoid flapping.
type Monitor struct {
	prober   connectionProber
	name     string
	interval time.Duration

	mu       sync.Mutex
	handler  ConnectivityHandler
	online   bool
	failures int
}

func NewMonitor(prober connectionProber, name string, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = DefaultProbeInterval
	}

	return &Monitor{
		prober:   prober,
		name:     name,
		interval: interval,
		online:   true,
	}
}

func (m *Monitor) OnChange(h ConnectivityHandler) {
	m.mu.Lock()
	m.handler = h
	m.mu.Unlock()
}

func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Run probes until ctx is done. It blocks; run it on its own goroutine.
func (m *Monitor) Run(ctx context.Context) {
	m.Check(ctx)

	t := time.NewTicker(m.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			m.Check(ctx)
		}
	}
}

func (m *Monitor) Check(ctx context.Context) {
	reachable := m.prober.TestConnection(ctx)

	m.mu.Lock()
	var changed bool
	if reachable {
		m.failures = 0
		if !m.online {
			logrus.Infof("%s: controller is back online", m.name)
			m.online = true
			changed = true
		}
	} else {
		m.failures++
		logrus.Debugf("%s: connectivity probe failed (%d consecutive)", m.name, m.failures)
		if m.online && m.failures >= offlineAfterFailures {
			logrus.Warnf("%s: controller appears offline", m.name)
			m.online = false
			changed = true
		}
	}
	online, h := m.online, m.handler
	m.mu.Unlock()

	if online {
		metrics.ControllerOnline.Set(1)
	} else {
		metrics.ControllerOnline.Set(0)
	}

	if changed && h != nil {
		h(online)
	}
}
