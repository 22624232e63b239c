package inelnet

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeProber struct {
	results []bool
}

func (p *fakeProber) TestConnection(context.Context) bool {
	if len(p.results) == 0 {
		return false
	}
	r := p.results[0]
	if len(p.results) > 1 {
		p.results = p.results[1:]
	}
	return r
}

func TestMonitorDebouncesOffline(t *testing.T) {
	ctx := context.Background()

	prober := &fakeProber{results: []bool{false}}
	m := NewMonitor(prober, "test", time.Minute)

	var changes []bool
	m.OnChange(func(online bool) { changes = append(changes, online) })

	m.Check(ctx)
	m.Check(ctx)
	assert.True(t, m.Online(), "two failures are not enough to report offline")
	assert.Empty(t, changes)

	m.Check(ctx)
	assert.False(t, m.Online())
	assert.Equal(t, []bool{false}, changes)

	// Staying offline does not re-fire the handler.
	m.Check(ctx)
	assert.Equal(t, []bool{false}, changes)
}

func TestMonitorRecovers(t *testing.T) {
	ctx := context.Background()

	prober := &fakeProber{results: []bool{false, false, false, true}}
	m := NewMonitor(prober, "test", time.Minute)

	var changes []bool
	m.OnChange(func(online bool) { changes = append(changes, online) })

	m.Check(ctx)
	m.Check(ctx)
	m.Check(ctx)
	assert.False(t, m.Online())

	m.Check(ctx)
	assert.True(t, m.Online())
	assert.Equal(t, []bool{false, true}, changes)
}

func TestMonitorSingleFailureResets(t *testing.T) {
	ctx := context.Background()

	prober := &fakeProber{results: []bool{false, true, false, true, false, true}}
	m := NewMonitor(prober, "test", time.Minute)

	var changes []bool
	m.OnChange(func(online bool) { changes = append(changes, online) })

	for i := 0; i < 6; i++ {
		m.Check(ctx)
	}

	assert.True(t, m.Online(), "isolated failures never become user visible")
	assert.Empty(t, changes)
}
