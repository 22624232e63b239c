package solar

import (
	"context"
	"sync"
	"time"

	"github.com/nathan-osman/go-sunrise"
	"github.com/sirupsen/logrus"

	"github.com/jkaflik/inelnet2mqtt/internal/metrics"
)

const DefaultUpdateInterval = 15 * time.Minute

type SunProvider interface {
	SunPosition(ctx context.Context) (SunPosition, error)
}

// Blind is the slice of a cover the tracker needs: where it is and which
// way it faces.
type Blind interface {
	Name() string
	Position() int
	Facade() string
	Shaded() bool
}

type Report struct {
	Exposures       map[string]int
	SavingsTotalKWh float64
}

type ReportHandler func(Report)

// Tracker periodically computes per-facade solar exposure and a rough
// estimate of cooling energy saved by closed blinds. The astronomy API
// is only consulted between sunrise and sunset; at night every facade
// reports zero without a network round-trip.
type Tracker struct {
	sun       SunProvider
	blinds    []Blind
	latitude  float64
	longitude float64
	interval  time.Duration

	mu           sync.Mutex
	handler      ReportHandler
	savingsTotal float64
}

func NewTracker(sun SunProvider, blinds []Blind, latitude, longitude float64, interval time.Duration) *Tracker {
	if interval <= 0 {
		interval = DefaultUpdateInterval
	}

	return &Tracker{
		sun:       sun,
		blinds:    blinds,
		latitude:  latitude,
		longitude: longitude,
		interval:  interval,
	}
}

func (t *Tracker) OnReport(h ReportHandler) {
	t.mu.Lock()
	t.handler = h
	t.mu.Unlock()
}

// Run updates until ctx is done. It blocks; run it on its own goroutine.
func (t *Tracker) Run(ctx context.Context) {
	t.Update(ctx, time.Now())

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.Update(ctx, time.Now())
		}
	}
}

func (t *Tracker) Update(ctx context.Context, now time.Time) {
	var sun SunPosition

	if t.isDaylight(now) {
		pos, err := t.sun.SunPosition(ctx)
		if err != nil {
			logrus.Warnf("solar: sun position unavailable, skipping update: %s", err)
			return
		}
		sun = pos
	}

	exposures := make(map[string]int, len(Facades))
	for _, facade := range Facades {
		angle, _ := FacadeAngle(facade)
		exposures[facade] = Exposure(angle, sun.Azimuth, sun.Elevation)
		metrics.SolarExposure.WithLabelValues(facade).Set(float64(exposures[facade]))
	}

	var increment float64
	for _, blind := range t.blinds {
		if blind.Shaded() {
			continue
		}
		exposure, ok := exposures[blind.Facade()]
		if !ok {
			continue
		}
		increment += SavingsIncrement(blind.Position(), exposure, t.interval.Seconds())
	}
	metrics.EnergySavingsKWh.Add(increment)

	t.mu.Lock()
	t.savingsTotal += increment
	report := Report{Exposures: exposures, SavingsTotalKWh: t.savingsTotal}
	h := t.handler
	t.mu.Unlock()

	if h != nil {
		h(report)
	}
}

func (t *Tracker) isDaylight(now time.Time) bool {
	utc := now.UTC()
	rise, set := sunrise.SunriseSunset(t.latitude, t.longitude, utc.Year(), utc.Month(), utc.Day())
	if rise.IsZero() || set.IsZero() {
		// Polar day/night; let the elevation from the API decide.
		return true
	}

	return utc.After(rise) && utc.Before(set)
}
