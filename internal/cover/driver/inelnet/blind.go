package inelnet

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/jkaflik/inelnet2mqtt/internal/cover"
	"github.com/jkaflik/inelnet2mqtt/internal/metrics"
)

const (
	fullOpenPosition  = 100
	fullClosePosition = 0

	// Position requests closer than this to the current estimate are
	// dropped to avoid chattering the motor on imprecise requests.
	positionDeadband = 3

	// The estimate drifts, so "closed" is a near-zero band rather than
	// an exact zero.
	closedThreshold = 2

	noTarget = -1
)

type direction int

const (
	directionUp direction = iota + 1
	directionDown
)

// movement is an in-flight motion record. The blind's estimated position
// is computed from it, never stored, until the movement ends. A movement
// value is never mutated after creation; deferred tasks compare pointers
// to detect they have been superseded.
type movement struct {
	direction     direction
	startTime     time.Time
	startPosition int
	target        int // noTarget when moving to a hard limit
}

// duration is how long the motor runs. Targeted movements are cut short
// proportionally to the distance; limit movements run the full travel
// time so the blind is guaranteed to reach the end stop.
func (m *movement) duration(travelTime time.Duration) time.Duration {
	if m.target == noTarget {
		return travelTime
	}

	distance := m.target - m.startPosition
	if distance < 0 {
		distance = -distance
	}
	return travelTime * time.Duration(distance) / 100
}

func (m *movement) endPosition() int {
	if m.target != noTarget {
		return m.target
	}
	if m.direction == directionUp {
		return fullOpenPosition
	}
	return fullClosePosition
}

func (m *movement) projectedAt(now time.Time, travelTime time.Duration) int {
	d := m.duration(travelTime)
	if d <= 0 {
		return m.endPosition()
	}

	progress := float64(now.Sub(m.startTime)) / float64(d)
	if progress < 0 {
		progress = 0
	}
	if progress > 1 {
		progress = 1
	}

	end := m.endPosition()
	pos := int(float64(m.startPosition) + float64(end-m.startPosition)*progress)
	if pos < fullClosePosition {
		pos = fullClosePosition
	}
	if pos > fullOpenPosition {
		pos = fullOpenPosition
	}
	return pos
}

type BlindConfig struct {
	Channel    int
	Name       string
	TravelTime time.Duration
	Facade     string
	Floor      string
	Shaded     bool
}

// Blind is a single InelNET channel with a time-extrapolated position
// estimate. The controller reports nothing back, so position is modeled
// from elapsed motion time against the configured travel time.
type Blind struct {
	client *Client
	clock  Clock

	channel    int
	name       string
	travelTime time.Duration
	facade     string
	floor      string
	shaded     bool

	mu            sync.Mutex
	position      int
	movement      *movement
	updateHandler cover.UpdateHandler
}

func NewBlind(client *Client, clock Clock, cfg BlindConfig) *Blind {
	if clock == nil {
		clock = SystemClock
	}

	return &Blind{
		client:     client,
		clock:      clock,
		channel:    cfg.Channel,
		name:       cfg.Name,
		travelTime: cfg.TravelTime,
		facade:     cfg.Facade,
		floor:      cfg.Floor,
		shaded:     cfg.Shaded,
		// The real position is unknown until the first full movement
		// or a retained-position restore.
		position: 50,
	}
}

func (b *Blind) Name() string              { return b.name }
func (b *Blind) Channel() int              { return b.channel }
func (b *Blind) TravelTime() time.Duration { return b.travelTime }
func (b *Blind) Facade() string            { return b.facade }
func (b *Blind) Floor() string             { return b.floor }
func (b *Blind) Shaded() bool              { return b.shaded }
func (b *Blind) FullOpenPosition() int     { return fullOpenPosition }
func (b *Blind) FullClosePosition() int    { return fullClosePosition }

func (b *Blind) OnUpdate(h cover.UpdateHandler) {
	b.mu.Lock()
	b.updateHandler = h
	b.mu.Unlock()
}

// Position returns the estimated position, projected from elapsed time
// while a movement is in flight. 100 is fully open.
func (b *Blind) Position() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.projectedLocked()
}

func (b *Blind) projectedLocked() int {
	if b.movement == nil {
		return b.position
	}
	return b.movement.projectedAt(b.clock.Now(), b.travelTime)
}

func (b *Blind) State() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stateLocked()
}

func (b *Blind) stateLocked() string {
	if b.movement != nil {
		if b.movement.direction == directionUp {
			return cover.OpeningState
		}
		return cover.ClosingState
	}
	if b.position <= closedThreshold {
		return cover.ClosedState
	}
	return cover.OpenState
}

func (b *Blind) IsOpening() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.movement != nil && b.movement.direction == directionUp
}

func (b *Blind) IsClosing() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.movement != nil && b.movement.direction == directionDown
}

func (b *Blind) IsClosed() bool {
	return b.Position() <= closedThreshold
}

// ResetPosition seeds the estimate from an external source, typically a
// retained MQTT message left by a previous run.
func (b *Blind) ResetPosition(position int) error {
	if position < fullClosePosition || position > fullOpenPosition {
		return errors.Errorf("%s: %d is out of range for position restore", b.name, position)
	}

	b.mu.Lock()
	if b.movement != nil {
		b.mu.Unlock()
		return errors.Errorf("%s: cannot restore position while moving", b.name)
	}
	b.position = position
	state, pos := b.stateLocked(), b.position
	b.mu.Unlock()

	b.notify(state, pos)
	return nil
}

func (b *Blind) Open(ctx context.Context) error {
	logrus.Infof("%s: open", b.name)

	b.freezeMovement()
	if !b.client.OpenCover(ctx, b.channel) {
		return errors.Errorf("%s: controller did not accept up command for channel %d", b.name, b.channel)
	}

	b.startMovement(directionUp, noTarget)
	return nil
}

func (b *Blind) Close(ctx context.Context) error {
	logrus.Infof("%s: close", b.name)

	b.freezeMovement()
	if !b.client.CloseCover(ctx, b.channel) {
		return errors.Errorf("%s: controller did not accept down command for channel %d", b.name, b.channel)
	}

	b.startMovement(directionDown, noTarget)
	return nil
}

func (b *Blind) Stop(ctx context.Context) error {
	logrus.Infof("%s: stop", b.name)

	if !b.client.StopCover(ctx, b.channel) {
		return errors.Errorf("%s: controller did not accept stop command for channel %d", b.name, b.channel)
	}

	b.freezeMovement()
	return nil
}

// SetPosition moves the blind to a target position. The controller has
// no native go-to-position primitive, so the blind starts a directional
// movement and a deferred task sends STOP once the extrapolated time
// elapses.
func (b *Blind) SetPosition(ctx context.Context, target int) error {
	logrus.Infof("%s: set position to %d", b.name, target)

	if target < fullClosePosition || target > fullOpenPosition {
		return errors.Errorf(
			"%s: %d is out of range open/close position for (%d/%d)",
			b.name, target, fullOpenPosition, fullClosePosition,
		)
	}

	current := b.Position()
	delta := target - current
	if delta < 0 {
		delta = -delta
	}
	if delta < positionDeadband {
		logrus.Debugf("%s: already close enough to %d (at %d)", b.name, target, current)
		return nil
	}

	b.freezeMovement()

	b.mu.Lock()
	current = b.position
	b.mu.Unlock()

	dir := directionUp
	send := b.client.OpenCover
	if target < current {
		dir = directionDown
		send = b.client.CloseCover
	}

	if !send(ctx, b.channel) {
		return errors.Errorf("%s: controller did not accept move command for channel %d", b.name, b.channel)
	}

	b.startMovement(dir, target)
	return nil
}

func (b *Blind) NudgeOpen(ctx context.Context) error {
	logrus.Infof("%s: nudge open", b.name)
	if !b.client.OpenCoverShort(ctx, b.channel) {
		return errors.Errorf("%s: controller did not accept short up command for channel %d", b.name, b.channel)
	}
	return nil
}

func (b *Blind) NudgeClose(ctx context.Context) error {
	logrus.Infof("%s: nudge close", b.name)
	if !b.client.CloseCoverShort(ctx, b.channel) {
		return errors.Errorf("%s: controller did not accept short down command for channel %d", b.name, b.channel)
	}
	return nil
}

// startMovement begins extrapolating and schedules the movement finisher.
// An update is emitted immediately so consumers see the direction change
// before any estimated position drift.
func (b *Blind) startMovement(dir direction, target int) {
	b.mu.Lock()
	m := &movement{
		direction:     dir,
		startTime:     b.clock.Now(),
		startPosition: b.position,
		target:        target,
	}
	b.movement = m
	d := m.duration(b.travelTime)
	state, pos := b.stateLocked(), b.position
	b.mu.Unlock()

	b.notify(state, pos)

	if d <= 0 {
		b.finishMovement(m)
		return
	}

	logrus.Debugf("%s: movement for %s scheduled", b.name, d)
	b.clock.Schedule(d, func() {
		b.finishMovement(m)
	})
}

// finishMovement settles a movement at its end position once its time has
// elapsed. Stale timers detect supersession by pointer identity and do
// nothing. Targeted movements additionally send STOP, because only the
// elapsed-time model knows when the blind passes the requested position.
func (b *Blind) finishMovement(m *movement) {
	b.mu.Lock()
	if b.movement != m {
		b.mu.Unlock()
		return
	}
	b.mu.Unlock()

	if m.target != noTarget {
		ctx, cancel := context.WithTimeout(context.Background(), b.client.timeout*time.Duration(b.client.retries+1))
		defer cancel()
		if !b.client.StopCover(ctx, b.channel) {
			logrus.Warnf("%s: scheduled stop not accepted, blind may overrun target %d", b.name, m.target)
		}
	}

	b.mu.Lock()
	if b.movement != m {
		// Superseded while the stop command was on the wire.
		b.mu.Unlock()
		return
	}
	b.position = m.endPosition()
	b.movement = nil
	runtime := m.duration(b.travelTime)
	state, pos := b.stateLocked(), b.position
	b.mu.Unlock()

	metrics.CoverRuntimeSeconds.WithLabelValues(b.name).Add(runtime.Seconds())
	logrus.Infof("%s: movement finished, state %s, position %d", b.name, state, pos)
	b.notify(state, pos)
}

// freezeMovement stops extrapolating and stores the projected position.
// It does not talk to the controller; callers decide whether a STOP goes
// on the wire.
func (b *Blind) freezeMovement() {
	b.mu.Lock()
	m := b.movement
	if m == nil {
		b.mu.Unlock()
		return
	}

	now := b.clock.Now()
	b.position = m.projectedAt(now, b.travelTime)
	b.movement = nil

	runtime := now.Sub(m.startTime)
	if d := m.duration(b.travelTime); runtime > d {
		runtime = d
	}
	state, pos := b.stateLocked(), b.position
	b.mu.Unlock()

	metrics.CoverRuntimeSeconds.WithLabelValues(b.name).Add(runtime.Seconds())
	b.notify(state, pos)
}

func (b *Blind) notify(state string, position int) {
	metrics.CoverPosition.WithLabelValues(b.name).Set(float64(position))
	moving := 0.0
	if state == cover.OpeningState || state == cover.ClosingState {
		moving = 1
	}
	metrics.CoverMoving.WithLabelValues(b.name).Set(moving)

	b.mu.Lock()
	h := b.updateHandler
	b.mu.Unlock()
	if h != nil {
		h(state, position)
	}
}
