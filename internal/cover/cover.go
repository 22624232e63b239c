package cover

import (
	"context"
)

const (
	OpenState    = "open"
	ClosedState  = "closed"
	OpeningState = "opening"
	ClosingState = "closing"
)

type UpdateHandler func(state string, position int)

type Cover interface {
	Name() string
	FullOpenPosition() int
	FullClosePosition() int

	Position() int
	State() string

	OnUpdate(h UpdateHandler)

	Open(ctx context.Context) error
	Close(ctx context.Context) error
	Stop(ctx context.Context) error
	SetPosition(ctx context.Context, position int) error
}

// StatelessCover is a cover whose position is estimated rather than read
// back from hardware. Its position can be seeded from an external source,
// typically a retained MQTT message from a previous run.
type StatelessCover interface {
	Cover

	ResetPosition(position int) error
}

// Nudger is implemented by covers supporting short jog movements that do
// not affect the estimated position.
type Nudger interface {
	NudgeOpen(ctx context.Context) error
	NudgeClose(ctx context.Context) error
}
