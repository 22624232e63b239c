package inelnet

import "strconv"

// Action is a motion command code understood by the InelNET controller.
// The codes are fixed by the controller firmware.
type Action int

const (
	ActionUp        Action = 160
	ActionUpShort   Action = 176
	ActionStop      Action = 144
	ActionDown      Action = 192
	ActionDownShort Action = 208

	// ActionProgram puts a channel into pairing mode. Reserved for
	// manual maintenance, never sent by the client wrappers.
	ActionProgram Action = 224
)

func (a Action) String() string {
	switch a {
	case ActionUp:
		return "up"
	case ActionUpShort:
		return "up_short"
	case ActionStop:
		return "stop"
	case ActionDown:
		return "down"
	case ActionDownShort:
		return "down_short"
	case ActionProgram:
		return "program"
	}
	return strconv.Itoa(int(a))
}

// ActionFromCode validates a raw numeric code coming from a passthrough
// command. ActionProgram is deliberately not accepted.
func ActionFromCode(code int) (Action, bool) {
	switch a := Action(code); a {
	case ActionUp, ActionUpShort, ActionStop, ActionDown, ActionDownShort:
		return a, true
	}
	return 0, false
}
