package teleop

import (
	"github.com/muurk/rover/internal/actuator"
	"github.com/muurk/rover/internal/protocol"
)

// Step sizes for one key press.
const (
	SpeedStep    = 10
	SteeringStep = 15
	AuxStep      = 10
	maxAngle     = 90
)

// Action is one operator input.
type Action int

const (
	Faster Action = iota
	Slower
	SteerLeft
	SteerRight
	Center
	AuxDown
	AuxUp
	Stop
	Revert
)

// Frame is one frame to send for an action.
type Frame struct {
	Event   protocol.EventTag
	Control protocol.ControlTag
	Value   int16
}

// IsEvent reports whether the frame is an event frame.
func (f Frame) IsEvent() bool { return f.Event != protocol.EventNone }

// Drive holds the operator's setpoints. It does not talk to the rover.
type Drive struct {
	Speed    int8
	Steering int
	Aux      int
}

// Apply updates the setpoints for a and returns the frames that carry the
// change. An action that changes nothing returns no frames.
func (d *Drive) Apply(a Action) []Frame {
	switch a {
	case Faster, Slower:
		delta := SpeedStep
		if a == Slower {
			delta = -SpeedStep
		}
		next := actuator.ClampSpeed(int(d.Speed) + delta)
		if next == d.Speed {
			return nil
		}
		d.Speed = next
		return []Frame{d.SpeedFrame()}

	case SteerLeft, SteerRight, Center:
		next := 0
		switch a {
		case SteerLeft:
			next = clampAngle(d.Steering - SteeringStep)
		case SteerRight:
			next = clampAngle(d.Steering + SteeringStep)
		}
		if next == d.Steering {
			return nil
		}
		d.Steering = next
		return []Frame{{Control: protocol.ControlSteering, Value: int16(next)}}

	case AuxDown, AuxUp:
		delta := AuxStep
		if a == AuxDown {
			delta = -AuxStep
		}
		next := clampAngle(d.Aux + delta)
		if next == d.Aux {
			return nil
		}
		d.Aux = next
		return []Frame{{Control: protocol.ControlAux, Value: int16(next)}}

	case Stop:
		// The rover zeroes every actuator on emergency stop.
		*d = Drive{}
		return []Frame{{Event: protocol.EventEmergencyStop}}

	case Revert:
		return []Frame{{Event: protocol.EventRevertSettings}}
	}
	return nil
}

// SpeedFrame re-sends the current speed. It doubles as the keep-alive.
func (d *Drive) SpeedFrame() Frame {
	return Frame{Control: protocol.ControlSpeed, Value: int16(d.Speed)}
}

func clampAngle(v int) int {
	if v < -maxAngle {
		return -maxAngle
	}
	if v > maxAngle {
		return maxAngle
	}
	return v
}
