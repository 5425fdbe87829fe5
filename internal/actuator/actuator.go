package actuator

import (
	"errors"
	"fmt"
)

// Speed bounds for Motor.SetSpeed.
const (
	MinSpeed = -100
	MaxSpeed = 100
)

// ErrInvalidLimits is returned for limits that cannot drive a servo.
var ErrInvalidLimits = errors.New("invalid servo limits")

// Motor is the drive motor.
type Motor interface {
	// SetSpeed sets the signed duty in percent, clamped to [MinSpeed, MaxSpeed].
	SetSpeed(v int8)
	Speed() int8
}

// Servo is an angle-controlled servo.
type Servo interface {
	// SetAngle moves to angle degrees from centre, clamped to the limits'
	// degree range.
	SetAngle(deg int)
	Angle() int
	SetLimits(l Limits)
	Limits() Limits
}

// Limits is a servo calibration: the pulse-width range and the degree range
// it maps onto.
type Limits struct {
	MinPulseWidthUS int
	MaxPulseWidthUS int
	MinDegree       int
	MaxDegree       int
}

// DefaultSteeringLimits is the steering servo calibration before any is
// stored.
func DefaultSteeringLimits() Limits {
	return Limits{MinPulseWidthUS: 1200, MaxPulseWidthUS: 1700, MinDegree: -90, MaxDegree: 90}
}

// DefaultAuxLimits is the auxiliary servo calibration before any is stored.
func DefaultAuxLimits() Limits {
	return Limits{MinPulseWidthUS: 500, MaxPulseWidthUS: 2400, MinDegree: -90, MaxDegree: 90}
}

// Validate reports whether l is usable.
func (l Limits) Validate() error {
	if l.MinPulseWidthUS <= 0 || l.MaxPulseWidthUS <= l.MinPulseWidthUS {
		return fmt.Errorf("%w: pulse width %d-%dus", ErrInvalidLimits, l.MinPulseWidthUS, l.MaxPulseWidthUS)
	}
	if l.MaxDegree <= l.MinDegree {
		return fmt.Errorf("%w: degrees %d..%d", ErrInvalidLimits, l.MinDegree, l.MaxDegree)
	}
	return nil
}

// WithPulseWidth returns l with a new pulse-width range.
func (l Limits) WithPulseWidth(min, max int) Limits {
	l.MinPulseWidthUS, l.MaxPulseWidthUS = min, max
	return l
}

// WithDegrees returns l with a new degree range.
func (l Limits) WithDegrees(min, max int) Limits {
	l.MinDegree, l.MaxDegree = min, max
	return l
}

// ClampAngle clamps deg into the degree range.
func (l Limits) ClampAngle(deg int) int {
	return max(l.MinDegree, min(deg, l.MaxDegree))
}

// PulseWidth maps an angle to a pulse width. The angle is clamped first;
// -90 maps to the minimum pulse width and 90 to the maximum.
func (l Limits) PulseWidth(deg int) int {
	deg = l.ClampAngle(deg)
	return (90+deg)*(l.MaxPulseWidthUS-l.MinPulseWidthUS)/180 + l.MinPulseWidthUS
}

// ClampSpeed clamps v into [MinSpeed, MaxSpeed].
func ClampSpeed(v int) int8 {
	return int8(max(MinSpeed, min(v, MaxSpeed)))
}
