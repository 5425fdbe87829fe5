package actuator

import (
	"sync"

	"go.uber.org/zap"

	"github.com/muurk/rover/internal/logging"
)

// SimMotor records the commanded speed.
type SimMotor struct {
	mu    sync.Mutex
	speed int8
}

func (m *SimMotor) SetSpeed(v int8) {
	v = ClampSpeed(int(v))
	m.mu.Lock()
	changed := m.speed != v
	m.speed = v
	m.mu.Unlock()
	if changed {
		logging.Debug("Motor speed", zap.Int8("speed", v))
	}
}

func (m *SimMotor) Speed() int8 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.speed
}

// SimServo computes the pulse width a real servo driver would output.
type SimServo struct {
	name string

	mu     sync.Mutex
	limits Limits
	angle  int
	pulse  int
}

// NewSimServo returns a centred servo with limits l.
func NewSimServo(name string, l Limits) *SimServo {
	s := &SimServo{name: name, limits: l}
	s.pulse = l.PulseWidth(0)
	return s
}

func (s *SimServo) SetAngle(deg int) {
	s.mu.Lock()
	s.angle = s.limits.ClampAngle(deg)
	s.pulse = s.limits.PulseWidth(s.angle)
	angle, pulse := s.angle, s.pulse
	s.mu.Unlock()

	logging.Debug("Servo angle",
		zap.String("servo", s.name),
		zap.Int("angle", angle),
		zap.Int("pulse_us", pulse),
	)
}

func (s *SimServo) Angle() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.angle
}

// SetLimits replaces the calibration and re-drives the current angle.
func (s *SimServo) SetLimits(l Limits) {
	s.mu.Lock()
	s.limits = l
	s.angle = l.ClampAngle(s.angle)
	s.pulse = l.PulseWidth(s.angle)
	s.mu.Unlock()

	logging.Info("Servo limits applied",
		zap.String("servo", s.name),
		zap.Int("min_pw", l.MinPulseWidthUS),
		zap.Int("max_pw", l.MaxPulseWidthUS),
		zap.Int("min_deg", l.MinDegree),
		zap.Int("max_deg", l.MaxDegree),
	)
}

func (s *SimServo) Limits() Limits {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.limits
}

// PulseWidth returns the last output pulse width in microseconds.
func (s *SimServo) PulseWidth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pulse
}
