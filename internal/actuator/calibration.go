package actuator

import (
	"encoding/binary"
	"fmt"

	"go.uber.org/zap"

	"github.com/muurk/rover/internal/logging"
	"github.com/muurk/rover/internal/store"
)

// CalibrationNamespace holds the persisted servo limits.
const CalibrationNamespace = "calibration"

// Calibration keys.
const (
	KeySteering = "steering"
	KeyAux      = "aux"
)

const limitsBlobSize = 16

// MarshalBinary encodes l as four little-endian int32 values: min pulse,
// max pulse, min degree, max degree.
func (l Limits) MarshalBinary() ([]byte, error) {
	b := make([]byte, limitsBlobSize)
	binary.LittleEndian.PutUint32(b[0:], uint32(int32(l.MinPulseWidthUS)))
	binary.LittleEndian.PutUint32(b[4:], uint32(int32(l.MaxPulseWidthUS)))
	binary.LittleEndian.PutUint32(b[8:], uint32(int32(l.MinDegree)))
	binary.LittleEndian.PutUint32(b[12:], uint32(int32(l.MaxDegree)))
	return b, nil
}

// UnmarshalBinary decodes the MarshalBinary layout.
func (l *Limits) UnmarshalBinary(b []byte) error {
	if len(b) != limitsBlobSize {
		return fmt.Errorf("calibration blob is %d bytes, want %d", len(b), limitsBlobSize)
	}
	l.MinPulseWidthUS = int(int32(binary.LittleEndian.Uint32(b[0:])))
	l.MaxPulseWidthUS = int(int32(binary.LittleEndian.Uint32(b[4:])))
	l.MinDegree = int(int32(binary.LittleEndian.Uint32(b[8:])))
	l.MaxDegree = int(int32(binary.LittleEndian.Uint32(b[12:])))
	return nil
}

// LoadLimits returns the limits committed under key, or def when missing or
// unusable.
func LoadLimits(h *store.Handle, key string, def Limits) Limits {
	if h == nil {
		return def
	}
	b, ok := h.GetBlob(key)
	if !ok {
		return def
	}
	var l Limits
	if err := l.UnmarshalBinary(b); err != nil {
		logging.Warn("Ignoring stored calibration", zap.String("key", key), zap.Error(err))
		return def
	}
	if err := l.Validate(); err != nil {
		logging.Warn("Ignoring stored calibration", zap.String("key", key), zap.Error(err))
		return def
	}
	return l
}

// SaveLimits persists l under key. Unchanged limits are not rewritten.
func SaveLimits(h *store.Handle, key string, l Limits) error {
	if h == nil {
		return nil
	}
	if err := l.Validate(); err != nil {
		return err
	}
	if LoadLimits(h, key, Limits{}) == l {
		return nil
	}
	b, _ := l.MarshalBinary()
	h.SetBlob(key, b)
	if err := h.Commit(); err != nil {
		return fmt.Errorf("failed to save %s calibration: %w", key, err)
	}
	return nil
}
