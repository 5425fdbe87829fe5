package control

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/rover/internal/clock"
	"github.com/muurk/rover/internal/logging"
)

// PowerSaver toggles radio power save.
type PowerSaver interface {
	SetPowerSave(enabled bool) error
}

// Watchdog fires once when no control frame arrives within the armed period.
type Watchdog struct {
	clk    clock.Clock
	radio  PowerSaver
	onFire func()

	mu           sync.Mutex
	timer        clock.Timer
	period       time.Duration
	gen          uint64
	armed        bool
	powerSaveOff bool
	fires        int
}

// NewWatchdog returns a disarmed watchdog. onFire runs after power save has
// been re-enabled, outside the watchdog lock. The radio is called with the
// lock held.
func NewWatchdog(clk clock.Clock, radio PowerSaver, onFire func()) *Watchdog {
	return &Watchdog{clk: clk, radio: radio, onFire: onFire}
}

// Arm stops any running timer, adopts period if it changed and starts the
// timer again. Power save is disabled on the first arm of a session.
func (w *Watchdog) Arm(period time.Duration) {
	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	if period > 0 && period != w.period {
		logging.Debug("Watchdog period changed",
			zap.Duration("from", w.period),
			zap.Duration("to", period),
		)
		w.period = period
	}
	if !w.powerSaveOff {
		w.setPowerSave(false)
		w.powerSaveOff = true
	}
	w.gen++
	gen := w.gen
	w.armed = true
	w.timer = w.clk.AfterFunc(w.period, func() { w.expire(gen) })
	w.mu.Unlock()
}

// Fire runs the expiry side effects now. Repeated calls without an
// intervening Arm do nothing.
func (w *Watchdog) Fire() {
	w.mu.Lock()
	gen := w.gen
	w.mu.Unlock()
	w.expire(gen)
}

// Disarm stops the timer without firing.
func (w *Watchdog) Disarm() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.gen++
	w.armed = false
}

// Armed reports whether a timer is pending.
func (w *Watchdog) Armed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.armed
}

// Period returns the current timer period.
func (w *Watchdog) Period() time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.period
}

// Fires returns how many times the watchdog has fired.
func (w *Watchdog) Fires() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.fires
}

func (w *Watchdog) expire(gen uint64) {
	w.mu.Lock()
	// A timer callback racing with Arm carries a stale generation.
	if !w.armed || gen != w.gen {
		w.mu.Unlock()
		return
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.armed = false
	w.powerSaveOff = false
	w.fires++
	logging.Warn("Control watchdog fired", zap.Duration("period", w.period))
	w.setPowerSave(true)
	w.mu.Unlock()

	if w.onFire != nil {
		w.onFire()
	}
}

func (w *Watchdog) setPowerSave(enabled bool) {
	if w.radio == nil {
		return
	}
	if err := w.radio.SetPowerSave(enabled); err != nil {
		logging.Warn("Failed to change power save", zap.Bool("enabled", enabled), zap.Error(err))
	}
}
