// Package restart performs the daemon's controlled restart: the only abrupt
// termination path, used after fatal bring-up failures and by the /restart
// endpoint.
package restart

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/rover/internal/logging"
)

// Restarter restarts the process. Restart does not return in production.
type Restarter interface {
	Restart(reason string)
}

// Func adapts a function to Restarter.
type Func func(reason string)

// Restart calls f.
func (f Func) Restart(reason string) {
	f(reason)
}

// Exec re-executes the running binary with its original arguments.
type Exec struct {
	// Delay is waited before re-executing, so a pending HTTP response can
	// reach the client.
	Delay time.Duration

	// BeforeExec runs once before the process image is replaced.
	BeforeExec func()

	once sync.Once
}

// Restart implements Restarter.
func (e *Exec) Restart(reason string) {
	e.once.Do(func() {
		logging.Warn("Restarting", zap.String("reason", reason), zap.Duration("delay", e.Delay))
		if e.Delay > 0 {
			time.Sleep(e.Delay)
		}
		if e.BeforeExec != nil {
			e.BeforeExec()
		}
		logging.Sync()
		execSelf()
	})
}
