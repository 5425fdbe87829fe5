//go:build unix

package restart

import (
	"os"
	"syscall"

	"go.uber.org/zap"

	"github.com/muurk/rover/internal/logging"
)

func execSelf() {
	path, err := os.Executable()
	if err == nil {
		err = syscall.Exec(path, os.Args, os.Environ())
	}
	logging.Error("Re-exec failed, exiting for supervisor restart", zap.Error(err))
	logging.Sync()
	os.Exit(1)
}
