//go:build !unix

package restart

import "os"

// No exec on this platform; exit and let the service manager restart us.
func execSelf() {
	os.Exit(1)
}
