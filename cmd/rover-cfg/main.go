// Rover-cfg is the operator utility for rovers running rover-netd.
//
// It discovers rovers over mDNS, shows their status, provisions Wi-Fi,
// calibrates the servos and drives the rover from a terminal over the
// websocket control channel. It talks to the rover's HTTP surface and needs
// no access to the rover itself.
//
// Usage:
//
//	rover-cfg [command] [flags]
//
// See 'rover-cfg --help' for available commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/rover/internal/logging"
	"github.com/muurk/rover/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "rover-cfg",
	Short: "Rover configuration utility",
	Long: `A utility for provisioning, calibrating and driving rovers.

Commands that talk to a rover take --host. Without it the rover is found with
mDNS; this only works when exactly one rover answers.

Set ROVER_LOG_LEVEL=debug to see the requests made.`,
	Version:      version.Version,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return logging.InitializeFromEnv()
	},
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("rover-cfg %s (commit: %s)\n", version.Version, version.Commit)
	},
}
