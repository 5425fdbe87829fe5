// Rover-netd is the rover's connectivity daemon.
//
// It keeps the rover reachable: it joins the stored Wi-Fi network as a
// station, falls back to a captive provisioning access point when no network
// is configured or the station keeps dropping, and serves the control
// channel, status and calibration pages while connected.
//
// Usage:
//
//	rover-netd run [flags]
//	rover-netd config show|init
//
// See 'rover-netd --help' for available commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/rover/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "rover-netd",
	Short: "Rover connectivity daemon",
	Long: `The rover connectivity daemon.

Brings the rover onto the stored Wi-Fi network, or opens the provisioning
access point with a captive portal when there is nothing to join. Once
connected it serves the drive page, the websocket control channel and the
calibration form.

Use the separate 'rover-cfg' utility to provision and drive a rover from a
workstation.`,
	Version:      version.Version,
	SilenceUsage: true,
}

// Global flags
var configPath string

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Settings file (default: $XDG_CONFIG_HOME/rover/netd.yaml)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("rover-netd %s (commit: %s)\n", version.Version, version.Commit)
	},
}
