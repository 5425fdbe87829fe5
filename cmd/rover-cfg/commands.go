package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/rover/internal/discovery"
	"github.com/muurk/rover/internal/roverclient"
	"github.com/muurk/rover/internal/teleop"
	"github.com/muurk/rover/internal/ui"
)

// Common flags
var (
	roverHost      string
	roverPort      int
	outputFormat   string
	requestTimeout time.Duration
	discoverWait   int
	assumeYes      bool
)

// set-wifi flags
var (
	wifiSSID         string
	wifiPassword     string
	wifiStaticIP     string
	wifiUseStaticIP  bool
	wifiUseMDNS      bool
	wifiMDNSHostname string
	wifiServiceName  string
)

// calibrate flags
var (
	steeringPW  string
	steeringDeg string
	auxPW       string
	auxDeg      string
	noVerify    bool
)

// drive flags
var driveTimeout int

func init() {
	rootCmd.PersistentFlags().StringVar(&roverHost, "host", "", "Rover IP address or hostname (skips discovery)")
	rootCmd.PersistentFlags().IntVar(&roverPort, "port", 80, "Rover HTTP port")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "format", "detailed", "Output format (detailed, compact, json)")
	rootCmd.PersistentFlags().DurationVar(&requestTimeout, "timeout", roverclient.DefaultTimeout, "Per-request timeout")

	rootCmd.AddCommand(discoverCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(setWiFiCmd)
	rootCmd.AddCommand(calibrateCmd)
	rootCmd.AddCommand(restartCmd)
	rootCmd.AddCommand(driveCmd)
}

// discoverCmd lists rovers on the network
var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Discover rovers on the network",
	Long: `Discover rovers advertising themselves over mDNS.

Rovers publish an _http._tcp service with a "model=rover" TXT record while
they are connected to a network with mDNS enabled. A rover in setup mode is
reachable at its access point address instead (192.168.4.1 by default).`,
	Example: `  # Browse for 5 seconds (default)
  rover-cfg discover

  # Longer browse on busy networks
  rover-cfg discover --wait 15`,
	RunE: runDiscover,
}

func init() {
	discoverCmd.Flags().IntVar(&discoverWait, "wait", 5, "Browse duration in seconds")
}

func newScanner(seconds int) *discovery.Scanner {
	s := discovery.NewScanner()
	if seconds > 0 {
		s.Timeout = time.Duration(seconds) * time.Second
	}
	return s
}

func runDiscover(cmd *cobra.Command, args []string) error {
	fmt.Printf("Browsing for rovers (%ds)...\n\n", discoverWait)

	rovers, err := newScanner(discoverWait).Scan(cmd.Context())
	if err != nil {
		return fmt.Errorf("discovery failed: %w", err)
	}

	if outputFormat == "json" {
		return printJSON(rovers)
	}

	if len(rovers) == 0 {
		fmt.Println("No rovers found.")
		fmt.Println("\nTroubleshooting:")
		fmt.Println("  - Ensure the rover is powered on and connected to this network")
		fmt.Println("  - mDNS may be disabled in the rover's Wi-Fi settings")
		fmt.Println("  - A rover in setup mode is at 192.168.4.1 on its own access point")
		fmt.Println("  - Try a longer --wait")
		return nil
	}

	fmt.Printf("Found %d rover(s):\n\n", len(rovers))
	for i, r := range rovers {
		fmt.Printf("%d. %s\n", i+1, r.Name)
		fmt.Printf("   Host:     %s\n", r.Hostname)
		fmt.Printf("   Address:  %s\n", r.Addr())
		if r.Firmware != "" {
			fmt.Printf("   Firmware: %s\n", r.Firmware)
		}
		fmt.Println()
	}

	fmt.Println("Use 'rover-cfg show --host <ip>' to view a rover's status")
	return nil
}

// showCmd prints status and connectivity settings
var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show rover status and Wi-Fi settings",
	Long: `Display the rover's status (/data.json) and its stored connectivity
settings (/captive.json).

Passwords are masked in the detailed and compact formats.`,
	Example: `  # Show with auto-discovery
  rover-cfg show

  # Show a specific rover
  rover-cfg show --host 192.168.1.42

  # JSON for scripting
  rover-cfg show --host 192.168.1.42 --format json`,
	RunE: runShow,
}

func runShow(cmd *cobra.Command, args []string) error {
	client, err := newClient(cmd.Context())
	if err != nil {
		return err
	}

	status, err := client.Status()
	if err != nil {
		return failWithHint("failed to get status", err)
	}
	conn, err := client.Connectivity()
	if err != nil {
		return failWithHint("failed to get connectivity settings", err)
	}

	switch outputFormat {
	case "compact":
		fmt.Println(status.Summary())
	case "json":
		return printJSON(struct {
			Status       *roverclient.Status       `json:"status"`
			Connectivity *roverclient.Connectivity `json:"connectivity"`
		}{status, conn})
	default:
		fmt.Println(roverclient.FormatDetailed(status, conn))
	}
	return nil
}

// scanCmd asks the rover which networks it can see
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "List the Wi-Fi networks the rover can see",
	Long: `Ask the rover for an active Wi-Fi scan.

The scan runs on the rover and blocks for a few seconds. Results are listed in
the rover's scan order with their signal strength.`,
	Example: `  rover-cfg scan --host 192.168.4.1`,
	RunE:    runScan,
}

func runScan(cmd *cobra.Command, args []string) error {
	client, err := newClient(cmd.Context())
	if err != nil {
		return err
	}

	fmt.Println("Scanning (this takes a few seconds)...")
	networks, err := client.Scan()
	if err != nil {
		return failWithHint("scan failed", err)
	}

	if outputFormat == "json" {
		return printJSON(networks)
	}
	if len(networks) == 0 {
		fmt.Println("\nNo networks found.")
		return nil
	}

	fmt.Println()
	for i, n := range networks {
		ssid := n.SSID
		if ssid == "" {
			ssid = "(hidden)"
		}
		fmt.Printf("%2d. %-32s %4d dBm  %s\n", i+1, ssid, n.SignalStrength, roverclient.FormatSignal(n.SignalStrength))
	}
	return nil
}

// setWiFiCmd provisions station credentials
var setWiFiCmd = &cobra.Command{
	Use:   "set-wifi",
	Short: "Set the rover's Wi-Fi network",
	Long: `Submit new Wi-Fi settings to the rover.

Settings not given on the command line keep their current values. The rover
applies the change in the background: it leaves its current network, joins
the new one and falls back to its setup access point if it cannot connect.

An empty --password keeps the stored password.`,
	Example: `  # Join a network from setup mode
  rover-cfg set-wifi --host 192.168.4.1 --ssid home --password secret123

  # Switch to a static address
  rover-cfg set-wifi --ssid home --static-ip 192.168.1.50

  # Change the mDNS hostname without prompting
  rover-cfg set-wifi --ssid home --mdns-hostname rover2 --yes`,
	RunE: runSetWiFi,
}

func init() {
	setWiFiCmd.Flags().StringVar(&wifiSSID, "ssid", "", "Network name (required)")
	setWiFiCmd.Flags().StringVar(&wifiPassword, "password", "", "Network password (empty keeps the stored one)")
	setWiFiCmd.Flags().StringVar(&wifiStaticIP, "static-ip", "", "Static IPv4 address (enables static addressing)")
	setWiFiCmd.Flags().BoolVar(&wifiUseStaticIP, "use-static-ip", false, "Use the stored static address instead of DHCP")
	setWiFiCmd.Flags().BoolVar(&wifiUseMDNS, "mdns", true, "Advertise the rover over mDNS")
	setWiFiCmd.Flags().StringVar(&wifiMDNSHostname, "mdns-hostname", "", "mDNS hostname")
	setWiFiCmd.Flags().StringVar(&wifiServiceName, "service-name", "", "mDNS service instance name")
	setWiFiCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Skip the confirmation prompt")
	_ = setWiFiCmd.MarkFlagRequired("ssid")
}

// overlayWiFiFlags applies the flags the user set to w.
func overlayWiFiFlags(cmd *cobra.Command, w *roverclient.WiFiSettings) {
	flags := cmd.Flags()
	w.SSID = wifiSSID
	w.Password = wifiPassword
	if flags.Changed("static-ip") {
		w.StaticIP = wifiStaticIP
		w.UseStaticIP = wifiStaticIP != ""
	}
	if flags.Changed("use-static-ip") {
		w.UseStaticIP = wifiUseStaticIP
	}
	if flags.Changed("mdns") {
		w.UseMDNS = wifiUseMDNS
	}
	if flags.Changed("mdns-hostname") {
		w.MDNSHostname = wifiMDNSHostname
	}
	if flags.Changed("service-name") {
		w.ServiceName = wifiServiceName
	}
}

func runSetWiFi(cmd *cobra.Command, args []string) error {
	client, err := newClient(cmd.Context())
	if err != nil {
		return err
	}

	if !assumeYes && !ui.ConfirmWiFiChange(os.Stdin, os.Stdout, wifiSSID) {
		return nil
	}

	runner := ui.NewRunner(ui.RunnerConfig{
		Title:   "Wi-Fi Provisioning",
		Command: "rover-cfg set-wifi",
		Params: map[string]string{
			"Rover": client.BaseURL,
			"SSID":  wifiSSID,
		},
		StepNames: []string{
			"Read current settings",
			"Validate settings",
			"Submit settings",
		},
		Troubleshooting: []string{
			"Check the rover address with 'rover-cfg discover'",
			"A rover in setup mode is at 192.168.4.1 on its own access point",
		},
	})

	_, err = runner.Run(func(onStep ui.StepCallback) (map[string]string, error) {
		onStep(1, "", ui.StepRunning, "")
		current, err := client.Connectivity()
		if err != nil {
			onStep(1, "", ui.StepFailed, err.Error())
			return nil, err
		}
		w := roverclient.WiFiSettingsFrom(current)
		overlayWiFiFlags(cmd, &w)
		onStep(1, "", ui.StepComplete, "")

		onStep(2, "", ui.StepRunning, "")
		if errs := roverclient.ValidateWiFiSettings(&w); len(errs) > 0 {
			onStep(2, "", ui.StepFailed, fmt.Sprintf("%d invalid field(s)", len(errs)))
			return nil, errors.Join(errs...)
		}
		onStep(2, "", ui.StepComplete, "")

		onStep(3, "", ui.StepRunning, "")
		if err := client.SetWiFi(&w); err != nil {
			onStep(3, "", ui.StepFailed, err.Error())
			return nil, err
		}
		onStep(3, "", ui.StepComplete, "")

		addressing := "DHCP"
		if w.UseStaticIP {
			addressing = w.StaticIP
		}
		details := map[string]string{
			"SSID":       w.SSID,
			"Addressing": addressing,
		}
		if w.UseMDNS {
			details["mDNS"] = w.MDNSHostname + ".local"
		}
		return details, nil
	})
	return err
}

// calibrateCmd updates servo limits
var calibrateCmd = &cobra.Command{
	Use:   "calibrate",
	Short: "Calibrate the steering and aux servos",
	Long: `Set servo pulse width and angle limits.

Ranges are given as min,max. Pulse widths are in microseconds, angles in
degrees. Only the given ranges change. The rover persists the calibration and
reports it in /data.json, which is polled to verify the change unless
--no-verify is given.`,
	Example: `  # Narrow the steering pulse range
  rover-cfg calibrate --steering-pw 1000,2000

  # Set both aux ranges
  rover-cfg calibrate --aux-pw 600,2400 --aux-deg -45,45`,
	RunE: runCalibrate,
}

func init() {
	calibrateCmd.Flags().StringVar(&steeringPW, "steering-pw", "", "Steering pulse width range (us), min,max")
	calibrateCmd.Flags().StringVar(&steeringDeg, "steering-deg", "", "Steering angle range (degrees), min,max")
	calibrateCmd.Flags().StringVar(&auxPW, "aux-pw", "", "Aux pulse width range (us), min,max")
	calibrateCmd.Flags().StringVar(&auxDeg, "aux-deg", "", "Aux angle range (degrees), min,max")
	calibrateCmd.Flags().BoolVar(&noVerify, "no-verify", false, "Skip verification")
}

// buildCalibration turns the range flags into a calibration.
func buildCalibration(sPW, sDeg, aPW, aDeg string) (roverclient.Calibration, error) {
	cal := roverclient.Calibration{}
	set := func(servo string, pw, deg string) error {
		var sc roverclient.ServoCalibration
		if pw != "" {
			r, err := roverclient.ParseRange(pw)
			if err != nil {
				return err
			}
			sc.PulseWidth = &r
		}
		if deg != "" {
			r, err := roverclient.ParseRange(deg)
			if err != nil {
				return err
			}
			sc.Degrees = &r
		}
		if sc.PulseWidth != nil || sc.Degrees != nil {
			cal[servo] = sc
		}
		return nil
	}
	if err := set(roverclient.ServoSteering, sPW, sDeg); err != nil {
		return nil, err
	}
	if err := set(roverclient.ServoAux, aPW, aDeg); err != nil {
		return nil, err
	}
	if len(cal) == 0 {
		return nil, roverclient.NewValidationError("give at least one of --steering-pw, --steering-deg, --aux-pw, --aux-deg")
	}
	return cal, nil
}

func runCalibrate(cmd *cobra.Command, args []string) error {
	cal, err := buildCalibration(steeringPW, steeringDeg, auxPW, auxDeg)
	if err != nil {
		return err
	}
	if errs := roverclient.ValidateCalibration(cal); len(errs) > 0 {
		return errors.Join(errs...)
	}

	client, err := newClient(cmd.Context())
	if err != nil {
		return err
	}

	params := map[string]string{"Rover": client.BaseURL}
	for k, v := range cal.ToFormData() {
		params[k] = v[0]
	}

	runner := ui.NewRunner(ui.RunnerConfig{
		Title:     "Servo Calibration",
		Command:   "rover-cfg calibrate",
		Params:    params,
		StepNames: []string{"Submit calibration", "Verify calibration"},
	})

	_, err = runner.Run(func(onStep ui.StepCallback) (map[string]string, error) {
		onStep(1, "", ui.StepRunning, "")
		if err := client.Calibrate(cal); err != nil {
			onStep(1, "", ui.StepFailed, err.Error())
			return nil, err
		}
		onStep(1, "", ui.StepComplete, "")

		if noVerify {
			onStep(2, "", ui.StepSkipped, "--no-verify")
			return nil, nil
		}

		onStep(2, "", ui.StepRunning, "")
		res := client.VerifyCalibration(cal, roverclient.DefaultVerificationOptions())
		if !res.Success {
			msg := fmt.Sprintf("after %d attempt(s)", res.Attempts)
			onStep(2, "", ui.StepFailed, msg)
			if res.Error != nil {
				return nil, res.Error
			}
			return nil, fmt.Errorf("rover reports different limits: %v", res.Mismatches)
		}
		onStep(2, "", ui.StepComplete, fmt.Sprintf("%d attempt(s)", res.Attempts))

		details := map[string]string{}
		for name, l := range res.Actual.Limits {
			details[name] = fmt.Sprintf("%d-%d us, %d..%d deg", l.MinPW, l.MaxPW, l.MinDeg, l.MaxDeg)
		}
		return details, nil
	})
	return err
}

// restartCmd restarts the rover daemon
var restartCmd = &cobra.Command{
	Use:   "restart",
	Short: "Restart the rover daemon",
	Example: `  rover-cfg restart --host 192.168.1.42 --yes`,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient(cmd.Context())
		if err != nil {
			return err
		}
		if !assumeYes && !ui.ConfirmRestart(os.Stdin, os.Stdout) {
			return nil
		}
		if err := client.Restart(); err != nil {
			return failWithHint("restart failed", err)
		}
		ui.PrintSuccess("Restart requested", map[string]string{"Rover": client.BaseURL})
		return nil
	},
}

func init() {
	restartCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Skip the confirmation prompt")
}

// driveCmd opens the teleoperation TUI
var driveCmd = &cobra.Command{
	Use:   "drive",
	Short: "Drive the rover from the terminal",
	Long: `Open the control channel and drive the rover with the keyboard.

Without --host a picker lists the rovers found over mDNS. The rover stops and
reverts its servo limits if no frame arrives within the control timeout, so
the session keeps the channel alive while it runs.

Keys: arrows or WASD to drive and steer, [ and ] for aux, c to centre,
space for an emergency stop, r to revert limits, q to quit.`,
	Example: `  # Pick a rover and drive
  rover-cfg drive

  # Drive a known rover with a 500 ms watchdog
  rover-cfg drive --host 192.168.1.42 --control-timeout 500`,
	RunE: runDrive,
}

func init() {
	driveCmd.Flags().IntVar(&driveTimeout, "control-timeout", int(teleop.DefaultTimeout/time.Millisecond), "Watchdog period requested from the rover (ms)")
	driveCmd.Flags().IntVar(&discoverWait, "wait", 5, "Discovery duration in seconds")
}

func runDrive(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	if driveTimeout < 1 || driveTimeout > 32767 {
		return fmt.Errorf("--control-timeout must be 1-32767 ms, got %d", driveTimeout)
	}

	host, port, name := roverHost, roverPort, roverHost
	if host == "" {
		rover, err := teleop.Pick(ctx, newScanner(discoverWait).Scan)
		if err != nil {
			return err
		}
		if rover == nil {
			return nil
		}
		host, port, name = rover.IP, rover.Port, rover.Name
	}

	client := roverclient.NewClient(host, port)
	// Status polling must not stall the UI behind retries.
	client.SetTimeout(2 * time.Second)
	client.SetRetry(0, 0)

	return teleop.Run(ctx, client.ControlURL(), teleop.Options{
		Name:    name,
		Timeout: time.Duration(driveTimeout) * time.Millisecond,
		Status:  client.Status,
	})
}

// newClient returns a client for --host, discovering the rover when it is
// not given.
func newClient(ctx context.Context) (*roverclient.Client, error) {
	host, port, err := getRoverAddr(ctx)
	if err != nil {
		return nil, err
	}
	client := roverclient.NewClient(host, port)
	client.SetTimeout(requestTimeout)
	return client, nil
}

func getRoverAddr(ctx context.Context) (string, int, error) {
	if roverHost != "" {
		return roverHost, roverPort, nil
	}

	fmt.Println("No rover address specified, attempting auto-discovery...")
	rovers, err := newScanner(int(discovery.DefaultScanTimeout / time.Second)).Scan(ctx)
	if err != nil {
		return "", 0, fmt.Errorf("discovery failed: %w", err)
	}

	switch len(rovers) {
	case 0:
		return "", 0, fmt.Errorf("no rovers found. Use --host to specify the address manually")
	case 1:
		r := rovers[0]
		fmt.Printf("Found rover: %s (%s)\n\n", r.Name, r.Addr())
		return r.IP, r.Port, nil
	default:
		fmt.Printf("Found %d rovers:\n", len(rovers))
		for i, r := range rovers {
			fmt.Printf("%d. %s (%s)\n", i+1, r.Name, r.Addr())
		}
		return "", 0, fmt.Errorf("multiple rovers found. Use --host to specify which one")
	}
}

// failWithHint prints the troubleshooting hint for err and returns it
// wrapped.
func failWithHint(msg string, err error) error {
	ui.PrintFailure(msg, err, ui.SplitHint(roverclient.GetTroubleshootingHint(err)))
	return fmt.Errorf("%s: %w", msg, err)
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	fmt.Println(string(data))
	return nil
}
