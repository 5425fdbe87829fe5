package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muurk/rover/internal/actuator"
	"github.com/muurk/rover/internal/captivedns"
	"github.com/muurk/rover/internal/connectivity"
	"github.com/muurk/rover/internal/control"
	"github.com/muurk/rover/internal/logging"
	"github.com/muurk/rover/internal/mdns"
	"github.com/muurk/rover/internal/netif"
	"github.com/muurk/rover/internal/provisioning"
	"github.com/muurk/rover/internal/registry"
	"github.com/muurk/rover/internal/restart"
	"github.com/muurk/rover/internal/settings"
	"github.com/muurk/rover/internal/store"
	"github.com/muurk/rover/internal/version"
)

// registryCapacity leaves room for the station copy of the provisioning
// routes next to the control routes.
const registryCapacity = 12

// Run command flags
var (
	listenAddr   string
	dnsListen    string
	logLevel     string
	logFile      string
	storeBackend string
	storePath    string
	simulate     bool
	simNetworks  []string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the connectivity daemon",
	Long: `Run the connectivity daemon in the foreground.

Settings are read from the settings file and may be overridden by flags. The
Wi-Fi credentials and servo calibration live in the configuration store
(yaml, sqlite or memory) and survive restarts unless the memory backend is
used.

With --simulate the radio and actuators are simulated in-process. Networks
the simulated radio can join are declared with --sim-network.`,
	Example: `  # Run with the settings file
  rover-netd run

  # Simulated radio that can join "home" with password "secret123"
  rover-netd run --simulate --sim-network home:secret123:-52 --listen :8080 --dns-listen :5353

  # Keep the store in sqlite and log to a rotating file
  rover-netd run --store sqlite --log-file /var/log/rover-netd.log`,
	RunE: runDaemon,
}

func init() {
	runCmd.Flags().StringVar(&listenAddr, "listen", "", "HTTP listen address (overrides http.listen)")
	runCmd.Flags().StringVar(&dnsListen, "dns-listen", "", "Captive DNS listen address (overrides http.dns_listen)")
	runCmd.Flags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	runCmd.Flags().StringVar(&logFile, "log-file", "", "Also write logs to this rotating file")
	runCmd.Flags().StringVar(&storeBackend, "store", "", "Configuration store backend (yaml, sqlite, memory)")
	runCmd.Flags().StringVar(&storePath, "store-path", "", "Configuration store location")
	runCmd.Flags().BoolVar(&simulate, "simulate", false, "Simulate the radio and actuators")
	runCmd.Flags().StringArrayVar(&simNetworks, "sim-network", nil, "Simulated network as ssid[:password[:rssi]] (repeatable)")
}

// applyRunFlags overlays the flags the user set on s.
func applyRunFlags(cmd *cobra.Command, s *settings.Settings) {
	flags := cmd.Flags()
	if flags.Changed("listen") {
		s.HTTP.Listen = listenAddr
	}
	if flags.Changed("dns-listen") {
		s.HTTP.DNSListen = dnsListen
	}
	if flags.Changed("log-level") {
		s.Log.Level = logLevel
	}
	if flags.Changed("log-file") {
		s.Log.File = logFile
	}
	if flags.Changed("store") {
		s.Store.Backend = storeBackend
	}
	if flags.Changed("store-path") {
		s.Store.Path = storePath
	}
	if flags.Changed("simulate") {
		s.Simulate = simulate
	}
}

// parseSimNetwork parses "ssid[:password[:rssi]]".
func parseSimNetwork(v string) (ssid, password string, rssi int, err error) {
	parts := strings.SplitN(v, ":", 3)
	ssid = parts[0]
	if ssid == "" {
		return "", "", 0, fmt.Errorf("invalid --sim-network %q: empty ssid", v)
	}
	rssi = -60
	if len(parts) > 1 {
		password = parts[1]
	}
	if len(parts) > 2 {
		rssi, err = strconv.Atoi(parts[2])
		if err != nil {
			return "", "", 0, fmt.Errorf("invalid --sim-network %q: bad rssi: %w", v, err)
		}
	}
	return ssid, password, rssi, nil
}

func openStore(s *settings.Settings) (store.Backend, error) {
	path := s.Store.Path
	if path == "" && s.Store.Backend != settings.BackendMemory {
		p, err := settings.DefaultStorePath(s.Store.Backend)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve store path: %w", err)
		}
		path = p
	}
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}
	backend, err := store.Open(s.Store.Backend, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", s.Store.Backend, err)
	}
	logging.Info("Configuration store opened",
		zap.String("backend", s.Store.Backend),
		zap.String("path", path))
	return backend, nil
}

// openNamespace returns nil when the namespace cannot be opened, so the
// caller runs on defaults.
func openNamespace(backend store.Backend, ns string) *store.Handle {
	h, err := store.OpenNamespace(backend, ns)
	if err != nil {
		logging.Warn("Failed to open store namespace, using defaults",
			zap.String("namespace", ns),
			zap.Error(err))
		return nil
	}
	return h
}

func runDaemon(cmd *cobra.Command, args []string) error {
	s, err := settings.Load(configPath)
	if err != nil {
		return err
	}
	applyRunFlags(cmd, s)
	if err := s.Validate(); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}

	if err := logging.InitializeWithOptions(s.Log.Level, logging.Options{File: s.Log.File}); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer logging.Sync()

	if !s.Simulate {
		return errors.New("no radio driver is available on this platform; run with --simulate or set simulate: true")
	}

	logging.Info("Starting rover-netd",
		zap.String("version", version.Full()),
		zap.String("listen", s.HTTP.Listen),
		zap.Bool("simulate", s.Simulate))

	backend, err := openStore(s)
	if err != nil {
		return err
	}
	defer func() { _ = backend.Close() }()

	radio := netif.NewSimRadio()
	defer radio.Close()
	for _, v := range simNetworks {
		ssid, password, rssi, err := parseSimNetwork(v)
		if err != nil {
			return err
		}
		radio.AddNetwork(ssid, password, rssi)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := connectivity.DefaultOptions()
	opts.ListenAddr = s.HTTP.Listen
	opts.ReconnectThreshold = s.Reconnect.Threshold
	opts.ReconnectBackoff = s.Reconnect.Backoff
	opts.ReconnectTimeout = s.Reconnect.ConfirmTimeout
	opts.Defaults.APSSID = s.AP.SSID
	opts.Defaults.APPassword = s.AP.Password

	var mgr *connectivity.Manager
	restarter := &restart.Exec{
		BeforeExec: func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			mgr.Shutdown(shutdownCtx)
			_ = backend.Close()
		},
	}

	mgr = connectivity.New(opts, connectivity.Deps{
		Radio:     radio,
		Store:     openNamespace(backend, connectivity.Namespace),
		Registry:  registry.New(registryCapacity),
		MDNS:      mdns.NewZeroconf(),
		DNS:       captivedns.New(s.HTTP.DNSListen, net.ParseIP(s.AP.IP)),
		Restarter: restarter,
	})

	portal := provisioning.New(mgr, radio)
	mgr.SetPortal(portal)
	if err := portal.Register(mgr.Registry()); err != nil {
		return fmt.Errorf("failed to register provisioning routes: %w", err)
	}

	ctrl := control.New(control.Options{
		DefaultTimeout:  s.ControlTimeout(),
		RestartDelay:    s.Control.RestartDelay,
		FirmwareVersion: version.Version,
	}, control.Deps{
		Motor:       &actuator.SimMotor{},
		Steering:    actuator.NewSimServo("steering", actuator.DefaultSteeringLimits()),
		Aux:         actuator.NewSimServo("aux", actuator.DefaultAuxLimits()),
		Calibration: openNamespace(backend, actuator.CalibrationNamespace),
		Radio:       radio,
		Restarter:   restart.Func(mgr.Restart),
		Connected: func() bool {
			return mgr.Mode() == connectivity.Station && radio.Connected()
		},
	})
	if err := ctrl.Register(mgr.Registry()); err != nil {
		return fmt.Errorf("failed to register control routes: %w", err)
	}

	if err := mgr.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize connectivity: %w", err)
	}
	logging.Info("Connectivity initialized",
		zap.String("mode", mgr.Mode().String()),
		zap.String("addr", mgr.ServerAddr()))

	runErr := mgr.Run(ctx)

	logging.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	mgr.Shutdown(shutdownCtx)

	if runErr != nil {
		return fmt.Errorf("connectivity manager stopped: %w", runErr)
	}
	return nil
}
