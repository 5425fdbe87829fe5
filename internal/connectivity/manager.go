package connectivity

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/rover/internal/clock"
	"github.com/muurk/rover/internal/events"
	"github.com/muurk/rover/internal/httpserver"
	"github.com/muurk/rover/internal/logging"
	"github.com/muurk/rover/internal/mdns"
	"github.com/muurk/rover/internal/netif"
	"github.com/muurk/rover/internal/registry"
	"github.com/muurk/rover/internal/restart"
	"github.com/muurk/rover/internal/store"
)

// Mode is the active connectivity mode.
type Mode int32

const (
	Uninitialized Mode = iota
	CaptiveAP
	Station
)

// String returns the mode name used in logs and status output.
func (m Mode) String() string {
	switch m {
	case Uninitialized:
		return "uninitialized"
	case CaptiveAP:
		return "captive_ap"
	case Station:
		return "station"
	default:
		return fmt.Sprintf("mode(%d)", int32(m))
	}
}

// Server is the HTTP server instance created for each mode.
type Server interface {
	registry.Router
	SetNotFound(http.HandlerFunc)
	Start() error
	Shutdown(ctx context.Context) error
	Addr() string
}

// ServerFactory creates a stopped server.
type ServerFactory func(name, addr string) Server

// DefaultServerFactory builds httpserver instances.
func DefaultServerFactory(name, addr string) Server {
	return httpserver.New(name, addr)
}

// DNSHijack is the captive DNS collaborator.
type DNSHijack interface {
	Start() error
	Stop() error
}

// Portal supplies the fixed provisioning surface mounted in CaptiveAP mode.
type Portal interface {
	Routes() []registry.Registration
	NotFound(w http.ResponseWriter, r *http.Request)
}

// Options tunes the manager.
type Options struct {
	// ListenAddr is the HTTP address for both modes.
	ListenAddr string

	// ReconnectThreshold is the number of consecutive station disconnects
	// that forces the captive AP.
	ReconnectThreshold int

	// ReconnectBackoff delays each automatic reconnect attempt. Zero retries
	// immediately.
	ReconnectBackoff time.Duration

	// ReconnectTimeout bounds the wait for a forced disconnect to be confirmed.
	ReconnectTimeout time.Duration

	// Defaults seeds the configuration before the store overlay.
	Defaults Config
}

// DefaultOptions returns the production tuning.
func DefaultOptions() Options {
	return Options{
		ListenAddr:         ":80",
		ReconnectThreshold: 5,
		ReconnectBackoff:   0,
		ReconnectTimeout:   5 * time.Second,
		Defaults:           DefaultConfig(),
	}
}

// Deps are the collaborators driven by the manager.
type Deps struct {
	Radio     netif.Radio
	Store     *store.Handle // nil runs on defaults only
	Registry  *registry.Registry
	MDNS      mdns.Responder
	DNS       DNSHijack
	Restarter restart.Restarter
	NewServer ServerFactory
	Clock     clock.Clock // schedules reconnect backoff; defaults to the real clock
}

// Manager arbitrates between the captive AP and station modes. Run is the
// only goroutine that performs transitions; everything else requests them
// through the event signal.
type Manager struct {
	opts   Options
	deps   Deps
	signal *events.Signal

	mu        sync.Mutex
	mode      Mode
	radioMode Mode
	cfg       Config
	server    Server
	portal    Portal
	failures  int

	// persistMu serializes store writes so concurrent submissions commit
	// one whole configuration at a time.
	persistMu sync.Mutex
}

// New returns an uninitialized manager.
func New(opts Options, deps Deps) *Manager {
	if opts.ReconnectThreshold <= 0 {
		opts.ReconnectThreshold = 5
	}
	if opts.ReconnectTimeout <= 0 {
		opts.ReconnectTimeout = 5 * time.Second
	}
	if deps.NewServer == nil {
		deps.NewServer = DefaultServerFactory
	}
	if deps.Registry == nil {
		deps.Registry = registry.New(registry.DefaultCapacity)
	}
	if deps.MDNS == nil {
		deps.MDNS = &mdns.Recorder{}
	}
	if deps.Clock == nil {
		deps.Clock = clock.Real()
	}
	return &Manager{
		opts:   opts,
		deps:   deps,
		signal: events.NewSignal(),
		cfg:    opts.Defaults.clone(),
	}
}

// SetPortal installs the provisioning surface. Must be called before
// Initialize.
func (m *Manager) SetPortal(p Portal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.portal = p
}

// Signal exposes the event signal.
func (m *Manager) Signal() *events.Signal {
	return m.signal
}

// Registry returns the station handler registry.
func (m *Manager) Registry() *registry.Registry {
	return m.deps.Registry
}

// Radio returns the radio driver.
func (m *Manager) Radio() netif.Radio {
	return m.deps.Radio
}

// Mode returns the current mode.
func (m *Manager) Mode() Mode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mode
}

// Config returns a snapshot of the configuration.
func (m *Manager) Config() Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg.clone()
}

// Update applies fn to the live configuration under the manager lock. fn
// must not block.
func (m *Manager) Update(fn func(c *Config)) Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(&m.cfg)
	return m.cfg.clone()
}

// Counter returns the consecutive station disconnect count.
func (m *Manager) Counter() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.failures
}

// ServerAddr returns the address of the running server, or "".
func (m *Manager) ServerAddr() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.server == nil {
		return ""
	}
	return m.server.Addr()
}

// HasServer reports whether a server instance exists.
func (m *Manager) HasServer() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.server != nil
}

// RequestTransition sets request bits for the Run loop.
func (m *Manager) RequestTransition(bits events.Bits) {
	m.signal.Set(bits & events.Requests)
}

// Persist writes the configuration to the store, diff-before-write. Store
// failures are logged and returned; the in-memory configuration stays.
func (m *Manager) Persist() (int, error) {
	if m.deps.Store == nil {
		return 0, nil
	}
	m.persistMu.Lock()
	defer m.persistMu.Unlock()
	n, err := PersistConfig(m.deps.Store, m.Config())
	if err != nil {
		logging.Warn("Failed to persist connectivity config", zap.Error(err))
		return 0, err
	}
	logging.Info("Connectivity config persisted", zap.Int("changes", n))
	return n, nil
}

// Restart releases name resolution and hands over to the restarter.
func (m *Manager) Restart(reason string) {
	m.deps.MDNS.Stop()
	if m.deps.Restarter != nil {
		m.deps.Restarter.Restart(reason)
	}
}

// Shutdown stops the server, the captive DNS responder and mDNS. The radio is
// left as is. Call it after Run has returned.
func (m *Manager) Shutdown(ctx context.Context) {
	m.stopServer(ctx)
	if m.deps.DNS != nil {
		if err := m.deps.DNS.Stop(); err != nil {
			logging.Warn("Failed to stop captive DNS", zap.Error(err))
		}
	}
	m.deps.MDNS.Stop()
	logging.Info("Connectivity manager stopped")
}

// Initialize loads the stored configuration, subscribes to radio events and
// performs the first transition: CaptiveAP when no station SSID is stored,
// Station otherwise. On return the mode is never Uninitialized.
func (m *Manager) Initialize(ctx context.Context) error {
	if m.deps.Store != nil {
		cfg := LoadConfig(m.deps.Store, m.opts.Defaults)
		m.mu.Lock()
		m.cfg = cfg
		m.mu.Unlock()
	} else {
		logging.Warn("No config store available, running on defaults")
	}

	m.deps.Radio.Subscribe(m.HandleNetworkEvent)

	if m.Config().SSID == "" {
		m.signal.Set(events.SwitchToCaptiveAP)
	} else {
		m.signal.Set(events.SwitchToStation)
	}

	return m.step(ctx, m.signal.Get()&events.Requests)
}

// Run blocks on the event signal and performs requested transitions until
// ctx is done or a fatal error occurs. Fatal errors are passed to the
// restarter before being returned.
func (m *Manager) Run(ctx context.Context) error {
	for {
		bits, err := m.signal.WaitAny(ctx, events.Requests)
		if err != nil {
			return nil
		}
		if err := m.step(ctx, bits); err != nil {
			return err
		}
	}
}

// step processes one wake in fixed priority order.
func (m *Manager) step(ctx context.Context, bits events.Bits) error {
	err := m.process(ctx, bits)
	if err != nil && IsFatal(err) {
		logging.Error("Fatal connectivity error", zap.Error(err))
		if m.deps.Restarter != nil {
			m.deps.Restarter.Restart(err.Error())
		}
		return err
	}
	if err != nil {
		logging.Warn("Connectivity step failed", zap.Error(err))
	}
	return nil
}

func (m *Manager) process(ctx context.Context, bits events.Bits) error {
	switched := false

	if bits.Has(events.SwitchToStation) {
		did, err := m.toStation(ctx)
		if err != nil {
			return err
		}
		switched = switched || did
	}

	if bits.Has(events.SwitchToCaptiveAP) {
		if err := m.toCaptiveAP(ctx); err != nil {
			return err
		}
		switched = true
	}

	// A mode switch in this wake supersedes stale requests.
	if switched {
		if stale := bits & (events.Reconnect | events.MdnsChanged); stale != 0 {
			logging.Debug("Dropping stale requests after mode switch", zap.Stringer("bits", stale))
			m.signal.Clear(stale)
		}
		return nil
	}

	var errs []error
	if bits.Has(events.Reconnect) {
		if err := m.reconnect(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if bits.Has(events.MdnsChanged) {
		m.applyMDNS()
	}
	return errors.Join(errs...)
}

// stopServer detaches the registry and shuts the current server down.
func (m *Manager) stopServer(ctx context.Context) {
	m.mu.Lock()
	srv := m.server
	m.server = nil
	m.mode = Uninitialized
	m.mu.Unlock()

	m.deps.Registry.Detach()
	if srv != nil {
		_ = srv.Shutdown(ctx)
	}
}

func (m *Manager) toStation(ctx context.Context) (bool, error) {
	if m.signal.Get().Has(events.Connected) {
		logging.Info("Already connected, station switch cancelled")
		m.signal.Clear(events.SwitchToStation)
		return false, nil
	}

	from := m.Mode()
	cfg := m.Config()

	m.stopServer(ctx)
	if m.deps.DNS != nil {
		if err := m.deps.DNS.Stop(); err != nil {
			logging.Warn("Failed to stop captive DNS", zap.Error(err))
		}
	}
	if err := m.deps.Radio.Stop(); err != nil {
		return false, fatal("radio stop", err)
	}
	m.deps.MDNS.Stop()

	if err := m.deps.Radio.ConfigureStation(cfg.Station()); err != nil {
		return false, fatal("configure station", err)
	}
	addressing := cfg.Addressing()
	if err := m.deps.Radio.SetAddressing(addressing); err != nil {
		return false, fatal("station addressing", err)
	}

	m.mu.Lock()
	m.radioMode = Station
	m.mu.Unlock()

	if err := m.deps.Radio.StartStation(); err != nil {
		return false, fatal("start station", err)
	}

	srv := m.deps.NewServer(Station.String(), m.opts.ListenAddr)
	if err := srv.Start(); err != nil {
		return false, fatal("start station server", err)
	}
	m.deps.Registry.ApplyAll(srv)

	if cfg.UseMDNS {
		m.startMDNS(cfg)
	}

	m.mu.Lock()
	m.server = srv
	m.mode = Station
	m.mu.Unlock()
	m.signal.Clear(events.SwitchToStation)

	logging.LogTransition(from.String(), Station.String(), "switch_to_station")
	logging.Info("Station mode active",
		zap.String("ssid", cfg.SSID),
		zap.Stringer("addressing", addressing),
	)
	return true, nil
}

func (m *Manager) toCaptiveAP(ctx context.Context) error {
	from := m.Mode()
	cfg := m.Config()

	m.mu.Lock()
	m.radioMode = CaptiveAP
	portal := m.portal
	m.mu.Unlock()

	m.stopServer(ctx)
	if err := m.deps.Radio.Disconnect(); err != nil {
		return fatal("radio disconnect", err)
	}
	if err := m.deps.Radio.Stop(); err != nil {
		return fatal("radio stop", err)
	}
	m.deps.MDNS.Stop()

	if err := m.deps.Radio.ConfigureAP(cfg.AP()); err != nil {
		return fatal("configure ap", err)
	}
	if err := m.deps.Radio.ConfigureStation(cfg.Station()); err != nil {
		return fatal("configure station", err)
	}
	if err := m.deps.Radio.StartAPStation(); err != nil {
		return fatal("start ap", err)
	}

	srv := m.deps.NewServer(CaptiveAP.String(), m.opts.ListenAddr)
	if portal != nil {
		for _, reg := range portal.Routes() {
			srv.Handle(reg.Path, reg.Method, reg.Handler)
		}
		srv.SetNotFound(portal.NotFound)
	}
	if err := srv.Start(); err != nil {
		return fatal("start provisioning server", err)
	}

	if m.deps.DNS != nil {
		if err := m.deps.DNS.Start(); err != nil {
			logging.Warn("Captive DNS unavailable", zap.Error(err))
		}
	}

	m.mu.Lock()
	m.failures = 0
	m.server = srv
	m.mode = CaptiveAP
	m.mu.Unlock()
	m.signal.Clear(events.SwitchToCaptiveAP)

	ap := cfg.AP()
	logging.LogTransition(from.String(), CaptiveAP.String(), "switch_to_captive_ap")
	logging.Info("Captive portal active",
		zap.String("ap_ssid", ap.SSID),
		zap.String("auth", ap.AuthMode()),
		zap.Int("max_connections", ap.MaxConnections),
	)
	return nil
}

func (m *Manager) reconnect(ctx context.Context) error {
	defer m.signal.Clear(events.Reconnect)

	if m.Mode() != Station {
		logging.Debug("Reconnect ignored outside station mode")
		return nil
	}

	cfg := m.Config()
	logging.Info("Reconnecting station", zap.String("ssid", cfg.SSID))

	if err := m.deps.Radio.Disconnect(); err != nil {
		return fmt.Errorf("reconnect disconnect: %w", err)
	}

	var result error
	waitCtx, cancel := context.WithTimeout(ctx, m.opts.ReconnectTimeout)
	err := m.signal.WaitClear(waitCtx, events.Connected)
	cancel()
	if err != nil {
		logging.Warn("Disconnect not confirmed, continuing", zap.Duration("timeout", m.opts.ReconnectTimeout))
		result = ErrReconnectTimeout
	}

	if err := m.deps.Radio.ConfigureStation(cfg.Station()); err != nil {
		return errors.Join(result, fmt.Errorf("reconnect configure: %w", err))
	}
	if err := m.deps.Radio.SetAddressing(cfg.Addressing()); err != nil {
		return errors.Join(result, fmt.Errorf("reconnect addressing: %w", err))
	}
	if err := m.deps.Radio.Connect(); err != nil {
		return errors.Join(result, fmt.Errorf("reconnect connect: %w", err))
	}
	return result
}

func (m *Manager) applyMDNS() {
	defer m.signal.Clear(events.MdnsChanged)

	if m.Mode() != Station {
		logging.Debug("mDNS change ignored outside station mode")
		return
	}
	cfg := m.Config()
	if cfg.UseMDNS {
		m.startMDNS(cfg)
		return
	}
	m.deps.MDNS.Stop()
}

func (m *Manager) startMDNS(cfg Config) {
	port := 80
	if _, p, err := net.SplitHostPort(m.opts.ListenAddr); err == nil {
		if n, err := strconv.Atoi(p); err == nil && n > 0 {
			port = n
		}
	}
	// mDNS failures leave the rover reachable by address only.
	if err := m.deps.MDNS.Start(cfg.MDNSHostname, cfg.ServiceName, port, m.deps.Radio.LocalIP()); err != nil {
		logging.Warn("Failed to start mDNS", zap.Error(err))
	}
}
