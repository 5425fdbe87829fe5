// Package mdns advertises the rover's HTTP service on the local network so
// operators can reach it by hostname.
package mdns

import (
	"fmt"
	"net"
	"strings"
	"sync"

	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"

	"github.com/muurk/rover/internal/logging"
	"github.com/muurk/rover/internal/version"
)

const (
	// ServiceType is the advertised service type.
	ServiceType = "_http._tcp"

	// ServiceDomain is the mDNS domain.
	ServiceDomain = "local."

	// ModelTXT identifies rovers among other _http._tcp services.
	ModelTXT = "model=rover"
)

// Responder advertises (or stops advertising) the rover.
type Responder interface {
	Start(hostname, service string, port int, ip net.IP) error
	Stop()
	Running() bool
}

// Zeroconf is a Responder backed by grandcat/zeroconf.
type Zeroconf struct {
	mu     sync.Mutex
	server *zeroconf.Server
}

// NewZeroconf returns a stopped responder.
func NewZeroconf() *Zeroconf {
	return &Zeroconf{}
}

// TXT returns the TXT records published with the service.
func TXT() []string {
	return []string{"path=/", ModelTXT, "fw=" + version.Version}
}

// Start (re)registers the service. A running registration is replaced.
func (z *Zeroconf) Start(hostname, service string, port int, ip net.IP) error {
	z.mu.Lock()
	defer z.mu.Unlock()

	if z.server != nil {
		z.server.Shutdown()
		z.server = nil
	}

	host := strings.TrimSuffix(hostname, ".local")
	var (
		srv *zeroconf.Server
		err error
	)
	if ip != nil {
		srv, err = zeroconf.RegisterProxy(service, ServiceType, ServiceDomain, port, host, []string{ip.String()}, TXT(), nil)
	} else {
		srv, err = zeroconf.Register(service, ServiceType, ServiceDomain, port, TXT(), nil)
	}
	if err != nil {
		return fmt.Errorf("failed to register mDNS service: %w", err)
	}
	z.server = srv

	logging.Info("mDNS service registered",
		zap.String("hostname", host+".local"),
		zap.String("service", service),
		zap.Int("port", port),
	)
	return nil
}

// Stop withdraws the registration, if any.
func (z *Zeroconf) Stop() {
	z.mu.Lock()
	defer z.mu.Unlock()
	if z.server == nil {
		return
	}
	z.server.Shutdown()
	z.server = nil
	logging.Info("mDNS service stopped")
}

// Running reports whether a registration is active.
func (z *Zeroconf) Running() bool {
	z.mu.Lock()
	defer z.mu.Unlock()
	return z.server != nil
}

// Recorder is an in-memory Responder for tests and simulation without
// multicast access.
type Recorder struct {
	mu       sync.Mutex
	running  bool
	Hostname string
	Service  string
	Port     int
	Starts   int
	Stops    int
}

func (r *Recorder) Start(hostname, service string, port int, ip net.IP) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.running = true
	r.Hostname, r.Service, r.Port = hostname, service, port
	r.Starts++
	return nil
}

func (r *Recorder) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		r.Stops++
	}
	r.running = false
}

func (r *Recorder) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// Snapshot returns the last registration and counters.
func (r *Recorder) Snapshot() (hostname, service string, starts, stops int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Hostname, r.Service, r.Starts, r.Stops
}
