// Package registry keeps the station-mode HTTP handlers contributed by other
// subsystems and replays them onto every new station server.
//
// Subsystems register once at boot. The connectivity manager calls ApplyAll
// each time it starts a station server and Detach before stopping it, so
// contributors never observe mode transitions themselves.
package registry

import (
	"errors"
	"net/http"
	"sync"

	"go.uber.org/zap"

	"github.com/muurk/rover/internal/logging"
)

// DefaultCapacity is the number of registrations accepted.
const DefaultCapacity = 8

// ErrFull is returned once the registry holds its capacity.
var ErrFull = errors.New("handler registry full")

// Router is the subset of a server the registry applies handlers to.
type Router interface {
	Handle(path, method string, h http.HandlerFunc)
}

// Registration is one (path, method, handler) triple.
type Registration struct {
	Path    string
	Method  string
	Handler http.HandlerFunc
}

// Registry is a bounded ordered list of registrations plus the station router
// they are currently applied to, if any.
type Registry struct {
	mu       sync.Mutex
	capacity int
	entries  []Registration
	attached Router
}

// New returns a registry holding at most capacity entries.
func New(capacity int) *Registry {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Registry{capacity: capacity}
}

// Register buffers a registration. If a station server is attached it is
// applied to it immediately as well.
func (r *Registry) Register(path, method string, h http.HandlerFunc) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.entries) >= r.capacity {
		logging.Warn("Handler registry full",
			zap.String("path", path),
			zap.Int("capacity", r.capacity),
		)
		return ErrFull
	}

	reg := Registration{Path: path, Method: method, Handler: h}
	r.entries = append(r.entries, reg)

	if r.attached != nil {
		r.attached.Handle(reg.Path, reg.Method, reg.Handler)
		logging.Debug("Handler applied to running server", zap.String("path", path))
	} else {
		logging.Debug("Handler buffered", zap.String("path", path))
	}
	return nil
}

// ApplyAll applies every buffered registration to router in registration
// order and attaches it, so later registrations reach it directly. It is
// called once per station server start.
func (r *Registry) ApplyAll(router Router) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, reg := range r.entries {
		router.Handle(reg.Path, reg.Method, reg.Handler)
	}
	r.attached = router
	logging.Info("Registered handlers applied", zap.Int("count", len(r.entries)))
}

// Detach forgets the attached router. Called before the station server stops
// and whenever the provisioning server is active.
func (r *Registry) Detach() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attached = nil
}

// Attached reports whether a station router is attached.
func (r *Registry) Attached() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.attached != nil
}

// Len returns the number of registrations.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Registrations returns a copy of the buffered registrations.
func (r *Registry) Registrations() []Registration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Registration(nil), r.entries...)
}
