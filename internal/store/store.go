package store

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"sync"
)

// Backend kinds accepted by Open.
const (
	KindMemory = "memory"
	KindYAML   = "yaml"
	KindSQLite = "sqlite"
)

// ErrUnknownBackend is returned by Open for an unsupported kind.
var ErrUnknownBackend = errors.New("unknown store backend")

// Backend persists string values grouped by namespace.
type Backend interface {
	// Load returns every committed key of ns. A missing namespace is not an error.
	Load(ns string) (map[string]string, error)

	// Save upserts values into ns durably. Keys not present are left untouched.
	Save(ns string, values map[string]string) error

	// Close releases the backend.
	Close() error
}

// Open returns the backend of the given kind. path is ignored for memory.
func Open(kind, path string) (Backend, error) {
	switch kind {
	case KindMemory, "":
		return NewMemory(), nil
	case KindYAML:
		return NewYAMLFile(path), nil
	case KindSQLite:
		return OpenSQLite(path)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, kind)
	}
}

// Handle is an open namespace. Setters stage values; Commit makes them
// durable. Getters only ever observe committed values.
type Handle struct {
	backend Backend
	ns      string

	mu        sync.Mutex
	committed map[string]string
	staged    map[string]string
	writes    int
}

// OpenNamespace loads ns from backend.
func OpenNamespace(backend Backend, ns string) (*Handle, error) {
	values, err := backend.Load(ns)
	if err != nil {
		return nil, fmt.Errorf("failed to open namespace %s: %w", ns, err)
	}
	if values == nil {
		values = make(map[string]string)
	}
	return &Handle{
		backend:   backend,
		ns:        ns,
		committed: values,
		staged:    make(map[string]string),
	}, nil
}

// Namespace returns the namespace name.
func (h *Handle) Namespace() string {
	return h.ns
}

func (h *Handle) get(key string) (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	v, ok := h.committed[key]
	return v, ok
}

// Has reports whether key has a committed value.
func (h *Handle) Has(key string) bool {
	_, ok := h.get(key)
	return ok
}

// GetString returns the committed value of key or def.
func (h *Handle) GetString(key, def string) string {
	if v, ok := h.get(key); ok {
		return v
	}
	return def
}

// GetBool returns the committed u8 flag of key or def.
func (h *Handle) GetBool(key string, def bool) bool {
	v, ok := h.get(key)
	if !ok {
		return def
	}
	n, err := strconv.ParseUint(v, 10, 8)
	if err != nil {
		return def
	}
	return n != 0
}

// GetUint32 returns the committed value of key or def.
func (h *Handle) GetUint32(key string, def uint32) uint32 {
	v, ok := h.get(key)
	if !ok {
		return def
	}
	n, err := strconv.ParseUint(v, 10, 32)
	if err != nil {
		return def
	}
	return uint32(n)
}

// GetBlob returns the committed blob of key.
func (h *Handle) GetBlob(key string) ([]byte, bool) {
	v, ok := h.get(key)
	if !ok {
		return nil, false
	}
	b, err := base64.StdEncoding.DecodeString(v)
	if err != nil {
		return nil, false
	}
	return b, true
}

func (h *Handle) stage(key, value string) {
	h.mu.Lock()
	h.staged[key] = value
	h.mu.Unlock()
}

// SetString stages a string value.
func (h *Handle) SetString(key, value string) {
	h.stage(key, value)
}

// SetBool stages a u8 flag.
func (h *Handle) SetBool(key string, value bool) {
	if value {
		h.stage(key, "1")
		return
	}
	h.stage(key, "0")
}

// SetUint32 stages a uint32 value.
func (h *Handle) SetUint32(key string, value uint32) {
	h.stage(key, strconv.FormatUint(uint64(value), 10))
}

// SetBlob stages a binary value.
func (h *Handle) SetBlob(key string, value []byte) {
	h.stage(key, base64.StdEncoding.EncodeToString(value))
}

// Pending returns the number of staged keys.
func (h *Handle) Pending() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.staged)
}

// Commit persists staged values. On failure the staged values are dropped
// and committed values are unchanged.
func (h *Handle) Commit() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.staged) == 0 {
		return nil
	}

	staged := h.staged
	h.staged = make(map[string]string)

	if err := h.backend.Save(h.ns, staged); err != nil {
		return fmt.Errorf("failed to commit namespace %s: %w", h.ns, err)
	}

	for k, v := range staged {
		h.committed[k] = v
	}
	h.writes += len(staged)
	return nil
}

// Writes returns the number of key writes committed through this handle.
func (h *Handle) Writes() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.writes
}
