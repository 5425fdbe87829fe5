package store

import (
	"errors"
	"sync"
)

// ErrInjected is returned by a Memory backend after FailNext.
var ErrInjected = errors.New("injected store failure")

// Memory is a process-local backend. It is the default for simulation and
// tests.
type Memory struct {
	mu       sync.Mutex
	data     map[string]map[string]string
	failNext bool
	saves    int
}

// NewMemory returns an empty memory backend.
func NewMemory() *Memory {
	return &Memory{data: make(map[string]map[string]string)}
}

// Load implements Backend.
func (m *Memory) Load(ns string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failNext {
		m.failNext = false
		return nil, ErrInjected
	}
	out := make(map[string]string, len(m.data[ns]))
	for k, v := range m.data[ns] {
		out[k] = v
	}
	return out, nil
}

// Save implements Backend.
func (m *Memory) Save(ns string, values map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failNext {
		m.failNext = false
		return ErrInjected
	}
	if m.data[ns] == nil {
		m.data[ns] = make(map[string]string)
	}
	for k, v := range values {
		m.data[ns][k] = v
	}
	m.saves++
	return nil
}

// Close implements Backend.
func (m *Memory) Close() error {
	return nil
}

// FailNext makes the next Load or Save return ErrInjected.
func (m *Memory) FailNext() {
	m.mu.Lock()
	m.failNext = true
	m.mu.Unlock()
}

// Saves returns the number of successful Save calls.
func (m *Memory) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}
