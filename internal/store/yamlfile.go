package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// yamlDocument is the on-disk layout of a YAML store file.
type yamlDocument struct {
	Version    int                          `yaml:"version"`
	Namespaces map[string]map[string]string `yaml:"namespaces"`
}

// YAMLFile stores every namespace in a single YAML document, rewritten
// atomically on each Save.
type YAMLFile struct {
	path string
	mu   sync.Mutex
}

// NewYAMLFile returns a backend for path. The file is created on first Save.
func NewYAMLFile(path string) *YAMLFile {
	return &YAMLFile{path: path}
}

// Path returns the backing file path.
func (f *YAMLFile) Path() string {
	return f.path
}

func (f *YAMLFile) read() (*yamlDocument, error) {
	doc := &yamlDocument{Version: 1, Namespaces: make(map[string]map[string]string)}

	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return doc, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read store file: %w", err)
	}

	if err := yaml.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("failed to parse store file: %w", err)
	}
	if doc.Version != 1 {
		return nil, fmt.Errorf("unsupported store version: %d (expected 1)", doc.Version)
	}
	if doc.Namespaces == nil {
		doc.Namespaces = make(map[string]map[string]string)
	}
	return doc, nil
}

// Load implements Backend.
func (f *YAMLFile) Load(ns string) (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.read()
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(doc.Namespaces[ns]))
	for k, v := range doc.Namespaces[ns] {
		out[k] = v
	}
	return out, nil
}

// Save implements Backend.
func (f *YAMLFile) Save(ns string, values map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.read()
	if err != nil {
		return err
	}
	if doc.Namespaces[ns] == nil {
		doc.Namespaces[ns] = make(map[string]string)
	}
	for k, v := range values {
		doc.Namespaces[ns][k] = v
	}

	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal store: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(f.path), 0700); err != nil {
		return fmt.Errorf("failed to create store directory: %w", err)
	}

	// Write to temporary file first (atomic write)
	tmpPath := f.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temporary store file: %w", err)
	}
	if err := os.Rename(tmpPath, f.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to save store file: %w", err)
	}
	return nil
}

// Close implements Backend.
func (f *YAMLFile) Close() error {
	return nil
}
