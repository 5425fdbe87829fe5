// Package store is the durable key/value store behind the daemon's settings
// and calibration data.
//
// Values are grouped in namespaces ("wifi_settings", "calibration"). A Handle
// opened on a namespace offers typed getters that fall back to a caller
// supplied default, and setters that only stage values until Commit:
//
//	h, err := store.OpenNamespace(backend, "wifi_settings")
//	ssid := h.GetString("ssid", "")
//	h.SetString("ssid", "Home")
//	err = h.Commit()
//
// # Backends
//
//   - memory: process-local, used by simulation and tests
//   - yaml: one YAML document, atomically replaced on every commit
//   - sqlite: a kv table in a pure-Go SQLite database
//
// Flags are stored as "0"/"1", integers in decimal, blobs in base64 so every
// backend only has to persist strings.
package store
