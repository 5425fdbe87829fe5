// Package settings manages the rover daemon's own configuration file.
//
// The file is YAML and lives in the platform configuration directory:
//   - Linux: $XDG_CONFIG_HOME/rover/netd.yaml or $HOME/.config/rover/netd.yaml
//   - macOS: $HOME/.config/rover/netd.yaml
//   - Windows: %LOCALAPPDATA%\rover\netd.yaml
//
// These are process settings (listen addresses, timings, store backend). The
// Wi-Fi credentials and servo calibration entered by users are not kept here;
// they live in the configuration store namespaces managed by the daemon.
//
// # Usage Example
//
//	s, err := settings.Load("")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	s.Reconnect.Threshold = 3
//	if err := s.Validate(); err != nil {
//	    log.Fatal(err)
//	}
//	if err := s.Save(""); err != nil {
//	    log.Fatal(err)
//	}
//
// An empty path means the default location from GetConfigPath. Save writes a
// temporary file and renames it over the target, under a package mutex.
package settings
