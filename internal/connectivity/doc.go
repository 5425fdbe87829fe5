// Package connectivity owns the rover's network mode.
//
// The Manager arbitrates between two modes:
//
//   - CaptiveAP: the rover hosts an access point, a captive DNS responder and
//     the provisioning portal, and nothing else.
//   - Station: the rover joins the configured network and serves the handlers
//     buffered in the handler registry.
//
// # Signalling
//
// Three kinds of context touch connectivity state: the radio callback
// (HandleNetworkEvent), the manager's Run loop, and HTTP handlers. Only Run
// performs transitions. The callback and the handlers set bits on the event
// signal (SwitchToStation, SwitchToCaptiveAP, Reconnect, MdnsChanged) and Run
// consumes them in that priority order, clearing each bit only after its step
// completes. Configuration and mode live behind the manager's mutex;
// handlers read snapshots via Config and edit via Update.
//
// # Failure policy
//
//   - Radio, interface and server bring-up failures are FatalErrors and end
//     in a Restarter call.
//   - Store failures are logged; the in-memory configuration stays in effect.
//   - ReconnectThreshold consecutive station disconnects fall back to the
//     captive portal. Each retry can be delayed by ReconnectBackoff.
//
// # Persistence
//
// PersistConfig writes only fields whose value differs from the committed
// value, so persisting an unchanged configuration costs no store writes.
package connectivity
