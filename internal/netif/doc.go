// Package netif describes the wireless interface the connectivity manager
// drives, and provides SimRadio, an in-process implementation used by the
// daemon's simulate mode and by tests.
//
// The driver is an external collaborator: it reports association changes
// through Subscribe callbacks and never calls back into the manager
// synchronously.
package netif
