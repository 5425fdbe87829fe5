// Package provisioning serves the captive portal used to give the rover its
// network settings.
//
// In captive AP mode the Portal's Routes are mounted on a fresh server and
// NotFound redirects everything else to the form, which is what operating
// systems' captive portal probes expect. StationRoutes keep the same form
// reachable once the rover has joined a network.
//
// Submissions are handed to the connectivity manager, which decides which
// transitions they require.
package provisioning
