// Package httpserver provides the per-mode HTTP server instance.
//
// The connectivity manager creates a fresh Server every time it enters a mode
// and shuts the previous one down. Routes are held in a list and compiled
// into an immutable gorilla/mux router on every change, so handlers may be
// registered while the server is already serving (the handler registry does
// exactly that for late registrations in station mode).
//
// # Lifecycle
//
//	srv := httpserver.New("station", ":80")
//	srv.Handle("/data.json", http.MethodGet, h)
//	if err := srv.Start(); err != nil { ... }   // bind errors surface here
//	...
//	_ = srv.Shutdown(ctx)                        // cancels request contexts first
//
// Shutdown cancels the base context of every request before draining, which
// is how long-lived websocket handlers learn that the server is going away.
package httpserver
