// Package control serves the rover's station-mode surface: the drive,
// status and calibration pages, /data.json, /restart and the binary control
// websocket on /ws.
//
// Only one control client is live at a time; a new connection replaces the
// previous one. Every decoded frame re-arms a watchdog. When it expires, or
// the client goes away, radio power save is re-enabled, both servos are put
// back on their stored calibration and a TIMEOUT event is sent to the client
// if one is still connected.
//
// Pulse-width limits received over the websocket apply live only. The
// calibration form on /calibrate is the only path that persists them.
package control
