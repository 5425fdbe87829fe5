// Package teleop is the terminal remote control behind `rover-cfg drive`.
//
// A Link is the client side of the rover's binary control channel. The Model
// maps keys onto speed and servo frames, re-sends the speed often enough to
// keep the rover's watchdog from firing, polls /data.json, and shows the
// TIMEOUT events the rover sends when its watchdog fires anyway.
package teleop
