// Package protocol implements the rover's WebSocket control protocol.
//
// The protocol is binary and fire-and-forget. Frames are classified by
// WebSocket opcode and exact length, never by content search:
//
//   - 1-byte binary frame: an event tag (timeout, emergency stop, revert
//     settings).
//   - 3-byte binary frame: a control tag followed by a little-endian int16.
//   - Text frames are accepted and ignored. Close frames act like a timeout.
//
// Any other binary length, or a tag outside the known range, is malformed and
// dropped.
//
// # Control tags
//
//	1 speed            -100..100
//	2 steering         degrees
//	3 aux              degrees
//	4 steering_max_pw  microseconds
//	5 steering_min_pw  microseconds
//	6 aux_max_pw       microseconds
//	7 aux_min_pw       microseconds
//	8 ws_timeout       milliseconds
//
// Pulse-width limits arrive as two independent frames. LimitAssembler holds
// the halves until both have been seen.
//
// # Usage Example
//
//	msg, err := protocol.Decode(websocket.BinaryMessage, data)
//	if err != nil {
//	    return err
//	}
//	switch m := msg.(type) {
//	case protocol.ControlMessage:
//	    fmt.Println(m.Tag, m.Value)
//	}
//
// The same frames are produced by EncodeEvent and EncodeControl, which the
// rover uses for its timeout notification and the teleop client uses for
// everything it sends.
package protocol
