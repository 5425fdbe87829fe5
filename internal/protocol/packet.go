package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// WebSocket opcodes the decoder distinguishes. Values match RFC 6455 and the
// gorilla/websocket message types.
const (
	OpcodeText   = 1
	OpcodeBinary = 2
	OpcodeClose  = 8
)

// Frame sizes of the binary protocol.
const (
	EventFrameSize   = 1
	ControlFrameSize = 3
)

// Decode errors.
var (
	ErrFrameLength = errors.New("unexpected binary frame length")
	ErrUnknownTag  = errors.New("unknown tag")
	ErrOpcode      = errors.New("unsupported frame opcode")
)

// EventTag is the payload of a 1-byte event frame.
type EventTag uint8

const (
	EventNone           EventTag = 0
	EventTimeout        EventTag = 1
	EventEmergencyStop  EventTag = 2
	EventRevertSettings EventTag = 3
)

func (t EventTag) String() string {
	switch t {
	case EventNone:
		return "none"
	case EventTimeout:
		return "timeout"
	case EventEmergencyStop:
		return "emergency_stop"
	case EventRevertSettings:
		return "revert_settings"
	default:
		return fmt.Sprintf("event(%d)", uint8(t))
	}
}

// ControlTag is the type byte of a 3-byte control frame.
type ControlTag uint8

const (
	ControlNone          ControlTag = 0
	ControlSpeed         ControlTag = 1
	ControlSteering      ControlTag = 2
	ControlAux           ControlTag = 3
	ControlSteeringMaxPW ControlTag = 4
	ControlSteeringMinPW ControlTag = 5
	ControlAuxMaxPW      ControlTag = 6
	ControlAuxMinPW      ControlTag = 7
	ControlTimeout       ControlTag = 8
)

var controlNames = map[ControlTag]string{
	ControlNone:          "none",
	ControlSpeed:         "speed",
	ControlSteering:      "steering",
	ControlAux:           "aux",
	ControlSteeringMaxPW: "steering_max_pw",
	ControlSteeringMinPW: "steering_min_pw",
	ControlAuxMaxPW:      "aux_max_pw",
	ControlAuxMinPW:      "aux_min_pw",
	ControlTimeout:       "ws_timeout",
}

func (t ControlTag) String() string {
	if name, ok := controlNames[t]; ok {
		return name
	}
	return fmt.Sprintf("control(%d)", uint8(t))
}

// Message is one decoded inbound frame.
type Message interface {
	Kind() string
	String() string
}

// EventMessage is a 1-byte event frame.
type EventMessage struct {
	Tag EventTag
}

func (m EventMessage) Kind() string   { return "event" }
func (m EventMessage) String() string { return fmt.Sprintf("Event{%s}", m.Tag) }

// ControlMessage is a 3-byte control frame: tag plus little-endian int16.
type ControlMessage struct {
	Tag   ControlTag
	Value int16
}

func (m ControlMessage) Kind() string { return "control" }
func (m ControlMessage) String() string {
	return fmt.Sprintf("Control{%s=%d}", m.Tag, m.Value)
}

// TextMessage is any text frame. Text frames carry no commands.
type TextMessage struct {
	Text string
}

func (m TextMessage) Kind() string   { return "text" }
func (m TextMessage) String() string { return fmt.Sprintf("Text{len=%d}", len(m.Text)) }

// CloseMessage is a close frame.
type CloseMessage struct{}

func (m CloseMessage) Kind() string   { return "close" }
func (m CloseMessage) String() string { return "Close{}" }

// Decode classifies one frame by opcode and exact length.
func Decode(opcode int, data []byte) (Message, error) {
	switch opcode {
	case OpcodeClose:
		return CloseMessage{}, nil
	case OpcodeText:
		return TextMessage{Text: string(data)}, nil
	case OpcodeBinary:
	default:
		return nil, fmt.Errorf("%w: %d", ErrOpcode, opcode)
	}

	switch len(data) {
	case EventFrameSize:
		tag := EventTag(data[0])
		if tag < EventTimeout || tag > EventRevertSettings {
			return nil, fmt.Errorf("%w: event %d", ErrUnknownTag, data[0])
		}
		return EventMessage{Tag: tag}, nil

	case ControlFrameSize:
		tag := ControlTag(data[0])
		if tag < ControlSpeed || tag > ControlTimeout {
			return nil, fmt.Errorf("%w: control %d", ErrUnknownTag, data[0])
		}
		return ControlMessage{
			Tag:   tag,
			Value: int16(binary.LittleEndian.Uint16(data[1:3])),
		}, nil

	default:
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameLength, len(data))
	}
}

// EncodeEvent builds a 1-byte event frame.
func EncodeEvent(tag EventTag) []byte {
	return []byte{byte(tag)}
}

// EncodeControl builds a 3-byte control frame.
func EncodeControl(tag ControlTag, value int16) []byte {
	b := make([]byte, ControlFrameSize)
	b[0] = byte(tag)
	binary.LittleEndian.PutUint16(b[1:], uint16(value))
	return b
}
