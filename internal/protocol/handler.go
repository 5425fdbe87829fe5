package protocol

import (
	"go.uber.org/zap"

	"github.com/muurk/rover/internal/logging"
)

// Handler receives decoded frames. OnFrame is called for every decoded frame
// before the typed callback.
type Handler interface {
	OnFrame(msg Message)
	OnEvent(tag EventTag)
	OnControl(tag ControlTag, value int16)
	OnText(text string)
	OnClose()
}

// HandleMessage decodes one inbound frame and dispatches it to h. Malformed
// frames are logged and returned as errors; the caller drops them and keeps
// the session.
func HandleMessage(h Handler, remoteAddr string, opcode int, data []byte) (Message, error) {
	logging.LogWebSocketMessage(remoteAddr, "inbound", opcode, data)

	msg, err := Decode(opcode, data)
	if err != nil {
		logging.Warn("Dropping malformed frame",
			zap.String("remote_addr", remoteAddr),
			zap.Int("length", len(data)),
			zap.Error(err),
		)
		logging.LogRawBytes("Malformed frame bytes", data)
		return nil, err
	}

	h.OnFrame(msg)
	switch m := msg.(type) {
	case EventMessage:
		h.OnEvent(m.Tag)
	case ControlMessage:
		h.OnControl(m.Tag, m.Value)
	case TextMessage:
		h.OnText(m.Text)
	case CloseMessage:
		h.OnClose()
	}
	return msg, nil
}
