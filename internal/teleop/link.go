package teleop

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/muurk/rover/internal/logging"
	"github.com/muurk/rover/internal/protocol"
)

const (
	dialTimeout = 5 * time.Second
	writeWait   = 2 * time.Second
)

// ErrLinkClosed is returned by writes after the link has gone away.
var ErrLinkClosed = errors.New("control link closed")

// Link is a client connection to a rover's control channel.
type Link struct {
	conn   *websocket.Conn
	remote string
	events chan protocol.EventTag
	done   chan struct{}

	writeMu sync.Mutex

	mu  sync.Mutex
	err error
}

// Dial opens the control channel at url (ws://host/ws).
func Dial(ctx context.Context, url string) (*Link, error) {
	dialer := websocket.Dialer{HandshakeTimeout: dialTimeout}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	l := &Link{
		conn:   conn,
		remote: url,
		events: make(chan protocol.EventTag, 8),
		done:   make(chan struct{}),
	}
	go l.readLoop()
	logging.LogConnection(url, "control_link_open")
	return l, nil
}

// Control sends a 3-byte control frame.
func (l *Link) Control(tag protocol.ControlTag, value int16) error {
	return l.write(protocol.EncodeControl(tag, value))
}

// Event sends a 1-byte event frame.
func (l *Link) Event(tag protocol.EventTag) error {
	return l.write(protocol.EncodeEvent(tag))
}

// Events delivers events sent by the rover. It is closed when the link
// goes away.
func (l *Link) Events() <-chan protocol.EventTag {
	return l.events
}

// Done is closed when the read side of the link ends.
func (l *Link) Done() <-chan struct{} {
	return l.done
}

// Err returns the error that ended the link, if any.
func (l *Link) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

// Close sends a close frame and closes the connection.
func (l *Link) Close() error {
	l.writeMu.Lock()
	_ = l.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
	l.writeMu.Unlock()
	return l.conn.Close()
}

func (l *Link) write(data []byte) error {
	select {
	case <-l.done:
		return ErrLinkClosed
	default:
	}
	l.writeMu.Lock()
	defer l.writeMu.Unlock()
	_ = l.conn.SetWriteDeadline(time.Now().Add(writeWait))
	logging.LogWebSocketMessage(l.remote, "outbound", websocket.BinaryMessage, data)
	return l.conn.WriteMessage(websocket.BinaryMessage, data)
}

func (l *Link) readLoop() {
	defer close(l.done)
	defer close(l.events)

	for {
		opcode, data, err := l.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				l.mu.Lock()
				l.err = err
				l.mu.Unlock()
			}
			logging.LogConnection(l.remote, "control_link_closed")
			return
		}
		logging.LogWebSocketMessage(l.remote, "inbound", opcode, data)

		msg, err := protocol.Decode(opcode, data)
		if err != nil {
			logging.Debug("Ignoring frame from rover", zap.Error(err))
			continue
		}
		ev, ok := msg.(protocol.EventMessage)
		if !ok {
			continue
		}
		select {
		case l.events <- ev.Tag:
		default:
			logging.Warn("Dropping rover event, reader is behind", zap.Stringer("event", ev.Tag))
		}
	}
}
