package control

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/muurk/rover/internal/actuator"
	"github.com/muurk/rover/internal/logging"
	"github.com/muurk/rover/internal/protocol"
)

// Time allowed to write a frame to the client.
const writeWait = 2 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type client struct {
	id     string
	remote string
	conn   *websocket.Conn

	writeMu sync.Mutex
}

func (c *client) write(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	err := c.conn.WriteMessage(websocket.BinaryMessage, data)
	_ = c.conn.SetWriteDeadline(time.Time{})
	logging.LogWebSocketMessage(c.remote, "outbound", websocket.BinaryMessage, data)
	return err
}

// HandleWebSocket upgrades the request and runs a control session. A newer
// client replaces the current one.
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn("WebSocket upgrade failed",
			zap.String("remote_addr", r.RemoteAddr),
			zap.Error(err),
		)
		return
	}

	c := &client{id: uuid.New().String(), remote: r.RemoteAddr, conn: conn}
	if prev := s.attach(c); prev != nil {
		logging.Info("Control client replaced",
			zap.String("previous", prev.id),
			zap.String("session_id", c.id),
		)
		_ = prev.conn.Close()
	}
	logging.LogConnection(c.remote, "control_session_open")
	s.watchdog.Arm(s.Timeout())

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-r.Context().Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	s.readLoop(c)
}

func (s *Server) readLoop(c *client) {
	h := &session{s: s}
	for {
		opcode, data, err := c.conn.ReadMessage()
		if err != nil {
			var ce *websocket.CloseError
			if errors.As(err, &ce) {
				logging.LogConnection(c.remote, "control_session_closed")
			} else {
				logging.Debug("Control session read failed",
					zap.String("remote_addr", c.remote),
					zap.Error(err),
				)
			}
			_ = c.conn.Close()
			if s.detach(c) {
				h.OnClose()
			}
			return
		}

		// Frames from a replaced client are dropped.
		if !s.current(c) {
			continue
		}
		_, _ = protocol.HandleMessage(h, c.remote, opcode, data)
	}
}

func (s *Server) attach(c *client) *client {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.client
	s.client = c
	return prev
}

// detach clears c if it is still the current client and reports whether it
// was.
func (s *Server) detach(c *client) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client != c {
		return false
	}
	s.client = nil
	return true
}

func (s *Server) current(c *client) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.client == c
}

func (s *Server) sendTimeout() {
	s.mu.Lock()
	c := s.client
	s.mu.Unlock()
	if c == nil {
		return
	}
	if err := c.write(protocol.EncodeEvent(protocol.EventTimeout)); err != nil {
		logging.Debug("Failed to send timeout", zap.String("session_id", c.id), zap.Error(err))
	}
}

func (s *Server) setTimeout(d time.Duration) {
	s.mu.Lock()
	s.timeout = d
	s.mu.Unlock()
}

// session applies decoded frames to the actuators.
type session struct {
	s *Server
}

// OnFrame re-arms the watchdog for every frame that decoded, text included.
func (h *session) OnFrame(protocol.Message) {
	h.s.watchdog.Arm(h.s.Timeout())
}

func (h *session) OnEvent(tag protocol.EventTag) {
	d := h.s.deps
	switch tag {
	case protocol.EventEmergencyStop:
		logging.Warn("Emergency stop")
		if d.Motor != nil {
			d.Motor.SetSpeed(0)
		}
		if d.Steering != nil {
			d.Steering.SetAngle(0)
		}
		if d.Aux != nil {
			d.Aux.SetAngle(0)
		}
	case protocol.EventRevertSettings:
		logging.Info("Reverting servo limits to stored calibration")
		h.s.applyPersisted()
	case protocol.EventTimeout:
		h.s.watchdog.Fire()
	}
}

func (h *session) OnControl(tag protocol.ControlTag, value int16) {
	s := h.s
	d := s.deps
	switch tag {
	case protocol.ControlSpeed:
		if d.Motor != nil {
			d.Motor.SetSpeed(actuator.ClampSpeed(int(value)))
		}
	case protocol.ControlSteering:
		if d.Steering != nil {
			d.Steering.SetAngle(int(value))
		}
	case protocol.ControlAux:
		if d.Aux != nil {
			d.Aux.SetAngle(int(value))
		}
	case protocol.ControlSteeringMaxPW, protocol.ControlSteeringMinPW:
		s.mu.Lock()
		l, ok := assemble(&s.steerPW, tag == protocol.ControlSteeringMaxPW, value)
		s.mu.Unlock()
		if ok {
			applyPulseWidth(d.Steering, actuator.KeySteering, l)
		}
	case protocol.ControlAuxMaxPW, protocol.ControlAuxMinPW:
		s.mu.Lock()
		l, ok := assemble(&s.auxPW, tag == protocol.ControlAuxMaxPW, value)
		s.mu.Unlock()
		if ok {
			applyPulseWidth(d.Aux, actuator.KeyAux, l)
		}
	case protocol.ControlTimeout:
		if value <= 0 {
			return
		}
		period := time.Duration(value) * time.Millisecond
		s.setTimeout(period)
		s.watchdog.Arm(period)
	}
}

func (h *session) OnText(string) {}

func (h *session) OnClose() {
	h.s.watchdog.Fire()
}

func assemble(a *protocol.LimitAssembler, isMax bool, value int16) (protocol.Limit, bool) {
	if isMax {
		return a.SetMax(int(value))
	}
	return a.SetMin(int(value))
}

// applyPulseWidth changes the live pulse range only; persisted calibration is
// untouched.
func applyPulseWidth(servo actuator.Servo, name string, l protocol.Limit) {
	if servo == nil {
		return
	}
	next := servo.Limits().WithPulseWidth(l.Min, l.Max)
	if err := next.Validate(); err != nil {
		logging.Warn("Rejected pulse width range",
			zap.String("servo", name),
			zap.Int("min", l.Min),
			zap.Int("max", l.Max),
			zap.Error(err),
		)
		return
	}
	servo.SetLimits(next)
	logging.Debug("Pulse width range applied",
		zap.String("servo", name),
		zap.Int("min", l.Min),
		zap.Int("max", l.Max),
	)
}
