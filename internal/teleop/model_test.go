package teleop

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muurk/rover/internal/protocol"
	"github.com/muurk/rover/internal/roverclient"
)

type sentFrame struct {
	event   protocol.EventTag
	control protocol.ControlTag
	value   int16
}

type fakeSender struct {
	frames []sentFrame
	err    error
}

func (f *fakeSender) Control(tag protocol.ControlTag, v int16) error {
	f.frames = append(f.frames, sentFrame{control: tag, value: v})
	return f.err
}

func (f *fakeSender) Event(tag protocol.EventTag) error {
	f.frames = append(f.frames, sentFrame{event: tag})
	return f.err
}

func keyMsg(s string) tea.KeyMsg {
	switch s {
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case "left":
		return tea.KeyMsg{Type: tea.KeyLeft}
	case " ":
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	nm, ok := next.(Model)
	require.True(t, ok)
	return nm, cmd
}

func TestKeysSendFrames(t *testing.T) {
	s := &fakeSender{}
	m := NewModel(s, nil, Options{})

	m, _ = update(t, m, keyMsg("up"))
	m, _ = update(t, m, keyMsg("w"))
	m, _ = update(t, m, keyMsg("left"))
	m, _ = update(t, m, keyMsg("]"))
	m, _ = update(t, m, keyMsg("x"))

	assert.Equal(t, []sentFrame{
		{control: protocol.ControlSpeed, value: 10},
		{control: protocol.ControlSpeed, value: 20},
		{control: protocol.ControlSteering, value: -15},
		{control: protocol.ControlAux, value: 10},
	}, s.frames)
	assert.Equal(t, Drive{Speed: 20, Steering: -15, Aux: 10}, m.Drive())

	m, _ = update(t, m, keyMsg(" "))
	assert.Equal(t, sentFrame{event: protocol.EventEmergencyStop}, s.frames[len(s.frames)-1])
	assert.Equal(t, Drive{}, m.Drive())
}

func TestInitRequestsTimeout(t *testing.T) {
	s := &fakeSender{}
	m := NewModel(s, nil, Options{Timeout: 400 * time.Millisecond})

	assert.Equal(t, 200*time.Millisecond, m.keepAlive())

	m.sendTimeoutCmd()()
	assert.Equal(t, []sentFrame{{control: protocol.ControlTimeout, value: 400}}, s.frames)

	fast := NewModel(s, nil, Options{Timeout: 20 * time.Millisecond})
	assert.Equal(t, minKeepAlive, fast.keepAlive())
}

func TestKeepAliveResendsSpeed(t *testing.T) {
	s := &fakeSender{}
	m := NewModel(s, nil, Options{})
	m.drive.Speed = 30

	m, cmd := update(t, m, keepAliveMsg{})
	assert.NotNil(t, cmd, "keep-alive reschedules itself")
	assert.Equal(t, []sentFrame{{control: protocol.ControlSpeed, value: 30}}, s.frames)

	m, _ = update(t, m, linkClosedMsg{})
	_, cmd = update(t, m, keepAliveMsg{})
	assert.Nil(t, cmd)
	assert.Len(t, s.frames, 1, "no keep-alive after the link closed")
}

func TestTimeoutEventsAreShown(t *testing.T) {
	events := make(chan protocol.EventTag, 1)
	m := NewModel(&fakeSender{}, events, Options{})
	fixed := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return fixed }

	m, cmd := update(t, m, eventMsg{tag: protocol.EventTimeout})
	require.NotNil(t, cmd, "keeps waiting for events")
	assert.Equal(t, 1, m.Timeouts())
	assert.Contains(t, m.View(), "watchdog fired 1 time(s)")

	close(events)
	assert.Equal(t, linkClosedMsg{}, cmd())
}

func TestQuitStopsMotor(t *testing.T) {
	s := &fakeSender{}
	m := NewModel(s, nil, Options{})
	m.drive.Speed = 50

	_, cmd := update(t, m, keyMsg("q"))
	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())
	assert.Equal(t, []sentFrame{{control: protocol.ControlSpeed, value: 0}}, s.frames)
}

func TestStatusPolling(t *testing.T) {
	calls := 0
	m := NewModel(&fakeSender{}, nil, Options{
		Name: "rover-1",
		Status: func() (*roverclient.Status, error) {
			calls++
			if calls > 1 {
				return nil, errors.New("timeout")
			}
			return &roverclient.Status{LocalIP: "192.168.1.42", FirmwareVersion: "1.2.0", UptimeMS: 5000}, nil
		},
	})

	m, _ = update(t, m, m.fetchStatus()())
	view := m.View()
	assert.Contains(t, view, "DRIVING ROVER-1")
	assert.Contains(t, view, "192.168.1.42")
	assert.NotContains(t, view, "stale")

	m, _ = update(t, m, m.fetchStatus()())
	assert.Contains(t, m.View(), "(stale)")
}

func TestSendErrorIsShown(t *testing.T) {
	s := &fakeSender{err: ErrLinkClosed}
	m := NewModel(s, nil, Options{})

	m, _ = update(t, m, keyMsg("up"))
	assert.True(t, strings.Contains(m.View(), "Send failed"))
}
