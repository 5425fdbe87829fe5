package teleop

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/rover/internal/protocol"
	"github.com/muurk/rover/internal/roverclient"
)

const (
	// DefaultTimeout is the watchdog period requested from the rover.
	DefaultTimeout = 1000 * time.Millisecond

	statusInterval = time.Second
	minKeepAlive   = 50 * time.Millisecond
)

// Sender writes frames to the rover.
type Sender interface {
	Control(tag protocol.ControlTag, value int16) error
	Event(tag protocol.EventTag) error
}

// StatusFunc fetches /data.json.
type StatusFunc func() (*roverclient.Status, error)

// Options configures a drive session.
type Options struct {
	Name    string        // shown in the title
	Timeout time.Duration // requested watchdog period
	Status  StatusFunc    // nil disables status polling
}

type keepAliveMsg struct{}
type statusTickMsg struct{}

type statusMsg struct {
	status *roverclient.Status
	err    error
}

type eventMsg struct {
	tag protocol.EventTag
}

type linkClosedMsg struct{}

// Model is the bubbletea model of a drive session.
type Model struct {
	opts   Options
	sender Sender
	events <-chan protocol.EventTag

	drive Drive

	status    *roverclient.Status
	statusErr error
	sendErr   error

	timeouts    int
	lastTimeout time.Time
	lastEvent   string
	closed      bool

	width int
	keys  keyMap
	help  help.Model
	now   func() time.Time
}

// NewModel returns a drive model sending to s. events may be nil.
func NewModel(s Sender, events <-chan protocol.EventTag, opts Options) Model {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	return Model{
		opts:   opts,
		sender: s,
		events: events,
		keys:   defaultKeyMap(),
		help:   help.New(),
		now:    time.Now,
	}
}

// keepAlive is half the watchdog period so one late frame does not trip it.
func (m Model) keepAlive() time.Duration {
	return max(m.opts.Timeout/2, minKeepAlive)
}

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		m.sendTimeoutCmd(),
		tickAfter(m.keepAlive(), keepAliveMsg{}),
		m.waitEvent(),
	}
	if m.opts.Status != nil {
		cmds = append(cmds, m.fetchStatus())
	}
	return tea.Batch(cmds...)
}

func (m Model) sendTimeoutCmd() tea.Cmd {
	ms := m.opts.Timeout.Milliseconds()
	if ms > 32767 {
		ms = 32767
	}
	s := m.sender
	return func() tea.Msg {
		_ = s.Control(protocol.ControlTimeout, int16(ms))
		return nil
	}
}

func tickAfter(d time.Duration, msg tea.Msg) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg { return msg })
}

func (m Model) waitEvent() tea.Cmd {
	if m.events == nil {
		return nil
	}
	ch := m.events
	return func() tea.Msg {
		tag, ok := <-ch
		if !ok {
			return linkClosedMsg{}
		}
		return eventMsg{tag: tag}
	}
}

func (m Model) fetchStatus() tea.Cmd {
	fetch := m.opts.Status
	return func() tea.Msg {
		s, err := fetch()
		return statusMsg{status: s, err: err}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case keepAliveMsg:
		if m.closed {
			return m, nil
		}
		m.send(m.drive.SpeedFrame())
		return m, tickAfter(m.keepAlive(), keepAliveMsg{})

	case statusTickMsg:
		return m, m.fetchStatus()

	case statusMsg:
		if msg.err != nil {
			m.statusErr = msg.err
		} else {
			m.status, m.statusErr = msg.status, nil
		}
		return m, tickAfter(statusInterval, statusTickMsg{})

	case eventMsg:
		m.lastEvent = msg.tag.String()
		if msg.tag == protocol.EventTimeout {
			m.timeouts++
			m.lastTimeout = m.now()
		}
		return m, m.waitEvent()

	case linkClosedMsg:
		m.closed = true
		return m, nil
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		// Leave the rover stopped rather than waiting for its watchdog.
		if !m.closed {
			m.drive.Speed = 0
			m.send(m.drive.SpeedFrame())
		}
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	}

	a, ok := m.keys.action(msg.String())
	if !ok || m.closed {
		return m, nil
	}
	for _, f := range m.drive.Apply(a) {
		m.send(f)
	}
	return m, nil
}

func (m *Model) send(f Frame) {
	var err error
	if f.IsEvent() {
		err = m.sender.Event(f.Event)
	} else {
		err = m.sender.Control(f.Control, f.Value)
	}
	m.sendErr = err
}

// Drive returns the current setpoints.
func (m Model) Drive() Drive {
	return m.drive
}

// Timeouts returns how many TIMEOUT events the rover has sent.
func (m Model) Timeouts() int {
	return m.timeouts
}

func (m Model) View() string {
	var b strings.Builder

	name := m.opts.Name
	if name == "" {
		name = "rover"
	}
	b.WriteString(titleStyle.Render("DRIVING " + strings.ToUpper(name)))
	b.WriteString("\n")

	rows := []string{
		row("Speed", fmt.Sprintf("%+d%%", m.drive.Speed)+" "+bar(int(m.drive.Speed), 100)),
		row("Steering", fmt.Sprintf("%+d°", m.drive.Steering)+" "+bar(m.drive.Steering, 90)),
		row("Aux", fmt.Sprintf("%+d°", m.drive.Aux)),
		row("Timeout", m.opts.Timeout.String()),
	}
	b.WriteString(panelStyle.Render(strings.Join(rows, "\n")))
	b.WriteString("\n")

	b.WriteString(m.renderLink())
	b.WriteString("\n")
	b.WriteString(m.renderStatus())
	b.WriteString("\n\n")
	b.WriteString(m.help.View(m.keys))
	b.WriteString("\n")
	return b.String()
}

func (m Model) renderLink() string {
	switch {
	case m.closed:
		return errStyle.Render("✗ Control link closed. Press q to quit.")
	case m.sendErr != nil:
		return errStyle.Render("✗ Send failed: " + m.sendErr.Error())
	case m.timeouts > 0:
		ago := m.now().Sub(m.lastTimeout).Round(time.Second)
		return warnStyle.Render(fmt.Sprintf("⚠ Rover watchdog fired %d time(s), last %s ago", m.timeouts, ago))
	default:
		return okStyle.Render("● Link up")
	}
}

func (m Model) renderStatus() string {
	if m.opts.Status == nil {
		return ""
	}
	if m.statusErr != nil && m.status == nil {
		return mutedStyle.Render("Status unavailable: " + m.statusErr.Error())
	}
	if m.status == nil {
		return mutedStyle.Render("Fetching status...")
	}
	s := m.status
	line := fmt.Sprintf("%s • FW %s • up %s • free %d KiB", s.LocalIP, s.FirmwareVersion, s.Uptime(), s.FreeMemory/1024)
	if m.statusErr != nil {
		line += " (stale)"
	}
	return mutedStyle.Render(line)
}

func row(label, value string) string {
	return lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render(label), valueStyle.Render(value))
}

// bar draws v on a centred 21-cell scale of ±limit.
func bar(v, limit int) string {
	const half = 10
	pos := half + v*half/limit
	cells := []rune(strings.Repeat("─", 2*half+1))
	cells[half] = '┼'
	cells[max(0, min(pos, 2*half))] = '█'
	return mutedStyle.Render(string(cells))
}
