package teleop

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/muurk/rover/internal/discovery"
)

// ScanFunc browses for rovers.
type ScanFunc func(ctx context.Context) ([]*discovery.Rover, error)

type scanDoneMsg struct {
	rovers []*discovery.Rover
	err    error
}

type pickerKeyMap struct {
	Up     key.Binding
	Down   key.Binding
	Select key.Binding
	Rescan key.Binding
	Quit   key.Binding
}

func (k pickerKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Select, k.Rescan, k.Quit}
}

func (k pickerKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

// Picker lists rovers found over mDNS and lets the operator choose one.
type Picker struct {
	ctx  context.Context
	scan ScanFunc

	scanning bool
	rovers   []*discovery.Rover
	err      error
	cursor   int
	chosen   *discovery.Rover
	quit     bool

	spinner spinner.Model
	keys    pickerKeyMap
	help    help.Model
}

// NewPicker returns a picker that starts scanning on Init.
func NewPicker(ctx context.Context, scan ScanFunc) Picker {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = cursorStyle
	return Picker{
		ctx:      ctx,
		scan:     scan,
		scanning: true,
		spinner:  s,
		help:     help.New(),
		keys: pickerKeyMap{
			Up:     key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
			Down:   key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
			Select: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "drive")),
			Rescan: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "rescan")),
			Quit:   key.NewBinding(key.WithKeys("q", "esc", "ctrl+c"), key.WithHelp("q", "quit")),
		},
	}
}

func (p Picker) Init() tea.Cmd {
	return tea.Batch(p.spinner.Tick, p.runScan())
}

func (p Picker) runScan() tea.Cmd {
	ctx, scan := p.ctx, p.scan
	return func() tea.Msg {
		rovers, err := scan(ctx)
		return scanDoneMsg{rovers: rovers, err: err}
	}
}

func (p Picker) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case scanDoneMsg:
		p.scanning = false
		p.rovers, p.err = msg.rovers, msg.err
		p.cursor = 0
		return p, nil

	case spinner.TickMsg:
		if !p.scanning {
			return p, nil
		}
		var cmd tea.Cmd
		p.spinner, cmd = p.spinner.Update(msg)
		return p, cmd

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, p.keys.Quit):
			p.quit = true
			return p, tea.Quit
		case p.scanning:
			return p, nil
		case key.Matches(msg, p.keys.Up):
			if p.cursor > 0 {
				p.cursor--
			}
		case key.Matches(msg, p.keys.Down):
			if p.cursor < len(p.rovers)-1 {
				p.cursor++
			}
		case key.Matches(msg, p.keys.Rescan):
			p.scanning = true
			p.rovers = nil
			return p, tea.Batch(p.spinner.Tick, p.runScan())
		case key.Matches(msg, p.keys.Select):
			if len(p.rovers) > 0 {
				p.chosen = p.rovers[p.cursor]
				return p, tea.Quit
			}
		}
	}
	return p, nil
}

// Chosen returns the selected rover, or nil if the operator quit.
func (p Picker) Chosen() *discovery.Rover {
	return p.chosen
}

func (p Picker) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("SELECT A ROVER"))
	b.WriteString("\n")

	switch {
	case p.scanning:
		b.WriteString(fmt.Sprintf("%s Browsing for rovers on the local network...\n", p.spinner.View()))
	case p.err != nil:
		b.WriteString(errStyle.Render("✗ Scan failed: " + p.err.Error()))
		b.WriteString("\n")
	case len(p.rovers) == 0:
		b.WriteString(mutedStyle.Render("No rovers found. Is mDNS enabled on the rover? Press r to rescan."))
		b.WriteString("\n")
	default:
		for i, r := range p.rovers {
			fw := r.Firmware
			if fw == "" {
				fw = "unknown"
			}
			line := fmt.Sprintf("%s  %s  FW %s", r.Name, r.Addr(), fw)
			if i == p.cursor {
				b.WriteString(cursorStyle.Render("→ " + line))
			} else {
				b.WriteString("  " + line)
			}
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(p.help.View(p.keys))
	b.WriteString("\n")
	return b.String()
}
