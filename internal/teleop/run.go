package teleop

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/muurk/rover/internal/discovery"
)

// Pick runs the picker full-screen and returns the chosen rover, or nil if
// the operator quit.
func Pick(ctx context.Context, scan ScanFunc) (*discovery.Rover, error) {
	final, err := tea.NewProgram(NewPicker(ctx, scan), tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if err != nil {
		return nil, err
	}
	return final.(Picker).Chosen(), nil
}

// Run dials the control channel at url and drives until the operator quits
// or the link drops.
func Run(ctx context.Context, url string, opts Options) error {
	link, err := Dial(ctx, url)
	if err != nil {
		return fmt.Errorf("failed to open control channel: %w", err)
	}
	defer func() { _ = link.Close() }()

	model := NewModel(link, link.Events(), opts)
	if _, err := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx)).Run(); err != nil {
		return err
	}
	return link.Err()
}
