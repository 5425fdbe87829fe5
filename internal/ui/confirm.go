package ui

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Confirm prints a warning box and reads one line from in. It returns true
// only if the line equals answer, ignoring case and surrounding space.
func Confirm(in io.Reader, out io.Writer, title string, warnings []string, answer string) bool {
	width := GetTerminalWidth()

	lines := []string{"", WarningTitleStyle.Render(fmt.Sprintf("   %s  WARNING  ─  %s", WarningMarker, title)), ""}
	for _, w := range warnings {
		lines = append(lines, lipgloss.NewStyle().Foreground(TextColor).Render("   • "+w))
	}
	lines = append(lines, "")

	box := lipgloss.NewStyle().
		Border(lipgloss.DoubleBorder()).
		BorderForeground(WarningColor).
		Width(width-2).
		Padding(0, 2).
		Render(strings.Join(lines, "\n"))
	_, _ = fmt.Fprintln(out, box)
	_, _ = fmt.Fprintln(out)
	_, _ = fmt.Fprint(out, WarningTitleStyle.Render(fmt.Sprintf("Type %q to continue: ", answer)))

	input, err := bufio.NewReader(in).ReadString('\n')
	_, _ = fmt.Fprintln(out)
	if err != nil && input == "" {
		return false
	}
	if strings.EqualFold(strings.TrimSpace(input), answer) {
		return true
	}
	_, _ = fmt.Fprintln(out, lipgloss.NewStyle().Foreground(MutedColor).Render("  Operation cancelled."))
	return false
}

// ConfirmWiFiChange asks before sending new station credentials.
func ConfirmWiFiChange(in io.Reader, out io.Writer, ssid string) bool {
	return Confirm(in, out, "WIFI CHANGE", []string{
		fmt.Sprintf("The rover will leave its current network and join %q", ssid),
		"If the credentials are wrong it falls back to its setup access point",
		"Your connection to the rover will drop while it reconnects",
	}, "yes")
}

// ConfirmRestart asks before restarting the rover daemon.
func ConfirmRestart(in io.Reader, out io.Writer) bool {
	return Confirm(in, out, "RESTART", []string{
		"The active control session will end and the motor will stop",
		"The rover is unreachable for a few seconds",
	}, "yes")
}
