package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// RunnerConfig describes a multi-step command.
type RunnerConfig struct {
	Title     string            // e.g. "WiFi Provisioning"
	Command   string            // e.g. "rover-cfg set-wifi"
	Params    map[string]string // shown in the header
	StepNames []string
	// Troubleshooting is shown when the operation fails.
	Troubleshooting []string
	Output          io.Writer // default os.Stdout
}

// Runner prints a header, streams step lines while an operation runs and
// closes with a result box.
type Runner struct {
	config   RunnerConfig
	header   *Header
	progress *Progress
	out      io.Writer
	width    int
	now      func() time.Time
}

// NewRunner creates a runner sized to the terminal.
func NewRunner(config RunnerConfig) *Runner {
	if config.Output == nil {
		config.Output = os.Stdout
	}
	width := GetTerminalWidth()

	r := &Runner{
		config: config,
		header: NewHeader(config.Title, config.Command, config.Params).SetWidth(width),
		out:    config.Output,
		width:  width,
		now:    time.Now,
	}
	if n := len(config.StepNames); n > 0 {
		r.progress = NewProgress("", n).SetWidth(width).SetStepNames(config.StepNames)
	}
	return r
}

// Operation is the work a Runner wraps. The returned details are added to
// the success box.
type Operation func(onStep StepCallback) (map[string]string, error)

// Run executes op and prints its progress and result.
func (r *Runner) Run(op Operation) (map[string]string, error) {
	start := r.now()
	_, _ = fmt.Fprintln(r.out, r.header.Render())
	_, _ = fmt.Fprintln(r.out)

	details, err := op(r.onStep)
	elapsed := r.now().Sub(start).Round(time.Millisecond)

	_, _ = fmt.Fprintln(r.out)
	if err != nil {
		res := NewFailureResult(r.config.Title+" failed", err, r.config.Troubleshooting).SetWidth(r.width)
		_, _ = fmt.Fprintln(r.out, res.Render())
		return details, err
	}

	res := NewSuccessResult(r.config.Title+" complete", details).SetWidth(r.width)
	res.AddDetail("Duration", elapsed.String())
	_, _ = fmt.Fprintln(r.out, res.Render())
	return details, nil
}

func (r *Runner) onStep(n int, name string, status StepStatus, message string) {
	if r.progress == nil || n < 1 || n > len(r.progress.Steps) {
		return
	}
	if name != "" {
		r.progress.Steps[n-1].Name = name
	}
	r.progress.UpdateStep(n, status, message)

	line := r.progress.renderStepLine(r.progress.Steps[n-1])
	if status == StepRunning {
		// Overwritten by the final state of the step.
		_, _ = fmt.Fprint(r.out, line+"\r")
		return
	}
	_, _ = fmt.Fprintln(r.out, line)
}

// PrintCommandHeader prints a header to stdout.
func PrintCommandHeader(title, command string, params map[string]string) {
	fmt.Println(NewHeader(title, command, params).Render())
	fmt.Println()
}

// PrintSuccess prints a success box to stdout.
func PrintSuccess(title string, details map[string]string) {
	fmt.Println()
	fmt.Println(NewSuccessResult(title, details).Render())
}

// PrintFailure prints a failure box to stdout.
func PrintFailure(title string, err error, troubleshooting []string) {
	fmt.Println()
	fmt.Println(NewFailureResult(title, err, troubleshooting).Render())
}

// PrintWarning prints a warning box to stdout.
func PrintWarning(title string, details map[string]string) {
	fmt.Println()
	fmt.Println(NewWarningResult(title, details).Render())
}

// SplitHint turns a multi-line troubleshooting hint into bullet items,
// dropping the heading and existing bullets.
func SplitHint(hint string) []string {
	var tips []string
	for _, line := range strings.Split(hint, "\n") {
		line = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "•"))
		if line == "" || strings.HasSuffix(line, ":") {
			continue
		}
		tips = append(tips, line)
	}
	return tips
}
