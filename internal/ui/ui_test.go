package ui

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestProgressPercent(t *testing.T) {
	p := NewProgress("", 4).SetStepNames([]string{"a", "b", "c", "d"})

	p.StartStep(1, "")
	if p.Current != 1 {
		t.Errorf("Current = %d, want 1", p.Current)
	}
	p.CompleteStep(1, "")
	p.UpdateStep(2, StepSkipped, "")
	p.FailStep(3, "boom")
	if p.Percent != 0.5 {
		t.Errorf("Percent = %v, want 0.5", p.Percent)
	}

	p.UpdateStep(9, StepComplete, "")
	if p.Percent != 0.5 {
		t.Errorf("out-of-range step changed Percent to %v", p.Percent)
	}

	out := p.Render()
	if !strings.Contains(out, "[3/4] c") || !strings.Contains(out, "(boom)") {
		t.Errorf("Render() missing failed step:\n%s", out)
	}
}

func TestRunnerSuccess(t *testing.T) {
	var out bytes.Buffer
	r := NewRunner(RunnerConfig{
		Title:     "Calibration",
		Command:   "rover-cfg calibrate",
		Params:    map[string]string{"Rover": "192.168.1.42:80"},
		StepNames: []string{"Submit", "Verify"},
		Output:    &out,
	})
	tick := time.Unix(0, 0)
	r.now = func() time.Time {
		tick = tick.Add(250 * time.Millisecond)
		return tick
	}

	details, err := r.Run(func(onStep StepCallback) (map[string]string, error) {
		onStep(1, "", StepRunning, "")
		onStep(1, "", StepComplete, "")
		onStep(2, "Verify limits", StepComplete, "2 attempts")
		return map[string]string{"Steering": "1200-1700us"}, nil
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if details["Steering"] != "1200-1700us" {
		t.Errorf("details = %v", details)
	}

	s := out.String()
	for _, want := range []string{"CALIBRATION", "rover-cfg calibrate", "Verify limits", "(2 attempts)", "SUCCESS", "250ms"} {
		if !strings.Contains(s, want) {
			t.Errorf("output missing %q:\n%s", want, s)
		}
	}
}

func TestRunnerFailure(t *testing.T) {
	var out bytes.Buffer
	r := NewRunner(RunnerConfig{
		Title:           "Restart",
		Command:         "rover-cfg restart",
		Troubleshooting: []string{"Check the rover is powered"},
		Output:          &out,
	})

	want := errors.New("connection refused")
	_, err := r.Run(func(onStep StepCallback) (map[string]string, error) {
		onStep(1, "ignored without steps", StepComplete, "")
		return nil, want
	})
	if !errors.Is(err, want) {
		t.Fatalf("Run() error = %v, want %v", err, want)
	}

	s := out.String()
	if !strings.Contains(s, "FAILED") || !strings.Contains(s, "Check the rover is powered") {
		t.Errorf("output missing failure box:\n%s", s)
	}
	if strings.Contains(s, "ignored without steps") {
		t.Error("step line printed for a runner without steps")
	}
}

func TestConfirm(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"yes\n", true},
		{"  YES \n", true},
		{"y\n", false},
		{"", false},
		{"yes", true},
	}
	for _, tt := range tests {
		var out bytes.Buffer
		got := Confirm(strings.NewReader(tt.input), &out, "TEST", []string{"something happens"}, "yes")
		if got != tt.want {
			t.Errorf("Confirm(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestSplitHint(t *testing.T) {
	hint := "The rover refused the connection.\nTroubleshooting:\n  • Wait a few seconds\n  • Verify the port"
	got := SplitHint(hint)
	want := []string{"The rover refused the connection.", "Wait a few seconds", "Verify the port"}
	if len(got) != len(want) {
		t.Fatalf("SplitHint() = %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("SplitHint()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestClampWidth(t *testing.T) {
	if got := clampWidth(20); got != MinTerminalWidth {
		t.Errorf("clampWidth(20) = %d", got)
	}
	if got := clampWidth(500); got != MaxContentWidth {
		t.Errorf("clampWidth(500) = %d", got)
	}
	if got := clampWidth(80); got != 80 {
		t.Errorf("clampWidth(80) = %d", got)
	}
}
