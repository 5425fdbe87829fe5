// Package ui renders the non-interactive output of rover-cfg.
//
// Commands print a Header, stream step lines through a Runner while their
// work runs, and finish with a Result box:
//
//	r := ui.NewRunner(ui.RunnerConfig{
//	    Title:     "WiFi Provisioning",
//	    Command:   "rover-cfg set-wifi",
//	    Params:    map[string]string{"Rover": "192.168.4.1:80"},
//	    StepNames: []string{"Validate", "Submit", "Wait for rover"},
//	})
//	_, err := r.Run(func(onStep ui.StepCallback) (map[string]string, error) {
//	    onStep(1, "", ui.StepRunning, "")
//	    // ...
//	    onStep(1, "", ui.StepComplete, "")
//	    return nil, nil
//	})
//
// Logging stays silent unless ROVER_LOG_LEVEL is set, so the styled output
// is not interleaved with log lines.
package ui
