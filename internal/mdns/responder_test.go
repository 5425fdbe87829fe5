package mdns

import (
	"strings"
	"testing"
)

func TestTXTIdentifiesRover(t *testing.T) {
	txt := TXT()
	found := false
	for _, rec := range txt {
		if rec == ModelTXT {
			found = true
		}
		if !strings.Contains(rec, "=") {
			t.Errorf("TXT record %q is not key=value", rec)
		}
	}
	if !found {
		t.Errorf("TXT() = %v, missing %q", txt, ModelTXT)
	}
}

func TestRecorder(t *testing.T) {
	r := &Recorder{}
	r.Stop()
	if _, _, _, stops := r.Snapshot(); stops != 0 {
		t.Errorf("Stop() on idle recorder counted %d stops", stops)
	}

	if err := r.Start("rover", "Rover Control", 80, nil); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if !r.Running() {
		t.Error("Running() = false after Start")
	}
	r.Stop()

	host, svc, starts, stops := r.Snapshot()
	if host != "rover" || svc != "Rover Control" || starts != 1 || stops != 1 {
		t.Errorf("Snapshot() = %q %q %d %d", host, svc, starts, stops)
	}
}
