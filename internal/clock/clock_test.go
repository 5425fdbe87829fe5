package clock

import (
	"testing"
	"time"
)

func TestManualAfterFunc(t *testing.T) {
	m := NewManual(time.Unix(0, 0))
	fired := 0
	m.AfterFunc(100*time.Millisecond, func() { fired++ })

	m.Advance(99 * time.Millisecond)
	if fired != 0 {
		t.Fatalf("fired = %d before deadline, want 0", fired)
	}

	m.Advance(time.Millisecond)
	if fired != 1 {
		t.Fatalf("fired = %d at deadline, want 1", fired)
	}

	m.Advance(time.Second)
	if fired != 1 {
		t.Errorf("fired = %d after deadline, want 1 (single shot)", fired)
	}
}

func TestManualStopAndReset(t *testing.T) {
	m := NewManual(time.Unix(0, 0))
	fired := 0
	tm := m.AfterFunc(time.Second, func() { fired++ })

	if !tm.Stop() {
		t.Error("Stop() on armed timer = false, want true")
	}
	m.Advance(2 * time.Second)
	if fired != 0 {
		t.Fatalf("stopped timer fired %d times", fired)
	}

	if tm.Reset(time.Second) {
		t.Error("Reset() on stopped timer = true, want false")
	}
	if m.Pending() != 1 {
		t.Errorf("Pending() = %d, want 1", m.Pending())
	}
	m.Advance(time.Second)
	if fired != 1 {
		t.Errorf("fired = %d after reset, want 1", fired)
	}
}
