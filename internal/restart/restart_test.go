package restart

import "testing"

func TestFunc(t *testing.T) {
	var got string
	var r Restarter = Func(func(reason string) { got = reason })
	r.Restart("radio bring-up failed")
	if got != "radio bring-up failed" {
		t.Errorf("Restart reason = %q, want %q", got, "radio bring-up failed")
	}
}
