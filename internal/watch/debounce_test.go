package watch

import "testing"

func TestDebouncerConfirmsAfterThreshold(t *testing.T) {
	var d Debouncer
	seq := []bool{false, true, true}
	want := []Event{EventNone, EventNone, EventLiveConfirmed}
	for i, raw := range seq {
		if got := d.Observe(raw, 2); got != want[i] {
			t.Fatalf("step %d: got %v, want %v", i, got, want[i])
		}
	}
}

func TestDebouncerAlternatingNeverConfirms(t *testing.T) {
	var d Debouncer
	raw := true
	for i := 0; i < 20; i++ {
		if got := d.Observe(raw, 2); got != EventNone {
			t.Fatalf("step %d: alternating signal confirmed %v", i, got)
		}
		raw = !raw
	}
}

func TestDebouncerReemitsWhileRunPersists(t *testing.T) {
	var d Debouncer
	for i := 0; i < 3; i++ {
		if got := d.Observe(true, 1); got != EventLiveConfirmed {
			t.Fatalf("step %d: got %v, want live confirmed", i, got)
		}
	}
	if got := d.Observe(false, 1); got != EventOfflineConfirmed {
		t.Fatalf("got %v, want offline confirmed", got)
	}
}

func TestDebouncerCountersMutuallyExclusive(t *testing.T) {
	var d Debouncer
	d.Observe(true, 5)
	d.Observe(true, 5)
	d.Observe(false, 5)
	live, off := d.Hits()
	if live != 0 || off != 1 {
		t.Fatalf("hits = (%d, %d), want (0, 1)", live, off)
	}
}

func TestDebouncerThresholdFloor(t *testing.T) {
	var d Debouncer
	if got := d.Observe(true, 0); got != EventLiveConfirmed {
		t.Fatalf("threshold 0: got %v, want live confirmed on first hit", got)
	}
	d.Reset()
	if got := d.Observe(false, -3); got != EventOfflineConfirmed {
		t.Fatalf("negative threshold: got %v, want offline confirmed", got)
	}
}
