package watch

// Debouncer suppresses flapping in the raw signal by requiring a number
// of consecutive consistent observations before confirming a transition.
// The two run counters are mutually exclusive: a raw observation always
// resets the opposite counter.
//
// Fetch failures must not be fed in at all; the counters stay untouched
// for that tick.
type Debouncer struct {
	liveHits int
	offHits  int
}

// Observe folds one raw observation into the run counters and reports
// whether the signal is now confirmed at the given threshold. A confirmed
// event is re-emitted on every tick while the run persists; refire
// suppression is the lifecycle machine's job, not this filter's.
func (d *Debouncer) Observe(rawLive bool, threshold int) Event {
	if threshold < 1 {
		threshold = 1
	}
	if rawLive {
		d.liveHits++
		d.offHits = 0
		if d.liveHits >= threshold {
			return EventLiveConfirmed
		}
		return EventNone
	}
	d.offHits++
	d.liveHits = 0
	if d.offHits >= threshold {
		return EventOfflineConfirmed
	}
	return EventNone
}

// Hits reports the current run lengths (for status display).
func (d *Debouncer) Hits() (live, offline int) { return d.liveHits, d.offHits }

func (d *Debouncer) Reset() { *d = Debouncer{} }
