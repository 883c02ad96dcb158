package event

type debounceState uint8

const (
	released debounceState = iota
	settling
	held
)

// Debouncer turns sampled button levels into one event per press. After the
// first active sample it ignores the input for Settle ticks; if the input is
// still active at the end it fires once, then waits for a release before it
// can fire again. Bounce shorter than Settle therefore yields a single event,
// and a short glitch that is inactive at the end of the window yields none.
type Debouncer struct {
	Settle uint32 // ticks

	state debounceState
	since uint32
}

// Update feeds one sample taken at tick now and reports whether a debounced
// press completed with it.
func (d *Debouncer) Update(active bool, now uint32) bool {
	switch d.state {
	case released:
		if !active {
			return false
		}
		d.state = settling
		d.since = now
		fallthrough
	case settling:
		if now-d.since < d.Settle {
			return false
		}
		if active {
			d.state = held
			return true
		}
		d.state = released
	case held:
		if !active {
			d.state = released
		}
	}
	return false
}

// Wait returns how many ticks remain of the settle window started by the
// last press, or 0 when no press is settling. A poller may sleep that long
// instead of sampling the bounce.
func (d *Debouncer) Wait(now uint32) uint32 {
	if d.state != settling {
		return 0
	}
	if el := now - d.since; el < d.Settle {
		return d.Settle - el
	}
	return 0
}
