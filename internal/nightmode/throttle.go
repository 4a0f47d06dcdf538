package nightmode

// throttle limits evaluations to one per interval of the host's monotonic
// millisecond clock
type throttle struct {
	intervalMs int64
	lastMs     int64
	primed     bool
}

func newThrottle(intervalMs int64) *throttle {
	return &throttle{intervalMs: intervalMs}
}

// allow reports whether an evaluation may run at nowMs and, if so, records
// nowMs as the last evaluation. The first call is always allowed. A clock
// that went backwards counts as elapsed.
func (t *throttle) allow(nowMs int64) bool {
	if t.primed {
		elapsed := nowMs - t.lastMs
		if elapsed >= 0 && elapsed < t.intervalMs {
			return false
		}
	}

	t.lastMs = nowMs
	t.primed = true
	return true
}

// last returns the time of the last evaluation and whether one happened
func (t *throttle) last() (int64, bool) {
	return t.lastMs, t.primed
}
