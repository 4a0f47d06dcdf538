package nightmode

import "github.com/saaga0h/jeeves-nightmode/pkg/usermod"

// InWindow reports whether now falls inside [start, end).
// When start is not before end the window wraps past midnight; equal start
// and end therefore cover the whole day.
func InWindow(now, start, end usermod.ClockTime) bool {
	current := now.Minutes()
	startMin := start.Minutes()
	endMin := end.Minutes()

	if startMin < endMin {
		return current >= startMin && current < endMin
	}
	// Day wrap
	return current >= startMin || current < endMin
}
