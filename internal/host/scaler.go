package host

// Scaler maps percentage-style brightness to the strip's absolute range
type Scaler struct {
	Max int
}

// NewScaler creates a scaler for a strip whose full brightness is max
func NewScaler(max int) Scaler {
	return Scaler{Max: max}
}

// Scale returns pct percent of Max, clamped to [0, Max]
func (s Scaler) Scale(pct int) int {
	return s.Clamp(pct * s.Max / 100)
}

// Clamp limits an absolute brightness to [0, Max]
func (s Scaler) Clamp(value int) int {
	if value < 0 {
		return 0
	}
	if value > s.Max {
		return s.Max
	}
	return value
}
