package host

import (
	"time"

	"github.com/saaga0h/jeeves-nightmode/pkg/usermod"
)

// Clock supplies the host's notion of time to usermods
type Clock interface {
	// NowMs returns monotonic milliseconds since the host started
	NowMs() int64

	// Now returns the wall clock time in the host's timezone
	Now() time.Time

	// TimeOfDay returns the local hour and minute
	TimeOfDay() usermod.ClockTime
}

// SystemClock reads the system clock in a fixed timezone
type SystemClock struct {
	start time.Time
	loc   *time.Location
}

// NewSystemClock creates a clock that reports time of day in loc
func NewSystemClock(loc *time.Location) *SystemClock {
	if loc == nil {
		loc = time.Local
	}
	return &SystemClock{start: time.Now(), loc: loc}
}

// NowMs uses the monotonic reading carried by time.Now
func (c *SystemClock) NowMs() int64 {
	return time.Since(c.start).Milliseconds()
}

func (c *SystemClock) Now() time.Time {
	return time.Now().In(c.loc)
}

func (c *SystemClock) TimeOfDay() usermod.ClockTime {
	now := c.Now()
	return usermod.ClockTime{Hour: now.Hour(), Minute: now.Minute()}
}
