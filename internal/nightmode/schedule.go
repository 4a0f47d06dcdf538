package nightmode

import (
	"context"
	"log/slog"
	"time"
)

// ConfigApplier is the host's configuration edit path
type ConfigApplier interface {
	ApplyConfig(ctx context.Context, root map[string]any) error
}

// SunSchedule moves the night window to follow sunset and sunrise. It
// recomputes the window once per local day.
type SunSchedule struct {
	applier   ConfigApplier
	latitude  float64
	longitude float64
	loc       *time.Location
	logger    *slog.Logger

	// Now is replaceable in tests
	Now func() time.Time

	lastDay string
}

// NewSunSchedule creates a schedule for the given coordinates
func NewSunSchedule(applier ConfigApplier, lat, lon float64, loc *time.Location, logger *slog.Logger) *SunSchedule {
	if loc == nil {
		loc = time.Local
	}
	return &SunSchedule{
		applier:   applier,
		latitude:  lat,
		longitude: lon,
		loc:       loc,
		logger:    logger,
		Now:       time.Now,
	}
}

// Refresh applies today's sun window unless it was already applied today.
// It returns whether a new window was applied.
func (s *SunSchedule) Refresh(ctx context.Context) (bool, error) {
	now := s.Now().In(s.loc)
	day := now.Format("2006-01-02")
	if day == s.lastDay {
		return false, nil
	}

	root, err := SunWindow(now, s.latitude, s.longitude, s.loc)
	if err != nil {
		return false, err
	}

	if err := s.applier.ApplyConfig(ctx, root); err != nil {
		return false, err
	}

	s.lastDay = day
	s.logger.Info("Applied sun schedule",
		"day", day,
		"latitude", s.latitude,
		"longitude", s.longitude,
		"window", root[Namespace])
	return true, nil
}

// Run refreshes immediately and then checks every interval until ctx is done
func (s *SunSchedule) Run(ctx context.Context, interval time.Duration) {
	if _, err := s.Refresh(ctx); err != nil {
		s.logger.Warn("Sun schedule refresh failed", "error", err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := s.Refresh(ctx); err != nil {
				s.logger.Warn("Sun schedule refresh failed", "error", err)
			}
		case <-ctx.Done():
			return
		}
	}
}
