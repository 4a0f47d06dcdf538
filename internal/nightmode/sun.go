package nightmode

import (
	"fmt"
	"time"

	"github.com/sixdouglas/suncalc"
)

// SunWindow returns a configuration mapping whose window starts at sunset on
// day and ends at sunrise the following morning, both in loc. Only the four
// time fields are set, so importing it keeps Active and Brightness.
func SunWindow(day time.Time, lat, lon float64, loc *time.Location) (map[string]any, error) {
	if loc == nil {
		loc = time.Local
	}
	day = day.In(loc)
	noon := time.Date(day.Year(), day.Month(), day.Day(), 12, 0, 0, 0, loc)

	sunset, err := sunEvent(noon, lat, lon, suncalc.Sunset)
	if err != nil {
		return nil, err
	}
	sunrise, err := sunEvent(noon.AddDate(0, 0, 1), lat, lon, suncalc.Sunrise)
	if err != nil {
		return nil, err
	}

	sunset = sunset.In(loc)
	sunrise = sunrise.In(loc)

	return map[string]any{
		Namespace: map[string]any{
			KeyStartHour:   sunset.Hour(),
			KeyStartMinute: sunset.Minute(),
			KeyEndHour:     sunrise.Hour(),
			KeyEndMinute:   sunrise.Minute(),
		},
	}, nil
}

// sunEvent looks up one suncalc event for the day around noon. Polar day and
// night have no such event and produce an error.
func sunEvent(noon time.Time, lat, lon float64, name suncalc.DayTimeName) (time.Time, error) {
	times := suncalc.GetTimes(noon, lat, lon)

	event, ok := times[name]
	if !ok || event.Value.IsZero() {
		return time.Time{}, fmt.Errorf("no %s at %.4f,%.4f on %s", name, lat, lon, noon.Format("2006-01-02"))
	}

	// Polar regions yield times that are not on the requested day
	if d := event.Value.Sub(noon); d < -24*time.Hour || d > 24*time.Hour {
		return time.Time{}, fmt.Errorf("no %s at %.4f,%.4f on %s", name, lat, lon, noon.Format("2006-01-02"))
	}

	return event.Value, nil
}
