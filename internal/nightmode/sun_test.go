package nightmode

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saaga0h/jeeves-nightmode/pkg/usermod"
)

const (
	helsinkiLat = 60.1695
	helsinkiLon = 24.9354
)

func TestSunWindow_Helsinki(t *testing.T) {
	testCases := []struct {
		name       string
		day        time.Time
		startHours []int // acceptable sunset hours (UTC)
		endHours   []int // acceptable sunrise hours (UTC)
	}{
		{"midsummer", time.Date(2025, 6, 21, 0, 0, 0, 0, time.UTC), []int{19, 20}, []int{0, 1}},
		{"midwinter", time.Date(2025, 12, 21, 0, 0, 0, 0, time.UTC), []int{12, 13}, []int{7, 8}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			root, err := SunWindow(tc.day, helsinkiLat, helsinkiLon, time.UTC)
			require.NoError(t, err)

			c := newTestController()
			c.ImportConfig(root)
			cfg := c.Config()

			assert.Contains(t, tc.startHours, cfg.StartHour)
			assert.Contains(t, tc.endHours, cfg.EndHour)
		})
	}
}

func TestSunWindow_KeepsActiveAndBrightness(t *testing.T) {
	c := enabledController(at(23, 0), at(7, 0), 17)

	root, err := SunWindow(time.Date(2025, 3, 20, 0, 0, 0, 0, time.UTC), helsinkiLat, helsinkiLon, time.UTC)
	require.NoError(t, err)
	c.ImportConfig(root)

	cfg := c.Config()
	assert.True(t, cfg.Enabled)
	assert.Equal(t, 17, cfg.Brightness)
	// Equinox sunset is in the evening and wraps past midnight to sunrise
	assert.Greater(t, cfg.Start().Minutes(), cfg.End().Minutes())
	assert.True(t, InWindow(usermod.ClockTime{Hour: 0, Minute: 0}, cfg.Start(), cfg.End()))
}

func TestSunWindow_PolarDay(t *testing.T) {
	// Tromsø has no sunset around midsummer
	_, err := SunWindow(time.Date(2025, 6, 21, 0, 0, 0, 0, time.UTC), 69.6492, 18.9553, time.UTC)
	assert.Error(t, err)
}
