package nightmode

import "github.com/saaga0h/jeeves-nightmode/pkg/usermod"

// Namespace is the configuration namespace of the night mode usermod
const Namespace = "Night mode"

// UsermodID identifies the night mode usermod to the host
const UsermodID uint16 = 255

// Configuration keys inside the namespace, in export order
const (
	KeyActive      = "Active"
	KeyStartHour   = "Start hour"
	KeyStartMinute = "Start minute"
	KeyEndHour     = "End hour"
	KeyEndMinute   = "End minute"
	KeyBrightness  = "Brightness"
)

// Config is the night mode configuration. Fields are not range checked.
type Config struct {
	Enabled     bool `json:"enabled"`
	StartHour   int  `json:"start_hour"`
	StartMinute int  `json:"start_minute"`
	EndHour     int  `json:"end_hour"`
	EndMinute   int  `json:"end_minute"`
	// Brightness inside the window, on the host's percentage scale
	Brightness int `json:"brightness"`
}

// DefaultConfig returns the configuration used when nothing is persisted:
// disabled, 23:00 to 07:00, really low brightness.
func DefaultConfig() Config {
	return Config{
		Enabled:     false,
		StartHour:   23,
		StartMinute: 0,
		EndHour:     7,
		EndMinute:   0,
		Brightness:  2,
	}
}

// Start returns the window start
func (c Config) Start() usermod.ClockTime {
	return usermod.ClockTime{Hour: c.StartHour, Minute: c.StartMinute}
}

// End returns the (exclusive) window end
func (c Config) End() usermod.ClockTime {
	return usermod.ClockTime{Hour: c.EndHour, Minute: c.EndMinute}
}

// section renders the config as an ordered namespace section
func (c Config) section() usermod.Section {
	return usermod.Section{
		{Key: KeyActive, Value: c.Enabled},
		{Key: KeyStartHour, Value: c.StartHour},
		{Key: KeyStartMinute, Value: c.StartMinute},
		{Key: KeyEndHour, Value: c.EndHour},
		{Key: KeyEndMinute, Value: c.EndMinute},
		{Key: KeyBrightness, Value: c.Brightness},
	}
}

var fieldHints = []usermod.FieldHint{
	{Namespace: Namespace, Field: KeyStartHour, Info: "(0-23)"},
	{Namespace: Namespace, Field: KeyStartMinute, Info: "(0-59)"},
	{Namespace: Namespace, Field: KeyEndHour, Info: "(0-23)"},
	{Namespace: Namespace, Field: KeyEndMinute, Info: "(0-59)"},
	{Namespace: Namespace, Field: KeyBrightness, Info: "(%)"},
}
