// Package usermod defines the contract between a lighting host and the
// usermods it runs. A host constructs usermods explicitly, registers them in a
// Registry and calls their hooks from a single goroutine.
package usermod

import "fmt"

// ClockTime is a local time of day with minute resolution.
// Values are not range checked.
type ClockTime struct {
	Hour   int `json:"hour"`
	Minute int `json:"minute"`
}

// Minutes returns minutes since midnight (hour*60 + minute)
func (c ClockTime) Minutes() int {
	return c.Hour*60 + c.Minute
}

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// Action tells the host what to do with the strip brightness
type Action string

const (
	// ActionMaintain leaves the strip untouched
	ActionMaintain Action = "maintain"
	// ActionNormal applies Brightness as an absolute value (the user brightness)
	ActionNormal Action = "normal"
	// ActionScaled passes Brightness through the host's percentage scaling first
	ActionScaled Action = "scaled"
)

// Directive is the result of one usermod tick
type Directive struct {
	Action     Action `json:"action"`
	Brightness int    `json:"brightness"`
}

// Maintain is the directive for a tick that changes nothing
var Maintain = Directive{Action: ActionMaintain}

// FieldHint describes one configuration field for a configuration UI
type FieldHint struct {
	Namespace string `json:"namespace"`
	Field     string `json:"field"`
	Info      string `json:"info"`
}

// String renders the hint as "<namespace>:<field> <info>"
func (h FieldHint) String() string {
	return fmt.Sprintf("%s:%s %s", h.Namespace, h.Field, h.Info)
}

// Usermod is implemented by every plugin the host runs
type Usermod interface {
	// Name is the configuration namespace of the usermod
	Name() string

	// ID identifies the usermod among all registered usermods
	ID() uint16

	// Setup is called once after configuration has been imported
	Setup()

	// Tick is called on every host loop iteration
	Tick(nowMs int64, tod ClockTime, normalBrightness int) Directive

	// ExportConfig returns the usermod's configuration keyed by its namespace
	ExportConfig() map[string]any

	// ImportConfig reads configuration from a mapping keyed by namespace
	ImportConfig(root map[string]any) bool

	// DescribeConfigFields returns UI hints for the configuration fields
	DescribeConfigFields() []FieldHint
}
