// Package nightmode implements a usermod that dims an LED strip during a
// daily time window and restores the user's brightness outside it.
package nightmode

import (
	"log/slog"

	"github.com/saaga0h/jeeves-nightmode/pkg/usermod"
)

// EvaluationIntervalMs is the minimum time between two window evaluations
const EvaluationIntervalMs = 200

// Controller is the night mode usermod. It is not safe for concurrent use;
// the host calls it from a single goroutine.
type Controller struct {
	cfg      Config
	throttle *throttle
	logger   *slog.Logger

	last usermod.Directive
}

// NewController creates a controller with the default configuration
func NewController(logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		cfg:      DefaultConfig(),
		throttle: newThrottle(EvaluationIntervalMs),
		logger:   logger.With("usermod", Namespace),
		last:     usermod.Maintain,
	}
}

// Name returns the configuration namespace
func (c *Controller) Name() string {
	return Namespace
}

// ID returns the usermod identifier
func (c *Controller) ID() uint16 {
	return UsermodID
}

// Setup does nothing; the controller needs no hardware
func (c *Controller) Setup() {}

// Config returns a copy of the current configuration
func (c *Controller) Config() Config {
	return c.cfg
}

// LastDirective returns the directive of the last completed evaluation
func (c *Controller) LastDirective() usermod.Directive {
	return c.last
}

// LastEvaluation returns the monotonic time of the last evaluation
func (c *Controller) LastEvaluation() (int64, bool) {
	return c.throttle.last()
}

// Tick evaluates the window at most once per EvaluationIntervalMs. Throttled
// ticks return usermod.Maintain rather than repeating the prior directive, so
// the host leaves the strip as it is. Inside the window the directive asks
// the host to scale the configured night brightness; otherwise it hands back
// normalBrightness.
func (c *Controller) Tick(nowMs int64, tod usermod.ClockTime, normalBrightness int) usermod.Directive {
	if !c.throttle.allow(nowMs) {
		return usermod.Maintain
	}

	directive := usermod.Directive{Action: usermod.ActionNormal, Brightness: normalBrightness}
	if c.cfg.Enabled && InWindow(tod, c.cfg.Start(), c.cfg.End()) {
		directive = usermod.Directive{Action: usermod.ActionScaled, Brightness: c.cfg.Brightness}
	}

	if directive.Action != c.last.Action {
		c.logger.Debug("Night mode directive changed",
			"time_of_day", tod.String(),
			"action", directive.Action,
			"brightness", directive.Brightness)
	}
	c.last = directive

	return directive
}

// ExportConfig returns the configuration under the "Night mode" namespace as
// an ordered section: Active, Start hour, Start minute, End hour, End minute,
// Brightness.
func (c *Controller) ExportConfig() map[string]any {
	return map[string]any{
		Namespace: c.cfg.section(),
	}
}

// ImportConfig reads whatever fields are present in the namespace and keeps
// the current value of the rest. It reports true even for partial or missing
// configuration so that startup is never blocked.
func (c *Controller) ImportConfig(root map[string]any) bool {
	top, ok := usermod.Lookup(root, Namespace)
	complete := ok

	complete = readBool(top, KeyActive, &c.cfg.Enabled) && complete
	complete = readInt(top, KeyStartHour, &c.cfg.StartHour) && complete
	complete = readInt(top, KeyStartMinute, &c.cfg.StartMinute) && complete
	complete = readInt(top, KeyEndHour, &c.cfg.EndHour) && complete
	complete = readInt(top, KeyEndMinute, &c.cfg.EndMinute) && complete
	complete = readInt(top, KeyBrightness, &c.cfg.Brightness) && complete

	c.logger.Debug("Imported night mode config",
		"complete", complete,
		"enabled", c.cfg.Enabled,
		"start", c.cfg.Start().String(),
		"end", c.cfg.End().String(),
		"brightness", c.cfg.Brightness)

	return true
}

// DescribeConfigFields returns hints for the five editable numeric fields
func (c *Controller) DescribeConfigFields() []usermod.FieldHint {
	hints := make([]usermod.FieldHint, len(fieldHints))
	copy(hints, fieldHints)
	return hints
}

func readBool(top map[string]any, key string, dst *bool) bool {
	v, ok := top[key]
	if !ok {
		return false
	}
	b, ok := usermod.Bool(v)
	if ok {
		*dst = b
	}
	return ok
}

func readInt(top map[string]any, key string, dst *int) bool {
	v, ok := top[key]
	if !ok {
		return false
	}
	n, ok := usermod.Int(v)
	if ok {
		*dst = n
	}
	return ok
}
