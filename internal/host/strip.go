package host

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/saaga0h/jeeves-nightmode/pkg/mqtt"
)

// CommandSource identifies commands published by this agent
const CommandSource = "nightmode-agent"

// Strip is the brightness setter of the LED strip
type Strip interface {
	// SetBrightness applies an absolute brightness
	SetBrightness(ctx context.Context, value int, reason string) error

	// Brightness returns the last applied brightness, if any
	Brightness() (int, bool)

	// Invalidate marks the applied brightness stale so the next SetBrightness
	// publishes even when the value is unchanged
	Invalidate()
}

// MQTTStrip drives a strip through the light command topic. Repeated
// requests for the brightness already applied are not republished until
// Invalidate is called.
type MQTTStrip struct {
	mqtt   mqtt.Client
	strip  string
	logger *slog.Logger

	mu      sync.Mutex
	current int
	known   bool
	stale   bool
}

// NewMQTTStrip creates a strip publishing commands for the given strip id
func NewMQTTStrip(mqttClient mqtt.Client, strip string, logger *slog.Logger) *MQTTStrip {
	return &MQTTStrip{
		mqtt:   mqttClient,
		strip:  strip,
		logger: logger,
	}
}

// SetBrightness publishes a command and lighting context when value differs
// from the last applied brightness. Failed publishes are retried on the next
// call.
func (s *MQTTStrip) SetBrightness(ctx context.Context, value int, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.known && !s.stale && s.current == value {
		return nil
	}

	if err := s.publish(value, reason); err != nil {
		return err
	}

	s.logger.Info("Strip brightness set",
		"strip", s.strip,
		"brightness", value,
		"previous", s.current,
		"reason", reason)

	s.current = value
	s.known = true
	s.stale = false
	return nil
}

// Brightness returns the last applied brightness
func (s *MQTTStrip) Brightness() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current, s.known
}

// Invalidate marks the applied brightness as overwritten by someone else
func (s *MQTTStrip) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stale = true
}

func (s *MQTTStrip) publish(value int, reason string) error {
	timestamp := time.Now().Format(time.RFC3339)

	action := "on"
	if value == 0 {
		action = "off"
	}

	commandMsg := map[string]interface{}{
		"source":     CommandSource,
		"action":     action,
		"brightness": value,
		"reason":     reason,
		"timestamp":  timestamp,
	}

	commandTopic := mqtt.LightCommandTopic(s.strip)
	commandPayload, err := json.Marshal(commandMsg)
	if err != nil {
		return fmt.Errorf("failed to marshal command message: %w", err)
	}

	if err := s.mqtt.Publish(commandTopic, 0, false, commandPayload); err != nil {
		return fmt.Errorf("failed to publish command to %s: %w", commandTopic, err)
	}

	contextMsg := map[string]interface{}{
		"source":     CommandSource,
		"type":       "lighting",
		"location":   s.strip,
		"state":      action,
		"brightness": value,
		"reason":     reason,
		"automated":  true,
		"timestamp":  timestamp,
	}

	contextTopic := mqtt.LightingContextTopic(s.strip)
	contextPayload, err := json.Marshal(contextMsg)
	if err != nil {
		return fmt.Errorf("failed to marshal context message: %w", err)
	}

	if err := s.mqtt.Publish(contextTopic, 0, false, contextPayload); err != nil {
		return fmt.Errorf("failed to publish context to %s: %w", contextTopic, err)
	}

	return nil
}
