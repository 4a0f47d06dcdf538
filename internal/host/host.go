// Package host runs usermods against an LED strip: it owns the tick loop,
// the strip brightness, persisted configuration and the MQTT surface.
package host

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/saaga0h/jeeves-nightmode/pkg/mqtt"
	"github.com/saaga0h/jeeves-nightmode/pkg/redis"
	"github.com/saaga0h/jeeves-nightmode/pkg/usermod"
)

// Options configures a Host
type Options struct {
	StripID                 string
	TickInterval            time.Duration
	MaxBrightness           int
	DefaultNormalBrightness int
}

// Host is the runtime usermods are registered into
type Host struct {
	mqtt     mqtt.Client
	redis    redis.Client
	store    *ConfigStore
	history  Recorder
	registry *usermod.Registry
	clock    Clock
	scaler   Scaler
	strip    Strip
	opts     Options
	logger   *slog.Logger

	// mu serialises every call into usermods
	mu          sync.Mutex
	normal      int
	lastActions map[uint16]usermod.Action

	// runMu guards ticker and stopped between Start and Stop
	runMu    sync.Mutex
	ticker   *time.Ticker
	stopped  bool
	ready    chan struct{}
	stopChan chan struct{}
	stopOnce sync.Once
	stopErr  error
}

// New creates a host. history may be nil to disable transition recording.
func New(
	mqttClient mqtt.Client,
	redisClient redis.Client,
	history Recorder,
	registry *usermod.Registry,
	clock Clock,
	strip Strip,
	opts Options,
	logger *slog.Logger,
) *Host {
	return &Host{
		mqtt:        mqttClient,
		redis:       redisClient,
		store:       NewConfigStore(redisClient, opts.StripID, logger),
		history:     history,
		registry:    registry,
		clock:       clock,
		scaler:      NewScaler(opts.MaxBrightness),
		strip:       strip,
		opts:        opts,
		logger:      logger,
		normal:      opts.DefaultNormalBrightness,
		lastActions: make(map[uint16]usermod.Action),
		ready:       make(chan struct{}),
		stopChan:    make(chan struct{}),
	}
}

// Start connects, loads configuration into every usermod, subscribes to the
// strip topics and runs the tick loop until ctx is cancelled
func (h *Host) Start(ctx context.Context) error {
	h.logger.Info("Starting night mode host",
		"strip", h.opts.StripID,
		"usermods", h.registry.Len(),
		"tick_interval_ms", h.opts.TickInterval.Milliseconds(),
		"max_brightness", h.opts.MaxBrightness)

	// Connect to MQTT broker
	if err := h.mqtt.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to MQTT: %w", err)
	}

	// Verify Redis connection
	if err := h.redis.Ping(ctx); err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	h.logger.Info("Connected to Redis")

	if err := h.Init(ctx); err != nil {
		return err
	}

	brightnessTopic := mqtt.BrightnessSetTopic(h.opts.StripID)
	if err := h.mqtt.Subscribe(brightnessTopic, 1, h.handleBrightnessMessage); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", brightnessTopic, err)
	}

	configTopic := mqtt.ConfigSetTopic(h.opts.StripID)
	if err := h.mqtt.Subscribe(configTopic, 1, h.handleConfigMessage); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", configTopic, err)
	}

	// Foreign commands on the light topic make the next tick re-send
	commandTopic := mqtt.LightCommandTopic(h.opts.StripID)
	if err := h.mqtt.Subscribe(commandTopic, 0, h.handleCommandMessage); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", commandTopic, err)
	}

	h.startTickLoop()
	close(h.ready)

	h.logger.Info("Night mode host started and ready")

	// Block until context is cancelled
	<-ctx.Done()
	h.logger.Info("Night mode host stopping")

	return nil
}

// Init loads persisted state, imports it into every usermod, calls Setup and
// publishes the resulting configuration. Missing configuration leaves the
// usermod defaults in place.
func (h *Host) Init(ctx context.Context) error {
	root, err := h.store.LoadAll(ctx)
	if err != nil {
		return err
	}

	normal, found, err := h.store.LoadBrightness(ctx)
	if err != nil {
		h.logger.Warn("Using default normal brightness", "error", err)
	}

	h.mu.Lock()
	if found {
		h.normal = h.scaler.Clamp(normal)
	}
	for _, m := range h.registry.All() {
		m.ImportConfig(root)
		m.Setup()
		h.logger.Info("Usermod ready", "usermod", m.Name(), "id", m.ID())
	}
	h.mu.Unlock()

	// Persist so defaults of new usermods show up in storage
	if err := h.store.Save(ctx, h.exportAll()); err != nil {
		h.logger.Error("Failed to persist usermod config", "error", err)
	}

	h.publishConfig()
	return nil
}

// Ready is closed once Start has loaded configuration and the tick loop runs
func (h *Host) Ready() <-chan struct{} {
	return h.ready
}

// Stop stops the tick loop and closes connections. Later calls return the
// result of the first.
func (h *Host) Stop() error {
	h.stopOnce.Do(func() {
		h.logger.Info("Stopping night mode host")

		h.runMu.Lock()
		h.stopped = true
		if h.ticker != nil {
			h.ticker.Stop()
		}
		h.runMu.Unlock()
		close(h.stopChan)

		// Disconnect from MQTT
		h.mqtt.Disconnect()

		// Close Redis connection
		if err := h.redis.Close(); err != nil {
			h.logger.Error("Error closing Redis connection", "error", err)
			h.stopErr = err
			return
		}

		h.logger.Info("Night mode host stopped")
	})
	return h.stopErr
}

// startTickLoop runs Tick at the configured interval. It does nothing once
// Stop has been called.
func (h *Host) startTickLoop() {
	h.runMu.Lock()
	defer h.runMu.Unlock()
	if h.stopped {
		return
	}
	ticker := time.NewTicker(h.opts.TickInterval)
	h.ticker = ticker

	go func() {
		h.logger.Info("Starting tick loop", "interval_ms", h.opts.TickInterval.Milliseconds())
		ctx := context.Background()
		for {
			select {
			case <-ticker.C:
				h.Tick(ctx)
			case <-h.stopChan:
				return
			}
		}
	}()
}

// Tick runs one loop iteration: every usermod is ticked with the current
// time and normal brightness, and each non-maintain directive is applied to
// the strip in registration order (last writer wins).
func (h *Host) Tick(ctx context.Context) {
	nowMs := h.clock.NowMs()
	tod := h.clock.TimeOfDay()

	h.mu.Lock()
	defer h.mu.Unlock()

	for _, m := range h.registry.All() {
		directive := m.Tick(nowMs, tod, h.normal)
		if directive.Action == usermod.ActionMaintain {
			continue
		}

		value := h.resolve(directive)
		reason := fmt.Sprintf("%s_%s", strings.ReplaceAll(strings.ToLower(m.Name()), " ", "_"), directive.Action)
		if err := h.strip.SetBrightness(ctx, value, reason); err != nil {
			h.logger.Error("Failed to set strip brightness",
				"usermod", m.Name(),
				"brightness", value,
				"error", err)
		}

		h.trackTransition(ctx, m, directive.Action, value, tod)
	}
}

// resolve turns a directive into an absolute brightness
func (h *Host) resolve(d usermod.Directive) int {
	if d.Action == usermod.ActionScaled {
		return h.scaler.Scale(d.Brightness)
	}
	return h.scaler.Clamp(d.Brightness)
}

// trackTransition logs and records a change of the directive action
func (h *Host) trackTransition(ctx context.Context, m usermod.Usermod, action usermod.Action, value int, tod usermod.ClockTime) {
	prev, seen := h.lastActions[m.ID()]
	h.lastActions[m.ID()] = action
	if !seen || prev == action {
		return
	}

	h.logger.Info("Usermod transition",
		"usermod", m.Name(),
		"from", prev,
		"to", action,
		"brightness", value,
		"time_of_day", tod.String())

	if h.history == nil {
		return
	}

	t := &Transition{
		Strip:      h.opts.StripID,
		Usermod:    m.Name(),
		From:       prev,
		To:         action,
		Brightness: value,
		TimeOfDay:  tod.String(),
		OccurredAt: h.clock.Now(),
	}
	if err := h.history.Record(ctx, t); err != nil {
		h.logger.Error("Failed to record transition", "usermod", m.Name(), "error", err)
	}
}

// ApplyConfig is the configuration edit path: every usermod imports root,
// then the exported configuration is persisted and republished
func (h *Host) ApplyConfig(ctx context.Context, root map[string]any) error {
	h.mu.Lock()
	for _, m := range h.registry.All() {
		m.ImportConfig(root)
	}
	h.mu.Unlock()

	if err := h.store.Save(ctx, h.exportAll()); err != nil {
		return fmt.Errorf("failed to persist config: %w", err)
	}

	h.publishConfig()
	h.logger.Info("Configuration applied", "namespaces", len(root))
	return nil
}

// SetNormalBrightness updates the user brightness handed to usermods
func (h *Host) SetNormalBrightness(ctx context.Context, value int) error {
	if value < 0 || value > h.scaler.Max {
		return fmt.Errorf("brightness %d out of range 0-%d", value, h.scaler.Max)
	}

	h.mu.Lock()
	h.normal = value
	h.mu.Unlock()

	if err := h.store.SaveBrightness(ctx, value); err != nil {
		return err
	}

	h.logger.Info("Normal brightness updated", "strip", h.opts.StripID, "brightness", value)
	return nil
}

// NormalBrightness returns the current user brightness
func (h *Host) NormalBrightness() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.normal
}

// Snapshot is the host state exposed to configuration UIs
type Snapshot struct {
	Strip            string         `json:"strip"`
	NormalBrightness int            `json:"normal_brightness"`
	StripBrightness  *int           `json:"strip_brightness,omitempty"`
	MaxBrightness    int            `json:"max_brightness"`
	Usermods         []uint16       `json:"usermods"`
	Config           map[string]any `json:"config"`
	Hints            []string       `json:"hints"`
}

// Snapshot returns the current configuration, hints and brightness
func (h *Host) Snapshot() Snapshot {
	snap := Snapshot{
		Strip:            h.opts.StripID,
		NormalBrightness: h.NormalBrightness(),
		MaxBrightness:    h.scaler.Max,
		Usermods:         h.registry.IDs(),
		Config:           h.exportAll(),
		Hints:            h.hints(),
	}
	if value, ok := h.strip.Brightness(); ok {
		snap.StripBrightness = &value
	}
	return snap
}

// exportAll merges the exported configuration of every usermod
func (h *Host) exportAll() map[string]any {
	h.mu.Lock()
	defer h.mu.Unlock()

	root := make(map[string]any)
	for _, m := range h.registry.All() {
		for namespace, section := range m.ExportConfig() {
			root[namespace] = section
		}
	}
	return root
}

func (h *Host) hints() []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	var hints []string
	for _, m := range h.registry.All() {
		for _, hint := range m.DescribeConfigFields() {
			hints = append(hints, hint.String())
		}
	}
	return hints
}

// publishConfig publishes retained configuration and hints for UIs
func (h *Host) publishConfig() {
	configPayload, err := json.Marshal(h.exportAll())
	if err != nil {
		h.logger.Error("Failed to marshal config", "error", err)
		return
	}
	if err := h.mqtt.Publish(mqtt.ConfigTopic(h.opts.StripID), 1, true, configPayload); err != nil {
		h.logger.Error("Failed to publish config", "error", err)
	}

	hintsPayload, err := json.Marshal(h.hints())
	if err != nil {
		h.logger.Error("Failed to marshal config hints", "error", err)
		return
	}
	if err := h.mqtt.Publish(mqtt.ConfigInfoTopic(h.opts.StripID), 1, true, hintsPayload); err != nil {
		h.logger.Error("Failed to publish config hints", "error", err)
	}
}

// handleBrightnessMessage accepts a bare number or {"brightness": n}
func (h *Host) handleBrightnessMessage(msg mqtt.Message) {
	value, err := parseBrightness(msg.Payload())
	if err != nil {
		h.logger.Warn("Invalid brightness message",
			"topic", msg.Topic(),
			"error", err)
		return
	}

	if err := h.SetNormalBrightness(context.Background(), value); err != nil {
		h.logger.Error("Failed to update normal brightness", "error", err)
	}
}

// handleConfigMessage applies a JSON configuration root
func (h *Host) handleConfigMessage(msg mqtt.Message) {
	var root map[string]any
	if err := json.Unmarshal(msg.Payload(), &root); err != nil {
		h.logger.Warn("Invalid config message",
			"topic", msg.Topic(),
			"error", err)
		return
	}

	if err := h.ApplyConfig(context.Background(), root); err != nil {
		h.logger.Error("Failed to apply config", "error", err)
	}
}

// handleCommandMessage invalidates the strip when another publisher wrote a
// light command, so the next evaluated tick re-applies its brightness
func (h *Host) handleCommandMessage(msg mqtt.Message) {
	var cmd struct {
		Source string `json:"source"`
	}
	// Payloads that are not JSON objects come from someone else too
	_ = json.Unmarshal(msg.Payload(), &cmd)
	if cmd.Source == CommandSource {
		return
	}

	h.logger.Info("Light command from another publisher",
		"topic", msg.Topic(),
		"source", cmd.Source)
	h.strip.Invalidate()
}

func parseBrightness(payload []byte) (int, error) {
	text := strings.TrimSpace(string(payload))
	if value, err := strconv.Atoi(text); err == nil {
		return value, nil
	}

	var msg struct {
		Brightness *int `json:"brightness"`
	}
	if err := json.Unmarshal([]byte(text), &msg); err != nil {
		return 0, fmt.Errorf("failed to parse brightness payload: %w", err)
	}
	if msg.Brightness == nil {
		return 0, fmt.Errorf("brightness field missing")
	}
	return *msg.Brightness, nil
}
