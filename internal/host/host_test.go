package host

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saaga0h/jeeves-nightmode/internal/nightmode"
	"github.com/saaga0h/jeeves-nightmode/pkg/mqtt"
	"github.com/saaga0h/jeeves-nightmode/pkg/redis"
	"github.com/saaga0h/jeeves-nightmode/pkg/usermod"
)

const testStrip = "bedroom"

type testHost struct {
	host       *Host
	mqtt       *mockMQTT
	redis      *mockRedis
	recorder   *mockRecorder
	clock      *fakeClock
	strip      *MQTTStrip
	controller *nightmode.Controller
}

func newTestHost(t *testing.T, hour, minute int) *testHost {
	t.Helper()
	return newTestHostWithLogger(t, hour, minute, testLogger())
}

func newTestHostWithLogger(t *testing.T, hour, minute int, logger *slog.Logger) *testHost {
	t.Helper()

	mqttClient := newMockMQTT()
	redisClient := newMockRedis()
	recorder := &mockRecorder{}
	clock := &fakeClock{ms: 10_000, now: time.Date(2025, 1, 15, hour, minute, 0, 0, time.UTC)}
	strip := NewMQTTStrip(mqttClient, testStrip, logger)

	controller := nightmode.NewController(logger)
	registry := usermod.NewRegistry()
	require.NoError(t, registry.Register(controller))

	h := New(mqttClient, redisClient, recorder, registry, clock, strip, Options{
		StripID:                 testStrip,
		TickInterval:            50 * time.Millisecond,
		MaxBrightness:           255,
		DefaultNormalBrightness: 200,
	}, logger)

	return &testHost{
		host:       h,
		mqtt:       mqttClient,
		redis:      redisClient,
		recorder:   recorder,
		clock:      clock,
		strip:      strip,
		controller: controller,
	}
}

func nightConfig(start, end string, brightness int) string {
	s, _ := time.Parse("15:04", start)
	e, _ := time.Parse("15:04", end)

	data, _ := json.Marshal(map[string]any{
		nightmode.Namespace: map[string]any{
			nightmode.KeyActive:      true,
			nightmode.KeyStartHour:   s.Hour(),
			nightmode.KeyStartMinute: s.Minute(),
			nightmode.KeyEndHour:     e.Hour(),
			nightmode.KeyEndMinute:   e.Minute(),
			nightmode.KeyBrightness:  brightness,
		},
	})
	return string(data)
}

func TestHost_Init_PersistsDefaults(t *testing.T) {
	th := newTestHost(t, 12, 0)

	require.NoError(t, th.host.Init(context.Background()))

	stored := th.redis.hashes[redis.UsermodConfigKey(testStrip)][nightmode.Namespace]
	assert.Equal(t,
		`{"Active":false,"Start hour":23,"Start minute":0,"End hour":7,"End minute":0,"Brightness":2}`,
		stored)

	configMsgs := th.mqtt.onTopic(mqtt.ConfigTopic(testStrip))
	require.Len(t, configMsgs, 1)
	assert.True(t, configMsgs[0].retained)

	infoMsgs := th.mqtt.onTopic(mqtt.ConfigInfoTopic(testStrip))
	require.Len(t, infoMsgs, 1)
	var hints []string
	require.NoError(t, json.Unmarshal(infoMsgs[0].payload, &hints))
	assert.Equal(t, "Night mode:Start hour (0-23)", hints[0])
	assert.Len(t, hints, 5)
}

func TestHost_Init_LoadsPersistedState(t *testing.T) {
	th := newTestHost(t, 12, 0)
	th.redis.hashes[redis.UsermodConfigKey(testStrip)] = map[string]string{
		nightmode.Namespace: `{"Active":true,"Start hour":21,"Start minute":30,"End hour":6,"End minute":0,"Brightness":15}`,
		"Broken mod":        `{not json`,
	}
	th.redis.values[redis.BrightnessKey(testStrip)] = "90"

	require.NoError(t, th.host.Init(context.Background()))

	assert.Equal(t, nightmode.Config{
		Enabled: true, StartHour: 21, StartMinute: 30, EndHour: 6, EndMinute: 0, Brightness: 15,
	}, th.controller.Config())
	assert.Equal(t, 90, th.host.NormalBrightness())
}

func TestHost_Tick_EntersAndLeavesNightWindow(t *testing.T) {
	th := newTestHost(t, 22, 59)
	ctx := context.Background()
	th.redis.hashes[redis.UsermodConfigKey(testStrip)] = map[string]string{
		nightmode.Namespace: `{"Active":true,"Start hour":23,"Start minute":0,"End hour":7,"End minute":0,"Brightness":10}`,
	}
	require.NoError(t, th.host.Init(ctx))

	th.host.Tick(ctx)
	value, ok := th.strip.Brightness()
	require.True(t, ok)
	assert.Equal(t, 200, value, "outside the window the normal brightness is used")

	th.clock.advance(time.Minute)
	th.host.Tick(ctx)
	value, _ = th.strip.Brightness()
	assert.Equal(t, 25, value, "10% of 255")

	th.clock.advance(8 * time.Hour)
	th.host.Tick(ctx)
	value, _ = th.strip.Brightness()
	assert.Equal(t, 200, value)

	require.Len(t, th.recorder.transitions, 2)
	first := th.recorder.transitions[0]
	assert.Equal(t, testStrip, first.Strip)
	assert.Equal(t, nightmode.Namespace, first.Usermod)
	assert.Equal(t, usermod.ActionNormal, first.From)
	assert.Equal(t, usermod.ActionScaled, first.To)
	assert.Equal(t, 25, first.Brightness)
	assert.Equal(t, "23:00", first.TimeOfDay)
	assert.Equal(t, usermod.ActionNormal, th.recorder.transitions[1].To)

	// Commands are only published on change
	assert.Len(t, th.mqtt.onTopic(mqtt.LightCommandTopic(testStrip)), 3)
}

func TestHost_Tick_Throttled(t *testing.T) {
	th := newTestHost(t, 12, 0)
	ctx := context.Background()
	require.NoError(t, th.host.Init(ctx))

	th.host.Tick(ctx)
	require.NoError(t, th.host.SetNormalBrightness(ctx, 100))

	th.clock.advance(50 * time.Millisecond)
	th.host.Tick(ctx)
	value, _ := th.strip.Brightness()
	assert.Equal(t, 200, value, "tick inside the 200ms throttle changes nothing")

	th.clock.advance(150 * time.Millisecond)
	th.host.Tick(ctx)
	value, _ = th.strip.Brightness()
	assert.Equal(t, 100, value)
}

func TestHost_Tick_RecorderErrorDoesNotStopLoop(t *testing.T) {
	th := newTestHost(t, 22, 59)
	ctx := context.Background()
	th.recorder.err = assert.AnError
	require.NoError(t, th.host.ApplyConfig(ctx, map[string]any{
		nightmode.Namespace: map[string]any{nightmode.KeyActive: true},
	}))

	th.host.Tick(ctx)
	th.clock.advance(time.Minute)
	th.host.Tick(ctx)

	value, _ := th.strip.Brightness()
	assert.Equal(t, 5, value, "default 2% of 255")
}

func TestHost_ConfigMessage(t *testing.T) {
	th := newTestHost(t, 12, 0)
	ctx := context.Background()
	require.NoError(t, th.host.Init(ctx))

	th.host.handleConfigMessage(&mockMessage{
		topic:   mqtt.ConfigSetTopic(testStrip),
		payload: []byte(nightConfig("08:00", "17:00", 40)),
	})

	assert.Equal(t, nightmode.Config{
		Enabled: true, StartHour: 8, StartMinute: 0, EndHour: 17, EndMinute: 0, Brightness: 40,
	}, th.controller.Config())

	stored := th.redis.hashes[redis.UsermodConfigKey(testStrip)][nightmode.Namespace]
	assert.Contains(t, stored, `"Brightness":40`)
	assert.Len(t, th.mqtt.onTopic(mqtt.ConfigTopic(testStrip)), 2, "republished after edit")

	// Invalid JSON is ignored
	th.host.handleConfigMessage(&mockMessage{topic: mqtt.ConfigSetTopic(testStrip), payload: []byte("{")})
	assert.Equal(t, 40, th.controller.Config().Brightness)

	th.host.Tick(ctx)
	value, _ := th.strip.Brightness()
	assert.Equal(t, 102, value, "40% of 255")
}

func TestHost_BrightnessMessage(t *testing.T) {
	th := newTestHost(t, 12, 0)
	require.NoError(t, th.host.Init(context.Background()))

	testCases := []struct {
		payload  string
		expected int
	}{
		{"150", 150},
		{" 42 \n", 42},
		{`{"brightness": 120}`, 120},
		{"abc", 120},
		{`{"level": 3}`, 120},
		{"999", 120},
		{"-1", 120},
	}

	for _, tc := range testCases {
		th.host.handleBrightnessMessage(&mockMessage{topic: mqtt.BrightnessSetTopic(testStrip), payload: []byte(tc.payload)})
		assert.Equal(t, tc.expected, th.host.NormalBrightness(), "payload %q", tc.payload)
	}

	assert.Equal(t, "120", th.redis.values[redis.BrightnessKey(testStrip)])
}

func TestHost_ApplyConfig_PersistError(t *testing.T) {
	th := newTestHost(t, 12, 0)
	require.NoError(t, th.host.Init(context.Background()))
	th.redis.err = assert.AnError

	err := th.host.ApplyConfig(context.Background(), map[string]any{})
	assert.ErrorIs(t, err, assert.AnError)
}

func TestHost_Snapshot(t *testing.T) {
	th := newTestHost(t, 12, 0)
	ctx := context.Background()
	require.NoError(t, th.host.Init(ctx))

	snap := th.host.Snapshot()
	assert.Nil(t, snap.StripBrightness)

	th.host.Tick(ctx)
	snap = th.host.Snapshot()

	assert.Equal(t, testStrip, snap.Strip)
	assert.Equal(t, 200, snap.NormalBrightness)
	require.NotNil(t, snap.StripBrightness)
	assert.Equal(t, 200, *snap.StripBrightness)
	assert.Equal(t, []uint16{nightmode.UsermodID}, snap.Usermods)
	assert.Len(t, snap.Hints, 5)

	data, err := json.Marshal(snap)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"Night mode":{"Active":false,"Start hour":23`)
}

func TestHost_StartSubscribesAndStops(t *testing.T) {
	th := newTestHost(t, 12, 0)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- th.host.Start(ctx) }()

	select {
	case <-th.host.Ready():
	case <-time.After(time.Second):
		t.Fatal("host did not become ready")
	}
	assert.Len(t, th.mqtt.handlers, 3)
	assert.Contains(t, th.mqtt.handlers, mqtt.LightCommandTopic(testStrip))
	assert.True(t, th.mqtt.IsConnected())

	// Messages delivered through the subscription reach the host
	th.mqtt.deliver(mqtt.BrightnessSetTopic(testStrip), "77")
	assert.Equal(t, 77, th.host.NormalBrightness())

	cancel()
	require.NoError(t, <-done)
	require.NoError(t, th.host.Stop())
	require.NoError(t, th.host.Stop(), "stop is idempotent")
	assert.Equal(t, 1, th.redis.closes)
}

func TestHost_StopBeforeTickLoop(t *testing.T) {
	th := newTestHost(t, 12, 0)

	require.NoError(t, th.host.Stop())
	th.host.startTickLoop()

	th.host.runMu.Lock()
	defer th.host.runMu.Unlock()
	assert.Nil(t, th.host.ticker, "no tick loop after stop")
}

func TestHost_StopReturnsFirstCloseError(t *testing.T) {
	th := newTestHost(t, 12, 0)
	th.redis.closes = 1 // already closed elsewhere

	err := th.host.Stop()
	assert.Error(t, err)
	assert.Equal(t, err, th.host.Stop())
	assert.Equal(t, 2, th.redis.closes)
}

func TestHost_ReappliesAfterForeignCommand(t *testing.T) {
	th := newTestHost(t, 23, 30)
	ctx := context.Background()
	require.NoError(t, th.host.ApplyConfig(ctx, map[string]any{
		nightmode.Namespace: map[string]any{nightmode.KeyActive: true},
	}))
	commandTopic := mqtt.LightCommandTopic(testStrip)

	th.host.Tick(ctx)
	require.Len(t, th.mqtt.onTopic(commandTopic), 1)

	// Another publisher turns the strip up
	th.host.handleCommandMessage(&mockMessage{topic: commandTopic, payload: []byte(`{"brightness":255}`)})

	for i := 0; i < 10; i++ {
		th.clock.advance(250 * time.Millisecond)
		th.host.Tick(ctx)
	}

	commands := th.mqtt.onTopic(commandTopic)
	require.Len(t, commands, 2, "re-sent once, then deduplicated again")
	var cmd map[string]any
	require.NoError(t, json.Unmarshal(commands[1].payload, &cmd))
	assert.Equal(t, float64(5), cmd["brightness"])
	assert.Equal(t, CommandSource, cmd["source"])

	// Non-JSON payloads are foreign writes too
	th.host.handleCommandMessage(&mockMessage{topic: commandTopic, payload: []byte("255")})
	th.clock.advance(250 * time.Millisecond)
	th.host.Tick(ctx)
	assert.Len(t, th.mqtt.onTopic(commandTopic), 3)
}

func TestHost_IgnoresOwnCommandEcho(t *testing.T) {
	th := newTestHost(t, 12, 0)
	ctx := context.Background()
	require.NoError(t, th.host.Init(ctx))
	commandTopic := mqtt.LightCommandTopic(testStrip)

	th.host.Tick(ctx)
	own := th.mqtt.onTopic(commandTopic)
	require.Len(t, own, 1)

	th.host.handleCommandMessage(&mockMessage{topic: commandTopic, payload: own[0].payload})
	th.clock.advance(250 * time.Millisecond)
	th.host.Tick(ctx)

	assert.Len(t, th.mqtt.onTopic(commandTopic), 1)
}

// lockedBuffer is a log sink safe for the tick loop goroutine
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestHost_StartLogsRedisConnectionOnce(t *testing.T) {
	var logs lockedBuffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelInfo}))
	th := newTestHostWithLogger(t, 12, 0, logger)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- th.host.Start(ctx) }()
	<-th.host.Ready()

	// Health checks ping again; only Start reports the connection
	require.NoError(t, th.redis.Ping(ctx))
	require.NoError(t, th.redis.Ping(ctx))

	cancel()
	require.NoError(t, <-done)
	require.NoError(t, th.host.Stop())

	assert.Equal(t, 1, strings.Count(logs.String(), "Connected to Redis"))
}

func TestHost_StartFailsWhenRedisDown(t *testing.T) {
	th := newTestHost(t, 12, 0)
	th.redis.err = assert.AnError

	err := th.host.Start(context.Background())
	assert.ErrorIs(t, err, assert.AnError)
}
