package host

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/saaga0h/jeeves-nightmode/pkg/mqtt"
	"github.com/saaga0h/jeeves-nightmode/pkg/redis"
	"github.com/saaga0h/jeeves-nightmode/pkg/usermod"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

type published struct {
	topic    string
	retained bool
	payload  []byte
}

type mockMessage struct {
	topic   string
	payload []byte
}

func (m *mockMessage) Topic() string   { return m.topic }
func (m *mockMessage) Payload() []byte { return m.payload }
func (m *mockMessage) Ack()            {}

type mockMQTT struct {
	mu         sync.Mutex
	connected  bool
	published  []published
	handlers   map[string]mqtt.MessageHandler
	publishErr error
}

func newMockMQTT() *mockMQTT {
	return &mockMQTT{handlers: make(map[string]mqtt.MessageHandler)}
}

func (m *mockMQTT) Connect(ctx context.Context) error { m.connected = true; return nil }
func (m *mockMQTT) Disconnect()                       { m.connected = false }
func (m *mockMQTT) IsConnected() bool                 { return m.connected }

func (m *mockMQTT) Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[topic] = handler
	return nil
}

func (m *mockMQTT) Publish(topic string, qos byte, retained bool, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.publishErr != nil {
		return m.publishErr
	}
	m.published = append(m.published, published{topic: topic, retained: retained, payload: payload})
	return nil
}

// deliver invokes the handler subscribed to topic
func (m *mockMQTT) deliver(topic string, payload string) {
	m.mu.Lock()
	handler := m.handlers[topic]
	m.mu.Unlock()
	if handler != nil {
		handler(&mockMessage{topic: topic, payload: []byte(payload)})
	}
}

func (m *mockMQTT) onTopic(topic string) []published {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []published
	for _, p := range m.published {
		if p.topic == topic {
			out = append(out, p)
		}
	}
	return out
}

type mockRedis struct {
	mu     sync.Mutex
	values map[string]string
	hashes map[string]map[string]string
	err    error
	closes int
}

func newMockRedis() *mockRedis {
	return &mockRedis{
		values: make(map[string]string),
		hashes: make(map[string]map[string]string),
	}
}

func (r *mockRedis) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.values[key] = fmt.Sprint(value)
	return nil
}

func (r *mockRedis) Get(ctx context.Context, key string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return "", r.err
	}
	v, ok := r.values[key]
	if !ok {
		return "", fmt.Errorf("key %s: %w", key, redis.ErrNotFound)
	}
	return v, nil
}

func (r *mockRedis) HSet(ctx context.Context, key string, field string, value interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	if r.hashes[key] == nil {
		r.hashes[key] = make(map[string]string)
	}
	r.hashes[key][field] = fmt.Sprint(value)
	return nil
}

func (r *mockRedis) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	out := make(map[string]string)
	for k, v := range r.hashes[key] {
		out[k] = v
	}
	return out, nil
}

func (r *mockRedis) Ping(ctx context.Context) error { return r.err }

// Close fails when called twice, like go-redis
func (r *mockRedis) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closes++
	if r.closes > 1 {
		return fmt.Errorf("redis: client is closed")
	}
	return nil
}

type fakeClock struct {
	ms  int64
	now time.Time
}

func (c *fakeClock) NowMs() int64   { return c.ms }
func (c *fakeClock) Now() time.Time { return c.now }
func (c *fakeClock) TimeOfDay() usermod.ClockTime {
	return usermod.ClockTime{Hour: c.now.Hour(), Minute: c.now.Minute()}
}

// advance moves both clocks forward
func (c *fakeClock) advance(d time.Duration) {
	c.ms += d.Milliseconds()
	c.now = c.now.Add(d)
}

type mockRecorder struct {
	transitions []Transition
	err         error
}

func (r *mockRecorder) Record(ctx context.Context, t *Transition) error {
	if r.err != nil {
		return r.err
	}
	r.transitions = append(r.transitions, *t)
	return nil
}

func (r *mockRecorder) Recent(ctx context.Context, strip string, limit int) ([]Transition, error) {
	if r.err != nil {
		return nil, r.err
	}
	out := make([]Transition, 0, limit)
	for i := len(r.transitions) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, r.transitions[i])
	}
	return out, nil
}
