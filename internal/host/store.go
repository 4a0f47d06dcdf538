package host

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/saaga0h/jeeves-nightmode/pkg/redis"
)

// ConfigStore persists usermod configuration and the normal brightness in
// Redis. Each usermod namespace is one field of the strip's config hash,
// holding that namespace's JSON object.
type ConfigStore struct {
	redis  redis.Client
	strip  string
	logger *slog.Logger
}

// NewConfigStore creates a store for one strip
func NewConfigStore(redisClient redis.Client, strip string, logger *slog.Logger) *ConfigStore {
	return &ConfigStore{
		redis:  redisClient,
		strip:  strip,
		logger: logger,
	}
}

// LoadAll returns every persisted namespace as a configuration root.
// Namespaces holding invalid JSON are skipped with a warning.
func (s *ConfigStore) LoadAll(ctx context.Context) (map[string]any, error) {
	key := redis.UsermodConfigKey(s.strip)

	fields, err := s.redis.HGetAll(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to load usermod config: %w", err)
	}

	root := make(map[string]any, len(fields))
	for namespace, raw := range fields {
		var section map[string]any
		if err := json.Unmarshal([]byte(raw), &section); err != nil {
			s.logger.Warn("Ignoring invalid persisted config",
				"key", key,
				"namespace", namespace,
				"error", err)
			continue
		}
		root[namespace] = section
	}

	s.logger.Debug("Loaded usermod config", "key", key, "namespaces", len(root))
	return root, nil
}

// Save persists the namespaces of an exported configuration root
func (s *ConfigStore) Save(ctx context.Context, root map[string]any) error {
	key := redis.UsermodConfigKey(s.strip)

	for namespace, section := range root {
		data, err := json.Marshal(section)
		if err != nil {
			return fmt.Errorf("failed to marshal config for %s: %w", namespace, err)
		}
		if err := s.redis.HSet(ctx, key, namespace, string(data)); err != nil {
			return fmt.Errorf("failed to save config for %s: %w", namespace, err)
		}
	}
	return nil
}

// LoadBrightness returns the persisted normal brightness. found is false
// when none has been stored yet.
func (s *ConfigStore) LoadBrightness(ctx context.Context) (value int, found bool, err error) {
	raw, err := s.redis.Get(ctx, redis.BrightnessKey(s.strip))
	if errors.Is(err, redis.ErrNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to load brightness: %w", err)
	}

	value, err = strconv.Atoi(raw)
	if err != nil {
		return 0, false, fmt.Errorf("invalid persisted brightness %q: %w", raw, err)
	}
	return value, true, nil
}

// SaveBrightness persists the normal brightness without expiry
func (s *ConfigStore) SaveBrightness(ctx context.Context, value int) error {
	if err := s.redis.Set(ctx, redis.BrightnessKey(s.strip), strconv.Itoa(value), 0); err != nil {
		return fmt.Errorf("failed to save brightness: %w", err)
	}
	return nil
}
