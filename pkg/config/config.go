package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// Config holds the configuration for the J.E.E.V.E.S. night mode agent
type Config struct {
	// MQTT configuration
	MQTTBroker   string `yaml:"mqtt_broker"`
	MQTTPort     int    `yaml:"mqtt_port"`
	MQTTUser     string `yaml:"mqtt_user"`
	MQTTPassword string `yaml:"mqtt_password"`
	MQTTClientID string `yaml:"mqtt_client_id"`

	// Redis configuration
	RedisHost     string `yaml:"redis_host"`
	RedisPort     int    `yaml:"redis_port"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`

	// Postgres configuration (transition history)
	PostgresEnabled            bool          `yaml:"postgres_enabled"`
	PostgresHost               string        `yaml:"postgres_host"`
	PostgresPort               int           `yaml:"postgres_port"`
	PostgresUser               string        `yaml:"postgres_user"`
	PostgresPassword           string        `yaml:"postgres_password"`
	PostgresDB                 string        `yaml:"postgres_db"`
	PostgresSSLMode            string        `yaml:"postgres_sslmode"`
	PostgresMaxConnections     int           `yaml:"postgres_max_connections"`
	PostgresMaxIdleConnections int           `yaml:"postgres_max_idle_connections"`
	PostgresConnMaxLifetime    time.Duration `yaml:"postgres_conn_max_lifetime"`

	// Service configuration
	ServiceName string `yaml:"service_name"`
	HealthPort  int    `yaml:"health_port"`
	LogLevel    string `yaml:"log_level"`

	// Night mode agent configuration
	StripID                 string  `yaml:"strip_id"`
	TickIntervalMs          int     `yaml:"tick_interval_ms"`
	Timezone                string  `yaml:"timezone"`
	MaxBrightness           int     `yaml:"max_brightness"`
	DefaultNormalBrightness int     `yaml:"default_normal_brightness"`
	SunSchedule             bool    `yaml:"sun_schedule"`
	Latitude                float64 `yaml:"latitude"`
	Longitude               float64 `yaml:"longitude"`

	// ConfigFile is the optional YAML file applied between defaults and env
	ConfigFile string `yaml:"-"`
}

// NewConfig creates a new Config with default values
func NewConfig() *Config {
	return &Config{
		MQTTBroker:                 "localhost",
		MQTTPort:                   1883,
		RedisHost:                  "localhost",
		RedisPort:                  6379,
		RedisDB:                    0,
		PostgresHost:               "localhost",
		PostgresPort:               5432,
		PostgresUser:               "jeeves",
		PostgresDB:                 "jeeves",
		PostgresSSLMode:            "disable",
		PostgresMaxConnections:     5,
		PostgresMaxIdleConnections: 2,
		PostgresConnMaxLifetime:    30 * time.Minute,
		ServiceName:                "nightmode-agent",
		HealthPort:                 8080,
		LogLevel:                   "info",
		StripID:                    "ledstrip",
		// The host loop runs faster than the controller's 200ms throttle
		TickIntervalMs:          50,
		Timezone:                "Local",
		MaxBrightness:           255,
		DefaultNormalBrightness: 128,
		SunSchedule:             false,
		// Helsinki coordinates
		Latitude:  60.1695,
		Longitude: 24.9354,
	}
}

// LoadFromFile applies values from a YAML file. Keys missing from the file
// keep their current values.
func (c *Config) LoadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config YAML: %w", err)
	}

	c.ConfigFile = path
	return nil
}

// LoadFromEnv loads configuration from environment variables with JEEVES_ prefix
func (c *Config) LoadFromEnv() {
	// MQTT configuration
	if v := os.Getenv("JEEVES_MQTT_BROKER"); v != "" {
		c.MQTTBroker = v
	}
	if v := os.Getenv("JEEVES_MQTT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.MQTTPort = port
		}
	}
	if v := os.Getenv("JEEVES_MQTT_USER"); v != "" {
		c.MQTTUser = v
	}
	if v := os.Getenv("JEEVES_MQTT_PASSWORD"); v != "" {
		c.MQTTPassword = v
	}
	if v := os.Getenv("JEEVES_MQTT_CLIENT_ID"); v != "" {
		c.MQTTClientID = v
	}

	// Redis configuration
	if v := os.Getenv("JEEVES_REDIS_HOST"); v != "" {
		c.RedisHost = v
	}
	if v := os.Getenv("JEEVES_REDIS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.RedisPort = port
		}
	}
	if v := os.Getenv("JEEVES_REDIS_PASSWORD"); v != "" {
		c.RedisPassword = v
	}
	if v := os.Getenv("JEEVES_REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			c.RedisDB = db
		}
	}

	// Postgres configuration
	if v := os.Getenv("JEEVES_POSTGRES_ENABLED"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			c.PostgresEnabled = enabled
		}
	}
	if v := os.Getenv("JEEVES_POSTGRES_HOST"); v != "" {
		c.PostgresHost = v
	}
	if v := os.Getenv("JEEVES_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.PostgresPort = port
		}
	}
	if v := os.Getenv("JEEVES_POSTGRES_USER"); v != "" {
		c.PostgresUser = v
	}
	if v := os.Getenv("JEEVES_POSTGRES_PASSWORD"); v != "" {
		c.PostgresPassword = v
	}
	if v := os.Getenv("JEEVES_POSTGRES_DB"); v != "" {
		c.PostgresDB = v
	}
	if v := os.Getenv("JEEVES_POSTGRES_SSLMODE"); v != "" {
		c.PostgresSSLMode = v
	}

	// Service configuration
	if v := os.Getenv("JEEVES_SERVICE_NAME"); v != "" {
		c.ServiceName = v
	}
	if v := os.Getenv("JEEVES_HEALTH_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.HealthPort = port
		}
	}
	if v := os.Getenv("JEEVES_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}

	// Night mode agent configuration
	if v := os.Getenv("JEEVES_STRIP_ID"); v != "" {
		c.StripID = v
	}
	if v := os.Getenv("JEEVES_TICK_INTERVAL_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			c.TickIntervalMs = ms
		}
	}
	if v := os.Getenv("JEEVES_TIMEZONE"); v != "" {
		c.Timezone = v
	}
	if v := os.Getenv("JEEVES_MAX_BRIGHTNESS"); v != "" {
		if max, err := strconv.Atoi(v); err == nil {
			c.MaxBrightness = max
		}
	}
	if v := os.Getenv("JEEVES_DEFAULT_NORMAL_BRIGHTNESS"); v != "" {
		if bri, err := strconv.Atoi(v); err == nil {
			c.DefaultNormalBrightness = bri
		}
	}
	if v := os.Getenv("JEEVES_SUN_SCHEDULE"); v != "" {
		if enable, err := strconv.ParseBool(v); err == nil {
			c.SunSchedule = enable
		}
	}
	if v := os.Getenv("JEEVES_LATITUDE"); v != "" {
		if lat, err := strconv.ParseFloat(v, 64); err == nil {
			c.Latitude = lat
		}
	}
	if v := os.Getenv("JEEVES_LONGITUDE"); v != "" {
		if lon, err := strconv.ParseFloat(v, 64); err == nil {
			c.Longitude = lon
		}
	}
}

// RegisterFlags binds command-line flags to the config fields on the given flag set
func (c *Config) RegisterFlags(fs *pflag.FlagSet) {
	// MQTT flags
	fs.StringVar(&c.MQTTBroker, "mqtt-broker", c.MQTTBroker, "MQTT broker hostname")
	fs.IntVar(&c.MQTTPort, "mqtt-port", c.MQTTPort, "MQTT broker port")
	fs.StringVar(&c.MQTTUser, "mqtt-user", c.MQTTUser, "MQTT username")
	fs.StringVar(&c.MQTTPassword, "mqtt-password", c.MQTTPassword, "MQTT password")
	fs.StringVar(&c.MQTTClientID, "mqtt-client-id", c.MQTTClientID, "MQTT client ID")

	// Redis flags
	fs.StringVar(&c.RedisHost, "redis-host", c.RedisHost, "Redis hostname")
	fs.IntVar(&c.RedisPort, "redis-port", c.RedisPort, "Redis port")
	fs.StringVar(&c.RedisPassword, "redis-password", c.RedisPassword, "Redis password")
	fs.IntVar(&c.RedisDB, "redis-db", c.RedisDB, "Redis database number")

	// Postgres flags
	fs.BoolVar(&c.PostgresEnabled, "postgres-enabled", c.PostgresEnabled, "Record night mode transitions in Postgres")
	fs.StringVar(&c.PostgresHost, "postgres-host", c.PostgresHost, "Postgres hostname")
	fs.IntVar(&c.PostgresPort, "postgres-port", c.PostgresPort, "Postgres port")
	fs.StringVar(&c.PostgresUser, "postgres-user", c.PostgresUser, "Postgres user")
	fs.StringVar(&c.PostgresPassword, "postgres-password", c.PostgresPassword, "Postgres password")
	fs.StringVar(&c.PostgresDB, "postgres-db", c.PostgresDB, "Postgres database")
	fs.StringVar(&c.PostgresSSLMode, "postgres-sslmode", c.PostgresSSLMode, "Postgres sslmode")

	// Service flags
	fs.StringVar(&c.ServiceName, "service-name", c.ServiceName, "Service name")
	fs.IntVar(&c.HealthPort, "health-port", c.HealthPort, "Health check and API HTTP port")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "Log level (debug, info, warn, error)")

	// Night mode flags
	fs.StringVar(&c.StripID, "strip-id", c.StripID, "LED strip identifier used in topics and keys")
	fs.IntVar(&c.TickIntervalMs, "tick-interval-ms", c.TickIntervalMs, "Host loop interval in milliseconds")
	fs.StringVar(&c.Timezone, "timezone", c.Timezone, "IANA timezone for time-of-day (Local for system zone)")
	fs.IntVar(&c.MaxBrightness, "max-brightness", c.MaxBrightness, "Absolute brightness of the strip at 100%")
	fs.IntVar(&c.DefaultNormalBrightness, "default-normal-brightness", c.DefaultNormalBrightness, "Normal brightness used until one is received")
	fs.BoolVar(&c.SunSchedule, "sun-schedule", c.SunSchedule, "Follow sunset/sunrise instead of fixed window times")
	fs.Float64Var(&c.Latitude, "latitude", c.Latitude, "Geographic latitude for the sun schedule")
	fs.Float64Var(&c.Longitude, "longitude", c.Longitude, "Geographic longitude for the sun schedule")
}

// Load applies the full hierarchy: defaults → YAML file → env → flags.
// The config file may be given with --config or JEEVES_CONFIG_FILE.
func (c *Config) Load(args []string) error {
	fs := pflag.NewFlagSet(c.ServiceName, pflag.ContinueOnError)
	configFile := fs.String("config", os.Getenv("JEEVES_CONFIG_FILE"), "Path to YAML config file")
	c.RegisterFlags(fs)

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("failed to parse flags: %w", err)
	}

	// Remember explicit flags so they win over file and env values
	explicit := make(map[string]string)
	fs.Visit(func(f *pflag.Flag) {
		explicit[f.Name] = f.Value.String()
	})

	if *configFile != "" {
		if err := c.LoadFromFile(*configFile); err != nil {
			return err
		}
	}
	c.LoadFromEnv()

	for name, value := range explicit {
		if err := fs.Set(name, value); err != nil {
			return fmt.Errorf("failed to apply flag --%s: %w", name, err)
		}
	}
	return nil
}

// Validate checks that required configuration values are set
func (c *Config) Validate() error {
	if c.MQTTBroker == "" {
		return fmt.Errorf("MQTT broker is required")
	}
	if c.MQTTPort <= 0 || c.MQTTPort > 65535 {
		return fmt.Errorf("MQTT port must be between 1 and 65535")
	}
	if c.RedisHost == "" {
		return fmt.Errorf("Redis host is required")
	}
	if c.RedisPort <= 0 || c.RedisPort > 65535 {
		return fmt.Errorf("Redis port must be between 1 and 65535")
	}
	if c.PostgresEnabled {
		if c.PostgresHost == "" {
			return fmt.Errorf("Postgres host is required when postgres is enabled")
		}
		if c.PostgresPort <= 0 || c.PostgresPort > 65535 {
			return fmt.Errorf("Postgres port must be between 1 and 65535")
		}
	}
	if c.HealthPort <= 0 || c.HealthPort > 65535 {
		return fmt.Errorf("Health port must be between 1 and 65535")
	}
	if c.ServiceName == "" {
		return fmt.Errorf("Service name is required")
	}
	if c.StripID == "" {
		return fmt.Errorf("strip id is required")
	}
	if c.TickIntervalMs <= 0 {
		return fmt.Errorf("tick interval must be positive")
	}
	if c.MaxBrightness <= 0 {
		return fmt.Errorf("max brightness must be positive")
	}
	if c.DefaultNormalBrightness < 0 || c.DefaultNormalBrightness > c.MaxBrightness {
		return fmt.Errorf("default normal brightness must be between 0 and %d", c.MaxBrightness)
	}
	if c.Latitude < -90 || c.Latitude > 90 {
		return fmt.Errorf("latitude must be between -90 and 90")
	}
	if c.Longitude < -180 || c.Longitude > 180 {
		return fmt.Errorf("longitude must be between -180 and 180")
	}
	if _, err := c.Location(); err != nil {
		return err
	}

	// Validate log level
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.LogLevel)
	}

	return nil
}

// Location resolves the configured timezone
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// TickInterval returns the host loop interval
func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.TickIntervalMs) * time.Millisecond
}

// MQTTAddress returns the full MQTT broker address
func (c *Config) MQTTAddress() string {
	return fmt.Sprintf("tcp://%s:%d", c.MQTTBroker, c.MQTTPort)
}

// RedisAddress returns the full Redis address
func (c *Config) RedisAddress() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

// PostgresConnectionString returns the lib/pq connection string
func (c *Config) PostgresConnectionString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.PostgresHost, c.PostgresPort, c.PostgresUser, c.PostgresPassword, c.PostgresDB, c.PostgresSSLMode)
}
