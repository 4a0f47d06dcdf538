package health

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/saaga0h/jeeves-nightmode/pkg/mqtt"
	"github.com/saaga0h/jeeves-nightmode/pkg/postgres"
	"github.com/saaga0h/jeeves-nightmode/pkg/redis"
)

const dependencyTimeout = 2 * time.Second

// Checker provides health check functionality for the night mode agent
type Checker struct {
	mqtt     mqtt.Client
	redis    redis.Client
	postgres postgres.Client
	logger   *slog.Logger
}

// NewChecker creates a new health checker. postgresClient may be nil when
// transition history is disabled.
func NewChecker(mqttClient mqtt.Client, redisClient redis.Client, postgresClient postgres.Client, logger *slog.Logger) *Checker {
	return &Checker{
		mqtt:     mqttClient,
		redis:    redisClient,
		postgres: postgresClient,
		logger:   logger,
	}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp string    `json:"timestamp"`
	Services  *Services `json:"services,omitempty"`
}

// Services represents the status of external dependencies
type Services struct {
	Redis    string `json:"redis"`
	MQTT     string `json:"mqtt"`
	Postgres string `json:"postgres,omitempty"`
}

// HandlerFunc returns 200 while the process is alive without checking
// dependencies
func (h *Checker) HandlerFunc() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.write(w, http.StatusOK, HealthResponse{
			Status:    "ok",
			Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		})
	}
}

// DetailedHandlerFunc returns a handler that checks every dependency. Redis
// and Postgres are pinged with a short timeout.
func (h *Checker) DetailedHandlerFunc() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), dependencyTimeout)
		defer cancel()

		services := h.check(ctx)

		status := "healthy"
		statusCode := http.StatusOK
		if services.Redis != "connected" || services.MQTT != "connected" ||
			(h.postgres != nil && services.Postgres != "connected") {
			status = "degraded"
			statusCode = http.StatusServiceUnavailable
		}

		h.write(w, statusCode, HealthResponse{
			Status:    status,
			Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
			Services:  services,
		})
	}
}

func (h *Checker) check(ctx context.Context) *Services {
	services := &Services{
		Redis: "disconnected",
		MQTT:  "disconnected",
	}

	if h.mqtt != nil && h.mqtt.IsConnected() {
		services.MQTT = "connected"
	}

	if h.redis != nil {
		if err := h.redis.Ping(ctx); err != nil {
			h.logger.Warn("Redis health check failed", "error", err)
		} else {
			services.Redis = "connected"
		}
	}

	if h.postgres != nil {
		services.Postgres = "disconnected"
		pgStatus, err := h.postgres.HealthCheck(ctx)
		switch {
		case err != nil:
			h.logger.Warn("Postgres health check failed", "error", err)
		case !pgStatus.Connected:
			h.logger.Warn("Postgres unavailable", "error", pgStatus.Error)
		default:
			services.Postgres = "connected"
		}
	}

	return services
}

func (h *Checker) write(w http.ResponseWriter, statusCode int, response HealthResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error("Failed to encode health response", "error", err)
	}
}
