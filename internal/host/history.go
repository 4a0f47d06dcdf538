package host

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/saaga0h/jeeves-nightmode/pkg/postgres"
	"github.com/saaga0h/jeeves-nightmode/pkg/usermod"
)

// Transition is a change of the brightness source decided by a usermod,
// e.g. entering or leaving the night window
type Transition struct {
	ID         uuid.UUID      `json:"id"`
	Strip      string         `json:"strip"`
	Usermod    string         `json:"usermod"`
	From       usermod.Action `json:"from"`
	To         usermod.Action `json:"to"`
	Brightness int            `json:"brightness"` // absolute brightness applied
	TimeOfDay  string         `json:"time_of_day"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Recorder stores transitions
type Recorder interface {
	Record(ctx context.Context, t *Transition) error
}

const createTransitionsTable = `
CREATE TABLE IF NOT EXISTS night_mode_transitions (
	id          UUID PRIMARY KEY,
	strip       TEXT NOT NULL,
	usermod     TEXT NOT NULL,
	from_action TEXT NOT NULL,
	to_action   TEXT NOT NULL,
	brightness  INTEGER NOT NULL,
	time_of_day TEXT NOT NULL,
	occurred_at TIMESTAMPTZ NOT NULL
)`

const createTransitionsIndex = `
CREATE INDEX IF NOT EXISTS idx_night_mode_transitions_strip_time
	ON night_mode_transitions (strip, occurred_at DESC)`

// History records transitions in Postgres
type History struct {
	pg     postgres.Client
	logger *slog.Logger
}

// NewHistory creates a Postgres-backed transition history
func NewHistory(pg postgres.Client, logger *slog.Logger) *History {
	return &History{pg: pg, logger: logger}
}

// EnsureSchema creates the transitions table if it does not exist
func (h *History) EnsureSchema(ctx context.Context) error {
	for _, stmt := range []string{createTransitionsTable, createTransitionsIndex} {
		if _, err := h.pg.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create transition schema: %w", err)
		}
	}
	return nil
}

// Record inserts a transition, assigning an ID when missing
func (h *History) Record(ctx context.Context, t *Transition) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}

	_, err := h.pg.Exec(ctx, `
		INSERT INTO night_mode_transitions
			(id, strip, usermod, from_action, to_action, brightness, time_of_day, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		t.ID, t.Strip, t.Usermod, string(t.From), string(t.To), t.Brightness, t.TimeOfDay, t.OccurredAt)
	if err != nil {
		return fmt.Errorf("failed to record transition: %w", err)
	}

	h.logger.Debug("Recorded transition", "id", t.ID, "strip", t.Strip, "to", t.To)
	return nil
}

// Recent returns the latest transitions of a strip, newest first
func (h *History) Recent(ctx context.Context, strip string, limit int) ([]Transition, error) {
	rows, err := h.pg.Query(ctx, `
		SELECT id, strip, usermod, from_action, to_action, brightness, time_of_day, occurred_at
		FROM night_mode_transitions
		WHERE strip = $1
		ORDER BY occurred_at DESC
		LIMIT $2`, strip, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query transitions: %w", err)
	}
	defer rows.Close()

	var transitions []Transition
	for rows.Next() {
		var t Transition
		var from, to string
		if err := rows.Scan(&t.ID, &t.Strip, &t.Usermod, &from, &to, &t.Brightness, &t.TimeOfDay, &t.OccurredAt); err != nil {
			return nil, fmt.Errorf("failed to scan transition: %w", err)
		}
		t.From = usermod.Action(from)
		t.To = usermod.Action(to)
		transitions = append(transitions, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transitions: %w", err)
	}

	return transitions, nil
}
