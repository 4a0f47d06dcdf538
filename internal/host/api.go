package host

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
)

const maxConfigBody = 64 << 10

// TransitionLister lists recorded transitions
type TransitionLister interface {
	Recent(ctx context.Context, strip string, limit int) ([]Transition, error)
}

// API serves the configuration UI endpoints
type API struct {
	host        *Host
	transitions TransitionLister
	logger      *slog.Logger
}

// NewAPI creates the HTTP API. transitions may be nil.
func NewAPI(h *Host, transitions TransitionLister, logger *slog.Logger) *API {
	return &API{host: h, transitions: transitions, logger: logger}
}

// Register adds the API routes to mux
func (a *API) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/config", a.handleConfig)
	mux.HandleFunc("/api/brightness", a.handleBrightness)
	mux.HandleFunc("/api/transitions", a.handleTransitions)
}

// handleConfig returns the snapshot on GET and applies a config root on POST
func (a *API) handleConfig(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.writeJSON(w, http.StatusOK, a.host.Snapshot())

	case http.MethodPost:
		var root map[string]any
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxConfigBody)).Decode(&root); err != nil {
			a.writeError(w, http.StatusBadRequest, "invalid config JSON: "+err.Error())
			return
		}
		if err := a.host.ApplyConfig(r.Context(), root); err != nil {
			a.logger.Error("Failed to apply config via API", "error", err)
			a.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		a.writeJSON(w, http.StatusOK, a.host.Snapshot())

	default:
		w.Header().Set("Allow", "GET, POST")
		a.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleBrightness sets the normal brightness: {"brightness": n}
func (a *API) handleBrightness(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		a.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var body struct {
		Brightness *int `json:"brightness"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxConfigBody)).Decode(&body); err != nil || body.Brightness == nil {
		a.writeError(w, http.StatusBadRequest, "expected {\"brightness\": <int>}")
		return
	}

	if err := a.host.SetNormalBrightness(r.Context(), *body.Brightness); err != nil {
		a.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]int{"normal_brightness": a.host.NormalBrightness()})
}

// handleTransitions lists recent transitions: ?limit=n (default 20, max 500)
func (a *API) handleTransitions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		a.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if a.transitions == nil {
		a.writeError(w, http.StatusNotFound, "transition history disabled")
		return
	}

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			a.writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = min(n, 500)
	}

	transitions, err := a.transitions.Recent(r.Context(), a.host.opts.StripID, limit)
	if err != nil {
		a.logger.Error("Failed to list transitions", "error", err)
		a.writeError(w, http.StatusInternalServerError, "failed to list transitions")
		return
	}
	if transitions == nil {
		transitions = []Transition{}
	}
	a.writeJSON(w, http.StatusOK, transitions)
}

func (a *API) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.logger.Error("Failed to encode API response", "error", err)
	}
}

func (a *API) writeError(w http.ResponseWriter, status int, message string) {
	a.writeJSON(w, status, map[string]string{"error": message})
}
