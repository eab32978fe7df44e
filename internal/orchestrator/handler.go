package orchestrator

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"blink-crossfade/internal/platform/metrics"

	"github.com/go-chi/chi/v5"
)

// Handler exposes session HTTP endpoints using go-chi.
type Handler struct {
	svc     *Service
	log     *slog.Logger
	metrics *metrics.Metrics
}

// NewHandler returns a Handler that uses the given Service, Logger, and optional Metrics.
// Metrics may be nil to disable metric recording (e.g. in tests).
func NewHandler(svc *Service, log *slog.Logger, m *metrics.Metrics) *Handler {
	return &Handler{svc: svc, log: log, metrics: m}
}

// Routes mounts the session endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/sessions", h.CreateSession)
	r.Route("/sessions/{session_id}", func(r chi.Router) {
		r.Get("/", h.GetSnapshot)
		r.Delete("/", h.EndSession)
		r.Post("/trigger", h.Trigger)
		r.Post("/ticks", h.Tick)
		r.Get("/stats", h.GetStats)
	})
}

type createSessionRequest struct {
	CatalogSize        int     `json:"catalog_size"`
	ClipPattern        string  `json:"clip_pattern"`
	AudioName          string  `json:"audio_name"`
	AudioDurationMs    float64 `json:"audio_duration_ms"`
	FadeMs             float64 `json:"fade_ms"`
	VideoLoadLatencyMs float64 `json:"video_load_latency_ms"`
	JumpEvery          *int    `json:"jump_every"`
	Seed               *uint64 `json:"seed"`
}

type createSessionResponse struct {
	ID SessionID `json:"id"`
}

type triggerRequest struct {
	AudioAction string `json:"audio_action"`
}

type tickRequest struct {
	TimestampMs *float64 `json:"timestamp_ms"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// CreateSession handles POST /sessions. The body is optional; omitted
// fields take the service defaults.
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := decodeOptional(r, &req); err != nil {
		h.log.Debug("invalid session body", slog.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, err)
		return
	}

	id, err := h.svc.CreateSession(SessionConfig{
		CatalogSize:      req.CatalogSize,
		ClipPattern:      req.ClipPattern,
		AudioName:        req.AudioName,
		AudioDuration:    fromMillis(req.AudioDurationMs),
		Fade:             fromMillis(req.FadeMs),
		VideoLoadLatency: fromMillis(req.VideoLoadLatencyMs),
		JumpEvery:        req.JumpEvery,
		Seed:             req.Seed,
	})
	if err != nil {
		h.log.Info("session rejected", slog.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, err)
		return
	}

	writeJSON(w, http.StatusCreated, createSessionResponse{ID: id})
}

// Trigger handles POST /sessions/{session_id}/trigger.
// Body (optional): { "audio_action": "start" | "jump" | "none" }.
func (h *Handler) Trigger(w http.ResponseWriter, r *http.Request) {
	id := SessionID(chi.URLParam(r, "session_id"))

	var req triggerRequest
	if err := decodeOptional(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	action, err := ParseAudioAction(req.AudioAction)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	snap, err := h.svc.Trigger(r.Context(), id, action)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidAudioAction):
			if h.metrics != nil {
				h.metrics.IncTriggersRejected()
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusConflict)
			_ = json.NewEncoder(w).Encode(struct {
				Error    string   `json:"error"`
				Snapshot Snapshot `json:"snapshot"`
			}{err.Error(), snap})
		default:
			h.writeSessionError(w, id, err)
		}
		return
	}

	if h.metrics != nil {
		h.metrics.IncTriggers()
	}
	writeJSON(w, http.StatusOK, snap)
}

// Tick handles POST /sessions/{session_id}/ticks.
// Body: { "timestamp_ms": 1234.5 }.
func (h *Handler) Tick(w http.ResponseWriter, r *http.Request) {
	id := SessionID(chi.URLParam(r, "session_id"))

	var req tickRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.TimestampMs == nil {
		writeError(w, http.StatusBadRequest, errors.New("timestamp_ms is required"))
		return
	}

	stats, err := h.svc.Tick(r.Context(), id, fromMillis(*req.TimestampMs))
	if err != nil {
		h.writeSessionError(w, id, err)
		return
	}

	if h.metrics != nil && stats.Samples > 0 {
		h.metrics.SetTickInterval(stats.Smoothed)
	}
	writeJSON(w, http.StatusOK, newStatsSnapshot(id, stats))
}

// GetSnapshot handles GET /sessions/{session_id}.
func (h *Handler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	id := SessionID(chi.URLParam(r, "session_id"))
	snap, err := h.svc.Snapshot(r.Context(), id)
	if err != nil {
		h.writeSessionError(w, id, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// GetStats handles GET /sessions/{session_id}/stats.
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	id := SessionID(chi.URLParam(r, "session_id"))
	stats, err := h.svc.Stats(r.Context(), id)
	if err != nil {
		h.writeSessionError(w, id, err)
		return
	}
	writeJSON(w, http.StatusOK, newStatsSnapshot(id, stats))
}

// EndSession handles DELETE /sessions/{session_id}. Ending an unknown
// session succeeds so the call is idempotent.
func (h *Handler) EndSession(w http.ResponseWriter, r *http.Request) {
	id := SessionID(chi.URLParam(r, "session_id"))
	h.svc.EndSession(id)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeSessionError(w http.ResponseWriter, id SessionID, err error) {
	switch {
	case errors.Is(err, ErrSessionNotFound), errors.Is(err, ErrSessionClosed):
		writeError(w, http.StatusNotFound, ErrSessionNotFound)
	default:
		h.log.Error("session request failed",
			slog.String("session_id", string(id)),
			slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, err)
	}
}

// decodeOptional decodes a JSON body into v; an empty body leaves v unchanged.
func decodeOptional(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}
