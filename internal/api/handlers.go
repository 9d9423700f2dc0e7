package api

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/nerrad567/classroom-core/internal/history"
	"github.com/nerrad567/classroom-core/internal/protocol"
	"github.com/nerrad567/classroom-core/internal/remote"
)

// healthCheckTimeout bounds the database ping done by /health.
const healthCheckTimeout = 2 * time.Second

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK
	checks := map[string]string{}

	if s.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()
		if err := s.db.PingContext(ctx); err != nil {
			checks["database"] = err.Error()
			status = "degraded"
			code = http.StatusServiceUnavailable
		} else {
			checks["database"] = "ok"
		}
	}
	if s.mqtt != nil {
		if s.mqtt.Status().Connected {
			checks["mqtt"] = "ok"
		} else {
			checks["mqtt"] = "disconnected"
		}
	}

	writeJSON(w, code, map[string]any{
		"status":    status,
		"version":   s.version,
		"device_id": s.deviceID,
		"checks":    checks,
	})
}

// handleGetState returns the room as the upstream status payload.
func (s *Server) handleGetState(w http.ResponseWriter, _ *http.Request) {
	data, err := protocol.EncodeStatus(s.deviceID, s.controller.State().Read())
	if err != nil {
		writeInternalError(w, "encoding status failed")
		return
	}
	writeRawJSON(w, http.StatusOK, data)
}

// handleSetState applies a full control payload, the same document a SET
// line carries, and returns the resulting status.
func (s *Server) handleSetState(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeBadRequest(w, "reading request body failed")
		return
	}

	cmd, err := protocol.ParseControl(body)
	if err != nil {
		writeControlError(w, err)
		return
	}

	logger := s.logger.With("request_id", requestID(r.Context()))
	if err := remote.Apply(r.Context(), s.controller, cmd, logger); err != nil {
		writeInternalError(w, err.Error())
		return
	}

	s.handleGetState(w, r)
}

// handleToggleMode flips auto mode.
func (s *Server) handleToggleMode(w http.ResponseWriter, r *http.Request) {
	auto := s.controller.ToggleAutoMode(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"auto_mode": auto,
	})
}

// handleHistory returns the most recent hourly snapshots, newest first.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeUnavailable(w, "history is not available")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		limit = n
	}

	entries, err := s.history.Recent(r.Context(), s.deviceID, limit)
	if err != nil {
		s.logger.Error("reading history failed", "error", err, "request_id", requestID(r.Context()))
		writeInternalError(w, "reading history failed")
		return
	}
	if entries == nil {
		entries = []history.Entry{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"device_id": s.deviceID,
		"entries":   entries,
		"count":     len(entries),
	})
}
