package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/fastchat/relay/internal/store"
)

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleHealthDB(w http.ResponseWriter, r *http.Request) {
	if h.presence == nil {
		respondError(w, http.StatusServiceUnavailable, "presence store not configured")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.presence.Ping(ctx); err != nil {
		h.logger.Warn("database health check failed", "error", err)
		respondError(w, http.StatusServiceUnavailable, "database unreachable")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleWSStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.ws.Status())
}

func (h *Handler) handleMetrics(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.metrics.Snapshot())
}

func (h *Handler) handleMetricsReset(w http.ResponseWriter, r *http.Request) {
	h.metrics.Reset()
	respondJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func (h *Handler) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	if h.presence == nil {
		respondError(w, http.StatusServiceUnavailable, "presence store not configured")
		return
	}

	var payload struct {
		DisplayName string `json:"display_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.presence.Heartbeat(r.Context(), payload.DisplayName)
	if err != nil {
		if errors.Is(err, store.ErrInvalidDisplayName) {
			respondError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		h.logger.Error("heartbeat failed", "error", err)
		respondError(w, http.StatusInternalServerError, "heartbeat failed")
		return
	}
	respondJSON(w, http.StatusOK, user)
}

func (h *Handler) handleOnline(w http.ResponseWriter, r *http.Request) {
	if h.presence == nil {
		respondError(w, http.StatusServiceUnavailable, "presence store not configured")
		return
	}

	users, err := h.presence.Online(r.Context())
	if err != nil {
		h.logger.Error("online query failed", "error", err)
		respondError(w, http.StatusInternalServerError, "online query failed")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"users": users,
		"count": len(users),
	})
}

func (h *Handler) handleCleanup(w http.ResponseWriter, r *http.Request) {
	if h.presence == nil {
		respondError(w, http.StatusServiceUnavailable, "presence store not configured")
		return
	}

	removed, err := h.presence.Prune(r.Context())
	if err != nil {
		h.logger.Error("presence cleanup failed", "error", err)
		respondError(w, http.StatusInternalServerError, "cleanup failed")
		return
	}
	respondJSON(w, http.StatusOK, map[string]int64{"removed": removed})
}
