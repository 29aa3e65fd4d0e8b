/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/friendsincode/waveform/internal/logbuffer"
	"github.com/friendsincode/waveform/internal/version"
)

// SystemStatus represents the overall system health status.
type SystemStatus struct {
	Database  ComponentStatus     `json:"database"`
	Cache     ComponentStatus     `json:"cache"`
	Storage   ComponentStatus     `json:"storage"`
	Version   *version.UpdateInfo `json:"version,omitempty"`
	Timestamp time.Time           `json:"timestamp"`
}

// ComponentStatus represents the status of a single system component.
type ComponentStatus struct {
	Status  string `json:"status"` // "ok", "error", "unavailable"
	Message string `json:"message,omitempty"`
}

func (a *API) handleSystemStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	status := SystemStatus{
		Timestamp: time.Now(),
	}

	// Check database connection
	sqlDB, err := a.db.DB()
	if err != nil {
		status.Database = ComponentStatus{Status: "error", Message: err.Error()}
	} else if err := sqlDB.PingContext(ctx); err != nil {
		status.Database = ComponentStatus{Status: "error", Message: err.Error()}
	} else {
		status.Database = ComponentStatus{Status: "ok", Message: "Connected"}
	}

	// Check cache availability
	if a.cache != nil {
		if a.cache.IsAvailable() {
			status.Cache = ComponentStatus{Status: "ok", Message: "Connected"}
		} else {
			status.Cache = ComponentStatus{Status: "error", Message: "Circuit open"}
		}
	} else {
		status.Cache = ComponentStatus{
			Status:  "unavailable",
			Message: "Cache not configured",
		}
	}

	// Check storage access
	if a.media != nil {
		if err := a.media.CheckStorageAccess(); err != nil {
			status.Storage = ComponentStatus{
				Status:  "error",
				Message: err.Error(),
			}
		} else {
			status.Storage = ComponentStatus{
				Status:  "ok",
				Message: "Accessible",
			}
		}
	} else {
		status.Storage = ComponentStatus{
			Status:  "unavailable",
			Message: "Media service not available",
		}
	}

	if a.updates != nil {
		status.Version = a.updates.Info()
	}

	writeJSON(w, http.StatusOK, status)
}

func (a *API) handleSystemLogs(w http.ResponseWriter, r *http.Request) {
	if a.logBuffer == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"error": "Log buffer not available",
		})
		return
	}

	// Parse query parameters
	params := logbuffer.QueryParams{
		Level:      r.URL.Query().Get("level"),
		Component:  r.URL.Query().Get("component"),
		Search:     r.URL.Query().Get("search"),
		Descending: true, // Default to newest first
	}

	if since := r.URL.Query().Get("since"); since != "" {
		if t, err := time.Parse(time.RFC3339, since); err == nil {
			params.Since = t
		}
	}

	if limit := r.URL.Query().Get("limit"); limit != "" {
		if n, err := strconv.Atoi(limit); err == nil && n > 0 {
			params.Limit = n
		}
	} else {
		params.Limit = 500 // Default limit
	}

	if order := r.URL.Query().Get("order"); order == "asc" {
		params.Descending = false
	}

	entries := a.logBuffer.Query(params)
	writeJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"count":   len(entries),
	})
}

func (a *API) handleLogComponents(w http.ResponseWriter, r *http.Request) {
	if a.logBuffer == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"error": "Log buffer not available",
		})
		return
	}

	components := a.logBuffer.GetComponents()
	writeJSON(w, http.StatusOK, map[string]any{
		"components": components,
	})
}

func (a *API) handleLogStats(w http.ResponseWriter, r *http.Request) {
	if a.logBuffer == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"error": "Log buffer not available",
		})
		return
	}

	stats := a.logBuffer.Stats()
	writeJSON(w, http.StatusOK, stats)
}

func (a *API) handleClearLogs(w http.ResponseWriter, r *http.Request) {
	if a.logBuffer == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"error": "Log buffer not available",
		})
		return
	}

	a.logBuffer.Clear()
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Log buffer cleared",
	})
}

func (a *API) handleCacheFlush(w http.ResponseWriter, r *http.Request) {
	if a.cache == nil {
		writeError(w, http.StatusServiceUnavailable, "cache_not_available")
		return
	}

	if err := a.cache.FlushAll(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "cache_flush_failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Cache flushed",
	})
}
