/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/friendsincode/waveform/internal/player"
	"github.com/friendsincode/waveform/internal/soundcloud"
)

func (a *API) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	if a.recommender == nil {
		writeError(w, http.StatusServiceUnavailable, "recommendations_not_available")
		return
	}

	trackRef := chi.URLParam(r, "trackRef")
	seed := player.Track{ID: trackRef, Source: player.SourceLibrary}
	if strings.HasPrefix(trackRef, soundcloud.IDPrefix) {
		seed.Source = player.SourceSoundCloud
	}

	recs, err := a.recommender.Recommend(r.Context(), seed)
	if err != nil {
		a.logger.Error().Err(err).Str("track_ref", trackRef).Msg("recommendations failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"tracks": recs})
}
