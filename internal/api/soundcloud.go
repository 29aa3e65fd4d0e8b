/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"gorm.io/gorm"

	"github.com/friendsincode/waveform/internal/events"
	"github.com/friendsincode/waveform/internal/models"
	"github.com/friendsincode/waveform/internal/soundcloud"
)

func (a *API) handleSoundCloudResolve(w http.ResponseWriter, r *http.Request) {
	if a.soundcloud == nil {
		writeError(w, http.StatusServiceUnavailable, "soundcloud_not_configured")
		return
	}

	var req struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	req.URL = strings.TrimSpace(req.URL)

	if err := soundcloud.ValidateURL(req.URL); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_soundcloud_url")
		return
	}

	track, err := a.soundcloud.Resolve(r.Context(), req.URL)
	if err != nil {
		if errors.Is(err, soundcloud.ErrNoStream) {
			writeError(w, http.StatusBadGateway, "no_stream_available")
			return
		}
		a.logger.Warn().Err(err).Str("url", req.URL).Msg("soundcloud resolve failed")
		writeError(w, http.StatusBadGateway, "resolve_failed")
		return
	}

	writeJSON(w, http.StatusOK, track)
}

func (a *API) handleSoundCloudSearch(w http.ResponseWriter, r *http.Request) {
	if a.soundcloud == nil {
		writeError(w, http.StatusServiceUnavailable, "soundcloud_not_configured")
		return
	}

	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeError(w, http.StatusBadRequest, "query_required")
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	tracks, err := a.soundcloud.Search(r.Context(), q, limit)
	if err != nil {
		a.logger.Warn().Err(err).Str("q", q).Msg("soundcloud search failed")
		writeError(w, http.StatusBadGateway, "search_failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"tracks": tracks})
}

// scLikeFromTrack builds a denormalized like row for a third-party track.
func scLikeFromTrack(userID string, track soundcloud.Track) models.Like {
	return models.Like{
		UserID:               userID,
		TrackRef:             track.ID,
		SoundcloudTitle:      track.Title,
		SoundcloudArtist:     track.ArtistName,
		SoundcloudArtworkURL: track.ArtworkURL,
		SoundcloudSourceURL:  track.SourceURL,
		SoundcloudDuration:   track.Duration,
	}
}

// handleSoundCloudLike toggles a like on a third-party track. The caller
// sends the track as previously returned by resolve or search; no
// upstream call is made here.
func (a *API) handleSoundCloudLike(w http.ResponseWriter, r *http.Request) {
	userID, ok := a.currentUserID(w, r)
	if !ok {
		return
	}

	var req struct {
		Track soundcloud.Track `json:"track"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	trackRef := strings.TrimSpace(req.Track.ID)
	if trackRef == "" && req.Track.ExternalID != "" {
		trackRef = soundcloud.IDPrefix + req.Track.ExternalID
	}
	if !strings.HasPrefix(trackRef, soundcloud.IDPrefix) {
		writeError(w, http.StatusBadRequest, "track_required")
		return
	}

	var existing models.Like
	err := a.db.WithContext(r.Context()).
		First(&existing, "user_id = ? AND track_ref = ?", userID, trackRef).Error
	switch {
	case err == nil:
		result := a.db.WithContext(r.Context()).
			Where("user_id = ? AND track_ref = ?", userID, trackRef).
			Delete(&models.Like{})
		if result.Error != nil {
			writeError(w, http.StatusInternalServerError, "db_error")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"liked": false})
	case errors.Is(err, gorm.ErrRecordNotFound):
		like := scLikeFromTrack(userID, req.Track)
		like.TrackRef = trackRef
		// Requests carrying only the id backfill metadata from any other
		// user's like of the same track.
		if like.SoundcloudTitle == "" {
			var donor models.Like
			if err := a.db.WithContext(r.Context()).
				Where("track_ref = ? AND soundcloud_title <> ''", trackRef).
				First(&donor).Error; err == nil {
				like.SoundcloudTitle = donor.SoundcloudTitle
				like.SoundcloudArtist = donor.SoundcloudArtist
				like.SoundcloudArtworkURL = donor.SoundcloudArtworkURL
				like.SoundcloudSourceURL = donor.SoundcloudSourceURL
				like.SoundcloudDuration = donor.SoundcloudDuration
			}
		}
		if err := a.db.WithContext(r.Context()).Create(&like).Error; err != nil {
			writeError(w, http.StatusInternalServerError, "db_error")
			return
		}
		if a.bus != nil {
			a.bus.Publish(events.EventTrackLiked, events.Payload{
				"user_id":  userID,
				"track_id": trackRef,
			})
		}
		writeJSON(w, http.StatusOK, map[string]any{"liked": true})
	default:
		writeError(w, http.StatusInternalServerError, "db_error")
	}
}

// handleSoundCloudLikeCheck reports whether the requester has liked the
// given third-party track.
func (a *API) handleSoundCloudLikeCheck(w http.ResponseWriter, r *http.Request) {
	userID, ok := a.currentUserID(w, r)
	if !ok {
		return
	}
	trackRef := strings.TrimSpace(r.URL.Query().Get("track_ref"))
	if trackRef == "" {
		writeError(w, http.StatusBadRequest, "track_ref_required")
		return
	}

	var count int64
	err := a.db.WithContext(r.Context()).Model(&models.Like{}).
		Where("user_id = ? AND track_ref = ?", userID, trackRef).
		Count(&count).Error
	if err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"liked": count > 0})
}

// handleSoundCloudImport copies a SoundCloud user's liked tracks into the
// requester's likes. Stream URLs are not fetched here; playback resolves
// them on demand.
func (a *API) handleSoundCloudImport(w http.ResponseWriter, r *http.Request) {
	if a.soundcloud == nil {
		writeError(w, http.StatusServiceUnavailable, "soundcloud_not_configured")
		return
	}
	userID, ok := a.currentUserID(w, r)
	if !ok {
		return
	}

	var req struct {
		Username string `json:"username"`
		Limit    int    `json:"limit"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" {
		writeError(w, http.StatusBadRequest, "username_required")
		return
	}

	scUser, err := a.soundcloud.ResolveUser(r.Context(), req.Username)
	if err != nil {
		switch {
		case errors.Is(err, soundcloud.ErrNotUser):
			writeError(w, http.StatusNotFound, "user_not_found")
		case errors.Is(err, soundcloud.ErrNotSoundCloudURL):
			writeError(w, http.StatusBadRequest, "invalid_soundcloud_url")
		default:
			a.logger.Warn().Err(err).Str("username", req.Username).Msg("soundcloud user resolve failed")
			writeError(w, http.StatusBadGateway, "resolve_failed")
		}
		return
	}

	likes, err := a.soundcloud.UserLikes(r.Context(), scUser.ID, req.Limit)
	if err != nil {
		a.logger.Warn().Err(err).Int64("sc_user_id", scUser.ID).Msg("soundcloud likes fetch failed")
		writeError(w, http.StatusBadGateway, "likes_fetch_failed")
		return
	}

	var imported, skipped, failed int
	for _, track := range likes {
		var count int64
		err := a.db.WithContext(r.Context()).Model(&models.Like{}).
			Where("user_id = ? AND track_ref = ?", userID, track.ID).
			Count(&count).Error
		if err == nil && count > 0 {
			skipped++
			continue
		}

		like := scLikeFromTrack(userID, track)
		if err := a.db.WithContext(r.Context()).Create(&like).Error; err != nil {
			if strings.Contains(strings.ToLower(err.Error()), "unique") || errors.Is(err, gorm.ErrDuplicatedKey) {
				skipped++
			} else {
				failed++
			}
			continue
		}
		imported++
	}

	a.logger.Info().
		Str("user_id", userID).
		Str("sc_user", scUser.Username).
		Int("imported", imported).
		Int("skipped", skipped).
		Int("failed", failed).
		Msg("soundcloud likes imported")

	writeJSON(w, http.StatusOK, map[string]any{
		"username": scUser.Username,
		"imported": imported,
		"skipped":  skipped,
		"failed":   failed,
	})
}
