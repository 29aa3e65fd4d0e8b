/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/friendsincode/waveform/internal/cache"
	"github.com/friendsincode/waveform/internal/events"
	"github.com/friendsincode/waveform/internal/media"
	"github.com/friendsincode/waveform/internal/models"
)

// trackResponse is the wire view of a library track.
type trackResponse struct {
	ID          string  `json:"id"`
	UserID      string  `json:"user_id"`
	ArtistName  string  `json:"artist_name"`
	Title       string  `json:"title"`
	Genre       string  `json:"genre,omitempty"`
	Description string  `json:"description,omitempty"`
	AudioURL    string  `json:"audio_url"`
	ArtworkURL  string  `json:"artwork_url,omitempty"`
	Duration    float64 `json:"duration"`
	PlayCount   int64   `json:"play_count"`
	LikeCount   int64   `json:"like_count,omitempty"`
	Liked       bool    `json:"liked,omitempty"`
	CreatedAt   string  `json:"created_at"`
}

func (a *API) trackView(track models.Track) trackResponse {
	resp := trackResponse{
		ID:          track.ID,
		UserID:      track.UserID,
		Title:       track.Title,
		Genre:       track.Genre,
		Description: track.Description,
		Duration:    track.Duration,
		PlayCount:   track.PlayCount,
		CreatedAt:   track.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
	if track.User != nil {
		resp.ArtistName = track.User.DisplayName
		if resp.ArtistName == "" {
			resp.ArtistName = track.User.Username
		}
	}
	if a.media != nil {
		if track.AudioKey != "" {
			resp.AudioURL = a.media.URL(track.AudioKey)
		}
		if track.ArtworkKey != "" {
			resp.ArtworkURL = a.media.URL(track.ArtworkKey)
		}
	}
	return resp
}

func (a *API) handleTracksList(w http.ResponseWriter, r *http.Request) {
	limit, offset := paginate(r, 50, 200)
	genre := r.URL.Query().Get("genre")
	search := strings.TrimSpace(r.URL.Query().Get("q"))

	listKey := fmt.Sprintf("genre=%s&q=%s&limit=%d&offset=%d", genre, search, limit, offset)
	if a.cache != nil && search == "" {
		if cached, ok := a.cache.GetTrackList(r.Context(), listKey); ok {
			writeJSON(w, http.StatusOK, map[string]any{"tracks": a.fromCachedTracks(cached)})
			return
		}
	}

	query := a.db.WithContext(r.Context()).Preload("User").Order("created_at DESC")
	if genre != "" {
		query = query.Where("genre = ?", genre)
	}
	if search != "" {
		query = query.Where("title LIKE ?", "%"+search+"%")
	}

	var rows []models.Track
	if err := query.Limit(limit).Offset(offset).Find(&rows).Error; err != nil {
		a.logger.Error().Err(err).Msg("list tracks failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	out := make([]trackResponse, 0, len(rows))
	for _, row := range rows {
		out = append(out, a.trackView(row))
	}

	if a.cache != nil && search == "" {
		cached := make([]cache.CachedTrack, 0, len(rows))
		for _, row := range rows {
			cached = append(cached, cachedFromModel(row))
		}
		_ = a.cache.SetTrackList(r.Context(), listKey, cached)
	}

	writeJSON(w, http.StatusOK, map[string]any{"tracks": out})
}

func (a *API) fromCachedTracks(rows []cache.CachedTrack) []trackResponse {
	out := make([]trackResponse, 0, len(rows))
	for _, row := range rows {
		resp := trackResponse{
			ID:         row.ID,
			UserID:     row.UserID,
			ArtistName: row.Artist,
			Title:      row.Title,
			Genre:      row.Genre,
			Duration:   row.Duration,
			PlayCount:  row.PlayCount,
		}
		if a.media != nil {
			if row.AudioKey != "" {
				resp.AudioURL = a.media.URL(row.AudioKey)
			}
			if row.ArtworkKey != "" {
				resp.ArtworkURL = a.media.URL(row.ArtworkKey)
			}
		}
		out = append(out, resp)
	}
	return out
}

func cachedFromModel(row models.Track) cache.CachedTrack {
	artist := ""
	if row.User != nil {
		artist = row.User.DisplayName
		if artist == "" {
			artist = row.User.Username
		}
	}
	return cache.CachedTrack{
		ID:         row.ID,
		UserID:     row.UserID,
		Title:      row.Title,
		Artist:     artist,
		Genre:      row.Genre,
		Duration:   row.Duration,
		AudioKey:   row.AudioKey,
		ArtworkKey: row.ArtworkKey,
		PlayCount:  row.PlayCount,
	}
}

func (a *API) handleTrackGet(w http.ResponseWriter, r *http.Request) {
	trackID := chi.URLParam(r, "trackID")

	var track models.Track
	err := a.db.WithContext(r.Context()).Preload("User").First(&track, "id = ?", trackID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	resp := a.trackView(track)
	a.db.WithContext(r.Context()).Model(&models.Like{}).Where("track_id = ?", trackID).Count(&resp.LikeCount)

	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleUserTracks(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	limit, offset := paginate(r, 50, 200)

	var rows []models.Track
	err := a.db.WithContext(r.Context()).Preload("User").
		Where("user_id = ?", userID).
		Order("created_at DESC").Limit(limit).Offset(offset).
		Find(&rows).Error
	if err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	out := make([]trackResponse, 0, len(rows))
	for _, row := range rows {
		out = append(out, a.trackView(row))
	}
	writeJSON(w, http.StatusOK, map[string]any{"tracks": out})
}

// allowed audio upload extensions; anything else is rejected up front.
var audioExtensions = map[string]struct{}{
	".mp3": {}, ".ogg": {}, ".flac": {}, ".wav": {}, ".m4a": {}, ".aac": {}, ".opus": {},
}

func (a *API) handleTrackUpload(w http.ResponseWriter, r *http.Request) {
	userID, ok := a.currentUserID(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, a.maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "file_too_large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid_multipart")
		return
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		writeError(w, http.StatusBadRequest, "audio_required")
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if _, allowed := audioExtensions[ext]; !allowed {
		writeError(w, http.StatusBadRequest, "unsupported_format")
		return
	}

	title := strings.TrimSpace(r.FormValue("title"))
	if title == "" {
		writeError(w, http.StatusBadRequest, "title_required")
		return
	}

	var duration float64
	if raw := r.FormValue("duration"); raw != "" {
		if val, err := strconv.ParseFloat(raw, 64); err == nil && val > 0 {
			duration = val
		}
	}

	trackID := uuid.NewString()
	audioKey, err := a.media.Store(r.Context(), media.KindAudio, trackID, ext, file)
	if err != nil {
		a.logger.Error().Err(err).Msg("audio store failed")
		writeError(w, http.StatusInternalServerError, "media_store_failed")
		return
	}

	var artworkKey string
	if artFile, artHeader, artErr := r.FormFile("artwork"); artErr == nil {
		defer artFile.Close()
		artExt := strings.ToLower(filepath.Ext(artHeader.Filename))
		artworkKey, err = a.media.Store(r.Context(), media.KindArtwork, trackID, artExt, artFile)
		if err != nil {
			a.logger.Warn().Err(err).Msg("artwork store failed")
			artworkKey = ""
		}
	}

	track := models.Track{
		ID:          trackID,
		UserID:      userID,
		Title:       title,
		Genre:       strings.TrimSpace(r.FormValue("genre")),
		Description: r.FormValue("description"),
		AudioKey:    audioKey,
		ArtworkKey:  artworkKey,
		Duration:    duration,
	}
	if err := a.db.WithContext(r.Context()).Create(&track).Error; err != nil {
		_ = a.media.Delete(r.Context(), audioKey)
		a.logger.Error().Err(err).Msg("create track failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	if a.bus != nil {
		a.bus.Publish(events.EventTrackCreated, events.Payload{"track_id": trackID})
	}

	track.User = a.loadUser(r, userID)
	writeJSON(w, http.StatusCreated, a.trackView(track))
}

func (a *API) loadUser(r *http.Request, userID string) *models.User {
	var user models.User
	if err := a.db.WithContext(r.Context()).First(&user, "id = ?", userID).Error; err != nil {
		return nil
	}
	return &user
}

func (a *API) handleTrackUpdate(w http.ResponseWriter, r *http.Request) {
	userID, ok := a.currentUserID(w, r)
	if !ok {
		return
	}
	trackID := chi.URLParam(r, "trackID")

	track, ok := a.ownedTrack(w, r, trackID, userID)
	if !ok {
		return
	}

	var req struct {
		Title       *string `json:"title"`
		Genre       *string `json:"genre"`
		Description *string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}

	updates := map[string]any{}
	if req.Title != nil && strings.TrimSpace(*req.Title) != "" {
		updates["title"] = strings.TrimSpace(*req.Title)
	}
	if req.Genre != nil {
		updates["genre"] = strings.TrimSpace(*req.Genre)
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if len(updates) == 0 {
		writeError(w, http.StatusBadRequest, "no_fields")
		return
	}

	if err := a.db.WithContext(r.Context()).Model(&track).Updates(updates).Error; err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	if a.bus != nil {
		a.bus.Publish(events.EventTrackUpdated, events.Payload{"track_id": trackID})
	}
	if a.cache != nil {
		_ = a.cache.InvalidateTrack(r.Context(), trackID)
	}

	var fresh models.Track
	if err := a.db.WithContext(r.Context()).Preload("User").First(&fresh, "id = ?", trackID).Error; err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	writeJSON(w, http.StatusOK, a.trackView(fresh))
}

func (a *API) handleTrackDelete(w http.ResponseWriter, r *http.Request) {
	userID, ok := a.currentUserID(w, r)
	if !ok {
		return
	}
	trackID := chi.URLParam(r, "trackID")

	track, ok := a.ownedTrack(w, r, trackID, userID)
	if !ok {
		return
	}

	err := a.db.WithContext(r.Context()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("track_id = ?", trackID).Delete(&models.Like{}).Error; err != nil {
			return err
		}
		if err := tx.Where("track_id = ?", trackID).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("track_id = ?", trackID).Delete(&models.PlaylistTrack{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Track{}, "id = ?", trackID).Error
	})
	if err != nil {
		a.logger.Error().Err(err).Msg("delete track failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	if track.AudioKey != "" {
		_ = a.media.Delete(r.Context(), track.AudioKey)
	}
	if track.ArtworkKey != "" {
		_ = a.media.Delete(r.Context(), track.ArtworkKey)
	}

	if a.bus != nil {
		a.bus.Publish(events.EventTrackDeleted, events.Payload{"track_id": trackID})
	}
	if a.cache != nil {
		_ = a.cache.InvalidateTrack(r.Context(), trackID)
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// ownedTrack loads a track and enforces that userID owns it.
func (a *API) ownedTrack(w http.ResponseWriter, r *http.Request, trackID, userID string) (models.Track, bool) {
	var track models.Track
	err := a.db.WithContext(r.Context()).First(&track, "id = ?", trackID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		writeError(w, http.StatusNotFound, "not_found")
		return track, false
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return track, false
	}
	if track.UserID != userID {
		writeError(w, http.StatusForbidden, "not_owner")
		return track, false
	}
	return track, true
}

// handleTrackStream hands out the playable URL for a library track and
// counts the play.
func (a *API) handleTrackStream(w http.ResponseWriter, r *http.Request) {
	trackID := chi.URLParam(r, "trackID")

	var track models.Track
	err := a.db.WithContext(r.Context()).First(&track, "id = ?", trackID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	if track.AudioKey == "" {
		writeError(w, http.StatusNotFound, "no_audio")
		return
	}

	a.db.WithContext(r.Context()).Model(&models.Track{}).
		Where("id = ?", trackID).
		UpdateColumn("play_count", gorm.Expr("play_count + 1"))

	writeJSON(w, http.StatusOK, map[string]any{
		"audio_url": a.media.URL(track.AudioKey),
		"duration":  track.Duration,
	})
}
