/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/friendsincode/waveform/internal/events"
	"github.com/friendsincode/waveform/internal/models"
)

type playlistResponse struct {
	ID          string          `json:"id"`
	UserID      string          `json:"user_id"`
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	Public      bool            `json:"public"`
	Tracks      []trackResponse `json:"tracks,omitempty"`
	TrackCount  int             `json:"track_count"`
}

func (a *API) playlistView(r *http.Request, playlist models.Playlist, withTracks bool) playlistResponse {
	resp := playlistResponse{
		ID:          playlist.ID,
		UserID:      playlist.UserID,
		Title:       playlist.Title,
		Description: playlist.Description,
		Public:      playlist.Public,
		TrackCount:  len(playlist.Tracks),
	}
	if !withTracks {
		return resp
	}
	for _, entry := range playlist.Tracks {
		if entry.Track == nil {
			continue
		}
		resp.Tracks = append(resp.Tracks, a.trackView(*entry.Track))
	}
	return resp
}

func (a *API) handlePlaylistsList(w http.ResponseWriter, r *http.Request) {
	userID, ok := a.currentUserID(w, r)
	if !ok {
		return
	}

	var playlists []models.Playlist
	err := a.db.WithContext(r.Context()).
		Preload("Tracks").
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		Find(&playlists).Error
	if err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	out := make([]playlistResponse, 0, len(playlists))
	for _, playlist := range playlists {
		out = append(out, a.playlistView(r, playlist, false))
	}
	writeJSON(w, http.StatusOK, map[string]any{"playlists": out})
}

func (a *API) handlePlaylistGet(w http.ResponseWriter, r *http.Request) {
	playlistID := chi.URLParam(r, "playlistID")

	var playlist models.Playlist
	err := a.db.WithContext(r.Context()).
		Preload("Tracks", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Preload("Tracks.Track").
		Preload("Tracks.Track.User").
		First(&playlist, "id = ?", playlistID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	if !playlist.Public {
		requester, ok := a.optionalUserID(r)
		if !ok || requester != playlist.UserID {
			writeError(w, http.StatusNotFound, "not_found")
			return
		}
	}

	writeJSON(w, http.StatusOK, a.playlistView(r, playlist, true))
}

func (a *API) handlePlaylistCreate(w http.ResponseWriter, r *http.Request) {
	userID, ok := a.currentUserID(w, r)
	if !ok {
		return
	}

	var req struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		Public      *bool  `json:"public"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "title_required")
		return
	}

	playlist := models.Playlist{
		ID:          uuid.NewString(),
		UserID:      userID,
		Title:       req.Title,
		Description: req.Description,
		Public:      true,
	}
	if req.Public != nil {
		playlist.Public = *req.Public
	}

	if err := a.db.WithContext(r.Context()).Create(&playlist).Error; err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	writeJSON(w, http.StatusCreated, a.playlistView(r, playlist, false))
}

func (a *API) handlePlaylistUpdate(w http.ResponseWriter, r *http.Request) {
	userID, ok := a.currentUserID(w, r)
	if !ok {
		return
	}
	playlist, ok := a.ownedPlaylist(w, r, chi.URLParam(r, "playlistID"), userID)
	if !ok {
		return
	}

	var req struct {
		Title       *string `json:"title"`
		Description *string `json:"description"`
		Public      *bool   `json:"public"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}

	updates := map[string]any{}
	if req.Title != nil && strings.TrimSpace(*req.Title) != "" {
		updates["title"] = strings.TrimSpace(*req.Title)
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.Public != nil {
		updates["public"] = *req.Public
	}
	if len(updates) == 0 {
		writeError(w, http.StatusBadRequest, "no_fields")
		return
	}

	if err := a.db.WithContext(r.Context()).Model(&playlist).Updates(updates).Error; err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	a.publishPlaylistEvent(events.EventPlaylistUpdated, playlist.ID)
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (a *API) handlePlaylistDelete(w http.ResponseWriter, r *http.Request) {
	userID, ok := a.currentUserID(w, r)
	if !ok {
		return
	}
	playlist, ok := a.ownedPlaylist(w, r, chi.URLParam(r, "playlistID"), userID)
	if !ok {
		return
	}

	err := a.db.WithContext(r.Context()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("playlist_id = ?", playlist.ID).Delete(&models.PlaylistTrack{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Playlist{}, "id = ?", playlist.ID).Error
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	a.publishPlaylistEvent(events.EventPlaylistDeleted, playlist.ID)
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (a *API) handlePlaylistAddTrack(w http.ResponseWriter, r *http.Request) {
	userID, ok := a.currentUserID(w, r)
	if !ok {
		return
	}
	playlist, ok := a.ownedPlaylist(w, r, chi.URLParam(r, "playlistID"), userID)
	if !ok {
		return
	}

	var req struct {
		TrackID string `json:"track_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.TrackID == "" {
		writeError(w, http.StatusBadRequest, "track_id_required")
		return
	}

	var track models.Track
	if err := a.db.WithContext(r.Context()).First(&track, "id = ?", req.TrackID).Error; err != nil {
		writeError(w, http.StatusNotFound, "track_not_found")
		return
	}

	var maxPos int
	a.db.WithContext(r.Context()).Model(&models.PlaylistTrack{}).
		Where("playlist_id = ?", playlist.ID).
		Select("COALESCE(MAX(position), -1)").Scan(&maxPos)

	entry := models.PlaylistTrack{
		PlaylistID: playlist.ID,
		TrackID:    req.TrackID,
		Position:   maxPos + 1,
	}
	if err := a.db.WithContext(r.Context()).Create(&entry).Error; err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "unique") || errors.Is(err, gorm.ErrDuplicatedKey) {
			writeError(w, http.StatusConflict, "already_in_playlist")
			return
		}
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	a.publishPlaylistEvent(events.EventPlaylistUpdated, playlist.ID)
	writeJSON(w, http.StatusCreated, map[string]any{"position": entry.Position})
}

func (a *API) handlePlaylistRemoveTrack(w http.ResponseWriter, r *http.Request) {
	userID, ok := a.currentUserID(w, r)
	if !ok {
		return
	}
	playlist, ok := a.ownedPlaylist(w, r, chi.URLParam(r, "playlistID"), userID)
	if !ok {
		return
	}
	trackID := chi.URLParam(r, "trackID")

	result := a.db.WithContext(r.Context()).
		Where("playlist_id = ? AND track_id = ?", playlist.ID, trackID).
		Delete(&models.PlaylistTrack{})
	if result.Error != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	if result.RowsAffected == 0 {
		writeError(w, http.StatusNotFound, "not_in_playlist")
		return
	}

	a.compactPositions(r, playlist.ID)
	a.publishPlaylistEvent(events.EventPlaylistUpdated, playlist.ID)
	writeJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

// handlePlaylistReorder replaces the playlist order with the given track
// id sequence. Ids must match the current membership exactly.
func (a *API) handlePlaylistReorder(w http.ResponseWriter, r *http.Request) {
	userID, ok := a.currentUserID(w, r)
	if !ok {
		return
	}
	playlist, ok := a.ownedPlaylist(w, r, chi.URLParam(r, "playlistID"), userID)
	if !ok {
		return
	}

	var req struct {
		TrackIDs []string `json:"track_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}

	var existing []models.PlaylistTrack
	if err := a.db.WithContext(r.Context()).
		Where("playlist_id = ?", playlist.ID).
		Find(&existing).Error; err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	if len(req.TrackIDs) != len(existing) {
		writeError(w, http.StatusBadRequest, "track_set_mismatch")
		return
	}
	members := make(map[string]struct{}, len(existing))
	for _, entry := range existing {
		members[entry.TrackID] = struct{}{}
	}
	for _, id := range req.TrackIDs {
		if _, ok := members[id]; !ok {
			writeError(w, http.StatusBadRequest, "track_set_mismatch")
			return
		}
	}

	err := a.db.WithContext(r.Context()).Transaction(func(tx *gorm.DB) error {
		for pos, id := range req.TrackIDs {
			err := tx.Model(&models.PlaylistTrack{}).
				Where("playlist_id = ? AND track_id = ?", playlist.ID, id).
				Update("position", pos).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	a.publishPlaylistEvent(events.EventPlaylistUpdated, playlist.ID)
	writeJSON(w, http.StatusOK, map[string]string{"status": "reordered"})
}

func (a *API) ownedPlaylist(w http.ResponseWriter, r *http.Request, playlistID, userID string) (models.Playlist, bool) {
	var playlist models.Playlist
	err := a.db.WithContext(r.Context()).First(&playlist, "id = ?", playlistID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		writeError(w, http.StatusNotFound, "not_found")
		return playlist, false
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return playlist, false
	}
	if playlist.UserID != userID {
		writeError(w, http.StatusForbidden, "not_owner")
		return playlist, false
	}
	return playlist, true
}

// compactPositions renumbers playlist entries 0..n-1 after a removal.
func (a *API) compactPositions(r *http.Request, playlistID string) {
	var entries []models.PlaylistTrack
	err := a.db.WithContext(r.Context()).
		Where("playlist_id = ?", playlistID).
		Order("position ASC").
		Find(&entries).Error
	if err != nil {
		return
	}
	for pos, entry := range entries {
		if entry.Position == pos {
			continue
		}
		a.db.WithContext(r.Context()).Model(&models.PlaylistTrack{}).
			Where("playlist_id = ? AND track_id = ?", playlistID, entry.TrackID).
			Update("position", pos)
	}
}

func (a *API) publishPlaylistEvent(eventType events.EventType, playlistID string) {
	if a.bus != nil {
		a.bus.Publish(eventType, events.Payload{"playlist_id": playlistID})
	}
}
