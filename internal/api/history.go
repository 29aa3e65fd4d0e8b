/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"net/http"
	"time"

	"github.com/friendsincode/waveform/internal/models"
)

// historyEntry is the wire view of one playback record. Native plays
// carry the live track row when it still exists; third-party plays carry
// the denormalized snapshot taken at play time.
type historyEntry struct {
	ID       string         `json:"id"`
	TrackRef string         `json:"track_ref"`
	PlayedAt time.Time      `json:"played_at"`
	Track    *trackResponse `json:"track,omitempty"`

	Title      string `json:"title,omitempty"`
	Artist     string `json:"artist,omitempty"`
	ArtworkURL string `json:"artwork_url,omitempty"`
	SourceURL  string `json:"source_url,omitempty"`
}

func (a *API) handleHistoryList(w http.ResponseWriter, r *http.Request) {
	userID, ok := a.currentUserID(w, r)
	if !ok {
		return
	}
	limit, offset := paginate(r, 50, 500)

	var rows []models.ListeningHistory
	err := a.db.WithContext(r.Context()).
		Where("user_id = ?", userID).
		Order("played_at DESC").Limit(limit).Offset(offset).
		Find(&rows).Error
	if err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	// Batch-load surviving native tracks referenced by the page.
	trackIDs := make([]string, 0, len(rows))
	for _, row := range rows {
		if row.TrackID != nil {
			trackIDs = append(trackIDs, *row.TrackID)
		}
	}
	tracksByID := make(map[string]models.Track, len(trackIDs))
	if len(trackIDs) > 0 {
		var tracks []models.Track
		if err := a.db.WithContext(r.Context()).Preload("User").
			Where("id IN ?", trackIDs).Find(&tracks).Error; err == nil {
			for _, track := range tracks {
				tracksByID[track.ID] = track
			}
		}
	}

	out := make([]historyEntry, 0, len(rows))
	for _, row := range rows {
		entry := historyEntry{
			ID:       row.ID,
			TrackRef: row.TrackRef,
			PlayedAt: row.PlayedAt,
		}
		if row.TrackID != nil {
			if track, found := tracksByID[*row.TrackID]; found {
				view := a.trackView(track)
				entry.Track = &view
			}
		} else {
			entry.Title = row.SoundcloudTitle
			entry.Artist = row.SoundcloudArtist
			entry.ArtworkURL = row.SoundcloudArtworkURL
			entry.SourceURL = row.SoundcloudSourceURL
		}
		out = append(out, entry)
	}

	writeJSON(w, http.StatusOK, map[string]any{"history": out})
}
