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

	"github.com/friendsincode/waveform/internal/events"
	"github.com/friendsincode/waveform/internal/models"
	"github.com/friendsincode/waveform/internal/player"
	"github.com/friendsincode/waveform/internal/soundcloud"
)

// wireTrack is the track shape exchanged with clients. Native tracks may
// arrive as a bare id and are hydrated from the library; third-party
// tracks arrive fully described since no library row exists for them.
type wireTrack struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	ArtistName string  `json:"artist_name"`
	ArtistID   string  `json:"artist_id"`
	Permalink  string  `json:"permalink"`
	ProfileURL string  `json:"profile_url"`
	AudioURL   string  `json:"audio_url"`
	ArtworkURL string  `json:"artwork_url"`
	Duration   float64 `json:"duration"`
	Source     string  `json:"source"`
	SourceURL  string  `json:"source_url"`
	ExternalID string  `json:"external_id"`
}

func (t wireTrack) toPlayerTrack() player.Track {
	track := player.Track{
		ID:         t.ID,
		Title:      t.Title,
		AudioURL:   t.AudioURL,
		ArtworkURL: t.ArtworkURL,
		Duration:   t.Duration,
		SourceURL:  t.SourceURL,
		ExternalID: t.ExternalID,
		Source:     player.SourceLibrary,
	}
	if t.Source == "soundcloud" || strings.HasPrefix(t.ID, soundcloud.IDPrefix) {
		track.Source = player.SourceSoundCloud
	}
	track.Artist.Name = t.ArtistName
	track.Artist.UserID = t.ArtistID
	track.Artist.Permalink = t.Permalink
	track.Artist.ProfileURL = t.ProfileURL
	return track
}

// hydrateTracks fills in library data for native wire tracks that came in
// as bare ids. Unknown ids are dropped.
func (a *API) hydrateTracks(r *http.Request, wires []wireTrack) ([]player.Track, error) {
	missing := make([]string, 0)
	for _, wt := range wires {
		track := wt.toPlayerTrack()
		if !track.ThirdParty() && wt.AudioURL == "" {
			missing = append(missing, wt.ID)
		}
	}

	rowsByID := make(map[string]models.Track, len(missing))
	if len(missing) > 0 {
		var rows []models.Track
		err := a.db.WithContext(r.Context()).Preload("User").
			Where("id IN ?", missing).Find(&rows).Error
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			rowsByID[row.ID] = row
		}
	}

	out := make([]player.Track, 0, len(wires))
	for _, wt := range wires {
		track := wt.toPlayerTrack()
		if track.ThirdParty() || wt.AudioURL != "" {
			out = append(out, track)
			continue
		}
		row, found := rowsByID[wt.ID]
		if !found {
			continue
		}
		out = append(out, a.playerTrackFromModel(row))
	}
	return out, nil
}

func (a *API) playerTrackFromModel(row models.Track) player.Track {
	track := player.Track{
		ID:       row.ID,
		Title:    row.Title,
		Duration: row.Duration,
		Source:   player.SourceLibrary,
	}
	track.Artist.UserID = row.UserID
	if row.User != nil {
		track.Artist.Name = row.User.DisplayName
		if track.Artist.Name == "" {
			track.Artist.Name = row.User.Username
		}
	}
	if a.media != nil {
		if row.AudioKey != "" {
			track.AudioURL = a.media.URL(row.AudioKey)
		}
		if row.ArtworkKey != "" {
			track.ArtworkURL = a.media.URL(row.ArtworkKey)
		}
	}
	return track
}

// session fetches the requester's playback session.
func (a *API) session(w http.ResponseWriter, r *http.Request) (*player.Session, bool) {
	userID, ok := a.currentUserID(w, r)
	if !ok {
		return nil, false
	}
	if a.players == nil {
		writeError(w, http.StatusServiceUnavailable, "player_not_available")
		return nil, false
	}
	return a.players.Session(userID), true
}

func (a *API) handlePlayerState(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

func (a *API) handlePlayerPlay(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.session(w, r)
	if !ok {
		return
	}

	var req struct {
		Track   wireTrack    `json:"track"`
		Index   *int         `json:"index"`
		Context *[]wireTrack `json:"context"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if req.Track.ID == "" {
		writeError(w, http.StatusBadRequest, "track_required")
		return
	}

	tracks, err := a.hydrateTracks(r, []wireTrack{req.Track})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	if len(tracks) == 0 {
		writeError(w, http.StatusNotFound, "track_not_found")
		return
	}
	track := tracks[0]

	index := -1
	if req.Index != nil {
		index = *req.Index
	}

	var contextTracks []player.Track
	hasContext := req.Context != nil
	if hasContext {
		contextTracks, err = a.hydrateTracks(r, *req.Context)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "db_error")
			return
		}
	}

	if err := sess.PlayTrack(r.Context(), track, index, contextTracks, hasContext); err != nil {
		if errors.Is(err, player.ErrResolutionFailed) {
			writeError(w, http.StatusBadGateway, "resolution_failed")
			return
		}
		writeError(w, http.StatusInternalServerError, "play_failed")
		return
	}
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

func (a *API) handlePlayerToggle(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.session(w, r)
	if !ok {
		return
	}
	if err := sess.Toggle(); err != nil {
		writeError(w, http.StatusConflict, "no_current_track")
		return
	}
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

func (a *API) handlePlayerSeek(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.session(w, r)
	if !ok {
		return
	}
	var req struct {
		Position float64 `json:"position"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	sess.Seek(req.Position)
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

func (a *API) handlePlayerVolume(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.session(w, r)
	if !ok {
		return
	}
	var req struct {
		Volume float64 `json:"volume"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	sess.SetVolume(req.Volume)
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

func (a *API) handlePlayerMute(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.session(w, r)
	if !ok {
		return
	}
	sess.ToggleMute()
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

func (a *API) handlePlayerNext(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.session(w, r)
	if !ok {
		return
	}
	if err := sess.Next(r.Context()); err != nil {
		if errors.Is(err, player.ErrNoCurrentTrack) {
			writeError(w, http.StatusConflict, "queue_exhausted")
			return
		}
		writeError(w, http.StatusBadGateway, "play_failed")
		return
	}
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

func (a *API) handlePlayerPrevious(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.session(w, r)
	if !ok {
		return
	}
	if err := sess.Previous(r.Context()); err != nil {
		if errors.Is(err, player.ErrNoCurrentTrack) {
			writeError(w, http.StatusConflict, "queue_exhausted")
			return
		}
		writeError(w, http.StatusBadGateway, "play_failed")
		return
	}
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

func (a *API) handlePlayerLoop(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.session(w, r)
	if !ok {
		return
	}
	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	sess.SetLoop(req.Enabled)
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

func (a *API) handlePlayerShuffle(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.session(w, r)
	if !ok {
		return
	}
	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	sess.SetShuffle(req.Enabled)
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

func (a *API) handlePlayerStop(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.session(w, r)
	if !ok {
		return
	}
	sess.Stop()
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

func (a *API) handlePlayerQueue(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.session(w, r)
	if !ok {
		return
	}
	snap := sess.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"context_tracks": sess.Queue().ContextTracks(),
		"context_index":  snap.ContextIndex,
		"global_size":    snap.GlobalSize,
		"global_index":   snap.GlobalIndex,
	})
}

// handlePlayerSetGlobal replaces the session's global library pool, used
// as the fallback tier once the context queue is exhausted.
func (a *API) handlePlayerSetGlobal(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.session(w, r)
	if !ok {
		return
	}

	var req struct {
		Tracks    []wireTrack `json:"tracks"`
		CurrentID string      `json:"current_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}

	tracks, err := a.hydrateTracks(r, req.Tracks)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	sess.Queue().SetGlobal(tracks, req.CurrentID)
	if a.bus != nil {
		a.bus.Publish(events.EventQueueUpdated, events.Payload{"size": len(tracks)})
	}
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

func (a *API) handlePlayerClearContext(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.session(w, r)
	if !ok {
		return
	}
	sess.Queue().ClearContext()
	writeJSON(w, http.StatusOK, sess.Snapshot())
}
