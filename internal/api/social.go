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
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/friendsincode/waveform/internal/events"
	"github.com/friendsincode/waveform/internal/models"
)

func (a *API) handleLike(w http.ResponseWriter, r *http.Request) {
	userID, ok := a.currentUserID(w, r)
	if !ok {
		return
	}
	trackID := chi.URLParam(r, "trackID")

	var track models.Track
	if err := a.db.WithContext(r.Context()).First(&track, "id = ?", trackID).Error; err != nil {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}

	like := models.Like{UserID: userID, TrackRef: trackID, TrackID: &trackID}
	err := a.db.WithContext(r.Context()).Create(&like).Error
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "unique") || errors.Is(err, gorm.ErrDuplicatedKey) {
			// Liking twice is a no-op, not an error.
			writeJSON(w, http.StatusOK, map[string]string{"status": "liked"})
			return
		}
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	if a.bus != nil {
		a.bus.Publish(events.EventTrackLiked, events.Payload{
			"user_id":  userID,
			"track_id": trackID,
		})
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "liked"})
}

func (a *API) handleUnlike(w http.ResponseWriter, r *http.Request) {
	userID, ok := a.currentUserID(w, r)
	if !ok {
		return
	}
	trackID := chi.URLParam(r, "trackID")

	result := a.db.WithContext(r.Context()).
		Where("user_id = ? AND track_ref = ?", userID, trackID).
		Delete(&models.Like{})
	if result.Error != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "unliked"})
}

// likeEntry is the wire view of one liked track. Native likes carry the
// live track row when it still exists; third-party likes carry the
// denormalized snapshot taken when the like was created.
type likeEntry struct {
	TrackRef string         `json:"track_ref"`
	LikedAt  time.Time      `json:"liked_at"`
	Track    *trackResponse `json:"track,omitempty"`

	Title      string  `json:"title,omitempty"`
	Artist     string  `json:"artist,omitempty"`
	ArtworkURL string  `json:"artwork_url,omitempty"`
	SourceURL  string  `json:"source_url,omitempty"`
	Duration   float64 `json:"duration,omitempty"`
}

func (a *API) handleLikesList(w http.ResponseWriter, r *http.Request) {
	userID, ok := a.currentUserID(w, r)
	if !ok {
		return
	}
	limit, offset := paginate(r, 50, 500)

	var likes []models.Like
	err := a.db.WithContext(r.Context()).
		Where("user_id = ?", userID).
		Order("created_at DESC").Limit(limit).Offset(offset).
		Find(&likes).Error
	if err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	trackIDs := make([]string, 0, len(likes))
	for _, like := range likes {
		if like.TrackID != nil {
			trackIDs = append(trackIDs, *like.TrackID)
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

	out := make([]likeEntry, 0, len(likes))
	for _, like := range likes {
		entry := likeEntry{
			TrackRef: like.TrackRef,
			LikedAt:  like.CreatedAt,
		}
		if like.TrackID != nil {
			if track, found := tracksByID[*like.TrackID]; found {
				view := a.trackView(track)
				entry.Track = &view
			}
		} else {
			entry.Title = like.SoundcloudTitle
			entry.Artist = like.SoundcloudArtist
			entry.ArtworkURL = like.SoundcloudArtworkURL
			entry.SourceURL = like.SoundcloudSourceURL
			entry.Duration = like.SoundcloudDuration
		}
		out = append(out, entry)
	}
	writeJSON(w, http.StatusOK, map[string]any{"likes": out})
}

type commentResponse struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

func (a *API) handleCommentsList(w http.ResponseWriter, r *http.Request) {
	trackID := chi.URLParam(r, "trackID")
	limit, offset := paginate(r, 50, 200)

	var comments []models.Comment
	err := a.db.WithContext(r.Context()).Preload("User").
		Where("track_id = ?", trackID).
		Order("created_at DESC").Limit(limit).Offset(offset).
		Find(&comments).Error
	if err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	out := make([]commentResponse, 0, len(comments))
	for _, comment := range comments {
		resp := commentResponse{
			ID:        comment.ID,
			UserID:    comment.UserID,
			Body:      comment.Body,
			CreatedAt: comment.CreatedAt,
		}
		if comment.User != nil {
			resp.Username = comment.User.Username
		}
		out = append(out, resp)
	}
	writeJSON(w, http.StatusOK, map[string]any{"comments": out})
}

func (a *API) handleCommentCreate(w http.ResponseWriter, r *http.Request) {
	userID, ok := a.currentUserID(w, r)
	if !ok {
		return
	}
	trackID := chi.URLParam(r, "trackID")

	var track models.Track
	if err := a.db.WithContext(r.Context()).First(&track, "id = ?", trackID).Error; err != nil {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}

	var req struct {
		Body string `json:"body"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	req.Body = strings.TrimSpace(req.Body)
	if req.Body == "" {
		writeError(w, http.StatusBadRequest, "body_required")
		return
	}
	if len(req.Body) > 2000 {
		writeError(w, http.StatusBadRequest, "body_too_long")
		return
	}

	comment := models.Comment{
		ID:      uuid.NewString(),
		UserID:  userID,
		TrackID: trackID,
		Body:    req.Body,
	}
	if err := a.db.WithContext(r.Context()).Create(&comment).Error; err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	if a.bus != nil {
		a.bus.Publish(events.EventTrackCommented, events.Payload{
			"user_id":    userID,
			"track_id":   trackID,
			"comment_id": comment.ID,
		})
	}
	writeJSON(w, http.StatusCreated, map[string]any{"id": comment.ID})
}

func (a *API) handleCommentDelete(w http.ResponseWriter, r *http.Request) {
	userID, ok := a.currentUserID(w, r)
	if !ok {
		return
	}
	commentID := chi.URLParam(r, "commentID")

	var comment models.Comment
	err := a.db.WithContext(r.Context()).First(&comment, "id = ?", commentID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	if comment.UserID != userID {
		writeError(w, http.StatusForbidden, "not_owner")
		return
	}

	if err := a.db.WithContext(r.Context()).Delete(&models.Comment{}, "id = ?", commentID).Error; err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (a *API) handleFollow(w http.ResponseWriter, r *http.Request) {
	userID, ok := a.currentUserID(w, r)
	if !ok {
		return
	}
	targetID := chi.URLParam(r, "userID")
	if targetID == userID {
		writeError(w, http.StatusBadRequest, "cannot_follow_self")
		return
	}

	var target models.User
	if err := a.db.WithContext(r.Context()).First(&target, "id = ?", targetID).Error; err != nil {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}

	follow := models.Follow{FollowerID: userID, FolloweeID: targetID}
	err := a.db.WithContext(r.Context()).Create(&follow).Error
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "unique") || errors.Is(err, gorm.ErrDuplicatedKey) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "following"})
			return
		}
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	if a.bus != nil {
		a.bus.Publish(events.EventUserFollowed, events.Payload{
			"follower_id": userID,
			"followee_id": targetID,
		})
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "following"})
}

func (a *API) handleUnfollow(w http.ResponseWriter, r *http.Request) {
	userID, ok := a.currentUserID(w, r)
	if !ok {
		return
	}
	targetID := chi.URLParam(r, "userID")

	result := a.db.WithContext(r.Context()).
		Where("follower_id = ? AND followee_id = ?", userID, targetID).
		Delete(&models.Follow{})
	if result.Error != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "unfollowed"})
}

func (a *API) handleFollowersList(w http.ResponseWriter, r *http.Request) {
	a.writeFollowList(w, r, "followee_id", "follower_id")
}

func (a *API) handleFollowingList(w http.ResponseWriter, r *http.Request) {
	a.writeFollowList(w, r, "follower_id", "followee_id")
}

func (a *API) writeFollowList(w http.ResponseWriter, r *http.Request, matchColumn, selectColumn string) {
	userID := chi.URLParam(r, "userID")
	limit, offset := paginate(r, 50, 200)

	var ids []string
	err := a.db.WithContext(r.Context()).Model(&models.Follow{}).
		Where(matchColumn+" = ?", userID).
		Order("created_at DESC").Limit(limit).Offset(offset).
		Pluck(selectColumn, &ids).Error
	if err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	var users []models.User
	if len(ids) > 0 {
		if err := a.db.WithContext(r.Context()).Where("id IN ?", ids).Find(&users).Error; err != nil {
			writeError(w, http.StatusInternalServerError, "db_error")
			return
		}
	}

	out := make([]userResponse, 0, len(users))
	for _, user := range users {
		out = append(out, a.userView(user, false))
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": out})
}
