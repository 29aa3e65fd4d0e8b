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

	"github.com/friendsincode/waveform/internal/auth"
	"github.com/friendsincode/waveform/internal/events"
	"github.com/friendsincode/waveform/internal/models"
)

type registerRequest struct {
	Email       string `json:"email"`
	Username    string `json:"username"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// userResponse is the public view of an account. The password hash never
// leaves the database layer.
type userResponse struct {
	ID          string    `json:"id"`
	Email       string    `json:"email,omitempty"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name"`
	Bio         string    `json:"bio,omitempty"`
	AvatarURL   string    `json:"avatar_url,omitempty"`
	Role        string    `json:"role"`
	CreatedAt   time.Time `json:"created_at"`
}

func (a *API) userView(user models.User, includeEmail bool) userResponse {
	resp := userResponse{
		ID:          user.ID,
		Username:    user.Username,
		DisplayName: user.DisplayName,
		Bio:         user.Bio,
		Role:        string(user.Role),
		CreatedAt:   user.CreatedAt,
	}
	if includeEmail {
		resp.Email = user.Email
	}
	if user.AvatarKey != "" && a.media != nil {
		resp.AvatarURL = a.media.URL(user.AvatarKey)
	}
	return resp
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Username = strings.TrimSpace(req.Username)
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		writeError(w, http.StatusBadRequest, "email_invalid")
		return
	}
	if len(req.Username) < 3 {
		writeError(w, http.StatusBadRequest, "username_too_short")
		return
	}
	if len(req.Password) < 8 {
		writeError(w, http.StatusBadRequest, "password_too_short")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		a.logger.Error().Err(err).Msg("password hash failed")
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}

	user := models.User{
		ID:          uuid.NewString(),
		Email:       req.Email,
		Username:    req.Username,
		Password:    hash,
		DisplayName: req.DisplayName,
		Role:        models.RoleUser,
	}
	if user.DisplayName == "" {
		user.DisplayName = req.Username
	}

	if err := a.db.WithContext(r.Context()).Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(strings.ToLower(err.Error()), "unique") {
			writeError(w, http.StatusConflict, "account_exists")
			return
		}
		a.logger.Error().Err(err).Msg("create user failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	token, err := a.issueToken(user)
	if err != nil {
		a.logger.Error().Err(err).Msg("token issue failed")
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"token": token,
		"user":  a.userView(user, true),
	})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}

	var user models.User
	err := a.db.WithContext(r.Context()).
		First(&user, "email = ?", strings.ToLower(strings.TrimSpace(req.Email))).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		writeError(w, http.StatusUnauthorized, "invalid_credentials")
		return
	}
	if err != nil {
		a.logger.Error().Err(err).Msg("login lookup failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	if !auth.CheckPassword(user.Password, req.Password) {
		writeError(w, http.StatusUnauthorized, "invalid_credentials")
		return
	}

	token, err := a.issueToken(user)
	if err != nil {
		a.logger.Error().Err(err).Msg("token issue failed")
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"token": token,
		"user":  a.userView(user, true),
	})
}

func (a *API) issueToken(user models.User) (string, error) {
	claims := auth.Claims{
		UserID: user.ID,
		Roles:  []string{string(user.Role)},
	}
	return auth.Issue(a.jwtSecret, claims, a.jwtTTL)
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := a.currentUserID(w, r)
	if !ok {
		return
	}

	var user models.User
	if err := a.db.WithContext(r.Context()).First(&user, "id = ?", userID).Error; err != nil {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	writeJSON(w, http.StatusOK, a.userView(user, true))
}

func (a *API) handleProfileUpdate(w http.ResponseWriter, r *http.Request) {
	userID, ok := a.currentUserID(w, r)
	if !ok {
		return
	}

	var req struct {
		DisplayName *string `json:"display_name"`
		Bio         *string `json:"bio"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}

	updates := map[string]any{}
	if req.DisplayName != nil {
		updates["display_name"] = *req.DisplayName
	}
	if req.Bio != nil {
		updates["bio"] = *req.Bio
	}
	if len(updates) == 0 {
		writeError(w, http.StatusBadRequest, "no_fields")
		return
	}

	if err := a.db.WithContext(r.Context()).
		Model(&models.User{}).Where("id = ?", userID).
		Updates(updates).Error; err != nil {
		a.logger.Error().Err(err).Msg("profile update failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	if a.bus != nil {
		a.bus.Publish(events.EventUserUpdated, events.Payload{"user_id": userID})
	}

	var user models.User
	if err := a.db.WithContext(r.Context()).First(&user, "id = ?", userID).Error; err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	writeJSON(w, http.StatusOK, a.userView(user, true))
}

func (a *API) handleUserGet(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var user models.User
	err := a.db.WithContext(r.Context()).First(&user, "id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	var trackCount, followerCount int64
	a.db.WithContext(r.Context()).Model(&models.Track{}).Where("user_id = ?", userID).Count(&trackCount)
	a.db.WithContext(r.Context()).Model(&models.Follow{}).Where("followee_id = ?", userID).Count(&followerCount)

	writeJSON(w, http.StatusOK, map[string]any{
		"user":           a.userView(user, false),
		"track_count":    trackCount,
		"follower_count": followerCount,
	})
}
