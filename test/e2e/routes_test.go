/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package e2e exercises the HTTP API end to end against a live test server.
package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/friendsincode/waveform/internal/api"
	"github.com/friendsincode/waveform/internal/events"
	"github.com/friendsincode/waveform/internal/logbuffer"
	"github.com/friendsincode/waveform/internal/models"
)

func setupTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}

	err = db.AutoMigrate(
		&models.User{},
		&models.Track{},
		&models.Playlist{},
		&models.PlaylistTrack{},
		&models.Like{},
		&models.Comment{},
		&models.Follow{},
		&models.ListeningHistory{},
		&models.PlayerState{},
	)
	if err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	a := api.New(api.Config{
		DB:        db,
		JWTSecret: []byte("test-jwt-secret"),
		Bus:       events.NewBus(),
		LogBuffer: logbuffer.New(100),
		Logger:    zerolog.Nop(),
	})

	r := chi.NewRouter()
	a.Routes(r)
	server := httptest.NewServer(r)
	t.Cleanup(server.Close)
	return server
}

func httpClient() *http.Client {
	return &http.Client{Timeout: 10 * time.Second}
}

func postJSON(t *testing.T, client *http.Client, url, token string, body any) (*http.Response, map[string]any) {
	t.Helper()

	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	var decoded map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return resp, decoded
}

func getJSON(t *testing.T, client *http.Client, url, token string) (*http.Response, map[string]any) {
	t.Helper()

	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	var decoded map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return resp, decoded
}

func registerUser(t *testing.T, client *http.Client, baseURL, email, username string) string {
	t.Helper()

	resp, body := postJSON(t, client, baseURL+"/api/v1/auth/register", "", map[string]any{
		"email":    email,
		"username": username,
		"password": "password123",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register returned %d: %v", resp.StatusCode, body)
	}
	token, _ := body["token"].(string)
	if token == "" {
		t.Fatal("register returned no token")
	}
	return token
}

// TestPublicRoutes verifies unauthenticated routes respond correctly.
func TestPublicRoutes(t *testing.T) {
	server := setupTestServer(t)
	client := httpClient()

	publicRoutes := []struct {
		name           string
		path           string
		expectedStatus int
	}{
		{"health", "/api/v1/health", 200},
		{"track list", "/api/v1/tracks", 200},
		{"missing track", "/api/v1/tracks/no-such-id", 404},
		{"missing user", "/api/v1/users/no-such-id", 404},
		{"missing playlist", "/api/v1/playlists/no-such-id", 404},
		{"unknown route", "/nonexistent-route-12345", 404},
	}

	for _, tc := range publicRoutes {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := client.Get(server.URL + tc.path)
			if err != nil {
				t.Fatalf("request failed: %v", err)
			}
			resp.Body.Close()
			if resp.StatusCode != tc.expectedStatus {
				t.Errorf("GET %s = %d, want %d", tc.path, resp.StatusCode, tc.expectedStatus)
			}
		})
	}
}

// TestProtectedRoutesRequireAuth verifies bearer tokens are enforced.
func TestProtectedRoutesRequireAuth(t *testing.T) {
	server := setupTestServer(t)
	client := httpClient()

	protected := []string{
		"/api/v1/auth/me",
		"/api/v1/playlists/",
		"/api/v1/history",
		"/api/v1/player/state",
		"/api/v1/system/status",
	}

	for _, path := range protected {
		t.Run("GET "+path, func(t *testing.T) {
			resp, _ := getJSON(t, client, server.URL+path, "")
			if resp.StatusCode != http.StatusUnauthorized {
				t.Errorf("GET %s without token = %d, want 401", path, resp.StatusCode)
			}
		})
	}
}

// TestRegisterLoginFlow walks the full account lifecycle.
func TestRegisterLoginFlow(t *testing.T) {
	server := setupTestServer(t)
	client := httpClient()

	token := registerUser(t, client, server.URL, "ada@example.com", "ada")

	// Duplicate registration conflicts
	resp, _ := postJSON(t, client, server.URL+"/api/v1/auth/register", "", map[string]any{
		"email":    "ada@example.com",
		"username": "ada",
		"password": "password123",
	})
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("duplicate register = %d, want 409", resp.StatusCode)
	}

	// Wrong password rejected
	resp, _ = postJSON(t, client, server.URL+"/api/v1/auth/login", "", map[string]any{
		"email":    "ada@example.com",
		"password": "wrong-password",
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("bad login = %d, want 401", resp.StatusCode)
	}

	// Correct login issues a fresh token
	resp, body := postJSON(t, client, server.URL+"/api/v1/auth/login", "", map[string]any{
		"email":    "ada@example.com",
		"password": "password123",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login = %d: %v", resp.StatusCode, body)
	}
	if body["token"] == "" {
		t.Fatal("login returned no token")
	}

	// Token works on /auth/me
	resp, me := getJSON(t, client, server.URL+"/api/v1/auth/me", token)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("auth/me = %d", resp.StatusCode)
	}
	if me["email"] != "ada@example.com" {
		t.Errorf("auth/me = %v, want email ada@example.com", me)
	}
}

// TestPlaylistAndFollowFlow covers the core social loop over HTTP.
func TestPlaylistAndFollowFlow(t *testing.T) {
	server := setupTestServer(t)
	client := httpClient()

	adaToken := registerUser(t, client, server.URL, "ada@example.com", "ada")
	grace := registerUser(t, client, server.URL, "grace@example.com", "grace")

	// Ada creates a playlist
	resp, playlist := postJSON(t, client, server.URL+"/api/v1/playlists/", adaToken, map[string]any{
		"title": "Morning",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create playlist = %d: %v", resp.StatusCode, playlist)
	}
	playlistID, _ := playlist["id"].(string)
	if playlistID == "" {
		t.Fatalf("playlist response missing id: %v", playlist)
	}

	// Playlist shows up in Ada's list
	resp, listing := getJSON(t, client, server.URL+"/api/v1/playlists/", adaToken)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list playlists = %d", resp.StatusCode)
	}
	playlists, _ := listing["playlists"].([]any)
	if len(playlists) != 1 {
		t.Fatalf("got %d playlists, want 1", len(playlists))
	}

	// Grace's identity for the follow
	_, graceMe := getJSON(t, client, server.URL+"/api/v1/auth/me", grace)
	graceID, _ := graceMe["id"].(string)
	if graceID == "" {
		t.Fatalf("missing grace id: %v", graceMe)
	}

	// Ada follows Grace
	resp, _ = postJSON(t, client, fmt.Sprintf("%s/api/v1/users/%s/follow", server.URL, graceID), adaToken, map[string]any{})
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		t.Fatalf("follow = %d", resp.StatusCode)
	}

	// Grace gained a follower
	resp, followers := getJSON(t, client, fmt.Sprintf("%s/api/v1/users/%s/followers", server.URL, graceID), "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("followers = %d", resp.StatusCode)
	}
	list, _ := followers["users"].([]any)
	if len(list) != 1 {
		t.Errorf("got %d followers, want 1", len(list))
	}
}

// TestAdminRoutesRequireRole verifies system routes reject regular users.
func TestAdminRoutesRequireRole(t *testing.T) {
	server := setupTestServer(t)
	client := httpClient()

	token := registerUser(t, client, server.URL, "ada@example.com", "ada")

	resp, _ := getJSON(t, client, server.URL+"/api/v1/system/status", token)
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("system/status as user = %d, want 403", resp.StatusCode)
	}
}

// TestPlayerUnavailableWithoutStore verifies player routes degrade cleanly
// when no playback store is wired.
func TestPlayerUnavailableWithoutStore(t *testing.T) {
	server := setupTestServer(t)
	client := httpClient()

	token := registerUser(t, client, server.URL, "ada@example.com", "ada")

	resp, _ := getJSON(t, client, server.URL+"/api/v1/player/state", token)
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("player/state = %d, want 503", resp.StatusCode)
	}
}
