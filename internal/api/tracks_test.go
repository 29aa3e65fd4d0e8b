/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"testing"

	"github.com/friendsincode/waveform/internal/models"
)

// uploadRequest builds a multipart track upload with an audio payload of
// the given size.
func uploadRequest(t *testing.T, url, token, filename, title string, size int) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	if title != "" {
		if err := writer.WriteField("title", title); err != nil {
			t.Fatalf("write title field: %v", err)
		}
	}
	if filename != "" {
		part, err := writer.CreateFormFile("audio", filename)
		if err != nil {
			t.Fatalf("create audio part: %v", err)
		}
		if _, err := part.Write(bytes.Repeat([]byte{0xAB}, size)); err != nil {
			t.Fatalf("write audio payload: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}

	req, err := http.NewRequest(http.MethodPost, url, &buf)
	if err != nil {
		t.Fatalf("build upload request: %v", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func doUpload(t *testing.T, env *testEnv, req *http.Request) (*http.Response, map[string]any) {
	t.Helper()

	resp, err := env.server.Client().Do(req)
	if err != nil {
		t.Fatalf("upload request: %v", err)
	}
	defer resp.Body.Close()

	var decoded map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return resp, decoded
}

func TestTrackUpload(t *testing.T) {
	env := newTestEnv(t)
	ada, token := env.seedUser("ada@example.com", "ada", models.RoleUser)

	req := uploadRequest(t, env.server.URL+"/api/v1/tracks/", token, "first-light.mp3", "First Light", 2048)
	resp, body := doUpload(t, env, req)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("upload = %d: %v", resp.StatusCode, body)
	}
	if body["title"] != "First Light" {
		t.Errorf("title = %v", body["title"])
	}
	if body["user_id"] != ada.ID {
		t.Errorf("user_id = %v, want %s", body["user_id"], ada.ID)
	}
	if url, _ := body["audio_url"].(string); url == "" {
		t.Errorf("upload response missing audio_url: %v", body)
	}

	var count int64
	env.db.Model(&models.Track{}).Count(&count)
	if count != 1 {
		t.Errorf("track rows = %d, want 1", count)
	}
}

func TestTrackUploadRejectsOversizedBody(t *testing.T) {
	env := newTestEnv(t, func(cfg *Config) {
		cfg.MaxUploadBytes = 1024
	})
	_, token := env.seedUser("ada@example.com", "ada", models.RoleUser)

	req := uploadRequest(t, env.server.URL+"/api/v1/tracks/", token, "big.mp3", "Big", 64*1024)
	resp, body := doUpload(t, env, req)
	if resp.StatusCode != http.StatusRequestEntityTooLarge {
		t.Fatalf("oversized upload = %d, want 413", resp.StatusCode)
	}
	if body["error"] != "file_too_large" {
		t.Errorf("error = %v, want file_too_large", body["error"])
	}
}

func TestTrackUploadValidation(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.seedUser("ada@example.com", "ada", models.RoleUser)

	cases := []struct {
		name     string
		filename string
		title    string
		wantCode string
	}{
		{"missing audio", "", "First Light", "audio_required"},
		{"unsupported format", "notes.txt", "First Light", "unsupported_format"},
		{"missing title", "first-light.mp3", "", "title_required"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := uploadRequest(t, env.server.URL+"/api/v1/tracks/", token, tc.filename, tc.title, 256)
			resp, body := doUpload(t, env, req)
			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("upload = %d, want 400", resp.StatusCode)
			}
			if body["error"] != tc.wantCode {
				t.Errorf("error = %v, want %s", body["error"], tc.wantCode)
			}
		})
	}
}

func TestTracksListFilters(t *testing.T) {
	env := newTestEnv(t)
	ada, _ := env.seedUser("ada@example.com", "ada", models.RoleUser)

	env.seedTrack(ada, "First Light", "ambient")
	env.seedTrack(ada, "Second Light", "ambient")
	env.seedTrack(ada, "Pulse", "techno")

	resp, body := env.do(http.MethodGet, "/api/v1/tracks?genre=ambient", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list = %d", resp.StatusCode)
	}
	tracks, _ := body["tracks"].([]any)
	if len(tracks) != 2 {
		t.Errorf("genre filter returned %d tracks, want 2", len(tracks))
	}

	resp, body = env.do(http.MethodGet, "/api/v1/tracks?q=Pulse", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("search = %d", resp.StatusCode)
	}
	tracks, _ = body["tracks"].([]any)
	if len(tracks) != 1 {
		t.Errorf("search returned %d tracks, want 1", len(tracks))
	}
}

func TestTrackUpdateRequiresOwnership(t *testing.T) {
	env := newTestEnv(t)
	ada, adaToken := env.seedUser("ada@example.com", "ada", models.RoleUser)
	_, graceToken := env.seedUser("grace@example.com", "grace", models.RoleUser)

	track := env.seedTrack(ada, "First Light", "ambient")

	resp, body := env.do(http.MethodPatch, "/api/v1/tracks/"+track.ID, graceToken, map[string]any{
		"title": "Stolen",
	})
	if resp.StatusCode != http.StatusForbidden || body["error"] != "not_owner" {
		t.Errorf("stranger patch = %d %v, want 403 not_owner", resp.StatusCode, body)
	}

	resp, body = env.do(http.MethodPatch, "/api/v1/tracks/"+track.ID, adaToken, map[string]any{
		"title": "First Light (Remaster)",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("owner patch = %d: %v", resp.StatusCode, body)
	}
	if body["title"] != "First Light (Remaster)" {
		t.Errorf("title = %v", body["title"])
	}
}

func TestTrackDelete(t *testing.T) {
	env := newTestEnv(t)
	ada, adaToken := env.seedUser("ada@example.com", "ada", models.RoleUser)
	_, graceToken := env.seedUser("grace@example.com", "grace", models.RoleUser)

	track := env.seedTrack(ada, "First Light", "ambient")

	resp, _ := env.do(http.MethodDelete, "/api/v1/tracks/"+track.ID, graceToken, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("stranger delete = %d, want 403", resp.StatusCode)
	}

	resp, _ = env.do(http.MethodDelete, "/api/v1/tracks/"+track.ID, adaToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("owner delete = %d", resp.StatusCode)
	}

	var count int64
	env.db.Model(&models.Track{}).Where("id = ?", track.ID).Count(&count)
	if count != 0 {
		t.Errorf("track row survived delete")
	}
}

func TestTrackStreamCountsPlay(t *testing.T) {
	env := newTestEnv(t)
	ada, token := env.seedUser("ada@example.com", "ada", models.RoleUser)

	track := env.seedTrack(ada, "First Light", "ambient")
	env.db.Model(&models.Track{}).Where("id = ?", track.ID).Update("audio_key", "audio/fi/rs/first.mp3")

	resp, body := env.do(http.MethodGet, "/api/v1/tracks/"+track.ID+"/stream", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("stream = %d: %v", resp.StatusCode, body)
	}
	if url, _ := body["audio_url"].(string); url == "" {
		t.Errorf("stream response missing audio_url: %v", body)
	}

	var fresh models.Track
	env.db.First(&fresh, "id = ?", track.ID)
	if fresh.PlayCount != 1 {
		t.Errorf("play_count = %d, want 1", fresh.PlayCount)
	}
}
