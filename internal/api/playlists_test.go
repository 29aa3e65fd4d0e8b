/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"net/http"
	"testing"

	"github.com/friendsincode/waveform/internal/models"
)

func createPlaylist(t *testing.T, env *testEnv, token, title string, public bool) string {
	t.Helper()

	resp, body := env.do(http.MethodPost, "/api/v1/playlists/", token, map[string]any{
		"title":  title,
		"public": public,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create playlist = %d: %v", resp.StatusCode, body)
	}
	id, _ := body["id"].(string)
	if id == "" {
		t.Fatalf("playlist response missing id: %v", body)
	}
	return id
}

func playlistPositions(t *testing.T, env *testEnv, playlistID string) map[string]int {
	t.Helper()

	var entries []models.PlaylistTrack
	if err := env.db.Where("playlist_id = ?", playlistID).Find(&entries).Error; err != nil {
		t.Fatalf("load playlist entries: %v", err)
	}
	out := make(map[string]int, len(entries))
	for _, entry := range entries {
		out[entry.TrackID] = entry.Position
	}
	return out
}

func TestPlaylistAddRemoveCompacts(t *testing.T) {
	env := newTestEnv(t)
	ada, token := env.seedUser("ada@example.com", "ada", models.RoleUser)

	t1 := env.seedTrack(ada, "One", "ambient")
	t2 := env.seedTrack(ada, "Two", "ambient")
	t3 := env.seedTrack(ada, "Three", "ambient")

	playlistID := createPlaylist(t, env, token, "Morning", true)

	for i, track := range []models.Track{t1, t2, t3} {
		resp, body := env.do(http.MethodPost, "/api/v1/playlists/"+playlistID+"/tracks", token, map[string]any{
			"track_id": track.ID,
		})
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("add track %d = %d: %v", i, resp.StatusCode, body)
		}
		if got := body["position"]; got != float64(i) {
			t.Errorf("track %d position = %v, want %d", i, got, i)
		}
	}

	// Duplicate membership conflicts
	resp, body := env.do(http.MethodPost, "/api/v1/playlists/"+playlistID+"/tracks", token, map[string]any{
		"track_id": t1.ID,
	})
	if resp.StatusCode != http.StatusConflict || body["error"] != "already_in_playlist" {
		t.Errorf("duplicate add = %d %v, want 409 already_in_playlist", resp.StatusCode, body)
	}

	// Unknown track is a 404
	resp, _ = env.do(http.MethodPost, "/api/v1/playlists/"+playlistID+"/tracks", token, map[string]any{
		"track_id": "no-such-track",
	})
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown track add = %d, want 404", resp.StatusCode)
	}

	// Removing the middle entry renumbers the rest
	resp, _ = env.do(http.MethodDelete, "/api/v1/playlists/"+playlistID+"/tracks/"+t2.ID, token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("remove track = %d", resp.StatusCode)
	}

	positions := playlistPositions(t, env, playlistID)
	if len(positions) != 2 {
		t.Fatalf("playlist has %d entries after removal, want 2", len(positions))
	}
	if positions[t1.ID] != 0 || positions[t3.ID] != 1 {
		t.Errorf("positions after removal = %v, want {%s:0 %s:1}", positions, t1.ID, t3.ID)
	}

	// Removing a non-member is a 404
	resp, body = env.do(http.MethodDelete, "/api/v1/playlists/"+playlistID+"/tracks/"+t2.ID, token, nil)
	if resp.StatusCode != http.StatusNotFound || body["error"] != "not_in_playlist" {
		t.Errorf("remove non-member = %d %v, want 404 not_in_playlist", resp.StatusCode, body)
	}
}

func TestPlaylistReorder(t *testing.T) {
	env := newTestEnv(t)
	ada, token := env.seedUser("ada@example.com", "ada", models.RoleUser)

	t1 := env.seedTrack(ada, "One", "ambient")
	t2 := env.seedTrack(ada, "Two", "ambient")
	t3 := env.seedTrack(ada, "Three", "ambient")

	playlistID := createPlaylist(t, env, token, "Morning", true)
	for _, track := range []models.Track{t1, t2, t3} {
		env.do(http.MethodPost, "/api/v1/playlists/"+playlistID+"/tracks", token, map[string]any{
			"track_id": track.ID,
		})
	}

	resp, body := env.do(http.MethodPut, "/api/v1/playlists/"+playlistID+"/tracks", token, map[string]any{
		"track_ids": []string{t3.ID, t1.ID, t2.ID},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("reorder = %d: %v", resp.StatusCode, body)
	}

	positions := playlistPositions(t, env, playlistID)
	if positions[t3.ID] != 0 || positions[t1.ID] != 1 || positions[t2.ID] != 2 {
		t.Errorf("positions after reorder = %v", positions)
	}

	// Incomplete id set is rejected
	resp, body = env.do(http.MethodPut, "/api/v1/playlists/"+playlistID+"/tracks", token, map[string]any{
		"track_ids": []string{t1.ID, t2.ID},
	})
	if resp.StatusCode != http.StatusBadRequest || body["error"] != "track_set_mismatch" {
		t.Errorf("partial reorder = %d %v, want 400 track_set_mismatch", resp.StatusCode, body)
	}

	// Foreign ids are rejected even at matching length
	resp, body = env.do(http.MethodPut, "/api/v1/playlists/"+playlistID+"/tracks", token, map[string]any{
		"track_ids": []string{t1.ID, t2.ID, "intruder"},
	})
	if resp.StatusCode != http.StatusBadRequest || body["error"] != "track_set_mismatch" {
		t.Errorf("foreign reorder = %d %v, want 400 track_set_mismatch", resp.StatusCode, body)
	}
}

func TestPlaylistOwnership(t *testing.T) {
	env := newTestEnv(t)
	_, adaToken := env.seedUser("ada@example.com", "ada", models.RoleUser)
	_, graceToken := env.seedUser("grace@example.com", "grace", models.RoleUser)

	playlistID := createPlaylist(t, env, adaToken, "Morning", true)

	resp, body := env.do(http.MethodPatch, "/api/v1/playlists/"+playlistID, graceToken, map[string]any{
		"title": "Hijacked",
	})
	if resp.StatusCode != http.StatusForbidden || body["error"] != "not_owner" {
		t.Errorf("stranger update = %d %v, want 403 not_owner", resp.StatusCode, body)
	}

	resp, _ = env.do(http.MethodDelete, "/api/v1/playlists/"+playlistID, graceToken, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("stranger delete = %d, want 403", resp.StatusCode)
	}

	resp, _ = env.do(http.MethodDelete, "/api/v1/playlists/"+playlistID, adaToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("owner delete = %d, want 200", resp.StatusCode)
	}
}

func TestPrivatePlaylistHiddenFromStrangers(t *testing.T) {
	env := newTestEnv(t)
	_, adaToken := env.seedUser("ada@example.com", "ada", models.RoleUser)
	_, graceToken := env.seedUser("grace@example.com", "grace", models.RoleUser)

	playlistID := createPlaylist(t, env, adaToken, "Secret", false)

	// Anonymous and stranger reads both look like the playlist does not exist
	resp, _ := env.do(http.MethodGet, "/api/v1/playlists/"+playlistID, "", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("anonymous get = %d, want 404", resp.StatusCode)
	}
	resp, _ = env.do(http.MethodGet, "/api/v1/playlists/"+playlistID, graceToken, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("stranger get = %d, want 404", resp.StatusCode)
	}

	resp, body := env.do(http.MethodGet, "/api/v1/playlists/"+playlistID, adaToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("owner get = %d: %v", resp.StatusCode, body)
	}
	if body["title"] != "Secret" {
		t.Errorf("title = %v", body["title"])
	}
}
