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

func TestRegisterValidation(t *testing.T) {
	env := newTestEnv(t)

	cases := []struct {
		name     string
		payload  map[string]any
		wantCode string
	}{
		{
			"missing email",
			map[string]any{"username": "ada", "password": "password123"},
			"email_invalid",
		},
		{
			"malformed email",
			map[string]any{"email": "not-an-email", "username": "ada", "password": "password123"},
			"email_invalid",
		},
		{
			"short username",
			map[string]any{"email": "ada@example.com", "username": "ab", "password": "password123"},
			"username_too_short",
		},
		{
			"short password",
			map[string]any{"email": "ada@example.com", "username": "ada", "password": "short"},
			"password_too_short",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, body := env.do(http.MethodPost, "/api/v1/auth/register", "", tc.payload)
			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("register = %d, want 400", resp.StatusCode)
			}
			if body["error"] != tc.wantCode {
				t.Errorf("error = %v, want %s", body["error"], tc.wantCode)
			}
		})
	}
}

func TestRegisterNormalizesEmail(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(http.MethodPost, "/api/v1/auth/register", "", map[string]any{
		"email":    "  Ada@Example.COM ",
		"username": "ada",
		"password": "password123",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register = %d: %v", resp.StatusCode, body)
	}

	user, _ := body["user"].(map[string]any)
	if user["email"] != "ada@example.com" {
		t.Errorf("email = %v, want lowercased ada@example.com", user["email"])
	}
	if user["display_name"] != "ada" {
		t.Errorf("display_name = %v, want fallback to username", user["display_name"])
	}
	if user["role"] != string(models.RoleUser) {
		t.Errorf("role = %v, want %s", user["role"], models.RoleUser)
	}
}

func TestProfileUpdate(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.seedUser("ada@example.com", "ada", models.RoleUser)

	resp, body := env.do(http.MethodPatch, "/api/v1/auth/me", token, map[string]any{
		"display_name": "Ada L.",
		"bio":          "analytical engines",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("profile update = %d: %v", resp.StatusCode, body)
	}
	if body["display_name"] != "Ada L." {
		t.Errorf("display_name = %v", body["display_name"])
	}
	if body["bio"] != "analytical engines" {
		t.Errorf("bio = %v", body["bio"])
	}

	// Empty patch is rejected
	resp, body = env.do(http.MethodPatch, "/api/v1/auth/me", token, map[string]any{})
	if resp.StatusCode != http.StatusBadRequest || body["error"] != "no_fields" {
		t.Errorf("empty patch = %d %v, want 400 no_fields", resp.StatusCode, body)
	}
}

func TestUserGetProfile(t *testing.T) {
	env := newTestEnv(t)
	ada, _ := env.seedUser("ada@example.com", "ada", models.RoleUser)
	_, graceToken := env.seedUser("grace@example.com", "grace", models.RoleUser)

	env.seedTrack(ada, "First Light", "ambient")
	env.seedTrack(ada, "Second Light", "ambient")

	resp, _ := env.do(http.MethodPost, "/api/v1/users/"+ada.ID+"/follow", graceToken, map[string]any{})
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		t.Fatalf("follow = %d", resp.StatusCode)
	}

	resp, body := env.do(http.MethodGet, "/api/v1/users/"+ada.ID, "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("user get = %d", resp.StatusCode)
	}
	if got := body["track_count"]; got != float64(2) {
		t.Errorf("track_count = %v, want 2", got)
	}
	if got := body["follower_count"]; got != float64(1) {
		t.Errorf("follower_count = %v, want 1", got)
	}

	// Public profile never exposes the email
	user, _ := body["user"].(map[string]any)
	if _, present := user["email"]; present {
		t.Errorf("public profile leaked email: %v", user)
	}
}
