/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/friendsincode/waveform/internal/auth"
	"github.com/friendsincode/waveform/internal/config"
	"github.com/friendsincode/waveform/internal/events"
	"github.com/friendsincode/waveform/internal/logbuffer"
	"github.com/friendsincode/waveform/internal/media"
	"github.com/friendsincode/waveform/internal/models"
)

// testEnv bundles an API instance, its database, and a live test server.
type testEnv struct {
	t      *testing.T
	db     *gorm.DB
	api    *API
	server *httptest.Server
}

func newTestEnv(t *testing.T, mutate ...func(*Config)) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
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
		t.Fatalf("migrate test db: %v", err)
	}

	mediaSvc, err := media.NewService(&config.Config{MediaRoot: t.TempDir()}, zerolog.Nop())
	if err != nil {
		t.Fatalf("media service: %v", err)
	}

	cfg := Config{
		DB:        db,
		JWTSecret: []byte("test-secret"),
		Media:     mediaSvc,
		Bus:       events.NewBus(),
		LogBuffer: logbuffer.New(64),
		Logger:    zerolog.Nop(),
	}
	for _, m := range mutate {
		m(&cfg)
	}

	a := New(cfg)
	r := chi.NewRouter()
	a.Routes(r)
	server := httptest.NewServer(r)
	t.Cleanup(server.Close)

	return &testEnv{t: t, db: db, api: a, server: server}
}

// seedUser inserts a user directly and mints a token for them.
func (e *testEnv) seedUser(email, username string, role models.RoleName) (models.User, string) {
	e.t.Helper()

	user := models.User{
		ID:          uuid.NewString(),
		Email:       email,
		Username:    username,
		Password:    "not-a-real-hash",
		DisplayName: username,
		Role:        role,
	}
	if err := e.db.Create(&user).Error; err != nil {
		e.t.Fatalf("seed user %s: %v", email, err)
	}

	token, err := auth.Issue(e.api.jwtSecret, auth.Claims{
		UserID: user.ID,
		Roles:  []string{string(role)},
	}, time.Hour)
	if err != nil {
		e.t.Fatalf("issue token: %v", err)
	}
	return user, token
}

// seedTrack inserts a library track owned by the given user.
func (e *testEnv) seedTrack(owner models.User, title, genre string) models.Track {
	e.t.Helper()

	track := models.Track{
		ID:       uuid.NewString(),
		UserID:   owner.ID,
		Title:    title,
		Genre:    genre,
		Duration: 180,
	}
	if err := e.db.Create(&track).Error; err != nil {
		e.t.Fatalf("seed track %q: %v", title, err)
	}
	return track
}

// do performs a JSON request against the test server and decodes the body.
func (e *testEnv) do(method, path, token string, body any) (*http.Response, map[string]any) {
	e.t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			e.t.Fatalf("marshal request: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, e.server.URL+path, reader)
	if err != nil {
		e.t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := e.server.Client().Do(req)
	if err != nil {
		e.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	var decoded map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return resp, decoded
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(http.MethodGet, "/api/v1/health", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health = %d", resp.StatusCode)
	}
	if body["status"] != "ok" {
		t.Errorf("health body = %v", body)
	}
}

func TestPaginateBounds(t *testing.T) {
	cases := []struct {
		name       string
		query      string
		wantLimit  int
		wantOffset int
	}{
		{"defaults", "", 50, 0},
		{"explicit", "limit=10&offset=5", 10, 5},
		{"clamped to max", "limit=9999", 200, 0},
		{"garbage ignored", "limit=abc&offset=-3", 50, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/?"+tc.query, nil)
			limit, offset := paginate(r, 50, 200)
			if limit != tc.wantLimit || offset != tc.wantOffset {
				t.Errorf("paginate(%q) = (%d, %d), want (%d, %d)",
					tc.query, limit, offset, tc.wantLimit, tc.wantOffset)
			}
		})
	}
}
