/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package recommend

import (
	"context"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/friendsincode/waveform/internal/models"
	"github.com/friendsincode/waveform/internal/player"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}, &models.Track{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedLibrary(t *testing.T, db *gorm.DB) {
	t.Helper()
	users := []models.User{
		{ID: "u1", Email: "a@example.com", Username: "alice", DisplayName: "Alice"},
		{ID: "u2", Email: "b@example.com", Username: "bob"},
	}
	for _, u := range users {
		if err := db.Create(&u).Error; err != nil {
			t.Fatalf("create user: %v", err)
		}
	}

	rows := []models.Track{
		{ID: "seed", UserID: "u1", Title: "Seed", Genre: "techno", PlayCount: 10},
		{ID: "t-genre-1", UserID: "u2", Title: "Genre Match", Genre: "techno", PlayCount: 5},
		{ID: "t-genre-2", UserID: "u2", Title: "Genre Match 2", Genre: "techno", PlayCount: 3},
		{ID: "t-artist", UserID: "u1", Title: "Artist Match", Genre: "ambient", PlayCount: 1},
		{ID: "t-popular", UserID: "u2", Title: "Popular", Genre: "pop", PlayCount: 99},
	}
	for _, row := range rows {
		if err := db.Create(&row).Error; err != nil {
			t.Fatalf("create track: %v", err)
		}
	}
}

func TestRecommendExcludesSeed(t *testing.T) {
	db := openTestDB(t)
	seedLibrary(t, db)
	svc := New(db, nil, nil, zerolog.Nop())

	recs, err := svc.Recommend(context.Background(), player.Track{ID: "seed", Source: player.SourceLibrary})
	if err != nil {
		t.Fatalf("recommend: %v", err)
	}
	if len(recs) == 0 {
		t.Fatal("expected candidates")
	}
	for _, rec := range recs {
		if rec.ID == "seed" {
			t.Fatal("seed track recommended back")
		}
	}
}

func TestRecommendIncludesGenreAndArtistMatches(t *testing.T) {
	db := openTestDB(t)
	seedLibrary(t, db)
	svc := New(db, nil, nil, zerolog.Nop())

	recs, err := svc.Recommend(context.Background(), player.Track{ID: "seed", Source: player.SourceLibrary})
	if err != nil {
		t.Fatalf("recommend: %v", err)
	}

	ids := make(map[string]bool, len(recs))
	for _, rec := range recs {
		ids[rec.ID] = true
	}
	// Four non-seed candidates exist, all within the limit.
	for _, want := range []string{"t-genre-1", "t-genre-2", "t-artist", "t-popular"} {
		if !ids[want] {
			t.Fatalf("missing expected candidate %s in %v", want, ids)
		}
	}
}

func TestRecommendLimitsResultCount(t *testing.T) {
	db := openTestDB(t)
	seedLibrary(t, db)
	for i := 0; i < 20; i++ {
		row := models.Track{
			ID:     fmt.Sprintf("extra-%d", i),
			UserID: "u2",
			Title:  fmt.Sprintf("Extra %d", i),
			Genre:  "techno",
		}
		if err := db.Create(&row).Error; err != nil {
			t.Fatalf("create track: %v", err)
		}
	}
	svc := New(db, nil, nil, zerolog.Nop())

	recs, err := svc.Recommend(context.Background(), player.Track{ID: "seed", Source: player.SourceLibrary})
	if err != nil {
		t.Fatalf("recommend: %v", err)
	}
	if len(recs) != DefaultLimit {
		t.Fatalf("got %d recommendations, want %d", len(recs), DefaultLimit)
	}
}

func TestRecommendThirdPartySeedUsesPopularOnly(t *testing.T) {
	db := openTestDB(t)
	seedLibrary(t, db)
	svc := New(db, nil, nil, zerolog.Nop())

	seed := player.Track{
		ID:        "soundcloud_123",
		Source:    player.SourceSoundCloud,
		SourceURL: "https://soundcloud.com/x/y",
	}
	recs, err := svc.Recommend(context.Background(), seed)
	if err != nil {
		t.Fatalf("recommend: %v", err)
	}
	if len(recs) == 0 {
		t.Fatal("expected popular fallback candidates")
	}
	for _, rec := range recs {
		if rec.Source != player.SourceLibrary {
			t.Fatalf("unexpected source %v", rec.Source)
		}
	}
}

func TestRecommendCarriesUploaderName(t *testing.T) {
	db := openTestDB(t)
	seedLibrary(t, db)
	svc := New(db, nil, nil, zerolog.Nop())

	recs, err := svc.Recommend(context.Background(), player.Track{ID: "seed", Source: player.SourceLibrary})
	if err != nil {
		t.Fatalf("recommend: %v", err)
	}
	for _, rec := range recs {
		switch rec.Artist.UserID {
		case "u1":
			if rec.Artist.Name != "Alice" {
				t.Fatalf("display name not used: %q", rec.Artist.Name)
			}
		case "u2":
			// No display name set; falls back to the username.
			if rec.Artist.Name != "bob" {
				t.Fatalf("username fallback missing: %q", rec.Artist.Name)
			}
		}
	}
}
