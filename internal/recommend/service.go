/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package recommend builds autoplay candidate lists from the track library.
package recommend

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/waveform/internal/cache"
	"github.com/friendsincode/waveform/internal/media"
	"github.com/friendsincode/waveform/internal/models"
	"github.com/friendsincode/waveform/internal/player"
)

// DefaultLimit is how many candidates a recommendation set carries.
const DefaultLimit = 5

// Service produces recommendations for a seed track: same genre first,
// then same uploader, topped up with the most played tracks. Third-party
// seeds have no library row to pivot on and get popular tracks only.
type Service struct {
	db     *gorm.DB
	cache  *cache.Cache
	media  *media.Service
	logger zerolog.Logger
	limit  int

	mu  sync.Mutex
	rng *rand.Rand
}

// New creates a recommendation service. The cache may be nil.
func New(db *gorm.DB, c *cache.Cache, mediaSvc *media.Service, logger zerolog.Logger) *Service {
	return &Service{
		db:     db,
		cache:  c,
		media:  mediaSvc,
		logger: logger.With().Str("component", "recommend").Logger(),
		limit:  DefaultLimit,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Recommend returns up to DefaultLimit shuffled candidates for the seed
// track. Satisfies the player's Recommender interface.
func (s *Service) Recommend(ctx context.Context, seed player.Track) ([]player.Track, error) {
	if s.cache != nil {
		if cached, ok := s.cache.GetRecommendations(ctx, seed.ID); ok {
			return s.fromCached(cached), nil
		}
	}

	candidates, err := s.gather(ctx, seed)
	if err != nil {
		return nil, err
	}

	s.shuffle(candidates)
	if len(candidates) > s.limit {
		candidates = candidates[:s.limit]
	}

	out := make([]player.Track, 0, len(candidates))
	cachedOut := make([]cache.CachedTrack, 0, len(candidates))
	for _, row := range candidates {
		out = append(out, s.toPlayerTrack(row))
		cachedOut = append(cachedOut, toCachedTrack(row))
	}

	if s.cache != nil {
		_ = s.cache.SetRecommendations(ctx, seed.ID, cachedOut)
	}
	return out, nil
}

// gather collects candidate rows in tier order, deduplicated, seed
// excluded.
func (s *Service) gather(ctx context.Context, seed player.Track) ([]models.Track, error) {
	seen := map[string]struct{}{seed.ID: {}}
	var candidates []models.Track

	add := func(rows []models.Track) {
		for _, row := range rows {
			if _, dup := seen[row.ID]; dup {
				continue
			}
			seen[row.ID] = struct{}{}
			candidates = append(candidates, row)
		}
	}

	if !seed.ThirdParty() {
		var seedRow models.Track
		err := s.db.WithContext(ctx).First(&seedRow, "id = ?", seed.ID).Error
		if err != nil && err != gorm.ErrRecordNotFound {
			return nil, err
		}

		if err == nil {
			if seedRow.Genre != "" {
				var sameGenre []models.Track
				if err := s.db.WithContext(ctx).Preload("User").
					Where("genre = ? AND id <> ?", seedRow.Genre, seedRow.ID).
					Order("play_count DESC").Limit(25).
					Find(&sameGenre).Error; err != nil {
					return nil, err
				}
				add(sameGenre)
			}

			var sameArtist []models.Track
			if err := s.db.WithContext(ctx).Preload("User").
				Where("user_id = ? AND id <> ?", seedRow.UserID, seedRow.ID).
				Order("created_at DESC").Limit(25).
				Find(&sameArtist).Error; err != nil {
				return nil, err
			}
			add(sameArtist)
		}
	}

	if len(candidates) < s.limit {
		var popular []models.Track
		if err := s.db.WithContext(ctx).Preload("User").
			Order("play_count DESC").Limit(25).
			Find(&popular).Error; err != nil {
			return nil, err
		}
		add(popular)
	}

	return candidates, nil
}

func (s *Service) shuffle(rows []models.Track) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rng.Shuffle(len(rows), func(i, j int) {
		rows[i], rows[j] = rows[j], rows[i]
	})
}

func (s *Service) toPlayerTrack(row models.Track) player.Track {
	track := player.Track{
		ID:       row.ID,
		Title:    row.Title,
		Duration: row.Duration,
		Source:   player.SourceLibrary,
	}
	track.Artist.UserID = row.UserID
	track.Artist.Name = uploaderName(row.User)
	if s.media != nil {
		if row.AudioKey != "" {
			track.AudioURL = s.media.URL(row.AudioKey)
		}
		if row.ArtworkKey != "" {
			track.ArtworkURL = s.media.URL(row.ArtworkKey)
		}
	}
	return track
}

func (s *Service) fromCached(rows []cache.CachedTrack) []player.Track {
	out := make([]player.Track, 0, len(rows))
	for _, row := range rows {
		track := player.Track{
			ID:       row.ID,
			Title:    row.Title,
			Duration: row.Duration,
			Source:   player.SourceLibrary,
		}
		track.Artist.UserID = row.UserID
		track.Artist.Name = row.Artist
		if s.media != nil {
			if row.AudioKey != "" {
				track.AudioURL = s.media.URL(row.AudioKey)
			}
			if row.ArtworkKey != "" {
				track.ArtworkURL = s.media.URL(row.ArtworkKey)
			}
		}
		out = append(out, track)
	}
	return out
}

func uploaderName(user *models.User) string {
	if user == nil {
		return ""
	}
	if user.DisplayName != "" {
		return user.DisplayName
	}
	return user.Username
}

func toCachedTrack(row models.Track) cache.CachedTrack {
	artist := uploaderName(row.User)
	return cache.CachedTrack{
		ID:         row.ID,
		UserID:     row.UserID,
		Title:      row.Title,
		Artist:     artist,
		Genre:      row.Genre,
		Duration:   row.Duration,
		AudioKey:   row.AudioKey,
		ArtworkKey: row.ArtworkKey,
		PlayCount:  row.PlayCount,
	}
}
