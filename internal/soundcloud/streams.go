/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package soundcloud

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/waveform/internal/cache"
	"github.com/friendsincode/waveform/internal/player"
)

// StreamSource adapts the client to the player's stream resolver with a
// short-lived redis cache in front. Cached entries expire well before the
// upstream URL does, so a hit is always still playable.
type StreamSource struct {
	client *Client
	cache  *cache.Cache
	ttl    time.Duration
	logger zerolog.Logger
}

// NewStreamSource creates a caching stream source. The cache may be nil,
// in which case every resolution goes upstream.
func NewStreamSource(client *Client, c *cache.Cache, ttl time.Duration, logger zerolog.Logger) *StreamSource {
	if ttl <= 0 {
		ttl = cache.DefaultStreamURLTTL
	}
	return &StreamSource{
		client: client,
		cache:  c,
		ttl:    ttl,
		logger: logger.With().Str("component", "soundcloud_streams").Logger(),
	}
}

// ResolveStream exchanges a source page URL for a fresh stream URL.
func (s *StreamSource) ResolveStream(ctx context.Context, sourceURL string) (*player.Resolution, error) {
	key := sourceKey(sourceURL)

	if s.cache != nil {
		if cached, ok := s.cache.GetStreamURL(ctx, key); ok {
			return &player.Resolution{
				AudioURL:   cached.AudioURL,
				Title:      cached.Title,
				ArtistName: cached.Artist,
				ArtworkURL: cached.ArtworkURL,
				Duration:   cached.Duration,
			}, nil
		}
	}

	track, err := s.client.Resolve(ctx, sourceURL)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		_ = s.cache.SetStreamURL(ctx, key, &cache.CachedStreamURL{
			AudioURL:   track.AudioURL,
			Title:      track.Title,
			Artist:     track.ArtistName,
			ArtworkURL: track.ArtworkURL,
			Duration:   track.Duration,
			ResolvedAt: time.Now().Unix(),
		}, s.ttl)
	}

	return &player.Resolution{
		AudioURL:   track.AudioURL,
		Title:      track.Title,
		ArtistName: track.ArtistName,
		ArtworkURL: track.ArtworkURL,
		Duration:   track.Duration,
	}, nil
}

func sourceKey(sourceURL string) string {
	sum := sha256.Sum256([]byte(sourceURL))
	return hex.EncodeToString(sum[:16])
}
