/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package cache provides a Redis-based caching layer for frequently accessed data.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/friendsincode/waveform/internal/telemetry"
)

// Default TTL values for different cache types
const (
	DefaultTrackTTL           = 1 * time.Hour
	DefaultTrackListTTL       = 5 * time.Minute
	DefaultStreamURLTTL       = 2 * time.Minute
	DefaultRecommendationsTTL = 10 * time.Minute
	DefaultPlayerStateTTL     = 24 * time.Hour
)

// Key prefixes for Redis cache
const (
	KeyTrack           = "waveform:cache:track:"      // + track_id
	KeyTrackList       = "waveform:cache:tracks:"     // + list hash (filter+page)
	KeyStreamURL       = "waveform:cache:stream:"     // + source url hash
	KeyRecommendations = "waveform:cache:recs:"       // + track_ref
	KeyPlayerState     = "waveform:cache:playerstate:" // + user_id
)

// Config contains cache configuration.
type Config struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// TTL overrides
	TrackTTL           time.Duration
	TrackListTTL       time.Duration
	StreamURLTTL       time.Duration
	RecommendationsTTL time.Duration
	PlayerStateTTL     time.Duration

	// Fallback behavior
	DisableOnError bool // If true, disable caching on Redis errors
}

// DefaultConfig returns default cache configuration.
func DefaultConfig() Config {
	return Config{
		RedisAddr:          "localhost:6379",
		TrackTTL:           DefaultTrackTTL,
		TrackListTTL:       DefaultTrackListTTL,
		StreamURLTTL:       DefaultStreamURLTTL,
		RecommendationsTTL: DefaultRecommendationsTTL,
		PlayerStateTTL:     DefaultPlayerStateTTL,
		DisableOnError:     true,
	}
}

// Cache provides Redis-backed caching with graceful fallback.
type Cache struct {
	client *redis.Client
	logger zerolog.Logger
	config Config

	mu       sync.RWMutex
	disabled bool // Circuit breaker state
}

// New creates a new cache instance.
func New(cfg Config, logger zerolog.Logger) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn().Err(err).Msg("Redis cache unavailable, running without caching")
		return &Cache{
			logger:   logger.With().Str("component", "cache").Logger(),
			config:   cfg,
			disabled: true,
		}, nil
	}

	logger.Info().Str("addr", cfg.RedisAddr).Msg("Redis cache initialized")

	return &Cache{
		client: client,
		logger: logger.With().Str("component", "cache").Logger(),
		config: cfg,
	}, nil
}

// Close closes the Redis connection.
func (c *Cache) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// IsAvailable returns true if the cache is operational.
func (c *Cache) IsAvailable() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.disabled && c.client != nil
}

// handleError handles Redis errors with circuit breaker logic.
func (c *Cache) handleError(err error, operation string) {
	if err == nil || err == redis.Nil {
		return
	}

	c.logger.Debug().Err(err).Str("operation", operation).Msg("cache operation failed")

	if c.config.DisableOnError {
		c.mu.Lock()
		c.disabled = true
		c.mu.Unlock()
		c.logger.Warn().Msg("disabling cache due to Redis error")
	}
}

// get retrieves a value from cache and unmarshals it.
func (c *Cache) get(ctx context.Context, key string, dest any) (bool, error) {
	if !c.IsAvailable() {
		return false, nil
	}

	data, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		telemetry.CacheOperationsTotal.WithLabelValues("get", "miss").Inc()
		return false, nil
	}
	if err != nil {
		c.handleError(err, "get")
		telemetry.CacheOperationsTotal.WithLabelValues("get", "error").Inc()
		return false, err
	}

	if err := json.Unmarshal(data, dest); err != nil {
		c.logger.Debug().Err(err).Str("key", key).Msg("failed to unmarshal cached value")
		return false, nil
	}

	telemetry.CacheOperationsTotal.WithLabelValues("get", "hit").Inc()
	return true, nil
}

// set stores a value in cache with TTL.
func (c *Cache) set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if !c.IsAvailable() {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal cache value: %w", err)
	}

	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		c.handleError(err, "set")
		telemetry.CacheOperationsTotal.WithLabelValues("set", "error").Inc()
		return err
	}

	telemetry.CacheOperationsTotal.WithLabelValues("set", "ok").Inc()
	return nil
}

// delete removes a key from cache.
func (c *Cache) delete(ctx context.Context, key string) error {
	if !c.IsAvailable() {
		return nil
	}

	if err := c.client.Del(ctx, key).Err(); err != nil {
		c.handleError(err, "delete")
		return err
	}

	return nil
}

// deletePattern deletes all keys matching a pattern.
func (c *Cache) deletePattern(ctx context.Context, pattern string) error {
	if !c.IsAvailable() {
		return nil
	}

	// Use SCAN to find keys (safer than KEYS for production)
	var cursor uint64
	for {
		keys, nextCursor, err := c.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			c.handleError(err, "scan")
			return err
		}

		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				c.handleError(err, "delete_batch")
				return err
			}
		}

		cursor = nextCursor
		if cursor == 0 {
			break
		}
	}

	return nil
}

// Track caching methods

// CachedTrack represents a cached track record.
type CachedTrack struct {
	ID         string  `json:"id"`
	UserID     string  `json:"user_id"`
	Title      string  `json:"title"`
	Artist     string  `json:"artist"`
	Genre      string  `json:"genre"`
	Duration   float64 `json:"duration"`
	AudioKey   string  `json:"audio_key"`
	ArtworkKey string  `json:"artwork_key"`
	PlayCount  int64   `json:"play_count"`
}

// GetTrack retrieves a cached track by ID.
func (c *Cache) GetTrack(ctx context.Context, trackID string) (*CachedTrack, bool) {
	var track CachedTrack
	found, err := c.get(ctx, KeyTrack+trackID, &track)
	if err != nil || !found {
		return nil, false
	}
	c.logger.Debug().Str("track_id", trackID).Msg("track cache hit")
	return &track, true
}

// SetTrack caches a track by ID.
func (c *Cache) SetTrack(ctx context.Context, track *CachedTrack) error {
	c.logger.Debug().Str("track_id", track.ID).Msg("caching track")
	return c.set(ctx, KeyTrack+track.ID, track, c.config.TrackTTL)
}

// InvalidateTrack removes a track from cache, along with any list pages
// and recommendation sets that may include it.
func (c *Cache) InvalidateTrack(ctx context.Context, trackID string) error {
	c.logger.Debug().Str("track_id", trackID).Msg("invalidating track cache")
	if err := c.delete(ctx, KeyTrack+trackID); err != nil {
		return err
	}
	if err := c.deletePattern(ctx, KeyTrackList+"*"); err != nil {
		return err
	}
	return c.deletePattern(ctx, KeyRecommendations+"*")
}

// Track list caching methods

// GetTrackList retrieves a cached track listing page by its filter key.
func (c *Cache) GetTrackList(ctx context.Context, listKey string) ([]CachedTrack, bool) {
	var tracks []CachedTrack
	found, err := c.get(ctx, KeyTrackList+listKey, &tracks)
	if err != nil || !found {
		return nil, false
	}
	c.logger.Debug().Str("list_key", listKey).Int("count", len(tracks)).Msg("track list cache hit")
	return tracks, true
}

// SetTrackList caches a track listing page.
func (c *Cache) SetTrackList(ctx context.Context, listKey string, tracks []CachedTrack) error {
	c.logger.Debug().Str("list_key", listKey).Int("count", len(tracks)).Msg("caching track list")
	return c.set(ctx, KeyTrackList+listKey, tracks, c.config.TrackListTTL)
}

// InvalidateTrackLists removes all cached track listing pages.
func (c *Cache) InvalidateTrackLists(ctx context.Context) error {
	c.logger.Debug().Msg("invalidating track list caches")
	return c.deletePattern(ctx, KeyTrackList+"*")
}

// Resolved stream URL caching methods
//
// Third-party stream URLs are time-limited; the TTL here is kept well below
// the upstream expiry so a cache hit is always still playable.

// CachedStreamURL represents a resolved third-party stream.
type CachedStreamURL struct {
	AudioURL   string  `json:"audio_url"`
	Title      string  `json:"title"`
	Artist     string  `json:"artist"`
	ArtworkURL string  `json:"artwork_url"`
	Duration   float64 `json:"duration"`
	ResolvedAt int64   `json:"resolved_at"`
}

// GetStreamURL retrieves a cached resolution result for a source page URL.
func (c *Cache) GetStreamURL(ctx context.Context, sourceKey string) (*CachedStreamURL, bool) {
	var stream CachedStreamURL
	found, err := c.get(ctx, KeyStreamURL+sourceKey, &stream)
	if err != nil || !found {
		return nil, false
	}
	c.logger.Debug().Str("source", sourceKey).Msg("stream url cache hit")
	return &stream, true
}

// SetStreamURL caches a resolution result for a source page URL.
func (c *Cache) SetStreamURL(ctx context.Context, sourceKey string, stream *CachedStreamURL, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.config.StreamURLTTL
	}
	c.logger.Debug().Str("source", sourceKey).Msg("caching stream url")
	return c.set(ctx, KeyStreamURL+sourceKey, stream, ttl)
}

// Recommendation caching methods

// GetRecommendations retrieves cached recommendations for a track ref.
func (c *Cache) GetRecommendations(ctx context.Context, trackRef string) ([]CachedTrack, bool) {
	var tracks []CachedTrack
	found, err := c.get(ctx, KeyRecommendations+trackRef, &tracks)
	if err != nil || !found {
		return nil, false
	}
	c.logger.Debug().Str("track_ref", trackRef).Int("count", len(tracks)).Msg("recommendations cache hit")
	return tracks, true
}

// SetRecommendations caches recommendations for a track ref.
func (c *Cache) SetRecommendations(ctx context.Context, trackRef string, tracks []CachedTrack) error {
	c.logger.Debug().Str("track_ref", trackRef).Int("count", len(tracks)).Msg("caching recommendations")
	return c.set(ctx, KeyRecommendations+trackRef, tracks, c.config.RecommendationsTTL)
}

// Player state write-through methods
//
// The database row is authoritative; redis holds a copy so state reads on
// every page load do not hit the database.

// CachedPlayerState mirrors the persisted per-user player state.
type CachedPlayerState struct {
	UserID          string          `json:"user_id"`
	LastPlayedTrack json.RawMessage `json:"last_played_track,omitempty"`
	Volume          float64         `json:"volume"`
	Muted           bool            `json:"muted"`
}

// GetPlayerState retrieves a cached player state for a user.
func (c *Cache) GetPlayerState(ctx context.Context, userID string) (*CachedPlayerState, bool) {
	var state CachedPlayerState
	found, err := c.get(ctx, KeyPlayerState+userID, &state)
	if err != nil || !found {
		return nil, false
	}
	return &state, true
}

// SetPlayerState caches a player state for a user.
func (c *Cache) SetPlayerState(ctx context.Context, state *CachedPlayerState) error {
	return c.set(ctx, KeyPlayerState+state.UserID, state, c.config.PlayerStateTTL)
}

// InvalidatePlayerState removes a user's player state from cache.
func (c *Cache) InvalidatePlayerState(ctx context.Context, userID string) error {
	return c.delete(ctx, KeyPlayerState+userID)
}

// FlushAll removes all cached data (use sparingly).
func (c *Cache) FlushAll(ctx context.Context) error {
	c.logger.Warn().Msg("flushing all cache data")
	return c.deletePattern(ctx, "waveform:cache:*")
}
