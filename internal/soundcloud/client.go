/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package soundcloud resolves SoundCloud page URLs into track metadata and
// time-limited stream URLs. Stream extraction goes through a configured
// cobalt-compatible endpoint; metadata comes from the public API.
package soundcloud

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// IDPrefix namespaces SoundCloud track ids so they cannot collide with
// native track uuids.
const IDPrefix = "soundcloud_"

var (
	// ErrNotSoundCloudURL is returned for page URLs outside soundcloud.com.
	ErrNotSoundCloudURL = errors.New("not a soundcloud.com URL")
	// ErrNoStream is returned when the extraction endpoint yields no
	// playable URL for a track.
	ErrNoStream = errors.New("no stream url available")
	// ErrNotUser is returned when a resolved permalink is not a user
	// profile.
	ErrNotUser = errors.New("permalink does not resolve to a user")
)

// Track is a resolved SoundCloud track.
type Track struct {
	ID               string  `json:"id"` // namespaced: soundcloud_<external id>
	ExternalID       string  `json:"external_id"`
	Title            string  `json:"title"`
	ArtistName       string  `json:"artist_name"`
	ArtistPermalink  string  `json:"artist_permalink"`
	ArtistProfileURL string  `json:"artist_profile_url"`
	ArtworkURL       string  `json:"artwork_url"`
	Duration         float64 `json:"duration"` // seconds
	SourceURL        string  `json:"source_url"`
	AudioURL         string  `json:"audio_url"` // time-limited; empty in search results
}

// Client talks to the SoundCloud metadata API and the stream extraction
// endpoint. Both calls are plain JSON over HTTP.
type Client struct {
	httpClient *http.Client
	apiBase    string
	streamAPI  string
	logger     zerolog.Logger
}

// New creates a SoundCloud client. streamAPI may be empty, in which case
// Resolve returns metadata without a playable URL and reports ErrNoStream.
func New(apiBase, streamAPI string, logger zerolog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 20 * time.Second},
		apiBase:    strings.TrimRight(apiBase, "/"),
		streamAPI:  strings.TrimRight(streamAPI, "/"),
		logger:     logger.With().Str("component", "soundcloud").Logger(),
	}
}

// ValidateURL checks that raw is an http(s) soundcloud.com page URL.
func ValidateURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("parse url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return ErrNotSoundCloudURL
	}
	host := strings.ToLower(parsed.Hostname())
	if host != "soundcloud.com" && !strings.HasSuffix(host, ".soundcloud.com") {
		return ErrNotSoundCloudURL
	}
	return nil
}

// apiTrack mirrors the metadata API response shape.
type apiTrack struct {
	ID         int64  `json:"id"`
	Title      string `json:"title"`
	ArtworkURL string `json:"artwork_url"`
	DurationMS int64  `json:"duration"`
	Permalink  string `json:"permalink_url"`
	User       struct {
		Username     string `json:"username"`
		Permalink    string `json:"permalink"`
		PermalinkURL string `json:"permalink_url"`
	} `json:"user"`
}

func (t apiTrack) toTrack() Track {
	return Track{
		ID:               fmt.Sprintf("%s%d", IDPrefix, t.ID),
		ExternalID:       fmt.Sprintf("%d", t.ID),
		Title:            t.Title,
		ArtistName:       t.User.Username,
		ArtistPermalink:  t.User.Permalink,
		ArtistProfileURL: t.User.PermalinkURL,
		ArtworkURL:       t.ArtworkURL,
		Duration:         float64(t.DurationMS) / 1000,
		SourceURL:        t.Permalink,
	}
}

// Resolve exchanges a SoundCloud page URL for track metadata plus a fresh
// time-limited stream URL. Safe to call repeatedly for the same page URL.
func (c *Client) Resolve(ctx context.Context, pageURL string) (*Track, error) {
	if err := ValidateURL(pageURL); err != nil {
		return nil, err
	}

	meta, err := c.fetchMetadata(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	track := meta.toTrack()
	if track.SourceURL == "" {
		track.SourceURL = pageURL
	}

	audioURL, err := c.extractStream(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	track.AudioURL = audioURL

	c.logger.Debug().
		Str("source_url", pageURL).
		Str("track_id", track.ID).
		Msg("resolved soundcloud track")

	return &track, nil
}

func (c *Client) fetchMetadata(ctx context.Context, pageURL string) (*apiTrack, error) {
	endpoint := fmt.Sprintf("%s/resolve?url=%s", c.apiBase, url.QueryEscape(pageURL))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build metadata request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch soundcloud metadata: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("soundcloud metadata returned status %d", resp.StatusCode)
	}

	var meta apiTrack
	if err := json.NewDecoder(resp.Body).Decode(&meta); err != nil {
		return nil, fmt.Errorf("decode soundcloud metadata: %w", err)
	}
	if meta.ID == 0 {
		return nil, fmt.Errorf("soundcloud metadata missing track id")
	}
	return &meta, nil
}

// streamResponse mirrors the cobalt-compatible extraction response.
type streamResponse struct {
	Status string `json:"status"`
	URL    string `json:"url"`
	Error  struct {
		Code string `json:"code"`
	} `json:"error"`
}

func (c *Client) extractStream(ctx context.Context, pageURL string) (string, error) {
	if c.streamAPI == "" {
		return "", ErrNoStream
	}

	body, err := json.Marshal(map[string]any{
		"url":          pageURL,
		"audioFormat":  "mp3",
		"downloadMode": "audio",
	})
	if err != nil {
		return "", fmt.Errorf("marshal stream request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.streamAPI, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build stream request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("extract stream url: %w", err)
	}
	defer resp.Body.Close()

	var parsed streamResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode stream response: %w", err)
	}

	switch parsed.Status {
	case "stream", "redirect", "tunnel":
		if parsed.URL == "" {
			return "", ErrNoStream
		}
		return parsed.URL, nil
	default:
		if parsed.Error.Code != "" {
			return "", fmt.Errorf("stream extraction failed: %s: %w", parsed.Error.Code, ErrNoStream)
		}
		return "", ErrNoStream
	}
}

// Search queries the metadata API for tracks matching q.
func (c *Client) Search(ctx context.Context, q string, limit int) ([]Track, error) {
	if limit <= 0 || limit > 50 {
		limit = 20
	}
	endpoint := fmt.Sprintf("%s/search/tracks?q=%s&limit=%d", c.apiBase, url.QueryEscape(q), limit)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search soundcloud: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("soundcloud search returned status %d", resp.StatusCode)
	}

	var parsed struct {
		Collection []apiTrack `json:"collection"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	tracks := make([]Track, 0, len(parsed.Collection))
	for _, item := range parsed.Collection {
		if item.ID == 0 {
			continue
		}
		tracks = append(tracks, item.toTrack())
	}
	return tracks, nil
}

// User is a resolved SoundCloud profile.
type User struct {
	ID         int64  `json:"id"`
	Username   string `json:"username"`
	Permalink  string `json:"permalink"`
	ProfileURL string `json:"profile_url"`
}

// ResolveUser resolves a profile permalink ("some-artist") or full
// profile URL into a SoundCloud user. Permalinks that resolve to
// something other than a user report ErrNotUser.
func (c *Client) ResolveUser(ctx context.Context, usernameOrURL string) (*User, error) {
	pageURL := strings.TrimSpace(usernameOrURL)
	if !strings.Contains(pageURL, "soundcloud.com") {
		pageURL = "https://soundcloud.com/" + strings.Trim(pageURL, "/")
	}
	if err := ValidateURL(pageURL); err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/resolve?url=%s", c.apiBase, url.QueryEscape(pageURL))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build user resolve request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("resolve soundcloud user: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("soundcloud user resolve returned status %d", resp.StatusCode)
	}

	var parsed struct {
		ID           int64  `json:"id"`
		Kind         string `json:"kind"`
		Username     string `json:"username"`
		Permalink    string `json:"permalink"`
		PermalinkURL string `json:"permalink_url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode user resolve response: %w", err)
	}
	if parsed.ID == 0 || (parsed.Kind != "" && parsed.Kind != "user") {
		return nil, ErrNotUser
	}
	return &User{
		ID:         parsed.ID,
		Username:   parsed.Username,
		Permalink:  parsed.Permalink,
		ProfileURL: parsed.PermalinkURL,
	}, nil
}

// UserLikes fetches the tracks a SoundCloud user has liked. The API
// returns collection items either as bare tracks or wrapped in a
// {"track": ...} envelope; both forms are accepted. No stream URLs are
// fetched; those are resolved on demand at playback time.
func (c *Client) UserLikes(ctx context.Context, userID int64, limit int) ([]Track, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	endpoint := fmt.Sprintf("%s/users/%d/likes/tracks?limit=%d", c.apiBase, userID, limit)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build user likes request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch soundcloud user likes: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("soundcloud user likes returned status %d", resp.StatusCode)
	}

	var parsed struct {
		Collection []json.RawMessage `json:"collection"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode user likes response: %w", err)
	}

	tracks := make([]Track, 0, len(parsed.Collection))
	for _, raw := range parsed.Collection {
		var wrapped struct {
			Track *apiTrack `json:"track"`
		}
		item := apiTrack{}
		if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.Track != nil && wrapped.Track.ID != 0 {
			item = *wrapped.Track
		} else if err := json.Unmarshal(raw, &item); err != nil {
			continue
		}
		if item.ID == 0 {
			continue
		}
		tracks = append(tracks, item.toTrack())
	}
	return tracks, nil
}
