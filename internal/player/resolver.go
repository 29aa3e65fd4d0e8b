/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package player

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/waveform/internal/telemetry"
)

// ErrResolutionFailed is returned when a track that cannot play without a
// fresh stream URL fails to resolve.
var ErrResolutionFailed = errors.New("stream resolution failed")

// Resolution is the result of exchanging a source page URL for a fresh
// stream URL. Metadata fields are optional refinements.
type Resolution struct {
	AudioURL   string
	Title      string
	ArtistName string
	ArtworkURL string
	Duration   float64
}

// StreamResolver exchanges a third-party page URL for a currently valid,
// time-limited stream URL. Implementations must be idempotent and safe to
// call repeatedly for the same URL.
type StreamResolver interface {
	ResolveStream(ctx context.Context, sourceURL string) (*Resolution, error)
}

// Resolver guarantees a track handed to the session carries a currently
// valid stream URL. Native tracks pass through untouched; their URLs do
// not expire. Third-party tracks are always re-resolved, even when they
// already carry a URL, because a previously valid URL may have expired by
// play time.
type Resolver struct {
	streams StreamResolver
	timeout time.Duration
	logger  zerolog.Logger
}

// NewResolver creates a track resolver with the given per-call timeout.
func NewResolver(streams StreamResolver, timeout time.Duration, logger zerolog.Logger) *Resolver {
	if timeout <= 0 {
		timeout = 12 * time.Second
	}
	return &Resolver{
		streams: streams,
		timeout: timeout,
		logger:  logger.With().Str("component", "resolver").Logger(),
	}
}

// Resolve returns a track guaranteed playable, or ErrResolutionFailed.
//
// For third-party tracks, failure handling depends on what the caller
// already has: with no existing URL the resolution is mandatory and the
// error is fatal; with an existing (possibly stale) URL the failure
// degrades gracefully and the original track is returned, leaving a later
// device error to trigger the single retry.
func (r *Resolver) Resolve(ctx context.Context, track Track) (Track, error) {
	if !track.ThirdParty() {
		return track, nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	res, err := r.streams.ResolveStream(ctx, track.SourceURL)
	if err != nil || res == nil || res.AudioURL == "" {
		if track.AudioURL != "" {
			// Opportunistic refresh failed; attempt the stale URL.
			r.logger.Debug().
				Err(err).
				Str("track_id", track.ID).
				Msg("stream refresh failed, keeping existing url")
			telemetry.PlayerResolutionsTotal.WithLabelValues("degraded").Inc()
			return track, nil
		}
		if err == nil {
			err = fmt.Errorf("empty stream url")
		}
		telemetry.PlayerResolutionsTotal.WithLabelValues("failed").Inc()
		return Track{}, fmt.Errorf("%w: %s: %v", ErrResolutionFailed, track.SourceURL, err)
	}
	telemetry.PlayerResolutionsTotal.WithLabelValues("ok").Inc()

	refreshed := track
	refreshed.AudioURL = res.AudioURL
	if res.Title != "" {
		refreshed.Title = res.Title
	}
	if res.ArtistName != "" {
		refreshed.Artist.Name = res.ArtistName
	}
	if res.ArtworkURL != "" {
		refreshed.ArtworkURL = res.ArtworkURL
	}
	if res.Duration > 0 {
		refreshed.Duration = res.Duration
	}
	return refreshed, nil
}

// ResolveFresh behaves like Resolve but never degrades to a stale URL.
// Used for the post-error retry, where the existing URL is known bad.
func (r *Resolver) ResolveFresh(ctx context.Context, track Track) (Track, error) {
	stripped := track
	stripped.AudioURL = ""
	return r.Resolve(ctx, stripped)
}
