/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package player implements the per-user playback engine: stream
// resolution, the playback state machine, the two-tier play queue, and
// listening history recording. The engine is headless; connected clients
// act as its audio output over a WebSocket.
package player

import "strings"

// Source identifies where a track's audio lives.
type Source string

const (
	SourceLibrary    Source = "library"
	SourceSoundCloud Source = "soundcloud"
)

// Artist carries display and link-out data for a track's artist. Native
// tracks set UserID; third-party tracks set Permalink/ProfileURL instead.
type Artist struct {
	Name       string `json:"name"`
	UserID     string `json:"user_id,omitempty"`
	Permalink  string `json:"permalink,omitempty"`
	ProfileURL string `json:"profile_url,omitempty"`
}

// Track is the playable view of a track. It is treated as a value: a
// refreshed track (after re-resolution) replaces the old one wholesale,
// never mutates it.
type Track struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Artist     Artist  `json:"artist"`
	AudioURL   string  `json:"audio_url"`
	ArtworkURL string  `json:"artwork_url,omitempty"`
	Duration   float64 `json:"duration,omitempty"` // seconds; 0 until known
	Source     Source  `json:"source"`
	SourceURL  string  `json:"source_url,omitempty"`  // third-party page URL for re-resolution
	ExternalID string  `json:"external_id,omitempty"` // third-party id
}

// ThirdParty reports whether the track's stream URL is time-limited and
// requires resolution before play.
func (t Track) ThirdParty() bool {
	return t.Source == SourceSoundCloud || strings.HasPrefix(t.ID, "soundcloud_")
}

// Playable reports whether the track currently carries a stream URL.
func (t Track) Playable() bool {
	return t.AudioURL != ""
}
