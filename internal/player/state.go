/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package player

// State enumerates the playback session states.
type State int

const (
	StateIdle State = iota
	StateLoading
	StatePlaying
	StatePaused
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	default:
		return "unknown"
	}
}

// Snapshot is a point-in-time copy of a session's observable state.
type Snapshot struct {
	State           State   `json:"-"`
	StateName       string  `json:"state"`
	CurrentTrack    *Track  `json:"current_track,omitempty"`
	LastPlayedTrack *Track  `json:"last_played_track,omitempty"`
	Position        float64 `json:"position"`
	Duration        float64 `json:"duration"`
	Volume          float64 `json:"volume"`
	Muted           bool    `json:"muted"`
	Loop            bool    `json:"loop"`
	Shuffle         bool    `json:"shuffle"`
	ContextSize     int     `json:"context_size"`
	ContextIndex    int     `json:"context_index"`
	GlobalSize      int     `json:"global_size"`
	GlobalIndex     int     `json:"global_index"`
}
