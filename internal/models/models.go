/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import (
	"time"
)

// RoleName enumerates account roles.
type RoleName string

const (
	RoleUser  RoleName = "user"
	RoleAdmin RoleName = "admin"
)

// User represents an authenticated account.
type User struct {
	ID          string `gorm:"type:uuid;primaryKey"`
	Email       string `gorm:"uniqueIndex"`
	Username    string `gorm:"uniqueIndex"`
	Password    string
	DisplayName string
	Bio         string `gorm:"type:text"`
	AvatarKey   string
	Role        RoleName `gorm:"type:varchar(16)"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Track is a natively hosted audio asset.
type Track struct {
	ID          string `gorm:"type:uuid;primaryKey"`
	UserID      string `gorm:"type:uuid;index"`
	Title       string `gorm:"index"`
	Genre       string `gorm:"index"`
	Description string `gorm:"type:text"`
	AudioKey    string
	ArtworkKey  string
	Duration    float64 // seconds; 0 when unknown until the client reports it
	PlayCount   int64   `gorm:"default:0"`
	CreatedAt   time.Time
	UpdatedAt   time.Time

	User *User `gorm:"foreignKey:UserID"`
}

// Playlist is an ordered user-curated track collection.
type Playlist struct {
	ID          string `gorm:"type:uuid;primaryKey"`
	UserID      string `gorm:"type:uuid;index"`
	Title       string `gorm:"index"`
	Description string `gorm:"type:text"`
	Public      bool   `gorm:"default:true"`
	CreatedAt   time.Time
	UpdatedAt   time.Time

	Tracks []PlaylistTrack
}

// PlaylistTrack join table between playlists and tracks, ordered by Position.
type PlaylistTrack struct {
	PlaylistID string `gorm:"type:uuid;primaryKey"`
	TrackID    string `gorm:"type:uuid;primaryKey"`
	Position   int    `gorm:"index"`
	CreatedAt  time.Time

	Track *Track `gorm:"foreignKey:TrackID"`
}

// Like marks a user's like on a track, native or third-party.
//
// Native likes reference a Track row through TrackID. Third-party likes
// have no durable track row, so the Soundcloud* columns carry a
// denormalized copy of the track. TrackRef holds the namespaced id for
// both kinds, same convention as ListeningHistory.
type Like struct {
	UserID   string  `gorm:"type:uuid;primaryKey"`
	TrackRef string  `gorm:"primaryKey"`
	TrackID  *string `gorm:"type:uuid;index"`

	SoundcloudTitle      string
	SoundcloudArtist     string
	SoundcloudArtworkURL string
	SoundcloudSourceURL  string
	SoundcloudDuration   float64

	CreatedAt time.Time

	Track *Track `gorm:"foreignKey:TrackID"`
}

// Comment is a user comment on a track.
type Comment struct {
	ID        string `gorm:"type:uuid;primaryKey"`
	UserID    string `gorm:"type:uuid;index"`
	TrackID   string `gorm:"type:uuid;index"`
	Body      string `gorm:"type:text"`
	CreatedAt time.Time
	UpdatedAt time.Time

	User *User `gorm:"foreignKey:UserID"`
}

// Follow records that Follower follows Followee.
type Follow struct {
	FollowerID string `gorm:"type:uuid;primaryKey"`
	FolloweeID string `gorm:"type:uuid;primaryKey"`
	CreatedAt  time.Time
}

// ListeningHistory records one playback start.
//
// Native plays reference a Track row through TrackID. Third-party plays have
// no durable track row, so the Soundcloud* columns carry a denormalized copy
// of what was playing at the time. TrackRef holds the namespaced player id
// for both kinds (a raw uuid or "soundcloud_<id>").
type ListeningHistory struct {
	ID       string `gorm:"type:uuid;primaryKey"`
	UserID   string `gorm:"type:uuid;index"`
	TrackRef string `gorm:"index"`
	TrackID  *string `gorm:"type:uuid;index"`

	SoundcloudTitle      string
	SoundcloudArtist     string
	SoundcloudArtworkURL string
	SoundcloudSourceURL  string

	PlayedAt time.Time `gorm:"index"`
}

// PlayerState persists per-user player preferences and the last played
// track across sessions. LastPlayedTrack is a JSON-serialized player track;
// a corrupt value degrades to "nothing to resume", never an error.
type PlayerState struct {
	UserID          string `gorm:"type:uuid;primaryKey"`
	LastPlayedTrack []byte `gorm:"type:jsonb"`
	Volume          float64 `gorm:"default:1"`
	Muted           bool
	UpdatedAt       time.Time
}
