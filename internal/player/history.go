/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package player

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/waveform/internal/events"
	"github.com/friendsincode/waveform/internal/models"
)

// HistoryRecorder logs play events. Recording is fire-and-forget: failures
// are swallowed and never block or alter playback state.
type HistoryRecorder interface {
	Record(userID string, track Track)
}

// DBHistoryRecorder persists play events to the listening history table.
type DBHistoryRecorder struct {
	db     *gorm.DB
	bus    *events.Bus
	logger zerolog.Logger
}

// NewHistoryRecorder creates a database-backed history recorder.
func NewHistoryRecorder(db *gorm.DB, bus *events.Bus, logger zerolog.Logger) *DBHistoryRecorder {
	return &DBHistoryRecorder{
		db:     db,
		bus:    bus,
		logger: logger.With().Str("component", "history").Logger(),
	}
}

// Record writes one history row for a playback start. Third-party tracks
// carry a denormalized copy of their metadata since no durable track row
// exists for them.
func (r *DBHistoryRecorder) Record(userID string, track Track) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		entry := models.ListeningHistory{
			ID:       uuid.NewString(),
			UserID:   userID,
			TrackRef: track.ID,
			PlayedAt: time.Now().UTC(),
		}
		if track.ThirdParty() {
			entry.SoundcloudTitle = track.Title
			entry.SoundcloudArtist = track.Artist.Name
			entry.SoundcloudArtworkURL = track.ArtworkURL
			entry.SoundcloudSourceURL = track.SourceURL
		} else {
			id := track.ID
			entry.TrackID = &id
		}

		if err := r.db.WithContext(ctx).Create(&entry).Error; err != nil {
			r.logger.Debug().Err(err).
				Str("user_id", userID).
				Str("track_ref", track.ID).
				Msg("history record failed")
			return
		}

		if r.bus != nil {
			r.bus.Publish(events.EventHistoryRecorded, events.Payload{
				"user_id":   userID,
				"track_ref": track.ID,
				"played_at": entry.PlayedAt,
			})
		}
	}()
}
