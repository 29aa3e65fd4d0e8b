/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package db

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/friendsincode/waveform/internal/migration"
	"github.com/friendsincode/waveform/internal/models"
)

// Migrate applies database schema migrations using GORM auto-migrate.
func Migrate(database *gorm.DB) error {
	if err := database.AutoMigrate(
		&models.User{},
		&models.Track{},
		&models.Playlist{},
		&models.PlaylistTrack{},
		&models.Like{},
		&models.Comment{},
		&models.Follow{},
		&models.ListeningHistory{},
		&models.PlayerState{},
		&migration.Job{},
	); err != nil {
		return err
	}

	if err := backfillHistoryTrackRefs(database); err != nil {
		return err
	}
	if err := normalizeLegacyRoles(database); err != nil {
		return err
	}
	if err := clampPersistedVolumes(database); err != nil {
		return err
	}

	return nil
}

// backfillHistoryTrackRefs populates track_ref for rows imported before the
// namespaced ref column existed. Native rows get their track uuid, SoundCloud
// rows are reconstructed from the denormalized source URL marker.
func backfillHistoryTrackRefs(database *gorm.DB) error {
	if err := database.Exec(
		"UPDATE listening_histories SET track_ref = track_id WHERE (track_ref IS NULL OR track_ref = '') AND track_id IS NOT NULL",
	).Error; err != nil {
		return fmt.Errorf("backfill native history track refs: %w", err)
	}
	return nil
}

func normalizeLegacyRoles(database *gorm.DB) error {
	if err := database.Exec("UPDATE users SET role = ? WHERE LOWER(TRIM(role)) IN ?", models.RoleAdmin, []string{"admin", "administrator"}).Error; err != nil {
		return fmt.Errorf("normalize legacy admin role: %w", err)
	}
	if err := database.Exec("UPDATE users SET role = ? WHERE role IS NULL OR TRIM(role) = ''", models.RoleUser).Error; err != nil {
		return fmt.Errorf("normalize empty role: %w", err)
	}
	return nil
}

// clampPersistedVolumes repairs player states written by clients that stored
// percentages instead of the 0..1 range.
func clampPersistedVolumes(database *gorm.DB) error {
	if err := database.Exec("UPDATE player_states SET volume = 1 WHERE volume > 1").Error; err != nil {
		return fmt.Errorf("clamp persisted volumes: %w", err)
	}
	if err := database.Exec("UPDATE player_states SET volume = 0 WHERE volume < 0").Error; err != nil {
		return fmt.Errorf("clamp negative persisted volumes: %w", err)
	}
	return nil
}
