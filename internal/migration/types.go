/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package migration

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// JobStatus represents the current state of a migration job.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusRunning    JobStatus = "running"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusCancelled  JobStatus = "cancelled"
	JobStatusValidating JobStatus = "validating"
)

// SourceType represents the type of system being migrated from.
type SourceType string

const (
	// SourceTypeLegacy is the pre-rewrite Waveform deployment: a Postgres
	// database managed by the old web stack, plus a media directory on disk.
	SourceTypeLegacy SourceType = "legacy"
)

// Job represents a migration job.
type Job struct {
	ID         string     `json:"id" gorm:"primaryKey"`
	SourceType SourceType `json:"source_type" gorm:"type:varchar(50);not null"`
	Status     JobStatus  `json:"status" gorm:"type:varchar(50);not null;default:'pending'"`
	DryRun     bool       `json:"dry_run" gorm:"not null;default:false"`
	Options    Options    `json:"options" gorm:"type:jsonb"`
	Progress   Progress   `json:"progress" gorm:"type:jsonb"`
	Result     *Result    `json:"result,omitempty" gorm:"type:jsonb"`
	Error      string     `json:"error,omitempty" gorm:"type:text"`

	CreatedAt   time.Time  `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt   time.Time  `json:"updated_at" gorm:"autoUpdateTime"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Options contains migration-specific configuration.
type Options struct {
	// Internal tracking
	JobID string `json:"job_id,omitempty"` // Filled by migration service when creating a job

	// Entity selection
	SkipUsers     bool `json:"skip_users"`
	SkipTracks    bool `json:"skip_tracks"`
	SkipPlaylists bool `json:"skip_playlists"`
	SkipSocial    bool `json:"skip_social"` // likes, comments, follows
	SkipHistory   bool `json:"skip_history"`
	SkipMedia     bool `json:"skip_media"` // import rows but do not copy audio/artwork files

	// Legacy database options (direct Postgres access)
	LegacyDBHost     string `json:"legacy_db_host,omitempty"`
	LegacyDBPort     int    `json:"legacy_db_port,omitempty"`
	LegacyDBName     string `json:"legacy_db_name,omitempty"`
	LegacyDBUser     string `json:"legacy_db_user,omitempty"`
	LegacyDBPassword string `json:"legacy_db_password,omitempty"`
	LegacyDBSSLMode  string `json:"legacy_db_sslmode,omitempty"` // default "disable"

	// Root of the legacy media directory; audio and artwork paths in the
	// legacy database are relative to this.
	LegacyMediaPath string `json:"legacy_media_path,omitempty"`
}

// Progress tracks migration progress.
type Progress struct {
	Phase              string    `json:"phase"`
	TotalSteps         int       `json:"total_steps"`
	CompletedSteps     int       `json:"completed_steps"`
	CurrentStep        string    `json:"current_step"`
	UsersTotal         int       `json:"users_total"`
	UsersImported      int       `json:"users_imported"`
	TracksTotal        int       `json:"tracks_total"`
	TracksImported     int       `json:"tracks_imported"`
	MediaCopied        int       `json:"media_copied"`
	PlaylistsTotal     int       `json:"playlists_total"`
	PlaylistsImported  int       `json:"playlists_imported"`
	HistoryTotal       int       `json:"history_total"`
	HistoryImported    int       `json:"history_imported"`
	Percentage         float64   `json:"percentage"`
	EstimatedRemaining string    `json:"estimated_remaining,omitempty"`
	StartTime          time.Time `json:"start_time"`

	// StepHistory keeps a rolling log of progress updates for UI visibility.
	StepHistory []ProgressStep `json:"step_history,omitempty"`
}

type ProgressStep struct {
	At         time.Time `json:"at"`
	Phase      string    `json:"phase,omitempty"`
	Step       string    `json:"step,omitempty"`
	Percentage float64   `json:"percentage,omitempty"`
}

// Result contains the final migration results.
type Result struct {
	UsersCreated     int                `json:"users_created"`
	TracksCreated    int                `json:"tracks_created"`
	PlaylistsCreated int                `json:"playlists_created"`
	LikesCreated     int                `json:"likes_created"`
	CommentsCreated  int                `json:"comments_created"`
	FollowsCreated   int                `json:"follows_created"`
	HistoryCreated   int                `json:"history_created"`
	MediaFilesCopied int                `json:"media_files_copied"`
	Warnings         []string           `json:"warnings,omitempty"`
	Skipped          map[string]int     `json:"skipped,omitempty"`
	Mappings         map[string]Mapping `json:"mappings,omitempty"`
	DurationSeconds  float64            `json:"duration_seconds"`
}

// Mapping tracks ID mappings from source to target system.
type Mapping struct {
	OldID   string `json:"old_id"`
	NewID   string `json:"new_id"`
	Type    string `json:"type"` // user, track, playlist, etc.
	Name    string `json:"name"`
	Skipped bool   `json:"skipped,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// Importer defines the interface for migration importers.
type Importer interface {
	// Validate checks if the migration can proceed with the given options.
	Validate(ctx context.Context, options Options) error

	// Analyze performs a dry-run analysis without making changes.
	Analyze(ctx context.Context, options Options) (*Result, error)

	// Import performs the actual migration.
	Import(ctx context.Context, options Options, progressCallback ProgressCallback) (*Result, error)
}

// ProgressCallback is called during migration to report progress.
type ProgressCallback func(progress Progress)

// ValidationError represents a validation error with details.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// ValidationErrors represents multiple validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "validation failed"
	}
	return e[0].Error()
}

// Scanner/Valuer interfaces for GORM JSONB support

// Value implements driver.Valuer for Options
func (o Options) Value() (driver.Value, error) {
	return json.Marshal(o)
}

// Scan implements sql.Scanner for Options
func (o *Options) Scan(value interface{}) error {
	if value == nil {
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("failed to unmarshal Options: expected []byte or string, got %T", value)
	}
	return json.Unmarshal(bytes, o)
}

// Value implements driver.Valuer for Progress
func (p Progress) Value() (driver.Value, error) {
	return json.Marshal(p)
}

// Scan implements sql.Scanner for Progress
func (p *Progress) Scan(value interface{}) error {
	if value == nil {
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("failed to unmarshal Progress: expected []byte or string, got %T", value)
	}
	return json.Unmarshal(bytes, p)
}

// Value implements driver.Valuer for Result
func (r Result) Value() (driver.Value, error) {
	return json.Marshal(r)
}

// Scan implements sql.Scanner for Result
func (r *Result) Scan(value interface{}) error {
	if value == nil {
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("failed to unmarshal Result: expected []byte or string, got %T", value)
	}
	return json.Unmarshal(bytes, r)
}

// String returns the string representation of SourceType.
func (s SourceType) String() string {
	return string(s)
}
