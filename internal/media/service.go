/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package media

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/waveform/internal/config"
)

// Asset kinds determine the top-level storage prefix.
const (
	KindAudio   = "audio"
	KindArtwork = "artwork"
	KindAvatar  = "avatar"
)

// Storage interface abstracts file storage operations.
type Storage interface {
	Store(ctx context.Context, kind, assetID, extension string, file io.Reader) (string, error)
	Delete(ctx context.Context, key string) error
	URL(key string) string
	CheckAccess(ctx context.Context) error
}

// Service manages media file storage.
type Service struct {
	storage Storage
	logger  zerolog.Logger
}

// NewService creates a media service using filesystem or S3 storage based on config.
func NewService(cfg *config.Config, logger zerolog.Logger) (*Service, error) {
	var storage Storage

	// Use S3 storage if bucket is configured
	if cfg.S3Bucket != "" {
		s3cfg := S3Config{
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			Region:          cfg.S3Region,
			Bucket:          cfg.S3Bucket,
			Endpoint:        cfg.S3Endpoint,
			PublicBaseURL:   cfg.S3PublicBaseURL,
			UsePathStyle:    cfg.S3UsePathStyle,
		}

		if s3cfg.AccessKeyID == "" || s3cfg.SecretAccessKey == "" {
			logger.Warn().Msg("S3 credentials not configured, some operations may fail")
		}

		s3Storage, err := NewS3Storage(context.Background(), s3cfg, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize S3 storage: %w", err)
		}
		storage = s3Storage
	} else {
		// Default to filesystem storage
		storage = NewFilesystemStorage(cfg.MediaRoot, logger)
	}

	return &Service{
		storage: storage,
		logger:  logger,
	}, nil
}

// Store saves an uploaded file and returns the storage key.
func (s *Service) Store(ctx context.Context, kind, assetID, extension string, file io.Reader) (string, error) {
	key, err := s.storage.Store(ctx, kind, assetID, extension, file)
	if err != nil {
		s.logger.Error().Err(err).
			Str("kind", kind).
			Str("asset_id", assetID).
			Msg("media store failed")
		return "", fmt.Errorf("store media: %w", err)
	}

	s.logger.Info().
		Str("kind", kind).
		Str("asset_id", assetID).
		Str("key", key).
		Msg("media stored successfully")

	return key, nil
}

// Delete removes a media file from storage.
func (s *Service) Delete(ctx context.Context, key string) error {
	if err := s.storage.Delete(ctx, key); err != nil {
		s.logger.Error().Err(err).Str("key", key).Msg("media delete failed")
		return fmt.Errorf("delete media: %w", err)
	}

	s.logger.Info().Str("key", key).Msg("media deleted successfully")
	return nil
}

// URL returns the accessible URL for a stored media file.
func (s *Service) URL(key string) string {
	return s.storage.URL(key)
}

// CheckStorageAccess verifies that the storage backend is accessible.
func (s *Service) CheckStorageAccess() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.storage.CheckAccess(ctx)
}

// buildAssetPath constructs a hierarchical storage key for a media file.
func buildAssetPath(kind, assetID, extension string) string {
	// Structure: kind/asset_id[0:2]/asset_id[2:4]/asset_id.ext
	// This creates a balanced directory structure to avoid too many files in one dir
	if len(assetID) < 4 {
		return filepath.Join(kind, assetID+extension)
	}
	return filepath.Join(kind, assetID[0:2], assetID[2:4], assetID+extension)
}
