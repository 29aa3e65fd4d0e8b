/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/friendsincode/waveform/internal/events"
	"github.com/friendsincode/waveform/internal/media"
	"github.com/friendsincode/waveform/internal/migration"
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import data from a previous Waveform deployment",
	Long:  "Import users, tracks, playlists, social data and listening history from another system",
}

var importLegacyCmd = &cobra.Command{
	Use:   "legacy",
	Short: "Import from a legacy Waveform database",
	Long:  "Import users, tracks, playlists, likes, comments, follows and listening history from the pre-rewrite Postgres database",
	RunE:  runImportLegacy,
}

// Legacy import flags
var (
	legacyDBHost        string
	legacyDBPort        int
	legacyDBName        string
	legacyDBUser        string
	legacyDBPassword    string
	legacyMediaPath     string
	legacySkipMedia     bool
	legacySkipUsers     bool
	legacySkipTracks    bool
	legacySkipPlaylists bool
	legacySkipSocial    bool
	legacySkipHistory   bool
	legacyDryRun        bool
)

func init() {
	rootCmd.AddCommand(importCmd)
	importCmd.AddCommand(importLegacyCmd)

	importLegacyCmd.Flags().StringVar(&legacyDBHost, "db-host", "localhost", "Legacy database host")
	importLegacyCmd.Flags().IntVar(&legacyDBPort, "db-port", 5432, "Legacy database port")
	importLegacyCmd.Flags().StringVar(&legacyDBName, "db-name", "waveform", "Legacy database name")
	importLegacyCmd.Flags().StringVar(&legacyDBUser, "db-user", "", "Legacy database user (required)")
	importLegacyCmd.Flags().StringVar(&legacyDBPassword, "db-password", "", "Legacy database password")
	importLegacyCmd.Flags().StringVar(&legacyMediaPath, "media-path", "", "Path to the legacy media directory")
	importLegacyCmd.Flags().BoolVar(&legacySkipMedia, "skip-media", false, "Skip audio/artwork file copy")
	importLegacyCmd.Flags().BoolVar(&legacySkipUsers, "skip-users", false, "Skip user import")
	importLegacyCmd.Flags().BoolVar(&legacySkipTracks, "skip-tracks", false, "Skip track import")
	importLegacyCmd.Flags().BoolVar(&legacySkipPlaylists, "skip-playlists", false, "Skip playlist import")
	importLegacyCmd.Flags().BoolVar(&legacySkipSocial, "skip-social", false, "Skip likes, comments and follows")
	importLegacyCmd.Flags().BoolVar(&legacySkipHistory, "skip-history", false, "Skip listening history import")
	importLegacyCmd.Flags().BoolVar(&legacyDryRun, "dry-run", false, "Analyze database without importing")
	importLegacyCmd.MarkFlagRequired("db-user")
}

func runImportLegacy(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	logger.Info().
		Str("db_host", legacyDBHost).
		Str("db_name", legacyDBName).
		Bool("dry_run", legacyDryRun).
		Msg("starting legacy import")

	database, err := initDatabase()
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}

	mediaService, err := media.NewService(cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize media service: %w", err)
	}

	bus := events.NewBus()

	migrationSvc := migration.NewService(database, bus, logger)
	migrationSvc.RegisterImporter(migration.SourceTypeLegacy, migration.NewLegacyImporter(database, mediaService, logger))

	options := migration.Options{
		LegacyDBHost:     legacyDBHost,
		LegacyDBPort:     legacyDBPort,
		LegacyDBName:     legacyDBName,
		LegacyDBUser:     legacyDBUser,
		LegacyDBPassword: legacyDBPassword,
		LegacyMediaPath:  legacyMediaPath,
		SkipMedia:        legacySkipMedia,
		SkipUsers:        legacySkipUsers,
		SkipTracks:       legacySkipTracks,
		SkipPlaylists:    legacySkipPlaylists,
		SkipSocial:       legacySkipSocial,
		SkipHistory:      legacySkipHistory,
	}

	ctx := context.Background()

	// Dry run: just analyze
	if legacyDryRun {
		logger.Info().Msg("performing dry run analysis...")
		importer := migration.NewLegacyImporter(database, mediaService, logger)

		if err := importer.Validate(ctx, options); err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}

		result, err := importer.Analyze(ctx, options)
		if err != nil {
			return fmt.Errorf("analysis failed: %w", err)
		}

		logger.Info().Msg("dry run analysis complete")
		fmt.Printf("\nImport Preview:\n")
		fmt.Printf("  Users:     %d\n", result.UsersCreated)
		fmt.Printf("  Tracks:    %d\n", result.TracksCreated)
		fmt.Printf("  Playlists: %d\n", result.PlaylistsCreated)
		fmt.Printf("  Likes:     %d\n", result.LikesCreated)
		fmt.Printf("  Comments:  %d\n", result.CommentsCreated)
		fmt.Printf("  Follows:   %d\n", result.FollowsCreated)
		fmt.Printf("  History:   %d\n", result.HistoryCreated)

		if len(result.Warnings) > 0 {
			fmt.Printf("\nWarnings:\n")
			for _, warning := range result.Warnings {
				fmt.Printf("  - %s\n", warning)
			}
		}

		fmt.Printf("\nRun without --dry-run to perform the import.\n")
		return nil
	}

	job, err := migrationSvc.CreateJob(ctx, migration.SourceTypeLegacy, options)
	if err != nil {
		return fmt.Errorf("create job: %w", err)
	}

	logger.Info().Str("job_id", job.ID).Msg("import job created")

	progressCallback := func(progress migration.Progress) {
		status := fmt.Sprintf("%s [%.0f%%] %s", progress.Phase, progress.Percentage, progress.CurrentStep)

		if progress.TracksImported > 0 {
			status += fmt.Sprintf(" (%d/%d tracks)", progress.TracksImported, progress.TracksTotal)
		} else if progress.MediaCopied > 0 {
			status += fmt.Sprintf(" (%d files copied)", progress.MediaCopied)
		}

		fmt.Printf("\r%-100s", status)
		if progress.Phase == "done" {
			fmt.Println()
		}
	}

	// Run import directly (not via service) to show progress
	importer := migration.NewLegacyImporter(database, mediaService, logger)
	result, err := importer.Import(ctx, options, progressCallback)
	if err != nil {
		logger.Error().Err(err).Msg("import failed")
		return fmt.Errorf("import failed: %w", err)
	}

	fmt.Printf("\n\nImport Complete!\n")
	fmt.Printf("  Users:     %d created\n", result.UsersCreated)
	fmt.Printf("  Tracks:    %d created\n", result.TracksCreated)
	fmt.Printf("  Media:     %d files copied\n", result.MediaFilesCopied)
	fmt.Printf("  Playlists: %d created\n", result.PlaylistsCreated)
	fmt.Printf("  Likes:     %d created\n", result.LikesCreated)
	fmt.Printf("  Comments:  %d created\n", result.CommentsCreated)
	fmt.Printf("  Follows:   %d created\n", result.FollowsCreated)
	fmt.Printf("  History:   %d entries\n", result.HistoryCreated)
	fmt.Printf("  Duration:  %.1f seconds\n", result.DurationSeconds)

	if len(result.Warnings) > 0 {
		fmt.Printf("\nWarnings:\n")
		for _, warning := range result.Warnings {
			fmt.Printf("  - %s\n", warning)
		}
	}

	if len(result.Skipped) > 0 {
		fmt.Printf("\nSkipped:\n")
		for key, count := range result.Skipped {
			fmt.Printf("  - %s: %d\n", key, count)
		}
	}

	logger.Info().Msg("legacy import completed successfully")
	return nil
}
