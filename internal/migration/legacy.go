/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package migration

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/waveform/internal/media"
	"github.com/friendsincode/waveform/internal/models"
)

// LegacyImporter imports data from the pre-rewrite Waveform deployment by
// reading its Postgres database directly. The legacy schema uses Prisma's
// quoted PascalCase table names and camelCase columns.
type LegacyImporter struct {
	db           *gorm.DB
	mediaService *media.Service
	fileOps      *FileOperations
	logger       zerolog.Logger
}

// NewLegacyImporter creates an importer for the legacy database.
func NewLegacyImporter(db *gorm.DB, mediaService *media.Service, logger zerolog.Logger) *LegacyImporter {
	return &LegacyImporter{
		db:           db,
		mediaService: mediaService,
		fileOps:      NewFileOperations(mediaService, logger),
		logger:       logger.With().Str("component", "legacy_import").Logger(),
	}
}

func legacyDSN(options Options) string {
	sslMode := options.LegacyDBSSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	port := options.LegacyDBPort
	if port == 0 {
		port = 5432
	}
	return fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		options.LegacyDBHost, port, options.LegacyDBName,
		options.LegacyDBUser, options.LegacyDBPassword, sslMode)
}

func (l *LegacyImporter) connect(ctx context.Context, options Options) (*sql.DB, error) {
	src, err := sql.Open("postgres", legacyDSN(options))
	if err != nil {
		return nil, fmt.Errorf("open legacy database: %w", err)
	}
	src.SetMaxOpenConns(4)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := src.PingContext(pingCtx); err != nil {
		src.Close()
		return nil, fmt.Errorf("ping legacy database: %w", err)
	}
	return src, nil
}

// Validate checks connectivity and the presence of the expected legacy schema.
func (l *LegacyImporter) Validate(ctx context.Context, options Options) error {
	var errs ValidationErrors
	if options.LegacyDBHost == "" {
		errs = append(errs, ValidationError{Field: "legacy_db_host", Message: "required"})
	}
	if options.LegacyDBName == "" {
		errs = append(errs, ValidationError{Field: "legacy_db_name", Message: "required"})
	}
	if options.LegacyDBUser == "" {
		errs = append(errs, ValidationError{Field: "legacy_db_user", Message: "required"})
	}
	if !options.SkipTracks && !options.SkipMedia && options.LegacyMediaPath == "" {
		errs = append(errs, ValidationError{Field: "legacy_media_path", Message: "required unless media copy is skipped"})
	}
	if len(errs) > 0 {
		return errs
	}

	src, err := l.connect(ctx, options)
	if err != nil {
		return err
	}
	defer src.Close()

	for _, table := range []string{`"User"`, `"Track"`, `"Playlist"`} {
		var one int
		if err := src.QueryRowContext(ctx, `SELECT 1 FROM `+table+` LIMIT 1`).Scan(&one); err != nil && err != sql.ErrNoRows {
			return fmt.Errorf("legacy table %s not readable: %w", table, err)
		}
	}

	if !options.SkipTracks && !options.SkipMedia {
		if err := ValidateSourceDirectory(options.LegacyMediaPath); err != nil {
			return fmt.Errorf("legacy media path: %w", err)
		}
	}

	return nil
}

// Analyze counts what an import would create without making changes.
func (l *LegacyImporter) Analyze(ctx context.Context, options Options) (*Result, error) {
	src, err := l.connect(ctx, options)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	result := &Result{Skipped: map[string]int{}}

	count := func(table string) (int, error) {
		var n int
		err := src.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+table).Scan(&n)
		return n, err
	}

	if !options.SkipUsers {
		if result.UsersCreated, err = count(`"User"`); err != nil {
			return nil, fmt.Errorf("count users: %w", err)
		}
	}
	if !options.SkipTracks {
		if result.TracksCreated, err = count(`"Track"`); err != nil {
			return nil, fmt.Errorf("count tracks: %w", err)
		}
	}
	if !options.SkipPlaylists {
		if result.PlaylistsCreated, err = count(`"Playlist"`); err != nil {
			return nil, fmt.Errorf("count playlists: %w", err)
		}
	}
	if !options.SkipSocial {
		if result.LikesCreated, err = count(`"TrackLike"`); err != nil {
			return nil, fmt.Errorf("count likes: %w", err)
		}
		if result.CommentsCreated, err = count(`"Comment"`); err != nil {
			return nil, fmt.Errorf("count comments: %w", err)
		}
		if result.FollowsCreated, err = count(`"Follow"`); err != nil {
			return nil, fmt.Errorf("count follows: %w", err)
		}
	}
	if !options.SkipHistory {
		if result.HistoryCreated, err = count(`"ListeningHistory"`); err != nil {
			return nil, fmt.Errorf("count history: %w", err)
		}
	}

	return result, nil
}

// importState carries ID mappings and running totals through the phases.
type importState struct {
	users     map[string]string // legacy user id -> new uuid
	tracks    map[string]string // legacy track id -> new uuid
	playlists map[string]string

	progress Progress
	callback ProgressCallback
	result   *Result
}

func (st *importState) step(phase, step string) {
	st.progress.Phase = phase
	st.progress.CurrentStep = step
	if st.progress.TotalSteps > 0 {
		st.progress.Percentage = float64(st.progress.CompletedSteps) / float64(st.progress.TotalSteps) * 100
	}
	st.progress.StepHistory = append(st.progress.StepHistory, ProgressStep{
		At:         time.Now(),
		Phase:      phase,
		Step:       step,
		Percentage: st.progress.Percentage,
	})
	if len(st.progress.StepHistory) > 50 {
		st.progress.StepHistory = st.progress.StepHistory[len(st.progress.StepHistory)-50:]
	}
	if st.callback != nil {
		st.callback(st.progress)
	}
}

func (st *importState) completeStep() {
	st.progress.CompletedSteps++
}

// Import copies users, tracks, playlists, social data and listening history
// from the legacy database into the current schema, generating new UUIDs and
// recording old-to-new mappings in the result.
func (l *LegacyImporter) Import(ctx context.Context, options Options, progressCallback ProgressCallback) (*Result, error) {
	src, err := l.connect(ctx, options)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	st := &importState{
		users:     map[string]string{},
		tracks:    map[string]string{},
		playlists: map[string]string{},
		callback:  progressCallback,
		result: &Result{
			Skipped:  map[string]int{},
			Mappings: map[string]Mapping{},
		},
		progress: Progress{
			Phase:      "starting",
			TotalSteps: 5,
			StartTime:  time.Now(),
		},
	}

	if !options.SkipUsers {
		st.step("users", "importing users")
		if err := l.importUsers(ctx, src, st); err != nil {
			return nil, fmt.Errorf("import users: %w", err)
		}
	}
	st.completeStep()

	if !options.SkipTracks {
		st.step("tracks", "importing tracks")
		if err := l.importTracks(ctx, src, options, st); err != nil {
			return nil, fmt.Errorf("import tracks: %w", err)
		}
	}
	st.completeStep()

	if !options.SkipPlaylists {
		st.step("playlists", "importing playlists")
		if err := l.importPlaylists(ctx, src, st); err != nil {
			return nil, fmt.Errorf("import playlists: %w", err)
		}
	}
	st.completeStep()

	if !options.SkipSocial {
		st.step("social", "importing likes, comments and follows")
		if err := l.importSocial(ctx, src, st); err != nil {
			return nil, fmt.Errorf("import social data: %w", err)
		}
	}
	st.completeStep()

	if !options.SkipHistory {
		st.step("history", "importing listening history")
		if err := l.importHistory(ctx, src, st); err != nil {
			return nil, fmt.Errorf("import history: %w", err)
		}
	}
	st.completeStep()

	st.step("done", "import complete")
	return st.result, nil
}

func (l *LegacyImporter) importUsers(ctx context.Context, src *sql.DB, st *importState) error {
	rows, err := src.QueryContext(ctx, `
		SELECT id, email, username, password, COALESCE("displayName", ''),
		       COALESCE(bio, ''), COALESCE("avatarUrl", ''), role, "createdAt"
		FROM "User" ORDER BY "createdAt"`)
	if err != nil {
		return err
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var (
			oldID, email, username, password      string
			displayName, bio, avatarURL, roleName string
			createdAt                             time.Time
		)
		if err := rows.Scan(&oldID, &email, &username, &password, &displayName, &bio, &avatarURL, &roleName, &createdAt); err != nil {
			return err
		}

		role := models.RoleUser
		if strings.EqualFold(roleName, "admin") {
			role = models.RoleAdmin
		}

		newID := uuid.NewString()
		st.users[oldID] = newID
		st.result.Mappings["user:"+oldID] = Mapping{OldID: oldID, NewID: newID, Type: "user", Name: username}

		// Legacy passwords are bcrypt hashes and stay valid as-is.
		users = append(users, models.User{
			ID:          newID,
			Email:       email,
			Username:    username,
			Password:    password,
			DisplayName: displayName,
			Bio:         bio,
			Role:        role,
			CreatedAt:   createdAt,
		})
		st.progress.UsersTotal++
	}
	if err := rows.Err(); err != nil {
		return err
	}

	if len(users) > 0 {
		if err := l.db.WithContext(ctx).CreateInBatches(users, 200).Error; err != nil {
			return fmt.Errorf("insert users: %w", err)
		}
	}

	st.progress.UsersImported = len(users)
	st.result.UsersCreated = len(users)
	l.logger.Info().Int("count", len(users)).Msg("imported users")
	return nil
}

// legacyTrack is one row from the legacy "Track" table.
type legacyTrack struct {
	oldID       string
	userID      string
	title       string
	genre       string
	description string
	audioPath   string
	artworkPath string
	duration    float64
	playCount   int64
	createdAt   time.Time
}

func (l *LegacyImporter) importTracks(ctx context.Context, src *sql.DB, options Options, st *importState) error {
	rows, err := src.QueryContext(ctx, `
		SELECT id, "userId", title, COALESCE(genre, ''), COALESCE(description, ''),
		       "audioPath", COALESCE("artworkPath", ''), COALESCE(duration, 0),
		       COALESCE("playCount", 0), "createdAt"
		FROM "Track" ORDER BY "createdAt"`)
	if err != nil {
		return err
	}
	defer rows.Close()

	var legacy []legacyTrack
	for rows.Next() {
		var t legacyTrack
		if err := rows.Scan(&t.oldID, &t.userID, &t.title, &t.genre, &t.description,
			&t.audioPath, &t.artworkPath, &t.duration, &t.playCount, &t.createdAt); err != nil {
			return err
		}
		legacy = append(legacy, t)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	st.progress.TracksTotal = len(legacy)

	// Assign new IDs first so file copies can target them.
	newIDs := make(map[string]string, len(legacy))
	var copyJobs []FileCopyJob
	for _, t := range legacy {
		if _, ok := st.users[t.userID]; !ok {
			st.result.Skipped["tracks_missing_owner"]++
			continue
		}
		newID := uuid.NewString()
		newIDs[t.oldID] = newID

		if !options.SkipMedia {
			audioSrc := ResolveFilePath(options.LegacyMediaPath, t.audioPath)
			size, _ := GetFileSize(audioSrc)
			copyJobs = append(copyJobs, FileCopyJob{
				SourcePath: audioSrc,
				Kind:       media.KindAudio,
				AssetID:    newID,
				Extension:  filepath.Ext(t.audioPath),
				FileSize:   size,
			})
			if t.artworkPath != "" {
				artSrc := ResolveFilePath(options.LegacyMediaPath, t.artworkPath)
				artSize, _ := GetFileSize(artSrc)
				copyJobs = append(copyJobs, FileCopyJob{
					SourcePath: artSrc,
					Kind:       media.KindArtwork,
					AssetID:    newID,
					Extension:  filepath.Ext(t.artworkPath),
					FileSize:   artSize,
				})
			}
		}
	}

	// Copy media files in parallel, then map storage keys back by asset.
	audioKeys := map[string]string{}
	artworkKeys := map[string]string{}
	if len(copyJobs) > 0 {
		copyOpts := DefaultCopyOptions()
		copyOpts.SourceRoot = options.LegacyMediaPath
		copyOpts.ProgressCallback = func(copied, total int) {
			st.progress.MediaCopied = copied
			if st.callback != nil {
				st.callback(st.progress)
			}
		}
		results, err := l.fileOps.CopyFiles(ctx, copyJobs, copyOpts)
		if err != nil {
			return fmt.Errorf("copy media files: %w", err)
		}
		for _, res := range results {
			if !res.Success {
				continue
			}
			st.result.MediaFilesCopied++
			switch res.Kind {
			case media.KindAudio:
				audioKeys[res.AssetID] = res.StorageKey
			case media.KindArtwork:
				artworkKeys[res.AssetID] = res.StorageKey
			}
		}
	}

	var tracks []models.Track
	for _, t := range legacy {
		newID, ok := newIDs[t.oldID]
		if !ok {
			continue
		}

		audioKey := audioKeys[newID]
		if !options.SkipMedia && audioKey == "" {
			// A native track without audio can never play.
			st.result.Skipped["tracks_missing_audio"]++
			st.result.Warnings = append(st.result.Warnings,
				fmt.Sprintf("track %q skipped: audio file missing", t.title))
			continue
		}

		st.tracks[t.oldID] = newID
		st.result.Mappings["track:"+t.oldID] = Mapping{OldID: t.oldID, NewID: newID, Type: "track", Name: t.title}

		tracks = append(tracks, models.Track{
			ID:          newID,
			UserID:      st.users[t.userID],
			Title:       t.title,
			Genre:       t.genre,
			Description: t.description,
			AudioKey:    audioKey,
			ArtworkKey:  artworkKeys[newID],
			Duration:    t.duration,
			PlayCount:   t.playCount,
			CreatedAt:   t.createdAt,
		})
	}

	if len(tracks) > 0 {
		if err := l.db.WithContext(ctx).CreateInBatches(tracks, 200).Error; err != nil {
			return fmt.Errorf("insert tracks: %w", err)
		}
	}

	st.progress.TracksImported = len(tracks)
	st.result.TracksCreated = len(tracks)
	l.logger.Info().
		Int("count", len(tracks)).
		Int("media_copied", st.result.MediaFilesCopied).
		Msg("imported tracks")
	return nil
}

func (l *LegacyImporter) importPlaylists(ctx context.Context, src *sql.DB, st *importState) error {
	rows, err := src.QueryContext(ctx, `
		SELECT id, "userId", title, COALESCE(description, ''), COALESCE(public, true), "createdAt"
		FROM "Playlist" ORDER BY "createdAt"`)
	if err != nil {
		return err
	}
	defer rows.Close()

	var playlists []models.Playlist
	for rows.Next() {
		var (
			oldID, userID, title, description string
			public                            bool
			createdAt                         time.Time
		)
		if err := rows.Scan(&oldID, &userID, &title, &description, &public, &createdAt); err != nil {
			return err
		}
		ownerID, ok := st.users[userID]
		if !ok {
			st.result.Skipped["playlists_missing_owner"]++
			continue
		}

		newID := uuid.NewString()
		st.playlists[oldID] = newID
		st.result.Mappings["playlist:"+oldID] = Mapping{OldID: oldID, NewID: newID, Type: "playlist", Name: title}

		playlists = append(playlists, models.Playlist{
			ID:          newID,
			UserID:      ownerID,
			Title:       title,
			Description: description,
			Public:      public,
			CreatedAt:   createdAt,
		})
	}
	if err := rows.Err(); err != nil {
		return err
	}
	st.progress.PlaylistsTotal = len(playlists)

	if len(playlists) > 0 {
		if err := l.db.WithContext(ctx).CreateInBatches(playlists, 200).Error; err != nil {
			return fmt.Errorf("insert playlists: %w", err)
		}
	}

	itemRows, err := src.QueryContext(ctx, `
		SELECT "playlistId", "trackId", position, "createdAt"
		FROM "PlaylistTrack" ORDER BY "playlistId", position`)
	if err != nil {
		return err
	}
	defer itemRows.Close()

	var items []models.PlaylistTrack
	for itemRows.Next() {
		var (
			playlistID, trackID string
			position            int
			createdAt           time.Time
		)
		if err := itemRows.Scan(&playlistID, &trackID, &position, &createdAt); err != nil {
			return err
		}
		newPlaylistID, okP := st.playlists[playlistID]
		newTrackID, okT := st.tracks[trackID]
		if !okP || !okT {
			st.result.Skipped["playlist_items_unresolved"]++
			continue
		}
		items = append(items, models.PlaylistTrack{
			PlaylistID: newPlaylistID,
			TrackID:    newTrackID,
			Position:   position,
			CreatedAt:  createdAt,
		})
	}
	if err := itemRows.Err(); err != nil {
		return err
	}

	if len(items) > 0 {
		if err := l.db.WithContext(ctx).CreateInBatches(items, 500).Error; err != nil {
			return fmt.Errorf("insert playlist items: %w", err)
		}
	}

	st.progress.PlaylistsImported = len(playlists)
	st.result.PlaylistsCreated = len(playlists)
	l.logger.Info().Int("playlists", len(playlists)).Int("items", len(items)).Msg("imported playlists")
	return nil
}

func (l *LegacyImporter) importSocial(ctx context.Context, src *sql.DB, st *importState) error {
	likeRows, err := src.QueryContext(ctx, `
		SELECT "userId", "trackId", "soundcloudTrackId", "soundcloudTitle", "soundcloudArtist",
		       "soundcloudArtworkUrl", "soundcloudSourceUrl", "soundcloudDuration", "createdAt"
		FROM "TrackLike"`)
	if err != nil {
		return err
	}
	defer likeRows.Close()

	var likes []models.Like
	for likeRows.Next() {
		var userID string
		var trackID, scTrackID, scTitle, scArtist, scArtwork, scSource sql.NullString
		var scDuration sql.NullFloat64
		var createdAt time.Time
		err := likeRows.Scan(&userID, &trackID, &scTrackID, &scTitle, &scArtist,
			&scArtwork, &scSource, &scDuration, &createdAt)
		if err != nil {
			return err
		}
		newUserID, okU := st.users[userID]
		if !okU {
			st.result.Skipped["likes_unresolved"]++
			continue
		}

		switch {
		case trackID.Valid:
			newTrackID, okT := st.tracks[trackID.String]
			if !okT {
				st.result.Skipped["likes_unresolved"]++
				continue
			}
			likes = append(likes, models.Like{
				UserID:    newUserID,
				TrackRef:  newTrackID,
				TrackID:   &newTrackID,
				CreatedAt: createdAt,
			})
		case scTrackID.Valid && scTrackID.String != "":
			likes = append(likes, models.Like{
				UserID:               newUserID,
				TrackRef:             "soundcloud_" + scTrackID.String,
				SoundcloudTitle:      scTitle.String,
				SoundcloudArtist:     scArtist.String,
				SoundcloudArtworkURL: scArtwork.String,
				SoundcloudSourceURL:  scSource.String,
				SoundcloudDuration:   scDuration.Float64,
				CreatedAt:            createdAt,
			})
		default:
			st.result.Skipped["likes_unresolved"]++
		}
	}
	if err := likeRows.Err(); err != nil {
		return err
	}
	if len(likes) > 0 {
		if err := l.db.WithContext(ctx).CreateInBatches(likes, 500).Error; err != nil {
			return fmt.Errorf("insert likes: %w", err)
		}
	}

	commentRows, err := src.QueryContext(ctx, `
		SELECT id, "userId", "trackId", body, "createdAt" FROM "Comment" ORDER BY "createdAt"`)
	if err != nil {
		return err
	}
	defer commentRows.Close()

	var comments []models.Comment
	for commentRows.Next() {
		var oldID, userID, trackID, body string
		var createdAt time.Time
		if err := commentRows.Scan(&oldID, &userID, &trackID, &body, &createdAt); err != nil {
			return err
		}
		newUserID, okU := st.users[userID]
		newTrackID, okT := st.tracks[trackID]
		if !okU || !okT {
			st.result.Skipped["comments_unresolved"]++
			continue
		}
		comments = append(comments, models.Comment{
			ID:        uuid.NewString(),
			UserID:    newUserID,
			TrackID:   newTrackID,
			Body:      body,
			CreatedAt: createdAt,
		})
	}
	if err := commentRows.Err(); err != nil {
		return err
	}
	if len(comments) > 0 {
		if err := l.db.WithContext(ctx).CreateInBatches(comments, 500).Error; err != nil {
			return fmt.Errorf("insert comments: %w", err)
		}
	}

	followRows, err := src.QueryContext(ctx, `SELECT "followerId", "followeeId", "createdAt" FROM "Follow"`)
	if err != nil {
		return err
	}
	defer followRows.Close()

	var follows []models.Follow
	for followRows.Next() {
		var followerID, followeeID string
		var createdAt time.Time
		if err := followRows.Scan(&followerID, &followeeID, &createdAt); err != nil {
			return err
		}
		newFollowerID, okA := st.users[followerID]
		newFolloweeID, okB := st.users[followeeID]
		if !okA || !okB {
			st.result.Skipped["follows_unresolved"]++
			continue
		}
		follows = append(follows, models.Follow{
			FollowerID: newFollowerID,
			FolloweeID: newFolloweeID,
			CreatedAt:  createdAt,
		})
	}
	if err := followRows.Err(); err != nil {
		return err
	}
	if len(follows) > 0 {
		if err := l.db.WithContext(ctx).CreateInBatches(follows, 500).Error; err != nil {
			return fmt.Errorf("insert follows: %w", err)
		}
	}

	st.result.LikesCreated = len(likes)
	st.result.CommentsCreated = len(comments)
	st.result.FollowsCreated = len(follows)
	l.logger.Info().
		Int("likes", len(likes)).
		Int("comments", len(comments)).
		Int("follows", len(follows)).
		Msg("imported social data")
	return nil
}

func (l *LegacyImporter) importHistory(ctx context.Context, src *sql.DB, st *importState) error {
	rows, err := src.QueryContext(ctx, `
		SELECT id, "userId", "trackId", COALESCE("scTitle", ''), COALESCE("scArtist", ''),
		       COALESCE("scArtworkUrl", ''), COALESCE("scSourceUrl", ''), COALESCE("scTrackId", ''),
		       "playedAt"
		FROM "ListeningHistory" ORDER BY "playedAt"`)
	if err != nil {
		return err
	}
	defer rows.Close()

	var entries []models.ListeningHistory
	for rows.Next() {
		var (
			oldID, userID                              string
			trackID                                    sql.NullString
			scTitle, scArtist, scArtwork, scSource, sc string
			playedAt                                   time.Time
		)
		if err := rows.Scan(&oldID, &userID, &trackID, &scTitle, &scArtist, &scArtwork, &scSource, &sc, &playedAt); err != nil {
			return err
		}
		newUserID, ok := st.users[userID]
		if !ok {
			st.result.Skipped["history_unresolved"]++
			continue
		}

		entry := models.ListeningHistory{
			ID:       uuid.NewString(),
			UserID:   newUserID,
			PlayedAt: playedAt,
		}

		switch {
		case trackID.Valid:
			newTrackID, ok := st.tracks[trackID.String]
			if !ok {
				st.result.Skipped["history_unresolved"]++
				continue
			}
			entry.TrackRef = newTrackID
			entry.TrackID = &newTrackID
		case sc != "":
			entry.TrackRef = "soundcloud_" + sc
			entry.SoundcloudTitle = scTitle
			entry.SoundcloudArtist = scArtist
			entry.SoundcloudArtworkURL = scArtwork
			entry.SoundcloudSourceURL = scSource
		default:
			st.result.Skipped["history_unresolved"]++
			continue
		}

		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	st.progress.HistoryTotal = len(entries)

	if len(entries) > 0 {
		if err := l.db.WithContext(ctx).CreateInBatches(entries, 500).Error; err != nil {
			return fmt.Errorf("insert history: %w", err)
		}
	}

	st.progress.HistoryImported = len(entries)
	st.result.HistoryCreated = len(entries)
	l.logger.Info().Int("count", len(entries)).Msg("imported listening history")
	return nil
}
