/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/friendsincode/waveform/internal/auth"
	"github.com/friendsincode/waveform/internal/db"
	"github.com/friendsincode/waveform/internal/models"
)

var seedFile string

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database from a YAML fixture file",
	Long: `Seed users, tracks and playlists from a YAML fixture file.

Existing rows are matched by email (users) and title+owner (tracks,
playlists); matches are skipped so the command is safe to re-run.

Example fixture:

  users:
    - email: admin@example.com
      username: admin
      password: change-me-now
      role: admin
    - email: ada@example.com
      username: ada
      password: hunter2-hunter2

  tracks:
    - owner: ada@example.com
      title: First Light
      genre: ambient

  playlists:
    - owner: ada@example.com
      title: Morning
      tracks: [First Light]
`,
	RunE: runSeed,
}

func init() {
	seedCmd.Flags().StringVar(&seedFile, "file", "", "Path to YAML fixture file (required)")
	seedCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(seedCmd)
}

type seedFixture struct {
	Users []struct {
		Email       string `yaml:"email"`
		Username    string `yaml:"username"`
		Password    string `yaml:"password"`
		DisplayName string `yaml:"display_name"`
		Role        string `yaml:"role"`
	} `yaml:"users"`
	Tracks []struct {
		Owner       string  `yaml:"owner"` // user email
		Title       string  `yaml:"title"`
		Genre       string  `yaml:"genre"`
		Description string  `yaml:"description"`
		Duration    float64 `yaml:"duration"`
	} `yaml:"tracks"`
	Playlists []struct {
		Owner  string   `yaml:"owner"`
		Title  string   `yaml:"title"`
		Public *bool    `yaml:"public"`
		Tracks []string `yaml:"tracks"` // track titles
	} `yaml:"playlists"`
}

func runSeed(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	data, err := os.ReadFile(seedFile)
	if err != nil {
		return fmt.Errorf("read fixture: %w", err)
	}

	var fixture seedFixture
	if err := yaml.Unmarshal(data, &fixture); err != nil {
		return fmt.Errorf("parse fixture: %w", err)
	}

	database, err := initDatabase()
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	if err := db.Migrate(database); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	usersByEmail := map[string]models.User{}
	created := struct{ users, tracks, playlists int }{}

	for _, u := range fixture.Users {
		email := strings.ToLower(strings.TrimSpace(u.Email))
		if email == "" || u.Username == "" {
			return fmt.Errorf("user fixture needs email and username")
		}

		var existing models.User
		err := database.Where("email = ?", email).First(&existing).Error
		if err == nil {
			usersByEmail[email] = existing
			logger.Info().Str("email", email).Msg("user exists, skipping")
			continue
		}

		if len(u.Password) < 8 {
			return fmt.Errorf("user %s: password must be at least 8 characters", email)
		}
		hash, err := auth.HashPassword(u.Password)
		if err != nil {
			return fmt.Errorf("hash password for %s: %w", email, err)
		}

		role := models.RoleUser
		if strings.EqualFold(u.Role, string(models.RoleAdmin)) {
			role = models.RoleAdmin
		}

		user := models.User{
			ID:          uuid.NewString(),
			Email:       email,
			Username:    u.Username,
			Password:    hash,
			DisplayName: u.DisplayName,
			Role:        role,
		}
		if user.DisplayName == "" {
			user.DisplayName = u.Username
		}
		if err := database.Create(&user).Error; err != nil {
			return fmt.Errorf("create user %s: %w", email, err)
		}
		usersByEmail[email] = user
		created.users++
		logger.Info().Str("email", email).Str("role", string(role)).Msg("user created")
	}

	tracksByTitle := map[string]models.Track{}
	for _, t := range fixture.Tracks {
		owner, ok := usersByEmail[strings.ToLower(t.Owner)]
		if !ok {
			if err := database.Where("email = ?", strings.ToLower(t.Owner)).First(&owner).Error; err != nil {
				return fmt.Errorf("track %q: owner %s not found", t.Title, t.Owner)
			}
		}

		var existing models.Track
		err := database.Where("user_id = ? AND title = ?", owner.ID, t.Title).First(&existing).Error
		if err == nil {
			tracksByTitle[t.Title] = existing
			continue
		}

		track := models.Track{
			ID:          uuid.NewString(),
			UserID:      owner.ID,
			Title:       t.Title,
			Genre:       t.Genre,
			Description: t.Description,
			Duration:    t.Duration,
		}
		if err := database.Create(&track).Error; err != nil {
			return fmt.Errorf("create track %q: %w", t.Title, err)
		}
		tracksByTitle[t.Title] = track
		created.tracks++
	}

	for _, p := range fixture.Playlists {
		owner, ok := usersByEmail[strings.ToLower(p.Owner)]
		if !ok {
			if err := database.Where("email = ?", strings.ToLower(p.Owner)).First(&owner).Error; err != nil {
				return fmt.Errorf("playlist %q: owner %s not found", p.Title, p.Owner)
			}
		}

		var existing models.Playlist
		if err := database.Where("user_id = ? AND title = ?", owner.ID, p.Title).First(&existing).Error; err == nil {
			continue
		}

		public := true
		if p.Public != nil {
			public = *p.Public
		}
		playlist := models.Playlist{
			ID:     uuid.NewString(),
			UserID: owner.ID,
			Title:  p.Title,
			Public: public,
		}
		if err := database.Create(&playlist).Error; err != nil {
			return fmt.Errorf("create playlist %q: %w", p.Title, err)
		}

		for i, title := range p.Tracks {
			track, ok := tracksByTitle[title]
			if !ok {
				logger.Warn().Str("playlist", p.Title).Str("track", title).Msg("playlist track not found, skipping")
				continue
			}
			item := models.PlaylistTrack{
				PlaylistID: playlist.ID,
				TrackID:    track.ID,
				Position:   i,
			}
			if err := database.Create(&item).Error; err != nil {
				return fmt.Errorf("add %q to playlist %q: %w", title, p.Title, err)
			}
		}
		created.playlists++
	}

	fmt.Printf("Seed complete: %d users, %d tracks, %d playlists created\n",
		created.users, created.tracks, created.playlists)
	return nil
}
