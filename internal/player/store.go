/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package player

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/friendsincode/waveform/internal/cache"
	"github.com/friendsincode/waveform/internal/events"
	"github.com/friendsincode/waveform/internal/models"
	"github.com/friendsincode/waveform/internal/telemetry"
)

// Store owns the per-user playback sessions. All player state lives here;
// nothing in the engine is a package-level global.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session

	resolver    *Resolver
	history     HistoryRecorder
	persist     StatePersister
	recommender Recommender
	bus         *events.Bus
	logger      zerolog.Logger
}

// StoreConfig wires the collaborators shared by all sessions.
type StoreConfig struct {
	Resolver    *Resolver
	History     HistoryRecorder
	Persist     StatePersister
	Recommender Recommender
	Bus         *events.Bus
	Logger      zerolog.Logger
}

// NewStore creates an empty session store.
func NewStore(cfg StoreConfig) *Store {
	return &Store{
		sessions:    make(map[string]*Session),
		resolver:    cfg.Resolver,
		history:     cfg.History,
		persist:     cfg.Persist,
		recommender: cfg.Recommender,
		bus:         cfg.Bus,
		logger:      cfg.Logger,
	}
}

// Session returns the user's session, creating it on first use.
func (st *Store) Session(userID string) *Session {
	st.mu.Lock()
	defer st.mu.Unlock()

	if sess, ok := st.sessions[userID]; ok {
		return sess
	}
	sess := NewSession(SessionConfig{
		UserID:      userID,
		Resolver:    st.resolver,
		History:     st.history,
		Persist:     st.persist,
		Recommender: st.recommender,
		Bus:         st.bus,
		Logger:      st.logger,
	})
	st.sessions[userID] = sess
	telemetry.PlayerActiveSessions.Set(float64(len(st.sessions)))
	return sess
}

// DBStatePersister stores player state in the database with a redis
// write-through so state reads avoid the database on the hot path.
type DBStatePersister struct {
	db     *gorm.DB
	cache  *cache.Cache
	logger zerolog.Logger
}

// NewStatePersister creates a database-backed state persister. The cache
// may be nil.
func NewStatePersister(db *gorm.DB, c *cache.Cache, logger zerolog.Logger) *DBStatePersister {
	return &DBStatePersister{
		db:     db,
		cache:  c,
		logger: logger.With().Str("component", "player_state").Logger(),
	}
}

// Load restores a user's persisted volume, mute flag, and last-played
// track. Absent or corrupt values degrade to defaults.
func (p *DBStatePersister) Load(ctx context.Context, userID string) (float64, bool, *Track) {
	if p.cache != nil {
		if cached, ok := p.cache.GetPlayerState(ctx, userID); ok {
			return cached.Volume, cached.Muted, decodeTrack(cached.LastPlayedTrack)
		}
	}

	var row models.PlayerState
	if err := p.db.WithContext(ctx).First(&row, "user_id = ?", userID).Error; err != nil {
		return 1, false, nil
	}

	volume := row.Volume
	if volume < 0 || volume > 1 {
		volume = 1
	}
	last := decodeTrack(row.LastPlayedTrack)

	if p.cache != nil {
		_ = p.cache.SetPlayerState(ctx, &cache.CachedPlayerState{
			UserID:          userID,
			LastPlayedTrack: row.LastPlayedTrack,
			Volume:          volume,
			Muted:           row.Muted,
		})
	}

	return volume, row.Muted, last
}

// SaveVolume persists volume and mute asynchronously.
func (p *DBStatePersister) SaveVolume(userID string, volume float64, muted bool) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		row := models.PlayerState{UserID: userID, Volume: volume, Muted: muted, UpdatedAt: time.Now()}
		err := p.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"volume", "muted", "updated_at"}),
		}).Create(&row).Error
		if err != nil {
			p.logger.Debug().Err(err).Str("user_id", userID).Msg("save volume failed")
			return
		}
		if p.cache != nil {
			_ = p.cache.InvalidatePlayerState(ctx, userID)
		}
	}()
}

// SaveLastPlayed persists the last-played track asynchronously.
func (p *DBStatePersister) SaveLastPlayed(userID string, track Track) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		data, err := json.Marshal(track)
		if err != nil {
			p.logger.Debug().Err(err).Str("user_id", userID).Msg("marshal last played failed")
			return
		}

		row := models.PlayerState{UserID: userID, LastPlayedTrack: data, Volume: 1, UpdatedAt: time.Now()}
		err = p.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"last_played_track", "updated_at"}),
		}).Create(&row).Error
		if err != nil {
			p.logger.Debug().Err(err).Str("user_id", userID).Msg("save last played failed")
			return
		}
		if p.cache != nil {
			_ = p.cache.InvalidatePlayerState(ctx, userID)
		}
	}()
}

// decodeTrack parses a stored track blob, returning nil for corrupt or
// absent data.
func decodeTrack(data []byte) *Track {
	if len(data) == 0 {
		return nil
	}
	var track Track
	if err := json.Unmarshal(data, &track); err != nil {
		return nil
	}
	if track.ID == "" {
		return nil
	}
	return &track
}
