/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/waveform/internal/auth"
	"github.com/friendsincode/waveform/internal/cache"
	"github.com/friendsincode/waveform/internal/events"
	"github.com/friendsincode/waveform/internal/logbuffer"
	"github.com/friendsincode/waveform/internal/media"
	"github.com/friendsincode/waveform/internal/models"
	"github.com/friendsincode/waveform/internal/player"
	"github.com/friendsincode/waveform/internal/recommend"
	"github.com/friendsincode/waveform/internal/soundcloud"
	"github.com/friendsincode/waveform/internal/version"
)

// API exposes HTTP handlers.
type API struct {
	db             *gorm.DB
	jwtSecret      []byte
	jwtTTL         time.Duration
	media          *media.Service
	soundcloud     *soundcloud.Client
	cache          *cache.Cache
	players        *player.Store
	recommender    *recommend.Service
	bus            *events.Bus
	logBuffer      *logbuffer.Buffer
	updates        *version.Checker
	logger         zerolog.Logger
	maxUploadBytes int64
	streamTTL      time.Duration
}

// Config wires the API's collaborators.
type Config struct {
	DB             *gorm.DB
	JWTSecret      []byte
	JWTTokenTTL    time.Duration
	Media          *media.Service
	SoundCloud     *soundcloud.Client
	Cache          *cache.Cache
	Players        *player.Store
	Recommender    *recommend.Service
	Bus            *events.Bus
	LogBuffer      *logbuffer.Buffer
	Updates        *version.Checker
	Logger         zerolog.Logger
	MaxUploadBytes int64
	StreamTTL      time.Duration
}

// New creates the API router wrapper.
func New(cfg Config) *API {
	ttl := cfg.JWTTokenTTL
	if ttl <= 0 {
		ttl = 72 * time.Hour
	}
	maxUpload := cfg.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = 256 << 20
	}

	return &API{
		db:             cfg.DB,
		jwtSecret:      cfg.JWTSecret,
		jwtTTL:         ttl,
		media:          cfg.Media,
		soundcloud:     cfg.SoundCloud,
		cache:          cfg.Cache,
		players:        cfg.Players,
		recommender:    cfg.Recommender,
		bus:            cfg.Bus,
		logBuffer:      cfg.LogBuffer,
		updates:        cfg.Updates,
		logger:         cfg.Logger,
		maxUploadBytes: maxUpload,
		streamTTL:      cfg.StreamTTL,
	}
}

// Routes mounts API routes on provided router.
func (a *API) Routes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", a.handleHealth)

		// Public endpoints (no auth required)
		r.Post("/auth/register", a.handleRegister)
		r.Post("/auth/login", a.handleLogin)
		r.Get("/tracks", a.handleTracksList)
		r.Get("/tracks/{trackID}", a.handleTrackGet)
		r.Get("/tracks/{trackID}/comments", a.handleCommentsList)
		r.Get("/users/{userID}", a.handleUserGet)
		r.Get("/users/{userID}/tracks", a.handleUserTracks)
		r.Get("/users/{userID}/followers", a.handleFollowersList)
		r.Get("/users/{userID}/following", a.handleFollowingList)
		r.Get("/playlists/{playlistID}", a.handlePlaylistGet)
		r.Get("/soundcloud/search", a.handleSoundCloudSearch)

		r.Group(func(pr chi.Router) {
			pr.Use(a.authMiddleware())

			pr.Get("/auth/me", a.handleMe)
			pr.Patch("/auth/me", a.handleProfileUpdate)

			pr.Route("/tracks", func(r chi.Router) {
				r.Post("/", a.handleTrackUpload)
				r.Patch("/{trackID}", a.handleTrackUpdate)
				r.Delete("/{trackID}", a.handleTrackDelete)
				r.Get("/{trackID}/stream", a.handleTrackStream)
				r.Post("/{trackID}/like", a.handleLike)
				r.Delete("/{trackID}/like", a.handleUnlike)
				r.Post("/{trackID}/comments", a.handleCommentCreate)
			})
			pr.Delete("/comments/{commentID}", a.handleCommentDelete)

			pr.Route("/playlists", func(r chi.Router) {
				r.Get("/", a.handlePlaylistsList)
				r.Post("/", a.handlePlaylistCreate)
				r.Patch("/{playlistID}", a.handlePlaylistUpdate)
				r.Delete("/{playlistID}", a.handlePlaylistDelete)
				r.Post("/{playlistID}/tracks", a.handlePlaylistAddTrack)
				r.Delete("/{playlistID}/tracks/{trackID}", a.handlePlaylistRemoveTrack)
				r.Put("/{playlistID}/tracks", a.handlePlaylistReorder)
			})

			pr.Post("/users/{userID}/follow", a.handleFollow)
			pr.Delete("/users/{userID}/follow", a.handleUnfollow)

			pr.Get("/history", a.handleHistoryList)
			pr.Get("/likes", a.handleLikesList)
			pr.Get("/recommendations/{trackRef}", a.handleRecommendations)

			pr.Post("/soundcloud/resolve", a.handleSoundCloudResolve)
			pr.Post("/soundcloud/like", a.handleSoundCloudLike)
			pr.Get("/soundcloud/like", a.handleSoundCloudLikeCheck)
			pr.Post("/soundcloud/import", a.handleSoundCloudImport)

			pr.Route("/player", func(r chi.Router) {
				r.Get("/state", a.handlePlayerState)
				r.Post("/play", a.handlePlayerPlay)
				r.Post("/toggle", a.handlePlayerToggle)
				r.Post("/seek", a.handlePlayerSeek)
				r.Post("/volume", a.handlePlayerVolume)
				r.Post("/mute", a.handlePlayerMute)
				r.Post("/next", a.handlePlayerNext)
				r.Post("/previous", a.handlePlayerPrevious)
				r.Post("/loop", a.handlePlayerLoop)
				r.Post("/shuffle", a.handlePlayerShuffle)
				r.Post("/stop", a.handlePlayerStop)
				r.Get("/queue", a.handlePlayerQueue)
				r.Post("/queue/global", a.handlePlayerSetGlobal)
				r.Delete("/queue/context", a.handlePlayerClearContext)
				r.Get("/output", a.handlePlayerOutput)
			})

			// System status routes (admin only)
			pr.Route("/system", func(r chi.Router) {
				r.Use(a.requireRoles(models.RoleAdmin))
				r.Get("/status", a.handleSystemStatus)
				r.Get("/logs", a.handleSystemLogs)
				r.Get("/logs/components", a.handleLogComponents)
				r.Get("/logs/stats", a.handleLogStats)
				r.Delete("/logs", a.handleClearLogs)
				r.Post("/cache/flush", a.handleCacheFlush)
			})

			pr.Get("/events", a.handleEvents)
		})
	})
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *API) authMiddleware() func(http.Handler) http.Handler {
	return auth.Middleware(a.jwtSecret)
}

func (a *API) requireRoles(allowed ...models.RoleName) func(http.Handler) http.Handler {
	allowedSet := make(map[string]struct{}, len(allowed))
	for _, role := range allowed {
		allowedSet[string(role)] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := auth.ClaimsFromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			for _, role := range claims.Roles {
				if _, exists := allowedSet[role]; exists {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeError(w, http.StatusForbidden, "insufficient_role")
		})
	}
}

// optionalUserID returns the requester's user id when a valid token is
// present, without failing the request. Public endpoints that behave
// differently for the owner use this; their routes carry no auth
// middleware, so the bearer token is parsed here.
func (a *API) optionalUserID(r *http.Request) (string, bool) {
	if claims, ok := auth.ClaimsFromContext(r.Context()); ok && claims.UserID != "" {
		return claims.UserID, true
	}

	header := r.Header.Get("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	claims, err := auth.Parse(a.jwtSecret, strings.TrimSpace(parts[1]))
	if err != nil || claims.UserID == "" {
		return "", false
	}
	return claims.UserID, true
}

// currentUserID extracts the authenticated user id, or writes 401.
func (a *API) currentUserID(w http.ResponseWriter, r *http.Request) (string, bool) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok || claims.UserID == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return "", false
	}
	return claims.UserID, true
}

func parseEventTypes(raw string) []events.EventType {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]events.EventType, 0, len(parts))
	for _, part := range parts {
		if part == "" {
			continue
		}
		out = append(out, events.EventType(strings.TrimSpace(part)))
	}
	return out
}

// paginate reads limit/offset query params with sane bounds.
func paginate(r *http.Request, defaultLimit, maxLimit int) (int, int) {
	limit := defaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	offset := 0
	if raw := r.URL.Query().Get("offset"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
