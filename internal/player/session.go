/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package player

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/waveform/internal/events"
	"github.com/friendsincode/waveform/internal/telemetry"
)

// ErrNoCurrentTrack is returned by operations that require a loaded track.
var ErrNoCurrentTrack = errors.New("no current track")

// seekSuppressWindow is how long position updates from the device are
// ignored after a seek, so the observed position does not snap back to a
// stale pre-seek value delivered by the device's update cadence.
const seekSuppressWindow = 150 * time.Millisecond

// Recommender supplies autoplay candidates once both queue tiers are
// exhausted.
type Recommender interface {
	Recommend(ctx context.Context, track Track) ([]Track, error)
}

// StatePersister stores per-user player preferences across sessions.
// Implementations must swallow their own failures; persistence never
// affects playback.
type StatePersister interface {
	Load(ctx context.Context, userID string) (volume float64, muted bool, lastPlayed *Track)
	SaveVolume(userID string, volume float64, muted bool)
	SaveLastPlayed(userID string, track Track)
}

// Session drives one user's audio output through the playback state
// machine. All mutation goes through its methods; observers read
// snapshots or subscribe to bus events.
type Session struct {
	mu sync.Mutex

	userID      string
	out         Output
	resolver    *Resolver
	queue       *Queue
	history     HistoryRecorder
	persist     StatePersister
	recommender Recommender
	retryPolicy RetryPolicy
	bus         *events.Bus
	logger      zerolog.Logger

	state      State
	current    *Track
	lastPlayed *Track
	position   float64
	duration   float64
	volume     float64
	muted      bool

	// playSeq is the monotonic request token: every track-switch request
	// bumps it, and a resolution result is applied only if the token still
	// matches. Last call wins; stale responses never clobber newer state.
	playSeq uint64

	retryRemaining    int
	historyArmed      bool
	seekSuppressUntil time.Time
}

// SessionConfig wires a session's collaborators.
type SessionConfig struct {
	UserID      string
	Output      Output
	Resolver    *Resolver
	History     HistoryRecorder
	Persist     StatePersister
	Recommender Recommender
	RetryPolicy RetryPolicy
	Bus         *events.Bus
	Logger      zerolog.Logger
	RandSeed    int64
}

// NewSession creates a session and restores persisted volume and the
// last-played track.
func NewSession(cfg SessionConfig) *Session {
	out := cfg.Output
	if out == nil {
		out = nullOutput{}
	}
	policy := cfg.RetryPolicy
	if policy == nil {
		policy = RetryThirdPartyOnly
	}
	seed := cfg.RandSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	s := &Session{
		userID:      cfg.UserID,
		out:         out,
		resolver:    cfg.Resolver,
		queue:       NewQueue(seed),
		history:     cfg.History,
		persist:     cfg.Persist,
		recommender: cfg.Recommender,
		retryPolicy: policy,
		bus:         cfg.Bus,
		logger:      cfg.Logger.With().Str("component", "player").Str("user_id", cfg.UserID).Logger(),
		state:       StateIdle,
		volume:      1,
	}

	if s.persist != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		volume, muted, last := s.persist.Load(ctx, cfg.UserID)
		if volume >= 0 && volume <= 1 {
			s.volume = volume
		}
		s.muted = muted
		s.lastPlayed = last
	}

	return s
}

// AttachOutput replaces the session's audio output. Passing nil detaches
// the current one.
func (s *Session) AttachOutput(out Output) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if out == nil {
		s.out = nullOutput{}
		return
	}
	s.out = out
	s.out.SetVolume(s.effectiveVolume())
}

// Queue exposes the session's queue for context/global manipulation.
func (s *Session) Queue() *Queue {
	return s.queue
}

// PlayTrack is the single entry point for starting playback. Requesting
// the already-current track toggles pause/resume; a different track
// replaces the context queue (when one is supplied), resolves the stream
// URL, and starts playback.
func (s *Session) PlayTrack(ctx context.Context, track Track, index int, contextTracks []Track, hasContext bool) error {
	s.mu.Lock()

	if s.current != nil && s.current.ID == track.ID {
		switch s.state {
		case StatePlaying:
			s.out.Pause()
			s.setStateLocked(StatePaused)
			s.mu.Unlock()
			return nil
		case StatePaused:
			// Resume. If the stream URL has gone stale in the meantime,
			// the device error handler gets one transparent re-resolve.
			s.retryRemaining = retryBudget(s.retryPolicy, *s.current)
			s.out.Play()
			s.mu.Unlock()
			return nil
		default:
			// Loading or idle with the same id: a switch is in flight.
			s.mu.Unlock()
			return nil
		}
	}

	if hasContext {
		s.queue.SetContext(contextTracks, track.ID)
	} else {
		s.queue.ClearContext()
	}
	s.queue.SetGlobalIndex(index)

	s.mu.Unlock()
	return s.startTrack(ctx, track)
}

// startTrack resolves and loads a track, guarded by the request token.
func (s *Session) startTrack(ctx context.Context, track Track) error {
	s.mu.Lock()
	s.playSeq++
	token := s.playSeq
	prevState := s.state
	s.setStateLocked(StateLoading)
	s.mu.Unlock()

	resolved, err := s.resolver.Resolve(ctx, track)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.playSeq != token {
		// A newer request superseded this one while it resolved.
		s.logger.Debug().Str("track_id", track.ID).Msg("discarding stale resolution")
		return nil
	}

	if err != nil {
		// The previous track (if any) was never stopped; return to it.
		s.setStateLocked(prevState)
		s.publishError(track, err)
		return err
	}

	s.beginLoadLocked(resolved)
	return nil
}

// beginLoadLocked assigns the resolved track to the device and starts
// playback. Caller holds the lock.
func (s *Session) beginLoadLocked(track Track) {
	s.current = &track
	s.position = 0
	s.duration = track.Duration
	s.retryRemaining = retryBudget(s.retryPolicy, track)
	s.historyArmed = true

	last := track
	s.lastPlayed = &last
	if s.persist != nil {
		s.persist.SaveLastPlayed(s.userID, last)
	}

	s.out.Load(track.AudioURL)
	s.out.SetVolume(s.effectiveVolume())
	s.out.Play()

	s.queue.Relocate(track.ID)

	if s.bus != nil {
		s.bus.Publish(events.EventTrackStarted, events.Payload{
			"user_id": s.userID,
			"track":   track,
		})
	}
	s.publishStateLocked()
}

// Toggle pauses when playing and resumes when paused. Unlike a PlayTrack
// toggle, a resume failure here gets no automatic retry: no track switch
// is implied.
func (s *Session) Toggle() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return ErrNoCurrentTrack
	}
	switch s.state {
	case StatePlaying:
		s.out.Pause()
		s.setStateLocked(StatePaused)
	case StatePaused:
		s.retryRemaining = 0
		s.out.Play()
	}
	return nil
}

// Seek clamps to [0, duration] and suppresses device position feedback
// for a short window. NaN and infinite values are ignored, as is a seek
// when no valid duration is known.
func (s *Session) Seek(position float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if math.IsNaN(position) || math.IsInf(position, 0) {
		return
	}

	duration := s.duration
	if (duration <= 0 || math.IsNaN(duration) || math.IsInf(duration, 0)) && s.current != nil {
		duration = s.current.Duration
	}
	if duration <= 0 || math.IsNaN(duration) || math.IsInf(duration, 0) {
		return
	}

	clamped := math.Max(0, math.Min(position, duration))
	s.out.Seek(clamped)
	s.position = clamped
	s.seekSuppressUntil = time.Now().Add(seekSuppressWindow)
	s.publishStateLocked()
}

// SetVolume sets the stored volume and mute-by-zero, and persists it.
func (s *Session) SetVolume(volume float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if math.IsNaN(volume) || math.IsInf(volume, 0) {
		return
	}
	volume = math.Max(0, math.Min(volume, 1))
	s.volume = volume
	s.muted = volume == 0
	s.out.SetVolume(s.effectiveVolume())
	if s.persist != nil {
		s.persist.SaveVolume(s.userID, s.volume, s.muted)
	}
	s.publishStateLocked()
}

// ToggleMute flips mute without touching the stored volume value.
func (s *Session) ToggleMute() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.muted = !s.muted
	s.out.SetVolume(s.effectiveVolume())
	if s.persist != nil {
		s.persist.SaveVolume(s.userID, s.volume, s.muted)
	}
	s.publishStateLocked()
}

// SetLoop toggles loop mode.
func (s *Session) SetLoop(on bool) {
	s.queue.SetLoop(on)
	s.mu.Lock()
	s.publishStateLocked()
	s.mu.Unlock()
}

// SetShuffle toggles shuffle mode.
func (s *Session) SetShuffle(on bool) {
	s.queue.SetShuffle(on)
	s.mu.Lock()
	s.publishStateLocked()
	s.mu.Unlock()
}

// Next skips to the next track: context queue first, then global library.
func (s *Session) Next(ctx context.Context) error {
	next := s.queue.NextManual()
	if next == nil {
		return ErrNoCurrentTrack
	}
	return s.startTrack(ctx, *next)
}

// Previous steps back: context queue first, then global library.
func (s *Session) Previous(ctx context.Context) error {
	prev := s.queue.PreviousManual()
	if prev == nil {
		return ErrNoCurrentTrack
	}
	return s.startTrack(ctx, *prev)
}

// Stop clears the current track and returns to idle.
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.out.Pause()
	s.current = nil
	s.position = 0
	s.duration = 0
	s.setStateLocked(StateIdle)
}

// Snapshot returns a copy of the observable state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	ctxLen, ctxIdx, globalLen, globalIdx := s.queue.Sizes()
	snap := Snapshot{
		State:        s.state,
		StateName:    s.state.String(),
		Position:     s.position,
		Duration:     s.duration,
		Volume:       s.volume,
		Muted:        s.muted,
		Loop:         s.queue.Loop(),
		Shuffle:      s.queue.Shuffle(),
		ContextSize:  ctxLen,
		ContextIndex: ctxIdx,
		GlobalSize:   globalLen,
		GlobalIndex:  globalIdx,
	}
	if s.current != nil {
		track := *s.current
		snap.CurrentTrack = &track
	}
	if s.lastPlayed != nil {
		track := *s.lastPlayed
		snap.LastPlayedTrack = &track
	}
	return snap
}

// Device event handlers. The attached output calls these as its event
// stream arrives.

// HandleStarted marks the session playing and fires the one-shot history
// record for this load.
func (s *Session) HandleStarted() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return
	}
	s.setStateLocked(StatePlaying)
	if s.historyArmed {
		s.historyArmed = false
		telemetry.PlayerTracksStarted.WithLabelValues(string(s.current.Source)).Inc()
		if s.history != nil {
			s.history.Record(s.userID, *s.current)
		}
	}
}

// HandlePaused records a device-initiated pause.
func (s *Session) HandlePaused() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StatePlaying {
		s.setStateLocked(StatePaused)
	}
}

// HandleTimeUpdate records the device position, unless a recent seek is
// still suppressing feedback.
func (s *Session) HandleTimeUpdate(position float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if time.Now().Before(s.seekSuppressUntil) {
		return
	}
	if math.IsNaN(position) || math.IsInf(position, 0) || position < 0 {
		return
	}
	s.position = position
}

// HandleDurationChange records the device-reported duration. Stored
// metadata stays authoritative when present.
func (s *Session) HandleDurationChange(duration float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if math.IsNaN(duration) || math.IsInf(duration, 0) || duration <= 0 {
		return
	}
	if s.duration <= 0 {
		s.duration = duration
	}
	if s.current != nil && s.current.Duration <= 0 {
		s.current.Duration = duration
	}
}

// HandleEnded runs the natural end-of-track decision chain.
func (s *Session) HandleEnded() {
	s.mu.Lock()

	finished := s.current
	if finished == nil {
		s.mu.Unlock()
		return
	}

	if s.bus != nil {
		s.bus.Publish(events.EventTrackEnded, events.Payload{
			"user_id": s.userID,
			"track":   *finished,
		})
	}

	decision := s.queue.NextAfterEnd()

	switch {
	case decision.Restart:
		s.position = 0
		s.out.Seek(0)
		s.out.Play()
		s.setStateLocked(StatePlaying)
		s.mu.Unlock()

	case decision.Next != nil:
		next := *decision.Next
		s.mu.Unlock()
		go func() {
			if err := s.startTrack(context.Background(), next); err != nil {
				s.logger.Debug().Err(err).Str("track_id", next.ID).Msg("autoplay start failed")
			}
		}()

	case decision.NeedRecommendations:
		last := *finished
		s.mu.Unlock()
		go s.adoptRecommendations(last)

	default:
		s.mu.Unlock()
	}
}

// adoptRecommendations fetches autoplay candidates for the finished track
// and installs them as the new context queue. Fetch failures terminate
// the autoplay chain silently.
func (s *Session) adoptRecommendations(finished Track) {
	var recs []Track
	if s.recommender != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		var err error
		recs, err = s.recommender.Recommend(ctx, finished)
		if err != nil {
			s.logger.Debug().Err(err).Str("track_ref", finished.ID).Msg("recommendation fetch failed")
			recs = nil
		}
	}

	chosen := s.queue.AdoptRecommendations(recs)
	if chosen == nil {
		s.mu.Lock()
		s.current = nil
		s.position = 0
		s.duration = 0
		s.setStateLocked(StateIdle)
		s.mu.Unlock()
		return
	}

	if err := s.startTrack(context.Background(), *chosen); err != nil {
		s.logger.Debug().Err(err).Str("track_id", chosen.ID).Msg("recommended track start failed")
	}
}

// HandleError reacts to a device load/playback failure. Third-party
// tracks get exactly one transparent re-resolve-and-retry; anything else
// is a terminal, user-visible error.
func (s *Session) HandleError(message string) {
	s.mu.Lock()

	current := s.current
	if current == nil {
		s.mu.Unlock()
		return
	}

	if s.retryRemaining > 0 && current.ThirdParty() {
		s.retryRemaining--
		retry := *current
		token := s.playSeq
		s.mu.Unlock()

		go func() {
			fresh, err := s.resolver.ResolveFresh(context.Background(), retry)

			s.mu.Lock()
			defer s.mu.Unlock()
			if s.playSeq != token {
				return
			}
			if err != nil {
				s.failTerminalLocked(retry, err)
				return
			}
			s.current = &fresh
			s.out.Load(fresh.AudioURL)
			s.out.Play()
		}()
		return
	}

	err := errors.New(message)
	track := *current
	s.failTerminalLocked(track, err)
	s.mu.Unlock()
}

// failTerminalLocked surfaces a terminal playback error and returns the
// session to a safe idle state. Caller holds the lock.
func (s *Session) failTerminalLocked(track Track, err error) {
	s.logger.Warn().Err(err).Str("track_id", track.ID).Msg("playback failed")
	telemetry.PlayerErrorsTotal.Inc()
	s.current = nil
	s.position = 0
	s.duration = 0
	s.setStateLocked(StateIdle)
	s.publishError(track, err)
}

func (s *Session) publishError(track Track, err error) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(events.EventPlayerError, events.Payload{
		"user_id":  s.userID,
		"track_id": track.ID,
		"error":    err.Error(),
	})
}

func (s *Session) setStateLocked(state State) {
	if s.state == state {
		return
	}
	s.state = state
	s.publishStateLocked()
}

func (s *Session) publishStateLocked() {
	if s.bus == nil {
		return
	}
	s.bus.Publish(events.EventStateChanged, events.Payload{
		"user_id":  s.userID,
		"snapshot": s.snapshotLocked(),
	})
}

func (s *Session) effectiveVolume() float64 {
	if s.muted {
		return 0
	}
	return s.volume
}
