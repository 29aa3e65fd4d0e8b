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
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type fakeOutput struct {
	mu      sync.Mutex
	loads   []string
	plays   int
	pauses  int
	seeks   []float64
	volumes []float64
}

func (f *fakeOutput) Load(url string) {
	f.mu.Lock()
	f.loads = append(f.loads, url)
	f.mu.Unlock()
}

func (f *fakeOutput) Play() {
	f.mu.Lock()
	f.plays++
	f.mu.Unlock()
}

func (f *fakeOutput) Pause() {
	f.mu.Lock()
	f.pauses++
	f.mu.Unlock()
}

func (f *fakeOutput) Seek(position float64) {
	f.mu.Lock()
	f.seeks = append(f.seeks, position)
	f.mu.Unlock()
}

func (f *fakeOutput) SetVolume(volume float64) {
	f.mu.Lock()
	f.volumes = append(f.volumes, volume)
	f.mu.Unlock()
}

func (f *fakeOutput) loadedURLs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.loads...)
}

func (f *fakeOutput) lastVolume() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.volumes) == 0 {
		return -1
	}
	return f.volumes[len(f.volumes)-1]
}

func (f *fakeOutput) seekCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.seeks)
}

type fakeRecorder struct {
	mu      sync.Mutex
	records []string
}

func (f *fakeRecorder) Record(_ string, track Track) {
	f.mu.Lock()
	f.records = append(f.records, track.ID)
	f.mu.Unlock()
}

func (f *fakeRecorder) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records)
}

type fakeRecommender struct {
	mu     sync.Mutex
	recs   []Track
	err    error
	askFor []string
}

func (f *fakeRecommender) Recommend(_ context.Context, track Track) ([]Track, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.askFor = append(f.askFor, track.ID)
	return append([]Track(nil), f.recs...), f.err
}

func (f *fakeRecommender) asks() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.askFor)
}

type fakePersister struct {
	mu           sync.Mutex
	volume       float64
	muted        bool
	last         *Track
	savedVolumes []float64
	savedMuted   []bool
	savedTracks  []string
}

func (f *fakePersister) Load(context.Context, string) (float64, bool, *Track) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.volume, f.muted, f.last
}

func (f *fakePersister) SaveVolume(_ string, volume float64, muted bool) {
	f.mu.Lock()
	f.savedVolumes = append(f.savedVolumes, volume)
	f.savedMuted = append(f.savedMuted, muted)
	f.mu.Unlock()
}

func (f *fakePersister) SaveLastPlayed(_ string, track Track) {
	f.mu.Lock()
	f.savedTracks = append(f.savedTracks, track.ID)
	f.mu.Unlock()
}

type sessionFixture struct {
	out         *fakeOutput
	streams     *fakeStreams
	recorder    *fakeRecorder
	recommender *fakeRecommender
	sess        *Session
}

func newFixture(t *testing.T) *sessionFixture {
	t.Helper()
	f := &sessionFixture{
		out:         &fakeOutput{},
		streams:     &fakeStreams{},
		recorder:    &fakeRecorder{},
		recommender: &fakeRecommender{},
	}
	f.sess = NewSession(SessionConfig{
		UserID:      "u1",
		Output:      f.out,
		Resolver:    NewResolver(f.streams, time.Second, zerolog.Nop()),
		History:     f.recorder,
		Recommender: f.recommender,
		Logger:      zerolog.Nop(),
		RandSeed:    1,
	})
	return f
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestPlayTrackSameTrackToggles(t *testing.T) {
	f := newFixture(t)
	track := nativeTrack("t1")

	if err := f.sess.PlayTrack(context.Background(), track, -1, nil, false); err != nil {
		t.Fatalf("play failed: %v", err)
	}
	f.sess.HandleStarted()
	if f.sess.Snapshot().State != StatePlaying {
		t.Fatalf("state = %s, want playing", f.sess.Snapshot().StateName)
	}

	// Same track while playing pauses immediately.
	if err := f.sess.PlayTrack(context.Background(), track, -1, nil, false); err != nil {
		t.Fatalf("toggle pause failed: %v", err)
	}
	if f.sess.Snapshot().State != StatePaused {
		t.Fatalf("state = %s, want paused", f.sess.Snapshot().StateName)
	}

	// Same track while paused resumes; no reload, no re-resolution.
	if err := f.sess.PlayTrack(context.Background(), track, -1, nil, false); err != nil {
		t.Fatalf("toggle resume failed: %v", err)
	}
	f.sess.HandleStarted()
	if f.sess.Snapshot().State != StatePlaying {
		t.Fatalf("state = %s, want playing", f.sess.Snapshot().StateName)
	}
	if got := f.out.loadedURLs(); len(got) != 1 {
		t.Fatalf("loads = %v, want exactly one", got)
	}
}

func TestToggleWithoutTrack(t *testing.T) {
	f := newFixture(t)
	if err := f.sess.Toggle(); !errors.Is(err, ErrNoCurrentTrack) {
		t.Fatalf("expected ErrNoCurrentTrack, got %v", err)
	}
}

func TestAutoplayPrefersContextQueue(t *testing.T) {
	f := newFixture(t)
	ctxTracks := tracks("c1", "c2", "c3")
	f.sess.Queue().SetGlobal(tracks("g1", "g2"), "")

	if err := f.sess.PlayTrack(context.Background(), ctxTracks[0], -1, ctxTracks, true); err != nil {
		t.Fatalf("play failed: %v", err)
	}
	f.sess.HandleStarted()
	f.sess.HandleEnded()

	waitFor(t, "advance to c2", func() bool {
		snap := f.sess.Snapshot()
		return snap.CurrentTrack != nil && snap.CurrentTrack.ID == "c2"
	})
}

func TestAutoplayFallsBackToGlobalLibrary(t *testing.T) {
	f := newFixture(t)
	global := tracks("c1", "g2", "g3")
	f.sess.Queue().SetGlobal(global, "")

	// Single-track context: exhausted on first end.
	if err := f.sess.PlayTrack(context.Background(), global[0], 0, tracks("c1"), true); err != nil {
		t.Fatalf("play failed: %v", err)
	}
	f.sess.HandleStarted()
	f.sess.HandleEnded()

	waitFor(t, "fallback to g2", func() bool {
		snap := f.sess.Snapshot()
		return snap.CurrentTrack != nil && snap.CurrentTrack.ID == "g2"
	})
}

func TestLoopRestartsWithoutAdvancing(t *testing.T) {
	f := newFixture(t)
	ctxTracks := tracks("c1", "c2")

	if err := f.sess.PlayTrack(context.Background(), ctxTracks[0], -1, ctxTracks, true); err != nil {
		t.Fatalf("play failed: %v", err)
	}
	f.sess.HandleStarted()
	f.sess.SetLoop(true)
	f.sess.HandleEnded()

	snap := f.sess.Snapshot()
	if snap.CurrentTrack == nil || snap.CurrentTrack.ID != "c1" {
		t.Fatalf("loop advanced to %+v", snap.CurrentTrack)
	}
	if snap.State != StatePlaying || snap.Position != 0 {
		t.Fatalf("state = %s pos = %f, want playing at 0", snap.StateName, snap.Position)
	}
	if f.out.seekCount() != 1 {
		t.Fatalf("seeks = %d, want 1 (restart)", f.out.seekCount())
	}
	// The restart replays the same load; no second history record.
	if f.recorder.count() != 1 {
		t.Fatalf("history records = %d, want 1", f.recorder.count())
	}
}

func TestExhaustionAdoptsRecommendations(t *testing.T) {
	f := newFixture(t)
	ctxTracks := tracks("c1")
	f.recommender.recs = tracks("c1", "r1", "r2")

	if err := f.sess.PlayTrack(context.Background(), ctxTracks[0], -1, ctxTracks, true); err != nil {
		t.Fatalf("play failed: %v", err)
	}
	f.sess.HandleStarted()
	f.sess.HandleEnded()

	// r1 is chosen over c1 to avoid an immediate repeat, and the recs
	// become the new context queue.
	waitFor(t, "recommended track start", func() bool {
		snap := f.sess.Snapshot()
		return snap.CurrentTrack != nil && snap.CurrentTrack.ID == "r1" && snap.ContextSize == 3
	})

	// The adopted set is now the context queue: when r1 ends, r2 plays
	// sequentially without asking for recommendations again.
	f.sess.HandleStarted()
	f.sess.HandleEnded()

	waitFor(t, "advance within adopted context", func() bool {
		snap := f.sess.Snapshot()
		return snap.CurrentTrack != nil && snap.CurrentTrack.ID == "r2"
	})
	if got := f.recommender.asks(); got != 1 {
		t.Fatalf("recommendation fetches = %d, want 1", got)
	}
}

func TestExhaustionWithNoRecommendationsGoesIdle(t *testing.T) {
	f := newFixture(t)
	ctxTracks := tracks("c1")

	if err := f.sess.PlayTrack(context.Background(), ctxTracks[0], -1, ctxTracks, true); err != nil {
		t.Fatalf("play failed: %v", err)
	}
	f.sess.HandleStarted()
	f.sess.HandleEnded()

	waitFor(t, "terminal idle", func() bool {
		snap := f.sess.Snapshot()
		return snap.State == StateIdle && snap.CurrentTrack == nil
	})
}

func TestMandatoryResolutionFailureKeepsPreviousTrack(t *testing.T) {
	f := newFixture(t)

	if err := f.sess.PlayTrack(context.Background(), nativeTrack("t1"), -1, nil, false); err != nil {
		t.Fatalf("play failed: %v", err)
	}
	f.sess.HandleStarted()

	f.streams.resolve = func(context.Context, string) (*Resolution, error) {
		return nil, errors.New("upstream down")
	}
	err := f.sess.PlayTrack(context.Background(), externalTrack("a"), -1, nil, false)
	if !errors.Is(err, ErrResolutionFailed) {
		t.Fatalf("expected ErrResolutionFailed, got %v", err)
	}

	// The previous track was never unloaded and the state is restored.
	snap := f.sess.Snapshot()
	if snap.CurrentTrack == nil || snap.CurrentTrack.ID != "t1" {
		t.Fatalf("previous track lost: %+v", snap.CurrentTrack)
	}
	if snap.State != StatePlaying {
		t.Fatalf("state = %s, want playing restored", snap.StateName)
	}
	if got := f.out.loadedURLs(); len(got) != 1 {
		t.Fatalf("loads = %v, want only the first track", got)
	}
}

func TestOpportunisticRefreshFailurePlaysStaleURL(t *testing.T) {
	f := newFixture(t)
	f.streams.resolve = func(context.Context, string) (*Resolution, error) {
		return nil, errors.New("upstream down")
	}

	track := externalTrack("a")
	track.AudioURL = "https://cdn.example/stream/stale"

	if err := f.sess.PlayTrack(context.Background(), track, -1, nil, false); err != nil {
		t.Fatalf("degrade path errored: %v", err)
	}
	got := f.out.loadedURLs()
	if len(got) != 1 || got[0] != track.AudioURL {
		t.Fatalf("loads = %v, want the stale url", got)
	}
}

func TestStaleResolutionDiscarded(t *testing.T) {
	f := newFixture(t)

	entered := make(chan struct{})
	release := make(chan struct{})
	f.streams.resolve = func(_ context.Context, _ string) (*Resolution, error) {
		close(entered)
		<-release
		return &Resolution{AudioURL: "https://cdn.example/stream/slow"}, nil
	}

	done := make(chan error, 1)
	go func() {
		done <- f.sess.PlayTrack(context.Background(), externalTrack("slow"), -1, nil, false)
	}()
	<-entered

	// A second request lands while the first is still resolving.
	if err := f.sess.PlayTrack(context.Background(), nativeTrack("t2"), -1, nil, false); err != nil {
		t.Fatalf("second play failed: %v", err)
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("superseded play should not error: %v", err)
	}

	snap := f.sess.Snapshot()
	if snap.CurrentTrack == nil || snap.CurrentTrack.ID != "t2" {
		t.Fatalf("stale resolution clobbered newer state: %+v", snap.CurrentTrack)
	}
	for _, url := range f.out.loadedURLs() {
		if url == "https://cdn.example/stream/slow" {
			t.Fatal("stale stream url reached the output")
		}
	}
}

func TestDeviceErrorRetriesExternalOnce(t *testing.T) {
	f := newFixture(t)

	urls := []string{"https://cdn.example/stream/first", "https://cdn.example/stream/second"}
	f.streams.resolve = func(_ context.Context, _ string) (*Resolution, error) {
		f.streams.mu.Lock()
		n := f.streams.calls
		f.streams.mu.Unlock()
		if n > len(urls) {
			n = len(urls)
		}
		return &Resolution{AudioURL: urls[n-1]}, nil
	}

	if err := f.sess.PlayTrack(context.Background(), externalTrack("a"), -1, nil, false); err != nil {
		t.Fatalf("play failed: %v", err)
	}
	f.sess.HandleStarted()

	// First device error: one transparent re-resolve and reload.
	f.sess.HandleError("network error")
	waitFor(t, "retry load", func() bool {
		got := f.out.loadedURLs()
		return len(got) == 2 && got[1] == urls[1]
	})
	if f.sess.Snapshot().CurrentTrack == nil {
		t.Fatal("retry dropped the current track")
	}

	// Second error on the same load is terminal.
	f.sess.HandleError("network error")
	waitFor(t, "terminal idle", func() bool {
		snap := f.sess.Snapshot()
		return snap.State == StateIdle && snap.CurrentTrack == nil
	})
}

func TestDeviceErrorNativeIsTerminal(t *testing.T) {
	f := newFixture(t)

	if err := f.sess.PlayTrack(context.Background(), nativeTrack("t1"), -1, nil, false); err != nil {
		t.Fatalf("play failed: %v", err)
	}
	f.sess.HandleStarted()
	f.sess.HandleError("decode error")

	snap := f.sess.Snapshot()
	if snap.State != StateIdle || snap.CurrentTrack != nil {
		t.Fatalf("native error not terminal: %s %+v", snap.StateName, snap.CurrentTrack)
	}
	if f.streams.callCount() != 0 {
		t.Fatal("native error triggered a re-resolve")
	}
}

func TestToggleResumeGetsNoRetry(t *testing.T) {
	f := newFixture(t)

	if err := f.sess.PlayTrack(context.Background(), externalTrack("a"), -1, nil, false); err != nil {
		t.Fatalf("play failed: %v", err)
	}
	f.sess.HandleStarted()

	if err := f.sess.Toggle(); err != nil {
		t.Fatalf("pause failed: %v", err)
	}
	if err := f.sess.Toggle(); err != nil {
		t.Fatalf("resume failed: %v", err)
	}

	// A plain toggle implies no track switch, so a failure here is terminal.
	f.sess.HandleError("network error")
	snap := f.sess.Snapshot()
	if snap.State != StateIdle || snap.CurrentTrack != nil {
		t.Fatalf("toggle resume error not terminal: %s", snap.StateName)
	}
}

func TestPlayTrackResumeRearmsRetry(t *testing.T) {
	f := newFixture(t)
	track := externalTrack("a")

	if err := f.sess.PlayTrack(context.Background(), track, -1, nil, false); err != nil {
		t.Fatalf("play failed: %v", err)
	}
	f.sess.HandleStarted()

	// Pause then resume through PlayTrack: the stream may have gone stale
	// while paused, so the retry budget is restored.
	if err := f.sess.PlayTrack(context.Background(), track, -1, nil, false); err != nil {
		t.Fatalf("pause failed: %v", err)
	}
	if err := f.sess.PlayTrack(context.Background(), track, -1, nil, false); err != nil {
		t.Fatalf("resume failed: %v", err)
	}

	f.sess.HandleError("network error")
	waitFor(t, "retry load", func() bool {
		return len(f.out.loadedURLs()) == 2
	})
}

func TestSeekClampsToDuration(t *testing.T) {
	f := newFixture(t)

	if err := f.sess.PlayTrack(context.Background(), nativeTrack("t1"), -1, nil, false); err != nil {
		t.Fatalf("play failed: %v", err)
	}
	f.sess.HandleStarted()

	f.sess.Seek(150)
	if pos := f.sess.Snapshot().Position; pos != 100 {
		t.Fatalf("position = %f, want clamped to 100", pos)
	}

	f.sess.Seek(-5)
	if pos := f.sess.Snapshot().Position; pos != 0 {
		t.Fatalf("position = %f, want clamped to 0", pos)
	}

	before := f.out.seekCount()
	f.sess.Seek(math.NaN())
	f.sess.Seek(math.Inf(1))
	if f.out.seekCount() != before {
		t.Fatal("invalid seek values reached the output")
	}
}

func TestSeekWithoutDurationIsNoOp(t *testing.T) {
	f := newFixture(t)
	f.sess.Seek(10)
	if f.out.seekCount() != 0 {
		t.Fatal("seek with no loaded track reached the output")
	}
}

func TestSeekSuppressesPositionFeedback(t *testing.T) {
	f := newFixture(t)

	if err := f.sess.PlayTrack(context.Background(), nativeTrack("t1"), -1, nil, false); err != nil {
		t.Fatalf("play failed: %v", err)
	}
	f.sess.HandleStarted()

	f.sess.Seek(50)
	f.sess.HandleTimeUpdate(10)
	if pos := f.sess.Snapshot().Position; pos != 50 {
		t.Fatalf("position snapped back to %f during suppression", pos)
	}

	time.Sleep(seekSuppressWindow + 20*time.Millisecond)
	f.sess.HandleTimeUpdate(60)
	if pos := f.sess.Snapshot().Position; pos != 60 {
		t.Fatalf("position = %f after suppression window, want 60", pos)
	}
}

func TestVolumeZeroImpliesMuted(t *testing.T) {
	f := newFixture(t)

	f.sess.SetVolume(0)
	snap := f.sess.Snapshot()
	if !snap.Muted || snap.Volume != 0 {
		t.Fatalf("volume 0 did not mute: %+v", snap)
	}

	f.sess.SetVolume(0.5)
	snap = f.sess.Snapshot()
	if snap.Muted || snap.Volume != 0.5 {
		t.Fatalf("nonzero volume did not unmute: %+v", snap)
	}
}

func TestMutePreservesStoredVolume(t *testing.T) {
	f := newFixture(t)
	f.sess.SetVolume(0.7)

	f.sess.ToggleMute()
	snap := f.sess.Snapshot()
	if !snap.Muted || snap.Volume != 0.7 {
		t.Fatalf("mute altered stored volume: %+v", snap)
	}
	if f.out.lastVolume() != 0 {
		t.Fatalf("output volume = %f while muted, want 0", f.out.lastVolume())
	}

	f.sess.ToggleMute()
	if f.out.lastVolume() != 0.7 {
		t.Fatalf("output volume = %f after unmute, want 0.7", f.out.lastVolume())
	}
}

func TestVolumeClampsAndRejectsInvalid(t *testing.T) {
	f := newFixture(t)

	f.sess.SetVolume(1.8)
	if v := f.sess.Snapshot().Volume; v != 1 {
		t.Fatalf("volume = %f, want clamped to 1", v)
	}

	f.sess.SetVolume(math.NaN())
	if v := f.sess.Snapshot().Volume; v != 1 {
		t.Fatalf("NaN volume applied: %f", v)
	}
}

func TestHistoryRecordedOncePerLoad(t *testing.T) {
	f := newFixture(t)
	track := nativeTrack("t1")

	if err := f.sess.PlayTrack(context.Background(), track, -1, nil, false); err != nil {
		t.Fatalf("play failed: %v", err)
	}
	f.sess.HandleStarted()
	if f.recorder.count() != 1 {
		t.Fatalf("records = %d after start, want 1", f.recorder.count())
	}

	// Pause/resume cycles re-fire the device started event without a new load.
	if err := f.sess.PlayTrack(context.Background(), track, -1, nil, false); err != nil {
		t.Fatalf("pause failed: %v", err)
	}
	if err := f.sess.PlayTrack(context.Background(), track, -1, nil, false); err != nil {
		t.Fatalf("resume failed: %v", err)
	}
	f.sess.HandleStarted()
	if f.recorder.count() != 1 {
		t.Fatalf("records = %d after resume, want 1", f.recorder.count())
	}

	// A new load records again.
	if err := f.sess.PlayTrack(context.Background(), nativeTrack("t2"), -1, nil, false); err != nil {
		t.Fatalf("second play failed: %v", err)
	}
	f.sess.HandleStarted()
	if f.recorder.count() != 2 {
		t.Fatalf("records = %d after second track, want 2", f.recorder.count())
	}
}

func TestNewSessionRestoresPersistedState(t *testing.T) {
	last := nativeTrack("t9")
	persist := &fakePersister{volume: 0.4, muted: true, last: &last}

	sess := NewSession(SessionConfig{
		UserID:   "u1",
		Output:   &fakeOutput{},
		Resolver: NewResolver(&fakeStreams{}, time.Second, zerolog.Nop()),
		Persist:  persist,
		Logger:   zerolog.Nop(),
		RandSeed: 1,
	})

	snap := sess.Snapshot()
	if snap.Volume != 0.4 || !snap.Muted {
		t.Fatalf("volume/mute not restored: %+v", snap)
	}
	if snap.LastPlayedTrack == nil || snap.LastPlayedTrack.ID != "t9" {
		t.Fatalf("last played not restored: %+v", snap.LastPlayedTrack)
	}
	if snap.State != StateIdle || snap.CurrentTrack != nil {
		t.Fatal("restore must not auto-resume playback")
	}
}

func TestManualNextIgnoresLoop(t *testing.T) {
	f := newFixture(t)
	ctxTracks := tracks("c1", "c2")

	if err := f.sess.PlayTrack(context.Background(), ctxTracks[0], -1, ctxTracks, true); err != nil {
		t.Fatalf("play failed: %v", err)
	}
	f.sess.HandleStarted()
	f.sess.SetLoop(true)

	if err := f.sess.Next(context.Background()); err != nil {
		t.Fatalf("next failed: %v", err)
	}
	snap := f.sess.Snapshot()
	if snap.CurrentTrack == nil || snap.CurrentTrack.ID != "c2" {
		t.Fatalf("manual skip blocked by loop: %+v", snap.CurrentTrack)
	}
}

func TestStoreCreatesOneSessionPerUser(t *testing.T) {
	st := NewStore(StoreConfig{
		Resolver: NewResolver(&fakeStreams{}, time.Second, zerolog.Nop()),
		Logger:   zerolog.Nop(),
	})

	a := st.Session("u1")
	b := st.Session("u1")
	c := st.Session("u2")

	if a != b {
		t.Fatal("same user produced distinct sessions")
	}
	if a == c {
		t.Fatal("distinct users shared a session")
	}
}
