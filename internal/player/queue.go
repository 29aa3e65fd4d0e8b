/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package player

import (
	"math/rand"
	"sync"
)

// Queue maintains the two-tier track pools: the context queue the current
// play action came from (a playlist, a search page) and the global library
// fallback. The two indices track different lists and are validated
// independently.
type Queue struct {
	mu sync.Mutex

	global      []Track
	globalIndex int // index of the current track within global, -1 if absent

	context      []Track
	contextIndex int // index of the current track within context, -1 if absent

	loop    bool
	shuffle bool

	rng *rand.Rand
}

// NewQueue creates an empty queue.
func NewQueue(seed int64) *Queue {
	return &Queue{
		globalIndex:  -1,
		contextIndex: -1,
		rng:          rand.New(rand.NewSource(seed)),
	}
}

// Decision is the outcome of the natural end-of-track transition.
type Decision struct {
	// Restart restarts the current track from position 0 (loop mode).
	Restart bool
	// Next is the track to play, when one was found in either tier.
	Next *Track
	// NeedRecommendations signals both tiers are exhausted; the caller
	// should fetch recommendations and call AdoptRecommendations.
	NeedRecommendations bool
	// Terminal means playback should stop (set only by AdoptRecommendations
	// callers when the fetch yields nothing).
	Terminal bool
}

// SetGlobal replaces the global library pool and locates currentID in it.
func (q *Queue) SetGlobal(tracks []Track, currentID string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.global = append([]Track(nil), tracks...)
	q.globalIndex = indexOf(q.global, currentID)
}

// SetGlobalIndex points the global index at a validated position.
func (q *Queue) SetGlobalIndex(index int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if index < 0 || index >= len(q.global) {
		q.globalIndex = -1
		return
	}
	q.globalIndex = index
}

// SetContext replaces the context queue and recomputes the context index
// by locating currentID within the new queue.
func (q *Queue) SetContext(tracks []Track, currentID string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.context = append([]Track(nil), tracks...)
	q.contextIndex = indexOf(q.context, currentID)
}

// ClearContext drops the context queue; play decisions fall back to the
// global library immediately.
func (q *Queue) ClearContext() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.context = nil
	q.contextIndex = -1
}

// Relocate repoints both indices at trackID after a track switch.
func (q *Queue) Relocate(trackID string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if idx := indexOf(q.context, trackID); idx >= 0 {
		q.contextIndex = idx
	}
	if idx := indexOf(q.global, trackID); idx >= 0 {
		q.globalIndex = idx
	}
}

// SetLoop toggles loop mode.
func (q *Queue) SetLoop(on bool) {
	q.mu.Lock()
	q.loop = on
	q.mu.Unlock()
}

// Loop reports loop mode.
func (q *Queue) Loop() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.loop
}

// SetShuffle toggles shuffle mode.
func (q *Queue) SetShuffle(on bool) {
	q.mu.Lock()
	q.shuffle = on
	q.mu.Unlock()
}

// Shuffle reports shuffle mode.
func (q *Queue) Shuffle() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.shuffle
}

// NextAfterEnd decides what plays after a natural end-of-track, in strict
// priority order: loop, context shuffle, context sequential, global
// shuffle, global sequential, then recommendations.
func (q *Queue) NextAfterEnd() Decision {
	q.mu.Lock()
	defer q.mu.Unlock()

	// 1. Loop restarts the same track; queues are never consulted.
	if q.loop {
		return Decision{Restart: true}
	}

	// 2. Context queue, shuffle: uniform pick, repeats permitted.
	if len(q.context) > 0 && q.shuffle {
		idx := q.rng.Intn(len(q.context))
		q.contextIndex = idx
		track := q.context[idx]
		return Decision{Next: &track}
	}

	// 3. Context queue, sequential.
	if len(q.context) > 0 && q.contextIndex >= 0 && q.contextIndex < len(q.context)-1 {
		q.contextIndex++
		track := q.context[q.contextIndex]
		return Decision{Next: &track}
	}

	// 4. Global library, shuffle.
	if len(q.global) > 0 && q.shuffle {
		idx := q.rng.Intn(len(q.global))
		q.globalIndex = idx
		track := q.global[idx]
		return Decision{Next: &track}
	}

	// 5. Global library, sequential.
	if len(q.global) > 0 && q.globalIndex >= 0 && q.globalIndex < len(q.global)-1 {
		q.globalIndex++
		track := q.global[q.globalIndex]
		return Decision{Next: &track}
	}

	// 6. Both tiers exhausted.
	return Decision{NeedRecommendations: true}
}

// AdoptRecommendations installs recs as the new context queue and returns
// the track to start, preferring one not present in the previous context
// queue to avoid an immediate repeat. Returns nil when recs is empty.
func (q *Queue) AdoptRecommendations(recs []Track) *Track {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(recs) == 0 {
		return nil
	}

	previous := make(map[string]struct{}, len(q.context))
	for _, t := range q.context {
		previous[t.ID] = struct{}{}
	}

	chosen := 0
	for i, t := range recs {
		if _, seen := previous[t.ID]; !seen {
			chosen = i
			break
		}
	}

	q.context = append([]Track(nil), recs...)
	q.contextIndex = chosen
	track := q.context[chosen]
	return &track
}

// NextManual returns the next track for an explicit skip: context first,
// then global. Unlike NextAfterEnd it ignores loop mode.
func (q *Queue) NextManual() *Track {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.context) > 0 && q.shuffle {
		idx := q.rng.Intn(len(q.context))
		q.contextIndex = idx
		track := q.context[idx]
		return &track
	}
	if len(q.context) > 0 && q.contextIndex >= 0 && q.contextIndex < len(q.context)-1 {
		q.contextIndex++
		track := q.context[q.contextIndex]
		return &track
	}
	if len(q.global) > 0 && q.shuffle {
		idx := q.rng.Intn(len(q.global))
		q.globalIndex = idx
		track := q.global[idx]
		return &track
	}
	if len(q.global) > 0 && q.globalIndex >= 0 && q.globalIndex < len(q.global)-1 {
		q.globalIndex++
		track := q.global[q.globalIndex]
		return &track
	}
	return nil
}

// PreviousManual returns the previous track: context first, then global.
func (q *Queue) PreviousManual() *Track {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.context) > 0 && q.contextIndex > 0 {
		q.contextIndex--
		track := q.context[q.contextIndex]
		return &track
	}
	if len(q.global) > 0 && q.globalIndex > 0 {
		q.globalIndex--
		track := q.global[q.globalIndex]
		return &track
	}
	return nil
}

// Sizes returns (context length, context index, global length, global index).
func (q *Queue) Sizes() (int, int, int, int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.context), q.contextIndex, len(q.global), q.globalIndex
}

// ContextTracks returns a copy of the context queue.
func (q *Queue) ContextTracks() []Track {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]Track(nil), q.context...)
}

func indexOf(tracks []Track, id string) int {
	if id == "" {
		return -1
	}
	for i, t := range tracks {
		if t.ID == id {
			return i
		}
	}
	return -1
}
