/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package player

// RetryPolicy decides whether a failed play attempt for a track may be
// retried after re-resolution. Exactly one retry is ever granted; there is
// no open-ended loop.
type RetryPolicy func(track Track) bool

// RetryThirdPartyOnly grants the single retry only for third-party tracks.
// Native URLs do not expire, so retrying a native failure is pointless.
func RetryThirdPartyOnly(track Track) bool {
	return track.ThirdParty()
}

// retryBudget converts a policy decision into the per-load retry count.
func retryBudget(policy RetryPolicy, track Track) int {
	if policy != nil && policy(track) {
		return 1
	}
	return 0
}
