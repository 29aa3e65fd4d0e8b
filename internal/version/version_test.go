/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package version

import (
	"testing"

	"github.com/rs/zerolog"
)

func TestCompareVersions(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"1.0.0", "1.0.0", 0},
		{"v1.0.0", "1.0.0", 0},
		{"0.9.1", "1.0.0", -1},
		{"1.0.0", "0.9.1", 1},
		{"1.2.0", "1.10.0", -1},
		{"1.0", "1.0.1", -1},
	}

	for _, tc := range cases {
		if got := compareVersions(tc.a, tc.b); got != tc.want {
			t.Errorf("compareVersions(%q, %q) = %d, want %d", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestTruncateNotes(t *testing.T) {
	if got := truncateNotes("first line\nsecond line", 200); got != "first line" {
		t.Errorf("truncateNotes = %q, want first line only", got)
	}

	long := truncateNotes("aaaaaaaaaaaaaaaaaaaa", 10)
	if len(long) != 10 || long[7:] != "..." {
		t.Errorf("truncated = %q, want 10 chars ending in ellipsis", long)
	}
}

func TestInfoBeforeFirstCheck(t *testing.T) {
	c := NewChecker(zerolog.Nop())

	info := c.Info()
	if info.CurrentVersion != Version {
		t.Errorf("current = %q, want %q", info.CurrentVersion, Version)
	}
	if info.UpdateAvailable || info.LatestVersion != "" {
		t.Errorf("unchecked info = %+v, want no update state", info)
	}
}
