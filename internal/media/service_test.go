/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package media

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestBuildAssetPath(t *testing.T) {
	tests := []struct {
		name      string
		kind      string
		assetID   string
		extension string
		expected  string
	}{
		{
			name:      "standard path",
			kind:      "audio",
			assetID:   "abcd1234efgh5678",
			extension: ".mp3",
			expected:  "audio/ab/cd/abcd1234efgh5678.mp3",
		},
		{
			name:      "short assetID",
			kind:      "artwork",
			assetID:   "abc",
			extension: ".png",
			expected:  "artwork/abc.png",
		},
		{
			name:      "exactly 4 chars",
			kind:      "avatar",
			assetID:   "abcd",
			extension: ".jpg",
			expected:  "avatar/ab/cd/abcd.jpg",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := buildAssetPath(tt.kind, tt.assetID, tt.extension)
			if result != tt.expected {
				t.Errorf("buildAssetPath() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestFilesystemStorageRoundTrip(t *testing.T) {
	logger := zerolog.Nop()
	root := t.TempDir()
	fs := NewFilesystemStorage(root, logger)

	key, err := fs.Store(context.Background(), KindAudio, "abcd1234", ".mp3", strings.NewReader("payload"))
	if err != nil {
		t.Fatalf("Store: %v", err)
	}
	if key != filepath.Join("audio", "ab", "cd", "abcd1234.mp3") {
		t.Fatalf("unexpected key %q", key)
	}

	data, err := os.ReadFile(filepath.Join(root, key))
	if err != nil {
		t.Fatalf("read stored file: %v", err)
	}
	if string(data) != "payload" {
		t.Fatalf("unexpected file contents %q", data)
	}

	if err := fs.Delete(context.Background(), key); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, key)); !os.IsNotExist(err) {
		t.Fatalf("expected file to be removed, stat err=%v", err)
	}

	// Deleting a missing key is not an error.
	if err := fs.Delete(context.Background(), key); err != nil {
		t.Fatalf("Delete missing: %v", err)
	}
}

func TestFilesystemStorageCheckAccess(t *testing.T) {
	logger := zerolog.Nop()

	fs := NewFilesystemStorage(t.TempDir(), logger)
	if err := fs.CheckAccess(context.Background()); err != nil {
		t.Fatalf("CheckAccess on existing dir: %v", err)
	}

	missing := NewFilesystemStorage("/definitely/not/a/real/path", logger)
	if err := missing.CheckAccess(context.Background()); err == nil {
		t.Fatal("expected CheckAccess to fail for missing root")
	}
}

func TestS3StorageURL(t *testing.T) {
	s := &S3Storage{cfg: S3Config{
		Bucket:   "my-bucket",
		Region:   "us-east-1",
		Endpoint: "https://s3.example.com",
	}}

	url := s.URL("audio/ab/cd/file.mp3")
	expected := "https://s3.example.com/my-bucket/audio/ab/cd/file.mp3"
	if url != expected {
		t.Errorf("URL() = %v, want %v", url, expected)
	}

	s.cfg.PublicBaseURL = "https://cdn.example.com/"
	url = s.URL("audio/ab/cd/file.mp3")
	expected = "https://cdn.example.com/audio/ab/cd/file.mp3"
	if url != expected {
		t.Errorf("URL() with public base = %v, want %v", url, expected)
	}
}
