// Pressrank - News Reading Personalization Engine
// Copyright 2026 Pressrank Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pressrank/pressrank

package artifact

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

// memSlot is an in-memory Slot.
type memSlot struct {
	artifact *Artifact
	meta     *Metadata
	saveErr  error
}

func (m *memSlot) LoadArtifact() (*Artifact, error) {
	if m.artifact == nil {
		return nil, ErrNotFound
	}
	return m.artifact, nil
}

func (m *memSlot) SaveArtifact(a *Artifact, meta *Metadata) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.artifact = a
	m.meta = meta
	return nil
}

func (m *memSlot) LoadMetadata() (*Metadata, error) {
	if m.meta == nil {
		return nil, ErrNotFound
	}
	return m.meta, nil
}

func (m *memSlot) DeleteArtifact() error {
	m.artifact = nil
	m.meta = nil
	return nil
}

// stubSource is a Source with canned responses.
type stubSource struct {
	artifact *Artifact
	meta     *Metadata
	err      error
	fetches  int
}

func (s *stubSource) FetchArtifact(context.Context) (*Artifact, error) {
	s.fetches++
	if s.err != nil {
		return nil, s.err
	}
	return s.artifact, nil
}

func (s *stubSource) FetchMetadata(context.Context) (*Metadata, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.meta, nil
}

func TestFetchDownloadsAndCaches(t *testing.T) {
	slot := &memSlot{}
	source := &stubSource{artifact: validArtifact()}
	c := NewCache(slot, source, zerolog.Nop())

	got, err := c.Fetch(context.Background(), false)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if got.Version != "v20260815_093000" {
		t.Errorf("Version = %q, want %q", got.Version, "v20260815_093000")
	}
	if slot.artifact == nil {
		t.Error("artifact not cached after fetch")
	}
	if slot.meta == nil {
		t.Fatal("metadata not cached after fetch")
	}
	if slot.meta.FetchedAt.IsZero() {
		t.Error("metadata FetchedAt not stamped")
	}
}

func TestFetchPrefersCache(t *testing.T) {
	slot := &memSlot{artifact: validArtifact()}
	source := &stubSource{artifact: validArtifact()}
	c := NewCache(slot, source, zerolog.Nop())

	if _, err := c.Fetch(context.Background(), false); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if source.fetches != 0 {
		t.Errorf("source fetches = %d, want 0 (cache hit)", source.fetches)
	}

	// Force bypasses the cache.
	if _, err := c.Fetch(context.Background(), true); err != nil {
		t.Fatalf("Fetch(force) error = %v", err)
	}
	if source.fetches != 1 {
		t.Errorf("source fetches after force = %d, want 1", source.fetches)
	}
}

func TestFetchErrorPreservesCache(t *testing.T) {
	cached := validArtifact()
	slot := &memSlot{artifact: cached}
	source := &stubSource{err: ErrUnavailable}
	c := NewCache(slot, source, zerolog.Nop())

	if _, err := c.Fetch(context.Background(), true); !errors.Is(err, ErrUnavailable) {
		t.Errorf("Fetch(force) error = %v, want ErrUnavailable", err)
	}
	if got := c.LoadFromCache(); got == nil || got.Version != cached.Version {
		t.Errorf("cache after failed fetch = %+v, want previous artifact preserved", got)
	}
}

func TestFetchSaveFailureKeepsSlotConsistent(t *testing.T) {
	cached := validArtifact()
	cached.Version = "v_old"
	slot := &memSlot{
		artifact: cached,
		meta:     &Metadata{Version: "v_old"},
		saveErr:  errors.New("disk full"),
	}
	source := &stubSource{artifact: validArtifact()}
	c := NewCache(slot, source, zerolog.Nop())

	if _, err := c.Fetch(context.Background(), true); err == nil {
		t.Fatal("Fetch(force) error = nil, want non-nil")
	}

	// The slot must keep the previous artifact and metadata as a pair: a
	// failed save never leaves the new artifact behind a stale version.
	if got := c.LoadFromCache(); got == nil || got.Version != "v_old" {
		t.Errorf("LoadFromCache() after failed save = %+v, want previous v_old", got)
	}
	if got := c.Status(); got.Version != "v_old" {
		t.Errorf("Status().Version after failed save = %q, want %q", got.Version, "v_old")
	}
}

func TestFetchRejectsInvalidArtifact(t *testing.T) {
	cached := validArtifact()
	broken := validArtifact()
	broken.GlobalMean = nil

	slot := &memSlot{artifact: cached}
	source := &stubSource{artifact: broken}
	c := NewCache(slot, source, zerolog.Nop())

	if _, err := c.Fetch(context.Background(), true); !errors.Is(err, ErrInvalid) {
		t.Errorf("Fetch(force) error = %v, want ErrInvalid", err)
	}
	if got := c.LoadFromCache(); got == nil || got.Version != cached.Version {
		t.Errorf("cache after rejected fetch = %+v, want previous artifact preserved", got)
	}
}

func TestIsUpdateAvailable(t *testing.T) {
	tests := []struct {
		name   string
		local  *Metadata
		remote *Metadata
		err    error
		want   bool
	}{
		{"newer remote version", &Metadata{Version: "v1"}, &Metadata{Version: "v2"}, nil, true},
		{"same version", &Metadata{Version: "v1"}, &Metadata{Version: "v1"}, nil, false},
		{"no local metadata", nil, &Metadata{Version: "v1"}, nil, true},
		{"remote check fails", &Metadata{Version: "v1"}, nil, ErrUnavailable, false},
		{"empty remote version", &Metadata{Version: "v1"}, &Metadata{}, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			slot := &memSlot{meta: tt.local}
			source := &stubSource{meta: tt.remote, err: tt.err}
			c := NewCache(slot, source, zerolog.Nop())

			if got := c.IsUpdateAvailable(context.Background()); got != tt.want {
				t.Errorf("IsUpdateAvailable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLoadFromCache(t *testing.T) {
	t.Run("empty slot", func(t *testing.T) {
		c := NewCache(&memSlot{}, &stubSource{}, zerolog.Nop())
		if got := c.LoadFromCache(); got != nil {
			t.Errorf("LoadFromCache() = %+v, want nil", got)
		}
	})

	t.Run("invalid cached record", func(t *testing.T) {
		broken := validArtifact()
		broken.UserFactors = nil
		c := NewCache(&memSlot{artifact: broken}, &stubSource{}, zerolog.Nop())
		if got := c.LoadFromCache(); got != nil {
			t.Errorf("LoadFromCache() with invalid record = %+v, want nil", got)
		}
	})
}

func TestClearCacheAndStatus(t *testing.T) {
	slot := &memSlot{}
	source := &stubSource{artifact: validArtifact()}
	c := NewCache(slot, source, zerolog.Nop())

	if got := c.Status(); got.Cached {
		t.Errorf("Status() on empty cache = %+v, want not cached", got)
	}

	if _, err := c.Fetch(context.Background(), true); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	status := c.Status()
	if !status.Cached || status.Version != "v20260815_093000" {
		t.Errorf("Status() = %+v, want cached v20260815_093000", status)
	}

	if err := c.ClearCache(); err != nil {
		t.Fatalf("ClearCache() error = %v", err)
	}
	if got := c.Status(); got.Cached {
		t.Errorf("Status() after clear = %+v, want not cached", got)
	}
	if got := c.LoadFromCache(); got != nil {
		t.Errorf("LoadFromCache() after clear = %+v, want nil", got)
	}
}
