// Pressrank - News Reading Personalization Engine
// Copyright 2026 Pressrank Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pressrank/pressrank

package artifact

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/pressrank/pressrank/internal/metrics"
)

// Slot is the single local persistence slot for the current artifact plus
// its metadata record. Exactly one artifact is cached at a time.
type Slot interface {
	// LoadArtifact returns ErrNotFound when the slot is empty.
	LoadArtifact() (*Artifact, error)
	LoadMetadata() (*Metadata, error)

	// SaveArtifact replaces the artifact and its metadata together. The
	// write must be atomic: on failure the slot keeps the previous artifact
	// and metadata, never a half-replaced pair.
	SaveArtifact(a *Artifact, m *Metadata) error

	DeleteArtifact() error
}

// Source is the remote artifact document store. FetchMetadata reads the
// version without downloading the full payload.
type Source interface {
	FetchArtifact(ctx context.Context) (*Artifact, error)
	FetchMetadata(ctx context.Context) (*Metadata, error)
}

// Cache fetches, validates, and locally caches the scoring artifact. It
// never polls on its own; callers decide when to check for updates.
//
// A failed fetch or a rejected artifact leaves the previous cache
// untouched, so LoadFromCache after a rejected fetch still returns the last
// valid artifact.
type Cache struct {
	slot   Slot
	source Source
	logger zerolog.Logger
}

// NewCache creates an artifact cache over the given slot and source.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewCache(slot Slot, source Source, logger zerolog.Logger) *Cache {
	return &Cache{
		slot:   slot,
		source: source,
		logger: logger.With().Str("component", "artifact").Logger(),
	}
}

// Fetch returns the current artifact. Unless forced, a structurally valid
// cached artifact is returned without any remote call. Otherwise the
// artifact is fetched from the source, validated, cached, and returned; on
// any failure a typed error is returned and the previous cache survives.
func (c *Cache) Fetch(ctx context.Context, force bool) (*Artifact, error) {
	if !force {
		if cached := c.LoadFromCache(); cached != nil {
			metrics.ArtifactFetches.WithLabelValues("cache_hit").Inc()
			return cached, nil
		}
	}

	fetched, err := c.source.FetchArtifact(ctx)
	if err != nil {
		metrics.ArtifactFetches.WithLabelValues("fetch_error").Inc()
		return nil, fmt.Errorf("fetch artifact: %w", err)
	}

	if err := fetched.Validate(); err != nil {
		metrics.ArtifactFetches.WithLabelValues("invalid").Inc()
		c.logger.Warn().Err(err).Str("version", fetched.Version).Msg("rejected invalid artifact")
		return nil, err
	}

	meta := fetched.Metadata()
	meta.FetchedAt = time.Now()
	if err := c.slot.SaveArtifact(fetched, &meta); err != nil {
		return nil, fmt.Errorf("cache artifact: %w", err)
	}

	metrics.ArtifactFetches.WithLabelValues("downloaded").Inc()
	c.logger.Info().
		Str("version", fetched.Version).
		Time("trained_at", fetched.TrainedAt).
		Int("users", len(fetched.UserFactors)).
		Int("items", len(fetched.ItemFactors)).
		Int("dimension", fetched.Dimension()).
		Msg("artifact cached")

	return fetched, nil
}

// IsUpdateAvailable compares the source's version against the locally
// recorded one. Any failure degrades to false; this is a best-effort check.
func (c *Cache) IsUpdateAvailable(ctx context.Context) bool {
	local, err := c.slot.LoadMetadata()
	if err != nil {
		// No local version recorded: anything remote counts as an update.
		local = &Metadata{}
	}

	remote, err := c.source.FetchMetadata(ctx)
	if err != nil {
		c.logger.Debug().Err(err).Msg("update check failed, assuming no update")
		return false
	}

	return remote.Version != "" && remote.Version != local.Version
}

// LoadFromCache returns the locally cached artifact without touching the
// network, or nil when the slot is empty or holds an invalid record.
func (c *Cache) LoadFromCache() *Artifact {
	cached, err := c.slot.LoadArtifact()
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			c.logger.Warn().Err(err).Msg("artifact cache read failed")
		}
		return nil
	}
	if err := cached.Validate(); err != nil {
		c.logger.Warn().Err(err).Msg("cached artifact invalid, ignoring")
		return nil
	}
	return cached
}

// ClearCache deletes the cached artifact and its metadata.
func (c *Cache) ClearCache() error {
	if err := c.slot.DeleteArtifact(); err != nil {
		return fmt.Errorf("clear artifact cache: %w", err)
	}
	c.logger.Info().Msg("artifact cache cleared")
	return nil
}

// Status describes the cached artifact for diagnostics.
type Status struct {
	Cached    bool      `json:"cached"`
	Version   string    `json:"version,omitempty"`
	TrainedAt time.Time `json:"trained_at,omitempty"`
	FetchedAt time.Time `json:"fetched_at,omitempty"`
}

// Status reports the local cache state without touching the network.
func (c *Cache) Status() Status {
	meta, err := c.slot.LoadMetadata()
	if err != nil {
		return Status{}
	}
	return Status{
		Cached:    true,
		Version:   meta.Version,
		TrainedAt: meta.TrainedAt,
		FetchedAt: meta.FetchedAt,
	}
}
