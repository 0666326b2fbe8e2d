// Pressrank - News Reading Personalization Engine
// Copyright 2026 Pressrank Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pressrank/pressrank

package services

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// ArtifactRefresher is the slice of the ranker the refresh loop needs.
type ArtifactRefresher interface {
	RefreshArtifact(ctx context.Context, force bool) error
}

// UpdateChecker reports whether a newer scoring artifact is available
// without downloading it.
type UpdateChecker interface {
	IsUpdateAvailable(ctx context.Context) bool
}

// ArtifactRefreshService periodically checks the remote model registry and
// installs newer scoring artifacts. Failed refreshes are logged and retried
// on the next tick; the previously cached artifact stays in use throughout.
type ArtifactRefreshService struct {
	refresher ArtifactRefresher
	checker   UpdateChecker
	interval  time.Duration
	onStartup bool
	logger    zerolog.Logger
}

// NewArtifactRefreshService creates the refresh loop. interval must be
// positive; zero selects 6h. When onStartup is true a refresh attempt runs
// immediately instead of waiting for the first tick.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewArtifactRefreshService(refresher ArtifactRefresher, checker UpdateChecker, interval time.Duration, onStartup bool, logger zerolog.Logger) *ArtifactRefreshService {
	if interval <= 0 {
		interval = 6 * time.Hour
	}
	return &ArtifactRefreshService{
		refresher: refresher,
		checker:   checker,
		interval:  interval,
		onStartup: onStartup,
		logger:    logger.With().Str("component", "artifact-refresh").Logger(),
	}
}

// Serve implements suture.Service.
func (s *ArtifactRefreshService) Serve(ctx context.Context) error {
	if s.onStartup {
		s.refresh(ctx, true)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.refresh(ctx, false)
		}
	}
}

// refresh downloads a new artifact when one is available. force skips the
// availability check and the local cache.
func (s *ArtifactRefreshService) refresh(ctx context.Context, force bool) {
	if !force && !s.checker.IsUpdateAvailable(ctx) {
		s.logger.Debug().Msg("scoring artifact up to date")
		return
	}

	if err := s.refresher.RefreshArtifact(ctx, force); err != nil {
		s.logger.Warn().Err(err).Msg("artifact refresh failed, keeping current artifact")
		return
	}
	s.logger.Info().Msg("scoring artifact refreshed")
}

// String identifies the service in supervisor logs.
func (s *ArtifactRefreshService) String() string {
	return "artifact-refresh"
}
