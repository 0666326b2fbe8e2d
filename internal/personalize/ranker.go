// Pressrank - News Reading Personalization Engine
// Copyright 2026 Pressrank Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pressrank/pressrank

package personalize

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/pressrank/pressrank/internal/metrics"
	"github.com/pressrank/pressrank/internal/personalize/artifact"
)

// RankerConfig configures the hybrid ranker.
type RankerConfig struct {
	// UseArtifactBlend enables the collaborative-filtering blend. The blend
	// path stays wired while disabled; this flag exists so the blend can be
	// flipped on without further engineering once a trained model ships.
	// Default false: rankings come purely from the affinity scorer.
	UseArtifactBlend bool `json:"use_artifact_blend"`

	// Default is the weight profile used at or above the cold-start
	// boundary. Zero value selects DefaultWeights.
	Default BlendWeights `json:"default_weights"`

	// RuleHeavy is the weight profile used below the cold-start boundary.
	// Zero value selects RuleHeavyWeights.
	RuleHeavy BlendWeights `json:"rule_heavy_weights"`

	// RecencyHalfLife controls the exponential publish-time decay feeding
	// the recency boost. Default 24h.
	RecencyHalfLife time.Duration `json:"recency_half_life"`
}

// normalized fills zero-value fields with defaults.
func (c RankerConfig) normalized() RankerConfig {
	zero := BlendWeights{}
	if c.Default == zero {
		c.Default = DefaultWeights()
	}
	if c.RuleHeavy == zero {
		c.RuleHeavy = RuleHeavyWeights()
	}
	if c.RecencyHalfLife <= 0 {
		c.RecencyHalfLife = 24 * time.Hour
	}
	return c
}

// Ranker blends the affinity score with the cached artifact's
// collaborative-filtering score and produces the final ranked list.
//
// The artifact reference is swapped atomically on refresh; ranking calls in
// flight complete with whichever artifact they captured. Ranking itself
// never returns an error: missing artifacts and empty preference data
// degrade to the scorer's exploration behavior.
type Ranker struct {
	store  *Store
	scorer *Scorer
	cache  *artifact.Cache

	current atomic.Pointer[artifact.Artifact]

	cfg    RankerConfig
	logger zerolog.Logger
}

// NewRanker creates a hybrid ranker. Both weight profiles are validated
// here; invalid weights are a configuration error.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewRanker(store *Store, scorer *Scorer, cache *artifact.Cache, cfg RankerConfig, logger zerolog.Logger) (*Ranker, error) {
	cfg = cfg.normalized()

	if err := cfg.Default.Validate(); err != nil {
		return nil, fmt.Errorf("default weights: %w", err)
	}
	if err := cfg.RuleHeavy.Validate(); err != nil {
		return nil, fmt.Errorf("rule-heavy weights: %w", err)
	}

	return &Ranker{
		store:  store,
		scorer: scorer,
		cache:  cache,
		cfg:    cfg,
		logger: logger.With().Str("component", "ranker").Logger(),
	}, nil
}

// Initialize loads a cached artifact at startup. Absence is not an error;
// the ranker operates correctly with the blend effectively forced off.
func (r *Ranker) Initialize(ctx context.Context) error {
	if r.cache == nil {
		return nil
	}
	if a := r.cache.LoadFromCache(); a != nil {
		r.current.Store(a)
		r.logger.Info().Str("version", a.Version).Msg("loaded cached artifact")
	} else {
		r.logger.Info().Msg("no cached artifact, ranking on local signal only")
	}
	return nil
}

// RefreshArtifact re-fetches the artifact and swaps the in-memory reference
// atomically. A superseded fetch completing late is harmless: the swap is a
// whole-reference assignment, never a field-level mutation.
func (r *Ranker) RefreshArtifact(ctx context.Context, force bool) error {
	if r.cache == nil {
		return artifact.ErrNotFound
	}
	a, err := r.cache.Fetch(ctx, force)
	if err != nil {
		return err
	}
	r.current.Store(a)
	r.logger.Info().Str("version", a.Version).Msg("artifact refreshed")
	return nil
}

// Artifact returns the currently loaded artifact, or nil.
func (r *Ranker) Artifact() *artifact.Artifact {
	return r.current.Load()
}

// Rank produces the ranked list for the active user. It always returns a
// list for valid input; degraded states (no artifact, no preference data)
// fall back to affinity-only and exploration behavior respectively.
func (r *Ranker) Rank(ctx context.Context, candidates []Item, count int) []ScoredCandidate {
	start := time.Now()
	defer func() {
		metrics.RankLatency.Observe(time.Since(start).Seconds())
	}()

	snap := r.store.Snapshot()
	art := r.current.Load()

	if !r.cfg.UseArtifactBlend || art == nil {
		// Interim production policy: the artifact path is bypassed and the
		// list comes purely from the affinity scorer.
		metrics.RankRequests.WithLabelValues("local").Inc()
		return r.scorer.Rank(snap, candidates, count)
	}

	metrics.RankRequests.WithLabelValues("hybrid").Inc()
	return r.blendRank(snap, art, candidates, count)
}

// blendRank computes the weighted hybrid score per candidate and orders by
// it, descending. Ties break by item ID for determinism.
func (r *Ranker) blendRank(snap *UserAffinity, art *artifact.Artifact, candidates []Item, count int) []ScoredCandidate {
	if count <= 0 || len(candidates) == 0 {
		return []ScoredCandidate{}
	}
	if count > len(candidates) {
		count = len(candidates)
	}

	weights := r.cfg.Default
	if snap == nil || snap.TotalInteractions < MinInteractionsForBlend {
		weights = r.cfg.RuleHeavy
	}

	userKey := string(r.store.UserID())
	now := time.Now()

	scored := make([]ScoredCandidate, len(candidates))
	for i, item := range candidates {
		local := r.scorer.Score(snap, item)
		artScore := art.Score(userKey, item.Key())

		final := float32(weights.Artifact)*artScore +
			float32(weights.Local)*local +
			float32(weights.Recency)*r.recencyBoost(item, now) +
			float32(weights.Trending)*trendingBoost(item)

		scored[i] = ScoredCandidate{
			Item:          item,
			FinalScore:    final,
			LocalScore:    local,
			ArtifactScore: artScore,
		}
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].FinalScore != scored[j].FinalScore {
			return scored[i].FinalScore > scored[j].FinalScore
		}
		return scored[i].Item.ID < scored[j].Item.ID
	})

	return scored[:count]
}

// recencyBoost decays exponentially with article age: 1.0 at publish time,
// halving every RecencyHalfLife. Items without a publish time get 0.
func (r *Ranker) recencyBoost(item Item, now time.Time) float32 {
	if item.PublishedAt.IsZero() {
		return 0
	}
	age := now.Sub(item.PublishedAt)
	if age <= 0 {
		return 1
	}
	halfLives := age.Seconds() / r.cfg.RecencyHalfLife.Seconds()
	return float32(math.Exp2(-halfLives))
}

// trendingBoost clamps the supplied popularity signal to [0, 1].
func trendingBoost(item Item) float32 {
	switch {
	case item.TrendingScore < 0:
		return 0
	case item.TrendingScore > 1:
		return 1
	default:
		return item.TrendingScore
	}
}
