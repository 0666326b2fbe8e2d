// Pressrank - News Reading Personalization Engine
// Copyright 2026 Pressrank Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pressrank/pressrank

package personalize

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/pressrank/pressrank/internal/personalize/artifact"
)

// fakeSlot is an in-memory artifact.Slot.
type fakeSlot struct {
	artifact *artifact.Artifact
	meta     *artifact.Metadata
}

func (f *fakeSlot) LoadArtifact() (*artifact.Artifact, error) {
	if f.artifact == nil {
		return nil, artifact.ErrNotFound
	}
	return f.artifact, nil
}

func (f *fakeSlot) SaveArtifact(a *artifact.Artifact, m *artifact.Metadata) error {
	f.artifact = a
	f.meta = m
	return nil
}

func (f *fakeSlot) LoadMetadata() (*artifact.Metadata, error) {
	if f.meta == nil {
		return nil, artifact.ErrNotFound
	}
	return f.meta, nil
}

func (f *fakeSlot) DeleteArtifact() error {
	f.artifact = nil
	f.meta = nil
	return nil
}

// fakeSource is an artifact.Source returning a fixed artifact.
type fakeSource struct {
	artifact *artifact.Artifact
	err      error
	fetches  int
}

func (f *fakeSource) FetchArtifact(context.Context) (*artifact.Artifact, error) {
	f.fetches++
	if f.err != nil {
		return nil, f.err
	}
	return f.artifact, nil
}

func (f *fakeSource) FetchMetadata(context.Context) (*artifact.Metadata, error) {
	if f.err != nil {
		return nil, f.err
	}
	m := f.artifact.Metadata()
	return &m, nil
}

func testArtifact() *artifact.Artifact {
	mean := float32(0)
	return &artifact.Artifact{
		Version:    "v20260801_120000",
		TrainedAt:  time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		GlobalMean: &mean,
		UserFactors: map[string][]float32{
			"u1": {1, 0},
		},
		ItemFactors: map[string][]float32{
			"hot":  {2, 0},
			"cold": {0.1, 0},
		},
	}
}

func newTestRanker(t *testing.T, cache *artifact.Cache, cfg RankerConfig) (*Ranker, *Store) {
	t.Helper()
	store, _ := newTestStore(t)
	ranker, err := NewRanker(store, NewScorer(1), cache, cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewRanker() error = %v", err)
	}
	return ranker, store
}

func TestNewRankerRejectsInvalidWeights(t *testing.T) {
	store, _ := newTestStore(t)
	cfg := RankerConfig{
		Default: BlendWeights{Artifact: 0.9, Local: 0.9, Recency: 0.1, Trending: 0.1},
	}
	if _, err := NewRanker(store, NewScorer(1), nil, cfg, zerolog.Nop()); err == nil {
		t.Error("NewRanker() with invalid weights error = nil, want non-nil")
	}
}

func TestRankLocalModeWhenBlendDisabled(t *testing.T) {
	ranker, _ := newTestRanker(t, nil, RankerConfig{})

	got := ranker.Rank(context.Background(), makeCandidates("sports", 10), 5)
	if len(got) != 5 {
		t.Fatalf("len(Rank()) = %d, want 5", len(got))
	}
	for _, sc := range got {
		if sc.ArtifactScore != 0 {
			t.Errorf("ArtifactScore in local mode = %v, want 0", sc.ArtifactScore)
		}
		if sc.FinalScore != sc.LocalScore {
			t.Errorf("FinalScore = %v, LocalScore = %v, want equal in local mode", sc.FinalScore, sc.LocalScore)
		}
	}
}

func TestInitializeLoadsCachedArtifact(t *testing.T) {
	slot := &fakeSlot{artifact: testArtifact()}
	cache := artifact.NewCache(slot, &fakeSource{}, zerolog.Nop())

	ranker, _ := newTestRanker(t, cache, RankerConfig{})
	if err := ranker.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}

	got := ranker.Artifact()
	if got == nil {
		t.Fatal("Artifact() = nil, want cached artifact")
	}
	if got.Version != "v20260801_120000" {
		t.Errorf("Artifact().Version = %q, want %q", got.Version, "v20260801_120000")
	}
}

func TestInitializeWithEmptyCache(t *testing.T) {
	cache := artifact.NewCache(&fakeSlot{}, &fakeSource{artifact: testArtifact()}, zerolog.Nop())

	ranker, _ := newTestRanker(t, cache, RankerConfig{})
	if err := ranker.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	if ranker.Artifact() != nil {
		t.Error("Artifact() after empty-cache init != nil, want nil (no implicit download)")
	}
}

func TestRefreshArtifactSwapsCurrent(t *testing.T) {
	slot := &fakeSlot{}
	source := &fakeSource{artifact: testArtifact()}
	cache := artifact.NewCache(slot, source, zerolog.Nop())

	ranker, _ := newTestRanker(t, cache, RankerConfig{})
	if err := ranker.RefreshArtifact(context.Background(), true); err != nil {
		t.Fatalf("RefreshArtifact() error = %v", err)
	}

	if got := ranker.Artifact(); got == nil || got.Version != "v20260801_120000" {
		t.Errorf("Artifact() after refresh = %+v, want version v20260801_120000", got)
	}
	if slot.artifact == nil {
		t.Error("artifact not written to local cache on refresh")
	}
}

func TestRefreshArtifactWithoutCache(t *testing.T) {
	ranker, _ := newTestRanker(t, nil, RankerConfig{})
	if err := ranker.RefreshArtifact(context.Background(), true); err == nil {
		t.Error("RefreshArtifact() without a source error = nil, want non-nil")
	}
}

func TestRankBlendOrdering(t *testing.T) {
	slot := &fakeSlot{artifact: testArtifact()}
	cache := artifact.NewCache(slot, &fakeSource{}, zerolog.Nop())

	ranker, _ := newTestRanker(t, cache, RankerConfig{UseArtifactBlend: true})
	if err := ranker.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}

	candidates := []Item{
		{ID: "missing", Category: "sports"},
		{ID: "cold", Category: "sports"},
		{ID: "hot", Category: "sports"},
	}
	got := ranker.Rank(context.Background(), candidates, 3)
	if len(got) != 3 {
		t.Fatalf("len(Rank()) = %d, want 3", len(got))
	}

	wantOrder := []ItemID{"hot", "cold", "missing"}
	for i, want := range wantOrder {
		if got[i].Item.ID != want {
			t.Errorf("Rank()[%d] = %q, want %q", i, got[i].Item.ID, want)
		}
	}
	if got[0].ArtifactScore != 2.0 {
		t.Errorf("ArtifactScore(hot) = %v, want 2.0", got[0].ArtifactScore)
	}
	// "missing" has no item vector and falls back to the global mean.
	if got[2].ArtifactScore != 0 {
		t.Errorf("ArtifactScore(missing) = %v, want global mean 0", got[2].ArtifactScore)
	}
}

func TestRankBlendTieBreaksByItemID(t *testing.T) {
	slot := &fakeSlot{artifact: testArtifact()}
	cache := artifact.NewCache(slot, &fakeSource{}, zerolog.Nop())

	ranker, _ := newTestRanker(t, cache, RankerConfig{UseArtifactBlend: true})
	if err := ranker.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}

	// Identical scores on both, so the tie breaks lexicographically.
	candidates := []Item{
		{ID: "zeta", Category: "sports"},
		{ID: "alpha", Category: "sports"},
	}
	got := ranker.Rank(context.Background(), candidates, 2)
	if got[0].Item.ID != "alpha" || got[1].Item.ID != "zeta" {
		t.Errorf("tie order = [%s %s], want [alpha zeta]", got[0].Item.ID, got[1].Item.ID)
	}
}

func TestRankBlendWeightProfileSelection(t *testing.T) {
	slot := &fakeSlot{artifact: testArtifact()}
	cache := artifact.NewCache(slot, &fakeSource{}, zerolog.Nop())

	ranker, store := newTestRanker(t, cache, RankerConfig{UseArtifactBlend: true})
	if err := ranker.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}

	ctx := context.Background()
	candidate := []Item{{ID: "missing", Category: "sports"}}

	// Below the cold-start boundary the rule-heavy profile applies:
	// artifact score is the global mean (0), local score is 1.0 for the
	// only clicked category.
	for i := 0; i < MinInteractionsForBlend-1; i++ {
		if err := store.OnItemClicked(ctx, Item{ID: "a1", Category: "sports"}); err != nil {
			t.Fatalf("OnItemClicked() error = %v", err)
		}
	}
	got := ranker.Rank(ctx, candidate, 1)
	want := RuleHeavyWeights().Local * 1.0
	if math.Abs(float64(got[0].FinalScore)-want) > 1e-3 {
		t.Errorf("FinalScore below boundary = %v, want %v (rule-heavy)", got[0].FinalScore, want)
	}

	// Crossing the boundary switches to the default profile.
	if err := store.OnItemClicked(ctx, Item{ID: "a1", Category: "sports"}); err != nil {
		t.Fatalf("OnItemClicked() error = %v", err)
	}
	got = ranker.Rank(ctx, candidate, 1)
	want = DefaultWeights().Local * 1.0
	if math.Abs(float64(got[0].FinalScore)-want) > 1e-3 {
		t.Errorf("FinalScore at boundary = %v, want %v (default)", got[0].FinalScore, want)
	}
}

func TestRecencyBoost(t *testing.T) {
	ranker, _ := newTestRanker(t, nil, RankerConfig{RecencyHalfLife: 24 * time.Hour})
	now := time.Now()

	tests := []struct {
		name string
		item Item
		want float32
		tol  float64
	}{
		{"no publish time", Item{}, 0, 0},
		{"just published", Item{PublishedAt: now}, 1, 1e-3},
		{"one half-life old", Item{PublishedAt: now.Add(-24 * time.Hour)}, 0.5, 1e-3},
		{"two half-lives old", Item{PublishedAt: now.Add(-48 * time.Hour)}, 0.25, 1e-3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ranker.recencyBoost(tt.item, now)
			if math.Abs(float64(got-tt.want)) > tt.tol {
				t.Errorf("recencyBoost() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTrendingBoostClamps(t *testing.T) {
	tests := []struct {
		score float32
		want  float32
	}{
		{-0.5, 0},
		{0, 0},
		{0.7, 0.7},
		{1.0, 1.0},
		{3.2, 1.0},
	}

	for _, tt := range tests {
		if got := trendingBoost(Item{TrendingScore: tt.score}); got != tt.want {
			t.Errorf("trendingBoost(%v) = %v, want %v", tt.score, got, tt.want)
		}
	}
}
