// Pressrank - News Reading Personalization Engine
// Copyright 2026 Pressrank Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pressrank/pressrank

package personalize

import (
	"math/rand"
	"sync"
	"time"
)

// Scorer turns an affinity snapshot into preference scores and ranked lists.
// It is pure with respect to its inputs; the only state is the random source
// used for shuffling, guarded by a mutex for concurrent ranking calls.
type Scorer struct {
	rng *rand.Rand
	mu  sync.Mutex
}

// NewScorer creates a scorer. Seed 0 seeds from the clock so shuffle order
// differs across restarts; tests pass a fixed seed for determinism.
func NewScorer(seed int64) *Scorer {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Scorer{
		rng: rand.New(rand.NewSource(seed)), //nolint:gosec // math/rand is fine for ranking shuffles
	}
}

// Score returns the normalized category affinity for an item: the item's
// category score relative to the user's best category. Relative-to-best
// normalization deliberately produces strong separation between the top
// category and the rest instead of diluting by the sum of all categories.
// Returns NeutralScore when no positive category score exists.
func (s *Scorer) Score(aff *UserAffinity, item Item) float32 {
	if aff == nil {
		return NeutralScore
	}

	maxScore := aff.maxCategoryScore()
	if maxScore <= 0 {
		return NeutralScore
	}

	score := aff.CategoryScores[item.Category] / maxScore
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// Rank orders candidates under the top-category, shuffle-within, diversity
// quota policy:
//
//   - With no interaction history, all candidates are shuffled and returned
//     with the neutral score (exploration mode for brand-new users).
//   - Otherwise candidates are partitioned by the user's top categories,
//     each partition is shuffled independently for freshness, and the page
//     is filled with FavoriteShare favorites plus a diversity remainder.
//
// The result always contains min(count, len(candidates)) items, without
// duplicates; a short favorite partition is backfilled from the other side.
func (s *Scorer) Rank(aff *UserAffinity, candidates []Item, count int) []ScoredCandidate {
	if count <= 0 || len(candidates) == 0 {
		return []ScoredCandidate{}
	}
	if count > len(candidates) {
		count = len(candidates)
	}

	if aff == nil || aff.TotalInteractions == 0 || len(aff.CategoryScores) == 0 {
		return s.exploreRank(candidates, count)
	}

	favorites := make(map[CategoryID]struct{}, TopCategoryCount)
	for _, c := range favoriteCategories(aff, TopCategoryCount) {
		favorites[c] = struct{}{}
	}

	favored := make([]Item, 0, len(candidates))
	other := make([]Item, 0, len(candidates))
	for _, item := range candidates {
		if _, ok := favorites[item.Category]; ok {
			favored = append(favored, item)
		} else {
			other = append(other, item)
		}
	}

	s.shuffle(favored)
	s.shuffle(other)

	favTarget := int(FavoriteShare * float64(count))
	if favTarget > len(favored) {
		favTarget = len(favored)
	}

	picked := make([]Item, 0, count)
	picked = append(picked, favored[:favTarget]...)

	remainder := count - len(picked)
	if remainder > len(other) {
		remainder = len(other)
	}
	picked = append(picked, other[:remainder]...)

	// Backfill from leftover favorites when the diversity side runs short.
	for i := favTarget; len(picked) < count && i < len(favored); i++ {
		picked = append(picked, favored[i])
	}

	result := make([]ScoredCandidate, len(picked))
	for i, item := range picked {
		score := s.Score(aff, item)
		result[i] = ScoredCandidate{
			Item:       item,
			FinalScore: score,
			LocalScore: score,
		}
	}
	return result
}

// exploreRank shuffles all candidates and assigns the neutral score.
func (s *Scorer) exploreRank(candidates []Item, count int) []ScoredCandidate {
	shuffled := make([]Item, len(candidates))
	copy(shuffled, candidates)
	s.shuffle(shuffled)

	result := make([]ScoredCandidate, count)
	for i := 0; i < count; i++ {
		result[i] = ScoredCandidate{
			Item:       shuffled[i],
			FinalScore: NeutralScore,
			LocalScore: NeutralScore,
		}
	}
	return result
}

// shuffle permutes items in place using the scorer's locked random source.
func (s *Scorer) shuffle(items []Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rng.Shuffle(len(items), func(i, j int) {
		items[i], items[j] = items[j], items[i]
	})
}
