// Pressrank - News Reading Personalization Engine
// Copyright 2026 Pressrank Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pressrank/pressrank

package personalize

import (
	"time"
)

// UserID identifies an authenticated reader.
type UserID string

// ItemID identifies an article.
type ItemID string

// CategoryID identifies a content category (e.g. "sports", "technology").
type CategoryID string

// Behavioral signal weights. These constants define how reading behavior
// translates into category affinity and when the engine trusts the trained
// artifact over the fast-reacting local signal.
const (
	// ClickWeight is added to a category score per article click.
	ClickWeight float32 = 1.0

	// BookmarkWeight is added (or subtracted on removal) per bookmark toggle.
	BookmarkWeight float32 = 3.0

	// MinReadSeconds is the minimum dwell time that counts as reading.
	MinReadSeconds = 5.0

	// MaxReadBoost caps the per-observation reading-time contribution.
	MaxReadBoost float32 = 3.0

	// RecentItemsCap bounds the recent-item history, most-recent-first.
	RecentItemsCap = 20

	// RecentItemBoost is added to PreferenceBoost for recently seen items.
	RecentItemBoost float32 = 0.3

	// BalancedSeedScore is the per-category score seeded for brand-new users
	// so early rankings are not degenerate.
	BalancedSeedScore float32 = 5.0

	// MinInteractionsForBlend is the cold-start boundary: below it the
	// ranker uses rule-heavy weights and the preference store reports
	// insufficient data for the artifact blend. Both components share this
	// constant; the threshold must not drift between them.
	MinInteractionsForBlend = 70

	// NeutralScore is the affinity score assigned when no preference data
	// exists for a user.
	NeutralScore float32 = 0.5

	// FavoriteShare is the fraction of a ranked page reserved for the
	// user's favorite categories; the remainder is a diversity floor.
	FavoriteShare = 0.8

	// TopCategoryCount is how many categories count as "favorite" when
	// partitioning ranking candidates.
	TopCategoryCount = 3
)

// Item is an article candidate. The engine treats items as opaque except
// for the identifier, the category, and the key used for artifact lookup.
type Item struct {
	ID       ItemID     `json:"id"`
	Category CategoryID `json:"category"`
	Title    string     `json:"title,omitempty"`
	Source   string     `json:"source,omitempty"`

	// PublishedAt drives the recency boost in the hybrid blend.
	PublishedAt time.Time `json:"published_at,omitempty"`

	// TrendingScore is a normalized popularity signal supplied by the item
	// source, 0 when unknown.
	TrendingScore float32 `json:"trending_score,omitempty"`
}

// Key returns the stable key used to look the item up in a scoring artifact.
func (i Item) Key() string {
	return string(i.ID)
}

// UserAffinity is the live preference model for one user: accumulated
// category scores, a bounded most-recent-first item history, and an
// interaction counter that only increases.
type UserAffinity struct {
	CategoryScores    map[CategoryID]float32 `json:"category_scores"`
	RecentItems       []ItemID               `json:"recent_items"`
	TotalInteractions uint64                 `json:"total_interactions"`
	LastUpdated       time.Time              `json:"last_updated"`
}

// NewUserAffinity returns an empty affinity record.
func NewUserAffinity() *UserAffinity {
	return &UserAffinity{
		CategoryScores: make(map[CategoryID]float32),
		RecentItems:    make([]ItemID, 0, RecentItemsCap),
	}
}

// Clone returns a deep copy. Rankers operate on snapshots so a ranking call
// in flight never observes a concurrent mutation.
func (a *UserAffinity) Clone() *UserAffinity {
	if a == nil {
		return nil
	}
	c := &UserAffinity{
		CategoryScores:    make(map[CategoryID]float32, len(a.CategoryScores)),
		RecentItems:       make([]ItemID, len(a.RecentItems)),
		TotalInteractions: a.TotalInteractions,
		LastUpdated:       a.LastUpdated,
	}
	for k, v := range a.CategoryScores {
		c.CategoryScores[k] = v
	}
	copy(c.RecentItems, a.RecentItems)
	return c
}

// IsEmpty reports whether the record carries no signal at all. Balanced
// seeding only applies to empty records, which keeps it idempotent.
func (a *UserAffinity) IsEmpty() bool {
	return a == nil || (len(a.CategoryScores) == 0 && a.TotalInteractions == 0)
}

// maxCategoryScore returns the highest category score, or 0.
func (a *UserAffinity) maxCategoryScore() float32 {
	var maxScore float32
	for _, s := range a.CategoryScores {
		if s > maxScore {
			maxScore = s
		}
	}
	return maxScore
}

// ScoredCandidate is one entry of a ranking result. Ephemeral: produced per
// ranking call, never persisted.
type ScoredCandidate struct {
	Item Item `json:"item"`

	// FinalScore is the blended score the list is ordered by.
	FinalScore float32 `json:"final_score"`

	// LocalScore is the affinity-derived component.
	LocalScore float32 `json:"local_score"`

	// ArtifactScore is the collaborative-filtering component, 0 when no
	// artifact was consulted.
	ArtifactScore float32 `json:"artifact_score"`
}
