// Pressrank - News Reading Personalization Engine
// Copyright 2026 Pressrank Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pressrank/pressrank

package personalize

import (
	"fmt"
	"math"
)

// weightSumTolerance is the allowed deviation of a weight profile from 1.0.
const weightSumTolerance = 0.01

// BlendWeights defines the relative contribution of each signal to the
// hybrid score. A profile must sum to 1.0 within tolerance; invalid weights
// are a configuration error caught at construction, never at ranking time.
type BlendWeights struct {
	// Artifact is the weight of the collaborative-filtering score.
	Artifact float64 `json:"artifact"`

	// Local is the weight of the affinity-derived score.
	Local float64 `json:"local"`

	// Recency is the weight of the publish-time decay boost.
	Recency float64 `json:"recency"`

	// Trending is the weight of the popularity boost.
	Trending float64 `json:"trending"`
}

// DefaultWeights is the balanced profile used once a user has enough
// interaction history for the artifact blend.
func DefaultWeights() BlendWeights {
	return BlendWeights{
		Artifact: 0.30,
		Local:    0.40,
		Recency:  0.20,
		Trending: 0.10,
	}
}

// RuleHeavyWeights is the cold-start profile: the fast-reacting local signal
// dominates while the artifact has too little history to trust.
func RuleHeavyWeights() BlendWeights {
	return BlendWeights{
		Artifact: 0.05,
		Local:    0.65,
		Recency:  0.20,
		Trending: 0.10,
	}
}

// Validate checks the 1.0 ± tolerance sum rule and rejects negative weights.
func (w BlendWeights) Validate() error {
	for name, v := range map[string]float64{
		"artifact": w.Artifact,
		"local":    w.Local,
		"recency":  w.Recency,
		"trending": w.Trending,
	} {
		if v < 0 {
			return fmt.Errorf("blend weight %q is negative: %f", name, v)
		}
	}

	sum := w.Artifact + w.Local + w.Recency + w.Trending
	if math.Abs(sum-1.0) > weightSumTolerance {
		return fmt.Errorf("blend weights sum to %f, want 1.0 ± %g", sum, weightSumTolerance)
	}
	return nil
}
