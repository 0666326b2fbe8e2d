// Pressrank - News Reading Personalization Engine
// Copyright 2026 Pressrank Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pressrank/pressrank

// Package artifact handles the versioned collaborative-filtering artifact
// produced by the external training pipeline: structural validation, local
// caching, update detection, and factor-based scoring.
package artifact

import (
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
)

var (
	// ErrNotFound indicates no artifact exists at the queried location.
	// Callers treat a structurally invalid artifact identically.
	ErrNotFound = errors.New("artifact not found")

	// ErrInvalid indicates an artifact failed structural validation. An
	// invalid artifact is rejected and never cached.
	ErrInvalid = errors.New("artifact failed validation")

	// ErrUnavailable indicates a transient failure reaching the artifact
	// source.
	ErrUnavailable = errors.New("artifact source unavailable")
)

// Artifact is one immutable, versioned scoring model: latent factor vectors
// and biases keyed by stable user and item keys, plus the training global
// mean. Produced out-of-band; the engine only downloads, validates, caches,
// and scores with it.
type Artifact struct {
	Version    string    `json:"version"`
	TrainedAt  time.Time `json:"trained_at"`
	GlobalMean *float32  `json:"global_mean"`

	UserFactors map[string][]float32 `json:"user_factors"`
	ItemFactors map[string][]float32 `json:"item_factors"`
	UserBias    map[string]float32   `json:"user_bias,omitempty"`
	ItemBias    map[string]float32   `json:"item_bias,omitempty"`
}

// Metadata is the lightweight record kept alongside the cached artifact.
// The artifact source exposes the same shape without the full payload, so
// update checks never download factors.
type Metadata struct {
	Version   string    `json:"version"`
	TrainedAt time.Time `json:"trained_at"`
	FetchedAt time.Time `json:"fetched_at,omitempty"`
}

// Validate checks structural validity: both factor maps non-empty, every
// vector sharing one non-zero dimensionality, and the global mean present.
func (a *Artifact) Validate() error {
	if a == nil {
		return fmt.Errorf("%w: nil artifact", ErrInvalid)
	}
	if a.Version == "" {
		return fmt.Errorf("%w: missing version", ErrInvalid)
	}
	if a.GlobalMean == nil {
		return fmt.Errorf("%w: missing global mean", ErrInvalid)
	}
	if len(a.UserFactors) == 0 {
		return fmt.Errorf("%w: empty user factors", ErrInvalid)
	}
	if len(a.ItemFactors) == 0 {
		return fmt.Errorf("%w: empty item factors", ErrInvalid)
	}

	dim := 0
	for key, vec := range a.UserFactors {
		if dim == 0 {
			dim = len(vec)
		}
		if len(vec) == 0 || len(vec) != dim {
			return fmt.Errorf("%w: user vector %q has dimension %d, want %d", ErrInvalid, key, len(vec), dim)
		}
	}
	for key, vec := range a.ItemFactors {
		if len(vec) != dim {
			return fmt.Errorf("%w: item vector %q has dimension %d, want %d", ErrInvalid, key, len(vec), dim)
		}
	}
	return nil
}

// Dimension returns the shared factor-vector dimensionality.
func (a *Artifact) Dimension() int {
	for _, vec := range a.UserFactors {
		return len(vec)
	}
	return 0
}

// Score computes the collaborative-filtering score for a user/item pair:
// the dot product of both factor vectors plus biases plus the global mean.
// When either vector is absent (cold start for that user or item) the score
// falls back to the global mean rather than zero, so unseen entities are
// not penalized.
func (a *Artifact) Score(userKey, itemKey string) float32 {
	mean := *a.GlobalMean

	userVec, okUser := a.UserFactors[userKey]
	itemVec, okItem := a.ItemFactors[itemKey]
	if !okUser || !okItem {
		return mean
	}

	var dot float32
	for i := range userVec {
		dot += userVec[i] * itemVec[i]
	}
	return dot + a.UserBias[userKey] + a.ItemBias[itemKey] + mean
}

// Metadata returns the artifact's version record.
func (a *Artifact) Metadata() Metadata {
	return Metadata{Version: a.Version, TrainedAt: a.TrainedAt}
}

// Decode unmarshals and validates an artifact payload. A payload that does
// not decode or validate is reported as ErrInvalid.
func Decode(data []byte) (*Artifact, error) {
	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return &a, nil
}
