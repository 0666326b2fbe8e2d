// Pressrank - News Reading Personalization Engine
// Copyright 2026 Pressrank Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pressrank/pressrank

package artifact

import (
	"errors"
	"math"
	"testing"
	"time"
)

func validArtifact() *Artifact {
	mean := float32(0.4)
	return &Artifact{
		Version:    "v20260815_093000",
		TrainedAt:  time.Date(2026, 8, 15, 9, 30, 0, 0, time.UTC),
		GlobalMean: &mean,
		UserFactors: map[string][]float32{
			"u1": {0.5, 1.0},
			"u2": {1.0, 0.0},
		},
		ItemFactors: map[string][]float32{
			"a1": {2.0, 1.0},
			"a2": {0.0, 0.5},
		},
		UserBias: map[string]float32{"u1": 0.1},
		ItemBias: map[string]float32{"a1": 0.2},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(a *Artifact)
		ok     bool
	}{
		{"valid", func(*Artifact) {}, true},
		{"missing version", func(a *Artifact) { a.Version = "" }, false},
		{"missing global mean", func(a *Artifact) { a.GlobalMean = nil }, false},
		{"empty user factors", func(a *Artifact) { a.UserFactors = nil }, false},
		{"empty item factors", func(a *Artifact) { a.ItemFactors = map[string][]float32{} }, false},
		{"user dimension mismatch", func(a *Artifact) { a.UserFactors["u3"] = []float32{1} }, false},
		{"item dimension mismatch", func(a *Artifact) { a.ItemFactors["a3"] = []float32{1, 2, 3} }, false},
		{"zero-length vector", func(a *Artifact) {
			a.UserFactors = map[string][]float32{"u1": {}}
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := validArtifact()
			tt.mutate(a)
			err := a.Validate()
			if tt.ok && err != nil {
				t.Errorf("Validate() error = %v, want nil", err)
			}
			if !tt.ok {
				if err == nil {
					t.Fatal("Validate() error = nil, want non-nil")
				}
				if !errors.Is(err, ErrInvalid) {
					t.Errorf("Validate() error = %v, want ErrInvalid", err)
				}
			}
		})
	}

	t.Run("nil artifact", func(t *testing.T) {
		var a *Artifact
		if err := a.Validate(); !errors.Is(err, ErrInvalid) {
			t.Errorf("Validate() on nil = %v, want ErrInvalid", err)
		}
	})
}

func TestDimension(t *testing.T) {
	if got := validArtifact().Dimension(); got != 2 {
		t.Errorf("Dimension() = %d, want 2", got)
	}
	if got := (&Artifact{}).Dimension(); got != 0 {
		t.Errorf("Dimension() on empty = %d, want 0", got)
	}
}

func TestScore(t *testing.T) {
	a := validArtifact()

	tests := []struct {
		name    string
		userKey string
		itemKey string
		want    float32
	}{
		// dot(0.5,1.0 ; 2.0,1.0) + userBias 0.1 + itemBias 0.2 + mean 0.4
		{"known pair with biases", "u1", "a1", 2.0 + 0.1 + 0.2 + 0.4},
		// dot(1.0,0.0 ; 0.0,0.5) + no biases + mean
		{"known pair without biases", "u2", "a2", 0.0 + 0.4},
		{"unknown user falls back to mean", "ghost", "a1", 0.4},
		{"unknown item falls back to mean", "u1", "ghost", 0.4},
		{"both unknown", "ghost", "ghost", 0.4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := a.Score(tt.userKey, tt.itemKey)
			if math.Abs(float64(got-tt.want)) > 1e-5 {
				t.Errorf("Score(%q, %q) = %v, want %v", tt.userKey, tt.itemKey, got, tt.want)
			}
		})
	}
}

func TestDecode(t *testing.T) {
	t.Run("valid payload", func(t *testing.T) {
		payload := []byte(`{
			"version": "v20260815_093000",
			"trained_at": "2026-08-15T09:30:00Z",
			"global_mean": 0.4,
			"user_factors": {"u1": [0.5, 1.0]},
			"item_factors": {"a1": [2.0, 1.0]}
		}`)
		a, err := Decode(payload)
		if err != nil {
			t.Fatalf("Decode() error = %v", err)
		}
		if a.Version != "v20260815_093000" {
			t.Errorf("Version = %q, want %q", a.Version, "v20260815_093000")
		}
		if a.Dimension() != 2 {
			t.Errorf("Dimension() = %d, want 2", a.Dimension())
		}
	})

	t.Run("malformed JSON", func(t *testing.T) {
		if _, err := Decode([]byte(`{not json`)); !errors.Is(err, ErrInvalid) {
			t.Errorf("Decode() error = %v, want ErrInvalid", err)
		}
	})

	t.Run("structurally invalid", func(t *testing.T) {
		payload := []byte(`{"version": "v1", "global_mean": 0, "user_factors": {}, "item_factors": {}}`)
		if _, err := Decode(payload); !errors.Is(err, ErrInvalid) {
			t.Errorf("Decode() error = %v, want ErrInvalid", err)
		}
	})
}
