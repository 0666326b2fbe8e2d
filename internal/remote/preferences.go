// Pressrank - News Reading Personalization Engine
// Copyright 2026 Pressrank Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pressrank/pressrank

package remote

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/goccy/go-json"

	"github.com/pressrank/pressrank/internal/personalize"
)

// PreferenceClient mirrors preference documents to the remote store, one
// document per user with full-document overwrite semantics.
type PreferenceClient struct {
	client *Client
}

// NewPreferenceClient creates a preference mirror over the shared client.
func NewPreferenceClient(client *Client) *PreferenceClient {
	return &PreferenceClient{client: client}
}

// LoadPreferences fetches the user's preference document. A missing
// document maps to personalize.ErrPreferencesNotFound.
func (p *PreferenceClient) LoadPreferences(ctx context.Context, userID personalize.UserID) (*personalize.UserAffinity, error) {
	data, err := p.client.do(ctx, http.MethodGet, prefsPath(userID), nil)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, personalize.ErrPreferencesNotFound
		}
		return nil, err
	}

	var aff personalize.UserAffinity
	if err := json.Unmarshal(data, &aff); err != nil {
		return nil, fmt.Errorf("decode remote preferences: %w", err)
	}
	if aff.CategoryScores == nil {
		aff.CategoryScores = make(map[personalize.CategoryID]float32)
	}
	return &aff, nil
}

// SavePreferences overwrites the user's remote document with the snapshot.
func (p *PreferenceClient) SavePreferences(ctx context.Context, userID personalize.UserID, aff *personalize.UserAffinity) error {
	body, err := json.Marshal(aff)
	if err != nil {
		return fmt.Errorf("encode preferences: %w", err)
	}
	_, err = p.client.do(ctx, http.MethodPut, prefsPath(userID), body)
	return err
}

// DeletePreferences removes the user's remote document. Deleting an absent
// document is not an error.
func (p *PreferenceClient) DeletePreferences(ctx context.Context, userID personalize.UserID) error {
	_, err := p.client.do(ctx, http.MethodDelete, prefsPath(userID), nil)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}

// prefsPath builds the per-user document path.
func prefsPath(userID personalize.UserID) string {
	return "/v1/users/" + url.PathEscape(string(userID)) + "/preferences"
}

var _ personalize.RemoteMirror = (*PreferenceClient)(nil)
