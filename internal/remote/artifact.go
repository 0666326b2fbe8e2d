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

	"github.com/goccy/go-json"

	"github.com/pressrank/pressrank/internal/personalize/artifact"
)

// Artifact source paths. The metadata endpoint exposes the version without
// the factor payload so update checks stay cheap.
const (
	artifactPath     = "/v1/model"
	artifactMetaPath = "/v1/model/meta"
)

// ArtifactClient fetches the scoring artifact from the remote source.
type ArtifactClient struct {
	client *Client
}

// NewArtifactClient creates an artifact source over the shared client.
func NewArtifactClient(client *Client) *ArtifactClient {
	return &ArtifactClient{client: client}
}

// FetchArtifact downloads and decodes the full artifact payload. Decoding
// includes structural validation; a malformed payload is reported as
// artifact.ErrInvalid.
func (a *ArtifactClient) FetchArtifact(ctx context.Context) (*artifact.Artifact, error) {
	data, err := a.client.do(ctx, http.MethodGet, artifactPath, nil)
	if err != nil {
		return nil, mapArtifactErr(err)
	}
	return artifact.Decode(data)
}

// FetchMetadata reads the remote version record without the payload.
func (a *ArtifactClient) FetchMetadata(ctx context.Context) (*artifact.Metadata, error) {
	data, err := a.client.do(ctx, http.MethodGet, artifactMetaPath, nil)
	if err != nil {
		return nil, mapArtifactErr(err)
	}

	var meta artifact.Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("decode artifact metadata: %w", err)
	}
	return &meta, nil
}

// mapArtifactErr translates transport errors into the artifact taxonomy.
func mapArtifactErr(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return artifact.ErrNotFound
	case errors.Is(err, ErrUnavailable):
		return fmt.Errorf("%w: %v", artifact.ErrUnavailable, err)
	default:
		return err
	}
}

var _ artifact.Source = (*ArtifactClient)(nil)
