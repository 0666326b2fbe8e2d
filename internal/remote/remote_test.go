// Pressrank - News Reading Personalization Engine
// Copyright 2026 Pressrank Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pressrank/pressrank

package remote

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"

	"github.com/pressrank/pressrank/internal/personalize"
	"github.com/pressrank/pressrank/internal/personalize/artifact"
)

func newTestClient(handler http.Handler) (*Client, *httptest.Server) {
	srv := httptest.NewServer(handler)
	client := NewClient(ClientConfig{
		BaseURL:           srv.URL,
		RequestsPerSecond: 1000,
		Burst:             1000,
	})
	return client, srv
}

func TestPreferenceClientLoad(t *testing.T) {
	doc := &personalize.UserAffinity{
		CategoryScores:    map[personalize.CategoryID]float32{"sports": 3},
		TotalInteractions: 4,
	}

	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/users/u1/preferences" {
			t.Errorf("path = %q, want /v1/users/u1/preferences", r.URL.Path)
		}
		if err := json.NewEncoder(w).Encode(doc); err != nil {
			t.Errorf("encode: %v", err)
		}
	}))
	defer srv.Close()

	got, err := NewPreferenceClient(client).LoadPreferences(context.Background(), "u1")
	if err != nil {
		t.Fatalf("LoadPreferences() error = %v", err)
	}
	if got.CategoryScores["sports"] != 3 {
		t.Errorf("CategoryScores[sports] = %v, want 3", got.CategoryScores["sports"])
	}
	if got.TotalInteractions != 4 {
		t.Errorf("TotalInteractions = %d, want 4", got.TotalInteractions)
	}
}

func TestPreferenceClientLoadNotFound(t *testing.T) {
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewPreferenceClient(client).LoadPreferences(context.Background(), "ghost")
	if !errors.Is(err, personalize.ErrPreferencesNotFound) {
		t.Errorf("LoadPreferences() error = %v, want ErrPreferencesNotFound", err)
	}
}

func TestPreferenceClientSaveOverwritesDocument(t *testing.T) {
	var gotMethod, gotPath string
	var gotBody []byte

	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	aff := personalize.NewUserAffinity()
	aff.CategoryScores["tech"] = 2
	aff.TotalInteractions = 9

	if err := NewPreferenceClient(client).SavePreferences(context.Background(), "u1", aff); err != nil {
		t.Fatalf("SavePreferences() error = %v", err)
	}
	if gotMethod != http.MethodPut {
		t.Errorf("method = %q, want PUT (full-document overwrite)", gotMethod)
	}
	if gotPath != "/v1/users/u1/preferences" {
		t.Errorf("path = %q, want /v1/users/u1/preferences", gotPath)
	}

	var sent personalize.UserAffinity
	if err := json.Unmarshal(gotBody, &sent); err != nil {
		t.Fatalf("decode sent body: %v", err)
	}
	if sent.TotalInteractions != 9 {
		t.Errorf("sent TotalInteractions = %d, want 9", sent.TotalInteractions)
	}
}

func TestPreferenceClientDeleteIgnoresAbsent(t *testing.T) {
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	if err := NewPreferenceClient(client).DeletePreferences(context.Background(), "ghost"); err != nil {
		t.Errorf("DeletePreferences() on absent document error = %v, want nil", err)
	}
}

func TestClientServerErrorMapsToUnavailable(t *testing.T) {
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewPreferenceClient(client).LoadPreferences(context.Background(), "u1")
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("LoadPreferences() error = %v, want ErrUnavailable", err)
	}
}

func TestArtifactClientFetch(t *testing.T) {
	payload := map[string]any{
		"version":      "v20260815_093000",
		"global_mean":  0.4,
		"user_factors": map[string][]float32{"u1": {1, 2}},
		"item_factors": map[string][]float32{"a1": {3, 4}},
	}

	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/model":
			_ = json.NewEncoder(w).Encode(payload)
		case "/v1/model/meta":
			_ = json.NewEncoder(w).Encode(artifact.Metadata{Version: "v20260815_093000"})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	ac := NewArtifactClient(client)

	a, err := ac.FetchArtifact(context.Background())
	if err != nil {
		t.Fatalf("FetchArtifact() error = %v", err)
	}
	if a.Version != "v20260815_093000" {
		t.Errorf("Version = %q, want %q", a.Version, "v20260815_093000")
	}

	meta, err := ac.FetchMetadata(context.Background())
	if err != nil {
		t.Fatalf("FetchMetadata() error = %v", err)
	}
	if meta.Version != a.Version {
		t.Errorf("metadata Version = %q, want %q", meta.Version, a.Version)
	}
}

func TestArtifactClientErrorMapping(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"missing artifact", http.StatusNotFound, "", artifact.ErrNotFound},
		{"backend failure", http.StatusBadGateway, "", artifact.ErrUnavailable},
		{"invalid payload", http.StatusOK, `{"version": ""}`, artifact.ErrInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				if tt.status != http.StatusOK {
					w.WriteHeader(tt.status)
					return
				}
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewArtifactClient(client).FetchArtifact(context.Background())
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("FetchArtifact() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestClientEscapesUserID(t *testing.T) {
	var gotPath string
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, _ = NewPreferenceClient(client).LoadPreferences(context.Background(), "user/with spaces")
	if gotPath != "/v1/users/user%2Fwith%20spaces/preferences" {
		t.Errorf("escaped path = %q, want %q", gotPath, "/v1/users/user%2Fwith%20spaces/preferences")
	}
}
