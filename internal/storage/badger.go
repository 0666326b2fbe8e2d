// Pressrank - News Reading Personalization Engine
// Copyright 2026 Pressrank Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pressrank/pressrank

// Package storage provides the local persistence layer on BadgerDB:
// per-user preference documents and the single cached artifact slot with
// its metadata record.
package storage

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/pressrank/pressrank/internal/personalize"
	"github.com/pressrank/pressrank/internal/personalize/artifact"
)

// Key layout. Preferences are namespaced by user ID so switching users
// swaps the whole document; the artifact occupies one fixed slot.
const (
	prefsKeyPrefix  = "prefs:"
	artifactKey     = "artifact:current"
	artifactMetaKey = "artifact:meta"
)

// Options configures the store.
type Options struct {
	// Path is the on-disk location of the Badger database. Ignored when
	// InMemory is set.
	Path string

	// InMemory runs Badger without disk persistence. Used in tests.
	InMemory bool
}

// Store is a BadgerDB-backed local store. It implements
// personalize.LocalStore and artifact.Slot.
type Store struct {
	db     *badger.DB
	logger zerolog.Logger
}

// Open opens (or creates) the local database.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func Open(opts Options, logger zerolog.Logger) (*Store, error) {
	badgerOpts := badger.DefaultOptions(opts.Path).
		WithInMemory(opts.InMemory).
		WithLogger(nil)

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %q: %w", opts.Path, err)
	}

	return &Store{
		db:     db,
		logger: logger.With().Str("component", "storage").Logger(),
	}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// LoadPreferences returns the persisted affinity record for a user, or
// personalize.ErrPreferencesNotFound.
func (s *Store) LoadPreferences(userID personalize.UserID) (*personalize.UserAffinity, error) {
	var aff personalize.UserAffinity
	err := s.get(prefsKey(userID), &aff)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, personalize.ErrPreferencesNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load preferences: %w", err)
	}
	if aff.CategoryScores == nil {
		aff.CategoryScores = make(map[personalize.CategoryID]float32)
	}
	return &aff, nil
}

// SavePreferences persists the full affinity record for a user.
func (s *Store) SavePreferences(userID personalize.UserID, aff *personalize.UserAffinity) error {
	if err := s.set(prefsKey(userID), aff); err != nil {
		return fmt.Errorf("save preferences: %w", err)
	}
	return nil
}

// DeletePreferences removes the persisted record for a user. Deleting an
// absent record is not an error.
func (s *Store) DeletePreferences(userID personalize.UserID) error {
	if err := s.delete(prefsKey(userID)); err != nil {
		return fmt.Errorf("delete preferences: %w", err)
	}
	return nil
}

// LoadArtifact returns the cached artifact, or artifact.ErrNotFound.
func (s *Store) LoadArtifact() (*artifact.Artifact, error) {
	var a artifact.Artifact
	err := s.get([]byte(artifactKey), &a)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, artifact.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load artifact: %w", err)
	}
	return &a, nil
}

// SaveArtifact replaces the cached artifact and its metadata in a single
// transaction, so a failure never leaves the slot half-replaced.
func (s *Store) SaveArtifact(a *artifact.Artifact, m *artifact.Metadata) error {
	artifactData, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("save artifact: marshal: %w", err)
	}
	metaData, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("save artifact metadata: marshal: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(artifactKey), artifactData); err != nil {
			return err
		}
		return txn.Set([]byte(artifactMetaKey), metaData)
	})
	if err != nil {
		return fmt.Errorf("save artifact: %w", err)
	}
	return nil
}

// LoadMetadata returns the cached artifact's metadata record, or
// artifact.ErrNotFound.
func (s *Store) LoadMetadata() (*artifact.Metadata, error) {
	var m artifact.Metadata
	err := s.get([]byte(artifactMetaKey), &m)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, artifact.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load artifact metadata: %w", err)
	}
	return &m, nil
}

// DeleteArtifact removes the cached artifact and its metadata atomically.
func (s *Store) DeleteArtifact() error {
	err := s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete([]byte(artifactKey)); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		if err := txn.Delete([]byte(artifactMetaKey)); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete artifact: %w", err)
	}
	return nil
}

// get reads and unmarshals one key. Returns badger.ErrKeyNotFound untouched
// so callers can map it to their domain error.
func (s *Store) get(key []byte, v any) error {
	return s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, v)
		})
	})
}

// set marshals and writes one key.
func (s *Store) set(key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, data)
	})
}

// delete removes one key, ignoring absence.
func (s *Store) delete(key []byte) error {
	return s.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		return err
	})
}

// prefsKey builds the namespaced preference key for a user.
func prefsKey(userID personalize.UserID) []byte {
	return []byte(prefsKeyPrefix + string(userID))
}

// Interface compliance.
var (
	_ personalize.LocalStore = (*Store)(nil)
	_ artifact.Slot          = (*Store)(nil)
)
