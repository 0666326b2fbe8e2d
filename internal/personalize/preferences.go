// Pressrank - News Reading Personalization Engine
// Copyright 2026 Pressrank Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pressrank/pressrank

package personalize

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/pressrank/pressrank/internal/metrics"
)

// LocalStore persists preference records on the local node, namespaced by
// user ID. Local writes are synchronous and authoritative for the running
// session.
type LocalStore interface {
	// LoadPreferences returns ErrPreferencesNotFound when no record exists.
	LoadPreferences(userID UserID) (*UserAffinity, error)
	SavePreferences(userID UserID, aff *UserAffinity) error
	DeletePreferences(userID UserID) error
}

// RemoteMirror is the cross-device preference document store. Reads happen
// on user switch (cache miss); writes go through the async sync pipeline
// with full-document overwrite semantics.
type RemoteMirror interface {
	LoadPreferences(ctx context.Context, userID UserID) (*UserAffinity, error)
	SavePreferences(ctx context.Context, userID UserID, aff *UserAffinity) error
	DeletePreferences(ctx context.Context, userID UserID) error
}

// SyncPublisher hands preference snapshots to the fire-and-forget sync
// pipeline. Implementations must not block the caller; failures are
// observed via logs and metrics only.
type SyncPublisher interface {
	PublishPreferences(userID UserID, aff *UserAffinity)
	PublishClear(userID UserID)
}

// Store owns the UserAffinity of the currently active user. A single mutex
// guards the whole record: category count is small and contention is low,
// so per-call serialization is the simplest correct discipline.
type Store struct {
	mu   sync.Mutex
	user UserID
	aff  *UserAffinity

	// gen increments on every user switch; a remote load result is only
	// installed when its generation still matches.
	gen uint64

	// loading is true while a switch is loading persisted history. Events
	// arriving in that window mutate the in-memory record but defer
	// persistence to the switch's final commit, so a near-empty record is
	// never written over the stored history.
	loading bool

	// loadCancel cancels the in-flight remote load of the previous user.
	loadCancel context.CancelFunc

	local  LocalStore
	remote RemoteMirror
	syncer SyncPublisher

	// knownCategories drives balanced seeding for brand-new users.
	knownCategories []CategoryID

	logger zerolog.Logger
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithRemoteMirror enables remote load-on-miss during user switches.
func WithRemoteMirror(remote RemoteMirror) StoreOption {
	return func(s *Store) { s.remote = remote }
}

// WithSyncPublisher enables asynchronous remote mirroring of local commits.
func WithSyncPublisher(p SyncPublisher) StoreOption {
	return func(s *Store) { s.syncer = p }
}

// WithKnownCategories sets the category universe used for balanced seeding.
func WithKnownCategories(categories []CategoryID) StoreOption {
	return func(s *Store) { s.knownCategories = categories }
}

// NewStore creates a preference store backed by the given local persistence.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewStore(local LocalStore, logger zerolog.Logger, opts ...StoreOption) *Store {
	s := &Store{
		aff:    NewUserAffinity(),
		local:  local,
		logger: logger.With().Str("component", "preferences").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// UserID returns the active user, or empty when no session is established.
func (s *Store) UserID() UserID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

// Snapshot returns a deep copy of the active user's affinity record.
func (s *Store) Snapshot() *UserAffinity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.aff.Clone()
}

// OnItemClicked records an article click: bumps the category score by the
// click weight, pushes the item onto the recent history, increments the
// interaction counter, persists locally, and schedules a remote mirror.
// A local persistence failure is fatal to the call and returned.
func (s *Store) OnItemClicked(ctx context.Context, item Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.user == "" {
		return ErrNoActiveUser
	}

	s.aff.CategoryScores[item.Category] += ClickWeight
	s.pushRecentLocked(item.ID)
	s.aff.TotalInteractions++
	s.aff.LastUpdated = time.Now()

	metrics.InteractionEvents.WithLabelValues("click").Inc()
	return s.commitLocked(true)
}

// OnReadingTimeObserved records dwell time on an article. Observations
// under the minimum threshold are ignored; longer reads add up to
// MaxReadBoost to the category score. Neither the interaction counter nor
// the recent history move.
func (s *Store) OnReadingTimeObserved(ctx context.Context, item Item, durationSeconds float64) error {
	if durationSeconds < MinReadSeconds {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.user == "" {
		return ErrNoActiveUser
	}

	boost := float32(durationSeconds / 60.0)
	if boost > MaxReadBoost {
		boost = MaxReadBoost
	}
	s.aff.CategoryScores[item.Category] += boost
	s.aff.LastUpdated = time.Now()

	metrics.InteractionEvents.WithLabelValues("read").Inc()
	return s.commitLocked(false)
}

// OnBookmarkToggled records a bookmark change: +BookmarkWeight when saved,
// -BookmarkWeight when removed. Triggers a remote sync.
func (s *Store) OnBookmarkToggled(ctx context.Context, item Item, bookmarked bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.user == "" {
		return ErrNoActiveUser
	}

	if bookmarked {
		s.aff.CategoryScores[item.Category] += BookmarkWeight
	} else {
		s.aff.CategoryScores[item.Category] -= BookmarkWeight
	}
	s.aff.LastUpdated = time.Now()

	metrics.InteractionEvents.WithLabelValues("bookmark").Inc()
	return s.commitLocked(true)
}

// commitLocked persists the record locally and, when mirror is set,
// publishes a snapshot to the sync pipeline. The local write happens before
// the publish so the remote copy never runs ahead of local state.
// Must be called with mu held.
func (s *Store) commitLocked(mirror bool) error {
	if s.loading {
		// A switch is loading persisted history; the in-memory record holds
		// only the deltas accumulated since the switch. Persisting now would
		// overwrite the stored record, so the switch's final commit covers
		// this event.
		return nil
	}

	if err := s.local.SavePreferences(s.user, s.aff); err != nil {
		metrics.LocalPersistErrors.Inc()
		s.logger.Error().Err(err).Str("user", string(s.user)).Msg("local preference write failed")
		return fmt.Errorf("persist preferences: %w", err)
	}

	if mirror && s.syncer != nil {
		s.syncer.PublishPreferences(s.user, s.aff.Clone())
	}
	return nil
}

// pushRecentLocked prepends the item to the recent history, deduplicating
// and evicting beyond capacity. Must be called with mu held.
func (s *Store) pushRecentLocked(id ItemID) {
	recent := make([]ItemID, 0, RecentItemsCap)
	recent = append(recent, id)
	for _, existing := range s.aff.RecentItems {
		if existing == id {
			continue
		}
		recent = append(recent, existing)
		if len(recent) == RecentItemsCap {
			break
		}
	}
	s.aff.RecentItems = recent
}

// PreferenceBoost returns a 0..1 signal combining normalized category
// affinity with a recent-item bonus.
func (s *Store) PreferenceBoost(item Item) float32 {
	s.mu.Lock()
	defer s.mu.Unlock()

	boost := s.aff.CategoryScores[item.Category] / 10.0
	if boost > 1.0 {
		boost = 1.0
	}
	if boost < 0 {
		boost = 0
	}

	for _, recent := range s.aff.RecentItems {
		if recent == item.ID {
			boost += RecentItemBoost
			break
		}
	}

	if boost > 1.0 {
		boost = 1.0
	}
	return boost
}

// FavoriteCategories returns the top n categories by score, descending.
// Ties break lexicographically by category ID so the order is deterministic
// for a given score map. n defaults to TopCategoryCount when non-positive.
func (s *Store) FavoriteCategories(n int) []CategoryID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return favoriteCategories(s.aff, n)
}

// favoriteCategories is the shared sort used by the store and the scorer.
func favoriteCategories(aff *UserAffinity, n int) []CategoryID {
	if n <= 0 {
		n = TopCategoryCount
	}

	cats := make([]CategoryID, 0, len(aff.CategoryScores))
	for c := range aff.CategoryScores {
		cats = append(cats, c)
	}
	sort.Slice(cats, func(i, j int) bool {
		si, sj := aff.CategoryScores[cats[i]], aff.CategoryScores[cats[j]]
		if si != sj {
			return si > sj
		}
		return cats[i] < cats[j]
	})

	if len(cats) > n {
		cats = cats[:n]
	}
	return cats
}

// TotalInteractions returns the interaction counter for the active user.
func (s *Store) TotalInteractions() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.aff.TotalInteractions
}

// HasSufficientDataForArtifactBlend reports whether the user has crossed the
// cold-start boundary shared with the ranker's weight profile selection.
func (s *Store) HasSufficientDataForArtifactBlend() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.aff.TotalInteractions >= MinInteractionsForBlend
}

// SwitchUser atomically swaps the store to a new user's namespace. The old
// user's in-memory state is discarded before any of the new user's data is
// loaded, and an in-flight remote load for the previous user is canceled so
// a stale result can never land after the switch.
//
// Load order is local-cache-first, then remote on miss. A brand-new user is
// seeded with a balanced distribution over the known categories; seeding
// never overwrites a non-empty record.
func (s *Store) SwitchUser(ctx context.Context, id UserID) error {
	if id == "" {
		return errors.New("empty user id")
	}

	s.mu.Lock()
	if s.loadCancel != nil {
		s.loadCancel()
		s.loadCancel = nil
	}
	s.user = id
	s.gen++
	gen := s.gen
	s.aff = NewUserAffinity()
	s.loading = true

	loadCtx, cancel := context.WithCancel(ctx)
	s.loadCancel = cancel
	s.mu.Unlock()

	aff, err := s.loadPreferences(loadCtx, id)
	cancel()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.gen != gen {
		// Superseded by a newer switch; discard.
		return nil
	}
	s.loadCancel = nil
	s.loading = false

	if err != nil {
		return fmt.Errorf("load preferences for %s: %w", id, err)
	}

	// Events that raced the load accumulated against a fresh record, so they
	// are deltas; layer them on top of the loaded history instead of letting
	// either side overwrite the other.
	raced := s.aff
	s.aff = mergeRaced(aff, raced)

	if s.aff.IsEmpty() && len(s.knownCategories) > 0 {
		s.seedBalancedLocked()
	}

	s.logger.Info().
		Str("user", string(id)).
		Uint64("interactions", s.aff.TotalInteractions).
		Int("categories", len(s.aff.CategoryScores)).
		Msg("user session switched")

	return s.commitLocked(!raced.IsEmpty())
}

// mergeRaced layers the event deltas recorded during an in-flight load on
// top of the loaded record: category scores and the interaction counter add,
// raced recent items stay ahead of the loaded history.
func mergeRaced(loaded, raced *UserAffinity) *UserAffinity {
	if raced.IsEmpty() {
		return loaded
	}

	for c, v := range raced.CategoryScores {
		loaded.CategoryScores[c] += v
	}
	loaded.TotalInteractions += raced.TotalInteractions

	recent := make([]ItemID, 0, RecentItemsCap)
	seen := make(map[ItemID]struct{}, RecentItemsCap)
	push := func(id ItemID) {
		if _, ok := seen[id]; ok || len(recent) == RecentItemsCap {
			return
		}
		seen[id] = struct{}{}
		recent = append(recent, id)
	}
	for _, id := range raced.RecentItems {
		push(id)
	}
	for _, id := range loaded.RecentItems {
		push(id)
	}
	loaded.RecentItems = recent

	if raced.LastUpdated.After(loaded.LastUpdated) {
		loaded.LastUpdated = raced.LastUpdated
	}
	return loaded
}

// loadPreferences tries local persistence first, then the remote mirror.
// Absent everywhere means a fresh empty record, not an error.
func (s *Store) loadPreferences(ctx context.Context, id UserID) (*UserAffinity, error) {
	aff, err := s.local.LoadPreferences(id)
	switch {
	case err == nil:
		return aff, nil
	case !errors.Is(err, ErrPreferencesNotFound):
		return nil, fmt.Errorf("local load: %w", err)
	}

	if s.remote == nil {
		return NewUserAffinity(), nil
	}

	aff, err = s.remote.LoadPreferences(ctx, id)
	switch {
	case err == nil:
		return aff, nil
	case errors.Is(err, ErrPreferencesNotFound):
		return NewUserAffinity(), nil
	case errors.Is(err, context.Canceled):
		return nil, err
	default:
		// Remote is best-effort; a transient failure degrades to a fresh
		// record rather than blocking the session.
		s.logger.Warn().Err(err).Str("user", string(id)).Msg("remote preference load failed")
		return NewUserAffinity(), nil
	}
}

// seedBalancedLocked seeds every known category to the same constant.
// Must be called with mu held and only on an empty record.
func (s *Store) seedBalancedLocked() {
	for _, c := range s.knownCategories {
		s.aff.CategoryScores[c] = BalancedSeedScore
	}
	s.aff.LastUpdated = time.Now()
	s.logger.Debug().
		Str("user", string(s.user)).
		Int("categories", len(s.knownCategories)).
		Msg("seeded balanced preferences")
}

// Clear wipes the active user's record from memory and local persistence,
// and schedules deletion of the remote copy. Used on sign-out and explicit
// reset.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.user == "" {
		return ErrNoActiveUser
	}

	// A load still in flight must not resurrect the record after sign-out.
	if s.loadCancel != nil {
		s.loadCancel()
		s.loadCancel = nil
	}
	s.gen++
	s.loading = false

	user := s.user
	s.aff = NewUserAffinity()

	if err := s.local.DeletePreferences(user); err != nil {
		metrics.LocalPersistErrors.Inc()
		return fmt.Errorf("clear local preferences: %w", err)
	}

	if s.syncer != nil {
		s.syncer.PublishClear(user)
	}

	s.logger.Info().Str("user", string(user)).Msg("preferences cleared")
	return nil
}
