// Pressrank - News Reading Personalization Engine
// Copyright 2026 Pressrank Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pressrank/pressrank

// Package personalize implements the core personalization engine: the
// per-user preference store, the affinity scorer, and the hybrid ranker
// that blends the local signal with the collaborative-filtering artifact.
//
// # Components
//
//   - Store tracks reading behavior (clicks, dwell time, bookmarks) as
//     category affinity, persists it locally, and mirrors it to a remote
//     document store for cross-device continuity.
//   - Scorer turns an affinity snapshot into 0..1 preference scores and a
//     ranked list under the top-category, shuffle-within, diversity quota
//     policy.
//   - Ranker combines the scorer's output with the cached artifact's
//     factor-model score using a validated weight profile, falling back to
//     affinity-only ranking when the blend is disabled or no artifact is
//     loaded.
//
// # Consistency
//
// Local persistence is synchronous and authoritative for the running
// session. The remote mirror is fire-and-forget with full-document
// overwrite semantics: the last sync to complete wins. Concurrent category
// increments made on two devices before either sync completes can be
// silently dropped; this is an accepted weak-consistency tradeoff of the
// overwrite policy.
package personalize
