// Pressrank - News Reading Personalization Engine
// Copyright 2026 Pressrank Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pressrank/pressrank

package personalize

import "errors"

var (
	// ErrNoActiveUser is returned when an event arrives before any user
	// session has been established.
	ErrNoActiveUser = errors.New("no active user session")

	// ErrPreferencesNotFound is returned by preference backends when no
	// record exists for a user.
	ErrPreferencesNotFound = errors.New("preferences not found")
)
