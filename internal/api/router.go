// Pressrank - News Reading Personalization Engine
// Copyright 2026 Pressrank Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pressrank/pressrank

// Package api provides HTTP routing and handlers using the Chi router.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterConfig holds routing and middleware settings.
type RouterConfig struct {
	RateLimitReqs   int
	RateLimitWindow time.Duration
	CORSOrigins     []string
}

// NewRouter builds the HTTP handler tree.
func NewRouter(h *Handler, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(requestIDMiddleware)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", h.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(httprate.LimitByIP(cfg.RateLimitReqs, cfg.RateLimitWindow))
		r.Use(requestLogging)

		r.Post("/session", h.SwitchUser)

		r.Route("/events", func(r chi.Router) {
			r.Post("/click", h.ClickEvent)
			r.Post("/read", h.ReadEvent)
			r.Post("/bookmark", h.BookmarkEvent)
		})

		r.Post("/rank", h.Rank)

		r.Get("/preferences", h.Preferences)
		r.Delete("/preferences", h.ClearPreferences)

		r.Get("/artifact", h.ArtifactStatus)
		r.Post("/artifact/refresh", h.RefreshArtifact)
	})

	return r
}
