// Pressrank - News Reading Personalization Engine
// Copyright 2026 Pressrank Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pressrank/pressrank

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/pressrank/pressrank/internal/logging"
	"github.com/pressrank/pressrank/internal/personalize"
	"github.com/pressrank/pressrank/internal/personalize/artifact"
)

// Handler serves the personalization HTTP API.
type Handler struct {
	store    *personalize.Store
	ranker   *personalize.Ranker
	cache    *artifact.Cache // nil when no remote artifact source is configured
	validate *validator.Validate
	logger   zerolog.Logger
}

// NewHandler creates the API handler. cache may be nil when the engine runs
// without a remote artifact source.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewHandler(store *personalize.Store, ranker *personalize.Ranker, cache *artifact.Cache, logger zerolog.Logger) *Handler {
	return &Handler{
		store:    store,
		ranker:   ranker,
		cache:    cache,
		validate: validator.New(),
		logger:   logger.With().Str("component", "api").Logger(),
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logging.Error().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// decodeBody unmarshals and validates a JSON request body.
func (h *Handler) decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

// eventStatus maps a preference store error to an HTTP status. Events
// without an active user are rejected, everything else is a storage
// failure.
func eventStatus(err error) int {
	if errors.Is(err, personalize.ErrNoActiveUser) {
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type sessionRequest struct {
	UserID string `json:"user_id" validate:"required"`
}

type sessionResponse struct {
	UserID            string `json:"user_id"`
	TotalInteractions uint64 `json:"total_interactions"`
}

// SwitchUser activates a user session, loading persisted preferences in the
// background.
func (h *Handler) SwitchUser(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	if err := h.store.SwitchUser(r.Context(), personalize.UserID(req.UserID)); err != nil {
		h.logger.Error().Err(err).Str("user", req.UserID).Msg("switch user failed")
		writeError(w, http.StatusInternalServerError, "failed to switch user")
		return
	}

	writeJSON(w, http.StatusOK, sessionResponse{
		UserID:            req.UserID,
		TotalInteractions: h.store.TotalInteractions(),
	})
}

type itemPayload struct {
	ID            string    `json:"id" validate:"required"`
	Category      string    `json:"category" validate:"required"`
	Title         string    `json:"title"`
	Source        string    `json:"source"`
	PublishedAt   time.Time `json:"published_at"`
	TrendingScore float32   `json:"trending_score"`
}

func (p itemPayload) item() personalize.Item {
	return personalize.Item{
		ID:            personalize.ItemID(p.ID),
		Category:      personalize.CategoryID(p.Category),
		Title:         p.Title,
		Source:        p.Source,
		PublishedAt:   p.PublishedAt,
		TrendingScore: p.TrendingScore,
	}
}

type clickEventRequest struct {
	Item itemPayload `json:"item" validate:"required"`
}

// ClickEvent records a click interaction.
func (h *Handler) ClickEvent(w http.ResponseWriter, r *http.Request) {
	var req clickEventRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	if err := h.store.OnItemClicked(r.Context(), req.Item.item()); err != nil {
		writeError(w, eventStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "recorded"})
}

type readEventRequest struct {
	Item    itemPayload `json:"item" validate:"required"`
	Seconds float64     `json:"seconds" validate:"min=0"`
}

// ReadEvent records observed reading time for an item.
func (h *Handler) ReadEvent(w http.ResponseWriter, r *http.Request) {
	var req readEventRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	if err := h.store.OnReadingTimeObserved(r.Context(), req.Item.item(), req.Seconds); err != nil {
		writeError(w, eventStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "recorded"})
}

type bookmarkEventRequest struct {
	Item       itemPayload `json:"item" validate:"required"`
	Bookmarked bool        `json:"bookmarked"`
}

// BookmarkEvent records a bookmark add or removal.
func (h *Handler) BookmarkEvent(w http.ResponseWriter, r *http.Request) {
	var req bookmarkEventRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	if err := h.store.OnBookmarkToggled(r.Context(), req.Item.item(), req.Bookmarked); err != nil {
		writeError(w, eventStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "recorded"})
}

type rankRequest struct {
	Count      int           `json:"count" validate:"min=1"`
	Candidates []itemPayload `json:"candidates" validate:"required,min=1,dive"`
}

type rankedItem struct {
	Item          itemPayload `json:"item"`
	FinalScore    float32     `json:"final_score"`
	LocalScore    float32     `json:"local_score"`
	ArtifactScore float32     `json:"artifact_score"`
}

type rankResponse struct {
	Results []rankedItem `json:"results"`
}

// Rank orders candidate items for the active user.
func (h *Handler) Rank(w http.ResponseWriter, r *http.Request) {
	var req rankRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	candidates := make([]personalize.Item, 0, len(req.Candidates))
	for _, c := range req.Candidates {
		candidates = append(candidates, c.item())
	}

	ranked := h.ranker.Rank(r.Context(), candidates, req.Count)

	results := make([]rankedItem, 0, len(ranked))
	for _, sc := range ranked {
		results = append(results, rankedItem{
			Item: itemPayload{
				ID:            string(sc.Item.ID),
				Category:      string(sc.Item.Category),
				Title:         sc.Item.Title,
				Source:        sc.Item.Source,
				PublishedAt:   sc.Item.PublishedAt,
				TrendingScore: sc.Item.TrendingScore,
			},
			FinalScore:    sc.FinalScore,
			LocalScore:    sc.LocalScore,
			ArtifactScore: sc.ArtifactScore,
		})
	}
	writeJSON(w, http.StatusOK, rankResponse{Results: results})
}

type preferencesResponse struct {
	UserID             string             `json:"user_id"`
	CategoryScores     map[string]float32 `json:"category_scores"`
	RecentItems        []string           `json:"recent_items"`
	TotalInteractions  uint64             `json:"total_interactions"`
	LastUpdated        time.Time          `json:"last_updated"`
	FavoriteCategories []string           `json:"favorite_categories"`
}

// Preferences returns the active user's affinity snapshot.
func (h *Handler) Preferences(w http.ResponseWriter, _ *http.Request) {
	if h.store.UserID() == "" {
		writeError(w, http.StatusConflict, personalize.ErrNoActiveUser.Error())
		return
	}

	snap := h.store.Snapshot()
	resp := preferencesResponse{
		UserID:            string(h.store.UserID()),
		CategoryScores:    make(map[string]float32, len(snap.CategoryScores)),
		RecentItems:       make([]string, 0, len(snap.RecentItems)),
		TotalInteractions: snap.TotalInteractions,
		LastUpdated:       snap.LastUpdated,
	}
	for cat, score := range snap.CategoryScores {
		resp.CategoryScores[string(cat)] = score
	}
	for _, id := range snap.RecentItems {
		resp.RecentItems = append(resp.RecentItems, string(id))
	}
	for _, cat := range h.store.FavoriteCategories(personalize.TopCategoryCount) {
		resp.FavoriteCategories = append(resp.FavoriteCategories, string(cat))
	}
	writeJSON(w, http.StatusOK, resp)
}

// ClearPreferences wipes the active user's learned profile.
func (h *Handler) ClearPreferences(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Clear(r.Context()); err != nil {
		writeError(w, eventStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

type artifactStatusResponse struct {
	Loaded    bool       `json:"loaded"`
	Version   string     `json:"version,omitempty"`
	TrainedAt *time.Time `json:"trained_at,omitempty"`
	Cached    bool       `json:"cached"`
	FetchedAt *time.Time `json:"fetched_at,omitempty"`
}

// ArtifactStatus reports the scoring artifact currently in use and the
// state of the local cache.
func (h *Handler) ArtifactStatus(w http.ResponseWriter, _ *http.Request) {
	resp := artifactStatusResponse{}

	if art := h.ranker.Artifact(); art != nil {
		resp.Loaded = true
		resp.Version = art.Version
		trainedAt := art.TrainedAt
		resp.TrainedAt = &trainedAt
	}
	if h.cache != nil {
		status := h.cache.Status()
		resp.Cached = status.Cached
		if status.Cached {
			fetchedAt := status.FetchedAt
			resp.FetchedAt = &fetchedAt
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// RefreshArtifact forces a download of the latest scoring artifact.
func (h *Handler) RefreshArtifact(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		writeError(w, http.StatusNotFound, "no remote artifact source configured")
		return
	}

	if err := h.ranker.RefreshArtifact(r.Context(), true); err != nil {
		h.logger.Warn().Err(err).Msg("artifact refresh failed")
		writeError(w, http.StatusBadGateway, "artifact refresh failed")
		return
	}

	art := h.ranker.Artifact()
	writeJSON(w, http.StatusOK, map[string]string{"status": "refreshed", "version": art.Version})
}
