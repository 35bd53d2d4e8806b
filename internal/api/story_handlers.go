package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/terra-clan/bumpstory/internal/catalog"
	"github.com/terra-clan/bumpstory/internal/journey"
	"github.com/terra-clan/bumpstory/internal/models"
)

// Story handlers: catalog browsing with the advanced filter engine

// storyView annotates a story with its derived duration and completion buckets
type storyView struct {
	models.Story
	DurationCategory models.DurationCategory `json:"durationCategory"`
	Status           models.CompletionStatus `json:"status"`
}

func newStoryView(story models.Story, completed, inProgress journey.IDSet) storyView {
	return storyView{
		Story:            story,
		DurationCategory: journey.CategorizeDuration(story.Duration),
		Status:           journey.CompletionStatusOf(story.ID, completed, inProgress),
	}
}

// filterStateFromQuery maps query parameters onto a filter state.
// Missing parameters mean "all"; unknown enum values are rejected.
func (s *Server) filterStateFromQuery(r *http.Request) (models.AdvancedFilterState, error) {
	q := r.URL.Query()
	state := models.DefaultFilterState()

	if v := q.Get("category"); v != "" {
		state.SelectedCategory = v
	}
	if v := q.Get("difficulty"); v != "" {
		state.SelectedDifficulty = v
	}
	state.SearchTerm = q.Get("q")
	if v := q.Get("duration"); v != "" {
		state.SelectedDuration = v
	}
	if v := q.Get("status"); v != "" {
		state.SelectedCompletionStatus = v
	}
	if v := q.Get("trimester"); v != "" {
		state.SelectedTrimester = v
	}

	return state, s.validateFilterState(state)
}

// validateFilterState checks a filter state against the loaded catalog
func (s *Server) validateFilterState(state models.AdvancedFilterState) error {
	return journey.ValidateFilterState(state, func(id models.CategoryID) bool {
		_, err := s.catalog.Category(id)
		return err == nil
	})
}

// parseIDList parses a comma-separated list of story IDs
func parseIDList(raw string) ([]int, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	ids := make([]int, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		id, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid story id %q", p)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// progressSnapshot loads a user's snapshot through the cache
func (s *Server) progressSnapshot(ctx context.Context, userID uuid.UUID) (*models.ProgressSnapshot, error) {
	if snap, ok := s.progress.Get(ctx, userID); ok {
		return snap, nil
	}
	version, cacheable := s.progress.Version(ctx, userID)
	snap, err := s.repo.GetProgressSnapshot(ctx, userID)
	if err != nil {
		return nil, err
	}
	if cacheable {
		s.progress.Set(ctx, userID, version, snap)
	}
	return snap, nil
}

// completionSets returns completed and in-progress sets for the caller.
// Signed-in users get server-side progress; guests may pass their local lists.
func (s *Server) completionSets(r *http.Request) (journey.IDSet, journey.IDSet, error) {
	if claims := ClaimsFromContext(r.Context()); claims != nil {
		snap, err := s.progressSnapshot(r.Context(), claims.UserID)
		if err != nil {
			return nil, nil, err
		}
		return journey.NewIDSet(snap.Completed...), journey.NewIDSet(snap.InProgress...), nil
	}

	completed, err := parseIDList(r.URL.Query().Get("completed"))
	if err != nil {
		return nil, nil, errBadRequest{err}
	}
	inProgress, err := parseIDList(r.URL.Query().Get("in_progress"))
	if err != nil {
		return nil, nil, errBadRequest{err}
	}
	return journey.NewIDSet(completed...), journey.NewIDSet(inProgress...), nil
}

// errBadRequest marks client input errors surfaced from helpers
type errBadRequest struct{ error }

func (s *Server) respondCompletionError(w http.ResponseWriter, err error) {
	var bad errBadRequest
	if errors.As(err, &bad) {
		respondError(w, http.StatusBadRequest, "validation_error", bad.Error())
		return
	}
	respondStorageError(w, err, "progress")
}

// userPresets returns the catalog presets followed by the caller's saved ones
func (s *Server) userPresets(r *http.Request) []models.FilterPreset {
	presets := s.catalog.Presets()
	claims := ClaimsFromContext(r.Context())
	if claims == nil {
		return presets
	}
	prefs, err := s.repo.GetPreferences(r.Context(), claims.UserID)
	if err != nil {
		return presets
	}
	return append(presets, prefs.SavedPresets...)
}

func (s *Server) handleListStories(w http.ResponseWriter, r *http.Request) {
	state, err := s.filterStateFromQuery(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	completed, inProgress, err := s.completionSets(r)
	if err != nil {
		s.respondCompletionError(w, err)
		return
	}

	filtered := journey.FilterStories(s.catalog.Stories(), state, completed, inProgress)
	views := make([]storyView, 0, len(filtered))
	for _, story := range filtered {
		views = append(views, newStoryView(story, completed, inProgress))
	}

	var matching *models.FilterPreset
	if preset, ok := journey.FindMatchingPreset(state, s.userPresets(r)); ok {
		matching = &preset
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"stories":         views,
		"total":           len(views),
		"filters":         state,
		"active_filters":  journey.CountActiveFilters(state),
		"matching_preset": matching,
	})
}

func (s *Server) handleGetStory(w http.ResponseWriter, r *http.Request) {
	id, ok := storyIDParam(w, r)
	if !ok {
		return
	}

	story, err := s.catalog.Story(id)
	if err != nil {
		respondError(w, http.StatusNotFound, "not_found", "story not found")
		return
	}

	completed, inProgress, err := s.completionSets(r)
	if err != nil {
		s.respondCompletionError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, newStoryView(story, completed, inProgress))
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	categories := s.catalog.Categories()
	respondJSON(w, http.StatusOK, map[string]any{
		"categories": categories,
		"total":      len(categories),
	})
}

func (s *Server) handleCatalogStats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.catalog.Stats())
}

func (s *Server) handleListPresets(w http.ResponseWriter, r *http.Request) {
	presets := s.userPresets(r)
	respondJSON(w, http.StatusOK, map[string]any{
		"presets": presets,
		"total":   len(presets),
	})
}

func (s *Server) handleListPaths(w http.ResponseWriter, r *http.Request) {
	paths := s.catalog.Paths()
	respondJSON(w, http.StatusOK, map[string]any{
		"paths": paths,
		"total": len(paths),
	})
}

// handleGetPath sequences a learning path against the caller's completed stories
func (s *Server) handleGetPath(w http.ResponseWriter, r *http.Request) {
	path, err := s.catalog.Path(chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, catalog.ErrPathNotFound) {
			respondError(w, http.StatusNotFound, "not_found", "learning path not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to get learning path")
		return
	}

	completed, _, err := s.completionSets(r)
	if err != nil {
		s.respondCompletionError(w, err)
		return
	}

	items := journey.BuildLearningPathItems(s.catalog.Stories(), completed, path)
	stats := journey.ProgressStatsFor(completed, path)

	resp := map[string]any{
		"path":     path,
		"items":    items,
		"stats":    stats,
		"complete": journey.IsJourneyComplete(stats),
	}
	if current, ok := journey.CurrentItem(items); ok {
		resp["current"] = current
	}
	respondJSON(w, http.StatusOK, resp)
}

const dateLayout = "2006-01-02"

func parseDate(raw string) (time.Time, error) {
	return time.ParseInLocation(dateLayout, raw, time.UTC)
}

// handleTrimester computes pregnancy progress from a due date or last period date
func (s *Server) handleTrimester(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var dueDate time.Time
	switch {
	case q.Get("due_date") != "":
		d, err := parseDate(q.Get("due_date"))
		if err != nil {
			respondError(w, http.StatusBadRequest, "validation_error", "due_date must be YYYY-MM-DD")
			return
		}
		dueDate = d
	case q.Get("last_period") != "":
		d, err := parseDate(q.Get("last_period"))
		if err != nil {
			respondError(w, http.StatusBadRequest, "validation_error", "last_period must be YYYY-MM-DD")
			return
		}
		dueDate = journey.DueDateFromLastPeriod(d)
	default:
		respondError(w, http.StatusBadRequest, "validation_error", "due_date or last_period is required")
		return
	}

	now, ok := s.referenceTime(w, r)
	if !ok {
		return
	}

	respondJSON(w, http.StatusOK, journey.CalculateTrimester(dueDate, now))
}

// referenceTime reads the optional ?date= override, defaulting to now
func (s *Server) referenceTime(w http.ResponseWriter, r *http.Request) (time.Time, bool) {
	raw := r.URL.Query().Get("date")
	if raw == "" {
		return s.now().UTC(), true
	}
	d, err := parseDate(raw)
	if err != nil {
		respondError(w, http.StatusBadRequest, "validation_error", "date must be YYYY-MM-DD")
		return time.Time{}, false
	}
	return d, true
}
