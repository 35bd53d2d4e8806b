package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/terra-clan/bumpstory/internal/journey"
	"github.com/terra-clan/bumpstory/internal/models"
)

const (
	minFontScale    = 0.5
	maxFontScale    = 3.0
	maxSavedPresets = 20
)

// Preference handlers

func (s *Server) handleGetPreferences(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())
	prefs, err := s.repo.GetPreferences(r.Context(), claims.UserID)
	if err != nil {
		respondStorageError(w, err, "preferences")
		return
	}
	respondJSON(w, http.StatusOK, prefs)
}

func (s *Server) handleUpdatePreferences(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())

	var req models.UpdatePreferencesRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	prefs, err := s.repo.GetPreferences(r.Context(), claims.UserID)
	if err != nil {
		respondStorageError(w, err, "preferences")
		return
	}

	if err := s.applyPreferences(prefs, req); err != nil {
		respondError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}
	prefs.UpdatedAt = s.now().UTC()

	if err := s.repo.UpsertPreferences(r.Context(), prefs); err != nil {
		respondStorageError(w, err, "preferences")
		return
	}

	respondJSON(w, http.StatusOK, prefs)
}

// applyPreferences merges a partial update into prefs after validating it
func (s *Server) applyPreferences(prefs *models.Preferences, req models.UpdatePreferencesRequest) error {
	if req.Theme != nil {
		switch *req.Theme {
		case models.ThemeLight, models.ThemeDark, models.ThemeSystem:
			prefs.Theme = *req.Theme
		default:
			return fmt.Errorf("unknown theme %q", *req.Theme)
		}
	}
	if req.FontScale != nil {
		if *req.FontScale < minFontScale || *req.FontScale > maxFontScale {
			return fmt.Errorf("fontScale must be between %.1f and %.1f", minFontScale, maxFontScale)
		}
		prefs.FontScale = *req.FontScale
	}
	if req.ReadingMode != nil {
		prefs.ReadingMode = *req.ReadingMode
	}
	if req.NarrationEnabled != nil {
		prefs.NarrationEnabled = *req.NarrationEnabled
	}
	if req.HighContrast != nil {
		prefs.HighContrast = *req.HighContrast
	}

	if req.DueDate != nil && req.LastPeriodDate != nil {
		return fmt.Errorf("send either dueDate or lastPeriodDate, not both")
	}
	if req.DueDate != nil {
		if *req.DueDate == "" {
			prefs.DueDate = nil
		} else {
			d, err := parseDate(*req.DueDate)
			if err != nil {
				return fmt.Errorf("dueDate must be YYYY-MM-DD")
			}
			prefs.DueDate = &d
		}
	}
	if req.LastPeriodDate != nil {
		d, err := parseDate(*req.LastPeriodDate)
		if err != nil {
			return fmt.Errorf("lastPeriodDate must be YYYY-MM-DD")
		}
		due := journey.DueDateFromLastPeriod(d)
		prefs.DueDate = &due
	}

	if req.SavedPresets != nil {
		presets, err := s.validatePresets(*req.SavedPresets)
		if err != nil {
			return err
		}
		prefs.SavedPresets = presets
	}
	return nil
}

// validatePresets checks user presets; they can never claim to be built in
func (s *Server) validatePresets(in []models.FilterPreset) ([]models.FilterPreset, error) {
	if len(in) > maxSavedPresets {
		return nil, fmt.Errorf("at most %d saved presets are allowed", maxSavedPresets)
	}

	reserved := make(map[string]bool)
	for _, p := range s.catalog.Presets() {
		reserved[p.ID] = true
	}

	seen := make(map[string]bool, len(in))
	out := make([]models.FilterPreset, 0, len(in))
	for _, p := range in {
		p.ID = strings.TrimSpace(p.ID)
		p.Name = strings.TrimSpace(p.Name)
		if p.ID == "" || p.Name == "" {
			return nil, fmt.Errorf("presets need an id and a name")
		}
		if seen[p.ID] || reserved[p.ID] {
			return nil, fmt.Errorf("duplicate preset id %q", p.ID)
		}
		if err := s.validateFilterState(p.Filters); err != nil {
			return nil, fmt.Errorf("preset %q: %w", p.ID, err)
		}
		seen[p.ID] = true
		p.IsBuiltIn = false
		out = append(out, p)
	}
	return out, nil
}

func (s *Server) handleMyTrimester(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())
	prefs, err := s.repo.GetPreferences(r.Context(), claims.UserID)
	if err != nil {
		respondStorageError(w, err, "preferences")
		return
	}
	if prefs.DueDate == nil {
		respondError(w, http.StatusNotFound, "due_date_not_set", "set a due date in preferences first")
		return
	}

	now, ok := s.referenceTime(w, r)
	if !ok {
		return
	}

	respondJSON(w, http.StatusOK, journey.CalculateTrimester(*prefs.DueDate, now))
}

// Progress handlers

func (s *Server) handleGetProgress(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())

	snap, err := s.progressSnapshot(r.Context(), claims.UserID)
	if err != nil {
		respondStorageError(w, err, "progress")
		return
	}

	stories, err := s.repo.ListStoryProgress(r.Context(), claims.UserID)
	if err != nil {
		respondStorageError(w, err, "progress")
		return
	}

	total := len(s.catalog.Stories())
	respondJSON(w, http.StatusOK, map[string]any{
		"completed":   snap.Completed,
		"in_progress": snap.InProgress,
		"stories":     stories,
		"overall": models.ProgressStats{
			Completed:  len(snap.Completed),
			Total:      total,
			Percentage: journey.CalculateProgress(len(snap.Completed), total),
		},
	})
}

// handleToggleCompletion flips a story between completed and not completed
func (s *Server) handleToggleCompletion(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())
	id, ok := storyIDParam(w, r)
	if !ok {
		return
	}
	if !s.catalog.HasStory(id) {
		respondError(w, http.StatusNotFound, "not_found", "story not found")
		return
	}

	completed, err := s.repo.ToggleCompleted(r.Context(), claims.UserID, id)
	if err != nil {
		respondStorageError(w, err, "progress")
		return
	}
	s.progress.Invalidate(r.Context(), claims.UserID)

	respondJSON(w, http.StatusOK, map[string]any{
		"story_id":  id,
		"completed": completed,
	})
}

func (s *Server) handleUpdateProgress(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())
	id, ok := storyIDParam(w, r)
	if !ok {
		return
	}
	if !s.catalog.HasStory(id) {
		respondError(w, http.StatusNotFound, "not_found", "story not found")
		return
	}

	var req models.UpdateProgressRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Percent < 0 || req.Percent > 100 {
		respondError(w, http.StatusBadRequest, "validation_error", "percent must be between 0 and 100")
		return
	}

	if err := s.repo.SetStoryProgress(r.Context(), claims.UserID, id, req.Percent); err != nil {
		respondStorageError(w, err, "progress")
		return
	}
	s.progress.Invalidate(r.Context(), claims.UserID)

	respondJSON(w, http.StatusOK, map[string]any{
		"story_id": id,
		"percent":  req.Percent,
	})
}
