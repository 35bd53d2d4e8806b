package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/terra-clan/bumpstory/internal/journey"
	"github.com/terra-clan/bumpstory/internal/models"
)

const (
	maxJournalTitle = 200
	maxJournalBody  = 20000
	maxJournalTags  = 20
	maxTagLength    = 40
)

// uuidParam parses the {id} URL parameter as a UUID
func uuidParam(w http.ResponseWriter, r *http.Request, what string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "validation_error", "invalid "+what+" id")
		return uuid.Nil, false
	}
	return id, true
}

// normalizeJournalRequest trims and validates an entry payload in place
func normalizeJournalRequest(req *models.JournalRequest) error {
	req.Title = strings.TrimSpace(req.Title)
	req.Body = strings.TrimSpace(req.Body)

	if req.Title == "" && req.Body == "" && req.VoiceNote == nil {
		return fmt.Errorf("entry needs a title, a body or a voice note")
	}
	if len(req.Title) > maxJournalTitle {
		return fmt.Errorf("title must be at most %d characters", maxJournalTitle)
	}
	if len(req.Body) > maxJournalBody {
		return fmt.Errorf("body must be at most %d characters", maxJournalBody)
	}
	if req.Mood != "" && !req.Mood.Valid() {
		return fmt.Errorf("unknown mood %q", req.Mood)
	}
	if req.VoiceNote != nil {
		if strings.TrimSpace(req.VoiceNote.URL) == "" || req.VoiceNote.DurationSeconds <= 0 {
			return fmt.Errorf("voice note needs a url and a positive duration")
		}
	}

	if len(req.Tags) > maxJournalTags {
		return fmt.Errorf("at most %d tags are allowed", maxJournalTags)
	}
	tags := make([]string, 0, len(req.Tags))
	for _, t := range req.Tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if len(t) > maxTagLength {
			return fmt.Errorf("tags must be at most %d characters", maxTagLength)
		}
		tags = append(tags, t)
	}
	req.Tags = tags
	return nil
}

// currentWeek returns the pregnancy week for the user, or nil without a due date
func (s *Server) currentWeek(ctx context.Context, userID uuid.UUID) *int {
	prefs, err := s.repo.GetPreferences(ctx, userID)
	if err != nil {
		slog.Warn("failed to load preferences for journal week", "user_id", userID, "error", err)
		return nil
	}
	if prefs.DueDate == nil {
		return nil
	}
	week := journey.WeekNumber(*prefs.DueDate, s.now().UTC())
	if week <= 0 {
		return nil
	}
	return &week
}

func (s *Server) handleListJournal(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())
	q := r.URL.Query()

	filters := models.JournalFilters{}
	filters.Limit, filters.Offset = pageParams(r)
	if v := q.Get("mood"); v != "" {
		if !models.Mood(v).Valid() {
			respondError(w, http.StatusBadRequest, "validation_error", "unknown mood")
			return
		}
		filters.Mood = models.Mood(v)
	}
	if v := q.Get("since"); v != "" {
		since, err := parseDate(v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "validation_error", "since must be YYYY-MM-DD")
			return
		}
		filters.Since = &since
	}

	entries, err := s.repo.ListJournalEntries(r.Context(), claims.UserID, filters)
	if err != nil {
		respondStorageError(w, err, "journal entries")
		return
	}
	if entries == nil {
		entries = []*models.JournalEntry{}
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"total":   len(entries),
	})
}

func (s *Server) handleCreateJournal(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())

	var req models.JournalRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := normalizeJournalRequest(&req); err != nil {
		respondError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	now := s.now().UTC()
	entry := &models.JournalEntry{
		ID:         uuid.New(),
		UserID:     claims.UserID,
		Title:      req.Title,
		Body:       req.Body,
		Mood:       req.Mood,
		WeekNumber: s.currentWeek(r.Context(), claims.UserID),
		VoiceNote:  req.VoiceNote,
		Tags:       req.Tags,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.repo.CreateJournalEntry(r.Context(), entry); err != nil {
		respondStorageError(w, err, "journal entry")
		return
	}

	slog.Info("journal entry created", "user_id", claims.UserID, "entry_id", entry.ID)
	respondJSON(w, http.StatusCreated, entry)
}

func (s *Server) handleGetJournal(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())
	id, ok := uuidParam(w, r, "journal entry")
	if !ok {
		return
	}

	entry, err := s.repo.GetJournalEntry(r.Context(), claims.UserID, id)
	if err != nil {
		respondStorageError(w, err, "journal entry")
		return
	}

	respondJSON(w, http.StatusOK, entry)
}

// handleUpdateJournal replaces the editable fields; the week stays as recorded
func (s *Server) handleUpdateJournal(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())
	id, ok := uuidParam(w, r, "journal entry")
	if !ok {
		return
	}

	var req models.JournalRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := normalizeJournalRequest(&req); err != nil {
		respondError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	entry, err := s.repo.GetJournalEntry(r.Context(), claims.UserID, id)
	if err != nil {
		respondStorageError(w, err, "journal entry")
		return
	}

	entry.Title = req.Title
	entry.Body = req.Body
	entry.Mood = req.Mood
	entry.VoiceNote = req.VoiceNote
	entry.Tags = req.Tags
	entry.UpdatedAt = s.now().UTC()

	if err := s.repo.UpdateJournalEntry(r.Context(), entry); err != nil {
		respondStorageError(w, err, "journal entry")
		return
	}

	respondJSON(w, http.StatusOK, entry)
}

func (s *Server) handleDeleteJournal(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())
	id, ok := uuidParam(w, r, "journal entry")
	if !ok {
		return
	}

	if err := s.repo.DeleteJournalEntry(r.Context(), claims.UserID, id); err != nil {
		respondStorageError(w, err, "journal entry")
		return
	}

	slog.Info("journal entry deleted", "user_id", claims.UserID, "entry_id", id)
	respondJSON(w, http.StatusOK, map[string]string{
		"message": "journal entry deleted",
	})
}
