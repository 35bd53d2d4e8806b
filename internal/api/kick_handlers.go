package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/terra-clan/bumpstory/internal/models"
	"github.com/terra-clan/bumpstory/internal/storage"
)

const maxKickNote = 1000

// activeKickSession returns the user's open session, if any
func (s *Server) activeKickSession(ctx context.Context, userID uuid.UUID) (*models.KickSession, error) {
	sessions, err := s.repo.ListKickSessions(ctx, userID, 0, 0)
	if err != nil {
		return nil, err
	}
	for _, ks := range sessions {
		if ks.Status == models.KickSessionActive {
			return ks, nil
		}
	}
	return nil, nil
}

func (s *Server) handleStartKickSession(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())

	active, err := s.activeKickSession(r.Context(), claims.UserID)
	if err != nil {
		respondStorageError(w, err, "kick session")
		return
	}
	if active != nil {
		respondError(w, http.StatusConflict, "session_active", "finish the active kick session first")
		return
	}

	session := &models.KickSession{
		ID:        uuid.New(),
		UserID:    claims.UserID,
		Status:    models.KickSessionActive,
		Kicks:     []time.Time{},
		StartedAt: s.now().UTC(),
	}
	if err := s.repo.CreateKickSession(r.Context(), session); err != nil {
		// the one-active-session index catches concurrent starts
		if errors.Is(err, storage.ErrAlreadyExists) {
			respondError(w, http.StatusConflict, "session_active", "finish the active kick session first")
			return
		}
		respondStorageError(w, err, "kick session")
		return
	}

	slog.Info("kick session started", "user_id", claims.UserID, "session_id", session.ID)
	respondJSON(w, http.StatusCreated, session.Summarize(s.now().UTC()))
}

func (s *Server) handleListKickSessions(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())
	limit, offset := pageParams(r)

	sessions, err := s.repo.ListKickSessions(r.Context(), claims.UserID, limit, offset)
	if err != nil {
		respondStorageError(w, err, "kick sessions")
		return
	}

	now := s.now().UTC()
	summaries := make([]models.KickSessionSummary, 0, len(sessions))
	for _, ks := range sessions {
		summaries = append(summaries, ks.Summarize(now))
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"sessions": summaries,
		"total":    len(summaries),
	})
}

func (s *Server) handleGetKickSession(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())
	id, ok := uuidParam(w, r, "kick session")
	if !ok {
		return
	}

	session, err := s.repo.GetKickSession(r.Context(), claims.UserID, id)
	if err != nil {
		respondStorageError(w, err, "kick session")
		return
	}

	respondJSON(w, http.StatusOK, session.Summarize(s.now().UTC()))
}

func (s *Server) handleRecordKick(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())
	id, ok := uuidParam(w, r, "kick session")
	if !ok {
		return
	}

	session, err := s.repo.AddKick(r.Context(), claims.UserID, id, s.now().UTC())
	if err != nil {
		respondStorageError(w, err, "kick session")
		return
	}

	respondJSON(w, http.StatusOK, session.Summarize(s.now().UTC()))
}

func (s *Server) handleFinishKickSession(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())
	id, ok := uuidParam(w, r, "kick session")
	if !ok {
		return
	}

	var req models.FinishKickSessionRequest
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}
	req.Note = strings.TrimSpace(req.Note)
	if len(req.Note) > maxKickNote {
		respondError(w, http.StatusBadRequest, "validation_error", "note is too long")
		return
	}

	session, err := s.finishKickSession(r.Context(), claims.UserID, id, req.Note)
	if err != nil {
		respondStorageError(w, err, "kick session")
		return
	}

	respondJSON(w, http.StatusOK, session.Summarize(s.now().UTC()))
}

// finishKickSession closes an active session; closed sessions report ErrSessionClosed
func (s *Server) finishKickSession(ctx context.Context, userID, id uuid.UUID, note string) (*models.KickSession, error) {
	session, err := s.repo.CloseKickSession(ctx, userID, id, models.KickSessionFinished, s.now().UTC(), note)
	if err != nil {
		return nil, err
	}

	slog.Info("kick session finished",
		"user_id", userID,
		"session_id", id,
		"count", session.Count(),
		"reached_target", session.ReachedTarget(),
	)
	return session, nil
}
