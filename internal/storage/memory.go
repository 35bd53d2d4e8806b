package storage

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/terra-clan/bumpstory/internal/journey"
	"github.com/terra-clan/bumpstory/internal/models"
)

var errClosed = errors.New("repository closed")

var _ Repository = (*MemoryRepository)(nil)

// MemoryRepository implements Repository in process memory.
// It backs STORAGE_DRIVER=memory and the handler tests.
type MemoryRepository struct {
	mu          sync.RWMutex
	users       map[uuid.UUID]*models.User
	emails      map[string]uuid.UUID
	preferences map[uuid.UUID]*models.Preferences
	completed   map[uuid.UUID][]int
	progress    map[uuid.UUID]map[int]models.StoryProgress
	journal     map[uuid.UUID]*models.JournalEntry
	kicks       map[uuid.UUID]*models.KickSession
	closed      bool
}

// NewMemoryRepository creates an empty in-memory repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		users:       make(map[uuid.UUID]*models.User),
		emails:      make(map[string]uuid.UUID),
		preferences: make(map[uuid.UUID]*models.Preferences),
		completed:   make(map[uuid.UUID][]int),
		progress:    make(map[uuid.UUID]map[int]models.StoryProgress),
		journal:     make(map[uuid.UUID]*models.JournalEntry),
		kicks:       make(map[uuid.UUID]*models.KickSession),
	}
}

// Ping reports whether the repository is still open
func (r *MemoryRepository) Ping(ctx context.Context) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return errClosed
	}
	return ctx.Err()
}

// Close marks the repository closed
func (r *MemoryRepository) Close() error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	return nil
}

// CreateUser stores a new user; emails are unique case-insensitively
func (r *MemoryRepository) CreateUser(ctx context.Context, u *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := strings.ToLower(u.Email)
	if _, ok := r.emails[key]; ok {
		return ErrAlreadyExists
	}
	if _, ok := r.users[u.ID]; ok {
		return ErrAlreadyExists
	}

	cp := *u
	r.users[u.ID] = &cp
	r.emails[key] = u.ID
	return nil
}

func (r *MemoryRepository) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *MemoryRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	r.mu.RLock()
	id, ok := r.emails[strings.ToLower(email)]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return r.GetUserByID(ctx, id)
}

func (r *MemoryRepository) UpdateUserLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return ErrNotFound
	}
	u.LastLoginAt = &at
	return nil
}

// GetPreferences returns stored preferences, or defaults for users who never saved any
func (r *MemoryRepository) GetPreferences(ctx context.Context, userID uuid.UUID) (*models.Preferences, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.preferences[userID]
	if !ok {
		def := models.DefaultPreferences(userID)
		return &def, nil
	}
	cp := *p
	cp.SavedPresets = append([]models.FilterPreset{}, p.SavedPresets...)
	return &cp, nil
}

func (r *MemoryRepository) UpsertPreferences(ctx context.Context, p *models.Preferences) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := *p
	cp.SavedPresets = append([]models.FilterPreset{}, p.SavedPresets...)
	r.preferences[p.UserID] = &cp
	return nil
}

// ToggleCompleted flips the completion of a story and reports the new state
func (r *MemoryRepository) ToggleCompleted(ctx context.Context, userID uuid.UUID, storyID int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	before := len(r.completed[userID])
	r.completed[userID] = journey.ToggleCompletion(r.completed[userID], storyID)
	return len(r.completed[userID]) > before, nil
}

func (r *MemoryRepository) SetStoryProgress(ctx context.Context, userID uuid.UUID, storyID, percent int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.progress[userID] == nil {
		r.progress[userID] = make(map[int]models.StoryProgress)
	}
	r.progress[userID][storyID] = models.StoryProgress{
		StoryID:   storyID,
		Percent:   percent,
		UpdatedAt: time.Now().UTC(),
	}
	return nil
}

// ListStoryProgress returns per-story progress ordered by story ID
func (r *MemoryRepository) ListStoryProgress(ctx context.Context, userID uuid.UUID) ([]models.StoryProgress, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.StoryProgress, 0, len(r.progress[userID]))
	for _, p := range r.progress[userID] {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StoryID < out[j].StoryID })
	return out, nil
}

func (r *MemoryRepository) GetProgressSnapshot(ctx context.Context, userID uuid.UUID) (*models.ProgressSnapshot, error) {
	progress, err := r.ListStoryProgress(ctx, userID)
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	completed := append([]int{}, r.completed[userID]...)
	r.mu.RUnlock()

	return buildSnapshot(completed, progress), nil
}

// buildSnapshot derives in-progress IDs: progress above zero and not completed
func buildSnapshot(completed []int, progress []models.StoryProgress) *models.ProgressSnapshot {
	done := journey.NewIDSet(completed...)
	snap := &models.ProgressSnapshot{Completed: completed, InProgress: []int{}}
	if snap.Completed == nil {
		snap.Completed = []int{}
	}
	for _, p := range progress {
		if p.Percent > 0 && !done.Has(p.StoryID) {
			snap.InProgress = append(snap.InProgress, p.StoryID)
		}
	}
	return snap
}

func (r *MemoryRepository) CreateJournalEntry(ctx context.Context, e *models.JournalEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.journal[e.ID]; ok {
		return ErrAlreadyExists
	}
	r.journal[e.ID] = copyJournalEntry(e)
	return nil
}

func (r *MemoryRepository) GetJournalEntry(ctx context.Context, userID, id uuid.UUID) (*models.JournalEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.journal[id]
	if !ok || e.UserID != userID {
		return nil, ErrNotFound
	}
	return copyJournalEntry(e), nil
}

func (r *MemoryRepository) UpdateJournalEntry(ctx context.Context, e *models.JournalEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.journal[e.ID]
	if !ok || existing.UserID != e.UserID {
		return ErrNotFound
	}
	r.journal[e.ID] = copyJournalEntry(e)
	return nil
}

func (r *MemoryRepository) DeleteJournalEntry(ctx context.Context, userID, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.journal[id]
	if !ok || e.UserID != userID {
		return ErrNotFound
	}
	delete(r.journal, id)
	return nil
}

// ListJournalEntries returns a user's entries newest first
func (r *MemoryRepository) ListJournalEntries(ctx context.Context, userID uuid.UUID, filters models.JournalFilters) ([]*models.JournalEntry, error) {
	r.mu.RLock()
	var matched []*models.JournalEntry
	for _, e := range r.journal {
		if e.UserID != userID {
			continue
		}
		if filters.Mood != "" && e.Mood != filters.Mood {
			continue
		}
		if filters.Since != nil && e.CreatedAt.Before(*filters.Since) {
			continue
		}
		matched = append(matched, copyJournalEntry(e))
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	return paginate(matched, filters.Limit, filters.Offset), nil
}

func copyJournalEntry(e *models.JournalEntry) *models.JournalEntry {
	cp := *e
	cp.Tags = append([]string(nil), e.Tags...)
	if e.VoiceNote != nil {
		vn := *e.VoiceNote
		cp.VoiceNote = &vn
	}
	if e.WeekNumber != nil {
		w := *e.WeekNumber
		cp.WeekNumber = &w
	}
	return &cp
}

func (r *MemoryRepository) CreateKickSession(ctx context.Context, s *models.KickSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.kicks[s.ID]; ok {
		return ErrAlreadyExists
	}
	r.kicks[s.ID] = copyKickSession(s)
	return nil
}

func (r *MemoryRepository) GetKickSession(ctx context.Context, userID, id uuid.UUID) (*models.KickSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.kicks[id]
	if !ok || s.UserID != userID {
		return nil, ErrNotFound
	}
	return copyKickSession(s), nil
}

// AddKick appends a kick to an active session
func (r *MemoryRepository) AddKick(ctx context.Context, userID, id uuid.UUID, at time.Time) (*models.KickSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.kicks[id]
	if !ok || s.UserID != userID {
		return nil, ErrNotFound
	}
	if s.IsTerminal() {
		return nil, ErrSessionClosed
	}
	s.Kicks = append(s.Kicks, at)
	return copyKickSession(s), nil
}

// CloseKickSession moves an active session to a terminal status, keeping its kicks
func (r *MemoryRepository) CloseKickSession(ctx context.Context, userID, id uuid.UUID, status models.KickSessionStatus, finishedAt time.Time, note string) (*models.KickSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.kicks[id]
	if !ok || s.UserID != userID {
		return nil, ErrNotFound
	}
	if s.IsTerminal() {
		return nil, ErrSessionClosed
	}

	s.Status = status
	s.FinishedAt = &finishedAt
	if note != "" {
		s.Note = note
	}
	return copyKickSession(s), nil
}

// ListKickSessions returns a user's sessions newest first
func (r *MemoryRepository) ListKickSessions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.KickSession, error) {
	r.mu.RLock()
	var out []*models.KickSession
	for _, s := range r.kicks {
		if s.UserID == userID {
			out = append(out, copyKickSession(s))
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return paginate(out, limit, offset), nil
}

// GetStaleKickSessions returns active sessions started before the cutoff
func (r *MemoryRepository) GetStaleKickSessions(ctx context.Context, startedBefore time.Time) ([]*models.KickSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*models.KickSession
	for _, s := range r.kicks {
		if s.Status == models.KickSessionActive && s.StartedAt.Before(startedBefore) {
			out = append(out, copyKickSession(s))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out, nil
}

func copyKickSession(s *models.KickSession) *models.KickSession {
	cp := *s
	cp.Kicks = append([]time.Time{}, s.Kicks...)
	if s.FinishedAt != nil {
		f := *s.FinishedAt
		cp.FinishedAt = &f
	}
	return &cp
}

func paginate[T any](items []T, limit, offset int) []T {
	limit = clampLimit(limit)
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []T{}
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}
