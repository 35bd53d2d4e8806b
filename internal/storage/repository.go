package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/terra-clan/bumpstory/internal/models"
)

var (
	// ErrNotFound is returned when a record does not exist or belongs to another user
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned on unique constraint conflicts
	ErrAlreadyExists = errors.New("already exists")
	// ErrSessionClosed is returned when recording a kick on, or closing, a session that is no longer active
	ErrSessionClosed = errors.New("kick session is closed")
)

// Repository defines the interface for user data persistence.
// Reads of user-owned records are always scoped by user ID.
type Repository interface {
	// Users
	CreateUser(ctx context.Context, u *models.User) error
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateUserLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error

	// Preferences
	GetPreferences(ctx context.Context, userID uuid.UUID) (*models.Preferences, error)
	UpsertPreferences(ctx context.Context, p *models.Preferences) error

	// Progress
	ToggleCompleted(ctx context.Context, userID uuid.UUID, storyID int) (bool, error)
	SetStoryProgress(ctx context.Context, userID uuid.UUID, storyID, percent int) error
	ListStoryProgress(ctx context.Context, userID uuid.UUID) ([]models.StoryProgress, error)
	GetProgressSnapshot(ctx context.Context, userID uuid.UUID) (*models.ProgressSnapshot, error)

	// Journal
	CreateJournalEntry(ctx context.Context, e *models.JournalEntry) error
	GetJournalEntry(ctx context.Context, userID, id uuid.UUID) (*models.JournalEntry, error)
	UpdateJournalEntry(ctx context.Context, e *models.JournalEntry) error
	DeleteJournalEntry(ctx context.Context, userID, id uuid.UUID) error
	ListJournalEntries(ctx context.Context, userID uuid.UUID, filters models.JournalFilters) ([]*models.JournalEntry, error)

	// Kick sessions
	CreateKickSession(ctx context.Context, s *models.KickSession) error
	GetKickSession(ctx context.Context, userID, id uuid.UUID) (*models.KickSession, error)
	AddKick(ctx context.Context, userID, id uuid.UUID, at time.Time) (*models.KickSession, error)
	CloseKickSession(ctx context.Context, userID, id uuid.UUID, status models.KickSessionStatus, finishedAt time.Time, note string) (*models.KickSession, error)
	ListKickSessions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.KickSession, error)
	GetStaleKickSessions(ctx context.Context, startedBefore time.Time) ([]*models.KickSession, error)

	// Health
	Ping(ctx context.Context) error
	Close() error
}

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// clampLimit applies the default and maximum page sizes
func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}
