package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/terra-clan/bumpstory/internal/models"
)

const uniqueViolation = "23505"

var _ Repository = (*PostgresRepository)(nil)

// pgxPool is the part of *pgxpool.Pool the repository uses
type pgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
}

// PostgresRepository implements Repository using PostgreSQL
type PostgresRepository struct {
	pool pgxPool
}

// PostgresConfig holds PostgreSQL connection configuration
type PostgresConfig struct {
	DSN          string
	MaxOpenConns int32
	MaxIdleConns int32
	MaxLifetime  time.Duration
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(ctx context.Context, cfg PostgresConfig) (*PostgresRepository, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DSN: %w", err)
	}

	poolConfig.MaxConns = 25
	if cfg.MaxOpenConns > 0 {
		poolConfig.MaxConns = cfg.MaxOpenConns
	}
	poolConfig.MinConns = 5
	if cfg.MaxIdleConns > 0 {
		poolConfig.MinConns = cfg.MaxIdleConns
	}
	poolConfig.MaxConnLifetime = 30 * time.Minute
	if cfg.MaxLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresRepository{pool: pool}, nil
}

// Migrate applies pending schema migrations
func (r *PostgresRepository) Migrate(ctx context.Context) error {
	return RunMigrations(ctx, r.pool)
}

// Ping checks database connectivity
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Close closes the database connection pool
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// CreateUser inserts a user; a taken email yields ErrAlreadyExists
func (r *PostgresRepository) CreateUser(ctx context.Context, u *models.User) error {
	query := `
		INSERT INTO users (id, email, display_name, password_hash, role, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.pool.Exec(ctx, query,
		u.ID,
		strings.ToLower(u.Email),
		u.DisplayName,
		u.PasswordHash,
		string(u.Role),
		u.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

func (r *PostgresRepository) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return r.getUser(ctx, "id", id)
}

func (r *PostgresRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getUser(ctx, "email", strings.ToLower(email))
}

// getUser is a helper to get a user by field
func (r *PostgresRepository) getUser(ctx context.Context, field string, value any) (*models.User, error) {
	query := fmt.Sprintf(`
		SELECT id, email, display_name, password_hash, role, created_at, last_login_at
		FROM users
		WHERE %s = $1
	`, field)

	var u models.User
	var role string
	var lastLogin sql.NullTime

	err := r.pool.QueryRow(ctx, query, value).Scan(
		&u.ID,
		&u.Email,
		&u.DisplayName,
		&u.PasswordHash,
		&role,
		&u.CreatedAt,
		&lastLogin,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	u.Role = models.Role(role)
	if lastLogin.Valid {
		u.LastLoginAt = &lastLogin.Time
	}

	return &u, nil
}

func (r *PostgresRepository) UpdateUserLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET last_login_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetPreferences returns stored preferences, or defaults for users who never saved any
func (r *PostgresRepository) GetPreferences(ctx context.Context, userID uuid.UUID) (*models.Preferences, error) {
	query := `
		SELECT theme, font_scale, reading_mode, narration_enabled, high_contrast, due_date, saved_presets, updated_at
		FROM preferences
		WHERE user_id = $1
	`

	p := models.DefaultPreferences(userID)
	var theme string
	var dueDate sql.NullTime
	var presetsJSON []byte

	err := r.pool.QueryRow(ctx, query, userID).Scan(
		&theme,
		&p.FontScale,
		&p.ReadingMode,
		&p.NarrationEnabled,
		&p.HighContrast,
		&dueDate,
		&presetsJSON,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &p, nil
		}
		return nil, fmt.Errorf("failed to get preferences: %w", err)
	}

	p.Theme = models.Theme(theme)
	if dueDate.Valid {
		d := dueDate.Time.UTC()
		p.DueDate = &d
	}
	if err := json.Unmarshal(presetsJSON, &p.SavedPresets); err != nil {
		return nil, fmt.Errorf("failed to unmarshal saved presets: %w", err)
	}
	if p.SavedPresets == nil {
		p.SavedPresets = []models.FilterPreset{}
	}

	return &p, nil
}

func (r *PostgresRepository) UpsertPreferences(ctx context.Context, p *models.Preferences) error {
	presets := p.SavedPresets
	if presets == nil {
		presets = []models.FilterPreset{}
	}
	presetsJSON, err := json.Marshal(presets)
	if err != nil {
		return fmt.Errorf("failed to marshal saved presets: %w", err)
	}

	query := `
		INSERT INTO preferences (user_id, theme, font_scale, reading_mode, narration_enabled, high_contrast, due_date, saved_presets, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (user_id) DO UPDATE
		SET theme = EXCLUDED.theme,
			font_scale = EXCLUDED.font_scale,
			reading_mode = EXCLUDED.reading_mode,
			narration_enabled = EXCLUDED.narration_enabled,
			high_contrast = EXCLUDED.high_contrast,
			due_date = EXCLUDED.due_date,
			saved_presets = EXCLUDED.saved_presets,
			updated_at = EXCLUDED.updated_at
	`

	_, err = r.pool.Exec(ctx, query,
		p.UserID,
		string(p.Theme),
		p.FontScale,
		p.ReadingMode,
		p.NarrationEnabled,
		p.HighContrast,
		nullTime(p.DueDate),
		presetsJSON,
		p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert preferences: %w", err)
	}

	return nil
}

// ToggleCompleted flips the completion of a story and reports the new state.
// A re-completed story gets a fresh sequence number and moves to the end.
func (r *PostgresRepository) ToggleCompleted(ctx context.Context, userID uuid.UUID, storyID int) (bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}

	tag, err := tx.Exec(ctx,
		`DELETE FROM completed_stories WHERE user_id = $1 AND story_id = $2`, userID, storyID)
	if err != nil {
		tx.Rollback(ctx)
		return false, fmt.Errorf("failed to uncomplete story: %w", err)
	}

	completed := tag.RowsAffected() == 0
	if completed {
		_, err = tx.Exec(ctx, `
			INSERT INTO completed_stories (user_id, story_id)
			VALUES ($1, $2)
			ON CONFLICT (user_id, story_id) DO NOTHING
		`, userID, storyID)
		if err != nil {
			tx.Rollback(ctx)
			return false, fmt.Errorf("failed to complete story: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("failed to commit toggle: %w", err)
	}
	return completed, nil
}

func (r *PostgresRepository) SetStoryProgress(ctx context.Context, userID uuid.UUID, storyID, percent int) error {
	query := `
		INSERT INTO story_progress (user_id, story_id, percent, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (user_id, story_id) DO UPDATE
		SET percent = EXCLUDED.percent, updated_at = EXCLUDED.updated_at
	`
	if _, err := r.pool.Exec(ctx, query, userID, storyID, percent); err != nil {
		return fmt.Errorf("failed to set story progress: %w", err)
	}
	return nil
}

// ListStoryProgress returns per-story progress ordered by story ID
func (r *PostgresRepository) ListStoryProgress(ctx context.Context, userID uuid.UUID) ([]models.StoryProgress, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT story_id, percent, updated_at
		FROM story_progress
		WHERE user_id = $1
		ORDER BY story_id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list story progress: %w", err)
	}
	defer rows.Close()

	out := []models.StoryProgress{}
	for rows.Next() {
		var p models.StoryProgress
		if err := rows.Scan(&p.StoryID, &p.Percent, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan story progress: %w", err)
		}
		out = append(out, p)
	}

	return out, rows.Err()
}

func (r *PostgresRepository) GetProgressSnapshot(ctx context.Context, userID uuid.UUID) (*models.ProgressSnapshot, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT story_id FROM completed_stories WHERE user_id = $1 ORDER BY seq
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list completed stories: %w", err)
	}
	defer rows.Close()

	var completed []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan completed story: %w", err)
		}
		completed = append(completed, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	progress, err := r.ListStoryProgress(ctx, userID)
	if err != nil {
		return nil, err
	}

	return buildSnapshot(completed, progress), nil
}

const journalColumns = `id, user_id, title, body, mood, week_number, voice_note_url, voice_note_duration, tags, created_at, updated_at`

func (r *PostgresRepository) CreateJournalEntry(ctx context.Context, e *models.JournalEntry) error {
	url, duration := voiceNoteColumns(e.VoiceNote)

	query := `INSERT INTO journal_entries (` + journalColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := r.pool.Exec(ctx, query,
		e.ID,
		e.UserID,
		e.Title,
		e.Body,
		nullString(string(e.Mood)),
		nullInt(e.WeekNumber),
		url,
		duration,
		nonNilTags(e.Tags),
		e.CreatedAt,
		e.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("failed to create journal entry: %w", err)
	}

	return nil
}

func (r *PostgresRepository) GetJournalEntry(ctx context.Context, userID, id uuid.UUID) (*models.JournalEntry, error) {
	query := `SELECT ` + journalColumns + ` FROM journal_entries WHERE id = $1 AND user_id = $2`

	e, err := scanJournalEntry(r.pool.QueryRow(ctx, query, id, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get journal entry: %w", err)
	}
	return e, nil
}

func (r *PostgresRepository) UpdateJournalEntry(ctx context.Context, e *models.JournalEntry) error {
	url, duration := voiceNoteColumns(e.VoiceNote)

	query := `
		UPDATE journal_entries
		SET title = $3, body = $4, mood = $5, week_number = $6, voice_note_url = $7,
			voice_note_duration = $8, tags = $9, updated_at = $10
		WHERE id = $1 AND user_id = $2
	`

	tag, err := r.pool.Exec(ctx, query,
		e.ID,
		e.UserID,
		e.Title,
		e.Body,
		nullString(string(e.Mood)),
		nullInt(e.WeekNumber),
		url,
		duration,
		nonNilTags(e.Tags),
		e.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update journal entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

func (r *PostgresRepository) DeleteJournalEntry(ctx context.Context, userID, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM journal_entries WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete journal entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListJournalEntries returns a user's entries newest first
func (r *PostgresRepository) ListJournalEntries(ctx context.Context, userID uuid.UUID, filters models.JournalFilters) ([]*models.JournalEntry, error) {
	query := `SELECT ` + journalColumns + ` FROM journal_entries WHERE user_id = $1`
	args := []any{userID}
	argNum := 2

	if filters.Mood != "" {
		query += fmt.Sprintf(" AND mood = $%d", argNum)
		args = append(args, string(filters.Mood))
		argNum++
	}
	if filters.Since != nil {
		query += fmt.Sprintf(" AND created_at >= $%d", argNum)
		args = append(args, *filters.Since)
		argNum++
	}

	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", argNum, argNum+1)
	offset := filters.Offset
	if offset < 0 {
		offset = 0
	}
	args = append(args, clampLimit(filters.Limit), offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list journal entries: %w", err)
	}
	defer rows.Close()

	entries := []*models.JournalEntry{}
	for rows.Next() {
		e, err := scanJournalEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan journal entry: %w", err)
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

func scanJournalEntry(row pgx.Row) (*models.JournalEntry, error) {
	var e models.JournalEntry
	var mood, voiceURL sql.NullString
	var week, voiceDuration sql.NullInt64

	err := row.Scan(
		&e.ID,
		&e.UserID,
		&e.Title,
		&e.Body,
		&mood,
		&week,
		&voiceURL,
		&voiceDuration,
		&e.Tags,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	e.Mood = models.Mood(mood.String)
	if week.Valid {
		w := int(week.Int64)
		e.WeekNumber = &w
	}
	if voiceURL.Valid {
		e.VoiceNote = &models.VoiceNote{URL: voiceURL.String, DurationSeconds: int(voiceDuration.Int64)}
	}
	if len(e.Tags) == 0 {
		e.Tags = nil
	}

	return &e, nil
}

const kickColumns = `id, user_id, status, kicks, started_at, finished_at, note`

func (r *PostgresRepository) CreateKickSession(ctx context.Context, s *models.KickSession) error {
	query := `INSERT INTO kick_sessions (` + kickColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.pool.Exec(ctx, query,
		s.ID,
		s.UserID,
		string(s.Status),
		nonNilKicks(s.Kicks),
		s.StartedAt,
		nullTime(s.FinishedAt),
		nullString(s.Note),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("failed to create kick session: %w", err)
	}

	return nil
}

func (r *PostgresRepository) GetKickSession(ctx context.Context, userID, id uuid.UUID) (*models.KickSession, error) {
	query := `SELECT ` + kickColumns + ` FROM kick_sessions WHERE id = $1 AND user_id = $2`

	s, err := scanKickSession(r.pool.QueryRow(ctx, query, id, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get kick session: %w", err)
	}
	return s, nil
}

// AddKick appends a kick to an active session in a single statement
func (r *PostgresRepository) AddKick(ctx context.Context, userID, id uuid.UUID, at time.Time) (*models.KickSession, error) {
	query := `
		UPDATE kick_sessions
		SET kicks = array_append(kicks, $3)
		WHERE id = $1 AND user_id = $2 AND status = 'active'
		RETURNING ` + kickColumns

	s, err := scanKickSession(r.pool.QueryRow(ctx, query, id, userID, at))
	if err == nil {
		return s, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to add kick: %w", err)
	}

	// Either missing or no longer active
	if _, err := r.GetKickSession(ctx, userID, id); err != nil {
		return nil, err
	}
	return nil, ErrSessionClosed
}

// CloseKickSession moves an active session to a terminal status.
// Kicks are never written here; an empty note keeps the stored one.
func (r *PostgresRepository) CloseKickSession(ctx context.Context, userID, id uuid.UUID, status models.KickSessionStatus, finishedAt time.Time, note string) (*models.KickSession, error) {
	query := `
		UPDATE kick_sessions
		SET status = $3, finished_at = $4, note = COALESCE($5, note)
		WHERE id = $1 AND user_id = $2 AND status = 'active'
		RETURNING ` + kickColumns

	s, err := scanKickSession(r.pool.QueryRow(ctx, query, id, userID, string(status), finishedAt, nullString(note)))
	if err == nil {
		return s, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to close kick session: %w", err)
	}

	if _, err := r.GetKickSession(ctx, userID, id); err != nil {
		return nil, err
	}
	return nil, ErrSessionClosed
}

// ListKickSessions returns a user's sessions newest first
func (r *PostgresRepository) ListKickSessions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.KickSession, error) {
	if offset < 0 {
		offset = 0
	}
	query := `SELECT ` + kickColumns + ` FROM kick_sessions
		WHERE user_id = $1
		ORDER BY started_at DESC
		LIMIT $2 OFFSET $3`

	return r.queryKickSessions(ctx, query, userID, clampLimit(limit), offset)
}

// GetStaleKickSessions returns active sessions started before the cutoff
func (r *PostgresRepository) GetStaleKickSessions(ctx context.Context, startedBefore time.Time) ([]*models.KickSession, error) {
	query := `SELECT ` + kickColumns + ` FROM kick_sessions
		WHERE status = 'active' AND started_at < $1
		ORDER BY started_at`

	return r.queryKickSessions(ctx, query, startedBefore)
}

func (r *PostgresRepository) queryKickSessions(ctx context.Context, query string, args ...any) ([]*models.KickSession, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query kick sessions: %w", err)
	}
	defer rows.Close()

	sessions := []*models.KickSession{}
	for rows.Next() {
		s, err := scanKickSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan kick session: %w", err)
		}
		sessions = append(sessions, s)
	}

	return sessions, rows.Err()
}

func scanKickSession(row pgx.Row) (*models.KickSession, error) {
	var s models.KickSession
	var status string
	var finishedAt sql.NullTime
	var note sql.NullString

	err := row.Scan(
		&s.ID,
		&s.UserID,
		&status,
		&s.Kicks,
		&s.StartedAt,
		&finishedAt,
		&note,
	)
	if err != nil {
		return nil, err
	}

	s.Status = models.KickSessionStatus(status)
	s.Note = note.String
	if finishedAt.Valid {
		s.FinishedAt = &finishedAt.Time
	}
	if s.Kicks == nil {
		s.Kicks = []time.Time{}
	}

	return &s, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func voiceNoteColumns(vn *models.VoiceNote) (sql.NullString, sql.NullInt64) {
	if vn == nil || vn.URL == "" {
		return sql.NullString{}, sql.NullInt64{}
	}
	return nullString(vn.URL), sql.NullInt64{Int64: int64(vn.DurationSeconds), Valid: true}
}

func nonNilTags(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}

func nonNilKicks(kicks []time.Time) []time.Time {
	if kicks == nil {
		return []time.Time{}
	}
	return kicks
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullInt(i *int) sql.NullInt64 {
	if i == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*i), Valid: true}
}
