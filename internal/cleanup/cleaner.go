package cleanup

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/terra-clan/bumpstory/internal/models"
	"github.com/terra-clan/bumpstory/internal/storage"
)

// KickSessionStore is the storage the cleaner needs
type KickSessionStore interface {
	GetStaleKickSessions(ctx context.Context, startedBefore time.Time) ([]*models.KickSession, error)
	CloseKickSession(ctx context.Context, userID, id uuid.UUID, status models.KickSessionStatus, finishedAt time.Time, note string) (*models.KickSession, error)
}

// Cleaner periodically abandons kick sessions left open too long
type Cleaner struct {
	store    KickSessionStore
	interval time.Duration
	maxAge   time.Duration
	now      func() time.Time
}

// NewCleaner creates a new cleanup worker
func NewCleaner(store KickSessionStore, interval, maxAge time.Duration) *Cleaner {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if maxAge <= 0 {
		maxAge = 2 * time.Hour
	}

	return &Cleaner{
		store:    store,
		interval: interval,
		maxAge:   maxAge,
		now:      time.Now,
	}
}

// Start begins the cleanup worker in a goroutine
func (c *Cleaner) Start(ctx context.Context) {
	go c.run(ctx)
}

// run is the main loop for the cleanup worker
func (c *Cleaner) run(ctx context.Context) {
	slog.Info("cleanup worker started", "interval", c.interval, "max_age", c.maxAge)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	// Run immediately on start
	c.cleanup(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("cleanup worker stopped")
			return
		case <-ticker.C:
			c.cleanup(ctx)
		}
	}
}

// cleanup marks stale active sessions abandoned and returns how many it closed
func (c *Cleaner) cleanup(ctx context.Context) int {
	slog.Debug("running cleanup cycle")

	now := c.now().UTC()
	stale, err := c.store.GetStaleKickSessions(ctx, now.Add(-c.maxAge))
	if err != nil {
		slog.Error("failed to get stale kick sessions", "error", err)
		return 0
	}

	if len(stale) == 0 {
		slog.Debug("no stale kick sessions found")
		return 0
	}

	slog.Info("found stale kick sessions", "count", len(stale))

	closed := 0
	for _, s := range stale {
		abandoned, err := c.store.CloseKickSession(ctx, s.UserID, s.ID, models.KickSessionAbandoned, now, "")
		if errors.Is(err, storage.ErrSessionClosed) {
			slog.Debug("kick session closed before cleanup", "id", s.ID)
			continue
		}
		if err != nil {
			slog.Error("failed to abandon kick session",
				"error", err,
				"id", s.ID,
			)
			continue
		}

		slog.Info("kick session abandoned",
			"id", abandoned.ID,
			"user_id", abandoned.UserID,
			"kicks", abandoned.Count(),
			"started_at", abandoned.StartedAt,
		)
		closed++
	}
	return closed
}
