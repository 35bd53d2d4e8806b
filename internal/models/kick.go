package models

import (
	"time"

	"github.com/google/uuid"
)

// KickSessionStatus represents the current state of a kick-counting session
type KickSessionStatus string

const (
	KickSessionActive    KickSessionStatus = "active"    // Counting
	KickSessionFinished  KickSessionStatus = "finished"  // Closed by the user
	KickSessionAbandoned KickSessionStatus = "abandoned" // Closed by the cleanup worker
)

// KickTarget is the conventional count-to-ten goal of a session
const KickTarget = 10

// KickSession records fetal movements counted within one sitting
type KickSession struct {
	ID         uuid.UUID         `json:"id"`
	UserID     uuid.UUID         `json:"-"`
	Status     KickSessionStatus `json:"status"`
	Kicks      []time.Time       `json:"kicks"`
	StartedAt  time.Time         `json:"startedAt"`
	FinishedAt *time.Time        `json:"finishedAt,omitempty"`
	Note       string            `json:"note,omitempty"`
}

// Count returns the number of recorded kicks
func (s *KickSession) Count() int {
	return len(s.Kicks)
}

// IsTerminal returns true if the session can no longer record kicks
func (s *KickSession) IsTerminal() bool {
	return s.Status == KickSessionFinished || s.Status == KickSessionAbandoned
}

// ReachedTarget reports whether the session counted KickTarget kicks
func (s *KickSession) ReachedTarget() bool {
	return s.Count() >= KickTarget
}

// Elapsed returns the session duration so far (or total, once finished)
func (s *KickSession) Elapsed(now time.Time) time.Duration {
	end := now
	if s.FinishedAt != nil {
		end = *s.FinishedAt
	}
	if end.Before(s.StartedAt) {
		return 0
	}
	return end.Sub(s.StartedAt)
}

// TimeToTarget returns how long it took to reach KickTarget kicks
func (s *KickSession) TimeToTarget() (time.Duration, bool) {
	if !s.ReachedTarget() {
		return 0, false
	}
	return s.Kicks[KickTarget-1].Sub(s.StartedAt), true
}

// KickSessionSummary is returned by the kick endpoints
type KickSessionSummary struct {
	*KickSession
	Count          int    `json:"count"`
	ReachedTarget  bool   `json:"reachedTarget"`
	ElapsedSeconds int64  `json:"elapsedSeconds"`
	TargetSeconds  *int64 `json:"targetSeconds,omitempty"`
}

// Summarize builds the API view of a kick session
func (s *KickSession) Summarize(now time.Time) KickSessionSummary {
	summary := KickSessionSummary{
		KickSession:    s,
		Count:          s.Count(),
		ReachedTarget:  s.ReachedTarget(),
		ElapsedSeconds: int64(s.Elapsed(now).Seconds()),
	}
	if d, ok := s.TimeToTarget(); ok {
		secs := int64(d.Seconds())
		summary.TargetSeconds = &secs
	}
	return summary
}

// FinishKickSessionRequest closes a session with an optional note
type FinishKickSessionRequest struct {
	Note string `json:"note,omitempty"`
}
