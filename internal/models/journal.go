package models

import (
	"time"

	"github.com/google/uuid"
)

// Mood is the emotional state recorded with a journal entry
type Mood string

const (
	MoodHappy   Mood = "happy"
	MoodCalm    Mood = "calm"
	MoodExcited Mood = "excited"
	MoodTired   Mood = "tired"
	MoodAnxious Mood = "anxious"
	MoodSad     Mood = "sad"
	MoodUnwell  Mood = "unwell"
)

// Valid reports whether m is a known mood. The empty mood is allowed.
func (m Mood) Valid() bool {
	switch m {
	case "", MoodHappy, MoodCalm, MoodExcited, MoodTired, MoodAnxious, MoodSad, MoodUnwell:
		return true
	}
	return false
}

// VoiceNote references an uploaded audio recording
type VoiceNote struct {
	URL             string `json:"url"`
	DurationSeconds int    `json:"durationSeconds"`
}

// JournalEntry is a personal journal record
type JournalEntry struct {
	ID         uuid.UUID  `json:"id"`
	UserID     uuid.UUID  `json:"-"`
	Title      string     `json:"title"`
	Body       string     `json:"body"`
	Mood       Mood       `json:"mood,omitempty"`
	WeekNumber *int       `json:"weekNumber,omitempty"`
	VoiceNote  *VoiceNote `json:"voiceNote,omitempty"`
	Tags       []string   `json:"tags,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

// JournalRequest creates or replaces a journal entry
type JournalRequest struct {
	Title     string     `json:"title"`
	Body      string     `json:"body"`
	Mood      Mood       `json:"mood,omitempty"`
	VoiceNote *VoiceNote `json:"voiceNote,omitempty"`
	Tags      []string   `json:"tags,omitempty"`
}

// JournalFilters defines filters for listing journal entries
type JournalFilters struct {
	Mood   Mood
	Since  *time.Time
	Limit  int
	Offset int
}

// StoryProgress is the per-story reading progress of a user
type StoryProgress struct {
	StoryID   int       `json:"storyId"`
	Percent   int       `json:"percent"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ProgressSnapshot is the membership view of a user's progress
type ProgressSnapshot struct {
	Completed  []int `json:"completed"`  // insertion order
	InProgress []int `json:"inProgress"` // progress > 0, not completed
}

// UpdateProgressRequest sets the reading progress of a story
type UpdateProgressRequest struct {
	Percent int `json:"percent"`
}
