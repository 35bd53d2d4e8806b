package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terra-clan/bumpstory/internal/models"
)

type journalList struct {
	Entries []models.JournalEntry `json:"entries"`
	Total   int                   `json:"total"`
}

func TestJournal_CRUD(t *testing.T) {
	s := newTestServer(t, nil, nil)
	token := register(t, s, "writer@example.com")

	rec := do(t, s, http.MethodPut, "/api/v1/me/preferences", token, map[string]any{"dueDate": "2025-12-01"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, s, http.MethodPost, "/api/v1/me/journal", token, models.JournalRequest{
		Title: " First kicks ",
		Body:  "Felt a flutter after dinner",
		Mood:  models.MoodHappy,
		Tags:  []string{" Kicks ", ""},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var entry models.JournalEntry
	decodeData(t, rec, &entry)
	assert.Equal(t, "First kicks", entry.Title)
	assert.Equal(t, []string{"kicks"}, entry.Tags)
	require.NotNil(t, entry.WeekNumber)
	assert.Equal(t, 28, *entry.WeekNumber)
	assert.True(t, fixedNow.Equal(entry.CreatedAt))

	id := entry.ID.String()

	var list journalList
	decodeData(t, do(t, s, http.MethodGet, "/api/v1/me/journal?mood=happy", token, nil), &list)
	assert.Equal(t, 1, list.Total)
	list = journalList{}
	decodeData(t, do(t, s, http.MethodGet, "/api/v1/me/journal?mood=calm", token, nil), &list)
	assert.Equal(t, 0, list.Total)
	assert.NotNil(t, list.Entries)

	rec = do(t, s, http.MethodPut, "/api/v1/me/journal/"+id, token, models.JournalRequest{
		Title:     "First kicks!",
		Mood:      models.MoodExcited,
		VoiceNote: &models.VoiceNote{URL: "/voice/1.m4a", DurationSeconds: 12},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	entry = models.JournalEntry{}
	decodeData(t, do(t, s, http.MethodGet, "/api/v1/me/journal/"+id, token, nil), &entry)
	assert.Equal(t, "First kicks!", entry.Title)
	assert.Equal(t, models.MoodExcited, entry.Mood)
	require.NotNil(t, entry.VoiceNote)
	assert.Equal(t, 12, entry.VoiceNote.DurationSeconds)
	require.NotNil(t, entry.WeekNumber)

	// Entries are private to their author
	other := register(t, s, "other@example.com")
	assert.Equal(t, http.StatusNotFound, do(t, s, http.MethodGet, "/api/v1/me/journal/"+id, other, nil).Code)
	assert.Equal(t, http.StatusNotFound, do(t, s, http.MethodDelete, "/api/v1/me/journal/"+id, other, nil).Code)

	assert.Equal(t, http.StatusOK, do(t, s, http.MethodDelete, "/api/v1/me/journal/"+id, token, nil).Code)
	assert.Equal(t, http.StatusNotFound, do(t, s, http.MethodGet, "/api/v1/me/journal/"+id, token, nil).Code)
}

func TestJournal_Validation(t *testing.T) {
	s := newTestServer(t, nil, nil)
	token := register(t, s, "strict@example.com")

	invalid := []models.JournalRequest{
		{},
		{Title: "Mood swing", Mood: "grumpy"},
		{Title: "Voice", VoiceNote: &models.VoiceNote{URL: "", DurationSeconds: 3}},
		{Title: "Voice", VoiceNote: &models.VoiceNote{URL: "/v.m4a", DurationSeconds: 0}},
	}
	for _, req := range invalid {
		rec := do(t, s, http.MethodPost, "/api/v1/me/journal", token, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code, req)
	}

	// No due date means no week number
	rec := do(t, s, http.MethodPost, "/api/v1/me/journal", token, models.JournalRequest{Body: "just a note"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var entry models.JournalEntry
	decodeData(t, rec, &entry)
	assert.Nil(t, entry.WeekNumber)

	assert.Equal(t, http.StatusBadRequest, do(t, s, http.MethodGet, "/api/v1/me/journal/not-a-uuid", token, nil).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, s, http.MethodGet, "/api/v1/me/journal?mood=grumpy", token, nil).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, s, http.MethodGet, "/api/v1/me/journal?since=yesterday", token, nil).Code)
}
