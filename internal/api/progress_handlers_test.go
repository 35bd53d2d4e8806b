package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terra-clan/bumpstory/internal/models"
)

func toggle(t *testing.T, s *Server, token string, id string) bool {
	t.Helper()
	rec := do(t, s, http.MethodPost, "/api/v1/me/progress/"+id+"/toggle", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp struct {
		Completed bool `json:"completed"`
	}
	decodeData(t, rec, &resp)
	return resp.Completed
}

func TestProgress_ToggleAndSnapshot(t *testing.T) {
	s := newTestServer(t, nil, nil)
	token := register(t, s, "reader@example.com")

	assert.True(t, toggle(t, s, token, "2"))
	assert.True(t, toggle(t, s, token, "1"))

	rec := do(t, s, http.MethodPut, "/api/v1/me/progress/3", token, models.UpdateProgressRequest{Percent: 40})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, s, http.MethodPut, "/api/v1/me/progress/3", token, models.UpdateProgressRequest{Percent: 140})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodPost, "/api/v1/me/progress/99/toggle", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var progress struct {
		Completed  []int                `json:"completed"`
		InProgress []int                `json:"in_progress"`
		Overall    models.ProgressStats `json:"overall"`
	}
	decodeData(t, do(t, s, http.MethodGet, "/api/v1/me/progress", token, nil), &progress)
	assert.Equal(t, []int{2, 1}, progress.Completed)
	assert.Equal(t, []int{3}, progress.InProgress)
	assert.Equal(t, models.ProgressStats{Completed: 2, Total: 3, Percentage: 67}, progress.Overall)

	// Signed-in listings use server-side progress and ignore guest lists
	page := listStories(t, s, "?status=in-progress&in_progress=1", token)
	assert.Equal(t, []int{3}, page.ids())

	var path pathResponse
	decodeData(t, do(t, s, http.MethodGet, "/api/v1/me/paths/essentials", token, nil), &path)
	require.NotNil(t, path.Current)
	assert.Equal(t, 3, path.Current.StoryID)
	assert.Equal(t, 67, path.Stats.Percentage)

	// Toggling back removes, and re-adding lands at the end
	assert.False(t, toggle(t, s, token, "2"))
	assert.True(t, toggle(t, s, token, "2"))
	progress.Completed = nil
	decodeData(t, do(t, s, http.MethodGet, "/api/v1/me/progress", token, nil), &progress)
	assert.Equal(t, []int{1, 2}, progress.Completed)
}

func TestProgress_RequiresAuth(t *testing.T) {
	s := newTestServer(t, nil, nil)

	rec := do(t, s, http.MethodPost, "/api/v1/me/progress/1/toggle", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthorized", errorCode(t, rec))
}

func TestPreferences_UpdateAndTrimester(t *testing.T) {
	s := newTestServer(t, nil, nil)
	token := register(t, s, "prefs@example.com")

	var prefs models.Preferences
	decodeData(t, do(t, s, http.MethodGet, "/api/v1/me/preferences", token, nil), &prefs)
	assert.Equal(t, models.ThemeSystem, prefs.Theme)
	assert.Equal(t, 1.0, prefs.FontScale)

	rec := do(t, s, http.MethodGet, "/api/v1/me/trimester", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "due_date_not_set", errorCode(t, rec))

	invalid := []map[string]any{
		{"theme": "neon"},
		{"fontScale": 5},
		{"dueDate": "01.12.2025"},
		{"dueDate": "2025-12-01", "lastPeriodDate": "2025-02-24"},
		{"savedPresets": []map[string]any{{"id": "quick-reads", "name": "Clash", "filters": models.DefaultFilterState()}}},
		{"savedPresets": []map[string]any{{"id": "", "name": "Nameless", "filters": models.DefaultFilterState()}}},
		{"savedPresets": []map[string]any{{"id": "bad", "name": "Bad", "filters": map[string]string{"selectedCategory": "astrology"}}}},
	}
	for _, body := range invalid {
		rec := do(t, s, http.MethodPut, "/api/v1/me/preferences", token, body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}

	longReads := models.DefaultFilterState()
	longReads.SelectedDuration = string(models.DurationLong)
	rec = do(t, s, http.MethodPut, "/api/v1/me/preferences", token, map[string]any{
		"theme":     "dark",
		"fontScale": 1.25,
		"dueDate":   "2025-12-01",
		"savedPresets": []models.FilterPreset{
			{ID: "long-reads", Name: " Long reads ", IsBuiltIn: true, Filters: longReads},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	prefs = models.Preferences{}
	decodeData(t, rec, &prefs)
	assert.Equal(t, models.ThemeDark, prefs.Theme)
	require.Len(t, prefs.SavedPresets, 1)
	assert.False(t, prefs.SavedPresets[0].IsBuiltIn)
	assert.Equal(t, "Long reads", prefs.SavedPresets[0].Name)

	var info models.TrimesterInfo
	decodeData(t, do(t, s, http.MethodGet, "/api/v1/me/trimester", token, nil), &info)
	assert.Equal(t, 28, info.WeekNumber)
	assert.Equal(t, models.TrimesterThird, info.Trimester)

	// Saved presets join the catalog presets for matching
	page := listStories(t, s, "?duration=long", token)
	require.NotNil(t, page.MatchingPreset)
	assert.Equal(t, "long-reads", page.MatchingPreset.ID)

	// A last period date derives the due date
	rec = do(t, s, http.MethodPut, "/api/v1/me/preferences", token, map[string]any{"lastPeriodDate": "2025-03-03"})
	require.Equal(t, http.StatusOK, rec.Code)
	info = models.TrimesterInfo{}
	decodeData(t, do(t, s, http.MethodGet, "/api/v1/me/trimester", token, nil), &info)
	assert.Equal(t, 27, info.WeekNumber)

	// An empty due date clears it
	rec = do(t, s, http.MethodPut, "/api/v1/me/preferences", token, map[string]any{"dueDate": ""})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, http.StatusNotFound, do(t, s, http.MethodGet, "/api/v1/me/trimester", token, nil).Code)
}
