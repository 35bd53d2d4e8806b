package journey

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terra-clan/bumpstory/internal/models"
)

func testStories() []models.Story {
	return []models.Story{
		{ID: 1, Category: "nutrition", Difficulty: models.DifficultyFoundational, Duration: 30,
			RecommendedTrimester: models.TrimesterFirst, Title: "Folate and You", Description: "Why early vitamins matter"},
		{ID: 2, Category: "wellness", Difficulty: models.DifficultyAdvanced, Duration: 58,
			RecommendedTrimester: models.TrimesterSecond, Title: "Prenatal Yoga", Description: "Stretching for back pain"},
		{ID: 3, Category: "wellness", Difficulty: models.DifficultyFoundational, Duration: 45,
			RecommendedTrimester: models.TrimesterAny, Title: "Sleep Positions", Description: "Resting comfortably"},
		{ID: 4, Category: "development", Difficulty: models.DifficultyIntermediate, Duration: 75,
			RecommendedTrimester: models.TrimesterThird, Title: "Baby's Senses", Description: "What your baby can hear"},
		{ID: 5, Category: "wellness", Difficulty: models.DifficultyAdvanced, Duration: 90,
			RecommendedTrimester: models.TrimesterThird, Title: "Labor Breathing", Description: "Techniques for YOGA lovers"},
		{ID: 6, Category: "preparation", Difficulty: models.DifficultyIntermediate, Duration: 60,
			RecommendedTrimester: models.TrimesterAny, Title: "Packing the Hospital Bag", Description: "A checklist"},
	}
}

func storyIDs(stories []models.Story) []int {
	ids := make([]int, len(stories))
	for i, s := range stories {
		ids[i] = s.ID
	}
	return ids
}

func TestFilterStories_DefaultStateReturnsAll(t *testing.T) {
	stories := testStories()
	got := FilterStories(stories, models.DefaultFilterState(), nil, nil)
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6}, storyIDs(got))
}

func TestFilterStories_SingleField(t *testing.T) {
	completed := NewIDSet(1, 4)
	inProgress := NewIDSet(2)

	tests := []struct {
		name   string
		mutate func(*models.AdvancedFilterState)
		want   []int
	}{
		{"category", func(f *models.AdvancedFilterState) { f.SelectedCategory = "wellness" }, []int{2, 3, 5}},
		{"difficulty", func(f *models.AdvancedFilterState) { f.SelectedDifficulty = "intermediate" }, []int{4, 6}},
		{"search title", func(f *models.AdvancedFilterState) { f.SearchTerm = "yoga" }, []int{2, 5}},
		{"search trimmed and case-insensitive", func(f *models.AdvancedFilterState) { f.SearchTerm = "  HOSPITAL " }, []int{6}},
		{"search description only", func(f *models.AdvancedFilterState) { f.SearchTerm = "checklist" }, []int{6}},
		{"search whitespace only", func(f *models.AdvancedFilterState) { f.SearchTerm = "   " }, []int{1, 2, 3, 4, 5, 6}},
		{"duration short", func(f *models.AdvancedFilterState) { f.SelectedDuration = "short" }, []int{1, 3}},
		{"duration medium", func(f *models.AdvancedFilterState) { f.SelectedDuration = "medium" }, []int{2, 6}},
		{"duration long", func(f *models.AdvancedFilterState) { f.SelectedDuration = "long" }, []int{4, 5}},
		{"status completed", func(f *models.AdvancedFilterState) { f.SelectedCompletionStatus = "completed" }, []int{1, 4}},
		{"status in-progress", func(f *models.AdvancedFilterState) { f.SelectedCompletionStatus = "in-progress" }, []int{2}},
		{"status not-started", func(f *models.AdvancedFilterState) { f.SelectedCompletionStatus = "not-started" }, []int{3, 5, 6}},
		{"trimester first", func(f *models.AdvancedFilterState) { f.SelectedTrimester = "first" }, []int{1, 3, 6}},
		{"trimester third", func(f *models.AdvancedFilterState) { f.SelectedTrimester = "third" }, []int{3, 4, 5, 6}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := models.DefaultFilterState()
			tt.mutate(&state)
			got := FilterStories(testStories(), state, completed, inProgress)
			assert.Equal(t, tt.want, storyIDs(got))
		})
	}
}

func TestFilterStories_AnyTrimesterMatchesEveryConcreteTrimester(t *testing.T) {
	stories := testStories()
	for _, tri := range []models.Trimester{models.TrimesterFirst, models.TrimesterSecond, models.TrimesterThird} {
		state := models.DefaultFilterState()
		state.SelectedTrimester = string(tri)

		got := NewIDSet(storyIDs(FilterStories(stories, state, nil, nil))...)
		for _, s := range stories {
			if s.RecommendedTrimester == models.TrimesterAny {
				assert.True(t, got.Has(s.ID), "story %d tagged any must match trimester %s", s.ID, tri)
			} else {
				assert.Equal(t, s.RecommendedTrimester == tri, got.Has(s.ID), "story %d for trimester %s", s.ID, tri)
			}
		}
	}
}

func TestFilterStories_ANDCombination(t *testing.T) {
	stories := testStories()
	state := models.DefaultFilterState()
	state.SelectedCategory = "wellness"
	state.SelectedDifficulty = "advanced"

	var want []int
	for _, s := range stories {
		if s.Category == "wellness" && s.Difficulty == models.DifficultyAdvanced {
			want = append(want, s.ID)
		}
	}
	require.Equal(t, []int{2, 5}, want)

	assert.Equal(t, want, storyIDs(FilterStories(stories, state, nil, nil)))

	state.SelectedDuration = "long"
	assert.Equal(t, []int{5}, storyIDs(FilterStories(stories, state, nil, nil)))
}

func TestFilterStories_PreservesOrderAndInput(t *testing.T) {
	stories := []models.Story{
		{ID: 9, Category: "a", Duration: 10, RecommendedTrimester: models.TrimesterAny},
		{ID: 3, Category: "b", Duration: 10, RecommendedTrimester: models.TrimesterAny},
		{ID: 7, Category: "a", Duration: 10, RecommendedTrimester: models.TrimesterAny},
	}
	state := models.DefaultFilterState()
	state.SelectedCategory = "a"

	got := FilterStories(stories, state, nil, nil)
	assert.Equal(t, []int{9, 7}, storyIDs(got))
	assert.Equal(t, []int{9, 3, 7}, storyIDs(stories))
}

func TestFilterStories_NoMatchesReturnsEmpty(t *testing.T) {
	state := models.DefaultFilterState()
	state.SearchTerm = "nonexistent topic"
	got := FilterStories(testStories(), state, nil, nil)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestCountActiveFilters(t *testing.T) {
	assert.Equal(t, 0, CountActiveFilters(models.DefaultFilterState()))

	mutations := []func(*models.AdvancedFilterState){
		func(f *models.AdvancedFilterState) { f.SelectedCategory = "wellness" },
		func(f *models.AdvancedFilterState) { f.SelectedDifficulty = "advanced" },
		func(f *models.AdvancedFilterState) { f.SearchTerm = "sleep" },
		func(f *models.AdvancedFilterState) { f.SelectedDuration = "short" },
		func(f *models.AdvancedFilterState) { f.SelectedCompletionStatus = "completed" },
		func(f *models.AdvancedFilterState) { f.SelectedTrimester = "second" },
	}

	for i, m := range mutations {
		single := models.DefaultFilterState()
		m(&single)
		assert.Equal(t, 1, CountActiveFilters(single), "mutation %d", i)
	}

	all := models.DefaultFilterState()
	for i, m := range mutations {
		m(&all)
		assert.Equal(t, i+1, CountActiveFilters(all))
	}
}

func TestCountActiveFilters_WhitespaceSearchIsInactive(t *testing.T) {
	state := models.DefaultFilterState()
	state.SearchTerm = " \t\n "
	assert.Equal(t, 0, CountActiveFilters(state))
}

func TestFindMatchingPreset(t *testing.T) {
	presets := BuiltInPresets()

	state := models.DefaultFilterState()
	state.SelectedDuration = "short"

	p, ok := FindMatchingPreset(state, presets)
	require.True(t, ok)
	assert.Equal(t, "quick-reads", p.ID)
	assert.True(t, p.IsBuiltIn)

	// a partial match is not a match
	state.SelectedCategory = "wellness"
	_, ok = FindMatchingPreset(state, presets)
	assert.False(t, ok)

	_, ok = FindMatchingPreset(models.DefaultFilterState(), presets)
	assert.False(t, ok)
}

func TestFindMatchingPreset_FirstWins(t *testing.T) {
	f := models.DefaultFilterState()
	f.SelectedTrimester = "first"
	presets := []models.FilterPreset{
		{ID: "a", Filters: f},
		{ID: "b", Filters: f},
	}

	p, ok := FindMatchingPreset(f, presets)
	require.True(t, ok)
	assert.Equal(t, "a", p.ID)
}

func TestBuiltInPresets_UniqueAndActive(t *testing.T) {
	seen := map[string]bool{}
	for _, p := range BuiltInPresets() {
		assert.False(t, seen[p.ID], "duplicate preset %s", p.ID)
		seen[p.ID] = true
		assert.Positive(t, CountActiveFilters(p.Filters), "preset %s has no active filters", p.ID)
	}
}

func TestValidateFilterState(t *testing.T) {
	known := func(id models.CategoryID) bool { return id == "wellness" }
	with := func(mutate func(*models.AdvancedFilterState)) models.AdvancedFilterState {
		s := models.DefaultFilterState()
		mutate(&s)
		return s
	}

	tests := []struct {
		name    string
		state   models.AdvancedFilterState
		wantErr bool
	}{
		{"default", models.DefaultFilterState(), false},
		{"known category", with(func(s *models.AdvancedFilterState) { s.SelectedCategory = "wellness" }), false},
		{"any trimester", with(func(s *models.AdvancedFilterState) { s.SelectedTrimester = "any" }), false},
		{"unknown category", with(func(s *models.AdvancedFilterState) { s.SelectedCategory = "astrology" }), true},
		{"unknown difficulty", with(func(s *models.AdvancedFilterState) { s.SelectedDifficulty = "expert" }), true},
		{"unknown duration", with(func(s *models.AdvancedFilterState) { s.SelectedDuration = "longish" }), true},
		{"empty duration", with(func(s *models.AdvancedFilterState) { s.SelectedDuration = "" }), true},
		{"unknown status", with(func(s *models.AdvancedFilterState) { s.SelectedCompletionStatus = "done" }), true},
		{"unknown trimester", with(func(s *models.AdvancedFilterState) { s.SelectedTrimester = "fourth" }), true},
		{"long search", with(func(s *models.AdvancedFilterState) {
			s.SearchTerm = string(make([]byte, MaxSearchTermLength+1))
		}), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateFilterState(tt.state, known)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
