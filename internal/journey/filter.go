package journey

import (
	"fmt"
	"strings"

	"github.com/terra-clan/bumpstory/internal/models"
)

// FilterStories returns the stories that satisfy every constraint in state,
// in input order. The input slice is not modified.
func FilterStories(stories []models.Story, state models.AdvancedFilterState, completed, inProgress IDSet) []models.Story {
	search := normalizeSearch(state.SearchTerm)

	result := make([]models.Story, 0, len(stories))
	for _, story := range stories {
		if matchesCategory(story, state.SelectedCategory) &&
			matchesDifficulty(story, state.SelectedDifficulty) &&
			matchesSearch(story, search) &&
			matchesDuration(story, state.SelectedDuration) &&
			matchesCompletion(story, state.SelectedCompletionStatus, completed, inProgress) &&
			matchesTrimester(story, state.SelectedTrimester) {
			result = append(result, story)
		}
	}
	return result
}

func matchesCategory(story models.Story, selected string) bool {
	return selected == models.FilterAll || string(story.Category) == selected
}

func matchesDifficulty(story models.Story, selected string) bool {
	return selected == models.FilterAll || string(story.Difficulty) == selected
}

// matchesSearch expects an already normalized term (see normalizeSearch)
func matchesSearch(story models.Story, term string) bool {
	if term == "" {
		return true
	}
	return strings.Contains(strings.ToLower(story.Title), term) ||
		strings.Contains(strings.ToLower(story.Description), term)
}

func matchesDuration(story models.Story, selected string) bool {
	return selected == models.FilterAll || string(CategorizeDuration(story.Duration)) == selected
}

func matchesCompletion(story models.Story, selected string, completed, inProgress IDSet) bool {
	return selected == models.FilterAll || string(CompletionStatusOf(story.ID, completed, inProgress)) == selected
}

// matchesTrimester treats stories tagged "any" as relevant to every trimester
func matchesTrimester(story models.Story, selected string) bool {
	return selected == models.FilterAll ||
		story.RecommendedTrimester == models.TrimesterAny ||
		string(story.RecommendedTrimester) == selected
}

func normalizeSearch(term string) string {
	return strings.ToLower(strings.TrimSpace(term))
}

// CountActiveFilters returns how many fields of state differ from their neutral value
func CountActiveFilters(state models.AdvancedFilterState) int {
	count := 0
	for _, v := range []string{
		state.SelectedCategory,
		state.SelectedDifficulty,
		state.SelectedDuration,
		state.SelectedCompletionStatus,
		state.SelectedTrimester,
	} {
		if v != models.FilterAll {
			count++
		}
	}
	if normalizeSearch(state.SearchTerm) != "" {
		count++
	}
	return count
}

// FindMatchingPreset returns the first preset whose filters equal state on every field
func FindMatchingPreset(state models.AdvancedFilterState, presets []models.FilterPreset) (models.FilterPreset, bool) {
	for _, p := range presets {
		if p.Filters == state {
			return p, true
		}
	}
	return models.FilterPreset{}, false
}

// MaxSearchTermLength bounds the free-text search accepted in a filter state
const MaxSearchTermLength = 200

// ValidateFilterState checks every enum field of a filter state.
// hasCategory reports whether a category ID exists in the catalog.
func ValidateFilterState(state models.AdvancedFilterState, hasCategory func(models.CategoryID) bool) error {
	if state.SelectedCategory != models.FilterAll && !hasCategory(models.CategoryID(state.SelectedCategory)) {
		return fmt.Errorf("unknown category %q", state.SelectedCategory)
	}
	if state.SelectedDifficulty != models.FilterAll && !models.Difficulty(state.SelectedDifficulty).Valid() {
		return fmt.Errorf("unknown difficulty %q", state.SelectedDifficulty)
	}
	switch models.DurationCategory(state.SelectedDuration) {
	case models.FilterAll, models.DurationShort, models.DurationMedium, models.DurationLong:
	default:
		return fmt.Errorf("unknown duration %q", state.SelectedDuration)
	}
	switch models.CompletionStatus(state.SelectedCompletionStatus) {
	case models.FilterAll, models.StatusCompleted, models.StatusInProgress, models.StatusNotStarted:
	default:
		return fmt.Errorf("unknown completion status %q", state.SelectedCompletionStatus)
	}
	if state.SelectedTrimester != models.FilterAll && !models.Trimester(state.SelectedTrimester).Valid() {
		return fmt.Errorf("unknown trimester %q", state.SelectedTrimester)
	}
	if len(state.SearchTerm) > MaxSearchTermLength {
		return fmt.Errorf("search term too long")
	}
	return nil
}

// BuiltInPresets returns the presets shipped with the application
func BuiltInPresets() []models.FilterPreset {
	preset := func(id, name string, mutate func(*models.AdvancedFilterState)) models.FilterPreset {
		f := models.DefaultFilterState()
		mutate(&f)
		return models.FilterPreset{ID: id, Name: name, IsBuiltIn: true, Filters: f}
	}

	return []models.FilterPreset{
		preset("quick-reads", "Quick reads", func(f *models.AdvancedFilterState) {
			f.SelectedDuration = string(models.DurationShort)
		}),
		preset("deep-dives", "Deep dives", func(f *models.AdvancedFilterState) {
			f.SelectedDuration = string(models.DurationLong)
			f.SelectedDifficulty = string(models.DifficultyAdvanced)
		}),
		preset("continue-reading", "Continue where you left off", func(f *models.AdvancedFilterState) {
			f.SelectedCompletionStatus = string(models.StatusInProgress)
		}),
		preset("not-started", "Not started yet", func(f *models.AdvancedFilterState) {
			f.SelectedCompletionStatus = string(models.StatusNotStarted)
		}),
		preset("first-trimester", "First-trimester essentials", func(f *models.AdvancedFilterState) {
			f.SelectedTrimester = string(models.TrimesterFirst)
			f.SelectedDifficulty = string(models.DifficultyFoundational)
		}),
		preset("third-trimester", "Third-trimester preparation", func(f *models.AdvancedFilterState) {
			f.SelectedTrimester = string(models.TrimesterThird)
		}),
	}
}
