package models

// DurationCategory buckets a story's length
type DurationCategory string

const (
	DurationShort  DurationCategory = "short"
	DurationMedium DurationCategory = "medium"
	DurationLong   DurationCategory = "long"
)

// CompletionStatus is derived from the completed and in-progress sets
type CompletionStatus string

const (
	StatusCompleted  CompletionStatus = "completed"
	StatusInProgress CompletionStatus = "in-progress"
	StatusNotStarted CompletionStatus = "not-started"
)

// AdvancedFilterState is the full set of catalog filters.
// It is a comparable value type: two states are equal iff every field is equal.
// Enum fields hold FilterAll when unconstrained.
type AdvancedFilterState struct {
	SelectedCategory         string `json:"selectedCategory"`
	SelectedDifficulty       string `json:"selectedDifficulty"`
	SearchTerm               string `json:"searchTerm"`
	SelectedDuration         string `json:"selectedDuration"`
	SelectedCompletionStatus string `json:"selectedCompletionStatus"`
	SelectedTrimester        string `json:"selectedTrimester"`
}

// DefaultFilterState returns a state with no constraints
func DefaultFilterState() AdvancedFilterState {
	return AdvancedFilterState{
		SelectedCategory:         FilterAll,
		SelectedDifficulty:       FilterAll,
		SearchTerm:               "",
		SelectedDuration:         FilterAll,
		SelectedCompletionStatus: FilterAll,
		SelectedTrimester:        FilterAll,
	}
}

// FilterPreset is a named, saved filter state
type FilterPreset struct {
	ID        string              `json:"id" yaml:"id"`
	Name      string              `json:"name" yaml:"name"`
	IsBuiltIn bool                `json:"isBuiltIn" yaml:"-"`
	Filters   AdvancedFilterState `json:"filters" yaml:"-"`
}
