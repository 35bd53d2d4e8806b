package models

// CategoryID identifies a story category (e.g., nutrition, wellness)
type CategoryID string

// FilterAll is the neutral value for every enum-valued filter field
const FilterAll = "all"

// Difficulty represents how much background a story assumes
type Difficulty string

const (
	DifficultyFoundational Difficulty = "foundational"
	DifficultyIntermediate Difficulty = "intermediate"
	DifficultyAdvanced     Difficulty = "advanced"
)

// Valid reports whether d is one of the known difficulties
func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyFoundational, DifficultyIntermediate, DifficultyAdvanced:
		return true
	}
	return false
}

// Trimester is the trimester a story is recommended for.
// TrimesterAny marks stories relevant to the whole pregnancy.
type Trimester string

const (
	TrimesterFirst  Trimester = "first"
	TrimesterSecond Trimester = "second"
	TrimesterThird  Trimester = "third"
	TrimesterAny    Trimester = "any"
)

// Valid reports whether t is one of the known trimester tags
func (t Trimester) Valid() bool {
	switch t {
	case TrimesterFirst, TrimesterSecond, TrimesterThird, TrimesterAny:
		return true
	}
	return false
}

// IsConcrete reports whether t names an actual trimester (not "any")
func (t Trimester) IsConcrete() bool {
	return t == TrimesterFirst || t == TrimesterSecond || t == TrimesterThird
}

// Category groups stories in the catalog
type Category struct {
	ID          CategoryID `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Icon        string     `json:"icon,omitempty"`
	Order       int        `json:"order"`
	StoryCount  int        `json:"storyCount"`
}

// Story is a single topic/lesson unit. Loaded once at startup and never mutated.
type Story struct {
	ID                   int        `json:"id"`
	Category             CategoryID `json:"category"`
	Difficulty           Difficulty `json:"difficulty"`
	Duration             int        `json:"duration"` // minutes
	RecommendedTrimester Trimester  `json:"recommendedTrimester"`
	Title                string     `json:"title"`
	Description          string     `json:"description"`
	Content              string     `json:"content,omitempty"`
	AudioURL             string     `json:"audioUrl,omitempty"`
	ImageURL             string     `json:"imageUrl,omitempty"`
	Tags                 []string   `json:"tags,omitempty"`
}

// LearningPath is a fixed, ordered curriculum over a subset of stories
type LearningPath struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	StoryIDs    []int  `json:"storyIds"`
}

// LearningPathItem is derived from a path and the completed set on every call
type LearningPathItem struct {
	StoryID     int    `json:"storyId"`
	Order       int    `json:"order"` // 1-based
	IsCompleted bool   `json:"isCompleted"`
	IsCurrent   bool   `json:"isCurrent"`
	IsNext      bool   `json:"isNext"`
	Story       *Story `json:"story,omitempty"`
}

// ProgressStats summarizes completion over a path or the whole catalog
type ProgressStats struct {
	Completed  int `json:"completed"`
	Total      int `json:"total"`
	Percentage int `json:"percentage"`
}

// CatalogStats holds story counts per dimension
type CatalogStats struct {
	Stories      int                `json:"stories"`
	Paths        int                `json:"paths"`
	ByCategory   map[CategoryID]int `json:"byCategory"`
	ByDifficulty map[Difficulty]int `json:"byDifficulty"`
	ByTrimester  map[Trimester]int  `json:"byTrimester"`
}
