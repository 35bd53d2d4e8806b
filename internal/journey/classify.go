// Package journey holds the pure computations behind story browsing:
// duration and completion classification, advanced filtering, progress,
// trimester arithmetic and learning path sequencing.
//
// Every function is deterministic over its arguments and safe for
// concurrent use. Nothing here performs I/O.
package journey

import "github.com/terra-clan/bumpstory/internal/models"

// Duration bucket bounds in minutes. Both bounds belong to "medium".
const (
	mediumMinMinutes = 55
	mediumMaxMinutes = 60
)

// IDSet is a set of story IDs
type IDSet map[int]struct{}

// NewIDSet builds a set from ids
func NewIDSet(ids ...int) IDSet {
	s := make(IDSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Has reports membership. A nil set contains nothing.
func (s IDSet) Has(id int) bool {
	_, ok := s[id]
	return ok
}

// Len returns the number of IDs in the set
func (s IDSet) Len() int {
	return len(s)
}

// CategorizeDuration maps a story length to its duration bucket
func CategorizeDuration(minutes int) models.DurationCategory {
	switch {
	case minutes < mediumMinMinutes:
		return models.DurationShort
	case minutes <= mediumMaxMinutes:
		return models.DurationMedium
	default:
		return models.DurationLong
	}
}

// CompletionStatusOf derives a story's status from the two externally owned sets.
// Completed wins if the ID is present in both.
func CompletionStatusOf(storyID int, completed, inProgress IDSet) models.CompletionStatus {
	if completed.Has(storyID) {
		return models.StatusCompleted
	}
	if inProgress.Has(storyID) {
		return models.StatusInProgress
	}
	return models.StatusNotStarted
}
