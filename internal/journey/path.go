package journey

import "github.com/terra-clan/bumpstory/internal/models"

// BuildLearningPathItems derives one item per path story, in path order.
// The first incomplete item is current and the item right after it is next.
// When every item is completed no item is current.
func BuildLearningPathItems(stories []models.Story, completed IDSet, path models.LearningPath) []models.LearningPathItem {
	byID := make(map[int]*models.Story, len(stories))
	for i := range stories {
		byID[stories[i].ID] = &stories[i]
	}

	items := make([]models.LearningPathItem, len(path.StoryIDs))
	currentIdx := -1
	for i, id := range path.StoryIDs {
		items[i] = models.LearningPathItem{
			StoryID:     id,
			Order:       i + 1,
			IsCompleted: completed.Has(id),
			Story:       byID[id],
		}
		if currentIdx < 0 && !items[i].IsCompleted {
			currentIdx = i
		}
	}

	if currentIdx >= 0 {
		items[currentIdx].IsCurrent = true
		if currentIdx+1 < len(items) {
			items[currentIdx+1].IsNext = true
		}
	}
	return items
}

// ProgressStatsFor counts completion over the stories of path only
func ProgressStatsFor(completed IDSet, path models.LearningPath) models.ProgressStats {
	done := 0
	for _, id := range path.StoryIDs {
		if completed.Has(id) {
			done++
		}
	}
	total := len(path.StoryIDs)
	return models.ProgressStats{
		Completed:  done,
		Total:      total,
		Percentage: CalculateProgress(done, total),
	}
}

// CurrentItem returns the current item of a built path, if any
func CurrentItem(items []models.LearningPathItem) (models.LearningPathItem, bool) {
	for _, it := range items {
		if it.IsCurrent {
			return it, true
		}
	}
	return models.LearningPathItem{}, false
}

// IsJourneyComplete reports the terminal "all done" state of a non-empty path
func IsJourneyComplete(stats models.ProgressStats) bool {
	return stats.Total > 0 && stats.Completed == stats.Total
}
