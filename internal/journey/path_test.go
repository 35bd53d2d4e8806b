package journey

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terra-clan/bumpstory/internal/models"
)

func fivePath() models.LearningPath {
	return models.LearningPath{
		ID:       "first-steps",
		Name:     "First steps",
		StoryIDs: []int{10, 20, 30, 40, 50},
	}
}

func TestBuildLearningPathItems_CurrentAndNext(t *testing.T) {
	stories := []models.Story{{ID: 10, Title: "a"}, {ID: 30, Title: "c"}}
	items := BuildLearningPathItems(stories, NewIDSet(10, 20), fivePath())
	require.Len(t, items, 5)

	for i, it := range items {
		assert.Equal(t, i+1, it.Order)
		assert.Equal(t, fivePath().StoryIDs[i], it.StoryID)
	}

	assert.True(t, items[0].IsCompleted)
	assert.True(t, items[1].IsCompleted)
	assert.False(t, items[0].IsCurrent || items[0].IsNext)
	assert.False(t, items[1].IsCurrent || items[1].IsNext)

	assert.True(t, items[2].IsCurrent)
	assert.False(t, items[2].IsNext)
	assert.False(t, items[2].IsCompleted)

	assert.True(t, items[3].IsNext)
	assert.False(t, items[3].IsCurrent)

	assert.False(t, items[4].IsCurrent)
	assert.False(t, items[4].IsNext)

	// catalog stories are attached where known
	require.NotNil(t, items[2].Story)
	assert.Equal(t, "c", items[2].Story.Title)
	assert.Nil(t, items[1].Story)
}

func TestBuildLearningPathItems_OutOfOrderCompletion(t *testing.T) {
	// the first incomplete item is current even if later ones are done
	items := BuildLearningPathItems(nil, NewIDSet(10, 30, 40), fivePath())

	assert.True(t, items[1].IsCurrent)
	assert.True(t, items[2].IsNext)
	assert.True(t, items[2].IsCompleted)
	assert.False(t, items[4].IsCurrent)
}

func TestBuildLearningPathItems_LastItemCurrentHasNoNext(t *testing.T) {
	items := BuildLearningPathItems(nil, NewIDSet(10, 20, 30, 40), fivePath())
	assert.True(t, items[4].IsCurrent)
	for _, it := range items {
		assert.False(t, it.IsNext)
	}
}

func TestBuildLearningPathItems_AllCompleted(t *testing.T) {
	items := BuildLearningPathItems(nil, NewIDSet(10, 20, 30, 40, 50), fivePath())
	for _, it := range items {
		assert.True(t, it.IsCompleted)
		assert.False(t, it.IsCurrent)
		assert.False(t, it.IsNext)
	}

	_, ok := CurrentItem(items)
	assert.False(t, ok)
	assert.True(t, IsJourneyComplete(ProgressStatsFor(NewIDSet(10, 20, 30, 40, 50), fivePath())))
}

func TestBuildLearningPathItems_EmptyPath(t *testing.T) {
	items := BuildLearningPathItems(nil, NewIDSet(1), models.LearningPath{ID: "empty"})
	assert.Empty(t, items)
	assert.False(t, IsJourneyComplete(ProgressStatsFor(NewIDSet(1), models.LearningPath{})))
}

func TestCurrentItem(t *testing.T) {
	items := BuildLearningPathItems(nil, NewIDSet(10), fivePath())
	cur, ok := CurrentItem(items)
	require.True(t, ok)
	assert.Equal(t, 20, cur.StoryID)
	assert.Equal(t, 2, cur.Order)
}

func TestProgressStatsFor_ScopedToPath(t *testing.T) {
	// 99 and 7 are completed but outside the path
	stats := ProgressStatsFor(NewIDSet(10, 20, 99, 7), fivePath())
	assert.Equal(t, models.ProgressStats{Completed: 2, Total: 5, Percentage: 40}, stats)

	empty := ProgressStatsFor(nil, models.LearningPath{})
	assert.Equal(t, models.ProgressStats{}, empty)
}
