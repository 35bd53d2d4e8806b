package journey

import "math"

// CalculateProgress converts a completed/total pair into a percentage in 0..100.
// Non-positive totals and negative counts yield 0; completed is clamped to total.
func CalculateProgress(completed, total int) int {
	if total <= 0 || completed < 0 {
		return 0
	}
	if completed > total {
		completed = total
	}
	return int(math.Floor(float64(completed)*100/float64(total) + 0.5))
}

// ToggleCompletion returns a new slice with storyID removed if present,
// or appended if absent. The order of untouched IDs is preserved; a toggled-back
// ID lands at the end rather than at its original index.
func ToggleCompletion(ids []int, storyID int) []int {
	out := make([]int, 0, len(ids)+1)
	found := false
	for _, id := range ids {
		if id == storyID {
			found = true
			continue
		}
		out = append(out, id)
	}
	if !found {
		out = append(out, storyID)
	}
	return out
}
