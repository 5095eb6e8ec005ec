package todosrepo

import (
	"math"
	"slices"
)

// CalculateStatistics derives the completion projection of a list from its
// task references and the current state of those tasks. Tasks that are not
// referenced are ignored.
func CalculateStatistics(taskIDs []string, tasks []Task) Statistics {
	if len(taskIDs) == 0 {
		return Statistics{}
	}

	completed := make(map[string]bool, len(tasks))
	for _, t := range tasks {
		completed[t.TaskID] = t.Completed
	}

	var stats Statistics
	stats.TotalTasks = len(taskIDs)
	for _, id := range taskIDs {
		if completed[id] {
			stats.CompletedTasks++
		}
	}
	stats.CompletionPercentage = percentage(stats.CompletedTasks, stats.TotalTasks)
	return stats
}

// percentage rounds half away from zero.
func percentage(part, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(part) / float64(total) * 100))
}

// nextPosition returns one past the highest position among tasks for which
// keep returns true, or 0 when none match.
func nextPosition(tasks []Task, keep func(Task) bool) (int, bool) {
	found := false
	maxPos := 0
	for _, t := range tasks {
		if !keep(t) {
			continue
		}
		if !found || t.Position > maxPos {
			maxPos = t.Position
			found = true
		}
	}
	if !found {
		return 0, false
	}
	return maxPos + 1, true
}

// completionPosition is the position a task takes when it is marked
// complete: after the last completed task, else after the last incomplete
// task, else 0.
func completionPosition(tasks []Task, selfID string) int {
	if pos, ok := nextPosition(tasks, func(t Task) bool {
		return t.TaskID != selfID && t.Completed
	}); ok {
		return pos
	}
	pos, _ := nextPosition(tasks, func(t Task) bool {
		return t.TaskID != selfID && !t.Completed
	})
	return pos
}

// removeID drops every occurrence of id from ids.
func removeID(ids []string, id string) []string {
	return slices.DeleteFunc(slices.Clone(ids), func(s string) bool { return s == id })
}

// sortByPosition orders tasks by position, keeping the incoming order for
// ties.
func sortByPosition(tasks []Task) {
	slices.SortStableFunc(tasks, func(a, b Task) int {
		return a.Position - b.Position
	})
}
