package todosrepo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCalculateStatistics(t *testing.T) {
	tasks := []Task{
		{TaskID: "a", Completed: true},
		{TaskID: "b"},
		{TaskID: "c", Completed: true},
		{TaskID: "unreferenced", Completed: true},
	}

	tests := []struct {
		name string
		ids  []string
		want Statistics
	}{
		{"empty", nil, Statistics{}},
		{"one of one", []string{"a"}, Statistics{1, 1, 100}},
		{"one of two", []string{"a", "b"}, Statistics{2, 1, 50}},
		{"one of three", []string{"a", "b", "x"}, Statistics{3, 1, 33}},
		{"two of three", []string{"a", "b", "c"}, Statistics{3, 2, 67}},
		{"none complete", []string{"b"}, Statistics{1, 0, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CalculateStatistics(tt.ids, tasks))
		})
	}
}

func TestPercentageRoundsHalfUp(t *testing.T) {
	assert.Equal(t, 13, percentage(1, 8)) // 12.5
	assert.Equal(t, 38, percentage(3, 8)) // 37.5
	assert.Equal(t, 0, percentage(0, 0))
}

func TestCompletionPosition(t *testing.T) {
	assert.Equal(t, 0, completionPosition(nil, "self"))
	assert.Equal(t, 0, completionPosition([]Task{{TaskID: "self", Position: 4}}, "self"))

	incomplete := []Task{{TaskID: "self", Position: 0}, {TaskID: "b", Position: 2}}
	assert.Equal(t, 3, completionPosition(incomplete, "self"))

	mixed := []Task{{TaskID: "self"}, {TaskID: "b", Position: 9}, {TaskID: "c", Position: 4, Completed: true}}
	assert.Equal(t, 5, completionPosition(mixed, "self"))
}

func TestIsOverdue(t *testing.T) {
	origin := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	day := func(n int) time.Time { return origin.AddDate(0, 0, n) }

	tests := []struct {
		priority  Priority
		lastFresh int
	}{
		{PriorityHigh, 1},
		{PriorityMedium, 3},
		{PriorityLow, 7},
		{Priority("unknown"), 3},
	}
	for _, tt := range tests {
		t.Run(string(tt.priority), func(t *testing.T) {
			task := Task{Priority: tt.priority, OriginalDate: origin}
			for age := 0; age <= tt.lastFresh; age++ {
				assert.False(t, task.IsOverdue(day(age)), "age %d", age)
			}
			assert.True(t, task.IsOverdue(day(tt.lastFresh+1)))
			assert.True(t, task.IsOverdue(day(tt.lastFresh+30)))

			task.Completed = true
			assert.False(t, task.IsOverdue(day(tt.lastFresh+30)))
		})
	}
}

func TestAgeInDays_IgnoresClock(t *testing.T) {
	task := Task{OriginalDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	assert.Equal(t, 2, task.AgeInDays(time.Date(2024, 1, 3, 23, 59, 0, 0, time.UTC)))
}

func TestParsePriority(t *testing.T) {
	p, err := ParsePriority(" HIGH ")
	assert.NoError(t, err)
	assert.Equal(t, PriorityHigh, p)

	_, err = ParsePriority("urgent")
	assert.Error(t, err)
}
