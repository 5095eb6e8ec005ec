package todosrepo_test

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jrazmi/allmyducks/core/repositories/todosrepo"
	"github.com/jrazmi/allmyducks/core/repositories/todosrepo/stores/todossqlitestore"
	"github.com/jrazmi/allmyducks/infrastructure/sqlitedb"
	"github.com/jrazmi/allmyducks/sdk/logger"
	"github.com/jrazmi/allmyducks/sdk/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	userU = "user-u"
	userV = "user-v"
)

type clock struct {
	now time.Time
}

func (c *clock) Now() time.Time { return c.now }

func date(s string) time.Time {
	t, err := time.Parse(validation.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func newRepo(t *testing.T, today string) (*todosrepo.Repository, *clock) {
	t.Helper()

	ctx := context.Background()
	db, err := sqlitedb.Open(ctx, sqlitedb.Options{Path: filepath.Join(t.TempDir(), "todos.db")})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, sqlitedb.Migrate(ctx, db))

	c := &clock{now: date(today).Add(9 * time.Hour)}
	log := logger.NewDiscard()
	repo := todosrepo.NewRepository(log, todossqlitestore.NewStore(log, db), todosrepo.WithClock(c.Now))
	return repo, c
}

func positions(tasks []todosrepo.Task) map[string]int {
	m := make(map[string]int, len(tasks))
	for _, t := range tasks {
		m[t.TaskID] = t.Position
	}
	return m
}

// =============================================================================

func TestCreateAndToggle_SingleTask(t *testing.T) {
	ctx := context.Background()
	repo, _ := newRepo(t, "2024-01-01")

	list, err := repo.CreateList(ctx, userU, date("2024-01-01"))
	require.NoError(t, err)

	task, err := repo.CreateTask(ctx, userU, todosrepo.NewTask{
		Content:  "  Buy milk ",
		Priority: todosrepo.PriorityHigh,
		ListID:   list.ListID,
	})
	require.NoError(t, err)
	assert.Equal(t, "Buy milk", task.Content)
	assert.Equal(t, 0, task.Position)
	assert.Equal(t, date("2024-01-01"), task.OriginalDate)
	assert.False(t, task.Completed)

	toggled, err := repo.ToggleTask(ctx, userU, task.TaskID)
	require.NoError(t, err)
	assert.True(t, toggled.Completed)
	assert.NotNil(t, toggled.CompletedAt)
	assert.Equal(t, 0, toggled.Position)

	got, err := repo.GetList(ctx, userU, list.ListID)
	require.NoError(t, err)
	assert.Equal(t, todosrepo.Statistics{TotalTasks: 1, CompletedTasks: 1, CompletionPercentage: 100}, got.Statistics)
	assert.Equal(t, []string{task.TaskID}, got.TaskIDs)
}

func TestCreateTask_AppendsPositions(t *testing.T) {
	ctx := context.Background()
	repo, _ := newRepo(t, "2024-01-01")

	list, err := repo.CreateList(ctx, userU, date("2024-01-01"))
	require.NoError(t, err)

	explicit := 5
	a, err := repo.CreateTask(ctx, userU, todosrepo.NewTask{Content: "a", ListID: list.ListID})
	require.NoError(t, err)
	b, err := repo.CreateTask(ctx, userU, todosrepo.NewTask{Content: "b", ListID: list.ListID, Position: &explicit})
	require.NoError(t, err)
	c, err := repo.CreateTask(ctx, userU, todosrepo.NewTask{Content: "c", ListID: list.ListID})
	require.NoError(t, err)

	assert.Equal(t, 0, a.Position)
	assert.Equal(t, 5, b.Position)
	assert.Equal(t, 6, c.Position)
	assert.Equal(t, todosrepo.PriorityMedium, a.Priority)

	got, err := repo.GetList(ctx, userU, list.ListID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Statistics.TotalTasks)
	assert.Equal(t, 0, got.Statistics.CompletionPercentage)
}

func TestCreateTask_Validation(t *testing.T) {
	ctx := context.Background()
	repo, _ := newRepo(t, "2024-01-01")

	list, err := repo.CreateList(ctx, userU, date("2024-01-01"))
	require.NoError(t, err)

	negative := -1
	tests := []struct {
		name  string
		input todosrepo.NewTask
		field string
	}{
		{"empty content", todosrepo.NewTask{Content: "   ", ListID: list.ListID}, "content"},
		{"long content", todosrepo.NewTask{Content: strings.Repeat("x", 2001), ListID: list.ListID}, "content"},
		{"bad priority", todosrepo.NewTask{Content: "x", Priority: "urgent", ListID: list.ListID}, "priority"},
		{"missing list", todosrepo.NewTask{Content: "x"}, "list"},
		{"negative position", todosrepo.NewTask{Content: "x", ListID: list.ListID, Position: &negative}, "position"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := repo.CreateTask(ctx, userU, tt.input)
			require.Error(t, err)
			fe := validation.GetFieldErrors(err)
			require.NotNil(t, fe)
			assert.Contains(t, fe.Fields(), tt.field)
		})
	}

	_, err = repo.CreateTask(ctx, userU, todosrepo.NewTask{Content: strings.Repeat("x", 2000), ListID: list.ListID})
	assert.NoError(t, err)
}

func TestToggle_PositionRule(t *testing.T) {
	ctx := context.Background()
	repo, _ := newRepo(t, "2024-01-01")

	list, err := repo.CreateList(ctx, userU, date("2024-01-01"))
	require.NoError(t, err)

	var ids []string
	for _, c := range []string{"one", "two", "three"} {
		task, err := repo.CreateTask(ctx, userU, todosrepo.NewTask{Content: c, ListID: list.ListID})
		require.NoError(t, err)
		ids = append(ids, task.TaskID)
	}

	first, err := repo.ToggleTask(ctx, userU, ids[0])
	require.NoError(t, err)
	assert.Equal(t, 3, first.Position, "first completion goes after the incomplete tasks")

	second, err := repo.ToggleTask(ctx, userU, ids[1])
	require.NoError(t, err)
	assert.Equal(t, 4, second.Position, "later completions go after the completed tasks")

	reopened, err := repo.ToggleTask(ctx, userU, ids[0])
	require.NoError(t, err)
	assert.False(t, reopened.Completed)
	assert.Nil(t, reopened.CompletedAt)
	assert.Equal(t, 3, reopened.Position, "reopening keeps the position")

	got, err := repo.GetList(ctx, userU, list.ListID)
	require.NoError(t, err)
	assert.Equal(t, todosrepo.Statistics{TotalTasks: 3, CompletedTasks: 1, CompletionPercentage: 33}, got.Statistics)
	assert.Equal(t, []string{ids[2], ids[0], ids[1]}, []string{got.Tasks[0].TaskID, got.Tasks[1].TaskID, got.Tasks[2].TaskID})
}

func TestOwnership(t *testing.T) {
	ctx := context.Background()
	repo, _ := newRepo(t, "2024-01-01")

	list, err := repo.CreateList(ctx, userU, date("2024-01-01"))
	require.NoError(t, err)
	task, err := repo.CreateTask(ctx, userU, todosrepo.NewTask{Content: "mine", ListID: list.ListID})
	require.NoError(t, err)

	_, err = repo.CreateTask(ctx, userV, todosrepo.NewTask{Content: "x", ListID: list.ListID})
	assert.ErrorIs(t, err, todosrepo.ErrForbidden)

	_, err = repo.ToggleTask(ctx, userV, task.TaskID)
	assert.ErrorIs(t, err, todosrepo.ErrForbidden)

	content := "theirs"
	_, err = repo.UpdateTask(ctx, userV, task.TaskID, todosrepo.UpdateTask{Content: &content})
	assert.ErrorIs(t, err, todosrepo.ErrForbidden)

	assert.ErrorIs(t, repo.DeleteTask(ctx, userV, task.TaskID), todosrepo.ErrForbidden)
	assert.ErrorIs(t, repo.DeleteList(ctx, userV, list.ListID), todosrepo.ErrForbidden)

	_, err = repo.GetList(ctx, userV, list.ListID)
	assert.ErrorIs(t, err, todosrepo.ErrForbidden)

	_, err = repo.ToggleTask(ctx, userU, "missing")
	assert.ErrorIs(t, err, todosrepo.ErrNotFound)

	_, err = repo.CreateTask(ctx, userU, todosrepo.NewTask{Content: "x", ListID: "missing"})
	assert.ErrorIs(t, err, todosrepo.ErrNotFound)
}

func TestUpdateTask(t *testing.T) {
	ctx := context.Background()
	repo, _ := newRepo(t, "2024-01-01")

	list, err := repo.CreateList(ctx, userU, date("2024-01-01"))
	require.NoError(t, err)
	task, err := repo.CreateTask(ctx, userU, todosrepo.NewTask{Content: "draft", ListID: list.ListID})
	require.NoError(t, err)

	content := " final "
	priority := todosrepo.PriorityLow
	pos := 9
	updated, err := repo.UpdateTask(ctx, userU, task.TaskID, todosrepo.UpdateTask{
		Content:  &content,
		Priority: &priority,
		Position: &pos,
	})
	require.NoError(t, err)
	assert.Equal(t, "final", updated.Content)
	assert.Equal(t, todosrepo.PriorityLow, updated.Priority)
	assert.Equal(t, 9, updated.Position)

	empty := ""
	_, err = repo.UpdateTask(ctx, userU, task.TaskID, todosrepo.UpdateTask{Content: &empty})
	assert.True(t, validation.IsFieldErrors(err))
}

func TestCreateList_Duplicate(t *testing.T) {
	ctx := context.Background()
	repo, _ := newRepo(t, "2024-01-01")

	_, err := repo.CreateList(ctx, userU, date("2024-01-01"))
	require.NoError(t, err)

	_, err = repo.CreateList(ctx, userU, date("2024-01-01").Add(15*time.Hour))
	assert.ErrorIs(t, err, todosrepo.ErrDuplicateList)

	lists, err := repo.ListLists(ctx, userU, nil, nil)
	require.NoError(t, err)
	assert.Len(t, lists, 1)

	_, err = repo.CreateList(ctx, userV, date("2024-01-01"))
	assert.NoError(t, err, "dates are unique per user")
}

func TestGetListByDate_FindOrCreate(t *testing.T) {
	ctx := context.Background()
	repo, _ := newRepo(t, "2024-01-01")

	first, err := repo.GetListByDate(ctx, userU, date("2024-02-10"))
	require.NoError(t, err)
	assert.Equal(t, date("2024-02-10"), first.Date)
	assert.Empty(t, first.Tasks)

	second, err := repo.GetListByDate(ctx, userU, date("2024-02-10"))
	require.NoError(t, err)
	assert.Equal(t, first.ListID, second.ListID)
}

func TestReorder(t *testing.T) {
	ctx := context.Background()
	repo, _ := newRepo(t, "2024-01-01")

	list, err := repo.CreateList(ctx, userU, date("2024-01-01"))
	require.NoError(t, err)
	a, err := repo.CreateTask(ctx, userU, todosrepo.NewTask{Content: "a", ListID: list.ListID})
	require.NoError(t, err)
	b, err := repo.CreateTask(ctx, userU, todosrepo.NewTask{Content: "b", ListID: list.ListID})
	require.NoError(t, err)

	got, err := repo.Reorder(ctx, userU, list.ListID, []todosrepo.TaskPosition{
		{TaskID: a.TaskID, Position: 1},
		{TaskID: b.TaskID, Position: 0},
	})
	require.NoError(t, err)
	require.Len(t, got.Tasks, 2)
	assert.Equal(t, b.TaskID, got.Tasks[0].TaskID)
	assert.Equal(t, a.TaskID, got.Tasks[1].TaskID)

	_, err = repo.Reorder(ctx, userU, list.ListID, nil)
	assert.True(t, validation.IsFieldErrors(err))

	_, err = repo.Reorder(ctx, userU, list.ListID, []todosrepo.TaskPosition{{TaskID: a.TaskID, Position: -2}})
	assert.True(t, validation.IsFieldErrors(err))

	_, err = repo.Reorder(ctx, userV, list.ListID, []todosrepo.TaskPosition{})
	assert.ErrorIs(t, err, todosrepo.ErrForbidden)
}

func TestReorder_UnknownTaskAbortsAll(t *testing.T) {
	ctx := context.Background()
	repo, _ := newRepo(t, "2024-01-01")

	list, err := repo.CreateList(ctx, userU, date("2024-01-01"))
	require.NoError(t, err)
	other, err := repo.CreateList(ctx, userU, date("2024-01-02"))
	require.NoError(t, err)

	a, err := repo.CreateTask(ctx, userU, todosrepo.NewTask{Content: "a", ListID: list.ListID})
	require.NoError(t, err)
	b, err := repo.CreateTask(ctx, userU, todosrepo.NewTask{Content: "b", ListID: list.ListID})
	require.NoError(t, err)
	foreign, err := repo.CreateTask(ctx, userU, todosrepo.NewTask{Content: "elsewhere", ListID: other.ListID})
	require.NoError(t, err)

	before, err := repo.GetList(ctx, userU, list.ListID)
	require.NoError(t, err)

	for _, bad := range []string{"does-not-exist", foreign.TaskID} {
		_, err = repo.Reorder(ctx, userU, list.ListID, []todosrepo.TaskPosition{
			{TaskID: a.TaskID, Position: 7},
			{TaskID: bad, Position: 0},
			{TaskID: b.TaskID, Position: 8},
		})
		assert.ErrorIs(t, err, todosrepo.ErrNotFound)
	}

	after, err := repo.GetList(ctx, userU, list.ListID)
	require.NoError(t, err)
	assert.Equal(t, positions(before.Tasks), positions(after.Tasks))
}

func TestDeleteTask_UpdatesList(t *testing.T) {
	ctx := context.Background()
	repo, _ := newRepo(t, "2024-01-01")

	list, err := repo.CreateList(ctx, userU, date("2024-01-01"))
	require.NoError(t, err)
	a, err := repo.CreateTask(ctx, userU, todosrepo.NewTask{Content: "a", ListID: list.ListID})
	require.NoError(t, err)
	b, err := repo.CreateTask(ctx, userU, todosrepo.NewTask{Content: "b", ListID: list.ListID})
	require.NoError(t, err)
	_, err = repo.ToggleTask(ctx, userU, b.TaskID)
	require.NoError(t, err)

	require.NoError(t, repo.DeleteTask(ctx, userU, a.TaskID))

	got, err := repo.GetList(ctx, userU, list.ListID)
	require.NoError(t, err)
	assert.Equal(t, []string{b.TaskID}, got.TaskIDs)
	assert.Equal(t, todosrepo.Statistics{TotalTasks: 1, CompletedTasks: 1, CompletionPercentage: 100}, got.Statistics)

	_, err = repo.GetTask(ctx, userU, a.TaskID)
	assert.ErrorIs(t, err, todosrepo.ErrNotFound)
}

func TestDeleteList_Cascades(t *testing.T) {
	ctx := context.Background()
	repo, _ := newRepo(t, "2024-01-01")

	list, err := repo.CreateList(ctx, userU, date("2024-01-01"))
	require.NoError(t, err)
	task, err := repo.CreateTask(ctx, userU, todosrepo.NewTask{Content: "a", ListID: list.ListID})
	require.NoError(t, err)

	require.NoError(t, repo.DeleteList(ctx, userU, list.ListID))

	_, err = repo.GetList(ctx, userU, list.ListID)
	assert.ErrorIs(t, err, todosrepo.ErrNotFound)
	_, err = repo.GetTask(ctx, userU, task.TaskID)
	assert.ErrorIs(t, err, todosrepo.ErrNotFound)

	assert.ErrorIs(t, repo.DeleteList(ctx, userU, list.ListID), todosrepo.ErrNotFound)
}

func TestQueryTasks(t *testing.T) {
	ctx := context.Background()
	repo, c := newRepo(t, "2024-01-01")

	list, err := repo.CreateList(ctx, userU, date("2024-01-01"))
	require.NoError(t, err)
	high, err := repo.CreateTask(ctx, userU, todosrepo.NewTask{Content: "high", Priority: todosrepo.PriorityHigh, ListID: list.ListID})
	require.NoError(t, err)
	low, err := repo.CreateTask(ctx, userU, todosrepo.NewTask{Content: "low", Priority: todosrepo.PriorityLow, ListID: list.ListID})
	require.NoError(t, err)
	done, err := repo.CreateTask(ctx, userU, todosrepo.NewTask{Content: "done", Priority: todosrepo.PriorityHigh, ListID: list.ListID})
	require.NoError(t, err)
	_, err = repo.ToggleTask(ctx, userU, done.TaskID)
	require.NoError(t, err)

	c.now = date("2024-01-03").Add(time.Hour)

	overdue := true
	got, err := repo.QueryTasks(ctx, userU, todosrepo.TaskQuery{Overdue: &overdue})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, high.TaskID, got[0].TaskID)

	completed := false
	got, err = repo.QueryTasks(ctx, userU, todosrepo.TaskQuery{Completed: &completed})
	require.NoError(t, err)
	assert.Equal(t, []string{high.TaskID, low.TaskID}, []string{got[0].TaskID, got[1].TaskID})

	priority := todosrepo.PriorityLow
	got, err = repo.QueryTasks(ctx, userU, todosrepo.TaskQuery{Priority: &priority})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, low.TaskID, got[0].TaskID)

	got, err = repo.QueryTasks(ctx, userV, todosrepo.TaskQuery{})
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestTransferTasks_SkipsSettledSources(t *testing.T) {
	ctx := context.Background()
	repo, _ := newRepo(t, "2024-01-05")

	list, err := repo.CreateList(ctx, userU, date("2024-01-01"))
	require.NoError(t, err)
	open, err := repo.CreateTask(ctx, userU, todosrepo.NewTask{Content: "open", ListID: list.ListID})
	require.NoError(t, err)
	closed, err := repo.CreateTask(ctx, userU, todosrepo.NewTask{Content: "closed", ListID: list.ListID})
	require.NoError(t, err)

	// The second task is completed after candidates were read.
	candidates, err := repo.TransferCandidates(ctx, todosrepo.CandidateFilter{Cutoff: date("2024-01-05")})
	require.NoError(t, err)
	require.Len(t, candidates, 2)
	_, err = repo.ToggleTask(ctx, userU, closed.TaskID)
	require.NoError(t, err)

	n, err := repo.TransferTasks(ctx, userU, date("2024-01-05"), candidates)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = repo.TransferTasks(ctx, userU, date("2024-01-05"), candidates)
	require.NoError(t, err)
	assert.Equal(t, 0, n, "handled sources are not copied twice")

	target, err := repo.GetListByDate(ctx, userU, date("2024-01-05"))
	require.NoError(t, err)
	require.Len(t, target.Tasks, 1)
	assert.Equal(t, "open", target.Tasks[0].Content)
	assert.True(t, target.Tasks[0].IsTransferred)
	assert.Equal(t, open.OriginalDate, target.Tasks[0].OriginalDate)
	assert.Equal(t, 1, target.Statistics.TotalTasks)
}

func TestListLists_RangeAndOrder(t *testing.T) {
	ctx := context.Background()
	repo, _ := newRepo(t, "2024-01-01")

	for _, d := range []string{"2024-01-01", "2024-01-03", "2024-01-02", "2024-01-09"} {
		_, err := repo.CreateList(ctx, userU, date(d))
		require.NoError(t, err)
	}

	start, end := date("2024-01-02"), date("2024-01-03")
	lists, err := repo.ListLists(ctx, userU, &start, &end)
	require.NoError(t, err)
	require.Len(t, lists, 2)
	assert.Equal(t, date("2024-01-03"), lists[0].Date)
	assert.Equal(t, date("2024-01-02"), lists[1].Date)

	_, err = repo.ListLists(ctx, userU, &end, &start)
	assert.True(t, validation.IsFieldErrors(err))
}

func TestSummary(t *testing.T) {
	ctx := context.Background()
	repo, _ := newRepo(t, "2024-01-04")

	// Completed work on days 1, 2 and 4; nothing on day 3.
	for _, d := range []string{"2024-01-01", "2024-01-02", "2024-01-03", "2024-01-04"} {
		list, err := repo.CreateList(ctx, userU, date(d))
		require.NoError(t, err)
		task, err := repo.CreateTask(ctx, userU, todosrepo.NewTask{Content: "work " + d, ListID: list.ListID})
		require.NoError(t, err)
		if d != "2024-01-03" {
			_, err = repo.ToggleTask(ctx, userU, task.TaskID)
			require.NoError(t, err)
		}
	}

	s, err := repo.Summary(ctx, userU, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 4, s.TotalLists)
	assert.Equal(t, 4, s.TotalTasks)
	assert.Equal(t, 3, s.CompletedTasks)
	assert.Equal(t, 75, s.CompletionPercentage)
	assert.Equal(t, 1.0, s.TasksPerDay)
	assert.Equal(t, 1, s.CurrentStreak)
	assert.Equal(t, 2, s.LongestStreak)

	empty, err := repo.Summary(ctx, userV, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, todosrepo.Summary{}, empty)
}
