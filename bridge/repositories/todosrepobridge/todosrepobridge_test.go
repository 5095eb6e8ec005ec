package todosrepobridge_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jrazmi/allmyducks/bridge/repositories/todosrepobridge"
	"github.com/jrazmi/allmyducks/bridge/scaffolding/mid"
	"github.com/jrazmi/allmyducks/core/repositories/todosrepo"
	"github.com/jrazmi/allmyducks/core/repositories/todosrepo/stores/todossqlitestore"
	"github.com/jrazmi/allmyducks/infrastructure/sqlitedb"
	"github.com/jrazmi/allmyducks/infrastructure/web"
	"github.com/jrazmi/allmyducks/sdk/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tokens are the user ids themselves.
type tokens struct{}

func (tokens) Verify(token string) (string, error) {
	if token == "" {
		return "", errors.New("empty")
	}
	return token, nil
}

func bearer(header string) (string, error) {
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}

type fieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type envelope struct {
	Success bool            `json:"success"`
	Count   *int            `json:"count"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Fields  []fieldError    `json:"fields"`
}

type server struct {
	t *testing.T
	h http.Handler
}

func newServer(t *testing.T) *server {
	t.Helper()

	ctx := context.Background()
	db, err := sqlitedb.Open(ctx, sqlitedb.Options{Path: filepath.Join(t.TempDir(), "todos.db")})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, sqlitedb.Migrate(ctx, db))

	log := logger.NewDiscard()
	now := func() time.Time { return time.Date(2024, 1, 4, 9, 0, 0, 0, time.UTC) }
	repo := todosrepo.NewRepository(log, todossqlitestore.NewStore(log, db), todosrepo.WithClock(now))

	h := web.NewWebHandler(web.HandlerOptions{}, web.WithGlobalMiddleware(mid.Errors(log)))
	todosrepobridge.AddHttpRoutes(h.Group("/api/todo", mid.Authenticate(tokens{}, bearer)), todosrepobridge.Config{
		Log:        log,
		Repository: repo,
	})
	return &server{t: t, h: h}
}

func (s *server) do(user, method, path, body string) (int, envelope) {
	s.t.Helper()

	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, path, nil)
	} else {
		r = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	if user != "" {
		r.Header.Set("Authorization", "Bearer "+user)
	}

	rec := httptest.NewRecorder()
	s.h.ServeHTTP(rec, r)

	var env envelope
	require.NoError(s.t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec.Code, env
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

func TestTaskLifecycle(t *testing.T) {
	s := newServer(t)

	code, env := s.do("alice", http.MethodPost, "/api/todo/lists", `{"date":"2024-01-01"}`)
	require.Equal(t, http.StatusCreated, code)
	list := decode[todosrepobridge.List](t, env.Data)
	assert.Equal(t, "2024-01-01", list.Date)
	assert.Empty(t, list.Tasks)

	code, env = s.do("alice", http.MethodPost, "/api/todo/tasks", `{"content":"Buy milk","priority":"HIGH","list":"`+list.ID+`"}`)
	require.Equal(t, http.StatusCreated, code)
	task := decode[todosrepobridge.Task](t, env.Data)
	assert.Equal(t, "high", task.Priority)
	assert.Equal(t, "2024-01-01", task.OriginalDate)
	assert.Equal(t, 3, task.AgeInDays)
	assert.True(t, task.IsOverdue)

	code, env = s.do("alice", http.MethodPut, "/api/todo/tasks/"+task.ID+"/toggle", "")
	require.Equal(t, http.StatusOK, code)
	toggled := decode[todosrepobridge.Task](t, env.Data)
	assert.True(t, toggled.Completed)
	assert.NotNil(t, toggled.CompletedAt)
	assert.False(t, toggled.IsOverdue)

	code, env = s.do("alice", http.MethodGet, "/api/todo/lists/"+list.ID, "")
	require.Equal(t, http.StatusOK, code)
	got := decode[todosrepobridge.List](t, env.Data)
	assert.Equal(t, todosrepo.Statistics{TotalTasks: 1, CompletedTasks: 1, CompletionPercentage: 100}, got.Statistics)
	require.Len(t, got.Tasks, 1)

	code, env = s.do("alice", http.MethodPut, "/api/todo/tasks/"+task.ID, `{"content":"Buy oat milk"}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Buy oat milk", decode[todosrepobridge.Task](t, env.Data).Content)

	code, env = s.do("alice", http.MethodDelete, "/api/todo/tasks/"+task.ID, "")
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{}`, string(env.Data))

	code, _ = s.do("alice", http.MethodPut, "/api/todo/tasks/"+task.ID+"/toggle", "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestAuthorization(t *testing.T) {
	s := newServer(t)

	code, _ := s.do("", http.MethodGet, "/api/todo/tasks", "")
	assert.Equal(t, http.StatusUnauthorized, code)

	_, env := s.do("alice", http.MethodPost, "/api/todo/lists", `{"date":"2024-01-02"}`)
	list := decode[todosrepobridge.List](t, env.Data)

	code, env = s.do("bob", http.MethodGet, "/api/todo/lists/"+list.ID, "")
	assert.Equal(t, http.StatusForbidden, code)
	assert.False(t, env.Success)

	code, _ = s.do("bob", http.MethodPost, "/api/todo/tasks", `{"content":"sneaky","list":"`+list.ID+`"}`)
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = s.do("bob", http.MethodDelete, "/api/todo/lists/"+list.ID, "")
	assert.Equal(t, http.StatusForbidden, code)
}

func TestValidationErrors(t *testing.T) {
	s := newServer(t)

	_, env := s.do("alice", http.MethodPost, "/api/todo/lists", `{"date":"2024-01-02"}`)
	list := decode[todosrepobridge.List](t, env.Data)

	code, env := s.do("alice", http.MethodPost, "/api/todo/lists", `{"date":"2024-01-02"}`)
	assert.Equal(t, http.StatusBadRequest, code, "duplicate list")
	assert.False(t, env.Success)

	code, _ = s.do("alice", http.MethodPost, "/api/todo/lists", `{"date":"yesterday"}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, env = s.do("alice", http.MethodPost, "/api/todo/tasks", `{"content":"","priority":"urgent","list":"`+list.ID+`"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	fields := map[string]bool{}
	for _, f := range env.Fields {
		fields[f.Field] = true
	}
	assert.True(t, fields["content"])
	assert.True(t, fields["priority"])

	code, _ = s.do("alice", http.MethodGet, "/api/todo/tasks?completed=maybe", "")
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = s.do("alice", http.MethodGet, "/api/todo/lists/date/not-a-date", "")
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = s.do("alice", http.MethodPut, "/api/todo/lists/"+list.ID+"/reorder", `{}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = s.do("alice", http.MethodGet, "/api/todo/lists?startDate=2024-01-05&endDate=2024-01-01", "")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestReorderAndQuery(t *testing.T) {
	s := newServer(t)

	_, env := s.do("alice", http.MethodGet, "/api/todo/lists/date/2024-01-04", "")
	list := decode[todosrepobridge.List](t, env.Data)
	assert.Equal(t, "2024-01-04", list.Date)

	var ids []string
	for _, c := range []string{"a", "b", "c"} {
		_, env := s.do("alice", http.MethodPost, "/api/todo/tasks", `{"content":"`+c+`","list":"`+list.ID+`"}`)
		ids = append(ids, decode[todosrepobridge.Task](t, env.Data).ID)
	}

	body := `{"tasks":[{"id":"` + ids[0] + `","position":2},{"id":"` + ids[2] + `","position":0}]}`
	code, env := s.do("alice", http.MethodPut, "/api/todo/lists/"+list.ID+"/reorder", body)
	require.Equal(t, http.StatusOK, code)
	reordered := decode[todosrepobridge.List](t, env.Data)
	require.Len(t, reordered.Tasks, 3)
	assert.Equal(t, []string{"c", "b", "a"}, []string{reordered.Tasks[0].Content, reordered.Tasks[1].Content, reordered.Tasks[2].Content})

	code, _ = s.do("alice", http.MethodPut, "/api/todo/lists/"+list.ID+"/reorder", `{"tasks":[{"id":"missing","position":0}]}`)
	assert.Equal(t, http.StatusNotFound, code)

	s.do("alice", http.MethodPut, "/api/todo/tasks/"+ids[1]+"/toggle", "")

	code, env = s.do("alice", http.MethodGet, "/api/todo/tasks?completed=false", "")
	require.Equal(t, http.StatusOK, code)
	require.NotNil(t, env.Count)
	assert.Equal(t, 2, *env.Count)

	code, env = s.do("alice", http.MethodGet, "/api/todo/stats", "")
	require.Equal(t, http.StatusOK, code)
	summary := decode[todosrepo.Summary](t, env.Data)
	assert.Equal(t, 1, summary.TotalLists)
	assert.Equal(t, 3, summary.TotalTasks)
	assert.Equal(t, 1, summary.CompletedTasks)
	assert.Equal(t, 33, summary.CompletionPercentage)

	code, env = s.do("alice", http.MethodGet, "/api/todo/lists?startDate=2024-01-01&endDate=2024-01-31", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 1, *env.Count)

	code, _ = s.do("alice", http.MethodDelete, "/api/todo/lists/"+list.ID, "")
	assert.Equal(t, http.StatusOK, code)
	code, _ = s.do("alice", http.MethodGet, "/api/todo/lists/"+list.ID, "")
	assert.Equal(t, http.StatusNotFound, code)
}
