package task_test

import (
	"net/url"
	"taskManager/internal/models/task"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOrdering(t *testing.T) {
	terms, err := task.ParseOrdering("due_date, -priority,")
	require.NoError(t, err)
	assert.Equal(t, []task.OrderTerm{
		{Field: task.OrderByDueDate},
		{Field: task.OrderByPriority, Desc: true},
	}, terms)
	assert.Equal(t, "-priority", terms[1].String())

	_, err = task.ParseOrdering("title")
	var verr *task.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "ordering", verr.Field)
}

func TestParseTime(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want time.Time
	}{
		{"RFC3339 в UTC", "2030-01-02T10:00:00Z", time.Date(2030, 1, 2, 10, 0, 0, 0, time.UTC)},
		{"RFC3339 со смещением", "2030-01-02T10:00:00+03:00", time.Date(2030, 1, 2, 7, 0, 0, 0, time.UTC)},
		{"плюс, ставший пробелом в строке запроса", "2030-01-02T10:00:00 03:00", time.Date(2030, 1, 2, 7, 0, 0, 0, time.UTC)},
		{"без зоны", "2030-01-02T10:00:00", time.Date(2030, 1, 2, 10, 0, 0, 0, time.UTC)},
		{"только дата", "2030-01-02", time.Date(2030, 1, 2, 0, 0, 0, 0, time.UTC)},
		{"наносекунды обрезаются до микросекунд", "2030-01-02T10:00:00.123456789Z", time.Date(2030, 1, 2, 10, 0, 0, 123456000, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := task.ParseTime(tt.raw)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %s", got)
			assert.Equal(t, time.UTC, got.Location())
		})
	}

	for _, raw := range []string{"", "завтра", "02.01.2030", "2030-13-01"} {
		_, err := task.ParseTime(raw)
		assert.Error(t, err, raw)
	}
}

func TestParseFilter(t *testing.T) {
	f, err := task.ParseFilter(url.Values{
		"status":       {"PENDING"},
		"priority":     {"LOW"},
		"due_date_gte": {"2030-01-01"},
		"due_date_lte": {"2030-01-31T23:59:59Z"},
		"ordering":     {"-due_date"},
	})
	require.NoError(t, err)
	require.NotNil(t, f.Status)
	assert.Equal(t, task.StatusPending, *f.Status)
	require.NotNil(t, f.Priority)
	assert.Equal(t, task.PriorityLow, *f.Priority)
	assert.Nil(t, f.DueDate)
	require.NotNil(t, f.DueDateGTE)
	require.NotNil(t, f.DueDateLTE)
	assert.Equal(t, []task.OrderTerm{{Field: task.OrderByDueDate, Desc: true}}, f.Ordering)

	empty, err := task.ParseFilter(url.Values{})
	require.NoError(t, err)
	assert.Equal(t, task.Filter{}, empty)
}

func TestParseFilter_Errors(t *testing.T) {
	tests := []struct {
		name  string
		query url.Values
		field string
	}{
		{"статус", url.Values{"status": {"DONE"}}, "status"},
		{"приоритет", url.Values{"priority": {"urgent"}}, "priority"},
		{"точная дата", url.Values{"due_date": {"вчера"}}, "due_date"},
		{"нижняя граница", url.Values{"due_date_gte": {"x"}}, "due_date_gte"},
		{"верхняя граница", url.Values{"due_date_lte": {"x"}}, "due_date_lte"},
		{"сортировка", url.Values{"ordering": {"created_at"}}, "ordering"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := task.ParseFilter(tt.query)
			var verr *task.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestSelect(t *testing.T) {
	alice, bob := uuid.New(), uuid.New()
	day := func(n int) time.Time { return now.AddDate(0, 0, n) }

	a1 := task.New(alice, "a1", day(3), task.PriorityLow)
	a2 := task.New(alice, "a2", day(1), task.PriorityHigh)
	b1 := task.New(bob, "b1", day(2), task.PriorityHigh)
	a3 := task.New(alice, "a3", day(1), task.PriorityLow)
	a3.Status = task.StatusCompleted
	all := []*task.Task{a1, a2, b1, a3}

	titles := func(tasks []*task.Task) []string {
		res := make([]string, len(tasks))
		for i, tk := range tasks {
			res[i] = tk.Title
		}
		return res
	}

	low := task.PriorityLow
	pending := task.StatusPending
	from, to := day(1), day(2)

	tests := []struct {
		name   string
		filter task.Filter
		want   []string
	}{
		{"только свои в порядке создания", task.Filter{}, []string{"a1", "a2", "a3"}},
		{"по приоритету", task.Filter{Priority: &low}, []string{"a1", "a3"}},
		{"по статусу", task.Filter{Status: &pending}, []string{"a1", "a2"}},
		{"включительный диапазон", task.Filter{DueDateGTE: &from, DueDateLTE: &to}, []string{"a2", "a3"}},
		{
			"равные сроки сохраняют порядок создания",
			task.Filter{Ordering: []task.OrderTerm{{Field: task.OrderByDueDate}}},
			[]string{"a2", "a3", "a1"},
		},
		{
			"несколько ключей",
			task.Filter{Ordering: []task.OrderTerm{{Field: task.OrderByDueDate}, {Field: task.OrderByPriority}}},
			[]string{"a3", "a2", "a1"},
		},
		{
			"приоритет по убыванию",
			task.Filter{Ordering: []task.OrderTerm{{Field: task.OrderByPriority, Desc: true}}},
			[]string{"a2", "a1", "a3"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, titles(task.Select(alice, all, tt.filter)))
		})
	}

	assert.Equal(t, []string{"a1", "a2", "b1", "a3"}, titles(all), "исходный срез не меняется")
}
