package task_test

import (
	"strings"
	"taskManager/internal/models/task"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2030, 6, 1, 12, 0, 0, 0, time.UTC)

func validTask() *task.Task {
	return task.New(uuid.New(), "Написать отчёт", now.Add(24*time.Hour), task.PriorityMedium)
}

func TestNew_Defaults(t *testing.T) {
	owner := uuid.New()
	id := uuid.New()
	created := task.New(owner, "Задача", now, task.PriorityLow,
		task.WithID(id),
		task.WithDescription("описание"),
		task.WithStatus(""),
		task.WithCreatedAt(now),
	)

	assert.Equal(t, id, created.ID)
	assert.Equal(t, owner, created.OwnerID)
	assert.Equal(t, "описание", created.Description)
	assert.Equal(t, task.StatusPending, created.Status)
	assert.Equal(t, now, created.CreatedAt)
	assert.Nil(t, created.CompletedAt)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*task.Task)
		opts    task.ValidateOptions
		field   string
		wantErr error
	}{
		{
			name:   "корректная задача",
			mutate: func(*task.Task) {},
		},
		{
			name:    "срок в прошлом",
			mutate:  func(tk *task.Task) { tk.DueDate = now.Add(-time.Hour) },
			field:   "due_date",
			wantErr: task.ErrInvalidDueDate,
		},
		{
			name:    "срок равен текущему моменту",
			mutate:  func(tk *task.Task) { tk.DueDate = now },
			field:   "due_date",
			wantErr: task.ErrInvalidDueDate,
		},
		{
			name:   "срок в прошлом без проверки срока",
			mutate: func(tk *task.Task) { tk.DueDate = now.Add(-time.Hour) },
			opts:   task.ValidateOptions{SkipDueDate: true},
		},
		{
			name: "срок проверяется раньше приоритета",
			mutate: func(tk *task.Task) {
				tk.DueDate = now.Add(-time.Hour)
				tk.Priority = "URGENT"
			},
			field:   "due_date",
			wantErr: task.ErrInvalidDueDate,
		},
		{
			name:    "неизвестный приоритет",
			mutate:  func(tk *task.Task) { tk.Priority = "URGENT" },
			field:   "priority",
			wantErr: task.ErrInvalidPriority,
		},
		{
			name:    "неизвестный статус",
			mutate:  func(tk *task.Task) { tk.Status = "DONE" },
			field:   "status",
			wantErr: task.ErrInvalidStatus,
		},
		{
			name:    "пустое название",
			mutate:  func(tk *task.Task) { tk.Title = "   " },
			field:   "title",
			wantErr: task.ErrInvalidTitle,
		},
		{
			name:    "слишком длинное название",
			mutate:  func(tk *task.Task) { tk.Title = strings.Repeat("я", task.MaxTitleLength+1) },
			field:   "title",
			wantErr: task.ErrInvalidTitle,
		},
		{
			name:   "название предельной длины в символах",
			mutate: func(tk *task.Task) { tk.Title = strings.Repeat("я", task.MaxTitleLength) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tk := validTask()
			tt.mutate(tk)

			err := tk.Validate(now, tt.opts)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)

			var verr *task.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestPrepare_CompletedAtFollowsStatus(t *testing.T) {
	tk := validTask()
	require.NoError(t, tk.Prepare(now, task.ValidateOptions{}))
	assert.Nil(t, tk.CompletedAt)

	require.NoError(t, tk.MarkComplete())
	require.NoError(t, tk.Prepare(now, task.ValidateOptions{}))
	require.NotNil(t, tk.CompletedAt)
	assert.Equal(t, now, *tk.CompletedAt)

	later := now.Add(time.Hour)
	require.NoError(t, tk.Prepare(later, task.ValidateOptions{SkipDueDate: true}))
	assert.Equal(t, now, *tk.CompletedAt, "повторная запись не сдвигает completed_at")

	tk.MarkIncomplete()
	require.NoError(t, tk.Prepare(later, task.ValidateOptions{}))
	assert.Nil(t, tk.CompletedAt)
}

func TestPrepare_InvalidLeavesCompletedAt(t *testing.T) {
	tk := validTask()
	tk.Status = task.StatusCompleted
	tk.Title = ""

	require.Error(t, tk.Prepare(now, task.ValidateOptions{}))
	assert.Nil(t, tk.CompletedAt)
}

func TestParsePriorityAndStatus(t *testing.T) {
	p, err := task.ParsePriority("HIGH")
	require.NoError(t, err)
	assert.Equal(t, task.PriorityHigh, p)

	_, err = task.ParsePriority("high")
	assert.ErrorIs(t, err, task.ErrInvalidPriority)

	st, err := task.ParseStatus("COMPLETED")
	require.NoError(t, err)
	assert.Equal(t, task.StatusCompleted, st)

	_, err = task.ParseStatus("DONE")
	assert.ErrorIs(t, err, task.ErrInvalidStatus)
}

func TestClone_Independent(t *testing.T) {
	tk := validTask()
	at := now
	tk.CompletedAt = &at

	c := tk.Clone()
	*c.CompletedAt = now.Add(time.Hour)
	c.Title = "другое"

	assert.Equal(t, now, *tk.CompletedAt)
	assert.Equal(t, "Написать отчёт", tk.Title)
}

func TestNew_TruncatesToStoragePrecision(t *testing.T) {
	due := time.Date(2030, 1, 2, 10, 0, 0, 123456789, time.UTC)
	tk := task.New(uuid.New(), "Задача", due, task.PriorityLow)

	assert.Equal(t, 123456000, tk.DueDate.Nanosecond())
	assert.Zero(t, tk.CreatedAt.Nanosecond()%int(task.TimePrecision))
}
