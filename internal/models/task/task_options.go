package task

import (
	"time"

	"github.com/google/uuid"
)

type TaskOption func(*Task)

func WithID(id uuid.UUID) TaskOption {
	return func(task *Task) {
		task.ID = id
	}
}

func WithDescription(description string) TaskOption {
	return func(task *Task) {
		task.Description = description
	}
}

func WithStatus(status Status) TaskOption {
	if status == "" {
		return nil
	}
	return func(task *Task) {
		task.Status = status
	}
}

func WithCreatedAt(at time.Time) TaskOption {
	return func(task *Task) {
		task.CreatedAt = at
	}
}

// New собирает задачу владельца со статусом PENDING по умолчанию.
// Проверка полей выполняется позже, в Prepare.
func New(ownerID uuid.UUID, title string, dueDate time.Time, priority Priority, opts ...TaskOption) *Task {
	t := &Task{
		ID:        uuid.New(),
		Title:     title,
		DueDate:   dueDate.Truncate(TimePrecision),
		Priority:  priority,
		Status:    StatusPending,
		OwnerID:   ownerID,
		CreatedAt: time.Now().UTC().Truncate(TimePrecision),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(t)
		}
	}
	return t
}
