package task

import (
	"time"

	"github.com/google/uuid"
)

type Task struct {
	ID          uuid.UUID  `json:"id" db:"id"`
	Title       string     `json:"title" db:"title"`
	Description string     `json:"description" db:"description"`
	DueDate     time.Time  `json:"due_date" db:"due_date"`
	Priority    Priority   `json:"priority" db:"priority"`
	Status      Status     `json:"status" db:"status"`
	OwnerID     uuid.UUID  `json:"-" db:"owner_id"`
	CompletedAt *time.Time `json:"completed_at" db:"completed_at"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty" db:"updated_at"`
	Version     int        `json:"version" db:"version"`
}

type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusCompleted Status = "COMPLETED"
)

const MaxTitleLength = 255

// TimePrecision: точность времени в PostgreSQL. Все бэкенды хранят
// моменты с ней, чтобы фильтр по точной дате находил то, что вернул API.
const TimePrecision = time.Microsecond

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Rank задаёт порядок сортировки: LOW < MEDIUM < HIGH.
func (p Priority) Rank() int {
	switch p {
	case PriorityLow:
		return 1
	case PriorityMedium:
		return 2
	case PriorityHigh:
		return 3
	}
	return 0
}

func ParsePriority(s string) (Priority, error) {
	p := Priority(s)
	if !p.Valid() {
		return "", &ValidationError{Field: "priority", Reason: "недопустимый приоритет: " + s, Err: ErrInvalidPriority}
	}
	return p, nil
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusCompleted:
		return true
	}
	return false
}

func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.Valid() {
		return "", &ValidationError{Field: "status", Reason: "недопустимый статус: " + s, Err: ErrInvalidStatus}
	}
	return st, nil
}

func (t *Task) IsCompleted() bool {
	return t.Status == StatusCompleted
}

// Clone возвращает независимую копию, хранилища не должны отдавать наружу свои указатели.
func (t *Task) Clone() *Task {
	c := *t
	if t.CompletedAt != nil {
		at := *t.CompletedAt
		c.CompletedAt = &at
	}
	if t.UpdatedAt != nil {
		at := *t.UpdatedAt
		c.UpdatedAt = &at
	}
	return &c
}
