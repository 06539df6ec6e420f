package task

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

var (
	ErrInvalidDueDate  = errors.New("invalid due date")
	ErrInvalidPriority = errors.New("invalid priority")
	ErrInvalidStatus   = errors.New("invalid status")
	ErrInvalidTitle    = errors.New("invalid title")

	ErrAlreadyCompleted = errors.New("task is already completed")
	ErrCompletedLocked  = errors.New("completed tasks cannot be edited unless reverted to PENDING")
)

// ValidationError указывает поле, не прошедшее проверку, и причину.
type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// ValidateOptions настраивает проверку при сохранении.
type ValidateOptions struct {
	// SkipDueDate отключает правило "срок в будущем" (срок не менялся, строгий режим выключен).
	SkipDueDate bool
}

// Validate проверяет поля по порядку и возвращает первое нарушение.
func (t *Task) Validate(now time.Time, opts ValidateOptions) error {
	if !opts.SkipDueDate && !t.DueDate.After(now) {
		return &ValidationError{Field: "due_date", Reason: "срок должен быть в будущем", Err: ErrInvalidDueDate}
	}
	if !t.Priority.Valid() {
		return &ValidationError{Field: "priority", Reason: fmt.Sprintf("недопустимый приоритет %q", t.Priority), Err: ErrInvalidPriority}
	}
	if !t.Status.Valid() {
		return &ValidationError{Field: "status", Reason: fmt.Sprintf("недопустимый статус %q", t.Status), Err: ErrInvalidStatus}
	}
	if strings.TrimSpace(t.Title) == "" {
		return &ValidationError{Field: "title", Reason: "название не может быть пустым", Err: ErrInvalidTitle}
	}
	if utf8.RuneCountInString(t.Title) > MaxTitleLength {
		return &ValidationError{Field: "title", Reason: fmt.Sprintf("название длиннее %d символов", MaxTitleLength), Err: ErrInvalidTitle}
	}
	return nil
}

// Prepare выполняется перед каждой записью: полная проверка, затем
// согласование completed_at со статусом.
func (t *Task) Prepare(now time.Time, opts ValidateOptions) error {
	if err := t.Validate(now, opts); err != nil {
		return err
	}
	switch t.Status {
	case StatusCompleted:
		if t.CompletedAt == nil {
			at := now.Truncate(TimePrecision)
			t.CompletedAt = &at
		}
	case StatusPending:
		t.CompletedAt = nil
	}
	return nil
}
