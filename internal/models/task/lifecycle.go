package task

import "time"

// Patch описывает изменения задачи: nil означает "поле не передано".
// Владельца изменить нельзя, поэтому поля для него нет.
type Patch struct {
	Title       *string
	Description *string
	DueDate     *time.Time
	Priority    *Priority
	Status      *Status
}

// RevertsToPending сообщает, переводит ли патч задачу обратно в PENDING.
func (p Patch) RevertsToPending() bool {
	return p.Status != nil && *p.Status == StatusPending
}

// CheckEditLock запрещает правку выполненной задачи, если статус
// одновременно не возвращается в PENDING.
func (t *Task) CheckEditLock(p Patch) error {
	if t.IsCompleted() && !p.RevertsToPending() {
		return ErrCompletedLocked
	}
	return nil
}

// Apply переносит переданные поля в задачу.
// Возвращает true, если срок выполнения изменился.
func (t *Task) Apply(p Patch) (dueChanged bool) {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.DueDate != nil {
		due := p.DueDate.Truncate(TimePrecision)
		dueChanged = !due.Equal(t.DueDate)
		t.DueDate = due
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	return dueChanged
}

func (t *Task) MarkComplete() error {
	if t.IsCompleted() {
		return ErrAlreadyCompleted
	}
	t.Status = StatusCompleted
	return nil
}

// MarkIncomplete идемпотентен: PENDING остаётся PENDING.
func (t *Task) MarkIncomplete() {
	t.Status = StatusPending
}
