package dto

import (
	"encoding/json"
	"taskManager/internal/models/task"
	"taskManager/internal/models/user"
	"time"

	"github.com/google/uuid"
)

// Timestamp принимает те же форматы, что и фильтры списка: RFC3339,
// "YYYY-MM-DDTHH:MM:SS" и "YYYY-MM-DD" (UTC).
type Timestamp struct {
	time.Time
}

func (ts *Timestamp) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	parsed, err := task.ParseTime(raw)
	if err != nil {
		return err
	}
	ts.Time = parsed
	return nil
}

func (ts *Timestamp) value() *time.Time {
	if ts == nil {
		return nil
	}
	t := ts.Time
	return &t
}

type CreateTaskRequest struct {
	Title       string     `json:"title" validate:"required,max=255"`
	Description string     `json:"description"`
	DueDate     *Timestamp `json:"due_date" validate:"required"`
	Priority    string     `json:"priority" validate:"required"`
}

// ReplaceTaskRequest это тело PUT, все редактируемые поля, кроме статуса, обязательны.
type ReplaceTaskRequest struct {
	Title       string     `json:"title" validate:"required,max=255"`
	Description *string    `json:"description" validate:"required"`
	DueDate     *Timestamp `json:"due_date" validate:"required"`
	Priority    string     `json:"priority" validate:"required"`
	Status      *string    `json:"status"`
	Version     *int       `json:"version" validate:"omitempty,min=1"`
}

// UpdateTaskRequest это тело PATCH, передаются только изменяемые поля.
type UpdateTaskRequest struct {
	Title       *string    `json:"title" validate:"omitempty,max=255"`
	Description *string    `json:"description"`
	DueDate     *Timestamp `json:"due_date"`
	Priority    *string    `json:"priority"`
	Status      *string    `json:"status"`
	Version     *int       `json:"version" validate:"omitempty,min=1"`
}

func (r ReplaceTaskRequest) Patch() task.Patch {
	priority := task.Priority(r.Priority)
	return task.Patch{
		Title:       &r.Title,
		Description: r.Description,
		DueDate:     r.DueDate.value(),
		Priority:    &priority,
		Status:      toStatus(r.Status),
	}
}

func (r UpdateTaskRequest) Patch() task.Patch {
	var priority *task.Priority
	if r.Priority != nil {
		p := task.Priority(*r.Priority)
		priority = &p
	}
	return task.Patch{
		Title:       r.Title,
		Description: r.Description,
		DueDate:     r.DueDate.value(),
		Priority:    priority,
		Status:      toStatus(r.Status),
	}
}

func toStatus(raw *string) *task.Status {
	if raw == nil {
		return nil
	}
	s := task.Status(*raw)
	return &s
}

type TaskResponse struct {
	ID          uuid.UUID  `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	DueDate     time.Time  `json:"due_date"`
	Priority    string     `json:"priority"`
	Status      string     `json:"status"`
	CompletedAt *time.Time `json:"completed_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
	Version     int        `json:"version"`
}

func FromTask(t *task.Task) TaskResponse {
	return TaskResponse{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		DueDate:     t.DueDate,
		Priority:    string(t.Priority),
		Status:      string(t.Status),
		CompletedAt: t.CompletedAt,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
		Version:     t.Version,
	}
}

func FromTaskList(tasks []*task.Task) []TaskResponse {
	result := make([]TaskResponse, len(tasks))
	for i, t := range tasks {
		result[i] = FromTask(t)
	}
	return result
}

type RegisterRequest struct {
	Username string `json:"username" validate:"required,max=150"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type ReplaceUserRequest struct {
	Username string  `json:"username" validate:"required,max=150"`
	Email    string  `json:"email" validate:"required,email"`
	Password *string `json:"password" validate:"omitempty,min=8"`
}

type UpdateUserRequest struct {
	Username *string `json:"username" validate:"omitempty,min=1,max=150"`
	Email    *string `json:"email" validate:"omitempty,email"`
	Password *string `json:"password" validate:"omitempty,min=8"`
}

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type UserResponse struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
	Email    string    `json:"email"`
	IsStaff  bool      `json:"is_staff"`
}

func FromUser(u *user.User) UserResponse {
	return UserResponse{
		ID:       u.ID,
		Username: u.Username,
		Email:    u.Email,
		IsStaff:  u.IsStaff,
	}
}

func FromUserList(users []*user.User) []UserResponse {
	result := make([]UserResponse, len(users))
	for i, u := range users {
		result[i] = FromUser(u)
	}
	return result
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}
