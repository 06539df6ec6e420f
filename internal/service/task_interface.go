package service

import (
	"context"
	"taskManager/internal/models/task"
	"taskManager/internal/models/user"

	"github.com/google/uuid"
)

// TaskRepository: хранилище задач.
// UpdateTask выполняет compare-and-swap по Version и при успехе увеличивает её.
type TaskRepository interface {
	HealthCheck(ctx context.Context) error
	CreateTask(ctx context.Context, t *task.Task) error
	UpdateTask(ctx context.Context, t *task.Task) error
	GetTaskByID(ctx context.Context, id uuid.UUID) (*task.Task, error)
	DeleteTask(ctx context.Context, id uuid.UUID) error
	ListTasks(ctx context.Context, ownerID uuid.UUID, filter task.Filter) ([]*task.Task, error)
}

// UserRepository: хранилище пользователей.
// DeleteUser удаляет пользователя вместе со всеми его задачами атомарно.
type UserRepository interface {
	CreateUser(ctx context.Context, u *user.User) error
	UpdateUser(ctx context.Context, u *user.User) error
	GetUserByID(ctx context.Context, id uuid.UUID) (*user.User, error)
	GetUserByUsername(ctx context.Context, username string) (*user.User, error)
	GetUserByEmail(ctx context.Context, email string) (*user.User, error)
	ListUsers(ctx context.Context) ([]*user.User, error)
	DeleteUser(ctx context.Context, id uuid.UUID) error
}

// Storage объединяет оба хранилища; так устроены все бэкенды.
type Storage interface {
	TaskRepository
	UserRepository
	Close()
}
