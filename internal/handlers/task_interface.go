package handlers

import (
	"context"
	"taskManager/internal/models/task"
	"taskManager/internal/models/user"
	"taskManager/internal/service"

	"github.com/google/uuid"
)

type TaskService interface {
	HealthCheck(ctx context.Context) error
	CreateTask(ctx context.Context, actor user.Actor, input service.CreateTaskInput) (*task.Task, error)
	ListTasks(ctx context.Context, actor user.Actor, filter task.Filter) ([]*task.Task, error)
	GetTask(ctx context.Context, actor user.Actor, id uuid.UUID) (*task.Task, error)
	UpdateTask(ctx context.Context, actor user.Actor, id uuid.UUID, patch task.Patch, version *int) (*task.Task, error)
	MarkComplete(ctx context.Context, actor user.Actor, id uuid.UUID) (*task.Task, error)
	MarkIncomplete(ctx context.Context, actor user.Actor, id uuid.UUID) (*task.Task, error)
	DeleteTask(ctx context.Context, actor user.Actor, id uuid.UUID) error
}

type UserService interface {
	Register(ctx context.Context, actor user.Actor, input service.RegisterInput) (*user.User, error)
	Login(ctx context.Context, username, password string) (*service.Token, error)
	ListUsers(ctx context.Context, actor user.Actor) ([]*user.User, error)
	GetUser(ctx context.Context, actor user.Actor, id uuid.UUID) (*user.User, error)
	UpdateUser(ctx context.Context, actor user.Actor, id uuid.UUID, patch service.UserPatch) (*user.User, error)
	DeleteUser(ctx context.Context, actor user.Actor, id uuid.UUID) error
}

var (
	_ TaskService = (*service.TaskService)(nil)
	_ UserService = (*service.UserService)(nil)
)
