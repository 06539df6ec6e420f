package service

import (
	"context"
	"errors"
	"fmt"
	"taskManager/internal/logger"
	"taskManager/internal/models/task"
	"taskManager/internal/models/user"
	"taskManager/internal/policy"
	repo "taskManager/internal/repository"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// здесь происходит проверка ошибок бизнес-логики

type TaskService struct {
	repo          TaskRepository
	strictDueDate bool
	now           func() time.Time
}

func NewTaskService(repo TaskRepository, strictDueDate bool) *TaskService {
	return &TaskService{
		repo:          repo,
		strictDueDate: strictDueDate,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

type CreateTaskInput struct {
	Title       string
	Description string
	DueDate     time.Time
	Priority    task.Priority
}

func (s *TaskService) HealthCheck(ctx context.Context) error {
	if err := s.repo.HealthCheck(ctx); err != nil {
		return fmt.Errorf("проверка здоровья сервиса: %w", err)
	}
	return nil
}

func (s *TaskService) CreateTask(ctx context.Context, actor user.Actor, input CreateTaskInput) (*task.Task, error) {
	if actor.IsZero() {
		return nil, NewUnauthorized("требуется аутентификация", nil)
	}

	newTask := task.New(actor.ID, input.Title, input.DueDate, input.Priority,
		task.WithDescription(input.Description))

	if err := newTask.Prepare(s.now(), task.ValidateOptions{}); err != nil {
		return nil, fromValidation(err)
	}

	if err := s.repo.CreateTask(ctx, newTask); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			// владелец удалён между аутентификацией и записью
			return nil, NewUnauthorized("пользователь не найден", err)
		}
		return nil, fmt.Errorf("создание задачи: %w", err)
	}

	logger.Info("Service: Задача создана",
		zap.String("task_id", newTask.ID.String()),
		zap.String("owner_id", actor.ID.String()))
	return newTask, nil
}

// ListTasks всегда ограничивает выборку задачами актора.
func (s *TaskService) ListTasks(ctx context.Context, actor user.Actor, filter task.Filter) ([]*task.Task, error) {
	if actor.IsZero() {
		return nil, NewUnauthorized("требуется аутентификация", nil)
	}
	tasks, err := s.repo.ListTasks(ctx, actor.ID, filter)
	if err != nil {
		return nil, fmt.Errorf("получение задач: %w", err)
	}
	return tasks, nil
}

func (s *TaskService) GetTask(ctx context.Context, actor user.Actor, id uuid.UUID) (*task.Task, error) {
	return s.load(ctx, actor, id, policy.ActionRead)
}

// UpdateTask применяет патч. Если version не nil, он должен совпасть с сохранённой версией.
func (s *TaskService) UpdateTask(ctx context.Context, actor user.Actor, id uuid.UUID, patch task.Patch, version *int) (*task.Task, error) {
	t, err := s.load(ctx, actor, id, policy.ActionWrite)
	if err != nil {
		return nil, err
	}
	if version != nil && *version != t.Version {
		return nil, NewVersionConflict(id.String())
	}
	if err := t.CheckEditLock(patch); err != nil {
		logger.Info("Service: Попытка изменить выполненную задачу", zap.String("task_id", id.String()))
		return nil, NewLifecycleError(err)
	}

	dueChanged := t.Apply(patch)
	if err := s.persist(ctx, t, dueChanged); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *TaskService) MarkComplete(ctx context.Context, actor user.Actor, id uuid.UUID) (*task.Task, error) {
	t, err := s.load(ctx, actor, id, policy.ActionWrite)
	if err != nil {
		return nil, err
	}
	if err := t.MarkComplete(); err != nil {
		return nil, NewLifecycleError(err)
	}
	if err := s.persist(ctx, t, false); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *TaskService) MarkIncomplete(ctx context.Context, actor user.Actor, id uuid.UUID) (*task.Task, error) {
	t, err := s.load(ctx, actor, id, policy.ActionWrite)
	if err != nil {
		return nil, err
	}
	t.MarkIncomplete()
	if err := s.persist(ctx, t, false); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *TaskService) DeleteTask(ctx context.Context, actor user.Actor, id uuid.UUID) error {
	if _, err := s.load(ctx, actor, id, policy.ActionDelete); err != nil {
		return err
	}
	if err := s.repo.DeleteTask(ctx, id); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return NewNotFound(ResourceTask, id.String())
		}
		return fmt.Errorf("удаление задачи: %w", err)
	}
	logger.Info("Service: Задача удалена", zap.String("task_id", id.String()))
	return nil
}

// load достаёт задачу и проверяет права. Чужая задача неотличима от отсутствующей.
func (s *TaskService) load(ctx context.Context, actor user.Actor, id uuid.UUID, action policy.Action) (*task.Task, error) {
	if actor.IsZero() {
		return nil, NewUnauthorized("требуется аутентификация", nil)
	}
	t, err := s.repo.GetTaskByID(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			logger.Info("Service: Задача не найдена", zap.String("target_id", id.String()))
			return nil, NewNotFound(ResourceTask, id.String())
		}
		return nil, fmt.Errorf("получение задачи: %w", err)
	}
	if !policy.CanAccessTask(actor, t, action) {
		logger.Info("Service: Доступ к чужой задаче",
			zap.String("target_id", id.String()),
			zap.String("actor_id", actor.ID.String()),
			zap.String("action", string(action)))
		return nil, NewNotFound(ResourceTask, id.String())
	}
	return t, nil
}

// persist проверяет задачу целиком и записывает её с проверкой версии.
func (s *TaskService) persist(ctx context.Context, t *task.Task, dueChanged bool) error {
	opts := task.ValidateOptions{SkipDueDate: !s.strictDueDate && !dueChanged}
	if err := t.Prepare(s.now(), opts); err != nil {
		return fromValidation(err)
	}
	if err := s.repo.UpdateTask(ctx, t); err != nil {
		switch {
		case errors.Is(err, repo.ErrVersionConflict):
			return NewVersionConflict(t.ID.String())
		case errors.Is(err, repo.ErrNotFound):
			return NewNotFound(ResourceTask, t.ID.String())
		}
		return fmt.Errorf("обновление задачи: %w", err)
	}
	return nil
}
