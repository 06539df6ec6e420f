package inmemory

import (
	"context"
	"strings"
	"sync"
	"taskManager/internal/logger"
	"taskManager/internal/models/task"
	"taskManager/internal/models/user"
	repo "taskManager/internal/repository"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Storage хранит задачи и пользователей в памяти процесса.
// Один мьютекс на оба словаря: каскадное удаление пользователя атомарно.
type Storage struct {
	tasks   map[uuid.UUID]*task.Task
	taskIDs []uuid.UUID
	users   map[uuid.UUID]*user.User
	userIDs []uuid.UUID
	mtx     *sync.RWMutex
}

func NewStorage() *Storage {
	return &Storage{
		tasks:   make(map[uuid.UUID]*task.Task),
		taskIDs: []uuid.UUID{},
		users:   make(map[uuid.UUID]*user.User),
		userIDs: []uuid.UUID{},
		mtx:     &sync.RWMutex{},
	}
}

func (s *Storage) Close() {
	logger.Info("Repository: Хранилище в памяти закрыто")
}

func (s *Storage) HealthCheck(ctx context.Context) error {
	return nil
}

func (s *Storage) CreateTask(ctx context.Context, taskToCreate *task.Task) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if _, ok := s.users[taskToCreate.OwnerID]; !ok {
		logger.Warn("Repository: Владелец задачи не найден", zap.String("owner_id", taskToCreate.OwnerID.String()))
		return repo.ErrNotFound
	}
	if taskToCreate.CreatedAt.IsZero() {
		taskToCreate.CreatedAt = time.Now().UTC()
	}
	taskToCreate.Version = 1

	s.tasks[taskToCreate.ID] = taskToCreate.Clone()
	s.taskIDs = append(s.taskIDs, taskToCreate.ID)
	return nil
}

func (s *Storage) UpdateTask(ctx context.Context, taskToUpdate *task.Task) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	existing, ok := s.tasks[taskToUpdate.ID]
	if !ok {
		return repo.ErrNotFound
	}
	if existing.Version != taskToUpdate.Version {
		logger.Warn("Конфликт версий при обновлении задачи",
			zap.String("task_id", taskToUpdate.ID.String()),
			zap.Int("expected_version", taskToUpdate.Version))
		return repo.ErrVersionConflict
	}

	now := time.Now().UTC()
	taskToUpdate.UpdatedAt = &now
	taskToUpdate.Version++
	// владелец неизменяем
	taskToUpdate.OwnerID = existing.OwnerID
	s.tasks[taskToUpdate.ID] = taskToUpdate.Clone()
	return nil
}

func (s *Storage) GetTaskByID(ctx context.Context, id uuid.UUID) (*task.Task, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	taskToGet, ok := s.tasks[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return taskToGet.Clone(), nil
}

func (s *Storage) DeleteTask(ctx context.Context, id uuid.UUID) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if _, ok := s.tasks[id]; !ok {
		return repo.ErrNotFound
	}
	s.deleteTaskLocked(id)
	return nil
}

func (s *Storage) deleteTaskLocked(id uuid.UUID) {
	delete(s.tasks, id)
	for ind, val := range s.taskIDs {
		if val == id {
			s.taskIDs = append(s.taskIDs[:ind], s.taskIDs[ind+1:]...)
			break
		}
	}
}

// ListTasks возвращает задачи владельца в порядке создания, затем сортирует по фильтру.
func (s *Storage) ListTasks(ctx context.Context, ownerID uuid.UUID, filter task.Filter) ([]*task.Task, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	all := make([]*task.Task, 0, len(s.taskIDs))
	for _, id := range s.taskIDs {
		all = append(all, s.tasks[id])
	}

	selected := task.Select(ownerID, all, filter)
	res := make([]*task.Task, len(selected))
	for i, t := range selected {
		res[i] = t.Clone()
	}
	return res, nil
}

func (s *Storage) CreateUser(ctx context.Context, userToCreate *user.User) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if err := s.checkUniqueLocked(userToCreate); err != nil {
		return err
	}
	if userToCreate.CreatedAt.IsZero() {
		userToCreate.CreatedAt = time.Now().UTC()
	}
	s.users[userToCreate.ID] = userToCreate.Clone()
	s.userIDs = append(s.userIDs, userToCreate.ID)
	return nil
}

func (s *Storage) UpdateUser(ctx context.Context, userToUpdate *user.User) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if _, ok := s.users[userToUpdate.ID]; !ok {
		return repo.ErrNotFound
	}
	if err := s.checkUniqueLocked(userToUpdate); err != nil {
		return err
	}
	s.users[userToUpdate.ID] = userToUpdate.Clone()
	return nil
}

// checkUniqueLocked сравнивает username и email без учёта регистра, как индексы в postgres.
func (s *Storage) checkUniqueLocked(u *user.User) error {
	for id, other := range s.users {
		if id == u.ID {
			continue
		}
		if strings.EqualFold(other.Username, u.Username) {
			return &repo.DuplicateError{Field: "username"}
		}
		if strings.EqualFold(other.Email, u.Email) {
			return &repo.DuplicateError{Field: "email"}
		}
	}
	return nil
}

func (s *Storage) GetUserByID(ctx context.Context, id uuid.UUID) (*user.User, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return u.Clone(), nil
}

func (s *Storage) GetUserByUsername(ctx context.Context, username string) (*user.User, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	for _, u := range s.users {
		if strings.EqualFold(u.Username, username) {
			return u.Clone(), nil
		}
	}
	return nil, repo.ErrNotFound
}

func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*user.User, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return u.Clone(), nil
		}
	}
	return nil, repo.ErrNotFound
}

func (s *Storage) ListUsers(ctx context.Context) ([]*user.User, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	res := make([]*user.User, 0, len(s.userIDs))
	for _, id := range s.userIDs {
		res = append(res, s.users[id].Clone())
	}
	return res, nil
}

// DeleteUser каскадно удаляет задачи пользователя под тем же замком.
func (s *Storage) DeleteUser(ctx context.Context, id uuid.UUID) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if _, ok := s.users[id]; !ok {
		return repo.ErrNotFound
	}

	removed := 0
	for _, taskID := range append([]uuid.UUID(nil), s.taskIDs...) {
		if s.tasks[taskID].OwnerID == id {
			s.deleteTaskLocked(taskID)
			removed++
		}
	}

	delete(s.users, id)
	for ind, val := range s.userIDs {
		if val == id {
			s.userIDs = append(s.userIDs[:ind], s.userIDs[ind+1:]...)
			break
		}
	}

	logger.Info("Repository: Пользователь удалён",
		zap.String("user_id", id.String()),
		zap.Int("tasks_removed", removed))
	return nil
}
