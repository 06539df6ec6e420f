// Package repotest содержит общий набор тестов контракта хранилища.
// Бэкенд встраивает StorageSuite и выставляет Storage в SetupTest.
package repotest

import (
	"context"
	"errors"
	"taskManager/internal/models/task"
	"taskManager/internal/models/user"
	repo "taskManager/internal/repository"
	"taskManager/internal/service"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
)

type StorageSuite struct {
	suite.Suite
	Storage service.Storage
}

func (s *StorageSuite) ctx() context.Context {
	return context.Background()
}

// day: полночь UTC через n дней; секундная точность одинакова во всех бэкендах.
func day(n int) time.Time {
	return time.Now().UTC().Truncate(24*time.Hour).AddDate(0, 0, n)
}

func (s *StorageSuite) newUser(name string) *user.User {
	u := &user.User{
		ID:           uuid.New(),
		Username:     name,
		Email:        name + "@example.com",
		PasswordHash: "hash-" + name,
	}
	s.Require().NoError(s.Storage.CreateUser(s.ctx(), u))
	return u
}

func (s *StorageSuite) newTask(owner *user.User, title string, due time.Time, p task.Priority) *task.Task {
	t := task.New(owner.ID, title, due, p,
		task.WithDescription("описание "+title),
		task.WithCreatedAt(time.Now().UTC().Truncate(time.Second)),
	)
	s.Require().NoError(s.Storage.CreateTask(s.ctx(), t))
	return t
}

// complete проводит задачу через Prepare, как это делает сервис перед записью.
func (s *StorageSuite) complete(t *task.Task) {
	s.Require().NoError(t.MarkComplete())
	s.Require().NoError(t.Prepare(time.Now().UTC(), task.ValidateOptions{SkipDueDate: true}))
	s.Require().NoError(s.Storage.UpdateTask(s.ctx(), t))
}

func ids(tasks []*task.Task) []uuid.UUID {
	res := make([]uuid.UUID, len(tasks))
	for i, t := range tasks {
		res[i] = t.ID
	}
	return res
}

func (s *StorageSuite) TestHealthCheck() {
	s.NoError(s.Storage.HealthCheck(s.ctx()))
}

func (s *StorageSuite) TestCreateAndGetTask() {
	owner := s.newUser("alice")
	created := s.newTask(owner, "Купить молоко", day(3), task.PriorityHigh)

	s.Equal(1, created.Version)

	got, err := s.Storage.GetTaskByID(s.ctx(), created.ID)
	s.Require().NoError(err)
	s.Equal(created.ID, got.ID)
	s.Equal("Купить молоко", got.Title)
	s.Equal("описание Купить молоко", got.Description)
	s.True(created.DueDate.Equal(got.DueDate))
	s.Equal(task.PriorityHigh, got.Priority)
	s.Equal(task.StatusPending, got.Status)
	s.Equal(owner.ID, got.OwnerID)
	s.Nil(got.CompletedAt)
	s.Nil(got.UpdatedAt)
	s.Equal(1, got.Version)
	s.WithinDuration(created.CreatedAt, got.CreatedAt, time.Second)
}

func (s *StorageSuite) TestCreateTaskWithoutOwner() {
	orphan := task.New(uuid.New(), "Сирота", day(1), task.PriorityLow)
	err := s.Storage.CreateTask(s.ctx(), orphan)
	s.ErrorIs(err, repo.ErrNotFound)

	_, err = s.Storage.GetTaskByID(s.ctx(), orphan.ID)
	s.ErrorIs(err, repo.ErrNotFound)
}

func (s *StorageSuite) TestGetMissingTask() {
	_, err := s.Storage.GetTaskByID(s.ctx(), uuid.New())
	s.ErrorIs(err, repo.ErrNotFound)
}

func (s *StorageSuite) TestUpdateTaskBumpsVersion() {
	owner := s.newUser("alice")
	created := s.newTask(owner, "Черновик", day(2), task.PriorityMedium)

	loaded, err := s.Storage.GetTaskByID(s.ctx(), created.ID)
	s.Require().NoError(err)
	loaded.Title = "Чистовик"
	loaded.Priority = task.PriorityLow
	s.Require().NoError(s.Storage.UpdateTask(s.ctx(), loaded))

	s.Equal(2, loaded.Version)
	s.NotNil(loaded.UpdatedAt)

	got, err := s.Storage.GetTaskByID(s.ctx(), created.ID)
	s.Require().NoError(err)
	s.Equal("Чистовик", got.Title)
	s.Equal(task.PriorityLow, got.Priority)
	s.Equal(2, got.Version)
	s.NotNil(got.UpdatedAt)
}

func (s *StorageSuite) TestUpdateTaskStaleVersion() {
	owner := s.newUser("alice")
	created := s.newTask(owner, "Общая", day(2), task.PriorityMedium)

	first, err := s.Storage.GetTaskByID(s.ctx(), created.ID)
	s.Require().NoError(err)
	second, err := s.Storage.GetTaskByID(s.ctx(), created.ID)
	s.Require().NoError(err)

	first.Title = "Первый"
	s.Require().NoError(s.Storage.UpdateTask(s.ctx(), first))

	second.Title = "Второй"
	s.ErrorIs(s.Storage.UpdateTask(s.ctx(), second), repo.ErrVersionConflict)

	got, err := s.Storage.GetTaskByID(s.ctx(), created.ID)
	s.Require().NoError(err)
	s.Equal("Первый", got.Title)
	s.Equal(2, got.Version)
}

func (s *StorageSuite) TestUpdateMissingTask() {
	owner := s.newUser("alice")
	ghost := task.New(owner.ID, "Призрак", day(1), task.PriorityLow)
	ghost.Version = 1
	s.ErrorIs(s.Storage.UpdateTask(s.ctx(), ghost), repo.ErrNotFound)
}

func (s *StorageSuite) TestUpdateTaskKeepsOwner() {
	alice := s.newUser("alice")
	bob := s.newUser("bob")
	created := s.newTask(alice, "Моя", day(2), task.PriorityMedium)

	loaded, err := s.Storage.GetTaskByID(s.ctx(), created.ID)
	s.Require().NoError(err)
	loaded.OwnerID = bob.ID
	s.Require().NoError(s.Storage.UpdateTask(s.ctx(), loaded))

	got, err := s.Storage.GetTaskByID(s.ctx(), created.ID)
	s.Require().NoError(err)
	s.Equal(alice.ID, got.OwnerID)
}

func (s *StorageSuite) TestCompletionRoundTrip() {
	owner := s.newUser("alice")
	created := s.newTask(owner, "Сделать", day(2), task.PriorityMedium)

	loaded, err := s.Storage.GetTaskByID(s.ctx(), created.ID)
	s.Require().NoError(err)
	s.complete(loaded)

	got, err := s.Storage.GetTaskByID(s.ctx(), created.ID)
	s.Require().NoError(err)
	s.Equal(task.StatusCompleted, got.Status)
	s.Require().NotNil(got.CompletedAt)
	s.WithinDuration(time.Now(), *got.CompletedAt, time.Minute)

	got.MarkIncomplete()
	s.Require().NoError(got.Prepare(time.Now().UTC(), task.ValidateOptions{SkipDueDate: true}))
	s.Require().NoError(s.Storage.UpdateTask(s.ctx(), got))

	got, err = s.Storage.GetTaskByID(s.ctx(), created.ID)
	s.Require().NoError(err)
	s.Equal(task.StatusPending, got.Status)
	s.Nil(got.CompletedAt)
	s.Equal(3, got.Version)
}

func (s *StorageSuite) TestDeleteTask() {
	owner := s.newUser("alice")
	created := s.newTask(owner, "Удалить", day(1), task.PriorityLow)

	s.Require().NoError(s.Storage.DeleteTask(s.ctx(), created.ID))

	_, err := s.Storage.GetTaskByID(s.ctx(), created.ID)
	s.ErrorIs(err, repo.ErrNotFound)
	s.ErrorIs(s.Storage.DeleteTask(s.ctx(), created.ID), repo.ErrNotFound)
}

func (s *StorageSuite) TestListTasks() {
	alice := s.newUser("alice")
	bob := s.newUser("bob")

	high := s.newTask(alice, "Срочно", day(5), task.PriorityHigh)
	low := s.newTask(alice, "Потом", day(1), task.PriorityLow)
	medium := s.newTask(alice, "Обычно", day(3), task.PriorityMedium)
	s.newTask(bob, "Чужая", day(2), task.PriorityHigh)

	loaded, err := s.Storage.GetTaskByID(s.ctx(), medium.ID)
	s.Require().NoError(err)
	s.complete(loaded)

	completed := task.StatusCompleted
	pending := task.StatusPending
	highPriority := task.PriorityHigh
	from, to, exact := day(1), day(3), day(5)

	tests := []struct {
		name   string
		filter task.Filter
		want   []uuid.UUID
	}{
		{
			name: "порядок создания по умолчанию",
			want: []uuid.UUID{high.ID, low.ID, medium.ID},
		},
		{
			name:   "по статусу",
			filter: task.Filter{Status: &pending},
			want:   []uuid.UUID{high.ID, low.ID},
		},
		{
			name:   "завершённые",
			filter: task.Filter{Status: &completed},
			want:   []uuid.UUID{medium.ID},
		},
		{
			name:   "по приоритету",
			filter: task.Filter{Priority: &highPriority},
			want:   []uuid.UUID{high.ID},
		},
		{
			name:   "точная дата",
			filter: task.Filter{DueDate: &exact},
			want:   []uuid.UUID{high.ID},
		},
		{
			name:   "включительный диапазон дат",
			filter: task.Filter{DueDateGTE: &from, DueDateLTE: &to},
			want:   []uuid.UUID{low.ID, medium.ID},
		},
		{
			name:   "сортировка по сроку",
			filter: task.Filter{Ordering: []task.OrderTerm{{Field: task.OrderByDueDate}}},
			want:   []uuid.UUID{low.ID, medium.ID, high.ID},
		},
		{
			name:   "сортировка по приоритету по убыванию",
			filter: task.Filter{Ordering: []task.OrderTerm{{Field: task.OrderByPriority, Desc: true}}},
			want:   []uuid.UUID{high.ID, medium.ID, low.ID},
		},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			got, err := s.Storage.ListTasks(s.ctx(), alice.ID, tt.filter)
			s.Require().NoError(err)
			s.Equal(tt.want, ids(got))
			for _, t := range got {
				s.Equal(alice.ID, t.OwnerID)
			}
		})
	}
}

func (s *StorageSuite) TestListTasksEmpty() {
	owner := s.newUser("alice")
	got, err := s.Storage.ListTasks(s.ctx(), owner.ID, task.Filter{})
	s.Require().NoError(err)
	s.Empty(got)
}

func (s *StorageSuite) TestCreateAndLookupUser() {
	created := s.newUser("Alice")

	byID, err := s.Storage.GetUserByID(s.ctx(), created.ID)
	s.Require().NoError(err)
	s.Equal("Alice", byID.Username)
	s.Equal("Alice@example.com", byID.Email)
	s.Equal("hash-Alice", byID.PasswordHash)
	s.False(byID.IsStaff)

	byName, err := s.Storage.GetUserByUsername(s.ctx(), "alice")
	s.Require().NoError(err)
	s.Equal(created.ID, byName.ID)

	byEmail, err := s.Storage.GetUserByEmail(s.ctx(), "ALICE@EXAMPLE.COM")
	s.Require().NoError(err)
	s.Equal(created.ID, byEmail.ID)

	_, err = s.Storage.GetUserByUsername(s.ctx(), "nobody")
	s.ErrorIs(err, repo.ErrNotFound)
	_, err = s.Storage.GetUserByID(s.ctx(), uuid.New())
	s.ErrorIs(err, repo.ErrNotFound)
}

func (s *StorageSuite) TestCreateDuplicateUser() {
	s.newUser("alice")

	tests := []struct {
		name  string
		user  *user.User
		field string
	}{
		{
			name:  "имя в другом регистре",
			user:  &user.User{ID: uuid.New(), Username: "ALICE", Email: "other@example.com", PasswordHash: "x"},
			field: "username",
		},
		{
			name:  "занятый email",
			user:  &user.User{ID: uuid.New(), Username: "alice2", Email: "Alice@Example.com", PasswordHash: "x"},
			field: "email",
		},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			err := s.Storage.CreateUser(s.ctx(), tt.user)
			s.Require().ErrorIs(err, repo.ErrDuplicate)

			var dup *repo.DuplicateError
			s.Require().True(errors.As(err, &dup))
			s.Equal(tt.field, dup.Field)
		})
	}
}

func (s *StorageSuite) TestUpdateUser() {
	alice := s.newUser("alice")
	bob := s.newUser("bob")

	bob.Email = "bob@new.example.com"
	bob.IsStaff = true
	s.Require().NoError(s.Storage.UpdateUser(s.ctx(), bob))

	got, err := s.Storage.GetUserByID(s.ctx(), bob.ID)
	s.Require().NoError(err)
	s.Equal("bob@new.example.com", got.Email)
	s.True(got.IsStaff)

	got.Email = alice.Email
	err = s.Storage.UpdateUser(s.ctx(), got)
	var dup *repo.DuplicateError
	s.Require().True(errors.As(err, &dup))
	s.Equal("email", dup.Field)

	ghost := &user.User{ID: uuid.New(), Username: "ghost", Email: "ghost@example.com", PasswordHash: "x"}
	s.ErrorIs(s.Storage.UpdateUser(s.ctx(), ghost), repo.ErrNotFound)
}

func (s *StorageSuite) TestListUsersInCreationOrder() {
	first := s.newUser("first")
	time.Sleep(5 * time.Millisecond)
	second := s.newUser("second")

	got, err := s.Storage.ListUsers(s.ctx())
	s.Require().NoError(err)
	s.Require().Len(got, 2)
	s.Equal(first.ID, got[0].ID)
	s.Equal(second.ID, got[1].ID)
}

func (s *StorageSuite) TestDeleteUserCascadesTasks() {
	alice := s.newUser("alice")
	bob := s.newUser("bob")
	aliceTask := s.newTask(alice, "Её", day(1), task.PriorityLow)
	bobTask := s.newTask(bob, "Его", day(1), task.PriorityLow)

	s.Require().NoError(s.Storage.DeleteUser(s.ctx(), alice.ID))

	_, err := s.Storage.GetUserByID(s.ctx(), alice.ID)
	s.ErrorIs(err, repo.ErrNotFound)
	_, err = s.Storage.GetTaskByID(s.ctx(), aliceTask.ID)
	s.ErrorIs(err, repo.ErrNotFound)

	_, err = s.Storage.GetTaskByID(s.ctx(), bobTask.ID)
	s.NoError(err)

	s.ErrorIs(s.Storage.DeleteUser(s.ctx(), alice.ID), repo.ErrNotFound)
}
