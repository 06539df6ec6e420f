// Package sqlite реализует встраиваемый бэкенд на gorm поверх sqlite для
// локального запуска без PostgreSQL.
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"taskManager/internal/logger"
	"taskManager/internal/models/task"
	"taskManager/internal/models/user"
	repo "taskManager/internal/repository"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type userRow struct {
	ID           string    `gorm:"primaryKey;type:text"`
	Username     string    `gorm:"not null;uniqueIndex:idx_users_username"`
	Email        string    `gorm:"not null;uniqueIndex:idx_users_email"`
	PasswordHash string    `gorm:"not null"`
	IsStaff      bool      `gorm:"not null;default:false"`
	CreatedAt    time.Time `gorm:"not null"`
}

func (userRow) TableName() string { return "users" }

type taskRow struct {
	ID          string     `gorm:"primaryKey;type:text"`
	Title       string     `gorm:"size:255;not null"`
	Description string     `gorm:"not null;default:''"`
	DueDate     time.Time  `gorm:"not null;index:idx_tasks_owner_due,priority:2"`
	Priority    string     `gorm:"size:15;not null"`
	Status      string     `gorm:"size:15;not null;default:'PENDING'"`
	OwnerID     string     `gorm:"type:text;not null;index:idx_tasks_owner_due,priority:1"`
	Owner       *userRow   `gorm:"foreignKey:OwnerID;constraint:OnDelete:CASCADE"`
	CompletedAt *time.Time
	CreatedAt   time.Time `gorm:"not null"`
	UpdatedAt   *time.Time
	Version     int `gorm:"not null;default:1"`
}

func (taskRow) TableName() string { return "tasks" }

func toTaskRow(t *task.Task) *taskRow {
	row := &taskRow{
		ID:          t.ID.String(),
		Title:       t.Title,
		Description: t.Description,
		DueDate:     t.DueDate.UTC(),
		Priority:    string(t.Priority),
		Status:      string(t.Status),
		OwnerID:     t.OwnerID.String(),
		CreatedAt:   t.CreatedAt.UTC(),
		Version:     t.Version,
	}
	if t.CompletedAt != nil {
		at := t.CompletedAt.UTC()
		row.CompletedAt = &at
	}
	if t.UpdatedAt != nil {
		at := t.UpdatedAt.UTC()
		row.UpdatedAt = &at
	}
	return row
}

func (r *taskRow) toTask() *task.Task {
	t := task.New(uuid.MustParse(r.OwnerID), r.Title, r.DueDate.UTC(), task.Priority(r.Priority),
		task.WithID(uuid.MustParse(r.ID)),
		task.WithDescription(r.Description),
		task.WithStatus(task.Status(r.Status)),
		task.WithCreatedAt(r.CreatedAt.UTC()),
	)
	t.CompletedAt = r.CompletedAt
	t.UpdatedAt = r.UpdatedAt
	t.Version = r.Version
	return t
}

func toUserRow(u *user.User) *userRow {
	return &userRow{
		ID:           u.ID.String(),
		Username:     u.Username,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		IsStaff:      u.IsStaff,
		CreatedAt:    u.CreatedAt.UTC(),
	}
}

func (r *userRow) toUser() *user.User {
	return &user.User{
		ID:           uuid.MustParse(r.ID),
		Username:     r.Username,
		Email:        r.Email,
		PasswordHash: r.PasswordHash,
		IsStaff:      r.IsStaff,
		CreatedAt:    r.CreatedAt.UTC(),
	}
}

type Storage struct {
	db *gorm.DB
}

// New открывает файл базы (":memory:" для временной) и создаёт схему.
func New(path string) (*Storage, error) {
	if path == "" {
		return nil, errors.New("не задан путь к файлу sqlite")
	}
	dsn := path
	if !strings.Contains(dsn, "?") {
		dsn += "?_foreign_keys=on&_busy_timeout=5000"
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		logger.Error("Repository: Ошибка открытия sqlite", err)
		return nil, fmt.Errorf("открытие sqlite: %w", err)
	}

	// одно соединение: у ":memory:" база своя у каждого соединения
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("получение соединения: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&userRow{}, &taskRow{}); err != nil {
		logger.Error("Repository: Ошибка миграции sqlite", err)
		return nil, fmt.Errorf("миграция sqlite: %w", err)
	}

	logger.Info("Repository: Хранилище sqlite готово", zap.String("path", path))
	return &Storage{db: db}, nil
}

func (s *Storage) Close() {
	if sqlDB, err := s.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	logger.Info("Repository: Хранилище sqlite закрыто")
}

func (s *Storage) HealthCheck(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		logger.Error("Repository: Неудачная проверка ping", err)
		return fmt.Errorf("проверка соединения ping: %w", err)
	}
	return nil
}

func (s *Storage) CreateTask(ctx context.Context, taskToCreate *task.Task) error {
	if taskToCreate.CreatedAt.IsZero() {
		taskToCreate.CreatedAt = time.Now().UTC()
	}
	taskToCreate.Version = 1

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var owners int64
		if err := tx.Model(&userRow{}).Where("id = ?", taskToCreate.OwnerID.String()).Count(&owners).Error; err != nil {
			return fmt.Errorf("проверка владельца: %w", err)
		}
		if owners == 0 {
			return repo.ErrNotFound
		}
		if err := tx.Create(toTaskRow(taskToCreate)).Error; err != nil {
			logger.Error("Repository: Не удалось добавить задачу", err)
			return fmt.Errorf("добавление задачи: %w", err)
		}
		return nil
	})
}

func (s *Storage) UpdateTask(ctx context.Context, taskToUpdate *task.Task) error {
	now := time.Now().UTC()
	row := toTaskRow(taskToUpdate)

	res := s.db.WithContext(ctx).Model(&taskRow{}).
		Where("id = ? AND version = ?", row.ID, taskToUpdate.Version).
		Updates(map[string]any{
			"title":        row.Title,
			"description":  row.Description,
			"due_date":     row.DueDate,
			"priority":     row.Priority,
			"status":       row.Status,
			"completed_at": row.CompletedAt,
			"updated_at":   now,
			"version":      gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		logger.Error("Repository: Не удалось обновить задачу", res.Error)
		return fmt.Errorf("обновление задачи: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		var exists int64
		if err := s.db.WithContext(ctx).Model(&taskRow{}).Where("id = ?", row.ID).Count(&exists).Error; err != nil {
			return fmt.Errorf("проверка задачи: %w", err)
		}
		if exists == 0 {
			return repo.ErrNotFound
		}
		logger.Warn("Конфликт версий при обновлении задачи",
			zap.String("task_id", row.ID),
			zap.Int("expected_version", taskToUpdate.Version))
		return repo.ErrVersionConflict
	}

	taskToUpdate.UpdatedAt = &now
	taskToUpdate.Version++
	return nil
}

func (s *Storage) GetTaskByID(ctx context.Context, id uuid.UUID) (*task.Task, error) {
	var row taskRow
	err := s.db.WithContext(ctx).Where("id = ?", id.String()).Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repo.ErrNotFound
		}
		logger.Error("Repository: Не удалось получить задачу", err)
		return nil, fmt.Errorf("получение задачи: %w", err)
	}
	return row.toTask(), nil
}

func (s *Storage) DeleteTask(ctx context.Context, id uuid.UUID) error {
	res := s.db.WithContext(ctx).Where("id = ?", id.String()).Delete(&taskRow{})
	if res.Error != nil {
		logger.Error("Repository: Удаление задачи", res.Error)
		return fmt.Errorf("удаление задачи: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (s *Storage) ListTasks(ctx context.Context, ownerID uuid.UUID, f task.Filter) ([]*task.Task, error) {
	q := s.db.WithContext(ctx).Model(&taskRow{}).Where("owner_id = ?", ownerID.String())
	if f.Status != nil {
		q = q.Where("status = ?", string(*f.Status))
	}
	if f.Priority != nil {
		q = q.Where("priority = ?", string(*f.Priority))
	}
	if f.DueDate != nil {
		q = q.Where("due_date = ?", f.DueDate.UTC())
	}
	if f.DueDateGTE != nil {
		q = q.Where("due_date >= ?", f.DueDateGTE.UTC())
	}
	if f.DueDateLTE != nil {
		q = q.Where("due_date <= ?", f.DueDateLTE.UTC())
	}
	for _, term := range f.Ordering {
		dir := " ASC"
		if term.Desc {
			dir = " DESC"
		}
		switch term.Field {
		case task.OrderByDueDate:
			q = q.Order("due_date" + dir)
		case task.OrderByPriority:
			q = q.Order("CASE priority WHEN 'LOW' THEN 1 WHEN 'MEDIUM' THEN 2 WHEN 'HIGH' THEN 3 END" + dir)
		}
	}
	q = q.Order("rowid ASC")

	var rows []taskRow
	if err := q.Find(&rows).Error; err != nil {
		logger.Error("Repository: Не удалось получить задачи", err)
		return nil, fmt.Errorf("получение задач: %w", err)
	}
	tasks := make([]*task.Task, len(rows))
	for i := range rows {
		tasks[i] = rows[i].toTask()
	}
	return tasks, nil
}

// checkUnique сравнивает без учёта регистра; уникальные индексы страхуют гонку.
func checkUnique(tx *gorm.DB, u *user.User) error {
	var n int64
	if err := tx.Model(&userRow{}).Where("LOWER(username) = LOWER(?) AND id <> ?", u.Username, u.ID.String()).Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return &repo.DuplicateError{Field: "username"}
	}
	if err := tx.Model(&userRow{}).Where("LOWER(email) = LOWER(?) AND id <> ?", u.Email, u.ID.String()).Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return &repo.DuplicateError{Field: "email"}
	}
	return nil
}

func uniqueViolation(err error) error {
	msg := err.Error()
	if !strings.Contains(msg, "UNIQUE constraint failed") {
		return nil
	}
	switch {
	case strings.Contains(msg, "users.username"):
		return &repo.DuplicateError{Field: "username"}
	case strings.Contains(msg, "users.email"):
		return &repo.DuplicateError{Field: "email"}
	}
	return repo.ErrDuplicate
}

func (s *Storage) CreateUser(ctx context.Context, userToCreate *user.User) error {
	if userToCreate.CreatedAt.IsZero() {
		userToCreate.CreatedAt = time.Now().UTC()
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := checkUnique(tx, userToCreate); err != nil {
			return err
		}
		if err := tx.Create(toUserRow(userToCreate)).Error; err != nil {
			if dup := uniqueViolation(err); dup != nil {
				return dup
			}
			logger.Error("Repository: Не удалось создать пользователя", err)
			return fmt.Errorf("создание пользователя: %w", err)
		}
		return nil
	})
}

func (s *Storage) UpdateUser(ctx context.Context, userToUpdate *user.User) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := checkUnique(tx, userToUpdate); err != nil {
			return err
		}
		row := toUserRow(userToUpdate)
		res := tx.Model(&userRow{}).Where("id = ?", row.ID).Updates(map[string]any{
			"username":      row.Username,
			"email":         row.Email,
			"password_hash": row.PasswordHash,
			"is_staff":      row.IsStaff,
		})
		if res.Error != nil {
			if dup := uniqueViolation(res.Error); dup != nil {
				return dup
			}
			return fmt.Errorf("обновление пользователя: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return repo.ErrNotFound
		}
		return nil
	})
}

func (s *Storage) getUser(ctx context.Context, where string, arg any) (*user.User, error) {
	var row userRow
	if err := s.db.WithContext(ctx).Where(where, arg).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repo.ErrNotFound
		}
		return nil, fmt.Errorf("получение пользователя: %w", err)
	}
	return row.toUser(), nil
}

func (s *Storage) GetUserByID(ctx context.Context, id uuid.UUID) (*user.User, error) {
	return s.getUser(ctx, "id = ?", id.String())
}

func (s *Storage) GetUserByUsername(ctx context.Context, username string) (*user.User, error) {
	return s.getUser(ctx, "LOWER(username) = LOWER(?)", username)
}

func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*user.User, error) {
	return s.getUser(ctx, "LOWER(email) = LOWER(?)", email)
}

func (s *Storage) ListUsers(ctx context.Context) ([]*user.User, error) {
	var rows []userRow
	if err := s.db.WithContext(ctx).Order("created_at ASC, rowid ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("получение пользователей: %w", err)
	}
	users := make([]*user.User, len(rows))
	for i := range rows {
		users[i] = rows[i].toUser()
	}
	return users, nil
}

func (s *Storage) DeleteUser(ctx context.Context, id uuid.UUID) error {
	var removed int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("owner_id = ?", id.String()).Delete(&taskRow{})
		if res.Error != nil {
			return fmt.Errorf("удаление задач пользователя: %w", res.Error)
		}
		removed = res.RowsAffected

		res = tx.Where("id = ?", id.String()).Delete(&userRow{})
		if res.Error != nil {
			return fmt.Errorf("удаление пользователя: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return repo.ErrNotFound
		}
		return nil
	})
	if err != nil {
		return err
	}
	logger.Info("Repository: Пользователь удалён",
		zap.String("user_id", id.String()),
		zap.Int64("tasks_removed", removed))
	return nil
}
