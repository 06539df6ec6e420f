package postgres

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
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const slowQuery = 100 * time.Millisecond

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

type PoolConfig struct {
	MaxConns        int32
	MinConns        int32
	MaxConnIdleTime time.Duration
}

type Storage struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, connString string, pc PoolConfig) (*Storage, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		logger.Error("Repository: Ошибка загрузки конфига", err)
		return nil, fmt.Errorf("загрузка конфига: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnIdleTime = time.Minute * 5
	if pc.MaxConns > 0 {
		config.MaxConns = pc.MaxConns
	}
	if pc.MinConns > 0 {
		config.MinConns = pc.MinConns
	}
	if pc.MaxConnIdleTime > 0 {
		config.MaxConnIdleTime = pc.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		logger.Error("Repository: Ошибка создания пула", err)
		return nil, fmt.Errorf("создание пула: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		logger.Error("Repository: Неудачная проверка ping", err)
		return nil, fmt.Errorf("проверка соединения ping: %w", err)
	}

	logger.Info("Repository: Успешное создание подключения к PostgreSQL")
	return &Storage{pool: pool}, nil
}

func (s *Storage) Close() {
	s.pool.Close()
	logger.Info("Repository: Закрытие всех соединений PostgreSQL")
}

func (s *Storage) HealthCheck(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		logger.Error("Repository: Неудачная проверка ping", err)
		return fmt.Errorf("проверка соединения ping: %w", err)
	}
	return nil
}

func warnIfSlow(op string, start time.Time) {
	if d := time.Since(start); d > slowQuery {
		logger.Warn("Repository: Медленный запрос", zap.String("operation", op), zap.Duration("ms", d))
	}
}

const taskColumns = `id, title, description, due_date, priority, status, owner_id, completed_at, created_at, updated_at, version`

func scanTask(row pgx.Row) (*task.Task, error) {
	t := &task.Task{}
	err := row.Scan(
		&t.ID,
		&t.Title,
		&t.Description,
		&t.DueDate,
		&t.Priority,
		&t.Status,
		&t.OwnerID,
		&t.CompletedAt,
		&t.CreatedAt,
		&t.UpdatedAt,
		&t.Version,
	)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (s *Storage) CreateTask(ctx context.Context, taskToCreate *task.Task) error {
	start := time.Now()
	defer warnIfSlow("create_task", start)

	query := `INSERT INTO tasks
				(id, title, description, due_date, priority, status, owner_id, completed_at, created_at, version)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 1)
				RETURNING created_at, version`

	if taskToCreate.CreatedAt.IsZero() {
		taskToCreate.CreatedAt = time.Now().UTC()
	}

	err := s.pool.QueryRow(ctx, query,
		taskToCreate.ID,
		taskToCreate.Title,
		taskToCreate.Description,
		taskToCreate.DueDate,
		taskToCreate.Priority,
		taskToCreate.Status,
		taskToCreate.OwnerID,
		taskToCreate.CompletedAt,
		taskToCreate.CreatedAt,
	).Scan(&taskToCreate.CreatedAt, &taskToCreate.Version)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
			return repo.ErrNotFound
		}
		logger.Error("Repository: Не удалось добавить задачу", err, zap.Duration("ms", time.Since(start)))
		return fmt.Errorf("добавление задачи: %w", err)
	}
	return nil
}

// UpdateTask не трогает owner_id: владелец неизменяем.
func (s *Storage) UpdateTask(ctx context.Context, taskToUpdate *task.Task) error {
	start := time.Now()
	defer warnIfSlow("update_task", start)

	query := `UPDATE tasks
			SET title = $1,
				description = $2,
				due_date = $3,
				priority = $4,
				status = $5,
				completed_at = $6,
				version = version + 1,
				updated_at = NOW()
			WHERE id = $7 AND version = $8
			RETURNING updated_at, version`

	err := s.pool.QueryRow(ctx, query,
		taskToUpdate.Title,
		taskToUpdate.Description,
		taskToUpdate.DueDate,
		taskToUpdate.Priority,
		taskToUpdate.Status,
		taskToUpdate.CompletedAt,
		taskToUpdate.ID,
		taskToUpdate.Version,
	).Scan(&taskToUpdate.UpdatedAt, &taskToUpdate.Version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return s.missingOrConflict(ctx, taskToUpdate)
		}
		logger.Error("Repository: Не удалось обновить задачу", err)
		return fmt.Errorf("обновление задачи: %w", err)
	}
	return nil
}

func (s *Storage) missingOrConflict(ctx context.Context, t *task.Task) error {
	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM tasks WHERE id = $1)`, t.ID).Scan(&exists); err != nil {
		return fmt.Errorf("проверка задачи: %w", err)
	}
	if !exists {
		return repo.ErrNotFound
	}
	logger.Warn("Конфликт версий при обновлении задачи",
		zap.String("task_id", t.ID.String()),
		zap.Int("expected_version", t.Version))
	return repo.ErrVersionConflict
}

func (s *Storage) GetTaskByID(ctx context.Context, id uuid.UUID) (*task.Task, error) {
	start := time.Now()
	defer warnIfSlow("get_task", start)

	t, err := scanTask(s.pool.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repo.ErrNotFound
		}
		logger.Error("Repository: Не удалось получить задачу", err, zap.Duration("ms", time.Since(start)))
		return nil, fmt.Errorf("получение задачи: %w", err)
	}
	return t, nil
}

func (s *Storage) DeleteTask(ctx context.Context, id uuid.UUID) error {
	start := time.Now()
	defer warnIfSlow("delete_task", start)

	ct, err := s.pool.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		logger.Error("Repository: Удаление задачи", err, zap.Duration("ms", time.Since(start)))
		return fmt.Errorf("удаление задачи: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// buildListQuery собирает выборку; условие по владельцу всегда первое.
func buildListQuery(ownerID uuid.UUID, f task.Filter) (string, []any) {
	args := []any{ownerID}
	conds := []string{"owner_id = $1"}
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if f.Status != nil {
		add("status = $%d", *f.Status)
	}
	if f.Priority != nil {
		add("priority = $%d", *f.Priority)
	}
	if f.DueDate != nil {
		add("due_date = $%d", *f.DueDate)
	}
	if f.DueDateGTE != nil {
		add("due_date >= $%d", *f.DueDateGTE)
	}
	if f.DueDateLTE != nil {
		add("due_date <= $%d", *f.DueDateLTE)
	}

	order := make([]string, 0, len(f.Ordering)+1)
	for _, term := range f.Ordering {
		dir := "ASC"
		if term.Desc {
			dir = "DESC"
		}
		switch term.Field {
		case task.OrderByDueDate:
			order = append(order, "due_date "+dir)
		case task.OrderByPriority:
			order = append(order, "CASE priority WHEN 'LOW' THEN 1 WHEN 'MEDIUM' THEN 2 WHEN 'HIGH' THEN 3 END "+dir)
		}
	}
	order = append(order, "seq ASC")

	query := `SELECT ` + taskColumns + ` FROM tasks WHERE ` + strings.Join(conds, " AND ") +
		` ORDER BY ` + strings.Join(order, ", ")
	return query, args
}

func (s *Storage) ListTasks(ctx context.Context, ownerID uuid.UUID, filter task.Filter) ([]*task.Task, error) {
	start := time.Now()
	defer warnIfSlow("list_tasks", start)

	query, args := buildListQuery(ownerID, filter)
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		logger.Error("Repository: Не удалось получить задачи", err, zap.Duration("ms", time.Since(start)))
		return nil, fmt.Errorf("получение задач: %w", err)
	}
	defer rows.Close()

	tasks := []*task.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			logger.Error("Repository: Ошибка сканирования задачи", err)
			return nil, fmt.Errorf("сканирование задачи: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		logger.Error("Repository: Ошибка итерации по строкам", err)
		return nil, fmt.Errorf("итерация по строкам: %w", err)
	}
	return tasks, nil
}

const userColumns = `id, username, email, password_hash, is_staff, created_at`

func scanUser(row pgx.Row) (*user.User, error) {
	u := &user.User{}
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.IsStaff, &u.CreatedAt); err != nil {
		return nil, err
	}
	return u, nil
}

// duplicateField переводит нарушение уникального индекса в DuplicateError.
func duplicateField(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgUniqueViolation {
		return nil
	}
	switch pgErr.ConstraintName {
	case "users_username_key":
		return &repo.DuplicateError{Field: "username"}
	case "users_email_key":
		return &repo.DuplicateError{Field: "email"}
	}
	return repo.ErrDuplicate
}

func (s *Storage) CreateUser(ctx context.Context, userToCreate *user.User) error {
	start := time.Now()
	defer warnIfSlow("create_user", start)

	if userToCreate.CreatedAt.IsZero() {
		userToCreate.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES ($1, $2, $3, $4, $5, $6)`,
		userToCreate.ID,
		userToCreate.Username,
		userToCreate.Email,
		userToCreate.PasswordHash,
		userToCreate.IsStaff,
		userToCreate.CreatedAt,
	)
	if err != nil {
		if dup := duplicateField(err); dup != nil {
			return dup
		}
		logger.Error("Repository: Не удалось создать пользователя", err)
		return fmt.Errorf("создание пользователя: %w", err)
	}
	return nil
}

func (s *Storage) UpdateUser(ctx context.Context, userToUpdate *user.User) error {
	start := time.Now()
	defer warnIfSlow("update_user", start)

	ct, err := s.pool.Exec(ctx,
		`UPDATE users SET username = $1, email = $2, password_hash = $3, is_staff = $4 WHERE id = $5`,
		userToUpdate.Username,
		userToUpdate.Email,
		userToUpdate.PasswordHash,
		userToUpdate.IsStaff,
		userToUpdate.ID,
	)
	if err != nil {
		if dup := duplicateField(err); dup != nil {
			return dup
		}
		logger.Error("Repository: Не удалось обновить пользователя", err)
		return fmt.Errorf("обновление пользователя: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (s *Storage) getUser(ctx context.Context, where string, arg any) (*user.User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE `+where, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repo.ErrNotFound
		}
		logger.Error("Repository: Не удалось получить пользователя", err)
		return nil, fmt.Errorf("получение пользователя: %w", err)
	}
	return u, nil
}

func (s *Storage) GetUserByID(ctx context.Context, id uuid.UUID) (*user.User, error) {
	return s.getUser(ctx, "id = $1", id)
}

func (s *Storage) GetUserByUsername(ctx context.Context, username string) (*user.User, error) {
	return s.getUser(ctx, "LOWER(username) = LOWER($1)", username)
}

func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*user.User, error) {
	return s.getUser(ctx, "LOWER(email) = LOWER($1)", email)
}

func (s *Storage) ListUsers(ctx context.Context) ([]*user.User, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at, id`)
	if err != nil {
		logger.Error("Repository: Не удалось получить пользователей", err)
		return nil, fmt.Errorf("получение пользователей: %w", err)
	}
	defer rows.Close()

	users := []*user.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("сканирование пользователя: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("итерация по строкам: %w", err)
	}
	return users, nil
}

// DeleteUser удаляет задачи и пользователя в одной транзакции,
// не полагаясь только на ON DELETE CASCADE.
func (s *Storage) DeleteUser(ctx context.Context, id uuid.UUID) error {
	start := time.Now()
	defer warnIfSlow("delete_user", start)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("начало транзакции: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tasksCt, err := tx.Exec(ctx, `DELETE FROM tasks WHERE owner_id = $1`, id)
	if err != nil {
		logger.Error("Repository: Не удалось удалить задачи пользователя", err)
		return fmt.Errorf("удаление задач пользователя: %w", err)
	}
	userCt, err := tx.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		logger.Error("Repository: Не удалось удалить пользователя", err)
		return fmt.Errorf("удаление пользователя: %w", err)
	}
	if userCt.RowsAffected() == 0 {
		return repo.ErrNotFound
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("фиксация транзакции: %w", err)
	}

	logger.Info("Repository: Пользователь удалён",
		zap.String("user_id", id.String()),
		zap.Int64("tasks_removed", tasksCt.RowsAffected()))
	return nil
}
