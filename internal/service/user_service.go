package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"taskManager/internal/logger"
	"taskManager/internal/models/user"
	"taskManager/internal/policy"
	repo "taskManager/internal/repository"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const MinPasswordLength = 8

// PasswordHasher: хранилище учётных данных.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, hash string) error
}

type TokenManager interface {
	Issue(userID uuid.UUID) (string, time.Duration, error)
	Parse(token string) (uuid.UUID, error)
}

type UserService struct {
	repo             UserRepository
	hasher           PasswordHasher
	tokens           TokenManager
	openRegistration bool
}

func NewUserService(repo UserRepository, hasher PasswordHasher, tokens TokenManager, openRegistration bool) *UserService {
	return &UserService{
		repo:             repo,
		hasher:           hasher,
		tokens:           tokens,
		openRegistration: openRegistration,
	}
}

type RegisterInput struct {
	Username string
	Email    string
	Password string
}

// UserPatch: nil означает "поле не передано". Поля IsStaff нет.
type UserPatch struct {
	Username *string
	Email    *string
	Password *string
}

type Token struct {
	AccessToken string
	TokenType   string
	ExpiresIn   time.Duration
}

// Register создаёт пользователя. При выключенной открытой регистрации нужен staff.
func (s *UserService) Register(ctx context.Context, actor user.Actor, input RegisterInput) (*user.User, error) {
	if !s.openRegistration {
		if actor.IsZero() {
			return nil, NewUnauthorized("требуется аутентификация", nil)
		}
		if !policy.CanListUsers(actor) {
			return nil, NewForbidden("создавать пользователей может только администратор")
		}
	}
	return s.create(ctx, input, false)
}

// EnsureAdmin создаёт администратора, если пользователя с таким именем ещё нет.
func (s *UserService) EnsureAdmin(ctx context.Context, input RegisterInput) error {
	existing, err := s.repo.GetUserByUsername(ctx, input.Username)
	if err == nil {
		if !existing.IsStaff {
			logger.Warn("Service: Пользователь администратора существует без прав staff",
				zap.String("username", existing.Username))
		}
		return nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return fmt.Errorf("поиск администратора: %w", err)
	}
	if _, err := s.create(ctx, input, true); err != nil {
		return err
	}
	logger.Info("Service: Создан администратор", zap.String("username", input.Username))
	return nil
}

func (s *UserService) create(ctx context.Context, input RegisterInput, staff bool) (*user.User, error) {
	u := &user.User{
		ID:        uuid.New(),
		Username:  strings.TrimSpace(input.Username),
		Email:     strings.TrimSpace(input.Email),
		IsStaff:   staff,
		CreatedAt: time.Now().UTC(),
	}
	if err := checkPassword(input.Password); err != nil {
		return nil, err
	}
	if err := s.checkUnique(ctx, u); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, fmt.Errorf("хеширование пароля: %w", err)
	}
	u.PasswordHash = hash

	if err := s.repo.CreateUser(ctx, u); err != nil {
		if converted := fromValidation(err); converted != err {
			return nil, converted
		}
		return nil, fmt.Errorf("создание пользователя: %w", err)
	}
	logger.Info("Service: Пользователь зарегистрирован", zap.String("user_id", u.ID.String()))
	return u, nil
}

func checkPassword(password string) error {
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return NewValidationError("password", fmt.Sprintf("пароль короче %d символов", MinPasswordLength))
	}
	return nil
}

// checkUnique проверяет username и email среди других пользователей.
// Уникальные индексы хранилища остаются последней линией на случай гонки.
func (s *UserService) checkUnique(ctx context.Context, u *user.User) error {
	other, err := s.repo.GetUserByUsername(ctx, u.Username)
	switch {
	case err == nil && other.ID != u.ID:
		return NewValidationError("username", "пользователь с таким именем уже существует")
	case err != nil && !errors.Is(err, repo.ErrNotFound):
		return fmt.Errorf("проверка имени пользователя: %w", err)
	}

	other, err = s.repo.GetUserByEmail(ctx, u.Email)
	switch {
	case err == nil && other.ID != u.ID:
		return NewValidationError("email", "пользователь с таким email уже существует")
	case err != nil && !errors.Is(err, repo.ErrNotFound):
		return fmt.Errorf("проверка email: %w", err)
	}
	return nil
}

// Authenticate проверяет пару логин/пароль. Причина отказа наружу не раскрывается.
func (s *UserService) Authenticate(ctx context.Context, username, password string) (*user.User, error) {
	u, err := s.repo.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, NewUnauthorized("неверные учётные данные", nil)
		}
		return nil, fmt.Errorf("поиск пользователя: %w", err)
	}
	if err := s.hasher.Verify(password, u.PasswordHash); err != nil {
		return nil, NewUnauthorized("неверные учётные данные", err)
	}
	return u, nil
}

func (s *UserService) Login(ctx context.Context, username, password string) (*Token, error) {
	u, err := s.Authenticate(ctx, username, password)
	if err != nil {
		return nil, err
	}
	signed, ttl, err := s.tokens.Issue(u.ID)
	if err != nil {
		return nil, fmt.Errorf("выпуск токена: %w", err)
	}
	logger.Info("Service: Выдан токен", zap.String("user_id", u.ID.String()))
	return &Token{AccessToken: signed, TokenType: "Bearer", ExpiresIn: ttl}, nil
}

// ActorFromToken перечитывает пользователя: удалённый пользователь теряет доступ сразу.
func (s *UserService) ActorFromToken(ctx context.Context, token string) (user.Actor, error) {
	id, err := s.tokens.Parse(token)
	if err != nil {
		return user.Actor{}, NewUnauthorized("недействительный токен", err)
	}
	u, err := s.repo.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return user.Actor{}, NewUnauthorized("пользователь не найден", err)
		}
		return user.Actor{}, fmt.Errorf("поиск пользователя: %w", err)
	}
	return u.Actor(), nil
}

func (s *UserService) ActorFromBasic(ctx context.Context, username, password string) (user.Actor, error) {
	u, err := s.Authenticate(ctx, username, password)
	if err != nil {
		return user.Actor{}, err
	}
	return u.Actor(), nil
}

func (s *UserService) ListUsers(ctx context.Context, actor user.Actor) ([]*user.User, error) {
	if actor.IsZero() {
		return nil, NewUnauthorized("требуется аутентификация", nil)
	}
	if !policy.CanListUsers(actor) {
		return nil, NewForbidden("список пользователей доступен только администратору")
	}
	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("получение пользователей: %w", err)
	}
	return users, nil
}

func (s *UserService) GetUser(ctx context.Context, actor user.Actor, id uuid.UUID) (*user.User, error) {
	return s.load(ctx, actor, id, policy.ActionRead)
}

func (s *UserService) UpdateUser(ctx context.Context, actor user.Actor, id uuid.UUID, patch UserPatch) (*user.User, error) {
	u, err := s.load(ctx, actor, id, policy.ActionWrite)
	if err != nil {
		return nil, err
	}

	if patch.Username != nil {
		u.Username = strings.TrimSpace(*patch.Username)
	}
	if patch.Email != nil {
		u.Email = strings.TrimSpace(*patch.Email)
	}
	if err := s.checkUnique(ctx, u); err != nil {
		return nil, err
	}
	if patch.Password != nil {
		if err := checkPassword(*patch.Password); err != nil {
			return nil, err
		}
		hash, err := s.hasher.Hash(*patch.Password)
		if err != nil {
			return nil, fmt.Errorf("хеширование пароля: %w", err)
		}
		u.PasswordHash = hash
	}

	if err := s.repo.UpdateUser(ctx, u); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, NewNotFound(ResourceUser, id.String())
		}
		if converted := fromValidation(err); converted != err {
			return nil, converted
		}
		return nil, fmt.Errorf("обновление пользователя: %w", err)
	}
	return u, nil
}

// DeleteUser удаляет пользователя и все его задачи.
func (s *UserService) DeleteUser(ctx context.Context, actor user.Actor, id uuid.UUID) error {
	if _, err := s.load(ctx, actor, id, policy.ActionDelete); err != nil {
		return err
	}
	if err := s.repo.DeleteUser(ctx, id); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return NewNotFound(ResourceUser, id.String())
		}
		return fmt.Errorf("удаление пользователя: %w", err)
	}
	return nil
}

// load: отсутствующий пользователь даёт 404, чужой даёт 403.
func (s *UserService) load(ctx context.Context, actor user.Actor, id uuid.UUID, action policy.Action) (*user.User, error) {
	if actor.IsZero() {
		return nil, NewUnauthorized("требуется аутентификация", nil)
	}
	u, err := s.repo.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, NewNotFound(ResourceUser, id.String())
		}
		return nil, fmt.Errorf("получение пользователя: %w", err)
	}
	if !policy.CanAccessUser(actor, u, action) {
		logger.Info("Service: Доступ к чужому пользователю запрещён",
			zap.String("target_id", id.String()),
			zap.String("actor_id", actor.ID.String()))
		return nil, NewForbidden("нет доступа к этому пользователю")
	}
	return u, nil
}
