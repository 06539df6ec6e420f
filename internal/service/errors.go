package service

import (
	"errors"
	"fmt"
	"taskManager/internal/models/task"
	repo "taskManager/internal/repository"
)

const (
	CodeValidation      = "VALIDATION_ERROR"
	CodeLifecycle       = "LIFECYCLE_ERROR"
	CodeNotFound        = "NOT_FOUND"
	CodeForbidden       = "FORBIDDEN"
	CodeUnauthorized    = "UNAUTHORIZED"
	CodeVersionConflict = "VERSION_CONFLICT"
)

type BusinessError struct {
	Code    string
	Message string
	Details map[string]any
	Err     error
}

type Detail struct {
	Key     string
	Payload any
}

func (b *BusinessError) Error() string {
	if b.Err != nil {
		return fmt.Sprintf("[%s] %s: %s", b.Code, b.Message, b.Err.Error())
	}
	return fmt.Sprintf("[%s] %s", b.Code, b.Message)
}

func (b *BusinessError) Unwrap() error {
	return b.Err
}

func ToDetail(key string, payload any) Detail {
	return Detail{
		Key:     key,
		Payload: payload,
	}
}

func NewBusinessError(code string, message string, details ...Detail) *BusinessError {
	busErr := &BusinessError{
		Code:    code,
		Message: message,
		Details: make(map[string]any),
	}
	for _, detail := range details {
		busErr.Details[detail.Key] = detail.Payload
	}
	return busErr
}

type Resource string

const (
	ResourceTask Resource = "задача"
	ResourceUser Resource = "пользователь"
)

// NewNotFound одинаков для отсутствующей и чужой задачи: существование не раскрывается.
func NewNotFound(resource Resource, id string) *BusinessError {
	return NewBusinessError(CodeNotFound,
		fmt.Sprintf("%s %s не найден(а)", resource, id),
		ToDetail("resource", string(resource)),
		ToDetail("id", id))
}

// NewValidationError: в Details соответствие "поле -> сообщение".
func NewValidationError(field, reason string) *BusinessError {
	return NewBusinessError(CodeValidation,
		fmt.Sprintf("Неверное значение поля '%s': %s", field, reason),
		ToDetail(field, reason))
}

func NewForbidden(message string) *BusinessError {
	return NewBusinessError(CodeForbidden, message)
}

func NewUnauthorized(message string, err error) *BusinessError {
	busErr := NewBusinessError(CodeUnauthorized, message)
	busErr.Err = err
	return busErr
}

func NewLifecycleError(err error) *BusinessError {
	busErr := NewBusinessError(CodeLifecycle, err.Error())
	busErr.Err = err
	return busErr
}

func NewVersionConflict(id string) *BusinessError {
	busErr := NewBusinessError(CodeVersionConflict,
		fmt.Sprintf("задача %s была изменена другим запросом", id),
		ToDetail("id", id))
	busErr.Err = repo.ErrVersionConflict
	return busErr
}

// fromValidation переводит ошибки модели в BusinessError; прочие ошибки возвращаются как есть.
func fromValidation(err error) error {
	var vErr *task.ValidationError
	if errors.As(err, &vErr) {
		be := NewValidationError(vErr.Field, vErr.Reason)
		be.Err = err
		return be
	}
	var dup *repo.DuplicateError
	if errors.As(err, &dup) {
		be := NewValidationError(dup.Field, fmt.Sprintf("значение %s уже занято", dup.Field))
		be.Err = err
		return be
	}
	return err
}
