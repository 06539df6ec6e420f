package repository

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("запись не найдена")
	ErrVersionConflict = errors.New("конфликт версий")
	ErrDuplicate       = errors.New("нарушение уникальности")
)

// DuplicateError возвращается при нарушении уникальности username или email.
type DuplicateError struct {
	Field string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, ErrDuplicate.Error())
}

func (e *DuplicateError) Unwrap() error {
	return ErrDuplicate
}
