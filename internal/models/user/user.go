package user

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID           uuid.UUID `json:"id" db:"id"`
	Username     string    `json:"username" db:"username"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	IsStaff      bool      `json:"is_staff" db:"is_staff"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// Actor: аутентифицированный субъект запроса. Флаг IsStaff задаётся явно,
// политика доступа не смотрит на остальные поля пользователя.
type Actor struct {
	ID      uuid.UUID
	IsStaff bool
}

func (u *User) Actor() Actor {
	return Actor{ID: u.ID, IsStaff: u.IsStaff}
}

func (a Actor) IsZero() bool {
	return a.ID == uuid.Nil
}

func (u *User) Clone() *User {
	c := *u
	return &c
}
