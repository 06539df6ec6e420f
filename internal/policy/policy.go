// Package policy решает, может ли актор работать с задачей или пользователем.
package policy

import (
	"taskManager/internal/models/task"
	"taskManager/internal/models/user"
)

type Action string

const (
	ActionRead   Action = "read"
	ActionWrite  Action = "write"
	ActionDelete Action = "delete"
)

// CanAccessTask: только владелец, без исключений для staff.
func CanAccessTask(actor user.Actor, t *task.Task, _ Action) bool {
	if actor.IsZero() || t == nil {
		return false
	}
	return t.OwnerID == actor.ID
}

// CanAccessUser: сам пользователь или staff.
func CanAccessUser(actor user.Actor, target *user.User, _ Action) bool {
	if actor.IsZero() || target == nil {
		return false
	}
	return actor.IsStaff || target.ID == actor.ID
}

// CanListUsers относится и к созданию пользователей, когда открытая регистрация выключена.
func CanListUsers(actor user.Actor) bool {
	return !actor.IsZero() && actor.IsStaff
}
