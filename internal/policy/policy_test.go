package policy_test

import (
	"taskManager/internal/models/task"
	"taskManager/internal/models/user"
	"taskManager/internal/policy"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestCanAccessTask(t *testing.T) {
	owner := user.Actor{ID: uuid.New()}
	stranger := user.Actor{ID: uuid.New()}
	staff := user.Actor{ID: uuid.New(), IsStaff: true}
	tk := task.New(owner.ID, "Моя", time.Now().Add(time.Hour), task.PriorityLow)

	for _, action := range []policy.Action{policy.ActionRead, policy.ActionWrite, policy.ActionDelete} {
		assert.True(t, policy.CanAccessTask(owner, tk, action), action)
		assert.False(t, policy.CanAccessTask(stranger, tk, action), action)
		assert.False(t, policy.CanAccessTask(staff, tk, action), "staff не видит чужие задачи: %s", action)
		assert.False(t, policy.CanAccessTask(user.Actor{}, tk, action), action)
	}
	assert.False(t, policy.CanAccessTask(owner, nil, policy.ActionRead))
}

func TestCanAccessUser(t *testing.T) {
	self := &user.User{ID: uuid.New()}
	other := &user.User{ID: uuid.New()}
	staff := user.Actor{ID: uuid.New(), IsStaff: true}

	assert.True(t, policy.CanAccessUser(self.Actor(), self, policy.ActionWrite))
	assert.False(t, policy.CanAccessUser(self.Actor(), other, policy.ActionRead))
	assert.True(t, policy.CanAccessUser(staff, other, policy.ActionDelete))
	assert.False(t, policy.CanAccessUser(user.Actor{}, self, policy.ActionRead))
	assert.False(t, policy.CanAccessUser(staff, nil, policy.ActionRead))
}

func TestCanListUsers(t *testing.T) {
	assert.True(t, policy.CanListUsers(user.Actor{ID: uuid.New(), IsStaff: true}))
	assert.False(t, policy.CanListUsers(user.Actor{ID: uuid.New()}))
	assert.False(t, policy.CanListUsers(user.Actor{IsStaff: true}))
}
