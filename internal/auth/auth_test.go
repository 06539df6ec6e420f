package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestPasswordHasher(t *testing.T) {
	h := NewPasswordHasher(bcrypt.MinCost)

	hash, err := h.Hash("correct horse")
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse", hash)
	assert.True(t, strings.HasPrefix(hash, "$2"))

	assert.NoError(t, h.Verify("correct horse", hash))
	assert.ErrorIs(t, h.Verify("wrong horse", hash), ErrPasswordMismatch)
	assert.ErrorIs(t, h.Verify("correct horse", "not-a-hash"), ErrPasswordMismatch)
}

func TestNewPasswordHasher_CostOutOfRange(t *testing.T) {
	assert.Equal(t, bcrypt.DefaultCost, NewPasswordHasher(0).cost)
	assert.Equal(t, bcrypt.DefaultCost, NewPasswordHasher(bcrypt.MaxCost+1).cost)
	assert.Equal(t, 12, NewPasswordHasher(12).cost)
}

func testTokenManager() *TokenManager {
	return NewTokenManager(TokenConfig{Secret: "secret", TTL: time.Hour, Issuer: "task-manager"})
}

func TestTokenManager_IssueAndParse(t *testing.T) {
	m := testTokenManager()
	id := uuid.New()

	token, ttl, err := m.Issue(id)
	require.NoError(t, err)
	assert.Equal(t, time.Hour, ttl)

	parsed, err := m.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, id, parsed)
}

func TestTokenManager_Expired(t *testing.T) {
	m := testTokenManager()
	m.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	token, _, err := m.Issue(uuid.New())
	require.NoError(t, err)

	m.now = time.Now
	_, err = m.Parse(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestTokenManager_Rejects(t *testing.T) {
	id := uuid.New()

	foreignSecret, _, err := NewTokenManager(TokenConfig{Secret: "other", TTL: time.Hour, Issuer: "task-manager"}).Issue(id)
	require.NoError(t, err)

	foreignIssuer, _, err := NewTokenManager(TokenConfig{Secret: "secret", TTL: time.Hour, Issuer: "someone-else"}).Issue(id)
	require.NoError(t, err)

	refresh := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID:    id.String(),
		TokenType: "refresh",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "task-manager",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	wrongType, err := refresh.SignedString([]byte("secret"))
	require.NoError(t, err)

	badID := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID:    "not-a-uuid",
		TokenType: tokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "task-manager",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	wrongID, err := badID.SignedString([]byte("secret"))
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"мусор", "not.a.token"},
		{"пустая строка", ""},
		{"чужой секрет", foreignSecret},
		{"чужой издатель", foreignIssuer},
		{"не access-токен", wrongType},
		{"неверный идентификатор", wrongID},
	}

	m := testTokenManager()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := m.Parse(tt.token)
			assert.ErrorIs(t, err, ErrInvalidToken)
			assert.Equal(t, uuid.Nil, got)
		})
	}
}
