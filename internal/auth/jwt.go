package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken = errors.New("недействительный токен")
	ErrExpiredToken = errors.New("срок действия токена истёк")
)

const tokenTypeAccess = "access"

type TokenConfig struct {
	Secret string
	TTL    time.Duration
	Issuer string
}

type Claims struct {
	UserID    string `json:"user_id"`
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

type TokenManager struct {
	config TokenConfig
	now    func() time.Time
}

func NewTokenManager(config TokenConfig) *TokenManager {
	return &TokenManager{config: config, now: time.Now}
}

// Issue выпускает access-токен и возвращает его вместе со сроком жизни.
func (m *TokenManager) Issue(userID uuid.UUID) (string, time.Duration, error) {
	now := m.now()
	claims := Claims{
		UserID:    userID.String(),
		TokenType: tokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.config.Issuer,
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.config.TTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(m.config.Secret))
	if err != nil {
		return "", 0, err
	}
	return signed, m.config.TTL, nil
}

// Parse проверяет подпись, срок и тип токена и возвращает идентификатор пользователя.
func (m *TokenManager) Parse(tokenString string) (uuid.UUID, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(m.config.Secret), nil
	},
		jwt.WithIssuer(m.config.Issuer),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return uuid.Nil, ErrExpiredToken
		}
		return uuid.Nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.TokenType != tokenTypeAccess {
		return uuid.Nil, ErrInvalidToken
	}
	id, err := uuid.Parse(claims.UserID)
	if err != nil {
		return uuid.Nil, ErrInvalidToken
	}
	return id, nil
}
