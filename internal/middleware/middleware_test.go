package middleware_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"taskManager/internal/middleware"
	"taskManager/internal/models/user"
	"taskManager/internal/service"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockAuthenticator struct {
	mock.Mock
}

func (m *MockAuthenticator) ActorFromToken(ctx context.Context, token string) (user.Actor, error) {
	args := m.Called(ctx, token)
	return args.Get(0).(user.Actor), args.Error(1)
}

func (m *MockAuthenticator) ActorFromBasic(ctx context.Context, username, password string) (user.Actor, error) {
	args := m.Called(ctx, username, password)
	return args.Get(0).(user.Actor), args.Error(1)
}

func echoActor() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor := middleware.GetActor(r.Context())
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":       actor.ID.String(),
			"is_staff": actor.IsStaff,
		})
	})
}

func TestRequestID(t *testing.T) {
	var seen string
	handler := middleware.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = middleware.GetRequestID(r.Context())
	}))

	t.Run("generated", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.NotEmpty(t, seen)
		assert.Equal(t, seen, rec.Header().Get("X-Request-ID"))
	})

	t.Run("propagated", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Request-ID", "abc-123")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, "abc-123", seen)
		assert.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))
	})
}

func TestLogging_PassesStatusThrough(t *testing.T) {
	handler := middleware.Logging(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, "short and stout", rec.Body.String())
}

func TestRateLimit(t *testing.T) {
	handler := middleware.RateLimit(2)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func(remote string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = remote
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, send("10.0.0.1:1000").Code)
	second := send("10.0.0.1:1001")
	assert.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, "0", second.Header().Get("X-RateLimit-Remaining"))

	limited := send("10.0.0.1:1002")
	require.Equal(t, http.StatusTooManyRequests, limited.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(limited.Body.Bytes(), &body))
	assert.Equal(t, "RATE_LIMIT_EXCEEDED", body["error"])
	assert.Contains(t, body["details"], "retry_after")

	// другой клиент считается отдельно
	assert.Equal(t, http.StatusOK, send("10.0.0.2:1000").Code)
}

func TestRateLimit_Disabled(t *testing.T) {
	handler := middleware.RateLimit(0)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestAuthenticate(t *testing.T) {
	actor := user.Actor{ID: uuid.New(), IsStaff: true}

	tests := []struct {
		name       string
		header     func(*http.Request)
		setupMock  func(*MockAuthenticator)
		wantStatus int
		wantActor  bool
	}{
		{
			name:       "anonymous passes through",
			header:     func(r *http.Request) {},
			setupMock:  func(m *MockAuthenticator) {},
			wantStatus: http.StatusOK,
		},
		{
			name:   "valid bearer",
			header: func(r *http.Request) { r.Header.Set("Authorization", "Bearer good") },
			setupMock: func(m *MockAuthenticator) {
				m.On("ActorFromToken", mock.Anything, "good").Return(actor, nil)
			},
			wantStatus: http.StatusOK,
			wantActor:  true,
		},
		{
			name:   "invalid bearer",
			header: func(r *http.Request) { r.Header.Set("Authorization", "Bearer bad") },
			setupMock: func(m *MockAuthenticator) {
				m.On("ActorFromToken", mock.Anything, "bad").
					Return(user.Actor{}, service.NewUnauthorized("недействительный токен", nil))
			},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:   "valid basic",
			header: func(r *http.Request) { r.SetBasicAuth("alice", "password123") },
			setupMock: func(m *MockAuthenticator) {
				m.On("ActorFromBasic", mock.Anything, "alice", "password123").Return(actor, nil)
			},
			wantStatus: http.StatusOK,
			wantActor:  true,
		},
		{
			name:       "unknown scheme",
			header:     func(r *http.Request) { r.Header.Set("Authorization", "Digest whatever") },
			setupMock:  func(m *MockAuthenticator) {},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:   "storage failure",
			header: func(r *http.Request) { r.Header.Set("Authorization", "Bearer good") },
			setupMock: func(m *MockAuthenticator) {
				m.On("ActorFromToken", mock.Anything, "good").Return(user.Actor{}, errors.New("db down"))
			},
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			authn := new(MockAuthenticator)
			tt.setupMock(authn)

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			tt.header(req)
			rec := httptest.NewRecorder()
			middleware.Authenticate(authn)(echoActor()).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantActor {
				var body map[string]any
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
				assert.Equal(t, actor.ID.String(), body["id"])
				assert.Equal(t, true, body["is_staff"])
			}
			if tt.wantStatus == http.StatusUnauthorized {
				assert.NotEmpty(t, rec.Header().Get("WWW-Authenticate"))
			}
			authn.AssertExpectations(t)
		})
	}
}

func TestRequireActor(t *testing.T) {
	handler := middleware.RequireActor(echoActor())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(middleware.WithActor(req.Context(), user.Actor{ID: uuid.New()}))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
