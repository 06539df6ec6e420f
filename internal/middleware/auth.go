package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"taskManager/internal/logger"
	"taskManager/internal/models/user"
	"taskManager/internal/service"

	"go.uber.org/zap"
)

const ActorKey contextKey = "actor"

// Authenticator превращает учётные данные запроса в актора.
type Authenticator interface {
	ActorFromToken(ctx context.Context, token string) (user.Actor, error)
	ActorFromBasic(ctx context.Context, username, password string) (user.Actor, error)
}

// Authenticate разбирает Authorization: Bearer или Basic. Без заголовка запрос
// идёт дальше анонимно; неверные учётные данные сразу дают 401.
func Authenticate(authn Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}

			var (
				actor user.Actor
				err   error
			)
			scheme, credentials, _ := strings.Cut(header, " ")
			switch {
			case strings.EqualFold(scheme, "Bearer"):
				actor, err = authn.ActorFromToken(r.Context(), strings.TrimSpace(credentials))
			case strings.EqualFold(scheme, "Basic"):
				username, password, ok := r.BasicAuth()
				if !ok {
					err = service.NewUnauthorized("некорректный заголовок Basic", nil)
					break
				}
				actor, err = authn.ActorFromBasic(r.Context(), username, password)
			default:
				err = service.NewUnauthorized("неподдерживаемая схема авторизации", nil)
			}

			if err != nil {
				var busErr *service.BusinessError
				if errors.As(err, &busErr) && busErr.Code == service.CodeUnauthorized {
					logger.Warn("Middleware: Отказ в аутентификации",
						zap.String("request_id", GetRequestID(r.Context())),
						zap.String("scheme", scheme),
						zap.String("reason", busErr.Message))
					unauthorized(w, r, busErr.Message)
					return
				}
				logger.Error("Middleware: Ошибка аутентификации", err,
					zap.String("request_id", GetRequestID(r.Context())))
				writeError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "Внутренняя ошибка сервера", nil)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
		})
	}
}

// RequireActor пропускает только аутентифицированные запросы.
func RequireActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetActor(r.Context()).IsZero() {
			unauthorized(w, r, "требуется аутентификация")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func GetActor(ctx context.Context) user.Actor {
	if actor, ok := ctx.Value(ActorKey).(user.Actor); ok {
		return actor
	}
	return user.Actor{}
}

// WithActor нужен обработчикам и тестам, которые собирают контекст вручную.
func WithActor(ctx context.Context, actor user.Actor) context.Context {
	return context.WithValue(ctx, ActorKey, actor)
}

func unauthorized(w http.ResponseWriter, r *http.Request, message string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="task-manager"`)
	writeError(w, r, http.StatusUnauthorized, service.CodeUnauthorized, message, nil)
}
