package handlers

import (
	"net/http"
	"taskManager/internal/handlers/dto"
	"taskManager/internal/logger"
	"taskManager/internal/middleware"
	"taskManager/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type UserHandler struct {
	UserService UserService
}

func NewUserHandler(userService UserService) *UserHandler {
	return &UserHandler{UserService: userService}
}

// Register доступен анонимно; закрытую регистрацию проверяет сервис.
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var request dto.RegisterRequest
	if !decodeBody(w, r, &request) {
		return
	}

	created, err := h.UserService.Register(r.Context(), middleware.GetActor(r.Context()), service.RegisterInput{
		Username: request.Username,
		Email:    request.Email,
		Password: request.Password,
	})
	if err != nil {
		handleError(w, r, err, "register_user")
		return
	}

	logger.Info("HTTP_OUT: Пользователь зарегистрирован", zap.String("user_id", created.ID.String()))
	responseWithJSON(w, http.StatusCreated, dto.FromUser(created))
}

func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var request dto.LoginRequest
	if !decodeBody(w, r, &request) {
		return
	}

	token, err := h.UserService.Login(r.Context(), request.Username, request.Password)
	if err != nil {
		handleError(w, r, err, "login")
		return
	}
	responseWithJSON(w, http.StatusOK, dto.TokenResponse{
		AccessToken: token.AccessToken,
		TokenType:   token.TokenType,
		ExpiresIn:   int(token.ExpiresIn.Seconds()),
	})
}

func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetActor(r.Context())
	u, err := h.UserService.GetUser(r.Context(), actor, actor.ID)
	if err != nil {
		handleError(w, r, err, "me")
		return
	}
	responseWithJSON(w, http.StatusOK, dto.FromUser(u))
}

func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.UserService.ListUsers(r.Context(), middleware.GetActor(r.Context()))
	if err != nil {
		handleError(w, r, err, "list_users")
		return
	}
	responseWithJSON(w, http.StatusOK, dto.FromUserList(users))
}

func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, chi.URLParam(r, "id"), service.ResourceUser)
	if !ok {
		return
	}
	u, err := h.UserService.GetUser(r.Context(), middleware.GetActor(r.Context()), id)
	if err != nil {
		handleError(w, r, err, "get_user")
		return
	}
	responseWithJSON(w, http.StatusOK, dto.FromUser(u))
}

func (h *UserHandler) ReplaceUser(w http.ResponseWriter, r *http.Request) {
	var request dto.ReplaceUserRequest
	h.updateUser(w, r, &request, func() service.UserPatch {
		return service.UserPatch{
			Username: &request.Username,
			Email:    &request.Email,
			Password: request.Password,
		}
	})
}

func (h *UserHandler) PatchUser(w http.ResponseWriter, r *http.Request) {
	var request dto.UpdateUserRequest
	h.updateUser(w, r, &request, func() service.UserPatch {
		return service.UserPatch{
			Username: request.Username,
			Email:    request.Email,
			Password: request.Password,
		}
	})
}

// updateUser: patch вызывается только после успешного разбора тела в request.
func (h *UserHandler) updateUser(w http.ResponseWriter, r *http.Request, request any, patch func() service.UserPatch) {
	id, ok := parseID(w, r, chi.URLParam(r, "id"), service.ResourceUser)
	if !ok {
		return
	}
	if !decodeBody(w, r, request) {
		return
	}
	u, err := h.UserService.UpdateUser(r.Context(), middleware.GetActor(r.Context()), id, patch())
	if err != nil {
		handleError(w, r, err, "update_user")
		return
	}
	responseWithJSON(w, http.StatusOK, dto.FromUser(u))
}

func (h *UserHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, chi.URLParam(r, "id"), service.ResourceUser)
	if !ok {
		return
	}
	if err := h.UserService.DeleteUser(r.Context(), middleware.GetActor(r.Context()), id); err != nil {
		handleError(w, r, err, "delete_user")
		return
	}
	logger.Info("HTTP_OUT: Пользователь удалён", zap.String("user_id", id.String()))
	w.WriteHeader(http.StatusNoContent)
}
