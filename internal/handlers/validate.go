package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"reflect"
	"strings"
	"taskManager/internal/logger"
	"taskManager/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// в ошибках используются имена полей из JSON
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func checkContentType(r *http.Request, target string) bool {
	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == target
}

// decodeBody читает JSON и проверяет теги validate. При ошибке ответ уже записан.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if !checkContentType(r, "application/json") {
		logger.Warn("HTTP: Неверный тип контента",
			zap.String("expected", "application/json"),
			zap.String("received", r.Header.Get("Content-Type")),
			zap.String("client_ip", r.RemoteAddr))
		responseWithError(w, http.StatusUnsupportedMediaType, service.CodeValidation,
			"Content-Type должен быть application/json", nil)
		return false
	}

	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst); err != nil {
		logger.Warn("HTTP: Ошибка чтения JSON",
			zap.Error(err),
			zap.String("client_ip", r.RemoteAddr))
		responseWithError(w, http.StatusBadRequest, service.CodeValidation,
			"неверное тело запроса", decodeDetails(err))
		return false
	}

	if err := validate.Struct(dst); err != nil {
		details := validationDetails(err)
		logger.Warn("HTTP: Ошибка валидации",
			zap.Any("fields", details),
			zap.String("client_ip", r.RemoteAddr))
		responseWithError(w, http.StatusBadRequest, service.CodeValidation,
			"ошибка валидации полей", details)
		return false
	}
	return true
}

func decodeDetails(err error) map[string]any {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return map[string]any{typeErr.Field: fmt.Sprintf("ожидается %s", typeErr.Type)}
	}
	return map[string]any{"body": err.Error()}
}

func validationDetails(err error) map[string]any {
	details := make(map[string]any)
	var vErrs validator.ValidationErrors
	if !errors.As(err, &vErrs) {
		details["body"] = err.Error()
		return details
	}
	for _, fe := range vErrs {
		details[fe.Field()] = describe(fe)
	}
	return details
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "обязательное поле"
	case "max":
		return fmt.Sprintf("не длиннее %s символов", fe.Param())
	case "min":
		return fmt.Sprintf("не короче %s символов", fe.Param())
	case "email":
		return "некорректный email"
	default:
		return fmt.Sprintf("не прошло проверку %q", fe.Tag())
	}
}

// parseID: некорректный идентификатор не может принадлежать существующей записи.
func parseID(w http.ResponseWriter, r *http.Request, raw string, resource service.Resource) (uuid.UUID, bool) {
	id, err := uuid.Parse(raw)
	if err != nil || id == uuid.Nil {
		logger.Warn("HTTP: Неверное значение id",
			zap.String("id", raw),
			zap.String("client_ip", r.RemoteAddr))
		handleError(w, r, service.NewNotFound(resource, raw), "parse_id")
		return uuid.Nil, false
	}
	return id, true
}
