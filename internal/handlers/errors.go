package handlers

import (
	"errors"
	"net/http"
	"taskManager/internal/logger"
	"taskManager/internal/middleware"
	"taskManager/internal/service"

	"go.uber.org/zap"
)

const codeInternal = "INTERNAL_ERROR"

// handleError отвечает клиенту по ошибке сервиса. Неизвестные ошибки наружу не раскрываются.
func handleError(w http.ResponseWriter, r *http.Request, err error, operation string) {
	var businessErr *service.BusinessError
	if errors.As(err, &businessErr) {
		statusCode := mapBusinessErrorToHTTP(businessErr.Code)

		logger.Warn("HTTP: Бизнес-ошибка",
			zap.String("request_id", middleware.GetRequestID(r.Context())),
			zap.String("operation", operation),
			zap.String("error_code", businessErr.Code),
			zap.Int("http_status", statusCode))

		responseWithError(w, statusCode, businessErr.Code, businessErr.Message, businessErr.Details)
		return
	}

	logger.Error("HTTP: Ошибка Service", err,
		zap.String("request_id", middleware.GetRequestID(r.Context())),
		zap.String("operation", operation))
	responseWithError(w, http.StatusInternalServerError, codeInternal, "Внутренняя ошибка сервера", nil)
}

func mapBusinessErrorToHTTP(code string) int {
	switch code {
	case service.CodeNotFound:
		return http.StatusNotFound
	case service.CodeValidation, service.CodeLifecycle:
		return http.StatusBadRequest
	case service.CodeForbidden:
		return http.StatusForbidden
	case service.CodeUnauthorized:
		return http.StatusUnauthorized
	case service.CodeVersionConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
