package middleware

import (
	"context"
	"encoding/json"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"taskManager/internal/logger"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type contextKey string

const RequestIdKey contextKey = "request_id"

func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestId := r.Header.Get("X-Request-ID")
		if requestId == "" {
			requestId = uuid.New().String()
		}

		w.Header().Set("X-Request-ID", requestId)

		ctx := context.WithValue(r.Context(), RequestIdKey, requestId)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIdKey).(string); ok {
		return id
	}
	return ""
}

type loggingWriter struct {
	http.ResponseWriter
	status      int
	size        int
	wroteHeader bool
}

func (lw *loggingWriter) WriteHeader(code int) {
	if !lw.wroteHeader {
		lw.status = code
		lw.wroteHeader = true
		lw.ResponseWriter.WriteHeader(code)
	}
}

func (lw *loggingWriter) Write(b []byte) (int, error) {
	if !lw.wroteHeader {
		lw.WriteHeader(http.StatusOK)
	}
	n, err := lw.ResponseWriter.Write(b)
	lw.size += n
	return n, err
}

// Logging пишет HTTP_IN/HTTP_OUT. Заголовок Authorization не логируется.
func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestId := GetRequestID(r.Context())

		logger.HttpRequestInfo(r, "HTTP_IN: Начало запроса", zap.String("request_id", requestId))

		lw := &loggingWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(lw, r)

		logLevel := zap.InfoLevel
		if lw.status >= 400 && lw.status < 500 {
			logLevel = zap.WarnLevel
		} else if lw.status >= 500 {
			logLevel = zap.ErrorLevel
		}
		logger.Log(
			logLevel,
			"HTTP_OUT: Завершение запроса",
			zap.String("request_id", requestId),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", lw.status),
			zap.Int("bytes_written", lw.size),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

type window struct {
	count   int
	resetAt time.Time
}

// fixedWindow считает запросы клиента в окне фиксированной длины.
// Истёкшие окна вычищаются не чаще одного раза за окно.
type fixedWindow struct {
	limit     int
	length    time.Duration
	mtx       sync.Mutex
	clients   map[string]*window
	nextSweep time.Time
}

func newFixedWindow(limit int, length time.Duration) *fixedWindow {
	return &fixedWindow{
		limit:   limit,
		length:  length,
		clients: make(map[string]*window),
	}
}

// take учитывает запрос и возвращает остаток и момент сброса окна.
// ok == false, если лимит уже исчерпан.
func (fw *fixedWindow) take(key string, now time.Time) (remaining int, resetAt time.Time, ok bool) {
	fw.mtx.Lock()
	defer fw.mtx.Unlock()

	if now.After(fw.nextSweep) {
		for k, cw := range fw.clients {
			if now.After(cw.resetAt) {
				delete(fw.clients, k)
			}
		}
		fw.nextSweep = now.Add(fw.length)
	}

	cw, exists := fw.clients[key]
	if !exists || now.After(cw.resetAt) {
		cw = &window{resetAt: now.Add(fw.length)}
		fw.clients[key] = cw
	}
	if cw.count >= fw.limit {
		return 0, cw.resetAt, false
	}
	cw.count++
	return fw.limit - cw.count, cw.resetAt, true
}

// retryAfterSeconds округляет вверх: клиент не должен повторять запрос до сброса окна.
func retryAfterSeconds(d time.Duration) int {
	return int(math.Ceil(d.Seconds()))
}

// RateLimit: фиксированное окно в минуту на IP клиента. rpm <= 0 отключает лимит.
func RateLimit(rpm int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if rpm <= 0 {
			return next
		}
		limiter := newFixedWindow(rpm, time.Minute)

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			now := time.Now()
			remaining, resetAt, ok := limiter.take(getIp(r), now)

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rpm))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))

			if !ok {
				retryAfter := retryAfterSeconds(resetAt.Sub(now))
				logger.Warn("Middleware: Превышен лимит запросов",
					zap.String("request_id", GetRequestID(r.Context())),
					zap.String("client_ip", getIp(r)))
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				writeError(w, r, http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED",
					"Слишком много запросов. Попробуйте позже.",
					map[string]any{"retry_after": retryAfter})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func getIp(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// writeError повторяет конверт ошибок из handlers: пакет handlers сам зависит от middleware.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string, details map[string]any) {
	if details == nil {
		details = map[string]any{}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]any{
		"error":      code,
		"message":    message,
		"details":    details,
		"request_id": GetRequestID(r.Context()),
	}); err != nil {
		logger.Error("Middleware: Ошибка записи ответа", err)
	}
}
