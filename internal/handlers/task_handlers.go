package handlers

import (
	"errors"
	"net/http"
	"taskManager/internal/handlers/dto"
	"taskManager/internal/logger"
	"taskManager/internal/middleware"
	"taskManager/internal/models/task"
	"taskManager/internal/service"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type TaskHandler struct {
	TaskService TaskService
}

func NewTaskHandler(taskService TaskService) *TaskHandler {
	return &TaskHandler{
		TaskService: taskService,
	}
}

func (s *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var request dto.CreateTaskRequest
	if !decodeBody(w, r, &request) {
		return
	}

	created, err := s.TaskService.CreateTask(r.Context(), middleware.GetActor(r.Context()), service.CreateTaskInput{
		Title:       request.Title,
		Description: request.Description,
		DueDate:     request.DueDate.Time,
		Priority:    task.Priority(request.Priority),
	})
	if err != nil {
		handleError(w, r, err, "create_task")
		return
	}

	logger.Info("HTTP_OUT: Задача создана",
		zap.String("task_id", created.ID.String()),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusCreated))
	responseWithJSON(w, http.StatusCreated, dto.FromTask(created))
}

func (s *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	filter, err := task.ParseFilter(r.URL.Query())
	if err != nil {
		logger.Warn("HTTP: Неверные параметры фильтра",
			zap.Error(err),
			zap.String("query", r.URL.RawQuery))
		handleError(w, r, toBusinessError(err), "list_tasks")
		return
	}

	tasks, err := s.TaskService.ListTasks(r.Context(), middleware.GetActor(r.Context()), filter)
	if err != nil {
		handleError(w, r, err, "list_tasks")
		return
	}
	responseWithJSON(w, http.StatusOK, dto.FromTaskList(tasks))
}

func (s *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, chi.URLParam(r, "id"), service.ResourceTask)
	if !ok {
		return
	}

	found, err := s.TaskService.GetTask(r.Context(), middleware.GetActor(r.Context()), id)
	if err != nil {
		handleError(w, r, err, "get_task")
		return
	}
	responseWithJSON(w, http.StatusOK, dto.FromTask(found))
}

// ReplaceTask обрабатывает PUT (полное обновление).
func (s *TaskHandler) ReplaceTask(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, chi.URLParam(r, "id"), service.ResourceTask)
	if !ok {
		return
	}
	var request dto.ReplaceTaskRequest
	if !decodeBody(w, r, &request) {
		return
	}
	s.update(w, r, id.String(), func() (*task.Task, error) {
		return s.TaskService.UpdateTask(r.Context(), middleware.GetActor(r.Context()), id, request.Patch(), request.Version)
	})
}

// PatchTask обрабатывает PATCH (частичное обновление).
func (s *TaskHandler) PatchTask(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, chi.URLParam(r, "id"), service.ResourceTask)
	if !ok {
		return
	}
	var request dto.UpdateTaskRequest
	if !decodeBody(w, r, &request) {
		return
	}
	s.update(w, r, id.String(), func() (*task.Task, error) {
		return s.TaskService.UpdateTask(r.Context(), middleware.GetActor(r.Context()), id, request.Patch(), request.Version)
	})
}

func (s *TaskHandler) update(w http.ResponseWriter, r *http.Request, id string, call func() (*task.Task, error)) {
	updated, err := call()
	if err != nil {
		handleError(w, r, err, "update_task")
		return
	}
	logger.Info("HTTP_OUT: Задача обновлена", zap.String("task_id", id))
	responseWithJSON(w, http.StatusOK, dto.FromTask(updated))
}

func (s *TaskHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, chi.URLParam(r, "id"), service.ResourceTask)
	if !ok {
		return
	}
	if err := s.TaskService.DeleteTask(r.Context(), middleware.GetActor(r.Context()), id); err != nil {
		handleError(w, r, err, "delete_task")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *TaskHandler) MarkComplete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, chi.URLParam(r, "id"), service.ResourceTask)
	if !ok {
		return
	}
	s.update(w, r, id.String(), func() (*task.Task, error) {
		return s.TaskService.MarkComplete(r.Context(), middleware.GetActor(r.Context()), id)
	})
}

func (s *TaskHandler) MarkIncomplete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, chi.URLParam(r, "id"), service.ResourceTask)
	if !ok {
		return
	}
	s.update(w, r, id.String(), func() (*task.Task, error) {
		return s.TaskService.MarkIncomplete(r.Context(), middleware.GetActor(r.Context()), id)
	})
}

func (s *TaskHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if err := s.TaskService.HealthCheck(r.Context()); err != nil {
		logger.Error("HTTP: Хранилище недоступно", err)
		responseWithPayload(w, http.StatusServiceUnavailable,
			toPayload("status", "unavailable"),
			toPayload("service", serviceName))
		return
	}
	responseWithPayload(w, http.StatusOK,
		toPayload("status", "ok"),
		toPayload("service", serviceName))
}

const serviceName = "task-manager"

// toBusinessError переводит ошибки разбора параметров модели в VALIDATION_ERROR.
func toBusinessError(err error) error {
	var vErr *task.ValidationError
	if errors.As(err, &vErr) {
		return service.NewValidationError(vErr.Field, vErr.Reason)
	}
	return err
}
