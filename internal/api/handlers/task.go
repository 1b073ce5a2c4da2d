package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dom/task-manager/internal/api/middleware"
	"github.com/dom/task-manager/internal/domain"
	"github.com/dom/task-manager/internal/service"
	"github.com/dom/task-manager/internal/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type TaskHandler struct {
	taskService *service.TaskService
	hub         *websocket.Hub
}

func NewTaskHandler(taskService *service.TaskService, hub *websocket.Hub) *TaskHandler {
	return &TaskHandler{taskService: taskService, hub: hub}
}

type CreateTaskRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

type UpdateTaskRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Completed   *bool   `json:"completed"`
}

func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Not authorized")
		return
	}

	tasks, err := h.taskService.List(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	if tasks == nil {
		tasks = []*domain.Task{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Not authorized")
		return
	}

	var req CreateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	task, err := h.taskService.Create(r.Context(), userID, service.CreateTaskInput{
		Title:       req.Title,
		Description: req.Description,
	})
	if err != nil {
		if errors.Is(err, domain.ErrTitleRequired) {
			writeError(w, http.StatusBadRequest, "Please add a title")
			return
		}
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.hub.PublishToUser(userID, websocket.MessageTypeTaskCreated, task)
	writeJSON(w, http.StatusCreated, task)
}

func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Not authorized")
		return
	}

	taskID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid task ID")
		return
	}

	var req UpdateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	task, err := h.taskService.Update(r.Context(), userID, taskID, service.UpdateTaskInput{
		Title:       req.Title,
		Description: req.Description,
		Completed:   req.Completed,
	})
	if err != nil {
		h.writeTaskError(w, err)
		return
	}

	h.hub.PublishToUser(userID, websocket.MessageTypeTaskUpdated, task)
	writeJSON(w, http.StatusOK, task)
}

func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Not authorized")
		return
	}

	taskID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid task ID")
		return
	}

	if err := h.taskService.Delete(r.Context(), userID, taskID); err != nil {
		h.writeTaskError(w, err)
		return
	}

	h.hub.PublishToUser(userID, websocket.MessageTypeTaskDeleted, websocket.TaskDeletedPayload{
		TaskID: taskID.String(),
	})
	writeJSON(w, http.StatusOK, messageResponse{Message: "Task removed"})
}

func (h *TaskHandler) writeTaskError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrTaskNotFound):
		writeError(w, http.StatusNotFound, "Task not found")
	case errors.Is(err, domain.ErrNotTaskOwner):
		writeError(w, http.StatusForbidden, "Not authorized")
	case errors.Is(err, domain.ErrTitleRequired):
		writeError(w, http.StatusBadRequest, "Please add a title")
	default:
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}
