package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/taskdeck/server-go/internal/errors"
	"github.com/taskdeck/server-go/internal/middleware"
	"github.com/taskdeck/server-go/internal/model"
	"github.com/taskdeck/server-go/internal/service"
)

type TaskHandler struct {
	taskService *service.TaskService
}

func NewTaskHandler(taskService *service.TaskService) *TaskHandler {
	return &TaskHandler{taskService: taskService}
}

func (h *TaskHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.List)
	r.Post("/", h.Add)
	r.Delete("/", h.Clear)
	r.Patch("/{taskID}", h.Update)
	r.Delete("/{taskID}", h.Delete)

	return r
}

func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	account := middleware.GetAccount(r.Context())
	if account == nil {
		writeError(w, apperrors.Unauthenticated("Not authenticated"))
		return
	}

	tasks, err := h.taskService.List(r.Context(), account.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"tasks": tasks,
		"total": len(tasks),
	})
}

func (h *TaskHandler) Add(w http.ResponseWriter, r *http.Request) {
	account := middleware.GetAccount(r.Context())
	if account == nil {
		writeError(w, apperrors.Unauthenticated("Not authenticated"))
		return
	}

	var req struct {
		Title     string  `json:"title"`
		IsDone    bool    `json:"isDone"`
		Times     int     `json:"times"`
		TimesDone int     `json:"timesDone"`
		Note      *string `json:"note"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.ValidationError("Invalid request body"))
		return
	}

	task, err := h.taskService.Add(r.Context(), model.CreateTaskParams{
		AccountID: account.ID,
		Title:     req.Title,
		IsDone:    req.IsDone,
		Times:     req.Times,
		TimesDone: req.TimesDone,
		Note:      req.Note,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "Task was created successfully",
		"task":    task,
	})
}

func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	account := middleware.GetAccount(r.Context())
	if account == nil {
		writeError(w, apperrors.Unauthenticated("Not authenticated"))
		return
	}

	taskID := chi.URLParam(r, "taskID")

	var req model.UpdateTaskParams
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.ValidationError("Invalid request body"))
		return
	}

	task, err := h.taskService.Update(r.Context(), account.ID, taskID, req)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Task was updated successfully",
		"task":    task,
	})
}

func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	account := middleware.GetAccount(r.Context())
	if account == nil {
		writeError(w, apperrors.Unauthenticated("Not authenticated"))
		return
	}

	taskID := chi.URLParam(r, "taskID")
	if err := h.taskService.Delete(r.Context(), account.ID, taskID); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *TaskHandler) Clear(w http.ResponseWriter, r *http.Request) {
	account := middleware.GetAccount(r.Context())
	if account == nil {
		writeError(w, apperrors.Unauthenticated("Not authenticated"))
		return
	}

	count, err := h.taskService.Clear(r.Context(), account.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "All your tasks were deleted",
		"deleted": count,
	})
}
