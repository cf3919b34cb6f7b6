package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/famorg/internal/authn"
	"github.com/hitoshi/famorg/internal/metrics"
	"github.com/hitoshi/famorg/internal/model"
	"github.com/hitoshi/famorg/internal/task"
)

// TaskServiceInterface はタスクハンドラーが必要とするサービスインターフェース。
type TaskServiceInterface interface {
	Create(ctx context.Context, id *authn.Identity, familyID string, in task.CreateInput) (*model.Task, error)
	List(ctx context.Context, id *authn.Identity, familyID string) ([]*model.Task, error)
	Complete(ctx context.Context, id *authn.Identity, familyID, taskID string) (*model.Task, error)
	Delete(ctx context.Context, id *authn.Identity, familyID, taskID string) error
}

// TaskHandler はタスク管理のHTTPハンドラー。
type TaskHandler struct {
	service TaskServiceInterface
	errorResponder
}

// NewTaskHandler はTaskHandlerを生成する。
func NewTaskHandler(service TaskServiceInterface, mc metrics.MetricsCollector) *TaskHandler {
	return &TaskHandler{service: service, errorResponder: newErrorResponder(mc)}
}

type createTaskRequest struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	AssignedTo  *string `json:"assignedTo"`
	KarmaPoints int     `json:"karmaPoints"`
}

// Create はタスクを作成する。Parentのみ。
// POST /api/families/{familyID}/tasks
func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	id, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	var req createTaskRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	t, err := h.service.Create(r.Context(), id, chi.URLParam(r, "familyID"), task.CreateInput{
		Title:       req.Title,
		Description: req.Description,
		AssignedTo:  req.AssignedTo,
		KarmaPoints: req.KarmaPoints,
	})
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTaskResponse(t))
}

// List はファミリーのタスク一覧を返す。
// GET /api/families/{familyID}/tasks
func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	id, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	tasks, err := h.service.List(r.Context(), id, chi.URLParam(r, "familyID"))
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	resp := make([]taskResponse, 0, len(tasks))
	for _, t := range tasks {
		resp = append(resp, toTaskResponse(t))
	}
	writeJSON(w, http.StatusOK, resp)
}

// Complete はタスクを完了し、カルマを付与する。
// POST /api/families/{familyID}/tasks/{taskID}/complete
func (h *TaskHandler) Complete(w http.ResponseWriter, r *http.Request) {
	id, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	t, err := h.service.Complete(r.Context(), id, chi.URLParam(r, "familyID"), chi.URLParam(r, "taskID"))
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTaskResponse(t))
}

// Delete はタスクを削除する。Parentのみ。
// DELETE /api/families/{familyID}/tasks/{taskID}
func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), id, chi.URLParam(r, "familyID"), chi.URLParam(r, "taskID")); err != nil {
		h.handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
