package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/famorg/internal/diary"
	"github.com/hitoshi/famorg/internal/metrics"
	"github.com/hitoshi/famorg/internal/middleware"
	"github.com/hitoshi/famorg/internal/model"
)

// DiaryServiceInterface は日記ハンドラーが必要とするサービスインターフェース。
type DiaryServiceInterface interface {
	Create(ctx context.Context, userID string, in diary.Input) (*model.DiaryEntry, error)
	List(ctx context.Context, userID string) ([]*model.DiaryEntry, error)
	Get(ctx context.Context, userID, entryID string) (*model.DiaryEntry, error)
	Update(ctx context.Context, userID, entryID string, in diary.Input) (*model.DiaryEntry, error)
	Delete(ctx context.Context, userID, entryID string) error
}

// DiaryHandler は日記のHTTPハンドラー。
type DiaryHandler struct {
	service DiaryServiceInterface
	errorResponder
}

// NewDiaryHandler はDiaryHandlerを生成する。
func NewDiaryHandler(service DiaryServiceInterface, mc metrics.MetricsCollector) *DiaryHandler {
	return &DiaryHandler{service: service, errorResponder: newErrorResponder(mc)}
}

type diaryRequest struct {
	Title     string `json:"title"`
	Content   string `json:"content"`
	EntryDate string `json:"entryDate"`
}

func (req diaryRequest) input() diary.Input {
	return diary.Input{Title: req.Title, Content: req.Content, EntryDate: req.EntryDate}
}

// Create はエントリを作成する。
// POST /api/diary
func (h *DiaryHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	var req diaryRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	entry, err := h.service.Create(r.Context(), userID, req.input())
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toDiaryResponse(entry))
}

// List は自分のエントリ一覧を返す。
// GET /api/diary
func (h *DiaryHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	entries, err := h.service.List(r.Context(), userID)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	resp := make([]diaryResponse, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, toDiaryResponse(e))
	}
	writeJSON(w, http.StatusOK, resp)
}

// Get はエントリを返す。作成者以外は403。
// GET /api/diary/{entryID}
func (h *DiaryHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	entry, err := h.service.Get(r.Context(), userID, chi.URLParam(r, "entryID"))
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDiaryResponse(entry))
}

// Update はエントリを更新する。
// PUT /api/diary/{entryID}
func (h *DiaryHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	var req diaryRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	entry, err := h.service.Update(r.Context(), userID, chi.URLParam(r, "entryID"), req.input())
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDiaryResponse(entry))
}

// Delete はエントリを削除する。
// DELETE /api/diary/{entryID}
func (h *DiaryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), userID, chi.URLParam(r, "entryID")); err != nil {
		h.handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *DiaryHandler) userID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		requireIdentity(w, r)
		return "", false
	}
	return userID, true
}
