package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/famorg/internal/authn"
	"github.com/hitoshi/famorg/internal/family"
	"github.com/hitoshi/famorg/internal/metrics"
	"github.com/hitoshi/famorg/internal/model"
)

// FamilyServiceInterface はファミリーハンドラーが必要とするサービスインターフェース。
type FamilyServiceInterface interface {
	Create(ctx context.Context, id *authn.Identity, name string) (*model.Family, error)
	ListForUser(ctx context.Context, id *authn.Identity) ([]*model.Family, error)
	Get(ctx context.Context, id *authn.Identity, familyID string) (*family.Detail, error)
	AddMember(ctx context.Context, id *authn.Identity, familyID, email string, role model.Role) (*model.FamilyMember, error)
	ChangeRole(ctx context.Context, id *authn.Identity, familyID, targetUserID string, role model.Role) error
	RemoveMember(ctx context.Context, id *authn.Identity, familyID, targetUserID string) error
	Karma(ctx context.Context, id *authn.Identity, familyID string) ([]family.KarmaBalance, error)
}

// FamilyHandler はファミリー管理のHTTPハンドラー。
type FamilyHandler struct {
	service FamilyServiceInterface
	errorResponder
}

// NewFamilyHandler はFamilyHandlerを生成する。
func NewFamilyHandler(service FamilyServiceInterface, mc metrics.MetricsCollector) *FamilyHandler {
	return &FamilyHandler{service: service, errorResponder: newErrorResponder(mc)}
}

type createFamilyRequest struct {
	Name string `json:"name"`
}

type addMemberRequest struct {
	Email string     `json:"email"`
	Role  model.Role `json:"role"`
}

type changeRoleRequest struct {
	Role model.Role `json:"role"`
}

// Create はファミリーを作成する。
// POST /api/families
func (h *FamilyHandler) Create(w http.ResponseWriter, r *http.Request) {
	id, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	var req createFamilyRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	f, err := h.service.Create(r.Context(), id, req.Name)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toFamilyResponse(f))
}

// List は所属ファミリー一覧を返す。
// GET /api/families
func (h *FamilyHandler) List(w http.ResponseWriter, r *http.Request) {
	id, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	families, err := h.service.ListForUser(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	resp := make([]familyResponse, 0, len(families))
	for _, f := range families {
		resp = append(resp, toFamilyResponse(f))
	}
	writeJSON(w, http.StatusOK, resp)
}

// Get はファミリー詳細とメンバー一覧を返す。
// GET /api/families/{familyID}
func (h *FamilyHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	detail, err := h.service.Get(r.Context(), id, chi.URLParam(r, "familyID"))
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toFamilyDetailResponse(detail))
}

// AddMember はメンバーを追加する。
// POST /api/families/{familyID}/members
func (h *FamilyHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	id, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	var req addMemberRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	member, err := h.service.AddMember(r.Context(), id, chi.URLParam(r, "familyID"), req.Email, req.Role)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"familyId": member.FamilyID,
		"userId":   member.UserID,
		"role":     member.Role,
	})
}

// ChangeRole はメンバーのロールを変更する。
// PATCH /api/families/{familyID}/members/{userID}
func (h *FamilyHandler) ChangeRole(w http.ResponseWriter, r *http.Request) {
	id, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	var req changeRoleRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	err := h.service.ChangeRole(r.Context(), id, chi.URLParam(r, "familyID"), chi.URLParam(r, "userID"), req.Role)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RemoveMember はメンバーをファミリーから外す。
// DELETE /api/families/{familyID}/members/{userID}
func (h *FamilyHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	id, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	if err := h.service.RemoveMember(r.Context(), id, chi.URLParam(r, "familyID"), chi.URLParam(r, "userID")); err != nil {
		h.handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Karma はメンバーごとのカルマ残高を返す。
// GET /api/families/{familyID}/karma
func (h *FamilyHandler) Karma(w http.ResponseWriter, r *http.Request) {
	id, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	balances, err := h.service.Karma(r.Context(), id, chi.URLParam(r, "familyID"))
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	resp := make([]karmaResponse, 0, len(balances))
	for _, b := range balances {
		resp = append(resp, karmaResponse{UserID: b.UserID, Name: b.Name, Role: b.Role, Karma: b.Karma})
	}
	writeJSON(w, http.StatusOK, resp)
}
