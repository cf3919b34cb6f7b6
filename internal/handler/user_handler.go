package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/famorg/internal/metrics"
	"github.com/hitoshi/famorg/internal/middleware"
)

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	// Withdraw はユーザーの退会処理を実行する。
	// diary_entries、family_members、sessions、userを削除する。
	Withdraw(ctx context.Context, userID string) error
}

// UserHandler はユーザー管理のHTTPハンドラー。
type UserHandler struct {
	service      UserServiceInterface
	cookieConfig AuthHandlerConfig
	errorResponder
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface, cookieConfig AuthHandlerConfig, mc metrics.MetricsCollector) *UserHandler {
	return &UserHandler{
		service:        service,
		cookieConfig:   cookieConfig,
		errorResponder: newErrorResponder(mc),
	}
}

// Me は認証済みの呼び出し元のIdentityを返す。
// GET /api/users/me
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	id, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toIdentityResponse(id))
}

// Withdraw はユーザーの退会処理を実行する。
// DELETE /api/users/me
func (h *UserHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		requireIdentity(w, r)
		return
	}

	if err := h.service.Withdraw(r.Context(), userID); err != nil {
		h.handleServiceError(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   h.cookieConfig.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookieConfig.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}
