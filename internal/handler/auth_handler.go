// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-jose/go-jose/v4"

	"github.com/hitoshi/famorg/internal/auth"
	"github.com/hitoshi/famorg/internal/authn"
	"github.com/hitoshi/famorg/internal/metrics"
	"github.com/hitoshi/famorg/internal/middleware"
	"github.com/hitoshi/famorg/internal/model"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	SignUpEmail(ctx context.Context, in auth.SignUpInput, client auth.ClientInfo) (*model.SessionWithUser, error)
	SignInEmail(ctx context.Context, email, password string, client auth.ClientInfo) (*model.SessionWithUser, error)
	SignOut(ctx context.Context, token string) error
	ChangePassword(ctx context.Context, in auth.ChangePasswordInput) error
	IssueToken(ctx context.Context, userID string) (string, time.Time, error)
	JWKS() jose.JSONWebKeySet
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	CookieDomain  string
	CookieSecure  bool
	SessionMaxAge int // セッションCookieの有効期間（秒）
}

// AuthHandler はメールアドレス+パスワード認証のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	config  AuthHandlerConfig
	errorResponder
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, config AuthHandlerConfig, mc metrics.MetricsCollector) *AuthHandler {
	return &AuthHandler{
		service:        service,
		config:         config,
		errorResponder: newErrorResponder(mc),
	}
}

type signUpRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type changePasswordRequest struct {
	CurrentPassword     string `json:"currentPassword"`
	NewPassword         string `json:"newPassword"`
	RevokeOtherSessions bool   `json:"revokeOtherSessions"`
}

// sessionTokenResponse はサインアップ・サインインのレスポンス。
type sessionTokenResponse struct {
	Token string       `json:"token"`
	User  userResponse `json:"user"`
}

// SignUp はユーザーを登録し、セッションを開始する。
// POST /api/auth/sign-up/email
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	sw, err := h.service.SignUpEmail(r.Context(), auth.SignUpInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
	}, clientInfo(r))
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.writeSession(w, http.StatusOK, sw)
}

// SignIn はメールアドレスとパスワードで認証し、セッションを開始する。
// POST /api/auth/sign-in/email
func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	sw, err := h.service.SignInEmail(r.Context(), req.Email, req.Password, clientInfo(r))
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.writeSession(w, http.StatusOK, sw)
}

// SignOut はセッションを破棄する。
// POST /api/auth/sign-out
// Bearerのセッショントークンを優先し、なければCookieのセッションを破棄する。
func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	if token := sessionTokenFromRequest(r); token != "" {
		if err := h.service.SignOut(r.Context(), token); err != nil {
			// 破棄に失敗してもCookieはクリアする
			slog.Error("failed to sign out", slog.String("error", err.Error()))
		}
	}

	h.clearSessionCookie(w)
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// GetSession は現在のセッションとユーザーを返す。
// GET /api/auth/get-session
func (h *AuthHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	id, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"session": toSessionResponse(id.Session),
		"user":    toUserResponse(id.User),
	})
}

// Token はセッションで認証済みのユーザーにJWTを発行する。
// JWTでの呼び出しは401とし、発行済みJWTがセッションより長く生き延びないようにする。
// GET /api/auth/token
func (h *AuthHandler) Token(w http.ResponseWriter, r *http.Request) {
	id, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if id.AuthMethod == authn.AuthMethodBearerJWT {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError(model.MsgSessionRequired))
		return
	}

	token, expiresAt, err := h.service.IssueToken(r.Context(), id.UserID())
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"token":     token,
		"expiresAt": expiresAt,
	})
}

// JWKS はJWT検証用の公開鍵セットを返す。
// GET /api/auth/jwks
func (h *AuthHandler) JWKS(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.service.JWKS())
}

// ChangePassword はパスワードを変更する。
// POST /api/auth/change-password
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	id, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req changePasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	in := auth.ChangePasswordInput{
		UserID:              id.UserID(),
		CurrentPassword:     req.CurrentPassword,
		NewPassword:         req.NewPassword,
		RevokeOtherSessions: req.RevokeOtherSessions,
	}
	if id.Session != nil {
		in.SessionToken = id.Session.Token
	}
	if err := h.service.ChangePassword(r.Context(), in); err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// writeSession はセッションCookieを設定し、トークンとユーザーを返す。
func (h *AuthHandler) writeSession(w http.ResponseWriter, statusCode int, sw *model.SessionWithUser) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    sw.Session.Token,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   h.config.SessionMaxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	writeJSON(w, statusCode, sessionTokenResponse{
		Token: sw.Session.Token,
		User:  toUserResponse(sw.User),
	})
}

func (h *AuthHandler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// sessionTokenFromRequest はサインアウト対象のセッショントークンを取り出す。
// JWTはサーバー側で破棄できないため対象外。
func sessionTokenFromRequest(r *http.Request) string {
	if bearer, ok := authn.ParseBearer(r.Header.Get("Authorization")); ok {
		if authn.Classify(bearer).Kind == authn.KindSession {
			return bearer
		}
		return ""
	}
	if cookie, err := r.Cookie(middleware.SessionCookieName); err == nil {
		return cookie.Value
	}
	return ""
}

// clientInfo はセッションに記録する接続元情報を取り出す。
func clientInfo(r *http.Request) auth.ClientInfo {
	return auth.ClientInfo{
		IPAddress: r.RemoteAddr,
		UserAgent: r.UserAgent(),
	}
}
