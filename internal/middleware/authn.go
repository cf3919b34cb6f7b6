// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/hitoshi/famorg/internal/authn"
	"github.com/hitoshi/famorg/internal/model"
)

// SessionCookieName はセッショントークンを保持するCookieの名前。
const SessionCookieName = "famorg.session_token"

// Authenticator はリクエストの資格情報からIdentityを解決するインターフェース。
// authn.Authenticatorが実装する。
type Authenticator interface {
	Authenticate(ctx context.Context, creds authn.Credentials) (*authn.Identity, error)
}

// NewAuthnMiddleware はAuthorizationヘッダーとセッションCookieから呼び出し元を認証し、
// IdentityをリクエストコンテキストへAttachするミドルウェアを返す。
// 認証に失敗した場合は401と{"error","code":"UNAUTHORIZED"}を返し、後続のハンドラーは呼ばない。
func NewAuthnMiddleware(authenticator Authenticator) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := authenticator.Authenticate(r.Context(), CredentialsFromRequest(r))
			if err != nil {
				var apiErr *model.APIError
				if !errors.As(err, &apiErr) {
					apiErr = model.NewUnauthorizedError(model.MsgSessionValidation)
				}
				WriteErrorResponse(w, http.StatusUnauthorized, apiErr)
				return
			}

			annotateIdentity(r.Context(), id)
			next.ServeHTTP(w, r.WithContext(authn.WithIdentity(r.Context(), id)))
		})
	}
}

// CredentialsFromRequest はリクエストから認証に使う資格情報を取り出す。
func CredentialsFromRequest(r *http.Request) authn.Credentials {
	creds := authn.Credentials{Authorization: r.Header.Get("Authorization")}
	if cookie, err := r.Cookie(SessionCookieName); err == nil {
		creds.SessionCookie = cookie.Value
	}
	return creds
}

// IdentityFromContext はリクエストコンテキストからIdentityを取得する。
// 認証ミドルウェアを通過したリクエストでのみ有効。
func IdentityFromContext(ctx context.Context) (*authn.Identity, error) {
	id, ok := authn.FromContext(ctx)
	if !ok || id.UserID() == "" {
		return nil, fmt.Errorf("identity not found in context")
	}
	return id, nil
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
func UserIDFromContext(ctx context.Context) (string, error) {
	id, err := IdentityFromContext(ctx)
	if err != nil {
		return "", err
	}
	return id.UserID(), nil
}
