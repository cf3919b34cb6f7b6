package authn

import (
	"context"

	"github.com/hitoshi/famorg/internal/model"
)

// SessionStore は資格情報ストアのセッション照合インターフェース。
// 見つからない・期限切れの場合は(nil, nil)を返す。
type SessionStore interface {
	GetSession(ctx context.Context, token string) (*model.SessionWithUser, error)
}

// SessionResolver は不透明なセッショントークンをセッションとユーザーに解決する。
type SessionResolver struct {
	store SessionStore
}

// NewSessionResolver はSessionResolverを生成する。
func NewSessionResolver(store SessionStore) *SessionResolver {
	return &SessionResolver{store: store}
}

// Resolve はベアラートークンまたはCookieのセッショントークンを解決する。
// ベアラートークンがある場合はCookieを照合対象から外し、ベアラーを優先する。
// 有効なセッションがなければ(nil, "", nil)を返す。
func (r *SessionResolver) Resolve(ctx context.Context, bearerToken, cookieToken string) (*model.SessionWithUser, AuthMethod, error) {
	token, method := cookieToken, AuthMethodCookie
	if bearerToken != "" {
		token, method = bearerToken, AuthMethodBearerSession
	}
	if token == "" {
		return nil, "", nil
	}

	sw, err := r.store.GetSession(ctx, token)
	if err != nil {
		return nil, "", err
	}
	if sw == nil || sw.Session == nil || sw.User == nil {
		return nil, "", nil
	}
	return sw, method, nil
}
