// Package authn はリクエスト単位の認証パイプラインを提供する。
//
// Authorizationヘッダーのベアラートークン（JWTまたは不透明なセッショントークン）と
// セッションCookieから利用者を特定し、ファミリー所属情報を付与したIdentityを
// リクエストのcontextに格納する。
package authn

import (
	"context"

	"github.com/hitoshi/famorg/internal/model"
)

// AuthMethod はIdentityを生成した認証方式を表す。
// 診断とテストのためのタグで、認可判断には使わない。
type AuthMethod string

const (
	AuthMethodCookie        AuthMethod = "cookie"
	AuthMethodBearerJWT     AuthMethod = "bearer-jwt"
	AuthMethodBearerSession AuthMethod = "bearer-session"
)

// Identity はリクエストスコープの認証済み利用者情報。
// Userが存在する場合は必ずSessionも存在する。JWT由来の場合Sessionのネットワーク情報は空。
type Identity struct {
	User       *model.User
	Session    *model.Session
	AuthMethod AuthMethod

	// Families は認証時点のファミリー所属スナップショット。リクエスト中は再取得しない。
	Families []model.FamilyMembership
	// FamiliesAvailable はFamiliesの取得に成功したかどうか。
	// falseの場合Familiesは空で、所属なしと区別できる。
	FamiliesAvailable bool
}

// UserID は利用者IDを返す。
func (i *Identity) UserID() string {
	if i == nil || i.User == nil {
		return ""
	}
	return i.User.ID
}

type identityKey struct{}

// WithIdentity はIdentityを格納したcontextを返す。
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// FromContext はcontextからIdentityを取り出す。
func FromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(*Identity)
	return id, ok && id != nil
}
