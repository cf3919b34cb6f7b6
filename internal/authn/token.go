package authn

import "strings"

// CredentialKind はベアラートークンの種別。
type CredentialKind int

const (
	// KindSession はデータベースで照合する不透明なセッショントークン。
	KindSession CredentialKind = iota
	// KindJWT はJWKSで検証する署名付きJWT。
	KindJWT
)

func (k CredentialKind) String() string {
	switch k {
	case KindJWT:
		return "jwt"
	case KindSession:
		return "session"
	default:
		return "unknown"
	}
}

// Credential は分類済みのベアラートークン。
type Credential struct {
	Kind  CredentialKind
	Token string
}

// Classify はトークンを構造だけで分類する。
// ドット区切りで空でない3セグメントならJWT、それ以外はセッショントークン。
// 署名検証は行わないため、JWTに見えるだけの文字列は検証段階で失敗する。
func Classify(token string) Credential {
	parts := strings.Split(token, ".")
	if len(parts) == 3 && parts[0] != "" && parts[1] != "" && parts[2] != "" {
		return Credential{Kind: KindJWT, Token: token}
	}
	return Credential{Kind: KindSession, Token: token}
}

// ParseBearer はAuthorizationヘッダー値から "Bearer <token>" のトークン部分を取り出す。
// 形式が合わない場合はokがfalseになる。スキーム名は大文字小文字を区別しない。
func ParseBearer(header string) (token string, ok bool) {
	const prefix = "bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	token = strings.TrimSpace(header[len(prefix):])
	if token == "" || strings.ContainsAny(token, " \t") {
		return "", false
	}
	return token, true
}
