package authn

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/go-jose/go-jose/v4"
)

// ErrInvalidToken はJWT検証の失敗を表す。
// 通信エラー、署名不正、クレーム不一致、期限切れのいずれもこのエラーにまとめる。
var ErrInvalidToken = errors.New("invalid token")

// Claims はアクセストークンのクレーム。
type Claims struct {
	jwt.RegisteredClaims
	Email         string `json:"email"`
	Name          string `json:"name"`
	EmailVerified bool   `json:"emailVerified"`
}

// KeyProvider はkidから検証用の公開鍵を返す。
type KeyProvider interface {
	Key(ctx context.Context, kid string) (*jose.JSONWebKey, error)
}

// JWTVerifier はJWKSの公開鍵でJWTを検証する。データストアにはアクセスしない。
type JWTVerifier struct {
	keys   KeyProvider
	parser *jwt.Parser
}

// NewJWTVerifier はJWTVerifierを生成する。
// issuerとaudienceは完全一致で検証し、expクレームは必須とする。
func NewJWTVerifier(keys KeyProvider, issuer, audience string) *JWTVerifier {
	return &JWTVerifier{
		keys: keys,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{"EdDSA", "RS256", "ES256"}),
			jwt.WithIssuer(issuer),
			jwt.WithAudience(audience),
			jwt.WithExpirationRequired(),
			jwt.WithIssuedAt(),
		),
	}
}

// Verify は署名、iss、aud、expを検証してクレームを返す。
// 失敗時は常にErrInvalidTokenでラップしたエラーを返す。
func (v *JWTVerifier) Verify(ctx context.Context, token string) (*Claims, error) {
	claims := &Claims{}
	_, err := v.parser.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		kid, _ := t.Header["kid"].(string)
		key, err := v.keys.Key(ctx, kid)
		if err != nil {
			return nil, err
		}
		pub := key.Public()
		if !pub.Valid() {
			return nil, errors.New("jwks key has no public component")
		}
		if key.Algorithm != "" && key.Algorithm != t.Method.Alg() {
			return nil, fmt.Errorf("algorithm mismatch: key=%s token=%s", key.Algorithm, t.Method.Alg())
		}
		return pub.Key, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing sub claim", ErrInvalidToken)
	}
	return claims, nil
}
