package auth

import (
	"crypto"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/hitoshi/famorg/internal/authn"
	"github.com/hitoshi/famorg/internal/model"
)

// Signer はアクセストークン（EdDSA署名のJWT）を発行する。
// 署名鍵はBETTER_AUTH_SECRETから決定的に導出するため、
// 同じシークレットを持つプロセス間で同じ鍵・kidになる。
type Signer struct {
	key    ed25519.PrivateKey
	kid    string
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewSigner はSignerを生成する。issuerはiss/audの両方に使う。
func NewSigner(secret, issuer string, ttl time.Duration) (*Signer, error) {
	if secret == "" {
		return nil, fmt.Errorf("signing secret is required")
	}
	seed := sha256.Sum256([]byte(secret))
	key := ed25519.NewKeyFromSeed(seed[:])

	jwk := jose.JSONWebKey{Key: key.Public(), Algorithm: string(jose.EdDSA), Use: "sig"}
	thumb, err := jwk.Thumbprint(crypto.SHA256)
	if err != nil {
		return nil, fmt.Errorf("failed to compute key thumbprint: %w", err)
	}

	return &Signer{
		key:    key,
		kid:    base64.RawURLEncoding.EncodeToString(thumb),
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// KeyID は署名鍵のkid（RFC 7638サムプリント）を返す。
func (s *Signer) KeyID() string {
	return s.kid
}

// Sign はユーザーのアクセストークンを発行し、トークンと有効期限を返す。
func (s *Signer) Sign(user *model.User) (string, time.Time, error) {
	now := s.now()
	exp := now.Add(s.ttl)
	claims := authn.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   user.ID,
			Audience:  jwt.ClaimStrings{s.issuer},
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.New().String(),
		},
		Email:         user.Email,
		Name:          user.Name,
		EmailVerified: user.EmailVerified,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	token.Header["kid"] = s.kid
	signed, err := token.SignedString(s.key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, exp, nil
}

// JWKS は公開鍵のみを含むキーセットを返す。
func (s *Signer) JWKS() jose.JSONWebKeySet {
	return jose.JSONWebKeySet{Keys: []jose.JSONWebKey{{
		Key:       s.key.Public(),
		KeyID:     s.kid,
		Algorithm: string(jose.EdDSA),
		Use:       "sig",
	}}}
}
