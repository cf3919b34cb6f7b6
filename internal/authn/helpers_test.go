package authn

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/hitoshi/famorg/internal/model"
)

const (
	testIssuer = "http://localhost:8080/api/auth"
	testKID    = "test-key-1"
)

// testKeys はテスト用のEd25519鍵ペアとJWKSサーバー。
type testKeys struct {
	priv   ed25519.PrivateKey
	pub    ed25519.PublicKey
	server *httptest.Server
	hits   atomic.Int32
}

func newTestKeys(t *testing.T) *testKeys {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	k := &testKeys{priv: priv, pub: pub}
	k.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		k.hits.Add(1)
		set := jose.JSONWebKeySet{Keys: []jose.JSONWebKey{{
			Key:       pub,
			KeyID:     testKID,
			Algorithm: string(jose.EdDSA),
			Use:       "sig",
		}}}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(set)
	}))
	t.Cleanup(k.server.Close)
	return k
}

func (k *testKeys) jwksURL() string {
	return k.server.URL + "/jwks"
}

// validClaims は検証を通過するクレームを返す。
func validClaims(sub string) *Claims {
	now := time.Now()
	return &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    testIssuer,
			Subject:   sub,
			Audience:  jwt.ClaimStrings{testIssuer},
			ExpiresAt: jwt.NewNumericDate(now.Add(15 * time.Minute)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        "jti-" + sub,
		},
		Email:         sub + "@example.com",
		Name:          "User " + sub,
		EmailVerified: true,
	}
}

func (k *testKeys) sign(t *testing.T, claims *Claims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	tok.Header["kid"] = testKID
	s, err := tok.SignedString(k.priv)
	require.NoError(t, err)
	return s
}

func (k *testKeys) verifier() *JWTVerifier {
	cache := NewKeySetCache(k.jwksURL(), &http.Client{Timeout: 2 * time.Second}, nil)
	return NewJWTVerifier(cache, testIssuer, testIssuer)
}

// mockSessionStore はSessionStoreのモック。
type mockSessionStore struct {
	getSessionFn func(ctx context.Context, token string) (*model.SessionWithUser, error)
	calls        []string
}

func (m *mockSessionStore) GetSession(ctx context.Context, token string) (*model.SessionWithUser, error) {
	m.calls = append(m.calls, token)
	if m.getSessionFn != nil {
		return m.getSessionFn(ctx, token)
	}
	return nil, nil
}

// sessionsByToken はトークンからセッションを引く固定テーブルのストアを返す。
func sessionsByToken(users map[string]string) *mockSessionStore {
	return &mockSessionStore{
		getSessionFn: func(_ context.Context, token string) (*model.SessionWithUser, error) {
			userID, ok := users[token]
			if !ok {
				return nil, nil
			}
			ip := "127.0.0.1"
			return &model.SessionWithUser{
				Session: &model.Session{
					ID:        "sess-" + userID,
					Token:     token,
					UserID:    userID,
					ExpiresAt: time.Now().Add(time.Hour),
					IPAddress: &ip,
				},
				User: &model.User{ID: userID, Email: userID + "@example.com", Name: userID},
			}, nil
		},
	}
}

// mockFamilyProvider はFamilyMembershipProviderのモック。
type mockFamilyProvider struct {
	listFn func(ctx context.Context, userID string) ([]model.FamilyMembership, error)
}

func (m *mockFamilyProvider) ListFamiliesForUser(ctx context.Context, userID string) ([]model.FamilyMembership, error) {
	if m.listFn != nil {
		return m.listFn(ctx, userID)
	}
	return nil, nil
}

var (
	_ SessionStore             = (*mockSessionStore)(nil)
	_ FamilyMembershipProvider = (*mockFamilyProvider)(nil)
)
