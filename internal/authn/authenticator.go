package authn

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/famorg/internal/metrics"
	"github.com/hitoshi/famorg/internal/model"
)

// Credentials はリクエストから取り出した生の資格情報。
type Credentials struct {
	// Authorization はAuthorizationヘッダーの値。
	Authorization string
	// SessionCookie はセッションCookieの値。
	SessionCookie string
}

// TokenVerifier はJWTを検証してクレームを返す。
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*Claims, error)
}

// Authenticator は資格情報からIdentityを確定する。
//
// 状態遷移:
//
//	NoCredential                       -> Rejected
//	JWTCandidate     -> verify ok      -> Authenticated (bearer-jwt)
//	JWTCandidate     -> verify failed  -> Rejected (セッション照合にはフォールバックしない)
//	SessionCandidate -> resolved       -> Authenticated (bearer-session / cookie)
//	SessionCandidate -> not found      -> Rejected
//
// 予期しないエラーやpanicはすべて401に正規化し、5xxを返さない。
type Authenticator struct {
	verifier TokenVerifier
	resolver *SessionResolver
	hydrator *Hydrator
	metrics  metrics.MetricsCollector
}

// NewAuthenticator はAuthenticatorを生成する。
func NewAuthenticator(verifier TokenVerifier, resolver *SessionResolver, hydrator *Hydrator, mc metrics.MetricsCollector) *Authenticator {
	if mc == nil {
		mc = metrics.Nop{}
	}
	return &Authenticator{
		verifier: verifier,
		resolver: resolver,
		hydrator: hydrator,
		metrics:  mc,
	}
}

type authState int

const (
	stateNoCredential authState = iota
	stateJWTCandidate
	stateSessionCandidate
)

// Authenticate は資格情報を検証し、ファミリー所属を付与したIdentityを返す。
// 失敗時はコードUNAUTHORIZEDの*model.APIErrorを返す。
func (a *Authenticator) Authenticate(ctx context.Context, creds Credentials) (id *Identity, err error) {
	var method AuthMethod
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("panic during authentication", slog.Any("panic", rec))
			id, err = nil, model.NewUnauthorizedError(model.MsgSessionValidation)
		}
		outcome := metrics.OutcomeSuccess
		if err != nil {
			outcome = metrics.OutcomeRejected
		}
		a.metrics.RecordAuthentication(string(method), outcome)
	}()

	state, bearer := classifyRequest(creds)
	switch state {
	case stateJWTCandidate:
		method = AuthMethodBearerJWT
		id, err = a.authenticateJWT(ctx, bearer)
	case stateSessionCandidate:
		method = AuthMethodCookie
		if bearer != "" {
			method = AuthMethodBearerSession
		}
		id, err = a.authenticateSession(ctx, bearer, creds.SessionCookie)
	default:
		slog.Debug("authentication rejected: no credential")
		return nil, model.NewUnauthorizedError(model.MsgNoCredential)
	}
	if err != nil {
		return nil, err
	}

	enr := a.hydrator.Hydrate(ctx, id.User.ID)
	id.Families = enr.Families
	id.FamiliesAvailable = enr.Available
	return id, nil
}

// classifyRequest は資格情報から初期状態を決める。
// "Bearer <token>" 形式でないAuthorizationヘッダーは存在しないものとして扱う。
func classifyRequest(creds Credentials) (authState, string) {
	if token, ok := ParseBearer(creds.Authorization); ok {
		switch cred := Classify(token); cred.Kind {
		case KindJWT:
			return stateJWTCandidate, cred.Token
		case KindSession:
			return stateSessionCandidate, cred.Token
		}
	}
	if creds.SessionCookie != "" {
		return stateSessionCandidate, ""
	}
	return stateNoCredential, ""
}

func (a *Authenticator) authenticateJWT(ctx context.Context, token string) (*Identity, error) {
	claims, err := a.verifier.Verify(ctx, token)
	if err != nil {
		slog.Warn("authentication rejected: jwt verification failed",
			slog.String("error", err.Error()),
		)
		return nil, model.NewUnauthorizedError(model.MsgInvalidJWT)
	}

	user := &model.User{
		ID:            claims.Subject,
		Email:         claims.Email,
		Name:          claims.Name,
		EmailVerified: claims.EmailVerified,
	}
	session := &model.Session{
		ID:     claims.ID,
		UserID: claims.Subject,
	}
	if claims.ExpiresAt != nil {
		session.ExpiresAt = claims.ExpiresAt.Time
	}
	if claims.IssuedAt != nil {
		session.CreatedAt = claims.IssuedAt.Time
		session.UpdatedAt = claims.IssuedAt.Time
	}

	return &Identity{User: user, Session: session, AuthMethod: AuthMethodBearerJWT}, nil
}

func (a *Authenticator) authenticateSession(ctx context.Context, bearer, cookie string) (*Identity, error) {
	sw, method, err := a.resolver.Resolve(ctx, bearer, cookie)
	if err != nil {
		slog.Warn("authentication rejected: session lookup failed",
			slog.String("error", err.Error()),
		)
		return nil, model.NewUnauthorizedError(model.MsgSessionValidation)
	}
	if sw == nil {
		slog.Debug("authentication rejected: session not found")
		return nil, model.NewUnauthorizedError(model.MsgNoCredential)
	}
	if sw.Session.UserID != sw.User.ID {
		err := fmt.Errorf("session user mismatch: session=%s user=%s", sw.Session.UserID, sw.User.ID)
		slog.Error("authentication rejected", slog.String("error", err.Error()))
		return nil, model.NewUnauthorizedError(model.MsgSessionValidation)
	}

	return &Identity{User: sw.User, Session: sw.Session, AuthMethod: method}, nil
}
