// Package auth はメールアドレス+パスワード認証の資格情報ストアを提供する。
// ユーザー登録、サインイン、セッション発行、アクセストークン（JWT）発行、JWKS公開を扱う。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/famorg/internal/model"
	"github.com/hitoshi/famorg/internal/repository"
)

// パスワード長の制約。bcryptは72バイトを超える入力を扱えない。
const (
	MinPasswordLength = 8
	MaxPasswordLength = 72
)

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge int // セッション有効期間（秒）
	BcryptCost    int // 0の場合はbcrypt.DefaultCost
}

// SignUpInput はユーザー登録の入力。
type SignUpInput struct {
	Email    string
	Password string
	Name     string
}

// ClientInfo はセッションに記録する接続元情報。
type ClientInfo struct {
	IPAddress string
	UserAgent string
}

// ChangePasswordInput はパスワード変更の入力。
type ChangePasswordInput struct {
	UserID              string
	SessionToken        string // 現在のセッション。RevokeOtherSessions時に残す
	CurrentPassword     string
	NewPassword         string
	RevokeOtherSessions bool
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	userRepo    repository.UserRepository
	accountRepo repository.AccountRepository
	sessionRepo repository.SessionRepository
	signer      *Signer
	config      ServiceConfig
}

// NewService はServiceを生成する。
func NewService(
	userRepo repository.UserRepository,
	accountRepo repository.AccountRepository,
	sessionRepo repository.SessionRepository,
	signer *Signer,
	config ServiceConfig,
) *Service {
	if config.BcryptCost == 0 {
		config.BcryptCost = bcrypt.DefaultCost
	}
	return &Service{
		userRepo:    userRepo,
		accountRepo: accountRepo,
		sessionRepo: sessionRepo,
		signer:      signer,
		config:      config,
	}
}

// SignUpEmail はユーザーと資格情報アカウントを作成し、セッションを発行する。
func (s *Service) SignUpEmail(ctx context.Context, in SignUpInput, client ClientInfo) (*model.SessionWithUser, error) {
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, model.NewInvalidRequestError("name is required")
	}
	if err := validatePassword(in.Password); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.config.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now()
	user := &model.User{
		ID:        uuid.New().String(),
		Email:     email,
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	account := &model.Account{
		ID:           uuid.New().String(),
		UserID:       user.ID,
		ProviderID:   model.ProviderCredential,
		AccountID:    user.ID,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.userRepo.CreateWithAccount(ctx, user, account); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, model.NewEmailTakenError()
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	session, err := s.createSession(ctx, user.ID, client)
	if err != nil {
		return nil, err
	}

	slog.Info("user signed up", slog.String("user_id", user.ID))
	return &model.SessionWithUser{Session: session, User: user}, nil
}

// SignInEmail はメールアドレスとパスワードを検証し、セッションを発行する。
// ユーザー不在とパスワード不一致は区別せず同じエラーを返す。
func (s *Service) SignInEmail(ctx context.Context, email, password string, client ClientInfo) (*model.SessionWithUser, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, model.NewInvalidCredentialsError()
	}

	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewInvalidCredentialsError()
	}

	account, err := s.accountRepo.FindByUserAndProvider(ctx, user.ID, model.ProviderCredential)
	if err != nil {
		return nil, fmt.Errorf("failed to find account: %w", err)
	}
	if account == nil || bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)) != nil {
		slog.Info("sign-in rejected", slog.String("user_id", user.ID))
		return nil, model.NewInvalidCredentialsError()
	}

	session, err := s.createSession(ctx, user.ID, client)
	if err != nil {
		return nil, err
	}

	slog.Info("user signed in", slog.String("user_id", user.ID))
	return &model.SessionWithUser{Session: session, User: user}, nil
}

// SignOut はセッションを破棄する。
func (s *Service) SignOut(ctx context.Context, token string) error {
	if token == "" {
		return fmt.Errorf("session token is required")
	}
	if err := s.sessionRepo.DeleteByToken(ctx, token); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// GetSession はセッショントークンからセッションとユーザーを取得する。
// 見つからない・期限切れの場合は(nil, nil)を返す。
func (s *Service) GetSession(ctx context.Context, token string) (*model.SessionWithUser, error) {
	if token == "" {
		return nil, nil
	}

	session, err := s.sessionRepo.FindByToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil {
		return nil, nil
	}

	user, err := s.userRepo.FindByID(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, nil
	}

	return &model.SessionWithUser{Session: session, User: user}, nil
}

// ChangePassword は現在のパスワードを検証してから新しいパスワードに更新する。
// RevokeOtherSessionsが指定された場合は現在のセッション以外を破棄する。
func (s *Service) ChangePassword(ctx context.Context, in ChangePasswordInput) error {
	if err := validatePassword(in.NewPassword); err != nil {
		return err
	}

	account, err := s.accountRepo.FindByUserAndProvider(ctx, in.UserID, model.ProviderCredential)
	if err != nil {
		return fmt.Errorf("failed to find account: %w", err)
	}
	if account == nil {
		return model.NewInvalidRequestError("no password is set for this account")
	}
	if bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(in.CurrentPassword)) != nil {
		return model.NewInvalidRequestError("current password is incorrect")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.NewPassword), s.config.BcryptCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	if err := s.accountRepo.UpdatePasswordHash(ctx, account.ID, string(hash)); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	if in.RevokeOtherSessions {
		if err := s.sessionRepo.DeleteOthersByUserID(ctx, in.UserID, in.SessionToken); err != nil {
			return fmt.Errorf("failed to revoke sessions: %w", err)
		}
	}

	slog.Info("password changed",
		slog.String("user_id", in.UserID),
		slog.Bool("revoked_other_sessions", in.RevokeOtherSessions),
	)
	return nil
}

// IssueToken はユーザーのアクセストークンを発行する。
func (s *Service) IssueToken(ctx context.Context, userID string) (string, time.Time, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return "", time.Time{}, model.NewUnauthorizedError(model.MsgNoCredential)
	}
	return s.signer.Sign(user)
}

// JWKS はアクセストークン検証用の公開鍵セットを返す。
func (s *Service) JWKS() jose.JSONWebKeySet {
	return s.signer.JWKS()
}

// createSession はセッションを作成し永続化する。
func (s *Service) createSession(ctx context.Context, userID string, client ClientInfo) (*model.Session, error) {
	token, err := generateSessionToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session token: %w", err)
	}

	now := time.Now()
	session := &model.Session{
		ID:        uuid.New().String(),
		Token:     token,
		UserID:    userID,
		ExpiresAt: now.Add(time.Duration(s.config.SessionMaxAge) * time.Second),
		IPAddress: optionalString(client.IPAddress),
		UserAgent: optionalString(client.UserAgent),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return session, nil
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", model.NewInvalidRequestError("email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", model.NewInvalidRequestError("email is invalid")
	}
	return email, nil
}

func validatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return model.NewInvalidRequestError(fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	}
	if len(password) > MaxPasswordLength {
		return model.NewInvalidRequestError(fmt.Sprintf("password must be at most %d bytes", MaxPasswordLength))
	}
	return nil
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// generateSessionToken は暗号的に安全なセッショントークンを生成する。
func generateSessionToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
