// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザーを表す。
type User struct {
	ID            string
	Email         string
	Name          string
	EmailVerified bool
	Image         *string
	Birthdate     *time.Time
	Language      *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Account はユーザーの認証情報を表す。
// providerが"credential"の場合はPasswordHashにbcryptハッシュを保持する。
type Account struct {
	ID           string
	UserID       string
	ProviderID   string
	AccountID    string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ProviderCredential はメールアドレス+パスワード認証のプロバイダーID。
const ProviderCredential = "credential"

// Session はユーザーのログインセッションを表す。
// JWTから生成されたセッションではToken、IPAddress、UserAgentは空になる。
type Session struct {
	ID        string
	Token     string
	UserID    string
	ExpiresAt time.Time
	IPAddress *string
	UserAgent *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SessionWithUser はセッションと所有ユーザーの組。
type SessionWithUser struct {
	Session *Session
	User    *User
}
