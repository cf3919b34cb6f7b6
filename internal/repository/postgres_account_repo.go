package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/famorg/internal/model"
)

// PostgresAccountRepo はPostgreSQLを使用した認証アカウントリポジトリ。
type PostgresAccountRepo struct {
	db *sql.DB
}

// NewPostgresAccountRepo はPostgresAccountRepoを生成する。
func NewPostgresAccountRepo(db *sql.DB) *PostgresAccountRepo {
	return &PostgresAccountRepo{db: db}
}

// FindByUserAndProvider はユーザーIDとプロバイダーIDでアカウントを取得する。
// 見つからない場合はnilを返す。
func (r *PostgresAccountRepo) FindByUserAndProvider(ctx context.Context, userID, providerID string) (*model.Account, error) {
	if !validIDs(userID) {
		return nil, nil
	}
	account := &model.Account{}
	var passwordHash sql.NullString
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, provider_id, account_id, password_hash, created_at, updated_at
		 FROM accounts
		 WHERE user_id = $1 AND provider_id = $2`,
		userID, providerID,
	).Scan(&account.ID, &account.UserID, &account.ProviderID, &account.AccountID,
		&passwordHash, &account.CreatedAt, &account.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find account: %w", err)
	}

	account.PasswordHash = passwordHash.String
	return account, nil
}

// UpdatePasswordHash はアカウントのパスワードハッシュを更新する。
func (r *PostgresAccountRepo) UpdatePasswordHash(ctx context.Context, accountID, passwordHash string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE accounts SET password_hash = $2, updated_at = now() WHERE id = $1`,
		accountID, passwordHash,
	)
	if err != nil {
		return fmt.Errorf("failed to update password hash: %w", err)
	}
	return nil
}

// compile-time interface check
var _ AccountRepository = (*PostgresAccountRepo)(nil)
