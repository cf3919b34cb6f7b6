// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"

	"github.com/hitoshi/famorg/internal/model"
)

// ErrDuplicate は一意制約違反を表す。
// 呼び出し側でドメインエラー（メール重複、メンバー重複など）に変換する。
var ErrDuplicate = errors.New("duplicate record")

// ErrLastParent はファミリーからParentがいなくなる変更であることを表す。
var ErrLastParent = errors.New("family must keep at least one parent")

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)
	// FindByEmail はメールアドレスでユーザーを取得する。見つからない場合はnilを返す。
	// メールアドレスは大文字小文字を区別しない。
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	// CreateWithAccount はユーザーと認証アカウントを同一トランザクションで作成する。
	// メールアドレスが重複している場合はErrDuplicateを返す。
	CreateWithAccount(ctx context.Context, user *model.User, account *model.Account) error
	// DeleteByID は指定IDのユーザーを削除する。
	// 関連するaccounts、sessions、family_members、diary_entriesはCASCADE削除される。
	DeleteByID(ctx context.Context, id string) error
}

// AccountRepository は認証アカウントの永続化インターフェース。
type AccountRepository interface {
	// FindByUserAndProvider はユーザーIDとプロバイダーIDでアカウントを取得する。
	// 見つからない場合はnilを返す。
	FindByUserAndProvider(ctx context.Context, userID, providerID string) (*model.Account, error)
	// UpdatePasswordHash はアカウントのパスワードハッシュを更新する。
	UpdatePasswordHash(ctx context.Context, accountID, passwordHash string) error
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByToken は指定トークンのセッションを取得する。期限切れの場合はnilを返す。
	FindByToken(ctx context.Context, token string) (*model.Session, error)
	// DeleteByToken は指定トークンのセッションを削除する。
	DeleteByToken(ctx context.Context, token string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
	// DeleteOthersByUserID は指定ユーザーのセッションのうちkeepToken以外を削除する。
	DeleteOthersByUserID(ctx context.Context, userID, keepToken string) error
	// DeleteExpired は期限切れセッションを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context) (int64, error)
}

// FamilyRepository はファミリーの永続化インターフェース。
type FamilyRepository interface {
	// CreateWithParent はファミリーと作成者のParentメンバーシップを同一トランザクションで作成する。
	CreateWithParent(ctx context.Context, family *model.Family, parent *model.FamilyMember) error
	// FindByID は指定IDのファミリーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Family, error)
	// ListByUserID はユーザーが所属するファミリー一覧を返す。
	ListByUserID(ctx context.Context, userID string) ([]*model.Family, error)
}

// FamilyMembershipRepository はファミリー所属情報の永続化インターフェース。
type FamilyMembershipRepository interface {
	// FindByFamilyAndUser はファミリーIDとユーザーIDで所属情報を取得する。
	// 所属していない場合はnilを返す。
	FindByFamilyAndUser(ctx context.Context, familyID, userID string) (*model.FamilyMember, error)
	// ListMembershipsByUserID はユーザーの所属ファミリーとロールの一覧を返す。
	ListMembershipsByUserID(ctx context.Context, userID string) ([]model.FamilyMembership, error)
	// ListByFamilyID はファミリーのメンバー一覧をユーザー情報付きで返す。
	ListByFamilyID(ctx context.Context, familyID string) ([]model.FamilyMemberWithUser, error)
	// Create はメンバーを追加する。既に所属している場合はErrDuplicateを返す。
	Create(ctx context.Context, member *model.FamilyMember) error
	// UpdateRole はメンバーのロールを更新する。
	// 最後のParentを降格する場合は更新せずErrLastParentを返す。判定と更新はファミリー単位で直列化される。
	UpdateRole(ctx context.Context, familyID, userID string, role model.Role) error
	// Delete はメンバーを削除する。
	// 最後のParentを削除する場合は削除せずErrLastParentを返す。判定と削除はファミリー単位で直列化される。
	Delete(ctx context.Context, familyID, userID string) error
	// DeleteByUserID はユーザーの全所属情報を削除する。
	DeleteByUserID(ctx context.Context, userID string) error
}

// TaskRepository はタスクの永続化インターフェース。
type TaskRepository interface {
	// Create はタスクを作成する。
	Create(ctx context.Context, task *model.Task) error
	// FindByID は指定IDのタスクを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Task, error)
	// ListByFamilyID はファミリーのタスクを作成日時の降順で返す。
	ListByFamilyID(ctx context.Context, familyID string) ([]*model.Task, error)
	// Complete はタスクを完了済みにし、完了者のカルマにKarmaPointsを加算する。
	// 両方の更新は同一トランザクションで行う。既に完了済みの場合はfalseを返す。
	Complete(ctx context.Context, task *model.Task, completedBy string) (bool, error)
	// Delete は指定IDのタスクを削除する。
	Delete(ctx context.Context, id string) error
}

// DiaryRepository は日記エントリの永続化インターフェース。
type DiaryRepository interface {
	// Create は日記エントリを作成する。
	Create(ctx context.Context, entry *model.DiaryEntry) error
	// FindByID は指定IDのエントリを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.DiaryEntry, error)
	// ListByUserID はユーザーのエントリをentry_dateの降順で返す。
	ListByUserID(ctx context.Context, userID string) ([]*model.DiaryEntry, error)
	// Update はエントリのタイトル・本文・日付を更新する。
	Update(ctx context.Context, entry *model.DiaryEntry) error
	// Delete は指定IDのエントリを削除する。
	Delete(ctx context.Context, id string) error
	// DeleteByUserID はユーザーの全エントリを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
}
