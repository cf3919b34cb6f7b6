// Package user はユーザー管理のドメインロジックを提供する。
package user

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/famorg/internal/model"
	"github.com/hitoshi/famorg/internal/repository"
)

// DiaryDeleter は日記エントリの一括削除インターフェース。
type DiaryDeleter interface {
	DeleteByUserID(ctx context.Context, userID string) error
}

// MembershipDeleter はファミリー所属の一括削除インターフェース。
type MembershipDeleter interface {
	DeleteByUserID(ctx context.Context, userID string) error
}

// Service はユーザー管理のサービス層。
// 退会処理のビジネスロジックを提供する。
type Service struct {
	userRepo          repository.UserRepository
	sessionRepo       repository.SessionRepository
	diaryDeleter      DiaryDeleter
	membershipDeleter MembershipDeleter
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	diaryDeleter DiaryDeleter,
	membershipDeleter MembershipDeleter,
) *Service {
	return &Service{
		userRepo:          userRepo,
		sessionRepo:       sessionRepo,
		diaryDeleter:      diaryDeleter,
		membershipDeleter: membershipDeleter,
	}
}

// Get は指定IDのユーザーを返す。
func (s *Service) Get(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewNotFoundError("User not found")
	}
	return user, nil
}

// Withdraw はユーザーの退会処理を実行する。
// 削除順序: diary_entries → family_members → sessions → user（+ CASCADE: accounts）
// ファミリーとタスクは他のメンバーのために残す。
func (s *Service) Withdraw(ctx context.Context, userID string) error {
	if _, err := s.Get(ctx, userID); err != nil {
		return err
	}

	slog.Info("退会処理を開始します",
		slog.String("user_id", userID),
	)

	// 1. 日記を削除
	if s.diaryDeleter != nil {
		if err := s.diaryDeleter.DeleteByUserID(ctx, userID); err != nil {
			return fmt.Errorf("日記の削除に失敗しました: %w", err)
		}
	}

	// 2. ファミリー所属を削除
	if s.membershipDeleter != nil {
		if err := s.membershipDeleter.DeleteByUserID(ctx, userID); err != nil {
			return fmt.Errorf("ファミリー所属の削除に失敗しました: %w", err)
		}
	}

	// 3. セッションを削除
	if s.sessionRepo != nil {
		if err := s.sessionRepo.DeleteByUserID(ctx, userID); err != nil {
			return fmt.Errorf("セッションの削除に失敗しました: %w", err)
		}
	}

	// 4. ユーザーを削除（accountsはCASCADE削除）
	if err := s.userRepo.DeleteByID(ctx, userID); err != nil {
		return fmt.Errorf("ユーザーの削除に失敗しました: %w", err)
	}

	slog.Info("退会処理が完了しました",
		slog.String("user_id", userID),
	)

	return nil
}
