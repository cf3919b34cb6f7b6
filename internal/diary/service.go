// Package diary は個人日記のドメインロジックを提供する。
// エントリは作成者本人のみが閲覧・編集できる。
package diary

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/hitoshi/famorg/internal/authz"
	"github.com/hitoshi/famorg/internal/model"
	"github.com/hitoshi/famorg/internal/repository"
	"github.com/hitoshi/famorg/internal/security"
)

const (
	maxTitleLength   = 200
	maxContentLength = 20000
	// DateLayout はエントリ日付の入出力形式。
	DateLayout = "2006-01-02"
)

// Input はエントリの作成・更新の入力。EntryDateが空の場合は当日になる。
type Input struct {
	Title     string
	Content   string
	EntryDate string
}

// Service は日記のサービス層。
type Service struct {
	repo      repository.DiaryRepository
	sanitizer security.ContentSanitizer
	now       func() time.Time
}

// NewService はServiceを生成する。
func NewService(repo repository.DiaryRepository, sanitizer security.ContentSanitizer) *Service {
	return &Service{repo: repo, sanitizer: sanitizer, now: time.Now}
}

// Create はエントリを作成する。本文はサニタイズして保存する。
func (s *Service) Create(ctx context.Context, userID string, in Input) (*model.DiaryEntry, error) {
	title, content, date, err := s.validate(in)
	if err != nil {
		return nil, err
	}

	now := s.now()
	entry := &model.DiaryEntry{
		ID:        uuid.New().String(),
		Title:     title,
		Content:   content,
		EntryDate: date,
		CreatedBy: userID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to create diary entry: %w", err)
	}

	slog.Debug("diary entry created",
		slog.String("entry_id", entry.ID),
		slog.String("user_id", userID),
	)
	return entry, nil
}

// List はユーザー自身のエントリを日付の新しい順に返す。
func (s *Service) List(ctx context.Context, userID string) ([]*model.DiaryEntry, error) {
	entries, err := s.repo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list diary entries: %w", err)
	}
	return entries, nil
}

// Get はエントリを取得する。他人のエントリはFORBIDDEN、存在しない場合はNOT_FOUNDになる。
func (s *Service) Get(ctx context.Context, userID, entryID string) (*model.DiaryEntry, error) {
	return s.authorize(ctx, userID, entryID)
}

// Update はエントリを更新する。
func (s *Service) Update(ctx context.Context, userID, entryID string, in Input) (*model.DiaryEntry, error) {
	entry, err := s.authorize(ctx, userID, entryID)
	if err != nil {
		return nil, err
	}

	title, content, date, err := s.validate(in)
	if err != nil {
		return nil, err
	}
	entry.Title = title
	entry.Content = content
	entry.EntryDate = date
	entry.UpdatedAt = s.now()

	if err := s.repo.Update(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to update diary entry: %w", err)
	}
	return entry, nil
}

// Delete はエントリを削除する。
func (s *Service) Delete(ctx context.Context, userID, entryID string) error {
	if _, err := s.authorize(ctx, userID, entryID); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, entryID); err != nil {
		return fmt.Errorf("failed to delete diary entry: %w", err)
	}
	return nil
}

// authorize はエントリを参照し、所有者であることを確認する。
// 参照結果はRequireOwnershipのルックアップと共有する。
func (s *Service) authorize(ctx context.Context, userID, entryID string) (*model.DiaryEntry, error) {
	var entry *model.DiaryEntry
	err := authz.RequireOwnership(ctx, authz.OwnershipCheck{
		UserID:     userID,
		ResourceID: entryID,
		Lookup: func(ctx context.Context, id string) (*authz.Owned, error) {
			found, err := s.repo.FindByID(ctx, id)
			if err != nil || found == nil {
				return nil, err
			}
			entry = found
			return &authz.Owned{CreatedBy: found.CreatedBy}, nil
		},
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *Service) validate(in Input) (string, string, time.Time, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" || utf8.RuneCountInString(title) > maxTitleLength {
		return "", "", time.Time{}, model.NewInvalidRequestError(fmt.Sprintf("title must be 1-%d characters", maxTitleLength))
	}
	if utf8.RuneCountInString(in.Content) > maxContentLength {
		return "", "", time.Time{}, model.NewInvalidRequestError(fmt.Sprintf("content must be at most %d characters", maxContentLength))
	}

	date := s.now().UTC().Truncate(24 * time.Hour)
	if in.EntryDate != "" {
		parsed, err := time.Parse(DateLayout, in.EntryDate)
		if err != nil {
			return "", "", time.Time{}, model.NewInvalidRequestError("entryDate must be YYYY-MM-DD")
		}
		date = parsed
	}

	return title, s.sanitizer.Sanitize(in.Content), date, nil
}
