package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/famorg/internal/model"
)

// PostgresDiaryRepo はPostgreSQLを使用した日記リポジトリ。
type PostgresDiaryRepo struct {
	db *sql.DB
}

// NewPostgresDiaryRepo はPostgresDiaryRepoを生成する。
func NewPostgresDiaryRepo(db *sql.DB) *PostgresDiaryRepo {
	return &PostgresDiaryRepo{db: db}
}

// Create は日記エントリを作成する。
func (r *PostgresDiaryRepo) Create(ctx context.Context, entry *model.DiaryEntry) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO diary_entries (id, title, content, entry_date, created_by, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		entry.ID, entry.Title, entry.Content, entry.EntryDate, entry.CreatedBy, entry.CreatedAt, entry.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create diary entry: %w", err)
	}
	return nil
}

// FindByID は指定IDのエントリを取得する。見つからない場合はnilを返す。
func (r *PostgresDiaryRepo) FindByID(ctx context.Context, id string) (*model.DiaryEntry, error) {
	if !validIDs(id) {
		return nil, nil
	}
	e := &model.DiaryEntry{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, title, content, entry_date, created_by, created_at, updated_at
		 FROM diary_entries WHERE id = $1`,
		id,
	).Scan(&e.ID, &e.Title, &e.Content, &e.EntryDate, &e.CreatedBy, &e.CreatedAt, &e.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find diary entry: %w", err)
	}
	return e, nil
}

// ListByUserID はユーザーのエントリをentry_dateの降順で返す。
func (r *PostgresDiaryRepo) ListByUserID(ctx context.Context, userID string) ([]*model.DiaryEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, title, content, entry_date, created_by, created_at, updated_at
		 FROM diary_entries
		 WHERE created_by = $1
		 ORDER BY entry_date DESC, created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list diary entries: %w", err)
	}
	defer rows.Close()

	var entries []*model.DiaryEntry
	for rows.Next() {
		e := &model.DiaryEntry{}
		if err := rows.Scan(&e.ID, &e.Title, &e.Content, &e.EntryDate, &e.CreatedBy, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan diary entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate diary entries: %w", err)
	}
	return entries, nil
}

// Update はエントリのタイトル・本文・日付を更新する。
func (r *PostgresDiaryRepo) Update(ctx context.Context, entry *model.DiaryEntry) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE diary_entries SET title = $2, content = $3, entry_date = $4, updated_at = $5
		 WHERE id = $1`,
		entry.ID, entry.Title, entry.Content, entry.EntryDate, entry.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update diary entry: %w", err)
	}
	return nil
}

// Delete は指定IDのエントリを削除する。
func (r *PostgresDiaryRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM diary_entries WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete diary entry: %w", err)
	}
	return nil
}

// DeleteByUserID はユーザーの全エントリを削除する。
func (r *PostgresDiaryRepo) DeleteByUserID(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM diary_entries WHERE created_by = $1`, userID)
	if err != nil {
		return fmt.Errorf("failed to delete user diary entries: %w", err)
	}
	return nil
}

// compile-time interface check
var _ DiaryRepository = (*PostgresDiaryRepo)(nil)
