package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/famorg/internal/model"
)

// PostgresFamilyRepo はPostgreSQLを使用したファミリーリポジトリ。
type PostgresFamilyRepo struct {
	db *sql.DB
}

// NewPostgresFamilyRepo はPostgresFamilyRepoを生成する。
func NewPostgresFamilyRepo(db *sql.DB) *PostgresFamilyRepo {
	return &PostgresFamilyRepo{db: db}
}

// CreateWithParent はファミリーと作成者のParentメンバーシップを同一トランザクションで作成する。
func (r *PostgresFamilyRepo) CreateWithParent(ctx context.Context, family *model.Family, parent *model.FamilyMember) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO families (id, name, created_by, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		family.ID, family.Name, family.CreatedBy, family.CreatedAt, family.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert family: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO family_members (id, family_id, user_id, role, karma, joined_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		parent.ID, parent.FamilyID, parent.UserID, string(parent.Role), parent.Karma, parent.JoinedAt, parent.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert family member: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// FindByID は指定IDのファミリーを取得する。見つからない場合はnilを返す。
func (r *PostgresFamilyRepo) FindByID(ctx context.Context, id string) (*model.Family, error) {
	if !validIDs(id) {
		return nil, nil
	}
	family := &model.Family{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, created_by, created_at, updated_at FROM families WHERE id = $1`,
		id,
	).Scan(&family.ID, &family.Name, &family.CreatedBy, &family.CreatedAt, &family.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find family: %w", err)
	}
	return family, nil
}

// ListByUserID はユーザーが所属するファミリー一覧を返す。
func (r *PostgresFamilyRepo) ListByUserID(ctx context.Context, userID string) ([]*model.Family, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT f.id, f.name, f.created_by, f.created_at, f.updated_at
		 FROM families f
		 JOIN family_members m ON m.family_id = f.id
		 WHERE m.user_id = $1
		 ORDER BY f.created_at ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list families: %w", err)
	}
	defer rows.Close()

	var families []*model.Family
	for rows.Next() {
		f := &model.Family{}
		if err := rows.Scan(&f.ID, &f.Name, &f.CreatedBy, &f.CreatedAt, &f.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan family: %w", err)
		}
		families = append(families, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate families: %w", err)
	}
	return families, nil
}

// compile-time interface check
var _ FamilyRepository = (*PostgresFamilyRepo)(nil)
