package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/famorg/internal/model"
)

// PostgresMembershipRepo はPostgreSQLを使用したファミリー所属リポジトリ。
type PostgresMembershipRepo struct {
	db *sql.DB
}

// NewPostgresMembershipRepo はPostgresMembershipRepoを生成する。
func NewPostgresMembershipRepo(db *sql.DB) *PostgresMembershipRepo {
	return &PostgresMembershipRepo{db: db}
}

// FindByFamilyAndUser はファミリーIDとユーザーIDで所属情報を取得する。
// 所属していない場合はnilを返す。
func (r *PostgresMembershipRepo) FindByFamilyAndUser(ctx context.Context, familyID, userID string) (*model.FamilyMember, error) {
	if !validIDs(familyID, userID) {
		return nil, nil
	}
	m := &model.FamilyMember{}
	var role string
	err := r.db.QueryRowContext(ctx,
		`SELECT id, family_id, user_id, role, karma, joined_at, updated_at
		 FROM family_members
		 WHERE family_id = $1 AND user_id = $2`,
		familyID, userID,
	).Scan(&m.ID, &m.FamilyID, &m.UserID, &role, &m.Karma, &m.JoinedAt, &m.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find family member: %w", err)
	}
	m.Role = model.Role(role)
	return m, nil
}

// ListMembershipsByUserID はユーザーの所属ファミリーとロールの一覧を返す。
func (r *PostgresMembershipRepo) ListMembershipsByUserID(ctx context.Context, userID string) ([]model.FamilyMembership, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT family_id, role FROM family_members WHERE user_id = $1 ORDER BY joined_at ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list memberships: %w", err)
	}
	defer rows.Close()

	memberships := []model.FamilyMembership{}
	for rows.Next() {
		var fm model.FamilyMembership
		var role string
		if err := rows.Scan(&fm.FamilyID, &role); err != nil {
			return nil, fmt.Errorf("failed to scan membership: %w", err)
		}
		fm.Role = model.Role(role)
		memberships = append(memberships, fm)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate memberships: %w", err)
	}
	return memberships, nil
}

// ListByFamilyID はファミリーのメンバー一覧をユーザー情報付きで返す。
// カルマの降順に並べる。
func (r *PostgresMembershipRepo) ListByFamilyID(ctx context.Context, familyID string) ([]model.FamilyMemberWithUser, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT m.id, m.family_id, m.user_id, m.role, m.karma, m.joined_at, m.updated_at, u.name, u.email
		 FROM family_members m
		 JOIN users u ON u.id = m.user_id
		 WHERE m.family_id = $1
		 ORDER BY m.karma DESC, m.joined_at ASC`,
		familyID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list family members: %w", err)
	}
	defer rows.Close()

	var members []model.FamilyMemberWithUser
	for rows.Next() {
		var m model.FamilyMemberWithUser
		var role string
		if err := rows.Scan(&m.ID, &m.FamilyID, &m.UserID, &role, &m.Karma, &m.JoinedAt, &m.UpdatedAt, &m.Name, &m.Email); err != nil {
			return nil, fmt.Errorf("failed to scan family member: %w", err)
		}
		m.Role = model.Role(role)
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate family members: %w", err)
	}
	return members, nil
}

// Create はメンバーを追加する。既に所属している場合はErrDuplicateを返す。
func (r *PostgresMembershipRepo) Create(ctx context.Context, member *model.FamilyMember) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO family_members (id, family_id, user_id, role, karma, joined_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		member.ID, member.FamilyID, member.UserID, string(member.Role), member.Karma, member.JoinedAt, member.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to create family member: %w", err)
	}
	return nil
}

// UpdateRole はメンバーのロールを更新する。
// 最後のParentを降格する場合はErrLastParentを返す。
func (r *PostgresMembershipRepo) UpdateRole(ctx context.Context, familyID, userID string, role model.Role) error {
	return r.mutateKeepingParent(ctx, familyID, userID, role != model.RoleParent, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`UPDATE family_members SET role = $3, updated_at = now() WHERE family_id = $1 AND user_id = $2`,
			familyID, userID, string(role),
		)
		if err != nil {
			return fmt.Errorf("failed to update member role: %w", err)
		}
		return nil
	})
}

// Delete はメンバーを削除する。
// 最後のParentを削除する場合はErrLastParentを返す。
func (r *PostgresMembershipRepo) Delete(ctx context.Context, familyID, userID string) error {
	return r.mutateKeepingParent(ctx, familyID, userID, true, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`DELETE FROM family_members WHERE family_id = $1 AND user_id = $2`,
			familyID, userID,
		)
		if err != nil {
			return fmt.Errorf("failed to delete family member: %w", err)
		}
		return nil
	})
}

// mutateKeepingParent はファミリー行をFOR UPDATEでロックしたトランザクション内でopを実行する。
// dropsParentがtrueで対象が最後のParentの場合はopを実行せずErrLastParentを返す。
// 同一ファミリーへの変更はロックで直列化されるため、Parentの数は常に最新の値で判定される。
func (r *PostgresMembershipRepo) mutateKeepingParent(ctx context.Context, familyID, userID string, dropsParent bool, op func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `SELECT 1 FROM families WHERE id = $1 FOR UPDATE`, familyID); err != nil {
		return fmt.Errorf("failed to lock family: %w", err)
	}

	if dropsParent {
		var current string
		err := tx.QueryRowContext(ctx,
			`SELECT role FROM family_members WHERE family_id = $1 AND user_id = $2`,
			familyID, userID,
		).Scan(&current)
		if err != nil && err != sql.ErrNoRows {
			return fmt.Errorf("failed to find family member: %w", err)
		}

		if current == string(model.RoleParent) {
			var parents int
			if err := tx.QueryRowContext(ctx,
				`SELECT count(*) FROM family_members WHERE family_id = $1 AND role = $2`,
				familyID, string(model.RoleParent),
			).Scan(&parents); err != nil {
				return fmt.Errorf("failed to count parents: %w", err)
			}
			if parents <= 1 {
				return ErrLastParent
			}
		}
	}

	if err := op(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// DeleteByUserID はユーザーの全所属情報を削除する。
func (r *PostgresMembershipRepo) DeleteByUserID(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM family_members WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete user memberships: %w", err)
	}
	return nil
}

// compile-time interface check
var _ FamilyMembershipRepository = (*PostgresMembershipRepo)(nil)
