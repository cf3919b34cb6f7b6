// Package family はファミリーとメンバーシップ管理のドメインロジックを提供する。
package family

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/hitoshi/famorg/internal/authn"
	"github.com/hitoshi/famorg/internal/authz"
	"github.com/hitoshi/famorg/internal/model"
	"github.com/hitoshi/famorg/internal/repository"
)

// maxFamilyNameLength はファミリー名の最大文字数。
const maxFamilyNameLength = 100

// Detail はファミリーとメンバー一覧。
type Detail struct {
	Family  *model.Family
	Members []model.FamilyMemberWithUser
}

// KarmaBalance はメンバーごとのカルマ残高。
type KarmaBalance struct {
	UserID string
	Name   string
	Role   model.Role
	Karma  int
}

// Service はファミリー管理のサービス層。
// 認証パイプラインにはFamilyMembershipProviderとして所属一覧を提供する。
type Service struct {
	families repository.FamilyRepository
	members  repository.FamilyMembershipRepository
	users    repository.UserRepository
}

// NewService はServiceを生成する。
func NewService(
	families repository.FamilyRepository,
	members repository.FamilyMembershipRepository,
	users repository.UserRepository,
) *Service {
	return &Service{families: families, members: members, users: users}
}

// ListFamiliesForUser はユーザーの所属ファミリーとロールの一覧を返す。
func (s *Service) ListFamiliesForUser(ctx context.Context, userID string) ([]model.FamilyMembership, error) {
	memberships, err := s.members.ListMembershipsByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list memberships: %w", err)
	}
	return memberships, nil
}

// Create はファミリーを作成し、作成者をParentとして登録する。
func (s *Service) Create(ctx context.Context, id *authn.Identity, name string) (*model.Family, error) {
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > maxFamilyNameLength {
		return nil, model.NewInvalidRequestError(fmt.Sprintf("name must be 1-%d characters", maxFamilyNameLength))
	}

	now := time.Now()
	family := &model.Family{
		ID:        uuid.New().String(),
		Name:      name,
		CreatedBy: id.UserID(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	parent := &model.FamilyMember{
		ID:        uuid.New().String(),
		FamilyID:  family.ID,
		UserID:    id.UserID(),
		Role:      model.RoleParent,
		JoinedAt:  now,
		UpdatedAt: now,
	}

	if err := s.families.CreateWithParent(ctx, family, parent); err != nil {
		return nil, fmt.Errorf("failed to create family: %w", err)
	}

	slog.Info("family created",
		slog.String("family_id", family.ID),
		slog.String("user_id", id.UserID()),
	)
	return family, nil
}

// ListForUser は呼び出し元が所属するファミリー一覧を返す。
func (s *Service) ListForUser(ctx context.Context, id *authn.Identity) ([]*model.Family, error) {
	families, err := s.families.ListByUserID(ctx, id.UserID())
	if err != nil {
		return nil, fmt.Errorf("failed to list families: %w", err)
	}
	return families, nil
}

// Get はファミリーとメンバー一覧を返す。メンバーのみ閲覧できる。
func (s *Service) Get(ctx context.Context, id *authn.Identity, familyID string) (*Detail, error) {
	if err := s.requireSnapshotRole(ctx, id, familyID, authz.AnyMember); err != nil {
		return nil, err
	}

	family, err := s.families.FindByID(ctx, familyID)
	if err != nil {
		return nil, fmt.Errorf("failed to find family: %w", err)
	}
	if family == nil {
		return nil, model.NewNotFoundError("Family not found")
	}

	members, err := s.members.ListByFamilyID(ctx, familyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	return &Detail{Family: family, Members: members}, nil
}

// AddMember はメールアドレスで指定したユーザーをファミリーに追加する。Parentのみ実行できる。
func (s *Service) AddMember(ctx context.Context, id *authn.Identity, familyID, email string, role model.Role) (*model.FamilyMember, error) {
	if err := s.requireFreshRole(ctx, id, familyID, authz.ParentOnly); err != nil {
		return nil, err
	}
	if !role.Valid() {
		return nil, model.NewInvalidRequestError("role must be Parent or Child")
	}

	user, err := s.users.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewNotFoundError("User not found")
	}

	now := time.Now()
	member := &model.FamilyMember{
		ID:        uuid.New().String(),
		FamilyID:  familyID,
		UserID:    user.ID,
		Role:      role,
		JoinedAt:  now,
		UpdatedAt: now,
	}
	if err := s.members.Create(ctx, member); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, model.NewAlreadyMemberError()
		}
		return nil, fmt.Errorf("failed to add member: %w", err)
	}

	slog.Info("family member added",
		slog.String("family_id", familyID),
		slog.String("user_id", user.ID),
		slog.String("role", string(role)),
		slog.String("added_by", id.UserID()),
	)
	return member, nil
}

// ChangeRole はメンバーのロールを変更する。Parentのみ実行できる。
// 最後のParentを降格することはできない。
func (s *Service) ChangeRole(ctx context.Context, id *authn.Identity, familyID, targetUserID string, role model.Role) error {
	if err := s.requireFreshRole(ctx, id, familyID, authz.ParentOnly); err != nil {
		return err
	}
	if !role.Valid() {
		return model.NewInvalidRequestError("role must be Parent or Child")
	}

	target, err := s.findMember(ctx, familyID, targetUserID)
	if err != nil {
		return err
	}
	if target.Role == role {
		return nil
	}

	if err := s.members.UpdateRole(ctx, familyID, targetUserID, role); err != nil {
		if errors.Is(err, repository.ErrLastParent) {
			return model.NewLastParentError()
		}
		return fmt.Errorf("failed to change role: %w", err)
	}

	slog.Info("family member role changed",
		slog.String("family_id", familyID),
		slog.String("user_id", targetUserID),
		slog.String("role", string(role)),
		slog.String("changed_by", id.UserID()),
	)
	return nil
}

// RemoveMember はメンバーをファミリーから外す。
// Parentは任意のメンバーを、その他のメンバーは自分自身のみを外せる。
func (s *Service) RemoveMember(ctx context.Context, id *authn.Identity, familyID, targetUserID string) error {
	if targetUserID != id.UserID() {
		if err := s.requireFreshRole(ctx, id, familyID, authz.ParentOnly); err != nil {
			return err
		}
	}

	if _, err := s.findMember(ctx, familyID, targetUserID); err != nil {
		return err
	}

	if err := s.members.Delete(ctx, familyID, targetUserID); err != nil {
		if errors.Is(err, repository.ErrLastParent) {
			return model.NewLastParentError()
		}
		return fmt.Errorf("failed to remove member: %w", err)
	}

	slog.Info("family member removed",
		slog.String("family_id", familyID),
		slog.String("user_id", targetUserID),
		slog.String("removed_by", id.UserID()),
	)
	return nil
}

// Karma はメンバーごとのカルマ残高を多い順に返す。
func (s *Service) Karma(ctx context.Context, id *authn.Identity, familyID string) ([]KarmaBalance, error) {
	if err := s.requireSnapshotRole(ctx, id, familyID, authz.AnyMember); err != nil {
		return nil, err
	}

	members, err := s.members.ListByFamilyID(ctx, familyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}

	balances := make([]KarmaBalance, 0, len(members))
	for _, m := range members {
		balances = append(balances, KarmaBalance{UserID: m.UserID, Name: m.Name, Role: m.Role, Karma: m.Karma})
	}
	return balances, nil
}

// requireSnapshotRole は認証時の所属スナップショットでロールを確認する。
func (s *Service) requireSnapshotRole(ctx context.Context, id *authn.Identity, familyID string, roles []model.Role) error {
	return authz.RequireRole(ctx, authz.RoleCheck{
		UserID:       id.UserID(),
		FamilyID:     familyID,
		AllowedRoles: roles,
		UserFamilies: snapshot(id),
	})
}

// requireFreshRole はメンバーシップを都度参照してロールを確認する。
// ロール変更など、スナップショットの遅れが問題になる操作で使う。
func (s *Service) requireFreshRole(ctx context.Context, id *authn.Identity, familyID string, roles []model.Role) error {
	return authz.RequireRole(ctx, authz.RoleCheck{
		UserID:       id.UserID(),
		FamilyID:     familyID,
		AllowedRoles: roles,
		Memberships:  s.members,
	})
}

func (s *Service) findMember(ctx context.Context, familyID, userID string) (*model.FamilyMember, error) {
	member, err := s.members.FindByFamilyAndUser(ctx, familyID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find member: %w", err)
	}
	if member == nil {
		return nil, model.NewNotFoundError("Member not found")
	}
	return member, nil
}

// snapshot はIdentityの所属スナップショットを返す。
// 取得に失敗していた場合も空スライスを返し、所属なしとして扱う。
func snapshot(id *authn.Identity) []model.FamilyMembership {
	if id.Families == nil {
		return []model.FamilyMembership{}
	}
	return id.Families
}

var _ authn.FamilyMembershipProvider = (*Service)(nil)
