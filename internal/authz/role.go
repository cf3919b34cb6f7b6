package authz

import (
	"context"
	"fmt"
	"slices"

	"github.com/hitoshi/famorg/internal/model"
)

// MembershipLookup は単一の所属情報を取得する。所属していない場合はnilを返す。
type MembershipLookup interface {
	FindByFamilyAndUser(ctx context.Context, familyID, userID string) (*model.FamilyMember, error)
}

// RoleCheck はファミリーロールチェックの入力。
// UserFamilies（認証時のスナップショット）とMemberships（都度参照）はどちらか一方だけを指定する。
// UserFamiliesは空スライスでも指定扱いになり、nilのみ未指定とみなす。
type RoleCheck struct {
	UserID       string
	FamilyID     string
	AllowedRoles []model.Role

	UserFamilies []model.FamilyMembership
	Memberships  MembershipLookup
}

// RequireRole は呼び出し元がファミリーに所属し、許可されたロールを持つことを確認する。
func RequireRole(ctx context.Context, in RoleCheck) error {
	if in.FamilyID == "" || len(in.AllowedRoles) == 0 {
		return fmt.Errorf("%w: role check needs FamilyID and AllowedRoles", ErrMisconfiguredCheck)
	}

	var role model.Role
	switch {
	case in.UserFamilies != nil && in.Memberships != nil:
		return fmt.Errorf("%w: role check accepts UserFamilies or Memberships, not both", ErrMisconfiguredCheck)
	case in.UserFamilies != nil:
		i := slices.IndexFunc(in.UserFamilies, func(m model.FamilyMembership) bool {
			return m.FamilyID == in.FamilyID
		})
		if i < 0 {
			return model.NewNotMemberError()
		}
		role = in.UserFamilies[i].Role
	case in.Memberships != nil:
		member, err := in.Memberships.FindByFamilyAndUser(ctx, in.FamilyID, in.UserID)
		if err != nil {
			return fmt.Errorf("failed to look up membership: %w", err)
		}
		if member == nil {
			return model.NewNotMemberError()
		}
		role = member.Role
	default:
		return fmt.Errorf("%w: role check needs UserFamilies or Memberships", ErrMisconfiguredCheck)
	}

	if !slices.Contains(in.AllowedRoles, role) {
		return model.NewWrongRoleError(in.AllowedRoles)
	}
	return nil
}

// AnyMember は全ロールを許可するAllowedRoles。
var AnyMember = []model.Role{model.RoleParent, model.RoleChild}

// ParentOnly はParentのみを許可するAllowedRoles。
var ParentOnly = []model.Role{model.RoleParent}
