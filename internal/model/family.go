package model

import "time"

// Role はファミリー内でのロールを表す。
type Role string

const (
	// RoleParent は保護者ロール。メンバー管理やタスク作成が可能。
	RoleParent Role = "Parent"
	// RoleChild は子どもロール。
	RoleChild Role = "Child"
)

// Valid はロールが定義済みの値かどうかを返す。
func (r Role) Valid() bool {
	return r == RoleParent || r == RoleChild
}

// Family は家族グループを表す。
type Family struct {
	ID        string
	Name      string
	CreatedBy string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// FamilyMember はファミリーとユーザーの所属関係を表す。
type FamilyMember struct {
	ID        string
	FamilyID  string
	UserID    string
	Role      Role
	Karma     int
	JoinedAt  time.Time
	UpdatedAt time.Time
}

// FamilyMemberWithUser はメンバー情報にユーザーの表示情報を結合したもの。
type FamilyMemberWithUser struct {
	FamilyMember
	Name  string
	Email string
}

// FamilyMembership は認証時に取得する所属情報のスナップショット。
// 1リクエストの間だけ使用し、途中で再取得はしない。
type FamilyMembership struct {
	FamilyID string `json:"familyId"`
	Role     Role   `json:"role"`
}
