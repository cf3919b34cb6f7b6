// Package model はドメインモデルを定義する。
package model

import (
	"fmt"
	"strings"
)

// APIError は統一エラーフォーマットを表す。
// レスポンスボディにはMessageとCodeのみを含め、内部情報は含めない。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, role, ownership, validation, family, task, system
}

// 認可拒否のカテゴリ。メトリクスのラベルにも使う。
const (
	CategoryRole      = "role"
	CategoryOwnership = "ownership"
)

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnauthorized         = "UNAUTHORIZED"
	ErrCodeForbidden            = "FORBIDDEN"
	ErrCodeNotFound             = "NOT_FOUND"
	ErrCodeInvalidRequest       = "INVALID_REQUEST"
	ErrCodeEmailTaken           = "EMAIL_TAKEN"
	ErrCodeAlreadyMember        = "ALREADY_MEMBER"
	ErrCodeLastParent           = "LAST_PARENT"
	ErrCodeTaskAlreadyCompleted = "TASK_ALREADY_COMPLETED"
	ErrCodeRateLimited          = "RATE_LIMITED"
	ErrCodeInternal             = "INTERNAL_ERROR"
)

// 認証ミドルウェアが返す固定メッセージ
const (
	MsgInvalidJWT        = "Invalid or expired JWT token"
	MsgNoCredential      = "No valid session or bearer token found"
	MsgSessionValidation = "Session validation failed"
	MsgSessionRequired   = "A session token is required to issue a JWT"
)

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  message,
		Category: "auth",
	}
}

// NewInvalidCredentialsError はメールアドレスまたはパスワード不一致のエラーを生成する。
// どちらが誤っているかは返さない。
func NewInvalidCredentialsError() *APIError {
	return NewUnauthorizedError("Invalid email or password")
}

// NewForbiddenError は権限不足エラーを生成する。
func NewForbiddenError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  message,
		Category: "auth",
	}
}

// NewNotMemberError はファミリー非所属のエラーを生成する。
func NewNotMemberError() *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  "You are not a member of this family",
		Category: CategoryRole,
	}
}

// NewWrongRoleError はロール不足のエラーを生成する。
// rolesは "Parent" や "Parent or Child" のように人が読める形に整形する。
func NewWrongRoleError(roles []Role) *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  fmt.Sprintf("You must be a %s in this family to perform this action", JoinRoles(roles)),
		Category: CategoryRole,
	}
}

// NewNotOwnerError はリソース作成者以外のアクセスエラーを生成する。
func NewNotOwnerError() *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  "You do not have permission to access this resource",
		Category: CategoryOwnership,
	}
}

// NewNotFoundError はリソース未検出エラーを生成する。
func NewNotFoundError(message string) *APIError {
	if message == "" {
		message = "Resource not found"
	}
	return &APIError{
		Code:     ErrCodeNotFound,
		Message:  message,
		Category: "validation",
	}
}

// NewInvalidRequestError はリクエスト内容の検証エラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  reason,
		Category: "validation",
	}
}

// NewEmailTakenError はメールアドレス重複エラーを生成する。
func NewEmailTakenError() *APIError {
	return &APIError{
		Code:     ErrCodeEmailTaken,
		Message:  "A user with this email already exists",
		Category: "auth",
	}
}

// NewAlreadyMemberError は既にファミリーに所属しているユーザーを追加しようとした場合のエラーを生成する。
func NewAlreadyMemberError() *APIError {
	return &APIError{
		Code:     ErrCodeAlreadyMember,
		Message:  "User is already a member of this family",
		Category: "family",
	}
}

// NewLastParentError は最後のParentを降格・削除しようとした場合のエラーを生成する。
func NewLastParentError() *APIError {
	return &APIError{
		Code:     ErrCodeLastParent,
		Message:  "A family must keep at least one Parent",
		Category: "family",
	}
}

// NewTaskAlreadyCompletedError は完了済みタスクを再度完了しようとした場合のエラーを生成する。
func NewTaskAlreadyCompletedError() *APIError {
	return &APIError{
		Code:     ErrCodeTaskAlreadyCompleted,
		Message:  "Task is already completed",
		Category: "task",
	}
}

// JoinRoles はロール一覧を "A"、"A or B"、"A, B or C" の形に整形する。
func JoinRoles(roles []Role) string {
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = string(r)
	}
	switch len(names) {
	case 0:
		return ""
	case 1:
		return names[0]
	default:
		return strings.Join(names[:len(names)-1], ", ") + " or " + names[len(names)-1]
	}
}
