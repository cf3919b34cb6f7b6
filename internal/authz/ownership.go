// Package authz はリソース所有者チェックとファミリーロールチェックを提供する。
//
// 認可失敗は*model.APIError（FORBIDDEN / NOT_FOUND）として返す。
// 呼び出し側の引数不足はErrMisconfiguredCheckを返し、403にはしない。
package authz

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/hitoshi/famorg/internal/model"
)

// ErrMisconfiguredCheck は認可チェックの呼び出し方が誤っていることを表す。
// 利用者起因の失敗ではなくプログラムの不具合で、500として扱う。
var ErrMisconfiguredCheck = errors.New("misconfigured authorization check")

// Owned は所有者チェックに必要なリソース情報。
type Owned struct {
	CreatedBy string
}

// LookupFunc はリソースIDから所有者情報を取得する。存在しない場合はnilを返す。
type LookupFunc func(ctx context.Context, resourceID string) (*Owned, error)

// OwnershipCheck は所有者チェックの入力。
// CreatedByを指定する直接モードか、ResourceIDとLookupを指定する参照モードのどちらかを使う。
type OwnershipCheck struct {
	UserID string

	// 直接モード
	CreatedBy string

	// 参照モード
	ResourceID string
	Lookup     LookupFunc
}

// RequireOwnership は呼び出し元がリソースの作成者であることを確認する。
// 参照モードでは存在確認を所有者確認より先に行い、存在しないリソースは常にNOT_FOUNDになる。
func RequireOwnership(ctx context.Context, in OwnershipCheck) error {
	switch {
	case in.CreatedBy != "":
		return compareOwner(in.UserID, in.CreatedBy)
	case in.ResourceID != "" && in.Lookup != nil:
		owned, err := in.Lookup(ctx, in.ResourceID)
		if err != nil {
			return fmt.Errorf("failed to look up resource: %w", err)
		}
		if owned == nil {
			return model.NewNotFoundError("")
		}
		return compareOwner(in.UserID, owned.CreatedBy)
	default:
		return fmt.Errorf("%w: ownership check needs CreatedBy or ResourceID with Lookup", ErrMisconfiguredCheck)
	}
}

func compareOwner(userID, createdBy string) error {
	if userID == "" || normalizeID(userID) != normalizeID(createdBy) {
		return model.NewNotOwnerError()
	}
	return nil
}

// normalizeID はIDを比較用の正規形にする。UUIDは小文字のハイフン区切り形式に揃える。
func normalizeID(id string) string {
	id = strings.TrimSpace(id)
	if u, err := uuid.Parse(id); err == nil {
		return u.String()
	}
	return id
}
