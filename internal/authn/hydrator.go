package authn

import (
	"context"
	"log/slog"

	"github.com/hitoshi/famorg/internal/metrics"
	"github.com/hitoshi/famorg/internal/model"
)

// FamilyMembershipProvider はユーザーのファミリー所属一覧を返す。
// ファミリーモジュールが実装し、起動時に注入する。
type FamilyMembershipProvider interface {
	ListFamiliesForUser(ctx context.Context, userID string) ([]model.FamilyMembership, error)
}

// Enrichment はベストエフォートで取得したファミリー所属情報。
// Availableがfalseの場合、呼び出し側はFamiliesを空集合として扱う。
type Enrichment struct {
	Families  []model.FamilyMembership
	Available bool
}

// Hydrator は認証済みユーザーにファミリー所属情報を付与する。
type Hydrator struct {
	provider FamilyMembershipProvider
	metrics  metrics.MetricsCollector
}

// NewHydrator はHydratorを生成する。
func NewHydrator(provider FamilyMembershipProvider, mc metrics.MetricsCollector) *Hydrator {
	if mc == nil {
		mc = metrics.Nop{}
	}
	return &Hydrator{provider: provider, metrics: mc}
}

// Hydrate はユーザーの所属一覧を取得する。
// 取得に失敗しても認証は失敗させず、Available=falseの空の結果を返す。
func (h *Hydrator) Hydrate(ctx context.Context, userID string) (enr Enrichment) {
	defer func() {
		if rec := recover(); rec != nil {
			h.degrade(userID, slog.Any("panic", rec))
			enr = Enrichment{Families: []model.FamilyMembership{}}
		}
	}()

	families, err := h.provider.ListFamiliesForUser(ctx, userID)
	if err != nil {
		h.degrade(userID, slog.String("error", err.Error()))
		return Enrichment{Families: []model.FamilyMembership{}}
	}
	if families == nil {
		families = []model.FamilyMembership{}
	}
	return Enrichment{Families: families, Available: true}
}

func (h *Hydrator) degrade(userID string, reason slog.Attr) {
	h.metrics.RecordHydrationFailure()
	slog.Warn("family membership hydration failed; continuing with empty families",
		slog.String("user_id", userID),
		reason,
	)
}
