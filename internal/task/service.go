// Package task はファミリータスクとカルマ付与のドメインロジックを提供する。
package task

import (
	"context"
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

const (
	maxTitleLength       = 200
	maxDescriptionLength = 2000
	// MaxKarmaPoints はタスク1件に設定できるカルマの上限。
	MaxKarmaPoints = 1000
)

// CreateInput はタスク作成の入力。
type CreateInput struct {
	Title       string
	Description string
	AssignedTo  *string
	KarmaPoints int
}

// Service はタスク管理のサービス層。
type Service struct {
	tasks   repository.TaskRepository
	members repository.FamilyMembershipRepository
}

// NewService はServiceを生成する。
func NewService(tasks repository.TaskRepository, members repository.FamilyMembershipRepository) *Service {
	return &Service{tasks: tasks, members: members}
}

// Create はタスクを作成する。Parentのみ実行できる。
// 担当者を指定する場合は同じファミリーのメンバーでなければならない。
func (s *Service) Create(ctx context.Context, id *authn.Identity, familyID string, in CreateInput) (*model.Task, error) {
	if err := requireRole(ctx, id, familyID, authz.ParentOnly); err != nil {
		return nil, err
	}

	title := strings.TrimSpace(in.Title)
	if title == "" || utf8.RuneCountInString(title) > maxTitleLength {
		return nil, model.NewInvalidRequestError(fmt.Sprintf("title must be 1-%d characters", maxTitleLength))
	}
	if utf8.RuneCountInString(in.Description) > maxDescriptionLength {
		return nil, model.NewInvalidRequestError(fmt.Sprintf("description must be at most %d characters", maxDescriptionLength))
	}
	if in.KarmaPoints < 0 || in.KarmaPoints > MaxKarmaPoints {
		return nil, model.NewInvalidRequestError(fmt.Sprintf("karmaPoints must be between 0 and %d", MaxKarmaPoints))
	}

	if in.AssignedTo != nil {
		assignee, err := s.members.FindByFamilyAndUser(ctx, familyID, *in.AssignedTo)
		if err != nil {
			return nil, fmt.Errorf("failed to find assignee: %w", err)
		}
		if assignee == nil {
			return nil, model.NewInvalidRequestError("assignedTo must be a member of this family")
		}
	}

	now := time.Now()
	task := &model.Task{
		ID:          uuid.New().String(),
		FamilyID:    familyID,
		Title:       title,
		Description: in.Description,
		AssignedTo:  in.AssignedTo,
		KarmaPoints: in.KarmaPoints,
		CreatedBy:   id.UserID(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.tasks.Create(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	slog.Info("task created",
		slog.String("task_id", task.ID),
		slog.String("family_id", familyID),
		slog.Int("karma_points", task.KarmaPoints),
	)
	return task, nil
}

// List はファミリーのタスク一覧を返す。メンバーのみ閲覧できる。
func (s *Service) List(ctx context.Context, id *authn.Identity, familyID string) ([]*model.Task, error) {
	if err := requireRole(ctx, id, familyID, authz.AnyMember); err != nil {
		return nil, err
	}

	tasks, err := s.tasks.ListByFamilyID(ctx, familyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	return tasks, nil
}

// Complete はタスクを完了し、完了者にカルマを付与する。
// 担当者が決まっているタスクは担当者本人かParentのみ完了できる。
func (s *Service) Complete(ctx context.Context, id *authn.Identity, familyID, taskID string) (*model.Task, error) {
	if err := requireRole(ctx, id, familyID, authz.AnyMember); err != nil {
		return nil, err
	}

	task, err := s.findInFamily(ctx, familyID, taskID)
	if err != nil {
		return nil, err
	}
	if task.Completed() {
		return nil, model.NewTaskAlreadyCompletedError()
	}
	if task.AssignedTo != nil && *task.AssignedTo != id.UserID() {
		if err := requireRole(ctx, id, familyID, authz.ParentOnly); err != nil {
			return nil, err
		}
	}

	ok, err := s.tasks.Complete(ctx, task, id.UserID())
	if err != nil {
		return nil, fmt.Errorf("failed to complete task: %w", err)
	}
	if !ok {
		return nil, model.NewTaskAlreadyCompletedError()
	}

	slog.Info("task completed",
		slog.String("task_id", task.ID),
		slog.String("family_id", familyID),
		slog.String("user_id", id.UserID()),
		slog.Int("karma_points", task.KarmaPoints),
	)
	return task, nil
}

// Delete はタスクを削除する。Parentのみ実行できる。
func (s *Service) Delete(ctx context.Context, id *authn.Identity, familyID, taskID string) error {
	if err := requireRole(ctx, id, familyID, authz.ParentOnly); err != nil {
		return err
	}

	if _, err := s.findInFamily(ctx, familyID, taskID); err != nil {
		return err
	}
	if err := s.tasks.Delete(ctx, taskID); err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	return nil
}

// findInFamily はタスクを取得する。別ファミリーのタスクは存在しないものとして扱う。
func (s *Service) findInFamily(ctx context.Context, familyID, taskID string) (*model.Task, error) {
	task, err := s.tasks.FindByID(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to find task: %w", err)
	}
	if task == nil || task.FamilyID != familyID {
		return nil, model.NewNotFoundError("Task not found")
	}
	return task, nil
}

func requireRole(ctx context.Context, id *authn.Identity, familyID string, roles []model.Role) error {
	families := id.Families
	if families == nil {
		families = []model.FamilyMembership{}
	}
	return authz.RequireRole(ctx, authz.RoleCheck{
		UserID:       id.UserID(),
		FamilyID:     familyID,
		AllowedRoles: roles,
		UserFamilies: families,
	})
}
