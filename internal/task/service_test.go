package task

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hitoshi/famorg/internal/authn"
	"github.com/hitoshi/famorg/internal/model"
)

// --- モック ---

type mockTaskRepo struct {
	tasks       map[string]*model.Task
	created     []*model.Task
	deleted     []string
	completeFn  func(ctx context.Context, task *model.Task, completedBy string) (bool, error)
	completedBy string
}

func newMockTaskRepo(tasks ...*model.Task) *mockTaskRepo {
	m := &mockTaskRepo{tasks: map[string]*model.Task{}}
	for _, t := range tasks {
		m.tasks[t.ID] = t
	}
	return m
}

func (m *mockTaskRepo) Create(ctx context.Context, task *model.Task) error {
	m.created = append(m.created, task)
	m.tasks[task.ID] = task
	return nil
}
func (m *mockTaskRepo) FindByID(ctx context.Context, id string) (*model.Task, error) {
	return m.tasks[id], nil
}
func (m *mockTaskRepo) ListByFamilyID(ctx context.Context, familyID string) ([]*model.Task, error) {
	var result []*model.Task
	for _, t := range m.tasks {
		if t.FamilyID == familyID {
			result = append(result, t)
		}
	}
	return result, nil
}
func (m *mockTaskRepo) Complete(ctx context.Context, task *model.Task, completedBy string) (bool, error) {
	if m.completeFn != nil {
		return m.completeFn(ctx, task, completedBy)
	}
	now := time.Now()
	m.completedBy = completedBy
	task.CompletedBy = &completedBy
	task.CompletedAt = &now
	return true, nil
}
func (m *mockTaskRepo) Delete(ctx context.Context, id string) error {
	m.deleted = append(m.deleted, id)
	delete(m.tasks, id)
	return nil
}

type mockMembershipRepo struct {
	members map[string]model.Role
}

func (m *mockMembershipRepo) FindByFamilyAndUser(ctx context.Context, familyID, userID string) (*model.FamilyMember, error) {
	role, ok := m.members[userID]
	if !ok || familyID != testFamilyID {
		return nil, nil
	}
	return &model.FamilyMember{FamilyID: familyID, UserID: userID, Role: role}, nil
}
func (m *mockMembershipRepo) ListMembershipsByUserID(ctx context.Context, userID string) ([]model.FamilyMembership, error) {
	return nil, nil
}
func (m *mockMembershipRepo) ListByFamilyID(ctx context.Context, familyID string) ([]model.FamilyMemberWithUser, error) {
	return nil, nil
}
func (m *mockMembershipRepo) Create(ctx context.Context, member *model.FamilyMember) error { return nil }
func (m *mockMembershipRepo) UpdateRole(ctx context.Context, familyID, userID string, role model.Role) error {
	return nil
}
func (m *mockMembershipRepo) Delete(ctx context.Context, familyID, userID string) error { return nil }
func (m *mockMembershipRepo) DeleteByUserID(ctx context.Context, userID string) error { return nil }

// --- ヘルパー ---

const testFamilyID = "fam-1"

var (
	parent = identityWithRole("parent-1", model.RoleParent)
	child  = identityWithRole("child-1", model.RoleChild)
	child2 = identityWithRole("child-2", model.RoleChild)
)

func identityWithRole(userID string, role model.Role) *authn.Identity {
	return &authn.Identity{
		User:              &model.User{ID: userID},
		AuthMethod:        authn.AuthMethodBearerJWT,
		Families:          []model.FamilyMembership{{FamilyID: testFamilyID, Role: role}},
		FamiliesAvailable: true,
	}
}

func newService(tasks *mockTaskRepo) *Service {
	members := &mockMembershipRepo{members: map[string]model.Role{
		"parent-1": model.RoleParent,
		"child-1":  model.RoleChild,
		"child-2":  model.RoleChild,
	}}
	return NewService(tasks, members)
}

func strPtr(s string) *string { return &s }

func assertAPIError(t *testing.T, err error, code string) {
	t.Helper()
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *model.APIError with code %s, got %v", code, err)
	}
	if apiErr.Code != code {
		t.Errorf("Code = %q, want %q (message: %s)", apiErr.Code, code, apiErr.Message)
	}
}

// --- テスト ---

// TestService_Create はParentがタスクを作成できることを検証する。
func TestService_Create(t *testing.T) {
	repo := newMockTaskRepo()
	svc := newService(repo)

	task, err := svc.Create(context.Background(), parent, testFamilyID, CreateInput{
		Title:       " Wash dishes ",
		AssignedTo:  strPtr("child-1"),
		KarmaPoints: 50,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if task.Title != "Wash dishes" || task.KarmaPoints != 50 || task.CreatedBy != "parent-1" {
		t.Errorf("task = %+v", task)
	}
	if len(repo.created) != 1 {
		t.Errorf("created = %d, want 1", len(repo.created))
	}
}

// TestService_Create_Validation は作成時の入力検証と権限を検証する。
func TestService_Create_Validation(t *testing.T) {
	tests := []struct {
		name string
		id   *authn.Identity
		in   CreateInput
		code string
	}{
		{"Childは作成できない", child, CreateInput{Title: "t"}, model.ErrCodeForbidden},
		{"空タイトル", parent, CreateInput{Title: "  "}, model.ErrCodeInvalidRequest},
		{"負のカルマ", parent, CreateInput{Title: "t", KarmaPoints: -1}, model.ErrCodeInvalidRequest},
		{"上限超過のカルマ", parent, CreateInput{Title: "t", KarmaPoints: MaxKarmaPoints + 1}, model.ErrCodeInvalidRequest},
		{"非メンバーの担当者", parent, CreateInput{Title: "t", AssignedTo: strPtr("stranger")}, model.ErrCodeInvalidRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMockTaskRepo()
			_, err := newService(repo).Create(context.Background(), tt.id, testFamilyID, tt.in)
			assertAPIError(t, err, tt.code)
			if len(repo.created) != 0 {
				t.Error("task should not be created")
			}
		})
	}
}

// TestService_Create_KarmaBoundaries はカルマの境界値を受け付けることを検証する。
func TestService_Create_KarmaBoundaries(t *testing.T) {
	for _, karma := range []int{0, MaxKarmaPoints} {
		_, err := newService(newMockTaskRepo()).Create(context.Background(), parent, testFamilyID, CreateInput{Title: "t", KarmaPoints: karma})
		if err != nil {
			t.Errorf("karma %d: unexpected error: %v", karma, err)
		}
	}
}

// TestService_List はメンバーのみ一覧を取得できることを検証する。
func TestService_List(t *testing.T) {
	repo := newMockTaskRepo(
		&model.Task{ID: "t1", FamilyID: testFamilyID},
		&model.Task{ID: "t2", FamilyID: "other"},
	)
	svc := newService(repo)

	tasks, err := svc.List(context.Background(), child, testFamilyID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tasks) != 1 || tasks[0].ID != "t1" {
		t.Errorf("tasks = %+v", tasks)
	}

	_, err = svc.List(context.Background(), child, "other")
	assertAPIError(t, err, model.ErrCodeForbidden)
}

// TestService_Complete は担当者本人が完了できることを検証する。
func TestService_Complete(t *testing.T) {
	repo := newMockTaskRepo(&model.Task{ID: "t1", FamilyID: testFamilyID, AssignedTo: strPtr("child-1"), KarmaPoints: 30})
	svc := newService(repo)

	task, err := svc.Complete(context.Background(), child, testFamilyID, "t1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !task.Completed() || repo.completedBy != "child-1" {
		t.Errorf("task should be completed by child-1, got %+v", task)
	}
}

// TestService_Complete_Unassigned は担当者未定のタスクを任意のメンバーが完了できることを検証する。
func TestService_Complete_Unassigned(t *testing.T) {
	repo := newMockTaskRepo(&model.Task{ID: "t1", FamilyID: testFamilyID})

	if _, err := newService(repo).Complete(context.Background(), child2, testFamilyID, "t1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// TestService_Complete_ByParent はParentが他人の担当タスクを完了できることを検証する。
func TestService_Complete_ByParent(t *testing.T) {
	repo := newMockTaskRepo(&model.Task{ID: "t1", FamilyID: testFamilyID, AssignedTo: strPtr("child-1")})

	if _, err := newService(repo).Complete(context.Background(), parent, testFamilyID, "t1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.completedBy != "parent-1" {
		t.Errorf("completedBy = %q, want parent-1", repo.completedBy)
	}
}

// TestService_Complete_Errors は完了時のエラーケースを検証する。
func TestService_Complete_Errors(t *testing.T) {
	done := time.Now()
	tests := []struct {
		name string
		id   *authn.Identity
		task *model.Task
		code string
	}{
		{"他人の担当タスク", child2, &model.Task{ID: "t1", FamilyID: testFamilyID, AssignedTo: strPtr("child-1")}, model.ErrCodeForbidden},
		{"完了済み", child, &model.Task{ID: "t1", FamilyID: testFamilyID, CompletedAt: &done}, model.ErrCodeTaskAlreadyCompleted},
		{"別ファミリーのタスク", child, &model.Task{ID: "t1", FamilyID: "other"}, model.ErrCodeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMockTaskRepo(tt.task)
			_, err := newService(repo).Complete(context.Background(), tt.id, testFamilyID, "t1")
			assertAPIError(t, err, tt.code)
			if repo.completedBy != "" {
				t.Error("task should not be completed")
			}
		})
	}
}

// TestService_Complete_Race は同時完了で負けた場合にTASK_ALREADY_COMPLETEDを返すことを検証する。
func TestService_Complete_Race(t *testing.T) {
	repo := newMockTaskRepo(&model.Task{ID: "t1", FamilyID: testFamilyID})
	repo.completeFn = func(ctx context.Context, task *model.Task, completedBy string) (bool, error) {
		return false, nil
	}

	_, err := newService(repo).Complete(context.Background(), child, testFamilyID, "t1")
	assertAPIError(t, err, model.ErrCodeTaskAlreadyCompleted)
}

// TestService_Delete はParentのみ削除できることを検証する。
func TestService_Delete(t *testing.T) {
	repo := newMockTaskRepo(&model.Task{ID: "t1", FamilyID: testFamilyID})
	svc := newService(repo)

	assertAPIError(t, svc.Delete(context.Background(), child, testFamilyID, "t1"), model.ErrCodeForbidden)

	if err := svc.Delete(context.Background(), parent, testFamilyID, "t1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(repo.deleted) != 1 {
		t.Errorf("deleted = %v", repo.deleted)
	}

	assertAPIError(t, svc.Delete(context.Background(), parent, testFamilyID, "t1"), model.ErrCodeNotFound)
}
