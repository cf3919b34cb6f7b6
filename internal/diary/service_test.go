package diary

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/famorg/internal/model"
	"github.com/hitoshi/famorg/internal/security"
)

// --- モック ---

type mockDiaryRepo struct {
	entries map[string]*model.DiaryEntry
	findErr error
	updated int
	deleted []string
}

func newMockDiaryRepo(entries ...*model.DiaryEntry) *mockDiaryRepo {
	m := &mockDiaryRepo{entries: map[string]*model.DiaryEntry{}}
	for _, e := range entries {
		m.entries[e.ID] = e
	}
	return m
}

func (m *mockDiaryRepo) Create(ctx context.Context, entry *model.DiaryEntry) error {
	m.entries[entry.ID] = entry
	return nil
}
func (m *mockDiaryRepo) FindByID(ctx context.Context, id string) (*model.DiaryEntry, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	return m.entries[id], nil
}
func (m *mockDiaryRepo) ListByUserID(ctx context.Context, userID string) ([]*model.DiaryEntry, error) {
	var result []*model.DiaryEntry
	for _, e := range m.entries {
		if e.CreatedBy == userID {
			result = append(result, e)
		}
	}
	return result, nil
}
func (m *mockDiaryRepo) Update(ctx context.Context, entry *model.DiaryEntry) error {
	m.updated++
	return nil
}
func (m *mockDiaryRepo) Delete(ctx context.Context, id string) error {
	m.deleted = append(m.deleted, id)
	return nil
}
func (m *mockDiaryRepo) DeleteByUserID(ctx context.Context, userID string) error {
	return nil
}

// --- ヘルパー ---

const ownerID = "0b9f4c8e-6a3e-4d7a-9c1b-2f5e8d7a6c40"

func newTestService(repo *mockDiaryRepo) *Service {
	svc := NewService(repo, security.NewContentSanitizer())
	svc.now = func() time.Time { return time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC) }
	return svc
}

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

// TestService_Create は本文のサニタイズと日付の既定値を検証する。
func TestService_Create(t *testing.T) {
	repo := newMockDiaryRepo()
	svc := newTestService(repo)

	entry, err := svc.Create(context.Background(), ownerID, Input{
		Title:   "Today",
		Content: `<p>Hello<script>alert(1)</script></p>`,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(entry.Content, "script") {
		t.Errorf("Content should be sanitized, got %q", entry.Content)
	}
	if entry.Content != "<p>Hello</p>" {
		t.Errorf("Content = %q, want %q", entry.Content, "<p>Hello</p>")
	}
	if got := entry.EntryDate.Format(DateLayout); got != "2026-03-14" {
		t.Errorf("EntryDate = %s, want 2026-03-14", got)
	}
	if entry.CreatedBy != ownerID {
		t.Errorf("CreatedBy = %q, want %q", entry.CreatedBy, ownerID)
	}
}

// TestService_Create_Validation は入力検証を検証する。
func TestService_Create_Validation(t *testing.T) {
	svc := newTestService(newMockDiaryRepo())

	for _, in := range []Input{
		{Title: ""},
		{Title: strings.Repeat("a", maxTitleLength+1)},
		{Title: "t", Content: strings.Repeat("a", maxContentLength+1)},
		{Title: "t", EntryDate: "14/03/2026"},
	} {
		_, err := svc.Create(context.Background(), ownerID, in)
		assertAPIError(t, err, model.ErrCodeInvalidRequest)
	}
}

// TestService_Get は所有者のみ取得できることを検証する。
func TestService_Get(t *testing.T) {
	repo := newMockDiaryRepo(&model.DiaryEntry{ID: "e1", CreatedBy: ownerID})
	svc := newTestService(repo)

	entry, err := svc.Get(context.Background(), ownerID, "e1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entry.ID != "e1" {
		t.Errorf("ID = %q, want e1", entry.ID)
	}

	// UUIDの大文字表記でも同一ユーザーとして扱う
	if _, err := svc.Get(context.Background(), strings.ToUpper(ownerID), "e1"); err != nil {
		t.Errorf("uppercase owner id should match: %v", err)
	}

	_, err = svc.Get(context.Background(), "someone-else", "e1")
	assertAPIError(t, err, model.ErrCodeForbidden)

	_, err = svc.Get(context.Background(), ownerID, "missing")
	assertAPIError(t, err, model.ErrCodeNotFound)
}

// TestService_Get_MissingBeforeOwnership は存在しないエントリが他人からもNOT_FOUNDになることを検証する。
func TestService_Get_MissingBeforeOwnership(t *testing.T) {
	svc := newTestService(newMockDiaryRepo())

	_, err := svc.Get(context.Background(), "someone-else", "missing")
	assertAPIError(t, err, model.ErrCodeNotFound)
}

// TestService_Get_LookupError はリポジトリエラーがAPIErrorにならないことを検証する。
func TestService_Get_LookupError(t *testing.T) {
	repo := newMockDiaryRepo()
	repo.findErr = errors.New("db down")

	_, err := newTestService(repo).Get(context.Background(), ownerID, "e1")
	if err == nil {
		t.Fatal("expected error")
	}
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		t.Errorf("expected infrastructure error, got %v", apiErr)
	}
}

// TestService_Update は所有者による更新を検証する。
func TestService_Update(t *testing.T) {
	repo := newMockDiaryRepo(&model.DiaryEntry{ID: "e1", Title: "old", CreatedBy: ownerID})
	svc := newTestService(repo)

	entry, err := svc.Update(context.Background(), ownerID, "e1", Input{
		Title:     "new",
		Content:   `<a href="javascript:alert(1)">x</a>`,
		EntryDate: "2026-01-02",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entry.Title != "new" || entry.EntryDate.Format(DateLayout) != "2026-01-02" {
		t.Errorf("entry = %+v", entry)
	}
	if strings.Contains(entry.Content, "javascript") {
		t.Errorf("Content should be sanitized, got %q", entry.Content)
	}
	if repo.updated != 1 {
		t.Errorf("updated = %d, want 1", repo.updated)
	}

	_, err = svc.Update(context.Background(), "someone-else", "e1", Input{Title: "x"})
	assertAPIError(t, err, model.ErrCodeForbidden)
	if repo.updated != 1 {
		t.Error("forbidden update should not reach repository")
	}
}

// TestService_Delete は所有者のみ削除できることを検証する。
func TestService_Delete(t *testing.T) {
	repo := newMockDiaryRepo(&model.DiaryEntry{ID: "e1", CreatedBy: ownerID})
	svc := newTestService(repo)

	assertAPIError(t, svc.Delete(context.Background(), "someone-else", "e1"), model.ErrCodeForbidden)

	if err := svc.Delete(context.Background(), ownerID, "e1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(repo.deleted) != 1 {
		t.Errorf("deleted = %v", repo.deleted)
	}
}

// TestService_List は自分のエントリのみ返すことを検証する。
func TestService_List(t *testing.T) {
	repo := newMockDiaryRepo(
		&model.DiaryEntry{ID: "e1", CreatedBy: ownerID},
		&model.DiaryEntry{ID: "e2", CreatedBy: "other"},
	)

	entries, err := newTestService(repo).List(context.Background(), ownerID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 1 || entries[0].ID != "e1" {
		t.Errorf("entries = %+v", entries)
	}
}
