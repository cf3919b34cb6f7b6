package handler

import (
	"time"

	"github.com/hitoshi/famorg/internal/authn"
	"github.com/hitoshi/famorg/internal/diary"
	"github.com/hitoshi/famorg/internal/family"
	"github.com/hitoshi/famorg/internal/model"
)

// userResponse はユーザー情報のAPIレスポンス。
type userResponse struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	Name          string    `json:"name"`
	EmailVerified bool      `json:"emailVerified"`
	Image         *string   `json:"image"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// sessionResponse はセッション情報のAPIレスポンス。トークンは含めない。
type sessionResponse struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	ExpiresAt time.Time `json:"expiresAt"`
	CreatedAt time.Time `json:"createdAt"`
}

// identityResponse はGET /api/users/meのレスポンス。
type identityResponse struct {
	User              userResponse             `json:"user"`
	Session           sessionResponse          `json:"session"`
	AuthMethod        authn.AuthMethod         `json:"authMethod"`
	Families          []model.FamilyMembership `json:"families"`
	FamiliesAvailable bool                     `json:"familiesAvailable"`
}

type familyResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedBy string    `json:"createdBy"`
	CreatedAt time.Time `json:"createdAt"`
}

type memberResponse struct {
	UserID   string     `json:"userId"`
	Name     string     `json:"name"`
	Email    string     `json:"email"`
	Role     model.Role `json:"role"`
	Karma    int        `json:"karma"`
	JoinedAt time.Time  `json:"joinedAt"`
}

type familyDetailResponse struct {
	familyResponse
	Members []memberResponse `json:"members"`
}

type karmaResponse struct {
	UserID string     `json:"userId"`
	Name   string     `json:"name"`
	Role   model.Role `json:"role"`
	Karma  int        `json:"karma"`
}

type taskResponse struct {
	ID          string     `json:"id"`
	FamilyID    string     `json:"familyId"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	AssignedTo  *string    `json:"assignedTo"`
	KarmaPoints int        `json:"karmaPoints"`
	CompletedBy *string    `json:"completedBy"`
	CompletedAt *time.Time `json:"completedAt"`
	CreatedBy   string     `json:"createdBy"`
	CreatedAt   time.Time  `json:"createdAt"`
}

type diaryResponse struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	EntryDate string    `json:"entryDate"`
	CreatedBy string    `json:"createdBy"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// --- 変換関数 ---

func toUserResponse(u *model.User) userResponse {
	return userResponse{
		ID:            u.ID,
		Email:         u.Email,
		Name:          u.Name,
		EmailVerified: u.EmailVerified,
		Image:         u.Image,
		CreatedAt:     u.CreatedAt,
		UpdatedAt:     u.UpdatedAt,
	}
}

func toSessionResponse(s *model.Session) sessionResponse {
	if s == nil {
		return sessionResponse{}
	}
	return sessionResponse{
		ID:        s.ID,
		UserID:    s.UserID,
		ExpiresAt: s.ExpiresAt,
		CreatedAt: s.CreatedAt,
	}
}

func toIdentityResponse(id *authn.Identity) identityResponse {
	families := id.Families
	if families == nil {
		families = []model.FamilyMembership{}
	}
	return identityResponse{
		User:              toUserResponse(id.User),
		Session:           toSessionResponse(id.Session),
		AuthMethod:        id.AuthMethod,
		Families:          families,
		FamiliesAvailable: id.FamiliesAvailable,
	}
}

func toFamilyResponse(f *model.Family) familyResponse {
	return familyResponse{ID: f.ID, Name: f.Name, CreatedBy: f.CreatedBy, CreatedAt: f.CreatedAt}
}

func toFamilyDetailResponse(d *family.Detail) familyDetailResponse {
	members := make([]memberResponse, 0, len(d.Members))
	for _, m := range d.Members {
		members = append(members, memberResponse{
			UserID:   m.UserID,
			Name:     m.Name,
			Email:    m.Email,
			Role:     m.Role,
			Karma:    m.Karma,
			JoinedAt: m.JoinedAt,
		})
	}
	return familyDetailResponse{familyResponse: toFamilyResponse(d.Family), Members: members}
}

func toTaskResponse(t *model.Task) taskResponse {
	return taskResponse{
		ID:          t.ID,
		FamilyID:    t.FamilyID,
		Title:       t.Title,
		Description: t.Description,
		AssignedTo:  t.AssignedTo,
		KarmaPoints: t.KarmaPoints,
		CompletedBy: t.CompletedBy,
		CompletedAt: t.CompletedAt,
		CreatedBy:   t.CreatedBy,
		CreatedAt:   t.CreatedAt,
	}
}

func toDiaryResponse(e *model.DiaryEntry) diaryResponse {
	return diaryResponse{
		ID:        e.ID,
		Title:     e.Title,
		Content:   e.Content,
		EntryDate: e.EntryDate.Format(diary.DateLayout),
		CreatedBy: e.CreatedBy,
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
	}
}
