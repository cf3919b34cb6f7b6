package model

import "time"

// Task はファミリー内のタスクを表す。
// 完了時にKarmaPointsが完了者のカルマに加算される。
type Task struct {
	ID          string
	FamilyID    string
	Title       string
	Description string
	AssignedTo  *string
	KarmaPoints int
	CompletedBy *string
	CompletedAt *time.Time
	CreatedBy   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Completed はタスクが完了済みかどうかを返す。
func (t *Task) Completed() bool {
	return t.CompletedAt != nil
}
