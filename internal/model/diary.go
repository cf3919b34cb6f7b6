package model

import "time"

// DiaryEntry は作成者本人のみが閲覧できる日記エントリを表す。
type DiaryEntry struct {
	ID        string
	Title     string
	Content   string // サニタイズ済みHTML
	EntryDate time.Time
	CreatedBy string
	CreatedAt time.Time
	UpdatedAt time.Time
}
