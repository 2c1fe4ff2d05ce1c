package model

import (
	"time"
)

type Task struct {
	ID        string    `db:"id" json:"id"`
	AccountID string    `db:"account_id" json:"-"`
	Title     string    `db:"title" json:"title"`
	IsDone    bool      `db:"is_done" json:"isDone"`
	Times     int       `db:"times" json:"times"`
	TimesDone int       `db:"times_done" json:"timesDone"`
	Note      *string   `db:"note" json:"note,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

type CreateTaskParams struct {
	AccountID string
	Title     string
	IsDone    bool
	Times     int
	TimesDone int
	Note      *string
}

// UpdateTaskParams carries a partial update; nil fields are left unchanged.
type UpdateTaskParams struct {
	Title     *string `json:"title"`
	IsDone    *bool   `json:"isDone"`
	Times     *int    `json:"times"`
	TimesDone *int    `json:"timesDone"`
	Note      *string `json:"note"`
}

func (p UpdateTaskParams) IsEmpty() bool {
	return p.Title == nil && p.IsDone == nil && p.Times == nil && p.TimesDone == nil && p.Note == nil
}
