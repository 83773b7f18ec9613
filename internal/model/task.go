package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrInvalidColumn = errors.New("invalid column")

// Column is one of the fixed workflow stages of the board.
type Column string

const (
	ColumnBacklog    Column = "backlog"
	ColumnInProgress Column = "inprogress"
	ColumnReview     Column = "review"
	ColumnDone       Column = "done"
)

var columns = []Column{ColumnBacklog, ColumnInProgress, ColumnReview, ColumnDone}

// Columns returns the board columns in display order.
func Columns() []Column {
	out := make([]Column, len(columns))
	copy(out, columns)
	return out
}

func (c Column) Valid() bool {
	switch c {
	case ColumnBacklog, ColumnInProgress, ColumnReview, ColumnDone:
		return true
	}
	return false
}

// Title is the human readable column header.
func (c Column) Title() string {
	switch c {
	case ColumnBacklog:
		return "Backlog"
	case ColumnInProgress:
		return "In Progress"
	case ColumnReview:
		return "Review"
	case ColumnDone:
		return "Done"
	}
	return string(c)
}

func ParseColumn(s string) (Column, error) {
	c := Column(strings.ToLower(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidColumn, s)
	}
	return c, nil
}

type Task struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Column      Column    `json:"column"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TaskInput carries the fields of a task to be created.
type TaskInput struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Column      Column `json:"column"`
}

// TaskPatch is a partial update; nil fields are left untouched.
type TaskPatch struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Column      *Column `json:"column,omitempty"`
}

func (p TaskPatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Column == nil
}

// Apply returns a copy of t with the patch fields set.
func (p TaskPatch) Apply(t Task) Task {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Column != nil {
		t.Column = *p.Column
	}
	return t
}

type TaskFilter struct {
	Column *Column
}
