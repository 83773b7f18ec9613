package board

import (
	"slices"
	"strings"

	"github.com/BuzzLyutic/kanban-board/internal/model"
)

// MergeOrder reconciles a previously established order with a freshly
// fetched task list. Per column, ids that left the column are dropped
// (survivors keep their relative order) and ids new to the column are
// appended in fetch order. The second return value is false when the
// result equals prev, so callers can skip the store update.
func MergeOrder(prev TaskOrder, tasks []model.Task) (TaskOrder, bool) {
	next := make(TaskOrder, len(model.Columns()))
	changed := false

	for _, col := range model.Columns() {
		fetched := make([]int64, 0)
		inColumn := make(map[int64]struct{})
		for _, t := range tasks {
			if t.Column == col {
				fetched = append(fetched, t.ID)
				inColumn[t.ID] = struct{}{}
			}
		}

		existing := prev[col]
		tracked := make(map[int64]struct{}, len(existing))
		survivors := make([]int64, 0, len(existing))
		for _, id := range existing {
			tracked[id] = struct{}{}
			if _, ok := inColumn[id]; ok {
				survivors = append(survivors, id)
			}
		}

		merged := survivors
		for _, id := range fetched {
			if _, ok := tracked[id]; !ok {
				merged = append(merged, id)
			}
		}

		if len(survivors) != len(existing) || len(merged) != len(survivors) {
			changed = true
		}
		next[col] = merged
	}

	if !changed {
		return prev, false
	}
	return next, true
}

// ColumnView is what the rendering layer draws for one column.
type ColumnView struct {
	Column model.Column
	// Tasks are the visible cards, already filtered, ordered and truncated.
	Tasks []model.Task
	// Total counts every card that passed the search filter.
	Total int
	// Remaining is the number of filtered cards hidden behind "load more".
	Remaining int
	// DropIndex is the hovered insertion point in this column, or -1.
	DropIndex int
}

// Matches reports whether the task passes the search filter. The match is a
// case-insensitive substring test against title or description.
func Matches(t model.Task, search string) bool {
	if search == "" {
		return true
	}
	s := strings.ToLower(search)
	return strings.Contains(strings.ToLower(t.Title), s) ||
		strings.Contains(strings.ToLower(t.Description), s)
}

// ComputeView filters, orders and paginates one column of the snapshot.
// It never mutates st.
func ComputeView(st State, col model.Column) ColumnView {
	filtered := make([]model.Task, 0)
	byID := make(map[int64]model.Task)
	for _, t := range st.Tasks {
		if t.Column != col || !Matches(t, st.SearchTerm) {
			continue
		}
		filtered = append(filtered, t)
		byID[t.ID] = t
	}

	order := st.TaskOrder[col]
	ordered := make([]model.Task, 0, len(filtered))
	emitted := make(map[int64]struct{}, len(filtered))
	for _, id := range order {
		t, ok := byID[id]
		if !ok {
			continue
		}
		if _, dup := emitted[id]; dup {
			continue
		}
		ordered = append(ordered, t)
		emitted[id] = struct{}{}
	}
	for _, t := range filtered {
		if _, ok := emitted[t.ID]; !ok {
			ordered = append(ordered, t)
			emitted[t.ID] = struct{}{}
		}
	}

	limit := st.LoadedItems[col]
	if limit < 0 {
		limit = 0
	}
	visible := ordered
	if len(visible) > limit {
		visible = visible[:limit]
	}

	return ColumnView{
		Column:    col,
		Tasks:     slices.Clone(visible),
		Total:     len(ordered),
		Remaining: len(ordered) - len(visible),
		DropIndex: -1,
	}
}

// ComputeBoard computes the view of every column in display order.
func ComputeBoard(st State) []ColumnView {
	views := make([]ColumnView, 0, len(model.Columns()))
	for _, col := range model.Columns() {
		views = append(views, ComputeView(st, col))
	}
	return views
}
