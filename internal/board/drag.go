package board

import (
	"slices"

	"github.com/BuzzLyutic/kanban-board/internal/model"
)

// AtEnd is the drop index meaning "append to the end of the column".
const AtEnd = -1

// DragState is the drag-and-drop gesture state: Idle, Dragging or Hovering.
type DragState interface {
	dragState()
}

// Idle means no card is being dragged.
type Idle struct{}

// Dragging tracks a picked-up card and the column it came from.
type Dragging struct {
	TaskID int64
	Source model.Column
}

// Hovering is Dragging plus the insertion point currently under the pointer.
type Hovering struct {
	Dragging
	Target model.Column
	Index  int
}

func (Idle) dragState()     {}
func (Dragging) dragState() {}
func (Hovering) dragState() {}

// DropTarget is where a card was released. FallbackTaskID is the id carried
// by the gesture payload, used only when no drag is being tracked.
type DropTarget struct {
	Column         model.Column
	Index          int
	FallbackTaskID int64
}

// DropAt targets index within column.
func DropAt(column model.Column, index int) DropTarget {
	return DropTarget{Column: column, Index: index}
}

// DropAtEnd targets the end of column.
func DropAtEnd(column model.Column) DropTarget {
	return DropTarget{Column: column, Index: AtEnd}
}

// dragged extracts the tracked card from a state, if any.
func dragged(s DragState) (Dragging, bool) {
	switch st := s.(type) {
	case Dragging:
		return st, true
	case Hovering:
		return st.Dragging, true
	}
	return Dragging{}, false
}

// resolveDrag finds the dragged id and its source column, falling back to the
// gesture payload looked up in the cached tasks.
func resolveDrag(s DragState, fallbackID int64, tasks []model.Task) (int64, model.Column, bool) {
	if d, ok := dragged(s); ok && d.TaskID != 0 {
		return d.TaskID, d.Source, true
	}
	if fallbackID == 0 {
		return 0, "", false
	}
	i := slices.IndexFunc(tasks, func(t model.Task) bool { return t.ID == fallbackID })
	if i < 0 {
		return 0, "", false
	}
	return fallbackID, tasks[i].Column, true
}

// applyDrop removes id from the source column and inserts it into the target.
// Moving forward inside one column shifts the index left by one so the card
// lands where the user pointed.
func applyDrop(prev TaskOrder, id int64, source, target model.Column, index int) TaskOrder {
	order := prev.Clone()
	sourceIndex := slices.Index(prev[source], id)
	order[source] = slices.DeleteFunc(order[source], func(v int64) bool { return v == id })

	dst := order[target]
	if dst == nil {
		dst = []int64{}
	}
	if index < 0 {
		order[target] = append(dst, id)
		return order
	}

	insert := index
	if source == target && sourceIndex != -1 && insert > sourceIndex {
		insert--
	}
	if insert > len(dst) {
		insert = len(dst)
	}
	order[target] = slices.Insert(dst, insert, id)
	return order
}

// withColumn returns tasks with the column of id replaced.
func withColumn(tasks []model.Task, id int64, col model.Column) []model.Task {
	out := slices.Clone(tasks)
	for i := range out {
		if out[i].ID == id {
			out[i].Column = col
		}
	}
	return out
}
