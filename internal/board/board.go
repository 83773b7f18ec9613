package board

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/BuzzLyutic/kanban-board/internal/model"
	"github.com/BuzzLyutic/kanban-board/internal/worker"
)

// ErrEmptyTitle is returned when a task is saved without a title.
var ErrEmptyTitle = errors.New("please enter a task title")

// TaskAPI is the remote task store.
type TaskAPI interface {
	ListTasks(ctx context.Context) ([]model.Task, error)
	CreateTask(ctx context.Context, in model.TaskInput) (model.Task, error)
	UpdateTask(ctx context.Context, id int64, patch model.TaskPatch) (model.Task, error)
	DeleteTask(ctx context.Context, id int64) error
}

// Dispatcher runs background jobs.
type Dispatcher interface {
	Submit(job worker.Job) error
}

// Draft holds the editable fields of the task modal.
type Draft struct {
	Title       string
	Description string
	Column      model.Column
}

// Board mediates between the store, the remote task store and the
// rendering layer's gestures. Compound state changes are serialized.
type Board struct {
	store  *Store
	api    TaskAPI
	jobs   Dispatcher
	logger *zap.Logger

	mu   sync.Mutex
	drag DragState
}

func New(store *Store, api TaskAPI, jobs Dispatcher, logger *zap.Logger) *Board {
	return &Board{
		store:  store,
		api:    api,
		jobs:   jobs,
		logger: logger,
		drag:   Idle{},
	}
}

func (b *Board) Store() *Store {
	return b.store
}

// Refresh fetches the task list, replaces the cached tasks and merges the
// result into the column order.
func (b *Board) Refresh(ctx context.Context) error {
	tasks, err := b.api.ListTasks(ctx)
	if err != nil {
		return fmt.Errorf("fetch tasks: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.store.SetTasks(tasks)
	if next, changed := MergeOrder(b.store.TaskOrder(), tasks); changed {
		b.store.SetTaskOrder(next)
	}
	return nil
}

// View computes the rendered column, including the drop marker while a
// card hovers over it.
func (b *Board) View(col model.Column) ColumnView {
	b.mu.Lock()
	drag := b.drag
	b.mu.Unlock()

	view := ComputeView(b.store.Snapshot(), col)
	if h, ok := drag.(Hovering); ok && h.Target == col {
		view.DropIndex = h.Index
		if h.Index < 0 || h.Index > len(view.Tasks) {
			view.DropIndex = len(view.Tasks)
		}
	}
	return view
}

// Views computes every column in display order.
func (b *Board) Views() []ColumnView {
	views := make([]ColumnView, 0, len(model.Columns()))
	for _, col := range model.Columns() {
		views = append(views, b.View(col))
	}
	return views
}

func (b *Board) Search(term string) {
	b.store.SetSearchTerm(term)
}

// LoadMore reveals one more page of cards in col.
func (b *Board) LoadMore(col model.Column) {
	b.store.UpdateLoadedItems(func(prev LoadedItems) LoadedItems {
		prev[col] += PageSize
		return prev
	})
}

func (b *Board) DragState() DragState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.drag
}

// DragStart picks up task. Any previous gesture is discarded.
func (b *Board) DragStart(task model.Task) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.drag = Dragging{TaskID: task.ID, Source: task.Column}
}

// DragOver tracks the insertion point under the pointer. It is ignored
// when nothing is being dragged.
func (b *Board) DragOver(col model.Column, index int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if d, ok := dragged(b.drag); ok {
		b.drag = Hovering{Dragging: d, Target: col, Index: index}
	}
}

// DragEnd ends the gesture without a drop.
func (b *Board) DragEnd() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.drag = Idle{}
}

// Drop commits the gesture into target. The new order is applied before any
// network call; a column change is then pushed to the task store in the
// background and a failed push is repaired by refetching. Drop reports
// whether anything was applied.
func (b *Board) Drop(ctx context.Context, target DropTarget) bool {
	b.mu.Lock()
	state := b.drag
	b.drag = Idle{}

	if !target.Column.Valid() {
		b.mu.Unlock()
		b.logger.Debug("drop ignored, unknown column", zap.String("column", string(target.Column)))
		return false
	}

	tasks := b.store.Tasks()
	id, source, ok := resolveDrag(state, target.FallbackTaskID, tasks)
	if !ok {
		b.mu.Unlock()
		b.logger.Debug("drop ignored, no dragged task")
		return false
	}

	b.store.SetTaskOrder(applyDrop(b.store.TaskOrder(), id, source, target.Column, target.Index))
	moved := source != target.Column
	if moved {
		b.store.SetTasks(withColumn(tasks, id, target.Column))
	}
	b.mu.Unlock()

	b.logger.Debug("task dropped",
		zap.Int64("task_id", id),
		zap.String("from", string(source)),
		zap.String("to", string(target.Column)),
		zap.Int("index", target.Index),
	)

	if moved {
		b.syncColumn(ctx, id, target.Column)
	}
	return true
}

func (b *Board) syncColumn(ctx context.Context, id int64, col model.Column) {
	job := worker.Job{
		Name:   "sync-column",
		TaskID: id,
		Run: func(ctx context.Context) error {
			_, err := b.api.UpdateTask(ctx, id, model.TaskPatch{Column: &col})
			if err != nil {
				b.logger.Warn("column sync failed, resyncing",
					zap.Int64("task_id", id),
					zap.String("column", string(col)),
					zap.Error(err),
				)
			}
			if rerr := b.Refresh(ctx); rerr != nil {
				return errors.Join(err, rerr)
			}
			return nil
		},
	}
	if err := b.jobs.Submit(job); err != nil {
		b.logger.Error("schedule column sync", zap.Int64("task_id", id), zap.Error(err))
		if rerr := b.Refresh(ctx); rerr != nil {
			b.logger.Error("resync after failed schedule", zap.Error(rerr))
		}
	}
}

// invalidate refetches the task list in the background.
func (b *Board) invalidate() {
	err := b.jobs.Submit(worker.Job{Name: "refresh", Run: b.Refresh})
	if err != nil {
		b.logger.Error("schedule refresh", zap.Error(err))
	}
}

// OpenCreate opens the modal for a new task.
func (b *Board) OpenCreate() {
	b.store.SetEditingTask(nil)
	b.store.SetModalOpen(true)
}

// OpenEdit opens the modal for task.
func (b *Board) OpenEdit(task model.Task) {
	b.store.SetEditingTask(&task)
	b.store.SetModalOpen(true)
}

func (b *Board) CloseModal() {
	b.store.SetModalOpen(false)
	b.store.SetEditingTask(nil)
}

// Draft returns the modal fields for the task being edited, or blank
// fields in the backlog when creating.
func (b *Board) Draft() Draft {
	editing := b.store.EditingTask()
	if editing == nil {
		return Draft{Column: model.ColumnBacklog}
	}
	return Draft{
		Title:       editing.Title,
		Description: editing.Description,
		Column:      editing.Column,
	}
}

// Save creates a task, or updates the one being edited. A blank title is
// rejected before any state change or network call.
func (b *Board) Save(ctx context.Context, d Draft) error {
	if strings.TrimSpace(d.Title) == "" {
		return ErrEmptyTitle
	}
	if d.Column == "" {
		d.Column = model.ColumnBacklog
	}
	if !d.Column.Valid() {
		return fmt.Errorf("%w: %q", model.ErrInvalidColumn, d.Column)
	}

	if editing := b.store.EditingTask(); editing != nil {
		patch := model.TaskPatch{Title: &d.Title, Description: &d.Description, Column: &d.Column}
		if _, err := b.api.UpdateTask(ctx, editing.ID, patch); err != nil {
			return fmt.Errorf("update task %d: %w", editing.ID, err)
		}
	} else {
		in := model.TaskInput{Title: d.Title, Description: d.Description, Column: d.Column}
		if _, err := b.api.CreateTask(ctx, in); err != nil {
			return fmt.Errorf("create task: %w", err)
		}
	}

	b.CloseModal()
	b.invalidate()
	return nil
}

// Delete removes a task remotely and drops its id from every column order
// without waiting for the next fetch.
func (b *Board) Delete(ctx context.Context, id int64) error {
	if err := b.api.DeleteTask(ctx, id); err != nil {
		return fmt.Errorf("delete task %d: %w", id, err)
	}

	b.mu.Lock()
	b.store.UpdateTaskOrder(func(prev TaskOrder) TaskOrder { return prev.Without(id) })
	b.mu.Unlock()

	b.invalidate()
	return nil
}
