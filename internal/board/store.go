package board

import (
	"slices"
	"sync"

	"github.com/BuzzLyutic/kanban-board/internal/model"
)

const (
	// PageSize is both the initial number of visible cards per column
	// and the increment applied by one "load more".
	PageSize = 5
)

// TaskOrder maps a column to the client-local display order of task ids.
type TaskOrder map[model.Column][]int64

// NewTaskOrder returns an order with an empty sequence for every column.
func NewTaskOrder() TaskOrder {
	order := make(TaskOrder, len(model.Columns()))
	for _, col := range model.Columns() {
		order[col] = []int64{}
	}
	return order
}

func (o TaskOrder) Clone() TaskOrder {
	out := make(TaskOrder, len(o))
	for col, ids := range o {
		out[col] = slices.Clone(ids)
	}
	return out
}

// Equal reports whether both orders hold the same sequences. A missing
// column and an empty one compare equal.
func (o TaskOrder) Equal(other TaskOrder) bool {
	for _, col := range model.Columns() {
		if !slices.Equal(o[col], other[col]) {
			return false
		}
	}
	return true
}

// Without returns a copy of the order with id removed from every column.
func (o TaskOrder) Without(id int64) TaskOrder {
	out := make(TaskOrder, len(o))
	for col, ids := range o {
		out[col] = slices.DeleteFunc(slices.Clone(ids), func(v int64) bool { return v == id })
	}
	return out
}

// LoadedItems maps a column to the number of cards visible before "load more".
type LoadedItems map[model.Column]int

func NewLoadedItems() LoadedItems {
	items := make(LoadedItems, len(model.Columns()))
	for _, col := range model.Columns() {
		items[col] = PageSize
	}
	return items
}

func (l LoadedItems) Clone() LoadedItems {
	out := make(LoadedItems, len(l))
	for col, n := range l {
		out[col] = n
	}
	return out
}

// State is an immutable snapshot of the store.
type State struct {
	Tasks       []model.Task
	SearchTerm  string
	LoadedItems LoadedItems
	TaskOrder   TaskOrder
	EditingTask *model.Task
	ModalOpen   bool
}

// Store holds the board state. Every setter replaces its field as a single
// atomic step; readers always get copies.
type Store struct {
	mu          sync.RWMutex
	tasks       []model.Task
	searchTerm  string
	loadedItems LoadedItems
	taskOrder   TaskOrder
	editingTask *model.Task
	modalOpen   bool
}

func NewStore() *Store {
	return &Store{
		tasks:       []model.Task{},
		loadedItems: NewLoadedItems(),
		taskOrder:   NewTaskOrder(),
	}
}

// SetTasks replaces the cached task list. No merge is performed here.
func (s *Store) SetTasks(tasks []model.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = slices.Clone(tasks)
}

func (s *Store) Tasks() []model.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.tasks)
}

func (s *Store) SetSearchTerm(term string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.searchTerm = term
}

func (s *Store) SearchTerm() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.searchTerm
}

func (s *Store) SetModalOpen(open bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.modalOpen = open
}

func (s *Store) ModalOpen() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.modalOpen
}

// SetEditingTask sets the task being edited; nil means a new task is being created.
func (s *Store) SetEditingTask(task *model.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if task == nil {
		s.editingTask = nil
		return
	}
	cp := *task
	s.editingTask = &cp
}

func (s *Store) EditingTask() *model.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.editingTask == nil {
		return nil
	}
	cp := *s.editingTask
	return &cp
}

func (s *Store) SetLoadedItems(items LoadedItems) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadedItems = items.Clone()
}

// UpdateLoadedItems replaces the loaded items with fn(previous) under one lock.
func (s *Store) UpdateLoadedItems(fn func(prev LoadedItems) LoadedItems) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadedItems = fn(s.loadedItems.Clone()).Clone()
}

func (s *Store) LoadedItems() LoadedItems {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadedItems.Clone()
}

func (s *Store) SetTaskOrder(order TaskOrder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.taskOrder = order.Clone()
}

// UpdateTaskOrder replaces the order with fn(previous) under one lock.
func (s *Store) UpdateTaskOrder(fn func(prev TaskOrder) TaskOrder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.taskOrder = fn(s.taskOrder.Clone()).Clone()
}

func (s *Store) TaskOrder() TaskOrder {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.taskOrder.Clone()
}

// Snapshot returns a consistent copy of the whole state.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := State{
		Tasks:       slices.Clone(s.tasks),
		SearchTerm:  s.searchTerm,
		LoadedItems: s.loadedItems.Clone(),
		TaskOrder:   s.taskOrder.Clone(),
		ModalOpen:   s.modalOpen,
	}
	if s.editingTask != nil {
		cp := *s.editingTask
		st.EditingTask = &cp
	}
	return st
}
