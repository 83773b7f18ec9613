package board

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BuzzLyutic/kanban-board/internal/model"
	"github.com/BuzzLyutic/kanban-board/internal/worker"
)

type MockTaskAPI struct {
	mock.Mock
}

func (m *MockTaskAPI) ListTasks(ctx context.Context) ([]model.Task, error) {
	args := m.Called(ctx)
	return args.Get(0).([]model.Task), args.Error(1)
}

func (m *MockTaskAPI) CreateTask(ctx context.Context, in model.TaskInput) (model.Task, error) {
	args := m.Called(ctx, in)
	return args.Get(0).(model.Task), args.Error(1)
}

func (m *MockTaskAPI) UpdateTask(ctx context.Context, id int64, patch model.TaskPatch) (model.Task, error) {
	args := m.Called(ctx, id, patch)
	return args.Get(0).(model.Task), args.Error(1)
}

func (m *MockTaskAPI) DeleteTask(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// inlineJobs runs jobs synchronously so tests observe their effects directly.
type inlineJobs struct{}

func (inlineJobs) Submit(job worker.Job) error {
	_ = job.Run(context.Background())
	return nil
}

type rejectJobs struct{}

func (rejectJobs) Submit(worker.Job) error { return worker.ErrPoolStopped }

func setupBoard(t *testing.T, tasks []model.Task) (*Board, *MockTaskAPI) {
	t.Helper()
	api := new(MockTaskAPI)
	b := New(NewStore(), api, inlineJobs{}, zap.NewNop())
	if tasks != nil {
		api.On("ListTasks", mock.Anything).Return(tasks, nil).Once()
		require.NoError(t, b.Refresh(context.Background()))
	}
	return b, api
}

func columnIs(col model.Column) any {
	return mock.MatchedBy(func(p model.TaskPatch) bool {
		return p.Column != nil && *p.Column == col && p.Title == nil && p.Description == nil
	})
}

func TestBoard_RefreshMergesOrder(t *testing.T) {
	b, api := setupBoard(t, []model.Task{
		task(1, model.ColumnBacklog, "a"),
		task(2, model.ColumnBacklog, "b"),
	})

	b.Store().SetTaskOrder(TaskOrder{model.ColumnBacklog: {2, 1}})
	api.On("ListTasks", mock.Anything).Return([]model.Task{
		task(1, model.ColumnBacklog, "a"),
		task(2, model.ColumnBacklog, "b"),
		task(3, model.ColumnBacklog, "c"),
	}, nil).Once()

	require.NoError(t, b.Refresh(context.Background()))

	assert.Equal(t, []int64{2, 1, 3}, b.Store().TaskOrder()[model.ColumnBacklog])
	assert.Equal(t, []int64{2, 1, 3}, idsOf(b.View(model.ColumnBacklog).Tasks))
	api.AssertExpectations(t)
}

func TestBoard_RefreshError(t *testing.T) {
	b, api := setupBoard(t, []model.Task{task(1, model.ColumnBacklog, "a")})
	api.On("ListTasks", mock.Anything).Return([]model.Task(nil), errors.New("connection refused")).Once()

	err := b.Refresh(context.Background())

	assert.Error(t, err)
	assert.Len(t, b.Store().Tasks(), 1, "cached tasks survive a failed fetch")
}

func TestBoard_DropSameColumn(t *testing.T) {
	b, api := setupBoard(t, []model.Task{
		task(1, model.ColumnBacklog, "a"),
		task(2, model.ColumnBacklog, "b"),
		task(3, model.ColumnBacklog, "c"),
	})

	b.DragStart(task(1, model.ColumnBacklog, "a"))
	b.DragOver(model.ColumnBacklog, 2)
	assert.Equal(t, 2, b.View(model.ColumnBacklog).DropIndex)
	assert.Equal(t, -1, b.View(model.ColumnDone).DropIndex)

	b.DragOver(model.ColumnBacklog, AtEnd)
	assert.Equal(t, 3, b.View(model.ColumnBacklog).DropIndex, "end of column marks after the last card")

	applied := b.Drop(context.Background(), DropAt(model.ColumnBacklog, 2))

	assert.True(t, applied)
	assert.Equal(t, []int64{2, 1, 3}, b.Store().TaskOrder()[model.ColumnBacklog])
	assert.Equal(t, Idle{}, b.DragState())
	api.AssertNotCalled(t, "UpdateTask", mock.Anything, mock.Anything, mock.Anything)
	api.AssertExpectations(t)
}

func TestBoard_DropCrossColumn(t *testing.T) {
	b, api := setupBoard(t, []model.Task{
		task(5, model.ColumnBacklog, "five"),
		task(6, model.ColumnBacklog, "six"),
		task(7, model.ColumnReview, "seven"),
	})

	api.On("UpdateTask", mock.Anything, int64(5), columnIs(model.ColumnReview)).
		Return(task(5, model.ColumnReview, "five"), nil).Once()
	api.On("ListTasks", mock.Anything).Return([]model.Task{
		task(5, model.ColumnReview, "five"),
		task(6, model.ColumnBacklog, "six"),
		task(7, model.ColumnReview, "seven"),
	}, nil).Once()

	b.DragStart(task(5, model.ColumnBacklog, "five"))
	b.DragOver(model.ColumnReview, 0)
	applied := b.Drop(context.Background(), DropAt(model.ColumnReview, 0))

	require.True(t, applied)
	order := b.Store().TaskOrder()
	assert.Equal(t, []int64{6}, order[model.ColumnBacklog])
	assert.Equal(t, []int64{5, 7}, order[model.ColumnReview])
	assert.Equal(t, []int64{5, 7}, idsOf(b.View(model.ColumnReview).Tasks))
	assert.Equal(t, Idle{}, b.DragState())
	api.AssertExpectations(t)
}

func TestBoard_DropCrossColumnIsOptimistic(t *testing.T) {
	api := new(MockTaskAPI)
	pool := worker.NewPool(zap.NewNop(), 1)
	b := New(NewStore(), api, pool, zap.NewNop())

	api.On("ListTasks", mock.Anything).Return([]model.Task{
		task(5, model.ColumnBacklog, "five"),
		task(7, model.ColumnReview, "seven"),
	}, nil).Once()
	require.NoError(t, b.Refresh(context.Background()))

	api.On("UpdateTask", mock.Anything, int64(5), columnIs(model.ColumnReview)).
		Return(task(5, model.ColumnReview, "five"), nil).Once()
	api.On("ListTasks", mock.Anything).Return([]model.Task{
		task(5, model.ColumnReview, "five"),
		task(7, model.ColumnReview, "seven"),
	}, nil).Once()

	b.DragStart(task(5, model.ColumnBacklog, "five"))
	b.Drop(context.Background(), DropAt(model.ColumnReview, 0))

	// the pool has not been started, so nothing reached the network yet
	api.AssertNotCalled(t, "UpdateTask", mock.Anything, mock.Anything, mock.Anything)
	assert.Equal(t, []int64{5, 7}, idsOf(b.View(model.ColumnReview).Tasks))
	assert.Empty(t, b.View(model.ColumnBacklog).Tasks)

	pool.Stop()
	api.AssertExpectations(t)
	assert.Equal(t, []int64{5, 7}, b.Store().TaskOrder()[model.ColumnReview])
}

func TestBoard_DropSyncFailureResyncs(t *testing.T) {
	b, api := setupBoard(t, []model.Task{
		task(5, model.ColumnBacklog, "five"),
		task(6, model.ColumnBacklog, "six"),
		task(7, model.ColumnReview, "seven"),
	})

	api.On("UpdateTask", mock.Anything, int64(5), columnIs(model.ColumnReview)).
		Return(model.Task{}, errors.New("503 service unavailable")).Once()
	api.On("ListTasks", mock.Anything).Return([]model.Task{
		task(5, model.ColumnBacklog, "five"),
		task(6, model.ColumnBacklog, "six"),
		task(7, model.ColumnReview, "seven"),
	}, nil).Once()

	b.DragStart(task(5, model.ColumnBacklog, "five"))
	b.Drop(context.Background(), DropAt(model.ColumnReview, 0))

	// the card snaps back to the server's column; its old slot is not restored
	order := b.Store().TaskOrder()
	assert.Equal(t, []int64{6, 5}, order[model.ColumnBacklog])
	assert.Equal(t, []int64{7}, order[model.ColumnReview])
	assert.Equal(t, []int64{6, 5}, idsOf(b.View(model.ColumnBacklog).Tasks))
	api.AssertExpectations(t)
}

func TestBoard_DropWithoutDragIsIgnored(t *testing.T) {
	b, api := setupBoard(t, []model.Task{task(1, model.ColumnBacklog, "a")})
	before := b.Store().Snapshot()

	applied := b.Drop(context.Background(), DropAt(model.ColumnDone, 0))

	assert.False(t, applied)
	assert.Equal(t, before, b.Store().Snapshot())
	api.AssertNotCalled(t, "UpdateTask", mock.Anything, mock.Anything, mock.Anything)
}

func TestBoard_DropOntoUnknownColumnIsCancelled(t *testing.T) {
	for _, col := range []model.Column{"", "archived"} {
		t.Run(string(col), func(t *testing.T) {
			b, api := setupBoard(t, []model.Task{
				task(1, model.ColumnBacklog, "a"),
				task(2, model.ColumnBacklog, "b"),
			})
			before := b.Store().Snapshot()

			b.DragStart(task(1, model.ColumnBacklog, "a"))
			applied := b.Drop(context.Background(), DropAt(col, 0))

			assert.False(t, applied)
			assert.Equal(t, before, b.Store().Snapshot())
			assert.NotContains(t, b.Store().TaskOrder(), col)
			assert.Equal(t, Idle{}, b.DragState())
			api.AssertNotCalled(t, "UpdateTask", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestBoard_DropUsesFallbackPayload(t *testing.T) {
	b, api := setupBoard(t, []model.Task{
		task(1, model.ColumnBacklog, "a"),
		task(2, model.ColumnBacklog, "b"),
	})

	applied := b.Drop(context.Background(), DropTarget{Column: model.ColumnBacklog, Index: AtEnd, FallbackTaskID: 1})

	assert.True(t, applied)
	assert.Equal(t, []int64{2, 1}, b.Store().TaskOrder()[model.ColumnBacklog])
	api.AssertExpectations(t)
}

func TestBoard_DragEndClearsState(t *testing.T) {
	b, _ := setupBoard(t, []model.Task{task(1, model.ColumnBacklog, "a")})

	b.DragOver(model.ColumnBacklog, 0)
	assert.Equal(t, Idle{}, b.DragState(), "hover without a drag is ignored")

	b.DragStart(task(1, model.ColumnBacklog, "a"))
	b.DragOver(model.ColumnDone, 0)
	assert.Equal(t, Hovering{Dragging: Dragging{TaskID: 1, Source: model.ColumnBacklog}, Target: model.ColumnDone, Index: 0}, b.DragState())

	b.DragEnd()
	assert.Equal(t, Idle{}, b.DragState())

	// a stale drop after drag end has nothing to apply
	assert.False(t, b.Drop(context.Background(), DropAt(model.ColumnDone, 0)))
	assert.Equal(t, []int64{1}, b.Store().TaskOrder()[model.ColumnBacklog])
}

func TestBoard_DropFallsBackToResyncWhenPoolStopped(t *testing.T) {
	api := new(MockTaskAPI)
	b := New(NewStore(), api, rejectJobs{}, zap.NewNop())
	tasks := []model.Task{task(1, model.ColumnBacklog, "a")}
	api.On("ListTasks", mock.Anything).Return(tasks, nil).Twice()
	require.NoError(t, b.Refresh(context.Background()))

	b.DragStart(tasks[0])
	b.Drop(context.Background(), DropAtEnd(model.ColumnDone))

	assert.Equal(t, []int64{1}, b.Store().TaskOrder()[model.ColumnBacklog])
	assert.Empty(t, b.Store().TaskOrder()[model.ColumnDone])
	api.AssertExpectations(t)
}

func TestBoard_LoadMore(t *testing.T) {
	b, _ := setupBoard(t, nil)

	b.LoadMore(model.ColumnReview)
	b.LoadMore(model.ColumnReview)

	items := b.Store().LoadedItems()
	assert.Equal(t, PageSize+10, items[model.ColumnReview])
	assert.Equal(t, PageSize, items[model.ColumnBacklog])
}

func TestBoard_Search(t *testing.T) {
	b, _ := setupBoard(t, []model.Task{
		{ID: 1, Title: "Write docs", Column: model.ColumnBacklog},
		{ID: 2, Title: "Ship", Description: "release DOCS site", Column: model.ColumnBacklog},
		{ID: 3, Title: "Refactor", Column: model.ColumnBacklog},
	})

	b.Search("docs")

	assert.Equal(t, []int64{1, 2}, idsOf(b.View(model.ColumnBacklog).Tasks))
}

func TestBoard_SaveRejectsEmptyTitle(t *testing.T) {
	b, api := setupBoard(t, nil)
	b.OpenCreate()
	before := b.Store().Snapshot()

	err := b.Save(context.Background(), Draft{Title: "   ", Column: model.ColumnBacklog})

	assert.ErrorIs(t, err, ErrEmptyTitle)
	assert.Equal(t, before, b.Store().Snapshot())
	api.AssertNotCalled(t, "CreateTask", mock.Anything, mock.Anything)
	api.AssertNotCalled(t, "UpdateTask", mock.Anything, mock.Anything, mock.Anything)
}

func TestBoard_SaveCreates(t *testing.T) {
	b, api := setupBoard(t, nil)
	b.OpenCreate()
	assert.Equal(t, Draft{Column: model.ColumnBacklog}, b.Draft())

	in := model.TaskInput{Title: "New", Description: "desc", Column: model.ColumnInProgress}
	api.On("CreateTask", mock.Anything, in).Return(model.Task{ID: 9, Title: "New", Column: model.ColumnInProgress}, nil).Once()
	api.On("ListTasks", mock.Anything).Return([]model.Task{{ID: 9, Title: "New", Column: model.ColumnInProgress}}, nil).Once()

	err := b.Save(context.Background(), Draft{Title: "New", Description: "desc", Column: model.ColumnInProgress})

	require.NoError(t, err)
	assert.False(t, b.Store().ModalOpen())
	assert.Nil(t, b.Store().EditingTask())
	assert.Equal(t, []int64{9}, b.Store().TaskOrder()[model.ColumnInProgress])
	api.AssertExpectations(t)
}

func TestBoard_SaveUpdatesEditingTask(t *testing.T) {
	existing := model.Task{ID: 3, Title: "Old", Description: "d", Column: model.ColumnReview}
	b, api := setupBoard(t, []model.Task{existing})
	b.OpenEdit(existing)
	assert.True(t, b.Store().ModalOpen())
	assert.Equal(t, Draft{Title: "Old", Description: "d", Column: model.ColumnReview}, b.Draft())

	api.On("UpdateTask", mock.Anything, int64(3), mock.MatchedBy(func(p model.TaskPatch) bool {
		return p.Title != nil && *p.Title == "New" &&
			p.Description != nil && *p.Description == "d" &&
			p.Column != nil && *p.Column == model.ColumnDone
	})).Return(model.Task{ID: 3, Title: "New", Description: "d", Column: model.ColumnDone}, nil).Once()
	api.On("ListTasks", mock.Anything).Return([]model.Task{{ID: 3, Title: "New", Description: "d", Column: model.ColumnDone}}, nil).Once()

	err := b.Save(context.Background(), Draft{Title: "New", Description: "d", Column: model.ColumnDone})

	require.NoError(t, err)
	assert.False(t, b.Store().ModalOpen())
	assert.Equal(t, []int64{3}, b.Store().TaskOrder()[model.ColumnDone])
	assert.Empty(t, b.Store().TaskOrder()[model.ColumnReview])
	api.AssertExpectations(t)
}

func TestBoard_SaveNetworkErrorPropagates(t *testing.T) {
	b, api := setupBoard(t, nil)
	b.OpenCreate()
	api.On("CreateTask", mock.Anything, mock.Anything).Return(model.Task{}, errors.New("timeout")).Once()

	err := b.Save(context.Background(), Draft{Title: "x"})

	assert.Error(t, err)
	assert.True(t, b.Store().ModalOpen(), "modal stays open when the save fails")
	api.AssertExpectations(t)
}

func TestBoard_Delete(t *testing.T) {
	b, api := setupBoard(t, []model.Task{
		task(1, model.ColumnBacklog, "a"),
		task(2, model.ColumnReview, "b"),
	})
	// a stale duplicate left in another column by an optimistic move
	b.Store().SetTaskOrder(TaskOrder{model.ColumnBacklog: {1}, model.ColumnReview: {2, 1}})

	api.On("DeleteTask", mock.Anything, int64(1)).Return(nil).Once()
	api.On("ListTasks", mock.Anything).Return([]model.Task{task(2, model.ColumnReview, "b")}, nil).Once()

	require.NoError(t, b.Delete(context.Background(), 1))

	order := b.Store().TaskOrder()
	for _, col := range model.Columns() {
		assert.NotContains(t, order[col], int64(1), col)
	}
	assert.Equal(t, []int64{2}, order[model.ColumnReview])
	api.AssertExpectations(t)
}

func TestBoard_DeleteFailureKeepsOrder(t *testing.T) {
	b, api := setupBoard(t, []model.Task{task(1, model.ColumnBacklog, "a")})
	api.On("DeleteTask", mock.Anything, int64(1)).Return(errors.New("not found")).Once()

	err := b.Delete(context.Background(), 1)

	assert.Error(t, err)
	assert.Equal(t, []int64{1}, b.Store().TaskOrder()[model.ColumnBacklog])
}
