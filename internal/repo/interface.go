package repo

import (
	"context"

	"github.com/BuzzLyutic/kanban-board/internal/model"
)

// TaskRepository определяет интерфейс для работы с задачами
type TaskRepository interface {
	Create(ctx context.Context, in model.TaskInput) (model.Task, error)
	Get(ctx context.Context, id int64) (model.Task, error)
	List(ctx context.Context, filter model.TaskFilter, limit int) ([]model.Task, error)
	Update(ctx context.Context, id int64, patch model.TaskPatch) (model.Task, error)
	Delete(ctx context.Context, id int64) error
	SaveIdempotencyKey(ctx context.Context, key string, resourceID int64) error
	GetIdempotencyKey(ctx context.Context, key string) (int64, error)
	GetStats(ctx context.Context) (Stats, error)
}

// Stats counts tasks per board column.
type Stats struct {
	TotalTasks int            `json:"total_tasks"`
	ByColumn   map[string]int `json:"by_column"`
}

func newStats() Stats {
	stats := Stats{ByColumn: make(map[string]int)}
	for _, col := range model.Columns() {
		stats.ByColumn[string(col)] = 0
	}
	return stats
}
