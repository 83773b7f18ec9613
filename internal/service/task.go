package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/BuzzLyutic/kanban-board/internal/model"
	"github.com/BuzzLyutic/kanban-board/internal/repo"
)

var (
	ErrValidation = errors.New("validation error")
)

// MaxListLimit caps a single listing; the board fetches everything at once.
const MaxListLimit = 1000

type TaskService struct {
	repo repo.TaskRepository
}

func NewTaskService(repo repo.TaskRepository) *TaskService {
	return &TaskService{repo: repo}
}

func (s *TaskService) Create(ctx context.Context, in model.TaskInput, idempKey string) (model.Task, error) {
	if in.Column == "" {
		in.Column = model.ColumnBacklog
	}
	if err := s.validateInput(in); err != nil { // Валидация модели на корректность введенных данных
		return model.Task{}, err
	}

	if idempKey != "" { // Если ключ с ресурсом уже существует, мы не создаем задачу еще раз
		if existingID, err := s.repo.GetIdempotencyKey(ctx, idempKey); err == nil {
			return s.repo.Get(ctx, existingID)
		}
	}

	task, err := s.repo.Create(ctx, in)
	if err != nil {
		return task, err
	}

	// Сохранение нового ключа
	if idempKey != "" {
		if err := s.repo.SaveIdempotencyKey(ctx, idempKey, task.ID); err != nil {
			return task, fmt.Errorf("save idempotency key: %w", err)
		}
	}

	return task, nil
}

func (s *TaskService) Get(ctx context.Context, id int64) (model.Task, error) {
	return s.repo.Get(ctx, id)
}

func (s *TaskService) List(ctx context.Context, filter model.TaskFilter, limit int) ([]model.Task, error) {
	if limit <= 0 || limit > MaxListLimit {
		limit = MaxListLimit
	}
	return s.repo.List(ctx, filter, limit)
}

func (s *TaskService) Update(ctx context.Context, id int64, patch model.TaskPatch) (model.Task, error) {
	if err := s.validatePatch(patch); err != nil {
		return model.Task{}, err
	}
	return s.repo.Update(ctx, id, patch)
}

func (s *TaskService) Delete(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}

func (s *TaskService) GetStats(ctx context.Context) (repo.Stats, error) {
	return s.repo.GetStats(ctx)
}

func (s *TaskService) validateInput(in model.TaskInput) error {
	if strings.TrimSpace(in.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrValidation)
	}
	if !in.Column.Valid() {
		return fmt.Errorf("%w: unknown column %q", ErrValidation, in.Column)
	}
	return nil
}

func (s *TaskService) validatePatch(p model.TaskPatch) error {
	if p.Empty() {
		return fmt.Errorf("%w: nothing to update", ErrValidation)
	}
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrValidation)
	}
	if p.Column != nil && !p.Column.Valid() {
		return fmt.Errorf("%w: unknown column %q", ErrValidation, *p.Column)
	}
	return nil
}
