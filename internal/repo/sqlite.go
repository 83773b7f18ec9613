package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/BuzzLyutic/kanban-board/internal/model"
)

const sqliteDriver = "sqlite"

// SQLiteRepo is the embedded task store used when no Postgres URL is configured.
type SQLiteRepo struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLite opens (and migrates) the database file at path.
func OpenSQLite(path string) (*SQLiteRepo, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite dir: %w", err)
	}
	db, err := sql.Open(sqliteDriver, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	return newSQLiteRepo(db)
}

// OpenSQLiteInMemory opens a private in-memory database.
func OpenSQLiteInMemory() (*SQLiteRepo, error) {
	db, err := sql.Open(sqliteDriver, ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open sqlite memory: %w", err)
	}
	// every pooled connection would otherwise get its own empty database
	db.SetMaxOpenConns(1)
	return newSQLiteRepo(db)
}

func newSQLiteRepo(db *sql.DB) (*SQLiteRepo, error) {
	r := &SQLiteRepo{db: db, now: time.Now}
	if err := r.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return r, nil
}

func (r *SQLiteRepo) Close() error {
	return r.db.Close()
}

func (r *SQLiteRepo) migrate(ctx context.Context) error {
	stmts := []string{
		`PRAGMA foreign_keys = ON;`,
		`CREATE TABLE IF NOT EXISTS tasks (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			board_column TEXT NOT NULL DEFAULT 'backlog'
				CHECK (board_column IN ('backlog', 'inprogress', 'review', 'done')),
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_board_column ON tasks (board_column);`,
		`CREATE TABLE IF NOT EXISTS idempotency_keys (
			key TEXT PRIMARY KEY,
			resource_id INTEGER NOT NULL,
			created_at TEXT NOT NULL,
			FOREIGN KEY(resource_id) REFERENCES tasks(id) ON DELETE CASCADE
		);`,
	}
	for _, stmt := range stmts {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate sqlite: %w", err)
		}
	}
	return nil
}

func (r *SQLiteRepo) Create(ctx context.Context, in model.TaskInput) (model.Task, error) {
	now := ts(r.now())
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO tasks (title, description, board_column, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`, in.Title, in.Description, string(in.Column), now, now)
	if err != nil {
		return model.Task{}, mapSQLiteError(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.Task{}, err
	}
	return r.Get(ctx, id)
}

func (r *SQLiteRepo) Get(ctx context.Context, id int64) (model.Task, error) {
	t, err := scanSQLiteTask(r.db.QueryRowContext(ctx, `
		SELECT `+taskColumns+` FROM tasks WHERE id = ?
	`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Task{}, ErrorNotFound
	}
	return t, err
}

func (r *SQLiteRepo) List(ctx context.Context, filter model.TaskFilter, limit int) ([]model.Task, error) {
	var column any
	if filter.Column != nil {
		column = string(*filter.Column)
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+taskColumns+`
		FROM tasks
		WHERE (? IS NULL OR board_column = ?)
		ORDER BY id
		LIMIT ?
	`, column, column, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tasks := make([]model.Task, 0)
	for rows.Next() {
		t, err := scanSQLiteTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func (r *SQLiteRepo) Update(ctx context.Context, id int64, patch model.TaskPatch) (model.Task, error) {
	var column any
	if patch.Column != nil {
		column = string(*patch.Column)
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE tasks
		SET title = COALESCE(?, title),
		    description = COALESCE(?, description),
		    board_column = COALESCE(?, board_column),
		    updated_at = ?
		WHERE id = ?
	`, nullableString(patch.Title), nullableString(patch.Description), column, ts(r.now()), id)
	if err != nil {
		return model.Task{}, mapSQLiteError(err)
	}
	if err := translateNoRows(res); err != nil {
		return model.Task{}, err
	}
	return r.Get(ctx, id)
}

func (r *SQLiteRepo) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return translateNoRows(res)
}

func (r *SQLiteRepo) SaveIdempotencyKey(ctx context.Context, key string, resourceID int64) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO idempotency_keys (key, resource_id, created_at) VALUES (?, ?, ?)
		ON CONFLICT (key) DO NOTHING
	`, key, resourceID, ts(r.now()))
	return err
}

func (r *SQLiteRepo) GetIdempotencyKey(ctx context.Context, key string) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, `
		SELECT resource_id FROM idempotency_keys WHERE key = ?
	`, key).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrorNotFound
	}
	return id, err
}

func (r *SQLiteRepo) GetStats(ctx context.Context) (Stats, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT board_column, COUNT(*) FROM tasks GROUP BY board_column`)
	if err != nil {
		return Stats{}, err
	}
	defer rows.Close()

	stats := newStats()
	for rows.Next() {
		var column string
		var n int
		if err := rows.Scan(&column, &n); err != nil {
			return Stats{}, err
		}
		stats.ByColumn[column] = n
		stats.TotalTasks += n
	}
	return stats, rows.Err()
}

type sqlScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteTask(s sqlScanner) (model.Task, error) {
	var (
		t                    model.Task
		column               string
		createdAt, updatedAt string
	)
	if err := s.Scan(&t.ID, &t.Title, &t.Description, &column, &createdAt, &updatedAt); err != nil {
		return model.Task{}, err
	}
	t.Column = model.Column(column)
	t.CreatedAt = parseTS(createdAt)
	t.UpdatedAt = parseTS(updatedAt)
	return t, nil
}

func translateNoRows(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrorNotFound
	}
	return nil
}

func mapSQLiteError(err error) error {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "unique constraint failed"):
		return ErrorConflict
	case strings.Contains(msg, "check constraint failed"):
		return model.ErrInvalidColumn
	}
	return err
}

func nullableString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func ts(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTS(v string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}
