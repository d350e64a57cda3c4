package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/vietddude/recourse/internal/core/domain"
	"github.com/vietddude/recourse/internal/infra/storage"
)

type TaskRepo struct {
	db *DB
}

func NewTaskRepo(db *DB) *TaskRepo {
	return &TaskRepo{db: db}
}

const taskColumns = `
	id, task_type, payload, status, attempts,
	COALESCE(last_error, '') AS last_error, created_at, updated_at
`

func (r *TaskRepo) Create(ctx context.Context, t *domain.Task) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO tasks (id, task_type, payload, status, attempts, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 0, NOW(), NOW())
	`, t.ID, t.Type, []byte(t.Payload), domain.TaskStatusPending)
	return err
}

func (r *TaskRepo) GetByID(ctx context.Context, id string) (*domain.Task, error) {
	var t domain.Task
	err := r.db.GetContext(ctx, &t, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *TaskRepo) DequeueBatch(ctx context.Context, limit int) ([]*domain.Task, error) {
	var tasks []*domain.Task
	err := r.db.SelectContext(ctx, &tasks, `
		SELECT `+taskColumns+`
		FROM tasks
		WHERE status = $1
		ORDER BY created_at ASC
		LIMIT $2
	`, domain.TaskStatusPending, limit)
	if err != nil {
		return nil, err
	}
	return tasks, nil
}

// ClaimNext takes the oldest pending task under FOR UPDATE SKIP LOCKED so
// parallel workers never pick the same row.
func (r *TaskRepo) ClaimNext(ctx context.Context) (*domain.Task, error) {
	var t domain.Task
	err := r.db.GetContext(ctx, &t, `
		UPDATE tasks
		SET status = $1, updated_at = NOW()
		WHERE id = (
			SELECT id FROM tasks
			WHERE status = $2
			ORDER BY created_at ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+taskColumns+`
	`, domain.TaskStatusProcessing, domain.TaskStatusPending)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *TaskRepo) MarkProcessing(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE tasks SET status = $1, updated_at = NOW() WHERE id = $2
	`, domain.TaskStatusProcessing, id)
	return err
}

func (r *TaskRepo) MarkCompleted(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE tasks SET status = $1, updated_at = NOW() WHERE id = $2
	`, domain.TaskStatusCompleted, id)
	return err
}

func (r *TaskRepo) Requeue(ctx context.Context, id string, attempts int, lastError string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE tasks
		SET status = $1, attempts = $2, last_error = $3, updated_at = NOW()
		WHERE id = $4
	`, domain.TaskStatusPending, attempts, lastError, id)
	return err
}

func (r *TaskRepo) MarkFailed(ctx context.Context, id string, attempts int, lastError string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE tasks
		SET status = $1, attempts = $2, last_error = $3, updated_at = NOW()
		WHERE id = $4
	`, domain.TaskStatusFailed, attempts, lastError, id)
	return err
}

// ReclaimStale requeues tasks stuck in processing beyond the lease, e.g.
// after a worker crash. The interrupted run does not count as an attempt.
func (r *TaskRepo) ReclaimStale(ctx context.Context, lease time.Duration) (int, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE tasks
		SET status = $1, updated_at = NOW()
		WHERE status = $2 AND updated_at < $3
	`, domain.TaskStatusPending, domain.TaskStatusProcessing, time.Now().UTC().Add(-lease))
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (r *TaskRepo) CountByStatus(ctx context.Context) (map[domain.TaskStatus]int, error) {
	rows, err := r.db.QueryxContext(ctx, `SELECT status, COUNT(*) FROM tasks GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[domain.TaskStatus]int)
	for rows.Next() {
		var status domain.TaskStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[status] = count
	}
	return counts, rows.Err()
}
