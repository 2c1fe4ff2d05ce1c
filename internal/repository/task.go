package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/taskdeck/server-go/internal/model"
)

type TaskRepository interface {
	FindByID(ctx context.Context, id string) (*model.Task, error)
	FindByAccountID(ctx context.Context, accountID string) ([]model.Task, error)
	Create(ctx context.Context, params model.CreateTaskParams) (*model.Task, error)
	Update(ctx context.Context, id string, params model.UpdateTaskParams) (*model.Task, error)
	Delete(ctx context.Context, id string) error
	DeleteByAccountID(ctx context.Context, accountID string) (int64, error)
	// WithTx returns a new repository that uses the given transaction
	WithTx(tx *sqlx.Tx) TaskRepository
}

type taskRepo struct {
	db sqlxDB
}

func NewTaskRepository(db *sqlx.DB) TaskRepository {
	return &taskRepo{db: db}
}

func (r *taskRepo) WithTx(tx *sqlx.Tx) TaskRepository {
	return &taskRepo{db: tx}
}

func (r *taskRepo) FindByID(ctx context.Context, id string) (*model.Task, error) {
	var task model.Task
	err := r.db.GetContext(ctx, &task, `
		SELECT * FROM tasks WHERE id = $1
	`, id)
	return HandleNotFound(&task, err)
}

func (r *taskRepo) FindByAccountID(ctx context.Context, accountID string) ([]model.Task, error) {
	var tasks []model.Task
	err := r.db.SelectContext(ctx, &tasks, `
		SELECT * FROM tasks
		WHERE account_id = $1
		ORDER BY created_at DESC
	`, accountID)
	if err != nil {
		return nil, err
	}
	return tasks, nil
}

func (r *taskRepo) Create(ctx context.Context, params model.CreateTaskParams) (*model.Task, error) {
	var task model.Task
	err := r.db.GetContext(ctx, &task, `
		INSERT INTO tasks (id, account_id, title, is_done, times, times_done, note)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING *
	`, uuid.NewString(), params.AccountID, params.Title, params.IsDone, params.Times, params.TimesDone, params.Note)
	if err != nil {
		return nil, err
	}
	return &task, nil
}

func (r *taskRepo) Update(ctx context.Context, id string, params model.UpdateTaskParams) (*model.Task, error) {
	var task model.Task
	err := r.db.GetContext(ctx, &task, `
		UPDATE tasks SET
			title = COALESCE($2, title),
			is_done = COALESCE($3, is_done),
			times = COALESCE($4, times),
			times_done = COALESCE($5, times_done),
			note = COALESCE($6, note),
			updated_at = $7
		WHERE id = $1
		RETURNING *
	`, id, params.Title, params.IsDone, params.Times, params.TimesDone, params.Note, time.Now())
	return HandleNotFound(&task, err)
}

func (r *taskRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	return err
}

func (r *taskRepo) DeleteByAccountID(ctx context.Context, accountID string) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE account_id = $1`, accountID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
