package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"playlist-downloader/internal/domain"
	"playlist-downloader/internal/repository"
)

const createBatchesTable = `
CREATE TABLE IF NOT EXISTS batches (
	id TEXT PRIMARY KEY,
	kind TEXT NOT NULL,
	status TEXT NOT NULL,
	started_at DATETIME NOT NULL,
	finished_at DATETIME NULL,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_batches_started_at ON batches(started_at);
`

type BatchRepository struct {
	db *sql.DB
}

func NewBatchRepository(db *sql.DB) repository.BatchRepository {
	return &BatchRepository{db: db}
}

func (r *BatchRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createBatchesTable); err != nil {
		return fmt.Errorf("create batches table: %w", err)
	}
	return nil
}

func (r *BatchRepository) Create(ctx context.Context, batch *domain.BatchRun) error {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx, `
INSERT INTO batches (id, kind, status, started_at, finished_at, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
		batch.ID,
		string(batch.Kind),
		string(batch.Status),
		batch.StartedAt.UTC(),
		nullTime(batch.FinishedAt),
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("insert batch: %w", err)
	}
	return nil
}

func (r *BatchRepository) Finish(ctx context.Context, id string, status domain.BatchStatus, finishedAt time.Time) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE batches
SET status=?, finished_at=?, updated_at=?
WHERE id=?`,
		string(status),
		finishedAt.UTC(),
		time.Now().UTC(),
		id,
	)
	if err != nil {
		return fmt.Errorf("finish batch: %w", err)
	}
	return expectAffected(res, id)
}

func (r *BatchRepository) Get(ctx context.Context, id string) (*domain.BatchRun, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, kind, status, started_at, finished_at
FROM batches
WHERE id=?`, id)
	return scanBatch(row)
}

func (r *BatchRepository) List(ctx context.Context, limit int) ([]domain.BatchRun, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, kind, status, started_at, finished_at
FROM batches
ORDER BY started_at DESC
LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query batches: %w", err)
	}
	defer rows.Close()

	var batches []domain.BatchRun
	for rows.Next() {
		batch, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		batches = append(batches, *batch)
	}
	return batches, rows.Err()
}

func (r *BatchRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM batch_tasks WHERE batch_id=?`, id); err != nil {
		return fmt.Errorf("delete batch tasks: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM batches WHERE id=?`, id)
	if err != nil {
		return fmt.Errorf("delete batch: %w", err)
	}
	if err := expectAffected(res, id); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func scanBatch(scanner interface {
	Scan(dest ...any) error
}) (*domain.BatchRun, error) {
	var (
		batch      domain.BatchRun
		kind       string
		status     string
		startedAt  time.Time
		finishedAt sql.NullTime
	)
	if err := scanner.Scan(&batch.ID, &kind, &status, &startedAt, &finishedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("batch %w", repository.ErrNotFound)
		}
		return nil, fmt.Errorf("scan batch: %w", err)
	}
	batch.Kind = domain.BatchKind(kind)
	batch.Status = domain.BatchStatus(status)
	batch.StartedAt = startedAt.Local()
	if finishedAt.Valid {
		t := finishedAt.Time.Local()
		batch.FinishedAt = &t
	}
	return &batch, nil
}

func expectAffected(res sql.Result, id string) error {
	aff, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if aff == 0 {
		return fmt.Errorf("%s: %w", id, repository.ErrNotFound)
	}
	return nil
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}
