package postgres

import (
	"context"
	"errors"
	"fmt"

	"marketplace-settlement/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// BatchRepo implements ports.BatchRepository.
type BatchRepo struct {
	pool Pool
}

// NewBatchRepo creates a new BatchRepo.
func NewBatchRepo(pool Pool) *BatchRepo {
	return &BatchRepo{pool: pool}
}

const batchColumns = `batch_id, operation_type, status, total_operations, completed_operations, failed_operations,
	progress, error_message, operation_details, created_by, created_at, start_time, end_time, updated_at`

// Create inserts a new batch operation.
func (r *BatchRepo) Create(ctx context.Context, b *domain.BatchOperation) error {
	query := `INSERT INTO batch_operations (batch_id, operation_type, status, total_operations,
		completed_operations, failed_operations, progress, operation_details, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	var details []byte
	if len(b.OperationDetails) > 0 {
		details = b.OperationDetails
	}

	_, err := r.pool.Exec(ctx, query,
		b.ID, b.OperationType, b.Status, b.TotalOperations,
		b.CompletedOperations, b.FailedOperations, b.Progress, details,
		b.CreatedBy, b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert batch operation: %w", err)
	}
	return nil
}

// GetByID fetches a batch by its id. Returns nil, nil when absent.
func (r *BatchRepo) GetByID(ctx context.Context, id string) (*domain.BatchOperation, error) {
	query := `SELECT ` + batchColumns + ` FROM batch_operations WHERE batch_id = $1`

	b, err := scanBatch(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get batch operation: %w", err)
	}
	return b, nil
}

// Start moves a PENDING batch to PROCESSING and stamps start_time.
func (r *BatchRepo) Start(ctx context.Context, id string) (bool, error) {
	query := `UPDATE batch_operations SET status = 'PROCESSING', start_time = now(), updated_at = now()
		WHERE batch_id = $1 AND status = 'PENDING'`

	tag, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("start batch operation: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// UpdateProgress stores counters for a running batch. Counters and progress
// never move backwards, even if updates arrive out of order.
func (r *BatchRepo) UpdateProgress(ctx context.Context, id string, completed, failed, progress int) (bool, error) {
	query := `UPDATE batch_operations SET
		completed_operations = GREATEST(completed_operations, $2),
		failed_operations = GREATEST(failed_operations, $3),
		progress = GREATEST(progress, $4),
		updated_at = now()
		WHERE batch_id = $1 AND status = 'PROCESSING'`

	tag, err := r.pool.Exec(ctx, query, id, completed, failed, progress)
	if err != nil {
		return false, fmt.Errorf("update batch progress: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Finish moves a non-terminal batch to a terminal status. COMPLETED forces
// progress to 100. Returns false if the batch already finished.
func (r *BatchRepo) Finish(ctx context.Context, id string, status domain.BatchStatus, errorMessage *string) (bool, error) {
	if !status.IsTerminal() {
		return false, fmt.Errorf("finish batch: %s is not a terminal status", status)
	}

	query := `UPDATE batch_operations SET status = $2, error_message = $3,
		progress = CASE WHEN $2 = 'COMPLETED' THEN 100 ELSE progress END,
		end_time = now(), updated_at = now()
		WHERE batch_id = $1 AND status IN ('PENDING', 'PROCESSING')`

	tag, err := r.pool.Exec(ctx, query, id, status, errorMessage)
	if err != nil {
		return false, fmt.Errorf("finish batch operation: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ListByUser returns the user's batches, newest first.
func (r *BatchRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.BatchOperation, error) {
	query := `SELECT ` + batchColumns + ` FROM batch_operations WHERE created_by = $1 ORDER BY created_at DESC`
	return r.list(ctx, query, userID)
}

// ListActive returns PENDING and PROCESSING batches, oldest first.
func (r *BatchRepo) ListActive(ctx context.Context) ([]domain.BatchOperation, error) {
	query := `SELECT ` + batchColumns + ` FROM batch_operations
		WHERE status IN ('PENDING', 'PROCESSING') ORDER BY created_at ASC`
	return r.list(ctx, query)
}

func (r *BatchRepo) list(ctx context.Context, query string, args ...any) ([]domain.BatchOperation, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list batch operations: %w", err)
	}
	defer rows.Close()

	var batches []domain.BatchOperation
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, fmt.Errorf("scan batch row: %w", err)
		}
		batches = append(batches, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate batch rows: %w", err)
	}
	return batches, nil
}

func scanBatch(row pgx.Row) (*domain.BatchOperation, error) {
	b := &domain.BatchOperation{}
	var details []byte
	err := row.Scan(
		&b.ID, &b.OperationType, &b.Status, &b.TotalOperations, &b.CompletedOperations, &b.FailedOperations,
		&b.Progress, &b.ErrorMessage, &details, &b.CreatedBy, &b.CreatedAt, &b.StartTime, &b.EndTime, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(details) > 0 {
		b.OperationDetails = details
	}
	return b, nil
}
