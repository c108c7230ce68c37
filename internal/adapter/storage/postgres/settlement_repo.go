package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"marketplace-settlement/internal/core/domain"
	"marketplace-settlement/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const settlementKeyConstraint = "settlements_idempotency_key_key"

// SettlementRepo implements ports.SettlementRepository.
type SettlementRepo struct {
	pool Pool
}

// NewSettlementRepo creates a new SettlementRepo.
func NewSettlementRepo(pool Pool) *SettlementRepo {
	return &SettlementRepo{pool: pool}
}

const settlementColumns = `id, idempotency_key, buyer_id, seller_id, listing_id, item_type, item_id,
	amount::text, currency, buyer_address, chain_tx_hash, status, stage, failure_reason,
	created_at, updated_at, completed_at`

// Create inserts a settlement. Reusing an idempotency key returns
// domain.ErrDuplicateIdempotencyKey.
func (r *SettlementRepo) Create(ctx context.Context, tx pgx.Tx, s *domain.Settlement) error {
	query := `INSERT INTO settlements (id, idempotency_key, buyer_id, seller_id, listing_id, item_type, item_id,
		amount, currency, buyer_address, status, stage, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8::numeric, $9, $10, $11, $12, $13, $14)`

	_, err := tx.Exec(ctx, query,
		s.ID, s.IdempotencyKey, s.BuyerID, s.SellerID, s.ListingID, s.ItemType, s.ItemID,
		s.Amount.String(), s.Currency, s.BuyerAddress, s.Status, s.Stage, s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, settlementKeyConstraint) {
			return domain.ErrDuplicateIdempotencyKey
		}
		return fmt.Errorf("insert settlement: %w", err)
	}
	return nil
}

// GetByID fetches a settlement by UUID. Returns nil, nil when absent.
func (r *SettlementRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Settlement, error) {
	query := `SELECT ` + settlementColumns + ` FROM settlements WHERE id = $1`
	return r.getOne(ctx, query, id)
}

// GetByIdempotencyKey fetches the settlement created under key.
func (r *SettlementRepo) GetByIdempotencyKey(ctx context.Context, key string) (*domain.Settlement, error) {
	query := `SELECT ` + settlementColumns + ` FROM settlements WHERE idempotency_key = $1`
	return r.getOne(ctx, query, key)
}

func (r *SettlementRepo) getOne(ctx context.Context, query string, arg any) (*domain.Settlement, error) {
	s, err := scanSettlement(r.pool.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get settlement: %w", err)
	}
	return s, nil
}

// AdvanceStage moves a PENDING settlement from one stage to the next.
// Returns false if the settlement is no longer at from.
func (r *SettlementRepo) AdvanceStage(ctx context.Context, tx pgx.Tx, id uuid.UUID, from, to domain.SettlementStage) (bool, error) {
	query := `UPDATE settlements SET stage = $3, updated_at = now()
		WHERE id = $1 AND stage = $2 AND status = 'PENDING'`
	return r.conditional(ctx, tx, query, id, from, to)
}

// SetChainSubmitted records the transfer hash and moves LEDGER_APPLIED to CHAIN_SUBMITTED.
func (r *SettlementRepo) SetChainSubmitted(ctx context.Context, tx pgx.Tx, id uuid.UUID, txHash string) (bool, error) {
	query := `UPDATE settlements SET chain_tx_hash = $2, stage = 'CHAIN_SUBMITTED', updated_at = now()
		WHERE id = $1 AND stage = 'LEDGER_APPLIED' AND status = 'PENDING'`
	return r.conditional(ctx, tx, query, id, txHash)
}

// MarkCompleted finalizes a PENDING settlement sitting at from.
func (r *SettlementRepo) MarkCompleted(ctx context.Context, tx pgx.Tx, id uuid.UUID, from domain.SettlementStage) (bool, error) {
	query := `UPDATE settlements SET status = 'COMPLETED', stage = 'COMPLETED', completed_at = now(), updated_at = now()
		WHERE id = $1 AND stage = $2 AND status = 'PENDING'`
	return r.conditional(ctx, tx, query, id, from)
}

// MarkFailed finalizes a PENDING settlement with a failure reason.
func (r *SettlementRepo) MarkFailed(ctx context.Context, tx pgx.Tx, id uuid.UUID, reason string) (bool, error) {
	query := `UPDATE settlements SET status = 'FAILED', stage = 'FAILED', failure_reason = $2,
		completed_at = now(), updated_at = now()
		WHERE id = $1 AND status = 'PENDING'`
	return r.conditional(ctx, tx, query, id, reason)
}

func (r *SettlementRepo) conditional(ctx context.Context, tx pgx.Tx, query string, args ...any) (bool, error) {
	tag, err := tx.Exec(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("update settlement: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ListUnresolved returns PENDING settlements waiting on the chain or on
// compensation, and those abandoned before the chain step (not updated since
// staleBefore), oldest first.
func (r *SettlementRepo) ListUnresolved(ctx context.Context, staleBefore time.Time, limit int) ([]domain.Settlement, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT ` + settlementColumns + ` FROM settlements
		WHERE status = 'PENDING' AND (
			stage IN ('CHAIN_SUBMITTED', 'COMPENSATING')
			OR (stage IN ('LISTING_RESERVED', 'LEDGER_APPLIED') AND updated_at < $1)
		)
		ORDER BY created_at ASC LIMIT $2`

	rows, err := r.pool.Query(ctx, query, staleBefore, limit)
	if err != nil {
		return nil, fmt.Errorf("list unresolved settlements: %w", err)
	}
	defer rows.Close()
	return collectSettlements(rows)
}

// ListByUser returns a page of the user's settlements as buyer, seller or either.
func (r *SettlementRepo) ListByUser(ctx context.Context, params ports.SettlementListParams) ([]domain.Settlement, int64, error) {
	var where string
	switch params.Role {
	case domain.RoleBuyer:
		where = "WHERE buyer_id = $1"
	case domain.RoleSeller:
		where = "WHERE seller_id = $1"
	default:
		where = "WHERE (buyer_id = $1 OR seller_id = $1)"
	}

	var total int64
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM settlements %s", where)
	if err := r.pool.QueryRow(ctx, countQuery, params.UserID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count settlements: %w", err)
	}

	_, pageSize, offset := normalizePage(params.Page, params.PageSize)
	dataQuery := fmt.Sprintf(`SELECT %s FROM settlements %s
		ORDER BY created_at DESC LIMIT $2 OFFSET $3`, settlementColumns, where)

	rows, err := r.pool.Query(ctx, dataQuery, params.UserID, pageSize, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list settlements: %w", err)
	}
	defer rows.Close()

	settlements, err := collectSettlements(rows)
	if err != nil {
		return nil, 0, err
	}
	return settlements, total, nil
}

func collectSettlements(rows pgx.Rows) ([]domain.Settlement, error) {
	var out []domain.Settlement
	for rows.Next() {
		s, err := scanSettlement(rows)
		if err != nil {
			return nil, fmt.Errorf("scan settlement row: %w", err)
		}
		out = append(out, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate settlement rows: %w", err)
	}
	return out, nil
}

func scanSettlement(row pgx.Row) (*domain.Settlement, error) {
	s := &domain.Settlement{}
	var amount string
	err := row.Scan(
		&s.ID, &s.IdempotencyKey, &s.BuyerID, &s.SellerID, &s.ListingID, &s.ItemType, &s.ItemID,
		&amount, &s.Currency, &s.BuyerAddress, &s.ChainTxHash, &s.Status, &s.Stage, &s.FailureReason,
		&s.CreatedAt, &s.UpdatedAt, &s.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("parse settlement amount %q: %w", amount, err)
	}
	s.Amount = d
	return s, nil
}
