package postgres

import (
	"context"
	"errors"
	"fmt"

	"marketplace-settlement/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// LedgerRepo implements ports.LedgerRepository.
// Amounts travel as text and are cast to NUMERIC in SQL so no precision is lost.
type LedgerRepo struct {
	pool Pool
}

// NewLedgerRepo creates a new LedgerRepo.
func NewLedgerRepo(pool Pool) *LedgerRepo {
	return &LedgerRepo{pool: pool}
}

// Credit adds amount to the user's balance, creating the row on first credit.
func (r *LedgerRepo) Credit(ctx context.Context, tx pgx.Tx, userID uuid.UUID, tokenType string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("credit amount must be positive, got %s", amount)
	}

	query := `INSERT INTO user_balances (user_id, token_type, balance, updated_at)
		VALUES ($1, $2, $3::numeric, now())
		ON CONFLICT (user_id, token_type)
		DO UPDATE SET balance = user_balances.balance + EXCLUDED.balance, updated_at = now()`

	if _, err := tx.Exec(ctx, query, userID, tokenType, amount.String()); err != nil {
		return fmt.Errorf("credit balance: %w", err)
	}
	return nil
}

// Debit subtracts amount only when the balance covers it.
// Returns domain.ErrInsufficientBalance when no row qualifies.
func (r *LedgerRepo) Debit(ctx context.Context, tx pgx.Tx, userID uuid.UUID, tokenType string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("debit amount must be positive, got %s", amount)
	}

	query := `UPDATE user_balances SET balance = balance - $3::numeric, updated_at = now()
		WHERE user_id = $1 AND token_type = $2 AND balance >= $3::numeric`

	tag, err := tx.Exec(ctx, query, userID, tokenType, amount.String())
	if err != nil {
		return fmt.Errorf("debit balance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrInsufficientBalance
	}
	return nil
}

// GetBalance fetches one balance. Returns nil, nil if the user never held the token.
func (r *LedgerRepo) GetBalance(ctx context.Context, userID uuid.UUID, tokenType string) (*domain.Balance, error) {
	query := `SELECT user_id, token_type, balance::text, updated_at
		FROM user_balances WHERE user_id = $1 AND token_type = $2`

	b, err := scanBalance(r.pool.QueryRow(ctx, query, userID, tokenType))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get balance: %w", err)
	}
	return b, nil
}

// ListBalances returns every token balance the user holds.
func (r *LedgerRepo) ListBalances(ctx context.Context, userID uuid.UUID) ([]domain.Balance, error) {
	query := `SELECT user_id, token_type, balance::text, updated_at
		FROM user_balances WHERE user_id = $1 ORDER BY token_type`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list balances: %w", err)
	}
	defer rows.Close()

	var balances []domain.Balance
	for rows.Next() {
		b, err := scanBalance(rows)
		if err != nil {
			return nil, fmt.Errorf("scan balance row: %w", err)
		}
		balances = append(balances, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate balance rows: %w", err)
	}
	return balances, nil
}

func scanBalance(row pgx.Row) (*domain.Balance, error) {
	b := &domain.Balance{}
	var amount string
	if err := row.Scan(&b.UserID, &b.TokenType, &amount, &b.UpdatedAt); err != nil {
		return nil, err
	}
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("parse balance %q: %w", amount, err)
	}
	b.Amount = d
	return b, nil
}
