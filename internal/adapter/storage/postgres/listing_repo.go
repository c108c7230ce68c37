package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"marketplace-settlement/internal/core/domain"
	"marketplace-settlement/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const listingOneActiveConstraint = "marketplace_listings_one_active"

// ListingRepo implements ports.ListingRepository.
type ListingRepo struct {
	pool Pool
}

// NewListingRepo creates a new ListingRepo.
func NewListingRepo(pool Pool) *ListingRepo {
	return &ListingRepo{pool: pool}
}

const listingColumns = `id, seller_id, item_type, item_id, price::text, currency, status, created_at, updated_at`

// Create inserts a new listing. A second ACTIVE listing for the same item
// surfaces as domain.ErrDuplicateListing.
func (r *ListingRepo) Create(ctx context.Context, tx pgx.Tx, l *domain.Listing) error {
	query := `INSERT INTO marketplace_listings (id, seller_id, item_type, item_id, price, currency, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5::numeric, $6, $7, $8, $9)`

	_, err := tx.Exec(ctx, query,
		l.ID, l.SellerID, l.ItemType, l.ItemID, l.Price.String(),
		l.Currency, l.Status, l.CreatedAt, l.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, listingOneActiveConstraint) {
			return domain.ErrDuplicateListing
		}
		return fmt.Errorf("insert listing: %w", err)
	}
	return nil
}

// GetByID fetches a listing by UUID. Returns nil, nil when absent.
func (r *ListingRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Listing, error) {
	query := `SELECT ` + listingColumns + ` FROM marketplace_listings WHERE id = $1`

	l, err := scanListing(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get listing: %w", err)
	}
	return l, nil
}

// ReserveForSale moves an ACTIVE listing to SOLD. Only one caller can win.
func (r *ListingRepo) ReserveForSale(ctx context.Context, tx pgx.Tx, id uuid.UUID) (bool, error) {
	return r.transition(ctx, tx, `UPDATE marketplace_listings SET status = 'SOLD', updated_at = now()
		WHERE id = $1 AND status = 'ACTIVE'`, id)
}

// RevertReservation puts a SOLD listing back to ACTIVE.
func (r *ListingRepo) RevertReservation(ctx context.Context, tx pgx.Tx, id uuid.UUID) (bool, error) {
	return r.transition(ctx, tx, `UPDATE marketplace_listings SET status = 'ACTIVE', updated_at = now()
		WHERE id = $1 AND status = 'SOLD'`, id)
}

// Cancel withdraws an ACTIVE listing owned by sellerID.
func (r *ListingRepo) Cancel(ctx context.Context, tx pgx.Tx, id, sellerID uuid.UUID) (bool, error) {
	return r.transition(ctx, tx, `UPDATE marketplace_listings SET status = 'CANCELLED', updated_at = now()
		WHERE id = $1 AND seller_id = $2 AND status = 'ACTIVE'`, id, sellerID)
}

func (r *ListingRepo) transition(ctx context.Context, tx pgx.Tx, query string, args ...any) (bool, error) {
	tag, err := tx.Exec(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("update listing status: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ListActive returns a page of ACTIVE listings, optionally filtered by item type.
func (r *ListingRepo) ListActive(ctx context.Context, params ports.ListingListParams) ([]domain.Listing, int64, error) {
	conditions := []string{"status = 'ACTIVE'"}
	args := []any{}
	if params.ItemType != nil {
		args = append(args, *params.ItemType)
		conditions = append(conditions, fmt.Sprintf("item_type = $%d", len(args)))
	}
	return r.page(ctx, "WHERE "+strings.Join(conditions, " AND "), args, params.Page, params.PageSize)
}

// ListBySeller returns a page of every listing the seller created.
func (r *ListingRepo) ListBySeller(ctx context.Context, sellerID uuid.UUID, page, pageSize int) ([]domain.Listing, int64, error) {
	return r.page(ctx, "WHERE seller_id = $1", []any{sellerID}, page, pageSize)
}

func (r *ListingRepo) page(ctx context.Context, where string, args []any, page, pageSize int) ([]domain.Listing, int64, error) {
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM marketplace_listings %s", where)
	var total int64
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count listings: %w", err)
	}

	_, pageSize, offset := normalizePage(page, pageSize)
	dataQuery := fmt.Sprintf(`SELECT %s FROM marketplace_listings %s
		ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		listingColumns, where, len(args)+1, len(args)+2)

	rows, err := r.pool.Query(ctx, dataQuery, append(args, pageSize, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list listings: %w", err)
	}
	defer rows.Close()

	var listings []domain.Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan listing row: %w", err)
		}
		listings = append(listings, *l)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate listing rows: %w", err)
	}
	return listings, total, nil
}

func scanListing(row pgx.Row) (*domain.Listing, error) {
	l := &domain.Listing{}
	var price string
	err := row.Scan(
		&l.ID, &l.SellerID, &l.ItemType, &l.ItemID, &price,
		&l.Currency, &l.Status, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	d, err := decimal.NewFromString(price)
	if err != nil {
		return nil, fmt.Errorf("parse listing price %q: %w", price, err)
	}
	l.Price = d
	return l, nil
}
