package postgres

import (
	"context"
	"errors"
	"fmt"

	"marketplace-settlement/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// AssetRepo implements ports.AssetRepository.
type AssetRepo struct {
	pool Pool
}

// NewAssetRepo creates a new AssetRepo.
func NewAssetRepo(pool Pool) *AssetRepo {
	return &AssetRepo{pool: pool}
}

const assetColumns = `id, user_id, asset_type, asset_id, acquisition_type, contract_address, token_id, is_tradeable, acquired_at`

// GetOwnership fetches the current ownership record of an asset.
func (r *AssetRepo) GetOwnership(ctx context.Context, assetType domain.AssetType, assetID uuid.UUID) (*domain.Asset, error) {
	query := `SELECT ` + assetColumns + ` FROM user_assets WHERE asset_type = $1 AND asset_id = $2`

	a, err := scanAsset(r.pool.QueryRow(ctx, query, assetType, assetID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get asset ownership: %w", err)
	}
	return a, nil
}

// ListByOwner returns every asset a user owns, newest first.
func (r *AssetRepo) ListByOwner(ctx context.Context, userID uuid.UUID) ([]domain.Asset, error) {
	query := `SELECT ` + assetColumns + ` FROM user_assets WHERE user_id = $1 ORDER BY acquired_at DESC`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	defer rows.Close()

	var assets []domain.Asset
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, fmt.Errorf("scan asset row: %w", err)
		}
		assets = append(assets, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate asset rows: %w", err)
	}
	return assets, nil
}

// TransferOwnership deletes the record held by from and inserts one for to,
// carrying over the on-chain identifiers. Must run inside a transaction so the
// single-owner constraint is never observed broken.
func (r *AssetRepo) TransferOwnership(ctx context.Context, tx pgx.Tx, assetType domain.AssetType, assetID, from, to uuid.UUID, acquisition domain.AcquisitionType) error {
	deleteQuery := `DELETE FROM user_assets WHERE asset_type = $1 AND asset_id = $2 AND user_id = $3
		RETURNING contract_address, token_id`

	var contract, tokenID *string
	err := tx.QueryRow(ctx, deleteQuery, assetType, assetID, from).Scan(&contract, &tokenID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrNotOwner
		}
		return fmt.Errorf("release asset: %w", err)
	}

	insertQuery := `INSERT INTO user_assets (id, user_id, asset_type, asset_id, acquisition_type,
		contract_address, token_id, is_tradeable, acquired_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE, now())`

	if _, err := tx.Exec(ctx, insertQuery, uuid.New(), to, assetType, assetID, acquisition, contract, tokenID); err != nil {
		return fmt.Errorf("assign asset: %w", err)
	}
	return nil
}

// SetTradeable flips the tradeable flag on an asset owned by ownerID.
func (r *AssetRepo) SetTradeable(ctx context.Context, tx pgx.Tx, assetType domain.AssetType, assetID, ownerID uuid.UUID, tradeable bool) error {
	query := `UPDATE user_assets SET is_tradeable = $4 WHERE asset_type = $1 AND asset_id = $2 AND user_id = $3`

	tag, err := tx.Exec(ctx, query, assetType, assetID, ownerID, tradeable)
	if err != nil {
		return fmt.Errorf("set asset tradeable: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotOwner
	}
	return nil
}

func scanAsset(row pgx.Row) (*domain.Asset, error) {
	a := &domain.Asset{}
	err := row.Scan(
		&a.ID, &a.UserID, &a.AssetType, &a.AssetID, &a.AcquisitionType,
		&a.ContractAddress, &a.TokenID, &a.Tradeable, &a.AcquiredAt,
	)
	if err != nil {
		return nil, err
	}
	return a, nil
}
