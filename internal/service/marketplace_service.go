package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"marketplace-settlement/internal/core/domain"
	"marketplace-settlement/internal/core/ports"
	"marketplace-settlement/pkg/apperror"
	"marketplace-settlement/pkg/logger"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// MarketplaceServiceImpl implements ports.MarketplaceService.
type MarketplaceServiceImpl struct {
	listings   ports.ListingRepository
	assets     ports.AssetRepository
	ledger     ports.LedgerRepository
	transactor ports.DBTransactor
	log        zerolog.Logger
}

// NewMarketplaceService creates a new MarketplaceServiceImpl.
func NewMarketplaceService(
	listings ports.ListingRepository,
	assets ports.AssetRepository,
	ledger ports.LedgerRepository,
	transactor ports.DBTransactor,
	log zerolog.Logger,
) *MarketplaceServiceImpl {
	return &MarketplaceServiceImpl{
		listings:   listings,
		assets:     assets,
		ledger:     ledger,
		transactor: transactor,
		log:        logger.Component(log, "marketplace"),
	}
}

// ListItem puts an owned, tradeable asset up for sale. The asset is locked
// (non-tradeable) in the same transaction that creates the listing.
func (s *MarketplaceServiceImpl) ListItem(ctx context.Context, req ports.ListItemRequest) (*domain.Listing, error) {
	if !domain.ValidAmount(req.Price) {
		return nil, apperror.ErrInvalidAmount()
	}
	if !req.ItemType.Valid() {
		return nil, apperror.Validation(fmt.Sprintf("unknown item type %q", req.ItemType))
	}
	currency := req.Currency
	if currency == "" {
		currency = domain.DefaultTokenType
	}

	asset, err := s.assets.GetOwnership(ctx, req.ItemType, req.ItemID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get ownership: %w", err))
	}
	if asset == nil || asset.UserID != req.SellerID {
		return nil, apperror.ErrNotOwner()
	}
	if !asset.Tradeable {
		return nil, apperror.ErrDuplicateListing()
	}

	now := time.Now().UTC()
	listing := &domain.Listing{
		ID:        uuid.New(),
		SellerID:  req.SellerID,
		ItemType:  req.ItemType,
		ItemID:    req.ItemID,
		Price:     req.Price,
		Currency:  currency,
		Status:    domain.ListingStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	if err := s.listings.Create(ctx, dbTx, listing); err != nil {
		if errors.Is(err, domain.ErrDuplicateListing) {
			return nil, apperror.ErrDuplicateListing()
		}
		return nil, apperror.InternalError(fmt.Errorf("create listing: %w", err))
	}

	if err := s.assets.SetTradeable(ctx, dbTx, req.ItemType, req.ItemID, req.SellerID, false); err != nil {
		if errors.Is(err, domain.ErrNotOwner) {
			return nil, apperror.ErrNotOwner()
		}
		return nil, apperror.InternalError(fmt.Errorf("lock asset: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("listing_id", listing.ID.String()).
		Str("seller_id", req.SellerID.String()).
		Str("item_type", string(req.ItemType)).
		Str("price", req.Price.String()).
		Msg("item listed")

	return listing, nil
}

// CancelListing withdraws an ACTIVE listing owned by requesterID and makes the
// asset tradeable again.
func (s *MarketplaceServiceImpl) CancelListing(ctx context.Context, listingID, requesterID uuid.UUID) (*domain.Listing, error) {
	listing, err := s.listings.GetByID(ctx, listingID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get listing: %w", err))
	}
	if listing == nil {
		return nil, apperror.ErrNotFound("listing")
	}
	if listing.SellerID != requesterID {
		return nil, apperror.ErrNotOwner()
	}
	if !listing.IsActive() {
		return nil, apperror.ErrAlreadyFinalized()
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	cancelled, err := s.listings.Cancel(ctx, dbTx, listingID, requesterID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("cancel listing: %w", err))
	}
	if !cancelled {
		// sold or cancelled between the read and the update
		return nil, apperror.ErrAlreadyFinalized()
	}

	if err := s.assets.SetTradeable(ctx, dbTx, listing.ItemType, listing.ItemID, requesterID, true); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("unlock asset: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	listing.Status = domain.ListingStatusCancelled
	listing.UpdatedAt = time.Now().UTC()

	s.log.Info().
		Str("listing_id", listingID.String()).
		Str("seller_id", requesterID.String()).
		Msg("listing cancelled")

	return listing, nil
}

// GetListing returns a single listing in any status.
func (s *MarketplaceServiceImpl) GetListing(ctx context.Context, listingID uuid.UUID) (*domain.Listing, error) {
	listing, err := s.listings.GetByID(ctx, listingID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get listing: %w", err))
	}
	if listing == nil {
		return nil, apperror.ErrNotFound("listing")
	}
	return listing, nil
}

// ListActive browses purchasable listings.
func (s *MarketplaceServiceImpl) ListActive(ctx context.Context, params ports.ListingListParams) ([]domain.Listing, int64, error) {
	if params.ItemType != nil && !params.ItemType.Valid() {
		return nil, 0, apperror.Validation(fmt.Sprintf("unknown item type %q", *params.ItemType))
	}
	listings, total, err := s.listings.ListActive(ctx, params)
	if err != nil {
		return nil, 0, apperror.InternalError(fmt.Errorf("list active: %w", err))
	}
	return listings, total, nil
}

// ListMyListings returns every listing a seller created, newest first.
func (s *MarketplaceServiceImpl) ListMyListings(ctx context.Context, sellerID uuid.UUID, page, pageSize int) ([]domain.Listing, int64, error) {
	listings, total, err := s.listings.ListBySeller(ctx, sellerID, page, pageSize)
	if err != nil {
		return nil, 0, apperror.InternalError(fmt.Errorf("list by seller: %w", err))
	}
	return listings, total, nil
}

func (s *MarketplaceServiceImpl) GetBalances(ctx context.Context, userID uuid.UUID) ([]domain.Balance, error) {
	balances, err := s.ledger.ListBalances(ctx, userID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list balances: %w", err))
	}
	return balances, nil
}

func (s *MarketplaceServiceImpl) GetInventory(ctx context.Context, userID uuid.UUID) ([]domain.Asset, error) {
	assets, err := s.assets.ListByOwner(ctx, userID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list assets: %w", err))
	}
	return assets, nil
}
