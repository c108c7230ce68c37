package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"marketplace-settlement/internal/core/domain"
	"marketplace-settlement/internal/core/ports"
	"marketplace-settlement/pkg/apperror"
	"marketplace-settlement/pkg/logger"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

const (
	idempotencyTTL = 24 * time.Hour

	// A record parked at LEDGER_APPLIED is only picked up by a replay once it
	// has been idle this long; younger ones are still being submitted.
	staleSubmissionAge = 2 * time.Minute

	resumeBatchSize = 500
)

// SettlementDeps groups the collaborators of SettlementServiceImpl.
type SettlementDeps struct {
	Settlements ports.SettlementRepository
	Listings    ports.ListingRepository
	Ledger      ports.LedgerRepository
	Assets      ports.AssetRepository
	Transactor  ports.DBTransactor
	Cache       ports.IdempotencyCache
	Primary     ports.ChainClient
	Fallback    ports.ChainClient // optional
	Retrier     *Retrier
	Tracker     ports.ConfirmationTracker
	Metrics     *Metrics
}

// SettlementServiceImpl implements ports.SettlementService. A purchase moves
// through persisted stages so a replay with the same idempotency key resumes
// where the previous attempt stopped instead of repeating side effects.
type SettlementServiceImpl struct {
	settlements ports.SettlementRepository
	listings    ports.ListingRepository
	ledger      ports.LedgerRepository
	assets      ports.AssetRepository
	transactor  ports.DBTransactor
	idempCache  ports.IdempotencyCache
	primary     ports.ChainClient
	fallback    ports.ChainClient
	retrier     *Retrier
	tracker     ports.ConfirmationTracker
	metrics     *Metrics
	log         zerolog.Logger
	now         func() time.Time
}

// NewSettlementService creates a new SettlementServiceImpl.
func NewSettlementService(deps SettlementDeps, log zerolog.Logger) *SettlementServiceImpl {
	return &SettlementServiceImpl{
		settlements: deps.Settlements,
		listings:    deps.Listings,
		ledger:      deps.Ledger,
		assets:      deps.Assets,
		transactor:  deps.Transactor,
		idempCache:  deps.Cache,
		primary:     deps.Primary,
		fallback:    deps.Fallback,
		retrier:     deps.Retrier,
		tracker:     deps.Tracker,
		metrics:     deps.Metrics,
		log:         logger.Component(log, "settlement"),
		now:         time.Now,
	}
}

// PurchaseItem buys a listing for req.BuyerID.
//
// Returns the settlement as COMPLETED for off-chain items, or PENDING with a
// chain tx hash once the NFT transfer is submitted. Replays of the same
// idempotency key return the stored record, or the original error if it FAILED.
func (s *SettlementServiceImpl) PurchaseItem(ctx context.Context, req ports.PurchaseRequest) (*domain.Settlement, error) {
	if req.IdempotencyKey == "" {
		return nil, apperror.Validation("Idempotency-Key header is required")
	}
	key := domain.BuildPurchaseIdempotencyKey(req.BuyerID, req.IdempotencyKey)

	// Layer 1: Redis idempotency check
	if cached := s.cachedSettlement(ctx, key); cached != nil {
		return replayed(cached)
	}

	// Layer 2: DB idempotency check
	existing, err := s.settlements.GetByIdempotencyKey(ctx, key)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("db idempotency check: %w", err))
	}
	if existing != nil {
		return s.resume(ctx, existing)
	}

	listing, err := s.listings.GetByID(ctx, req.ListingID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get listing: %w", err))
	}
	if listing == nil || !listing.IsActive() {
		return s.unavailable(ctx, key)
	}
	if listing.SellerID == req.BuyerID {
		return nil, apperror.ErrSelfPurchase()
	}

	asset, err := s.assets.GetOwnership(ctx, listing.ItemType, listing.ItemID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get ownership: %w", err))
	}
	if asset != nil && asset.OnChain() && req.BuyerAddress == "" {
		return nil, apperror.Validation("buyer_address is required for on-chain items")
	}

	now := s.now().UTC()
	st := &domain.Settlement{
		ID:             uuid.New(),
		IdempotencyKey: key,
		BuyerID:        req.BuyerID,
		SellerID:       listing.SellerID,
		ListingID:      listing.ID,
		ItemType:       listing.ItemType,
		ItemID:         listing.ItemID,
		Amount:         listing.Price,
		Currency:       listing.Currency,
		Status:         domain.SettlementStatusPending,
		Stage:          domain.StageInitiated,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if req.BuyerAddress != "" {
		addr := req.BuyerAddress
		st.BuyerAddress = &addr
	}

	replay, err := s.reserve(ctx, st)
	if apperror.HasCode(err, apperror.CodeListingUnavailable) {
		return s.unavailable(ctx, key)
	}
	if err != nil {
		return nil, err
	}
	if replay != nil {
		return s.resume(ctx, replay)
	}

	return s.advance(ctx, st)
}

// unavailable reports a listing that cannot be bought, unless a concurrent
// request with the same idempotency key is the one that took it.
func (s *SettlementServiceImpl) unavailable(ctx context.Context, key string) (*domain.Settlement, error) {
	existing, err := s.settlements.GetByIdempotencyKey(ctx, key)
	if err == nil && existing != nil {
		return s.resume(ctx, existing)
	}
	return nil, apperror.ErrListingUnavailable()
}

// reserve inserts the settlement record and takes the listing in one
// transaction. A non-nil record is returned when the idempotency key was
// claimed concurrently.
func (s *SettlementServiceImpl) reserve(ctx context.Context, st *domain.Settlement) (*domain.Settlement, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	if err := s.settlements.Create(ctx, dbTx, st); err != nil {
		if errors.Is(err, domain.ErrDuplicateIdempotencyKey) {
			dbTx.Rollback(ctx) //nolint:errcheck
			existing, err := s.settlements.GetByIdempotencyKey(ctx, st.IdempotencyKey)
			if err != nil {
				return nil, apperror.InternalError(fmt.Errorf("load concurrent settlement: %w", err))
			}
			if existing == nil {
				return nil, apperror.InternalError(fmt.Errorf("settlement for key %q not visible after conflict", st.IdempotencyKey))
			}
			return existing, nil
		}
		return nil, apperror.InternalError(fmt.Errorf("create settlement: %w", err))
	}

	reserved, err := s.listings.ReserveForSale(ctx, dbTx, st.ListingID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("reserve listing: %w", err))
	}
	if !reserved {
		return nil, apperror.ErrListingUnavailable()
	}

	advanced, err := s.settlements.AdvanceStage(ctx, dbTx, st.ID, domain.StageInitiated, domain.StageListingReserved)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("advance stage: %w", err))
	}
	if !advanced {
		return nil, apperror.InternalError(fmt.Errorf("settlement %s left INITIATED", st.ID))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}
	st.Stage = domain.StageListingReserved

	s.log.Info().
		Str("settlement_id", st.ID.String()).
		Str("listing_id", st.ListingID.String()).
		Str("buyer_id", st.BuyerID.String()).
		Msg("listing reserved")

	return nil, nil
}

// resume continues a settlement found by idempotency key.
func (s *SettlementServiceImpl) resume(ctx context.Context, st *domain.Settlement) (*domain.Settlement, error) {
	switch {
	case st.IsTerminal():
		s.cacheSettlement(ctx, st)
		return replayed(st)
	case st.AwaitingChain():
		s.tracker.Track(*st.ChainTxHash, st.ID)
		return st, nil
	case st.NeedsCompensation():
		done, err := s.compensate(ctx, st, domain.FailureChainSubmission)
		if err != nil {
			return nil, err
		}
		return replayed(done)
	case st.Stage == domain.StageListingReserved:
		s.log.Info().Str("settlement_id", st.ID.String()).Msg("resuming settlement before ledger step")
		return s.advance(ctx, st)
	case st.Stage == domain.StageLedgerApplied && s.now().Sub(st.UpdatedAt) >= staleSubmissionAge:
		s.log.Info().Str("settlement_id", st.ID.String()).Msg("resuming stale settlement before chain step")
		return s.advance(ctx, st)
	}
	return st, nil
}

// replayed returns a terminal settlement the way the original request ended:
// COMPLETED records as-is, FAILED ones as the error the first caller saw.
func replayed(st *domain.Settlement) (*domain.Settlement, error) {
	if st.Status != domain.SettlementStatusFailed {
		return st, nil
	}
	return nil, failureError(st)
}

// failureError maps a stored failure reason back to its API error.
func failureError(st *domain.Settlement) error {
	reason := ""
	if st.FailureReason != nil {
		reason = *st.FailureReason
	}
	switch reason {
	case domain.FailureInsufficientBalance:
		return apperror.ErrInsufficientFunds()
	case domain.FailureListingRevertFailed:
		return apperror.ErrInsufficientBalanceAfterReservation(fmt.Errorf("settlement %s awaiting reconciliation", st.ID))
	case domain.FailureChainSubmission, domain.FailureChainReverted, domain.FailureCompensationIncomplete:
		return apperror.ErrChainSubmissionFailed(fmt.Errorf("settlement %s: %s", st.ID, reason))
	default:
		return apperror.InternalError(fmt.Errorf("settlement %s failed: %q", st.ID, reason))
	}
}

func (s *SettlementServiceImpl) advance(ctx context.Context, st *domain.Settlement) (*domain.Settlement, error) {
	if st.Stage == domain.StageListingReserved {
		cur, won, err := s.applyLedger(ctx, st)
		if err != nil {
			return nil, err
		}
		if !won {
			return cur, nil
		}
	}
	if st.Stage == domain.StageLedgerApplied {
		return s.settleOnChain(ctx, st)
	}
	return st, nil
}

// applyLedger debits the buyer, credits the seller and moves ownership in one
// transaction. The stage guard runs first so a concurrent replay blocks on the
// settlement row and then backs out without touching balances. won is false
// when another request already applied the ledger step; cur is then the
// freshly loaded record.
func (s *SettlementServiceImpl) applyLedger(ctx context.Context, st *domain.Settlement) (cur *domain.Settlement, won bool, err error) {
	asset, err := s.assets.GetOwnership(ctx, st.ItemType, st.ItemID)
	if err != nil {
		return nil, false, apperror.InternalError(fmt.Errorf("get ownership: %w", err))
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, false, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	advanced, err := s.settlements.AdvanceStage(ctx, dbTx, st.ID, domain.StageListingReserved, domain.StageLedgerApplied)
	if err != nil {
		return nil, false, apperror.InternalError(fmt.Errorf("advance stage: %w", err))
	}
	if !advanced {
		dbTx.Rollback(ctx) //nolint:errcheck
		cur, err := s.settlements.GetByID(ctx, st.ID)
		if err != nil || cur == nil {
			return nil, false, apperror.InternalError(fmt.Errorf("reload settlement %s: %w", st.ID, err))
		}
		return cur, false, nil
	}

	if err := s.ledger.Debit(ctx, dbTx, st.BuyerID, st.Currency, st.Amount); err != nil {
		dbTx.Rollback(ctx) //nolint:errcheck
		if errors.Is(err, domain.ErrInsufficientBalance) {
			return nil, false, s.releaseAfterInsufficientFunds(ctx, st)
		}
		return nil, false, s.failLedger(ctx, st, fmt.Errorf("debit buyer: %w", err))
	}

	if err := s.ledger.Credit(ctx, dbTx, st.SellerID, st.Currency, st.Amount); err != nil {
		dbTx.Rollback(ctx) //nolint:errcheck
		return nil, false, s.failLedger(ctx, st, fmt.Errorf("credit seller: %w", err))
	}

	if err := s.assets.TransferOwnership(ctx, dbTx, st.ItemType, st.ItemID, st.SellerID, st.BuyerID, domain.AcquisitionPurchased); err != nil {
		dbTx.Rollback(ctx) //nolint:errcheck
		return nil, false, s.failLedger(ctx, st, fmt.Errorf("transfer ownership: %w", err))
	}

	// The buyer cannot re-list an NFT until the transfer confirms, so a revert
	// never has to unwind a listing.
	if asset != nil && asset.OnChain() {
		if err := s.assets.SetTradeable(ctx, dbTx, st.ItemType, st.ItemID, st.BuyerID, false); err != nil {
			dbTx.Rollback(ctx) //nolint:errcheck
			return nil, false, s.failLedger(ctx, st, fmt.Errorf("lock asset until confirmation: %w", err))
		}
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, false, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}
	st.Stage = domain.StageLedgerApplied
	st.UpdatedAt = s.now().UTC()

	s.log.Info().
		Str("settlement_id", st.ID.String()).
		Str("amount", st.Amount.String()).
		Str("currency", st.Currency).
		Msg("ledger applied")

	return st, true, nil
}

// releaseAfterInsufficientFunds puts the listing back on sale and fails the
// settlement. If the listing cannot be released it stays SOLD and the record is
// flagged for reconciliation.
func (s *SettlementServiceImpl) releaseAfterInsufficientFunds(ctx context.Context, st *domain.Settlement) error {
	ctx = context.WithoutCancel(ctx)

	err := s.revertReservation(ctx, st)
	if err == nil {
		s.metrics.Settlements.WithLabelValues(string(domain.SettlementStatusFailed)).Inc()
		s.cacheSettlement(ctx, st)
		s.log.Info().
			Str("settlement_id", st.ID.String()).
			Str("buyer_id", st.BuyerID.String()).
			Msg("insufficient balance, listing released")
		return apperror.ErrInsufficientFunds()
	}

	s.log.Error().
		Err(err).
		Str("settlement_id", st.ID.String()).
		Str("listing_id", st.ListingID.String()).
		Msg("listing could not be released after failed debit, flagged for reconciliation")
	s.markFailed(ctx, st, domain.FailureListingRevertFailed)
	return apperror.ErrInsufficientBalanceAfterReservation(err)
}

func (s *SettlementServiceImpl) revertReservation(ctx context.Context, st *domain.Settlement) error {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	reverted, err := s.listings.RevertReservation(ctx, dbTx, st.ListingID)
	if err != nil {
		return fmt.Errorf("revert reservation: %w", err)
	}
	if !reverted {
		return fmt.Errorf("listing %s is no longer reserved", st.ListingID)
	}

	marked, err := s.settlements.MarkFailed(ctx, dbTx, st.ID, domain.FailureInsufficientBalance)
	if err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	if !marked {
		return fmt.Errorf("settlement %s already finalized", st.ID)
	}

	if err := dbTx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	s.setFailed(st, domain.FailureInsufficientBalance)
	return nil
}

// failLedger records a ledger failure. The listing stays SOLD.
func (s *SettlementServiceImpl) failLedger(ctx context.Context, st *domain.Settlement, cause error) error {
	s.log.Error().Err(cause).Str("settlement_id", st.ID.String()).Msg("ledger step failed")
	s.markFailed(context.WithoutCancel(ctx), st, domain.FailureLedgerError)
	return apperror.InternalError(cause)
}

// settleOnChain submits the NFT transfer for on-chain items, or completes the
// settlement directly when there is nothing to move on chain.
func (s *SettlementServiceImpl) settleOnChain(ctx context.Context, st *domain.Settlement) (*domain.Settlement, error) {
	asset, err := s.assets.GetOwnership(ctx, st.ItemType, st.ItemID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get ownership: %w", err))
	}
	if asset == nil || !asset.OnChain() {
		return s.complete(ctx, st, domain.StageLedgerApplied)
	}

	if st.BuyerAddress == nil || *st.BuyerAddress == "" {
		cause := errors.New("no destination wallet for on-chain item")
		if _, cerr := s.compensate(ctx, st, domain.FailureChainSubmission); cerr != nil {
			s.log.Error().Err(cerr).Str("settlement_id", st.ID.String()).Msg("compensation failed")
		}
		return nil, apperror.ErrChainSubmissionFailed(cause)
	}

	req := domain.TransferRequest{
		Kind:     domain.TransferNFT,
		Contract: *asset.ContractAddress,
		To:       *st.BuyerAddress,
		TokenID:  *asset.TokenID,
	}

	start := time.Now()
	hash, err := s.submit(ctx, req)
	s.metrics.SubmitLatencySec.WithLabelValues("settlement").Observe(time.Since(start).Seconds())
	if err != nil {
		s.log.Error().
			Err(err).
			Str("settlement_id", st.ID.String()).
			Str("contract", req.Contract).
			Str("token_id", req.TokenID).
			Msg("nft transfer submission failed, compensating")
		if _, cerr := s.compensate(ctx, st, domain.FailureChainSubmission); cerr != nil {
			s.log.Error().Err(cerr).Str("settlement_id", st.ID.String()).Msg("compensation failed")
		}
		return nil, apperror.ErrChainSubmissionFailed(err)
	}

	recordCtx := context.WithoutCancel(ctx)
	dbTx, err := s.transactor.Begin(recordCtx)
	if err != nil {
		s.log.Error().Err(err).Str("settlement_id", st.ID.String()).Str("tx_hash", hash).Msg("submitted transfer not recorded")
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(recordCtx) //nolint:errcheck

	recorded, err := s.settlements.SetChainSubmitted(recordCtx, dbTx, st.ID, hash)
	if err != nil {
		s.log.Error().Err(err).Str("settlement_id", st.ID.String()).Str("tx_hash", hash).Msg("submitted transfer not recorded")
		return nil, apperror.InternalError(fmt.Errorf("record chain submission: %w", err))
	}
	if !recorded {
		dbTx.Rollback(recordCtx) //nolint:errcheck
		s.log.Warn().Str("settlement_id", st.ID.String()).Str("tx_hash", hash).Msg("settlement moved on during submission")
		return s.reload(recordCtx, st.ID)
	}
	if err := dbTx.Commit(recordCtx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	st.ChainTxHash = &hash
	st.Stage = domain.StageChainSubmitted
	st.UpdatedAt = s.now().UTC()
	s.tracker.Track(hash, st.ID)
	s.metrics.Settlements.WithLabelValues(string(domain.SettlementStatusPending)).Inc()

	s.log.Info().
		Str("settlement_id", st.ID.String()).
		Str("tx_hash", hash).
		Msg("nft transfer submitted, awaiting confirmation")

	return st, nil
}

func (s *SettlementServiceImpl) submit(ctx context.Context, req domain.TransferRequest) (string, error) {
	primary := func(ctx context.Context) (string, error) {
		return s.primary.SubmitTransfer(ctx, req)
	}
	var fallback func(ctx context.Context) (string, error)
	if s.fallback != nil {
		fallback = func(ctx context.Context) (string, error) {
			return s.fallback.SubmitTransfer(ctx, req)
		}
	}
	return RetryWithFallback(ctx, s.retrier, "submit_transfer", primary, fallback)
}

func (s *SettlementServiceImpl) complete(ctx context.Context, st *domain.Settlement, from domain.SettlementStage) (*domain.Settlement, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	done, err := s.settlements.MarkCompleted(ctx, dbTx, st.ID, from)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("mark completed: %w", err))
	}
	if !done {
		dbTx.Rollback(ctx) //nolint:errcheck
		return s.reload(ctx, st.ID)
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	now := s.now().UTC()
	st.Status = domain.SettlementStatusCompleted
	st.Stage = domain.StageCompleted
	st.CompletedAt = &now
	st.UpdatedAt = now

	s.cacheSettlement(ctx, st)
	s.metrics.Settlements.WithLabelValues(string(domain.SettlementStatusCompleted)).Inc()

	s.log.Info().
		Str("settlement_id", st.ID.String()).
		Str("buyer_id", st.BuyerID.String()).
		Str("seller_id", st.SellerID.String()).
		Str("amount", st.Amount.String()).
		Msg("settlement completed")

	return st, nil
}

// compensate reverses a ledger step whose on-chain half failed: ownership goes
// back to the seller, the seller is debited and the buyer refunded. The listing
// stays SOLD. If the seller can no longer cover the refund nothing is reversed
// and the record fails as compensation_incomplete.
func (s *SettlementServiceImpl) compensate(ctx context.Context, st *domain.Settlement, reason string) (*domain.Settlement, error) {
	ctx = context.WithoutCancel(ctx)

	if st.Stage != domain.StageCompensating {
		dbTx, err := s.transactor.Begin(ctx)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
		}
		moved, err := s.settlements.AdvanceStage(ctx, dbTx, st.ID, st.Stage, domain.StageCompensating)
		if err != nil {
			dbTx.Rollback(ctx) //nolint:errcheck
			return nil, apperror.InternalError(fmt.Errorf("enter compensation: %w", err))
		}
		if !moved {
			dbTx.Rollback(ctx) //nolint:errcheck
			return s.reload(ctx, st.ID)
		}
		if err := dbTx.Commit(ctx); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
		}
		st.Stage = domain.StageCompensating
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	if err := s.reverseLedger(ctx, dbTx, st); err != nil {
		dbTx.Rollback(ctx) //nolint:errcheck
		if errors.Is(err, domain.ErrInsufficientBalance) || errors.Is(err, domain.ErrNotOwner) {
			s.metrics.Compensations.WithLabelValues("incomplete").Inc()
			s.log.Error().
				Err(err).
				Str("settlement_id", st.ID.String()).
				Str("seller_id", st.SellerID.String()).
				Msg("compensation incomplete, flagged for reconciliation")
			s.markFailed(ctx, st, domain.FailureCompensationIncomplete)
			return st, nil
		}
		// left COMPENSATING; the recheck loop retries
		s.metrics.Compensations.WithLabelValues("error").Inc()
		return nil, apperror.InternalError(fmt.Errorf("compensate: %w", err))
	}

	marked, err := s.settlements.MarkFailed(ctx, dbTx, st.ID, reason)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("mark failed: %w", err))
	}
	if !marked {
		dbTx.Rollback(ctx) //nolint:errcheck
		return s.reload(ctx, st.ID)
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.setFailed(st, reason)
	s.cacheSettlement(ctx, st)
	s.metrics.Compensations.WithLabelValues("applied").Inc()
	s.metrics.Settlements.WithLabelValues(string(domain.SettlementStatusFailed)).Inc()

	s.log.Warn().
		Str("settlement_id", st.ID.String()).
		Str("reason", reason).
		Msg("settlement compensated")

	return st, nil
}

// reverseLedger undoes applyLedger in reverse order.
func (s *SettlementServiceImpl) reverseLedger(ctx context.Context, tx pgx.Tx, st *domain.Settlement) error {
	if err := s.assets.TransferOwnership(ctx, tx, st.ItemType, st.ItemID, st.BuyerID, st.SellerID, domain.AcquisitionTransferred); err != nil {
		return fmt.Errorf("return ownership: %w", err)
	}
	if err := s.ledger.Debit(ctx, tx, st.SellerID, st.Currency, st.Amount); err != nil {
		return fmt.Errorf("debit seller: %w", err)
	}
	if err := s.ledger.Credit(ctx, tx, st.BuyerID, st.Currency, st.Amount); err != nil {
		return fmt.Errorf("refund buyer: %w", err)
	}
	return nil
}

// markFailed moves a PENDING settlement to FAILED in its own transaction.
// Errors are logged; the record then stays PENDING for the recheck loop.
func (s *SettlementServiceImpl) markFailed(ctx context.Context, st *domain.Settlement, reason string) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		s.log.Error().Err(err).Str("settlement_id", st.ID.String()).Msg("mark failed: begin tx")
		return
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	marked, err := s.settlements.MarkFailed(ctx, dbTx, st.ID, reason)
	if err != nil {
		s.log.Error().Err(err).Str("settlement_id", st.ID.String()).Msg("mark failed")
		return
	}
	if !marked {
		return
	}
	if err := dbTx.Commit(ctx); err != nil {
		s.log.Error().Err(err).Str("settlement_id", st.ID.String()).Msg("mark failed: commit tx")
		return
	}

	s.setFailed(st, reason)
	s.cacheSettlement(ctx, st)
	s.metrics.Settlements.WithLabelValues(string(domain.SettlementStatusFailed)).Inc()
}

func (s *SettlementServiceImpl) setFailed(st *domain.Settlement, reason string) {
	now := s.now().UTC()
	r := reason
	st.Status = domain.SettlementStatusFailed
	st.Stage = domain.StageFailed
	st.FailureReason = &r
	st.CompletedAt = &now
	st.UpdatedAt = now
}

func (s *SettlementServiceImpl) reload(ctx context.Context, id uuid.UUID) (*domain.Settlement, error) {
	st, err := s.settlements.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("reload settlement: %w", err))
	}
	if st == nil {
		return nil, apperror.ErrNotFound("settlement")
	}
	return st, nil
}

// ==================== Confirmation handling ====================

// Run consumes confirmation events and re-checks unresolved settlements every
// recheck interval until ctx is cancelled or the event stream closes.
func (s *SettlementServiceImpl) Run(ctx context.Context, recheck time.Duration) {
	if err := s.ResumePending(ctx); err != nil {
		s.log.Warn().Err(err).Msg("startup recovery failed")
	}

	var tick <-chan time.Time
	if recheck > 0 {
		t := time.NewTicker(recheck)
		defer t.Stop()
		tick = t.C
	}

	events := s.tracker.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := s.HandleConfirmation(ctx, ev); err != nil {
				s.log.Error().Err(err).Str("tx_hash", ev.TxHash).Msg("confirmation handling failed")
			}
		case <-tick:
			if err := s.ResumePending(ctx); err != nil {
				s.log.Warn().Err(err).Msg("recheck failed")
			}
		}
	}
}

// HandleConfirmation applies one monitor outcome to its settlement.
func (s *SettlementServiceImpl) HandleConfirmation(ctx context.Context, ev domain.ConfirmationEvent) error {
	st, err := s.settlements.GetByID(ctx, ev.SettlementID)
	if err != nil {
		return fmt.Errorf("load settlement %s: %w", ev.SettlementID, err)
	}
	if st == nil {
		s.log.Warn().Str("settlement_id", ev.SettlementID.String()).Str("tx_hash", ev.TxHash).Msg("confirmation for unknown settlement")
		return nil
	}
	if st.IsTerminal() {
		return nil
	}

	switch ev.Outcome {
	case domain.OutcomeConfirmed:
		return s.confirm(ctx, st, ev)
	case domain.OutcomeFailed:
		_, err := s.compensate(ctx, st, domain.FailureChainReverted)
		return err
	case domain.OutcomeTimeout:
		s.metrics.Settlements.WithLabelValues("TIMEOUT").Inc()
		s.log.Warn().
			Str("error_code", apperror.CodeChainTimeout).
			Str("settlement_id", st.ID.String()).
			Str("tx_hash", ev.TxHash).
			Msg("confirmation timed out, settlement left pending")
		return nil
	}
	return fmt.Errorf("unknown confirmation outcome %q", ev.Outcome)
}

func (s *SettlementServiceImpl) confirm(ctx context.Context, st *domain.Settlement, ev domain.ConfirmationEvent) error {
	if st.Stage != domain.StageChainSubmitted {
		s.log.Warn().
			Str("settlement_id", st.ID.String()).
			Str("stage", string(st.Stage)).
			Msg("confirmation for settlement not awaiting chain")
		return nil
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	confirmed, err := s.settlements.AdvanceStage(ctx, dbTx, st.ID, domain.StageChainSubmitted, domain.StageChainConfirmed)
	if err != nil {
		return fmt.Errorf("advance stage: %w", err)
	}
	if !confirmed {
		return nil
	}
	done, err := s.settlements.MarkCompleted(ctx, dbTx, st.ID, domain.StageChainConfirmed)
	if err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}
	if !done {
		return fmt.Errorf("settlement %s not completable after confirmation", st.ID)
	}
	if err := s.assets.SetTradeable(ctx, dbTx, st.ItemType, st.ItemID, st.BuyerID, true); err != nil {
		return fmt.Errorf("release asset to buyer: %w", err)
	}
	if err := dbTx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	now := s.now().UTC()
	st.Status = domain.SettlementStatusCompleted
	st.Stage = domain.StageCompleted
	st.CompletedAt = &now
	st.UpdatedAt = now
	s.cacheSettlement(ctx, st)
	s.metrics.Settlements.WithLabelValues(string(domain.SettlementStatusCompleted)).Inc()

	s.log.Info().
		Str("settlement_id", st.ID.String()).
		Str("tx_hash", ev.TxHash).
		Uint64("block", ev.BlockNumber).
		Msg("settlement confirmed on chain")
	return nil
}

// ResumePending re-tracks settlements waiting on chain, retries unfinished
// compensations and drives records abandoned before the chain step (older
// than staleSubmissionAge) to a terminal or submitted state.
func (s *SettlementServiceImpl) ResumePending(ctx context.Context) error {
	staleBefore := s.now().Add(-staleSubmissionAge)
	unresolved, err := s.settlements.ListUnresolved(ctx, staleBefore, resumeBatchSize)
	if err != nil {
		return fmt.Errorf("list unresolved: %w", err)
	}

	retracked, compensated, advanced := 0, 0, 0
	for i := range unresolved {
		st := &unresolved[i]
		switch {
		case st.AwaitingChain():
			if s.tracker.Track(*st.ChainTxHash, st.ID) {
				retracked++
			}
		case st.NeedsCompensation():
			if _, err := s.compensate(ctx, st, domain.FailureChainSubmission); err != nil {
				s.log.Warn().Err(err).Str("settlement_id", st.ID.String()).Msg("compensation retry failed")
				continue
			}
			compensated++
		case (st.Stage == domain.StageListingReserved || st.Stage == domain.StageLedgerApplied) &&
			st.UpdatedAt.Before(staleBefore):
			s.log.Info().
				Str("settlement_id", st.ID.String()).
				Str("stage", string(st.Stage)).
				Msg("resuming abandoned settlement")
			if _, err := s.advance(ctx, st); err != nil {
				s.log.Warn().Err(err).Str("settlement_id", st.ID.String()).Msg("abandoned settlement not resumed")
				continue
			}
			advanced++
		}
	}

	if retracked+compensated+advanced > 0 {
		s.log.Info().
			Int("retracked", retracked).
			Int("compensated", compensated).
			Int("advanced", advanced).
			Msg("unresolved settlements resumed")
	}
	return nil
}

// ==================== Queries ====================

// GetSettlement returns a settlement visible to requesterID (buyer or seller).
func (s *SettlementServiceImpl) GetSettlement(ctx context.Context, id, requesterID uuid.UUID) (*domain.Settlement, error) {
	st, err := s.settlements.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get settlement: %w", err))
	}
	if st == nil || (st.BuyerID != requesterID && st.SellerID != requesterID) {
		return nil, apperror.ErrNotFound("settlement")
	}
	return st, nil
}

// GetUserTransactions lists a user's purchases, sales or both, newest first.
func (s *SettlementServiceImpl) GetUserTransactions(ctx context.Context, params ports.SettlementListParams) ([]domain.Settlement, int64, error) {
	switch params.Role {
	case domain.RoleAny, domain.RoleBuyer, domain.RoleSeller:
	default:
		return nil, 0, apperror.Validation(fmt.Sprintf("unknown role %q", params.Role))
	}
	list, total, err := s.settlements.ListByUser(ctx, params)
	if err != nil {
		return nil, 0, apperror.InternalError(fmt.Errorf("list settlements: %w", err))
	}
	return list, total, nil
}

// ==================== Idempotency cache ====================

func (s *SettlementServiceImpl) cachedSettlement(ctx context.Context, key string) *domain.Settlement {
	cached, err := s.idempCache.Get(ctx, key)
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("redis idempotency check failed, falling through to DB")
		return nil
	}
	if cached == nil {
		return nil
	}
	var st domain.Settlement
	if err := json.Unmarshal(cached, &st); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("corrupt idempotency cache entry dropped")
		if err := s.idempCache.Delete(ctx, key); err != nil {
			s.log.Warn().Err(err).Str("key", key).Msg("failed to drop idempotency cache entry")
		}
		return nil
	}
	st.IdempotencyKey = key
	return &st
}

// cacheSettlement stores terminal settlements only; pending ones must be read
// from the database so replays observe progress.
func (s *SettlementServiceImpl) cacheSettlement(ctx context.Context, st *domain.Settlement) {
	if !st.IsTerminal() || st.IdempotencyKey == "" {
		return
	}
	body, err := json.Marshal(st)
	if err != nil {
		s.log.Warn().Err(err).Str("settlement_id", st.ID.String()).Msg("marshal settlement for cache")
		return
	}
	if err := s.idempCache.Set(ctx, st.IdempotencyKey, body, idempotencyTTL); err != nil {
		s.log.Warn().Err(err).Str("key", st.IdempotencyKey).Msg("failed to cache settlement in redis")
	}
}
