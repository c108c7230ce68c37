package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"marketplace-settlement/internal/core/domain"
	"marketplace-settlement/internal/core/ports"
	"marketplace-settlement/internal/core/ports/mocks"
	"marketplace-settlement/pkg/apperror"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/mock/gomock"
)

const (
	testContract = "0x5FbDB2315678afecb367f032d93F642f64180aa3"
	testWallet   = "0x70997970C51812dc3A010C7d01b50e0d17dc79C8"
)

// settlementFixture wires SettlementServiceImpl to the in-memory store with
// one seller, one item and one ACTIVE listing priced at 100 PLT.
type settlementFixture struct {
	store    *memStore
	cache    *memCache
	primary  *fakeChain
	fallback *fakeChain
	monitor  *MonitorService
	metrics  *Metrics
	svc      *SettlementServiceImpl

	seller  uuid.UUID
	asset   domain.Asset
	listing domain.Listing
}

func newSettlementFixture(t *testing.T, onChain bool, withFallback bool) *settlementFixture {
	t.Helper()

	f := &settlementFixture{
		store:   newMemStore(),
		cache:   newMemCache(),
		primary: newFakeChain("primary"),
		metrics: NewMetrics(prometheus.NewRegistry()),
		seller:  uuid.New(),
	}
	if withFallback {
		f.fallback = newFakeChain("fallback")
	}

	f.asset = domain.Asset{
		ID:              uuid.New(),
		UserID:          f.seller,
		AssetType:       domain.AssetTypeGame,
		AssetID:         uuid.New(),
		AcquisitionType: domain.AcquisitionCreated,
		Tradeable:       false,
	}
	if onChain {
		contract, token := testContract, "42"
		f.asset.ContractAddress, f.asset.TokenID = &contract, &token
	}
	f.store.putAsset(f.asset)

	f.listing = domain.Listing{
		ID:        uuid.New(),
		SellerID:  f.seller,
		ItemType:  f.asset.AssetType,
		ItemID:    f.asset.AssetID,
		Price:     decimal.NewFromInt(100),
		Currency:  domain.DefaultTokenType,
		Status:    domain.ListingStatusActive,
		CreatedAt: time.Now().UTC(),
	}
	f.store.putListing(f.listing)

	f.monitor = NewMonitorService(f.primary, MonitorConfig{PollInterval: 5 * time.Millisecond, MaxWait: time.Minute}, f.metrics, newTestLogger())

	var fallback ports.ChainClient
	if f.fallback != nil {
		fallback = f.fallback
	}
	retrier := NewRetrier(RetryPolicy{MaxAttempts: 3, InitialDelay: time.Millisecond, Multiplier: 2}, f.metrics, newTestLogger())

	f.svc = NewSettlementService(SettlementDeps{
		Settlements: memSettlements{f.store},
		Listings:    memListings{f.store},
		Ledger:      memLedger{f.store},
		Assets:      memAssets{f.store},
		Transactor:  f.store,
		Cache:       f.cache,
		Primary:     f.primary,
		Fallback:    fallback,
		Retrier:     retrier,
		Tracker:     f.monitor,
		Metrics:     f.metrics,
	}, newTestLogger())
	return f
}

func (f *settlementFixture) buyer(balance int64) uuid.UUID {
	id := uuid.New()
	f.store.setBalance(id, balance)
	return id
}

func (f *settlementFixture) purchase(buyer uuid.UUID, key string) (*domain.Settlement, error) {
	return f.svc.PurchaseItem(context.Background(), ports.PurchaseRequest{
		BuyerID:        buyer,
		ListingID:      f.listing.ID,
		IdempotencyKey: key,
		BuyerAddress:   testWallet,
	})
}

func assertBalance(t *testing.T, s *memStore, user uuid.UUID, want int64) {
	t.Helper()
	got := s.balance(user)
	assert.True(t, got.Equal(decimal.NewFromInt(want)), "balance = %s, want %d", got, want)
}

// ==================== PurchaseItem (in-memory) Tests ====================

func TestSettlementService_PurchaseItem_OffChainCompletes(t *testing.T) {
	f := newSettlementFixture(t, false, false)
	buyer := f.buyer(150)

	st, err := f.purchase(buyer, "order-1")
	require.NoError(t, err)

	assert.Equal(t, domain.SettlementStatusCompleted, st.Status)
	assert.Equal(t, domain.StageCompleted, st.Stage)
	assert.NotNil(t, st.CompletedAt)
	assert.Nil(t, st.ChainTxHash)

	assertBalance(t, f.store, buyer, 50)
	assertBalance(t, f.store, f.seller, 100)

	owner, ok := f.store.owner(f.asset.AssetType, f.asset.AssetID)
	require.True(t, ok)
	assert.Equal(t, buyer, owner.UserID)
	assert.Equal(t, domain.AcquisitionPurchased, owner.AcquisitionType)
	assert.True(t, owner.Tradeable)

	assert.Equal(t, domain.ListingStatusSold, f.store.listing(f.listing.ID).Status)
	assert.Equal(t, domain.SettlementStatusCompleted, f.store.settlement(st.ID).Status)
	assert.Zero(t, f.primary.submitCount())
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.Settlements.WithLabelValues("COMPLETED")))
}

// Buyers A and B race for the same 100 PLT listing.
func TestSettlementService_TwoBuyersOneListing(t *testing.T) {
	f := newSettlementFixture(t, false, false)
	buyerA, buyerB := f.buyer(100), f.buyer(100)

	var wg sync.WaitGroup
	start := make(chan struct{})
	results := make(map[uuid.UUID]error, 2)
	var mu sync.Mutex
	for _, b := range []uuid.UUID{buyerA, buyerB} {
		wg.Add(1)
		go func(b uuid.UUID) {
			defer wg.Done()
			<-start
			_, err := f.purchase(b, "buy-42")
			mu.Lock()
			results[b] = err
			mu.Unlock()
		}(b)
	}
	close(start)
	wg.Wait()

	var winner, loser uuid.UUID
	switch {
	case results[buyerA] == nil && results[buyerB] != nil:
		winner, loser = buyerA, buyerB
	case results[buyerB] == nil && results[buyerA] != nil:
		winner, loser = buyerB, buyerA
	default:
		t.Fatalf("expected exactly one winner, got A=%v B=%v", results[buyerA], results[buyerB])
	}

	assertAppError(t, results[loser], apperror.CodeListingUnavailable)
	assertBalance(t, f.store, winner, 0)
	assertBalance(t, f.store, loser, 100)
	assertBalance(t, f.store, f.seller, 100)

	_, credits := f.store.counts()
	assert.Equal(t, 1, credits, "seller must be credited exactly once")
}

func TestSettlementService_ConcurrentPurchases_ExactlyOneSucceeds(t *testing.T) {
	f := newSettlementFixture(t, false, false)

	const buyers = 10
	ids := make([]uuid.UUID, buyers)
	for i := range ids {
		ids[i] = f.buyer(1000)
	}

	var wg sync.WaitGroup
	start := make(chan struct{})
	errs := make([]error, buyers)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, errs[i] = f.purchase(ids[i], fmt.Sprintf("k-%d", i))
		}(i)
	}
	close(start)
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.True(t, apperror.HasCode(err, apperror.CodeListingUnavailable), "unexpected error: %v", err)
	}
	assert.Equal(t, 1, succeeded)
	assertBalance(t, f.store, f.seller, 100)

	total := decimal.Zero
	for _, id := range ids {
		b := f.store.balance(id)
		assert.False(t, b.IsNegative())
		total = total.Add(b)
	}
	assert.True(t, total.Equal(decimal.NewFromInt(buyers*1000-100)))
}

func TestSettlementService_ConcurrentDebitsNeverGoNegative(t *testing.T) {
	store := newMemStore()
	ledger := memLedger{store}
	user := uuid.New()
	store.setBalance(user, 250)

	var wg sync.WaitGroup
	var mu sync.Mutex
	ok := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tx, _ := store.Begin(context.Background())
			err := ledger.Debit(context.Background(), tx, user, domain.DefaultTokenType, decimal.NewFromInt(100))
			if err != nil {
				_ = tx.Rollback(context.Background())
				assert.ErrorIs(t, err, domain.ErrInsufficientBalance)
				return
			}
			_ = tx.Commit(context.Background())
			mu.Lock()
			ok++
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 2, ok)
	assertBalance(t, store, user, 50)
}

func TestSettlementService_Replay_NoDoubleDebit(t *testing.T) {
	f := newSettlementFixture(t, false, false)
	buyer := f.buyer(300)

	first, err := f.purchase(buyer, "same-key")
	require.NoError(t, err)

	// served from the cache
	second, err := f.purchase(buyer, "same-key")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	// served from the database once the cache entry is gone
	require.NoError(t, f.cache.Delete(context.Background(), domain.BuildPurchaseIdempotencyKey(buyer, "same-key")))
	third, err := f.purchase(buyer, "same-key")
	require.NoError(t, err)
	assert.Equal(t, first.ID, third.ID)
	assert.Equal(t, domain.SettlementStatusCompleted, third.Status)

	debits, credits := f.store.counts()
	assert.Equal(t, 1, debits)
	assert.Equal(t, 1, credits)
	assertBalance(t, f.store, buyer, 200)
	assertBalance(t, f.store, f.seller, 100)
}

func TestSettlementService_Replay_ConcurrentSameKey(t *testing.T) {
	f := newSettlementFixture(t, false, false)
	buyer := f.buyer(100)

	var wg sync.WaitGroup
	start := make(chan struct{})
	results := make([]*domain.Settlement, 5)
	errs := make([]error, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			results[i], errs[i] = f.purchase(buyer, "dup")
		}(i)
	}
	close(start)
	wg.Wait()

	var id uuid.UUID
	for i := range results {
		require.NoError(t, errs[i])
		if id == uuid.Nil {
			id = results[i].ID
		}
		assert.Equal(t, id, results[i].ID)
	}
	debits, _ := f.store.counts()
	assert.Equal(t, 1, debits)
	assertBalance(t, f.store, buyer, 0)
}

func TestSettlementService_Replay_ResumesAfterCrashBeforeLedger(t *testing.T) {
	f := newSettlementFixture(t, false, false)
	buyer := f.buyer(100)
	key := domain.BuildPurchaseIdempotencyKey(buyer, "crashed")

	// reservation committed, process died before the ledger step
	sold := f.listing
	sold.Status = domain.ListingStatusSold
	f.store.putListing(sold)
	f.store.putSettlement(domain.Settlement{
		ID:             uuid.New(),
		IdempotencyKey: key,
		BuyerID:        buyer,
		SellerID:       f.seller,
		ListingID:      f.listing.ID,
		ItemType:       f.listing.ItemType,
		ItemID:         f.listing.ItemID,
		Amount:         f.listing.Price,
		Currency:       f.listing.Currency,
		Status:         domain.SettlementStatusPending,
		Stage:          domain.StageListingReserved,
		CreatedAt:      time.Now().UTC(),
		UpdatedAt:      time.Now().UTC(),
	})

	st, err := f.purchase(buyer, "crashed")
	require.NoError(t, err)
	assert.Equal(t, domain.SettlementStatusCompleted, st.Status)

	_, err = f.purchase(buyer, "crashed")
	require.NoError(t, err)

	debits, credits := f.store.counts()
	assert.Equal(t, 1, debits)
	assert.Equal(t, 1, credits)
	assertBalance(t, f.store, buyer, 0)
	assertBalance(t, f.store, f.seller, 100)
}

func TestSettlementService_PurchaseItem_InsufficientFunds(t *testing.T) {
	f := newSettlementFixture(t, false, false)
	poor := f.buyer(50)

	_, err := f.purchase(poor, "poor-1")
	assertAppError(t, err, apperror.CodeInsufficientFunds)

	assertBalance(t, f.store, poor, 50)
	assertBalance(t, f.store, f.seller, 0)
	assert.Equal(t, domain.ListingStatusActive, f.store.listing(f.listing.ID).Status, "reservation must be released")

	st, _ := memSettlements{f.store}.GetByIdempotencyKey(context.Background(), domain.BuildPurchaseIdempotencyKey(poor, "poor-1"))
	require.NotNil(t, st)
	assert.Equal(t, domain.SettlementStatusFailed, st.Status)
	require.NotNil(t, st.FailureReason)
	assert.Equal(t, domain.FailureInsufficientBalance, *st.FailureReason)

	// the listing is still purchasable by someone who can pay
	rich := f.buyer(100)
	got, err := f.purchase(rich, "rich-1")
	require.NoError(t, err)
	assert.Equal(t, domain.SettlementStatusCompleted, got.Status)
}

func TestSettlementService_ListThenCancelThenPurchase(t *testing.T) {
	store := newMemStore()
	seller := uuid.New()
	asset := domain.Asset{ID: uuid.New(), UserID: seller, AssetType: domain.AssetTypeGameItem, AssetID: uuid.New(), Tradeable: true}
	store.putAsset(asset)

	market := NewMarketplaceService(memListings{store}, memAssets{store}, memLedger{store}, store, newTestLogger())
	listing, err := market.ListItem(context.Background(), ports.ListItemRequest{
		SellerID: seller, ItemType: asset.AssetType, ItemID: asset.AssetID, Price: decimal.NewFromInt(10),
	})
	require.NoError(t, err)

	locked, _ := store.owner(asset.AssetType, asset.AssetID)
	assert.False(t, locked.Tradeable)

	_, err = market.CancelListing(context.Background(), listing.ID, seller)
	require.NoError(t, err)

	unlocked, _ := store.owner(asset.AssetType, asset.AssetID)
	assert.True(t, unlocked.Tradeable)

	metrics := NewMetrics(prometheus.NewRegistry())
	svc := NewSettlementService(SettlementDeps{
		Settlements: memSettlements{store},
		Listings:    memListings{store},
		Ledger:      memLedger{store},
		Assets:      memAssets{store},
		Transactor:  store,
		Cache:       newMemCache(),
		Primary:     newFakeChain("primary"),
		Retrier:     NewRetrier(DefaultRetryPolicy(), metrics, newTestLogger()),
		Tracker:     NewMonitorService(newFakeChain("primary"), MonitorConfig{}, metrics, newTestLogger()),
		Metrics:     metrics,
	}, newTestLogger())

	buyer := uuid.New()
	store.setBalance(buyer, 100)
	_, err = svc.PurchaseItem(context.Background(), ports.PurchaseRequest{BuyerID: buyer, ListingID: listing.ID, IdempotencyKey: "late"})
	assertAppError(t, err, apperror.CodeListingUnavailable)
	assertBalance(t, store, buyer, 100)
}

// ==================== On-chain settlement Tests ====================

func TestSettlementService_OnChain_SubmittedThenConfirmed(t *testing.T) {
	f := newSettlementFixture(t, true, false)
	buyer := f.buyer(100)

	var submitted domain.TransferRequest
	f.primary.submit = func(n int, req domain.TransferRequest) (string, error) {
		submitted = req
		return hashA, nil
	}

	st, err := f.purchase(buyer, "nft-1")
	require.NoError(t, err)
	assert.Equal(t, domain.SettlementStatusPending, st.Status)
	assert.Equal(t, domain.StageChainSubmitted, st.Stage)
	require.NotNil(t, st.ChainTxHash)
	assert.Equal(t, hashA, *st.ChainTxHash)

	assert.Equal(t, domain.TransferNFT, submitted.Kind)
	assert.Equal(t, testContract, submitted.Contract)
	assert.Equal(t, testWallet, submitted.To)
	assert.Equal(t, "42", submitted.TokenID)

	tracked, ok := f.monitor.Status(hashA)
	require.True(t, ok)
	assert.Equal(t, st.ID, tracked.SettlementID)

	// ledger is already applied while the chain leg is pending
	assertBalance(t, f.store, buyer, 0)
	assertBalance(t, f.store, f.seller, 100)

	require.NoError(t, f.svc.HandleConfirmation(context.Background(), domain.ConfirmationEvent{
		Outcome: domain.OutcomeConfirmed, TxHash: hashA, SettlementID: st.ID, BlockNumber: 12,
	}))

	final := f.store.settlement(st.ID)
	assert.Equal(t, domain.SettlementStatusCompleted, final.Status)
	assert.Equal(t, domain.StageCompleted, final.Stage)

	// replays now hit the cache with the completed record
	replay, err := f.purchase(buyer, "nft-1")
	require.NoError(t, err)
	assert.Equal(t, domain.SettlementStatusCompleted, replay.Status)
	assert.Equal(t, 1, f.primary.submitCount())
}

func TestSettlementService_OnChain_RevertedIsCompensated(t *testing.T) {
	f := newSettlementFixture(t, true, false)
	buyer := f.buyer(100)

	st, err := f.purchase(buyer, "nft-2")
	require.NoError(t, err)
	require.NotNil(t, st.ChainTxHash)

	require.NoError(t, f.svc.HandleConfirmation(context.Background(), domain.ConfirmationEvent{
		Outcome: domain.OutcomeFailed, TxHash: *st.ChainTxHash, SettlementID: st.ID, Reason: "transaction reverted",
	}))

	final := f.store.settlement(st.ID)
	assert.Equal(t, domain.SettlementStatusFailed, final.Status)
	require.NotNil(t, final.FailureReason)
	assert.Equal(t, domain.FailureChainReverted, *final.FailureReason)

	assertBalance(t, f.store, buyer, 100)
	assertBalance(t, f.store, f.seller, 0)
	owner, _ := f.store.owner(f.asset.AssetType, f.asset.AssetID)
	assert.Equal(t, f.seller, owner.UserID)
	assert.Equal(t, domain.ListingStatusSold, f.store.listing(f.listing.ID).Status, "listing stays SOLD after compensation")
}

func TestSettlementService_OnChain_TimeoutLeavesPending(t *testing.T) {
	f := newSettlementFixture(t, true, false)
	buyer := f.buyer(100)

	st, err := f.purchase(buyer, "nft-3")
	require.NoError(t, err)

	// the monitor drops the hash when it reports a timeout
	f.monitor.Untrack(*st.ChainTxHash)
	require.NoError(t, f.svc.HandleConfirmation(context.Background(), domain.ConfirmationEvent{
		Outcome: domain.OutcomeTimeout, TxHash: *st.ChainTxHash, SettlementID: st.ID,
	}))

	after := f.store.settlement(st.ID)
	assert.Equal(t, domain.SettlementStatusPending, after.Status)
	assert.Equal(t, domain.StageChainSubmitted, after.Stage)
	assertBalance(t, f.store, buyer, 0)

	// the recheck loop picks it up again
	require.NoError(t, f.svc.ResumePending(context.Background()))
	_, tracked := f.monitor.Status(*st.ChainTxHash)
	assert.True(t, tracked)
}

func TestSettlementService_OnChain_SubmissionFailureCompensates(t *testing.T) {
	f := newSettlementFixture(t, true, true)
	buyer := f.buyer(100)

	f.primary.submit = func(int, domain.TransferRequest) (string, error) { return "", errTransient }
	f.fallback.submit = func(int, domain.TransferRequest) (string, error) { return "", errors.New("fallback rpc down") }

	_, err := f.purchase(buyer, "nft-4")
	assertAppError(t, err, apperror.CodeChainSubmissionFailed)

	assert.Equal(t, 3, f.primary.submitCount())
	assert.Equal(t, 1, f.fallback.submitCount())

	st, _ := memSettlements{f.store}.GetByIdempotencyKey(context.Background(), domain.BuildPurchaseIdempotencyKey(buyer, "nft-4"))
	require.NotNil(t, st)
	assert.Equal(t, domain.SettlementStatusFailed, st.Status)
	require.NotNil(t, st.FailureReason)
	assert.Equal(t, domain.FailureChainSubmission, *st.FailureReason)

	assertBalance(t, f.store, buyer, 100)
	assertBalance(t, f.store, f.seller, 0)
	owner, _ := f.store.owner(f.asset.AssetType, f.asset.AssetID)
	assert.Equal(t, f.seller, owner.UserID)
	assert.Equal(t, domain.ListingStatusSold, f.store.listing(f.listing.ID).Status)
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.Compensations.WithLabelValues("applied")))
}

func TestSettlementService_OnChain_FallbackSucceeds(t *testing.T) {
	f := newSettlementFixture(t, true, true)
	buyer := f.buyer(100)

	f.primary.submit = func(int, domain.TransferRequest) (string, error) { return "", errTransient }
	f.fallback.submit = func(int, domain.TransferRequest) (string, error) { return hashB, nil }

	st, err := f.purchase(buyer, "nft-5")
	require.NoError(t, err)
	require.NotNil(t, st.ChainTxHash)
	assert.Equal(t, hashB, *st.ChainTxHash)
	assert.Equal(t, domain.StageChainSubmitted, st.Stage)
}

func TestSettlementService_OnChain_CompensationIncomplete(t *testing.T) {
	f := newSettlementFixture(t, true, false)
	buyer := f.buyer(100)

	// the seller spends the proceeds before the chain leg fails
	f.primary.submit = func(int, domain.TransferRequest) (string, error) {
		f.store.setBalance(f.seller, 0)
		return "", fmt.Errorf("%w: execution reverted", domain.ErrNonRetryable)
	}

	_, err := f.purchase(buyer, "nft-6")
	assertAppError(t, err, apperror.CodeChainSubmissionFailed)
	assert.Equal(t, 1, f.primary.submitCount())

	st, _ := memSettlements{f.store}.GetByIdempotencyKey(context.Background(), domain.BuildPurchaseIdempotencyKey(buyer, "nft-6"))
	require.NotNil(t, st)
	assert.Equal(t, domain.SettlementStatusFailed, st.Status)
	require.NotNil(t, st.FailureReason)
	assert.Equal(t, domain.FailureCompensationIncomplete, *st.FailureReason)

	// nothing was partially reversed
	assertBalance(t, f.store, buyer, 0)
	owner, _ := f.store.owner(f.asset.AssetType, f.asset.AssetID)
	assert.Equal(t, buyer, owner.UserID)
}

func TestSettlementService_ResumePending_FinishesCompensation(t *testing.T) {
	f := newSettlementFixture(t, true, false)
	buyer := f.buyer(0)

	// ledger applied, then the process died mid-compensation
	sold := f.listing
	sold.Status = domain.ListingStatusSold
	f.store.putListing(sold)
	f.store.setBalance(f.seller, 100)
	moved := f.asset
	moved.UserID = buyer
	f.store.putAsset(moved)
	st := domain.Settlement{
		ID:             uuid.New(),
		IdempotencyKey: domain.BuildPurchaseIdempotencyKey(buyer, "orphan"),
		BuyerID:        buyer,
		SellerID:       f.seller,
		ListingID:      f.listing.ID,
		ItemType:       f.asset.AssetType,
		ItemID:         f.asset.AssetID,
		Amount:         decimal.NewFromInt(100),
		Currency:       domain.DefaultTokenType,
		Status:         domain.SettlementStatusPending,
		Stage:          domain.StageCompensating,
		CreatedAt:      time.Now().UTC(),
		UpdatedAt:      time.Now().UTC(),
	}
	f.store.putSettlement(st)

	require.NoError(t, f.svc.ResumePending(context.Background()))

	final := f.store.settlement(st.ID)
	assert.Equal(t, domain.SettlementStatusFailed, final.Status)
	assertBalance(t, f.store, buyer, 100)
	assertBalance(t, f.store, f.seller, 0)
}

func TestSettlementService_ResumePending_AdvancesAbandonedLedgerStep(t *testing.T) {
	f := newSettlementFixture(t, true, false)
	buyer := f.buyer(0)

	// ledger applied, then the process died before submitting the transfer
	sold := f.listing
	sold.Status = domain.ListingStatusSold
	f.store.putListing(sold)
	f.store.setBalance(f.seller, 100)
	moved := f.asset
	moved.UserID = buyer
	f.store.putAsset(moved)

	wallet := testWallet
	abandoned := domain.Settlement{
		ID:             uuid.New(),
		IdempotencyKey: domain.BuildPurchaseIdempotencyKey(buyer, "abandoned"),
		BuyerID:        buyer,
		SellerID:       f.seller,
		ListingID:      f.listing.ID,
		ItemType:       f.asset.AssetType,
		ItemID:         f.asset.AssetID,
		Amount:         decimal.NewFromInt(100),
		Currency:       domain.DefaultTokenType,
		BuyerAddress:   &wallet,
		Status:         domain.SettlementStatusPending,
		Stage:          domain.StageLedgerApplied,
		CreatedAt:      time.Now().UTC().Add(-time.Hour),
		UpdatedAt:      time.Now().UTC().Add(-time.Hour),
	}
	f.store.putSettlement(abandoned)

	// still inside its submission window
	inFlight := abandoned
	inFlight.ID = uuid.New()
	inFlight.IdempotencyKey = domain.BuildPurchaseIdempotencyKey(buyer, "in-flight")
	inFlight.CreatedAt, inFlight.UpdatedAt = time.Now().UTC(), time.Now().UTC()
	f.store.putSettlement(inFlight)

	require.NoError(t, f.svc.ResumePending(context.Background()))

	assert.Equal(t, 1, f.primary.submitCount())
	got := f.store.settlement(abandoned.ID)
	assert.Equal(t, domain.SettlementStatusPending, got.Status)
	assert.Equal(t, domain.StageChainSubmitted, got.Stage)
	require.NotNil(t, got.ChainTxHash)
	_, tracked := f.monitor.Status(*got.ChainTxHash)
	assert.True(t, tracked)

	assert.Equal(t, domain.StageLedgerApplied, f.store.settlement(inFlight.ID).Stage)

	// a second pass does not submit again
	require.NoError(t, f.svc.ResumePending(context.Background()))
	assert.Equal(t, 1, f.primary.submitCount())
}

func TestSettlementService_ResumePending_AbandonedSubmissionFailureCompensates(t *testing.T) {
	f := newSettlementFixture(t, true, false)
	buyer := f.buyer(0)
	f.primary.submit = func(int, domain.TransferRequest) (string, error) {
		return "", fmt.Errorf("%w: execution reverted", domain.ErrNonRetryable)
	}

	sold := f.listing
	sold.Status = domain.ListingStatusSold
	f.store.putListing(sold)
	f.store.setBalance(f.seller, 100)
	moved := f.asset
	moved.UserID = buyer
	f.store.putAsset(moved)

	wallet := testWallet
	st := domain.Settlement{
		ID:             uuid.New(),
		IdempotencyKey: domain.BuildPurchaseIdempotencyKey(buyer, "abandoned"),
		BuyerID:        buyer,
		SellerID:       f.seller,
		ListingID:      f.listing.ID,
		ItemType:       f.asset.AssetType,
		ItemID:         f.asset.AssetID,
		Amount:         decimal.NewFromInt(100),
		Currency:       domain.DefaultTokenType,
		BuyerAddress:   &wallet,
		Status:         domain.SettlementStatusPending,
		Stage:          domain.StageLedgerApplied,
		CreatedAt:      time.Now().UTC().Add(-time.Hour),
		UpdatedAt:      time.Now().UTC().Add(-time.Hour),
	}
	f.store.putSettlement(st)

	require.NoError(t, f.svc.ResumePending(context.Background()))

	final := f.store.settlement(st.ID)
	assert.Equal(t, domain.SettlementStatusFailed, final.Status)
	require.NotNil(t, final.FailureReason)
	assert.Equal(t, domain.FailureChainSubmission, *final.FailureReason)
	assertBalance(t, f.store, buyer, 100)
	assertBalance(t, f.store, f.seller, 0)
	owner, _ := f.store.owner(f.asset.AssetType, f.asset.AssetID)
	assert.Equal(t, f.seller, owner.UserID)
}

func TestSettlementService_ResumePending_AbandonedReservationCompletes(t *testing.T) {
	f := newSettlementFixture(t, false, false)
	buyer := f.buyer(100)

	sold := f.listing
	sold.Status = domain.ListingStatusSold
	f.store.putListing(sold)
	st := domain.Settlement{
		ID:             uuid.New(),
		IdempotencyKey: domain.BuildPurchaseIdempotencyKey(buyer, "reserved"),
		BuyerID:        buyer,
		SellerID:       f.seller,
		ListingID:      f.listing.ID,
		ItemType:       f.listing.ItemType,
		ItemID:         f.listing.ItemID,
		Amount:         f.listing.Price,
		Currency:       f.listing.Currency,
		Status:         domain.SettlementStatusPending,
		Stage:          domain.StageListingReserved,
		CreatedAt:      time.Now().UTC().Add(-time.Hour),
		UpdatedAt:      time.Now().UTC().Add(-time.Hour),
	}
	f.store.putSettlement(st)

	require.NoError(t, f.svc.ResumePending(context.Background()))

	assert.Equal(t, domain.SettlementStatusCompleted, f.store.settlement(st.ID).Status)
	assertBalance(t, f.store, buyer, 0)
	assertBalance(t, f.store, f.seller, 100)
}

// ==================== Relisting during the chain leg ====================

func TestSettlementService_OnChain_BuyerCannotRelistUntilConfirmed(t *testing.T) {
	f := newSettlementFixture(t, true, false)
	market := NewMarketplaceService(memListings{f.store}, memAssets{f.store}, memLedger{f.store}, f.store, newTestLogger())
	buyer := f.buyer(100)
	ctx := context.Background()

	st, err := f.purchase(buyer, "nft-relist")
	require.NoError(t, err)
	require.Equal(t, domain.StageChainSubmitted, st.Stage)

	owned, _ := f.store.owner(f.asset.AssetType, f.asset.AssetID)
	assert.Equal(t, buyer, owned.UserID)
	assert.False(t, owned.Tradeable, "asset locked while the transfer is pending")

	relist := ports.ListItemRequest{
		SellerID: buyer,
		ItemType: f.asset.AssetType,
		ItemID:   f.asset.AssetID,
		Price:    decimal.NewFromInt(150),
		Currency: domain.DefaultTokenType,
	}
	_, err = market.ListItem(ctx, relist)
	assertAppError(t, err, apperror.CodeDuplicateListing)

	require.NoError(t, f.svc.HandleConfirmation(ctx, domain.ConfirmationEvent{
		Outcome: domain.OutcomeConfirmed, TxHash: *st.ChainTxHash, SettlementID: st.ID, BlockNumber: 3,
	}))

	owned, _ = f.store.owner(f.asset.AssetType, f.asset.AssetID)
	assert.True(t, owned.Tradeable)
	listing, err := market.ListItem(ctx, relist)
	require.NoError(t, err)
	assert.Equal(t, buyer, listing.SellerID)
}

func TestSettlementService_OnChain_RevertLeavesNoListingForBuyer(t *testing.T) {
	f := newSettlementFixture(t, true, false)
	market := NewMarketplaceService(memListings{f.store}, memAssets{f.store}, memLedger{f.store}, f.store, newTestLogger())
	buyer := f.buyer(100)
	ctx := context.Background()

	st, err := f.purchase(buyer, "nft-revert-relist")
	require.NoError(t, err)

	_, err = market.ListItem(ctx, ports.ListItemRequest{
		SellerID: buyer,
		ItemType: f.asset.AssetType,
		ItemID:   f.asset.AssetID,
		Price:    decimal.NewFromInt(150),
		Currency: domain.DefaultTokenType,
	})
	require.Error(t, err)

	require.NoError(t, f.svc.HandleConfirmation(ctx, domain.ConfirmationEvent{
		Outcome: domain.OutcomeFailed, TxHash: *st.ChainTxHash, SettlementID: st.ID, Reason: "transaction reverted",
	}))

	active, _, err := memListings{f.store}.ListActive(ctx, ports.ListingListParams{Page: 1, PageSize: 100})
	require.NoError(t, err)
	assert.Empty(t, active, "no ACTIVE listing survives the revert")

	// the seller holds the item again and may list it
	owned, _ := f.store.owner(f.asset.AssetType, f.asset.AssetID)
	assert.Equal(t, f.seller, owned.UserID)
	assert.True(t, owned.Tradeable)
	_, err = market.ListItem(ctx, ports.ListItemRequest{
		SellerID: f.seller,
		ItemType: f.asset.AssetType,
		ItemID:   f.asset.AssetID,
		Price:    decimal.NewFromInt(100),
		Currency: domain.DefaultTokenType,
	})
	require.NoError(t, err)
}

func TestSettlementService_OffChain_BuyerCanRelistImmediately(t *testing.T) {
	f := newSettlementFixture(t, false, false)
	market := NewMarketplaceService(memListings{f.store}, memAssets{f.store}, memLedger{f.store}, f.store, newTestLogger())
	buyer := f.buyer(100)

	_, err := f.purchase(buyer, "off-relist")
	require.NoError(t, err)

	_, err = market.ListItem(context.Background(), ports.ListItemRequest{
		SellerID: buyer,
		ItemType: f.asset.AssetType,
		ItemID:   f.asset.AssetID,
		Price:    decimal.NewFromInt(120),
		Currency: domain.DefaultTokenType,
	})
	require.NoError(t, err)
}

// ==================== Replays of failed purchases ====================

func TestSettlementService_Replay_FailedPurchaseReturnsOriginalError(t *testing.T) {
	f := newSettlementFixture(t, false, false)
	poor := f.buyer(50)
	key := domain.BuildPurchaseIdempotencyKey(poor, "poor-replay")

	_, err := f.purchase(poor, "poor-replay")
	assertAppError(t, err, apperror.CodeInsufficientFunds)

	// served from the cache
	got, err := f.purchase(poor, "poor-replay")
	assertAppError(t, err, apperror.CodeInsufficientFunds)
	assert.Nil(t, got)

	// served from the database
	require.NoError(t, f.cache.Delete(context.Background(), key))
	got, err = f.purchase(poor, "poor-replay")
	assertAppError(t, err, apperror.CodeInsufficientFunds)
	assert.Nil(t, got)

	// topping up does not turn the failed key into a purchase
	f.store.setBalance(poor, 500)
	_, err = f.purchase(poor, "poor-replay")
	assertAppError(t, err, apperror.CodeInsufficientFunds)
	debits, _ := f.store.counts()
	assert.Zero(t, debits)
}

func TestSettlementService_Replay_RevertedPurchaseReturnsChainError(t *testing.T) {
	f := newSettlementFixture(t, true, false)
	buyer := f.buyer(100)

	st, err := f.purchase(buyer, "nft-replay")
	require.NoError(t, err)
	require.NoError(t, f.svc.HandleConfirmation(context.Background(), domain.ConfirmationEvent{
		Outcome: domain.OutcomeFailed, TxHash: *st.ChainTxHash, SettlementID: st.ID, Reason: "transaction reverted",
	}))

	_, err = f.purchase(buyer, "nft-replay")
	assertAppError(t, err, apperror.CodeChainSubmissionFailed)

	require.NoError(t, f.cache.Delete(context.Background(), st.IdempotencyKey))
	_, err = f.purchase(buyer, "nft-replay")
	assertAppError(t, err, apperror.CodeChainSubmissionFailed)
}

func TestFailureError(t *testing.T) {
	tests := []struct {
		reason string
		want   string
	}{
		{domain.FailureInsufficientBalance, apperror.CodeInsufficientFunds},
		{domain.FailureListingRevertFailed, apperror.CodeInsufficientAfterReserve},
		{domain.FailureChainSubmission, apperror.CodeChainSubmissionFailed},
		{domain.FailureChainReverted, apperror.CodeChainSubmissionFailed},
		{domain.FailureCompensationIncomplete, apperror.CodeChainSubmissionFailed},
		{domain.FailureLedgerError, apperror.CodeInternal},
		{"", apperror.CodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.reason, func(t *testing.T) {
			st := &domain.Settlement{ID: uuid.New(), Status: domain.SettlementStatusFailed}
			if tt.reason != "" {
				st.FailureReason = strPtr(tt.reason)
			}
			assertAppError(t, failureError(st), tt.want)
		})
	}
}

func TestSettlementService_Run_EndToEnd(t *testing.T) {
	defer goleak.VerifyNone(t)

	f := newSettlementFixture(t, true, false)
	buyer := f.buyer(100)
	f.primary.setHead(20)
	f.primary.submit = func(int, domain.TransferRequest) (string, error) { return hashA, nil }

	ctx, cancel := context.WithCancel(context.Background())
	runDone := make(chan struct{})
	go f.monitor.Run(ctx)
	go func() {
		f.svc.Run(ctx, time.Hour)
		close(runDone)
	}()

	st, err := f.purchase(buyer, "e2e")
	require.NoError(t, err)
	f.primary.setReceipt(domain.Receipt{TxHash: hashA, BlockNumber: 20, Success: true})

	assert.Eventually(t, func() bool {
		return f.store.settlement(st.ID).Status == domain.SettlementStatusCompleted
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	f.monitor.Close()
	<-runDone
}

// ==================== PurchaseItem (mocked) Tests ====================

type settlementTestDeps struct {
	ctrl        *gomock.Controller
	settlements *mocks.MockSettlementRepository
	listings    *mocks.MockListingRepository
	ledger      *mocks.MockLedgerRepository
	assets      *mocks.MockAssetRepository
	transactor  *mocks.MockDBTransactor
	cache       *mocks.MockIdempotencyCache
	chain       *mocks.MockChainClient
	tracker     *mocks.MockConfirmationTracker
	svc         *SettlementServiceImpl
}

func setupSettlementService(t *testing.T) *settlementTestDeps {
	ctrl := gomock.NewController(t)
	d := &settlementTestDeps{
		ctrl:        ctrl,
		settlements: mocks.NewMockSettlementRepository(ctrl),
		listings:    mocks.NewMockListingRepository(ctrl),
		ledger:      mocks.NewMockLedgerRepository(ctrl),
		assets:      mocks.NewMockAssetRepository(ctrl),
		transactor:  mocks.NewMockDBTransactor(ctrl),
		cache:       mocks.NewMockIdempotencyCache(ctrl),
		chain:       mocks.NewMockChainClient(ctrl),
		tracker:     mocks.NewMockConfirmationTracker(ctrl),
	}
	metrics := NewMetrics(prometheus.NewRegistry())
	d.svc = NewSettlementService(SettlementDeps{
		Settlements: d.settlements,
		Listings:    d.listings,
		Ledger:      d.ledger,
		Assets:      d.assets,
		Transactor:  d.transactor,
		Cache:       d.cache,
		Primary:     d.chain,
		Retrier:     NewRetrier(RetryPolicy{MaxAttempts: 1}, metrics, newTestLogger()),
		Tracker:     d.tracker,
		Metrics:     metrics,
	}, newTestLogger())
	return d
}

func TestSettlementService_PurchaseItem_MissingIdempotencyKey(t *testing.T) {
	d := setupSettlementService(t)
	defer d.ctrl.Finish()

	_, err := d.svc.PurchaseItem(context.Background(), ports.PurchaseRequest{BuyerID: uuid.New(), ListingID: uuid.New()})
	assertAppError(t, err, "PAY_002")
}

func TestSettlementService_PurchaseItem_IdempotentRedisHit(t *testing.T) {
	d := setupSettlementService(t)
	defer d.ctrl.Finish()

	buyer := uuid.New()
	cached := domain.Settlement{ID: uuid.New(), BuyerID: buyer, Status: domain.SettlementStatusCompleted, Stage: domain.StageCompleted}
	body, _ := json.Marshal(cached)

	d.cache.EXPECT().Get(gomock.Any(), domain.BuildPurchaseIdempotencyKey(buyer, "r-1")).Return(body, nil)

	got, err := d.svc.PurchaseItem(context.Background(), ports.PurchaseRequest{BuyerID: buyer, ListingID: uuid.New(), IdempotencyKey: "r-1"})
	require.NoError(t, err)
	assert.Equal(t, cached.ID, got.ID)
	assert.Equal(t, domain.SettlementStatusCompleted, got.Status)
}

func TestSettlementService_PurchaseItem_IdempotentRedisHitFailed(t *testing.T) {
	d := setupSettlementService(t)
	defer d.ctrl.Finish()

	buyer := uuid.New()
	cached := domain.Settlement{
		ID:            uuid.New(),
		BuyerID:       buyer,
		Status:        domain.SettlementStatusFailed,
		Stage:         domain.StageFailed,
		FailureReason: strPtr(domain.FailureChainReverted),
	}
	body, _ := json.Marshal(cached)

	d.cache.EXPECT().Get(gomock.Any(), domain.BuildPurchaseIdempotencyKey(buyer, "r-2")).Return(body, nil)

	got, err := d.svc.PurchaseItem(context.Background(), ports.PurchaseRequest{BuyerID: buyer, ListingID: uuid.New(), IdempotencyKey: "r-2"})
	assertAppError(t, err, apperror.CodeChainSubmissionFailed)
	assert.Nil(t, got)
}

func TestSettlementService_PurchaseItem_CorruptCacheEntryDropped(t *testing.T) {
	d := setupSettlementService(t)
	defer d.ctrl.Finish()

	buyer := uuid.New()
	key := domain.BuildPurchaseIdempotencyKey(buyer, "r-3")
	existing := &domain.Settlement{
		ID:             uuid.New(),
		IdempotencyKey: key,
		BuyerID:        buyer,
		Status:         domain.SettlementStatusCompleted,
		Stage:          domain.StageCompleted,
	}

	gomock.InOrder(
		d.cache.EXPECT().Get(gomock.Any(), key).Return([]byte("{not json"), nil),
		d.cache.EXPECT().Delete(gomock.Any(), key).Return(nil),
	)
	d.settlements.EXPECT().GetByIdempotencyKey(gomock.Any(), key).Return(existing, nil)
	d.cache.EXPECT().Set(gomock.Any(), key, gomock.Any(), idempotencyTTL).Return(nil)

	got, err := d.svc.PurchaseItem(context.Background(), ports.PurchaseRequest{BuyerID: buyer, ListingID: uuid.New(), IdempotencyKey: "r-3"})
	require.NoError(t, err)
	assert.Equal(t, existing.ID, got.ID)
}

func TestSettlementService_PurchaseItem_RedisDownFallsThroughToDB(t *testing.T) {
	d := setupSettlementService(t)
	defer d.ctrl.Finish()

	buyer := uuid.New()
	hash := hashA
	existing := &domain.Settlement{
		ID: uuid.New(), BuyerID: buyer, Status: domain.SettlementStatusPending,
		Stage: domain.StageChainSubmitted, ChainTxHash: &hash,
	}

	d.cache.EXPECT().Get(gomock.Any(), gomock.Any()).Return(nil, errors.New("redis: connection refused"))
	d.settlements.EXPECT().GetByIdempotencyKey(gomock.Any(), gomock.Any()).Return(existing, nil)
	d.tracker.EXPECT().Track(hashA, existing.ID).Return(false)

	got, err := d.svc.PurchaseItem(context.Background(), ports.PurchaseRequest{BuyerID: buyer, ListingID: uuid.New(), IdempotencyKey: "r-2"})
	require.NoError(t, err)
	assert.Equal(t, existing.ID, got.ID)
	assert.Equal(t, domain.SettlementStatusPending, got.Status)
}

func TestSettlementService_PurchaseItem_Rejections(t *testing.T) {
	buyer := uuid.New()

	tests := []struct {
		name    string
		listing *domain.Listing
		asset   *domain.Asset
		address string
		code    string
	}{
		{"listing missing", nil, nil, "", apperror.CodeListingUnavailable},
		{"listing sold", &domain.Listing{SellerID: uuid.New(), Status: domain.ListingStatusSold}, nil, "", apperror.CodeListingUnavailable},
		{"listing cancelled", &domain.Listing{SellerID: uuid.New(), Status: domain.ListingStatusCancelled}, nil, "", apperror.CodeListingUnavailable},
		{"self purchase", &domain.Listing{SellerID: buyer, Status: domain.ListingStatusActive}, nil, "", apperror.CodeSelfPurchase},
		{
			"on-chain item without wallet",
			&domain.Listing{SellerID: uuid.New(), Status: domain.ListingStatusActive},
			&domain.Asset{ContractAddress: strPtr(testContract), TokenID: strPtr("1")},
			"",
			apperror.CodeValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := setupSettlementService(t)
			defer d.ctrl.Finish()

			lookups := 1
			if tt.code == apperror.CodeListingUnavailable {
				// re-checked in case a same-key request took the listing
				lookups = 2
			}
			d.cache.EXPECT().Get(gomock.Any(), gomock.Any()).Return(nil, nil)
			d.settlements.EXPECT().GetByIdempotencyKey(gomock.Any(), gomock.Any()).Return(nil, nil).Times(lookups)
			d.listings.EXPECT().GetByID(gomock.Any(), gomock.Any()).Return(tt.listing, nil)
			if tt.listing != nil && tt.listing.IsActive() && tt.listing.SellerID != buyer {
				d.assets.EXPECT().GetOwnership(gomock.Any(), gomock.Any(), gomock.Any()).Return(tt.asset, nil)
			}

			_, err := d.svc.PurchaseItem(context.Background(), ports.PurchaseRequest{
				BuyerID: buyer, ListingID: uuid.New(), IdempotencyKey: "x", BuyerAddress: tt.address,
			})
			assertAppError(t, err, tt.code)
		})
	}
}

func TestSettlementService_PurchaseItem_ReservationLost(t *testing.T) {
	d := setupSettlementService(t)
	defer d.ctrl.Finish()

	tx := &mockTx{}
	listing := &domain.Listing{ID: uuid.New(), SellerID: uuid.New(), Price: decimal.NewFromInt(100), Status: domain.ListingStatusActive}

	d.cache.EXPECT().Get(gomock.Any(), gomock.Any()).Return(nil, nil)
	d.settlements.EXPECT().GetByIdempotencyKey(gomock.Any(), gomock.Any()).Return(nil, nil).Times(2)
	d.listings.EXPECT().GetByID(gomock.Any(), listing.ID).Return(listing, nil)
	d.assets.EXPECT().GetOwnership(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, nil)
	d.transactor.EXPECT().Begin(gomock.Any()).Return(tx, nil)
	d.settlements.EXPECT().Create(gomock.Any(), tx, gomock.Any()).Return(nil)
	d.listings.EXPECT().ReserveForSale(gomock.Any(), tx, listing.ID).Return(false, nil)

	_, err := d.svc.PurchaseItem(context.Background(), ports.PurchaseRequest{
		BuyerID: uuid.New(), ListingID: listing.ID, IdempotencyKey: "late",
	})
	assertAppError(t, err, apperror.CodeListingUnavailable)
}

// ==================== Query Tests ====================

func TestSettlementService_GetSettlement_Visibility(t *testing.T) {
	buyer, seller := uuid.New(), uuid.New()
	st := &domain.Settlement{ID: uuid.New(), BuyerID: buyer, SellerID: seller}

	tests := []struct {
		name      string
		requester uuid.UUID
		wantErr   bool
	}{
		{"buyer", buyer, false},
		{"seller", seller, false},
		{"stranger", uuid.New(), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := setupSettlementService(t)
			defer d.ctrl.Finish()

			d.settlements.EXPECT().GetByID(gomock.Any(), st.ID).Return(st, nil)

			got, err := d.svc.GetSettlement(context.Background(), st.ID, tt.requester)
			if tt.wantErr {
				assertAppError(t, err, "PAY_004")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, st.ID, got.ID)
		})
	}
}

func TestSettlementService_GetUserTransactions(t *testing.T) {
	d := setupSettlementService(t)
	defer d.ctrl.Finish()

	params := ports.SettlementListParams{UserID: uuid.New(), Role: domain.RoleSeller, Page: 1, PageSize: 10}
	d.settlements.EXPECT().ListByUser(gomock.Any(), params).Return([]domain.Settlement{{ID: uuid.New()}}, int64(1), nil)

	list, total, err := d.svc.GetUserTransactions(context.Background(), params)
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Equal(t, int64(1), total)

	_, _, err = d.svc.GetUserTransactions(context.Background(), ports.SettlementListParams{Role: "OBSERVER"})
	assertAppError(t, err, "PAY_002")
}

func strPtr(s string) *string { return &s }
