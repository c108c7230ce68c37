package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"marketplace-settlement/internal/core/domain"
	"marketplace-settlement/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// memStore is an in-memory stand-in for the Postgres repositories with real
// transaction semantics: transactions are serialized and every mutation is
// journaled so Rollback restores the previous state.
type memStore struct {
	txMu sync.Mutex // held from Begin until Commit/Rollback

	mu          sync.Mutex
	balances    map[balanceKey]decimal.Decimal
	assets      map[assetKey]domain.Asset
	listings    map[uuid.UUID]domain.Listing
	settlements map[uuid.UUID]domain.Settlement
	byKey       map[string]uuid.UUID
	debits      int
	credits     int
}

type balanceKey struct {
	user  uuid.UUID
	token string
}

type assetKey struct {
	typ domain.AssetType
	id  uuid.UUID
}

func newMemStore() *memStore {
	return &memStore{
		balances:    make(map[balanceKey]decimal.Decimal),
		assets:      make(map[assetKey]domain.Asset),
		listings:    make(map[uuid.UUID]domain.Listing),
		settlements: make(map[uuid.UUID]domain.Settlement),
		byKey:       make(map[string]uuid.UUID),
	}
}

type memTx struct {
	pgx.Tx
	s    *memStore
	undo []func()
	done bool
}

func (s *memStore) Begin(_ context.Context) (pgx.Tx, error) {
	s.txMu.Lock()
	return &memTx{s: s}, nil
}

func (t *memTx) Commit(_ context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	t.s.txMu.Unlock()
	return nil
}

func (t *memTx) Rollback(_ context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	t.s.mu.Lock()
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.s.mu.Unlock()
	t.s.txMu.Unlock()
	return nil
}

// mutate runs fn under the data lock and records undo for Rollback.
func (s *memStore) mutate(tx pgx.Tx, fn func() (undo func())) {
	t := tx.(*memTx)
	s.mu.Lock()
	defer s.mu.Unlock()
	if u := fn(); u != nil {
		t.undo = append(t.undo, u)
	}
}

// ---- fixtures ----

func (s *memStore) setBalance(user uuid.UUID, amount int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balances[balanceKey{user, domain.DefaultTokenType}] = decimal.NewFromInt(amount)
}

func (s *memStore) balance(user uuid.UUID) decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balances[balanceKey{user, domain.DefaultTokenType}]
}

func (s *memStore) putAsset(a domain.Asset) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assets[assetKey{a.AssetType, a.AssetID}] = a
}

func (s *memStore) owner(typ domain.AssetType, id uuid.UUID) (domain.Asset, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.assets[assetKey{typ, id}]
	return a, ok
}

func (s *memStore) putListing(l domain.Listing) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listings[l.ID] = l
}

func (s *memStore) listing(id uuid.UUID) domain.Listing {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listings[id]
}

func (s *memStore) putSettlement(st domain.Settlement) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settlements[st.ID] = st
	s.byKey[st.IdempotencyKey] = st.ID
}

func (s *memStore) settlement(id uuid.UUID) domain.Settlement {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settlements[id]
}

func (s *memStore) counts() (debits, credits int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.debits, s.credits
}

// ---- ports.LedgerRepository ----

type memLedger struct{ *memStore }

func (r memLedger) Credit(_ context.Context, tx pgx.Tx, userID uuid.UUID, tokenType string, amount decimal.Decimal) error {
	k := balanceKey{userID, tokenType}
	r.mutate(tx, func() func() {
		prev, had := r.balances[k]
		r.balances[k] = prev.Add(amount)
		r.credits++
		return func() {
			r.credits--
			if had {
				r.balances[k] = prev
			} else {
				delete(r.balances, k)
			}
		}
	})
	return nil
}

func (r memLedger) Debit(_ context.Context, tx pgx.Tx, userID uuid.UUID, tokenType string, amount decimal.Decimal) error {
	k := balanceKey{userID, tokenType}
	var err error
	r.mutate(tx, func() func() {
		prev := r.balances[k]
		if prev.LessThan(amount) {
			err = domain.ErrInsufficientBalance
			return nil
		}
		r.balances[k] = prev.Sub(amount)
		r.debits++
		return func() {
			r.debits--
			r.balances[k] = prev
		}
	})
	return err
}

func (r memLedger) GetBalance(_ context.Context, userID uuid.UUID, tokenType string) (*domain.Balance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	amt, ok := r.balances[balanceKey{userID, tokenType}]
	if !ok {
		return nil, nil
	}
	return &domain.Balance{UserID: userID, TokenType: tokenType, Amount: amt}, nil
}

func (r memLedger) ListBalances(_ context.Context, userID uuid.UUID) ([]domain.Balance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Balance
	for k, amt := range r.balances {
		if k.user == userID {
			out = append(out, domain.Balance{UserID: userID, TokenType: k.token, Amount: amt})
		}
	}
	return out, nil
}

// ---- ports.AssetRepository ----

type memAssets struct{ *memStore }

func (r memAssets) GetOwnership(_ context.Context, assetType domain.AssetType, assetID uuid.UUID) (*domain.Asset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.assets[assetKey{assetType, assetID}]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (r memAssets) ListByOwner(_ context.Context, userID uuid.UUID) ([]domain.Asset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Asset
	for _, a := range r.assets {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r memAssets) TransferOwnership(_ context.Context, tx pgx.Tx, assetType domain.AssetType, assetID, from, to uuid.UUID, acquisition domain.AcquisitionType) error {
	k := assetKey{assetType, assetID}
	var err error
	r.mutate(tx, func() func() {
		prev, ok := r.assets[k]
		if !ok || prev.UserID != from {
			err = domain.ErrNotOwner
			return nil
		}
		next := prev
		next.ID = uuid.New()
		next.UserID = to
		next.AcquisitionType = acquisition
		next.Tradeable = true
		next.AcquiredAt = time.Now().UTC()
		r.assets[k] = next
		return func() { r.assets[k] = prev }
	})
	return err
}

func (r memAssets) SetTradeable(_ context.Context, tx pgx.Tx, assetType domain.AssetType, assetID, ownerID uuid.UUID, tradeable bool) error {
	k := assetKey{assetType, assetID}
	var err error
	r.mutate(tx, func() func() {
		prev, ok := r.assets[k]
		if !ok || prev.UserID != ownerID {
			err = domain.ErrNotOwner
			return nil
		}
		next := prev
		next.Tradeable = tradeable
		r.assets[k] = next
		return func() { r.assets[k] = prev }
	})
	return err
}

// ---- ports.ListingRepository ----

type memListings struct{ *memStore }

func (r memListings) Create(_ context.Context, tx pgx.Tx, l *domain.Listing) error {
	var err error
	r.mutate(tx, func() func() {
		for _, other := range r.listings {
			if other.Status == domain.ListingStatusActive && other.ItemType == l.ItemType && other.ItemID == l.ItemID {
				err = domain.ErrDuplicateListing
				return nil
			}
		}
		r.listings[l.ID] = *l
		id := l.ID
		return func() { delete(r.listings, id) }
	})
	return err
}

func (r memListings) GetByID(_ context.Context, id uuid.UUID) (*domain.Listing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.listings[id]
	if !ok {
		return nil, nil
	}
	return &l, nil
}

func (r memListings) transition(tx pgx.Tx, id uuid.UUID, from, to domain.ListingStatus, guard func(domain.Listing) bool) bool {
	won := false
	r.mutate(tx, func() func() {
		prev, ok := r.listings[id]
		if !ok || prev.Status != from || (guard != nil && !guard(prev)) {
			return nil
		}
		next := prev
		next.Status = to
		r.listings[id] = next
		won = true
		return func() { r.listings[id] = prev }
	})
	return won
}

func (r memListings) ReserveForSale(_ context.Context, tx pgx.Tx, id uuid.UUID) (bool, error) {
	return r.transition(tx, id, domain.ListingStatusActive, domain.ListingStatusSold, nil), nil
}

func (r memListings) RevertReservation(_ context.Context, tx pgx.Tx, id uuid.UUID) (bool, error) {
	return r.transition(tx, id, domain.ListingStatusSold, domain.ListingStatusActive, nil), nil
}

func (r memListings) Cancel(_ context.Context, tx pgx.Tx, id, sellerID uuid.UUID) (bool, error) {
	return r.transition(tx, id, domain.ListingStatusActive, domain.ListingStatusCancelled,
		func(l domain.Listing) bool { return l.SellerID == sellerID }), nil
}

func (r memListings) ListActive(_ context.Context, params ports.ListingListParams) ([]domain.Listing, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Listing
	for _, l := range r.listings {
		if l.Status == domain.ListingStatusActive && (params.ItemType == nil || l.ItemType == *params.ItemType) {
			out = append(out, l)
		}
	}
	return out, int64(len(out)), nil
}

func (r memListings) ListBySeller(_ context.Context, sellerID uuid.UUID, _, _ int) ([]domain.Listing, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Listing
	for _, l := range r.listings {
		if l.SellerID == sellerID {
			out = append(out, l)
		}
	}
	return out, int64(len(out)), nil
}

// ---- ports.SettlementRepository ----

type memSettlements struct{ *memStore }

func (r memSettlements) Create(_ context.Context, tx pgx.Tx, st *domain.Settlement) error {
	var err error
	r.mutate(tx, func() func() {
		if _, dup := r.byKey[st.IdempotencyKey]; dup {
			err = domain.ErrDuplicateIdempotencyKey
			return nil
		}
		r.settlements[st.ID] = *st
		r.byKey[st.IdempotencyKey] = st.ID
		id, key := st.ID, st.IdempotencyKey
		return func() {
			delete(r.settlements, id)
			delete(r.byKey, key)
		}
	})
	return err
}

func (r memSettlements) GetByID(_ context.Context, id uuid.UUID) (*domain.Settlement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.settlements[id]
	if !ok {
		return nil, nil
	}
	return &st, nil
}

func (r memSettlements) GetByIdempotencyKey(_ context.Context, key string) (*domain.Settlement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byKey[key]
	if !ok {
		return nil, nil
	}
	st := r.settlements[id]
	return &st, nil
}

func (r memSettlements) update(tx pgx.Tx, id uuid.UUID, guard func(domain.Settlement) bool, apply func(*domain.Settlement)) bool {
	won := false
	r.mutate(tx, func() func() {
		prev, ok := r.settlements[id]
		if !ok || !guard(prev) {
			return nil
		}
		next := prev
		apply(&next)
		next.UpdatedAt = time.Now().UTC()
		r.settlements[id] = next
		won = true
		return func() { r.settlements[id] = prev }
	})
	return won
}

func (r memSettlements) AdvanceStage(_ context.Context, tx pgx.Tx, id uuid.UUID, from, to domain.SettlementStage) (bool, error) {
	return r.update(tx, id,
		func(s domain.Settlement) bool { return s.Status == domain.SettlementStatusPending && s.Stage == from },
		func(s *domain.Settlement) { s.Stage = to }), nil
}

func (r memSettlements) SetChainSubmitted(_ context.Context, tx pgx.Tx, id uuid.UUID, txHash string) (bool, error) {
	return r.update(tx, id,
		func(s domain.Settlement) bool {
			return s.Status == domain.SettlementStatusPending && s.Stage == domain.StageLedgerApplied
		},
		func(s *domain.Settlement) {
			h := txHash
			s.ChainTxHash = &h
			s.Stage = domain.StageChainSubmitted
		}), nil
}

func (r memSettlements) MarkCompleted(_ context.Context, tx pgx.Tx, id uuid.UUID, from domain.SettlementStage) (bool, error) {
	return r.update(tx, id,
		func(s domain.Settlement) bool { return s.Status == domain.SettlementStatusPending && s.Stage == from },
		func(s *domain.Settlement) {
			now := time.Now().UTC()
			s.Status = domain.SettlementStatusCompleted
			s.Stage = domain.StageCompleted
			s.CompletedAt = &now
		}), nil
}

func (r memSettlements) MarkFailed(_ context.Context, tx pgx.Tx, id uuid.UUID, reason string) (bool, error) {
	return r.update(tx, id,
		func(s domain.Settlement) bool { return s.Status == domain.SettlementStatusPending },
		func(s *domain.Settlement) {
			now := time.Now().UTC()
			why := reason
			s.Status = domain.SettlementStatusFailed
			s.Stage = domain.StageFailed
			s.FailureReason = &why
			s.CompletedAt = &now
		}), nil
}

func (r memSettlements) ListUnresolved(_ context.Context, staleBefore time.Time, limit int) ([]domain.Settlement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Settlement
	for _, st := range r.settlements {
		if st.Status != domain.SettlementStatusPending {
			continue
		}
		switch st.Stage {
		case domain.StageChainSubmitted, domain.StageCompensating:
			out = append(out, st)
		case domain.StageListingReserved, domain.StageLedgerApplied:
			if st.UpdatedAt.Before(staleBefore) {
				out = append(out, st)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r memSettlements) ListByUser(_ context.Context, params ports.SettlementListParams) ([]domain.Settlement, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Settlement
	for _, st := range r.settlements {
		buyer, seller := st.BuyerID == params.UserID, st.SellerID == params.UserID
		switch params.Role {
		case domain.RoleBuyer:
			if !buyer {
				continue
			}
		case domain.RoleSeller:
			if !seller {
				continue
			}
		default:
			if !buyer && !seller {
				continue
			}
		}
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, int64(len(out)), nil
}

// memCache is an in-memory ports.IdempotencyCache.
type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemCache() *memCache {
	return &memCache{data: make(map[string][]byte)}
}

func (c *memCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.data[key], nil
}

func (c *memCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

func (c *memCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}
