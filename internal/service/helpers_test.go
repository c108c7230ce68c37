package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"

	"marketplace-settlement/internal/core/domain"
	"marketplace-settlement/pkg/apperror"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

// mockTx implements pgx.Tx for testing
type mockTx struct{ pgx.Tx }

func (m *mockTx) Rollback(_ context.Context) error { return nil }
func (m *mockTx) Commit(_ context.Context) error   { return nil }

func assertAppError(t *testing.T, err error, expectedCode string) {
	t.Helper()
	require.Error(t, err)
	var appErr *apperror.AppError
	require.True(t, errors.As(err, &appErr), "expected *apperror.AppError, got %T: %v", err, err)
	assert.Equal(t, expectedCode, appErr.Code)
}

// fakeChain is a scriptable ports.ChainClient.
type fakeChain struct {
	name string

	mu       sync.Mutex
	head     uint64
	receipts map[string]*domain.Receipt
	submit   func(n int, req domain.TransferRequest) (string, error)
	submits  int
	lookups  map[string]int
}

func newFakeChain(name string) *fakeChain {
	return &fakeChain{
		name:     name,
		receipts: make(map[string]*domain.Receipt),
		lookups:  make(map[string]int),
	}
}

func (c *fakeChain) Name() string { return c.name }

func (c *fakeChain) SubmitTransfer(_ context.Context, req domain.TransferRequest) (string, error) {
	c.mu.Lock()
	c.submits++
	n, fn := c.submits, c.submit
	c.mu.Unlock()
	if fn == nil {
		return fmt.Sprintf("0x%064x", n), nil
	}
	return fn(n, req)
}

func (c *fakeChain) GetReceipt(_ context.Context, txHash string) (*domain.Receipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lookups[txHash]++
	r, ok := c.receipts[txHash]
	if !ok {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}

func (c *fakeChain) GetCurrentBlockNumber(_ context.Context) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.head, nil
}

func (c *fakeChain) IsConnected(_ context.Context) bool { return true }

func (c *fakeChain) setReceipt(r domain.Receipt) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.receipts[r.TxHash] = &r
}

func (c *fakeChain) setHead(n uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.head = n
}

func (c *fakeChain) submitCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.submits
}

func (c *fakeChain) lookupCount(hash string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lookups[hash]
}
