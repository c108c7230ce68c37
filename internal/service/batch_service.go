package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"marketplace-settlement/internal/core/domain"
	"marketplace-settlement/internal/core/ports"
	"marketplace-settlement/pkg/apperror"
	"marketplace-settlement/pkg/logger"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const maxBatchItems = 1000

// BatchTracker records the lifecycle and counters of multi-item operations.
// Terminal transitions are idempotent: finishing an already finished batch is
// a no-op.
type BatchTracker struct {
	repo ports.BatchRepository
	log  zerolog.Logger
}

// NewBatchTracker creates a new BatchTracker.
func NewBatchTracker(repo ports.BatchRepository, log zerolog.Logger) *BatchTracker {
	return &BatchTracker{repo: repo, log: logger.Component(log, "batch_tracker")}
}

// Create stores a PENDING batch. details is marshalled as the batch's
// operation_details and may be nil.
func (t *BatchTracker) Create(ctx context.Context, opType domain.BatchOperationType, total int, details any, creator uuid.UUID) (*domain.BatchOperation, error) {
	if total < 1 {
		return nil, fmt.Errorf("batch needs at least one operation, got %d", total)
	}

	now := time.Now().UTC()
	b := &domain.BatchOperation{
		ID:              domain.NewBatchID(),
		OperationType:   opType,
		Status:          domain.BatchStatusPending,
		TotalOperations: total,
		CreatedBy:       creator,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if details != nil {
		raw, err := json.Marshal(details)
		if err != nil {
			return nil, fmt.Errorf("marshal batch details: %w", err)
		}
		b.OperationDetails = raw
	}

	if err := t.repo.Create(ctx, b); err != nil {
		return nil, err
	}
	t.log.Info().
		Str("batch_id", b.ID).
		Str("operation_type", string(opType)).
		Int("total", total).
		Msg("batch created")
	return b, nil
}

// Start moves a PENDING batch to PROCESSING. It returns false if the batch
// was cancelled before it started.
func (t *BatchTracker) Start(ctx context.Context, id string) (bool, error) {
	started, err := t.repo.Start(ctx, id)
	if err != nil {
		return false, err
	}
	if !started {
		b, err := t.repo.GetByID(ctx, id)
		if err != nil {
			return false, err
		}
		if b == nil {
			return false, fmt.Errorf("batch %s not found", id)
		}
		if !b.Status.IsTerminal() {
			return false, fmt.Errorf("batch %s is %s, not PENDING", id, b.Status)
		}
		return false, nil
	}
	t.log.Debug().Str("batch_id", id).Msg("batch started")
	return true, nil
}

// UpdateProgress records completed and failed counts for a running batch and
// returns false once the batch is no longer PROCESSING.
func (t *BatchTracker) UpdateProgress(ctx context.Context, id string, total, completed, failed int) (bool, error) {
	if completed < 0 || failed < 0 || completed+failed > total {
		return false, fmt.Errorf("batch %s: %d completed + %d failed exceeds %d operations", id, completed, failed, total)
	}
	return t.repo.UpdateProgress(ctx, id, completed, failed, domain.CalculateProgress(completed, failed, total))
}

func (t *BatchTracker) Complete(ctx context.Context, id string) error {
	return t.finish(ctx, id, domain.BatchStatusCompleted, nil)
}

func (t *BatchTracker) Fail(ctx context.Context, id, message string) error {
	return t.finish(ctx, id, domain.BatchStatusFailed, &message)
}

func (t *BatchTracker) Cancel(ctx context.Context, id string) error {
	return t.finish(ctx, id, domain.BatchStatusCancelled, nil)
}

func (t *BatchTracker) finish(ctx context.Context, id string, status domain.BatchStatus, message *string) error {
	done, err := t.repo.Finish(ctx, id, status, message)
	if err != nil {
		return err
	}
	if !done {
		t.log.Debug().Str("batch_id", id).Str("status", string(status)).Msg("batch already finished")
		return nil
	}
	ev := t.log.Info().Str("batch_id", id).Str("status", string(status))
	if message != nil {
		ev = ev.Str("error", *message)
	}
	ev.Msg("batch finished")
	return nil
}

func (t *BatchTracker) Get(ctx context.Context, id string) (*domain.BatchOperation, error) {
	return t.repo.GetByID(ctx, id)
}

func (t *BatchTracker) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.BatchOperation, error) {
	return t.repo.ListByUser(ctx, userID)
}

func (t *BatchTracker) ListActive(ctx context.Context) ([]domain.BatchOperation, error) {
	return t.repo.ListActive(ctx)
}

// ==================== Bulk transfers ====================

// BatchServiceConfig configures BatchServiceImpl.
type BatchServiceConfig struct {
	Workers       int
	TokenContract string // default contract for TOKEN items without one
}

// BatchServiceImpl implements ports.BatchService. Each batch fans its transfers
// out through the retry layer on a bounded worker group.
type BatchServiceImpl struct {
	tracker  *BatchTracker
	primary  ports.ChainClient
	fallback ports.ChainClient
	retrier  *Retrier
	metrics  *Metrics
	cfg      BatchServiceConfig
	log      zerolog.Logger

	base    context.Context
	stop    context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	running map[string]context.CancelFunc
}

// NewBatchService creates a new BatchServiceImpl. fallback may be nil.
func NewBatchService(
	tracker *BatchTracker,
	primary, fallback ports.ChainClient,
	retrier *Retrier,
	metrics *Metrics,
	cfg BatchServiceConfig,
	log zerolog.Logger,
) *BatchServiceImpl {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	base, stop := context.WithCancel(context.Background())
	return &BatchServiceImpl{
		tracker:  tracker,
		primary:  primary,
		fallback: fallback,
		retrier:  retrier,
		metrics:  metrics,
		cfg:      cfg,
		log:      logger.Component(log, "batch"),
		base:     base,
		stop:     stop,
		running:  make(map[string]context.CancelFunc),
	}
}

// StartBulkTransfer records a batch and runs it in the background. The
// returned batch is PROCESSING; poll GetBatch for progress.
func (s *BatchServiceImpl) StartBulkTransfer(ctx context.Context, creatorID uuid.UUID, items []domain.TransferRequest) (*domain.BatchOperation, error) {
	b, items, err := s.prepare(ctx, creatorID, items)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(s.base)
	s.mu.Lock()
	s.running[b.ID] = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			delete(s.running, b.ID)
			s.mu.Unlock()
			cancel()
		}()
		s.run(runCtx, b, items)
	}()

	return b, nil
}

// RunBulkTransfer records a batch and runs it to the end on the calling
// goroutine, returning per-item results in input order.
func (s *BatchServiceImpl) RunBulkTransfer(ctx context.Context, creatorID uuid.UUID, items []domain.TransferRequest) (*domain.BatchOperation, []domain.BatchItemResult, error) {
	b, items, err := s.prepare(ctx, creatorID, items)
	if err != nil {
		return nil, nil, err
	}
	results := s.run(ctx, b, items)

	final, err := s.tracker.Get(context.WithoutCancel(ctx), b.ID)
	if err != nil || final == nil {
		return b, results, apperror.InternalError(fmt.Errorf("reload batch %s: %w", b.ID, err))
	}
	return final, results, nil
}

func (s *BatchServiceImpl) prepare(ctx context.Context, creatorID uuid.UUID, items []domain.TransferRequest) (*domain.BatchOperation, []domain.TransferRequest, error) {
	opType, items, err := s.validate(items)
	if err != nil {
		return nil, nil, err
	}

	b, err := s.tracker.Create(ctx, opType, len(items), items, creatorID)
	if err != nil {
		return nil, nil, apperror.InternalError(fmt.Errorf("create batch: %w", err))
	}
	if _, err := s.tracker.Start(ctx, b.ID); err != nil {
		return nil, nil, apperror.InternalError(fmt.Errorf("start batch: %w", err))
	}
	now := time.Now().UTC()
	b.Status = domain.BatchStatusProcessing
	b.StartTime = &now
	return b, items, nil
}

// validate checks the items and returns a copy with default contracts filled in.
func (s *BatchServiceImpl) validate(items []domain.TransferRequest) (domain.BatchOperationType, []domain.TransferRequest, error) {
	if len(items) == 0 {
		return "", nil, apperror.ErrInvalidBatch("batch must contain at least one transfer")
	}
	if len(items) > maxBatchItems {
		return "", nil, apperror.ErrInvalidBatch(fmt.Sprintf("batch exceeds %d transfers", maxBatchItems))
	}

	kind := items[0].Kind
	out := make([]domain.TransferRequest, len(items))
	for i, item := range items {
		if item.Kind != kind {
			return "", nil, apperror.ErrInvalidBatch(fmt.Sprintf("item %d: mixed transfer kinds in one batch", i))
		}
		if item.Kind == domain.TransferToken && item.Contract == "" {
			item.Contract = s.cfg.TokenContract
		}
		if !common.IsHexAddress(item.Contract) {
			return "", nil, apperror.ErrInvalidBatch(fmt.Sprintf("item %d: invalid contract address", i))
		}
		if !common.IsHexAddress(item.To) {
			return "", nil, apperror.ErrInvalidBatch(fmt.Sprintf("item %d: invalid recipient address", i))
		}
		switch item.Kind {
		case domain.TransferNFT:
			if item.TokenID == "" {
				return "", nil, apperror.ErrInvalidBatch(fmt.Sprintf("item %d: token_id is required", i))
			}
		case domain.TransferToken:
			if !item.Amount.IsPositive() {
				return "", nil, apperror.ErrInvalidBatch(fmt.Sprintf("item %d: amount must be positive", i))
			}
		default:
			return "", nil, apperror.ErrInvalidBatch(fmt.Sprintf("item %d: unknown kind %q", i, item.Kind))
		}
		out[i] = item
	}

	if kind == domain.TransferNFT {
		return domain.BatchTypeNFTTransfer, out, nil
	}
	return domain.BatchTypeTokenTransfer, out, nil
}

// run executes every item and finishes the batch. No new items start once ctx
// is cancelled; items already in flight run to completion.
func (s *BatchServiceImpl) run(ctx context.Context, b *domain.BatchOperation, items []domain.TransferRequest) []domain.BatchItemResult {
	total := len(items)
	results := make([]domain.BatchItemResult, total)
	for i := range results {
		results[i] = domain.BatchItemResult{Index: i, Error: "not attempted"}
	}

	var completed, failed atomic.Int64
	record := context.WithoutCancel(ctx)

	g := new(errgroup.Group)
	g.SetLimit(s.cfg.Workers)
	for i, item := range items {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			hash, err := s.transfer(record, item)
			if err != nil {
				failed.Add(1)
				results[i] = domain.BatchItemResult{Index: i, Error: err.Error()}
				s.metrics.BatchItems.WithLabelValues("failure").Inc()
				s.log.Warn().Err(err).Str("batch_id", b.ID).Int("index", i).Msg("batch transfer failed")
			} else {
				completed.Add(1)
				results[i] = domain.BatchItemResult{Index: i, Success: true, TxHash: hash}
				s.metrics.BatchItems.WithLabelValues("success").Inc()
			}

			c, f := int(completed.Load()), int(failed.Load())
			if _, err := s.tracker.UpdateProgress(record, b.ID, total, c, f); err != nil {
				s.log.Error().Err(err).Str("batch_id", b.ID).Msg("failed to record batch progress")
			}
			return nil
		})
	}
	_ = g.Wait()

	c, f := int(completed.Load()), int(failed.Load())
	status, err := s.finishRun(ctx, record, b.ID, total, c, f)
	if err != nil {
		s.log.Error().Err(err).Str("batch_id", b.ID).Msg("failed to finish batch")
	}
	s.metrics.BatchesFinished.WithLabelValues(string(status)).Inc()

	s.log.Info().
		Str("batch_id", b.ID).
		Int("completed", c).
		Int("failed", f).
		Int("total", total).
		Str("status", string(status)).
		Msg("batch run finished")

	return results
}

func (s *BatchServiceImpl) finishRun(ctx, record context.Context, id string, total, completed, failed int) (domain.BatchStatus, error) {
	switch {
	case ctx.Err() != nil:
		// a user cancel already moved the batch to CANCELLED and this is a no-op
		if err := s.tracker.Fail(record, id, fmt.Sprintf("interrupted after %d of %d transfers", completed+failed, total)); err != nil {
			return domain.BatchStatusFailed, err
		}
		b, err := s.tracker.Get(record, id)
		if err != nil || b == nil {
			return domain.BatchStatusFailed, err
		}
		return b.Status, nil
	case failed == total:
		return domain.BatchStatusFailed, s.tracker.Fail(record, id, fmt.Sprintf("all %d transfers failed", total))
	default:
		return domain.BatchStatusCompleted, s.tracker.Complete(record, id)
	}
}

func (s *BatchServiceImpl) transfer(ctx context.Context, item domain.TransferRequest) (string, error) {
	primary := func(ctx context.Context) (string, error) {
		return s.primary.SubmitTransfer(ctx, item)
	}
	var fallback func(ctx context.Context) (string, error)
	if s.fallback != nil {
		fallback = func(ctx context.Context) (string, error) {
			return s.fallback.SubmitTransfer(ctx, item)
		}
	}

	start := time.Now()
	hash, err := RetryWithFallback(ctx, s.retrier, "batch_transfer", primary, fallback)
	s.metrics.SubmitLatencySec.WithLabelValues("batch").Observe(time.Since(start).Seconds())
	return hash, err
}

// GetBatch returns a batch created by requesterID.
func (s *BatchServiceImpl) GetBatch(ctx context.Context, batchID string, requesterID uuid.UUID) (*domain.BatchOperation, error) {
	b, err := s.tracker.Get(ctx, batchID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get batch: %w", err))
	}
	if b == nil || b.CreatedBy != requesterID {
		return nil, apperror.ErrBatchNotFound()
	}
	return b, nil
}

// CancelBatch stops a running batch. Cancelling a finished batch returns it
// unchanged.
func (s *BatchServiceImpl) CancelBatch(ctx context.Context, batchID string, requesterID uuid.UUID) (*domain.BatchOperation, error) {
	b, err := s.GetBatch(ctx, batchID, requesterID)
	if err != nil {
		return nil, err
	}
	if b.Status.IsTerminal() {
		return b, nil
	}

	if err := s.tracker.Cancel(ctx, batchID); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("cancel batch: %w", err))
	}

	s.mu.Lock()
	cancel, ok := s.running[batchID]
	s.mu.Unlock()
	if ok {
		cancel()
	}

	return s.GetBatch(ctx, batchID, requesterID)
}

func (s *BatchServiceImpl) ListUserBatches(ctx context.Context, userID uuid.UUID) ([]domain.BatchOperation, error) {
	batches, err := s.tracker.ListByUser(ctx, userID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list batches: %w", err))
	}
	return batches, nil
}

// RecoverInterrupted fails batches left PENDING or PROCESSING by a previous
// process. Their remaining items are not retried.
func (s *BatchServiceImpl) RecoverInterrupted(ctx context.Context) (int, error) {
	active, err := s.tracker.ListActive(ctx)
	if err != nil {
		return 0, fmt.Errorf("list active batches: %w", err)
	}

	var errs []error
	recovered := 0
	for _, b := range active {
		s.mu.Lock()
		_, mine := s.running[b.ID]
		s.mu.Unlock()
		if mine {
			continue
		}
		msg := fmt.Sprintf("interrupted by restart after %d of %d transfers",
			b.CompletedOperations+b.FailedOperations, b.TotalOperations)
		if err := s.tracker.Fail(ctx, b.ID, msg); err != nil {
			errs = append(errs, fmt.Errorf("fail batch %s: %w", b.ID, err))
			continue
		}
		recovered++
	}
	if recovered > 0 {
		s.log.Warn().Int("count", recovered).Msg("interrupted batches marked failed")
	}
	return recovered, errors.Join(errs...)
}

// Close stops scheduling new items and waits for running batches to finish.
func (s *BatchServiceImpl) Close() {
	s.stop()
	s.wg.Wait()
}
