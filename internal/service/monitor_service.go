package service

import (
	"context"
	"sync"
	"time"

	"marketplace-settlement/config"
	"marketplace-settlement/internal/core/domain"
	"marketplace-settlement/internal/core/ports"
	"marketplace-settlement/pkg/logger"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"
)

const (
	defaultFinalizedCacheSize = 4096
	defaultEventBuffer        = 256
)

// MonitorConfig controls polling cadence and when a transaction is considered final.
type MonitorConfig struct {
	PollInterval       time.Duration
	MaxWait            time.Duration
	Confirmations      uint64
	Workers            int
	FinalizedCacheSize int
	EventBuffer        int
}

// MonitorConfigFromChain maps the chain config section onto a MonitorConfig.
func MonitorConfigFromChain(cfg config.ChainConfig) MonitorConfig {
	return MonitorConfig{
		PollInterval:  cfg.PollInterval,
		MaxWait:       cfg.MaxWait,
		Confirmations: cfg.Confirmations,
		Workers:       cfg.MonitorWorkers,
	}
}

// TrackedTx is a point-in-time view of one monitored transaction.
type TrackedTx struct {
	TxHash       string    `json:"tx_hash"`
	SettlementID uuid.UUID `json:"settlement_id"`
	StartedAt    time.Time `json:"started_at"`
	LastChecked  time.Time `json:"last_checked,omitempty"`
	Checks       int       `json:"checks"`
}

type trackedTx struct {
	TrackedTx
	inFlight bool
}

// MonitorService polls receipts for submitted transfers and reports one final
// outcome per hash on its Events channel. It implements ports.ConfirmationTracker.
//
// Run must be called at most once; Events is closed when Run returns.
type MonitorService struct {
	client  ports.ChainClient
	cfg     MonitorConfig
	metrics *Metrics
	log     zerolog.Logger
	now     func() time.Time

	mu        sync.Mutex
	tracked   map[string]*trackedTx
	finalized *lru.Cache[string, domain.ConfirmationOutcome]

	events  chan domain.ConfirmationEvent
	cancel  context.CancelFunc
	stopped chan struct{}
}

// NewMonitorService creates a MonitorService. Call Run to start polling.
func NewMonitorService(client ports.ChainClient, cfg MonitorConfig, metrics *Metrics, log zerolog.Logger) *MonitorService {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.Confirmations < 1 {
		cfg.Confirmations = 1
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 3 * time.Second
	}
	if cfg.FinalizedCacheSize < 1 {
		cfg.FinalizedCacheSize = defaultFinalizedCacheSize
	}
	if cfg.EventBuffer < 1 {
		cfg.EventBuffer = defaultEventBuffer
	}

	// lru.New only fails for a non-positive size.
	finalized, _ := lru.New[string, domain.ConfirmationOutcome](cfg.FinalizedCacheSize)

	return &MonitorService{
		client:    client,
		cfg:       cfg,
		metrics:   metrics,
		log:       logger.Component(log, "monitor"),
		now:       time.Now,
		tracked:   make(map[string]*trackedTx),
		finalized: finalized,
		events:    make(chan domain.ConfirmationEvent, cfg.EventBuffer),
		stopped:   make(chan struct{}),
	}
}

// Track starts watching txHash. It returns false if the hash is already being
// watched or reached a final outcome recently.
func (m *MonitorService) Track(txHash string, settlementID uuid.UUID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.tracked[txHash]; ok {
		return false
	}
	if m.finalized.Contains(txHash) {
		return false
	}

	m.tracked[txHash] = &trackedTx{TrackedTx: TrackedTx{
		TxHash:       txHash,
		SettlementID: settlementID,
		StartedAt:    m.now(),
	}}
	m.metrics.MonitorTracked.Set(float64(len(m.tracked)))

	m.log.Debug().Str("tx_hash", txHash).Str("settlement_id", settlementID.String()).Msg("tracking transaction")
	return true
}

// Untrack stops watching txHash without emitting an event.
func (m *MonitorService) Untrack(txHash string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.tracked, txHash)
	m.metrics.MonitorTracked.Set(float64(len(m.tracked)))
}

// Events delivers final outcomes. It is closed after Run returns.
func (m *MonitorService) Events() <-chan domain.ConfirmationEvent {
	return m.events
}

// Status returns the tracking state of txHash.
func (m *MonitorService) Status(txHash string) (TrackedTx, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tracked[txHash]
	if !ok {
		return TrackedTx{}, false
	}
	return t.TrackedTx, true
}

// Snapshot returns every transaction currently being watched.
func (m *MonitorService) Snapshot() []TrackedTx {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]TrackedTx, 0, len(m.tracked))
	for _, t := range m.tracked {
		out = append(out, t.TrackedTx)
	}
	return out
}

// Run polls every PollInterval until ctx is cancelled or Close is called.
// Checks are handed to a fixed pool of Workers goroutines; a hash is never
// checked by two workers at once.
func (m *MonitorService) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	m.mu.Lock()
	m.cancel = cancel
	m.mu.Unlock()

	defer close(m.stopped)
	defer close(m.events)
	defer cancel()

	jobs := make(chan *trackedTx)
	var wg sync.WaitGroup
	for i := 0; i < m.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range jobs {
				m.check(ctx, t)
			}
		}()
	}

	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()

	m.log.Info().
		Dur("poll_interval", m.cfg.PollInterval).
		Dur("max_wait", m.cfg.MaxWait).
		Int("workers", m.cfg.Workers).
		Msg("confirmation monitor started")

	for {
		select {
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			m.log.Info().Msg("confirmation monitor stopped")
			return
		case <-ticker.C:
			m.dispatch(ctx, jobs)
		}
	}
}

// Close stops Run and waits for in-flight checks to finish. It is a no-op if
// Run was never started.
func (m *MonitorService) Close() {
	m.mu.Lock()
	cancel := m.cancel
	m.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-m.stopped
}

func (m *MonitorService) dispatch(ctx context.Context, jobs chan<- *trackedTx) {
	m.mu.Lock()
	due := make([]*trackedTx, 0, len(m.tracked))
	for _, t := range m.tracked {
		if !t.inFlight {
			t.inFlight = true
			due = append(due, t)
		}
	}
	m.mu.Unlock()

	for i, t := range due {
		select {
		case jobs <- t:
		case <-ctx.Done():
			m.release(due[i:])
			return
		}
	}
}

func (m *MonitorService) release(ts []*trackedTx) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range ts {
		t.inFlight = false
	}
}

func (m *MonitorService) check(ctx context.Context, t *trackedTx) {
	m.metrics.MonitorChecks.Inc()
	hash := t.TxHash

	receipt, err := m.client.GetReceipt(ctx, hash)
	if err != nil {
		m.log.Warn().Err(err).Str("tx_hash", hash).Msg("receipt lookup failed")
	}

	if receipt != nil {
		if !receipt.Success {
			m.finish(ctx, t, domain.ConfirmationEvent{
				Outcome:     domain.OutcomeFailed,
				BlockNumber: receipt.BlockNumber,
				Reason:      "transaction reverted",
			})
			return
		}

		head, err := m.client.GetCurrentBlockNumber(ctx)
		if err != nil {
			m.log.Warn().Err(err).Str("tx_hash", hash).Msg("head block lookup failed")
		} else if receipt.Confirmations(head) >= m.cfg.Confirmations {
			m.finish(ctx, t, domain.ConfirmationEvent{
				Outcome:     domain.OutcomeConfirmed,
				BlockNumber: receipt.BlockNumber,
			})
			return
		}
	}

	if m.cfg.MaxWait > 0 && m.now().Sub(t.StartedAt) >= m.cfg.MaxWait {
		m.finish(ctx, t, domain.ConfirmationEvent{
			Outcome: domain.OutcomeTimeout,
			Reason:  "no final receipt within max wait",
		})
		return
	}

	m.mu.Lock()
	t.Checks++
	t.LastChecked = m.now()
	t.inFlight = false
	m.mu.Unlock()
}

// finish removes t and emits ev exactly once. Confirmed and Failed hashes are
// remembered so a late Track is refused; a timed-out hash may be tracked again.
func (m *MonitorService) finish(ctx context.Context, t *trackedTx, ev domain.ConfirmationEvent) {
	ev.TxHash = t.TxHash
	ev.SettlementID = t.SettlementID

	m.mu.Lock()
	cur, ok := m.tracked[t.TxHash]
	if !ok || cur != t {
		// untracked while the check was running
		m.mu.Unlock()
		return
	}
	delete(m.tracked, t.TxHash)
	if ev.Outcome != domain.OutcomeTimeout {
		m.finalized.Add(t.TxHash, ev.Outcome)
	}
	m.metrics.MonitorTracked.Set(float64(len(m.tracked)))
	m.mu.Unlock()

	m.metrics.MonitorEvents.WithLabelValues(string(ev.Outcome)).Inc()

	log := m.log.Info()
	if ev.Outcome != domain.OutcomeConfirmed {
		log = m.log.Warn()
	}
	log.Str("tx_hash", ev.TxHash).
		Str("settlement_id", ev.SettlementID.String()).
		Str("outcome", string(ev.Outcome)).
		Uint64("block", ev.BlockNumber).
		Msg("transaction finalized")

	select {
	case m.events <- ev:
	case <-ctx.Done():
		m.log.Warn().Str("tx_hash", ev.TxHash).Msg("monitor stopping, confirmation event dropped")
	}
}
