package bonus

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/attaboy/egm-bonus/internal/domain"
	"github.com/attaboy/egm-bonus/internal/gaming"
	"github.com/attaboy/egm-bonus/internal/policy"
	"github.com/google/uuid"
)

// memLedger is an in-memory Ledger for tests.
type memLedger struct {
	mu     sync.Mutex
	txs    []*domain.BonusTransaction
	nextID int64
	maxTx  int
}

func newMemLedger() *memLedger {
	return &memLedger{nextID: 1}
}

func (l *memLedger) AddTransaction(_ context.Context, tx *domain.BonusTransaction) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	tx.TransactionID = l.nextID
	l.nextID++
	l.txs = append(l.txs, tx)
	return nil
}

func (l *memLedger) UpdateTransaction(context.Context, *domain.BonusTransaction) error {
	return nil
}

func (l *memLedger) RecallTransactions(context.Context) ([]*domain.BonusTransaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*domain.BonusTransaction, len(l.txs))
	copy(out, l.txs)
	return out, nil
}

func (l *memLedger) FindTransaction(_ context.Context, id int64) (*domain.BonusTransaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, tx := range l.txs {
		if tx.TransactionID == id {
			return tx, nil
		}
	}
	return nil, domain.ErrNotFound("bonus transaction", "")
}

func (l *memLedger) FindByBonusID(_ context.Context, bonusID string) (*domain.BonusTransaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, tx := range l.txs {
		if tx.BonusID == bonusID {
			return tx, nil
		}
	}
	return nil, nil
}

func (l *memLedger) MaxTransactions() int { return l.maxTx }

// memMarkers is an in-memory MarkerStore.
type memMarkers struct {
	mu     sync.Mutex
	marker *domain.PaymentMarker
}

func (m *memMarkers) Load(context.Context) (*domain.PaymentMarker, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.marker == nil {
		return nil, nil
	}
	cp := *m.marker
	return &cp, nil
}

func (m *memMarkers) Save(_ context.Context, marker domain.PaymentMarker) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.marker = &marker
	return nil
}

func (m *memMarkers) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.marker = nil
	return nil
}

func (m *memMarkers) current() *domain.PaymentMarker {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.marker
}

// memPayouts is an in-memory PayoutStore.
type memPayouts struct {
	mu      sync.Mutex
	payouts []*domain.Payout
}

func (p *memPayouts) Add(_ context.Context, payout *domain.Payout) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	cp := *payout
	p.payouts = append(p.payouts, &cp)
	return nil
}

func (p *memPayouts) FindByTraceID(_ context.Context, traceID uuid.UUID) (*domain.Payout, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, po := range p.payouts {
		if po.TraceID == traceID {
			cp := *po
			return &cp, nil
		}
	}
	return nil, nil
}

func (p *memPayouts) ListByTransaction(_ context.Context, transactionID int64) ([]*domain.Payout, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []*domain.Payout
	for _, po := range p.payouts {
		if po.TransactionID == transactionID {
			cp := *po
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (p *memPayouts) Void(_ context.Context, traceID uuid.UUID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, po := range p.payouts {
		if po.TraceID == traceID {
			po.Voided = true
		}
	}
	return nil
}

// memPublisher records published drafts.
type memPublisher struct {
	mu     sync.Mutex
	drafts []domain.OutboxDraft
}

func (p *memPublisher) Publish(_ context.Context, draft domain.OutboxDraft) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.drafts = append(p.drafts, draft)
	return nil
}

func (p *memPublisher) count(t domain.EventType) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, d := range p.drafts {
		if d.EventType == t {
			n++
		}
	}
	return n
}

// fakeTransfers simulates the transfer-out subsystem. An accepted transfer
// resolves synchronously through the registry with the configured result.
type fakeTransfers struct {
	registry *gaming.TransferRegistry

	mu        sync.Mutex
	accept    bool
	completed bool
	rail      domain.TransferRail
	creditHP  bool
	recovered uuid.UUID
	calls     int
}

func newFakeTransfers(registry *gaming.TransferRegistry) *fakeTransfers {
	return &fakeTransfers{registry: registry, accept: true, completed: true}
}

func (f *fakeTransfers) TransferOut(_ context.Context, _ uuid.UUID, rail domain.TransferRail,
	_, _, _ int64, _ []int64, _ string, traceID uuid.UUID) bool {
	f.mu.Lock()
	f.calls++
	accept, completed, override, creditHP := f.accept, f.completed, f.rail, f.creditHP
	f.mu.Unlock()

	if !accept {
		return false
	}
	if override == "" {
		override = rail
	}
	// The waiter channel is buffered, so resolving inline never blocks.
	f.registry.Resolve(gaming.TransferResult{
		TraceID:       traceID,
		Completed:     completed,
		Rail:          override,
		CreditHandpay: creditHP,
	})
	return true
}

func (f *fakeTransfers) Recover(uuid.UUID) uuid.UUID {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.recovered
}

// blockingCoordinator reports no active transaction but parks every token
// request until the test feeds the grant channel. waiting signals that a
// requester has arrived.
type blockingCoordinator struct {
	grant   chan uuid.UUID
	waiting chan struct{}
}

func newBlockingCoordinator() *blockingCoordinator {
	return &blockingCoordinator{
		grant:   make(chan uuid.UUID),
		waiting: make(chan struct{}, 1),
	}
}

func (c *blockingCoordinator) RequestTransaction(_ string, timeout time.Duration) uuid.UUID {
	select {
	case c.waiting <- struct{}{}:
	default:
	}
	select {
	case tok := <-c.grant:
		return tok
	case <-time.After(timeout):
		return uuid.Nil
	}
}

func (c *blockingCoordinator) ReleaseTransaction(uuid.UUID) {}

func (c *blockingCoordinator) IsTransactionActive() bool { return false }

// payRecorder captures the exact order Pay is invoked in across a drain.
type payRecorder struct {
	mu    sync.Mutex
	calls []payCall
}

type payCall struct {
	mode domain.BonusMode
	id   int64
}

func (r *payRecorder) record(mode domain.BonusMode, id int64) {
	r.mu.Lock()
	r.calls = append(r.calls, payCall{mode: mode, id: id})
	r.mu.Unlock()
}

func (r *payRecorder) sequence() []payCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]payCall, len(r.calls))
	copy(out, r.calls)
	return out
}

// recordingStrategy wraps a real strategy and notes every Pay call.
type recordingStrategy struct {
	Strategy
	rec *payRecorder
}

func (s *recordingStrategy) Pay(ctx context.Context, tx *domain.BonusTransaction, token uuid.UUID, cont Continuation) (Continuation, error) {
	s.rec.record(tx.Mode, tx.TransactionID)
	return s.Strategy.Pay(ctx, tx, token, cont)
}

// interceptStrategy runs a hook before the first Pay call, so a test can slip
// new work in while a drain is underway.
type interceptStrategy struct {
	Strategy
	before func()
	once   sync.Once
}

func (s *interceptStrategy) Pay(ctx context.Context, tx *domain.BonusTransaction, token uuid.UUID, cont Continuation) (Continuation, error) {
	s.once.Do(s.before)
	return s.Strategy.Pay(ctx, tx, token, cont)
}

// recordPays swaps every strategy for a recording wrapper around the real one.
func (e *env) recordPays() *payRecorder {
	rec := &payRecorder{}
	wrapped := make(map[domain.BonusMode]Strategy, len(e.handler.factory.strategies))
	for mode, s := range e.handler.factory.strategies {
		wrapped[mode] = &recordingStrategy{Strategy: s, rec: rec}
	}
	e.handler.factory = &StrategyFactory{strategies: wrapped}
	return rec
}

// env bundles a handler with every fake and local collaborator behind it.
type env struct {
	handler  *Handler
	ledger   *memLedger
	markers  *memMarkers
	payouts  *memPayouts
	events   *memPublisher
	wallet   *gaming.LocalWallet
	gameplay *gaming.LocalGamePlay
	meters   *gaming.LocalMeters
	identity *gaming.LocalIdentity
	display  *gaming.LocalDisplay
	coord    *gaming.LocalCoordinator
	registry *gaming.TransferRegistry
	transfer *fakeTransfers
}

func newEnv() *env {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	registry := gaming.NewTransferRegistry(logger)

	e := &env{
		ledger:   newMemLedger(),
		markers:  &memMarkers{},
		payouts:  &memPayouts{},
		events:   &memPublisher{},
		wallet:   gaming.NewLocalWallet(0),
		gameplay: gaming.NewLocalGamePlay(500),
		meters:   gaming.NewLocalMeters(),
		identity: gaming.NewLocalIdentity(),
		display:  gaming.NewLocalDisplay(),
		coord:    gaming.NewLocalCoordinator(),
		registry: registry,
		transfer: newFakeTransfers(registry),
	}
	deps := Deps{
		Ledger:      e.ledger,
		Markers:     e.markers,
		Payouts:     e.payouts,
		Events:      e.events,
		Wallet:      e.wallet,
		Transfers:   e.transfer,
		Registry:    registry,
		GamePlay:    e.gameplay,
		Identity:    e.identity,
		Display:     e.display,
		Meters:      e.meters,
		Coordinator: e.coord,
		PayPolicy:   policy.DefaultPayMethodPolicy(),
		Limits:      policy.AwardLimitPolicy{},
		Logger:      logger,
	}
	factory, err := NewStrategyFactory(deps)
	if err != nil {
		panic(err)
	}
	handler, err := NewHandler(deps, factory, uuid.New())
	if err != nil {
		panic(err)
	}
	e.handler = handler
	return e
}

// withLimits rebuilds the strategy set with the given limit policy.
func newEnvWithLimits(limits policy.AwardLimitPolicy) *env {
	e := newEnv()
	deps := e.handler.deps
	deps.Limits = limits
	factory, err := NewStrategyFactory(deps)
	if err != nil {
		panic(err)
	}
	handler, err := NewHandler(deps, factory, uuid.New())
	if err != nil {
		panic(err)
	}
	e.handler = handler
	return e
}
