package execution

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/yourusername/quantlink-exec-engine/pkg/market"
)

// Config 执行引擎配置
type Config struct {
	Instruments []string // 交易合约列表

	OrderTimeout       time.Duration // 订单超时时间，0表示不超时
	RetryLimit         int           // 每条订单链的最大重发次数
	RetryOffsetTicks   int           // 重发时的价格偏移（tick数）
	DefaultOffsetTicks int           // 默认委托价格偏移（tick数）
	Cooldown           time.Duration // 同一(合约,动作)的提交冷却时间
	ReconcileInterval  time.Duration // 定时持仓对账间隔，0表示关闭

	Timeframes []time.Duration // 每个合约聚合的K线周期
}

// Engine is the order execution core. All inbound venue and market data
// events enter through Dispatch; strategy code drives it through the
// Buy/Sell/SellShort/BuyToCover entry points. Per-instrument work is
// serialized by an instrument lock.
type Engine struct {
	cfg     *Config
	specs   *market.SpecTable
	gateway OrderGateway
	barSink BarSink
	guard   *cooldownTable

	onReject func(*VenueRejectionError)

	mu    sync.RWMutex
	books map[string]*instrumentBook

	reconMu sync.Mutex
	recon   *reconciliationPass

	runMu   sync.RWMutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// instrumentBook bundles everything the engine tracks for one instrument.
// All fields are guarded by mu.
type instrumentBook struct {
	mu       sync.Mutex
	state    *InstrumentState
	orders   *orderBook
	lastTick *market.Tick
	aggs     []*market.Aggregator
}

// NewEngine creates an engine. The gateway may be bound later with
// BindGateway; orders submitted before that fail.
func NewEngine(cfg *Config, specs *market.SpecTable, gw OrderGateway) *Engine {
	e := &Engine{
		cfg:     cfg,
		specs:   specs,
		gateway: gw,
		guard:   newCooldownTable(cfg.Cooldown),
		books:   make(map[string]*instrumentBook),
		stopCh:  make(chan struct{}),
	}
	for _, sym := range cfg.Instruments {
		e.book(sym)
	}
	return e
}

// BindGateway sets the outbound order path.
func (e *Engine) BindGateway(gw OrderGateway) {
	e.gateway = gw
}

// BindBarSink sets the destination for completed bars.
func (e *Engine) BindBarSink(sink BarSink) {
	e.barSink = sink
}

// SetRejectHandler installs a callback invoked for surfaced venue
// rejections (after any automatic close-yesterday fallback).
func (e *Engine) SetRejectHandler(fn func(*VenueRejectionError)) {
	e.onReject = fn
}

// Start launches the background timers: the order timeout scanner and,
// when configured, the periodic reconciliation trigger.
func (e *Engine) Start() error {
	e.runMu.Lock()
	if e.running {
		e.runMu.Unlock()
		return fmt.Errorf("engine already running")
	}
	if e.gateway == nil {
		e.runMu.Unlock()
		return fmt.Errorf("engine has no gateway bound")
	}
	e.running = true
	e.runMu.Unlock()

	e.wg.Add(1)
	go e.runTimers()

	log.Printf("[Engine] started, %d instruments, timeout=%v retry_limit=%d",
		len(e.cfg.Instruments), e.cfg.OrderTimeout, e.cfg.RetryLimit)
	return nil
}

// Stop halts the timers and flushes partial bars to the sink.
func (e *Engine) Stop() {
	e.runMu.Lock()
	if !e.running {
		e.runMu.Unlock()
		return
	}
	e.running = false
	e.runMu.Unlock()

	close(e.stopCh)
	e.wg.Wait()
	e.FlushBars()
	log.Printf("[Engine] stopped")
}

// IsRunning returns whether the background timers are active.
func (e *Engine) IsRunning() bool {
	e.runMu.RLock()
	defer e.runMu.RUnlock()
	return e.running
}

func (e *Engine) runTimers() {
	defer e.wg.Done()

	scan := time.NewTicker(time.Second)
	defer scan.Stop()

	var reconC <-chan time.Time
	if e.cfg.ReconcileInterval > 0 {
		recon := time.NewTicker(e.cfg.ReconcileInterval)
		defer recon.Stop()
		reconC = recon.C
	}

	for {
		select {
		case <-e.stopCh:
			return
		case <-scan.C:
			e.ScanTimeouts(time.Now())
		case <-reconC:
			if err := e.BeginReconciliation(context.Background(), e.cfg.Instruments); err != nil {
				log.Printf("[Engine] periodic reconciliation failed: %v", err)
			}
		}
	}
}

// book returns the instrument book, creating it on first use.
func (e *Engine) book(instrument string) *instrumentBook {
	e.mu.RLock()
	b, ok := e.books[instrument]
	e.mu.RUnlock()
	if ok {
		return b
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if b, ok = e.books[instrument]; ok {
		return b
	}

	b = &instrumentBook{
		state:  newInstrumentState(instrument),
		orders: newOrderBook(),
	}
	for _, tf := range e.cfg.Timeframes {
		b.aggs = append(b.aggs, market.NewAggregator(instrument, tf))
	}
	e.books[instrument] = b
	return b
}

func generateLocalID() string {
	return "ORD_" + ulid.Make().String()
}

// ---------------------------------------------------------------------------
// Strategy-facing entry points
// ---------------------------------------------------------------------------

// Buy opens a long position. Returns the local order ID, or "" when the
// cooldown guard suppressed the request.
func (e *Engine) Buy(instrument string, qty int64, opts *OrderOpts) (string, error) {
	return e.openPosition(instrument, SideBuy, ActionBuy, qty, opts)
}

// SellShort opens a short position.
func (e *Engine) SellShort(instrument string, qty int64, opts *OrderOpts) (string, error) {
	return e.openPosition(instrument, SideSell, ActionSellShort, qty, opts)
}

// Sell closes long lots. qty <= 0 closes the whole long position. The
// request may split into a close-today and a close-yesterday child; all
// child local IDs are returned.
func (e *Engine) Sell(instrument string, qty int64, opts *OrderOpts) ([]string, error) {
	return e.closePosition(instrument, DirectionLong, ActionSell, qty, opts)
}

// BuyToCover closes short lots. qty <= 0 covers the whole short position.
func (e *Engine) BuyToCover(instrument string, qty int64, opts *OrderOpts) ([]string, error) {
	return e.closePosition(instrument, DirectionShort, ActionBuyToCover, qty, opts)
}

// CloseAll flattens both directions of one instrument.
func (e *Engine) CloseAll(instrument string) ([]string, error) {
	var ids []string

	longIDs, err := e.Sell(instrument, 0, nil)
	if err != nil {
		if _, flat := err.(*NoPositionError); !flat {
			return ids, err
		}
	}
	ids = append(ids, longIDs...)

	shortIDs, err := e.BuyToCover(instrument, 0, nil)
	if err != nil {
		if _, flat := err.(*NoPositionError); !flat {
			return ids, err
		}
	}
	ids = append(ids, shortIDs...)

	return ids, nil
}

// CancelAll requests cancellation of every working order on an instrument.
// Orders not yet acknowledged by the venue cannot be cancelled and are
// skipped.
func (e *Engine) CancelAll(instrument string) error {
	b := e.book(instrument)
	b.mu.Lock()
	defer b.mu.Unlock()

	var firstErr error
	for _, po := range b.orders.all() {
		if po.cancelSent {
			continue
		}
		if po.VenueOrderID == "" {
			log.Printf("[Engine] cancel-all: %s has no venue ID yet, skipping", po.LocalID)
			continue
		}
		po.cancelSent = true
		err := e.gateway.CancelOrder(context.Background(), &CancelRequest{
			Instrument:   instrument,
			LocalID:      po.LocalID,
			VenueOrderID: po.VenueOrderID,
		})
		if err != nil {
			po.cancelSent = false
			if firstErr == nil {
				firstErr = fmt.Errorf("failed to cancel order %s: %w", po.LocalID, err)
			}
		}
	}
	return firstErr
}

// GetPosition returns a copy of the instrument's position state.
func (e *Engine) GetPosition(instrument string) PositionView {
	b := e.book(instrument)
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state.View()
}

// Positions returns copies of every tracked instrument's position.
func (e *Engine) Positions() map[string]PositionView {
	e.mu.RLock()
	syms := make([]string, 0, len(e.books))
	for sym := range e.books {
		syms = append(syms, sym)
	}
	e.mu.RUnlock()

	out := make(map[string]PositionView, len(syms))
	for _, sym := range syms {
		out[sym] = e.GetPosition(sym)
	}
	return out
}

// SeedPositions preloads position state, used at startup from the saved
// position file. The first reconciliation pass replaces it with counter
// truth.
func (e *Engine) SeedPositions(positions map[string]PositionView) {
	for sym, v := range positions {
		b := e.book(sym)
		b.mu.Lock()
		b.state.replace(v.LongToday, v.LongYd, v.ShortToday, v.ShortYd)
		b.mu.Unlock()
	}
	log.Printf("[Engine] seeded %d instrument positions from file", len(positions))
}

// PendingCount returns the number of working orders for an instrument.
func (e *Engine) PendingCount(instrument string) int {
	b := e.book(instrument)
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.orders.size()
}

func (e *Engine) openPosition(instrument string, side Side, action ActionKind, qty int64, opts *OrderOpts) (string, error) {
	if qty <= 0 {
		return "", fmt.Errorf("invalid open quantity %d for %s", qty, instrument)
	}
	now := time.Now()
	if !e.guard.allow(instrument, action, now) {
		return "", nil
	}

	b := e.book(instrument)
	b.mu.Lock()
	defer b.mu.Unlock()

	price, err := e.resolvePriceLocked(b, instrument, side, opts)
	if err != nil {
		e.guard.forget(instrument, action, now)
		return "", err
	}

	po := &PendingOrder{
		LocalID:      generateLocalID(),
		Instrument:   instrument,
		Side:         side,
		Offset:       OffsetOpen,
		LimitPrice:   price,
		RequestedQty: qty,
	}
	if err := e.submitLocked(b, po); err != nil {
		e.guard.forget(instrument, action, now)
		return "", err
	}
	return po.LocalID, nil
}

func (e *Engine) closePosition(instrument string, dir PositionDirection, action ActionKind, qty int64, opts *OrderOpts) ([]string, error) {
	now := time.Now()
	if !e.guard.allow(instrument, action, now) {
		return nil, nil
	}

	b := e.book(instrument)
	b.mu.Lock()
	defer b.mu.Unlock()

	today, yd := b.state.closable(dir)
	if today+yd <= 0 {
		e.guard.forget(instrument, action, now)
		return nil, &NoPositionError{Instrument: instrument, Direction: dir}
	}
	if qty <= 0 {
		qty = today + yd
	}

	slices, effective := splitClose(today, yd, qty)
	if effective < qty {
		log.Printf("[Engine] %v", &InsufficientPositionError{
			Instrument: instrument, Requested: qty, Available: today + yd,
		})
	}
	if len(slices) == 0 {
		e.guard.forget(instrument, action, now)
		return nil, &NoPositionError{Instrument: instrument, Direction: dir}
	}

	side := SideSell
	if dir == DirectionShort {
		side = SideBuy
	}
	price, err := e.resolvePriceLocked(b, instrument, side, opts)
	if err != nil {
		e.guard.forget(instrument, action, now)
		return nil, err
	}

	ids := make([]string, 0, len(slices))
	for _, slice := range slices {
		po := &PendingOrder{
			LocalID:      generateLocalID(),
			Instrument:   instrument,
			Side:         side,
			Offset:       slice.Offset,
			LimitPrice:   price,
			RequestedQty: slice.Quantity,
		}
		if err := e.submitLocked(b, po); err != nil {
			// Keep the window when an earlier slice already reached the venue.
			if len(ids) == 0 {
				e.guard.forget(instrument, action, now)
			}
			return ids, err
		}
		ids = append(ids, po.LocalID)
	}
	return ids, nil
}

func (e *Engine) resolvePriceLocked(b *instrumentBook, instrument string, side Side, opts *OrderOpts) (float64, error) {
	tickSize := e.specs.TickSize(instrument)

	if opts != nil && opts.LimitPrice > 0 {
		return market.RoundToTickSize(opts.LimitPrice, tickSize), nil
	}

	offset := e.cfg.DefaultOffsetTicks
	if opts != nil && opts.OffsetSet {
		offset = opts.OffsetTicks
	}
	return resolveOrderPrice(instrument, side, b.lastTick, tickSize, offset)
}

func (e *Engine) submitLocked(b *instrumentBook, po *PendingOrder) error {
	b.orders.add(po)

	req := &OrderRequest{
		LocalID:    po.LocalID,
		Instrument: po.Instrument,
		Side:       po.Side,
		Offset:     po.Offset,
		Price:      po.LimitPrice,
		Quantity:   po.RequestedQty,
	}
	if err := e.gateway.SendOrder(context.Background(), req); err != nil {
		b.orders.remove(po)
		return fmt.Errorf("failed to send order %s: %w", po.LocalID, err)
	}

	po.InsertTime = time.Now()
	mtxOrdersSubmitted.WithLabelValues(po.Side.String(), po.Offset.String()).Inc()
	mtxPendingOrders.Inc()
	log.Printf("[Engine] submit %s %s %s %s qty=%d px=%.2f retry=%d",
		po.LocalID, po.Instrument, po.Side, po.Offset, po.RequestedQty, po.LimitPrice, po.RetryCount)
	return nil
}

// dropOrder removes a working order and keeps the gauge honest. Returns
// false when the order was already gone.
func (e *Engine) dropOrder(b *instrumentBook, po *PendingOrder) bool {
	if b.orders.getByLocal(po.LocalID) == nil {
		return false
	}
	b.orders.remove(po)
	mtxPendingOrders.Dec()
	return true
}

// ---------------------------------------------------------------------------
// Event dispatch
// ---------------------------------------------------------------------------

// Dispatch consumes one inbound event. Panics in handlers are recovered
// and logged so a malformed message cannot take the process down.
func (e *Engine) Dispatch(ev Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[Engine] panic handling %s event: %v", ev.Kind, r)
		}
	}()

	switch ev.Kind {
	case EventTick:
		e.onTick(ev.Tick)
	case EventOrderAck:
		e.onOrderAck(ev.Ack)
	case EventTrade:
		e.onTrade(ev.Trade)
	case EventCancelConfirmed:
		e.onCancelConfirmed(ev.Cancel)
	case EventCancelRejected:
		e.onCancelRejected(ev.Cancel)
	case EventOrderRejected:
		e.onOrderRejected(ev.Reject)
	case EventSnapshotFragment:
		e.onSnapshotFragment(ev.Fragment)
	case EventSnapshotComplete:
		e.onSnapshotComplete(ev.Complete)
	default:
		log.Printf("[Engine] unknown event kind %d", ev.Kind)
	}
}

func (e *Engine) onTick(t *market.Tick) {
	if t == nil || t.Instrument == "" {
		return
	}
	b := e.book(t.Instrument)
	b.mu.Lock()
	defer b.mu.Unlock()

	b.lastTick = t
	for _, agg := range b.aggs {
		if bar := agg.OnTick(t); bar != nil && e.barSink != nil {
			e.barSink.Append(bar)
		}
	}

	// Timeout detection rides on the tick stream so it reacts quickly in
	// active markets; the background ticker covers quiet ones.
	e.scanBookLocked(b, time.Now())
}

func (e *Engine) onOrderAck(a *OrderAck) {
	if a == nil {
		return
	}
	b := e.book(a.Instrument)
	b.mu.Lock()
	defer b.mu.Unlock()

	po := b.orders.bindVenueID(a.LocalID, a.VenueOrderID)
	if po == nil && a.VenueOrderID != "" {
		po = b.orders.getByVenue(a.VenueOrderID)
	}
	if po == nil {
		log.Printf("[Engine] ack for unknown order local=%s venue=%s", a.LocalID, a.VenueOrderID)
		return
	}

	if a.FilledQty > po.FilledQty {
		po.FilledQty = a.FilledQty
	}

	switch a.Status {
	case AckFilled:
		if e.dropOrder(b, po) {
			mtxOrdersFilled.Inc()
			log.Printf("[Engine] order %s filled (%d)", po.LocalID, po.FilledQty)
		}
	case AckCancelled:
		// Some counters report cancels through the order status stream
		// instead of a dedicated cancel confirmation.
		e.handleCancelledLocked(b, po, "")
	}
}

func (e *Engine) onTrade(tr *TradeEvent) {
	if tr == nil {
		return
	}
	b := e.book(tr.Instrument)
	b.mu.Lock()
	defer b.mu.Unlock()

	po := b.orders.getByVenue(tr.VenueOrderID)
	if po != nil {
		po.FilledQty += tr.Quantity
		if po.IsFilled() && e.dropOrder(b, po) {
			mtxOrdersFilled.Inc()
			log.Printf("[Engine] order %s filled (%d @ %.2f)", po.LocalID, po.FilledQty, tr.Price)
		}
	} else {
		log.Printf("[Engine] trade for untracked order venue=%s, applying position only", tr.VenueOrderID)
	}

	// The venue fill is truth for position state regardless of order
	// tracking.
	b.state.applyFill(tr.Side, tr.Offset, tr.Quantity)
}

func (e *Engine) onCancelConfirmed(c *CancelEvent) {
	if c == nil {
		return
	}
	b := e.book(c.Instrument)
	b.mu.Lock()
	defer b.mu.Unlock()

	po := b.orders.getByVenue(c.VenueOrderID)
	if po == nil {
		log.Printf("[Engine] cancel confirm for unknown order venue=%s", c.VenueOrderID)
		return
	}
	e.handleCancelledLocked(b, po, c.Reason)
}

// handleCancelledLocked finalizes a cancelled order and, when the cancel
// came from the timeout path, resubmits the unfilled remainder at an
// escalated price. The resubmission is a fresh order carrying the parent's
// retry count plus one, so each originating order's chain is bounded even
// when several orders work the same instrument.
func (e *Engine) handleCancelledLocked(b *instrumentBook, po *PendingOrder, reason string) {
	e.dropOrder(b, po)
	mtxOrdersCancelled.Inc()

	if !po.markedResend {
		log.Printf("[Engine] order %s cancelled%s", po.LocalID, reasonSuffix(reason))
		return
	}

	remaining := po.RemainingQty()
	if remaining <= 0 {
		// Fill raced the cancel confirmation. Nothing left to do.
		log.Printf("[Engine] order %s fully filled before cancel confirm, no resubmit", po.LocalID)
		return
	}
	if po.RetryCount >= e.cfg.RetryLimit {
		log.Printf("[Engine] order %s hit retry limit %d with %d unfilled, giving up",
			po.LocalID, e.cfg.RetryLimit, remaining)
		return
	}

	price, err := resolveOrderPrice(po.Instrument, po.Side, b.lastTick,
		e.specs.TickSize(po.Instrument), e.cfg.RetryOffsetTicks)
	if err != nil {
		log.Printf("[Engine] cannot price resubmit of %s: %v", po.LocalID, err)
		return
	}

	child := &PendingOrder{
		LocalID:       generateLocalID(),
		Instrument:    po.Instrument,
		Side:          po.Side,
		Offset:        po.Offset,
		LimitPrice:    price,
		RequestedQty:  remaining,
		RetryCount:    po.RetryCount + 1,
		ParentLocalID: po.LocalID,
		retriedAsYd:   po.retriedAsYd,
	}
	if err := e.submitLocked(b, child); err != nil {
		log.Printf("[Engine] resubmit of %s failed: %v", po.LocalID, err)
		return
	}
	mtxOrderResubmits.Inc()
	log.Printf("[Engine] order %s timed out, resubmitted %d as %s (retry %d/%d)",
		po.LocalID, remaining, child.LocalID, child.RetryCount, e.cfg.RetryLimit)
}

func (e *Engine) onCancelRejected(c *CancelEvent) {
	if c == nil {
		return
	}
	b := e.book(c.Instrument)
	b.mu.Lock()
	defer b.mu.Unlock()

	po := b.orders.getByVenue(c.VenueOrderID)
	log.Printf("[Engine] cancel rejected for venue=%s%s", c.VenueOrderID, reasonSuffix(c.Reason))
	if po != nil && po.markedResend {
		// Usually the order filled before the cancel arrived; the fill or
		// ack will close it out. Clear the resend mark so a stale cancel
		// state cannot trigger a retry later.
		po.markedResend = false
		po.cancelSent = false
	}
}

func (e *Engine) onOrderRejected(r *RejectEvent) {
	if r == nil {
		return
	}
	b := e.book(r.Instrument)
	b.mu.Lock()
	defer b.mu.Unlock()

	po := b.orders.getByLocal(r.LocalID)
	if po != nil {
		e.dropOrder(b, po)
	}
	mtxOrderRejections.WithLabelValues(strconv.Itoa(r.Code)).Inc()

	// Close-today rejected for lack of today lots: retry once as
	// close-yesterday when yesterday lots exist.
	if r.Code == venueErrInsufficientTodayLot && po != nil &&
		po.Offset == OffsetCloseToday && !po.retriedAsYd {
		dir := DirectionLong
		if po.Side == SideBuy {
			dir = DirectionShort
		}
		if _, yd := b.state.closable(dir); yd > 0 {
			child := &PendingOrder{
				LocalID:       generateLocalID(),
				Instrument:    po.Instrument,
				Side:          po.Side,
				Offset:        OffsetCloseYesterday,
				LimitPrice:    po.LimitPrice,
				RequestedQty:  po.RemainingQty(),
				RetryCount:    po.RetryCount,
				ParentLocalID: po.LocalID,
				retriedAsYd:   true,
			}
			if err := e.submitLocked(b, child); err != nil {
				log.Printf("[Engine] close-yesterday fallback for %s failed: %v", po.LocalID, err)
				return
			}
			log.Printf("[Engine] order %s lacked today lots, resent %d as close-yesterday (%s)",
				po.LocalID, child.RequestedQty, child.LocalID)
			return
		}
	}

	rejErr := &VenueRejectionError{
		Instrument: r.Instrument,
		LocalID:    r.LocalID,
		Code:       r.Code,
		Message:    VenueErrorText(r.Code, r.Message),
	}
	log.Printf("[Engine] %v", rejErr)
	if e.onReject != nil {
		e.onReject(rejErr)
	}
}

// ScanTimeouts cancels working orders that exceeded the configured
// timeout. Safe to call from any goroutine.
func (e *Engine) ScanTimeouts(now time.Time) {
	if e.cfg.OrderTimeout <= 0 {
		return
	}

	e.mu.RLock()
	books := make([]*instrumentBook, 0, len(e.books))
	for _, b := range e.books {
		books = append(books, b)
	}
	e.mu.RUnlock()

	for _, b := range books {
		b.mu.Lock()
		e.scanBookLocked(b, now)
		b.mu.Unlock()
	}
}

func (e *Engine) scanBookLocked(b *instrumentBook, now time.Time) {
	if e.cfg.OrderTimeout <= 0 {
		return
	}

	for _, po := range b.orders.all() {
		if po.markedResend || po.cancelSent {
			continue
		}
		if now.Sub(po.InsertTime) < e.cfg.OrderTimeout {
			continue
		}
		if po.VenueOrderID == "" {
			// Never acknowledged; there is nothing at the venue to cancel.
			log.Printf("[Engine] order %s timed out without venue ack", po.LocalID)
			continue
		}

		po.markedResend = true
		po.cancelSent = true
		err := e.gateway.CancelOrder(context.Background(), &CancelRequest{
			Instrument:   po.Instrument,
			LocalID:      po.LocalID,
			VenueOrderID: po.VenueOrderID,
		})
		if err != nil {
			po.markedResend = false
			po.cancelSent = false
			log.Printf("[Engine] cancel of timed out order %s failed: %v", po.LocalID, err)
			continue
		}
		log.Printf("[Engine] order %s timed out after %v, cancel requested",
			po.LocalID, e.cfg.OrderTimeout)
	}
}

// ---------------------------------------------------------------------------
// Reconciliation
// ---------------------------------------------------------------------------

// BeginReconciliation starts a snapshot round over the given instruments.
// A round still in flight is discarded; the counter's eventual completion
// markers then apply to the new round.
func (e *Engine) BeginReconciliation(ctx context.Context, instruments []string) error {
	if len(instruments) == 0 {
		return nil
	}

	e.reconMu.Lock()
	if e.recon != nil {
		log.Printf("[Recon] discarding unfinished pass (%d instruments pending)", e.recon.remaining)
	}
	e.recon = newReconciliationPass(instruments)
	e.reconMu.Unlock()

	var firstErr error
	for _, sym := range instruments {
		if err := e.gateway.RequestSnapshot(ctx, sym); err != nil {
			log.Printf("[Recon] snapshot request for %s failed: %v", sym, err)
			if firstErr == nil {
				firstErr = fmt.Errorf("failed to request snapshot for %s: %w", sym, err)
			}
		}
	}
	return firstErr
}

func (e *Engine) onSnapshotFragment(f *SnapshotFragment) {
	if f == nil {
		return
	}
	e.reconMu.Lock()
	defer e.reconMu.Unlock()

	if e.recon == nil {
		log.Printf("[Recon] stray snapshot fragment for %s, no pass active", f.Instrument)
		return
	}
	if !e.recon.addFragment(f) {
		log.Printf("[Recon] snapshot fragment for %s outside active pass", f.Instrument)
	}
}

func (e *Engine) onSnapshotComplete(c *SnapshotComplete) {
	if c == nil {
		return
	}

	e.reconMu.Lock()
	if e.recon == nil {
		e.reconMu.Unlock()
		return
	}
	done := e.recon.markComplete(c.Instrument)
	var pass *reconciliationPass
	if done {
		pass = e.recon
		e.recon = nil
	}
	e.reconMu.Unlock()

	if pass != nil {
		e.applyReconciliation(pass)
	}
}

// applyReconciliation merges each instrument's accumulated fragments,
// logs divergences from local state and replaces it with counter truth.
func (e *Engine) applyReconciliation(pass *reconciliationPass) {
	for sym, acc := range pass.accum {
		b := e.book(sym)
		b.mu.Lock()

		longToday, longYd := reconcileLots(sym, "long", acc.longTotal, acc.longToday, acc.longYd)
		shortToday, shortYd := reconcileLots(sym, "short", acc.shortTotal, acc.shortToday, acc.shortYd)

		local := b.state.View()
		e.reportMismatch(sym, "long_total", local.LongTotal, longToday+longYd)
		e.reportMismatch(sym, "short_total", local.ShortTotal, shortToday+shortYd)
		e.reportMismatch(sym, "long_today", local.LongToday, longToday)
		e.reportMismatch(sym, "short_today", local.ShortToday, shortToday)
		e.reportMismatch(sym, "net", local.Net, (longToday+longYd)-(shortToday+shortYd))

		b.state.replace(longToday, longYd, shortToday, shortYd)
		b.mu.Unlock()

		log.Printf("[Recon] %s: long=%d(T%d/Y%d) short=%d(T%d/Y%d) net=%d, %d fragments",
			sym, longToday+longYd, longToday, longYd,
			shortToday+shortYd, shortToday, shortYd,
			(longToday+longYd)-(shortToday+shortYd), acc.fragments)
	}
	mtxReconPasses.Inc()
}

// reconcileLots normalizes a direction's counter totals. Some counters
// report a total that disagrees with today+yesterday; the total wins and
// the yesterday bucket absorbs the difference.
func reconcileLots(sym, dir string, total, today, yd int64) (int64, int64) {
	if total == today+yd {
		return today, yd
	}
	adjusted := total - today
	if adjusted < 0 {
		adjusted = 0
		today = total
	}
	log.Printf("[Recon] %s %s lots inconsistent (total=%d today=%d yd=%d), using total",
		sym, dir, total, today, yd)
	return today, adjusted
}

func (e *Engine) reportMismatch(sym, field string, local, counter int64) {
	if local == counter {
		return
	}
	mtxReconMismatches.Inc()
	log.Printf("[Recon] %v", &ReconciliationMismatchError{
		Instrument: sym, Field: field, Local: local, Counter: counter,
	})
}

// FlushBars finalizes in-progress bars across all instruments and hands
// them to the sink. Called on shutdown.
func (e *Engine) FlushBars() {
	if e.barSink == nil {
		return
	}

	e.mu.RLock()
	books := make([]*instrumentBook, 0, len(e.books))
	for _, b := range e.books {
		books = append(books, b)
	}
	e.mu.RUnlock()

	for _, b := range books {
		b.mu.Lock()
		for _, agg := range b.aggs {
			if bar := agg.Flush(); bar != nil {
				e.barSink.Append(bar)
			}
		}
		b.mu.Unlock()
	}
}

func reasonSuffix(reason string) string {
	if reason == "" {
		return ""
	}
	return ": " + reason
}
