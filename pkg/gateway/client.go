// Package gateway connects the execution engine to the outside world:
// market data and venue reports arrive over NATS, orders and cancels go
// out over NATS, and position snapshots are triggered through the counter
// bridge's HTTP API.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/yourusername/quantlink-exec-engine/pkg/execution"
)

// EventSink consumes decoded inbound events, normally the engine.
type EventSink interface {
	Dispatch(ev execution.Event)
}

// Config 网关配置
type Config struct {
	NATSAddr          string   // NATS服务器地址 (例如: nats://localhost:4222)
	CounterBridgeAddr string   // Counter Bridge地址 (例如: localhost:8080)
	StrategyID        string   // 策略ID
	Instruments       []string // 订阅行情的合约
}

// Client is the NATS-backed gateway. It implements execution.OrderGateway
// for the outbound path and pushes decoded inbound messages into the sink.
type Client struct {
	cfg  Config
	sink EventSink

	nc    *nats.Conn
	subs  []*nats.Subscription
	httpc *http.Client

	mu        sync.RWMutex
	connected bool

	// 统计
	ordersSent   int64
	cancelsSent  int64
	queriesSent  int64
	eventsPushed int64
}

// NewClient connects to NATS. Subscriptions start on Start.
func NewClient(cfg Config, sink EventSink) (*Client, error) {
	nc, err := nats.Connect(cfg.NATSAddr,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Printf("[Gateway] NATS disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			log.Printf("[Gateway] NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	c := &Client{
		cfg:       cfg,
		sink:      sink,
		nc:        nc,
		httpc:     &http.Client{Timeout: 5 * time.Second},
		connected: true,
	}
	log.Printf("[Gateway] Connected to NATS: %s", cfg.NATSAddr)
	return c, nil
}

// Start subscribes to market data and venue report subjects.
func (c *Client) Start() error {
	for _, sym := range c.cfg.Instruments {
		subject := subjectTickPrefix + sym
		sub, err := c.nc.Subscribe(subject, c.handleTick)
		if err != nil {
			return fmt.Errorf("failed to subscribe to %s: %w", subject, err)
		}
		c.subs = append(c.subs, sub)
	}

	inbound := []struct {
		subject string
		handler nats.MsgHandler
	}{
		{subjectOrderUpdate, c.handleOrderUpdate},
		{subjectTrade, c.handleTrade},
		{subjectPositionSnapshot, c.handlePositionSnapshot},
		{subjectPositionComplete, c.handlePositionComplete},
	}
	for _, in := range inbound {
		sub, err := c.nc.Subscribe(in.subject, in.handler)
		if err != nil {
			return fmt.Errorf("failed to subscribe to %s: %w", in.subject, err)
		}
		c.subs = append(c.subs, sub)
	}

	log.Printf("[Gateway] Subscribed: %d market data + %d report subjects",
		len(c.cfg.Instruments), len(inbound))
	return nil
}

// Close unsubscribes and drops the NATS connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.connected = false
	for _, sub := range c.subs {
		sub.Unsubscribe()
	}
	c.subs = nil
	if c.nc != nil {
		c.nc.Close()
	}
	log.Printf("[Gateway] Closed (orders=%d cancels=%d queries=%d events=%d)",
		atomic.LoadInt64(&c.ordersSent), atomic.LoadInt64(&c.cancelsSent),
		atomic.LoadInt64(&c.queriesSent), atomic.LoadInt64(&c.eventsPushed))
	return nil
}

// ---------------------------------------------------------------------------
// Outbound (execution.OrderGateway)
// ---------------------------------------------------------------------------

// SendOrder publishes a new-order request.
func (c *Client) SendOrder(_ context.Context, req *execution.OrderRequest) error {
	if !c.isConnected() {
		return fmt.Errorf("gateway not connected")
	}

	msg := orderRequestMessage{
		ClientOrderID: req.LocalID,
		StrategyID:    c.cfg.StrategyID,
		Symbol:        req.Instrument,
		Side:          req.Side.String(),
		Offset:        req.Offset.String(),
		Price:         req.Price,
		Quantity:      req.Quantity,
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal order request: %w", err)
	}
	if err := c.nc.Publish(subjectOrderRequest, data); err != nil {
		return fmt.Errorf("failed to publish order request: %w", err)
	}
	atomic.AddInt64(&c.ordersSent, 1)
	return nil
}

// CancelOrder publishes a cancel request.
func (c *Client) CancelOrder(_ context.Context, req *execution.CancelRequest) error {
	if !c.isConnected() {
		return fmt.Errorf("gateway not connected")
	}

	msg := cancelRequestMessage{
		ClientOrderID: req.LocalID,
		OrderID:       req.VenueOrderID,
		StrategyID:    c.cfg.StrategyID,
		Symbol:        req.Instrument,
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal cancel request: %w", err)
	}
	if err := c.nc.Publish(subjectCancelRequest, data); err != nil {
		return fmt.Errorf("failed to publish cancel request: %w", err)
	}
	atomic.AddInt64(&c.cancelsSent, 1)
	return nil
}

// RequestSnapshot triggers a position snapshot for one instrument. With a
// counter bridge configured the query goes over its HTTP API; otherwise it
// is published on NATS. Fragments and the completion marker come back on
// the snapshot subjects either way.
func (c *Client) RequestSnapshot(ctx context.Context, instrument string) error {
	if !c.isConnected() {
		return fmt.Errorf("gateway not connected")
	}
	atomic.AddInt64(&c.queriesSent, 1)

	if c.cfg.CounterBridgeAddr == "" {
		data, err := json.Marshal(positionRequestMessage{StrategyID: c.cfg.StrategyID, Symbol: instrument})
		if err != nil {
			return fmt.Errorf("failed to marshal snapshot request: %w", err)
		}
		if err := c.nc.Publish(subjectPositionRequest, data); err != nil {
			return fmt.Errorf("failed to publish snapshot request: %w", err)
		}
		return nil
	}

	url := fmt.Sprintf("http://%s/api/positions/query?strategy_id=%s&symbol=%s",
		c.cfg.CounterBridgeAddr, c.cfg.StrategyID, instrument)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to build snapshot query: %w", err)
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("failed to query counter bridge: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("counter bridge returned %d: %s", resp.StatusCode, string(body))
	}

	var result struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return fmt.Errorf("failed to parse counter bridge response: %w", err)
	}
	if !result.Success {
		return fmt.Errorf("counter bridge rejected snapshot query: %s", result.Error)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Inbound handlers
// ---------------------------------------------------------------------------

func (c *Client) handleTick(msg *nats.Msg) {
	var m tickMessage
	if err := json.Unmarshal(msg.Data, &m); err != nil {
		log.Printf("[Gateway] bad tick on %s: %v", msg.Subject, err)
		return
	}
	c.push(execution.Event{Kind: execution.EventTick, Tick: m.toTick()})
}

func (c *Client) handleOrderUpdate(msg *nats.Msg) {
	var m orderUpdateMessage
	if err := json.Unmarshal(msg.Data, &m); err != nil {
		log.Printf("[Gateway] bad order update: %v", err)
		return
	}
	c.push(m.toEvent())
}

func (c *Client) handleTrade(msg *nats.Msg) {
	var m tradeMessage
	if err := json.Unmarshal(msg.Data, &m); err != nil {
		log.Printf("[Gateway] bad trade report: %v", err)
		return
	}
	c.push(m.toEvent())
}

func (c *Client) handlePositionSnapshot(msg *nats.Msg) {
	var m positionMessage
	if err := json.Unmarshal(msg.Data, &m); err != nil {
		log.Printf("[Gateway] bad position snapshot: %v", err)
		return
	}
	c.push(m.toEvent())
}

func (c *Client) handlePositionComplete(msg *nats.Msg) {
	var m positionCompleteMessage
	if err := json.Unmarshal(msg.Data, &m); err != nil {
		log.Printf("[Gateway] bad position complete marker: %v", err)
		return
	}
	c.push(execution.Event{
		Kind:     execution.EventSnapshotComplete,
		Complete: &execution.SnapshotComplete{Instrument: m.Symbol},
	})
}

func (c *Client) push(ev execution.Event) {
	atomic.AddInt64(&c.eventsPushed, 1)
	c.sink.Dispatch(ev)
}

func (c *Client) isConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}
