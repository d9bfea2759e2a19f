// Package execution implements the order execution engine: price
// resolution, open/close order routing with today/yesterday lot
// splitting, order timeout and retry handling, submission guards and
// position reconciliation against counter snapshots.
package execution

import (
	"context"
	"time"

	"github.com/yourusername/quantlink-exec-engine/pkg/market"
)

// Side 买卖方向
type Side int

const (
	SideBuy Side = iota
	SideSell
)

func (s Side) String() string {
	if s == SideBuy {
		return "buy"
	}
	return "sell"
}

// OffsetIntent 开平标志
type OffsetIntent int

const (
	OffsetOpen           OffsetIntent = iota // 开仓
	OffsetCloseToday                         // 平今
	OffsetCloseYesterday                     // 平昨
)

func (o OffsetIntent) String() string {
	switch o {
	case OffsetOpen:
		return "open"
	case OffsetCloseToday:
		return "close_today"
	case OffsetCloseYesterday:
		return "close_yesterday"
	default:
		return "unknown"
	}
}

// ActionKind identifies a strategy-facing entry point, used as the
// cooldown key together with the instrument.
type ActionKind int

const (
	ActionBuy ActionKind = iota
	ActionSell
	ActionSellShort
	ActionBuyToCover
)

func (a ActionKind) String() string {
	switch a {
	case ActionBuy:
		return "buy"
	case ActionSell:
		return "sell"
	case ActionSellShort:
		return "sellshort"
	case ActionBuyToCover:
		return "buycover"
	default:
		return "unknown"
	}
}

// PositionDirection 持仓方向（快照回报中使用）
type PositionDirection int

const (
	DirectionLong PositionDirection = iota
	DirectionShort
)

func (d PositionDirection) String() string {
	if d == DirectionLong {
		return "long"
	}
	return "short"
}

// OrderRequest is an outbound new-order instruction for the venue.
type OrderRequest struct {
	LocalID    string       // 本地订单ID
	Instrument string       // 合约代码
	Side       Side         // 买卖方向
	Offset     OffsetIntent // 开平标志
	Price      float64      // 限价（已对齐tick size）
	Quantity   int64        // 委托数量
}

// CancelRequest is an outbound cancel instruction.
type CancelRequest struct {
	Instrument   string
	LocalID      string
	VenueOrderID string
}

// OrderGateway is the outbound path to the order router. Implementations
// must not call back into the engine synchronously from these methods.
type OrderGateway interface {
	// SendOrder submits a new order. Delivery is fire-and-forget; fills,
	// rejections and cancels come back through Dispatch events.
	SendOrder(ctx context.Context, req *OrderRequest) error
	// CancelOrder requests cancellation of a working order.
	CancelOrder(ctx context.Context, req *CancelRequest) error
	// RequestSnapshot asks the counter for a position snapshot of one
	// instrument. Fragments and the completion marker arrive as events.
	RequestSnapshot(ctx context.Context, instrument string) error
}

// BarSink receives completed bars from the engine's aggregators.
type BarSink interface {
	Append(bar *market.Bar)
}

// EventKind discriminates inbound engine events.
type EventKind int

const (
	EventTick EventKind = iota
	EventOrderAck
	EventTrade
	EventCancelConfirmed
	EventCancelRejected
	EventOrderRejected
	EventSnapshotFragment
	EventSnapshotComplete
)

func (k EventKind) String() string {
	switch k {
	case EventTick:
		return "tick"
	case EventOrderAck:
		return "order_ack"
	case EventTrade:
		return "trade"
	case EventCancelConfirmed:
		return "cancel_confirmed"
	case EventCancelRejected:
		return "cancel_rejected"
	case EventOrderRejected:
		return "order_rejected"
	case EventSnapshotFragment:
		return "snapshot_fragment"
	case EventSnapshotComplete:
		return "snapshot_complete"
	default:
		return "unknown"
	}
}

// AckStatus 订单回报状态
type AckStatus int

const (
	AckQueued AckStatus = iota
	AckPartiallyFilled
	AckFilled
	AckCancelled
)

// OrderAck is a venue order status update.
type OrderAck struct {
	LocalID      string
	VenueOrderID string
	Instrument   string
	Status       AckStatus
	FilledQty    int64
}

// TradeEvent is a single fill report.
type TradeEvent struct {
	Instrument   string
	VenueOrderID string
	Side         Side
	Offset       OffsetIntent
	Price        float64
	Quantity     int64
	Timestamp    time.Time
}

// CancelEvent confirms or rejects a cancel request.
type CancelEvent struct {
	Instrument   string
	VenueOrderID string
	Reason       string
}

// RejectEvent is a venue-level order rejection.
type RejectEvent struct {
	Instrument string
	LocalID    string
	Code       int
	Message    string
}

// SnapshotFragment is one directional position record from the counter.
// A reconciliation pass may deliver zero or more fragments per instrument
// before the completion marker.
type SnapshotFragment struct {
	Instrument string
	Direction  PositionDirection
	Total      int64
	Today      int64
	Yesterday  int64
	AvgPrice   float64
}

// SnapshotComplete marks the end of one instrument's snapshot stream.
type SnapshotComplete struct {
	Instrument string
}

// Event is the single inbound message the engine consumes. Exactly one
// payload pointer matching Kind is set.
type Event struct {
	Kind     EventKind
	Tick     *market.Tick
	Ack      *OrderAck
	Trade    *TradeEvent
	Cancel   *CancelEvent
	Reject   *RejectEvent
	Fragment *SnapshotFragment
	Complete *SnapshotComplete
}
