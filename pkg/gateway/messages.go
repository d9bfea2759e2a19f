package gateway

import (
	"time"

	"github.com/yourusername/quantlink-exec-engine/pkg/execution"
	"github.com/yourusername/quantlink-exec-engine/pkg/market"
)

// NATS subjects. Market data fans out per instrument; order and position
// streams are shared.
const (
	subjectTickPrefix       = "md."               // md.<symbol>
	subjectOrderUpdate      = "order.update"      // 订单状态回报
	subjectTrade            = "order.trade"       // 成交回报
	subjectOrderRequest     = "order.request"     // 报单
	subjectCancelRequest    = "order.cancel"      // 撤单
	subjectPositionSnapshot = "position.snapshot" // 持仓快照分片
	subjectPositionComplete = "position.complete" // 快照结束标记
	subjectPositionRequest  = "position.request"  // 快照查询（无bridge时）
)

// Order status strings on the wire.
const (
	statusQueued         = "queued"
	statusPartial        = "partial"
	statusFilled         = "filled"
	statusCancelled      = "cancelled"
	statusRejected       = "rejected"
	statusCancelRejected = "cancel_rejected"
)

type tickMessage struct {
	Symbol       string  `json:"symbol"`
	LastPrice    float64 `json:"last_price"`
	BidPrice     float64 `json:"bid_price"`
	AskPrice     float64 `json:"ask_price"`
	BidVolume    int64   `json:"bid_volume"`
	AskVolume    int64   `json:"ask_volume"`
	Volume       int64   `json:"volume"`
	OpenInterest float64 `json:"open_interest"`
	Timestamp    int64   `json:"timestamp"` // unix millis
}

func (m *tickMessage) toTick() *market.Tick {
	return &market.Tick{
		Instrument:   m.Symbol,
		LastPrice:    m.LastPrice,
		BidPrice:     m.BidPrice,
		AskPrice:     m.AskPrice,
		BidVolume:    m.BidVolume,
		AskVolume:    m.AskVolume,
		Volume:       m.Volume,
		OpenInterest: m.OpenInterest,
		Timestamp:    time.UnixMilli(m.Timestamp),
	}
}

type orderUpdateMessage struct {
	ClientOrderID string `json:"client_order_id"`
	OrderID       string `json:"order_id"`
	Symbol        string `json:"symbol"`
	Status        string `json:"status"`
	FilledQty     int64  `json:"filled_qty"`
	ErrorCode     int    `json:"error_code"`
	ErrorMsg      string `json:"error_msg"`
}

// toEvent maps an order status update onto the engine's event space.
func (m *orderUpdateMessage) toEvent() execution.Event {
	switch m.Status {
	case statusCancelled:
		return execution.Event{
			Kind: execution.EventCancelConfirmed,
			Cancel: &execution.CancelEvent{
				Instrument:   m.Symbol,
				VenueOrderID: m.OrderID,
				Reason:       m.ErrorMsg,
			},
		}
	case statusCancelRejected:
		return execution.Event{
			Kind: execution.EventCancelRejected,
			Cancel: &execution.CancelEvent{
				Instrument:   m.Symbol,
				VenueOrderID: m.OrderID,
				Reason:       m.ErrorMsg,
			},
		}
	case statusRejected:
		return execution.Event{
			Kind: execution.EventOrderRejected,
			Reject: &execution.RejectEvent{
				Instrument: m.Symbol,
				LocalID:    m.ClientOrderID,
				Code:       m.ErrorCode,
				Message:    m.ErrorMsg,
			},
		}
	default:
		status := execution.AckQueued
		switch m.Status {
		case statusPartial:
			status = execution.AckPartiallyFilled
		case statusFilled:
			status = execution.AckFilled
		}
		return execution.Event{
			Kind: execution.EventOrderAck,
			Ack: &execution.OrderAck{
				LocalID:      m.ClientOrderID,
				VenueOrderID: m.OrderID,
				Instrument:   m.Symbol,
				Status:       status,
				FilledQty:    m.FilledQty,
			},
		}
	}
}

type tradeMessage struct {
	Symbol    string  `json:"symbol"`
	OrderID   string  `json:"order_id"`
	Side      string  `json:"side"`   // "buy" / "sell"
	Offset    string  `json:"offset"` // "open" / "close_today" / "close_yesterday"
	Price     float64 `json:"price"`
	Quantity  int64   `json:"quantity"`
	Timestamp int64   `json:"timestamp"` // unix millis
}

func (m *tradeMessage) toEvent() execution.Event {
	side := execution.SideSell
	if m.Side == "buy" {
		side = execution.SideBuy
	}

	offset := execution.OffsetOpen
	switch m.Offset {
	case "close_today":
		offset = execution.OffsetCloseToday
	case "close_yesterday":
		offset = execution.OffsetCloseYesterday
	}

	return execution.Event{
		Kind: execution.EventTrade,
		Trade: &execution.TradeEvent{
			Instrument:   m.Symbol,
			VenueOrderID: m.OrderID,
			Side:         side,
			Offset:       offset,
			Price:        m.Price,
			Quantity:     m.Quantity,
			Timestamp:    time.UnixMilli(m.Timestamp),
		},
	}
}

type positionMessage struct {
	Symbol          string  `json:"symbol"`
	Direction       string  `json:"direction"` // "long" or "short"
	Volume          int64   `json:"volume"`
	TodayVolume     int64   `json:"today_volume"`
	YesterdayVolume int64   `json:"yesterday_volume"`
	AvgPrice        float64 `json:"avg_price"`
}

func (m *positionMessage) toEvent() execution.Event {
	dir := execution.DirectionLong
	if m.Direction == "short" {
		dir = execution.DirectionShort
	}
	return execution.Event{
		Kind: execution.EventSnapshotFragment,
		Fragment: &execution.SnapshotFragment{
			Instrument: m.Symbol,
			Direction:  dir,
			Total:      m.Volume,
			Today:      m.TodayVolume,
			Yesterday:  m.YesterdayVolume,
			AvgPrice:   m.AvgPrice,
		},
	}
}

type positionCompleteMessage struct {
	Symbol string `json:"symbol"`
}

type positionRequestMessage struct {
	StrategyID string `json:"strategy_id"`
	Symbol     string `json:"symbol"`
}

type orderRequestMessage struct {
	ClientOrderID string  `json:"client_order_id"`
	StrategyID    string  `json:"strategy_id"`
	Symbol        string  `json:"symbol"`
	Side          string  `json:"side"`
	Offset        string  `json:"offset"`
	Price         float64 `json:"price"`
	Quantity      int64   `json:"quantity"`
}

type cancelRequestMessage struct {
	ClientOrderID string `json:"client_order_id"`
	OrderID       string `json:"order_id"`
	StrategyID    string `json:"strategy_id"`
	Symbol        string `json:"symbol"`
}
