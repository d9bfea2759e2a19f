package execution

import "time"

// PendingOrder is one working order tracked by the engine from submission
// until fill, cancel or rejection.
type PendingOrder struct {
	LocalID      string       // 本地订单ID
	VenueOrderID string       // 柜台订单ID，回报确认后填充
	Instrument   string       // 合约代码
	Side         Side         // 买卖方向
	Offset       OffsetIntent // 开平标志
	LimitPrice   float64      // 委托价
	RequestedQty int64        // 委托数量
	FilledQty    int64        // 已成交数量
	InsertTime   time.Time    // 本地提交时间，超时判定基准

	// Retry bookkeeping. RetryCount is fixed at creation: a resubmitted
	// order carries its parent's count plus one, so the retry chain is
	// bounded per originating order.
	RetryCount    int
	ParentLocalID string

	markedResend bool // 已标记超时重发，等待撤单确认
	cancelSent   bool // 撤单请求已发出
	retriedAsYd  bool // 平今仓位不足后已改平昨重发过
}

// RemainingQty returns the unfilled quantity.
func (po *PendingOrder) RemainingQty() int64 {
	rest := po.RequestedQty - po.FilledQty
	if rest < 0 {
		return 0
	}
	return rest
}

// IsFilled returns true if the order is fully filled.
func (po *PendingOrder) IsFilled() bool {
	return po.FilledQty >= po.RequestedQty
}

// orderBook indexes the working orders of one instrument by local and
// venue ID. Not safe for concurrent use; the engine guards it with the
// instrument lock.
type orderBook struct {
	byLocal map[string]*PendingOrder
	byVenue map[string]*PendingOrder
}

func newOrderBook() *orderBook {
	return &orderBook{
		byLocal: make(map[string]*PendingOrder),
		byVenue: make(map[string]*PendingOrder),
	}
}

func (b *orderBook) add(po *PendingOrder) {
	if po == nil || po.LocalID == "" {
		return
	}
	b.byLocal[po.LocalID] = po
	if po.VenueOrderID != "" {
		b.byVenue[po.VenueOrderID] = po
	}
}

// bindVenueID records the venue's order ID once the first ack arrives.
func (b *orderBook) bindVenueID(localID, venueID string) *PendingOrder {
	po, ok := b.byLocal[localID]
	if !ok || venueID == "" {
		return po
	}
	if po.VenueOrderID != "" && po.VenueOrderID != venueID {
		delete(b.byVenue, po.VenueOrderID)
	}
	po.VenueOrderID = venueID
	b.byVenue[venueID] = po
	return po
}

func (b *orderBook) getByLocal(localID string) *PendingOrder {
	return b.byLocal[localID]
}

func (b *orderBook) getByVenue(venueID string) *PendingOrder {
	return b.byVenue[venueID]
}

func (b *orderBook) remove(po *PendingOrder) {
	if po == nil {
		return
	}
	delete(b.byLocal, po.LocalID)
	if po.VenueOrderID != "" {
		delete(b.byVenue, po.VenueOrderID)
	}
}

// all returns the working orders in unspecified order.
func (b *orderBook) all() []*PendingOrder {
	orders := make([]*PendingOrder, 0, len(b.byLocal))
	for _, po := range b.byLocal {
		orders = append(orders, po)
	}
	return orders
}

func (b *orderBook) size() int {
	return len(b.byLocal)
}
