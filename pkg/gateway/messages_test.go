package gateway

import (
	"encoding/json"
	"testing"

	"github.com/yourusername/quantlink-exec-engine/pkg/execution"
)

func TestOrderUpdateMapping(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		kind execution.EventKind
	}{
		{
			"queued ack",
			`{"client_order_id":"ORD_1","order_id":"V1","symbol":"rb2605","status":"queued"}`,
			execution.EventOrderAck,
		},
		{
			"fill ack",
			`{"client_order_id":"ORD_1","order_id":"V1","symbol":"rb2605","status":"filled","filled_qty":2}`,
			execution.EventOrderAck,
		},
		{
			"cancel confirm",
			`{"order_id":"V1","symbol":"rb2605","status":"cancelled"}`,
			execution.EventCancelConfirmed,
		},
		{
			"cancel reject",
			`{"order_id":"V1","symbol":"rb2605","status":"cancel_rejected","error_msg":"already filled"}`,
			execution.EventCancelRejected,
		},
		{
			"order reject",
			`{"client_order_id":"ORD_1","symbol":"rb2605","status":"rejected","error_code":50}`,
			execution.EventOrderRejected,
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			var m orderUpdateMessage
			if err := json.Unmarshal([]byte(c.raw), &m); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			ev := m.toEvent()
			if ev.Kind != c.kind {
				t.Errorf("kind = %v, want %v", ev.Kind, c.kind)
			}
		})
	}
}

func TestOrderRejectCarriesCode(t *testing.T) {
	raw := `{"client_order_id":"ORD_9","symbol":"rb2605","status":"rejected","error_code":50,"error_msg":"平今仓位不足"}`
	var m orderUpdateMessage
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		t.Fatal(err)
	}
	ev := m.toEvent()
	if ev.Reject == nil {
		t.Fatal("reject payload missing")
	}
	if ev.Reject.Code != 50 || ev.Reject.LocalID != "ORD_9" {
		t.Errorf("reject = %+v", ev.Reject)
	}
}

func TestTradeMapping(t *testing.T) {
	raw := `{"symbol":"rb2605","order_id":"V1","side":"sell","offset":"close_yesterday","price":3494,"quantity":4,"timestamp":1750000000000}`
	var m tradeMessage
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		t.Fatal(err)
	}
	ev := m.toEvent()
	if ev.Kind != execution.EventTrade || ev.Trade == nil {
		t.Fatalf("event = %+v", ev)
	}
	tr := ev.Trade
	if tr.Side != execution.SideSell || tr.Offset != execution.OffsetCloseYesterday {
		t.Errorf("side/offset = %v/%v", tr.Side, tr.Offset)
	}
	if tr.Quantity != 4 || tr.Price != 3494 {
		t.Errorf("qty/price = %d/%v", tr.Quantity, tr.Price)
	}
}

func TestPositionFragmentMapping(t *testing.T) {
	raw := `{"symbol":"ag2605","direction":"short","volume":5,"today_volume":2,"yesterday_volume":3,"avg_price":8123.5}`
	var m positionMessage
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		t.Fatal(err)
	}
	ev := m.toEvent()
	if ev.Kind != execution.EventSnapshotFragment || ev.Fragment == nil {
		t.Fatalf("event = %+v", ev)
	}
	f := ev.Fragment
	if f.Direction != execution.DirectionShort {
		t.Errorf("direction = %v", f.Direction)
	}
	if f.Total != 5 || f.Today != 2 || f.Yesterday != 3 {
		t.Errorf("lots = %d/%d/%d", f.Total, f.Today, f.Yesterday)
	}
}

func TestTickMapping(t *testing.T) {
	raw := `{"symbol":"rb2605","last_price":3500,"bid_price":3499,"ask_price":3501,"volume":1234,"open_interest":99000,"timestamp":1750000000500}`
	var m tickMessage
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		t.Fatal(err)
	}
	tick := m.toTick()
	if tick.Instrument != "rb2605" || tick.BidPrice != 3499 || tick.AskPrice != 3501 {
		t.Errorf("tick = %+v", tick)
	}
	if tick.Timestamp.UnixMilli() != 1750000000500 {
		t.Errorf("timestamp = %v", tick.Timestamp)
	}
}
