package market

import (
	"math"
	"testing"
)

func TestRoundToTickSize(t *testing.T) {
	cases := []struct {
		price, tick, want float64
	}{
		{3501.4, 1.0, 3501.0},
		{3501.5, 1.0, 3502.0},
		{812.373, 0.02, 812.38},
		{100.0, 0, 100.0},
		{73455.0, 10.0, 73460.0},
	}

	for _, c := range cases {
		got := RoundToTickSize(c.price, c.tick)
		if math.Abs(got-c.want) > 1e-9 {
			t.Errorf("RoundToTickSize(%v, %v) = %v, want %v", c.price, c.tick, got, c.want)
		}
	}
}

func TestSpecTableLookup(t *testing.T) {
	table := NewSpecTable(map[string]InstrumentSpec{
		"rb2605": {TickSize: 2.0, ContractMultiplier: 10, Exchange: "SHFE"},
		"IF2606": {TickSize: 0.2, ContractMultiplier: 300, Exchange: "CFFEX"},
	})

	// Configured override wins over the built-in default.
	if ts := table.TickSize("rb2605"); ts != 2.0 {
		t.Errorf("rb2605 tick size = %v, want 2.0", ts)
	}
	// Falls back to the defaults table.
	if ts := table.TickSize("cu2604"); ts != 10.0 {
		t.Errorf("cu2604 tick size = %v, want 10.0", ts)
	}
	// Unknown symbols get the conservative default.
	if ts := table.TickSize("zz9999"); ts != 0.01 {
		t.Errorf("unknown tick size = %v, want 0.01", ts)
	}
	if m := table.ContractMultiplier("IF2606"); m != 300 {
		t.Errorf("IF2606 multiplier = %v, want 300", m)
	}
	if m := table.ContractMultiplier("zz9999"); m != 1 {
		t.Errorf("unknown multiplier = %v, want 1", m)
	}
}
