package execution

import "testing"

func TestSplitClose(t *testing.T) {
	cases := []struct {
		name       string
		today, yd  int64
		qty        int64
		wantSlices []CloseSlice
		wantTotal  int64
	}{
		{
			name: "today covers all",
			today: 5, yd: 3, qty: 4,
			wantSlices: []CloseSlice{{OffsetCloseToday, 4}},
			wantTotal:  4,
		},
		{
			name: "exactly today",
			today: 5, yd: 3, qty: 5,
			wantSlices: []CloseSlice{{OffsetCloseToday, 5}},
			wantTotal:  5,
		},
		{
			name: "split across today and yesterday",
			today: 3, yd: 5, qty: 7,
			wantSlices: []CloseSlice{{OffsetCloseToday, 3}, {OffsetCloseYesterday, 4}},
			wantTotal:  7,
		},
		{
			name: "no today lots",
			today: 0, yd: 5, qty: 3,
			wantSlices: []CloseSlice{{OffsetCloseYesterday, 3}},
			wantTotal:  3,
		},
		{
			name: "clamped to available",
			today: 3, yd: 5, qty: 10,
			wantSlices: []CloseSlice{{OffsetCloseToday, 3}, {OffsetCloseYesterday, 5}},
			wantTotal:  8,
		},
		{
			name: "nothing to close",
			today: 0, yd: 0, qty: 5,
			wantSlices: nil,
			wantTotal:  0,
		},
		{
			name: "zero quantity",
			today: 3, yd: 2, qty: 0,
			wantSlices: nil,
			wantTotal:  0,
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			slices, total := splitClose(c.today, c.yd, c.qty)
			if total != c.wantTotal {
				t.Errorf("total = %d, want %d", total, c.wantTotal)
			}
			if len(slices) != len(c.wantSlices) {
				t.Fatalf("got %d slices, want %d: %+v", len(slices), len(c.wantSlices), slices)
			}
			for i, s := range slices {
				if s != c.wantSlices[i] {
					t.Errorf("slice[%d] = %+v, want %+v", i, s, c.wantSlices[i])
				}
			}
		})
	}
}
