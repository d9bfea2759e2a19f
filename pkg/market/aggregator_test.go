package market

import (
	"testing"
	"time"
)

func tickAt(ts string, price float64, cumVol int64, oi float64) *Tick {
	t, err := time.Parse("2006-01-02 15:04:05", ts)
	if err != nil {
		panic(err)
	}
	return &Tick{
		Instrument:   "rb2605",
		LastPrice:    price,
		Volume:       cumVol,
		OpenInterest: oi,
		Timestamp:    t,
	}
}

func TestParseTimeframe(t *testing.T) {
	cases := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"30s", 30 * time.Second, false},
		{"1m", time.Minute, false},
		{"5m", 5 * time.Minute, false},
		{"1h", time.Hour, false},
		{"1d", 24 * time.Hour, false},
		{"", 0, true},
		{"m", 0, true},
		{"0m", 0, true},
		{"5x", 0, true},
	}

	for _, c := range cases {
		got, err := ParseTimeframe(c.in)
		if c.wantErr {
			if err == nil {
				t.Errorf("ParseTimeframe(%q): expected error, got %v", c.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseTimeframe(%q): unexpected error: %v", c.in, err)
			continue
		}
		if got != c.want {
			t.Errorf("ParseTimeframe(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestAggregatorBucketTransition(t *testing.T) {
	agg := NewAggregator("rb2605", time.Minute)

	if bar := agg.OnTick(tickAt("2026-03-05 10:00:00", 100, 1000, 5000)); bar != nil {
		t.Fatalf("first tick should not complete a bar, got %+v", bar)
	}
	if bar := agg.OnTick(tickAt("2026-03-05 10:00:30", 101, 1040, 5010)); bar != nil {
		t.Fatalf("mid-bucket tick should not complete a bar, got %+v", bar)
	}

	bar := agg.OnTick(tickAt("2026-03-05 10:01:05", 99, 1100, 5005))
	if bar == nil {
		t.Fatal("bucket transition should complete the 10:00 bar")
	}
	if bar.Open != 100 || bar.High != 101 || bar.Low != 100 || bar.Close != 101 {
		t.Errorf("OHLC = %v/%v/%v/%v, want 100/101/100/101",
			bar.Open, bar.High, bar.Low, bar.Close)
	}
	if bar.Volume != 40 {
		t.Errorf("bar volume = %d, want 40", bar.Volume)
	}
	if bar.OpenInterestDelta != 10 {
		t.Errorf("OI delta = %v, want 10", bar.OpenInterestDelta)
	}
	if want, _ := time.Parse("2006-01-02 15:04:05", "2026-03-05 10:00:00"); !bar.OpenTime.Equal(want) {
		t.Errorf("open time = %v, want %v", bar.OpenTime, want)
	}

	// The 10:01 bar opened at the transition tick's price.
	next := agg.Flush()
	if next == nil {
		t.Fatal("expected an in-progress bar after transition")
	}
	if next.Open != 99 || next.Close != 99 {
		t.Errorf("next bar open/close = %v/%v, want 99/99", next.Open, next.Close)
	}
	if next.Volume != 0 {
		t.Errorf("next bar volume = %d, want 0", next.Volume)
	}
}

func TestAggregatorVolumeResetClamped(t *testing.T) {
	agg := NewAggregator("rb2605", time.Minute)

	agg.OnTick(tickAt("2026-03-05 10:00:00", 100, 9000, 0))
	// Session rollover: cumulative volume restarts below the bar baseline.
	agg.OnTick(tickAt("2026-03-05 10:00:10", 100, 50, 0))

	bar := agg.Flush()
	if bar == nil {
		t.Fatal("expected an in-progress bar")
	}
	if bar.Volume != 0 {
		t.Errorf("bar volume after reset = %d, want 0", bar.Volume)
	}

	// Baseline moved to the reset tick, so later ticks accumulate normally.
	agg.OnTick(tickAt("2026-03-05 10:00:20", 100, 60, 0))
	agg.OnTick(tickAt("2026-03-05 10:00:40", 100, 80, 0))
	bar = agg.Flush()
	if bar == nil {
		t.Fatal("expected an in-progress bar")
	}
	if bar.Volume != 30 {
		t.Errorf("bar volume = %d, want 30", bar.Volume)
	}
}

func TestAggregatorFlushPartial(t *testing.T) {
	agg := NewAggregator("rb2605", 5*time.Minute)

	if bar := agg.Flush(); bar != nil {
		t.Fatalf("flush with no ticks should return nil, got %+v", bar)
	}

	agg.OnTick(tickAt("2026-03-05 10:02:00", 100, 10, 0))
	agg.OnTick(tickAt("2026-03-05 10:03:00", 98, 30, 0))

	bar := agg.Flush()
	if bar == nil {
		t.Fatal("expected the partial bar")
	}
	if bar.Open != 100 || bar.Low != 98 || bar.Close != 98 {
		t.Errorf("partial OHLC = %v/%v/%v/%v", bar.Open, bar.High, bar.Low, bar.Close)
	}
	if bar.Volume != 20 {
		t.Errorf("partial volume = %d, want 20", bar.Volume)
	}
	if agg.Flush() != nil {
		t.Error("second flush should return nil")
	}
}
