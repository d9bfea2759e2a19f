package market

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseTimeframe parses a timeframe string like "30s", "1m", "5m", "1h", "1d"
// into a duration. Day bars are 24h buckets truncated in the tick's location.
func ParseTimeframe(s string) (time.Duration, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if len(s) < 2 {
		return 0, fmt.Errorf("invalid timeframe: %q", s)
	}

	unit := s[len(s)-1]
	n, err := strconv.Atoi(s[:len(s)-1])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid timeframe: %q", s)
	}

	switch unit {
	case 's':
		return time.Duration(n) * time.Second, nil
	case 'm':
		return time.Duration(n) * time.Minute, nil
	case 'h':
		return time.Duration(n) * time.Hour, nil
	case 'd':
		return time.Duration(n) * 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("invalid timeframe unit: %q", s)
	}
}

// Aggregator builds bars from a tick stream for a single instrument and
// timeframe. It is not safe for concurrent use; the caller serializes ticks.
type Aggregator struct {
	instrument string
	timeframe  time.Duration

	current     *Bar
	startVolume int64   // bar开盘时的累计成交量
	startOI     float64 // bar开盘时的持仓量
}

// NewAggregator creates an aggregator for one instrument and timeframe.
func NewAggregator(instrument string, timeframe time.Duration) *Aggregator {
	return &Aggregator{
		instrument: instrument,
		timeframe:  timeframe,
	}
}

// Instrument returns the instrument this aggregator serves.
func (a *Aggregator) Instrument() string { return a.instrument }

// Timeframe returns the bar period.
func (a *Aggregator) Timeframe() time.Duration { return a.timeframe }

// OnTick folds one tick into the current bar. When the tick falls into a new
// time bucket the previous bar is finalized and returned; otherwise nil.
// A bar is only emitted on bucket transition, never mid-bucket.
func (a *Aggregator) OnTick(t *Tick) *Bar {
	bucket := t.Timestamp.Truncate(a.timeframe)

	var done *Bar
	if a.current != nil && !bucket.Equal(a.current.OpenTime) {
		done = a.current
		a.current = nil
	}

	if a.current == nil {
		a.current = &Bar{
			Instrument: a.instrument,
			Timeframe:  a.timeframe,
			OpenTime:   bucket,
			Open:       t.LastPrice,
			High:       t.LastPrice,
			Low:        t.LastPrice,
			Close:      t.LastPrice,
		}
		a.startVolume = t.Volume
		a.startOI = t.OpenInterest
		return done
	}

	if t.LastPrice > a.current.High {
		a.current.High = t.LastPrice
	}
	if t.LastPrice < a.current.Low {
		a.current.Low = t.LastPrice
	}
	a.current.Close = t.LastPrice

	// Cumulative session volume resets at session boundaries; clamp so a
	// reset never produces a negative bar volume.
	delta := t.Volume - a.startVolume
	if delta < 0 {
		delta = 0
		a.startVolume = t.Volume
	}
	a.current.Volume = delta
	a.current.OpenInterest = t.OpenInterest
	a.current.OpenInterestDelta = t.OpenInterest - a.startOI

	return done
}

// Flush finalizes and returns the in-progress bar, or nil if none.
// Used on shutdown so the partial bar is not lost.
func (a *Aggregator) Flush() *Bar {
	if a.current == nil {
		return nil
	}
	done := a.current
	a.current = nil
	return done
}
