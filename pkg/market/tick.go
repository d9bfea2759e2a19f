// Package market provides market data types, bar aggregation and
// instrument specifications.
package market

import "time"

// Tick is a single market data update for one instrument.
type Tick struct {
	Instrument   string    // 合约代码
	LastPrice    float64   // 最新价
	BidPrice     float64   // 买一价
	AskPrice     float64   // 卖一价
	BidVolume    int64     // 买一量
	AskVolume    int64     // 卖一量
	Volume       int64     // 当日累计成交量
	OpenInterest float64   // 持仓量
	Timestamp    time.Time // 行情时间
}

// HasQuote returns true if both sides of the book are present.
func (t *Tick) HasQuote() bool {
	return t.BidPrice > 0 && t.AskPrice > 0
}

// Bar is one aggregated OHLCV bar.
type Bar struct {
	Instrument        string        // 合约代码
	Timeframe         time.Duration // 周期
	OpenTime          time.Time     // bar起始时间（对齐到周期边界）
	Open              float64
	High              float64
	Low               float64
	Close             float64
	Volume            int64   // bar内成交量增量
	OpenInterest      float64 // bar结束时持仓量
	OpenInterestDelta float64 // bar内持仓量变化
}
