package market

import "math"

// InstrumentSpec 品种规格
type InstrumentSpec struct {
	TickSize           float64 // 最小变动价位
	ContractMultiplier int64   // 合约乘数
	Exchange           string  // 交易所
}

// DefaultInstrumentSpecs 默认品种规格，配置文件未覆盖时使用
var DefaultInstrumentSpecs = map[string]InstrumentSpec{
	// 白银
	"ag2603": {TickSize: 1.0, ContractMultiplier: 15, Exchange: "SHFE"},
	"ag2605": {TickSize: 1.0, ContractMultiplier: 15, Exchange: "SHFE"},

	// 黄金
	"au2604": {TickSize: 0.02, ContractMultiplier: 1000, Exchange: "SHFE"},
	"au2606": {TickSize: 0.02, ContractMultiplier: 1000, Exchange: "SHFE"},

	// 螺纹钢
	"rb2605": {TickSize: 1.0, ContractMultiplier: 10, Exchange: "SHFE"},
	"rb2610": {TickSize: 1.0, ContractMultiplier: 10, Exchange: "SHFE"},

	// 铜
	"cu2604": {TickSize: 10.0, ContractMultiplier: 5, Exchange: "SHFE"},
	"cu2606": {TickSize: 10.0, ContractMultiplier: 5, Exchange: "SHFE"},
}

// RoundToTickSize 将价格四舍五入到tick size的倍数
func RoundToTickSize(price float64, tickSize float64) float64 {
	if tickSize == 0 {
		return price
	}
	return math.Round(price/tickSize) * tickSize
}

// FloorToTickSize 将价格向下取整到tick size的倍数
func FloorToTickSize(price float64, tickSize float64) float64 {
	if tickSize == 0 {
		return price
	}
	return math.Floor(price/tickSize) * tickSize
}

// CeilToTickSize 将价格向上取整到tick size的倍数
func CeilToTickSize(price float64, tickSize float64) float64 {
	if tickSize == 0 {
		return price
	}
	return math.Ceil(price/tickSize) * tickSize
}

// SpecTable holds per-instrument specifications, seeded from configuration
// with DefaultInstrumentSpecs as fallback.
type SpecTable struct {
	specs map[string]InstrumentSpec
}

// NewSpecTable builds a spec table from configured overrides.
func NewSpecTable(overrides map[string]InstrumentSpec) *SpecTable {
	t := &SpecTable{specs: make(map[string]InstrumentSpec, len(overrides))}
	for sym, spec := range overrides {
		t.specs[sym] = spec
	}
	return t
}

// Lookup returns the spec for a symbol, falling back to defaults.
func (t *SpecTable) Lookup(symbol string) (InstrumentSpec, bool) {
	if spec, ok := t.specs[symbol]; ok {
		return spec, true
	}
	spec, ok := DefaultInstrumentSpecs[symbol]
	return spec, ok
}

// TickSize returns the tick size for a symbol, 0.01 if unknown.
func (t *SpecTable) TickSize(symbol string) float64 {
	if spec, ok := t.Lookup(symbol); ok && spec.TickSize > 0 {
		return spec.TickSize
	}
	return 0.01
}

// ContractMultiplier returns the contract multiplier for a symbol, 1 if unknown.
func (t *SpecTable) ContractMultiplier(symbol string) int64 {
	if spec, ok := t.Lookup(symbol); ok && spec.ContractMultiplier > 0 {
		return spec.ContractMultiplier
	}
	return 1
}
