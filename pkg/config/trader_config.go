package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yourusername/quantlink-exec-engine/pkg/market"
)

// TraderConfig is the complete configuration for the trader
type TraderConfig struct {
	System      SystemConfig       `yaml:"system"`
	Gateway     GatewayConfig      `yaml:"gateway"`
	Execution   ExecutionConfig    `yaml:"execution"`
	Instruments []InstrumentConfig `yaml:"instruments"`
	BarStore    BarStoreConfig     `yaml:"bar_store"`
	Metrics     MetricsConfig      `yaml:"metrics"`
}

// SystemConfig contains system-level configuration
type SystemConfig struct {
	StrategyID string `yaml:"strategy_id"` // 策略ID，订单归属标识
	Mode       string `yaml:"mode"`        // live, simulation
	DataDir    string `yaml:"data_dir"`    // 持仓快照等数据目录
}

// GatewayConfig contains connection configuration
type GatewayConfig struct {
	NATSAddr          string `yaml:"nats_addr"`           // NATS服务器地址
	CounterBridgeAddr string `yaml:"counter_bridge_addr"` // 柜台桥接HTTP地址，可为空
}

// ExecutionConfig contains execution engine configuration
type ExecutionConfig struct {
	OrderTimeoutSeconds  float64  `yaml:"order_timeout_seconds"`  // 订单超时，0表示关闭
	RetryLimit           int      `yaml:"retry_limit"`            // 超时重发上限
	RetryOffsetTicks     int      `yaml:"retry_offset_ticks"`     // 重发价格偏移
	DefaultOffsetTicks   int      `yaml:"default_offset_ticks"`   // 默认委托价格偏移
	CooldownSeconds      float64  `yaml:"cooldown_seconds"`       // 提交冷却时间
	ReconcileIntervalSec int      `yaml:"reconcile_interval_sec"` // 定时对账间隔，0表示关闭
	Timeframes           []string `yaml:"timeframes"`             // K线周期，如 ["1m", "5m"]
}

// InstrumentConfig describes one traded instrument
type InstrumentConfig struct {
	Symbol             string  `yaml:"symbol"`
	Exchange           string  `yaml:"exchange"`
	TickSize           float64 `yaml:"tick_size"`
	ContractMultiplier int64   `yaml:"contract_multiplier"`
}

// BarStoreConfig contains bar persistence configuration
type BarStoreConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"` // SQLite文件路径
}

// MetricsConfig contains the Prometheus endpoint configuration
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// LoadTraderConfig loads configuration from a YAML file
func LoadTraderConfig(filepath string) (*TraderConfig, error) {
	data, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config TraderConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Validate validates the configuration and fills in defaults
func (c *TraderConfig) Validate() error {
	if c.System.StrategyID == "" {
		return fmt.Errorf("system.strategy_id is required")
	}
	if c.System.Mode == "" {
		c.System.Mode = "simulation"
	}
	if c.System.Mode != "live" && c.System.Mode != "simulation" {
		return fmt.Errorf("system.mode must be 'live' or 'simulation'")
	}
	if c.System.DataDir == "" {
		c.System.DataDir = "data"
	}

	if c.Gateway.NATSAddr == "" {
		return fmt.Errorf("gateway.nats_addr is required")
	}

	if len(c.Instruments) == 0 {
		return fmt.Errorf("instruments cannot be empty")
	}
	seen := make(map[string]bool)
	for i, inst := range c.Instruments {
		if inst.Symbol == "" {
			return fmt.Errorf("instruments[%d].symbol is required", i)
		}
		if seen[inst.Symbol] {
			return fmt.Errorf("duplicate instrument: %s", inst.Symbol)
		}
		seen[inst.Symbol] = true
		if inst.TickSize < 0 {
			return fmt.Errorf("instruments[%d].tick_size cannot be negative", i)
		}
	}

	// Execution defaults
	if c.Execution.OrderTimeoutSeconds == 0 {
		c.Execution.OrderTimeoutSeconds = 10
	}
	if c.Execution.RetryLimit == 0 {
		c.Execution.RetryLimit = 3
	}
	if c.Execution.RetryOffsetTicks == 0 {
		c.Execution.RetryOffsetTicks = 5
	}
	if c.Execution.DefaultOffsetTicks == 0 {
		c.Execution.DefaultOffsetTicks = 5
	}
	if c.Execution.CooldownSeconds == 0 {
		c.Execution.CooldownSeconds = 0.5
	}
	if len(c.Execution.Timeframes) == 0 {
		c.Execution.Timeframes = []string{"1m"}
	}
	for _, tf := range c.Execution.Timeframes {
		if _, err := market.ParseTimeframe(tf); err != nil {
			return fmt.Errorf("execution.timeframes: %w", err)
		}
	}

	if c.BarStore.Enabled && c.BarStore.Path == "" {
		c.BarStore.Path = "data/bars.db"
	}
	if c.Metrics.Enabled && c.Metrics.Port == 0 {
		c.Metrics.Port = 9100
	}

	return nil
}

// Symbols returns the configured instrument symbols.
func (c *TraderConfig) Symbols() []string {
	syms := make([]string, 0, len(c.Instruments))
	for _, inst := range c.Instruments {
		syms = append(syms, inst.Symbol)
	}
	return syms
}

// SpecOverrides converts instrument configs into spec table overrides.
func (c *TraderConfig) SpecOverrides() map[string]market.InstrumentSpec {
	out := make(map[string]market.InstrumentSpec, len(c.Instruments))
	for _, inst := range c.Instruments {
		out[inst.Symbol] = market.InstrumentSpec{
			TickSize:           inst.TickSize,
			ContractMultiplier: inst.ContractMultiplier,
			Exchange:           inst.Exchange,
		}
	}
	return out
}

// OrderTimeout returns the order timeout as a duration.
func (c *ExecutionConfig) OrderTimeout() time.Duration {
	return time.Duration(c.OrderTimeoutSeconds * float64(time.Second))
}

// Cooldown returns the submission cooldown as a duration.
func (c *ExecutionConfig) Cooldown() time.Duration {
	return time.Duration(c.CooldownSeconds * float64(time.Second))
}

// ReconcileInterval returns the periodic reconciliation interval.
func (c *ExecutionConfig) ReconcileInterval() time.Duration {
	return time.Duration(c.ReconcileIntervalSec) * time.Second
}

// ParsedTimeframes returns the configured bar periods.
func (c *ExecutionConfig) ParsedTimeframes() ([]time.Duration, error) {
	out := make([]time.Duration, 0, len(c.Timeframes))
	for _, tf := range c.Timeframes {
		d, err := market.ParseTimeframe(tf)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// SaveTraderConfig saves configuration to a YAML file
func SaveTraderConfig(filepath string, config *TraderConfig) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filepath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
