package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "trader.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

const validConfig = `
system:
  strategy_id: "92201"
  mode: live
gateway:
  nats_addr: nats://localhost:4222
  counter_bridge_addr: localhost:8080
execution:
  order_timeout_seconds: 5
  retry_limit: 2
  cooldown_seconds: 0.5
  timeframes: ["1m", "5m"]
instruments:
  - symbol: rb2605
    exchange: SHFE
    tick_size: 1.0
    contract_multiplier: 10
`

func TestLoadTraderConfig(t *testing.T) {
	cfg, err := LoadTraderConfig(writeConfig(t, validConfig))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.System.StrategyID != "92201" {
		t.Errorf("strategy id = %s", cfg.System.StrategyID)
	}
	if got := cfg.Execution.OrderTimeout(); got != 5*time.Second {
		t.Errorf("order timeout = %v", got)
	}
	if got := cfg.Execution.Cooldown(); got != 500*time.Millisecond {
		t.Errorf("cooldown = %v", got)
	}
	if cfg.Execution.RetryLimit != 2 {
		t.Errorf("retry limit = %d", cfg.Execution.RetryLimit)
	}

	// Unset fields take defaults.
	if cfg.Execution.RetryOffsetTicks != 5 {
		t.Errorf("retry offset default = %d", cfg.Execution.RetryOffsetTicks)
	}
	if cfg.Execution.DefaultOffsetTicks != 5 {
		t.Errorf("default offset default = %d", cfg.Execution.DefaultOffsetTicks)
	}
	if cfg.System.DataDir != "data" {
		t.Errorf("data dir default = %s", cfg.System.DataDir)
	}

	tfs, err := cfg.Execution.ParsedTimeframes()
	if err != nil {
		t.Fatal(err)
	}
	if len(tfs) != 2 || tfs[0] != time.Minute || tfs[1] != 5*time.Minute {
		t.Errorf("timeframes = %v", tfs)
	}

	if syms := cfg.Symbols(); len(syms) != 1 || syms[0] != "rb2605" {
		t.Errorf("symbols = %v", syms)
	}
	specs := cfg.SpecOverrides()
	if specs["rb2605"].TickSize != 1.0 || specs["rb2605"].Exchange != "SHFE" {
		t.Errorf("specs = %+v", specs["rb2605"])
	}
}

func TestValidateRejectsBadConfigs(t *testing.T) {
	cases := []struct {
		name   string
		mangle func(*TraderConfig)
	}{
		{"missing strategy id", func(c *TraderConfig) { c.System.StrategyID = "" }},
		{"bad mode", func(c *TraderConfig) { c.System.Mode = "paper" }},
		{"missing nats addr", func(c *TraderConfig) { c.Gateway.NATSAddr = "" }},
		{"no instruments", func(c *TraderConfig) { c.Instruments = nil }},
		{"duplicate instrument", func(c *TraderConfig) {
			c.Instruments = append(c.Instruments, c.Instruments[0])
		}},
		{"bad timeframe", func(c *TraderConfig) { c.Execution.Timeframes = []string{"7q"} }},
		{"negative tick size", func(c *TraderConfig) { c.Instruments[0].TickSize = -1 }},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			cfg, err := LoadTraderConfig(writeConfig(t, validConfig))
			if err != nil {
				t.Fatal(err)
			}
			c.mangle(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestLoadTraderConfigMissingFile(t *testing.T) {
	if _, err := LoadTraderConfig("/nonexistent/trader.yaml"); err == nil {
		t.Error("expected error for missing file")
	}
}
