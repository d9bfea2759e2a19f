package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yourusername/quantlink-exec-engine/pkg/barstore"
	"github.com/yourusername/quantlink-exec-engine/pkg/config"
	"github.com/yourusername/quantlink-exec-engine/pkg/execution"
	"github.com/yourusername/quantlink-exec-engine/pkg/gateway"
	"github.com/yourusername/quantlink-exec-engine/pkg/market"
)

const (
	appName    = "QuantlinkExecEngine"
	appVersion = "1.0.0"
)

var (
	configFile = flag.String("config", "./config/trader.yaml", "Configuration file path")
	strategyID = flag.String("strategy-id", "", "Strategy ID (overrides config)")
	mode       = flag.String("mode", "", "Run mode: live, simulation (overrides config)")
	logFile    = flag.String("log-file", "", "Log file path")
	version    = flag.Bool("version", false, "Print version and exit")
	help       = flag.Bool("help", false, "Print help and exit")
)

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("%s version %s\n", appName, appVersion)
		os.Exit(0)
	}
	if *help {
		printHelp()
		os.Exit(0)
	}

	printBanner()

	log.Printf("[Main] Loading configuration from: %s", *configFile)
	cfg, err := config.LoadTraderConfig(*configFile)
	if err != nil {
		log.Fatalf("[Main] Failed to load config: %v", err)
	}

	if *strategyID != "" {
		cfg.System.StrategyID = *strategyID
		log.Printf("[Main] Strategy ID overridden: %s", *strategyID)
	}
	if *mode != "" {
		cfg.System.Mode = *mode
		log.Printf("[Main] Mode overridden: %s", *mode)
	}
	if *logFile != "" {
		setupFileLogging(*logFile)
	}

	printConfigSummary(cfg)

	timeframes, err := cfg.Execution.ParsedTimeframes()
	if err != nil {
		log.Fatalf("[Main] Bad timeframes: %v", err)
	}

	// Bar persistence (optional)
	var store *barstore.Store
	if cfg.BarStore.Enabled {
		if err := os.MkdirAll(filepath.Dir(cfg.BarStore.Path), 0755); err != nil {
			log.Fatalf("[Main] Failed to create bar store directory: %v", err)
		}
		store, err = barstore.Open(cfg.BarStore.Path)
		if err != nil {
			log.Fatalf("[Main] Failed to open bar store: %v", err)
		}
	}

	// Engine
	specs := market.NewSpecTable(cfg.SpecOverrides())
	engine := execution.NewEngine(&execution.Config{
		Instruments:        cfg.Symbols(),
		OrderTimeout:       cfg.Execution.OrderTimeout(),
		RetryLimit:         cfg.Execution.RetryLimit,
		RetryOffsetTicks:   cfg.Execution.RetryOffsetTicks,
		DefaultOffsetTicks: cfg.Execution.DefaultOffsetTicks,
		Cooldown:           cfg.Execution.Cooldown(),
		ReconcileInterval:  cfg.Execution.ReconcileInterval(),
		Timeframes:         timeframes,
	}, specs, nil)
	if store != nil {
		engine.BindBarSink(store)
	}

	// Seed last known positions; the first reconciliation pass replaces
	// them with counter truth.
	if saved, err := execution.LoadPositionFile(cfg.System.DataDir); err != nil {
		log.Printf("[Main] Warning: could not load saved positions: %v", err)
	} else if saved != nil {
		log.Printf("[Main] Loaded positions saved at %s", saved.SavedAt.Format(time.RFC3339))
		engine.SeedPositions(saved.Positions)
	}

	// Gateway
	gw, err := gateway.NewClient(gateway.Config{
		NATSAddr:          cfg.Gateway.NATSAddr,
		CounterBridgeAddr: cfg.Gateway.CounterBridgeAddr,
		StrategyID:        cfg.System.StrategyID,
		Instruments:       cfg.Symbols(),
	}, engine)
	if err != nil {
		log.Fatalf("[Main] Failed to create gateway: %v", err)
	}
	engine.BindGateway(gw)

	if err := gw.Start(); err != nil {
		log.Fatalf("[Main] Failed to start gateway: %v", err)
	}
	if err := engine.Start(); err != nil {
		log.Fatalf("[Main] Failed to start engine: %v", err)
	}

	// Startup reconciliation so local state converges before trading.
	if err := engine.BeginReconciliation(context.Background(), cfg.Symbols()); err != nil {
		log.Printf("[Main] Warning: startup reconciliation failed: %v", err)
	}

	if cfg.Metrics.Enabled {
		go serveMetrics(cfg.Metrics.Port)
	}

	go printStatusPeriodically(engine, cfg.Symbols(), 30*time.Second)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGUSR1, syscall.SIGUSR2)

	log.Println("[Main] ════════════════════════════════════════════════════════════")
	log.Println("[Main] Engine is running. Press Ctrl+C to stop...")
	log.Println("[Main]   SIGUSR1: trigger position reconciliation")
	log.Println("[Main]   SIGUSR2: cancel all working orders and flatten")
	log.Println("[Main] ════════════════════════════════════════════════════════════")

	for {
		sig := <-sigChan
		switch sig {
		case syscall.SIGUSR1:
			log.Println("[Main] SIGUSR1: requesting position reconciliation")
			if err := engine.BeginReconciliation(context.Background(), cfg.Symbols()); err != nil {
				log.Printf("[Main] Reconciliation failed: %v", err)
			}
			continue
		case syscall.SIGUSR2:
			log.Println("[Main] SIGUSR2: cancelling all orders and flattening positions")
			for _, sym := range cfg.Symbols() {
				if err := engine.CancelAll(sym); err != nil {
					log.Printf("[Main] Cancel-all for %s failed: %v", sym, err)
				}
				if _, err := engine.CloseAll(sym); err != nil {
					log.Printf("[Main] Close-all for %s failed: %v", sym, err)
				}
			}
			continue
		}

		log.Printf("[Main] Received signal: %v", sig)
		break
	}

	log.Println("[Main] Shutting down...")
	engine.Stop()

	if err := execution.SavePositionFile(cfg.System.DataDir, engine.Positions()); err != nil {
		log.Printf("[Main] Warning: failed to save positions: %v", err)
	} else {
		log.Printf("[Main] Positions saved to %s", cfg.System.DataDir)
	}

	if err := gw.Close(); err != nil {
		log.Printf("[Main] Error closing gateway: %v", err)
	}
	if store != nil {
		if err := store.Close(); err != nil {
			log.Printf("[Main] Error closing bar store: %v", err)
		}
	}

	log.Println("[Main] ✓ Stopped successfully")
	log.Println("[Main] Goodbye!")
}

func printBanner() {
	fmt.Println("╔═══════════════════════════════════════════════════════════╗")
	fmt.Printf("║  %s v%-41s║\n", appName, appVersion)
	fmt.Println("║  Futures Order Execution Engine                           ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════╝")
	fmt.Println()
}

func printHelp() {
	fmt.Printf("Usage: %s [OPTIONS]\n\n", appName)
	fmt.Println("Order execution and position reconciliation engine for futures trading.")
	fmt.Println("\nOptions:")
	flag.PrintDefaults()
	fmt.Println("\nExamples:")
	fmt.Printf("  # Run with default config\n")
	fmt.Printf("  %s --config ./config/trader.yaml\n\n", appName)
	fmt.Printf("  # Run live with a specific strategy ID\n")
	fmt.Printf("  %s --config ./config/trader.yaml --strategy-id 92201 --mode live\n\n", appName)
}

func printConfigSummary(cfg *config.TraderConfig) {
	log.Println("[Main] ────────────────────────────────────────────────────────────")
	log.Println("[Main] Configuration Summary")
	log.Println("[Main] ────────────────────────────────────────────────────────────")
	log.Printf("[Main] Strategy ID:       %s", cfg.System.StrategyID)
	log.Printf("[Main] Run Mode:          %s", cfg.System.Mode)
	log.Printf("[Main] Instruments:       %v", cfg.Symbols())
	log.Printf("[Main] NATS:              %s", cfg.Gateway.NATSAddr)
	log.Printf("[Main] Counter Bridge:    %s", cfg.Gateway.CounterBridgeAddr)
	log.Printf("[Main] Order Timeout:     %v", cfg.Execution.OrderTimeout())
	log.Printf("[Main] Retry Limit:       %d (offset %d ticks)",
		cfg.Execution.RetryLimit, cfg.Execution.RetryOffsetTicks)
	log.Printf("[Main] Timeframes:        %v", cfg.Execution.Timeframes)
	if cfg.BarStore.Enabled {
		log.Printf("[Main] Bar Store:         %s", cfg.BarStore.Path)
	}
	if cfg.Metrics.Enabled {
		log.Printf("[Main] Metrics Port:      %d", cfg.Metrics.Port)
	}
	log.Println("[Main] ────────────────────────────────────────────────────────────")
}

func setupFileLogging(logFilePath string) {
	logDir := filepath.Dir(logFilePath)
	if err := os.MkdirAll(logDir, 0755); err != nil {
		log.Printf("[Main] Warning: Failed to create log directory: %v", err)
		return
	}

	f, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		log.Printf("[Main] Warning: Failed to open log file: %v", err)
		return
	}

	log.SetOutput(f)
	log.Printf("[Main] ✓ Logging to file: %s", logFilePath)
}

func serveMetrics(port int) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	addr := fmt.Sprintf(":%d", port)
	log.Printf("[Main] Metrics endpoint on %s/metrics", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Printf("[Main] Metrics server stopped: %v", err)
	}
}

func printStatusPeriodically(engine *execution.Engine, symbols []string, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for range ticker.C {
		log.Println("[Main] ════════════════════════════════════════════════════════════")
		log.Printf("[Main] Periodic Status Update - %s", time.Now().Format("15:04:05"))
		for _, sym := range symbols {
			pos := engine.GetPosition(sym)
			log.Printf("[Main] %s: net=%d long=%d(T%d/Y%d) short=%d(T%d/Y%d) pending=%d",
				sym, pos.Net,
				pos.LongTotal, pos.LongToday, pos.LongYd,
				pos.ShortTotal, pos.ShortToday, pos.ShortYd,
				engine.PendingCount(sym))
		}
		log.Println("[Main] ════════════════════════════════════════════════════════════")
	}
}
