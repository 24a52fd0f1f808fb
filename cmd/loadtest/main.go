package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"

	"github.com/steadyp/steady-client/internal/client"
	"github.com/steadyp/steady-client/internal/config"
	"github.com/steadyp/steady-client/internal/loadtest"
	"github.com/steadyp/steady-client/internal/monitoring"
)

func main() {
	var (
		configFile  = flag.String("config", "config.yaml", "Path to configuration file")
		path        = flag.String("path", "/", "Request path to hit")
		category    = flag.String("category", "default", "Retry policy category")
		workers     = flag.Int("workers", 10, "Number of concurrent workers")
		duration    = flag.Duration("duration", 30*time.Second, "Test duration")
		metricsAddr = flag.String("metrics-addr", "", "Address to serve /metrics and /health during the run (empty disables)")
		outputFile  = flag.String("output", "", "Output file for results (JSON format)")
		debug       = flag.Bool("debug", false, "Enable debug logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.RFC3339,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configFile)
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	c, err := client.New(cfg, client.WithLogger(logger))
	if err != nil {
		logger.Error("failed to build client", "error", err)
		os.Exit(1)
	}

	if *metricsAddr != "" {
		mux := http.NewServeMux()
		monitoring.NewHandler(c.Breaker()).RegisterRoutes(mux)
		go func() {
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server failed", "error", err)
			}
		}()
		logger.Info("serving metrics", "addr", *metricsAddr)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("starting load run",
		"workers", *workers,
		"duration", *duration,
		"path", *path,
		"category", *category,
		"backend", cfg.Backend.BaseURL,
	)

	runner := loadtest.NewRunner(c, loadtest.Config{
		ConcurrentWorkers: *workers,
		Duration:          *duration,
		Path:              *path,
		Category:          *category,
	})
	result := runner.Run(ctx)

	displayResults(result)

	if *outputFile != "" {
		saveResults(result, *outputFile)
	}
}

func displayResults(result loadtest.Result) {
	fmt.Println("\n=== Load Run Results ===")
	fmt.Printf("Total Requests: %d\n", result.TotalRequests)
	if result.TotalRequests > 0 {
		fmt.Printf("Successful Requests: %d (%.2f%%)\n", result.SuccessfulRequests,
			float64(result.SuccessfulRequests)/float64(result.TotalRequests)*100)
		fmt.Printf("Failed Requests: %d (%.2f%%)\n", result.FailedRequests,
			float64(result.FailedRequests)/float64(result.TotalRequests)*100)
	}
	fmt.Printf("Rejected by Breaker: %d\n", result.RejectedRequests)
	fmt.Printf("Run Duration: %v\n", result.Duration)
	fmt.Printf("Average Latency: %v\n", result.AverageLatency)
	fmt.Printf("Min Latency: %v\n", result.MinLatency)
	fmt.Printf("Max Latency: %v\n", result.MaxLatency)
	fmt.Printf("Requests per Second: %.2f\n", result.RequestsPerSecond)
	fmt.Printf("Final Breaker State: %s\n", result.FinalBreakerState)

	if len(result.ErrorBreakdown) > 0 {
		fmt.Println("\nError Breakdown:")
		for kind, count := range result.ErrorBreakdown {
			fmt.Printf("  %s: %d\n", kind, count)
		}
	}
}

func saveResults(result loadtest.Result, filename string) {
	jsonData, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		slog.Error("failed to marshal results", "error", err)
		return
	}

	if err := os.WriteFile(filename, jsonData, 0644); err != nil {
		slog.Error("failed to save results", "file", filename, "error", err)
		return
	}

	fmt.Printf("\nResults saved to: %s\n", filename)
}
