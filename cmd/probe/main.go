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
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"

	"github.com/steadyp/steady-client/internal/apierrors"
	"github.com/steadyp/steady-client/internal/client"
	"github.com/steadyp/steady-client/internal/config"
)

func main() {
	var (
		configFile = flag.String("config", "config.yaml", "Path to configuration file")
		method     = flag.String("method", http.MethodGet, "HTTP method (GET or POST)")
		path       = flag.String("path", "/", "Request path")
		body       = flag.String("body", "", "JSON request body for POST")
		category   = flag.String("category", "default", "Retry policy category")
		timeout    = flag.Duration("timeout", 0, "Per-call timeout override")
		retries    = flag.Int("retries", -1, "Retry budget override (-1 keeps the category default)")
		debug      = flag.Bool("debug", false, "Enable debug logging")
	)
	flag.Parse()

	// Optional .env for API tokens referenced from the config.
	_ = godotenv.Load()

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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := &client.RequestOptions{
		Category: *category,
		Timeout:  *timeout,
	}
	if *retries >= 0 {
		opts.MaxRetries = retries
	}

	var result []byte
	switch strings.ToUpper(*method) {
	case http.MethodGet:
		result, err = c.Get(ctx, *path, opts)
	case http.MethodPost:
		var payload any
		if *body != "" {
			payload = json.RawMessage(*body)
		}
		result, err = c.Post(ctx, *path, payload, opts)
	default:
		logger.Error("unsupported method", "method", *method)
		os.Exit(1)
	}

	if err != nil {
		if se, ok := apierrors.AsServiceError(err); ok {
			logger.Error("request failed", "kind", se.Kind.String(), "status", se.Status, "error", se)
		} else {
			logger.Error("request failed", "error", err)
		}
		os.Exit(1)
	}

	fmt.Println(string(result))
}
