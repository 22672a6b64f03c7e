package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"SQLChat/internal/backend"
	"SQLChat/internal/chat"
	"SQLChat/internal/config"
	"SQLChat/internal/render"
	"SQLChat/internal/session"
	"SQLChat/internal/storage"
	"SQLChat/internal/telemetry"
)

func main() {
	var (
		endpoint = flag.String("endpoint", "http://localhost:5000/api/query", "NL-to-SQL query endpoint")
		dataPath = flag.String("data", "sqlchat.db", "Path to the local state database")
		logDir   = flag.String("log-dir", "logs", "Directory for logs, traces and metrics")
		debug    = flag.Bool("debug", false, "Enable debug logging")
	)
	flag.Parse()

	logger, err := telemetry.InitLogger(*logDir, *debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	tracer, meter, cleanup, err := telemetry.InitTelemetry(ctx, *logDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize telemetry: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()

	kv, err := storage.Open(*dataPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open state database: %v\n", err)
		os.Exit(1)
	}
	defer kv.Close()

	sessions := session.NewStore(kv, logger)
	configs := config.NewStore(kv, logger)
	client := backend.NewClient(*endpoint, logger, tracer, meter)

	app := chat.New(sessions, configs, client, render.New(), logger)
	if err := app.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
