package main

import (
	"comparison-controller/internal/env"
	"comparison-controller/internal/pipeline"
	"comparison-controller/internal/telemetry"
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-logr/logr"
	"github.com/joho/godotenv"
)

func main() {
	// .env is optional, real environment variables take precedence
	_ = godotenv.Load()

	var requestFlags pipeline.RequestFlags
	var directory string
	var storageBackend string
	var debug bool
	requestFlags.Register(flag.CommandLine)
	flag.StringVar(&directory, "directory", env.OrDefault("DIRECTORY", "/tmp"), "Storage directory when storage backend is file, stored inputs are read from it as well")
	flag.StringVar(&storageBackend, "storage-backend", env.OrDefault("STORAGE_BACKEND", "file"), "Storage backend (file or s3)")
	flag.BoolVar(&debug, "debug", env.OrDefault("DEBUG", false), "Enable debug logging")

	flag.Parse()

	request, err := requestFlags.Request(flag.Args())
	if err != nil {
		log.Fatalf("usage: compare [flags] <baseline> <reference>: %v", err)
	}

	logger, err := telemetry.NewLogger(debug)
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	config := pipeline.ConfigFromEnv()
	config.Storage.Backend = storageBackend
	config.Storage.File.Directory = directory

	p, err := pipeline.New(ctx, config, logr.FromSlogHandler(logger.Handler()))
	if err != nil {
		log.Fatalf("failed to create pipeline: %v", err)
	}
	defer func() {
		if err := p.Close(); err != nil {
			logger.Warn("failed to close pipeline", "error", err)
		}
	}()

	report, err := p.Run(ctx, request)
	if err != nil {
		logger.Error("failed to compare", "error", err)
		stop()
		os.Exit(1)
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(report); err != nil {
		log.Fatalf("failed to encode report: %v", err)
	}
}
