package main

import (
	"bytes"
	"comparison-controller/internal/env"
	"comparison-controller/internal/pipeline"
	"comparison-controller/internal/retry"
	"comparison-controller/internal/sink"
	"comparison-controller/internal/telemetry"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-logr/logr"
	"github.com/playwright-community/playwright-go"
	"golang.org/x/xerrors"
)

func main() {
	var requestFlags pipeline.RequestFlags
	var chromeDevtoolsProtocolURL string
	var storageBackend string
	var callbackURL string
	var debug bool
	requestFlags.Register(flag.CommandLine)
	flag.StringVar(&chromeDevtoolsProtocolURL, "chrome-devtools-protocol-url", env.OrDefault("CHROME_DEVTOOLS_PROTOCOL_URL", ""), "Connect to existing browser via Chrome DevTools Protocol URL (e.g., http://localhost:9222)")
	flag.StringVar(&storageBackend, "storage-backend", env.OrDefault("STORAGE_BACKEND", "file"), "Storage backend (file or s3)")
	flag.StringVar(&callbackURL, "callback-url", env.OrDefault("CALLBACK_URL", ""), "Callback URL to send results to")
	flag.BoolVar(&debug, "debug", env.OrDefault("DEBUG", false), "Enable debug logging")

	flag.Parse()

	request, err := requestFlags.Request(flag.Args())
	if err != nil {
		log.Fatalf("invalid arguments: %v", err)
	}

	logger, err := telemetry.NewLogger(debug)
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}

	ctx := context.Background()

	config := pipeline.ConfigFromEnv()
	config.Storage.Backend = storageBackend
	if chromeDevtoolsProtocolURL != "" {
		config.Playwright.ChromeDevtoolsProtocolURL = chromeDevtoolsProtocolURL
	} else {
		if err := playwright.Install(&playwright.RunOptions{
			Browsers: []string{"chromium"},
		}); err != nil {
			log.Fatalf("failed to install playwright browsers: %v", err)
		}
	}

	p, err := pipeline.New(ctx, config, logr.FromSlogHandler(logger.Handler()))
	if err != nil {
		log.Fatalf("failed to create pipeline: %v", err)
	}
	defer func() {
		if err := p.Close(); err != nil {
			logger.Warn("failed to close pipeline", "error", err)
		}
	}()

	report, runErr := p.Run(ctx, request)
	if runErr != nil {
		report = sink.ErrorReport(runErr)
	}

	j, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		log.Fatalf("failed to marshal report: %v", err)
	}

	if callbackURL == "" {
		fmt.Println(string(j))
	} else {
		if err := callback(ctx, callbackURL, j); err != nil {
			log.Fatalf("failed to send callback: %v", err)
		}
	}

	if runErr != nil {
		log.Fatalf("failed to compare: %v", runErr)
	}
}

func callback(ctx context.Context, callbackURL string, data []byte) error {
	request, err := http.NewRequestWithContext(ctx, http.MethodPatch, callbackURL, bytes.NewReader(data))
	if err != nil {
		return xerrors.Errorf("failed to create request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")

	client := &http.Client{
		Timeout: 5 * time.Second, // retry.Transport does not have perTryTimeout
		Transport: &retry.Transport{
			Base:          http.DefaultTransport,
			RetryStrategy: retry.NewExponentialBackOff(10*time.Millisecond, 1*time.Second, 3, nil),
			RetryOn:       retry.NewDefaultRetryOn(),
		},
	}

	response, err := client.Do(request)
	if err != nil {
		return xerrors.Errorf("failed to send request: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode >= 300 {
		return xerrors.Errorf("callback responded with %s", response.Status)
	}

	return nil
}
