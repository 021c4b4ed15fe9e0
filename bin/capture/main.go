package main

import (
	"comparison-controller/internal/capture"
	"comparison-controller/internal/env"
	"comparison-controller/internal/storage"
	"context"
	"crypto/sha256"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
)

type CaptureResult struct {
	ScreenshotURL string `json:"screenshotURL"`
}

func main() {
	_ = godotenv.Load()

	var directory string
	var maskSelectors string
	var delay time.Duration
	var viewportWidth int
	var viewportHeight int
	var userAgent string
	var chromeDevtoolsProtocolURL string
	var headers capture.HeaderFlag
	flag.StringVar(&directory, "directory", env.OrDefault("DIRECTORY", "/tmp"), "Output directory")
	flag.StringVar(&maskSelectors, "mask-selectors", env.OrDefault("MASK_SELECTORS", ""), "Comma-separated list of CSS selectors to mask during capture")
	flag.DurationVar(&delay, "delay", env.OrDefault("DELAY", 3*time.Second), "Delay before capturing")
	flag.IntVar(&viewportWidth, "viewport-width", env.OrDefault("VIEWPORT_WIDTH", 1920), "Viewport width in pixels")
	flag.IntVar(&viewportHeight, "viewport-height", env.OrDefault("VIEWPORT_HEIGHT", 1080), "Viewport height in pixels")
	flag.StringVar(&userAgent, "user-agent", env.OrDefault("USER_AGENT", ""), "User-Agent string to use for requests")
	flag.StringVar(&chromeDevtoolsProtocolURL, "chrome-devtools-protocol-url", env.OrDefault("CHROME_DEVTOOLS_PROTOCOL_URL", ""), "Connect to existing browser via Chrome DevTools Protocol URL (e.g., http://localhost:9222)")
	flag.Var(&headers, "H", "Add HTTP header (can be used multiple times, e.g., -H 'Accept: text/html' -H 'Authorization: Bearer token')")

	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		log.Fatalf("url not specified")
	}
	url := args[0]

	ctx := context.Background()

	s, err := storage.NewFileStorage(ctx, storage.FileConfig{
		Directory: directory,
	})
	if err != nil {
		log.Fatalf("Failed to create storage backend: %v", err)
	}

	config := capture.DefaultPlaywrightConfig()
	if delay > 0 {
		config.Delay = delay
	}
	if chromeDevtoolsProtocolURL != "" {
		config.ChromeDevtoolsProtocolURL = chromeDevtoolsProtocolURL
	}
	if display := os.Getenv("DISPLAY"); display != "" {
		config.Headless = false
	}
	if userAgent != "" {
		config.UserAgent = userAgent
	}

	capturer, err := capture.NewPlaywrightCapturer(ctx, config)
	if err != nil {
		log.Fatalf("Failed to create capturer: %v", err)
	}

	parsedHeaders, err := capture.ParseHeaders(headers)
	if err != nil {
		log.Fatalf("Invalid header: %v", err)
	}

	screenshot, err := capturer.Capture(ctx, capture.CaptureRequest{
		URL:           url,
		Width:         viewportWidth,
		Height:        viewportHeight,
		MaskSelectors: capture.SplitSelectors(maskSelectors),
		Headers:       parsedHeaders,
	})
	if err != nil {
		log.Fatalf("Failed to capture screenshot: %v", err)
	}

	timestamp := time.Now().Format("20060102150405")

	h := sha256.New()
	h.Write([]byte(url))
	urlHash := fmt.Sprintf("%x", h.Sum(nil))[:16]

	screenshotURL, err := s.Put(ctx, fmt.Sprintf("Comparison/capture/%s/%s.png", urlHash, timestamp), screenshot)
	if err != nil {
		log.Fatalf("Failed to upload: %v", err)
	}

	if err := json.NewEncoder(os.Stdout).Encode(CaptureResult{
		ScreenshotURL: screenshotURL,
	}); err != nil {
		log.Fatalf("Failed to encode result: %v", err)
	}
}
