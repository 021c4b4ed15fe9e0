package pipeline

import (
	"comparison-controller/internal/canvas"
	"comparison-controller/internal/capture"
	"comparison-controller/internal/compare"
	"comparison-controller/internal/env"
	"comparison-controller/internal/figma"
	"comparison-controller/internal/sink"
	"comparison-controller/internal/source"
	"comparison-controller/internal/storage"
	"context"
	"errors"
	"os"
	"time"

	"github.com/go-logr/logr"
	"golang.org/x/xerrors"
)

type Config struct {
	Storage storage.Config

	// Playwright enables page references. Nil leaves them unresolvable.
	Playwright *capture.PlaywrightConfig

	FigmaToken     string
	FigmaBaseURL   string
	// Redis.Addr enables the design export cache when set.
	Redis          figma.RedisConfig
	ExportCacheTTL time.Duration

	DefaultSize canvas.Size
}

// ConfigFromEnv reads the settings shared by every entry point.
func ConfigFromEnv() Config {
	playwright := capture.DefaultPlaywrightConfig()
	playwright.ChromeDevtoolsProtocolURL = env.OrDefault("CHROME_DEVTOOLS_PROTOCOL_URL", "")
	playwright.UserAgent = env.OrDefault("USER_AGENT", "")
	playwright.Delay = env.OrDefault("DELAY", playwright.Delay)
	playwright.IdleTimeout = env.OrDefault("IDLE_TIMEOUT", playwright.IdleTimeout)
	if os.Getenv("DISPLAY") != "" {
		playwright.Headless = false
	}

	return Config{
		Storage: storage.Config{
			Backend: env.OrDefault("STORAGE_BACKEND", "file"),
			File: storage.FileConfig{
				Directory: env.OrDefault("DIRECTORY", "/tmp"),
			},
			S3: storage.S3Config{
				Bucket:      env.OrDefault("S3_BUCKET", ""),
				EndpointURL: env.OrDefault("S3_ENDPOINT_URL", ""),
			},
		},
		Playwright:   &playwright,
		FigmaToken:   env.OrDefault("FIGMA_TOKEN", ""),
		FigmaBaseURL: env.OrDefault("FIGMA_API_URL", figma.DefaultBaseURL),
		Redis: figma.RedisConfig{
			Addr:     env.OrDefault("REDIS_ADDR", ""),
			Password: env.OrDefault("REDIS_PASSWORD", ""),
			DB:       env.OrDefault("REDIS_DB", 0),
		},
		ExportCacheTTL: env.OrDefault("EXPORT_CACHE_TTL", 24*time.Hour),
		DefaultSize: canvas.Size{
			Width:  env.OrDefault("VIEWPORT_WIDTH", canvas.DefaultSize.Width),
			Height: env.OrDefault("VIEWPORT_HEIGHT", canvas.DefaultSize.Height),
		},
	}
}

// New wires storage, capture, design export and the comparator from c. The
// returned pipeline must be closed.
func New(ctx context.Context, c Config, log logr.Logger) (*Pipeline, error) {
	s, err := storage.New(ctx, c.Storage)
	if err != nil {
		return nil, xerrors.Errorf("failed to create storage backend: %w", err)
	}

	p := &Pipeline{
		Resolver: source.Resolver{
			Storage: s,
		},
		Comparator: compare.NewComparator(log, c.DefaultSize),
		Sink:       sink.New(s, log),
		Log:        log.WithName("pipeline"),
		Storage:    s,
	}

	if c.Playwright != nil {
		capturer, err := capture.NewPlaywrightCapturer(logr.NewContext(ctx, log), *c.Playwright)
		if err != nil {
			return nil, xerrors.Errorf("failed to create capturer: %w", err)
		}
		p.Resolver.Capturer = capturer
	}

	// Without a token design links are captured as pages.
	if c.FigmaToken == "" {
		return p, nil
	}

	figmaConfig := figma.Config{
		Token:    c.FigmaToken,
		BaseURL:  c.FigmaBaseURL,
		CacheTTL: c.ExportCacheTTL,
		Log:      log.WithName("figma"),
	}
	if c.Redis.Addr != "" {
		cache, err := figma.NewRedisCache(ctx, c.Redis)
		if err != nil {
			return nil, err
		}
		figmaConfig.Cache = cache
		p.closers = append(p.closers, cache.Close)
	}

	exporter, err := figma.NewClient(figmaConfig)
	if err != nil {
		_ = p.Close()
		return nil, xerrors.Errorf("failed to create design export client: %w", err)
	}
	p.Resolver.Exporter = exporter

	return p, nil
}

func (p *Pipeline) Close() error {
	var errs []error
	for _, closer := range p.closers {
		errs = append(errs, closer())
	}
	return errors.Join(errs...)
}
