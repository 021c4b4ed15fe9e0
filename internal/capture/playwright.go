package capture

import (
	"comparison-controller/internal/errs"
	"context"
	"errors"
	"time"

	"github.com/go-logr/logr"
	"github.com/playwright-community/playwright-go"
	"golang.org/x/xerrors"
)

type PlaywrightConfig struct {
	// Timeout bounds navigation.
	Timeout time.Duration
	// IdleTimeout bounds the wait for the network to go idle. Pages that
	// keep connections open are captured once it elapses.
	IdleTimeout time.Duration
	// Delay is an extra settle time after the network went idle.
	Delay time.Duration

	Headless                  bool
	ChromeDevtoolsProtocolURL string
	UserAgent                 string
}

func DefaultPlaywrightConfig() PlaywrightConfig {
	return PlaywrightConfig{
		Timeout:     30 * time.Second,
		IdleTimeout: 10 * time.Second,
		Delay:       2 * time.Second,
		Headless:    true,
	}
}

type playwrightCapturer struct {
	config PlaywrightConfig
	log    logr.Logger
}

func NewPlaywrightCapturer(ctx context.Context, p PlaywrightConfig) (Capturer, error) {
	if p.Timeout <= 0 {
		return nil, xerrors.Errorf("timeout must be positive, got %s", p.Timeout)
	}

	return &playwrightCapturer{
		config: p,
		log:    logr.FromContextOrDiscard(ctx).WithName("capture"),
	}, nil
}

func (c *playwrightCapturer) Capture(ctx context.Context, request CaptureRequest) ([]byte, error) {
	if err := request.Validate(); err != nil {
		return nil, errs.New(errs.ErrInvalidReference, request.URL, err)
	}

	screenshot, err := c.capture(ctx, request)
	if err != nil {
		if ctx.Err() != nil {
			return nil, errs.New(errs.ErrCaptureFailed, request.URL, errors.Join(ctx.Err(), err))
		}
		return nil, errs.New(errs.ErrCaptureFailed, request.URL, err)
	}
	return screenshot, nil
}

func (c *playwrightCapturer) capture(ctx context.Context, request CaptureRequest) ([]byte, error) {
	p, err := playwright.Run()
	if err != nil {
		return nil, xerrors.Errorf("failed to start playwright: %w", err)
	}
	defer p.Stop()

	var browser playwright.Browser

	if c.config.ChromeDevtoolsProtocolURL == "" {
		browser, err = p.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
			Headless: playwright.Bool(c.config.Headless),
		})
		if err != nil {
			return nil, xerrors.Errorf("failed to launch browser: %w", err)
		}
		defer browser.Close()
	} else {
		browser, err = p.Chromium.ConnectOverCDP(c.config.ChromeDevtoolsProtocolURL)
		if err != nil {
			return nil, xerrors.Errorf("failed to connect to browser via CDP at %s: %w", c.config.ChromeDevtoolsProtocolURL, err)
		}
	}

	// A scale factor of 1 keeps the screenshot at exactly the viewport size.
	contextOptions := playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{
			Width:  request.Width,
			Height: request.Height,
		},
		DeviceScaleFactor: playwright.Float(1),
	}
	if c.config.UserAgent != "" {
		contextOptions.UserAgent = playwright.String(c.config.UserAgent)
	}
	if len(request.Headers) > 0 {
		contextOptions.ExtraHttpHeaders = request.Headers
	}

	browserContext, err := browser.NewContext(contextOptions)
	if err != nil {
		return nil, xerrors.Errorf("failed to create browser context: %w", err)
	}
	defer browserContext.Close()

	page, err := browserContext.NewPage()
	if err != nil {
		return nil, xerrors.Errorf("failed to create new page: %w", err)
	}
	defer page.Close()

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			page.Close()
		case <-done:
		}
	}()
	defer close(done)

	if _, err := page.Goto(request.URL, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateLoad,
		Timeout:   playwright.Float(float64(c.config.Timeout.Milliseconds())),
	}); err != nil {
		return nil, xerrors.Errorf("failed to navigate to %s: %w", request.URL, err)
	}

	if c.config.IdleTimeout > 0 {
		if err := page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
			State:   playwright.LoadStateNetworkidle,
			Timeout: playwright.Float(float64(c.config.IdleTimeout.Milliseconds())),
		}); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.log.Info("network did not go idle, capturing anyway", "url", request.URL, "idleTimeout", c.config.IdleTimeout.String())
		}
	}

	if c.config.Delay > 0 {
		timer := time.NewTimer(c.config.Delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		}
	}

	if len(request.MaskSelectors) > 0 {
		script, err := maskScript()
		if err != nil {
			return nil, err
		}
		if _, err := page.Evaluate(script, request.MaskSelectors); err != nil {
			return nil, xerrors.Errorf("failed to mask selectors: %w", err)
		}
	}

	screenshot, err := page.Screenshot(playwright.PageScreenshotOptions{
		FullPage: playwright.Bool(false),
		Type:     playwright.ScreenshotTypePng,
	})
	if err != nil {
		return nil, xerrors.Errorf("failed to take screenshot: %w", err)
	}

	return screenshot, nil
}
