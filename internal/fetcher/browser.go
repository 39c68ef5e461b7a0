package fetcher

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"articlescout/internal/types"
)

// Browser is a lazily-launched, process-wide headless Chromium handle
// shared by the rendered-DOM extractor and the browser enrichment path.
// It amortizes startup cost across invocations. It is not safe for
// concurrent orchestrator runs; callers serialize access through a single
// worker loop.
type Browser struct {
	mu      sync.Mutex
	browser *rod.Browser
	failed  bool
	stealth bool
	logger  *slog.Logger
}

// NewBrowser creates the handle without launching anything yet.
func NewBrowser(useStealth bool, logger *slog.Logger) *Browser {
	return &Browser{
		stealth: useStealth,
		logger:  logger.With("component", "browser"),
	}
}

// Page returns a fresh blank page, launching the browser on first use.
// Returns types.ErrBrowserUnavailable (wrapped) when the Chromium runtime
// cannot be launched; once launch fails it is not retried for the
// remainder of the process.
func (b *Browser) Page() (*rod.Page, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.failed {
		return nil, types.ErrBrowserUnavailable
	}

	if b.browser == nil {
		if err := b.launch(); err != nil {
			b.failed = true
			b.logger.Warn("browser launch failed, disabling browser strategies", "error", err)
			return nil, fmt.Errorf("%w: %v", types.ErrBrowserUnavailable, err)
		}
	}

	if b.stealth {
		page, err := stealth.Page(b.browser)
		if err != nil {
			return nil, fmt.Errorf("stealth page: %w", err)
		}
		return page, nil
	}

	page, err := b.browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}
	return page, nil
}

func (b *Browser) launch() error {
	controlURL, err := launcher.New().
		Headless(true).
		Set("disable-gpu").
		Set("disable-dev-shm-usage").
		Set("no-sandbox").
		Set("disable-setuid-sandbox").
		Set("disable-blink-features", "AutomationControlled").
		Launch()
	if err != nil {
		return fmt.Errorf("launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return fmt.Errorf("connect browser: %w", err)
	}

	b.browser = browser
	b.logger.Info("browser launched", "stealth", b.stealth)
	return nil
}

// Close shuts the browser down if it was ever launched.
func (b *Browser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.browser == nil {
		return nil
	}
	err := b.browser.Close()
	b.browser = nil
	return err
}
