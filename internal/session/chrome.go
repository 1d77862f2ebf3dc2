package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// blockedURLPatterns keeps heavy and tracking-hostile sub-resources from
// loading. Carrier pages only need their markup and scripts to render a
// status, so images, fonts, media and analytics beacons are dead weight.
var blockedURLPatterns = []string{
	"*.png", "*.jpg", "*.jpeg", "*.gif", "*.svg", "*.webp", "*.ico",
	"*.woff", "*.woff2", "*.ttf", "*.otf",
	"*.mp4", "*.webm", "*.mp3",
	"*google-analytics.com*",
	"*googletagmanager.com*",
	"*doubleclick.net*",
	"*facebook.net*",
	"*hotjar.com*",
}

// ChromeOptions configures the chromedp launcher.
type ChromeOptions struct {
	// Mode is "per-task" (fresh browser process per session) or "shared"
	// (one long-lived browser process, fresh tab per session).
	Mode      string
	Headless  bool
	UserAgent string
	// Timeout caps each navigation or extraction step.
	Timeout time.Duration
}

// DefaultChromeOptions returns sensible defaults for scraping carrier sites.
func DefaultChromeOptions() ChromeOptions {
	return ChromeOptions{
		Mode:      "per-task",
		Headless:  true,
		UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		Timeout:   45 * time.Second,
	}
}

// ChromeLauncher launches chromedp-backed sessions.
type ChromeLauncher struct {
	options ChromeOptions

	// Shared-mode state, initialized lazily on first launch.
	sharedMu     sync.Mutex
	sharedCtx    context.Context
	sharedCancel context.CancelFunc
	allocCancel  context.CancelFunc
}

// NewChromeLauncher creates a launcher with the given options.
func NewChromeLauncher(options ChromeOptions) *ChromeLauncher {
	if options.Timeout <= 0 {
		options.Timeout = DefaultChromeOptions().Timeout
	}
	return &ChromeLauncher{options: options}
}

// ValidateChromeAvailable checks if Chrome/Chromium is available and working.
func ValidateChromeAvailable() error {
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(),
		chromedp.Headless,
		chromedp.NoSandbox,
		chromedp.DisableGPU,
	)
	defer allocCancel()

	ctx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	testCtx, testCancel := context.WithTimeout(ctx, 10*time.Second)
	defer testCancel()

	if err := chromedp.Run(testCtx, chromedp.Navigate("about:blank")); err != nil {
		return fmt.Errorf("Chrome/Chromium not available or not working: %w", err)
	}
	return nil
}

// Launch creates a new isolated session according to the configured mode.
func (l *ChromeLauncher) Launch(ctx context.Context) (Session, error) {
	if l.options.Mode == "shared" {
		return l.launchTab()
	}
	return l.launchProcess()
}

// launchProcess starts a fresh browser process for one session.
func (l *ChromeLauncher) launchProcess() (Session, error) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), l.allocatorOptions()...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)

	if err := l.prepare(tabCtx); err != nil {
		tabCancel()
		allocCancel()
		return nil, err
	}

	return &chromeSession{
		ctx:     tabCtx,
		timeout: l.options.Timeout,
		cancels: []context.CancelFunc{tabCancel, allocCancel},
	}, nil
}

// launchTab opens a fresh tab in the shared browser process, starting the
// process on first use.
func (l *ChromeLauncher) launchTab() (Session, error) {
	l.sharedMu.Lock()
	if l.sharedCtx == nil {
		allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), l.allocatorOptions()...)
		browserCtx, browserCancel := chromedp.NewContext(allocCtx)
		if err := chromedp.Run(browserCtx, chromedp.Navigate("about:blank")); err != nil {
			browserCancel()
			allocCancel()
			l.sharedMu.Unlock()
			return nil, fmt.Errorf("failed to start shared browser: %w", err)
		}
		l.sharedCtx = browserCtx
		l.sharedCancel = browserCancel
		l.allocCancel = allocCancel
	}
	parent := l.sharedCtx
	l.sharedMu.Unlock()

	tabCtx, tabCancel := chromedp.NewContext(parent)
	if err := l.prepare(tabCtx); err != nil {
		tabCancel()
		return nil, err
	}

	return &chromeSession{
		ctx:     tabCtx,
		timeout: l.options.Timeout,
		cancels: []context.CancelFunc{tabCancel},
	}, nil
}

// prepare verifies the browser started and installs the sub-resource blocks.
func (l *ChromeLauncher) prepare(ctx context.Context) error {
	startCtx, cancel := context.WithTimeout(ctx, l.options.Timeout)
	defer cancel()

	err := chromedp.Run(startCtx,
		network.Enable(),
		network.SetBlockedURLs(blockedURLPatterns),
		chromedp.Navigate("about:blank"),
	)
	if err != nil {
		return fmt.Errorf("failed to initialize browser: %w", err)
	}
	return nil
}

// Close shuts down the shared browser process if one was started.
func (l *ChromeLauncher) Close() {
	l.sharedMu.Lock()
	defer l.sharedMu.Unlock()
	if l.sharedCancel != nil {
		l.sharedCancel()
		l.sharedCancel = nil
	}
	if l.allocCancel != nil {
		l.allocCancel()
		l.allocCancel = nil
	}
	l.sharedCtx = nil
}

// allocatorOptions builds Chrome allocator options.
func (l *ChromeLauncher) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := []chromedp.ExecAllocatorOption{
		chromedp.UserAgent(l.options.UserAgent),
		chromedp.WindowSize(1366, 768),
		chromedp.NoSandbox, // Often needed in containerized environments
		chromedp.DisableGPU,
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.Flag("blink-settings", "imagesEnabled=false"),
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("disable-background-timer-throttling", true),
		chromedp.Flag("disable-backgrounding-occluded-windows", true),
		chromedp.Flag("disable-renderer-backgrounding", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("mute-audio", true),
	}
	if l.options.Headless {
		opts = append(opts, chromedp.Headless)
	}
	return opts
}

// chromeSession implements Session over a chromedp tab context.
type chromeSession struct {
	ctx     context.Context
	timeout time.Duration
	cancels []context.CancelFunc
}

func (s *chromeSession) Navigate(ctx context.Context, url string) error {
	runCtx, cancel := s.stepContext(ctx)
	defer cancel()

	err := chromedp.Run(runCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	return nil
}

func (s *chromeSession) WaitForText(ctx context.Context, timeout time.Duration, keywords ...string) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		text, err := s.BodyText(ctx)
		if err == nil && containsAny(text, keywords) {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(500 * time.Millisecond):
		}
	}
	return false
}

func (s *chromeSession) BodyText(ctx context.Context) (string, error) {
	runCtx, cancel := s.stepContext(ctx)
	defer cancel()

	var text string
	err := chromedp.Run(runCtx,
		chromedp.Evaluate(`document.body ? document.body.innerText : ''`, &text),
	)
	if err != nil {
		return "", fmt.Errorf("failed to read page text: %w", err)
	}
	return text, nil
}

func (s *chromeSession) Title(ctx context.Context) (string, error) {
	runCtx, cancel := s.stepContext(ctx)
	defer cancel()

	var title string
	if err := chromedp.Run(runCtx, chromedp.Title(&title)); err != nil {
		return "", fmt.Errorf("failed to read page title: %w", err)
	}
	return title, nil
}

func (s *chromeSession) Close() {
	for _, cancel := range s.cancels {
		cancel()
	}
}

// stepContext bounds one browser operation by the shorter of the caller's
// deadline and the session timeout, anchored to the tab context.
func (s *chromeSession) stepContext(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := s.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	return context.WithTimeout(s.ctx, timeout)
}
