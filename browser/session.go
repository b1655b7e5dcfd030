// Package browser owns the automated browser session: a persistent,
// fingerprint-resistant chromedp context with stealth request headers,
// full-page screenshot capture, and the low-level action executor the
// submission loop drives.
package browser

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/submitflow/submitflow/config"
	"github.com/submitflow/submitflow/types"
)

// stealthHeaders are injected on every outgoing request. Sites fronted by
// bot-detection CDNs check client hints for consistency with the UA.
var stealthHeaders = network.Headers{
	"sec-ch-ua":          `"Chromium";v="122", "Not(A:Brand";v="24", "Google Chrome";v="122"`,
	"sec-ch-ua-mobile":   "?0",
	"sec-ch-ua-platform": `"Windows"`,
}

// ValidateUserDataDir rejects the platform default Chrome/Chromium profile
// directory. Chrome refuses remote debugging against its default profile,
// which makes the automation launch hang until timeout.
func ValidateUserDataDir(dir string) error {
	if dir == "" {
		return types.NewError(types.ErrBrowserLaunch, "browser user data dir is not configured")
	}
	// Windows-form paths must be caught on any host, so backslashes are
	// rewritten unconditionally rather than via filepath.ToSlash.
	norm := strings.ToLower(strings.ReplaceAll(strings.TrimRight(dir, "/\\"), "\\", "/"))
	for _, suffix := range []string{
		"/google/chrome/user data",
		"/chromium/user data",
		"/.config/google-chrome",
		"/.config/chromium",
	} {
		if strings.HasSuffix(norm, suffix) {
			return types.Errorf(types.ErrBrowserLaunch,
				"user data dir %q is the default browser profile; remote debugging is rejected there, use a dedicated directory", dir)
		}
	}
	return nil
}

// Session owns one browser context and page for the duration of a job run.
// It is not safe for concurrent use; a run drives its attempts sequentially
// against one Session.
type Session struct {
	cfg    config.BrowserConfig
	logger *zap.Logger

	allocCtx    context.Context
	allocCancel context.CancelFunc
	ctx         context.Context
	cancel      context.CancelFunc

	stopOnce sync.Once
	started  bool
}

// NewSession creates an unstarted Session.
func NewSession(cfg config.BrowserConfig, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{
		cfg:    cfg,
		logger: logger.With(zap.String("component", "browser")),
	}
}

// Start launches the persistent browser context bound to the configured
// profile directory and installs the stealth headers. Launch failure is fatal
// for the owning run.
func (s *Session) Start(ctx context.Context) error {
	if err := ValidateUserDataDir(s.cfg.UserDataDir); err != nil {
		return err
	}
	if err := os.MkdirAll(s.cfg.UserDataDir, 0o755); err != nil {
		return types.NewError(types.ErrBrowserLaunch, "create user data dir").WithCause(err)
	}
	if err := os.MkdirAll(s.cfg.ScreenshotDir, 0o755); err != nil {
		return types.NewError(types.ErrBrowserLaunch, "create screenshot dir").WithCause(err)
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.UserDataDir(s.cfg.UserDataDir),
		chromedp.Flag("headless", s.cfg.Headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("no-sandbox", true),
	)

	s.allocCtx, s.allocCancel = chromedp.NewExecAllocator(ctx, opts...)
	s.ctx, s.cancel = chromedp.NewContext(s.allocCtx,
		chromedp.WithLogf(func(format string, args ...any) {
			s.logger.Debug(fmt.Sprintf(format, args...))
		}),
	)

	if err := chromedp.Run(s.ctx,
		network.Enable(),
		network.SetExtraHTTPHeaders(stealthHeaders),
	); err != nil {
		s.teardown()
		return types.NewError(types.ErrBrowserLaunch, "launch browser context").WithCause(err)
	}

	s.started = true
	s.logger.Info("browser session started",
		zap.Bool("headless", s.cfg.Headless),
		zap.String("user_data_dir", s.cfg.UserDataDir))
	return nil
}

// Navigate loads a URL, waits best-effort for the network to go idle, then
// imposes the settle delay for late-rendering content. Idle-wait expiry is
// not an error.
func (s *Session) Navigate(ctx context.Context, url string) error {
	s.logger.Info("navigating", zap.String("url", url))

	navCtx, cancel := context.WithTimeout(s.ctx, s.cfg.NavigationTimeout)
	defer cancel()
	if err := chromedp.Run(navCtx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}

	s.Settle(ctx)
	return nil
}

// Settle waits best-effort for the page to quiesce after a navigation or a
// batch of actions. Timeouts degrade gracefully.
func (s *Session) Settle(ctx context.Context) {
	idleCtx, cancel := context.WithTimeout(s.ctx, s.cfg.NetworkIdleTimeout)
	defer cancel()
	if err := chromedp.Run(idleCtx,
		chromedp.Poll("document.readyState === 'complete'", nil,
			chromedp.WithPollingInterval(250*time.Millisecond)),
	); err != nil {
		s.logger.Warn("page settle wait expired, continuing", zap.Error(err))
	}
	select {
	case <-time.After(s.cfg.SettleDelay):
	case <-ctx.Done():
	}
}

// Screenshot is a captured page image plus where it was persisted.
type Screenshot struct {
	Data   []byte
	Base64 string
	Path   string
}

// Capture takes a full-page screenshot, persists it under a
// content-addressed path, and returns the bytes together with the path.
func (s *Session) Capture(ctx context.Context, label string) (*Screenshot, error) {
	var buf []byte
	capCtx, cancel := context.WithTimeout(s.ctx, s.cfg.NavigationTimeout)
	defer cancel()
	if err := chromedp.Run(capCtx, chromedp.FullScreenshot(&buf, 90)); err != nil {
		return nil, fmt.Errorf("capture screenshot: %w", err)
	}

	path := screenshotPath(s.cfg.ScreenshotDir, label, buf)
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return nil, fmt.Errorf("persist screenshot: %w", err)
	}

	s.logger.Debug("screenshot captured", zap.String("path", path), zap.Int("bytes", len(buf)))
	return &Screenshot{
		Data:   buf,
		Base64: base64.StdEncoding.EncodeToString(buf),
		Path:   path,
	}, nil
}

// screenshotPath derives a content-addressed file name so identical captures
// collapse onto one file.
func screenshotPath(dir, label string, data []byte) string {
	sum := sha256.Sum256(data)
	return filepath.Join(dir, fmt.Sprintf("%s_%s.png", label, hex.EncodeToString(sum[:])[:16]))
}

// Stop tears down the page, context, and driver process. It is safe to call
// multiple times and after a failed Start.
func (s *Session) Stop() {
	s.stopOnce.Do(func() {
		s.teardown()
		s.logger.Info("browser session stopped")
	})
}

func (s *Session) teardown() {
	if s.cancel != nil {
		s.cancel()
	}
	if s.allocCancel != nil {
		s.allocCancel()
	}
	s.started = false
}
