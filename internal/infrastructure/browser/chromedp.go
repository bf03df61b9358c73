package browser

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/devilmonastery/kitesession/internal/autologin"
)

// urlPollInterval is how often the current location is re-read while waiting
// for a redirect that was not seen as a network request
const urlPollInterval = 250 * time.Millisecond

// Options configures the Chrome instance
type Options struct {
	Headless bool
	ExecPath string // empty: let chromedp find Chrome
	Debug    bool   // log CDP traffic at debug level
}

// ChromeLauncher starts headless Chrome instances through chromedp
type ChromeLauncher struct {
	opts   Options
	logger *slog.Logger
}

// NewChromeLauncher creates a launcher
func NewChromeLauncher(opts Options, logger *slog.Logger) *ChromeLauncher {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChromeLauncher{opts: opts, logger: logger.With("component", "browser")}
}

// Launch starts a browser whose lifetime is bounded by ctx. The returned
// Browser must be closed.
func (l *ChromeLauncher) Launch(ctx context.Context) (autologin.Browser, error) {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", l.opts.Headless),
		chromedp.Flag("window-size", "1280,800"),
		chromedp.Flag("disable-default-apps", true),
		chromedp.DisableGPU,
	)
	if l.opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(l.opts.ExecPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocOpts...)

	var ctxOpts []chromedp.ContextOption
	if l.opts.Debug {
		ctxOpts = append(ctxOpts, chromedp.WithDebugf(func(format string, args ...interface{}) {
			l.logger.Debug(fmt.Sprintf(format, args...))
		}))
	}
	browserCtx, browserCancel := chromedp.NewContext(allocCtx, ctxOpts...)

	b := &chromeBrowser{
		ctx:         browserCtx,
		cancel:      browserCancel,
		allocCancel: allocCancel,
		logger:      l.logger,
	}

	// The first Run starts the browser process. It must run on the browser
	// context itself, not a derived one, or the process dies with it.
	if err := chromedp.Run(browserCtx, network.Enable()); err != nil {
		b.Close()
		return nil, fmt.Errorf("failed to start chrome: %w", err)
	}
	l.logger.Debug("browser started", "headless", l.opts.Headless)
	return b, nil
}

type chromeBrowser struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	logger      *slog.Logger

	closeOnce sync.Once
	closeErr  error
}

// runContext derives a context from the browser context that also ends when
// the caller's ctx does, so chromedp actions respect caller deadlines.
func (b *chromeBrowser) runContext(ctx context.Context) (context.Context, context.CancelFunc) {
	runCtx, cancel := context.WithCancelCause(b.ctx)
	if deadline, ok := ctx.Deadline(); ok {
		var cancelDeadline context.CancelFunc
		runCtx, cancelDeadline = context.WithDeadline(runCtx, deadline)
		stop := context.AfterFunc(ctx, func() { cancel(context.Cause(ctx)) })
		return runCtx, func() {
			stop()
			cancelDeadline()
			cancel(nil)
		}
	}
	stop := context.AfterFunc(ctx, func() { cancel(context.Cause(ctx)) })
	return runCtx, func() {
		stop()
		cancel(nil)
	}
}

func (b *chromeBrowser) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := b.runContext(ctx)
	defer cancel()
	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return err
	}
	return nil
}

func (b *chromeBrowser) Navigate(ctx context.Context, url string) error {
	return b.run(ctx, chromedp.Navigate(url))
}

func (b *chromeBrowser) Fill(ctx context.Context, selector, value string) error {
	return b.run(ctx,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.SendKeys(selector, value, chromedp.ByQuery),
	)
}

func (b *chromeBrowser) Click(ctx context.Context, selector string) error {
	return b.run(ctx,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.Click(selector, chromedp.ByQuery),
	)
}

func (b *chromeBrowser) WaitVisible(ctx context.Context, selector string) error {
	return b.run(ctx, chromedp.WaitVisible(selector, chromedp.ByQuery))
}

func (b *chromeBrowser) CurrentURL(ctx context.Context) (string, error) {
	var location string
	if err := b.run(ctx, chromedp.Location(&location)); err != nil {
		return "", err
	}
	return location, nil
}

// ExpectURL watches outgoing requests as well as the page location. The
// redirect target is often not served at all, in which case the location
// turns into an error page and only the request carries the real URL.
//
// The request listener is registered here, so navigations triggered after
// this call are seen even before the returned func starts waiting. chromedp
// keeps listeners for the life of the tab; a finished watch just ignores
// further events.
func (b *chromeBrowser) ExpectURL(substr string) func(ctx context.Context) (string, error) {
	seen := make(chan string, 1)
	var done atomic.Bool
	chromedp.ListenTarget(b.ctx, func(ev interface{}) {
		if done.Load() {
			return
		}
		req, ok := ev.(*network.EventRequestWillBeSent)
		if !ok || req.Request == nil || !strings.Contains(req.Request.URL, substr) {
			return
		}
		select {
		case seen <- req.Request.URL:
		default:
		}
	})

	return func(ctx context.Context) (string, error) {
		defer done.Store(true)
		runCtx, cancel := b.runContext(ctx)
		defer cancel()

		ticker := time.NewTicker(urlPollInterval)
		defer ticker.Stop()
		for {
			select {
			case u := <-seen:
				return u, nil
			default:
			}

			var location string
			if err := chromedp.Run(runCtx, chromedp.Location(&location)); err == nil && strings.Contains(location, substr) {
				return location, nil
			}

			select {
			case u := <-seen:
				return u, nil
			case <-runCtx.Done():
				if err := ctx.Err(); err != nil {
					return "", err
				}
				return "", runCtx.Err()
			case <-ticker.C:
			}
		}
	}
}

// Close shuts the browser down gracefully, then releases the allocator which
// kills the process if it is still around. Safe to call more than once.
func (b *chromeBrowser) Close() error {
	b.closeOnce.Do(func() {
		b.closeErr = chromedp.Cancel(b.ctx)
		b.cancel()
		b.allocCancel()
		b.logger.Debug("browser closed")
	})
	return b.closeErr
}
