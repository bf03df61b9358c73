package autologin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

const (
	DefaultWaitTimeout    = 20 * time.Second
	DefaultElementTimeout = 5 * time.Second
)

// Selectors locate the login form controls. Id based selectors are preferred;
// positional ones break silently when the page is redesigned.
type Selectors struct {
	UserID    string `yaml:"user_id"`
	Password  string `yaml:"password"`
	Submit    string `yaml:"submit"`
	PIN       string `yaml:"pin"`
	PINSubmit string `yaml:"pin_submit"`
}

// DefaultSelectors matches the Kite web login form
func DefaultSelectors() Selectors {
	return Selectors{
		UserID:    "#userid",
		Password:  "#password",
		Submit:    `button[type="submit"]`,
		PIN:       "#pin",
		PINSubmit: `button[type="submit"]`,
	}
}

// withDefaults fills empty selectors from DefaultSelectors
func (s Selectors) withDefaults() Selectors {
	d := DefaultSelectors()
	if s.UserID == "" {
		s.UserID = d.UserID
	}
	if s.Password == "" {
		s.Password = d.Password
	}
	if s.Submit == "" {
		s.Submit = d.Submit
	}
	if s.PIN == "" {
		s.PIN = d.PIN
	}
	if s.PINSubmit == "" {
		s.PINSubmit = d.PINSubmit
	}
	return s
}

// Config tunes the driver
type Config struct {
	// WaitTimeout bounds the waits for the second factor page and the redirect
	WaitTimeout time.Duration
	// ElementTimeout bounds each lookup of a control expected on the current page
	ElementTimeout time.Duration
	Selectors      Selectors
}

// LoginRequest carries everything one automated login needs
type LoginRequest struct {
	LoginURL    string
	UserID      string
	Password    string
	PIN         PINSource
	RedirectURL string
}

// Driver performs the credential + PIN login in a headless browser and
// returns the request token delivered on the redirect.
type Driver struct {
	launcher Launcher
	cfg      Config
	logger   *slog.Logger
	now      func() time.Time
}

// NewDriver creates a driver. Zero config values fall back to defaults.
func NewDriver(launcher Launcher, cfg Config, logger *slog.Logger) *Driver {
	if cfg.WaitTimeout <= 0 {
		cfg.WaitTimeout = DefaultWaitTimeout
	}
	if cfg.ElementTimeout <= 0 {
		cfg.ElementTimeout = DefaultElementTimeout
	}
	cfg.Selectors = cfg.Selectors.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Driver{
		launcher: launcher,
		cfg:      cfg,
		logger:   logger.With("component", "autologin"),
		now:      time.Now,
	}
}

// PerformLogin runs the login sequence. It never returns an empty token with
// a nil error. The browser is closed exactly once on every path after it has
// been launched.
func (d *Driver) PerformLogin(ctx context.Context, req LoginRequest) (token string, err error) {
	start := d.now()
	d.logger.Info("starting automated login", "login_url", req.LoginURL)

	browser, err := d.launcher.Launch(ctx)
	if err != nil {
		return "", d.fail(ctx, "launch browser", KindBrowser, err)
	}
	defer func() {
		if closeErr := browser.Close(); closeErr != nil {
			d.logger.Warn("failed to close browser", "error", closeErr)
		}
	}()

	if err := d.bounded(ctx, d.cfg.WaitTimeout, func(ctx context.Context) error {
		return browser.Navigate(ctx, req.LoginURL)
	}); err != nil {
		return "", d.fail(ctx, "open login page", KindBrowser, err)
	}
	d.logPage(ctx, browser, "login page")

	sel := d.cfg.Selectors
	if err := d.element(ctx, func(ctx context.Context) error {
		return browser.Fill(ctx, sel.UserID, req.UserID)
	}); err != nil {
		return "", d.fail(ctx, "fill user id", KindElementNotFound, err)
	}
	if err := d.element(ctx, func(ctx context.Context) error {
		return browser.Fill(ctx, sel.Password, req.Password)
	}); err != nil {
		return "", d.fail(ctx, "fill password", KindElementNotFound, err)
	}
	d.logger.Info("submitting credentials form")
	if err := d.element(ctx, func(ctx context.Context) error {
		return browser.Click(ctx, sel.Submit)
	}); err != nil {
		return "", d.fail(ctx, "submit credentials", KindElementNotFound, err)
	}

	if err := d.bounded(ctx, d.cfg.WaitTimeout, func(ctx context.Context) error {
		return browser.WaitVisible(ctx, sel.PIN)
	}); err != nil {
		return "", d.fail(ctx, "wait for second factor", KindTimeout, err)
	}
	d.logPage(ctx, browser, "second factor page")

	pin, err := req.PIN.PIN(d.now())
	if err != nil {
		return "", d.fail(ctx, "generate second factor", KindBrowser, err)
	}
	if err := d.element(ctx, func(ctx context.Context) error {
		return browser.Fill(ctx, sel.PIN, pin)
	}); err != nil {
		return "", d.fail(ctx, "fill second factor", KindElementNotFound, err)
	}

	waitRedirect := browser.ExpectURL(req.RedirectURL)
	d.logger.Info("submitting second factor form")
	if err := d.element(ctx, func(ctx context.Context) error {
		return browser.Click(ctx, sel.PINSubmit)
	}); err != nil {
		return "", d.fail(ctx, "submit second factor", KindElementNotFound, err)
	}

	d.logger.Info("waiting for redirect", "redirect_url", req.RedirectURL)
	var finalURL string
	if err := d.bounded(ctx, d.cfg.WaitTimeout, func(ctx context.Context) error {
		var waitErr error
		finalURL, waitErr = waitRedirect(ctx)
		return waitErr
	}); err != nil {
		return "", d.fail(ctx, "wait for redirect", KindTimeout, err)
	}

	token, err = ExtractRequestToken(finalURL)
	if err != nil {
		d.logger.Error("redirect reached without request token", "error", err)
		return "", err
	}

	d.logger.Info("automated login complete", "duration_ms", time.Since(start).Milliseconds())
	return token, nil
}

// bounded runs fn with a timeout derived from ctx
func (d *Driver) bounded(ctx context.Context, timeout time.Duration, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(ctx)
}

// element runs a lookup of a control that should already be on the page
func (d *Driver) element(ctx context.Context, fn func(context.Context) error) error {
	return d.bounded(ctx, d.cfg.ElementTimeout, fn)
}

// fail maps a step failure onto the error returned to the caller. A wait or
// element lookup that fails for any reason other than its own deadline is a
// browser failure.
// Cancellation of the caller's context is returned as-is so shutdown is never
// reported as a page timeout.
func (d *Driver) fail(ctx context.Context, step string, kind Kind, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		d.logger.Warn("automated login aborted", "step", step, "error", ctxErr)
		return fmt.Errorf("%s: %w", step, ctxErr)
	}
	if (kind == KindTimeout || kind == KindElementNotFound) && !errors.Is(err, context.DeadlineExceeded) {
		kind = KindBrowser
	}
	ae := &AutomationError{Kind: kind, Step: step, Err: err}
	d.logger.Error("automated login failed", "step", step, "kind", kind.String(), "error", err)
	return ae
}

func (d *Driver) logPage(ctx context.Context, browser Browser, page string) {
	current, err := browser.CurrentURL(ctx)
	if err != nil {
		d.logger.Debug("could not read current url", "page", page, "error", err)
		return
	}
	d.logger.Debug("page loaded", "page", page, "url", current)
}
