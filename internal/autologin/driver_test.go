package autologin

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBrowser scripts a login page. failOn names the step that misbehaves.
// The redirect to finalURL fires during the click that follows ExpectURL and
// is only seen by a watch that was already running.
type fakeBrowser struct {
	failOn   string
	failErr  error
	finalURL string
	closed   int
	filled   map[string]string
	clicks   []string
	events   []string

	watching   string
	redirected string
}

func (b *fakeBrowser) step(name string) error {
	if b.failOn == name {
		return b.failErr
	}
	return nil
}

func (b *fakeBrowser) Navigate(ctx context.Context, url string) error {
	return b.step("navigate")
}

func (b *fakeBrowser) Fill(ctx context.Context, selector, value string) error {
	if err := b.step("fill " + selector); err != nil {
		return err
	}
	b.filled[selector] = value
	return nil
}

func (b *fakeBrowser) Click(ctx context.Context, selector string) error {
	if err := b.step("click " + selector); err != nil {
		return err
	}
	b.clicks = append(b.clicks, selector)
	b.events = append(b.events, "click "+selector)
	if b.watching != "" && b.failOn != "redirect" && strings.Contains(b.finalURL, b.watching) {
		b.redirected = b.finalURL
	}
	return nil
}

func (b *fakeBrowser) WaitVisible(ctx context.Context, selector string) error {
	if b.failOn == "wait "+selector {
		<-ctx.Done()
		return ctx.Err()
	}
	return nil
}

func (b *fakeBrowser) CurrentURL(ctx context.Context) (string, error) {
	return "https://kite.example/connect/login", nil
}

func (b *fakeBrowser) ExpectURL(substr string) func(ctx context.Context) (string, error) {
	b.watching = substr
	b.events = append(b.events, "expect "+substr)
	return func(ctx context.Context) (string, error) {
		if b.redirected != "" {
			return b.redirected, nil
		}
		if b.failOn != "redirect" && !strings.Contains(b.finalURL, substr) {
			return "", errors.New("unexpected redirect")
		}
		<-ctx.Done()
		return "", ctx.Err()
	}
}

func (b *fakeBrowser) Close() error {
	b.closed++
	return nil
}

type fakeLauncher struct {
	browser  *fakeBrowser
	err      error
	launches int
}

func (l *fakeLauncher) Launch(ctx context.Context) (Browser, error) {
	l.launches++
	if l.err != nil {
		return nil, l.err
	}
	return l.browser, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestDriver(l Launcher) *Driver {
	return NewDriver(l, Config{
		WaitTimeout:    50 * time.Millisecond,
		ElementTimeout: 20 * time.Millisecond,
	}, testLogger())
}

func testRequest() LoginRequest {
	return LoginRequest{
		LoginURL:    "https://kite.example/connect/login?api_key=k&v=3",
		UserID:      "AB1234",
		Password:    "hunter2",
		PIN:         StaticPIN("123456"),
		RedirectURL: "https://app.example/callback",
	}
}

func TestPerformLogin_Success(t *testing.T) {
	b := &fakeBrowser{
		filled:   map[string]string{},
		finalURL: "https://app.example/callback?action=login&request_token=REQ123&status=success",
	}
	d := newTestDriver(&fakeLauncher{browser: b})

	token, err := d.PerformLogin(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, "REQ123", token)
	assert.Equal(t, 1, b.closed)

	sel := DefaultSelectors()
	assert.Equal(t, "AB1234", b.filled[sel.UserID])
	assert.Equal(t, "hunter2", b.filled[sel.Password])
	assert.Equal(t, "123456", b.filled[sel.PIN])
	assert.Equal(t, []string{sel.Submit, sel.PINSubmit}, b.clicks)
}

func TestPerformLogin_ReleasesBrowserOnEveryFailure(t *testing.T) {
	sel := DefaultSelectors()
	boom := errors.New("boom")

	tests := []struct {
		name     string
		failOn   string
		failErr  error
		finalURL string
		wantKind Kind
	}{
		{name: "navigation fails", failOn: "navigate", failErr: boom, wantKind: KindBrowser},
		{name: "user id field missing", failOn: "fill " + sel.UserID, failErr: context.DeadlineExceeded, wantKind: KindElementNotFound},
		{name: "password field missing", failOn: "fill " + sel.Password, failErr: context.DeadlineExceeded, wantKind: KindElementNotFound},
		{name: "submit missing", failOn: "click " + sel.Submit, failErr: context.DeadlineExceeded, wantKind: KindElementNotFound},
		{name: "second factor never shows", failOn: "wait " + sel.PIN, wantKind: KindTimeout},
		{name: "pin field missing", failOn: "fill " + sel.PIN, failErr: context.DeadlineExceeded, wantKind: KindElementNotFound},
		{name: "browser crashes while filling pin", failOn: "fill " + sel.PIN, failErr: boom, wantKind: KindBrowser},
		{name: "browser crashes while submitting", failOn: "click " + sel.Submit, failErr: boom, wantKind: KindBrowser},
		{name: "redirect never happens", failOn: "redirect", wantKind: KindTimeout},
		{name: "redirect without token", finalURL: "https://app.example/callback?status=error", wantKind: KindRedirectNotReached},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			finalURL := tt.finalURL
			if finalURL == "" {
				finalURL = "https://app.example/callback?request_token=REQ123"
			}
			b := &fakeBrowser{
				failOn:   tt.failOn,
				failErr:  tt.failErr,
				finalURL: finalURL,
				filled:   map[string]string{},
			}
			d := newTestDriver(&fakeLauncher{browser: b})

			token, err := d.PerformLogin(context.Background(), testRequest())
			require.Error(t, err)
			assert.Empty(t, token)
			assert.Equal(t, 1, b.closed, "browser must be released exactly once")

			kind, ok := KindOf(err)
			require.True(t, ok, "expected an AutomationError, got %v", err)
			assert.Equal(t, tt.wantKind, kind)
		})
	}
}

func TestPerformLogin_TimeoutDistinctFromElementNotFound(t *testing.T) {
	sel := DefaultSelectors()

	b := &fakeBrowser{failOn: "wait " + sel.PIN, filled: map[string]string{}}
	_, err := newTestDriver(&fakeLauncher{browser: b}).PerformLogin(context.Background(), testRequest())
	assert.ErrorIs(t, err, ErrTimeout)
	assert.NotErrorIs(t, err, ErrElementNotFound)

	b = &fakeBrowser{failOn: "fill " + sel.UserID, failErr: context.DeadlineExceeded, filled: map[string]string{}}
	_, err = newTestDriver(&fakeLauncher{browser: b}).PerformLogin(context.Background(), testRequest())
	assert.ErrorIs(t, err, ErrElementNotFound)
	assert.NotErrorIs(t, err, ErrTimeout)
}

func TestPerformLogin_ElementFailureOtherThanDeadlineIsBrowser(t *testing.T) {
	sel := DefaultSelectors()
	crash := errors.New("websocket: close 1006")

	b := &fakeBrowser{failOn: "fill " + sel.Password, failErr: crash, filled: map[string]string{}}
	_, err := newTestDriver(&fakeLauncher{browser: b}).PerformLogin(context.Background(), testRequest())
	assert.ErrorIs(t, err, ErrBrowser)
	assert.ErrorIs(t, err, crash)
	assert.NotErrorIs(t, err, ErrElementNotFound)
	assert.NotErrorIs(t, err, ErrTimeout)
}

func TestPerformLogin_WatchesRedirectBeforeSubmitting(t *testing.T) {
	sel := DefaultSelectors()
	b := &fakeBrowser{
		filled:   map[string]string{},
		finalURL: "https://app.example/callback?request_token=FAST1",
	}
	d := newTestDriver(&fakeLauncher{browser: b})

	token, err := d.PerformLogin(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, "FAST1", token)

	assert.Equal(t, []string{
		"click " + sel.Submit,
		"expect https://app.example/callback",
		"click " + sel.PINSubmit,
	}, b.events)
}

func TestPerformLogin_LaunchFailureHasNothingToRelease(t *testing.T) {
	l := &fakeLauncher{err: errors.New("chrome not installed")}

	_, err := newTestDriver(l).PerformLogin(context.Background(), testRequest())
	assert.ErrorIs(t, err, ErrBrowser)
	assert.Equal(t, 1, l.launches)
}

func TestPerformLogin_CancelledIsNotTimeout(t *testing.T) {
	sel := DefaultSelectors()
	b := &fakeBrowser{failOn: "wait " + sel.PIN, filled: map[string]string{}}
	d := NewDriver(&fakeLauncher{browser: b}, Config{WaitTimeout: time.Minute}, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	_, err := d.PerformLogin(ctx, testRequest())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	_, isAutomation := KindOf(err)
	assert.False(t, isAutomation)
	assert.Equal(t, 1, b.closed)
}

func TestPerformLogin_TOTPSecondFactor(t *testing.T) {
	b := &fakeBrowser{
		filled:   map[string]string{},
		finalURL: "https://app.example/callback?request_token=REQ123",
	}
	d := newTestDriver(&fakeLauncher{browser: b})
	fixed := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	d.now = func() time.Time { return fixed }

	req := testRequest()
	req.PIN = TOTPSeed("JBSWY3DPEHPK3PXP")

	_, err := d.PerformLogin(context.Background(), req)
	require.NoError(t, err)

	want, err := TOTPSeed("JBSWY3DPEHPK3PXP").PIN(fixed)
	require.NoError(t, err)
	assert.Equal(t, want, b.filled[DefaultSelectors().PIN])
	assert.Len(t, want, 6)
}

func TestNewDriver_FillsDefaults(t *testing.T) {
	d := NewDriver(&fakeLauncher{}, Config{Selectors: Selectors{PIN: "#totp"}}, nil)

	assert.Equal(t, DefaultWaitTimeout, d.cfg.WaitTimeout)
	assert.Equal(t, DefaultElementTimeout, d.cfg.ElementTimeout)
	assert.Equal(t, "#totp", d.cfg.Selectors.PIN)
	assert.Equal(t, "#userid", d.cfg.Selectors.UserID)
}
