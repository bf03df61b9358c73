package autologin

import "context"

// Browser is the slice of a browser automation engine the login flow needs.
// Selectors are CSS selectors. Every blocking call honours ctx's deadline and
// returns context.DeadlineExceeded (possibly wrapped) when it expires.
type Browser interface {
	Navigate(ctx context.Context, url string) error

	// Fill waits for the element to be visible and types value into it
	Fill(ctx context.Context, selector, value string) error

	// Click waits for the element to be visible and clicks it
	Click(ctx context.Context, selector string) error

	// WaitVisible blocks until the element is visible
	WaitVisible(ctx context.Context, selector string) error

	// CurrentURL returns the URL of the current page
	CurrentURL(ctx context.Context) (string, error)

	// ExpectURL starts watching for a navigation to a URL containing substr
	// and returns a func that blocks until one is seen. Call it before the
	// action that triggers the navigation so a fast redirect is not missed.
	ExpectURL(substr string) func(ctx context.Context) (string, error)

	// Close releases the browser and its OS process
	Close() error
}

// Launcher starts a fresh browser instance
type Launcher interface {
	Launch(ctx context.Context) (Browser, error)
}
