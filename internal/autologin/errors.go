package autologin

import (
	"errors"
	"fmt"
)

// Kind classifies why an automated login failed
type Kind int

const (
	// KindBrowser covers launch and navigation failures of the browser itself
	KindBrowser Kind = iota
	// KindElementNotFound means an expected form control never showed up
	KindElementNotFound
	// KindTimeout means a bounded wait for a page transition expired
	KindTimeout
	// KindRedirectNotReached means the redirect carried no request token
	KindRedirectNotReached
)

func (k Kind) String() string {
	switch k {
	case KindElementNotFound:
		return "element_not_found"
	case KindTimeout:
		return "timeout"
	case KindRedirectNotReached:
		return "redirect_not_reached"
	default:
		return "browser"
	}
}

// Sentinels for errors.Is matching against an *AutomationError
var (
	ErrBrowser            = errors.New("browser automation failed")
	ErrElementNotFound    = errors.New("page element not found")
	ErrTimeout            = errors.New("timed out waiting for page")
	ErrRedirectNotReached = errors.New("request token not found in redirect")
)

// AutomationError is returned by PerformLogin for every failure that is not a
// cancellation of the caller's context.
type AutomationError struct {
	Kind Kind
	Step string
	Err  error
}

func (e *AutomationError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Step, e.sentinel())
	}
	return fmt.Sprintf("%s: %s: %v", e.Step, e.sentinel(), e.Err)
}

func (e *AutomationError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrTimeout) and friends match on Kind
func (e *AutomationError) Is(target error) bool {
	return target == e.sentinel()
}

func (e *AutomationError) sentinel() error {
	switch e.Kind {
	case KindElementNotFound:
		return ErrElementNotFound
	case KindTimeout:
		return ErrTimeout
	case KindRedirectNotReached:
		return ErrRedirectNotReached
	default:
		return ErrBrowser
	}
}

// KindOf reports the automation failure kind of err, if any
func KindOf(err error) (Kind, bool) {
	var ae *AutomationError
	if errors.As(err, &ae) {
		return ae.Kind, true
	}
	return 0, false
}
