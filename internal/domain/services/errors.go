package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/devilmonastery/kitesession/internal/autologin"
	"github.com/devilmonastery/kitesession/internal/domain/entities"
)

// Errors surfaced by SessionService
var (
	// ErrMissingCredential is returned when the credentials are incomplete or
	// malformed. Nothing else is attempted.
	ErrMissingCredential = errors.New("invalid credentials configuration")

	// ErrLoginFailed wraps every fatal failure of the automated login branch
	ErrLoginFailed = errors.New("login failed")

	// ErrExchangeFailed is returned when the request token could not be
	// exchanged for a session. It is always wrapped in ErrLoginFailed.
	ErrExchangeFailed = errors.New("request token exchange failed")
)

func configurationError(err error) error {
	return fmt.Errorf("%w: %w", ErrMissingCredential, err)
}

func loginError(err error) error {
	return fmt.Errorf("%w: %w", ErrLoginFailed, err)
}

func exchangeError(err error) error {
	return fmt.Errorf("%w: %w: %w", ErrLoginFailed, ErrExchangeFailed, err)
}

// IsConfigurationError checks if the error was caused by bad credentials
func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrMissingCredential)
}

// IsAutomationError checks if the error came from the browser login
func IsAutomationError(err error) bool {
	_, ok := autologin.KindOf(err)
	return ok
}

// MissingCredentialFields returns the names of the empty credential fields
// reported by err, if any.
func MissingCredentialFields(err error) []string {
	var mf *entities.MissingFieldsError
	if errors.As(err, &mf) {
		return mf.Fields
	}
	return nil
}

// LoginFailureReason returns a short reason string for an Acquire failure.
// This is used for metrics labels and user-facing messages.
func LoginFailureReason(err error) string {
	if kind, ok := autologin.KindOf(err); ok {
		return kind.String()
	}
	switch {
	case errors.Is(err, ErrMissingCredential):
		return "config_error"
	case errors.Is(err, ErrExchangeFailed):
		return "exchange_failed"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	case errors.Is(err, context.DeadlineExceeded):
		return "deadline_exceeded"
	}
	return "login_failed"
}
