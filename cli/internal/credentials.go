package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/devilmonastery/kitesession/internal/autologin"
	"github.com/devilmonastery/kitesession/internal/domain/entities"
	"github.com/devilmonastery/kitesession/internal/domain/services"
	"github.com/devilmonastery/kitesession/internal/infrastructure/browser"
	"github.com/devilmonastery/kitesession/internal/infrastructure/filestore"
	"github.com/devilmonastery/kitesession/internal/infrastructure/kite"
	"github.com/devilmonastery/kitesession/internal/pkg/logger"
)

// session bundles what the session commands need
type session struct {
	service *services.SessionService
	remote  *kite.Client
	store   *filestore.TokenStore
	creds   entities.Credentials
}

// newSession wires the session service for the current context
func newSession(cc *CliContext) (*session, error) {
	current, err := cc.Config.GetCurrentContext()
	if err != nil {
		return nil, err
	}

	tokenPath, err := current.TokenPath()
	if err != nil {
		return nil, err
	}

	creds := current.Credentials()
	log := logger.WithUser(cc.Logger, creds.UserID)

	store := filestore.NewTokenStore(tokenPath, log)
	remote := kite.NewClient(kite.Options{
		APIKey:  creds.APIKey,
		BaseURI: current.Kite.BaseURI,
		Timeout: current.Kite.Timeout,
	}, log)

	launcher := browser.NewChromeLauncher(browser.Options{
		Headless: current.Browser.IsHeadless(),
		ExecPath: os.ExpandEnv(current.Browser.ExecPath),
		Debug:    current.Browser.Debug,
	}, log)
	driver := autologin.NewDriver(launcher, autologin.Config{
		WaitTimeout:    current.Browser.WaitTimeout,
		ElementTimeout: current.Browser.ElementTimeout,
		Selectors:      current.Browser.Selectors,
	}, log)

	return &session{
		service: services.NewSessionService(store, remote, driver, log),
		remote:  remote,
		store:   store,
		creds:   creds,
	}, nil
}

// promptMissingSecrets asks for the password and second factor when they are
// not configured and stdin is a terminal. Anything still missing is left for
// credential validation to report.
func promptMissingSecrets(creds *entities.Credentials) error {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return nil
	}

	if strings.TrimSpace(creds.UserID) == "" {
		return nil
	}

	if strings.TrimSpace(creds.Password) == "" {
		password, err := readSecret(fd, os.Stderr, fmt.Sprintf("Password for %s: ", creds.UserID))
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		creds.Password = password
	}

	if strings.TrimSpace(creds.SecondFactor) == "" {
		label := "PIN: "
		if creds.SecondFactorKind == entities.SecondFactorTOTP {
			label = "TOTP seed: "
		}
		secondFactor, err := readSecret(fd, os.Stderr, label)
		if err != nil {
			return fmt.Errorf("failed to read second factor: %w", err)
		}
		creds.SecondFactor = secondFactor
	}

	return nil
}

func readSecret(fd int, w io.Writer, prompt string) (string, error) {
	fmt.Fprint(w, prompt)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(w) // newline after hidden input
	if err != nil {
		return "", err
	}
	return string(b), nil
}
