package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/devilmonastery/kitesession/internal/autologin"
	"github.com/devilmonastery/kitesession/internal/domain/entities"
	"github.com/devilmonastery/kitesession/internal/domain/repositories"
	"github.com/devilmonastery/kitesession/internal/pkg/logger"
	"github.com/devilmonastery/kitesession/internal/pkg/metrics"
)

// State is a step of session acquisition
type State string

const (
	StateNoToken            State = "no_token"
	StateProbingCachedToken State = "probing_cached_token"
	StateValid              State = "valid"
	StateInvalid            State = "invalid"
	StateAutomatedLogin     State = "automated_login"
	StateExchanged          State = "exchanged"
	StatePersisted          State = "persisted"
	StateFailed             State = "failed"
)

// LoginDriver obtains a request token through the interactive login flow
type LoginDriver interface {
	PerformLogin(ctx context.Context, req autologin.LoginRequest) (string, error)
}

// SessionService provides a usable Kite session, reusing the cached access
// token while the remote accepts it and logging in again when it does not.
type SessionService struct {
	store  repositories.TokenStore
	remote repositories.RemoteSessionClient
	driver LoginDriver
	logger *slog.Logger
	now    func() time.Time
	group  singleflight.Group
}

// NewSessionService creates a new session service
func NewSessionService(
	store repositories.TokenStore,
	remote repositories.RemoteSessionClient,
	driver LoginDriver,
	log *slog.Logger,
) *SessionService {
	if log == nil {
		log = slog.Default()
	}
	return &SessionService{
		store:  store,
		remote: remote,
		driver: driver,
		logger: log.With("component", "session"),
		now:    time.Now,
	}
}

// Acquire returns a session for creds. A cached token is used when the
// profile probe accepts it; otherwise a full automated login runs and the new
// token is persisted. On return the remote client carries the session token.
//
// Only configuration, automation and exchange failures are returned. Callers
// sharing an identity share one in-flight acquisition.
func (s *SessionService) Acquire(ctx context.Context, creds entities.Credentials) (*entities.Session, error) {
	if err := creds.Validate(); err != nil {
		s.logger.Error("refusing to start session acquisition", "error", err)
		s.transition(StateFailed)
		return nil, configurationError(err)
	}

	v, err, shared := s.group.Do(creds.UserID, func() (interface{}, error) {
		return s.acquire(ctx, creds)
	})
	if shared {
		s.logger.Debug("joined in-flight session acquisition", "user_id", creds.UserID)
	}
	if err != nil {
		return nil, err
	}
	return v.(*entities.Session), nil
}

func (s *SessionService) acquire(ctx context.Context, creds entities.Credentials) (*entities.Session, error) {
	token, ok := s.store.Load(ctx)
	if !ok {
		s.transition(StateNoToken)
		return s.login(ctx, creds)
	}

	s.transition(StateProbingCachedToken)
	status, profile := s.probe(ctx, token)
	if status == entities.TokenValid {
		s.transition(StateValid)
		s.logProfile(profile)
		return &entities.Session{
			AccessToken: token,
			Profile:     profile,
			Source:      entities.SourceCached,
		}, nil
	}

	s.transition(StateInvalid)
	return s.login(ctx, creds)
}

func (s *SessionService) login(ctx context.Context, creds entities.Credentials) (*entities.Session, error) {
	start := s.now()
	s.transition(StateAutomatedLogin)

	requestToken, err := s.driver.PerformLogin(ctx, autologin.LoginRequest{
		LoginURL:    s.remote.LoginURL(),
		UserID:      creds.UserID,
		Password:    creds.Password,
		PIN:         pinSource(creds),
		RedirectURL: creds.RedirectURL,
	})
	if err != nil {
		return nil, s.loginFailed(start, loginError(err))
	}
	s.logger.Info("obtained request token", "request_token", logger.Redact(requestToken))

	user, err := s.remote.GenerateSession(ctx, requestToken, creds.APISecret)
	if err == nil && (user == nil || user.AccessToken == "") {
		err = errors.New("exchange returned no access token")
	}
	if err != nil {
		return nil, s.loginFailed(start, exchangeError(err))
	}
	s.transition(StateExchanged)
	s.logUser(user)

	status, profile := s.probe(ctx, user.AccessToken)
	if status == entities.TokenValid {
		s.logProfile(profile)
	} else {
		s.logger.Warn("new access token could not be confirmed, continuing")
	}

	if err := s.store.Save(ctx, user.AccessToken); err != nil {
		s.logger.Warn("failed to persist access token", "error", err)
	} else {
		s.transition(StatePersisted)
	}

	elapsed := s.now().Sub(start)
	metrics.RecordLogin("success", elapsed)
	logger.WithDuration(s.logger, elapsed).Info("session acquired by login", "user_id", user.UserID)

	return &entities.Session{
		AccessToken: user.AccessToken,
		PublicToken: user.PublicToken,
		Profile:     profile,
		User:        user,
		Source:      entities.SourceLogin,
	}, nil
}

func (s *SessionService) loginFailed(start time.Time, err error) error {
	s.transition(StateFailed)
	reason := LoginFailureReason(err)
	metrics.RecordLogin(reason, s.now().Sub(start))
	s.logger.Error("session acquisition failed", "reason", reason, "error", err)
	return err
}

// probe installs token on the remote client and asks for the profile. Any
// failure classifies the token as invalid.
func (s *SessionService) probe(ctx context.Context, token string) (entities.TokenStatus, *entities.Profile) {
	if token == "" {
		return entities.TokenAbsent, nil
	}
	s.remote.SetAccessToken(token)
	profile, err := s.remote.Profile(ctx)
	if err != nil {
		s.logger.Warn("access token rejected by profile probe",
			"access_token", logger.Redact(token),
			"error", err)
		return entities.TokenInvalid, nil
	}
	return entities.TokenValid, profile
}

// Status reports whether the cached token is usable without logging in
func (s *SessionService) Status(ctx context.Context) (entities.TokenStatus, *entities.Profile) {
	token, ok := s.store.Load(ctx)
	if !ok {
		return entities.TokenAbsent, nil
	}
	return s.probe(ctx, token)
}

// Logout ends the session on the remote and deletes the cached token. The
// token file is removed whatever the remote said. Returns false if the remote
// call failed.
func (s *SessionService) Logout(ctx context.Context, session *entities.Session) bool {
	if session != nil && session.AccessToken != "" {
		s.remote.SetAccessToken(session.AccessToken)
	}

	remoteErr := s.remote.Logout(ctx)
	if remoteErr != nil {
		s.logger.Warn("remote logout failed", "error", remoteErr)
	}

	if err := s.store.Clear(ctx); err != nil {
		s.logger.Warn("failed to delete cached access token", "error", err)
	}

	if remoteErr != nil {
		return false
	}
	s.logger.Info("logged out")
	return true
}

func (s *SessionService) transition(state State) {
	s.logger.Debug("session state", "state", string(state))
	metrics.RecordTransition(string(state))
}

func (s *SessionService) logProfile(p *entities.Profile) {
	if p == nil {
		return
	}
	s.logger.Info("profile",
		"user_id", p.UserID,
		"user_name", p.UserName,
		"short_name", p.ShortName,
		"user_type", p.UserType,
		"email", p.Email,
		"broker", p.Broker,
		"exchanges", p.Exchanges,
		"order_types", p.OrderTypes,
		"products", p.Products,
	)
}

func (s *SessionService) logUser(u *entities.User) {
	s.logger.Info("session generated",
		"user_id", u.UserID,
		"user_name", u.UserName,
		"short_name", u.ShortName,
		"user_type", u.UserType,
		"login_time", u.LoginTime,
		"order_types", u.OrderTypes,
		"products", u.Products,
		"access_token", logger.Redact(u.AccessToken),
		"public_token", logger.Redact(u.PublicToken),
		"refresh_token", logger.Redact(u.RefreshToken),
	)
}

func pinSource(creds entities.Credentials) autologin.PINSource {
	if creds.SecondFactorKind == entities.SecondFactorTOTP {
		return autologin.TOTPSeed(creds.SecondFactor)
	}
	return autologin.StaticPIN(creds.SecondFactor)
}
