package repositories

import (
	"context"

	"github.com/devilmonastery/kitesession/internal/domain/entities"
)

// RemoteSessionClient is the subset of the broker API the session flow needs.
// The client is bound to one API key and carries the current access token.
type RemoteSessionClient interface {
	// LoginURL returns the interactive login page for the configured API key
	LoginURL() string

	// SetAccessToken sets the token used by subsequent calls
	SetAccessToken(token string)

	// Profile fetches the user profile; used as the validity probe
	Profile(ctx context.Context) (*entities.Profile, error)

	// GenerateSession exchanges a single-use request token for a session
	GenerateSession(ctx context.Context, requestToken, apiSecret string) (*entities.User, error)

	// Logout invalidates the current access token on the remote
	Logout(ctx context.Context) error

	// Holdings lists the demat holdings of the logged in user
	Holdings(ctx context.Context) ([]entities.Holding, error)
}
