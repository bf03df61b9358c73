package repositories

import "context"

// TokenStore persists a single access token. Implementations treat any read
// problem as "no token" so a broken cache only ever costs a fresh login.
type TokenStore interface {
	// Load returns the cached token, or false when there is none
	Load(ctx context.Context) (token string, ok bool)

	// Save replaces the cached token
	Save(ctx context.Context, token string) error

	// Clear removes the cached token. A missing token is not an error.
	Clear(ctx context.Context) error
}
