package entities

import "time"

// TokenStatus classifies a candidate access token. Only the remote decides
// validity; nothing about expiry is tracked locally.
type TokenStatus string

const (
	TokenAbsent  TokenStatus = "absent"
	TokenValid   TokenStatus = "valid"
	TokenInvalid TokenStatus = "invalid"
)

// SessionSource records how a session was obtained
type SessionSource string

const (
	SourceCached SessionSource = "cached"
	SourceLogin  SessionSource = "login"
)

// Profile is the snapshot returned by the profile probe
type Profile struct {
	UserID     string
	UserName   string
	ShortName  string
	UserType   string
	Email      string
	Broker     string
	Exchanges  []string
	OrderTypes []string
	Products   []string
}

// User is the payload of a successful request token exchange
type User struct {
	UserID       string
	UserName     string
	ShortName    string
	UserType     string
	APIKey       string
	AccessToken  string
	PublicToken  string
	RefreshToken string
	LoginTime    time.Time
	OrderTypes   []string
	Products     []string
}

// Session is the transient result of one acquisition cycle. Only
// AccessToken is ever persisted.
type Session struct {
	AccessToken string
	PublicToken string
	Profile     *Profile
	User        *User // nil for cached sessions
	Source      SessionSource
}
