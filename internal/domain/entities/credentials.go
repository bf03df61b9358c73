package entities

import (
	"fmt"
	"strings"
	"time"

	"github.com/pquerna/otp/totp"
)

// SecondFactorKind tells how the second factor value is interpreted
type SecondFactorKind string

const (
	// SecondFactorPIN is a static PIN typed as-is
	SecondFactorPIN SecondFactorKind = "pin"
	// SecondFactorTOTP is a base32 seed; the PIN is derived at login time
	SecondFactorTOTP SecondFactorKind = "totp"
)

// Credentials identifies the single account this process logs in as.
// They are built once at startup and never mutated afterwards.
type Credentials struct {
	UserID           string
	Password         string
	SecondFactor     string
	SecondFactorKind SecondFactorKind
	APIKey           string
	APISecret        string
	RedirectURL      string
}

// MissingFieldsError lists the required credential fields that were empty
type MissingFieldsError struct {
	Fields []string
}

func (e *MissingFieldsError) Error() string {
	return fmt.Sprintf("missing required credential fields: %s", strings.Join(e.Fields, ", "))
}

// MissingFields returns the names of required fields that are empty
func (c Credentials) MissingFields() []string {
	required := []struct {
		name  string
		value string
	}{
		{"user_id", c.UserID},
		{"password", c.Password},
		{"second_factor", c.SecondFactor},
		{"api_key", c.APIKey},
		{"api_secret", c.APISecret},
		{"redirect_url", c.RedirectURL},
	}

	var missing []string
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	return missing
}

// Validate checks that all six required fields are present and that the
// second factor kind is known. An empty kind means PIN. A TOTP seed must
// decode, so a bad seed is caught before any browser is started.
func (c Credentials) Validate() error {
	if missing := c.MissingFields(); len(missing) > 0 {
		return &MissingFieldsError{Fields: missing}
	}
	switch c.SecondFactorKind {
	case "", SecondFactorPIN:
		return nil
	case SecondFactorTOTP:
		if _, err := totp.GenerateCode(normalizeTOTPSeed(c.SecondFactor), time.Unix(0, 0)); err != nil {
			return fmt.Errorf("second factor is not a usable totp seed: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unknown second factor kind %q", c.SecondFactorKind)
	}
}

// normalizeTOTPSeed uppercases a base32 seed and drops the spaces authenticator
// apps insert for readability
func normalizeTOTPSeed(seed string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(seed), " ", ""))
}
