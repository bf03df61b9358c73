package autologin

import (
	"fmt"
	"strings"
	"time"

	"github.com/pquerna/otp/totp"
)

// PINSource produces the second factor at the moment it is typed
type PINSource interface {
	PIN(now time.Time) (string, error)
}

// StaticPIN is a fixed PIN
type StaticPIN string

func (p StaticPIN) PIN(time.Time) (string, error) { return string(p), nil }

// TOTPSeed derives a time based one-time code from a base32 seed
type TOTPSeed string

func (s TOTPSeed) PIN(now time.Time) (string, error) {
	secret := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(string(s)), " ", ""))
	code, err := totp.GenerateCode(secret, now)
	if err != nil {
		return "", fmt.Errorf("failed to generate totp code: %w", err)
	}
	return code, nil
}
