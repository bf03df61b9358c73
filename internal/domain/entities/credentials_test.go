package entities

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func validCredentials() Credentials {
	return Credentials{
		UserID:       "AB1234",
		Password:     "hunter2",
		SecondFactor: "123456",
		APIKey:       "key",
		APISecret:    "secret",
		RedirectURL:  "https://app.example/callback",
	}
}

func TestCredentials_Validate(t *testing.T) {
	tests := []struct {
		name    string
		kind    SecondFactorKind
		factor  string
		wantErr bool
	}{
		{name: "pin by default", factor: "123456"},
		{name: "explicit pin", kind: SecondFactorPIN, factor: "123456"},
		{name: "totp seed", kind: SecondFactorTOTP, factor: "JBSWY3DPEHPK3PXP"},
		{name: "totp seed with spaces and lowercase", kind: SecondFactorTOTP, factor: "jbsw y3dp ehpk 3pxp"},
		{name: "totp seed not base32", kind: SecondFactorTOTP, factor: "not-a-base32-seed!!", wantErr: true},
		{name: "pin given as totp", kind: SecondFactorTOTP, factor: "123456", wantErr: true},
		{name: "unknown kind", kind: "sms", factor: "123456", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validCredentials()
			c.SecondFactorKind = tt.kind
			c.SecondFactor = tt.factor

			err := c.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestCredentials_MissingFields(t *testing.T) {
	c := validCredentials()
	c.Password = "  "
	c.RedirectURL = ""

	assert.Equal(t, []string{"password", "redirect_url"}, c.MissingFields())

	err := c.Validate()
	var mf *MissingFieldsError
	assert.ErrorAs(t, err, &mf)
	assert.Equal(t, []string{"password", "redirect_url"}, mf.Fields)
}
