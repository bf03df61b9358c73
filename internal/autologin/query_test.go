package autologin

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractRequestToken(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		want    string
		wantErr error
	}{
		{
			name: "token between other params",
			url:  "https://x/y?a=1&request_token=R1&b=2",
			want: "R1",
		},
		{
			name: "percent encoded value",
			url:  "https://app.example/cb?request_token=ab%2Fcd%3D%3D&status=success",
			want: "ab/cd==",
		},
		{
			name: "last value wins",
			url:  "https://app.example/cb?request_token=first&request_token=second",
			want: "second",
		},
		{
			name: "value containing equals sign",
			url:  "https://app.example/cb?request_token=a=b",
			want: "a=b",
		},
		{
			name: "badly escaped unrelated param",
			url:  "https://x/y?utm=100%&request_token=R1",
			want: "R1",
		},
		{
			name: "badly escaped unrelated key",
			url:  "https://127.0.0.1/?%zz=1&request_token=R2&status=success",
			want: "R2",
		},
		{
			name: "bad escape in earlier token overridden by good one",
			url:  "https://x/y?request_token=%zz&request_token=R3",
			want: "R3",
		},
		{
			name:    "no request token",
			url:     "https://x/y?a=1&b=2",
			wantErr: ErrRedirectNotReached,
		},
		{
			name:    "no query at all",
			url:     "https://x/y",
			wantErr: ErrRedirectNotReached,
		},
		{
			name:    "empty request token",
			url:     "https://x/y?request_token=",
			wantErr: ErrRedirectNotReached,
		},
		{
			name:    "bad escape",
			url:     "https://x/y?request_token=%zz",
			wantErr: ErrRedirectNotReached,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractRequestToken(tt.url)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseQuery(t *testing.T) {
	pairs, err := ParseQuery("https://app.example/cb?status=success&flag&name=a+b&k%20ey=v&utm=100%")
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"status": "success",
		"flag":   "",
		"name":   "a b",
		"k ey":   "v",
		"utm":    "100%",
	}, pairs)
}
