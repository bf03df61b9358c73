package autologin

import (
	"fmt"
	"net/url"
	"strings"
)

// RequestTokenParam is the query key carrying the exchange token
const RequestTokenParam = "request_token"

type rawPair struct {
	key, value string
}

// rawPairs splits the query string of rawURL without decoding it
func rawPairs(rawURL string) ([]rawPair, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redirect url: %w", err)
	}
	var pairs []rawPair
	for _, pair := range strings.Split(u.RawQuery, "&") {
		if pair == "" {
			continue
		}
		key, value, _ := strings.Cut(pair, "=")
		pairs = append(pairs, rawPair{key: key, value: value})
	}
	return pairs, nil
}

// unescapeLenient decodes s, keeping it as-is when it is not valid
// percent-encoding
func unescapeLenient(s string) string {
	if decoded, err := url.QueryUnescape(s); err == nil {
		return decoded
	}
	return s
}

// ParseQuery splits the query string of rawURL into key/value pairs. Keys and
// values are percent-decoded and the last value wins on duplicate keys. A
// pair without '=' maps the key to the empty string. Badly escaped keys or
// values are kept raw.
func ParseQuery(rawURL string) (map[string]string, error) {
	pairs, err := rawPairs(rawURL)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		out[unescapeLenient(p.key)] = unescapeLenient(p.value)
	}
	return out, nil
}

// ExtractRequestToken returns the request_token carried by a redirect URL.
// A URL that parses but has no (or an empty) token is RedirectNotReached, as
// is a token that is not valid percent-encoding. Other parameters are never
// decoded strictly, so junk in them does not hide the token.
func ExtractRequestToken(rawURL string) (string, error) {
	pairs, err := rawPairs(rawURL)
	if err != nil {
		return "", &AutomationError{Kind: KindRedirectNotReached, Step: "parse redirect", Err: err}
	}

	var token string
	var tokenErr error
	for _, p := range pairs {
		if unescapeLenient(p.key) != RequestTokenParam {
			continue
		}
		token, tokenErr = url.QueryUnescape(p.value)
	}
	if tokenErr != nil {
		return "", &AutomationError{
			Kind: KindRedirectNotReached,
			Step: "parse redirect",
			Err:  fmt.Errorf("invalid %s value: %w", RequestTokenParam, tokenErr),
		}
	}
	if token == "" {
		return "", &AutomationError{Kind: KindRedirectNotReached, Step: "parse redirect"}
	}
	return token, nil
}
