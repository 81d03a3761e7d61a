package exchange

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// ErrTokenExpired is returned when the access token file exists but its
// expiry has passed. The engine treats this as a precondition fault and
// aborts before issuing any remote call.
var ErrTokenExpired = errors.New("access token expired")

// AccessToken is the token file written by the external login flow.
// This process only ever reads it.
type AccessToken struct {
	AccessToken string `json:"access_token"`
	ExpiresAt   string `json:"expires_at"`
	CreatedAt   string `json:"created_at,omitempty"`
}

// tokenTimeLayouts covers ISO-8601 timestamps with and without zone or
// fractional seconds, as written by the login flow.
var tokenTimeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
}

// Expiry parses the token's expires_at timestamp.
func (t *AccessToken) Expiry() (time.Time, error) {
	raw := strings.TrimSpace(t.ExpiresAt)
	for _, layout := range tokenTimeLayouts {
		if ts, err := time.ParseInLocation(layout, raw, time.Local); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable expires_at %q", t.ExpiresAt)
}

// Valid reports whether the token is usable at the given instant.
func (t *AccessToken) Valid(now time.Time) bool {
	if t.AccessToken == "" {
		return false
	}
	expiry, err := t.Expiry()
	if err != nil {
		return false
	}
	return now.Before(expiry)
}

// LoadToken reads and validates the access token file. A missing or
// unreadable file, malformed JSON, or a passed expiry are all fatal to
// the caller: no remote call may be issued without a live token.
func LoadToken(path string) (*AccessToken, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read token file %s: %w", path, err)
	}

	var token AccessToken
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("failed to parse token file %s: %w", path, err)
	}

	if token.AccessToken == "" {
		return nil, fmt.Errorf("token file %s has no access_token", path)
	}

	expiry, err := token.Expiry()
	if err != nil {
		return nil, fmt.Errorf("token file %s: %w", path, err)
	}
	if !time.Now().Before(expiry) {
		return nil, fmt.Errorf("token file %s: %w (expired at %s)", path, ErrTokenExpired, expiry.Format("2006-01-02 15:04"))
	}

	return &token, nil
}

// ReadTokenStatus reports token validity and expiry for the monitor's
// status endpoint. It never fails; an unreadable or malformed file is
// simply an invalid token.
func ReadTokenStatus(path string) (valid bool, expiry string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return false, "Unknown"
	}

	var token AccessToken
	if err := json.Unmarshal(data, &token); err != nil {
		return false, "Unknown"
	}

	ts, err := token.Expiry()
	if err != nil {
		return false, "Unknown"
	}

	return token.Valid(time.Now()), ts.Format("2006-01-02 15:04")
}
