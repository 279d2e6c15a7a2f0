package initdata

import (
	"time"

	"github.com/cockroachdb/errors"
)

// Verifier binds a bot token, a max age and a clock for repeated checks.
type Verifier struct {
	BotToken string
	MaxAge   time.Duration
	Now      func() time.Time
}

func NewVerifier(botToken string, maxAge time.Duration) *Verifier {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	return &Verifier{BotToken: botToken, MaxAge: maxAge, Now: time.Now}
}

// Configured reports whether a bot token is available to check signatures.
func (v *Verifier) Configured() bool {
	return v != nil && v.BotToken != ""
}

func (v *Verifier) Verify(initData string) (Result, error) {
	now := time.Now
	if v.Now != nil {
		now = v.Now
	}
	maxAge := v.MaxAge
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	return verify(initData, v.BotToken, now().UTC(), maxAge)
}

var reasons = []struct {
	err    error
	reason string
}{
	{ErrMissingInput, "missing_input"},
	{ErrInvalidSignature, "invalid_signature"},
	{ErrMissingAuthDate, "missing_auth_date"},
	{ErrExpired, "expired"},
	{ErrMissingUser, "missing_user"},
	{ErrMalformedUser, "malformed_user"},
}

// Reason returns the machine-readable reason for a verification failure,
// or "" when err does not come from this package.
func Reason(err error) string {
	for _, r := range reasons {
		if errors.Is(err, r.err) {
			return r.reason
		}
	}
	return ""
}
