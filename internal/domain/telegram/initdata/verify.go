// Package initdata verifies the signed init_data payload a Telegram Mini App
// passes to its backend and extracts the Telegram identity from it.
//
// See https://core.telegram.org/bots/webapps#validating-data-received-via-the-mini-app
package initdata

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

// DefaultMaxAge is how long a signed payload stays valid after auth_date.
const DefaultMaxAge = 24 * time.Hour

const webAppDataKey = "WebAppData"

var (
	ErrMissingInput     = errors.New("init data: missing input")
	ErrInvalidSignature = errors.New("init data: invalid signature")
	ErrMissingAuthDate  = errors.New("init data: missing auth_date")
	ErrExpired          = errors.New("init data: expired")
	ErrMissingUser      = errors.New("init data: missing user")
	ErrMalformedUser    = errors.New("init data: malformed user")
)

// Identity is the Telegram user asserted by a verified payload.
type Identity struct {
	ID           int64  `json:"id"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name,omitempty"`
	Username     string `json:"username,omitempty"`
	LanguageCode string `json:"language_code,omitempty"`
	PhotoURL     string `json:"photo_url,omitempty"`
	IsPremium    bool   `json:"is_premium,omitempty"`
}

// Result is the decoded content of a payload that passed verification.
type Result struct {
	User       Identity
	AuthDate   time.Time
	QueryID    string
	StartParam string
}

// Verify checks initData against botToken at the instant now using the
// default max age.
func Verify(initData, botToken string, now time.Time) (Result, error) {
	return verify(initData, botToken, now, DefaultMaxAge)
}

func verify(initData, botToken string, now time.Time, maxAge time.Duration) (Result, error) {
	if initData == "" || botToken == "" {
		return Result{}, ErrMissingInput
	}

	pairs, err := parsePairs(initData)
	if err != nil {
		return Result{}, ErrInvalidSignature
	}

	hash, ok := pairs["hash"]
	if !ok || hash == "" {
		return Result{}, ErrInvalidSignature
	}
	delete(pairs, "hash")

	expected := Sign(pairs, botToken)
	if !hmac.Equal([]byte(expected), []byte(hash)) {
		return Result{}, ErrInvalidSignature
	}

	rawDate, ok := pairs["auth_date"]
	if !ok {
		return Result{}, ErrMissingAuthDate
	}
	authUnix, err := strconv.ParseInt(rawDate, 10, 64)
	if err != nil {
		return Result{}, ErrMissingAuthDate
	}
	if expired(authUnix, now, maxAge) {
		return Result{}, ErrExpired
	}

	rawUser, ok := pairs["user"]
	if !ok {
		return Result{}, ErrMissingUser
	}
	user, err := decodeUser(rawUser)
	if err != nil {
		return Result{}, err
	}

	return Result{
		User:       user,
		AuthDate:   time.Unix(authUnix, 0).UTC(),
		QueryID:    pairs["query_id"],
		StartParam: pairs["start_param"],
	}, nil
}

// expired reports whether authUnix is at least maxAge old. A negative age
// (auth_date ahead of our clock) is accepted; pre-epoch dates are not.
func expired(authUnix int64, now time.Time, maxAge time.Duration) bool {
	if authUnix < 0 {
		return true
	}
	return now.Unix()-authUnix >= int64(maxAge/time.Second)
}

// DataCheckString renders pairs sorted by key as key=value lines.
func DataCheckString(pairs map[string]string) string {
	keys := make([]string, 0, len(pairs))
	for k := range pairs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for i, k := range keys {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(pairs[k])
	}
	return sb.String()
}

// Sign returns the hex signature Telegram would attach to pairs. A "hash"
// key in pairs is not excluded.
func Sign(pairs map[string]string, botToken string) string {
	secret := hmac.New(sha256.New, []byte(webAppDataKey))
	secret.Write([]byte(botToken))

	mac := hmac.New(sha256.New, secret.Sum(nil))
	mac.Write([]byte(DataCheckString(pairs)))
	return hex.EncodeToString(mac.Sum(nil))
}

// parsePairs decodes a query string keeping the last value of repeated keys.
func parsePairs(raw string) (map[string]string, error) {
	values, err := url.ParseQuery(raw)
	if err != nil {
		return nil, err
	}
	pairs := make(map[string]string, len(values))
	for k, v := range values {
		pairs[k] = v[len(v)-1]
	}
	return pairs, nil
}

func decodeUser(raw string) (Identity, error) {
	var head struct {
		ID *int64 `json:"id"`
	}
	if err := json.Unmarshal([]byte(raw), &head); err != nil || head.ID == nil {
		return Identity{}, ErrMalformedUser
	}

	var user Identity
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		return Identity{}, ErrMalformedUser
	}
	return user, nil
}
