package initdata

import (
	"net/url"
	"strconv"
	"time"

	telegramloginwidget "github.com/LipsarHQ/go-telegram-login-widget"
)

// CheckWidget verifies Telegram Login Widget fields. Unlike Mini App
// payloads the widget signs with SHA256(botToken) as the HMAC key.
// params must not contain "hash".
func CheckWidget(params map[string]string, hash, botToken string, now time.Time, maxAge time.Duration) error {
	if len(params) == 0 || hash == "" || botToken == "" {
		return ErrMissingInput
	}

	q := url.Values{}
	for k, v := range params {
		q.Set(k, v)
	}
	q.Set("hash", hash)

	authData, err := telegramloginwidget.NewFromQuery(q)
	if err != nil || authData.Check(botToken) != nil {
		return ErrInvalidSignature
	}

	authUnix, err := strconv.ParseInt(params["auth_date"], 10, 64)
	if err != nil {
		return ErrMissingAuthDate
	}
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	if expired(authUnix, now, maxAge) {
		return ErrExpired
	}
	return nil
}
