// Package update holds the minimal view of a Telegram webhook update needed
// for routing, deduplication and fallback notification. The raw bytes are
// kept so handlers can decode whatever else they need.
package update

import (
	"bytes"
	"encoding/json"

	"github.com/cockroachdb/errors"
)

var ErrNotObject = errors.New("update: body is not a JSON object")

type User struct {
	ID int64 `json:"id"`
}

type Chat struct {
	ID int64 `json:"id"`
}

type Message struct {
	From *User `json:"from,omitempty"`
	Chat *Chat `json:"chat,omitempty"`
}

type Update struct {
	ID      int64    `json:"update_id"`
	Message *Message `json:"message,omitempty"`

	Raw json.RawMessage `json:"-"`
}

type envelope struct {
	ID      json.RawMessage `json:"update_id"`
	Message json.RawMessage `json:"message"`
}

type messageEnvelope struct {
	From json.RawMessage `json:"from"`
	Chat json.RawMessage `json:"chat"`
}

// Parse accepts any JSON object. Each field is decoded on its own, so one
// that does not match the expected shape is left zero without losing the
// others.
func Parse(body []byte) (Update, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' || !json.Valid(trimmed) {
		return Update{}, ErrNotObject
	}

	var env envelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return Update{}, ErrNotObject
	}

	u := Update{Raw: json.RawMessage(trimmed)}
	decodeField(env.ID, &u.ID)
	u.Message = parseMessage(env.Message)
	return u, nil
}

func parseMessage(raw json.RawMessage) *Message {
	var env messageEnvelope
	if !decodeField(raw, &env) {
		return nil
	}

	m := &Message{}
	var from User
	if decodeField(env.From, &from) {
		m.From = &from
	}
	var chat Chat
	if decodeField(env.Chat, &chat) {
		m.Chat = &chat
	}
	return m
}

// decodeField reports whether raw was present, non-null and of the
// expected type.
func decodeField(raw json.RawMessage, dst any) bool {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return false
	}
	return json.Unmarshal(raw, dst) == nil
}

// SenderID returns message.from.id, or 0 when the update has no sender.
func (u Update) SenderID() int64 {
	if u.Message == nil || u.Message.From == nil {
		return 0
	}
	return u.Message.From.ID
}

func (u Update) ChatID() int64 {
	if u.Message == nil || u.Message.Chat == nil {
		return 0
	}
	return u.Message.Chat.ID
}
