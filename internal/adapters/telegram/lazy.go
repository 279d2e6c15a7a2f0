package telegram

import (
	"context"
	"sync"
)

// Lazy builds the bot client on first use and hands the same instance to
// every later caller. A construction failure is remembered as well, so a
// missing token is reported consistently without retrying.
type Lazy struct {
	once    sync.Once
	factory func() (*Client, error)

	client *Client
	err    error
}

func NewLazy(factory func() (*Client, error)) *Lazy {
	return &Lazy{factory: factory}
}

// NewLazyFromToken is the production factory: a req client bound to token.
func NewLazyFromToken(token string) *Lazy {
	return NewLazy(func() (*Client, error) {
		return NewClient(token, nil)
	})
}

func (l *Lazy) Get() (*Client, error) {
	l.once.Do(func() {
		l.client, l.err = l.factory()
	})
	return l.client, l.err
}

func (l *Lazy) SendMessage(ctx context.Context, chatID int64, text string) error {
	cl, err := l.Get()
	if err != nil {
		return err
	}
	return cl.SendMessage(ctx, chatID, text)
}

func (l *Lazy) GetWebhookInfo(ctx context.Context) (WebhookInfo, error) {
	cl, err := l.Get()
	if err != nil {
		return WebhookInfo{}, err
	}
	return cl.GetWebhookInfo(ctx)
}
