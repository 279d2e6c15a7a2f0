package telegram

import (
	"context"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/imroc/req/v3"
)

const (
	apiBase        = "https://api.telegram.org"
	requestTimeout = 15 * time.Second
)

var ErrNoToken = errors.New("telegram: bot token is not configured")

// WebhookInfo mirrors the Bot API getWebhookInfo result.
type WebhookInfo struct {
	URL                  string `json:"url"`
	HasCustomCertificate bool   `json:"has_custom_certificate"`
	PendingUpdateCount   int    `json:"pending_update_count"`
	LastErrorDate        int64  `json:"last_error_date,omitempty"`
	LastErrorMessage     string `json:"last_error_message,omitempty"`
	MaxConnections       int    `json:"max_connections,omitempty"`
}

type apiResponse[T any] struct {
	Ok          bool   `json:"ok"`
	Description string `json:"description,omitempty"`
	Result      T      `json:"result"`
}

type Client struct {
	client   *req.Client
	apiToken string
}

func NewClient(
	apiToken string,
	cl *req.Client,
) (*Client, error) {
	if apiToken == "" {
		return nil, ErrNoToken
	}
	if cl == nil {
		cl = req.C().SetTimeout(requestTimeout)
	}
	return &Client{
		client:   cl,
		apiToken: apiToken,
	}, nil
}

func (t *Client) url(method string) string {
	return fmt.Sprintf("%v/bot%v/%v", apiBase, t.apiToken, method)
}

func (t *Client) SendMessage(
	ctx context.Context,
	chatID int64,
	text string,
) error {
	_, err := call[any](ctx, t, "sendMessage", map[string]interface{}{
		"chat_id": chatID,
		"text":    text,
	})
	return err
}

// SetWebhook registers url with Telegram. A non-empty secret is echoed back
// by Telegram in X-Telegram-Bot-Api-Secret-Token on every delivery.
func (t *Client) SetWebhook(
	ctx context.Context,
	url string,
	secret string,
) error {
	body := map[string]interface{}{
		"url":             url,
		"allowed_updates": []string{"message", "callback_query"},
	}
	if secret != "" {
		body["secret_token"] = secret
	}
	_, err := call[bool](ctx, t, "setWebhook", body)
	return err
}

func (t *Client) DeleteWebhook(ctx context.Context, dropPending bool) error {
	_, err := call[bool](ctx, t, "deleteWebhook", map[string]interface{}{
		"drop_pending_updates": dropPending,
	})
	return err
}

func (t *Client) GetWebhookInfo(ctx context.Context) (WebhookInfo, error) {
	return call[WebhookInfo](ctx, t, "getWebhookInfo", map[string]interface{}{})
}

func call[T any](ctx context.Context, t *Client, method string, body map[string]interface{}) (T, error) {
	var out apiResponse[T]
	var zero T

	resp, err := t.client.R().
		SetBody(body).
		SetContext(ctx).
		SetSuccessResult(&out).
		SetErrorResult(&out).
		Post(t.url(method))
	if err != nil {
		return zero, errors.Wrapf(err, "telegram %v", method)
	}

	if resp.IsErrorState() {
		return zero, errors.Newf("telegram %v: unexpected status code: %v and message %v",
			method, resp.StatusCode, out.Description)
	}
	if !out.Ok {
		return zero, errors.Newf("telegram %v: %v", method, out.Description)
	}

	return out.Result, nil
}
