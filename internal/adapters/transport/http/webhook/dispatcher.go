// Package webhook is the HTTP ingress for Telegram Bot API updates.
//
// Every structurally valid update is acknowledged with 200 before any
// processing starts. Telegram treats anything else as a reason to redeliver,
// so failures after the ack are logged and, where possible, reported to the
// user who sent the message.
package webhook

import (
	"context"
	"crypto/hmac"
	"io"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Miraines/MoonyAndStarry/telegram-service/internal/adapters/telegram"
	"github.com/Miraines/MoonyAndStarry/telegram-service/internal/domain/telegram/update"
	"github.com/Miraines/MoonyAndStarry/telegram-service/internal/infra/metrics"
)

const (
	SecretHeader = "X-Telegram-Bot-Api-Secret-Token"

	maxBodySize = 1 << 20

	fallbackText = "Sorry, something went wrong while processing your message. Please try again later."
)

type UpdateHandler interface {
	HandleUpdate(ctx context.Context, u update.Update) error
}

type Notifier interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
}

type Deduper interface {
	FirstSeen(ctx context.Context, updateID int64) (bool, error)
}

// Submitter queues a task without blocking; *Pool and *workerpool.WorkerPool fit.
type Submitter interface {
	Submit(task func())
}

type InfoSource interface {
	GetWebhookInfo(ctx context.Context) (telegram.WebhookInfo, error)
}

type Dispatcher struct {
	handler  UpdateHandler
	notifier Notifier
	pool     Submitter
	log      *zap.Logger

	dedup  Deduper
	info   InfoSource
	secret string
	corrID func() string
}

type Option func(*Dispatcher)

// WithSecret requires the X-Telegram-Bot-Api-Secret-Token header to equal s.
func WithSecret(s string) Option {
	return func(d *Dispatcher) { d.secret = s }
}

func WithDeduper(dd Deduper) Option {
	return func(d *Dispatcher) { d.dedup = dd }
}

func WithInfoSource(src InfoSource) Option {
	return func(d *Dispatcher) { d.info = src }
}

func WithCorrelationID(gen func() string) Option {
	return func(d *Dispatcher) { d.corrID = gen }
}

func New(handler UpdateHandler, notifier Notifier, pool Submitter, log *zap.Logger, opts ...Option) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	d := &Dispatcher{
		handler:  handler,
		notifier: notifier,
		pool:     pool,
		log:      log,
		corrID:   shortID,
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

func shortID() string {
	return uuid.NewString()[:8]
}

func (d *Dispatcher) Handle(c *gin.Context) {
	corr := d.corrID()
	log := d.log.With(zap.String("corr", corr))

	if c.Request.Method != http.MethodPost {
		c.AbortWithStatus(http.StatusMethodNotAllowed)
		return
	}

	if d.secret != "" && !hmac.Equal([]byte(c.GetHeader(SecretHeader)), []byte(d.secret)) {
		log.Warn("webhook: secret token mismatch", zap.String("remote", c.ClientIP()))
		metrics.WebhookUpdates.WithLabelValues(metrics.OutcomeRejected).Inc()
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var body []byte
	if c.Request.Body != nil {
		var err error
		body, err = io.ReadAll(io.LimitReader(c.Request.Body, maxBodySize))
		if err != nil {
			log.Warn("webhook: read body", zap.Error(err))
			body = nil
		}
	}

	u, err := update.Parse(body)
	if err != nil {
		log.Warn("webhook: rejected update", zap.Int("size", len(body)))
		metrics.WebhookUpdates.WithLabelValues(metrics.OutcomeRejected).Inc()
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "No update in body"})
		return
	}

	log = log.With(zap.Int64("update_id", u.ID))
	c.JSON(http.StatusOK, gin.H{"ok": true})
	c.Writer.Flush()
	metrics.WebhookUpdates.WithLabelValues(metrics.OutcomeAccepted).Inc()

	ctx := context.WithoutCancel(c.Request.Context())
	d.pool.Submit(func() { d.process(ctx, u, log) })
}

func (d *Dispatcher) process(ctx context.Context, u update.Update, log *zap.Logger) {
	if d.dedup != nil && u.ID != 0 {
		first, err := d.dedup.FirstSeen(ctx, u.ID)
		switch {
		case err != nil:
			log.Warn("webhook: dedup unavailable, processing anyway", zap.Error(err))
		case !first:
			log.Info("webhook: duplicate update skipped")
			metrics.WebhookUpdates.WithLabelValues(metrics.OutcomeDuplicate).Inc()
			return
		}
	}

	start := time.Now()
	err := d.invoke(ctx, u)
	metrics.UpdateHandlingDuration.Observe(time.Since(start).Seconds())

	if err == nil {
		metrics.WebhookUpdates.WithLabelValues(metrics.OutcomeHandled).Inc()
		log.Debug("webhook: update handled", zap.Duration("took", time.Since(start)))
		return
	}

	metrics.WebhookUpdates.WithLabelValues(metrics.OutcomeFailed).Inc()
	log.Error("webhook: update handler failed", zap.Error(err))
	d.notify(ctx, u, log)
}

func (d *Dispatcher) invoke(ctx context.Context, u update.Update) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Newf("panic in update handler: %v", r)
		}
	}()
	return d.handler.HandleUpdate(ctx, u)
}

func (d *Dispatcher) notify(ctx context.Context, u update.Update, log *zap.Logger) {
	chatID := u.SenderID()
	if chatID == 0 || d.notifier == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			metrics.WebhookUpdates.WithLabelValues(metrics.OutcomeNotifyFailed).Inc()
			log.Error("webhook: panic in fallback notify", zap.Any("recover", r))
		}
	}()

	if err := d.notifier.SendMessage(ctx, chatID, fallbackText); err != nil {
		metrics.WebhookUpdates.WithLabelValues(metrics.OutcomeNotifyFailed).Inc()
		log.Error("webhook: fallback notify failed", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

// Info reports the webhook registration as Telegram sees it.
func (d *Dispatcher) Info(c *gin.Context) {
	if d.info == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "bot is not configured"})
		return
	}
	info, err := d.info.GetWebhookInfo(c.Request.Context())
	switch {
	case errors.Is(err, telegram.ErrNoToken):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "bot is not configured"})
	case err != nil:
		d.log.Error("webhook: getWebhookInfo", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "telegram api unavailable"})
	default:
		c.JSON(http.StatusOK, info)
	}
}
