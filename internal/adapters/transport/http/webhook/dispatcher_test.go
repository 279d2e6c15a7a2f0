package webhook

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gammazero/workerpool"
	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	redisrepo "github.com/Miraines/MoonyAndStarry/telegram-service/internal/adapters/db/redis"
	"github.com/Miraines/MoonyAndStarry/telegram-service/internal/adapters/telegram"
	"github.com/Miraines/MoonyAndStarry/telegram-service/internal/domain/telegram/update"
)

const sampleUpdate = `{"update_id":100,"message":{"message_id":1,"from":{"id":42},"chat":{"id":42},"text":"hi"}}`

type handlerFunc func(ctx context.Context, u update.Update) error

func (f handlerFunc) HandleUpdate(ctx context.Context, u update.Update) error { return f(ctx, u) }

type recordingHandler struct {
	mu    sync.Mutex
	calls []update.Update
	err   error
}

func (h *recordingHandler) HandleUpdate(_ context.Context, u update.Update) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = append(h.calls, u)
	return h.err
}

func (h *recordingHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.calls)
}

type notice struct {
	chatID int64
	text   string
}

type stubNotifier struct {
	mu   sync.Mutex
	sent []notice
	err  error
}

func (n *stubNotifier) SendMessage(_ context.Context, chatID int64, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notice{chatID, text})
	return n.err
}

type stubDeduper struct {
	err error
}

func (s stubDeduper) FirstSeen(context.Context, int64) (bool, error) { return false, s.err }

func newRouter(d *Dispatcher) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.POST("/api/telegram/webhook", d.Handle)
	r.GET("/api/telegram/webhook", d.Info)
	return r
}

func post(r http.Handler, body string, hdr ...string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/telegram/webhook", strings.NewReader(body))
	for i := 0; i+1 < len(hdr); i += 2 {
		req.Header.Set(hdr[i], hdr[i+1])
	}
	r.ServeHTTP(w, req)
	return w
}

func TestHandle_AcksBeforeProcessing(t *testing.T) {
	gate := make(chan struct{})
	started := make(chan struct{})
	done := make(chan struct{})
	h := handlerFunc(func(ctx context.Context, u update.Update) error {
		close(started)
		<-gate
		assert.NoError(t, ctx.Err())
		close(done)
		return nil
	})

	pool := workerpool.New(2)
	srv := httptest.NewServer(newRouter(New(h, nil, pool, nil)))
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/telegram/webhook", "application/json", strings.NewReader(sampleUpdate))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	select {
	case <-done:
		t.Fatal("handler finished before the gate was released")
	default:
	}

	<-started
	close(gate)
	pool.StopWait()
	<-done
}

func TestHandle_OkBody(t *testing.T) {
	h := &recordingHandler{}
	pool := workerpool.New(1)
	w := post(newRouter(New(h, nil, pool, nil)), sampleUpdate)
	pool.StopWait()

	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"ok":true}`, w.Body.String())
	require.Equal(t, 1, h.count())
	require.Equal(t, int64(100), h.calls[0].ID)
	require.Equal(t, int64(42), h.calls[0].SenderID())
}

func TestHandle_EmptyOrInvalidBody(t *testing.T) {
	for _, body := range []string{"", "null", "[1,2]", "not json", `"str"`} {
		h := &recordingHandler{}
		pool := workerpool.New(1)
		w := post(newRouter(New(h, nil, pool, nil)), body)
		pool.StopWait()

		require.Equal(t, http.StatusBadRequest, w.Code, "body %q", body)
		require.JSONEq(t, `{"error":"No update in body"}`, w.Body.String())
		require.Zero(t, h.count(), "body %q", body)
	}
}

func TestHandle_MethodNotAllowed(t *testing.T) {
	h := &recordingHandler{}
	pool := workerpool.New(1)
	d := New(h, nil, pool, nil)
	r := newRouter(d)

	for _, m := range []string{http.MethodPut, http.MethodDelete, http.MethodPatch} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(m, "/api/telegram/webhook", strings.NewReader(sampleUpdate)))
		require.Equal(t, http.StatusMethodNotAllowed, w.Code, m)
	}

	// mounted with Any the handler still refuses anything but POST
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	d.Handle(c)
	require.Equal(t, http.StatusMethodNotAllowed, w.Code)

	pool.StopWait()
	require.Zero(t, h.count())
}

func TestHandle_SecretToken(t *testing.T) {
	h := &recordingHandler{}
	pool := workerpool.New(1)
	r := newRouter(New(h, nil, pool, nil, WithSecret("s3cret")))

	require.Equal(t, http.StatusUnauthorized, post(r, sampleUpdate).Code)
	require.Equal(t, http.StatusUnauthorized, post(r, sampleUpdate, SecretHeader, "wrong").Code)
	require.Equal(t, http.StatusOK, post(r, sampleUpdate, SecretHeader, "s3cret").Code)

	pool.StopWait()
	require.Equal(t, 1, h.count())
}

func TestHandle_HandlerErrorNotifiesSender(t *testing.T) {
	h := &recordingHandler{err: errors.New("downstream down")}
	n := &stubNotifier{}
	core, logs := observer.New(zap.DebugLevel)
	pool := workerpool.New(1)

	w := post(newRouter(New(h, n, pool, zap.New(core))), sampleUpdate)
	pool.StopWait()

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, []notice{{42, fallbackText}}, n.sent)

	failed := logs.FilterMessage("webhook: update handler failed").All()
	require.Len(t, failed, 1)
	require.Equal(t, int64(100), failed[0].ContextMap()["update_id"])
	require.Len(t, failed[0].ContextMap()["corr"], 8)
}

func TestHandle_NotifyFailureOnlyLogged(t *testing.T) {
	h := &recordingHandler{err: errors.New("boom")}
	n := &stubNotifier{err: errors.New("bot was blocked")}
	core, logs := observer.New(zap.DebugLevel)
	pool := workerpool.New(1)

	w := post(newRouter(New(h, n, pool, zap.New(core))), sampleUpdate)
	pool.StopWait()

	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, n.sent, 1)
	require.Equal(t, 1, logs.FilterMessage("webhook: fallback notify failed").Len())
}

func TestHandle_PanicRecovered(t *testing.T) {
	h := handlerFunc(func(context.Context, update.Update) error { panic("nil map") })
	n := &stubNotifier{}
	core, logs := observer.New(zap.DebugLevel)
	pool := workerpool.New(1)

	w := post(newRouter(New(h, n, pool, zap.New(core))), sampleUpdate)
	pool.StopWait()

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, []notice{{42, fallbackText}}, n.sent)
	entries := logs.FilterMessage("webhook: update handler failed").All()
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].ContextMap()["error"], "nil map")
}

func TestHandle_NoSenderNoNotify(t *testing.T) {
	h := &recordingHandler{err: errors.New("boom")}
	n := &stubNotifier{}
	pool := workerpool.New(1)

	post(newRouter(New(h, n, pool, nil)), `{"update_id":5,"channel_post":{"message_id":1}}`)
	pool.StopWait()

	require.Equal(t, 1, h.count())
	require.Empty(t, n.sent)
}

func TestHandle_DuplicateSkipped(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	defer client.Close()

	h := &recordingHandler{}
	pool := workerpool.New(1)
	r := newRouter(New(h, nil, pool, nil, WithDeduper(redisrepo.NewUpdateDeduper(client, time.Hour))))

	require.Equal(t, http.StatusOK, post(r, sampleUpdate).Code)
	require.Equal(t, http.StatusOK, post(r, sampleUpdate).Code)
	pool.StopWait()

	require.Equal(t, 1, h.count())
	require.True(t, mr.Exists("tg:update:100"))
}

func TestHandle_DedupErrorStillProcesses(t *testing.T) {
	h := &recordingHandler{}
	pool := workerpool.New(1)
	r := newRouter(New(h, nil, pool, nil, WithDeduper(stubDeduper{err: errors.New("redis down")})))

	post(r, sampleUpdate)
	pool.StopWait()
	require.Equal(t, 1, h.count())
}

func TestHandle_CorrelationIDOnEveryLine(t *testing.T) {
	h := &recordingHandler{err: errors.New("x")}
	core, logs := observer.New(zap.DebugLevel)
	pool := workerpool.New(1)

	post(newRouter(New(h, &stubNotifier{}, pool, zap.New(core), WithCorrelationID(func() string { return "abcd1234" }))), sampleUpdate)
	pool.StopWait()

	require.NotZero(t, logs.Len())
	for _, e := range logs.All() {
		require.Equal(t, "abcd1234", e.ContextMap()["corr"], e.Message)
	}
}

type stubInfo struct {
	info telegram.WebhookInfo
	err  error
}

func (s stubInfo) GetWebhookInfo(context.Context) (telegram.WebhookInfo, error) { return s.info, s.err }

func TestInfo(t *testing.T) {
	get := func(d *Dispatcher) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		newRouter(d).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/telegram/webhook", nil))
		return w
	}

	w := get(New(nil, nil, nil, nil, WithInfoSource(stubInfo{info: telegram.WebhookInfo{URL: "https://x/hook"}})))
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"url":"https://x/hook"`)

	w = get(New(nil, nil, nil, nil, WithInfoSource(stubInfo{err: telegram.ErrNoToken})))
	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = get(New(nil, nil, nil, nil, WithInfoSource(stubInfo{err: errors.New("timeout")})))
	require.Equal(t, http.StatusBadGateway, w.Code)

	w = get(New(nil, nil, nil, nil))
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
}
