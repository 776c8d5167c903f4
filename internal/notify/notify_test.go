package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/valuescope/internal/contracts"
	"github.com/wonny/valuescope/pkg/config"
	"github.com/wonny/valuescope/pkg/httputil"
	"github.com/wonny/valuescope/pkg/logger"
)

func sampleNotification(ch contracts.Channel) contracts.Notification {
	return contracts.Notification{
		RuleID:         "rule-1",
		Owner:          "u1",
		Channel:        ch,
		StockCode:      "600519",
		Condition:      contracts.Condition{Metric: contracts.MetricPE, Comparator: contracts.LT, Threshold: 20},
		TriggeredValue: 18,
		TriggeredAt:    time.Date(2025, 6, 30, 15, 0, 0, 0, time.UTC),
	}
}

func TestDispatcher_Routes(t *testing.T) {
	var got []contracts.Channel
	record := func(ch contracts.Channel) contracts.AlertSink {
		return contracts.AlertSinkFunc(func(context.Context, contracts.Notification) error {
			got = append(got, ch)
			return nil
		})
	}

	d := NewDispatcher(100, 10, logger.Nop()).
		Register(contracts.ChannelEmail, record(contracts.ChannelEmail)).
		Register(contracts.ChannelPush, record(contracts.ChannelPush))

	require.NoError(t, d.Notify(context.Background(), sampleNotification(contracts.ChannelPush)))
	require.NoError(t, d.Notify(context.Background(), sampleNotification(contracts.ChannelEmail)))
	assert.Equal(t, []contracts.Channel{contracts.ChannelPush, contracts.ChannelEmail}, got)
	assert.Equal(t, []contracts.Channel{contracts.ChannelEmail, contracts.ChannelPush}, d.Channels())

	err := d.Notify(context.Background(), sampleNotification(contracts.ChannelWeChat))
	assert.ErrorIs(t, err, ErrChannelUnavailable)
}

func TestDispatcher_ThrottleRespectsContext(t *testing.T) {
	noop := contracts.AlertSinkFunc(func(context.Context, contracts.Notification) error { return nil })
	d := NewDispatcher(0.001, 1, logger.Nop()).Register(contracts.ChannelPush, noop)

	require.NoError(t, d.Notify(context.Background(), sampleNotification(contracts.ChannelPush)))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.Error(t, d.Notify(ctx, sampleNotification(contracts.ChannelPush)))
}

func TestDispatcher_WrapsSinkError(t *testing.T) {
	boom := errors.New("boom")
	failing := contracts.AlertSinkFunc(func(context.Context, contracts.Notification) error { return boom })
	d := NewDispatcher(100, 10, logger.Nop()).Register(contracts.ChannelEmail, failing)

	err := d.Notify(context.Background(), sampleNotification(contracts.ChannelEmail))
	assert.ErrorIs(t, err, boom)
}

func TestOwnerOrDefault(t *testing.T) {
	resolve := OwnerOrDefault("ops@example.com")

	to, err := resolve("alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", to)

	to, err = resolve("u1")
	require.NoError(t, err)
	assert.Equal(t, "ops@example.com", to)

	_, err = OwnerOrDefault("")("u1")
	assert.Error(t, err)
}

func TestEmailSink_ComposesMessage(t *testing.T) {
	sink := NewEmailSink(config.NotifyConfig{}, OwnerOrDefault("ops@example.com"))

	var to, subject, body string
	sink.send = func(_ context.Context, rcpt, subj, html string) error {
		to, subject, body = rcpt, subj, html
		return nil
	}

	require.NoError(t, sink.Notify(context.Background(), sampleNotification(contracts.ChannelEmail)))
	assert.Equal(t, "ops@example.com", to)
	assert.Equal(t, "[valuescope] 600519 pe_ttm < 20", subject)
	assert.Contains(t, body, "rule-1")
	assert.Contains(t, body, "18")
}

func TestEmailSink_Unconfigured(t *testing.T) {
	sink := NewEmailSink(config.NotifyConfig{}, OwnerOrDefault("ops@example.com"))
	assert.Error(t, sink.Notify(context.Background(), sampleNotification(contracts.ChannelEmail)))
}

func webhookClient() *httputil.Client {
	cfg := &config.Config{Alert: config.AlertConfig{SinkTimeout: time.Second}}
	return httputil.New(cfg, logger.Nop()).DisableRetry()
}

func TestWeChatSink(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var msg wechatMarkdown
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&msg))
		assert.Equal(t, "markdown", msg.MsgType)
		assert.Contains(t, msg.Markdown.Content, "pe_ttm < 20")
		_, _ = w.Write([]byte(`{"errcode":0,"errmsg":"ok"}`))
	}))
	defer server.Close()

	sink := NewWeChatSink(webhookClient(), server.URL)
	assert.NoError(t, sink.Notify(context.Background(), sampleNotification(contracts.ChannelWeChat)))
}

func TestWeChatSink_ProviderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"errcode":93000,"errmsg":"invalid webhook url"}`))
	}))
	defer server.Close()

	sink := NewWeChatSink(webhookClient(), server.URL)
	err := sink.Notify(context.Background(), sampleNotification(contracts.ChannelWeChat))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "93000")

	assert.Error(t, NewWeChatSink(webhookClient(), "").Notify(context.Background(), sampleNotification(contracts.ChannelWeChat)))
}

func TestHub_DeliversToOwner(t *testing.T) {
	hub := NewHub(logger.Nop())
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = hub.ServeWS(w, r, r.URL.Query().Get("owner"))
	}))
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "?owner=u1"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.Subscribers("u1") == 1 }, time.Second, 5*time.Millisecond)

	assert.ErrorIs(t, hub.Notify(context.Background(), contracts.Notification{Owner: "u2"}), ErrNoSubscriber)
	require.NoError(t, hub.Notify(context.Background(), sampleNotification(contracts.ChannelPush)))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got contracts.Notification
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, "rule-1", got.RuleID)
	assert.Equal(t, 18.0, got.TriggeredValue)

	conn.Close()
	assert.Eventually(t, func() bool { return hub.Subscribers("u1") == 0 }, time.Second, 5*time.Millisecond)
}
