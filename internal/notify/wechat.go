package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/wonny/valuescope/internal/contracts"
	"github.com/wonny/valuescope/pkg/httputil"
)

// WeChatSink posts markdown messages to a WeCom group robot webhook
type WeChatSink struct {
	client     *httputil.Client
	webhookURL string
}

// NewWeChatSink creates a webhook sink
func NewWeChatSink(client *httputil.Client, webhookURL string) *WeChatSink {
	return &WeChatSink{client: client, webhookURL: webhookURL}
}

type wechatMarkdown struct {
	MsgType  string `json:"msgtype"`
	Markdown struct {
		Content string `json:"content"`
	} `json:"markdown"`
}

type wechatResponse struct {
	ErrCode int    `json:"errcode"`
	ErrMsg  string `json:"errmsg"`
}

// Notify implements contracts.AlertSink
func (s *WeChatSink) Notify(ctx context.Context, n contracts.Notification) error {
	if s.webhookURL == "" {
		return fmt.Errorf("wechat webhook not configured")
	}

	msg := wechatMarkdown{MsgType: "markdown"}
	msg.Markdown.Content = fmt.Sprintf(
		"### Valuation alert: %s\n> Condition: <font color=\"warning\">%s</font>\n> Current: %g\n> Time: %s\n> Rule: %s",
		n.StockCode, n.Condition.String(), n.TriggeredValue,
		n.TriggeredAt.Format("2006-01-02 15:04:05"), n.RuleID,
	)

	resp, err := s.client.PostJSON(ctx, s.webhookURL, msg)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("wechat webhook status %d", resp.StatusCode)
	}

	var result wechatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("decode wechat response: %w", err)
	}
	if result.ErrCode != 0 {
		return fmt.Errorf("wechat webhook error %d: %s", result.ErrCode, result.ErrMsg)
	}
	return nil
}
