package contracts

import (
	"fmt"
	"time"
)

// Channel is the notification channel of an alert rule
type Channel string

const (
	ChannelWeChat Channel = "wechat"
	ChannelEmail  Channel = "email"
	ChannelPush   Channel = "push"
)

// Valid reports whether c is a supported channel
func (c Channel) Valid() bool {
	switch c {
	case ChannelWeChat, ChannelEmail, ChannelPush:
		return true
	}
	return false
}

// ParseChannel converts a string into a Channel
func ParseChannel(s string) (Channel, error) {
	c := Channel(s)
	if !c.Valid() {
		return "", fmt.Errorf("%w: unknown channel %q", ErrInvalidRule, s)
	}
	return c, nil
}

// AlertState is the evaluation state of an alert rule
type AlertState string

const (
	StateArmed     AlertState = "armed"
	StateTriggered AlertState = "triggered"
	StateDisabled  AlertState = "disabled"
)

// AlertRule is a persisted, user-owned condition on one stock
// ⭐ SSOT: 알림 규칙 구조는 여기서만 정의
type AlertRule struct {
	ID              string     `json:"id"`
	Owner           string     `json:"owner"`
	StockCode       string     `json:"stock_code"`
	Condition       Condition  `json:"condition"`
	Channel         Channel    `json:"channel"`
	Enabled         bool       `json:"enabled"`
	State           AlertState `json:"state"`
	LastTriggeredAt *time.Time `json:"last_triggered_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Validate checks the user-editable fields of a rule
func (r *AlertRule) Validate() error {
	if r.Owner == "" {
		return fmt.Errorf("%w: owner is required", ErrInvalidRule)
	}
	if r.StockCode == "" {
		return fmt.Errorf("%w: stock code is required", ErrInvalidRule)
	}
	if !r.Channel.Valid() {
		return fmt.Errorf("%w: unknown channel %q", ErrInvalidRule, r.Channel)
	}
	if err := r.Condition.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}
	return nil
}

// EffectiveState derives the state from the enabled flag.
// A disabled rule is always DISABLED regardless of the persisted state.
func (r *AlertRule) EffectiveState() AlertState {
	if !r.Enabled {
		return StateDisabled
	}
	if r.State == StateTriggered {
		return StateTriggered
	}
	return StateArmed
}

// Notification is the intent emitted on an ARMED -> TRIGGERED edge.
// Delivery belongs to the Alert Sink.
type Notification struct {
	RuleID         string    `json:"rule_id"`
	Owner          string    `json:"owner"`
	Channel        Channel   `json:"channel"`
	StockCode      string    `json:"stock_code"`
	Condition      Condition `json:"condition"`
	TriggeredValue float64   `json:"triggered_value"`
	TriggeredAt    time.Time `json:"triggered_at"`
}

// Message renders a short human-readable body
func (n Notification) Message() string {
	return fmt.Sprintf("[%s] %s triggered: current %s = %g (rule %s)",
		n.StockCode, n.Condition.String(), n.Condition.Metric, n.TriggeredValue, n.RuleID)
}
