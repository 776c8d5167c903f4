package contracts

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestAlertRule_EffectiveState(t *testing.T) {
	tests := []struct {
		name    string
		enabled bool
		state   AlertState
		want    AlertState
	}{
		{"disabled wins over triggered", false, StateTriggered, StateDisabled},
		{"enabled armed", true, StateArmed, StateArmed},
		{"enabled triggered", true, StateTriggered, StateTriggered},
		{"enabled with stale disabled state", true, StateDisabled, StateArmed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &AlertRule{Enabled: tt.enabled, State: tt.state}
			if got := r.EffectiveState(); got != tt.want {
				t.Errorf("EffectiveState() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAlertRule_Validate(t *testing.T) {
	valid := AlertRule{
		Owner:     "user-1",
		StockCode: "600519",
		Condition: Condition{Metric: MetricPE, Comparator: LT, Threshold: 20},
		Channel:   ChannelEmail,
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("Validate() unexpected error: %v", err)
	}

	badChannel := valid
	badChannel.Channel = "sms"
	if err := badChannel.Validate(); !errors.Is(err, ErrInvalidRule) {
		t.Errorf("Validate() = %v, want ErrInvalidRule", err)
	}

	badMetric := valid
	badMetric.Condition.Metric = "eps"
	if err := badMetric.Validate(); !errors.Is(err, ErrInvalidRule) {
		t.Errorf("Validate() = %v, want ErrInvalidRule", err)
	}
}

func TestNotification_Message(t *testing.T) {
	n := Notification{
		RuleID:         "r-1",
		StockCode:      "600519",
		Condition:      Condition{Metric: MetricPE, Comparator: LT, Threshold: 20},
		TriggeredValue: 18,
		TriggeredAt:    time.Now(),
	}

	msg := n.Message()
	if !strings.Contains(msg, "pe_ttm < 20") || !strings.Contains(msg, "600519") {
		t.Errorf("Message() = %q", msg)
	}
}
