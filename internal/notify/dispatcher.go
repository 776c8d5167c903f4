// Package notify delivers alert notifications over the configured channels.
package notify

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/wonny/valuescope/internal/contracts"
	"github.com/wonny/valuescope/pkg/logger"
)

// ErrChannelUnavailable is returned for a channel with no configured sink
var ErrChannelUnavailable = errors.New("notification channel not configured")

// Dispatcher routes notifications to the sink of their channel.
// Each channel has its own token bucket so a burst of triggers cannot flood a provider.
// ⭐ SSOT: 알림 채널 라우팅은 여기서만
type Dispatcher struct {
	sinks    map[contracts.Channel]contracts.AlertSink
	limiters map[contracts.Channel]*rate.Limiter
	rps      rate.Limit
	burst    int
	logger   *logger.Logger
}

// NewDispatcher creates a dispatcher allowing rps notifications per second per channel
func NewDispatcher(rps float64, burst int, log *logger.Logger) *Dispatcher {
	if burst < 1 {
		burst = 1
	}
	return &Dispatcher{
		sinks:    make(map[contracts.Channel]contracts.AlertSink),
		limiters: make(map[contracts.Channel]*rate.Limiter),
		rps:      rate.Limit(rps),
		burst:    burst,
		logger:   log,
	}
}

// Register installs the sink for a channel. Not safe to call concurrently with Notify.
func (d *Dispatcher) Register(ch contracts.Channel, sink contracts.AlertSink) *Dispatcher {
	d.sinks[ch] = sink
	d.limiters[ch] = rate.NewLimiter(d.rps, d.burst)
	return d
}

// Channels lists the channels with a sink
func (d *Dispatcher) Channels() []contracts.Channel {
	out := make([]contracts.Channel, 0, len(d.sinks))
	for _, ch := range []contracts.Channel{contracts.ChannelWeChat, contracts.ChannelEmail, contracts.ChannelPush} {
		if _, ok := d.sinks[ch]; ok {
			out = append(out, ch)
		}
	}
	return out
}

// Notify implements contracts.AlertSink
func (d *Dispatcher) Notify(ctx context.Context, n contracts.Notification) error {
	sink, ok := d.sinks[n.Channel]
	if !ok {
		return fmt.Errorf("%w: %s", ErrChannelUnavailable, n.Channel)
	}

	if err := d.limiters[n.Channel].Wait(ctx); err != nil {
		return fmt.Errorf("%s throttled: %w", n.Channel, err)
	}

	if err := sink.Notify(ctx, n); err != nil {
		return fmt.Errorf("%s delivery: %w", n.Channel, err)
	}

	d.logger.WithFields(map[string]interface{}{
		"rule_id": n.RuleID,
		"channel": n.Channel,
		"owner":   n.Owner,
	}).Debug("Notification delivered")
	return nil
}
