package contracts

import (
	"context"
	"time"
)

// MetricStore supplies current values and history per stock
// ⭐ SSOT: 지표 저장소 경계 인터페이스
type MetricStore interface {
	GetSeries(ctx context.Context, code string, metric MetricKind, from, to time.Time) (MetricSeries, error)
	GetSnapshot(ctx context.Context, code string) (MetricSnapshot, error)
	ListCodes(ctx context.Context) ([]string, error)
}

// AlertSink delivers notification intents; retry policy belongs to the sink
// ⭐ SSOT: 알림 전달 경계 인터페이스
type AlertSink interface {
	Notify(ctx context.Context, n Notification) error
}

// AlertSinkFunc adapts a function to AlertSink
type AlertSinkFunc func(ctx context.Context, n Notification) error

// Notify calls f(ctx, n)
func (f AlertSinkFunc) Notify(ctx context.Context, n Notification) error {
	return f(ctx, n)
}
