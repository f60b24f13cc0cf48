package metrics

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type otelObserver struct {
	storeOps   metric.Int64Counter
	reconnects metric.Int64Counter
}

var _ Observer = (*otelObserver)(nil)

// NewOTel returns an Observer that emits OpenTelemetry counters:
// cache_store_ops_total (attributes: operation, outcome) and
// cache_store_reconnects_total.
func NewOTel(meter metric.Meter) (Observer, error) {
	storeOps, err := meter.Int64Counter("cache_store_ops_total",
		metric.WithDescription("Backing-store operation outcomes"))
	if err != nil {
		return nil, err
	}
	reconnects, err := meter.Int64Counter("cache_store_reconnects_total",
		metric.WithDescription("Backing-store reconnect attempts"))
	if err != nil {
		return nil, err
	}
	return &otelObserver{
		storeOps:   storeOps,
		reconnects: reconnects,
	}, nil
}

func (o *otelObserver) IncStoreOp(op string, outcome string) {
	o.storeOps.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("operation", op),
		attribute.String("outcome", outcome),
	))
}

func (o *otelObserver) IncReconnect() {
	o.reconnects.Add(context.Background(), 1)
}
