package channel

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const instrumentationName = "github.com/OCAP2/csp/pkg/channel"

const (
	outcomePaired    = "paired"
	outcomeBuffered  = "buffered"
	outcomeSuspended = "suspended"
	outcomeClosed    = "closed"
	outcomeFull      = "full"
	outcomeEmpty     = "empty"
)

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}

type instruments struct {
	push     metric.Int64Counter
	pull     metric.Int64Counter
	closes   metric.Int64Counter
	canceled metric.Int64Counter
	selected metric.Int64Counter
}

// loadInstruments creates the package instruments on first use. The global
// meter provider delegates, so instruments created before otel.SetMeterProvider
// still report once a provider is installed.
var loadInstruments = sync.OnceValue(func() *instruments {
	m := meter()
	return &instruments{
		push: counter(m, "csp.channel.push",
			"Push operations by outcome"),
		pull: counter(m, "csp.channel.pull",
			"Pull operations by outcome"),
		closes: counter(m, "csp.channel.close",
			"Channels closed"),
		canceled: counter(m, "csp.waiter.canceled",
			"Pending operations retracted before completing"),
		selected: counter(m, "csp.select.resolved",
			"Select calls resolved, by winning channel and operation"),
	}
})

func counter(m metric.Meter, name, desc string) metric.Int64Counter {
	c, err := m.Int64Counter(name, metric.WithDescription(desc))
	if err != nil {
		otel.Handle(err)
		return noop.Int64Counter{}
	}
	return c
}

func (i *instruments) recordPush(name, outcome string) {
	i.push.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("channel", name),
		attribute.String("outcome", outcome),
	))
}

func (i *instruments) recordPull(name, outcome string) {
	i.pull.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("channel", name),
		attribute.String("outcome", outcome),
	))
}

func (i *instruments) recordClose(name string) {
	i.closes.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("channel", name),
	))
}

func (i *instruments) recordCanceled(name string, kind opKind) {
	i.canceled.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("channel", name),
		attribute.String("op", kind.String()),
	))
}

func (i *instruments) recordSelect(ctx context.Context, name string, kind opKind) {
	i.selected.Add(ctx, 1, metric.WithAttributes(
		attribute.String("channel", name),
		attribute.String("op", kind.String()),
	))
}
