package executor

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const instrumentationName = "github.com/OCAP2/csp/pkg/executor"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}

type instruments struct {
	steps metric.Int64Counter
	tasks metric.Int64Counter
}

var loadInstruments = sync.OnceValue(func() *instruments {
	m := meter()
	i := &instruments{}
	var err error
	if i.steps, err = m.Int64Counter("csp.executor.steps",
		metric.WithDescription("Times a task was given the baton")); err != nil {
		otel.Handle(err)
		i.steps = noop.Int64Counter{}
	}
	if i.tasks, err = m.Int64Counter("csp.executor.tasks",
		metric.WithDescription("Tasks started")); err != nil {
		otel.Handle(err)
		i.tasks = noop.Int64Counter{}
	}
	return i
})

func (i *instruments) recordStep() {
	i.steps.Add(context.Background(), 1)
}

func (i *instruments) recordTask() {
	i.tasks.Add(context.Background(), 1)
}
