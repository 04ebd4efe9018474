package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/OCAP2/csp/internal/config"
	"github.com/OCAP2/csp/internal/dispatcher"
	"github.com/OCAP2/csp/internal/influx"
	"github.com/OCAP2/csp/internal/logging"
	"github.com/OCAP2/csp/internal/patterns"
	"github.com/OCAP2/csp/pkg/channel"
	"github.com/OCAP2/csp/pkg/executor"
)

var allPatterns = []string{"generator", "fanin", "daisychain", "drain"}

// errUnknownPattern is returned for a pattern name runPattern does not know.
var errUnknownPattern = errors.New("unknown pattern")

// runResult is what one pattern run produced.
type runResult struct {
	Pattern   string
	Delivered int
	Elapsed   time.Duration
	Err       error
}

// runRequest is queued by :RUN: and handled by the dispatcher's worker.
type runRequest struct {
	ctx     context.Context
	pattern string
	demo    config.DemoConfig
}

func (a *app) registerHandlers() {
	a.dispatcher.Register(":RUN:", a.handleRun, dispatcher.Buffered(16), dispatcher.Blocking(), dispatcher.Logged())
	a.dispatcher.Register(":STATUS:", func(dispatcher.Event) (any, error) {
		lines, _ := a.monitor.GetProgramStatus()
		return lines, nil
	})
}

// runAll queues every pattern on the dispatcher and collects the results in
// queue order.
func (a *app) runAll(ctx context.Context, names []string, demo config.DemoConfig) ([]runResult, error) {
	a.requests = make(map[string]runRequest, len(names))
	a.results = channel.Must(channel.NewBuffered[runResult](len(names),
		channel.WithName("results"),
		channel.WithLogger(a.core.Named("channel")),
	))
	a.monitor.Register(a.results)
	defer a.monitor.Unregister(a.results.Name())

	for _, name := range names {
		a.requests[name] = runRequest{ctx: ctx, pattern: name, demo: demo}
	}

	var results []runResult
	err := a.runGroup(ctx, func(ctx context.Context) error {
		for _, name := range names {
			if _, err := a.dispatcher.Dispatch(dispatcher.Event{
				Command:   ":RUN:",
				Args:      []string{name},
				Timestamp: time.Now(),
			}); err != nil {
				return fmt.Errorf("queueing %s: %w", name, err)
			}
		}
		for range names {
			r, err := a.results.Pull(ctx)
			if err != nil {
				return fmt.Errorf("collecting results: %w", err)
			}
			results = append(results, r)
		}
		a.results.Close()
		return nil
	})
	return results, err
}

func (a *app) handleRun(e dispatcher.Event) (any, error) {
	if len(e.Args) != 1 {
		return nil, fmt.Errorf(":RUN: expects one pattern, got %d", len(e.Args))
	}
	req, ok := a.requests[e.Args[0]]
	if !ok {
		return nil, fmt.Errorf("%w: %s", errUnknownPattern, e.Args[0])
	}

	ctx := logging.AppendCtx(req.ctx, slog.String("pattern", req.pattern))

	start := time.Now()
	delivered, err := a.runPattern(ctx, req.pattern, req.demo)
	r := runResult{Pattern: req.pattern, Delivered: delivered, Elapsed: time.Since(start), Err: err}

	if err != nil {
		a.logger.ErrorContext(ctx, "Pattern failed", "delivered", delivered, "elapsed", r.Elapsed, "error", err)
	} else {
		a.logger.InfoContext(ctx, "Pattern finished", "delivered", delivered, "elapsed", r.Elapsed)
	}
	if a.influx != nil {
		if werr := a.influx.WritePoint(ctx, influx.BucketRuns, influx.RunPoint(r.Pattern, r.Delivered, r.Elapsed, r.Err, start)); werr != nil {
			a.logger.ErrorContext(ctx, "Failed to write run point", "error", werr)
		}
	}

	if perr := a.results.Push(req.ctx, r); perr != nil {
		return nil, perr
	}
	return r, nil
}

// runPattern runs one pattern to completion on a fresh runtime and returns
// how many values reached the final consumer.
func (a *app) runPattern(ctx context.Context, name string, demo config.DemoConfig) (int, error) {
	var (
		rt   patterns.Runtime
		wait func() error
	)
	if demo.Executor {
		exec := executor.New(executor.WithLogger(a.core.Named("executor")))
		defer exec.Close()
		rt, wait = exec, func() error { return exec.Run(ctx) }
	} else {
		g := patterns.NewGoroutines(ctx)
		rt, wait = g, g.Wait
	}

	switch name {
	case "generator":
		gen := patterns.Generator(rt, "boring!", demo.Count)
		a.monitor.Register(gen)
		defer a.monitor.Unregister(gen.Name())
		return a.consume(rt, wait, gen)

	case "fanin":
		joe := patterns.Generator(rt, "joe", demo.Count)
		ann := patterns.Generator(rt, "ann", demo.Count)
		out := patterns.FanIn(rt, joe, ann)
		a.monitor.Register(joe, ann, out)
		defer func() {
			for _, ch := range []channel.Endpoint{joe, ann, out} {
				a.monitor.Unregister(ch.Name())
			}
		}()
		return a.consume(rt, wait, out)

	case "daisychain":
		f := patterns.DaisyChain(rt, demo.ChainLength, 1)
		if err := wait(); err != nil {
			return 0, err
		}
		v, err := f.Result()
		if err != nil {
			return 0, err
		}
		a.logger.InfoContext(ctx, "Daisy chain result", "length", demo.ChainLength, "value", v)
		return 1, nil

	case "drain":
		f := patterns.Drain(rt, demo.Producers, demo.PerProducer, demo.Capacity)
		if err := wait(); err != nil {
			return 0, err
		}
		res, err := f.Result()
		if err != nil {
			return 0, err
		}
		if want := demo.Producers * demo.PerProducer; len(res.Values) != want {
			return len(res.Values), fmt.Errorf("drain lost values: got %d, want %d", len(res.Values), want)
		}
		if a.influx != nil {
			if err := a.influx.WritePoint(ctx, influx.BucketChannels, influx.ChannelPoint(res.Data, time.Now())); err != nil {
				a.logger.ErrorContext(ctx, "Failed to write channel point", "error", err)
			}
		}
		return len(res.Values), nil

	default:
		return 0, fmt.Errorf("%w: %s", errUnknownPattern, name)
	}
}

// consume drains ch from a task on rt and runs rt to completion.
func (a *app) consume(rt patterns.Runtime, wait func() error, ch *channel.Channel[string]) (int, error) {
	var n int
	rt.Go(func(ctx context.Context) error {
		for v := range ch.All(ctx) {
			a.logger.DebugContext(ctx, "received", "channel", ch.Name(), "value", v)
			n++
		}
		return nil
	})
	err := wait()
	return n, err
}
