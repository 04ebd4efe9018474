// Package monitor keeps a registry of named channels, writes periodic
// status snapshots (channels plus process stats) and reports channel
// occupancy as OTel gauges.
package monitor

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/process"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/OCAP2/csp/internal/logging"
	"github.com/OCAP2/csp/pkg/channel"
)

const instrumentationName = "github.com/OCAP2/csp/internal/monitor"

// Sink receives every status snapshot taken by the monitor loop.
type Sink func(ctx context.Context, status Status) error

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	LogManager *logging.SlogManager
	StatusDir  string
	Interval   time.Duration
	Sink       Sink
}

// Status is a snapshot of every registered channel. Process is only filled
// by GetProgramStatus.
type Status struct {
	Time     time.Time       `json:"time"`
	Channels []channel.Stats `json:"channels"`
	Process  *ProcessStats   `json:"process,omitempty"`
}

// Service manages status monitoring
type Service struct {
	deps      Dependencies
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
	doneChan  chan struct{}

	regMu    sync.RWMutex
	channels map[string]channel.Endpoint

	procOnce sync.Once
	proc     *process.Process
}

// NewService creates a new monitor service and registers its gauges with
// the global meter provider.
func NewService(deps Dependencies) (*Service, error) {
	if deps.Interval <= 0 {
		deps.Interval = time.Second
	}
	s := &Service{
		deps:     deps,
		stopChan: make(chan struct{}),
		channels: make(map[string]channel.Endpoint),
	}
	if err := s.registerGauges(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Service) registerGauges() error {
	m := otel.Meter(instrumentationName)

	size, err := m.Int64ObservableGauge(
		"csp.channel.size",
		metric.WithDescription("Values currently buffered in a channel"),
	)
	if err != nil {
		return fmt.Errorf("creating channel size gauge: %w", err)
	}
	pending, err := m.Int64ObservableGauge(
		"csp.channel.pending",
		metric.WithDescription("Operations currently blocked on a channel"),
	)
	if err != nil {
		return fmt.Errorf("creating pending gauge: %w", err)
	}

	_, err = m.RegisterCallback(
		func(ctx context.Context, o metric.Observer) error {
			for _, st := range s.Snapshot().Channels {
				name := attribute.String("channel", st.Name)
				o.ObserveInt64(size, int64(st.Size), metric.WithAttributes(name))
				o.ObserveInt64(pending, int64(st.PendingProducers),
					metric.WithAttributes(name, attribute.String("side", "producer")))
				o.ObserveInt64(pending, int64(st.PendingReceivers),
					metric.WithAttributes(name, attribute.String("side", "receiver")))
			}
			return nil
		},
		size, pending,
	)
	if err != nil {
		return fmt.Errorf("registering channel callback: %w", err)
	}
	return nil
}

// Register adds channels to the registry, replacing any with the same name.
func (s *Service) Register(eps ...channel.Endpoint) {
	s.regMu.Lock()
	defer s.regMu.Unlock()
	for _, ep := range eps {
		s.channels[ep.Name()] = ep
	}
}

// Unregister removes a channel by name.
func (s *Service) Unregister(name string) {
	s.regMu.Lock()
	defer s.regMu.Unlock()
	delete(s.channels, name)
}

// Snapshot returns the current stats of every registered channel, ordered
// by name.
func (s *Service) Snapshot() Status {
	s.regMu.RLock()
	eps := make([]channel.Endpoint, 0, len(s.channels))
	for _, ep := range s.channels {
		eps = append(eps, ep)
	}
	s.regMu.RUnlock()

	status := Status{Time: time.Now()}
	for _, ep := range eps {
		status.Channels = append(status.Channels, ep.Stats())
	}
	slices.SortFunc(status.Channels, func(a, b channel.Stats) int {
		return cmp.Compare(a.Name, b.Name)
	})
	return status
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// GetProgramStatus returns the current status, rendered as indented JSON
// lines and as a Status.
func (s *Service) GetProgramStatus() (output []string, status Status) {
	status = s.Snapshot()
	status.Process = s.processStats()
	for _, st := range status.Channels {
		line, err := json.MarshalIndent(st, "", "  ")
		if err != nil {
			line = []byte(fmt.Sprintf(`{"error": "%s"}`, err))
		}
		output = append(output, string(line))
	}
	return output, status
}

// Start starts the status monitor goroutine
func (s *Service) Start() error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.doneChan = make(chan struct{})
	stop, done := s.stopChan, s.doneChan
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			s.isRunning = false
			s.mu.Unlock()
			close(done)
		}()

		logger := s.logger()
		logger.Debug("Starting status monitor goroutine", "interval", s.deps.Interval)

		var statusFile *os.File
		if s.deps.StatusDir != "" {
			var err error
			statusFile, err = os.Create(filepath.Join(s.deps.StatusDir, "status.txt"))
			if err != nil {
				logger.Error("Error creating status file", "error", err)
			} else {
				defer statusFile.Close()
			}
		}

		ticker := time.NewTicker(s.deps.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				lines, status := s.GetProgramStatus()

				if statusFile != nil {
					statusFile.Truncate(0)
					statusFile.Seek(0, 0)
					for _, line := range lines {
						statusFile.WriteString(line + "\n")
					}
				}

				if s.deps.Sink != nil {
					if err := s.deps.Sink(context.Background(), status); err != nil {
						logger.Error("Error writing status", "error", err)
					}
				}
			}
		}
	}()

	return nil
}

// Stop stops the status monitor and waits for its goroutine to exit.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	close(s.stopChan)
	done := s.doneChan
	s.mu.Unlock()
	<-done
}

func (s *Service) logger() *slog.Logger {
	if s.deps.LogManager == nil {
		return slog.Default()
	}
	return s.deps.LogManager.Logger()
}
