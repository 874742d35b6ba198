package health

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mdmops/console/internal/platform/docstore"
)

// Documents is the document store surface used by the service.
type Documents interface {
	Set(ctx context.Context, collection, id string, value any) error
	List(ctx context.Context, collection string) ([]docstore.Document, error)
}

// Recorder receives each outcome, typically a metrics sink.
type Recorder interface {
	SetHealth(service, status string, latencyMs *int64)
}

const maxParallelChecks = 4

// Service runs checks over the configured targets and stores the results.
type Service struct {
	checker  *Checker
	docs     Documents
	targets  []Target
	recorder Recorder
	logger   *slog.Logger
}

// NewService constructs a Service. recorder may be nil.
func NewService(checker *Checker, docs Documents, targets []Target, recorder Recorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{checker: checker, docs: docs, targets: targets, recorder: recorder, logger: logger}
}

// Targets returns the configured targets.
func (s *Service) Targets() []Target {
	return s.targets
}

// RunAll checks every target concurrently and writes one document per
// target. A write failure is returned after all checks finish.
func (s *Service) RunAll(ctx context.Context) ([]ServiceStatus, error) {
	out := make([]ServiceStatus, len(s.targets))
	var (
		mu       sync.Mutex
		writeErr error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelChecks)
	for i, target := range s.targets {
		i, target := i, target
		g.Go(func() error {
			res := s.checker.Check(gctx, target)
			out[i] = ServiceStatus{Name: target.Name, Result: res}
			if s.recorder != nil {
				s.recorder.SetHealth(target.Name, string(res.Status), res.LatencyMs)
			}
			if err := s.docs.Set(ctx, Collection, target.Name, res); err != nil {
				s.logger.Error("store health result", slog.String("service", target.Name), slog.Any("error", err))
				mu.Lock()
				if writeErr == nil {
					writeErr = fmt.Errorf("health: store %s: %w", target.Name, err)
				}
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return out, writeErr
}

// Statuses lists stored results ordered by service name. The stored
// update time is the authoritative check time.
func (s *Service) Statuses(ctx context.Context) ([]ServiceStatus, error) {
	docs, err := s.docs.List(ctx, Collection)
	if err != nil {
		return nil, fmt.Errorf("health: list: %w", err)
	}
	out := make([]ServiceStatus, 0, len(docs))
	for _, doc := range docs {
		var res Result
		if err := doc.Decode(&res); err != nil {
			s.logger.Warn("decode health document", slog.String("service", doc.ID), slog.Any("error", err))
			continue
		}
		if !doc.UpdatedAt.IsZero() {
			res.CheckedAt = doc.UpdatedAt
			if res.UpdatedAtStr == "" {
				res.UpdatedAtStr = doc.UpdatedAt.UTC().Format(time.RFC3339Nano)
			}
		}
		out = append(out, ServiceStatus{Name: doc.ID, Result: res})
	}
	return out, nil
}
