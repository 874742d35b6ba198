package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/mdmops/console/internal/health"
	jobmetrics "github.com/mdmops/console/internal/jobs"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// HealthRunner runs every configured health check.
type HealthRunner interface {
	RunAll(ctx context.Context) ([]health.ServiceStatus, error)
}

// HealthCheckJob writes fresh health documents for every target.
type HealthCheckJob struct {
	Health  HealthRunner
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	Timeout time.Duration
}

// NewHealthCheckJob wires dependencies for the health check handler.
func NewHealthCheckJob(runner HealthRunner, logger *slog.Logger, metrics *jobmetrics.Metrics) *HealthCheckJob {
	return &HealthCheckJob{Health: runner, Logger: logger, Metrics: metrics, Timeout: time.Minute}
}

// Handle processes health check tasks.
func (j *HealthCheckJob) Handle(ctx context.Context, _ *asynq.Task) error {
	if j == nil || j.Health == nil {
		return errors.New("health check: handler not configured")
	}
	tracker := j.metrics().Track(TaskHealthCheck)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	if j.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.Timeout)
		defer cancel()
	}

	logger := j.logger()
	started := time.Now()
	statuses, err := j.Health.RunAll(ctx)
	counts := make(map[health.Status]int)
	for _, st := range statuses {
		counts[st.Status]++
		j.metrics().AddHealthResult(string(st.Status))
	}
	if err != nil {
		resultErr = err
		logger.Error("health check run", slog.Any("error", err))
		return resultErr
	}
	logger.Info("completed health check",
		slog.Int("services", len(statuses)),
		slog.Int("up", counts[health.StatusUp]),
		slog.Int("degraded", counts[health.StatusDegraded]),
		slog.Int("down", counts[health.StatusDown]),
		slog.Duration("duration", time.Since(started)))
	return resultErr
}

func (j *HealthCheckJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskHealthCheck))
	}
	return slog.Default().With(slog.String("job", TaskHealthCheck))
}

func (j *HealthCheckJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
