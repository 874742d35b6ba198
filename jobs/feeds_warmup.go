package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/mdmops/console/internal/feed"
	jobmetrics "github.com/mdmops/console/internal/jobs"
)

// FeedRefresher reloads a feed into the shared cache.
type FeedRefresher interface {
	Refresh(ctx context.Context, sheetID, sheetName string) (feed.Table, time.Time, error)
}

// FeedsWarmupJob keeps the shared feed cache warm for the web servers.
type FeedsWarmupJob struct {
	Feeds   FeedRefresher
	Targets []FeedRef
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewFeedsWarmupJob wires dependencies for the warmup handler. Targets
// without a sheet ID are skipped.
func NewFeedsWarmupJob(feeds FeedRefresher, targets []FeedRef, logger *slog.Logger, metrics *jobmetrics.Metrics) *FeedsWarmupJob {
	configured := make([]FeedRef, 0, len(targets))
	for _, t := range targets {
		if t.SheetID != "" {
			configured = append(configured, t)
		}
	}
	return &FeedsWarmupJob{Feeds: feeds, Targets: configured, Logger: logger, Metrics: metrics}
}

// Handle processes feed warmup tasks. Every selected feed is attempted; the
// run fails if any of them failed.
func (j *FeedsWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Feeds == nil {
		return errors.New("feeds warmup: handler not configured")
	}
	var payload FeedsWarmupPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}

	tracker := j.metrics().Track(TaskFeedsWarmup)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger()
	targets := j.selected(payload.Feeds)
	if len(targets) == 0 {
		logger.Info("no feeds configured for warmup")
		return resultErr
	}

	started := time.Now()
	var failed []string
	for _, target := range targets {
		feedCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		table, _, err := j.Feeds.Refresh(feedCtx, target.SheetID, target.SheetName)
		cancel()
		j.metrics().AddWarmed(target.Name, err == nil)
		if err != nil {
			logger.Warn("warm feed", slog.String("feed", target.Name), slog.Any("error", err))
			failed = append(failed, target.Name)
			continue
		}
		logger.Debug("warmed feed", slog.String("feed", target.Name), slog.Int("rows", len(table.Rows)))
	}
	if len(failed) > 0 {
		resultErr = fmt.Errorf("feeds warmup: %d of %d feeds failed: %v", len(failed), len(targets), failed)
		return resultErr
	}
	logger.Info("completed feeds warmup", slog.Int("feeds", len(targets)), slog.Duration("duration", time.Since(started)))
	return resultErr
}

func (j *FeedsWarmupJob) selected(names []string) []FeedRef {
	if len(names) == 0 {
		return j.Targets
	}
	want := make(map[string]struct{}, len(names))
	for _, n := range names {
		want[n] = struct{}{}
	}
	out := make([]FeedRef, 0, len(names))
	for _, t := range j.Targets {
		if _, ok := want[t.Name]; ok {
			out = append(out, t)
		}
	}
	return out
}

func (j *FeedsWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskFeedsWarmup))
	}
	return slog.Default().With(slog.String("job", TaskFeedsWarmup))
}

func (j *FeedsWarmupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
