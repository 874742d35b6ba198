package jobs

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskHealthCheck probes every configured service and stores the results.
	TaskHealthCheck = "health:check"
	// TaskFeedsWarmup revalidates the sheet feeds into the shared cache.
	TaskFeedsWarmup = "feeds:warmup"
)

// FeedRef names one sheet tab to warm.
type FeedRef struct {
	Name      string `json:"name"`
	SheetID   string `json:"sheetId"`
	SheetName string `json:"sheetName"`
}

// FeedsWarmupPayload limits a warmup run to the listed feed names. Empty
// means every configured feed.
type FeedsWarmupPayload struct {
	Feeds []string `json:"feeds,omitempty"`
}

// NewHealthCheckTask constructs a health check task.
func NewHealthCheckTask() *asynq.Task {
	return asynq.NewTask(TaskHealthCheck, nil, asynq.Queue(QueueDefault), asynq.MaxRetry(0))
}

// NewFeedsWarmupTask constructs a feeds warmup task.
func NewFeedsWarmupTask(payload FeedsWarmupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskFeedsWarmup, data, asynq.Queue(QueueDefault), asynq.MaxRetry(1)), nil
}

// Every renders an asynq cron spec for a fixed interval.
func Every(interval time.Duration) string {
	if interval <= 0 {
		return ""
	}
	return fmt.Sprintf("@every %s", interval)
}
