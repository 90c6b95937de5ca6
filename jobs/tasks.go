package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskFeedRefresh re-fetches the sales feed and exchange rate into the cache.
	TaskFeedRefresh = "feed:refresh"

	refreshUniqueFor = time.Minute
)

// FeedRefreshPayload describes why a refresh was requested.
type FeedRefreshPayload struct {
	Reason      string    `json:"reason"`
	RequestedAt time.Time `json:"requested_at"`
}

// NewFeedRefreshTask constructs an Asynq task.
func NewFeedRefreshTask(payload FeedRefreshPayload) (*asynq.Task, error) {
	if payload.Reason == "" {
		payload.Reason = "unspecified"
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskFeedRefresh, data, asynq.MaxRetry(3), asynq.Timeout(2*time.Minute)), nil
}
