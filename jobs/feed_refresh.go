package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/salesroom/salesroom/internal/dashboard"
	jobmetrics "github.com/salesroom/salesroom/internal/jobs"
)

// Refresher reloads the cached dashboard inputs.
type Refresher interface {
	Refresh(ctx context.Context) (dashboard.RefreshResult, error)
}

// FeedRefreshJob handles TaskFeedRefresh tasks.
type FeedRefreshJob struct {
	Refresher Refresher
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
}

// NewFeedRefreshJob wires dependencies for the refresh handler.
func NewFeedRefreshJob(refresher Refresher, logger *slog.Logger, metrics *jobmetrics.Metrics) *FeedRefreshJob {
	return &FeedRefreshJob{Refresher: refresher, Logger: logger, Metrics: metrics}
}

// Handle processes feed refresh tasks.
func (j *FeedRefreshJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Refresher == nil {
		return errors.New("feed refresh: handler not configured")
	}
	var payload FeedRefreshPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.Metrics.Track(TaskFeedRefresh)
	logger := j.logger().With(slog.String("job", TaskFeedRefresh), slog.String("reason", payload.Reason))
	logger.Info("starting feed refresh")

	result, err := j.Refresher.Refresh(ctx)
	if err != nil {
		logger.Error("feed refresh failed", slog.Any("error", err))
		return tracker.End(err)
	}
	j.Metrics.SetSnapshotRecords(result.Snapshot.Source, result.Records)
	logger.Info("feed refresh completed",
		slog.String("snapshot", result.Snapshot.ID),
		slog.Int("records", result.Records),
		slog.Float64("rate", result.Quote.Rate),
		slog.String("rate_source", result.Quote.Source))
	return tracker.End(nil)
}

func (j *FeedRefreshJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
