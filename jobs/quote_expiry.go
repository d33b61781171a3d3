package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/thermaquote/thermaquote/internal/jobs"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// QuoteExpirer is the quote operation the sweep runs.
type QuoteExpirer interface {
	ExpireOverdue(ctx context.Context) (int, error)
}

// QuoteExpiryJob moves sent quotes past their validity date to EXPIRED.
type QuoteExpiryJob struct {
	Quotes  QuoteExpirer
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewQuoteExpiryJob wires dependencies for the sweep handler.
func NewQuoteExpiryJob(quotes QuoteExpirer, logger *slog.Logger, metrics *jobmetrics.Metrics) *QuoteExpiryJob {
	return &QuoteExpiryJob{Quotes: quotes, Logger: logger, Metrics: metrics}
}

// Handle processes TaskQuoteExpirySweep tasks.
func (j *QuoteExpiryJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Quotes == nil {
		return errors.New("quote expiry: handler not configured")
	}
	var payload QuoteExpiryPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	metrics := metricsOrDefault(j.Metrics)
	tracker := metrics.Track(TaskQuoteExpirySweep)
	defer func() { err = tracker.End(err) }()

	n, err := j.Quotes.ExpireOverdue(ctx)
	if err != nil {
		loggerOrDefault(j.Logger).Error("quote expiry sweep", slog.Any("error", err))
		return err
	}
	metrics.AddExpiredQuotes(int64(n))
	loggerOrDefault(j.Logger).Info("quote expiry sweep", slog.Int("expired", n), slog.String("reason", payload.Reason))
	return nil
}

func metricsOrDefault(m *jobmetrics.Metrics) *jobmetrics.Metrics {
	if m != nil {
		return m
	}
	return defaultJobMetrics
}

func loggerOrDefault(l *slog.Logger) *slog.Logger {
	if l != nil {
		return l
	}
	return slog.Default()
}
