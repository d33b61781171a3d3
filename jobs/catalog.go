package jobs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/thermaquote/thermaquote/internal/catalog"
	jobmetrics "github.com/thermaquote/thermaquote/internal/jobs"
	"github.com/thermaquote/thermaquote/internal/platform/httpx"
)

// CatalogService is the catalog surface used by the background jobs.
type CatalogService interface {
	WarmPicker(ctx context.Context) (int, error)
	Import(ctx context.Context, fileName string, r io.Reader) (catalog.ImportResult, error)
}

// CatalogJobs handles picker warm-up and spreadsheet imports.
type CatalogJobs struct {
	Catalog CatalogService
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewCatalogJobs wires dependencies for the catalog handlers.
func NewCatalogJobs(svc CatalogService, logger *slog.Logger, metrics *jobmetrics.Metrics) *CatalogJobs {
	return &CatalogJobs{Catalog: svc, Logger: logger, Metrics: metrics}
}

// HandleWarm processes TaskCatalogWarm tasks.
func (j *CatalogJobs) HandleWarm(ctx context.Context, _ *asynq.Task) (err error) {
	if j == nil || j.Catalog == nil {
		return errors.New("catalog warm: handler not configured")
	}
	tracker := metricsOrDefault(j.Metrics).Track(TaskCatalogWarm)
	defer func() { err = tracker.End(err) }()

	n, err := j.Catalog.WarmPicker(ctx)
	if err != nil {
		loggerOrDefault(j.Logger).Error("catalog warm", slog.Any("error", err))
		return err
	}
	loggerOrDefault(j.Logger).Info("catalog warm", slog.Int("products", n))
	return nil
}

// HandleImport processes TaskCatalogImport tasks. A file that fails
// validation is not retried.
func (j *CatalogJobs) HandleImport(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Catalog == nil {
		return errors.New("catalog import: handler not configured")
	}
	var payload CatalogImportPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	metrics := metricsOrDefault(j.Metrics)
	tracker := metrics.Track(TaskCatalogImport)
	defer func() { err = tracker.End(err) }()

	logger := loggerOrDefault(j.Logger).With(slog.String("file", payload.FileName))
	result, err := j.Catalog.Import(ctx, payload.FileName, bytes.NewReader(payload.Content))
	if err != nil {
		logger.Error("catalog import", slog.Any("error", err))
		if errors.Is(err, httpx.ErrValidation) {
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		return err
	}
	metrics.AddImportedProducts("created", result.Created)
	metrics.AddImportedProducts("updated", result.Updated)
	metrics.AddImportedProducts("rejected", len(result.Errors))
	logger.Info("catalog import",
		slog.Int("created", result.Created),
		slog.Int("updated", result.Updated),
		slog.Int("rejected", len(result.Errors)))
	return nil
}
