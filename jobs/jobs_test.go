package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thermaquote/thermaquote/internal/catalog"
	jobmetrics "github.com/thermaquote/thermaquote/internal/jobs"
	"github.com/thermaquote/thermaquote/internal/platform/httpx"
)

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	total := 0.0
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	metric:
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
					continue metric
				}
			}
			total += m.GetCounter().GetValue()
		}
	}
	return total
}

type fakeExpirer struct {
	n   int
	err error
}

func (f *fakeExpirer) ExpireOverdue(context.Context) (int, error) { return f.n, f.err }

func TestQuoteExpiryJob(t *testing.T) {
	reg := prometheus.NewRegistry()
	job := NewQuoteExpiryJob(&fakeExpirer{n: 4}, quietLogger, jobmetrics.NewMetrics(reg))
	task, err := NewQuoteExpiryTask("cron")
	require.NoError(t, err)

	require.NoError(t, job.Handle(context.Background(), task))
	assert.Equal(t, 4.0, counterValue(t, reg, "thermaquote_quotes_expired_total", nil))
	assert.Equal(t, 1.0, counterValue(t, reg, "thermaquote_jobs_total", map[string]string{"job": TaskQuoteExpirySweep, "status": "success"}))
}

func TestQuoteExpiryJobFailure(t *testing.T) {
	reg := prometheus.NewRegistry()
	boom := errors.New("db down")
	job := NewQuoteExpiryJob(&fakeExpirer{err: boom}, quietLogger, jobmetrics.NewMetrics(reg))

	err := job.Handle(context.Background(), asynq.NewTask(TaskQuoteExpirySweep, nil))
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1.0, counterValue(t, reg, "thermaquote_jobs_failures_total", map[string]string{"job": TaskQuoteExpirySweep}))

	err = job.Handle(context.Background(), asynq.NewTask(TaskQuoteExpirySweep, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

type fakeCatalog struct {
	warmed    int
	imported  string
	content   string
	result    catalog.ImportResult
	importErr error
}

func (f *fakeCatalog) WarmPicker(context.Context) (int, error) {
	f.warmed++
	return 12, nil
}

func (f *fakeCatalog) Import(_ context.Context, fileName string, r io.Reader) (catalog.ImportResult, error) {
	data, _ := io.ReadAll(r)
	f.imported = fileName
	f.content = string(data)
	return f.result, f.importErr
}

func TestCatalogJobs(t *testing.T) {
	reg := prometheus.NewRegistry()
	fake := &fakeCatalog{result: catalog.ImportResult{Created: 3, Updated: 1, Errors: []catalog.RowError{{Row: 4, Message: "bad"}}}}
	jobs := NewCatalogJobs(fake, quietLogger, jobmetrics.NewMetrics(reg))

	require.NoError(t, jobs.HandleWarm(context.Background(), NewCatalogWarmTask()))
	assert.Equal(t, 1, fake.warmed)

	task, err := NewCatalogImportTask("/tmp/uploads/price-list.csv", []byte("sku,description,pack_price\nA,B,1\n"))
	require.NoError(t, err)
	require.NoError(t, jobs.HandleImport(context.Background(), task))
	assert.Equal(t, "price-list.csv", fake.imported)
	assert.Contains(t, fake.content, "sku,description")
	assert.Equal(t, 3.0, counterValue(t, reg, "thermaquote_catalog_import_rows_total", map[string]string{"outcome": "created"}))
	assert.Equal(t, 1.0, counterValue(t, reg, "thermaquote_catalog_import_rows_total", map[string]string{"outcome": "rejected"}))
}

func TestCatalogImportValidationIsNotRetried(t *testing.T) {
	fake := &fakeCatalog{importErr: fmt.Errorf("%w: missing column sku", httpx.ErrValidation)}
	jobs := NewCatalogJobs(fake, quietLogger, jobmetrics.NewMetrics(prometheus.NewRegistry()))
	task, err := NewCatalogImportTask("x.csv", []byte("a"))
	require.NoError(t, err)

	err = jobs.HandleImport(context.Background(), task)
	assert.ErrorIs(t, err, asynq.SkipRetry)
	assert.ErrorIs(t, err, httpx.ErrValidation)

	_, err = NewCatalogImportTask("empty.csv", nil)
	assert.Error(t, err)
}

func TestTaskByName(t *testing.T) {
	task, err := TaskByName("quote-expiry")
	require.NoError(t, err)
	assert.Equal(t, TaskQuoteExpirySweep, task.Type())

	task, err = TaskByName(TaskCatalogWarm)
	require.NoError(t, err)
	assert.Equal(t, TaskCatalogWarm, task.Type())

	_, err = TaskByName("gl:integrity")
	assert.Error(t, err)
}

type stubInspector struct {
	info *asynq.QueueInfo
	err  error
}

func (s stubInspector) GetQueueInfo(string) (*asynq.QueueInfo, error) { return s.info, s.err }

func TestHealthHandler(t *testing.T) {
	cases := []struct {
		name      string
		inspector QueueInspector
		status    int
		pending   int
	}{
		{"no inspector", nil, http.StatusOK, 0},
		{"queue info", stubInspector{info: &asynq.QueueInfo{Queue: QueueDefault, Pending: 7, Retry: 1}}, http.StatusOK, 7},
		{"redis down", stubInspector{err: errors.New("dial tcp")}, http.StatusServiceUnavailable, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := chi.NewRouter()
			r.Route("/jobs", NewHandler(tc.inspector, quietLogger).MountRoutes)
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
			require.Equal(t, tc.status, rec.Code)
			if tc.status != http.StatusOK {
				return
			}
			var body QueueHealth
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, QueueDefault, body.Queue)
			assert.Equal(t, tc.pending, body.Pending)
		})
	}
}
