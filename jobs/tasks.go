package jobs

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskQuoteExpirySweep marks lapsed sent quotes as expired.
	TaskQuoteExpirySweep = "quotes:expire"
	// TaskCatalogWarm rebuilds the cached product picker.
	TaskCatalogWarm = "catalog:warm"
	// TaskCatalogImport upserts products from an uploaded spreadsheet.
	TaskCatalogImport = "catalog:import"
)

// QuoteExpiryPayload is empty today; the sweep always runs as of the current date.
type QuoteExpiryPayload struct {
	Reason string `json:"reason,omitempty"`
}

// CatalogImportPayload carries a spreadsheet to import.
type CatalogImportPayload struct {
	FileName string `json:"file_name"`
	Content  []byte `json:"content"`
}

// NewQuoteExpiryTask builds the expiry sweep task.
func NewQuoteExpiryTask(reason string) (*asynq.Task, error) {
	data, err := json.Marshal(QuoteExpiryPayload{Reason: reason})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskQuoteExpirySweep, data), nil
}

// NewCatalogWarmTask builds the picker warm-up task.
func NewCatalogWarmTask() *asynq.Task {
	return asynq.NewTask(TaskCatalogWarm, nil)
}

// NewCatalogImportTask builds an import task for one file.
func NewCatalogImportTask(fileName string, content []byte) (*asynq.Task, error) {
	if len(content) == 0 {
		return nil, fmt.Errorf("catalog import: %s is empty", fileName)
	}
	data, err := json.Marshal(CatalogImportPayload{FileName: filepath.Base(fileName), Content: content})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCatalogImport, data, asynq.MaxRetry(1)), nil
}

// TaskByName builds a payload-free task for manual triggering.
func TaskByName(name string) (*asynq.Task, error) {
	switch name {
	case TaskQuoteExpirySweep, "quote-expiry":
		return NewQuoteExpiryTask("manual")
	case TaskCatalogWarm, "catalog-warm":
		return NewCatalogWarmTask(), nil
	default:
		return nil, fmt.Errorf("jobs: unsupported job %q", name)
	}
}
