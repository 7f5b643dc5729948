// Package writer streams order fact rows into BigQuery.
package writer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	cbigquery "cloud.google.com/go/bigquery"

	"github.com/angelmondragon/storefront-backend/internal/analytics/types"
	pkgbigquery "github.com/angelmondragon/storefront-backend/pkg/bigquery"
	"github.com/angelmondragon/storefront-backend/pkg/config"
)

// Config controls batching and retries for the writer.
type Config struct {
	OrderFactsTable string
	BatchSize       int
	RetryPolicy     RetryPolicy
}

// ConfigFromSettings maps the BigQuery settings onto a writer config.
func ConfigFromSettings(cfg config.BigQueryConfig) Config {
	return Config{
		OrderFactsTable: cfg.OrderFactsTable,
		BatchSize:       cfg.InsertBatchSize,
		RetryPolicy:     RetryPolicy{MaxAttempts: cfg.InsertMaxRetries},
	}
}

type tableInserter interface {
	InsertRows(ctx context.Context, table string, rows []any) error
}

// BigQueryWriter buffers rows until BatchSize is reached and then streams them
// with the event id as insert id, so BigQuery drops rows re-sent after a
// partially failed insert. Safe for concurrent receive callbacks.
type BigQueryWriter struct {
	client    tableInserter
	table     string
	batchSize int
	retry     RetryPolicy
	schema    cbigquery.Schema

	mu      sync.Mutex
	pending []types.OrderFactRow
	seen    map[string]struct{}
}

// New creates a writer over the shared BigQuery client.
func New(client *pkgbigquery.Client, cfg Config) (*BigQueryWriter, error) {
	if client == nil {
		return nil, errors.New("bigquery client required")
	}
	return newWriter(client, cfg)
}

func newWriter(client tableInserter, cfg Config) (*BigQueryWriter, error) {
	table := strings.TrimSpace(cfg.OrderFactsTable)
	if table == "" {
		return nil, errors.New("order facts table is required")
	}
	return &BigQueryWriter{
		client:    client,
		table:     table,
		batchSize: max(cfg.BatchSize, 1),
		retry:     cfg.RetryPolicy.withDefaults(),
		schema:    types.OrderFactsSchema(),
		seen:      map[string]struct{}{},
	}, nil
}

// InsertOrderFact queues row and flushes when the batch is full. A failed flush
// keeps the batch for the next call; a redelivered event already in the batch
// is not queued twice.
func (w *BigQueryWriter) InsertOrderFact(ctx context.Context, row types.OrderFactRow) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, dup := w.seen[row.EventID]; !dup {
		w.seen[row.EventID] = struct{}{}
		w.pending = append(w.pending, row)
	}
	if len(w.pending) < w.batchSize {
		return nil
	}
	return w.flushLocked(ctx)
}

// Flush writes whatever is queued.
func (w *BigQueryWriter) Flush(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.flushLocked(ctx)
}

// Pending reports how many rows are queued.
func (w *BigQueryWriter) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.pending)
}

func (w *BigQueryWriter) flushLocked(ctx context.Context) error {
	if len(w.pending) == 0 {
		return nil
	}
	savers := make([]any, 0, len(w.pending))
	for i := range w.pending {
		savers = append(savers, &cbigquery.StructSaver{
			Schema:   w.schema,
			Struct:   &w.pending[i],
			InsertID: w.pending[i].EventID,
		})
	}
	if err := w.retry.do(ctx, func(ctx context.Context) error {
		return w.client.InsertRows(ctx, w.table, savers)
	}); err != nil {
		return fmt.Errorf("insert %d rows into %s: %w", len(savers), w.table, err)
	}
	w.pending = nil
	clear(w.seen)
	return nil
}

// EncodeJSON turns payload into a BigQuery JSON column value. Nil and empty
// raw input become NULL.
func EncodeJSON(payload any) (cbigquery.NullJSON, error) {
	var raw []byte
	switch v := payload.(type) {
	case nil:
		return cbigquery.NullJSON{}, nil
	case cbigquery.NullJSON:
		return v, nil
	case json.RawMessage:
		raw = v
	case []byte:
		raw = v
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return cbigquery.NullJSON{}, fmt.Errorf("marshal json: %w", err)
		}
		raw = encoded
	}
	if len(raw) == 0 {
		return cbigquery.NullJSON{}, nil
	}
	return cbigquery.NullJSON{Valid: true, JSONVal: string(raw)}, nil
}
