// Package bigquery owns the analytics dataset: it verifies or creates the
// fact tables at startup and streams rows into them.
package bigquery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const metadataTimeout = 10 * time.Second

var (
	errProjectIDRequired    = errors.New("gcp project id is required")
	errDatasetRequired      = errors.New("bigquery dataset is required")
	errTableNameRequired    = errors.New("bigquery table name is required")
	errClientNotInitialized = errors.New("bigquery client not initialized")
)

// TableSpec describes a table the client manages. A nil Schema means the table
// must already exist.
type TableSpec struct {
	Name   string
	Schema bigquery.Schema
	// PartitionField defaults to the first TIMESTAMP column, then ingestion time.
	PartitionField string
	Clustering     []string
}

func (s TableSpec) metadata() *bigquery.TableMetadata {
	field := s.PartitionField
	if field == "" {
		field = firstTimestamp(s.Schema)
	}
	meta := &bigquery.TableMetadata{
		Schema:           s.Schema,
		TimePartitioning: &bigquery.TimePartitioning{Type: bigquery.DayPartitioningType, Field: field},
	}
	if len(s.Clustering) > 0 {
		meta.Clustering = &bigquery.Clustering{Fields: s.Clustering}
	}
	return meta
}

type Client struct {
	client  *bigquery.Client
	dataset *bigquery.Dataset
	tables  []TableSpec
}

// NewClient connects to the configured project and makes sure every table in
// tables exists, creating missing ones that carry a schema.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.BigQueryConfig, tables []TableSpec, logg *logger.Logger) (*Client, error) {
	projectID := strings.TrimSpace(gcp.ProjectID)
	if projectID == "" {
		return nil, errProjectIDRequired
	}
	datasetID := strings.TrimSpace(cfg.Dataset)
	if datasetID == "" {
		return nil, errDatasetRequired
	}
	specs, err := normalizeSpecs(tables)
	if err != nil {
		return nil, err
	}

	bq, err := bigquery.NewClient(ctx, projectID, clientOptions(gcp)...)
	if err != nil {
		return nil, fmt.Errorf("create bigquery client: %w", err)
	}
	c := &Client{client: bq, dataset: bq.Dataset(datasetID), tables: specs}
	if err := c.ensureTables(ctx); err != nil {
		_ = bq.Close()
		return nil, err
	}
	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{"dataset": datasetID, "tables": len(specs)}), "bigquery client initialized")
	}
	return c, nil
}

func normalizeSpecs(tables []TableSpec) ([]TableSpec, error) {
	out := make([]TableSpec, 0, len(tables))
	for _, t := range tables {
		t.Name = strings.TrimSpace(t.Name)
		if t.Name != "" {
			out = append(out, t)
		}
	}
	if len(out) == 0 {
		return nil, errTableNameRequired
	}
	return out, nil
}

// clientOptions prefers inline credentials JSON over a credentials file and
// falls back to application default credentials.
func clientOptions(gcp config.GCPConfig) []option.ClientOption {
	if strings.TrimSpace(gcp.CredentialsJSON) != "" {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(gcp.CredentialsJSON))}
	}
	if strings.TrimSpace(gcp.ApplicationCredentials) != "" {
		return []option.ClientOption{option.WithCredentialsFile(gcp.ApplicationCredentials)}
	}
	return nil
}

func (c *Client) ensureTables(ctx context.Context) error {
	if c == nil || c.dataset == nil {
		return errClientNotInitialized
	}
	ctx, cancel := context.WithTimeout(ctx, metadataTimeout)
	defer cancel()

	if _, err := c.dataset.Metadata(ctx); err != nil {
		if apiStatus(err) == http.StatusNotFound {
			return fmt.Errorf("dataset %q does not exist", c.dataset.DatasetID)
		}
		return fmt.Errorf("check dataset %q: %w", c.dataset.DatasetID, err)
	}
	for _, spec := range c.tables {
		_, err := c.dataset.Table(spec.Name).Metadata(ctx)
		switch {
		case err == nil:
			continue
		case apiStatus(err) != http.StatusNotFound:
			return fmt.Errorf("check table %q: %w", spec.Name, err)
		case spec.Schema == nil:
			return fmt.Errorf("table %q does not exist", spec.Name)
		}
		// another replica may create it first
		if err := c.dataset.Table(spec.Name).Create(ctx, spec.metadata()); err != nil && apiStatus(err) != http.StatusConflict {
			return fmt.Errorf("create table %q: %w", spec.Name, err)
		}
	}
	return nil
}

// Ping checks that the dataset and tables are still reachable.
func (c *Client) Ping(ctx context.Context) error {
	return c.ensureTables(ctx)
}

// InsertRows streams rows into table. Rows may implement bigquery.ValueSaver
// to supply insert ids for best-effort dedupe.
func (c *Client) InsertRows(ctx context.Context, table string, rows []any) error {
	if c == nil || c.client == nil {
		return errClientNotInitialized
	}
	table = strings.TrimSpace(table)
	if table == "" {
		return errTableNameRequired
	}
	if len(rows) == 0 {
		return nil
	}
	return c.dataset.Table(table).Inserter().Put(ctx, rows)
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

func firstTimestamp(schema bigquery.Schema) string {
	for _, field := range schema {
		if field.Type == bigquery.TimestampFieldType {
			return field.Name
		}
	}
	return ""
}

// apiStatus returns the HTTP status of a googleapi error, or 0.
func apiStatus(err error) int {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return 0
}
