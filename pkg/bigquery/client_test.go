package bigquery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"testing"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"

	"github.com/angelmondragon/storefront-backend/pkg/config"
)

func TestNormalizeSpecsDropsBlankNames(t *testing.T) {
	specs, err := normalizeSpecs([]TableSpec{{Name: " order_facts "}, {Name: "  "}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(specs) != 1 || specs[0].Name != "order_facts" {
		t.Fatalf("unexpected specs %+v", specs)
	}

	if _, err := normalizeSpecs(nil); !errors.Is(err, errTableNameRequired) {
		t.Fatalf("expected table name error, got %v", err)
	}
}

func TestClientOptions(t *testing.T) {
	both := config.GCPConfig{CredentialsJSON: `{"type":"service_account"}`, ApplicationCredentials: "/tmp/creds"}
	if n := len(clientOptions(both)); n != 1 {
		t.Fatalf("expected one option, got %d", n)
	}
	if n := len(clientOptions(config.GCPConfig{ApplicationCredentials: "/tmp/creds"})); n != 1 {
		t.Fatalf("expected one option, got %d", n)
	}
	if n := len(clientOptions(config.GCPConfig{})); n != 0 {
		t.Fatalf("expected no options, got %d", n)
	}
}

func TestTableSpecMetadata(t *testing.T) {
	schema := bigquery.Schema{
		{Name: "order_id", Type: bigquery.StringFieldType},
		{Name: "occurred_at", Type: bigquery.TimestampFieldType},
		{Name: "ingested_at", Type: bigquery.TimestampFieldType},
	}

	meta := TableSpec{Name: "facts", Schema: schema, Clustering: []string{"order_id"}}.metadata()
	if meta.TimePartitioning.Field != "occurred_at" {
		t.Fatalf("expected first timestamp partitioning, got %q", meta.TimePartitioning.Field)
	}
	if meta.Clustering == nil || !slices.Equal(meta.Clustering.Fields, []string{"order_id"}) {
		t.Fatalf("unexpected clustering %+v", meta.Clustering)
	}

	meta = TableSpec{Name: "facts", Schema: schema, PartitionField: "ingested_at"}.metadata()
	if meta.TimePartitioning.Field != "ingested_at" || meta.Clustering != nil {
		t.Fatalf("explicit partition field ignored: %+v", meta)
	}

	meta = TableSpec{Name: "raw", Schema: bigquery.Schema{{Name: "x", Type: bigquery.StringFieldType}}}.metadata()
	if meta.TimePartitioning.Field != "" {
		t.Fatalf("expected ingestion-time partitioning, got %q", meta.TimePartitioning.Field)
	}
}

func TestAPIStatus(t *testing.T) {
	if got := apiStatus(fmt.Errorf("wrapped: %w", &googleapi.Error{Code: http.StatusNotFound})); got != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", got)
	}
	if got := apiStatus(errors.New("boom")); got != 0 {
		t.Fatalf("expected 0 for non-api errors, got %d", got)
	}
}

func TestNewClientValidatesConfig(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		gcp  config.GCPConfig
		bq   config.BigQueryConfig
		want error
	}{
		{config.GCPConfig{}, config.BigQueryConfig{}, errProjectIDRequired},
		{config.GCPConfig{ProjectID: "p"}, config.BigQueryConfig{}, errDatasetRequired},
		{config.GCPConfig{ProjectID: "p"}, config.BigQueryConfig{Dataset: "d"}, errTableNameRequired},
	}
	for _, tc := range cases {
		if _, err := NewClient(ctx, tc.gcp, tc.bq, nil, nil); !errors.Is(err, tc.want) {
			t.Fatalf("expected %v, got %v", tc.want, err)
		}
	}
}

func TestNilClient(t *testing.T) {
	var c *Client
	if err := c.InsertRows(context.Background(), "t", []any{1}); !errors.Is(err, errClientNotInitialized) {
		t.Fatalf("insert on nil client: %v", err)
	}
	if err := c.Ping(context.Background()); !errors.Is(err, errClientNotInitialized) {
		t.Fatalf("ping on nil client: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("close on nil client: %v", err)
	}
}
