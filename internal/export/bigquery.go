package export

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/dvloznov/wealthwisdom/internal/domain"
	"github.com/rs/zerolog"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// Row is one transaction in the BigQuery table.
type Row struct {
	TransactionID   string     `bigquery:"transaction_id"`   // REQUIRED
	TransactionDate civil.Date `bigquery:"transaction_date"` // REQUIRED DATE
	Type            string     `bigquery:"type"`             // income | expense

	Amount       *big.Rat `bigquery:"amount"`        // REQUIRED NUMERIC, non-negative
	SignedAmount *big.Rat `bigquery:"signed_amount"` // NUMERIC, negative for expenses

	CategoryName string `bigquery:"category_name"`
	Description  string `bigquery:"description"`

	ExportedTS time.Time `bigquery:"exported_ts"`
}

// ToRow converts a transaction to its BigQuery row.
func ToRow(tx domain.Transaction, exportedAt time.Time) *Row {
	return &Row{
		TransactionID:   tx.ID,
		TransactionDate: tx.Date,
		Type:            string(tx.Type),
		Amount:          tx.Amount.Rat(),
		SignedAmount:    tx.Signed().Rat(),
		CategoryName:    tx.Category,
		Description:     tx.Description,
		ExportedTS:      exportedAt.UTC(),
	}
}

var requiredColumns = map[string]bool{
	"transaction_id":   true,
	"transaction_date": true,
	"type":             true,
	"amount":           true,
}

// RowSchema is the table schema for Row.
func RowSchema() (bigquery.Schema, error) {
	schema, err := bigquery.InferSchema(Row{})
	if err != nil {
		return nil, fmt.Errorf("RowSchema: %w", err)
	}
	for _, field := range schema {
		field.Required = requiredColumns[field.Name]
	}
	return schema, nil
}

type rowPutter interface {
	Put(ctx context.Context, src interface{}) error
}

// BigQuerySink streams the ledger into a BigQuery table. Rows carry the
// transaction id as insert id, so repeated exports are deduplicated by
// BigQuery on a best-effort basis.
type BigQuerySink struct {
	client   *bigquery.Client
	dataset  *bigquery.Dataset
	inserter rowPutter
	table    string
	tableID  string
	log      zerolog.Logger
	now      func() time.Time
	attempts uint
	delay    time.Duration
}

// NewBigQuerySink creates a client for project and targets dataset.table.
func NewBigQuerySink(ctx context.Context, project, dataset, table, credentialsFile string, log zerolog.Logger) (*BigQuerySink, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := bigquery.NewClient(ctx, project, opts...)
	if err != nil {
		return nil, fmt.Errorf("NewBigQuerySink: bigquery client: %w", err)
	}

	ds := client.Dataset(dataset)
	s := newBigQuerySink(ds.Table(table).Inserter(), dataset+"."+table, log)
	s.client = client
	s.dataset = ds
	s.tableID = table
	return s, nil
}

func newBigQuerySink(inserter rowPutter, table string, log zerolog.Logger) *BigQuerySink {
	return &BigQuerySink{
		inserter: inserter,
		table:    table,
		log:      log.With().Str("sink", "bigquery").Str("table", table).Logger(),
		now:      time.Now,
		attempts: defaultAttempts,
		delay:    defaultRetryDelay,
	}
}

// Name implements Sink.
func (s *BigQuerySink) Name() string { return "bigquery" }

// Export implements Sink.
func (s *BigQuerySink) Export(ctx context.Context, txs []domain.Transaction) (int, error) {
	if len(txs) == 0 {
		return 0, nil
	}

	exportedAt := s.now()
	savers := make([]*bigquery.StructSaver, len(txs))
	for i, tx := range txs {
		savers[i] = &bigquery.StructSaver{Struct: ToRow(tx, exportedAt), InsertID: tx.ID}
	}

	err := withRetry(ctx, s.log, s.attempts, s.delay, func() error {
		return s.inserter.Put(ctx, savers)
	})
	if err != nil {
		return 0, fmt.Errorf("Export: inserting rows into %s: %w", s.table, err)
	}

	s.log.Info().Int("rows", len(savers)).Msg("Ledger exported to BigQuery")
	return len(savers), nil
}

// EnsureTable creates the dataset and the export table when they are missing.
// The table is partitioned by transaction_date. It reports whether anything
// was created.
func (s *BigQuerySink) EnsureTable(ctx context.Context) (bool, error) {
	if s.dataset == nil {
		return false, errors.New("EnsureTable: sink has no BigQuery client")
	}

	created := false
	if _, err := s.dataset.Metadata(ctx); err != nil {
		if !isNotFound(err) {
			return false, fmt.Errorf("EnsureTable: dataset metadata: %w", err)
		}
		if err := s.dataset.Create(ctx, &bigquery.DatasetMetadata{}); err != nil {
			return false, fmt.Errorf("EnsureTable: create dataset: %w", err)
		}
		s.log.Info().Str("dataset", s.dataset.DatasetID).Msg("Dataset created")
		created = true
	}

	table := s.dataset.Table(s.tableID)
	if _, err := table.Metadata(ctx); err == nil {
		return created, nil
	} else if !isNotFound(err) {
		return false, fmt.Errorf("EnsureTable: table metadata: %w", err)
	}

	schema, err := RowSchema()
	if err != nil {
		return false, fmt.Errorf("EnsureTable: %w", err)
	}
	meta := &bigquery.TableMetadata{
		Schema:           schema,
		TimePartitioning: &bigquery.TimePartitioning{Field: "transaction_date"},
		Description:      "Ledger transactions exported by wealthwisdom",
	}
	if err := table.Create(ctx, meta); err != nil {
		return false, fmt.Errorf("EnsureTable: create table: %w", err)
	}

	s.log.Info().Msg("Export table created")
	return true, nil
}

func isNotFound(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound
}

// Close releases the BigQuery client.
func (s *BigQuerySink) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}
