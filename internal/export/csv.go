package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"

	"github.com/dvloznov/wealthwisdom/internal/domain"
)

var csvHeader = []string{"id", "date", "type", "category", "description", "amount"}

// WriteCSV writes txs in the order given, one row per transaction.
func WriteCSV(w io.Writer, txs []domain.Transaction) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("WriteCSV: header: %w", err)
	}

	for _, tx := range txs {
		record := []string{
			tx.ID,
			tx.Date.String(),
			string(tx.Type),
			tx.Category,
			tx.Description,
			tx.Amount.String(),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("WriteCSV: row %s: %w", tx.ID, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("WriteCSV: flush: %w", err)
	}
	return nil
}

// CSVSink writes the ledger to an io.Writer.
type CSVSink struct {
	W io.Writer
}

// Name implements Sink.
func (CSVSink) Name() string { return "csv" }

// Export implements Sink.
func (s CSVSink) Export(ctx context.Context, txs []domain.Transaction) (int, error) {
	if err := WriteCSV(s.W, txs); err != nil {
		return 0, err
	}
	return len(txs), nil
}
