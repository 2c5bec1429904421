package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/dvloznov/wealthwisdom/internal/domain"
	"github.com/google/uuid"
)

// Decode reads a JSON array of transactions, newest first. Entries are
// normalized like new transactions dated today, and an entry with a missing
// or repeated id gets a fresh one.
func Decode(r io.Reader) ([]domain.Transaction, error) {
	var txs []domain.Transaction
	if err := json.NewDecoder(r).Decode(&txs); err != nil {
		if errors.Is(err, io.EOF) {
			return []domain.Transaction{}, nil
		}
		return nil, fmt.Errorf("Decode: %w", err)
	}
	if txs == nil {
		return []domain.Transaction{}, nil
	}

	today := domain.Today(time.Now())
	seen := make(map[string]struct{}, len(txs))
	for i, tx := range txs {
		tx = domain.Normalize(tx, today)
		if _, dup := seen[tx.ID]; dup || tx.ID == "" {
			tx.ID = uuid.NewString()
		}
		seen[tx.ID] = struct{}{}
		txs[i] = tx
	}
	return txs, nil
}

// Encode writes txs as an indented JSON array.
func Encode(w io.Writer, txs []domain.Transaction) error {
	if txs == nil {
		txs = []domain.Transaction{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(txs); err != nil {
		return fmt.Errorf("Encode: %w", err)
	}
	return nil
}

// ReadFile loads a ledger file. A missing file is an empty ledger.
func ReadFile(path string) ([]domain.Transaction, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []domain.Transaction{}, nil
		}
		return nil, fmt.Errorf("ReadFile: %w", err)
	}
	defer f.Close()

	txs, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("ReadFile: %s: %w", path, err)
	}
	return txs, nil
}

// WriteFile replaces the ledger file at path.
func WriteFile(path string, txs []domain.Transaction) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".ledger-*.json")
	if err != nil {
		return fmt.Errorf("WriteFile: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := Encode(tmp, txs); err != nil {
		tmp.Close()
		return fmt.Errorf("WriteFile: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("WriteFile: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("WriteFile: %w", err)
	}
	return nil
}
