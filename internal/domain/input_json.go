package domain

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// UnmarshalJSON accepts any JSON object. A field whose value has the wrong
// JSON type is treated as absent, so NewTransaction defaults it. Only a body
// that is not an object is an error.
func (in *TransactionInput) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("TransactionInput: %w", err)
	}

	*in = TransactionInput{
		Amount:      looseAmount(fields["amount"]),
		Type:        TransactionType(looseString(fields["type"])),
		Category:    looseString(fields["category"]),
		Description: looseString(fields["description"]),
		Date:        looseString(fields["date"]),
	}
	return nil
}

// looseAmount reads a JSON number or numeric string.
func looseAmount(raw json.RawMessage) *decimal.Decimal {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	var d decimal.Decimal
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil
	}
	return &d
}

func looseString(raw json.RawMessage) string {
	var s string
	if len(raw) == 0 || json.Unmarshal(raw, &s) != nil {
		return ""
	}
	return s
}
