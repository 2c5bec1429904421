package domain

import (
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// TransactionType tells whether a transaction adds to or takes from the balance.
type TransactionType string

const (
	TypeIncome  TransactionType = "income"
	TypeExpense TransactionType = "expense"
)

// Valid reports whether t is one of the known transaction types.
func (t TransactionType) Valid() bool {
	return t == TypeIncome || t == TypeExpense
}

const (
	// DefaultCategory is used when a transaction arrives without a category.
	DefaultCategory = "其他"

	// DefaultDescription is used when a transaction arrives without a description.
	DefaultDescription = "未命名交易"

	// DateFormat is the wire format of transaction dates.
	DateFormat = "2006-01-02"
)

// Transaction is a single recorded income or expense event.
// Amount is always a magnitude; the sign is derived from Type.
type Transaction struct {
	ID          string          `json:"id"`
	Amount      decimal.Decimal `json:"amount"`
	Type        TransactionType `json:"type"`
	Category    string          `json:"category"`
	Description string          `json:"description"`
	Date        civil.Date      `json:"date"`
}

// Signed returns the amount with the sign implied by the transaction type.
func (t Transaction) Signed() decimal.Decimal {
	if t.Type == TypeIncome {
		return t.Amount
	}
	return t.Amount.Neg()
}

// LedgerLine renders the transaction as "date: ±amount (category - description)".
func (t Transaction) LedgerLine() string {
	sign := "-"
	if t.Type == TypeIncome {
		sign = "+"
	}
	return fmt.Sprintf("%s: %s%s (%s - %s)", t.Date, sign, t.Amount.String(), t.Category, t.Description)
}

// TransactionInput is a partially specified transaction, as typed by a user
// or extracted by the model. Every field is optional.
type TransactionInput struct {
	Amount      *decimal.Decimal `json:"amount,omitempty"`
	Type        TransactionType  `json:"type,omitempty"`
	Category    string           `json:"category,omitempty"`
	Description string           `json:"description,omitempty"`
	Date        string           `json:"date,omitempty"`
}

// NewTransaction fills every missing or malformed field of in with its default.
// It never fails: an unknown type becomes an expense, a negative amount its
// magnitude and an unparseable date today.
func NewTransaction(id string, in TransactionInput, today civil.Date) Transaction {
	tx := Transaction{
		ID:          id,
		Amount:      decimal.Zero,
		Type:        TypeExpense,
		Category:    DefaultCategory,
		Description: DefaultDescription,
		Date:        today,
	}

	if in.Amount != nil {
		tx.Amount = in.Amount.Abs()
	}
	if in.Type.Valid() {
		tx.Type = in.Type
	}
	if c := strings.TrimSpace(in.Category); c != "" {
		tx.Category = c
	}
	if d := strings.TrimSpace(in.Description); d != "" {
		tx.Description = d
	}
	if d, ok := ParseDate(in.Date); ok {
		tx.Date = d
	}

	return tx
}

// Normalize applies the NewTransaction defaults to an already built
// transaction, such as one read from a file. The id is kept as is.
func Normalize(tx Transaction, today civil.Date) Transaction {
	in := TransactionInput{
		Amount:      &tx.Amount,
		Type:        tx.Type,
		Category:    tx.Category,
		Description: tx.Description,
	}
	if tx.Date.IsValid() {
		in.Date = tx.Date.String()
	}
	return NewTransaction(tx.ID, in, today)
}

// ParseDate parses a YYYY-MM-DD string, reporting false for anything else.
func ParseDate(s string) (civil.Date, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return civil.Date{}, false
	}
	d, err := civil.ParseDate(s)
	if err != nil || !d.IsValid() {
		return civil.Date{}, false
	}
	return d, true
}

// Today returns the calendar date of now in its own location.
func Today(now time.Time) civil.Date {
	return civil.DateOf(now)
}
