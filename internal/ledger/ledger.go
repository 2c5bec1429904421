// Package ledger defines the transaction store used by the service.
package ledger

import "github.com/dvloznov/wealthwisdom/internal/domain"

// Store is an ordered collection of transactions, newest insertion first.
// Add never fails: missing fields are defaulted.
type Store interface {
	// Add builds a complete transaction from in and puts it at the head.
	Add(in domain.TransactionInput) domain.Transaction

	// Remove deletes the transaction with id. It reports whether one was removed;
	// removing an unknown id is a no-op.
	Remove(id string) bool

	// List returns a copy of the collection, newest insertion first.
	List() []domain.Transaction

	// Len returns the number of transactions.
	Len() int
}
