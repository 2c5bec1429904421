package requests

import (
	"context"
	"errors"
	"time"
)

// Kind identifies which AI operation a request performed.
type Kind string

const (
	// KindParseText is a quick-add from natural-language text.
	KindParseText Kind = "parse_text"
	// KindParseReceipt is a receipt photo scan.
	KindParseReceipt Kind = "parse_receipt"
	// KindAnalyzeHabits is a spending-habit insight.
	KindAnalyzeHabits Kind = "analyze_habits"
)

// Status represents the current status of a request.
type Status string

const (
	// StatusInFlight indicates the model call has not returned yet.
	StatusInFlight Status = "in_flight"
	// StatusSucceeded indicates the request completed and its result was applied.
	StatusSucceeded Status = "succeeded"
	// StatusFailed indicates the request failed and nothing was applied.
	StatusFailed Status = "failed"
)

var (
	// ErrNotFound is returned when a request id is unknown.
	ErrNotFound = errors.New("request not found")

	// ErrBusy is returned by Tracker.Begin while another AI request is in flight.
	ErrBusy = errors.New("another AI request is in flight")
)

// Request is one AI call and its outcome.
type Request struct {
	// ID is the unique identifier for this request.
	ID string `json:"id"`

	Kind   Kind   `json:"kind"`
	Status Status `json:"status"`

	// FailureKind is "network" or "schema" when the request failed at the
	// model boundary, empty otherwise.
	FailureKind string `json:"failure_kind,omitempty"`

	// Error contains error details if the request failed.
	Error string `json:"error,omitempty"`

	// TransactionID is set when a parse request added a transaction.
	TransactionID string `json:"transaction_id,omitempty"`

	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Clone returns a deep copy of r.
func (r *Request) Clone() *Request {
	if r == nil {
		return nil
	}
	c := *r
	if r.CompletedAt != nil {
		t := *r.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

// Store keeps the history of AI requests.
type Store interface {
	// Save saves or updates a request.
	Save(ctx context.Context, req *Request) error

	// Get retrieves a request by ID, or ErrNotFound.
	Get(ctx context.Context, id string) (*Request, error)

	// List retrieves requests newest first with optional filtering.
	List(ctx context.Context, filter Filter) ([]*Request, error)
}

// Filter defines filtering criteria for listing requests.
type Filter struct {
	Kind   Kind
	Status Status

	// Limit limits the number of results; zero means no limit.
	Limit int

	// Offset for pagination.
	Offset int
}
