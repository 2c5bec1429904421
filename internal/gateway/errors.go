package gateway

import (
	"errors"
	"fmt"
)

// Kind classifies why a model call failed.
type Kind string

const (
	// KindNetwork covers transport, authentication and API errors, including
	// a client that could not be created.
	KindNetwork Kind = "network"

	// KindSchema covers empty answers, malformed JSON and answers that do not
	// match the requested schema.
	KindSchema Kind = "schema"
)

// ErrEmptyResponse is returned inside a schema failure when the model answers
// with no text.
var ErrEmptyResponse = errors.New("empty response from model")

// Failure is the error returned by every Gateway operation.
type Failure struct {
	Op   string
	Kind Kind
	Err  error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s: %s failure: %v", f.Op, f.Kind, f.Err)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// KindOf returns the failure kind carried by err, or "" when err is nil or
// not a gateway failure.
func KindOf(err error) Kind {
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind
	}
	return ""
}

func networkFailure(op string, err error) *Failure {
	return &Failure{Op: op, Kind: KindNetwork, Err: err}
}

func schemaFailure(op string, err error) *Failure {
	return &Failure{Op: op, Kind: KindSchema, Err: err}
}
