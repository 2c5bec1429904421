// Package export writes the ledger to CSV and pushes it to external stores.
package export

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/dvloznov/wealthwisdom/internal/domain"
)

// ErrUnknownSink is returned by Registry.Get for an unconfigured sink name.
var ErrUnknownSink = errors.New("unknown export sink")

// Sink receives a full copy of the ledger.
type Sink interface {
	Name() string

	// Export writes txs and returns how many records were written.
	Export(ctx context.Context, txs []domain.Transaction) (int, error)
}

// Registry maps sink names to configured sinks.
type Registry struct {
	sinks map[string]Sink
}

// NewRegistry registers sinks by name; nil sinks are skipped.
func NewRegistry(sinks ...Sink) *Registry {
	r := &Registry{sinks: make(map[string]Sink)}
	for _, s := range sinks {
		if s != nil {
			r.sinks[s.Name()] = s
		}
	}
	return r
}

// Get returns the sink registered under name.
func (r *Registry) Get(name string) (Sink, error) {
	s, ok := r.sinks[name]
	if !ok {
		return nil, fmt.Errorf("Get: %q: %w", name, ErrUnknownSink)
	}
	return s, nil
}

// Names lists registered sinks alphabetically.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.sinks))
	for name := range r.sinks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
