package inmemory

import (
	"context"
	"fmt"
	"sync"

	"github.com/dvloznov/wealthwisdom/internal/requests"
)

// DefaultCapacity is the history size used when none is given.
const DefaultCapacity = 100

// Store is an in-memory implementation of requests.Store.
// It keeps the most recent requests up to a fixed capacity and is safe for
// concurrent use. Data is lost on restart.
type Store struct {
	mu       sync.RWMutex
	capacity int
	byID     map[string]*requests.Request
	order    []string // oldest first
}

// NewStore creates a store holding at most capacity requests.
func NewStore(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{
		capacity: capacity,
		byID:     make(map[string]*requests.Request),
	}
}

// Save implements requests.Store. Saving a new request beyond capacity evicts
// the oldest one.
func (s *Store) Save(ctx context.Context, req *requests.Request) error {
	if req == nil || req.ID == "" {
		return fmt.Errorf("Save: request ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[req.ID]; !exists {
		s.order = append(s.order, req.ID)
		if len(s.order) > s.capacity {
			evicted := s.order[0]
			s.order = s.order[1:]
			delete(s.byID, evicted)
		}
	}
	s.byID[req.ID] = req.Clone()

	return nil
}

// Get implements requests.Store.
func (s *Store) Get(ctx context.Context, id string) (*requests.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	req, exists := s.byID[id]
	if !exists {
		return nil, fmt.Errorf("Get: %s: %w", id, requests.ErrNotFound)
	}
	return req.Clone(), nil
}

// List implements requests.Store.
func (s *Store) List(ctx context.Context, filter requests.Filter) ([]*requests.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := []*requests.Request{}
	for i := len(s.order) - 1; i >= 0; i-- {
		req := s.byID[s.order[i]]
		if filter.Kind != "" && req.Kind != filter.Kind {
			continue
		}
		if filter.Status != "" && req.Status != filter.Status {
			continue
		}
		result = append(result, req.Clone())
	}

	if filter.Offset > 0 {
		if filter.Offset >= len(result) {
			return []*requests.Request{}, nil
		}
		result = result[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(result) {
		result = result[:filter.Limit]
	}

	return result, nil
}

var _ requests.Store = (*Store)(nil)
