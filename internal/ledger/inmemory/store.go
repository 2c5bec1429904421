package inmemory

import (
	"sync"
	"time"

	"github.com/dvloznov/wealthwisdom/internal/domain"
	"github.com/dvloznov/wealthwisdom/internal/ledger"
	"github.com/google/uuid"
)

// Store is an in-memory implementation of ledger.Store.
// It is safe for concurrent use. Data is lost on restart.
type Store struct {
	mu    sync.RWMutex
	txs   []domain.Transaction // oldest insertion first
	ids   map[string]struct{}
	now   func() time.Time
	newID func() string
	seed  []domain.Transaction
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets the clock used to default transaction dates.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDGenerator sets the id source. Colliding ids are regenerated.
func WithIDGenerator(gen func() string) Option {
	return func(s *Store) { s.newID = gen }
}

// WithSeed preloads transactions given newest first. Each entry is
// normalized like a new transaction; an entry with an empty or duplicate id
// gets a fresh one.
func WithSeed(txs []domain.Transaction) Option {
	return func(s *Store) { s.seed = append(s.seed, txs...) }
}

// NewStore creates an in-memory transaction store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		ids:   make(map[string]struct{}),
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}

	today := domain.Today(s.now())
	seeded := make([]domain.Transaction, len(s.seed))
	for i, tx := range s.seed {
		tx = domain.Normalize(tx, today)
		if _, dup := s.ids[tx.ID]; dup || tx.ID == "" {
			tx.ID = s.freshID()
		}
		s.ids[tx.ID] = struct{}{}
		seeded[len(seeded)-1-i] = tx
	}
	s.txs = append(s.txs, seeded...)
	s.seed = nil

	return s
}

// freshID returns an unused id. Callers hold the lock or own s exclusively.
func (s *Store) freshID() string {
	for {
		id := s.newID()
		if _, taken := s.ids[id]; !taken && id != "" {
			return id
		}
	}
}

// Add implements ledger.Store.
func (s *Store) Add(in domain.TransactionInput) domain.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.freshID()
	tx := domain.NewTransaction(id, in, domain.Today(s.now()))
	s.ids[id] = struct{}{}
	s.txs = append(s.txs, tx)

	return tx
}

// Remove implements ledger.Store.
func (s *Store) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.ids[id]; !ok {
		return false
	}

	for i := range s.txs {
		if s.txs[i].ID == id {
			s.txs = append(s.txs[:i], s.txs[i+1:]...)
			break
		}
	}
	delete(s.ids, id)

	return true
}

// List implements ledger.Store.
func (s *Store) List() []domain.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Transaction, len(s.txs))
	for i, tx := range s.txs {
		out[len(s.txs)-1-i] = tx
	}
	return out
}

// Len implements ledger.Store.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.txs)
}

// Ensure Store implements ledger.Store.
var _ ledger.Store = (*Store)(nil)
