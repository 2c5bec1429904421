package requests

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dvloznov/wealthwisdom/internal/gateway"
	"github.com/dvloznov/wealthwisdom/internal/logger"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Phase is the tracker's coarse state.
type Phase string

const (
	PhaseIdle     Phase = "idle"
	PhaseInFlight Phase = "in_flight"
)

// State is a snapshot of the tracker.
type State struct {
	Phase   Phase    `json:"phase"`
	Current *Request `json:"current,omitempty"`
	Last    *Request `json:"last,omitempty"`
}

// Tracker allows at most one AI request in flight and records every request
// in a Store.
type Tracker struct {
	mu      sync.Mutex
	store   Store
	current *Request
	last    *Request
	log     zerolog.Logger
	now     func() time.Time
	newID   func() string
}

// TrackerOption customizes a Tracker.
type TrackerOption func(*Tracker)

// WithClock overrides the tracker's clock.
func WithClock(now func() time.Time) TrackerOption {
	return func(t *Tracker) { t.now = now }
}

// NewTracker creates an idle tracker backed by store.
func NewTracker(store Store, log zerolog.Logger, opts ...TrackerOption) *Tracker {
	t := &Tracker{
		store: store,
		log:   log.With().Str("component", "tracker").Logger(),
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Begin records a new in-flight request of the given kind. It returns ErrBusy
// if another request has not completed yet.
func (t *Tracker) Begin(ctx context.Context, kind Kind) (*Request, error) {
	log := logger.ForComponent(ctx, "tracker", t.log)

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.current != nil {
		log.Debug().Str("kind", string(kind)).Str("in_flight", t.current.ID).Msg("Rejected AI request while busy")
		return nil, ErrBusy
	}

	req := &Request{
		ID:        t.newID(),
		Kind:      kind,
		Status:    StatusInFlight,
		StartedAt: t.now().UTC(),
	}
	if err := t.store.Save(ctx, req); err != nil {
		return nil, fmt.Errorf("Begin: save request: %w", err)
	}
	t.current = req

	log.Info().Str("ai_request_id", req.ID).Str("kind", string(kind)).Msg("AI request started")
	return req.Clone(), nil
}

// Succeed completes req successfully; transactionID may be empty.
func (t *Tracker) Succeed(ctx context.Context, req *Request, transactionID string) error {
	return t.complete(ctx, req, func(cur *Request) {
		cur.Status = StatusSucceeded
		cur.TransactionID = transactionID
	})
}

// Fail completes req as failed, classifying cause with gateway.KindOf.
func (t *Tracker) Fail(ctx context.Context, req *Request, cause error) error {
	return t.complete(ctx, req, func(cur *Request) {
		cur.Status = StatusFailed
		cur.FailureKind = string(gateway.KindOf(cause))
		if cause != nil {
			cur.Error = cause.Error()
		}
	})
}

func (t *Tracker) complete(ctx context.Context, req *Request, apply func(*Request)) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if req == nil || t.current == nil || t.current.ID != req.ID {
		return fmt.Errorf("complete: request is not in flight")
	}

	cur := t.current
	apply(cur)
	done := t.now().UTC()
	cur.CompletedAt = &done

	t.current = nil
	t.last = cur

	log := logger.ForComponent(ctx, "tracker", t.log)
	ev := log.Info()
	if cur.Status == StatusFailed {
		ev = log.Warn().Str("failure_kind", cur.FailureKind).Str("error", cur.Error)
	}
	ev.Str("ai_request_id", cur.ID).
		Str("kind", string(cur.Kind)).
		Str("status", string(cur.Status)).
		Dur("elapsed", done.Sub(cur.StartedAt)).
		Msg("AI request completed")

	if err := t.store.Save(ctx, cur); err != nil {
		return fmt.Errorf("complete: save request: %w", err)
	}
	return nil
}

// Phase reports whether an AI request is in flight.
func (t *Tracker) Phase() Phase {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current != nil {
		return PhaseInFlight
	}
	return PhaseIdle
}

// State returns the phase with copies of the current and last requests.
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := State{Phase: PhaseIdle, Last: t.last.Clone()}
	if t.current != nil {
		s.Phase = PhaseInFlight
		s.Current = t.current.Clone()
	}
	return s
}

// History lists recorded requests.
func (t *Tracker) History(ctx context.Context, filter Filter) ([]*Request, error) {
	return t.store.List(ctx, filter)
}

// Get returns one recorded request.
func (t *Tracker) Get(ctx context.Context, id string) (*Request, error) {
	return t.store.Get(ctx, id)
}
