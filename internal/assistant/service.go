// Package assistant ties the ledger, the AI gateway and the request tracker
// together. Every mutation publishes a fresh dashboard to the notifier.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/dvloznov/wealthwisdom/internal/aggregate"
	"github.com/dvloznov/wealthwisdom/internal/domain"
	"github.com/dvloznov/wealthwisdom/internal/gateway"
	"github.com/dvloznov/wealthwisdom/internal/ledger"
	"github.com/dvloznov/wealthwisdom/internal/logger"
	"github.com/dvloznov/wealthwisdom/internal/receipts"
	"github.com/dvloznov/wealthwisdom/internal/requests"
	"github.com/rs/zerolog"
)

// ErrEmptyInput is returned for blank quick-add text or an empty receipt image.
var ErrEmptyInput = errors.New("empty input")

// Notifier receives the recomputed dashboard after every store mutation.
type Notifier interface {
	Publish(d aggregate.Dashboard)
}

// Service is safe for concurrent use.
type Service struct {
	store    ledger.Store
	gw       gateway.Gateway
	tracker  *requests.Tracker
	archive  receipts.Archive
	notifier Notifier
	window   int
	recent   int
	log      zerolog.Logger

	mu      sync.RWMutex
	insight *domain.InsightReport
}

// Option customizes a Service.
type Option func(*Service)

// WithArchive stores scanned receipt images before they are parsed.
func WithArchive(a receipts.Archive) Option {
	return func(s *Service) { s.archive = a }
}

// WithNotifier sets the dashboard listener.
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithDashboardLimits sets the default trend window and recent list size.
func WithDashboardLimits(window, recent int) Option {
	return func(s *Service) {
		s.window = window
		s.recent = recent
	}
}

// New creates a Service.
func New(store ledger.Store, gw gateway.Gateway, tracker *requests.Tracker, log zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		store:   store,
		gw:      gw,
		tracker: tracker,
		archive: receipts.NopArchive{},
		window:  aggregate.DefaultTrendWindow,
		recent:  aggregate.DefaultRecentLimit,
		log:     log.With().Str("component", "assistant").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddTransaction records a manually entered transaction. It never consults
// the tracker, so it works while an AI request is in flight.
func (s *Service) AddTransaction(ctx context.Context, in domain.TransactionInput) domain.Transaction {
	tx := s.store.Add(in)
	log := s.logFor(ctx)
	log.Info().Str("transaction_id", tx.ID).Str("type", string(tx.Type)).Msg("Transaction added")
	s.publish()
	return tx
}

// DeleteTransaction removes id and reports whether it existed. Deleting an
// unknown id is a no-op.
func (s *Service) DeleteTransaction(ctx context.Context, id string) bool {
	removed := s.store.Remove(id)
	if removed {
		log := s.logFor(ctx)
		log.Info().Str("transaction_id", id).Msg("Transaction deleted")
		s.publish()
	}
	return removed
}

// Transactions returns the ledger newest first.
func (s *Service) Transactions() []domain.Transaction {
	return s.store.List()
}

// Dashboard computes the snapshot with the configured limits.
func (s *Service) Dashboard() aggregate.Dashboard {
	return s.DashboardWith(s.window, s.recent)
}

// DashboardWith computes the snapshot with explicit limits.
func (s *Service) DashboardWith(window, recent int) aggregate.Dashboard {
	return aggregate.Snapshot(s.store.List(), window, recent)
}

// QuickAdd asks the model to parse text and records the result.
func (s *Service) QuickAdd(ctx context.Context, text string) (domain.Transaction, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.Transaction{}, ErrEmptyInput
	}

	req, err := s.tracker.Begin(ctx, requests.KindParseText)
	if err != nil {
		return domain.Transaction{}, err
	}

	in, err := s.gw.ParseFreeText(ctx, text)
	if err != nil {
		s.fail(ctx, req, err)
		return domain.Transaction{}, fmt.Errorf("QuickAdd: %w", err)
	}

	tx := s.AddTransaction(ctx, in)
	s.succeed(ctx, req, tx.ID)
	return tx, nil
}

// ScanReceipt archives the image, asks the model to parse it and records the
// result as an expense unless the model said otherwise.
func (s *Service) ScanReceipt(ctx context.Context, image []byte, mimeType string) (domain.Transaction, error) {
	if len(image) == 0 {
		return domain.Transaction{}, ErrEmptyInput
	}

	req, err := s.tracker.Begin(ctx, requests.KindParseReceipt)
	if err != nil {
		return domain.Transaction{}, err
	}

	if uri, err := s.archive.Store(ctx, image, mimeType); err != nil {
		log := s.logFor(ctx)
		log.Warn().Err(err).Str("ai_request_id", req.ID).Msg("Failed to archive receipt")
	} else if uri != "" {
		log := s.logFor(ctx)
		log.Debug().Str("ai_request_id", req.ID).Str("uri", uri).Msg("Receipt stored")
	}

	in, err := s.gw.ParseReceiptImage(ctx, image, mimeType)
	if err != nil {
		s.fail(ctx, req, err)
		return domain.Transaction{}, fmt.Errorf("ScanReceipt: %w", err)
	}
	if in.Type == "" {
		in.Type = domain.TypeExpense
	}

	tx := s.AddTransaction(ctx, in)
	s.succeed(ctx, req, tx.ID)
	return tx, nil
}

// GenerateInsight analyzes the current ledger. On failure the previously held
// report is kept.
func (s *Service) GenerateInsight(ctx context.Context) (domain.InsightReport, error) {
	req, err := s.tracker.Begin(ctx, requests.KindAnalyzeHabits)
	if err != nil {
		return domain.InsightReport{}, err
	}

	report, err := s.gw.AnalyzeHabits(ctx, s.store.List())
	if err != nil {
		s.fail(ctx, req, err)
		return domain.InsightReport{}, fmt.Errorf("GenerateInsight: %w", err)
	}

	s.mu.Lock()
	s.insight = &report
	s.mu.Unlock()

	s.succeed(ctx, req, "")
	return report, nil
}

// Insight returns the held report, if any.
func (s *Service) Insight() (domain.InsightReport, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.insight == nil {
		return domain.InsightReport{}, false
	}
	return *s.insight, true
}

// ClearInsight drops the held report.
func (s *Service) ClearInsight() {
	s.mu.Lock()
	s.insight = nil
	s.mu.Unlock()
}

// RequestState reports whether an AI request is in flight.
func (s *Service) RequestState() requests.State {
	return s.tracker.State()
}

// Requests lists the AI request history.
func (s *Service) Requests(ctx context.Context, filter requests.Filter) ([]*requests.Request, error) {
	return s.tracker.History(ctx, filter)
}

// Request returns one recorded AI request.
func (s *Service) Request(ctx context.Context, id string) (*requests.Request, error) {
	return s.tracker.Get(ctx, id)
}

func (s *Service) succeed(ctx context.Context, req *requests.Request, txID string) {
	if err := s.tracker.Succeed(ctx, req, txID); err != nil {
		log := s.logFor(ctx)
		log.Error().Err(err).Str("ai_request_id", req.ID).Msg("Failed to record request outcome")
	}
}

func (s *Service) fail(ctx context.Context, req *requests.Request, cause error) {
	if err := s.tracker.Fail(ctx, req, cause); err != nil {
		log := s.logFor(ctx)
		log.Error().Err(err).Str("ai_request_id", req.ID).Msg("Failed to record request outcome")
	}
}

func (s *Service) logFor(ctx context.Context) zerolog.Logger {
	return logger.ForComponent(ctx, "assistant", s.log)
}

func (s *Service) publish() {
	if s.notifier == nil {
		return
	}
	s.notifier.Publish(s.Dashboard())
}
