package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dvloznov/wealthwisdom/internal/domain"
	"github.com/dvloznov/wealthwisdom/internal/logger"
	"github.com/rs/zerolog"
	"google.golang.org/genai"
)

// DefaultModel is used when no model name is configured.
const DefaultModel = "gemini-3-flash-preview"

const (
	opParseFreeText     = "ParseFreeText"
	opParseReceiptImage = "ParseReceiptImage"
	opAnalyzeHabits     = "AnalyzeHabits"
)

// Config selects the Gemini backend and credentials.
type Config struct {
	APIKey   string
	Model    string
	Backend  string // "gemini" or "vertex"
	Project  string
	Location string
}

// GeminiGateway implements Gateway on top of the genai client.
type GeminiGateway struct {
	gen   ContentGenerator
	model string
	log   zerolog.Logger
	now   func() time.Time
}

// Option customizes a GeminiGateway.
type Option func(*GeminiGateway)

// WithClock overrides the clock used for the "today" hint in prompts.
func WithClock(now func() time.Time) Option {
	return func(g *GeminiGateway) { g.now = now }
}

// New wraps an existing content generator.
func New(gen ContentGenerator, model string, log zerolog.Logger, opts ...Option) *GeminiGateway {
	if model == "" {
		model = DefaultModel
	}
	g := &GeminiGateway{
		gen:   gen,
		model: model,
		log:   log.With().Str("component", "gateway").Str("model", model).Logger(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// NewFromConfig creates the genai client described by cfg. The API key is not
// checked locally: if the client cannot be created, the gateway is still
// returned and every call fails with a network failure.
func NewFromConfig(ctx context.Context, cfg Config, log zerolog.Logger, opts ...Option) *GeminiGateway {
	gen, err := NewClientGenerator(ctx, cfg)
	if err != nil {
		log.Warn().Err(err).Msg("Gemini client unavailable; AI operations will fail")
		gen = unavailableGenerator{err: err}
	}
	return New(gen, cfg.Model, log, opts...)
}

// NewClientGenerator builds a genai client for the configured backend and
// returns its Models service.
func NewClientGenerator(ctx context.Context, cfg Config) (ContentGenerator, error) {
	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.Backend == "vertex" {
		cc = &genai.ClientConfig{
			Backend:  genai.BackendVertexAI,
			Project:  cfg.Project,
			Location: cfg.Location,
		}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("NewClientGenerator: create genai client: %w", err)
	}
	return client.Models, nil
}

type unavailableGenerator struct {
	err error
}

func (u unavailableGenerator) GenerateContent(context.Context, string, []*genai.Content, *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	return nil, u.err
}

// ParseFreeText implements Gateway.
func (g *GeminiGateway) ParseFreeText(ctx context.Context, text string) (domain.TransactionInput, error) {
	today := domain.Today(g.now()).String()
	contents := []*genai.Content{
		{
			Role:  "user",
			Parts: []*genai.Part{{Text: freeTextPrompt(text, today)}},
		},
	}

	raw, err := g.generate(ctx, opParseFreeText, contents, jsonConfig(freeTextSchema()))
	if err != nil {
		return domain.TransactionInput{}, err
	}
	in, err := decodeFreeText(raw)
	if err != nil {
		return domain.TransactionInput{}, g.fail(ctx, schemaFailure(opParseFreeText, err), raw)
	}
	return in, nil
}

// ParseReceiptImage implements Gateway.
func (g *GeminiGateway) ParseReceiptImage(ctx context.Context, image []byte, mimeType string) (domain.TransactionInput, error) {
	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{InlineData: &genai.Blob{MIMEType: mimeType, Data: image}},
				{Text: receiptPrompt()},
			},
		},
	}

	raw, err := g.generate(ctx, opParseReceiptImage, contents, jsonConfig(receiptSchema()))
	if err != nil {
		return domain.TransactionInput{}, err
	}
	in, err := decodeReceipt(raw)
	if err != nil {
		return domain.TransactionInput{}, g.fail(ctx, schemaFailure(opParseReceiptImage, err), raw)
	}
	return in, nil
}

// AnalyzeHabits implements Gateway.
func (g *GeminiGateway) AnalyzeHabits(ctx context.Context, txs []domain.Transaction) (domain.InsightReport, error) {
	contents := []*genai.Content{
		{
			Role:  "user",
			Parts: []*genai.Part{{Text: insightPrompt(txs)}},
		},
	}

	raw, err := g.generate(ctx, opAnalyzeHabits, contents, jsonConfig(insightSchema()))
	if err != nil {
		return domain.InsightReport{}, err
	}
	report, err := decodeInsight(raw)
	if err != nil {
		return domain.InsightReport{}, g.fail(ctx, schemaFailure(opAnalyzeHabits, err), raw)
	}
	return report, nil
}

// generate performs one model call and returns the raw answer text.
func (g *GeminiGateway) generate(ctx context.Context, op string, contents []*genai.Content, config *genai.GenerateContentConfig) (string, error) {
	start := g.now()
	resp, err := g.gen.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		return "", g.fail(ctx, networkFailure(op, err), "")
	}
	if resp == nil {
		return "", g.fail(ctx, schemaFailure(op, ErrEmptyResponse), "")
	}

	raw := resp.Text()
	if raw == "" {
		return "", g.fail(ctx, schemaFailure(op, ErrEmptyResponse), "")
	}

	log := g.logFor(ctx)
	log.Debug().
		Str("op", op).
		Dur("elapsed", g.now().Sub(start)).
		Int("response_bytes", len(raw)).
		Msg("Model call completed")
	return raw, nil
}

// logFor prefers the request-scoped logger carried by ctx.
func (g *GeminiGateway) logFor(ctx context.Context) zerolog.Logger {
	if _, ok := logger.Lookup(ctx); !ok {
		return g.log
	}
	return logger.ForComponent(ctx, "gateway", g.log).With().Str("model", g.model).Logger()
}

func (g *GeminiGateway) fail(ctx context.Context, f *Failure, raw string) error {
	log := g.logFor(ctx)
	ev := log.Error().Err(f.Err).Str("op", f.Op).Str("kind", string(f.Kind))
	if raw != "" {
		ev = ev.Str("raw_response", raw)
	}
	if errors.Is(f.Err, context.Canceled) || errors.Is(f.Err, context.DeadlineExceeded) {
		ev = ev.Bool("context_done", true)
	}
	ev.Msg("Model call failed")
	return f
}

var _ Gateway = (*GeminiGateway)(nil)
