package gateway

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dvloznov/wealthwisdom/internal/domain"
	"github.com/dvloznov/wealthwisdom/internal/logger"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

type fakeGenerator struct {
	text string
	err  error

	calls    int
	model    string
	contents []*genai.Content
	config   *genai.GenerateContentConfig
}

func (f *fakeGenerator) GenerateContent(_ context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.calls++
	f.model = model
	f.contents = contents
	f.config = config
	if f.err != nil {
		return nil, f.err
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: &genai.Content{Parts: []*genai.Part{{Text: f.text}}}},
		},
	}, nil
}

func fixedNow() time.Time {
	return time.Date(2026, 10, 16, 9, 30, 0, 0, time.Local)
}

func newTestGateway(gen ContentGenerator) *GeminiGateway {
	return New(gen, "", zerolog.Nop(), WithClock(fixedNow))
}

func TestParseFreeText_Success(t *testing.T) {
	gen := &fakeGenerator{text: `{"amount": 35.5, "type": "expense", "category": "餐饮", "description": "午饭", "date": "2026-10-16"}`}
	g := newTestGateway(gen)

	in, err := g.ParseFreeText(context.Background(), "今天午饭花了35.5")
	require.NoError(t, err)

	require.NotNil(t, in.Amount)
	assert.True(t, in.Amount.Equal(decimal.RequireFromString("35.5")))
	assert.Equal(t, domain.TypeExpense, in.Type)
	assert.Equal(t, "餐饮", in.Category)
	assert.Equal(t, "午饭", in.Description)
	assert.Equal(t, "2026-10-16", in.Date)

	assert.Equal(t, 1, gen.calls)
	assert.Equal(t, DefaultModel, gen.model)
	require.NotNil(t, gen.config)
	assert.Equal(t, "application/json", gen.config.ResponseMIMEType)
	require.NotNil(t, gen.config.ResponseSchema)
	assert.ElementsMatch(t, []string{"amount", "type", "category", "description", "date"}, gen.config.ResponseSchema.Required)
	assert.Equal(t, []string{"income", "expense"}, gen.config.ResponseSchema.Properties["type"].Enum)

	require.Len(t, gen.contents, 1)
	require.Len(t, gen.contents[0].Parts, 1)
	prompt := gen.contents[0].Parts[0].Text
	assert.Contains(t, prompt, "今天午饭花了35.5")
	assert.Contains(t, prompt, "2026-10-16")
	assert.Contains(t, prompt, "餐饮, 购物, 交通, 娱乐, 居住, 工资, 其他")
}

func TestParseFreeText_StripsCodeFences(t *testing.T) {
	gen := &fakeGenerator{text: "```json\n{\"amount\": 5000, \"type\": \"income\", \"category\": \"工资\", \"description\": \"十月工资\", \"date\": \"2026-10-15\"}\n```"}
	g := newTestGateway(gen)

	in, err := g.ParseFreeText(context.Background(), "发工资5000")
	require.NoError(t, err)
	assert.Equal(t, domain.TypeIncome, in.Type)
	assert.True(t, in.Amount.Equal(decimal.NewFromInt(5000)))
}

func TestParseFreeText_SchemaFailures(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{name: "not json", text: "sorry, I cannot help with that"},
		{name: "empty", text: ""},
		{name: "fenced empty", text: "```json\n```"},
		{name: "missing amount", text: `{"type": "expense", "category": "餐饮", "description": "x", "date": "2026-10-16"}`},
		{name: "null amount", text: `{"amount": null, "type": "expense", "category": "餐饮", "description": "x", "date": "2026-10-16"}`},
		{name: "missing type", text: `{"amount": 1, "category": "餐饮", "description": "x", "date": "2026-10-16"}`},
		{name: "type out of enum", text: `{"amount": 1, "type": "transfer", "category": "餐饮", "description": "x", "date": "2026-10-16"}`},
		{name: "amount not numeric", text: `{"amount": "lots", "type": "expense", "category": "餐饮", "description": "x", "date": "2026-10-16"}`},
		{name: "unknown field", text: `{"amount": 1, "type": "expense", "category": "餐饮", "description": "x", "date": "2026-10-16", "currency": "CNY"}`},
		{name: "trailing data", text: `{"amount": 1, "type": "expense", "category": "餐饮", "description": "x", "date": "2026-10-16"} {}`},
		{name: "array", text: `[{"amount": 1}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newTestGateway(&fakeGenerator{text: tt.text})

			_, err := g.ParseFreeText(context.Background(), "anything")
			require.Error(t, err)
			assert.Equal(t, KindSchema, KindOf(err))

			var f *Failure
			require.ErrorAs(t, err, &f)
			assert.Equal(t, "ParseFreeText", f.Op)
		})
	}
}

func TestParseFreeText_NetworkFailure(t *testing.T) {
	boom := errors.New("connection reset")
	gen := &fakeGenerator{err: boom}
	g := newTestGateway(gen)

	_, err := g.ParseFreeText(context.Background(), "午饭35")
	require.Error(t, err)
	assert.Equal(t, KindNetwork, KindOf(err))
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, gen.calls, "calls are never retried")
}

func TestFailureLogUsesRequestLogger(t *testing.T) {
	var own, scoped bytes.Buffer
	g := New(&fakeGenerator{text: "not json"}, "", logger.NewWithWriter(&own), WithClock(fixedNow))

	ctx := logger.WithContext(context.Background(),
		logger.NewWithWriter(&scoped).With().Str("request_id", "req-9").Logger())
	_, err := g.ParseFreeText(ctx, "anything")
	require.Error(t, err)

	assert.Empty(t, own.String())
	out := scoped.String()
	assert.Contains(t, out, `"request_id":"req-9"`)
	assert.Contains(t, out, `"component":"gateway"`)
	assert.Contains(t, out, `"model":"`+DefaultModel+`"`)
	assert.Contains(t, out, `"op":"ParseFreeText"`)

	_, err = g.ParseFreeText(context.Background(), "anything")
	require.Error(t, err)
	assert.Contains(t, own.String(), `"op":"ParseFreeText"`)
}

func TestParseReceiptImage(t *testing.T) {
	gen := &fakeGenerator{text: `{"amount": 120, "category": "购物", "description": "超市采购", "date": "2026-10-14"}`}
	g := newTestGateway(gen)
	image := []byte{0xff, 0xd8, 0xff, 0xe0}

	in, err := g.ParseReceiptImage(context.Background(), image, "image/png")
	require.NoError(t, err)
	assert.True(t, in.Amount.Equal(decimal.NewFromInt(120)))
	assert.Empty(t, in.Type)
	assert.Equal(t, "购物", in.Category)

	require.Len(t, gen.contents, 1)
	parts := gen.contents[0].Parts
	require.Len(t, parts, 2)
	require.NotNil(t, parts[0].InlineData)
	assert.Equal(t, "image/png", parts[0].InlineData.MIMEType)
	assert.Equal(t, image, parts[0].InlineData.Data)
	assert.NotEmpty(t, parts[1].Text)
	assert.NotContains(t, gen.config.ResponseSchema.Properties, "type")
}

func TestParseReceiptImage_DefaultsMIMEType(t *testing.T) {
	gen := &fakeGenerator{text: `{"amount": 1, "category": "其他", "description": "x", "date": "2026-10-14"}`}
	g := newTestGateway(gen)

	_, err := g.ParseReceiptImage(context.Background(), []byte("img"), "")
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", gen.contents[0].Parts[0].InlineData.MIMEType)
}

func TestParseReceiptImage_IgnoresVolunteeredType(t *testing.T) {
	gen := &fakeGenerator{text: `{"amount": 1, "type": "income", "category": "其他", "description": "x", "date": "2026-10-14"}`}
	g := newTestGateway(gen)

	in, err := g.ParseReceiptImage(context.Background(), []byte("img"), "image/jpeg")
	require.NoError(t, err)
	assert.Empty(t, in.Type)
}

func TestParseReceiptImage_MissingField(t *testing.T) {
	g := newTestGateway(&fakeGenerator{text: `{"amount": 1, "category": "其他", "date": "2026-10-14"}`})

	_, err := g.ParseReceiptImage(context.Background(), []byte("img"), "image/jpeg")
	assert.Equal(t, KindSchema, KindOf(err))
}

func TestAnalyzeHabits(t *testing.T) {
	gen := &fakeGenerator{text: `{"summary": "支出稳定", "suggestions": ["少点外卖", "比价购物", "公共交通"], "riskLevel": "low"}`}
	g := newTestGateway(gen)

	report, err := g.AnalyzeHabits(context.Background(), domain.SampleTransactions())
	require.NoError(t, err)
	assert.Equal(t, "支出稳定", report.Summary)
	assert.Len(t, report.Suggestions, 3)
	assert.Equal(t, domain.RiskLow, report.RiskLevel)

	prompt := gen.contents[0].Parts[0].Text
	assert.Contains(t, prompt, "2024-03-20: -35.5 (餐饮 - 午餐外卖)")
	assert.Contains(t, prompt, "+5000 (工资 - 3月基本工资)")
}

func TestAnalyzeHabits_EmptyLedgerStillCallsModel(t *testing.T) {
	gen := &fakeGenerator{text: `{"summary": "暂无数据", "suggestions": [], "riskLevel": "low"}`}
	g := newTestGateway(gen)

	report, err := g.AnalyzeHabits(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, gen.calls)
	assert.NotNil(t, report.Suggestions)
	assert.Empty(t, report.Suggestions)
}

func TestAnalyzeHabits_SchemaFailures(t *testing.T) {
	tests := map[string]string{
		"risk out of enum":    `{"summary": "s", "suggestions": [], "riskLevel": "extreme"}`,
		"missing suggestions": `{"summary": "s", "riskLevel": "low"}`,
		"missing summary":     `{"suggestions": [], "riskLevel": "low"}`,
		"suggestions wrong":   `{"summary": "s", "suggestions": "save more", "riskLevel": "low"}`,
	}
	for name, text := range tests {
		t.Run(name, func(t *testing.T) {
			g := newTestGateway(&fakeGenerator{text: text})
			_, err := g.AnalyzeHabits(context.Background(), domain.SampleTransactions())
			assert.Equal(t, KindSchema, KindOf(err))
		})
	}
}

func TestUnavailableGeneratorFailsAsNetwork(t *testing.T) {
	g := New(unavailableGenerator{err: errors.New("no credentials")}, "", zerolog.Nop())

	_, err := g.AnalyzeHabits(context.Background(), nil)
	assert.Equal(t, KindNetwork, KindOf(err))
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, Kind(""), KindOf(nil))
	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))

	wrapped := errors.Join(errors.New("outer"), schemaFailure("op", ErrEmptyResponse))
	assert.Equal(t, KindSchema, KindOf(wrapped))
}

func TestCleanModelJSON(t *testing.T) {
	assert.Equal(t, `{"a":1}`, cleanModelJSON("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, cleanModelJSON("```\n{\"a\":1}```"))
	assert.Equal(t, `{"a":1}`, cleanModelJSON("  {\"a\":1}\n"))
	assert.Equal(t, "", cleanModelJSON("```"))
}
