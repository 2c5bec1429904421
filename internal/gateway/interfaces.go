package gateway

import (
	"context"

	"github.com/dvloznov/wealthwisdom/internal/domain"
	"google.golang.org/genai"
)

// Gateway turns free text, receipt images and ledgers into structured data
// using a generative model. Every call is a single attempt; failures are
// reported as *Failure and never mutate caller state.
type Gateway interface {
	// ParseFreeText extracts a transaction from a natural-language sentence.
	ParseFreeText(ctx context.Context, text string) (domain.TransactionInput, error)

	// ParseReceiptImage extracts a transaction from a receipt photo. The
	// transaction type is not requested and is left empty.
	ParseReceiptImage(ctx context.Context, image []byte, mimeType string) (domain.TransactionInput, error)

	// AnalyzeHabits asks the model for a summary, suggestions and a risk level.
	AnalyzeHabits(ctx context.Context, txs []domain.Transaction) (domain.InsightReport, error)
}

// ContentGenerator is the subset of the genai client used by the gateway.
// *genai.Models satisfies it.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}
