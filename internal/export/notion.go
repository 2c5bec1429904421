package export

import (
	"context"
	"fmt"
	"time"

	"github.com/dvloznov/wealthwisdom/internal/domain"
	"github.com/jomei/notionapi"
	"github.com/rs/zerolog"
)

// Notion database property names.
const (
	propDescription   = "Description"
	propTransactionID = "Transaction ID"
	propDate          = "Date"
	propAmount        = "Amount"
	propType          = "Type"
	propCategory      = "Category"
)

// NotionService is the subset of the Notion API the sink needs.
type NotionService interface {
	CreatePage(ctx context.Context, databaseID string, properties notionapi.Properties) (*notionapi.Page, error)
	QueryDatabase(ctx context.Context, databaseID string, filter *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error)
}

// NotionClient implements NotionService with the Notion SDK.
type NotionClient struct {
	client *notionapi.Client
}

// NewNotionClient creates a client authenticated with an integration token.
func NewNotionClient(token string) *NotionClient {
	return &NotionClient{
		client: notionapi.NewClient(notionapi.Token(token)),
	}
}

// CreatePage creates a new page in a Notion database with the given properties.
func (n *NotionClient) CreatePage(ctx context.Context, databaseID string, properties notionapi.Properties) (*notionapi.Page, error) {
	req := &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: notionapi.DatabaseID(databaseID),
		},
		Properties: properties,
	}

	page, err := n.client.Page.Create(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("CreatePage: %w", err)
	}
	return page, nil
}

// QueryDatabase queries a Notion database with the given filter.
func (n *NotionClient) QueryDatabase(ctx context.Context, databaseID string, filter *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	resp, err := n.client.Database.Query(ctx, notionapi.DatabaseID(databaseID), filter)
	if err != nil {
		return nil, fmt.Errorf("QueryDatabase: %w", err)
	}
	return resp, nil
}

func richText(content string) []notionapi.RichText {
	return []notionapi.RichText{
		{
			Type: notionapi.ObjectTypeText,
			Text: &notionapi.Text{Content: content},
		},
	}
}

// TransactionToNotionProperties maps a transaction onto the ledger database
// columns: Description (title), Transaction ID, Date, Amount, Type, Category.
func TransactionToNotionProperties(tx domain.Transaction) notionapi.Properties {
	date := notionapi.Date(time.Date(tx.Date.Year, tx.Date.Month, tx.Date.Day, 0, 0, 0, 0, time.UTC))
	amount, _ := tx.Amount.Float64()

	props := notionapi.Properties{
		propDescription:   notionapi.TitleProperty{Title: richText(tx.Description)},
		propTransactionID: notionapi.RichTextProperty{RichText: richText(tx.ID)},
		propDate:          notionapi.DateProperty{Date: &notionapi.DateObject{Start: &date}},
		propAmount:        notionapi.NumberProperty{Number: amount},
		propType:          notionapi.SelectProperty{Select: notionapi.Option{Name: string(tx.Type)}},
	}

	if tx.Category != "" {
		props[propCategory] = notionapi.SelectProperty{Select: notionapi.Option{Name: tx.Category}}
	}

	return props
}

// NotionSink adds every transaction not yet present in a Notion database.
// Existing pages are matched by their Transaction ID property.
type NotionSink struct {
	client     NotionService
	databaseID string
	log        zerolog.Logger
	attempts   uint
	delay      time.Duration
}

// NewNotionSink creates a sink for databaseID.
func NewNotionSink(client NotionService, databaseID string, log zerolog.Logger) *NotionSink {
	return &NotionSink{
		client:     client,
		databaseID: databaseID,
		log:        log.With().Str("sink", "notion").Str("database_id", databaseID).Logger(),
		attempts:   defaultAttempts,
		delay:      defaultRetryDelay,
	}
}

// Name implements Sink.
func (s *NotionSink) Name() string { return "notion" }

// Export implements Sink. It returns the number of pages created.
func (s *NotionSink) Export(ctx context.Context, txs []domain.Transaction) (int, error) {
	pages, err := queryAllNotionPages(ctx, s.client, s.databaseID)
	if err != nil {
		return 0, fmt.Errorf("Export: %w", err)
	}

	existing := make(map[string]bool, len(pages))
	for _, page := range pages {
		if id := extractTransactionID(page); id != "" {
			existing[id] = true
		}
	}

	created, skipped := 0, 0
	for _, tx := range txs {
		if existing[tx.ID] {
			skipped++
			continue
		}

		props := TransactionToNotionProperties(tx)
		err := withRetry(ctx, s.log, s.attempts, s.delay, func() error {
			_, err := s.client.CreatePage(ctx, s.databaseID, props)
			return err
		})
		if err != nil {
			return created, fmt.Errorf("Export: creating page for %s: %w", tx.ID, err)
		}
		existing[tx.ID] = true
		created++
	}

	s.log.Info().
		Int("created", created).
		Int("skipped", skipped).
		Int("total", len(txs)).
		Msg("Ledger sync to Notion completed")
	return created, nil
}

// queryAllNotionPages follows pagination until every page is read.
func queryAllNotionPages(ctx context.Context, client NotionService, databaseID string) ([]notionapi.Page, error) {
	var allPages []notionapi.Page
	var cursor notionapi.Cursor

	for {
		req := &notionapi.DatabaseQueryRequest{
			PageSize: 100,
		}
		if cursor != "" {
			req.StartCursor = cursor
		}

		resp, err := client.QueryDatabase(ctx, databaseID, req)
		if err != nil {
			return nil, fmt.Errorf("queryAllNotionPages: %w", err)
		}

		allPages = append(allPages, resp.Results...)

		if !resp.HasMore {
			break
		}
		cursor = resp.NextCursor
	}

	return allPages, nil
}

func extractTransactionID(page notionapi.Page) string {
	if prop, ok := page.Properties[propTransactionID]; ok {
		if rt, ok := prop.(*notionapi.RichTextProperty); ok && len(rt.RichText) > 0 {
			return rt.RichText[0].PlainText
		}
	}
	return ""
}
