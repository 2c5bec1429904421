package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/dvloznov/wealthwisdom/internal/domain"
	"github.com/jomei/notionapi"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
)

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	txs := []domain.Transaction{
		{ID: "t1", Amount: decimal.RequireFromString("35.5"), Type: domain.TypeExpense, Category: "餐饮", Description: "午餐, 外卖", Date: civil.Date{Year: 2024, Month: 3, Day: 20}},
		{ID: "t2", Amount: decimal.NewFromInt(5000), Type: domain.TypeIncome, Category: "工资", Description: "工资", Date: civil.Date{Year: 2024, Month: 3, Day: 15}},
	}

	require.NoError(t, WriteCSV(&buf, txs))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, []string{"id", "date", "type", "category", "description", "amount"}, records[0])
	assert.Equal(t, []string{"t1", "2024-03-20", "expense", "餐饮", "午餐, 外卖", "35.5"}, records[1])
	assert.Equal(t, []string{"t2", "2024-03-15", "income", "工资", "工资", "5000"}, records[2])
}

func TestWriteCSV_EmptyLedgerHasHeader(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, nil))
	assert.Equal(t, "id,date,type,category,description,amount\n", buf.String())
}

func TestCSVSink(t *testing.T) {
	var buf bytes.Buffer
	n, err := CSVSink{W: &buf}.Export(context.Background(), domain.SampleTransactions())
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Contains(t, buf.String(), "t3,2024-03-18,expense,购物,超市日用品,120")
}

func TestRegistry(t *testing.T) {
	r := NewRegistry(CSVSink{}, nil, newBigQuerySink(&fakePutter{}, "d.t", zerolog.Nop()))

	assert.Equal(t, []string{"bigquery", "csv"}, r.Names())

	s, err := r.Get("csv")
	require.NoError(t, err)
	assert.Equal(t, "csv", s.Name())

	_, err = r.Get("notion")
	assert.ErrorIs(t, err, ErrUnknownSink)
}

func TestRetryable(t *testing.T) {
	assert.True(t, retryable(&googleapi.Error{Code: http.StatusTooManyRequests}))
	assert.True(t, retryable(&googleapi.Error{Code: http.StatusServiceUnavailable}))
	assert.False(t, retryable(&googleapi.Error{Code: http.StatusBadRequest}))
	assert.True(t, retryable(&notionapi.Error{Status: http.StatusTooManyRequests}))
	assert.False(t, retryable(&notionapi.Error{Status: http.StatusNotFound}))
	assert.False(t, retryable(errors.New("plain")))
}

type fakePutter struct {
	errs  []error
	calls int
	src   interface{}
}

func (f *fakePutter) Put(ctx context.Context, src interface{}) error {
	f.calls++
	f.src = src
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return err
	}
	return nil
}

func testBigQuerySink(p *fakePutter) *BigQuerySink {
	s := newBigQuerySink(p, "finance.ledger", zerolog.Nop())
	s.delay = time.Millisecond
	s.now = func() time.Time { return time.Date(2026, 10, 16, 8, 0, 0, 0, time.UTC) }
	return s
}

func TestToRow(t *testing.T) {
	tx := domain.SampleTransactions()[0]
	at := time.Date(2026, 10, 16, 8, 0, 0, 0, time.FixedZone("CST", 8*3600))

	row := ToRow(tx, at)
	assert.Equal(t, "t1", row.TransactionID)
	assert.Equal(t, civil.Date{Year: 2024, Month: 3, Day: 20}, row.TransactionDate)
	assert.Equal(t, "expense", row.Type)
	assert.Equal(t, "71/2", row.Amount.String())
	assert.Equal(t, "-71/2", row.SignedAmount.String())
	assert.Equal(t, time.UTC, row.ExportedTS.Location())
}

func TestRowSchema(t *testing.T) {
	schema, err := RowSchema()
	require.NoError(t, err)

	types := make(map[string]bigquery.FieldType)
	required := make(map[string]bool)
	for _, f := range schema {
		types[f.Name] = f.Type
		required[f.Name] = f.Required
	}

	assert.Equal(t, bigquery.StringFieldType, types["transaction_id"])
	assert.Equal(t, bigquery.DateFieldType, types["transaction_date"])
	assert.Equal(t, bigquery.NumericFieldType, types["amount"])
	assert.Equal(t, bigquery.NumericFieldType, types["signed_amount"])
	assert.Equal(t, bigquery.TimestampFieldType, types["exported_ts"])

	assert.True(t, required["transaction_id"])
	assert.True(t, required["amount"])
	assert.False(t, required["signed_amount"])
	assert.False(t, required["description"])
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, isNotFound(fmt.Errorf("wrapped: %w", &googleapi.Error{Code: http.StatusNotFound})))
	assert.False(t, isNotFound(&googleapi.Error{Code: http.StatusForbidden}))
	assert.False(t, isNotFound(errors.New("boom")))
}

func TestBigQuerySink_EnsureTableNeedsClient(t *testing.T) {
	_, err := testBigQuerySink(&fakePutter{}).EnsureTable(context.Background())
	assert.Error(t, err)
}

func TestBigQuerySink_Export(t *testing.T) {
	p := &fakePutter{}
	s := testBigQuerySink(p)

	n, err := s.Export(context.Background(), domain.SampleTransactions())
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, 1, p.calls)

	savers, ok := p.src.([]*bigquery.StructSaver)
	require.True(t, ok)
	require.Len(t, savers, 5)
	assert.Equal(t, "t1", savers[0].InsertID)
	row, ok := savers[0].Struct.(*Row)
	require.True(t, ok)
	assert.Equal(t, "餐饮", row.CategoryName)
}

func TestBigQuerySink_EmptyLedgerSkipsInsert(t *testing.T) {
	p := &fakePutter{}
	n, err := testBigQuerySink(p).Export(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, p.calls)
}

func TestBigQuerySink_RetriesRateLimit(t *testing.T) {
	p := &fakePutter{errs: []error{&googleapi.Error{Code: http.StatusTooManyRequests}}}

	n, err := testBigQuerySink(p).Export(context.Background(), domain.SampleTransactions())
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, 2, p.calls)
}

func TestBigQuerySink_NoRetryOnClientError(t *testing.T) {
	p := &fakePutter{errs: []error{&googleapi.Error{Code: http.StatusBadRequest}}}

	_, err := testBigQuerySink(p).Export(context.Background(), domain.SampleTransactions())
	require.Error(t, err)
	assert.Equal(t, 1, p.calls)
}

type fakeNotion struct {
	pages      [][]notionapi.Page // one slice per query page
	queries    []*notionapi.DatabaseQueryRequest
	created    []notionapi.Properties
	createErrs []error
}

func (f *fakeNotion) QueryDatabase(ctx context.Context, databaseID string, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	f.queries = append(f.queries, req)
	i := len(f.queries) - 1
	if i >= len(f.pages) {
		return &notionapi.DatabaseQueryResponse{}, nil
	}
	resp := &notionapi.DatabaseQueryResponse{Results: f.pages[i]}
	if i < len(f.pages)-1 {
		resp.HasMore = true
		resp.NextCursor = notionapi.Cursor("cursor-" + string(rune('a'+i)))
	}
	return resp, nil
}

func (f *fakeNotion) CreatePage(ctx context.Context, databaseID string, props notionapi.Properties) (*notionapi.Page, error) {
	if len(f.createErrs) > 0 {
		err := f.createErrs[0]
		f.createErrs = f.createErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	f.created = append(f.created, props)
	return &notionapi.Page{}, nil
}

func pageFor(id string) notionapi.Page {
	return notionapi.Page{Properties: notionapi.Properties{
		propTransactionID: &notionapi.RichTextProperty{RichText: []notionapi.RichText{{PlainText: id}}},
	}}
}

func testNotionSink(f *fakeNotion) *NotionSink {
	s := NewNotionSink(f, "db-1", zerolog.Nop())
	s.delay = time.Millisecond
	return s
}

func TestTransactionToNotionProperties(t *testing.T) {
	props := TransactionToNotionProperties(domain.SampleTransactions()[1])

	title, ok := props[propDescription].(notionapi.TitleProperty)
	require.True(t, ok)
	assert.Equal(t, "3月基本工资", title.Title[0].Text.Content)

	id, ok := props[propTransactionID].(notionapi.RichTextProperty)
	require.True(t, ok)
	assert.Equal(t, "t2", id.RichText[0].Text.Content)

	amount, ok := props[propAmount].(notionapi.NumberProperty)
	require.True(t, ok)
	assert.Equal(t, 5000.0, amount.Number)

	date, ok := props[propDate].(notionapi.DateProperty)
	require.True(t, ok)
	assert.Equal(t, "2024-03-15", time.Time(*date.Date.Start).Format("2006-01-02"))

	typ, ok := props[propType].(notionapi.SelectProperty)
	require.True(t, ok)
	assert.Equal(t, "income", typ.Select.Name)

	noCategory := domain.SampleTransactions()[0]
	noCategory.Category = ""
	assert.NotContains(t, TransactionToNotionProperties(noCategory), propCategory)
}

func TestNotionSink_SkipsExistingAcrossPages(t *testing.T) {
	f := &fakeNotion{pages: [][]notionapi.Page{
		{pageFor("t1"), {Properties: notionapi.Properties{}}},
		{pageFor("t3")},
	}}

	n, err := testNotionSink(f).Export(context.Background(), domain.SampleTransactions())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	require.Len(t, f.created, 3)

	require.Len(t, f.queries, 2)
	assert.Equal(t, notionapi.Cursor(""), f.queries[0].StartCursor)
	assert.Equal(t, notionapi.Cursor("cursor-a"), f.queries[1].StartCursor)
	assert.Equal(t, 100, f.queries[0].PageSize)

	var ids []string
	for _, p := range f.created {
		ids = append(ids, p[propTransactionID].(notionapi.RichTextProperty).RichText[0].Text.Content)
	}
	assert.Equal(t, []string{"t2", "t4", "t5"}, ids)
}

func TestNotionSink_RetriesRateLimit(t *testing.T) {
	f := &fakeNotion{createErrs: []error{&notionapi.Error{Status: http.StatusTooManyRequests}}}

	n, err := testNotionSink(f).Export(context.Background(), domain.SampleTransactions()[:1])
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestNotionSink_StopsOnHardError(t *testing.T) {
	f := &fakeNotion{createErrs: []error{nil, &notionapi.Error{Status: http.StatusBadRequest}}}

	n, err := testNotionSink(f).Export(context.Background(), domain.SampleTransactions())
	require.Error(t, err)
	assert.Equal(t, 1, n)
}
