package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dvloznov/wealthwisdom/internal/aggregate"
	"github.com/dvloznov/wealthwisdom/internal/assistant"
	"github.com/dvloznov/wealthwisdom/internal/config"
	"github.com/dvloznov/wealthwisdom/internal/domain"
	"github.com/dvloznov/wealthwisdom/internal/export"
	"github.com/dvloznov/wealthwisdom/internal/gateway"
	"github.com/dvloznov/wealthwisdom/internal/ledger"
	ledgermem "github.com/dvloznov/wealthwisdom/internal/ledger/inmemory"
	"github.com/dvloznov/wealthwisdom/internal/logger"
	"github.com/dvloznov/wealthwisdom/internal/receipts"
	"github.com/dvloznov/wealthwisdom/internal/requests"
	requestsmem "github.com/dvloznov/wealthwisdom/internal/requests/inmemory"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const aiTimeout = 2 * time.Minute

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.Load(envFile())
	if err != nil {
		bootLog := logger.New("")
		bootLog.Fatal().Err(err).Msg("Failed to load configuration")
	}
	log := logger.New(cfg.LogLevel)
	decimal.MarshalJSONWithoutQuotes = true

	switch os.Args[1] {
	case "parse":
		runParse(cfg, log)
	case "receipt":
		runReceipt(cfg, log)
	case "analyze":
		runAnalyze(cfg, log)
	case "stats":
		runStats(cfg, log)
	case "export":
		runExport(cfg, log)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func envFile() string {
	if f := os.Getenv("WEALTHWISDOM_ENV_FILE"); f != "" {
		return f
	}
	return ".env"
}

func printUsage() {
	fmt.Println("WealthWisdom CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  parse     Turn a free-text note into a transaction")
	fmt.Println("  receipt   Turn a receipt image into a transaction")
	fmt.Println("  analyze   Ask for a spending-habit report on a ledger file")
	fmt.Println("  stats     Print totals, category breakdown and trend of a ledger file")
	fmt.Println("  export    Push a ledger file to csv, bigquery or notion")
	fmt.Println("  help      Show this help message")
	fmt.Println("\nLedger files are JSON arrays of transactions, newest first.")
	fmt.Println("Run 'cli <command> -h' for more information on a command.")
}

// session is a service over a ledger file.
type session struct {
	svc   *assistant.Service
	store *ledgermem.Store
	path  string
	log   zerolog.Logger
}

func openSession(ctx context.Context, cfg *config.Config, log zerolog.Logger, path string) *session {
	var txs []domain.Transaction
	if path != "" {
		var err error
		if txs, err = ledger.ReadFile(path); err != nil {
			log.Fatal().Err(err).Str("file", path).Msg("Failed to read ledger")
		}
	}
	return newSession(ctx, cfg, log, path, txs)
}

func newSession(ctx context.Context, cfg *config.Config, log zerolog.Logger, path string, txs []domain.Transaction) *session {
	store := ledgermem.NewStore(ledgermem.WithSeed(txs))
	gw := gateway.NewFromConfig(ctx, cfg.Gateway(), log)
	tracker := requests.NewTracker(requestsmem.NewStore(cfg.RequestHistory), log)

	return &session{
		svc:   assistant.New(store, gw, tracker, log),
		store: store,
		path:  path,
		log:   log,
	}
}

func (s *session) save() {
	if s.path == "" {
		return
	}
	if err := ledger.WriteFile(s.path, s.store.List()); err != nil {
		s.log.Fatal().Err(err).Str("file", s.path).Msg("Failed to write ledger")
	}
	s.log.Info().Str("file", s.path).Int("transactions", s.store.Len()).Msg("Ledger saved")
}

func printJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "encode output: %v\n", err)
		os.Exit(1)
	}
}

func runParse(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("parse", flag.ExitOnError)
	text := fs.String("text", "", "Free-text note, e.g. \"午饭 35 元\"")
	file := fs.String("file", "", "Ledger file to append the transaction to (optional)")
	fs.Parse(os.Args[2:])

	if strings.TrimSpace(*text) == "" {
		log.Fatal().Msg("Error: --text is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), aiTimeout)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	s := openSession(ctx, cfg, log, *file)
	tx, err := s.svc.QuickAdd(ctx, *text)
	if err != nil {
		log.Fatal().Err(err).Str("failure_kind", string(gateway.KindOf(err))).Msg("Parse failed")
	}

	s.save()
	printJSON(tx)
}

func runReceipt(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("receipt", flag.ExitOnError)
	imagePath := fs.String("image", "", "Path to a local receipt image")
	gcsURI := fs.String("gcs-uri", "", "gs:// URI of a receipt image")
	file := fs.String("file", "", "Ledger file to append the transaction to (optional)")
	fs.Parse(os.Args[2:])

	if (*imagePath == "") == (*gcsURI == "") {
		log.Fatal().Msg("Usage: cli receipt (-image PATH | -gcs-uri gs://BUCKET/OBJECT) [-file LEDGER]")
	}

	ctx, cancel := context.WithTimeout(context.Background(), aiTimeout)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	var image []byte
	if *gcsURI != "" {
		archive, err := receipts.NewGCSArchive(ctx, "", "", cfg.CredentialsFile, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create storage client")
		}
		defer archive.Close()

		log.Info().Str("gcs_uri", *gcsURI).Str("file", receipts.FilenameFromGCSURI(*gcsURI)).Msg("Downloading receipt")
		if image, err = archive.Fetch(ctx, *gcsURI); err != nil {
			log.Fatal().Err(err).Msg("Download failed")
		}
	} else {
		var err error
		if image, err = os.ReadFile(*imagePath); err != nil {
			log.Fatal().Err(err).Str("image", *imagePath).Msg("Failed to read image")
		}
	}

	s := openSession(ctx, cfg, log, *file)
	tx, err := s.svc.ScanReceipt(ctx, image, receipts.DetectContentType(image))
	if err != nil {
		log.Fatal().Err(err).Str("failure_kind", string(gateway.KindOf(err))).Msg("Receipt scan failed")
	}

	s.save()
	printJSON(tx)
}

func runAnalyze(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("analyze", flag.ExitOnError)
	file := fs.String("file", "", "Ledger file")
	sample := fs.Bool("sample", false, "Analyze the built-in sample ledger instead")
	fs.Parse(os.Args[2:])

	if *file == "" && !*sample {
		log.Fatal().Msg("Error: --file or --sample is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), aiTimeout)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	var s *session
	if *sample {
		s = newSession(ctx, cfg, log, "", domain.SampleTransactions())
	} else {
		s = openSession(ctx, cfg, log, *file)
	}

	report, err := s.svc.GenerateInsight(ctx)
	if err != nil {
		log.Fatal().Err(err).Str("failure_kind", string(gateway.KindOf(err))).Msg("Analysis failed")
	}

	fmt.Println("\n=== Spending Insight ===")
	fmt.Printf("Risk:    %s\n", report.RiskLevel)
	fmt.Printf("Summary: %s\n", report.Summary)
	fmt.Println("\nSuggestions:")
	for i, suggestion := range report.Suggestions {
		fmt.Printf("%d. %s\n", i+1, suggestion)
	}
	fmt.Println()
}

func runStats(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	file := fs.String("file", "", "Ledger file")
	window := fs.Int("window", cfg.TrendWindow, "Number of most recent dates in the trend (0 for all)")
	recent := fs.Int("recent", cfg.RecentLimit, "Number of recent transactions to list")
	asJSON := fs.Bool("json", false, "Print the dashboard as JSON")
	fs.Parse(os.Args[2:])

	if *file == "" {
		log.Fatal().Msg("Error: --file is required")
	}

	txs, err := ledger.ReadFile(*file)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read ledger")
	}
	d := aggregate.Snapshot(txs, *window, *recent)

	if *asJSON {
		printJSON(d)
		return
	}

	fmt.Println("\n=== Totals ===")
	fmt.Printf("Income:  %s\n", d.Totals.Income.StringFixed(2))
	fmt.Printf("Expense: %s\n", d.Totals.Expense.StringFixed(2))
	fmt.Printf("Balance: %s\n", d.Totals.Balance.StringFixed(2))

	fmt.Printf("\n=== Expense by Category (%d) ===\n", len(d.ExpenseByCategory))
	for _, c := range d.ExpenseByCategory {
		fmt.Printf("%s %-6s %10s  %5s%%\n", c.Display.Icon, c.Category, c.Amount.StringFixed(2), c.Share.Mul(decimal.NewFromInt(100)).StringFixed(1))
	}

	fmt.Printf("\n=== Trend (%d days) ===\n", len(d.Trend))
	for _, p := range d.Trend {
		fmt.Printf("%s  +%-10s -%s\n", p.Date, p.Income.StringFixed(2), p.Expense.StringFixed(2))
	}

	fmt.Printf("\n=== Recent (%d of %d) ===\n", len(d.Recent), d.Count)
	for _, tx := range d.Recent {
		fmt.Println(tx.LedgerLine())
	}
	fmt.Println()
}

func runExport(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	file := fs.String("file", "", "Ledger file")
	sinkName := fs.String("sink", "csv", "Destination: csv, bigquery or notion")
	ensureTable := fs.Bool("ensure-table", false, "Create the BigQuery dataset and table if missing")
	fs.Parse(os.Args[2:])

	if *file == "" {
		log.Fatal().Msg("Error: --file is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	txs, err := ledger.ReadFile(*file)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read ledger")
	}

	var sink export.Sink
	switch *sinkName {
	case "csv":
		sink = export.CSVSink{W: os.Stdout}
	case "bigquery":
		if !cfg.BigQueryEnabled() || cfg.BigQueryProjectID() == "" {
			log.Fatal().Msg("BigQuery export needs BIGQUERY_DATASET, BIGQUERY_TABLE and a project")
		}
		bq, err := export.NewBigQuerySink(ctx, cfg.BigQueryProjectID(), cfg.BigQueryDataset, cfg.BigQueryTable, cfg.CredentialsFile, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create BigQuery sink")
		}
		defer bq.Close()
		if *ensureTable {
			created, err := bq.EnsureTable(ctx)
			if err != nil {
				log.Fatal().Err(err).Msg("Failed to prepare BigQuery table")
			}
			log.Info().Bool("created", created).Msg("BigQuery table ready")
		}
		sink = bq
	case "notion":
		if !cfg.NotionEnabled() {
			log.Fatal().Msg("Notion export needs NOTION_TOKEN and NOTION_DATABASE_ID")
		}
		sink = export.NewNotionSink(export.NewNotionClient(cfg.NotionToken), cfg.NotionDatabaseID, log)
	default:
		log.Fatal().Str("sink", *sinkName).Msg("Unknown sink")
	}

	n, err := sink.Export(ctx, txs)
	if err != nil {
		log.Fatal().Err(err).Int("exported", n).Msg("Export failed")
	}

	log.Info().Str("sink", sink.Name()).Int("exported", n).Int("total", len(txs)).Msg("Export completed")
}
