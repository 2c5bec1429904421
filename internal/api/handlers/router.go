package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/dvloznov/wealthwisdom/internal/api/middleware"
	"github.com/dvloznov/wealthwisdom/internal/assistant"
	"github.com/dvloznov/wealthwisdom/internal/export"
	"github.com/rs/zerolog"
)

// RouterConfig carries everything the routes need.
type RouterConfig struct {
	Service     *assistant.Service
	Sinks       *export.Registry
	Live        http.Handler // optional WebSocket feed
	TrendWindow int
	RecentLimit int
	Log         zerolog.Logger
}

func methodNotAllowed(w http.ResponseWriter) {
	middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
}

// NewRouter registers every API route on a new ServeMux.
func NewRouter(cfg RouterConfig) *http.ServeMux {
	sinks := cfg.Sinks
	if sinks == nil {
		sinks = export.NewRegistry()
	}

	transactionsHandler := NewTransactionsHandler(cfg.Service, cfg.TrendWindow, cfg.RecentLimit, cfg.Log)
	aiHandler := NewAIHandler(cfg.Service, cfg.Log)
	exportHandler := NewExportHandler(cfg.Service, sinks, cfg.Log)

	mux := http.NewServeMux()

	// Transactions endpoints
	mux.HandleFunc("/api/transactions", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			transactionsHandler.ListTransactions(w, r)
		case http.MethodPost:
			transactionsHandler.CreateTransaction(w, r)
		default:
			methodNotAllowed(w)
		}
	})

	mux.HandleFunc("/api/transactions/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			methodNotAllowed(w)
			return
		}
		id := strings.TrimPrefix(r.URL.Path, "/api/transactions/")
		if id == "" {
			middleware.WriteError(w, http.StatusBadRequest, "Transaction ID is required")
			return
		}
		transactionsHandler.DeleteTransaction(w, r, id)
	})

	mux.HandleFunc("/api/categories", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			ListCategories(w, r)
		} else {
			methodNotAllowed(w)
		}
	})

	mux.HandleFunc("/api/dashboard", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			transactionsHandler.Dashboard(w, r)
		} else {
			methodNotAllowed(w)
		}
	})

	// AI endpoints
	mux.HandleFunc("/api/ai/quick-add", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			aiHandler.QuickAdd(w, r)
		} else {
			methodNotAllowed(w)
		}
	})

	mux.HandleFunc("/api/ai/receipt", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			aiHandler.ScanReceipt(w, r)
		} else {
			methodNotAllowed(w)
		}
	})

	mux.HandleFunc("/api/ai/insight", aiHandler.Insight)

	mux.HandleFunc("/api/ai/state", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			aiHandler.State(w, r)
		} else {
			methodNotAllowed(w)
		}
	})

	mux.HandleFunc("/api/ai/requests", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			aiHandler.ListRequests(w, r)
		} else {
			methodNotAllowed(w)
		}
	})

	mux.HandleFunc("/api/ai/requests/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		id := strings.TrimPrefix(r.URL.Path, "/api/ai/requests/")
		if id == "" {
			middleware.WriteError(w, http.StatusBadRequest, "Request ID is required")
			return
		}
		aiHandler.GetRequest(w, r, id)
	})

	// Export endpoints
	mux.HandleFunc("/api/export.csv", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			exportHandler.DownloadCSV(w, r)
		} else {
			methodNotAllowed(w)
		}
	})

	mux.HandleFunc("/api/export/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		name := strings.TrimPrefix(r.URL.Path, "/api/export/")
		if name == "" {
			middleware.WriteError(w, http.StatusBadRequest, "Sink name is required")
			return
		}
		exportHandler.Push(w, r, name)
	})

	if cfg.Live != nil {
		mux.Handle("/ws", cfg.Live)
	}

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	return mux
}
