package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/dvloznov/wealthwisdom/internal/api/middleware"
	"github.com/dvloznov/wealthwisdom/internal/assistant"
	"github.com/dvloznov/wealthwisdom/internal/domain"
	"github.com/rs/zerolog"
)

// TransactionsHandler handles transaction and dashboard endpoints.
type TransactionsHandler struct {
	svc    *assistant.Service
	window int
	recent int
	log    zerolog.Logger
}

// NewTransactionsHandler creates a new transactions handler. window and
// recent are the dashboard defaults when the query does not override them.
func NewTransactionsHandler(svc *assistant.Service, window, recent int, log zerolog.Logger) *TransactionsHandler {
	return &TransactionsHandler{
		svc:    svc,
		window: window,
		recent: recent,
		log:    log,
	}
}

// ListTransactions handles GET /api/transactions
func (h *TransactionsHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	txs := h.svc.Transactions()
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"transactions": viewsOf(txs),
		"count":        len(txs),
	})
}

// CreateTransaction handles POST /api/transactions. Fields with the wrong
// type are defaulted; only a body that is not a JSON object is rejected.
func (h *TransactionsHandler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	var in domain.TransactionInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	tx := h.svc.AddTransaction(r.Context(), in)
	middleware.WriteJSON(w, http.StatusCreated, viewOf(tx))
}

// DeleteTransaction handles DELETE /api/transactions/{id}. Unknown ids are
// not an error.
func (h *TransactionsHandler) DeleteTransaction(w http.ResponseWriter, r *http.Request, id string) {
	h.svc.DeleteTransaction(r.Context(), id)
	w.WriteHeader(http.StatusNoContent)
}

// Dashboard handles GET /api/dashboard?window=N&recent=M
func (h *TransactionsHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	window, err := queryInt(r, "window", h.window)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid window")
		return
	}
	recent, err := queryInt(r, "recent", h.recent)
	if err != nil || recent < 0 {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid recent")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, h.svc.DashboardWith(window, recent))
}

// ListCategories handles GET /api/categories
func ListCategories(w http.ResponseWriter, r *http.Request) {
	categories := domain.Categories()
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"categories": categories,
		"count":      len(categories),
	})
}
