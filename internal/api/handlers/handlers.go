package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/dvloznov/wealthwisdom/internal/api/middleware"
	"github.com/dvloznov/wealthwisdom/internal/assistant"
	"github.com/dvloznov/wealthwisdom/internal/domain"
	"github.com/dvloznov/wealthwisdom/internal/gateway"
	"github.com/dvloznov/wealthwisdom/internal/requests"
	"github.com/rs/zerolog"
)

// transactionView is a transaction with the registry entry used to render it.
type transactionView struct {
	domain.Transaction
	Display domain.Category `json:"category_display"`
}

func viewOf(tx domain.Transaction) transactionView {
	return transactionView{Transaction: tx, Display: domain.LookupCategory(tx.Category)}
}

func viewsOf(txs []domain.Transaction) []transactionView {
	views := make([]transactionView, len(txs))
	for i, tx := range txs {
		views[i] = viewOf(tx)
	}
	return views
}

// writeServiceError maps assistant, tracker and gateway errors to statuses.
func writeServiceError(w http.ResponseWriter, log zerolog.Logger, err error) {
	switch {
	case errors.Is(err, assistant.ErrEmptyInput):
		middleware.WriteError(w, http.StatusBadRequest, "Input is empty")
	case errors.Is(err, requests.ErrBusy):
		middleware.WriteError(w, http.StatusConflict, "Another AI request is in progress")
	case gateway.KindOf(err) == gateway.KindNetwork:
		middleware.WriteError(w, http.StatusBadGateway, "AI service unavailable")
	case gateway.KindOf(err) == gateway.KindSchema:
		middleware.WriteError(w, http.StatusUnprocessableEntity, "AI response could not be understood")
	default:
		log.Error().Err(err).Msg("Request failed")
		middleware.WriteError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// queryInt parses an optional integer query parameter.
func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}
