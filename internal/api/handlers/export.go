package handlers

import (
	"errors"
	"net/http"

	"github.com/dvloznov/wealthwisdom/internal/api/middleware"
	"github.com/dvloznov/wealthwisdom/internal/assistant"
	"github.com/dvloznov/wealthwisdom/internal/export"
	"github.com/rs/zerolog"
)

// ExportHandler handles ledger exports.
type ExportHandler struct {
	svc   *assistant.Service
	sinks *export.Registry
	log   zerolog.Logger
}

// NewExportHandler creates a new export handler.
func NewExportHandler(svc *assistant.Service, sinks *export.Registry, log zerolog.Logger) *ExportHandler {
	return &ExportHandler{
		svc:   svc,
		sinks: sinks,
		log:   log,
	}
}

// DownloadCSV handles GET /api/export.csv
func (h *ExportHandler) DownloadCSV(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="ledger.csv"`)

	if err := export.WriteCSV(w, h.svc.Transactions()); err != nil {
		h.log.Error().Err(err).Msg("Failed to write CSV export")
	}
}

// Push handles POST /api/export/{sink}
func (h *ExportHandler) Push(w http.ResponseWriter, r *http.Request, name string) {
	sink, err := h.sinks.Get(name)
	if err != nil {
		if errors.Is(err, export.ErrUnknownSink) {
			middleware.WriteError(w, http.StatusNotFound, "Export sink not configured")
			return
		}
		middleware.WriteError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	n, err := sink.Export(r.Context(), h.svc.Transactions())
	if err != nil {
		h.log.Error().Err(err).Str("sink", name).Int("exported", n).Msg("Export failed")
		middleware.WriteError(w, http.StatusBadGateway, "Export failed")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"sink":     name,
		"exported": n,
	})
}
