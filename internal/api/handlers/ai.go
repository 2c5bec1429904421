package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/dvloznov/wealthwisdom/internal/api/middleware"
	"github.com/dvloznov/wealthwisdom/internal/assistant"
	"github.com/dvloznov/wealthwisdom/internal/receipts"
	"github.com/dvloznov/wealthwisdom/internal/requests"
	"github.com/rs/zerolog"
)

// MaxReceiptBytes caps receipt uploads.
const MaxReceiptBytes = 10 << 20

// AIHandler handles the AI-assisted endpoints.
type AIHandler struct {
	svc *assistant.Service
	log zerolog.Logger
}

// NewAIHandler creates a new AI handler.
func NewAIHandler(svc *assistant.Service, log zerolog.Logger) *AIHandler {
	return &AIHandler{
		svc: svc,
		log: log,
	}
}

// QuickAdd handles POST /api/ai/quick-add
func (h *AIHandler) QuickAdd(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	tx, err := h.svc.QuickAdd(r.Context(), req.Text)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, viewOf(tx))
}

// ScanReceipt handles POST /api/ai/receipt with either a raw image body or
// a multipart form carrying a "file" field.
func (h *AIHandler) ScanReceipt(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxReceiptBytes)

	image, err := readReceipt(r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			middleware.WriteError(w, http.StatusRequestEntityTooLarge, "Receipt image is too large")
			return
		}
		middleware.WriteError(w, http.StatusBadRequest, "Invalid receipt upload")
		return
	}

	tx, err := h.svc.ScanReceipt(r.Context(), image, receipts.DetectContentType(image))
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, viewOf(tx))
}

func readReceipt(r *http.Request) ([]byte, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if !strings.HasPrefix(mediaType, "multipart/") {
		return io.ReadAll(r.Body)
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return io.ReadAll(file)
}

// Insight handles GET/POST/DELETE /api/ai/insight
func (h *AIHandler) Insight(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		report, ok := h.svc.Insight()
		if !ok {
			middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{"insight": nil})
			return
		}
		middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{"insight": report})

	case http.MethodPost:
		report, err := h.svc.GenerateInsight(r.Context())
		if err != nil {
			writeServiceError(w, h.log, err)
			return
		}
		middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{"insight": report})

	case http.MethodDelete:
		h.svc.ClearInsight()
		w.WriteHeader(http.StatusNoContent)

	default:
		middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// State handles GET /api/ai/state
func (h *AIHandler) State(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, h.svc.RequestState())
}

// ListRequests handles GET /api/ai/requests
func (h *AIHandler) ListRequests(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := requests.Filter{
		Kind:   requests.Kind(query.Get("kind")),
		Status: requests.Status(query.Get("status")),
	}

	var err error
	if filter.Limit, err = queryInt(r, "limit", 0); err != nil || filter.Limit < 0 {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid limit")
		return
	}
	if filter.Offset, err = queryInt(r, "offset", 0); err != nil || filter.Offset < 0 {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid offset")
		return
	}

	list, err := h.svc.Requests(r.Context(), filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list requests")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list requests")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"requests": list,
		"count":    len(list),
	})
}

// GetRequest handles GET /api/ai/requests/{id}
func (h *AIHandler) GetRequest(w http.ResponseWriter, r *http.Request, id string) {
	req, err := h.svc.Request(r.Context(), id)
	if err != nil {
		if errors.Is(err, requests.ErrNotFound) {
			middleware.WriteError(w, http.StatusNotFound, "Request not found")
			return
		}
		h.log.Error().Err(err).Str("request_id", id).Msg("Failed to get request")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to get request")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, req)
}
