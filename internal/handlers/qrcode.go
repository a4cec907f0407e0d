package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/qrtrack/apiserver/internal/services"
	"github.com/qrtrack/apiserver/internal/store"
	"github.com/qrtrack/apiserver/types"
)

const maxBodyBytes = 8 << 20

// QRHandler provides HTTP handlers for the QR registry.
type QRHandler struct {
	qrService   *services.QRService
	scanService *services.ScanService
}

// NewQRHandler constructs a handler with the provided services.
func NewQRHandler(qrService *services.QRService, scanService *services.ScanService) *QRHandler {
	return &QRHandler{
		qrService:   qrService,
		scanService: scanService,
	}
}

// QRRouter registers registry routes on the given router. All routes
// require authentication.
func QRRouter(
	r chi.Router,
	qrService *services.QRService,
	scanService *services.ScanService,
	authMiddleware func(http.Handler) http.Handler,
) {
	handler := NewQRHandler(qrService, scanService)

	if authMiddleware != nil {
		r.Use(authMiddleware)
	}
	r.Get("/", handler.ListQRCodes)
	r.Post("/", handler.CreateQRCodes)
	r.Delete("/", handler.DeleteAllQRCodes)
	r.Route("/{qrID}", func(r chi.Router) {
		r.Get("/", handler.GetQRCode)
		r.Patch("/status", handler.UpdateQRStatus)
		r.Get("/events", handler.ListQREvents)
	})
}

// CreateQRRecord is one record of a create request. "url" is accepted as
// a legacy alias of "imageData".
type CreateQRRecord struct {
	ID        string `json:"id"`
	ImageData string `json:"imageData"`
	URL       string `json:"url"`
	Status    string `json:"status"`
}

// SingleCreateRequest is the alternate create body carrying just an id.
type SingleCreateRequest struct {
	Data string `json:"data"`
}

// CreateQRResponse is the create payload.
type CreateQRResponse struct {
	QRs []types.QRCode `json:"qrs"`
}

// ListQRResponse is the paginated list payload.
type ListQRResponse struct {
	QRs     []types.QRCode `json:"qrs"`
	HasMore bool           `json:"hasMore"`
}

// DeleteQRResponse reports an administrative reset.
type DeleteQRResponse struct {
	DeletedCount int64 `json:"deletedCount"`
}

// UpdateStatusRequest carries the new status for one record.
type UpdateStatusRequest struct {
	Status string `json:"status"`
}

// CreateQRCodes accepts either a JSON array of records or an object of
// the form {"data":"<id>"} and persists the batch all-or-nothing.
func (h *QRHandler) CreateQRCodes(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	records, err := parseCreateBody(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	codes := make([]types.QRCode, 0, len(records))
	for _, record := range records {
		image := record.ImageData
		if image == "" {
			image = record.URL
		}
		codes = append(codes, types.QRCode{
			ID:        record.ID,
			ImageData: image,
			Status:    record.Status,
		})
	}

	created, err := h.qrService.CreateBatch(r.Context(), codes)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalid):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, store.ErrConflict):
			writeError(w, http.StatusConflict, "duplicate qr code id")
		default:
			writeError(w, http.StatusInternalServerError, "failed to save qr codes")
		}
		return
	}

	writeJSON(w, http.StatusCreated, CreateQRResponse{QRs: created})
}

func parseCreateBody(body []byte) ([]CreateQRRecord, error) {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return nil, errors.New("empty request body")
	}

	if strings.HasPrefix(trimmed, "[") {
		var records []CreateQRRecord
		if err := json.Unmarshal(body, &records); err != nil {
			return nil, errors.New("invalid batch payload")
		}
		return records, nil
	}

	var single SingleCreateRequest
	if err := json.Unmarshal(body, &single); err != nil || strings.TrimSpace(single.Data) == "" {
		return nil, errors.New("invalid payload: expected an array of records or {\"data\":\"<id>\"}")
	}
	return []CreateQRRecord{{ID: single.Data}}, nil
}

func (h *QRHandler) ListQRCodes(w http.ResponseWriter, r *http.Request) {
	page, pageSize, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	codes, hasMore, err := h.qrService.List(r.Context(), page, pageSize)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list qr codes")
		return
	}

	writeJSON(w, http.StatusOK, ListQRResponse{QRs: codes, HasMore: hasMore})
}

func (h *QRHandler) GetQRCode(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "qrID")

	code, err := h.qrService.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "qr code not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to fetch qr code")
		return
	}

	writeJSON(w, http.StatusOK, code)
}

func (h *QRHandler) UpdateQRStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "qrID")

	var req UpdateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	updated, err := h.qrService.UpdateStatus(r.Context(), id, req.Status)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalid):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "qr code not found")
		default:
			writeError(w, http.StatusInternalServerError, "failed to update status")
		}
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

func (h *QRHandler) DeleteAllQRCodes(w http.ResponseWriter, r *http.Request) {
	count, err := h.qrService.DeleteAll(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete qr codes")
		return
	}

	writeJSON(w, http.StatusOK, DeleteQRResponse{DeletedCount: count})
}

// ListQREvents returns the scan history of one record, oldest first.
func (h *QRHandler) ListQREvents(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "qrID")

	events, err := h.scanService.History(r.Context(), id, 0)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list scan events")
		return
	}

	writeJSON(w, http.StatusOK, map[string][]types.ScanEvent{"events": events})
}

func parsePagination(r *http.Request) (page, pageSize int, err error) {
	if raw := strings.TrimSpace(r.URL.Query().Get("page")); raw != "" {
		page, err = strconv.Atoi(raw)
		if err != nil || page < 1 {
			return 0, 0, errors.New("invalid page")
		}
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("pageSize")); raw != "" {
		pageSize, err = strconv.Atoi(raw)
		if err != nil || pageSize < 1 {
			return 0, 0, errors.New("invalid pageSize")
		}
	}
	return page, pageSize, nil
}
