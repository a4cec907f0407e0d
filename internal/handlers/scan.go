package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/qrtrack/apiserver/internal/services"
	"github.com/qrtrack/apiserver/internal/store"
	"github.com/qrtrack/apiserver/types"
)

// ScanHandler resolves decoded scan payloads.
type ScanHandler struct {
	scanService *services.ScanService
}

func NewScanHandler(scanService *services.ScanService) *ScanHandler {
	return &ScanHandler{scanService: scanService}
}

// ScanRouter registers scan resolution routes. All routes require
// authentication.
func ScanRouter(r chi.Router, scanService *services.ScanService, authMiddleware func(http.Handler) http.Handler) {
	handler := NewScanHandler(scanService)

	if authMiddleware != nil {
		r.Use(authMiddleware)
	}
	r.Post("/", handler.Resolve)
	r.Post("/{action}", handler.Resolve)
}

// ScanRequest carries the raw text decoded from a camera frame.
type ScanRequest struct {
	ScannedURL string `json:"scannedUrl"`
}

// ScanResponse is returned on a completed resolution.
type ScanResponse struct {
	DestinationURL string       `json:"destinationUrl"`
	QR             types.QRCode `json:"qr"`
}

// Resolve canonicalizes the payload, applies the status change and logs
// the event. The action comes from the route; absent means a generic scan.
func (h *ScanHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	var req ScanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	action := chi.URLParam(r, "action")

	result, err := h.scanService.Resolve(r.Context(), req.ScannedURL, action)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalid):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "qr code not found")
		default:
			// Upstream failures are surfaced as-is and never retried
			// here; the client may start a fresh attempt.
			slog.Error("scan resolution failed", "action", action, "err", err)
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, ScanResponse{
		DestinationURL: result.DestinationURL,
		QR:             result.QR,
	})
}
