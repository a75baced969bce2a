package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/xavierca1/leadforge/internal/entity"
	"github.com/xavierca1/leadforge/internal/usecase"
)

// 1x1 transparent GIF
var pixelGIF = []byte{
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x01, 0x00, 0x01, 0x00, 0x80, 0x00, 0x00, 0xff, 0xff, 0xff,
	0x00, 0x00, 0x00, 0x21, 0xf9, 0x04, 0x01, 0x00, 0x00, 0x00, 0x00, 0x2c, 0x00, 0x00, 0x00, 0x00,
	0x01, 0x00, 0x01, 0x00, 0x00, 0x02, 0x02, 0x44, 0x01, 0x00, 0x3b,
}

// TrackingHandler receives engagement events from the email provider's
// webhook and from the open pixel.
type TrackingHandler struct {
	Tracking *usecase.TrackingUseCase
	Signer   *usecase.Signer
	Logger   *zap.Logger
}

func NewTrackingHandler(tracking *usecase.TrackingUseCase, signer *usecase.Signer, logger *zap.Logger) *TrackingHandler {
	return &TrackingHandler{Tracking: tracking, Signer: signer, Logger: logger}
}

// Event requires an X-Signature header: hex HMAC-SHA256 of the raw body.
func (h *TrackingHandler) Event(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "BAD_REQUEST", "failed to read body")
		return
	}
	if !h.Signer.Verify(body, r.Header.Get("X-Signature")) {
		writeErrorResponse(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid signature")
		return
	}

	var input usecase.TrackingEventInput
	if err := json.Unmarshal(body, &input); err != nil {
		writeInvalidJSON(w, err)
		return
	}

	result, err := h.Tracking.Record(r.Context(), input)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Pixel counts one open per recipient and always serves the image once the
// signature checks out; clients never see tracking errors.
func (h *TrackingHandler) Pixel(w http.ResponseWriter, r *http.Request) {
	campaignID := chi.URLParam(r, "campaignID")
	leadID := strings.TrimSuffix(chi.URLParam(r, "leadID"), ".gif")

	if !h.Signer.VerifyPixel(campaignID, leadID, r.URL.Query().Get("sig")) {
		http.NotFound(w, r)
		return
	}

	_, err := h.Tracking.Record(r.Context(), usecase.TrackingEventInput{
		EventID:    usecase.PixelEventID(campaignID, leadID),
		CampaignID: campaignID,
		LeadID:     leadID,
		Kind:       entity.EngagementOpen,
	})
	if err != nil && !usecase.IsDomainError(err) {
		h.Logger.Warn("failed to record pixel open", zap.String("campaign_id", campaignID), zap.Error(err))
	}

	w.Header().Set("Content-Type", "image/gif")
	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
	w.WriteHeader(http.StatusOK)
	w.Write(pixelGIF)
}
