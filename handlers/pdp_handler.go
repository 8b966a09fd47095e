package handlers

import (
	"net/http"

	"github.com/upb/arp-template-pdp/middleware"
	"github.com/upb/arp-template-pdp/models"
	"github.com/upb/arp-template-pdp/services/pdp"
	"github.com/upb/arp-template-pdp/utils"
	"go.uber.org/zap"
)

// PDPHandler serves the ARP PDP v1 endpoints
type PDPHandler struct {
	pdp    pdp.PDP
	logger *zap.Logger
}

// NewPDPHandler creates a new PDPHandler
func NewPDPHandler(service pdp.PDP, logger *zap.Logger) *PDPHandler {
	return &PDPHandler{
		pdp:    service,
		logger: logger,
	}
}

// HandleHealth handles GET /v1/health
func (h *PDPHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if err := utils.WriteOK(w, h.pdp.Health(r.Context())); err != nil {
		h.logger.Error("failed to write health response", zap.Error(err))
	}
}

// HandleVersion handles GET /v1/version
func (h *PDPHandler) HandleVersion(w http.ResponseWriter, r *http.Request) {
	if err := utils.WriteOK(w, h.pdp.Version(r.Context())); err != nil {
		h.logger.Error("failed to write version response", zap.Error(err))
	}
}

// HandleDecide handles POST /v1/policy:decide
func (h *PDPHandler) HandleDecide(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	var req models.PolicyDecisionRequest
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		h.logger.Debug("rejected decision request body",
			zap.String("request_id", requestID),
			zap.Error(err))
		HandleValidationError(w, err, h.logger)
		return
	}

	if err := utils.ValidateStruct(req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	decision, err := h.pdp.DecidePolicy(ctx, req)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	if err := utils.WriteOK(w, decision); err != nil {
		h.logger.Error("failed to write decision response",
			zap.String("request_id", requestID),
			zap.Error(err))
	}
}
