package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/upb/arp-template-pdp/models"
	"github.com/upb/arp-template-pdp/repositories"
	"github.com/upb/arp-template-pdp/services"
	"github.com/upb/arp-template-pdp/utils"
	"go.uber.org/zap"
)

// AuditListResponse is a page of decision audit entries
type AuditListResponse struct {
	Entries []*models.DecisionAuditLog `json:"entries"`
	Limit   int                        `json:"limit"`
	Offset  int                        `json:"offset"`
}

// AuditHandler exposes the decision audit trail read-only
type AuditHandler struct {
	repo   repositories.DecisionAuditRepository
	logger *zap.Logger
}

// NewAuditHandler creates a new AuditHandler. A nil repo means auditing is disabled.
func NewAuditHandler(repo repositories.DecisionAuditRepository, logger *zap.Logger) *AuditHandler {
	return &AuditHandler{
		repo:   repo,
		logger: logger,
	}
}

// HandleList handles GET /v1/audit/decisions
func (h *AuditHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		HandleServiceError(w, services.ErrAuditUnavailable, h.logger)
		return
	}

	filter, err := parseAuditFilter(r)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	entries, err := h.repo.ListRecent(r.Context(), filter)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	if entries == nil {
		entries = []*models.DecisionAuditLog{}
	}

	_ = utils.WriteOK(w, AuditListResponse{
		Entries: entries,
		Limit:   filter.PageLimit(),
		Offset:  filter.Offset,
	})
}

// HandleGet handles GET /v1/audit/decisions/{id}
func (h *AuditHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		HandleServiceError(w, services.ErrAuditUnavailable, h.logger)
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		HandleServiceError(w, services.ErrInvalidInput.WithDetail("id", "must be a valid UUID"), h.logger)
		return
	}

	entry, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, entry)
}

func parseAuditFilter(r *http.Request) (repositories.AuditFilter, error) {
	q := r.URL.Query()
	filter := repositories.AuditFilter{
		Action: q.Get("action"),
		RunID:  q.Get("run_id"),
	}

	if d := q.Get("decision"); d != "" {
		outcome := models.PolicyDecisionOutcome(d)
		if !outcome.Valid() {
			return filter, services.ErrInvalidInput.WithDetail("decision", "must be one of allow, deny, require_approval")
		}
		filter.Decision = outcome
	}

	if s := q.Get("since"); s != "" {
		since, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return filter, services.ErrInvalidInput.WithDetail("since", "must be an RFC3339 timestamp")
		}
		filter.Since = since.UTC()
	}

	for key, dst := range map[string]*int{"limit": &filter.Limit, "offset": &filter.Offset} {
		v := q.Get(key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return filter, services.ErrInvalidInput.WithDetail(key, "must be a non-negative integer")
		}
		*dst = n
	}

	return filter, nil
}
