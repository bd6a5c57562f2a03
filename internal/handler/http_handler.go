package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/armada-ops/be-proc-approvals/internal/errors"
	"github.com/armada-ops/be-proc-approvals/internal/logger"
	"github.com/armada-ops/be-proc-approvals/internal/service"
)

// HTTPHandler handles HTTP requests.
type HTTPHandler struct {
	flow *service.FlowService
	gate *service.GateService
	log  *logger.Logger
}

// NewHTTPHandler creates a new HTTP handler.
func NewHTTPHandler(flow *service.FlowService, gate *service.GateService, log *logger.Logger) *HTTPHandler {
	return &HTTPHandler{
		flow: flow,
		gate: gate,
		log:  log,
	}
}

// actingUser reads the authenticated user from the gateway-injected headers.
// The identity service in front of this one owns authentication.
func actingUser(r *http.Request) service.ActingUser {
	user := service.ActingUser{ID: r.Header.Get("X-User-ID")}
	if roles := r.Header.Get("X-User-Roles"); roles != "" {
		for _, role := range strings.Split(roles, ",") {
			if role = strings.TrimSpace(role); role != "" {
				user.Roles = append(user.Roles, role)
			}
		}
	}
	return user
}

// SubmitDocument handles document submission for approval.
func (h *HTTPHandler) SubmitDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		DocumentID string `json:"document_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.DocumentID == "" {
		h.writeError(w, errors.InvalidInput("document_id", "document id is required"))
		return
	}

	result, err := h.flow.SubmitDocument(r.Context(), req.DocumentID, actingUser(r).ID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, result)
}

// ResolveGate handles current-gate lookups by qr, step_id or document_id.
func (h *HTTPHandler) ResolveGate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	key := service.LookupKey{
		QRPayload:  r.URL.Query().Get("qr"),
		StepID:     r.URL.Query().Get("step_id"),
		DocumentID: r.URL.Query().Get("document_id"),
	}

	gate, err := h.gate.ResolveCurrentGate(r.Context(), key)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, gate)
}

// ApprovalAction handles approve/reject actions on the current gate.
func (h *HTTPHandler) ApprovalAction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		QR         string  `json:"qr"`
		StepID     string  `json:"step_id"`
		DocumentID string  `json:"document_id"`
		Action     string  `json:"action"`
		Note       *string `json:"note"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	key := service.LookupKey{
		QRPayload:  req.QR,
		StepID:     req.StepID,
		DocumentID: req.DocumentID,
	}

	result, err := h.gate.UpdateStatus(r.Context(), key, req.Action, req.Note, actingUser(r))
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, result)
}

// PendingApprovals lists pending steps awaiting the acting user.
func (h *HTTPHandler) PendingApprovals(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	steps, err := h.gate.PendingForUser(r.Context(), actingUser(r))
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"steps": steps,
		"total": len(steps),
	})
}

// ApprovalHistory returns the audit trail for a document.
func (h *HTTPHandler) ApprovalHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	entries, err := h.gate.History(r.Context(), r.URL.Query().Get("document_id"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"entries": entries,
		"total":   len(entries),
	})
}

// BestOffer returns the best-offer report for a procurement.
func (h *HTTPHandler) BestOffer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	report, err := h.flow.BestOfferReport(
		r.Context(),
		r.URL.Query().Get("procurement_id"),
		r.URL.Query().Get("algorithm"),
	)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, report)
}

// ── response helpers ──────────────────────────────────────────────────────────

func (h *HTTPHandler) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.log.Warn().Err(err).Msg("Failed to encode response body")
	}
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, err error) {
	status := errors.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		h.log.Error().Err(err).Msg("Request failed")
	}

	h.writeJSON(w, status, map[string]interface{}{
		"ok":      false,
		"code":    errors.Code(err),
		"message": errors.Message(err),
		"details": errors.Details(err),
	})
}
