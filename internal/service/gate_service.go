package service

import (
	"context"
	"strings"
	"time"

	"github.com/armada-ops/be-proc-approvals/internal/errors"
	"github.com/armada-ops/be-proc-approvals/internal/logger"
	"github.com/armada-ops/be-proc-approvals/internal/repository"
)

// Approval actions.
const (
	ActionApprove = "approve"
	ActionReject  = "reject"
)

// LookupKey addresses a document through one of three handles. Exactly one
// field must be set.
type LookupKey struct {
	QRPayload  string
	StepID     string
	DocumentID string
}

// ActingUser is the authenticated user attempting an approval action.
type ActingUser struct {
	ID    string
	Roles []string
}

// GateInfo describes the earliest unresolved (level, sequence) group of a
// document, or its final state once every step is resolved.
type GateInfo struct {
	DocumentID     string                     `json:"document_id"`
	ProcurementID  string                     `json:"procurement_id"`
	DocumentStatus string                     `json:"document_status"`
	Final          bool                       `json:"final"`
	Level          int                        `json:"level,omitempty"`
	Sequence       int                        `json:"sequence,omitempty"`
	RequiredRoles  []string                   `json:"required_roles,omitempty"`
	Steps          []*repository.ApprovalStep `json:"steps,omitempty"`
}

// ActionResult reports the outcome of an UpdateStatus call.
type ActionResult struct {
	OK                   bool      `json:"ok"`
	Action               string    `json:"action"`
	Final                bool      `json:"final"`
	StepID               string    `json:"step_id,omitempty"`
	DocumentID           string    `json:"document_id"`
	ProcurementID        string    `json:"procurement_id"`
	ProcurementCompleted bool      `json:"procurement_completed"`
	Timestamp            time.Time `json:"timestamp"`
}

// GateService is the approval gate state machine: it resolves the current
// gate for a document and applies approve/reject actions to it, cascading to
// the procurement's completion when the last step is approved.
type GateService struct {
	documents    DocumentStore
	procurements ProcurementStore
	steps        StepStore
	audit        AuditStore
	notifier     Notifier
	log          *logger.Logger
}

// NewGateService creates a new GateService.
func NewGateService(
	documents DocumentStore,
	procurements ProcurementStore,
	steps StepStore,
	audit AuditStore,
	notifier Notifier,
	log *logger.Logger,
) *GateService {
	return &GateService{
		documents:    documents,
		procurements: procurements,
		steps:        steps,
		audit:        audit,
		notifier:     notifier,
		log:          log,
	}
}

// ResolveCurrentGate finds the document behind the lookup key and returns its
// earliest unresolved gate, or a final-state marker when every step is
// resolved.
func (s *GateService) ResolveCurrentGate(ctx context.Context, key LookupKey) (*GateInfo, error) {
	doc, err := s.resolveDocument(ctx, key)
	if err != nil {
		return nil, err
	}

	steps, err := s.steps.GetByDocumentID(ctx, doc.ID)
	if err != nil {
		return nil, err
	}
	if len(steps) == 0 {
		return nil, errors.NotFound("approval_flow", doc.ID)
	}

	return s.gateOf(doc, steps), nil
}

// UpdateStatus applies an approve/reject action to the document's current
// gate on behalf of the acting user.
func (s *GateService) UpdateStatus(ctx context.Context, key LookupKey, action string, note *string, user ActingUser) (*ActionResult, error) {
	if action != ActionApprove && action != ActionReject {
		return nil, errors.InvalidInput("action", "action must be approve or reject")
	}
	if user.ID == "" {
		return nil, errors.InvalidInput("user_id", "acting user id is required")
	}
	if action == ActionReject && (note == nil || *note == "") {
		return nil, errors.InvalidInput("note", "rejection note is required")
	}

	doc, err := s.resolveDocument(ctx, key)
	if err != nil {
		return nil, err
	}
	if doc.Status == repository.DocumentStatusRejected {
		return nil, errors.New(errors.ErrCodeConflict,
			"document was rejected; re-submit it to restart the approval flow")
	}
	steps, err := s.steps.GetByDocumentID(ctx, doc.ID)
	if err != nil {
		return nil, err
	}
	if len(steps) == 0 {
		return nil, errors.NotFound("approval_flow", doc.ID)
	}

	gate := s.gateOf(doc, steps)
	if gate.Final {
		// Re-submission of an already-resolved gate is a harmless no-op.
		return &ActionResult{
			OK:            true,
			Action:        action,
			Final:         true,
			DocumentID:    doc.ID,
			ProcurementID: doc.ProcurementID,
			Timestamp:     time.Now(),
		}, nil
	}

	step, err := s.matchStep(gate, user)
	if err != nil {
		return nil, err
	}

	switch action {
	case ActionApprove:
		return s.approve(ctx, doc, step, note, user)
	default:
		return s.reject(ctx, doc, step, note, user)
	}
}

// PendingForUser lists pending steps the user may act on.
func (s *GateService) PendingForUser(ctx context.Context, user ActingUser) ([]*repository.ApprovalStep, error) {
	if user.ID == "" {
		return nil, errors.InvalidInput("user_id", "user id is required")
	}
	return s.steps.GetPendingForUser(ctx, user.ID, user.Roles)
}

// History returns the audit trail for a document.
func (s *GateService) History(ctx context.Context, documentID string) ([]*repository.AuditEntry, error) {
	if documentID == "" {
		return nil, errors.InvalidInput("document_id", "document id is required")
	}
	return s.audit.GetByDocumentID(ctx, documentID)
}

// ── state machine internals ───────────────────────────────────────────────────

// resolveDocument maps a lookup key to its document. The not-found resource
// name follows the lookup type so callers can tell a bad QR from a bad id.
func (s *GateService) resolveDocument(ctx context.Context, key LookupKey) (*repository.Document, error) {
	switch {
	case key.QRPayload != "":
		return s.documents.GetByQRCode(ctx, key.QRPayload)
	case key.StepID != "":
		step, err := s.steps.GetByID(ctx, key.StepID)
		if err != nil {
			return nil, err
		}
		return s.documents.GetByID(ctx, step.DocumentID)
	case key.DocumentID != "":
		return s.documents.GetByID(ctx, key.DocumentID)
	}
	return nil, errors.InvalidInput("lookup", "one of qr, step_id or document_id is required")
}

// gateOf computes the earliest unresolved (level, sequence) group. Steps
// arrive ordered by (level, sequence); members of the same group are
// alternative approvers, so the gate carries all of them.
func (s *GateService) gateOf(doc *repository.Document, steps []*repository.ApprovalStep) *GateInfo {
	info := &GateInfo{
		DocumentID:     doc.ID,
		ProcurementID:  doc.ProcurementID,
		DocumentStatus: doc.Status,
	}

	for _, step := range steps {
		if step.Resolved() {
			continue
		}
		if len(info.Steps) == 0 {
			info.Level = step.Level
			info.Sequence = step.Sequence
		}
		if step.Level != info.Level || step.Sequence != info.Sequence {
			break
		}
		info.Steps = append(info.Steps, step)
		info.RequiredRoles = append(info.RequiredRoles, step.RoleName)
	}

	info.Final = len(info.Steps) == 0
	return info
}

// matchStep finds the one gate step the user satisfies: role name matches
// case-insensitively, and when the step carries an assigned approver the
// user's id must equal it exactly.
func (s *GateService) matchStep(gate *GateInfo, user ActingUser) (*repository.ApprovalStep, error) {
	for _, step := range gate.Steps {
		if !holdsRole(user.Roles, step.RoleName) {
			continue
		}
		if step.AssignedApproverID != nil && *step.AssignedApproverID != user.ID {
			continue
		}
		return step, nil
	}

	return nil, errors.New(errors.ErrCodeUnauthorized,
		"user does not hold a role required at the current approval gate").
		WithDetails(map[string]interface{}{
			"required_roles": gate.RequiredRoles,
			"held_roles":     user.Roles,
			"level":          gate.Level,
			"sequence":       gate.Sequence,
		})
}

func holdsRole(held []string, required string) bool {
	for _, r := range held {
		if strings.EqualFold(r, required) {
			return true
		}
	}
	return false
}

// approve resolves one step, finalizes the document when it was the last of
// its flow, and completes the procurement when no unapproved step remains
// anywhere under it.
func (s *GateService) approve(ctx context.Context, doc *repository.Document, step *repository.ApprovalStep, note *string, user ActingUser) (*ActionResult, error) {
	if err := s.steps.UpdateStepAction(ctx, step.ID, repository.StepStatusApproved, user.ID, note); err != nil {
		return nil, err
	}

	// Re-read the flow to decide whether this was the document's last step.
	// A document with any rejected step never advances to approved.
	docSteps, err := s.steps.GetByDocumentID(ctx, doc.ID)
	if err != nil {
		return nil, err
	}
	allApproved := true
	for _, st := range docSteps {
		if st.Status != repository.StepStatusApproved {
			allApproved = false
			break
		}
	}

	docStatusAfter := doc.Status
	if allApproved {
		if err := s.documents.MarkApproved(ctx, doc.ID, user.ID); err != nil {
			return nil, err
		}
		docStatusAfter = repository.DocumentStatusApproved
		s.notifier.PublishDocumentEvent(ctx, "document_approved", doc.ID, doc.ProcurementID, user.ID, nil)
	}

	completed := false
	if allApproved {
		remaining, err := s.steps.CountNotApproved(ctx, doc.ProcurementID)
		if err != nil {
			return nil, err
		}
		if remaining == 0 {
			completed, err = s.procurements.MarkCompleted(ctx, doc.ProcurementID)
			if err != nil {
				return nil, err
			}
			if completed {
				s.notifier.PublishProcurementCompleted(ctx, doc.ProcurementID, user.ID)
				s.log.Info().
					Str("procurement_id", doc.ProcurementID).
					Msg("All approval steps approved; procurement completed")
			}
		}
	}

	s.appendAudit(ctx, &repository.AuditEntry{
		DocumentID:           doc.ID,
		ProcurementID:        doc.ProcurementID,
		StepID:               &step.ID,
		Action:               "approved",
		PerformedBy:          user.ID,
		DocumentStatusBefore: &doc.Status,
		DocumentStatusAfter:  &docStatusAfter,
		Metadata: map[string]interface{}{
			"level":    step.Level,
			"sequence": step.Sequence,
			"role":     step.RoleName,
		},
	})

	return &ActionResult{
		OK:                   true,
		Action:               ActionApprove,
		StepID:               step.ID,
		DocumentID:           doc.ID,
		ProcurementID:        doc.ProcurementID,
		ProcurementCompleted: completed,
		Timestamp:            time.Now(),
	}, nil
}

// reject resolves one step as rejected and marks the document rejected. The
// procurement is left untouched: a rejected document re-enters the pipeline
// through re-submission.
func (s *GateService) reject(ctx context.Context, doc *repository.Document, step *repository.ApprovalStep, note *string, user ActingUser) (*ActionResult, error) {
	if err := s.steps.UpdateStepAction(ctx, step.ID, repository.StepStatusRejected, user.ID, note); err != nil {
		return nil, err
	}
	if err := s.documents.UpdateStatus(ctx, doc.ID, repository.DocumentStatusRejected); err != nil {
		return nil, err
	}
	s.notifier.PublishDocumentEvent(ctx, "document_rejected", doc.ID, doc.ProcurementID, user.ID, map[string]interface{}{
		"note": derefOrEmpty(note),
	})

	s.appendAudit(ctx, &repository.AuditEntry{
		DocumentID:           doc.ID,
		ProcurementID:        doc.ProcurementID,
		StepID:               &step.ID,
		Action:               "rejected",
		PerformedBy:          user.ID,
		DocumentStatusBefore: &doc.Status,
		DocumentStatusAfter:  strPtr(repository.DocumentStatusRejected),
		Metadata: map[string]interface{}{
			"level":    step.Level,
			"sequence": step.Sequence,
			"role":     step.RoleName,
			"note":     derefOrEmpty(note),
		},
	})

	return &ActionResult{
		OK:            true,
		Action:        ActionReject,
		StepID:        step.ID,
		DocumentID:    doc.ID,
		ProcurementID: doc.ProcurementID,
		Timestamp:     time.Now(),
	}, nil
}

// appendAudit writes an audit entry and logs a warning on failure.
func (s *GateService) appendAudit(ctx context.Context, entry *repository.AuditEntry) {
	if err := s.audit.Append(ctx, entry); err != nil {
		s.log.Warn().Err(err).
			Str("document_id", entry.DocumentID).
			Str("action", entry.Action).
			Msg("Failed to write audit log entry")
	}
}

func derefOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
