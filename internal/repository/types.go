package repository

import (
	"time"

	"github.com/shopspring/decimal"
)

// ── Domain types for the procurement approval pipeline ───────────────────────

// Document statuses.
const (
	DocumentStatusUploaded        = "uploaded"
	DocumentStatusPendingApproval = "pending_approval"
	DocumentStatusApproved        = "approved"
	DocumentStatusRejected        = "rejected"
	DocumentStatusDeleted         = "deleted"
)

// Approval step statuses. A step transitions at most once out of pending.
const (
	StepStatusPending  = "pending"
	StepStatusApproved = "approved"
	StepStatusRejected = "rejected"
)

// Procurement statuses.
const (
	ProcurementStatusInProgress = "in_progress"
	ProcurementStatusCompleted  = "completed"
)

// Procurement is a work order aggregate. The per-role assignment columns are
// the procurement-level role assignments consulted during flow generation.
type Procurement struct {
	ID              string
	JobTypeID       string
	Name            string
	Status          string // in_progress | completed
	ManagerID       *string
	PICOperationsID *string
	DirectorID      *string
	VicePresidentID *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Document is a procurement work-order document moving through the approval
// pipeline. QRCode is the opaque payload printed on the rendered document.
type Document struct {
	ID             string
	ProcurementID  string
	DocumentTypeID string
	Status         string
	QRCode         *string
	ApprovedBy     *string
	ApprovedAt     *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Role is an approver role.
type Role struct {
	ID   string
	Name string
}

// ApprovalStepConfig is one immutable configuration entry: for a
// (job type, document type) pair, the role required at (level, sequence).
type ApprovalStepConfig struct {
	ID             string
	JobTypeID      string
	DocumentTypeID string
	RoleID         string
	RoleName       string
	Level          int
	Sequence       int
}

// ApprovalStep is a materialized pending/resolved approval gate entry.
// (document_id, level, sequence, role_id) is unique. AssignedApproverID, when
// set, restricts the step to that exact user; ApproverID records who acted.
type ApprovalStep struct {
	ID                 string
	DocumentID         string
	ProcurementID      string
	RoleID             string
	RoleName           string
	AssignedApproverID *string
	ApproverID         *string
	Level              int
	Sequence           int
	Status             string // pending | approved | rejected
	Note               *string
	ApprovedAt         *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Resolved reports whether the step has left the pending state.
func (s *ApprovalStep) Resolved() bool {
	return s.Status != StepStatusPending
}

// VendorOfferLine is one vendor price submission for a procurement line item
// in a given negotiation round.
type VendorOfferLine struct {
	VendorID      string
	ProcurementID string
	LineItemID    string
	Round         int
	Price         decimal.Decimal
	Quantity      decimal.Decimal
	TripFactor    decimal.Decimal
}

// ProcurementLineItem carries the revenue tariff inputs for one line item.
type ProcurementLineItem struct {
	ID            string
	ProcurementID string
	BaseTariff    decimal.Decimal
	AddTariff     decimal.Decimal
	KmFactor      decimal.Decimal
	Quantity      decimal.Decimal
}

// AuditEntry is one immutable record in the approval audit log.
type AuditEntry struct {
	ID                   string
	DocumentID           string
	ProcurementID        string
	StepID               *string
	Action               string // submitted | auto_approved | approved | rejected
	PerformedBy          string
	PerformedAt          time.Time
	DocumentStatusBefore *string
	DocumentStatusAfter  *string
	Metadata             map[string]interface{}
}
