package service

import (
	"context"

	"github.com/armada-ops/be-proc-approvals/internal/repository"
)

// Narrow store contracts the services depend on. The pgx repositories in
// internal/repository satisfy them; tests use in-memory fakes.

// DocumentStore loads documents and applies status transitions.
type DocumentStore interface {
	GetByID(ctx context.Context, id string) (*repository.Document, error)
	GetByQRCode(ctx context.Context, payload string) (*repository.Document, error)
	UpdateStatus(ctx context.Context, id, status string) error
	AutoApprove(ctx context.Context, id, approvedBy string) error
	MarkApproved(ctx context.Context, id, approvedBy string) error
}

// ProcurementStore loads procurements and applies the completion transition.
type ProcurementStore interface {
	GetByID(ctx context.Context, id string) (*repository.Procurement, error)
	MarkCompleted(ctx context.Context, id string) (bool, error)
}

// StepStore creates and mutates approval steps.
type StepStore interface {
	CreateFlow(ctx context.Context, documentID string, steps []*repository.ApprovalStep) error
	GetByID(ctx context.Context, id string) (*repository.ApprovalStep, error)
	GetByDocumentID(ctx context.Context, documentID string) ([]*repository.ApprovalStep, error)
	HasUnresolvedSteps(ctx context.Context, documentID string) (bool, error)
	UpdateStepAction(ctx context.Context, id, status, approverID string, note *string) error
	CountNotApproved(ctx context.Context, procurementID string) (int, error)
	GetPendingForUser(ctx context.Context, userID string, roleNames []string) ([]*repository.ApprovalStep, error)
}

// ConfigStore reads the approval step configuration and role catalog.
type ConfigStore interface {
	ListStepConfigs(ctx context.Context, jobTypeID, documentTypeID string) ([]repository.ApprovalStepConfig, error)
	GetRoleByName(ctx context.Context, name string) (*repository.Role, error)
}

// OfferStore reads the vendor offer ledger and revenue inputs.
type OfferStore interface {
	ListOfferLines(ctx context.Context, procurementID string) ([]repository.VendorOfferLine, error)
	ListLineItems(ctx context.Context, procurementID string) ([]repository.ProcurementLineItem, error)
}

// AuditStore appends audit log entries.
type AuditStore interface {
	Append(ctx context.Context, entry *repository.AuditEntry) error
	GetByDocumentID(ctx context.Context, documentID string) ([]*repository.AuditEntry, error)
}

// Notifier publishes approval events. Implementations must be non-fatal:
// publish failures are logged, never returned.
type Notifier interface {
	PublishDocumentEvent(ctx context.Context, eventType, documentID, procurementID, actorID string, payload map[string]interface{})
	PublishProcurementCompleted(ctx context.Context, procurementID, actorID string)
}
