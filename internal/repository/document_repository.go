package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/armada-ops/be-proc-approvals/internal/database"
	"github.com/armada-ops/be-proc-approvals/internal/errors"
)

// DocumentRepository handles reads and status transitions on documents.
type DocumentRepository struct {
	db *database.DB
}

// NewDocumentRepository creates a new DocumentRepository.
func NewDocumentRepository(db *database.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

const documentColumns = `
	id, procurement_id, document_type_id, status, qr_code,
	approved_by, approved_at, created_at, updated_at
`

// GetByID retrieves a document by primary key.
func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE id = $1 AND status != 'deleted'`

	doc, err := r.scanDocument(r.db.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("document", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get document")
	}
	return doc, nil
}

// GetByQRCode retrieves a document by its QR payload.
func (r *DocumentRepository) GetByQRCode(ctx context.Context, payload string) (*Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE qr_code = $1 AND status != 'deleted'`

	doc, err := r.scanDocument(r.db.QueryRow(ctx, query, payload))
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("qr_code", payload)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get document by qr code")
	}
	return doc, nil
}

// UpdateStatus sets the document status.
func (r *DocumentRepository) UpdateStatus(ctx context.Context, id, status string) error {
	query := `
		UPDATE documents
		SET status     = $2::document_status,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING id
	`

	var returnedID string
	err := r.db.QueryRow(ctx, query, id, status).Scan(&returnedID)
	if err == pgx.ErrNoRows {
		return errors.NotFound("document", id)
	}
	return err
}

// AutoApprove moves a document straight to approved, stamping approver and
// time. Used when no approval flow is configured for the document type.
func (r *DocumentRepository) AutoApprove(ctx context.Context, id, approvedBy string) error {
	query := `
		UPDATE documents
		SET status      = 'approved'::document_status,
		    approved_by = $2,
		    approved_at = NOW(),
		    updated_at  = NOW()
		WHERE id = $1
		RETURNING id
	`

	var returnedID string
	err := r.db.QueryRow(ctx, query, id, approvedBy).Scan(&returnedID)
	if err == pgx.ErrNoRows {
		return errors.NotFound("document", id)
	}
	return err
}

// MarkApproved stamps the final approver on a document whose last step was
// just approved.
func (r *DocumentRepository) MarkApproved(ctx context.Context, id, approvedBy string) error {
	return r.AutoApprove(ctx, id, approvedBy)
}

// ── scan helper ───────────────────────────────────────────────────────────────

type documentScanner interface {
	Scan(dest ...any) error
}

func (r *DocumentRepository) scanDocument(row documentScanner) (*Document, error) {
	d := &Document{}
	err := row.Scan(
		&d.ID,
		&d.ProcurementID,
		&d.DocumentTypeID,
		&d.Status,
		&d.QRCode,
		&d.ApprovedBy,
		&d.ApprovedAt,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return d, nil
}
