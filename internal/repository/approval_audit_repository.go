package repository

import (
	"context"
	"encoding/json"

	"github.com/armada-ops/be-proc-approvals/internal/database"
	"github.com/armada-ops/be-proc-approvals/internal/errors"
)

// AuditRepository appends and reads immutable approval audit log entries.
type AuditRepository struct {
	db *database.DB
}

// NewAuditRepository creates a new AuditRepository.
func NewAuditRepository(db *database.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Append inserts one audit entry. The table has a delete-prevention trigger
// so this is the only mutation operation exposed.
func (r *AuditRepository) Append(ctx context.Context, entry *AuditEntry) error {
	var metadataJSON []byte
	if entry.Metadata != nil {
		var err error
		metadataJSON, err = json.Marshal(entry.Metadata)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeInternal, "failed to marshal audit metadata")
		}
	}

	query := `
		INSERT INTO approval_audit_log
		    (document_id, procurement_id, step_id,
		     action, performed_by,
		     document_status_before, document_status_after,
		     metadata)
		VALUES ($1, $2, $3,
		        $4, $5,
		        $6, $7,
		        $8)
		RETURNING id, performed_at
	`

	return r.db.QueryRow(ctx, query,
		entry.DocumentID,
		entry.ProcurementID,
		entry.StepID,
		entry.Action,
		entry.PerformedBy,
		entry.DocumentStatusBefore,
		entry.DocumentStatusAfter,
		metadataJSON,
	).Scan(&entry.ID, &entry.PerformedAt)
}

// GetByDocumentID returns the full audit trail for a document, oldest first.
func (r *AuditRepository) GetByDocumentID(ctx context.Context, documentID string) ([]*AuditEntry, error) {
	query := `
		SELECT id, document_id, procurement_id, step_id,
		       action, performed_by, performed_at,
		       document_status_before, document_status_after,
		       metadata
		FROM approval_audit_log
		WHERE document_id = $1
		ORDER BY performed_at ASC
	`

	rows, err := r.db.Query(ctx, query, documentID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get audit trail")
	}
	defer rows.Close()

	var entries []*AuditEntry
	for rows.Next() {
		e := &AuditEntry{}
		var metadataJSON []byte
		err := rows.Scan(
			&e.ID,
			&e.DocumentID,
			&e.ProcurementID,
			&e.StepID,
			&e.Action,
			&e.PerformedBy,
			&e.PerformedAt,
			&e.DocumentStatusBefore,
			&e.DocumentStatusAfter,
			&metadataJSON,
		)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan audit entry")
		}
		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &e.Metadata); err != nil {
				return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to unmarshal audit metadata")
			}
		}
		entries = append(entries, e)
	}
	return entries, nil
}
