package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/armada-ops/be-proc-approvals/internal/database"
	"github.com/armada-ops/be-proc-approvals/internal/errors"
)

// ProcurementRepository handles reads and the completion transition on
// procurement work orders.
type ProcurementRepository struct {
	db *database.DB
}

// NewProcurementRepository creates a new ProcurementRepository.
func NewProcurementRepository(db *database.DB) *ProcurementRepository {
	return &ProcurementRepository{db: db}
}

// GetByID retrieves a procurement by primary key.
func (r *ProcurementRepository) GetByID(ctx context.Context, id string) (*Procurement, error) {
	query := `
		SELECT id, job_type_id, name, status,
		       manager_id, pic_operations_id, director_id, vice_president_id,
		       created_at, updated_at
		FROM procurements
		WHERE id = $1
	`

	p := &Procurement{}
	err := r.db.QueryRow(ctx, query, id).Scan(
		&p.ID,
		&p.JobTypeID,
		&p.Name,
		&p.Status,
		&p.ManagerID,
		&p.PICOperationsID,
		&p.DirectorID,
		&p.VicePresidentID,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("procurement", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get procurement")
	}
	return p, nil
}

// MarkCompleted transitions a procurement to completed. The guard on the
// current status makes the transition idempotent under concurrent approvals;
// the return value reports whether this call performed the transition.
func (r *ProcurementRepository) MarkCompleted(ctx context.Context, id string) (bool, error) {
	query := `
		UPDATE procurements
		SET status     = 'completed'::procurement_status,
		    updated_at = NOW()
		WHERE id = $1
		  AND status = 'in_progress'
	`

	tag, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return false, errors.Wrap(err, errors.ErrCodeInternal, "failed to mark procurement completed")
	}
	return tag.RowsAffected() > 0, nil
}
