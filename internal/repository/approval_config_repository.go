package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/armada-ops/be-proc-approvals/internal/database"
	"github.com/armada-ops/be-proc-approvals/internal/errors"
)

// ApprovalConfigRepository reads the immutable approval step configuration
// and the role catalog.
type ApprovalConfigRepository struct {
	db *database.DB
}

// NewApprovalConfigRepository creates a new ApprovalConfigRepository.
func NewApprovalConfigRepository(db *database.DB) *ApprovalConfigRepository {
	return &ApprovalConfigRepository{db: db}
}

// ListStepConfigs returns the approval step configuration for a
// (job type, document type) pair ordered by (level, sequence). An empty
// result means no approval is configured for the document type.
func (r *ApprovalConfigRepository) ListStepConfigs(ctx context.Context, jobTypeID, documentTypeID string) ([]ApprovalStepConfig, error) {
	query := `
		SELECT c.id, c.job_type_id, c.document_type_id, c.role_id, ro.name,
		       c.level, c.sequence
		FROM approval_step_configs c
		JOIN roles ro ON ro.id = c.role_id
		WHERE c.job_type_id = $1
		  AND c.document_type_id = $2
		ORDER BY c.level ASC, c.sequence ASC
	`

	rows, err := r.db.Query(ctx, query, jobTypeID, documentTypeID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to list approval step configs")
	}
	defer rows.Close()

	var configs []ApprovalStepConfig
	for rows.Next() {
		var c ApprovalStepConfig
		err := rows.Scan(
			&c.ID,
			&c.JobTypeID,
			&c.DocumentTypeID,
			&c.RoleID,
			&c.RoleName,
			&c.Level,
			&c.Sequence,
		)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan approval step config")
		}
		configs = append(configs, c)
	}
	return configs, nil
}

// GetRoleByName looks up a role by name, case-insensitively.
// Returns nil (no error) when the role does not exist.
func (r *ApprovalConfigRepository) GetRoleByName(ctx context.Context, name string) (*Role, error) {
	query := `SELECT id, name FROM roles WHERE LOWER(name) = LOWER($1)`

	role := &Role{}
	err := r.db.QueryRow(ctx, query, name).Scan(&role.ID, &role.Name)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get role by name")
	}
	return role, nil
}
