package repository

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/armada-ops/be-proc-approvals/internal/database"
	"github.com/armada-ops/be-proc-approvals/internal/errors"
)

// ApprovalStepsRepository handles creation, reads and one-shot transitions on
// approval steps. Step creation and the document status flip are one
// transaction so a half-generated flow is never visible.
type ApprovalStepsRepository struct {
	db *database.DB
}

// NewApprovalStepsRepository creates a new ApprovalStepsRepository.
func NewApprovalStepsRepository(db *database.DB) *ApprovalStepsRepository {
	return &ApprovalStepsRepository{db: db}
}

const stepColumns = `
	id, document_id, procurement_id, role_id, role_name,
	assigned_approver_id, approver_id, level, sequence,
	status, note, approved_at, created_at, updated_at
`

// CreateFlow inserts all steps for a document and flips the document to
// pending_approval in a single transaction. Steps left over from a superseded
// flow are removed first; the audit log keeps their history.
func (r *ApprovalStepsRepository) CreateFlow(ctx context.Context, documentID string, steps []*ApprovalStep) error {
	return r.db.InTransaction(ctx, func(tx pgx.Tx) error {
		deleteQuery := `DELETE FROM approval_steps WHERE document_id = $1`
		if _, err := tx.Exec(ctx, deleteQuery, documentID); err != nil {
			return errors.Wrap(err, errors.ErrCodeInternal, "failed to supersede previous approval steps")
		}

		stepQuery := `
			INSERT INTO approval_steps
			    (document_id, procurement_id, role_id, role_name,
			     assigned_approver_id, level, sequence, status)
			VALUES ($1, $2, $3, $4,
			        $5, $6, $7, $8::approval_step_status)
			RETURNING id, created_at, updated_at
		`

		for _, step := range steps {
			err := tx.QueryRow(ctx, stepQuery,
				step.DocumentID,
				step.ProcurementID,
				step.RoleID,
				step.RoleName,
				step.AssignedApproverID,
				step.Level,
				step.Sequence,
				step.Status,
			).Scan(&step.ID, &step.CreatedAt, &step.UpdatedAt)
			if err != nil {
				return errors.Wrap(err, errors.ErrCodeInternal, "failed to create approval step")
			}
		}

		docQuery := `
			UPDATE documents
			SET status     = 'pending_approval'::document_status,
			    updated_at = NOW()
			WHERE id = $1
			RETURNING id
		`
		var returnedID string
		if err := tx.QueryRow(ctx, docQuery, documentID).Scan(&returnedID); err != nil {
			if err == pgx.ErrNoRows {
				return errors.NotFound("document", documentID)
			}
			return errors.Wrap(err, errors.ErrCodeInternal, "failed to update document status")
		}
		return nil
	})
}

// GetByID retrieves a single step.
func (r *ApprovalStepsRepository) GetByID(ctx context.Context, id string) (*ApprovalStep, error) {
	query := `SELECT ` + stepColumns + ` FROM approval_steps WHERE id = $1`

	step, err := r.scanStep(r.db.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("approval_step", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get approval step")
	}
	return step, nil
}

// GetByDocumentID returns all steps for a document ordered by (level, sequence).
func (r *ApprovalStepsRepository) GetByDocumentID(ctx context.Context, documentID string) ([]*ApprovalStep, error) {
	query := `
		SELECT ` + stepColumns + `
		FROM approval_steps
		WHERE document_id = $1
		ORDER BY level ASC, sequence ASC, created_at ASC
	`

	rows, err := r.db.Query(ctx, query, documentID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get approval steps")
	}
	defer rows.Close()

	return r.scanRows(rows)
}

// HasUnresolvedSteps reports whether the document still has pending steps.
func (r *ApprovalStepsRepository) HasUnresolvedSteps(ctx context.Context, documentID string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM approval_steps
			WHERE document_id = $1 AND status = 'pending'
		)
	`

	var exists bool
	if err := r.db.QueryRow(ctx, query, documentID).Scan(&exists); err != nil {
		return false, errors.Wrap(err, errors.ErrCodeInternal, "failed to check unresolved steps")
	}
	return exists, nil
}

// UpdateStepAction records the outcome of an approval action. The status
// guard makes the transition at-most-once: when another actor already
// resolved the step the update matches no row and a CONFLICT is returned.
func (r *ApprovalStepsRepository) UpdateStepAction(ctx context.Context, id, status, approverID string, note *string) error {
	query := `
		UPDATE approval_steps
		SET status      = $2::approval_step_status,
		    approver_id = $3,
		    note        = $4,
		    approved_at = NOW(),
		    updated_at  = NOW()
		WHERE id = $1
		  AND status = 'pending'
		RETURNING id
	`

	var returnedID string
	err := r.db.QueryRow(ctx, query, id, status, approverID, note).Scan(&returnedID)
	if err == pgx.ErrNoRows {
		return errors.New(errors.ErrCodeConflict, "step was already resolved by another approver")
	}
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to update approval step")
	}
	return nil
}

// CountNotApproved returns how many steps across the whole procurement have
// not reached approved status. Zero means every step everywhere is approved.
func (r *ApprovalStepsRepository) CountNotApproved(ctx context.Context, procurementID string) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM approval_steps
		WHERE procurement_id = $1
		  AND status != 'approved'
	`

	var count int
	if err := r.db.QueryRow(ctx, query, procurementID).Scan(&count); err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeInternal, "failed to count unapproved steps")
	}
	return count, nil
}

// GetPendingForUser returns pending steps a user may act on: steps assigned
// to them directly, or unassigned steps requiring one of the user's roles.
func (r *ApprovalStepsRepository) GetPendingForUser(ctx context.Context, userID string, roleNames []string) ([]*ApprovalStep, error) {
	lowered := make([]string, 0, len(roleNames))
	for _, name := range roleNames {
		lowered = append(lowered, strings.ToLower(name))
	}

	query := `
		SELECT ` + stepColumns + `
		FROM approval_steps
		WHERE status = 'pending'
		  AND (assigned_approver_id = $1
		       OR (assigned_approver_id IS NULL AND LOWER(role_name) = ANY($2)))
		ORDER BY created_at ASC
	`

	rows, err := r.db.Query(ctx, query, userID, lowered)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get pending approvals")
	}
	defer rows.Close()

	return r.scanRows(rows)
}

// ── scan helpers ──────────────────────────────────────────────────────────────

type stepScanner interface {
	Scan(dest ...any) error
}

func (r *ApprovalStepsRepository) scanStep(row stepScanner) (*ApprovalStep, error) {
	s := &ApprovalStep{}
	err := row.Scan(
		&s.ID,
		&s.DocumentID,
		&s.ProcurementID,
		&s.RoleID,
		&s.RoleName,
		&s.AssignedApproverID,
		&s.ApproverID,
		&s.Level,
		&s.Sequence,
		&s.Status,
		&s.Note,
		&s.ApprovedAt,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r *ApprovalStepsRepository) scanRows(rows pgx.Rows) ([]*ApprovalStep, error) {
	var steps []*ApprovalStep
	for rows.Next() {
		step, err := r.scanStep(rows)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan approval step")
		}
		steps = append(steps, step)
	}
	return steps, nil
}
