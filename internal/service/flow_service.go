package service

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/armada-ops/be-proc-approvals/internal/bestoffer"
	"github.com/armada-ops/be-proc-approvals/internal/errors"
	"github.com/armada-ops/be-proc-approvals/internal/logger"
	"github.com/armada-ops/be-proc-approvals/internal/repository"
)

// Document type whose submission consults the best-offer selection for the
// extra sign-off tier.
const profitLossDocumentType = "profit_loss"

// Winning totals strictly above this amount require the extra tier.
var extraTierThreshold = decimal.NewFromInt(300_000_000)

// Role appended as the extra tier when the threshold is crossed.
var extraTierRoles = []string{RoleVicePresident}

// FlowService generates the approval step flow for a document: it reads the
// step configuration, resolves assigned approvers from the procurement's role
// assignments, optionally appends the money-gated extra tier, and moves the
// document into pending_approval. Documents whose type has no configuration
// are auto-approved instead.
type FlowService struct {
	documents    DocumentStore
	procurements ProcurementStore
	steps        StepStore
	configs      ConfigStore
	offers       OfferStore
	audit        AuditStore
	notifier     Notifier
	log          *logger.Logger
}

// NewFlowService creates a new FlowService.
func NewFlowService(
	documents DocumentStore,
	procurements ProcurementStore,
	steps StepStore,
	configs ConfigStore,
	offers OfferStore,
	audit AuditStore,
	notifier Notifier,
	log *logger.Logger,
) *FlowService {
	return &FlowService{
		documents:    documents,
		procurements: procurements,
		steps:        steps,
		configs:      configs,
		offers:       offers,
		audit:        audit,
		notifier:     notifier,
		log:          log,
	}
}

// SubmitResult reports what submission did with a document.
type SubmitResult struct {
	DocumentID   string `json:"document_id"`
	AutoApproved bool   `json:"auto_approved"`
	StepsCreated int    `json:"steps_created"`
	ExtraTier    bool   `json:"extra_tier"`
}

// SubmitDocument routes a document into the approval pipeline. When the
// document type carries no step configuration the document is auto-approved
// directly; otherwise a step flow is generated, with the extra tier appended
// when the winning offer total crosses the monetary threshold.
func (s *FlowService) SubmitDocument(ctx context.Context, documentID, submittedBy string) (*SubmitResult, error) {
	doc, err := s.documents.GetByID(ctx, documentID)
	if err != nil {
		return nil, err
	}
	proc, err := s.procurements.GetByID(ctx, doc.ProcurementID)
	if err != nil {
		return nil, err
	}

	configs, err := s.configs.ListStepConfigs(ctx, proc.JobTypeID, doc.DocumentTypeID)
	if err != nil {
		return nil, err
	}

	if len(configs) == 0 {
		// No approval configured for this document type.
		if err := s.documents.AutoApprove(ctx, doc.ID, submittedBy); err != nil {
			return nil, err
		}
		s.appendAudit(ctx, &repository.AuditEntry{
			DocumentID:           doc.ID,
			ProcurementID:        doc.ProcurementID,
			Action:               "auto_approved",
			PerformedBy:          submittedBy,
			DocumentStatusBefore: &doc.Status,
			DocumentStatusAfter:  strPtr(repository.DocumentStatusApproved),
		})
		s.notifier.PublishDocumentEvent(ctx, "document_approved", doc.ID, doc.ProcurementID, submittedBy, nil)

		s.log.Info().
			Str("document_id", doc.ID).
			Str("document_type", doc.DocumentTypeID).
			Msg("No approval configured; document auto-approved")

		return &SubmitResult{DocumentID: doc.ID, AutoApproved: true}, nil
	}

	var extraRoles []string
	if doc.DocumentTypeID == profitLossDocumentType {
		extraRoles = s.extraTierFor(ctx, proc.ID)
	}

	created, err := s.generateFlow(ctx, doc, proc, configs, extraRoles)
	if err != nil {
		return nil, err
	}

	s.appendAudit(ctx, &repository.AuditEntry{
		DocumentID:           doc.ID,
		ProcurementID:        doc.ProcurementID,
		Action:               "submitted",
		PerformedBy:          submittedBy,
		DocumentStatusBefore: &doc.Status,
		DocumentStatusAfter:  strPtr(repository.DocumentStatusPendingApproval),
		Metadata: map[string]interface{}{
			"steps_created": created,
			"extra_tier":    len(extraRoles) > 0,
		},
	})
	s.notifier.PublishDocumentEvent(ctx, "document_approval_required", doc.ID, doc.ProcurementID, submittedBy, map[string]interface{}{
		"steps_created": created,
	})

	return &SubmitResult{
		DocumentID:   doc.ID,
		StepsCreated: created,
		ExtraTier:    len(extraRoles) > 0,
	}, nil
}

// GenerateFlow materializes the approval steps for a document with an
// explicit extra-role list. Exposed for callers that make the extra-tier
// decision themselves; SubmitDocument is the usual entry point.
func (s *FlowService) GenerateFlow(ctx context.Context, documentID string, extraRoleNames []string) error {
	doc, err := s.documents.GetByID(ctx, documentID)
	if err != nil {
		return err
	}
	proc, err := s.procurements.GetByID(ctx, doc.ProcurementID)
	if err != nil {
		return err
	}
	configs, err := s.configs.ListStepConfigs(ctx, proc.JobTypeID, doc.DocumentTypeID)
	if err != nil {
		return err
	}
	if len(configs) == 0 {
		// Nothing to generate; the caller owns the auto-approve branch.
		return nil
	}
	_, err = s.generateFlow(ctx, doc, proc, configs, extraRoleNames)
	return err
}

// generateFlow builds and persists the pending steps. Returns the number of
// steps created.
func (s *FlowService) generateFlow(
	ctx context.Context,
	doc *repository.Document,
	proc *repository.Procurement,
	configs []repository.ApprovalStepConfig,
	extraRoleNames []string,
) (int, error) {
	switch doc.Status {
	case repository.DocumentStatusApproved:
		return 0, errors.New(errors.ErrCodeConflict, "document is already approved")
	case repository.DocumentStatusRejected:
		// Re-submission: the old flow is superseded when the new steps are
		// written.
	default:
		unresolved, err := s.steps.HasUnresolvedSteps(ctx, doc.ID)
		if err != nil {
			return 0, err
		}
		if unresolved {
			return 0, errors.New(errors.ErrCodeConflict, "approval flow already generated for this document")
		}
	}

	steps := make([]*repository.ApprovalStep, 0, len(configs)+len(extraRoleNames))
	maxLevel := 0
	for _, cfg := range configs {
		steps = append(steps, &repository.ApprovalStep{
			DocumentID:         doc.ID,
			ProcurementID:      proc.ID,
			RoleID:             cfg.RoleID,
			RoleName:           cfg.RoleName,
			AssignedApproverID: resolveAssignedApprover(proc, cfg.RoleName),
			Level:              cfg.Level,
			Sequence:           cfg.Sequence,
			Status:             repository.StepStatusPending,
		})
		if cfg.Level > maxLevel {
			maxLevel = cfg.Level
		}
	}

	// Extra tier: one additional level, one step per resolvable role name.
	sequence := 1
	for _, roleName := range extraRoleNames {
		role, err := s.configs.GetRoleByName(ctx, roleName)
		if err != nil {
			return 0, err
		}
		if role == nil {
			s.log.Warn().
				Str("role", roleName).
				Str("document_id", doc.ID).
				Msg("Unknown extra approval role; skipping")
			continue
		}
		steps = append(steps, &repository.ApprovalStep{
			DocumentID:         doc.ID,
			ProcurementID:      proc.ID,
			RoleID:             role.ID,
			RoleName:           role.Name,
			AssignedApproverID: resolveAssignedApprover(proc, role.Name),
			Level:              maxLevel + 1,
			Sequence:           sequence,
			Status:             repository.StepStatusPending,
		})
		sequence++
	}

	if err := s.steps.CreateFlow(ctx, doc.ID, steps); err != nil {
		return 0, err
	}

	s.log.Info().
		Str("document_id", doc.ID).
		Str("procurement_id", proc.ID).
		Int("steps", len(steps)).
		Msg("Approval flow generated")

	return len(steps), nil
}

// extraTierFor computes the extra-tier decision from the best-offer
// selection. Best-effort: any failure is logged and generation proceeds
// without the extra tier.
func (s *FlowService) extraTierFor(ctx context.Context, procurementID string) []string {
	result, _, err := s.bestOffer(ctx, procurementID, bestoffer.SelectBestVendor)
	if err != nil {
		s.log.Warn().Err(err).
			Str("procurement_id", procurementID).
			Msg("Best-offer selection unavailable; proceeding without extra tier")
		return nil
	}
	if result.Total.GreaterThan(extraTierThreshold) {
		return extraTierRoles
	}
	return nil
}

// selectFunc matches the bestoffer selection entry points.
type selectFunc func(lines []bestoffer.OfferLine, requiredItemIDs []string) (*bestoffer.Result, error)

// bestOffer loads the offer ledger and revenue inputs, runs the given
// selection algorithm and derives the profit summary.
func (s *FlowService) bestOffer(ctx context.Context, procurementID string, sel selectFunc) (*bestoffer.Result, bestoffer.ProfitSummary, error) {
	offerLines, err := s.offers.ListOfferLines(ctx, procurementID)
	if err != nil {
		return nil, bestoffer.ProfitSummary{}, err
	}
	items, err := s.offers.ListLineItems(ctx, procurementID)
	if err != nil {
		return nil, bestoffer.ProfitSummary{}, err
	}

	lines := make([]bestoffer.OfferLine, 0, len(offerLines))
	for _, l := range offerLines {
		lines = append(lines, bestoffer.OfferLine{
			VendorID:   l.VendorID,
			LineItemID: l.LineItemID,
			Round:      l.Round,
			Price:      l.Price,
			Quantity:   l.Quantity,
			TripFactor: l.TripFactor,
		})
	}
	requiredIDs := make([]string, 0, len(items))
	revenueLines := make([]bestoffer.RevenueLine, 0, len(items))
	for _, it := range items {
		requiredIDs = append(requiredIDs, it.ID)
		revenueLines = append(revenueLines, bestoffer.RevenueLine{
			BaseTariff: it.BaseTariff,
			AddTariff:  it.AddTariff,
			KmFactor:   it.KmFactor,
			Quantity:   it.Quantity,
		})
	}

	result, err := sel(lines, requiredIDs)
	if err != nil {
		return nil, bestoffer.ProfitSummary{}, err
	}
	return result, bestoffer.ProfitOf(bestoffer.Revenue(revenueLines), result.Total), nil
}

// OfferReport is the read-only best-offer report payload.
type OfferReport struct {
	ProcurementID string                     `json:"procurement_id"`
	Algorithm     string                     `json:"algorithm"`
	VendorID      string                     `json:"vendor_id"`
	Total         decimal.Decimal            `json:"total"`
	PerLineItem   map[string]decimal.Decimal `json:"per_line_item"`
	Revenue       decimal.Decimal            `json:"revenue"`
	Profit        decimal.Decimal            `json:"profit"`
	ProfitPercent decimal.Decimal            `json:"profit_percent"`
}

// Best-offer report algorithm names.
const (
	AlgorithmFinalRound  = "final-round"
	AlgorithmLowestPrice = "lowest-price"
)

// BestOfferReport runs the named selection algorithm for a procurement and
// returns the winner with the profit summary.
func (s *FlowService) BestOfferReport(ctx context.Context, procurementID, algorithm string) (*OfferReport, error) {
	if procurementID == "" {
		return nil, errors.InvalidInput("procurement_id", "procurement id is required")
	}

	var sel selectFunc
	switch algorithm {
	case AlgorithmFinalRound, "":
		algorithm = AlgorithmFinalRound
		sel = bestoffer.SelectBestVendor
	case AlgorithmLowestPrice:
		sel = bestoffer.SelectBestVendorLowestPrice
	default:
		return nil, errors.InvalidInput("algorithm", "unknown algorithm: "+algorithm)
	}

	result, profit, err := s.bestOffer(ctx, procurementID, sel)
	if err != nil {
		return nil, err
	}

	return &OfferReport{
		ProcurementID: procurementID,
		Algorithm:     algorithm,
		VendorID:      result.VendorID,
		Total:         result.Total,
		PerLineItem:   result.PerLineItem,
		Revenue:       profit.Revenue,
		Profit:        profit.Profit,
		ProfitPercent: profit.ProfitPercent,
	}, nil
}

// appendAudit writes an audit entry and logs a warning on failure.
func (s *FlowService) appendAudit(ctx context.Context, entry *repository.AuditEntry) {
	if err := s.audit.Append(ctx, entry); err != nil {
		s.log.Warn().Err(err).
			Str("document_id", entry.DocumentID).
			Str("action", entry.Action).
			Msg("Failed to write audit log entry")
	}
}

func strPtr(s string) *string {
	return &s
}
