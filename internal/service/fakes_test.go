package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/armada-ops/be-proc-approvals/internal/errors"
	"github.com/armada-ops/be-proc-approvals/internal/logger"
	"github.com/armada-ops/be-proc-approvals/internal/repository"
)

func testLogger() *logger.Logger {
	return &logger.Logger{Logger: zerolog.Nop()}
}

// ── fakeStore: one in-memory backing store behind all store interfaces ───────

type fakeStore struct {
	mu           sync.Mutex
	documents    map[string]*repository.Document
	procurements map[string]*repository.Procurement
	steps        []*repository.ApprovalStep
	configs      []repository.ApprovalStepConfig
	roles        map[string]repository.Role // keyed by lowercase name
	offerLines   []repository.VendorOfferLine
	lineItems    []repository.ProcurementLineItem
	audit        []*repository.AuditEntry
	nextStepID   int

	offerErr error // when set, offer reads fail

	// resolveUnderneath simulates a concurrent approver: the named step is
	// approved out from under the caller just before its UpdateStepAction.
	resolveUnderneath string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		documents:    make(map[string]*repository.Document),
		procurements: make(map[string]*repository.Procurement),
		roles:        make(map[string]repository.Role),
	}
}

func (f *fakeStore) addRole(id, name string) {
	f.roles[strings.ToLower(name)] = repository.Role{ID: id, Name: name}
}

func (f *fakeStore) addConfig(jobType, docType, roleName string, level, sequence int) {
	role := f.roles[strings.ToLower(roleName)]
	f.configs = append(f.configs, repository.ApprovalStepConfig{
		ID:             fmt.Sprintf("cfg-%d", len(f.configs)+1),
		JobTypeID:      jobType,
		DocumentTypeID: docType,
		RoleID:         role.ID,
		RoleName:       role.Name,
		Level:          level,
		Sequence:       sequence,
	})
}

// ── DocumentStore ────────────────────────────────────────────────────────────

func (f *fakeStore) GetByID(ctx context.Context, id string) (*repository.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.documents[id]
	if !ok {
		return nil, errors.NotFound("document", id)
	}
	copied := *doc
	return &copied, nil
}

func (f *fakeStore) GetByQRCode(ctx context.Context, payload string) (*repository.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, doc := range f.documents {
		if doc.QRCode != nil && *doc.QRCode == payload {
			copied := *doc
			return &copied, nil
		}
	}
	return nil, errors.NotFound("qr_code", payload)
}

func (f *fakeStore) UpdateStatus(ctx context.Context, id, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.documents[id]
	if !ok {
		return errors.NotFound("document", id)
	}
	doc.Status = status
	return nil
}

func (f *fakeStore) AutoApprove(ctx context.Context, id, approvedBy string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.documents[id]
	if !ok {
		return errors.NotFound("document", id)
	}
	now := time.Now()
	doc.Status = repository.DocumentStatusApproved
	doc.ApprovedBy = &approvedBy
	doc.ApprovedAt = &now
	return nil
}

func (f *fakeStore) MarkApproved(ctx context.Context, id, approvedBy string) error {
	return f.AutoApprove(ctx, id, approvedBy)
}

// ── ProcurementStore ─────────────────────────────────────────────────────────

func (f *fakeStore) GetProcurement(ctx context.Context, id string) (*repository.Procurement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.procurements[id]
	if !ok {
		return nil, errors.NotFound("procurement", id)
	}
	copied := *p
	return &copied, nil
}

func (f *fakeStore) MarkCompleted(ctx context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.procurements[id]
	if !ok {
		return false, errors.NotFound("procurement", id)
	}
	if p.Status != repository.ProcurementStatusInProgress {
		return false, nil
	}
	p.Status = repository.ProcurementStatusCompleted
	return true, nil
}

// ── StepStore ────────────────────────────────────────────────────────────────

func (f *fakeStore) CreateFlow(ctx context.Context, documentID string, steps []*repository.ApprovalStep) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.documents[documentID]
	if !ok {
		return errors.NotFound("document", documentID)
	}
	kept := f.steps[:0]
	for _, s := range f.steps {
		if s.DocumentID != documentID {
			kept = append(kept, s)
		}
	}
	f.steps = kept
	for _, step := range steps {
		f.nextStepID++
		step.ID = fmt.Sprintf("step-%d", f.nextStepID)
		step.CreatedAt = time.Now()
		step.UpdatedAt = step.CreatedAt
		f.steps = append(f.steps, step)
	}
	doc.Status = repository.DocumentStatusPendingApproval
	return nil
}

func (f *fakeStore) GetStep(ctx context.Context, id string) (*repository.ApprovalStep, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.steps {
		if s.ID == id {
			copied := *s
			return &copied, nil
		}
	}
	return nil, errors.NotFound("approval_step", id)
}

func (f *fakeStore) GetByDocumentID(ctx context.Context, documentID string) ([]*repository.ApprovalStep, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*repository.ApprovalStep
	for _, s := range f.steps {
		if s.DocumentID == documentID {
			copied := *s
			out = append(out, &copied)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Level != out[j].Level {
			return out[i].Level < out[j].Level
		}
		return out[i].Sequence < out[j].Sequence
	})
	return out, nil
}

func (f *fakeStore) HasUnresolvedSteps(ctx context.Context, documentID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.steps {
		if s.DocumentID == documentID && s.Status == repository.StepStatusPending {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) UpdateStepAction(ctx context.Context, id, status, approverID string, note *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.steps {
		if s.ID != id {
			continue
		}
		if f.resolveUnderneath == id {
			s.Status = repository.StepStatusApproved
			f.resolveUnderneath = ""
		}
		if s.Status != repository.StepStatusPending {
			return errors.New(errors.ErrCodeConflict, "step was already resolved by another approver")
		}
		now := time.Now()
		s.Status = status
		s.ApproverID = &approverID
		s.Note = note
		s.ApprovedAt = &now
		s.UpdatedAt = now
		return nil
	}
	return errors.NotFound("approval_step", id)
}

func (f *fakeStore) CountNotApproved(ctx context.Context, procurementID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, s := range f.steps {
		if s.ProcurementID == procurementID && s.Status != repository.StepStatusApproved {
			count++
		}
	}
	return count, nil
}

func (f *fakeStore) GetPendingForUser(ctx context.Context, userID string, roleNames []string) ([]*repository.ApprovalStep, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	holds := func(name string) bool {
		for _, r := range roleNames {
			if strings.EqualFold(r, name) {
				return true
			}
		}
		return false
	}
	var out []*repository.ApprovalStep
	for _, s := range f.steps {
		if s.Status != repository.StepStatusPending {
			continue
		}
		if (s.AssignedApproverID != nil && *s.AssignedApproverID == userID) ||
			(s.AssignedApproverID == nil && holds(s.RoleName)) {
			copied := *s
			out = append(out, &copied)
		}
	}
	return out, nil
}

// ── ConfigStore ──────────────────────────────────────────────────────────────

func (f *fakeStore) ListStepConfigs(ctx context.Context, jobTypeID, documentTypeID string) ([]repository.ApprovalStepConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []repository.ApprovalStepConfig
	for _, c := range f.configs {
		if c.JobTypeID == jobTypeID && c.DocumentTypeID == documentTypeID {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Level != out[j].Level {
			return out[i].Level < out[j].Level
		}
		return out[i].Sequence < out[j].Sequence
	})
	return out, nil
}

func (f *fakeStore) GetRoleByName(ctx context.Context, name string) (*repository.Role, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	role, ok := f.roles[strings.ToLower(name)]
	if !ok {
		return nil, nil
	}
	copied := role
	return &copied, nil
}

// ── OfferStore ───────────────────────────────────────────────────────────────

func (f *fakeStore) ListOfferLines(ctx context.Context, procurementID string) ([]repository.VendorOfferLine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.offerErr != nil {
		return nil, f.offerErr
	}
	var out []repository.VendorOfferLine
	for _, l := range f.offerLines {
		if l.ProcurementID == procurementID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *fakeStore) ListLineItems(ctx context.Context, procurementID string) ([]repository.ProcurementLineItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.offerErr != nil {
		return nil, f.offerErr
	}
	var out []repository.ProcurementLineItem
	for _, it := range f.lineItems {
		if it.ProcurementID == procurementID {
			out = append(out, it)
		}
	}
	return out, nil
}

// ── AuditStore ───────────────────────────────────────────────────────────────

func (f *fakeStore) Append(ctx context.Context, entry *repository.AuditEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	entry.ID = fmt.Sprintf("audit-%d", len(f.audit)+1)
	entry.PerformedAt = time.Now()
	f.audit = append(f.audit, entry)
	return nil
}

func (f *fakeStore) GetAuditByDocumentID(ctx context.Context, documentID string) ([]*repository.AuditEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*repository.AuditEntry
	for _, e := range f.audit {
		if e.DocumentID == documentID {
			out = append(out, e)
		}
	}
	return out, nil
}

// Interface adapters: the fake carries every store behind one struct, but
// GetByID collides between documents, steps and procurements, so thin views
// disambiguate.

type procView struct{ *fakeStore }

func (v procView) GetByID(ctx context.Context, id string) (*repository.Procurement, error) {
	return v.GetProcurement(ctx, id)
}

type stepView struct{ *fakeStore }

func (v stepView) GetByID(ctx context.Context, id string) (*repository.ApprovalStep, error) {
	return v.GetStep(ctx, id)
}

type auditView struct{ *fakeStore }

func (v auditView) GetByDocumentID(ctx context.Context, documentID string) ([]*repository.AuditEntry, error) {
	return v.GetAuditByDocumentID(ctx, documentID)
}

// ── fakeNotifier ─────────────────────────────────────────────────────────────

type fakeNotifier struct {
	mu             sync.Mutex
	documentEvents []string
	completed      []string
}

func (n *fakeNotifier) PublishDocumentEvent(ctx context.Context, eventType, documentID, procurementID, actorID string, payload map[string]interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.documentEvents = append(n.documentEvents, eventType)
}

func (n *fakeNotifier) PublishProcurementCompleted(ctx context.Context, procurementID, actorID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.completed = append(n.completed, procurementID)
}

// ── shared fixture ───────────────────────────────────────────────────────────

func strp(s string) *string { return &s }

// newFixture builds a store with one in-progress procurement ("proc-1",
// job type "trucking", manager u-manager assigned, PIC Operations
// unassigned) and one document ("doc-1", type "work_order", QR "QR-1").
func newFixture() (*fakeStore, *fakeNotifier) {
	store := newFakeStore()
	store.addRole("role-mgr", "Manager")
	store.addRole("role-pic", "PIC Operations")
	store.addRole("role-dir", "Director")
	store.addRole("role-vp", "Vice President")

	store.procurements["proc-1"] = &repository.Procurement{
		ID:        "proc-1",
		JobTypeID: "trucking",
		Name:      "Coal haul Q3",
		Status:    repository.ProcurementStatusInProgress,
		ManagerID: strp("u-manager"),
	}
	store.documents["doc-1"] = &repository.Document{
		ID:             "doc-1",
		ProcurementID:  "proc-1",
		DocumentTypeID: "work_order",
		Status:         repository.DocumentStatusUploaded,
		QRCode:         strp("QR-1"),
	}

	return store, &fakeNotifier{}
}

func newFlowService(store *fakeStore, notifier *fakeNotifier) *FlowService {
	return NewFlowService(store, procView{store}, stepView{store}, store, store, auditView{store}, notifier, testLogger())
}

func newGateService(store *fakeStore, notifier *fakeNotifier) *GateService {
	return NewGateService(store, procView{store}, stepView{store}, auditView{store}, notifier, testLogger())
}
