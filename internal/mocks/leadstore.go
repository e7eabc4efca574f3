// Package mocks provides in-memory stores for tests
package mocks

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	dedupeerrors "github.com/Ramsey-B/clover/pkg/errors"
	"github.com/Ramsey-B/clover/pkg/models"
)

type txKey struct{}

// tx tracks the undo log and row locks of one in-memory transaction
type tx struct {
	undo   []func()
	locked []string
}

// LeadStore is an in-memory transactional lead store.
// Row locks behave like SELECT ... FOR UPDATE NOWAIT and rollbacks replay an undo log.
type LeadStore struct {
	mu     sync.Mutex
	leads  map[string]models.Lead
	locks  map[string]*tx
	audits []models.MergeAudit

	// FailDelete, when set, is returned by DeleteByIDs
	FailDelete error
	// FailList, when set, is returned by ListByTenant and GetByIDs
	FailList error
	// AfterLock runs after LockForMerge takes its locks, outside the store mutex
	AfterLock func(ctx context.Context, ids []string)
}

// NewLeadStore creates an empty store
func NewLeadStore() *LeadStore {
	return &LeadStore{
		leads: make(map[string]models.Lead),
		locks: make(map[string]*tx),
	}
}

// Add inserts leads as-is
func (s *LeadStore) Add(leads ...models.Lead) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range leads {
		s.leads[l.ID] = l
	}
}

// Lead returns a stored lead
func (s *LeadStore) Lead(id string) (models.Lead, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.leads[id]
	return l, ok
}

// Count returns the number of stored leads
func (s *LeadStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.leads)
}

// record appends an undo step to the transaction in ctx. Callers hold s.mu.
func (s *LeadStore) record(ctx context.Context, undo func()) {
	if t, ok := ctx.Value(txKey{}).(*tx); ok {
		t.undo = append(t.undo, undo)
	}
}

// WithinTx runs fn in a transaction. A transaction already in ctx is reused.
func (s *LeadStore) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*tx); ok {
		return fn(ctx)
	}

	t := &tx{}
	err := fn(context.WithValue(ctx, txKey{}, t))

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		for i := len(t.undo) - 1; i >= 0; i-- {
			t.undo[i]()
		}
	}
	for _, id := range t.locked {
		if s.locks[id] == t {
			delete(s.locks, id)
		}
	}
	return err
}

// ListByTenant returns the tenant's leads ordered by creation time then id
func (s *LeadStore) ListByTenant(ctx context.Context, tenantID string) ([]models.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailList != nil {
		return nil, s.FailList
	}

	var out []models.Lead
	for _, l := range s.leads {
		if l.TenantID == tenantID {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// GetByID returns a lead of the tenant or NotFound
func (s *LeadStore) GetByID(ctx context.Context, tenantID, id string) (*models.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.leads[id]
	if !ok || l.TenantID != tenantID {
		return nil, dedupeerrors.LeadNotFound(id)
	}
	return &l, nil
}

// GetByIDs returns the tenant's leads among ids; missing ids are omitted
func (s *LeadStore) GetByIDs(ctx context.Context, tenantID string, ids []string) ([]models.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailList != nil {
		return nil, s.FailList
	}
	return s.collect(tenantID, ids), nil
}

func (s *LeadStore) collect(tenantID string, ids []string) []models.Lead {
	var out []models.Lead
	for _, id := range ids {
		if l, ok := s.leads[id]; ok && l.TenantID == tenantID {
			out = append(out, l)
		}
	}
	return out
}

// LockForMerge locks the given rows for the transaction in ctx without waiting
func (s *LeadStore) LockForMerge(ctx context.Context, tenantID string, ids []string) ([]models.Lead, error) {
	t, ok := ctx.Value(txKey{}).(*tx)
	if !ok {
		return nil, fmt.Errorf("LockForMerge requires a transaction")
	}

	s.mu.Lock()
	for _, id := range ids {
		if owner, held := s.locks[id]; held && owner != t {
			s.mu.Unlock()
			return nil, dedupeerrors.StaleLead(id, "lead is locked by a concurrent merge")
		}
	}
	for _, id := range ids {
		if _, exists := s.leads[id]; exists && s.locks[id] == nil {
			s.locks[id] = t
			t.locked = append(t.locked, id)
		}
	}
	out := s.collect(tenantID, ids)
	hook := s.AfterLock
	s.mu.Unlock()

	if hook != nil {
		hook(ctx, ids)
	}
	return out, nil
}

// Update replaces a stored lead
func (s *LeadStore) Update(ctx context.Context, lead *models.Lead) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.leads[lead.ID]
	if !ok || old.TenantID != lead.TenantID {
		return dedupeerrors.LeadNotFound(lead.ID)
	}
	s.leads[lead.ID] = *lead
	s.record(ctx, func() { s.leads[old.ID] = old })
	return nil
}

// DeleteByIDs removes the tenant's leads among ids
func (s *LeadStore) DeleteByIDs(ctx context.Context, tenantID string, ids []string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailDelete != nil {
		return 0, s.FailDelete
	}

	var deleted int64
	for _, id := range ids {
		old, ok := s.leads[id]
		if !ok || old.TenantID != tenantID {
			continue
		}
		delete(s.leads, id)
		s.record(ctx, func() { s.leads[old.ID] = old })
		deleted++
	}
	return deleted, nil
}

// Create stores a merge audit entry
func (s *LeadStore) Create(ctx context.Context, audit *models.MergeAudit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if audit.ID == "" {
		audit.ID = uuid.New().String()
	}
	s.audits = append(s.audits, *audit)
	n := len(s.audits)
	s.record(ctx, func() { s.audits = s.audits[:n-1] })
	return nil
}

// ListByPrimary returns audit entries whose surviving lead is primaryID
func (s *LeadStore) ListByPrimary(ctx context.Context, tenantID, primaryID string) ([]models.MergeAudit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.MergeAudit
	for _, a := range s.audits {
		if a.TenantID == tenantID && a.PrimaryLeadID == primaryID {
			out = append(out, a)
		}
	}
	return out, nil
}

// Audits returns every stored audit entry
func (s *LeadStore) Audits() []models.MergeAudit {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.MergeAudit(nil), s.audits...)
}

// DependentRow is a record owned by a lead
type DependentRow struct {
	ID       string
	TenantID string
	LeadID   string
}

// DependentTable is an in-memory dependent kind sharing the store's transactions
type DependentTable struct {
	store *LeadStore
	name  string
	rows  map[string]*DependentRow

	// FailReassign, when set, is returned by ReassignOwner
	FailReassign error
}

// NewDependentTable creates a dependent kind backed by store
func (s *LeadStore) NewDependentTable(name string) *DependentTable {
	return &DependentTable{
		store: s,
		name:  name,
		rows:  make(map[string]*DependentRow),
	}
}

// Add inserts a row owned by leadID and returns its id
func (d *DependentTable) Add(tenantID, leadID string) string {
	d.store.mu.Lock()
	defer d.store.mu.Unlock()
	id := uuid.New().String()
	d.rows[id] = &DependentRow{ID: id, TenantID: tenantID, LeadID: leadID}
	return id
}

func (d *DependentTable) Name() string {
	return d.name
}

func (d *DependentTable) ReassignOwner(ctx context.Context, tenantID, oldLeadID, newLeadID string) (int64, error) {
	d.store.mu.Lock()
	defer d.store.mu.Unlock()
	if d.FailReassign != nil {
		return 0, d.FailReassign
	}

	var moved int64
	for _, row := range d.rows {
		if row.TenantID != tenantID || row.LeadID != oldLeadID {
			continue
		}
		r := row
		r.LeadID = newLeadID
		d.store.record(ctx, func() { r.LeadID = oldLeadID })
		moved++
	}
	return moved, nil
}

func (d *DependentTable) CountOwned(ctx context.Context, tenantID string, leadIDs []string) (int64, error) {
	d.store.mu.Lock()
	defer d.store.mu.Unlock()
	owners := make(map[string]bool, len(leadIDs))
	for _, id := range leadIDs {
		owners[id] = true
	}
	var n int64
	for _, row := range d.rows {
		if row.TenantID == tenantID && owners[row.LeadID] {
			n++
		}
	}
	return n, nil
}

// Owners returns the owning lead id of every row, keyed by row id
func (d *DependentTable) Owners() map[string]string {
	d.store.mu.Lock()
	defer d.store.mu.Unlock()
	out := make(map[string]string, len(d.rows))
	for id, row := range d.rows {
		out[id] = row.LeadID
	}
	return out
}
