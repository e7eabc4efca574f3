package lead

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/Ramsey-B/clover/pkg/database"
	dedupeerrors "github.com/Ramsey-B/clover/pkg/errors"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

const table = "leads"

// lock_not_available, raised by FOR UPDATE NOWAIT
const pqLockNotAvailable = "55P03"

var columns = []string{
	"id", "tenant_id", "company_name", "contact_name", "email", "phone",
	"website", "industry", "source", "created_at", "updated_at",
}

// Repository handles lead persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new lead repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// WithinTx runs fn in a database transaction
func (r *Repository) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.db.WithinTx(ctx, fn)
}

// Create inserts a new lead
func (r *Repository) Create(ctx context.Context, tenantID string, req *models.CreateLeadRequest) (*models.Lead, error) {
	ctx, span := tracing.StartSpan(ctx, "lead.Repository.Create")
	defer span.End()

	now := time.Now().UTC().Truncate(time.Microsecond)
	lead := &models.Lead{
		ID:          uuid.New().String(),
		TenantID:    tenantID,
		CompanyName: req.CompanyName,
		ContactName: req.ContactName,
		Email:       req.Email,
		Phone:       req.Phone,
		Website:     req.Website,
		Industry:    req.Industry,
		Source:      req.Source,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	ib := database.NewInsertBuilder()
	ib.InsertInto(table)
	ib.Cols(columns...)
	ib.Values(lead.ID, lead.TenantID, lead.CompanyName, lead.ContactName, lead.Email, lead.Phone,
		lead.Website, lead.Industry, lead.Source, lead.CreatedAt, lead.UpdatedAt)

	query, args := ib.Build()
	if _, err := r.db.Conn(ctx).ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to create lead")
		return nil, dedupeerrors.StorageFailure(err, "failed to create lead")
	}

	return lead, nil
}

// ListByTenant returns every lead of the tenant ordered by creation time then id
func (r *Repository) ListByTenant(ctx context.Context, tenantID string) ([]models.Lead, error) {
	ctx, span := tracing.StartSpan(ctx, "lead.Repository.ListByTenant")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select(columns...)
	sb.From(table)
	sb.Where(sb.Equal("tenant_id", tenantID))
	sb.OrderBy("created_at", "id")

	query, args := sb.Build()
	var leads []models.Lead
	if err := r.db.Conn(ctx).SelectContext(ctx, &leads, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list leads")
		return nil, dedupeerrors.StorageFailure(err, "failed to list leads")
	}
	return leads, nil
}

// GetByID returns a lead of the tenant
func (r *Repository) GetByID(ctx context.Context, tenantID, id string) (*models.Lead, error) {
	ctx, span := tracing.StartSpan(ctx, "lead.Repository.GetByID")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select(columns...)
	sb.From(table)
	sb.Where(
		sb.Equal("id", id),
		sb.Equal("tenant_id", tenantID),
	)

	query, args := sb.Build()
	var lead models.Lead
	if err := r.db.Conn(ctx).GetContext(ctx, &lead, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, dedupeerrors.LeadNotFound(id)
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get lead")
		return nil, dedupeerrors.StorageFailure(err, "failed to get lead")
	}
	return &lead, nil
}

// GetByIDs returns the tenant's leads among ids. Missing ids are omitted.
func (r *Repository) GetByIDs(ctx context.Context, tenantID string, ids []string) ([]models.Lead, error) {
	ctx, span := tracing.StartSpan(ctx, "lead.Repository.GetByIDs")
	defer span.End()

	if len(ids) == 0 {
		return []models.Lead{}, nil
	}

	sb := database.NewSelectBuilder()
	sb.Select(columns...)
	sb.From(table)
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.In("id", database.Args(ids)...),
	)
	sb.OrderBy("id")

	query, args := sb.Build()
	var leads []models.Lead
	if err := r.db.Conn(ctx).SelectContext(ctx, &leads, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get leads")
		return nil, dedupeerrors.StorageFailure(err, "failed to get leads")
	}
	return leads, nil
}

// LockForMerge locks the rows for the transaction in ctx. Rows locked by another
// transaction fail immediately with a Conflict instead of waiting.
func (r *Repository) LockForMerge(ctx context.Context, tenantID string, ids []string) ([]models.Lead, error) {
	ctx, span := tracing.StartSpan(ctx, "lead.Repository.LockForMerge")
	defer span.End()

	tx, ok := database.TxFromContext(ctx)
	if !ok {
		return nil, errors.New("LockForMerge requires a transaction")
	}

	sb := database.NewSelectBuilder()
	sb.Select(columns...)
	sb.From(table)
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.In("id", database.Args(ids)...),
	)
	// a stable lock order keeps two overlapping merges from deadlocking
	sb.OrderBy("id")
	sb.ForUpdate()
	sb.SQL("NOWAIT")

	query, args := sb.Build()
	var leads []models.Lead
	if err := tx.SelectContext(ctx, &leads, query, args...); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqLockNotAvailable {
			return nil, dedupeerrors.Conflict("stale duplicate: leads are locked by a concurrent merge")
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to lock leads")
		return nil, dedupeerrors.StorageFailure(err, "failed to lock leads")
	}
	return leads, nil
}

// Update writes every mergeable field and updated_at of the lead
func (r *Repository) Update(ctx context.Context, lead *models.Lead) error {
	ctx, span := tracing.StartSpan(ctx, "lead.Repository.Update")
	defer span.End()

	ub := database.NewUpdateBuilder()
	ub.Update(table)
	ub.Set(
		ub.Assign("company_name", lead.CompanyName),
		ub.Assign("contact_name", lead.ContactName),
		ub.Assign("email", lead.Email),
		ub.Assign("phone", lead.Phone),
		ub.Assign("website", lead.Website),
		ub.Assign("industry", lead.Industry),
		ub.Assign("source", lead.Source),
		ub.Assign("updated_at", lead.UpdatedAt),
	)
	ub.Where(
		ub.Equal("id", lead.ID),
		ub.Equal("tenant_id", lead.TenantID),
	)

	query, args := ub.Build()
	result, err := r.db.Conn(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to update lead")
		return dedupeerrors.StorageFailure(err, "failed to update lead")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return dedupeerrors.StorageFailure(err, "failed to update lead")
	}
	if rows == 0 {
		return dedupeerrors.LeadNotFound(lead.ID)
	}
	return nil
}

// DeleteByIDs removes the tenant's leads among ids and returns how many were removed
func (r *Repository) DeleteByIDs(ctx context.Context, tenantID string, ids []string) (int64, error) {
	ctx, span := tracing.StartSpan(ctx, "lead.Repository.DeleteByIDs")
	defer span.End()

	if len(ids) == 0 {
		return 0, nil
	}

	sb := database.NewDeleteBuilder()
	sb.DeleteFrom(table)
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.In("id", database.Args(ids)...),
	)

	query, args := sb.Build()
	result, err := r.db.Conn(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to delete leads")
		return 0, dedupeerrors.StorageFailure(err, "failed to delete leads")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, dedupeerrors.StorageFailure(err, "failed to delete leads")
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"tenant_id": tenantID,
		"deleted":   rows,
	}).Debug("Deleted leads")
	return rows, nil
}
