package mergeaudit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/clover/pkg/database"
	dedupeerrors "github.com/Ramsey-B/clover/pkg/errors"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

const table = "lead_merge_audits"

var columns = []string{
	"id", "tenant_id", "primary_lead_id", "merged_lead_ids", "strategy",
	"field_changes", "reassigned", "merged_snapshots", "performed_by", "performed_at",
}

// row is the stored form of an audit entry
type row struct {
	ID              string                          `db:"id"`
	TenantID        string                          `db:"tenant_id"`
	PrimaryLeadID   string                          `db:"primary_lead_id"`
	MergedLeadIDs   database.JSONB[json.RawMessage] `db:"merged_lead_ids"`
	Strategy        string                          `db:"strategy"`
	FieldChanges    database.JSONB[json.RawMessage] `db:"field_changes"`
	Reassigned      database.JSONB[json.RawMessage] `db:"reassigned"`
	MergedSnapshots database.JSONB[json.RawMessage] `db:"merged_snapshots"`
	PerformedBy     *string                         `db:"performed_by"`
	PerformedAt     time.Time                       `db:"performed_at"`
}

func (r row) toModel() models.MergeAudit {
	return models.MergeAudit{
		ID:              r.ID,
		TenantID:        r.TenantID,
		PrimaryLeadID:   r.PrimaryLeadID,
		MergedLeadIDs:   r.MergedLeadIDs.Data,
		Strategy:        models.MergeStrategy(r.Strategy),
		FieldChanges:    r.FieldChanges.Data,
		Reassigned:      r.Reassigned.Data,
		MergedSnapshots: r.MergedSnapshots.Data,
		PerformedBy:     r.PerformedBy,
		PerformedAt:     r.PerformedAt,
	}
}

// Repository persists merge audit entries
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new merge audit repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Create writes an audit entry, joining the transaction in ctx when there is one
func (r *Repository) Create(ctx context.Context, audit *models.MergeAudit) error {
	ctx, span := tracing.StartSpan(ctx, "mergeaudit.Repository.Create")
	defer span.End()

	if audit.ID == "" {
		audit.ID = uuid.New().String()
	}
	if audit.PerformedAt.IsZero() {
		audit.PerformedAt = time.Now().UTC()
	}

	ib := database.NewInsertBuilder()
	ib.InsertInto(table)
	ib.Cols(columns...)
	ib.Values(
		audit.ID,
		audit.TenantID,
		audit.PrimaryLeadID,
		database.NewJSONB(audit.MergedLeadIDs),
		string(audit.Strategy),
		database.NewJSONB(audit.FieldChanges),
		database.NewJSONB(audit.Reassigned),
		database.NewJSONB(audit.MergedSnapshots),
		audit.PerformedBy,
		audit.PerformedAt,
	)

	query, args := ib.Build()
	if _, err := r.db.Conn(ctx).ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to create merge audit")
		return dedupeerrors.StorageFailure(err, "failed to create merge audit")
	}
	return nil
}

// ListByPrimary returns the merges that kept primaryID, newest first
func (r *Repository) ListByPrimary(ctx context.Context, tenantID, primaryID string) ([]models.MergeAudit, error) {
	ctx, span := tracing.StartSpan(ctx, "mergeaudit.Repository.ListByPrimary")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select(columns...)
	sb.From(table)
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.Equal("primary_lead_id", primaryID),
	)
	sb.OrderBy("performed_at").Desc()

	query, args := sb.Build()
	var rows []row
	if err := r.db.Conn(ctx).SelectContext(ctx, &rows, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list merge audits")
		return nil, dedupeerrors.StorageFailure(err, "failed to list merge audits")
	}

	audits := make([]models.MergeAudit, len(rows))
	for i, rw := range rows {
		audits[i] = rw.toModel()
	}
	return audits, nil
}
